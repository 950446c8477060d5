// internal/infra/database/postgres_event_repository.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"notification_dispatcher/internal/domain/notification"

	"github.com/google/uuid"
	"github.com/lib/pq" // For pq.Array, pq.Error and driver registration
)

// Custom errors specific to the event repository
var ErrEventNotFound = fmt.Errorf("notification event not found")
var ErrDuplicateEvent = fmt.Errorf("duplicate notification event (idempotency_key)")

const pqUniqueViolation = "23505"

type PostgresEventRepository struct {
	db *sql.DB
}

func NewPostgresEventRepository(db *sql.DB) *PostgresEventRepository {
	return &PostgresEventRepository{db: db}
}

func (r *PostgresEventRepository) Create(ctx context.Context, event *notification.Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Locale == "" {
		event.Locale = "en"
	}
	query := `INSERT INTO notification_events (id, user_id, event_key, locale, payload, requested_channels, idempotency_key)
              VALUES ($1, $2, $3, $4, $5, $6, $7)
              RETURNING created_at`
	err := r.db.QueryRowContext(ctx, query,
		event.ID, event.UserID, event.EventKey, event.Locale,
		event.Payload, pq.Array(channelsToStrings(event.RequestedChannels)), event.IdempotencyKey,
	).Scan(&event.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == pqUniqueViolation {
			return ErrDuplicateEvent
		}
		return fmt.Errorf("error creating notification event: %w", err)
	}
	return nil
}

func (r *PostgresEventRepository) GetByID(ctx context.Context, id string) (*notification.Event, error) {
	query := eventSelect + ` WHERE id = $1`
	return r.queryOne(ctx, query, id)
}

func (r *PostgresEventRepository) GetByIdempotencyKey(ctx context.Context, key string) (*notification.Event, error) {
	query := eventSelect + ` WHERE idempotency_key = $1`
	return r.queryOne(ctx, query, key)
}

func (r *PostgresEventRepository) ListUnprocessed(ctx context.Context, limit int) ([]*notification.Event, error) {
	query := eventSelect + ` WHERE processed_at IS NULL ORDER BY created_at ASC LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying unprocessed events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (r *PostgresEventRepository) MarkProcessed(ctx context.Context, id string, processedAt time.Time, errMsg string) error {
	query := `UPDATE notification_events SET processed_at = $1, error = NULLIF($2, '') WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, processedAt, errMsg, id)
	if err != nil {
		return fmt.Errorf("error marking event processed: %w", err)
	}
	return requireRow(result, ErrEventNotFound)
}

func (r *PostgresEventRepository) SetError(ctx context.Context, id string, errMsg string) error {
	// processed_at is deliberately left untouched so the event is retried.
	query := `UPDATE notification_events SET error = $1 WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, errMsg, id)
	if err != nil {
		return fmt.Errorf("error recording event error: %w", err)
	}
	return requireRow(result, ErrEventNotFound)
}

const eventSelect = `SELECT id, user_id, event_key, locale, payload, requested_channels, idempotency_key, processed_at, error, created_at
              FROM notification_events`

func (r *PostgresEventRepository) queryOne(ctx context.Context, query string, arg any) (*notification.Event, error) {
	event := notification.Event{}
	var channels pq.StringArray
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&event.ID, &event.UserID, &event.EventKey, &event.Locale, &event.Payload,
		&channels, &event.IdempotencyKey, &event.ProcessedAt, &event.Error, &event.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("error getting notification event: %w", err)
	}
	event.RequestedChannels = notification.ParseChannels(channels)
	return &event, nil
}

func scanEvents(rows *sql.Rows) ([]*notification.Event, error) {
	events := make([]*notification.Event, 0)
	for rows.Next() {
		event := notification.Event{}
		var channels pq.StringArray
		if err := rows.Scan(
			&event.ID, &event.UserID, &event.EventKey, &event.Locale, &event.Payload,
			&channels, &event.IdempotencyKey, &event.ProcessedAt, &event.Error, &event.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("error scanning event row: %w", err)
		}
		event.RequestedChannels = notification.ParseChannels(channels)
		events = append(events, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating event rows: %w", err)
	}
	return events, nil
}

func channelsToStrings(channels []notification.Channel) []string {
	out := make([]string, len(channels))
	for i, ch := range channels {
		out[i] = string(ch)
	}
	return out
}

func requireRow(result sql.Result, notFound error) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading affected rows: %w", err)
	}
	if affected == 0 {
		return notFound
	}
	return nil
}
