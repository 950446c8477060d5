// internal/infra/database/postgres_delivery_repository.go
package database

import (
	"context"
	"database/sql"
	"fmt"

	"notification_dispatcher/internal/domain/notification"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

var ErrDeliveryNotFound = fmt.Errorf("notification delivery not found")

type PostgresDeliveryRepository struct {
	db *sql.DB
}

func NewPostgresDeliveryRepository(db *sql.DB) *PostgresDeliveryRepository {
	return &PostgresDeliveryRepository{db: db}
}

const deliveryColumns = `id, event_id, channel, template_id, status, attempt_count, last_attempt_at, sent_at, next_retry_at, error, metadata, created_at`

// Ensure inserts the (event_id, channel) row or, on conflict, returns the
// existing one. A non-null incoming template_id replaces the stored one;
// status and attempt counters are never rewritten by the upsert.
func (r *PostgresDeliveryRepository) Ensure(ctx context.Context, eventID string, channel notification.Channel, templateID string) (*notification.Delivery, error) {
	query := `INSERT INTO notification_deliveries (id, event_id, channel, template_id, status, metadata)
              VALUES ($1, $2, $3, $4, 'pending', '{}')
              ON CONFLICT (event_id, channel)
              DO UPDATE SET template_id = COALESCE(EXCLUDED.template_id, notification_deliveries.template_id)
              RETURNING ` + deliveryColumns
	templateRef := sql.NullString{String: templateID, Valid: templateID != ""}
	delivery := notification.Delivery{}
	err := r.db.QueryRowContext(ctx, query, uuid.NewString(), eventID, channel, templateRef).Scan(deliveryFields(&delivery)...)
	if err != nil {
		return nil, fmt.Errorf("error ensuring delivery for event %s channel %s: %w", eventID, channel, err)
	}
	return &delivery, nil
}

func (r *PostgresDeliveryRepository) Update(ctx context.Context, delivery *notification.Delivery) error {
	query := `UPDATE notification_deliveries
              SET template_id = $1, status = $2, attempt_count = $3, last_attempt_at = $4,
                  sent_at = $5, next_retry_at = $6, error = $7, metadata = $8
              WHERE id = $9`
	result, err := r.db.ExecContext(ctx, query,
		delivery.TemplateID, delivery.Status, delivery.AttemptCount, delivery.LastAttemptAt,
		delivery.SentAt, delivery.NextRetryAt, delivery.Error, delivery.Metadata, delivery.ID,
	)
	if err != nil {
		return fmt.Errorf("error updating delivery %s: %w", delivery.ID, err)
	}
	return requireRow(result, ErrDeliveryNotFound)
}

func (r *PostgresDeliveryRepository) ListStalled(ctx context.Context, limit int) ([]*notification.Delivery, error) {
	query := `SELECT ` + deliveryColumns + `
              FROM notification_deliveries
              WHERE status = ANY($1::varchar[])
              ORDER BY created_at ASC LIMIT $2`
	statuses := []string{string(notification.DeliveryPending), string(notification.DeliveryDeferred)}
	rows, err := r.db.QueryContext(ctx, query, pq.Array(statuses), limit)
	if err != nil {
		return nil, fmt.Errorf("error querying stalled deliveries: %w", err)
	}
	defer rows.Close()

	deliveries := make([]*notification.Delivery, 0)
	for rows.Next() {
		delivery := notification.Delivery{}
		if err := rows.Scan(deliveryFields(&delivery)...); err != nil {
			return nil, fmt.Errorf("error scanning delivery row: %w", err)
		}
		deliveries = append(deliveries, &delivery)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating delivery rows: %w", err)
	}
	return deliveries, nil
}

func deliveryFields(d *notification.Delivery) []any {
	return []any{
		&d.ID, &d.EventID, &d.Channel, &d.TemplateID, &d.Status, &d.AttemptCount,
		&d.LastAttemptAt, &d.SentAt, &d.NextRetryAt, &d.Error, &d.Metadata, &d.CreatedAt,
	}
}
