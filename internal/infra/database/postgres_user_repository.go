package database

import (
	"context"
	"database/sql"
	"fmt"

	"notification_dispatcher/internal/domain/user"

	"github.com/lib/pq"
)

var ErrProfileNotFound = fmt.Errorf("profile not found")
var ErrOptInNotFound = fmt.Errorf("notification opt-in not found")
var ErrAuthUserNotFound = fmt.Errorf("auth user not found")

type PostgresUserRepository struct {
	db *sql.DB
}

func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

func (r *PostgresUserRepository) GetProfile(ctx context.Context, userID string) (*user.Profile, error) {
	query := `SELECT user_id, email, phone, full_name, timezone, notification_channels
              FROM profiles WHERE user_id = $1`
	profile := user.Profile{}
	var channels pq.StringArray
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&profile.UserID, &profile.Email, &profile.Phone, &profile.FullName,
		&profile.Timezone, &channels,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("error getting profile: %w", err)
	}
	profile.NotificationChannels = channels
	return &profile, nil
}

func (r *PostgresUserRepository) GetOptIn(ctx context.Context, userID string) (*user.OptIn, error) {
	query := `SELECT user_id, email_opt_in, wa_opt_in, channels, quiet_hours_start, quiet_hours_end, timezone
              FROM notifications_opt_in WHERE user_id = $1`
	optIn := user.OptIn{}
	var channels pq.StringArray
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&optIn.UserID, &optIn.EmailOptIn, &optIn.WaOptIn, &channels,
		&optIn.QuietHoursStart, &optIn.QuietHoursEnd, &optIn.Timezone,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrOptInNotFound
		}
		return nil, fmt.Errorf("error getting notification opt-in: %w", err)
	}
	optIn.Channels = channels
	return &optIn, nil
}

// GetAuthEmail performs the admin-level "user by id" lookup against the
// auth schema, used only as an email fallback for contact display.
func (r *PostgresUserRepository) GetAuthEmail(ctx context.Context, userID string) (string, error) {
	query := `SELECT email FROM auth_users WHERE id = $1`
	var email sql.NullString
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&email)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", ErrAuthUserNotFound
		}
		return "", fmt.Errorf("error getting auth user email: %w", err)
	}
	return email.String, nil
}
