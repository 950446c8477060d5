package database

import (
	"context"
	"database/sql"
	"fmt"

	"notification_dispatcher/internal/domain/notification"
)

var ErrTemplateNotFound = fmt.Errorf("notification template not found")

type PostgresTemplateRepository struct {
	db *sql.DB
}

func NewPostgresTemplateRepository(db *sql.DB) *PostgresTemplateRepository {
	return &PostgresTemplateRepository{db: db}
}

func (r *PostgresTemplateRepository) Find(ctx context.Context, templateKey string, channel notification.Channel, locale string) (*notification.Template, error) {
	query := `SELECT id, template_key, channel, locale, subject, body
              FROM notification_templates
              WHERE template_key = $1 AND channel = $2 AND locale = $3`
	template := notification.Template{}
	err := r.db.QueryRowContext(ctx, query, templateKey, channel, locale).Scan(
		&template.ID, &template.TemplateKey, &template.Channel, &template.Locale,
		&template.Subject, &template.Body,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("error getting notification template: %w", err)
	}
	return &template, nil
}
