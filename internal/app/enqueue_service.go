// internal/app/enqueue_service.go
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"notification_dispatcher/internal/domain/notification"
	"notification_dispatcher/internal/infra/audit"
	idb "notification_dispatcher/internal/infra/database"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

// EnqueueInput is the request shape for queuing a notification event.
type EnqueueInput struct {
	UserID         string         `json:"user_id" validate:"required"`
	EventKey       string         `json:"event_key" validate:"required"`
	Locale         string         `json:"locale"`
	Payload        map[string]any `json:"payload"`
	Channels       []string       `json:"channels" validate:"dive,oneof=email whatsapp"`
	IdempotencyKey string         `json:"idempotency_key"`
}

const (
	ReasonDuplicate = "duplicate"
	ReasonError     = "error"
)

// EnqueueResult reports the outcome of an enqueue call. A duplicate
// idempotency key is not an error state: it signals "already queued" and
// carries the existing event's id when it can be resolved.
type EnqueueResult struct {
	OK      bool
	ID      string
	Reason  string
	Message string
}

// ValidationError is a field-level validation failure on the enqueue
// payload, rejected before any persistence.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// EnqueueService validates notification requests and persists them as
// durable, idempotent event rows.
type EnqueueService struct {
	events   notification.EventRepository
	validate *validator.Validate
	audit    *audit.Logger
	log      *logrus.Logger
}

func NewEnqueueService(events notification.EventRepository, auditLog *audit.Logger, log *logrus.Logger) *EnqueueService {
	return &EnqueueService{
		events:   events,
		validate: validator.New(),
		audit:    auditLog,
		log:      log,
	}
}

// Enqueue validates input and inserts a new event row. The returned error
// is non-nil only for validation failures; persistence problems are
// reported through the result so programmatic callers and the HTTP layer
// see the same shape.
func (s *EnqueueService) Enqueue(ctx context.Context, input EnqueueInput) (EnqueueResult, error) {
	if err := s.validate.Struct(input); err != nil {
		var fieldErrors validator.ValidationErrors
		if errors.As(err, &fieldErrors) && len(fieldErrors) > 0 {
			fe := fieldErrors[0]
			return EnqueueResult{}, &ValidationError{
				Field:   fe.Field(),
				Message: fmt.Sprintf("failed on '%s' validation", fe.Tag()),
			}
		}
		return EnqueueResult{}, &ValidationError{Field: "payload", Message: err.Error()}
	}

	locale := input.Locale
	if locale == "" {
		locale = "en"
	}
	payload := notification.Payload(input.Payload)
	if payload == nil {
		payload = notification.Payload{}
	}

	event := &notification.Event{
		UserID:            input.UserID,
		EventKey:          input.EventKey,
		Locale:            locale,
		Payload:           payload,
		RequestedChannels: notification.ParseChannels(input.Channels),
		IdempotencyKey:    sql.NullString{String: input.IdempotencyKey, Valid: input.IdempotencyKey != ""},
	}

	if err := s.events.Create(ctx, event); err != nil {
		if errors.Is(err, idb.ErrDuplicateEvent) {
			result := EnqueueResult{OK: false, Reason: ReasonDuplicate, Message: "Event already enqueued"}
			if input.IdempotencyKey != "" {
				existing, lookupErr := s.events.GetByIdempotencyKey(ctx, input.IdempotencyKey)
				if lookupErr == nil {
					result.ID = existing.ID
				}
			}
			return result, nil
		}
		s.audit.CaptureException(err, map[string]any{
			"scope":    "notify:enqueue",
			"eventKey": input.EventKey,
			"userId":   input.UserID,
		})
		return EnqueueResult{OK: false, Reason: ReasonError, Message: err.Error()}, nil
	}

	s.audit.Track("notification_enqueued", map[string]any{
		"eventKey": event.EventKey,
		"userId":   event.UserID,
		"id":       event.ID,
		"channels": event.RequestedChannels,
		"locale":   event.Locale,
	})
	return EnqueueResult{OK: true, ID: event.ID}, nil
}
