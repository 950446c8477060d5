// internal/domain/notification/repository.go
package notification

import (
	"context"
	"time"
)

// EventRepository defines persistence operations for notification events.
type EventRepository interface {
	// Create inserts a new event row, generating its ID. Returns
	// database.ErrDuplicateEvent when the idempotency key collides.
	Create(ctx context.Context, event *Event) error
	GetByID(ctx context.Context, id string) (*Event, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*Event, error)
	// ListUnprocessed returns events with processed_at still null,
	// oldest-created first, capped at limit.
	ListUnprocessed(ctx context.Context, limit int) ([]*Event, error)
	// MarkProcessed settles the event. An empty errMsg clears the error
	// column; a non-empty one records a terminal event-level outcome.
	MarkProcessed(ctx context.Context, id string, processedAt time.Time, errMsg string) error
	// SetError records an orchestration failure while leaving processed_at
	// null so the event is retried on the next run.
	SetError(ctx context.Context, id string, errMsg string) error
}

// DeliveryRepository defines persistence operations for per-channel
// delivery attempts.
type DeliveryRepository interface {
	// Ensure creates the (eventID, channel) row or returns the existing
	// one. A non-empty templateID is stored, updating the existing row in
	// place when it differs; existing status and attempt counters are
	// never touched.
	Ensure(ctx context.Context, eventID string, channel Channel, templateID string) (*Delivery, error)
	Update(ctx context.Context, delivery *Delivery) error
	// ListStalled returns deliveries still pending or deferred,
	// oldest-created first, capped at limit.
	ListStalled(ctx context.Context, limit int) ([]*Delivery, error)
}

// TemplateRepository looks up stored templates. Lookups are exact; locale
// fallback is the caller's concern.
type TemplateRepository interface {
	// Find returns database.ErrTemplateNotFound when no row matches.
	Find(ctx context.Context, templateKey string, channel Channel, locale string) (*Template, error)
}
