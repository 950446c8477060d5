// internal/domain/notification/delivery.go
package notification

import (
	"database/sql"
	"time"
)

// DeliveryStatus is the state of a single (event, channel) delivery.
type DeliveryStatus string

const (
	DeliveryPending  DeliveryStatus = "pending"
	DeliverySent     DeliveryStatus = "sent"
	DeliveryDeferred DeliveryStatus = "deferred"
	DeliveryFailed   DeliveryStatus = "failed"
)

// Terminal reports whether the status permits no further transitions.
func (s DeliveryStatus) Terminal() bool {
	return s == DeliverySent || s == DeliveryFailed
}

// Delivery is the unit of retry: one row per (event, channel) pair,
// unique on that pair. Corresponds to the 'notification_deliveries' table.
type Delivery struct {
	ID            string
	EventID       string
	Channel       Channel
	TemplateID    sql.NullString
	Status        DeliveryStatus
	AttemptCount  int
	LastAttemptAt sql.NullTime
	SentAt        sql.NullTime
	NextRetryAt   sql.NullTime
	Error         sql.NullString
	Metadata      Payload
	CreatedAt     time.Time
}
