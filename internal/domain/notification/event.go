// internal/domain/notification/event.go
package notification

import (
	"database/sql"
	"time"
)

// Event is one logical notification request. Corresponds to the
// 'notification_events' table. Rows are never deleted; the table doubles as
// an audit log of everything that was ever requested.
type Event struct {
	ID                string
	UserID            string
	EventKey          string
	Locale            string
	Payload           Payload
	RequestedChannels []Channel
	IdempotencyKey    sql.NullString
	ProcessedAt       sql.NullTime
	Error             sql.NullString
	CreatedAt         time.Time
}
