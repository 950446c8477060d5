package notification

import "database/sql"

// Template is a stored message template keyed by (template_key, channel,
// locale). Subject is only meaningful for email. Read-only to the
// dispatcher.
type Template struct {
	ID          string
	TemplateKey string
	Channel     Channel
	Locale      string
	Subject     sql.NullString
	Body        string
}
