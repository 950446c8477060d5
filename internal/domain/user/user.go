package user

import "database/sql"

// Profile is the slice of the profile row the dispatcher cares about.
// NotificationChannels is the legacy channel list kept for older accounts;
// it is merged with the opt-in row when building a notification context.
type Profile struct {
	UserID               string
	Email                sql.NullString
	Phone                sql.NullString
	FullName             sql.NullString
	Timezone             sql.NullString
	NotificationChannels []string
}

// OptIn is the per-user notification preference row.
type OptIn struct {
	UserID          string
	EmailOptIn      sql.NullBool
	WaOptIn         sql.NullBool
	Channels        []string
	QuietHoursStart sql.NullString
	QuietHoursEnd   sql.NullString
	Timezone        sql.NullString
}
