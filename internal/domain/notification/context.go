package notification

// UserContext is the per-dispatch-run snapshot of everything the
// orchestrator needs to know about a recipient. It is rebuilt on every
// event or delivery processed, never cached, so profile changes between
// retries are picked up automatically. Empty strings mean "absent".
type UserContext struct {
	Preferences     map[Channel]bool
	QuietHoursStart string
	QuietHoursEnd   string
	Timezone        string
	Email           string
	Phone           string
	FullName        string
}

// Contact is the reduced contact view served to non-dispatch callers.
type Contact struct {
	Email    string
	Phone    string
	FullName string
	Timezone string
}
