package audit

import "github.com/sirupsen/logrus"

// Logger is the best-effort observability sink: discrete audit events for
// operators plus an exception capture hook. Neither call can fail from the
// caller's point of view; audit output must never block a dispatch run.
type Logger struct {
	log *logrus.Logger
}

func New(log *logrus.Logger) *Logger {
	return &Logger{log: log}
}

// Track records a structured audit event such as notification_enqueued,
// delivery_sent or delivery_failed.
func (a *Logger) Track(event string, fields map[string]any) {
	a.log.WithFields(logrus.Fields(fields)).WithField("audit_event", event).Info(event)
}

// CaptureException records an error with its context fields.
func (a *Logger) CaptureException(err error, fields map[string]any) {
	a.log.WithFields(logrus.Fields(fields)).WithError(err).Error("captured exception")
}
