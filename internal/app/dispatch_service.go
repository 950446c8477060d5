// internal/app/dispatch_service.go
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"notification_dispatcher/internal/domain/notification"
	"notification_dispatcher/internal/infra/audit"
	idb "notification_dispatcher/internal/infra/database"

	"github.com/sirupsen/logrus"
)

const maxAttempts = 3

// retryMinutes indexes retry delays by attempt number; the quiet-hours
// recheck always uses the first entry regardless of prior deferrals.
var retryMinutes = []int{15, 30, 60}

// Summary aggregates one batch dispatch cycle.
type Summary struct {
	EventsProcessed     int `json:"eventsProcessed"`
	DeliveriesAttempted int `json:"deliveriesAttempted"`
	DeliveriesSent      int `json:"deliveriesSent"`
	DeliveriesDeferred  int `json:"deliveriesDeferred"`
	DeliveriesFailed    int `json:"deliveriesFailed"`
	DeliveriesNoop      int `json:"deliveriesNoop"`
}

type cycleCounts struct {
	attempted int
	sent      int
	deferred  int
	failed    int
	noop      int
}

func (s *Summary) add(c cycleCounts) {
	s.DeliveriesAttempted += c.attempted
	s.DeliveriesSent += c.sent
	s.DeliveriesDeferred += c.deferred
	s.DeliveriesFailed += c.failed
	s.DeliveriesNoop += c.noop
}

// ContextLoader resolves a recipient snapshot for an event or delivery.
type ContextLoader interface {
	LoadUserContext(ctx context.Context, userID string) (*notification.UserContext, error)
}

// DispatchService is the delivery orchestrator: one Run is one batch
// dispatch cycle, invoked by the scheduler or the HTTP entry point, never a
// persistent loop. Events and deliveries are processed strictly
// sequentially; concurrent runs are not excluded, so delivery is
// at-least-once and callers are expected to trigger runs from a single
// scheduler.
type DispatchService struct {
	events     notification.EventRepository
	deliveries notification.DeliveryRepository
	templates  notification.TemplateRepository
	contexts   ContextLoader
	transports map[notification.Channel]notification.Transport
	audit      *audit.Logger
	log        *logrus.Logger

	baseURL           string
	eventBatchSize    int
	deliveryBatchSize int

	now func() time.Time
}

func NewDispatchService(
	events notification.EventRepository,
	deliveries notification.DeliveryRepository,
	templates notification.TemplateRepository,
	contexts ContextLoader,
	transports map[notification.Channel]notification.Transport,
	auditLog *audit.Logger,
	log *logrus.Logger,
	baseURL string,
	eventBatchSize int,
	deliveryBatchSize int,
) *DispatchService {
	return &DispatchService{
		events:            events,
		deliveries:        deliveries,
		templates:         templates,
		contexts:          contexts,
		transports:        transports,
		audit:             auditLog,
		log:               log,
		baseURL:           strings.TrimRight(baseURL, "/"),
		eventBatchSize:    eventBatchSize,
		deliveryBatchSize: deliveryBatchSize,
		now:               time.Now,
	}
}

// Run executes one dispatch cycle: the unprocessed-event batch first, then
// the stalled-delivery re-scan. Only the two batch fetches can fail the
// run; every per-row problem is captured and reduced to row state.
func (s *DispatchService) Run(ctx context.Context) (Summary, error) {
	now := s.now().UTC()
	summary := Summary{}

	events, err := s.events.ListUnprocessed(ctx, s.eventBatchSize)
	if err != nil {
		return summary, fmt.Errorf("fetching unprocessed events: %w", err)
	}
	for _, event := range events {
		summary.EventsProcessed++
		summary.add(s.processEvent(ctx, event, now))
	}

	deliveries, err := s.deliveries.ListStalled(ctx, s.deliveryBatchSize)
	if err != nil {
		return summary, fmt.Errorf("fetching stalled deliveries: %w", err)
	}
	for _, delivery := range deliveries {
		if delivery.Status == notification.DeliveryDeferred &&
			delivery.NextRetryAt.Valid && delivery.NextRetryAt.Time.After(now) {
			continue // not yet due
		}
		summary.add(s.processDelivery(ctx, delivery, now))
	}

	s.log.WithFields(logrus.Fields{
		"eventsProcessed":     summary.EventsProcessed,
		"deliveriesAttempted": summary.DeliveriesAttempted,
		"deliveriesSent":      summary.DeliveriesSent,
		"deliveriesDeferred":  summary.DeliveriesDeferred,
		"deliveriesFailed":    summary.DeliveriesFailed,
		"deliveriesNoop":      summary.DeliveriesNoop,
	}).Info("dispatch cycle complete")
	return summary, nil
}

// processEvent expands one event into per-channel deliveries. Any failure
// of the orchestration itself records the message on the event and leaves
// processed_at null, so the whole event is retried on the next run.
func (s *DispatchService) processEvent(ctx context.Context, event *notification.Event, now time.Time) cycleCounts {
	counts := cycleCounts{}
	if err := s.dispatchEvent(ctx, event, now, &counts); err != nil {
		s.audit.CaptureException(err, map[string]any{"scope": "notify:dispatch:event", "eventId": event.ID})
		if updateErr := s.events.SetError(ctx, event.ID, err.Error()); updateErr != nil {
			s.audit.CaptureException(updateErr, map[string]any{"scope": "notify:dispatch:event:error", "eventId": event.ID})
		}
		counts.failed++
	}
	return counts
}

func (s *DispatchService) dispatchEvent(ctx context.Context, event *notification.Event, now time.Time, counts *cycleCounts) error {
	userCtx, err := s.contexts.LoadUserContext(ctx, event.UserID)
	if err != nil {
		return err
	}

	bypassQuiet, _ := event.Payload.Bool("bypass_quiet_hours")
	quiet := !bypassQuiet && notification.InQuietHours(now, userCtx.QuietHoursStart, userCtx.QuietHoursEnd, userCtx.Timezone)

	var overrides []notification.Channel
	if bypassQuiet {
		overrides = event.RequestedChannels
	}
	allowed := notification.AllowedChannels(userCtx.Preferences, event.RequestedChannels, quiet, overrides)

	if len(allowed) == 0 {
		// A user opting out is a deliberate outcome, not a transient failure.
		return s.events.MarkProcessed(ctx, event.ID, now, "No channels allowed")
	}

	for _, channel := range allowed {
		template := s.resolveTemplate(ctx, event.EventKey, channel, event.Locale)
		templateID := ""
		if template != nil {
			templateID = template.ID
		}

		delivery, ensureErr := s.deliveries.Ensure(ctx, event.ID, channel, templateID)
		if ensureErr != nil {
			s.audit.CaptureException(ensureErr, map[string]any{"scope": "notify:delivery:create", "eventId": event.ID, "channel": channel})
			counts.failed++
			counts.attempted++
			continue
		}

		if template == nil {
			s.failMissingTemplate(ctx, event, delivery, now)
			counts.failed++
			counts.attempted++
			continue
		}

		outcome := s.attemptDelivery(ctx, event, delivery, template, userCtx, now)
		counts.attempted += outcome.attempted
		counts.sent += outcome.sent
		counts.deferred += outcome.deferred
		counts.failed += outcome.failed
		counts.noop += outcome.noop
	}

	return s.events.MarkProcessed(ctx, event.ID, now, "")
}

// processDelivery re-attempts a stalled delivery independently of its
// parent event's processed state.
func (s *DispatchService) processDelivery(ctx context.Context, delivery *notification.Delivery, now time.Time) cycleCounts {
	counts := cycleCounts{}

	event, err := s.events.GetByID(ctx, delivery.EventID)
	if err != nil {
		if errors.Is(err, idb.ErrEventNotFound) {
			// An orphan is not retryable.
			delivery.Status = notification.DeliveryFailed
			delivery.Error = sql.NullString{String: "Event missing", Valid: true}
			delivery.NextRetryAt = sql.NullTime{}
			if updateErr := s.deliveries.Update(ctx, delivery); updateErr != nil {
				s.audit.CaptureException(updateErr, map[string]any{"scope": "notify:delivery:orphan", "deliveryId": delivery.ID})
			}
			s.audit.Track("delivery_failed", map[string]any{
				"eventId":    delivery.EventID,
				"deliveryId": delivery.ID,
				"userId":     nil,
				"channel":    delivery.Channel,
				"attempts":   delivery.AttemptCount + 1,
				"error":      "Event missing",
			})
			counts.failed++
			counts.attempted++
			return counts
		}
		s.audit.CaptureException(err, map[string]any{"scope": "notify:delivery:event", "deliveryId": delivery.ID})
		return counts
	}

	template := s.resolveTemplate(ctx, event.EventKey, delivery.Channel, event.Locale)
	if template == nil {
		s.failMissingTemplate(ctx, event, delivery, now)
		counts.failed++
		counts.attempted++
		return counts
	}

	userCtx, err := s.contexts.LoadUserContext(ctx, event.UserID)
	if err != nil {
		s.audit.CaptureException(err, map[string]any{"scope": "notify:delivery:context", "deliveryId": delivery.ID})
		return counts
	}

	outcome := s.attemptDelivery(ctx, event, delivery, template, userCtx, now)
	counts.attempted += outcome.attempted
	counts.sent += outcome.sent
	counts.deferred += outcome.deferred
	counts.failed += outcome.failed
	counts.noop += outcome.noop
	return counts
}

// resolveTemplate looks up the template for (eventKey, channel, locale),
// falling back to "en" when the requested locale has none. Returns nil
// when neither exists or a lookup fails; a missing template is a
// configuration bug handled by the caller, never retried.
func (s *DispatchService) resolveTemplate(ctx context.Context, eventKey string, channel notification.Channel, locale string) *notification.Template {
	if locale == "" {
		locale = "en"
	}
	template, err := s.templates.Find(ctx, eventKey, channel, locale)
	if err == nil {
		return template
	}
	if !errors.Is(err, idb.ErrTemplateNotFound) {
		s.log.WithError(err).WithFields(logrus.Fields{"eventKey": eventKey, "channel": channel, "locale": locale}).Error("template lookup failed")
		return nil
	}
	if locale == "en" {
		return nil
	}

	fallback, err := s.templates.Find(ctx, eventKey, channel, "en")
	if err != nil {
		if !errors.Is(err, idb.ErrTemplateNotFound) {
			s.log.WithError(err).WithFields(logrus.Fields{"eventKey": eventKey, "channel": channel}).Error("template fallback lookup failed")
		}
		return nil
	}
	return fallback
}

func (s *DispatchService) failMissingTemplate(ctx context.Context, event *notification.Event, delivery *notification.Delivery, now time.Time) {
	message := fmt.Sprintf("Template not found for %s/%s", event.EventKey, delivery.Channel)
	delivery.Status = notification.DeliveryFailed
	delivery.Error = sql.NullString{String: message, Valid: true}
	delivery.NextRetryAt = sql.NullTime{}
	delivery.LastAttemptAt = sql.NullTime{Time: now, Valid: true}
	if err := s.deliveries.Update(ctx, delivery); err != nil {
		s.audit.CaptureException(err, map[string]any{"scope": "notify:delivery:template", "deliveryId": delivery.ID})
	}
	s.audit.Track("delivery_failed", map[string]any{
		"eventId":    event.ID,
		"deliveryId": delivery.ID,
		"userId":     event.UserID,
		"channel":    delivery.Channel,
		"attempts":   delivery.AttemptCount + 1,
		"error":      message,
	})
}

// mergePayload builds the rendering context for one attempt: derived
// defaults, then the caller's payload on top, then the name fields. It is
// recomputed per attempt rather than cached on the delivery row.
func (s *DispatchService) mergePayload(event *notification.Event, userCtx *notification.UserContext) notification.Payload {
	payload := event.Payload
	if payload == nil {
		payload = notification.Payload{}
	}

	firstName := payload.String("first_name")
	if firstName == "" {
		firstName = payload.String("firstName")
	}
	if firstName == "" {
		// full_name is free-form text and may be blank or all whitespace.
		if fields := strings.Fields(userCtx.FullName); len(fields) > 0 {
			firstName = fields[0]
		}
	}

	manageURL := s.baseURL + "/settings/notifications"
	merged := notification.Payload{
		"manage_notifications_url": manageURL,
		"unsubscribe_url":          manageURL + "?unsubscribe=1",
	}
	if _, ok := payload["user_email"]; !ok && userCtx.Email != "" {
		merged["user_email"] = userCtx.Email
	}
	if _, ok := payload["user_phone"]; !ok && userCtx.Phone != "" {
		merged["user_phone"] = userCtx.Phone
	}
	for key, value := range payload {
		merged[key] = value
	}
	merged["first_name"] = firstName
	merged["full_name"] = userCtx.FullName
	return merged
}

// attemptDelivery performs a single send attempt and persists the
// resulting delivery state unconditionally. Quiet-hours deferrals do not
// consume an attempt and always recheck in retryMinutes[0]. Exactly one
// audit event is emitted, and only for the terminal outcomes.
func (s *DispatchService) attemptDelivery(
	ctx context.Context,
	event *notification.Event,
	delivery *notification.Delivery,
	template *notification.Template,
	userCtx *notification.UserContext,
	now time.Time,
) cycleCounts {
	if delivery.Status.Terminal() {
		// Event-level retries may revisit settled deliveries; sending again
		// would double-deliver.
		return cycleCounts{}
	}

	payload := s.mergePayload(event, userCtx)
	bypassQuiet, _ := payload.Bool("bypass_quiet_hours")
	quiet := !bypassQuiet && notification.InQuietHours(now, userCtx.QuietHoursStart, userCtx.QuietHoursEnd, userCtx.Timezone)

	if quiet {
		delivery.Status = notification.DeliveryDeferred
		delivery.NextRetryAt = sql.NullTime{Time: now.Add(time.Duration(retryMinutes[0]) * time.Minute), Valid: true}
		if err := s.deliveries.Update(ctx, delivery); err != nil {
			s.audit.CaptureException(err, map[string]any{"scope": "notify:delivery:quiet", "deliveryId": delivery.ID})
		}
		return cycleCounts{deferred: 1}
	}

	var errorMessage string
	noop := false
	metadata := delivery.Metadata.Clone()
	if metadata == nil {
		metadata = notification.Payload{}
	}

	transport, ok := s.transports[delivery.Channel]
	if !ok {
		errorMessage = fmt.Sprintf("No transport for channel %s", delivery.Channel)
	} else {
		switch delivery.Channel {
		case notification.ChannelEmail:
			to := payload.String("user_email")
			if to == "" {
				to = userCtx.Email
			}
			if to == "" {
				errorMessage = "Missing email recipient"
				break
			}
			body := notification.Render(template.Body, payload)
			result := transport.Send(ctx, notification.Message{
				Channel: delivery.Channel,
				To:      to,
				Subject: notification.Render(template.Subject.String, payload),
				Body:    body,
				HTML:    strings.ReplaceAll(body, "\n", "<br />"),
			})
			noop = result.Noop
			if result.OK {
				if result.ID != "" {
					metadata["messageId"] = result.ID
				}
			} else if result.Error != "" {
				errorMessage = result.Error
			} else {
				errorMessage = "Email send failed"
			}
		default:
			to := payload.String("user_phone")
			if to == "" {
				to = userCtx.Phone
			}
			if to == "" {
				errorMessage = "Missing WhatsApp recipient"
				break
			}
			result := transport.Send(ctx, notification.Message{
				Channel:  delivery.Channel,
				To:       to,
				Body:     notification.Render(template.Body, payload),
				MediaURL: payload.String("media_url"),
			})
			noop = result.Noop
			if result.OK {
				if result.ID != "" {
					metadata["messageSid"] = result.ID
				}
			} else if result.Error != "" {
				errorMessage = result.Error
			} else {
				errorMessage = "WhatsApp send failed"
			}
		}
	}

	delivery.AttemptCount++
	attempts := delivery.AttemptCount
	delivery.LastAttemptAt = sql.NullTime{Time: now, Valid: true}
	delivery.Metadata = metadata

	outcome := cycleCounts{attempted: 1}
	switch {
	case errorMessage == "":
		delivery.Status = notification.DeliverySent
		delivery.SentAt = sql.NullTime{Time: now, Valid: true}
		delivery.Error = sql.NullString{}
		delivery.NextRetryAt = sql.NullTime{}
		outcome.sent = 1
		if noop {
			outcome.noop = 1
		}
	case attempts >= maxAttempts:
		delivery.Status = notification.DeliveryFailed
		delivery.Error = sql.NullString{String: errorMessage, Valid: true}
		delivery.NextRetryAt = sql.NullTime{}
		outcome.failed = 1
	default:
		delayIndex := attempts
		if delayIndex > len(retryMinutes) {
			delayIndex = len(retryMinutes)
		}
		delay := time.Duration(retryMinutes[delayIndex-1]) * time.Minute
		delivery.Status = notification.DeliveryDeferred
		delivery.Error = sql.NullString{String: errorMessage, Valid: true}
		delivery.NextRetryAt = sql.NullTime{Time: now.Add(delay), Valid: true}
		outcome.deferred = 1
	}

	if err := s.deliveries.Update(ctx, delivery); err != nil {
		s.audit.CaptureException(err, map[string]any{"scope": "notify:delivery:update", "deliveryId": delivery.ID})
	}

	if outcome.sent == 1 {
		s.audit.Track("delivery_sent", map[string]any{
			"eventId":    event.ID,
			"deliveryId": delivery.ID,
			"userId":     event.UserID,
			"channel":    delivery.Channel,
			"attempts":   attempts,
			"noop":       noop,
		})
	} else if outcome.failed == 1 {
		s.audit.Track("delivery_failed", map[string]any{
			"eventId":    event.ID,
			"deliveryId": delivery.ID,
			"userId":     event.UserID,
			"channel":    delivery.Channel,
			"attempts":   attempts,
			"error":      errorMessage,
		})
	}

	return outcome
}
