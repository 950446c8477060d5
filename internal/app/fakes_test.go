package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"time"

	"notification_dispatcher/internal/domain/notification"
	"notification_dispatcher/internal/domain/user"
	"notification_dispatcher/internal/infra/audit"
	idb "notification_dispatcher/internal/infra/database"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func testAudit() *audit.Logger {
	return audit.New(testLogger())
}

type fakeEventRepo struct {
	seq       int
	events    []*notification.Event
	createErr error
}

func (r *fakeEventRepo) Create(_ context.Context, event *notification.Event) error {
	if r.createErr != nil {
		return r.createErr
	}
	if event.IdempotencyKey.Valid {
		for _, existing := range r.events {
			if existing.IdempotencyKey.Valid && existing.IdempotencyKey.String == event.IdempotencyKey.String {
				return idb.ErrDuplicateEvent
			}
		}
	}
	r.seq++
	event.ID = fmt.Sprintf("event-%d", r.seq)
	event.CreatedAt = time.Now()
	r.events = append(r.events, event)
	return nil
}

func (r *fakeEventRepo) GetByID(_ context.Context, id string) (*notification.Event, error) {
	for _, event := range r.events {
		if event.ID == id {
			return event, nil
		}
	}
	return nil, idb.ErrEventNotFound
}

func (r *fakeEventRepo) GetByIdempotencyKey(_ context.Context, key string) (*notification.Event, error) {
	for _, event := range r.events {
		if event.IdempotencyKey.Valid && event.IdempotencyKey.String == key {
			return event, nil
		}
	}
	return nil, idb.ErrEventNotFound
}

func (r *fakeEventRepo) ListUnprocessed(_ context.Context, limit int) ([]*notification.Event, error) {
	unprocessed := make([]*notification.Event, 0)
	for _, event := range r.events {
		if event.ProcessedAt.Valid {
			continue
		}
		unprocessed = append(unprocessed, event)
		if len(unprocessed) >= limit {
			break
		}
	}
	return unprocessed, nil
}

func (r *fakeEventRepo) MarkProcessed(ctx context.Context, id string, processedAt time.Time, errMsg string) error {
	event, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	event.ProcessedAt = sql.NullTime{Time: processedAt, Valid: true}
	event.Error = sql.NullString{String: errMsg, Valid: errMsg != ""}
	return nil
}

func (r *fakeEventRepo) SetError(ctx context.Context, id string, errMsg string) error {
	event, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	event.Error = sql.NullString{String: errMsg, Valid: true}
	return nil
}

type fakeDeliveryRepo struct {
	seq        int
	deliveries []*notification.Delivery
}

func (r *fakeDeliveryRepo) Ensure(_ context.Context, eventID string, channel notification.Channel, templateID string) (*notification.Delivery, error) {
	for _, delivery := range r.deliveries {
		if delivery.EventID == eventID && delivery.Channel == channel {
			if templateID != "" && delivery.TemplateID.String != templateID {
				delivery.TemplateID = sql.NullString{String: templateID, Valid: true}
			}
			return delivery, nil
		}
	}
	r.seq++
	delivery := &notification.Delivery{
		ID:         fmt.Sprintf("delivery-%d", r.seq),
		EventID:    eventID,
		Channel:    channel,
		TemplateID: sql.NullString{String: templateID, Valid: templateID != ""},
		Status:     notification.DeliveryPending,
		Metadata:   notification.Payload{},
		CreatedAt:  time.Now(),
	}
	r.deliveries = append(r.deliveries, delivery)
	return delivery, nil
}

func (r *fakeDeliveryRepo) Update(_ context.Context, delivery *notification.Delivery) error {
	for i, existing := range r.deliveries {
		if existing.ID == delivery.ID {
			r.deliveries[i] = delivery
			return nil
		}
	}
	return idb.ErrDeliveryNotFound
}

func (r *fakeDeliveryRepo) ListStalled(_ context.Context, limit int) ([]*notification.Delivery, error) {
	stalled := make([]*notification.Delivery, 0)
	for _, delivery := range r.deliveries {
		if delivery.Status.Terminal() {
			continue
		}
		stalled = append(stalled, delivery)
		if len(stalled) >= limit {
			break
		}
	}
	return stalled, nil
}

func (r *fakeDeliveryRepo) find(eventID string, channel notification.Channel) *notification.Delivery {
	for _, delivery := range r.deliveries {
		if delivery.EventID == eventID && delivery.Channel == channel {
			return delivery
		}
	}
	return nil
}

type fakeTemplateRepo struct {
	templates []*notification.Template
}

func (r *fakeTemplateRepo) Find(_ context.Context, templateKey string, channel notification.Channel, locale string) (*notification.Template, error) {
	for _, template := range r.templates {
		if template.TemplateKey == templateKey && template.Channel == channel && template.Locale == locale {
			return template, nil
		}
	}
	return nil, idb.ErrTemplateNotFound
}

type fakeUserRepo struct {
	profiles   map[string]*user.Profile
	optIns     map[string]*user.OptIn
	authEmails map[string]string
	profileErr error
}

func (r *fakeUserRepo) GetProfile(_ context.Context, userID string) (*user.Profile, error) {
	if r.profileErr != nil {
		return nil, r.profileErr
	}
	if profile, ok := r.profiles[userID]; ok {
		return profile, nil
	}
	return nil, idb.ErrProfileNotFound
}

func (r *fakeUserRepo) GetOptIn(_ context.Context, userID string) (*user.OptIn, error) {
	if optIn, ok := r.optIns[userID]; ok {
		return optIn, nil
	}
	return nil, idb.ErrOptInNotFound
}

func (r *fakeUserRepo) GetAuthEmail(_ context.Context, userID string) (string, error) {
	if email, ok := r.authEmails[userID]; ok {
		return email, nil
	}
	return "", idb.ErrAuthUserNotFound
}

type fakeTransport struct {
	result notification.TransportResult
	sent   []notification.Message
}

func (t *fakeTransport) Send(_ context.Context, msg notification.Message) notification.TransportResult {
	t.sent = append(t.sent, msg)
	return t.result
}
