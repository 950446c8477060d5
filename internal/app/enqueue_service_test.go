package app

import (
	"context"
	"errors"
	"testing"

	"notification_dispatcher/internal/domain/notification"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEnqueueService(events *fakeEventRepo) *EnqueueService {
	return NewEnqueueService(events, testAudit(), testLogger())
}

func TestEnqueueCreatesEvent(t *testing.T) {
	events := &fakeEventRepo{}
	service := newEnqueueService(events)

	result, err := service.Enqueue(context.Background(), EnqueueInput{
		UserID:   "u1",
		EventKey: "welcome",
		Channels: []string{"email", "whatsapp"},
		Payload:  map[string]any{"first_name": "Sam"},
	})
	require.NoError(t, err)

	assert.True(t, result.OK)
	assert.Equal(t, "event-1", result.ID)

	require.Len(t, events.events, 1)
	stored := events.events[0]
	assert.Equal(t, "en", stored.Locale)
	assert.Equal(t, []notification.Channel{notification.ChannelEmail, notification.ChannelWhatsApp}, stored.RequestedChannels)
	assert.False(t, stored.IdempotencyKey.Valid)
	assert.False(t, stored.ProcessedAt.Valid)
}

func TestEnqueueDefaultsPayload(t *testing.T) {
	events := &fakeEventRepo{}
	service := newEnqueueService(events)

	_, err := service.Enqueue(context.Background(), EnqueueInput{UserID: "u1", EventKey: "welcome"})
	require.NoError(t, err)
	require.Len(t, events.events, 1)
	assert.NotNil(t, events.events[0].Payload)
}

func TestEnqueueDuplicateIdempotencyKey(t *testing.T) {
	events := &fakeEventRepo{}
	service := newEnqueueService(events)

	input := EnqueueInput{UserID: "u1", EventKey: "welcome", IdempotencyKey: "key-1"}
	first, err := service.Enqueue(context.Background(), input)
	require.NoError(t, err)
	require.True(t, first.OK)

	second, err := service.Enqueue(context.Background(), input)
	require.NoError(t, err)

	assert.False(t, second.OK)
	assert.Equal(t, ReasonDuplicate, second.Reason)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, events.events, 1)
}

func TestEnqueueValidation(t *testing.T) {
	service := newEnqueueService(&fakeEventRepo{})

	_, err := service.Enqueue(context.Background(), EnqueueInput{EventKey: "welcome"})
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "UserID", validationErr.Field)

	_, err = service.Enqueue(context.Background(), EnqueueInput{
		UserID:   "u1",
		EventKey: "welcome",
		Channels: []string{"sms"},
	})
	require.ErrorAs(t, err, &validationErr)
}

func TestEnqueuePersistenceErrorReportedInResult(t *testing.T) {
	events := &fakeEventRepo{createErr: errors.New("insert failed")}
	service := newEnqueueService(events)

	result, err := service.Enqueue(context.Background(), EnqueueInput{UserID: "u1", EventKey: "welcome"})
	require.NoError(t, err)

	assert.False(t, result.OK)
	assert.Equal(t, ReasonError, result.Reason)
	assert.Equal(t, "insert failed", result.Message)
}
