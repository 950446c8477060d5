package whatsapp

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"notification_dispatcher/internal/domain/notification"
	"notification_dispatcher/internal/infra/audit"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestSendUnconfiguredIsNoop(t *testing.T) {
	log := testLogger()
	sender := NewSender(Config{}, audit.New(log), log)

	result := sender.Send(context.Background(), notification.Message{To: "+15551230000", Body: "hi"})

	assert.True(t, result.OK)
	assert.True(t, result.Noop)
	assert.Empty(t, result.ID)
}

func TestSendBypassIsNoop(t *testing.T) {
	log := testLogger()
	sender := NewSender(Config{
		AccountSID: "AC123", AuthToken: "secret", From: "+15550000000", Bypass: true,
	}, audit.New(log), log)

	result := sender.Send(context.Background(), notification.Message{To: "+15551230000", Body: "hi"})

	assert.True(t, result.OK)
	assert.True(t, result.Noop)
}

func TestSendPostsToProvider(t *testing.T) {
	var gotPath, gotTo, gotFrom, gotBody, gotMedia string
	var gotUser, gotPass string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, gotPass, _ = r.BasicAuth()
		require.NoError(t, r.ParseForm())
		gotTo = r.PostFormValue("To")
		gotFrom = r.PostFormValue("From")
		gotBody = r.PostFormValue("Body")
		gotMedia = r.PostFormValue("MediaUrl")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"sid": "SM42"})
	}))
	defer server.Close()

	log := testLogger()
	sender := NewSender(Config{
		AccountSID: "AC123", AuthToken: "secret", From: "+15550000000", APIBase: server.URL,
	}, audit.New(log), log)

	result := sender.Send(context.Background(), notification.Message{
		To:       "+15551230000",
		Body:     "hello",
		MediaURL: "https://cdn.example.com/a.png",
	})

	assert.True(t, result.OK)
	assert.False(t, result.Noop)
	assert.Equal(t, "SM42", result.ID)
	assert.Equal(t, "/Accounts/AC123/Messages.json", gotPath)
	assert.Equal(t, "AC123", gotUser)
	assert.Equal(t, "secret", gotPass)
	assert.Equal(t, "whatsapp:+15551230000", gotTo)
	assert.Equal(t, "whatsapp:+15550000000", gotFrom)
	assert.Equal(t, "hello", gotBody)
	assert.Equal(t, "https://cdn.example.com/a.png", gotMedia)
}

func TestSendProviderRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"message": "invalid recipient"})
	}))
	defer server.Close()

	log := testLogger()
	sender := NewSender(Config{
		AccountSID: "AC123", AuthToken: "secret", From: "+15550000000", APIBase: server.URL,
	}, audit.New(log), log)

	result := sender.Send(context.Background(), notification.Message{To: "bogus", Body: "hi"})

	assert.False(t, result.OK)
	assert.Contains(t, result.Error, "invalid recipient")
}

func TestNormalizeRecipient(t *testing.T) {
	assert.Equal(t, "whatsapp:+1555", normalizeRecipient("+1555"))
	assert.Equal(t, "whatsapp:+1555", normalizeRecipient("whatsapp:+1555"))
}
