package whatsapp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"notification_dispatcher/internal/domain/notification"
	"notification_dispatcher/internal/infra/audit"

	"github.com/sirupsen/logrus"
)

// Config carries the messaging provider settings. When AccountSID,
// AuthToken or From is empty, or Bypass is set (e.g. for staging), the
// sender runs in no-op mode.
type Config struct {
	AccountSID string
	AuthToken  string
	From       string
	APIBase    string
	Bypass     bool
}

type Sender struct {
	cfg    Config
	client *http.Client
	audit  *audit.Logger
	log    *logrus.Logger
}

func NewSender(cfg Config, auditLog *audit.Logger, log *logrus.Logger) *Sender {
	return &Sender{
		cfg:    cfg,
		client: &http.Client{Timeout: 15 * time.Second},
		audit:  auditLog,
		log:    log,
	}
}

func (s *Sender) configured() bool {
	return s.cfg.AccountSID != "" && s.cfg.AuthToken != "" && s.cfg.From != ""
}

func (s *Sender) Send(ctx context.Context, msg notification.Message) notification.TransportResult {
	if s.cfg.Bypass || !s.configured() {
		s.log.WithField("to", msg.To).Info("WhatsApp provider not configured or bypassed, skipping send")
		return notification.TransportResult{OK: true, Noop: true}
	}

	sid, err := s.send(ctx, msg)
	if err != nil {
		s.audit.CaptureException(err, map[string]any{"scope": "whatsapp:send", "to": msg.To})
		return notification.TransportResult{OK: false, Error: err.Error()}
	}
	return notification.TransportResult{OK: true, ID: sid}
}

func (s *Sender) send(ctx context.Context, msg notification.Message) (string, error) {
	form := url.Values{}
	form.Set("To", normalizeRecipient(msg.To))
	form.Set("From", normalizeRecipient(s.cfg.From))
	form.Set("Body", msg.Body)
	if msg.MediaURL != "" {
		form.Set("MediaUrl", msg.MediaURL)
	}

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", strings.TrimRight(s.cfg.APIBase, "/"), s.cfg.AccountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(s.cfg.AccountSID, s.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var body struct {
		Sid     string `json:"sid"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decoding provider response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		if body.Message != "" {
			return "", fmt.Errorf("provider rejected message: %s", body.Message)
		}
		return "", fmt.Errorf("provider rejected message: status %d", resp.StatusCode)
	}
	return body.Sid, nil
}

// normalizeRecipient prefixes the address with the provider's channel tag
// unless the caller already did.
func normalizeRecipient(to string) string {
	if strings.HasPrefix(to, "whatsapp:") {
		return to
	}
	return "whatsapp:" + to
}
