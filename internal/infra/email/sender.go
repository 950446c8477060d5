package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"time"

	"notification_dispatcher/internal/domain/notification"
	"notification_dispatcher/internal/infra/audit"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const dialTimeout = 10 * time.Second

// Config carries the SMTP relay settings. When Host, Port or From is empty
// the sender runs in no-op mode: every Send reports success with Noop set,
// so the pipeline behaves identically in unconfigured environments.
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

type Sender struct {
	cfg   Config
	audit *audit.Logger
	log   *logrus.Logger
}

func NewSender(cfg Config, auditLog *audit.Logger, log *logrus.Logger) *Sender {
	return &Sender{cfg: cfg, audit: auditLog, log: log}
}

func (s *Sender) configured() bool {
	return s.cfg.Host != "" && s.cfg.Port != "" && s.cfg.From != ""
}

func (s *Sender) Send(ctx context.Context, msg notification.Message) notification.TransportResult {
	if !s.configured() {
		s.log.WithField("to", msg.To).Info("SMTP not configured, skipping email send")
		return notification.TransportResult{OK: true, Noop: true}
	}

	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), s.cfg.Host)
	if err := s.send(msg, messageID); err != nil {
		s.audit.CaptureException(err, map[string]any{"scope": "email:send", "to": msg.To})
		return notification.TransportResult{OK: false, Error: err.Error()}
	}
	return notification.TransportResult{OK: true, ID: messageID}
}

func (s *Sender) send(msg notification.Message, messageID string) error {
	body := msg.Body
	contentType := "text/plain; charset=\"utf-8\""
	if msg.HTML != "" {
		body = msg.HTML
		contentType = "text/html; charset=\"utf-8\""
	}

	payload := []byte(
		fmt.Sprintf("From: %s\r\n", s.cfg.From) +
			fmt.Sprintf("To: %s\r\n", msg.To) +
			fmt.Sprintf("Subject: %s\r\n", msg.Subject) +
			fmt.Sprintf("Message-ID: %s\r\n", messageID) +
			"MIME-Version: 1.0\r\n" +
			fmt.Sprintf("Content-Type: %s\r\n", contentType) +
			"\r\n" +
			body,
	)

	serverAddr := s.cfg.Host + ":" + s.cfg.Port

	// Implicit TLS for port 465
	tlsConfig := &tls.Config{ServerName: s.cfg.Host}
	conn, err := tls.DialWithDialer(&net.Dialer{Timeout: dialTimeout}, "tcp", serverAddr, tlsConfig)
	if err != nil {
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		return err
	}
	defer client.Quit()

	if s.cfg.Username != "" {
		auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return err
		}
	}

	if err := client.Mail(s.cfg.From); err != nil {
		return err
	}
	if err := client.Rcpt(msg.To); err != nil {
		return err
	}

	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(payload); err != nil {
		return err
	}
	return w.Close()
}
