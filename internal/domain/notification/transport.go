package notification

import "context"

// Message is a fully rendered, channel-addressed message ready to hand to
// a transport. Subject and HTML are only populated for email; MediaURL only
// for WhatsApp.
type Message struct {
	Channel  Channel
	To       string
	Subject  string
	Body     string
	HTML     string
	MediaURL string
}

// TransportResult is the uniform outcome every transport reports. Noop
// marks an intentionally skipped send (unconfigured or bypassed provider),
// which the pipeline treats as success so unconfigured environments behave
// identically. ID carries the provider's message identifier when one exists.
type TransportResult struct {
	OK    bool
	Noop  bool
	ID    string
	Error string
}

// Transport sends a rendered message over one channel. Implementations
// must not panic and must reduce every failure to a TransportResult; the
// orchestrator never expects an error to escape a send.
type Transport interface {
	Send(ctx context.Context, msg Message) TransportResult
}
