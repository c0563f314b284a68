package sms

import (
	"context"
	"io"
)

// Message represents a text message payload.
type Message struct {
	// To is the recipient phone number in E.164 form.
	To string
	// From is an optional explicit sender; fallback depends on implementation.
	From string
	// Body is the message text.
	Body string
}

// Sender abstracts an SMS provider (Twilio, log-only, etc).
type Sender interface {
	io.Closer
	// Send dispatches the given message using the underlying provider.
	Send(ctx context.Context, msg Message) error
}
