package sms

import (
	"context"
	"log/slog"
)

// Log is a Sender implementation that only logs messages.
//
// Intended for local development and environments without a provisioned
// SMS provider.
type Log struct{}

// NewLog constructs a log-only SMS sender.
func NewLog() *Log {
	return &Log{}
}

// Send logs the message instead of delivering it.
func (l *Log) Send(ctx context.Context, msg Message) error {
	slog.InfoContext(ctx, "sms message (log driver, not delivered)",
		"to", msg.To,
		"from", msg.From,
		"body", msg.Body,
	)
	return nil
}

// Close implements io.Closer for interface compatibility.
func (l *Log) Close() error {
	return nil
}
