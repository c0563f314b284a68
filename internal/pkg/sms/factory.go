package sms

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// DriverTwilio selects the Twilio REST backend.
	DriverTwilio = "twilio"
	// DriverLog selects the log-only backend for local development.
	DriverLog = "log"
)

// ErrUnknownDriver indicates an unsupported SMS driver.
var ErrUnknownDriver = errors.New("sms: unknown driver")

// FactoryOptions groups config for supported SMS backends.
type FactoryOptions struct {
	// Twilio provides configuration for the Twilio driver.
	Twilio TwilioConfig
}

// NewFromDriver constructs a Sender implementation by driver name.
func NewFromDriver(driver string, opts FactoryOptions) (Sender, error) {
	switch strings.TrimSpace(driver) {
	case DriverTwilio:
		return NewTwilio(opts.Twilio)
	case DriverLog:
		return NewLog(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, driver)
	}
}
