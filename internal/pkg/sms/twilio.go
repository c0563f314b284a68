package sms

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	// ErrTwilioCredentialsRequired is returned when AccountSID/AuthToken are missing.
	ErrTwilioCredentialsRequired = errors.New("twilio account sid and auth token are required")
	// ErrTwilioNoRecipient is returned when Message.To is empty.
	ErrTwilioNoRecipient = errors.New("no recipient provided")
	// ErrTwilioNoSender is returned when both Message.From and the configured default From are empty.
	ErrTwilioNoSender = errors.New("no sender provided")
)

const twilioBaseURL = "https://api.twilio.com/2010-04-01"

// Twilio is a Sender implementation backed by the Twilio REST API.
type Twilio struct {
	accountSID  string
	authToken   string
	defaultFrom string
	baseURL     string
	client      *http.Client
}

// TwilioConfig configures the Twilio implementation.
type TwilioConfig struct {
	// AccountSID is the Twilio account identifier.
	AccountSID string
	// AuthToken is the Twilio API auth token.
	AuthToken string
	// From is the default sender when Message.From is empty.
	From string
	// BaseURL overrides the Twilio API base URL, mainly for tests.
	BaseURL string
	// Timeout bounds each API call; defaults to 10 seconds.
	Timeout time.Duration
}

// NewTwilio constructs a Twilio SMS sender.
func NewTwilio(cfg TwilioConfig) (*Twilio, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, ErrTwilioCredentialsRequired
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = twilioBaseURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Twilio{
		accountSID:  cfg.AccountSID,
		authToken:   cfg.AuthToken,
		defaultFrom: cfg.From,
		baseURL:     strings.TrimRight(baseURL, "/"),
		client:      &http.Client{Timeout: timeout},
	}, nil
}

// Send delivers a message through the Twilio Messages endpoint.
func (t *Twilio) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return ErrTwilioNoRecipient
	}

	from := msg.From
	if from == "" {
		from = t.defaultFrom
	}
	if from == "" {
		return ErrTwilioNoSender
	}

	form := url.Values{}
	form.Set("To", msg.To)
	form.Set("From", from)
	form.Set("Body", msg.Body)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", t.baseURL, t.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("sms: build twilio request: %w", err)
	}
	req.SetBasicAuth(t.accountSID, t.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("sms: twilio request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("sms: twilio responded %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return nil
}

// Close implements io.Closer for interface compatibility.
func (t *Twilio) Close() error {
	t.client.CloseIdleConnections()
	return nil
}
