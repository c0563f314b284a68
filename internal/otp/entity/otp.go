package entity

import "time"

// Channel identifies how a code was requested.
type Channel string

const (
	// ChannelAPI marks codes issued directly through the HTTP API.
	ChannelAPI Channel = "api"
	// ChannelSMS marks codes dispatched to a mobile number.
	ChannelSMS Channel = "sms"
)

// Otp is a pending or verified one-time code bound to an owner key.
type Otp struct {
	ID        int64
	OwnerKey  string
	Code      string
	Verified  bool
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the code is past its expiry at the given time.
func (o Otp) Expired(now time.Time) bool {
	return !now.Before(o.ExpiresAt)
}

// Attempt records a single issuance request for rate limiting.
type Attempt struct {
	ID        int64
	ClientKey string
	CreatedAt time.Time
}
