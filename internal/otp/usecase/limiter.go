package usecase

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/snapordereat/otpgate/internal/otp/entity"
	"github.com/snapordereat/otpgate/internal/pkg/goerror"
)

// RateLimit describes the sliding-window state after a check.
type RateLimit struct {
	// Limit is the maximum number of requests inside the window.
	Limit int
	// Remaining is how many requests are left before the limit is hit.
	Remaining int
	// ResetAt is when the oldest counted attempt leaves the window.
	ResetAt time.Time
}

// Headers renders the rate-limit state as standard response headers.
func (r RateLimit) Headers() map[string]string {
	return map[string]string{
		"X-RateLimit-Limit":     strconv.Itoa(r.Limit),
		"X-RateLimit-Remaining": strconv.Itoa(r.Remaining),
		"X-RateLimit-Reset":     strconv.FormatInt(r.ResetAt.Unix(), 10),
	}
}

// RateLimitError is returned when a requester exhausts the sliding window.
// It carries the limiter state so transports can expose it as headers.
type RateLimitError struct {
	err        error
	rate       RateLimit
	retryAfter time.Duration
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	return e.err.Error()
}

// Unwrap returns the underlying business error.
func (e *RateLimitError) Unwrap() error {
	return e.err
}

// Rate returns the limiter state at rejection time.
func (e *RateLimitError) Rate() RateLimit {
	return e.rate
}

// Headers renders the limiter state plus a Retry-After hint.
func (e *RateLimitError) Headers() map[string]string {
	headers := e.rate.Headers()
	retryAfter := int64(e.retryAfter / time.Second)
	if retryAfter < 1 {
		retryAfter = 1
	}
	headers["Retry-After"] = strconv.FormatInt(retryAfter, 10)
	return headers
}

func (s *Usecase) rateLimitWindow() time.Duration {
	window := s.cfg.GetSecond("modules.otp.rate_limit_window_seconds")
	if window <= 0 {
		window = 30 * time.Second
	}
	return window
}

func (s *Usecase) rateLimitMax() int {
	maxAttempts := s.cfg.GetInt("modules.otp.rate_limit_max_attempts")
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return maxAttempts
}

// checkAndRecord counts the requester's attempts inside the sliding window and
// records this one when still allowed.
//
// The count and insert are not atomic; concurrent requests may briefly exceed
// the limit. That race is accepted in favor of keeping the hot path to two
// cheap statements. Persistence failures deny the request.
func (s *Usecase) checkAndRecord(ctx context.Context, clientKey string) (RateLimit, error) {
	window := s.rateLimitWindow()
	maxAttempts := s.rateLimitMax()
	now := s.clock.Now()

	count, err := s.repoDB.CountAttemptsSince(ctx, clientKey, now.Add(-window))
	if err != nil {
		slog.ErrorContext(ctx, "failed to count rate limit attempts", "client_key", clientKey, "error", err)
		return RateLimit{}, goerror.NewServer(err)
	}

	if count >= int64(maxAttempts) {
		rate := RateLimit{
			Limit:     maxAttempts,
			Remaining: 0,
			ResetAt:   now.Add(window),
		}
		return rate, &RateLimitError{
			err:        goerror.NewBusiness("Too many requests, please try again later", goerror.CodeTooManyRequest),
			rate:       rate,
			retryAfter: window,
		}
	}

	if err := s.repoDB.CreateAttempt(ctx, entity.Attempt{
		ID:        s.uid.Generate(),
		ClientKey: clientKey,
		CreatedAt: now,
	}); err != nil {
		slog.ErrorContext(ctx, "failed to record rate limit attempt", "client_key", clientKey, "error", err)
		return RateLimit{}, goerror.NewServer(err)
	}

	return RateLimit{
		Limit:     maxAttempts,
		Remaining: maxAttempts - int(count) - 1,
		ResetAt:   now.Add(window),
	}, nil
}
