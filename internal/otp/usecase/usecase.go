package usecase

import (
	"context"
	"time"

	"github.com/snapordereat/otpgate/internal/otp/entity"
	"github.com/snapordereat/otpgate/internal/pkg/clock"
	"github.com/snapordereat/otpgate/internal/pkg/config"
	"github.com/snapordereat/otpgate/internal/pkg/goroutine"
	"github.com/snapordereat/otpgate/internal/pkg/idempotency"
	"github.com/snapordereat/otpgate/internal/pkg/instrument"
	"github.com/snapordereat/otpgate/internal/pkg/passcode"
	"github.com/snapordereat/otpgate/internal/pkg/sms"
	"github.com/snapordereat/otpgate/internal/pkg/ttlcache"
	"github.com/snapordereat/otpgate/internal/pkg/uid"
	"github.com/snapordereat/otpgate/internal/pkg/validator"
	"go.opentelemetry.io/otel/trace"
)

type OtpIssuedEvent struct {
	OtpID     int64
	OwnerKey  string
	Channel   entity.Channel
	ExpiresAt time.Time
}

type OtpVerifiedEvent struct {
	OtpID    int64
	OwnerKey string
}

type repoMessaging interface {
	PublishOtpIssued(ctx context.Context, msg OtpIssuedEvent) error
	PublishOtpVerified(ctx context.Context, msg OtpVerifiedEvent) error
}

type repoDB interface {
	CreateOtp(ctx context.Context, in entity.Otp) error
	GetOtpByID(ctx context.Context, id int64) (*entity.Otp, error)
	GetOtpByOwnerKey(ctx context.Context, ownerKey string) (*entity.Otp, error)
	MarkOtpVerified(ctx context.Context, id int64) error
	DeleteOtpByID(ctx context.Context, id int64) error
	DeleteOtpByOwnerKey(ctx context.Context, ownerKey string) error

	CreateAttempt(ctx context.Context, in entity.Attempt) error
	CountAttemptsSince(ctx context.Context, clientKey string, since time.Time) (int64, error)
	DeleteAttemptsByClientKey(ctx context.Context, clientKey string) error
}

// payloadCrypter protects codes for the encrypted retrieval channel.
type payloadCrypter interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(payload string) (string, error)
	PublicKeyPEM() string
}

type Usecase struct {
	repoDB        repoDB
	repoMessaging repoMessaging
	idemp         idempotency.Idempotency
	validator     validator.Validator
	cfg           config.Config
	uid           uid.NumberID
	passcode      passcode.Generator
	crypter       payloadCrypter
	sms           sms.Sender
	cache         *ttlcache.Cache[string, entity.Otp]
	clock         clock.Clocker
	ins           instrument.Instrumentation
	goroutine     *goroutine.Manager
}

type Dependency struct {
	RepoDB        repoDB
	RepoMessaging repoMessaging
	Idempotency   idempotency.Idempotency
	Validator     validator.Validator
	Config        config.Config
	UID           uid.NumberID
	Passcode      passcode.Generator
	Crypter       payloadCrypter
	SMS           sms.Sender
	Cache         *ttlcache.Cache[string, entity.Otp]
	Clock         clock.Clocker
	Instrument    instrument.Instrumentation
	Goroutine     *goroutine.Manager
}

func New(dep Dependency) *Usecase {
	return &Usecase{
		repoDB:        dep.RepoDB,
		repoMessaging: dep.RepoMessaging,
		idemp:         dep.Idempotency,
		validator:     dep.Validator,
		cfg:           dep.Config,
		uid:           dep.UID,
		passcode:      dep.Passcode,
		crypter:       dep.Crypter,
		sms:           dep.SMS,
		cache:         dep.Cache,
		clock:         dep.Clock,
		ins:           dep.Instrument,
		goroutine:     dep.Goroutine,
	}
}

func (s *Usecase) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("otp.usecase").Start(ctx, name)
}

func (s *Usecase) codeTTL() time.Duration {
	ttl := s.cfg.GetMinute("modules.otp.ttl_minutes")
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return ttl
}

func (s *Usecase) cacheSet(o entity.Otp) {
	if s.cache == nil {
		return
	}
	if ttl := o.ExpiresAt.Sub(s.clock.Now()); ttl > 0 {
		s.cache.Set(o.OwnerKey, o, ttl)
	}
}

func (s *Usecase) cacheDelete(ownerKey string) {
	if s.cache == nil {
		return
	}
	s.cache.Delete(ownerKey)
}
