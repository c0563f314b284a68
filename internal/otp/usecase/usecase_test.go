package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/snapordereat/otpgate/internal/otp/entity"
	"github.com/snapordereat/otpgate/internal/pkg/config"
	"github.com/snapordereat/otpgate/internal/pkg/goerror"
	"github.com/snapordereat/otpgate/internal/pkg/goroutine"
	"github.com/snapordereat/otpgate/internal/pkg/idempotency"
	"github.com/snapordereat/otpgate/internal/pkg/instrument"
	"github.com/snapordereat/otpgate/internal/pkg/sms"
	"github.com/snapordereat/otpgate/internal/pkg/ttlcache"
	"github.com/snapordereat/otpgate/internal/pkg/validator"
)

const testConfigYAML = `
modules:
  otp:
    enabled: true
    code_length: 6
    ttl_minutes: 5
    identity_policy: "ip"
    rate_limit_window_seconds: 30
    rate_limit_max_attempts: 5
    retrieval:
      client_secret: "abcDEF12345678"
      client_key: "ABCdef87654321"
`

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeUID struct {
	mu   sync.Mutex
	next int64
}

func (u *fakeUID) Generate() int64 {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.next++
	return u.next
}

type fakePasscode struct {
	code string
	err  error
}

func (p *fakePasscode) Generate() (string, error) {
	if p.err != nil {
		return "", p.err
	}
	return p.code, nil
}

type fakeCrypter struct {
	err error
}

func (c *fakeCrypter) Encrypt(plaintext string) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	return "enc(" + plaintext + ")", nil
}

func (c *fakeCrypter) Decrypt(payload string) (string, error) {
	return "", nil
}

func (c *fakeCrypter) PublicKeyPEM() string {
	return "-----BEGIN RSA PUBLIC KEY-----\ntest\n-----END RSA PUBLIC KEY-----\n"
}

type fakeSMS struct {
	mu   sync.Mutex
	sent []sms.Message
	err  error
}

func (s *fakeSMS) Send(_ context.Context, msg sms.Message) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return nil
}

func (s *fakeSMS) Close() error { return nil }

func (s *fakeSMS) Sent() []sms.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sms.Message(nil), s.sent...)
}

type fakeMessaging struct {
	mu       sync.Mutex
	issued   []OtpIssuedEvent
	verified []OtpVerifiedEvent
}

func (m *fakeMessaging) PublishOtpIssued(_ context.Context, msg OtpIssuedEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.issued = append(m.issued, msg)
	return nil
}

func (m *fakeMessaging) PublishOtpVerified(_ context.Context, msg OtpVerifiedEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verified = append(m.verified, msg)
	return nil
}

func (m *fakeMessaging) Issued() []OtpIssuedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]OtpIssuedEvent(nil), m.issued...)
}

func (m *fakeMessaging) Verified() []OtpVerifiedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]OtpVerifiedEvent(nil), m.verified...)
}

type fakeIdempotency struct {
	execErr error
}

func (f *fakeIdempotency) Acquire(context.Context, string, time.Duration) (idempotency.State, error) {
	return idempotency.StateNone, nil
}

func (f *fakeIdempotency) MarkCompleted(context.Context, string, time.Duration) error { return nil }

func (f *fakeIdempotency) MarkFailed(context.Context, string, time.Duration) error { return nil }

func (f *fakeIdempotency) Exec(ctx context.Context, _ string, fn func(context.Context) error, _ ...idempotency.Option) error {
	if f.execErr != nil {
		return f.execErr
	}
	return fn(ctx)
}

type fakeRepoDB struct {
	mu       sync.Mutex
	otps     map[int64]entity.Otp
	attempts []entity.Attempt

	createOtpErr      error
	getOtpErr         error
	deleteOtpErr      error
	markVerifiedErr   error
	countErr          error
	createAttemptErr  error
	deleteAttemptsErr error
}

func newFakeRepoDB() *fakeRepoDB {
	return &fakeRepoDB{otps: map[int64]entity.Otp{}}
}

func (r *fakeRepoDB) CreateOtp(_ context.Context, in entity.Otp) error {
	if r.createOtpErr != nil {
		return r.createOtpErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.otps[in.ID] = in
	return nil
}

func (r *fakeRepoDB) GetOtpByID(_ context.Context, id int64) (*entity.Otp, error) {
	if r.getOtpErr != nil {
		return nil, r.getOtpErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	otp, ok := r.otps[id]
	if !ok {
		return nil, notFoundErr()
	}
	return &otp, nil
}

func (r *fakeRepoDB) GetOtpByOwnerKey(_ context.Context, ownerKey string) (*entity.Otp, error) {
	if r.getOtpErr != nil {
		return nil, r.getOtpErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *entity.Otp
	for id := range r.otps {
		otp := r.otps[id]
		if otp.OwnerKey != ownerKey {
			continue
		}
		if latest == nil || otp.CreatedAt.After(latest.CreatedAt) {
			latest = &otp
		}
	}
	if latest == nil {
		return nil, notFoundErr()
	}
	return latest, nil
}

func (r *fakeRepoDB) MarkOtpVerified(_ context.Context, id int64) error {
	if r.markVerifiedErr != nil {
		return r.markVerifiedErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	otp, ok := r.otps[id]
	if !ok {
		return notFoundErr()
	}
	otp.Verified = true
	r.otps[id] = otp
	return nil
}

func (r *fakeRepoDB) DeleteOtpByID(_ context.Context, id int64) error {
	if r.deleteOtpErr != nil {
		return r.deleteOtpErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.otps, id)
	return nil
}

func (r *fakeRepoDB) DeleteOtpByOwnerKey(_ context.Context, ownerKey string) error {
	if r.deleteOtpErr != nil {
		return r.deleteOtpErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, otp := range r.otps {
		if otp.OwnerKey == ownerKey && !otp.Verified {
			delete(r.otps, id)
		}
	}
	return nil
}

func (r *fakeRepoDB) CreateAttempt(_ context.Context, in entity.Attempt) error {
	if r.createAttemptErr != nil {
		return r.createAttemptErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, in)
	return nil
}

func (r *fakeRepoDB) CountAttemptsSince(_ context.Context, clientKey string, since time.Time) (int64, error) {
	if r.countErr != nil {
		return 0, r.countErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, attempt := range r.attempts {
		if attempt.ClientKey == clientKey && !attempt.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (r *fakeRepoDB) DeleteAttemptsByClientKey(_ context.Context, clientKey string) error {
	if r.deleteAttemptsErr != nil {
		return r.deleteAttemptsErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.attempts[:0]
	for _, attempt := range r.attempts {
		if attempt.ClientKey != clientKey {
			kept = append(kept, attempt)
		}
	}
	r.attempts = kept
	return nil
}

func (r *fakeRepoDB) Otps() map[int64]entity.Otp {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[int64]entity.Otp, len(r.otps))
	for id, otp := range r.otps {
		out[id] = otp
	}
	return out
}

func (r *fakeRepoDB) Attempts() []entity.Attempt {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]entity.Attempt(nil), r.attempts...)
}

func notFoundErr() error {
	return fmt.Errorf("fake repo: %w", goerror.ErrNotFound)
}

type fixture struct {
	uc      *Usecase
	repo    *fakeRepoDB
	msg     *fakeMessaging
	sms     *fakeSMS
	idemp   *fakeIdempotency
	clock   *fakeClock
	cache   *ttlcache.Cache[string, entity.Otp]
	manager *goroutine.Manager
}

func newFixture(t *testing.T, configYAML string) *fixture {
	t.Helper()

	cfg, err := config.NewViperFromBytes("yaml", []byte(configYAML))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	t.Cleanup(func() { cfg.Close() })

	v10, err := validator.NewV10Validator()
	if err != nil {
		t.Fatalf("init validator: %v", err)
	}

	clk := &fakeClock{now: time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)}
	cache := ttlcache.New[string, entity.Otp](clk, time.Minute)
	t.Cleanup(func() { cache.Close() })

	manager := goroutine.NewManager(4)

	f := &fixture{
		repo:    newFakeRepoDB(),
		msg:     &fakeMessaging{},
		sms:     &fakeSMS{},
		idemp:   &fakeIdempotency{},
		clock:   clk,
		cache:   cache,
		manager: manager,
	}

	f.uc = New(Dependency{
		RepoDB:        f.repo,
		RepoMessaging: f.msg,
		Idempotency:   f.idemp,
		Validator:     v10,
		Config:        cfg,
		UID:           &fakeUID{},
		Passcode:      &fakePasscode{code: "123456"},
		Crypter:       &fakeCrypter{},
		SMS:           f.sms,
		Cache:         cache,
		Clock:         clk,
		Instrument:    instrument.NewNoop(),
		Goroutine:     manager,
	})

	return f
}

// waitPublishes flushes the async event publishes before asserting on them.
func (f *fixture) waitPublishes(t *testing.T) {
	t.Helper()
	if err := f.manager.Wait(); err != nil {
		t.Fatalf("wait goroutines: %v", err)
	}
}
