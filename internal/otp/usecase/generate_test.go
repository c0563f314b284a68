package usecase

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/snapordereat/otpgate/internal/otp/entity"
	"github.com/snapordereat/otpgate/internal/pkg/goerror"
)

func TestGenerateIssuesCode(t *testing.T) {
	f := newFixture(t, testConfigYAML)

	out, err := f.uc.Generate(context.Background(), GenerateInput{ClientIP: "ip-1"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if out.ID == 0 {
		t.Fatal("expected a code id")
	}
	if out.Rate.Limit != 5 || out.Rate.Remaining != 4 {
		t.Errorf("unexpected rate state: limit=%d remaining=%d", out.Rate.Limit, out.Rate.Remaining)
	}

	otps := f.repo.Otps()
	stored, ok := otps[out.ID]
	if !ok {
		t.Fatal("code not persisted")
	}
	if stored.OwnerKey != "ip-1" {
		t.Errorf("expected owner key ip-1, got %s", stored.OwnerKey)
	}
	if stored.Code != "123456" {
		t.Errorf("unexpected code %s", stored.Code)
	}
	if want := f.clock.Now().Add(5 * time.Minute); !stored.ExpiresAt.Equal(want) {
		t.Errorf("expected expiry %v, got %v", want, stored.ExpiresAt)
	}

	f.waitPublishes(t)
	issued := f.msg.Issued()
	if len(issued) != 1 {
		t.Fatalf("expected 1 issued event, got %d", len(issued))
	}
	if issued[0].OtpID != out.ID || issued[0].Channel != entity.ChannelAPI {
		t.Errorf("unexpected issued event: %+v", issued[0])
	}
}

func TestGenerateSupersedesOnlyUnverifiedCodes(t *testing.T) {
	f := newFixture(t, testConfigYAML)
	now := f.clock.Now()
	f.seedOtp(t, entity.Otp{
		ID:        50,
		OwnerKey:  "ip-1",
		Code:      "999999",
		Verified:  true,
		CreatedAt: now.Add(-time.Minute),
		ExpiresAt: now.Add(4 * time.Minute),
	})

	out, err := f.uc.Generate(context.Background(), GenerateInput{ClientIP: "ip-1"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	otps := f.repo.Otps()
	if len(otps) != 2 {
		t.Fatalf("expected the verified row to survive supersession, got %d rows", len(otps))
	}
	if _, ok := otps[50]; !ok {
		t.Error("verified row must not be removed when a new code is issued")
	}
	if _, ok := otps[out.ID]; !ok {
		t.Error("new code not persisted")
	}
}

func TestGenerateReplacesPendingCode(t *testing.T) {
	f := newFixture(t, testConfigYAML)

	first, err := f.uc.Generate(context.Background(), GenerateInput{ClientIP: "ip-1", ResourceKey: "order-42"})
	if err != nil {
		t.Fatalf("first generate: %v", err)
	}
	second, err := f.uc.Generate(context.Background(), GenerateInput{ClientIP: "ip-1", ResourceKey: "order-42"})
	if err != nil {
		t.Fatalf("second generate: %v", err)
	}

	otps := f.repo.Otps()
	if len(otps) != 1 {
		t.Fatalf("expected exactly one pending code, got %d", len(otps))
	}
	if _, ok := otps[first.ID]; ok {
		t.Error("replaced code still persisted")
	}
	if _, ok := otps[second.ID]; !ok {
		t.Error("fresh code not persisted")
	}
}

func TestGenerateUsesClientKeyWhenNoResourceKey(t *testing.T) {
	f := newFixture(t, testConfigYAML)

	outA, err := f.uc.Generate(context.Background(), GenerateInput{ClientIP: "ip-1"})
	if err != nil {
		t.Fatalf("generate ip-1: %v", err)
	}
	outB, err := f.uc.Generate(context.Background(), GenerateInput{ClientIP: "ip-2"})
	if err != nil {
		t.Fatalf("generate ip-2: %v", err)
	}

	otps := f.repo.Otps()
	if otps[outA.ID].OwnerKey != "ip-1" || otps[outB.ID].OwnerKey != "ip-2" {
		t.Error("expected codes to be keyed by client address")
	}
	if len(otps) != 2 {
		t.Errorf("expected two independent codes, got %d", len(otps))
	}
}

func TestGenerateRateLimitExceeded(t *testing.T) {
	f := newFixture(t, testConfigYAML)

	for i := 0; i < 5; i++ {
		if _, err := f.uc.Generate(context.Background(), GenerateInput{ClientIP: "ip-1"}); err != nil {
			t.Fatalf("generate %d: %v", i+1, err)
		}
	}

	_, err := f.uc.Generate(context.Background(), GenerateInput{ClientIP: "ip-1"})
	if err == nil {
		t.Fatal("expected the sixth request to be rejected")
	}

	var rateErr *RateLimitError
	if !errors.As(err, &rateErr) {
		t.Fatalf("expected RateLimitError, got %T", err)
	}
	if rateErr.Rate().Remaining != 0 {
		t.Errorf("expected no remaining attempts, got %d", rateErr.Rate().Remaining)
	}
	headers := rateErr.Headers()
	if headers["Retry-After"] == "" {
		t.Error("missing Retry-After header")
	}

	var gerr *goerror.Error
	if !errors.As(err, &gerr) {
		t.Fatalf("expected goerror in chain, got %T", err)
	}
	if gerr.StatusCode() != http.StatusTooManyRequests {
		t.Errorf("expected status 429, got %d", gerr.StatusCode())
	}

	// Another requester is unaffected.
	if _, err := f.uc.Generate(context.Background(), GenerateInput{ClientIP: "ip-2"}); err != nil {
		t.Fatalf("generate from second requester: %v", err)
	}
}

func TestGenerateRateLimitWindowSlides(t *testing.T) {
	f := newFixture(t, testConfigYAML)

	for i := 0; i < 5; i++ {
		if _, err := f.uc.Generate(context.Background(), GenerateInput{ClientIP: "ip-1"}); err != nil {
			t.Fatalf("generate %d: %v", i+1, err)
		}
	}
	if _, err := f.uc.Generate(context.Background(), GenerateInput{ClientIP: "ip-1"}); err == nil {
		t.Fatal("expected rejection inside the window")
	}

	f.clock.Advance(31 * time.Second)

	if _, err := f.uc.Generate(context.Background(), GenerateInput{ClientIP: "ip-1"}); err != nil {
		t.Fatalf("expected request after window to pass, got %v", err)
	}
}

func TestGenerateFailsClosedOnLimiterError(t *testing.T) {
	f := newFixture(t, testConfigYAML)
	f.repo.countErr = errors.New("connection refused")

	_, err := f.uc.Generate(context.Background(), GenerateInput{ClientIP: "ip-1"})
	if err == nil {
		t.Fatal("expected request to be denied")
	}

	var gerr *goerror.Error
	if !errors.As(err, &gerr) {
		t.Fatalf("expected goerror, got %T", err)
	}
	if gerr.StatusCode() != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", gerr.StatusCode())
	}
	if len(f.repo.Otps()) != 0 {
		t.Error("no code should be issued when the limiter cannot be consulted")
	}
}

func TestGenerateValidatesInput(t *testing.T) {
	f := newFixture(t, testConfigYAML)

	_, err := f.uc.Generate(context.Background(), GenerateInput{})
	if err == nil {
		t.Fatal("expected validation error")
	}

	var gerr *goerror.Error
	if !errors.As(err, &gerr) {
		t.Fatalf("expected goerror, got %T", err)
	}
	if gerr.StatusCode() != http.StatusUnprocessableEntity {
		t.Errorf("expected status 422, got %d", gerr.StatusCode())
	}
}

func TestGenerateIdentityPolicyIPSession(t *testing.T) {
	const ipSessionYAML = `
modules:
  otp:
    identity_policy: "ip_session"
`
	f := newFixture(t, ipSessionYAML)

	if _, err := f.uc.Generate(context.Background(), GenerateInput{ClientIP: "ip-1", SessionToken: "sess-a"}); err != nil {
		t.Fatalf("generate sess-a: %v", err)
	}
	if _, err := f.uc.Generate(context.Background(), GenerateInput{ClientIP: "ip-1", SessionToken: "sess-b"}); err != nil {
		t.Fatalf("generate sess-b: %v", err)
	}
	if _, err := f.uc.Generate(context.Background(), GenerateInput{ClientIP: "ip-1"}); err != nil {
		t.Fatalf("generate without session: %v", err)
	}

	keys := map[string]int{}
	for _, attempt := range f.repo.Attempts() {
		keys[attempt.ClientKey]++
	}
	for _, want := range []string{"ip-1:sess-a", "ip-1:sess-b", "ip-1"} {
		if keys[want] != 1 {
			t.Errorf("expected one attempt under %q, got %d", want, keys[want])
		}
	}
}
