package inbound

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/snapordereat/otpgate/internal/otp/usecase"
	"github.com/snapordereat/otpgate/internal/pkg/config"
	"github.com/snapordereat/otpgate/internal/pkg/goerror"
	"github.com/snapordereat/otpgate/internal/pkg/instrument"
	"github.com/snapordereat/otpgate/internal/pkg/router"
	"github.com/snapordereat/otpgate/internal/pkg/uid"
)

type fakeUsecase struct {
	generateIn  usecase.GenerateInput
	generateOut *usecase.GenerateOutput
	generateErr error

	generateSMSIn  usecase.GenerateSMSInput
	generateSMSOut *usecase.GenerateSMSOutput
	generateSMSErr error

	verifyIn  usecase.VerifyInput
	verifyOut *usecase.VerifyOutput
	verifyErr error

	retrieveIn  usecase.RetrieveInput
	retrieveOut *usecase.RetrieveOutput
	retrieveErr error
}

func (f *fakeUsecase) Generate(_ context.Context, in usecase.GenerateInput) (*usecase.GenerateOutput, error) {
	f.generateIn = in
	return f.generateOut, f.generateErr
}

func (f *fakeUsecase) GenerateSMS(_ context.Context, in usecase.GenerateSMSInput) (*usecase.GenerateSMSOutput, error) {
	f.generateSMSIn = in
	return f.generateSMSOut, f.generateSMSErr
}

func (f *fakeUsecase) Verify(_ context.Context, in usecase.VerifyInput) (*usecase.VerifyOutput, error) {
	f.verifyIn = in
	return f.verifyOut, f.verifyErr
}

func (f *fakeUsecase) Retrieve(_ context.Context, in usecase.RetrieveInput) (*usecase.RetrieveOutput, error) {
	f.retrieveIn = in
	return f.retrieveOut, f.retrieveErr
}

func newTestRouter(t *testing.T, fake *fakeUsecase) *router.Router {
	t.Helper()

	cfg, err := config.NewViperFromBytes("yaml", []byte("app:\n  name: test\n"))
	if err != nil {
		t.Fatalf("config: %v", err)
	}

	r := router.NewRouter(router.Config{
		Config:     cfg,
		UUID:       uid.NewUUID(),
		Instrument: instrument.NewNoop(),
	})
	RegisterHTTPEndpoint(r, fake)
	return r
}

func serve(t *testing.T, r *router.Router, method, path string, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}

	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "203.0.113.9:51234"
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Message string            `json:"message"`
	Data    json.RawMessage   `json:"data"`
	Error   map[string]string `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (body %s)", err, rec.Body.String())
	}
	return env
}

func TestGenerateEndpoint(t *testing.T) {
	fake := &fakeUsecase{
		generateOut: &usecase.GenerateOutput{
			ID: 123456789,
			Rate: usecase.RateLimit{
				Limit:     5,
				Remaining: 4,
				ResetAt:   time.Date(2026, 3, 15, 10, 0, 30, 0, time.UTC),
			},
		},
	}
	r := newTestRouter(t, fake)

	rec := serve(t, r, http.MethodPost, "/api/v1/otp/generate", `{"resource_key":"order-42"}`, map[string]string{
		"X-Session-Token": "sess-a",
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body %s)", rec.Code, rec.Body.String())
	}
	if fake.generateIn.ClientIP != "203.0.113.9" {
		t.Errorf("unexpected client ip %q", fake.generateIn.ClientIP)
	}
	if fake.generateIn.SessionToken != "sess-a" {
		t.Errorf("unexpected session token %q", fake.generateIn.SessionToken)
	}
	if fake.generateIn.ResourceKey != "order-42" {
		t.Errorf("unexpected resource key %q", fake.generateIn.ResourceKey)
	}

	if got := rec.Header().Get("X-RateLimit-Remaining"); got != "4" {
		t.Errorf("expected X-RateLimit-Remaining 4, got %q", got)
	}
	if got := rec.Header().Get("X-RateLimit-Limit"); got != "5" {
		t.Errorf("expected X-RateLimit-Limit 5, got %q", got)
	}

	env := decodeEnvelope(t, rec)
	var data GenerateResponse
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if data.ID != "123456789" {
		t.Errorf("expected string id 123456789, got %q", data.ID)
	}
	if data.AttemptsLeft != 4 {
		t.Errorf("expected 4 attempts left, got %d", data.AttemptsLeft)
	}
}

func TestGenerateEndpointAcceptsEmptyBody(t *testing.T) {
	fake := &fakeUsecase{
		generateOut: &usecase.GenerateOutput{ID: 1, Rate: usecase.RateLimit{Limit: 5, Remaining: 4}},
	}
	r := newTestRouter(t, fake)

	rec := serve(t, r, http.MethodPost, "/api/v1/otp/generate", "", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for an empty body, got %d (body %s)", rec.Code, rec.Body.String())
	}
	if fake.generateIn.ResourceKey != "" {
		t.Errorf("expected empty resource key, got %q", fake.generateIn.ResourceKey)
	}
}

func TestGenerateEndpointRejectsMalformedBody(t *testing.T) {
	fake := &fakeUsecase{}
	r := newTestRouter(t, fake)

	rec := serve(t, r, http.MethodPost, "/api/v1/otp/generate", `{"resource_key":`, nil)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGenerateSMSEndpoint(t *testing.T) {
	fake := &fakeUsecase{
		generateSMSOut: &usecase.GenerateSMSOutput{ID: 55, Rate: usecase.RateLimit{Limit: 5, Remaining: 3}},
	}
	r := newTestRouter(t, fake)

	rec := serve(t, r, http.MethodPost, "/api/v1/otp/generate/sms", `{"mobile_num":"+628123456789"}`, map[string]string{
		"Idempotency-Key": "idem-1",
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body %s)", rec.Code, rec.Body.String())
	}
	if fake.generateSMSIn.MobileNum != "+628123456789" {
		t.Errorf("unexpected mobile number %q", fake.generateSMSIn.MobileNum)
	}
	if fake.generateSMSIn.IdempotencyKey != "idem-1" {
		t.Errorf("unexpected idempotency key %q", fake.generateSMSIn.IdempotencyKey)
	}
}

func TestVerifyEndpoint(t *testing.T) {
	fake := &fakeUsecase{verifyOut: &usecase.VerifyOutput{Success: true}}
	r := newTestRouter(t, fake)

	rec := serve(t, r, http.MethodPost, "/api/v1/otp/verify", `{"id":"123456789","otp_code":"654321"}`, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body %s)", rec.Code, rec.Body.String())
	}
	if fake.verifyIn.ID != 123456789 {
		t.Errorf("expected parsed id 123456789, got %d", fake.verifyIn.ID)
	}
	if fake.verifyIn.OtpCode != "654321" {
		t.Errorf("unexpected code %q", fake.verifyIn.OtpCode)
	}

	env := decodeEnvelope(t, rec)
	var data VerifyResponse
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if !data.Success {
		t.Error("expected success true")
	}
}

func TestVerifyEndpointNonNumericID(t *testing.T) {
	fake := &fakeUsecase{}
	r := newTestRouter(t, fake)

	rec := serve(t, r, http.MethodPost, "/api/v1/otp/verify", `{"id":"not-a-number","otp_code":"654321"}`, nil)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d (body %s)", rec.Code, rec.Body.String())
	}

	env := decodeEnvelope(t, rec)
	if env.Error["id"] == "" {
		t.Errorf("expected a field error for id, got %v", env.Error)
	}
}

func TestRetrieveEndpoint(t *testing.T) {
	fake := &fakeUsecase{
		retrieveOut: &usecase.RetrieveOutput{
			ID:            88,
			EncryptedCode: "aXY=:dGFn:Y2lwaGVy",
			PublicKey:     "-----BEGIN RSA PUBLIC KEY-----\nMAo=\n-----END RSA PUBLIC KEY-----\n",
		},
	}
	r := newTestRouter(t, fake)

	rec := serve(t, r, http.MethodPost, "/api/v1/otp/retrieve",
		`{"client_secret":"abcDEF12345678","client_key":"ABCdef87654321","resource_key":"order-42"}`, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body %s)", rec.Code, rec.Body.String())
	}
	if fake.retrieveIn.ResourceKey != "order-42" {
		t.Errorf("unexpected resource key %q", fake.retrieveIn.ResourceKey)
	}

	env := decodeEnvelope(t, rec)
	var data RetrieveResponse
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if data.EncryptedOtp != "aXY=:dGFn:Y2lwaGVy" {
		t.Errorf("unexpected encrypted otp %q", data.EncryptedOtp)
	}
	if data.ID != "88" {
		t.Errorf("unexpected id %q", data.ID)
	}
}

func TestHealthEndpoint(t *testing.T) {
	r := newTestRouter(t, &fakeUsecase{})

	rec := serve(t, r, http.MethodGet, "/health", "", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestEndpointErrorMapping(t *testing.T) {
	fake := &fakeUsecase{
		retrieveErr: goerror.NewBusiness("Invalid client credentials", goerror.CodeUnauthorized),
	}
	r := newTestRouter(t, fake)

	rec := serve(t, r, http.MethodPost, "/api/v1/otp/retrieve",
		`{"client_secret":"wrongSECRET111","client_key":"wrongKEY222222","resource_key":"order-42"}`, nil)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (body %s)", rec.Code, rec.Body.String())
	}

	env := decodeEnvelope(t, rec)
	if env.Message != "Invalid client credentials" {
		t.Errorf("unexpected message %q", env.Message)
	}
}
