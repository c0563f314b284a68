package tests

import (
	"net/http"
	"testing"
)

type verifyData struct {
	Success bool `json:"success"`
}

func TestOtpVerifyWrongCode(t *testing.T) {
	resourceKey := uniqueResourceKey("real-verify")
	issued := generateCode(t, resourceKey)

	status, _, body := doJSON(t, http.MethodPost, "/api/v1/otp/verify",
		map[string]string{"id": issued.ID, "otp_code": "000000"}, nil)
	if status != http.StatusOK {
		errEnv := decodeError(t, body)
		t.Fatalf("verify failed: status=%d message=%q", status, errEnv.Message)
	}

	var data verifyData
	decodeSuccess(t, body, &data)
	if data.Success {
		t.Fatal("expected wrong code to be rejected")
	}
}

func TestOtpVerifyUnknownID(t *testing.T) {
	status, _, body := doJSON(t, http.MethodPost, "/api/v1/otp/verify",
		map[string]string{"id": "987654321012345678", "otp_code": "123456"}, nil)
	if status != http.StatusOK {
		errEnv := decodeError(t, body)
		t.Fatalf("verify failed: status=%d message=%q", status, errEnv.Message)
	}

	var data verifyData
	decodeSuccess(t, body, &data)
	if data.Success {
		t.Fatal("expected verification of an unknown id to fail")
	}
}

func TestOtpVerifyMalformedCode(t *testing.T) {
	status, _, body := doJSON(t, http.MethodPost, "/api/v1/otp/verify",
		map[string]string{"id": "1", "otp_code": "12ab56"}, nil)
	if status != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", status)
	}

	errEnv := decodeError(t, body)
	if errEnv.Message == "" {
		t.Error("missing error message")
	}
}
