package inbound

import (
	"strconv"

	"github.com/snapordereat/otpgate/internal/otp/usecase"
	"github.com/snapordereat/otpgate/internal/pkg/goerror"
	"github.com/snapordereat/otpgate/internal/pkg/router"
)

const (
	headerSessionToken   = "X-Session-Token"
	headerIdempotencyKey = "Idempotency-Key"
)

// HTTPEndpoint exposes HTTP handlers for one-time code workflows.
type HTTPEndpoint struct {
	uc uc
}

// Generate issues a one-time code bound to the requester.
// @Summary Generate one-time code
// @Description Issues a fresh 6-digit code for the requester, replacing any pending code for the same owner. Rate limited per requester identity.
// @Tags OTP, Issuance
// @Accept json
// @Produce json
// @Param X-Session-Token header string false "Session token, used when the identity policy is ip_session"
// @Param request body GenerateRequest false "Generate payload"
// @Success 200 {object} router.successResponse{data=GenerateResponse} "Issued code identifier"
// @Failure 422 {object} router.errorResponse "Validation error"
// @Failure 429 {object} router.errorResponse "Too many requests"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/otp/generate [post]
func (h *HTTPEndpoint) Generate(r *router.Request) (any, error) {
	var req GenerateRequest
	if r.ContentLength != 0 {
		if err := r.DecodeBody(&req); err != nil {
			return nil, err
		}
	}

	resp, err := h.uc.Generate(r.Context(), usecase.GenerateInput{
		ClientIP:     r.ClientIP(),
		SessionToken: r.GetHeader(headerSessionToken),
		ResourceKey:  req.ResourceKey,
	})
	if err != nil {
		return nil, err
	}

	return GenerateResponse{
		ID:           formatID(resp.ID),
		AttemptsLeft: resp.Rate.Remaining,
		headers:      resp.Rate.Headers(),
	}, nil
}

// GenerateSMS issues a one-time code and delivers it by text message.
// @Summary Generate one-time code via SMS
// @Description Issues a fresh 6-digit code bound to the mobile number and sends it by SMS. Delivery failure rolls the code back. Rate limited per requester identity.
// @Tags OTP, Issuance
// @Accept json
// @Produce json
// @Param X-Session-Token header string false "Session token, used when the identity policy is ip_session"
// @Param Idempotency-Key header string false "Idempotency key to dedupe retried sends"
// @Param request body GenerateSMSRequest true "Generate SMS payload"
// @Success 200 {object} router.successResponse{data=GenerateSMSResponse} "Issued code identifier"
// @Failure 409 {object} router.errorResponse "Duplicate idempotency key"
// @Failure 422 {object} router.errorResponse "Validation error"
// @Failure 429 {object} router.errorResponse "Too many requests"
// @Failure 500 {object} router.errorResponse "Delivery failure"
// @Router /api/v1/otp/generate/sms [post]
func (h *HTTPEndpoint) GenerateSMS(r *router.Request) (any, error) {
	var req GenerateSMSRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.GenerateSMS(r.Context(), usecase.GenerateSMSInput{
		MobileNum:      req.MobileNum,
		ClientIP:       r.ClientIP(),
		SessionToken:   r.GetHeader(headerSessionToken),
		IdempotencyKey: r.GetHeader(headerIdempotencyKey),
	})
	if err != nil {
		return nil, err
	}

	return GenerateSMSResponse{
		ID:           formatID(resp.ID),
		AttemptsLeft: resp.Rate.Remaining,
		headers:      resp.Rate.Headers(),
	}, nil
}

// Verify checks a submitted code and consumes it on success.
// @Summary Verify one-time code
// @Description Compares the submitted code against the stored one. All negative outcomes produce success=false with HTTP 200 so callers cannot probe which check failed.
// @Tags OTP, Consumption
// @Accept json
// @Produce json
// @Param X-Session-Token header string false "Session token, used when the identity policy is ip_session"
// @Param request body VerifyRequest true "Verify payload"
// @Success 200 {object} router.successResponse{data=VerifyResponse} "Verification result"
// @Failure 422 {object} router.errorResponse "Validation error"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/otp/verify [post]
func (h *HTTPEndpoint) Verify(r *router.Request) (any, error) {
	var req VerifyRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	id, err := strconv.ParseInt(req.ID, 10, 64)
	if err != nil {
		return nil, goerror.NewInvalidInput(nil, "id", "must be a numeric identifier")
	}

	resp, err := h.uc.Verify(r.Context(), usecase.VerifyInput{
		ID:           id,
		OtpCode:      req.OtpCode,
		ClientIP:     r.ClientIP(),
		SessionToken: r.GetHeader(headerSessionToken),
	})
	if err != nil {
		return nil, err
	}

	return VerifyResponse{Success: resp.Success}, nil
}

// Retrieve returns the pending code for a resource, encrypted for the caller.
// @Summary Retrieve encrypted one-time code
// @Description Returns the pending code for a resource key, encrypted with the two-layer scheme, for trusted server-to-server callers. Read only.
// @Tags OTP, Retrieval
// @Accept json
// @Produce json
// @Param request body RetrieveRequest true "Retrieve payload"
// @Success 200 {object} router.successResponse{data=RetrieveResponse} "Encrypted code and public key"
// @Failure 401 {object} router.errorResponse "Invalid client credentials"
// @Failure 404 {object} router.errorResponse "No pending code"
// @Failure 422 {object} router.errorResponse "Validation error"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/otp/retrieve [post]
func (h *HTTPEndpoint) Retrieve(r *router.Request) (any, error) {
	var req RetrieveRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.Retrieve(r.Context(), usecase.RetrieveInput{
		ClientSecret: req.ClientSecret,
		ClientKey:    req.ClientKey,
		ResourceKey:  req.ResourceKey,
	})
	if err != nil {
		return nil, err
	}

	return RetrieveResponse{
		ID:           formatID(resp.ID),
		EncryptedOtp: resp.EncryptedCode,
		PublicKey:    resp.PublicKey,
	}, nil
}
