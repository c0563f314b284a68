package usecase

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"

	"github.com/snapordereat/otpgate/internal/pkg/goerror"
)

type VerifyInput struct {
	ID           int64  `validate:"required"`
	OtpCode      string `validate:"required,otpcode"`
	ClientIP     string `validate:"required"`
	SessionToken string
}

type VerifyOutput struct {
	Success bool
}

// Verify checks a submitted code against the stored one and consumes it on
// success.
//
// A missing record, an expired or already verified code, and a code mismatch
// all produce the same negative result so callers cannot probe which check
// failed.
func (s *Usecase) Verify(ctx context.Context, in VerifyInput) (*VerifyOutput, error) {
	ctx, span := s.startSpan(ctx, "Verify")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	otp, err := s.repoDB.GetOtpByID(ctx, in.ID)
	if err != nil {
		if errors.Is(err, goerror.ErrNotFound) {
			return &VerifyOutput{Success: false}, nil
		}
		slog.ErrorContext(ctx, "failed to get code by id", "otp_id", in.ID, "error", err)
		return nil, goerror.NewServer(err)
	}

	if otp.Verified || otp.Expired(s.clock.Now()) {
		return &VerifyOutput{Success: false}, nil
	}

	if s.cfg.GetBool("modules.otp.session_scoped_verify") {
		if otp.OwnerKey != s.resolveClientKey(in.ClientIP, in.SessionToken) {
			return &VerifyOutput{Success: false}, nil
		}
	}

	if subtle.ConstantTimeCompare([]byte(otp.Code), []byte(in.OtpCode)) != 1 {
		return &VerifyOutput{Success: false}, nil
	}

	if err := s.repoDB.MarkOtpVerified(ctx, otp.ID); err != nil {
		slog.ErrorContext(ctx, "failed to mark code verified", "otp_id", otp.ID, "error", err)
		return nil, goerror.NewServer(err)
	}

	if err := s.repoDB.DeleteOtpByID(ctx, otp.ID); err != nil && !errors.Is(err, goerror.ErrNotFound) {
		slog.ErrorContext(ctx, "failed to delete verified code", "otp_id", otp.ID, "error", err)
		return nil, goerror.NewServer(err)
	}

	s.cacheDelete(otp.OwnerKey)

	// The code is already consumed at this point; a failed counter clear must
	// not turn the successful verification into an error, so unlike the
	// issuance path this limiter write does not fail closed.
	clientKey := s.resolveClientKey(in.ClientIP, in.SessionToken)
	if err := s.repoDB.DeleteAttemptsByClientKey(ctx, clientKey); err != nil && !errors.Is(err, goerror.ErrNotFound) {
		slog.WarnContext(ctx, "failed to clear rate limit attempts", "client_key", clientKey, "error", err)
	}

	s.goroutine.Go(context.WithoutCancel(ctx), func(pCtx context.Context) error {
		if err := s.repoMessaging.PublishOtpVerified(pCtx, OtpVerifiedEvent{
			OtpID:    otp.ID,
			OwnerKey: otp.OwnerKey,
		}); err != nil {
			slog.ErrorContext(pCtx, "failed to publish otp verified", "otp_id", otp.ID, "error", err)
		}
		return nil
	})

	return &VerifyOutput{Success: true}, nil
}
