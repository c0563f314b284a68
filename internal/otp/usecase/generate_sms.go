package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/snapordereat/otpgate/internal/otp/entity"
	"github.com/snapordereat/otpgate/internal/pkg/goerror"
	"github.com/snapordereat/otpgate/internal/pkg/idempotency"
	"github.com/snapordereat/otpgate/internal/pkg/sms"
)

const smsBodyFormat = "Your OTP for SnapOrderEat Login is %s"

type GenerateSMSInput struct {
	MobileNum      string `validate:"required,msisdn"`
	ClientIP       string `validate:"required"`
	SessionToken   string
	IdempotencyKey string
}

type GenerateSMSOutput struct {
	ID   int64
	Rate RateLimit
}

// GenerateSMS issues a fresh code bound to the mobile number and dispatches it
// by text message. When dispatch fails the just-created code is removed so a
// code the requester never received cannot be verified.
func (s *Usecase) GenerateSMS(ctx context.Context, in GenerateSMSInput) (*GenerateSMSOutput, error) {
	ctx, span := s.startSpan(ctx, "GenerateSMS")
	defer span.End()

	in.MobileNum = strings.TrimSpace(in.MobileNum)

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	clientKey := s.resolveClientKey(in.ClientIP, in.SessionToken)

	rate, err := s.checkAndRecord(ctx, clientKey)
	if err != nil {
		return nil, err
	}

	var out *GenerateSMSOutput
	dispatch := func(ctx context.Context) error {
		otp, err := s.issue(ctx, in.MobileNum, entity.ChannelSMS)
		if err != nil {
			return err
		}

		if err := s.sms.Send(ctx, sms.Message{
			To:   in.MobileNum,
			Body: fmt.Sprintf(smsBodyFormat, otp.Code),
		}); err != nil {
			slog.ErrorContext(ctx, "failed to send sms, rolling back code", "otp_id", otp.ID, "error", err)

			if delErr := s.repoDB.DeleteOtpByID(ctx, otp.ID); delErr != nil && !errors.Is(delErr, goerror.ErrNotFound) {
				slog.ErrorContext(ctx, "failed to delete undelivered code", "otp_id", otp.ID, "error", delErr)
			}
			s.cacheDelete(otp.OwnerKey)

			return goerror.NewBusiness("Failed to deliver verification code", goerror.CodeInternal)
		}

		out = &GenerateSMSOutput{ID: otp.ID, Rate: rate}
		return nil
	}

	if in.IdempotencyKey == "" {
		if err := dispatch(ctx); err != nil {
			return nil, err
		}
		return out, nil
	}

	err = s.idemp.Exec(ctx, "otp:sms:"+in.IdempotencyKey, dispatch)
	switch {
	case err == nil:
		return out, nil
	case errors.Is(err, idempotency.ErrAlreadyInProgress),
		errors.Is(err, idempotency.ErrAlreadyCompleted):
		return nil, goerror.NewBusiness("Request already processed", goerror.CodeConflict)
	case errors.Is(err, idempotency.ErrAlreadyFailed):
		return nil, goerror.NewBusiness("Previous request failed, use a new idempotency key", goerror.CodeConflict)
	default:
		return nil, err
	}
}
