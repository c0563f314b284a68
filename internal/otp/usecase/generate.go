package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/snapordereat/otpgate/internal/otp/entity"
	"github.com/snapordereat/otpgate/internal/pkg/goerror"
)

type GenerateInput struct {
	ClientIP     string `validate:"required"`
	SessionToken string
	ResourceKey  string `validate:"omitempty,min=1,max=128"`
}

type GenerateOutput struct {
	ID   int64
	Rate RateLimit
}

// Generate issues a fresh code for the requester, replacing any pending code
// bound to the same owner key.
func (s *Usecase) Generate(ctx context.Context, in GenerateInput) (*GenerateOutput, error) {
	ctx, span := s.startSpan(ctx, "Generate")
	defer span.End()

	in.ResourceKey = strings.TrimSpace(in.ResourceKey)

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	clientKey := s.resolveClientKey(in.ClientIP, in.SessionToken)

	rate, err := s.checkAndRecord(ctx, clientKey)
	if err != nil {
		return nil, err
	}

	ownerKey := in.ResourceKey
	if ownerKey == "" {
		ownerKey = clientKey
	}

	otp, err := s.issue(ctx, ownerKey, entity.ChannelAPI)
	if err != nil {
		return nil, err
	}

	return &GenerateOutput{
		ID:   otp.ID,
		Rate: rate,
	}, nil
}

// issue replaces any pending code for ownerKey with a new one and announces it.
func (s *Usecase) issue(ctx context.Context, ownerKey string, channel entity.Channel) (*entity.Otp, error) {
	code, err := s.passcode.Generate()
	if err != nil {
		slog.ErrorContext(ctx, "failed to generate passcode", "error", err)
		return nil, goerror.NewServer(err)
	}

	now := s.clock.Now()
	otp := entity.Otp{
		ID:        s.uid.Generate(),
		OwnerKey:  ownerKey,
		Code:      code,
		Verified:  false,
		CreatedAt: now,
		ExpiresAt: now.Add(s.codeTTL()),
	}

	if err := s.repoDB.DeleteOtpByOwnerKey(ctx, ownerKey); err != nil && !errors.Is(err, goerror.ErrNotFound) {
		slog.ErrorContext(ctx, "failed to delete pending code", "owner_key", ownerKey, "error", err)
		return nil, goerror.NewServer(err)
	}

	if err := s.repoDB.CreateOtp(ctx, otp); err != nil {
		slog.ErrorContext(ctx, "failed to create code", "owner_key", ownerKey, "error", err)
		return nil, goerror.NewServer(err)
	}

	s.cacheSet(otp)

	s.goroutine.Go(context.WithoutCancel(ctx), func(pCtx context.Context) error {
		if err := s.repoMessaging.PublishOtpIssued(pCtx, OtpIssuedEvent{
			OtpID:     otp.ID,
			OwnerKey:  otp.OwnerKey,
			Channel:   channel,
			ExpiresAt: otp.ExpiresAt,
		}); err != nil {
			slog.ErrorContext(pCtx, "failed to publish otp issued", "otp_id", otp.ID, "error", err)
		}
		return nil
	})

	return &otp, nil
}
