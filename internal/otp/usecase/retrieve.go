package usecase

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"strings"

	"github.com/snapordereat/otpgate/internal/otp/entity"
	"github.com/snapordereat/otpgate/internal/pkg/goerror"
)

type RetrieveInput struct {
	ClientSecret string `validate:"required,clientcred"`
	ClientKey    string `validate:"required,clientcred"`
	ResourceKey  string `validate:"required,min=1,max=128"`
}

type RetrieveOutput struct {
	ID            int64
	EncryptedCode string
	PublicKey     string
}

// Retrieve returns the pending code for a resource key, protected by the
// two-layer encryption scheme. The operation is read only; it never consumes
// or extends the code.
func (s *Usecase) Retrieve(ctx context.Context, in RetrieveInput) (*RetrieveOutput, error) {
	ctx, span := s.startSpan(ctx, "Retrieve")
	defer span.End()

	in.ResourceKey = strings.TrimSpace(in.ResourceKey)

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	if !s.retrievalAuthorized(in.ClientSecret, in.ClientKey) {
		return nil, goerror.NewBusiness("Invalid client credentials", goerror.CodeUnauthorized)
	}

	otp, err := s.lookupPending(ctx, in.ResourceKey)
	if err != nil {
		return nil, err
	}

	encrypted, err := s.crypter.Encrypt(otp.Code)
	if err != nil {
		slog.ErrorContext(ctx, "failed to encrypt code", "otp_id", otp.ID, "error", err)
		return nil, goerror.NewServer(err)
	}

	return &RetrieveOutput{
		ID:            otp.ID,
		EncryptedCode: encrypted,
		PublicKey:     s.crypter.PublicKeyPEM(),
	}, nil
}

// retrievalAuthorized compares the presented credentials against the
// configured ones in constant time.
func (s *Usecase) retrievalAuthorized(clientSecret, clientKey string) bool {
	wantSecret := s.cfg.GetString("modules.otp.retrieval.client_secret")
	wantKey := s.cfg.GetString("modules.otp.retrieval.client_key")
	if wantSecret == "" || wantKey == "" {
		return false
	}

	secretOK := subtle.ConstantTimeCompare([]byte(clientSecret), []byte(wantSecret)) == 1
	keyOK := subtle.ConstantTimeCompare([]byte(clientKey), []byte(wantKey)) == 1
	return secretOK && keyOK
}

// lookupPending finds the live code for ownerKey, consulting the cache first.
// The cache is a fast path only; a miss always falls back to the database.
func (s *Usecase) lookupPending(ctx context.Context, ownerKey string) (*entity.Otp, error) {
	now := s.clock.Now()

	if s.cache != nil {
		if cached, ok := s.cache.Get(ownerKey); ok && !cached.Verified && !cached.Expired(now) {
			return &cached, nil
		}
	}

	otp, err := s.repoDB.GetOtpByOwnerKey(ctx, ownerKey)
	if err != nil {
		if errors.Is(err, goerror.ErrNotFound) {
			return nil, goerror.NewBusiness("No pending code for this resource", goerror.CodeNotFound)
		}
		slog.ErrorContext(ctx, "failed to get code by owner key", "owner_key", ownerKey, "error", err)
		return nil, goerror.NewServer(err)
	}

	if otp.Verified || otp.Expired(now) {
		return nil, goerror.NewBusiness("No pending code for this resource", goerror.CodeNotFound)
	}

	s.cacheSet(*otp)

	return otp, nil
}
