package inbound

import (
	"context"

	"github.com/snapordereat/otpgate/internal/otp/usecase"
	"github.com/snapordereat/otpgate/internal/pkg/router"
)

type uc interface {
	Generate(ctx context.Context, in usecase.GenerateInput) (*usecase.GenerateOutput, error)
	GenerateSMS(ctx context.Context, in usecase.GenerateSMSInput) (*usecase.GenerateSMSOutput, error)
	Verify(ctx context.Context, in usecase.VerifyInput) (*usecase.VerifyOutput, error)
	Retrieve(ctx context.Context, in usecase.RetrieveInput) (*usecase.RetrieveOutput, error)
}

func RegisterHTTPEndpoint(r *router.Router, uc uc) {
	end := &HTTPEndpoint{uc: uc}

	// Code Issuance
	r.POST("/api/v1/otp/generate", end.Generate)
	r.POST("/api/v1/otp/generate/sms", end.GenerateSMS)

	// Code Consumption
	r.POST("/api/v1/otp/verify", end.Verify)

	// Encrypted Retrieval (server-to-server)
	r.POST("/api/v1/otp/retrieve", end.Retrieve)
}
