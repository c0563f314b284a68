package otp

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/snapordereat/otpgate/internal/otp/entity"
	"github.com/snapordereat/otpgate/internal/otp/inbound"
	"github.com/snapordereat/otpgate/internal/otp/outbound/db"
	"github.com/snapordereat/otpgate/internal/otp/outbound/mq"
	"github.com/snapordereat/otpgate/internal/otp/usecase"
	"github.com/snapordereat/otpgate/internal/pkg/clock"
	"github.com/snapordereat/otpgate/internal/pkg/config"
	"github.com/snapordereat/otpgate/internal/pkg/goroutine"
	"github.com/snapordereat/otpgate/internal/pkg/hybrid"
	"github.com/snapordereat/otpgate/internal/pkg/idempotency"
	"github.com/snapordereat/otpgate/internal/pkg/instrument"
	"github.com/snapordereat/otpgate/internal/pkg/messaging"
	"github.com/snapordereat/otpgate/internal/pkg/passcode"
	"github.com/snapordereat/otpgate/internal/pkg/router"
	"github.com/snapordereat/otpgate/internal/pkg/sms"
	"github.com/snapordereat/otpgate/internal/pkg/ttlcache"
	"github.com/snapordereat/otpgate/internal/pkg/uid"
	"github.com/snapordereat/otpgate/internal/pkg/validator"
)

type Dependency struct {
	DBConn      *pgxpool.Pool                       `validate:"required"`
	CacheConn   *redis.Client                       `validate:"required"`
	Goroutine   *goroutine.Manager                  `validate:"required"`
	Router      *router.Router                      `validate:"required"`
	Idempotency idempotency.Idempotency             `validate:"required"`
	Messaging   messaging.Messaging                 `validate:"required"`
	Config      config.Config                       `validate:"required"`
	Instrument  instrument.Instrumentation          `validate:"required"`
	UID         uid.NumberID                        `validate:"required"`
	Passcode    passcode.Generator                  `validate:"required"`
	Crypter     *hybrid.Engine                      `validate:"required"`
	SMS         sms.Sender                          `validate:"required"`
	Cache       *ttlcache.Cache[string, entity.Otp] `validate:"required"`
	Clock       clock.Clocker                       `validate:"required"`
	Validator   validator.Validator                 `validate:"required"`
}

func New(dep Dependency) error {
	if err := dep.Validator.Validate(dep); err != nil {
		return err
	}

	dbOtp := db.NewDB(dep.DBConn, dep.Instrument)
	repoMsg := mq.NewMessaging(dep.Messaging, dep.Instrument)

	uc := usecase.New(usecase.Dependency{
		RepoDB:        dbOtp,
		RepoMessaging: repoMsg,
		Idempotency:   dep.Idempotency,
		Validator:     dep.Validator,
		Config:        dep.Config,
		UID:           dep.UID,
		Passcode:      dep.Passcode,
		Crypter:       dep.Crypter,
		SMS:           dep.SMS,
		Cache:         dep.Cache,
		Clock:         dep.Clock,
		Instrument:    dep.Instrument,
		Goroutine:     dep.Goroutine,
	})

	inbound.RegisterHTTPEndpoint(dep.Router, uc)

	return nil
}
