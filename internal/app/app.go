package app

import (
	"context"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/snapordereat/otpgate/internal/otp/entity"
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

// App wires dependencies and manages service lifecycle.
type App struct {
	ctx    context.Context
	cancel context.CancelFunc

	// configuration
	config config.Config
	ins    instrument.Instrumentation

	// libraries
	goroutine *goroutine.Manager
	validator validator.Validator
	clock     clock.Clocker
	uid       uid.NumberID
	uuid      uid.StringID
	passcode  passcode.Generator
	crypter   *hybrid.Engine
	otpCache  *ttlcache.Cache[string, entity.Otp]

	// resources
	dbConn    *pgxpool.Pool
	cacheConn *redis.Client
	idemp     idempotency.Idempotency
	sms       sms.Sender
	messaging messaging.Messaging

	// server
	router     *router.Router
	httpServer *http.Server

	//
	closers []struct {
		name string
		fn   func(context.Context) error
	}
}

// New initializes the application with default wiring and returns an App instance.
func New() *App {
	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		ctx:    ctx,
		cancel: cancel,
	}

	app.initConfig()
	app.initInstrument()
	app.initLibraries()
	app.initDatabase()
	app.initCache()
	app.initSMS()
	app.initMessaging()
	app.initHTTPServer()
	app.initModules()
	app.initClosers()

	return app
}
