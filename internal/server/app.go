// Package server wires the VaultGate components together and runs the HTTP
// API and the gRPC health endpoint until a shutdown signal arrives.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/vaultgate/internal/common"
	"github.com/dmitrijs2005/vaultgate/internal/logging"
	"github.com/dmitrijs2005/vaultgate/internal/server/access"
	"github.com/dmitrijs2005/vaultgate/internal/server/cache"
	"github.com/dmitrijs2005/vaultgate/internal/server/config"
	"github.com/dmitrijs2005/vaultgate/internal/server/ledger"
	"github.com/dmitrijs2005/vaultgate/internal/server/payments"
	"github.com/dmitrijs2005/vaultgate/internal/server/pricing"
	"github.com/dmitrijs2005/vaultgate/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/vaultgate/internal/server/services"
	"github.com/dmitrijs2005/vaultgate/internal/server/sessions"
	"github.com/dmitrijs2005/vaultgate/internal/server/storage"
	"github.com/dmitrijs2005/vaultgate/internal/timex"
	"github.com/redis/go-redis/v9"

	gs "github.com/dmitrijs2005/vaultgate/internal/server/grpc"
	hs "github.com/dmitrijs2005/vaultgate/internal/server/http"
)

const shutdownTimeout = 15 * time.Second

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	redis    *redis.Client
	sessions *sessions.Manager
	payments *payments.Coordinator
	handler  http.Handler
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSON(os.Stdout, c.LogLevel)

	if c.SecretKey == "" || c.SecretKey == config.DefaultSecretKey {
		// sessions live in memory, so a per-process key loses nothing on restart
		key, err := common.MakeRandHexString(32)
		if err != nil {
			return nil, fmt.Errorf("secret key error: %w", err)
		}
		c.SecretKey = key
		logger.Warn(ctx, "no session secret configured, using a random per-process key")
	}

	db, err := repomanager.OpenPostgres(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	app := &App{config: c, logger: logger, db: db}

	var registry access.Registry = rm.Vaults(db)
	var throttle access.Throttle = access.Unlimited{}
	if c.RedisAddr != "" {
		app.redis = redis.NewClient(&redis.Options{Addr: c.RedisAddr})
		registry = cache.NewCachedRegistry(app.redis, registry, c.RegistryCacheTTL, logger)
		if c.MaxPasskeyAttempts > 0 {
			throttle = cache.NewThrottle(app.redis, int64(c.MaxPasskeyAttempts), c.PasskeyAttemptWindow)
		}
	}

	controller := access.NewController(registry, throttle, logger)
	sm := sessions.NewManager(c.SessionDuration, timex.SystemClock, logger)
	schedule := pricing.FeeSchedule{MediaFee: c.MediaFee, PersonalFee: c.PersonalFee, DefaultFee: c.DefaultFee}
	lg := ledger.New(schedule, timex.SystemClock)
	unlocker := ledger.NewUnlocker(db, rm, logger)

	var provider payments.Provider
	var simulated *payments.SimulatedProvider
	if c.PaymentProviderURL != "" {
		provider = payments.NewHTTPProvider(c.PaymentProviderURL, c.PaymentTimeout)
	} else {
		simulated = payments.NewSimulatedProvider(c.SimulatedPaymentDelay, logger)
		provider = simulated
	}
	coordinator := payments.NewCoordinator(provider, c.PaymentTimeout, logger)
	if simulated != nil {
		simulated.Bind(coordinator)
	}

	presigner := storage.NewPresigner(c)

	vs := services.NewVaultService(db, rm, controller, sm, unlocker, c, logger)
	ss := services.NewSessionService(db, rm, sm, lg, unlocker, coordinator, presigner, timex.SystemClock, logger)

	h := hs.NewHandler(vs, ss, coordinator, logger)
	// checkout blocks for up to the payment timeout plus settlement
	app.handler = hs.NewRouter(h, []byte(c.SecretKey), c.PaymentTimeout+30*time.Second, logger)
	app.sessions = sm
	app.payments = coordinator

	return app, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	srv := &http.Server{
		Addr:              app.config.EndpointAddrHTTP,
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		app.logger.Info(ctx, "Stopping HTTP server...")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			app.logger.Error(sctx, "HTTP shutdown error", "error", err)
		}
	}()

	app.logger.Info(ctx, "Starting HTTP server", "address", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.db.PingContext, 0)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	<-ctx.Done()

	// ends every session, which cancels in-flight payment waits
	n := app.sessions.TerminateAll()
	app.logger.Info(context.Background(), "sessions terminated",
		"count", n, "payment_waits", app.payments.Pending())

	wg.Wait()
	app.close()
}

func (app *App) close() {
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Warn(context.Background(), "redis close error", "error", err)
		}
	}
	if err := app.db.Close(); err != nil {
		app.logger.Warn(context.Background(), "db close error", "error", err)
	}
}
