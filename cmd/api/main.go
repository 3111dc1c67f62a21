// Command api serves the ServiPro booking API.
//
// @title                       ServiPro Booking API
// @version                     1.0
// @description                 Service catalog, professional search and the booking wizard of the ServiPro marketplace.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/servipro/booking-api/internal/api"
	"github.com/servipro/booking-api/internal/api/handler"
	"github.com/servipro/booking-api/internal/core/ports"
	"github.com/servipro/booking-api/internal/core/service"
	"github.com/servipro/booking-api/internal/core/workflow"
	"github.com/servipro/booking-api/internal/infrastructure/config"
	mongodb "github.com/servipro/booking-api/internal/infrastructure/db/mongo"
	redisdb "github.com/servipro/booking-api/internal/infrastructure/db/redis"
	"github.com/servipro/booking-api/internal/infrastructure/db/supabase"
	"github.com/servipro/booking-api/internal/infrastructure/memory"
	"github.com/servipro/booking-api/internal/infrastructure/queue"
	"github.com/servipro/booking-api/internal/infrastructure/tracing"
	"github.com/servipro/booking-api/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// A missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		bootLog := logger.Init(logger.Options{})
		bootLog.Fatal().Err(err).Msg("failed to load config")
	}
	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.Pretty(),
		Service: tracing.ServiceName,
	})

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
	log.Info().Msg("server stopped")
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	policy, err := workflow.ParsePolicy(cfg.Wizard.DuplicateEmail)
	if err != nil {
		return err
	}

	// --- Tracing ---
	tp, err := tracing.Setup(cfg.Tracing.JaegerEndpoint)
	if err != nil {
		return err
	}
	defer shutdown(log, "tracing", tp.Shutdown)

	// --- Remote store ---
	client, err := supabase.Connect(supabase.Config{
		URL:        cfg.Supabase.URL,
		ServiceKey: cfg.Supabase.ServiceKey,
		Schema:     cfg.Supabase.Schema,
	})
	if err != nil {
		return err
	}
	gateway := supabase.NewGateway(client, supabase.BreakerSettings{
		ConsecutiveFailures: cfg.Supabase.BreakerFailures,
		Timeout:             cfg.Supabase.BreakerTimeout,
	}, tp.Tracer, log.With().Str("component", "gateway").Logger())

	checks := map[string]handler.Check{"supabase": gateway.Ping}

	// --- Wizard sessions ---
	var store ports.WizardStore
	if cfg.Redis.Addr != "" {
		rdb, err := redisdb.Connect(ctx, redisdb.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
		defer rdb.Close()
		store = redisdb.NewWizardStore(rdb, log.With().Str("component", "wizard_store").Logger())
		log.Info().Str("addr", cfg.Redis.Addr).Msg("wizard sessions stored in redis")
	} else {
		store = memory.NewWizardStore(ports.SystemClock{})
		log.Warn().Msg("REDIS_ADDR not set, wizard sessions kept in memory")
	}
	checks["wizard_store"] = store.Ping

	// --- Audit trail ---
	var (
		recorder ports.SubmissionRecorder
		audit    ports.AuditReader
	)
	if cfg.Mongo.URI != "" {
		mc, db, err := mongodb.Connect(ctx, mongodb.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			return err
		}
		defer shutdown(log, "mongo", mc.Disconnect)

		repo := mongodb.NewAuditRepository(db)
		if err := repo.EnsureIndexes(ctx); err != nil {
			return err
		}
		dispatcher := queue.NewDispatcher(cfg.Mongo.AuditWorkers, repo, log.With().Str("component", "audit").Logger())
		dispatcher.Start()
		// Registered after the disconnect so queued events are written first.
		defer shutdown(log, "audit", dispatcher.Stop)
		recorder, audit = dispatcher, repo
		checks["mongodb"] = func(ctx context.Context) error { return mc.Ping(ctx, nil) }
	} else {
		log.Warn().Msg("MONGO_URI not set, submission audit trail disabled")
	}

	// --- Services ---
	clock := ports.SystemClock{}
	users := service.NewUserService(gateway, cfg.Catalog.DefaultCity, log.With().Str("component", "users").Logger())
	catalog := service.NewCatalogService(gateway, clock, cfg.Catalog.CacheTTL, log.With().Str("component", "catalog").Logger())
	bookings := service.NewBookingService(gateway, service.BookingDefaults{
		City:     cfg.Catalog.DefaultCity,
		Time:     cfg.Wizard.DefaultTime,
		Location: loc,
	}, log.With().Str("component", "bookings").Logger())
	professionals := service.NewProfessionalService(gateway, cfg.Search.DefaultLimit, log.With().Str("component", "professionals").Logger())
	stats := service.NewStatsService(gateway, clock, loc, log.With().Str("component", "stats").Logger())

	wizards := service.NewWizardSessions(store, catalog, workflow.Deps{
		Users:        users,
		Bookings:     bookings,
		Policy:       policy,
		Clock:        clock,
		DismissAfter: cfg.Wizard.DismissAfter,
		DefaultCity:  cfg.Catalog.DefaultCity,
		Recorder:     recorder,
		Logger:       log.With().Str("component", "wizard").Logger(),
	}, cfg.Wizard.SessionTTL, log.With().Str("component", "wizard_sessions").Logger())

	// --- HTTP ---
	e := api.NewRouter(api.Dependencies{
		Users:         users,
		Catalog:       catalog,
		Professionals: professionals,
		Bookings:      bookings,
		Stats:         stats,
		Wizards:       wizards,
		Audit:         audit,
		Checks:        checks,
		JWTSecret:     cfg.JWTSecret,
		Logger:        log,
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("server starting")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func shutdown(log zerolog.Logger, name string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		log.Warn().Err(err).Str("component", name).Msg("shutdown failed")
	}
}
