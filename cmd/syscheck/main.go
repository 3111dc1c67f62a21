// Command syscheck verifies that the remote store is reachable and serving
// data. It exits non-zero when any check fails.
package main

import (
	"context"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/servipro/booking-api/internal/core/ports"
	"github.com/servipro/booking-api/internal/core/service"
	"github.com/servipro/booking-api/internal/infrastructure/config"
	"github.com/servipro/booking-api/internal/infrastructure/db/supabase"
	"github.com/servipro/booking-api/internal/infrastructure/tracing"
	"github.com/servipro/booking-api/pkg/logger"
)

const checkTimeout = 15 * time.Second

type check struct {
	name string
	run  func(ctx context.Context) error
}

func main() {
	_ = godotenv.Load()

	log := logger.Init(logger.Options{Level: "info", Pretty: true, Service: "syscheck"})

	ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
	defer cancel()

	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	loc, err := cfg.Location()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid timezone")
	}

	tp, err := tracing.Setup("")
	if err != nil {
		log.Fatal().Err(err).Msg("tracing setup failed")
	}
	client, err := supabase.Connect(supabase.Config{
		URL:        cfg.Supabase.URL,
		ServiceKey: cfg.Supabase.ServiceKey,
		Schema:     cfg.Supabase.Schema,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build store client")
	}
	gateway := supabase.NewGateway(client, supabase.BreakerSettings{
		ConsecutiveFailures: cfg.Supabase.BreakerFailures,
		Timeout:             cfg.Supabase.BreakerTimeout,
	}, tp.Tracer, zerolog.Nop())

	catalog := service.NewCatalogService(gateway, ports.SystemClock{}, cfg.Catalog.CacheTTL, zerolog.Nop())
	stats := service.NewStatsService(gateway, ports.SystemClock{}, loc, zerolog.Nop())

	checks := []check{
		{"connection", gateway.Ping},
		{"services", func(ctx context.Context) error {
			services, err := catalog.ListActiveServices(ctx, true)
			if err != nil {
				return err
			}
			names := make([]string, 0, 3)
			for i := 0; i < len(services) && i < 3; i++ {
				names = append(names, services[i].Name)
			}
			log.Info().Int("count", len(services)).Strs("first", names).Msg("active services")
			return nil
		}},
		{"stats", func(ctx context.Context) error {
			s, err := stats.GetDashboardStats(ctx)
			if err != nil {
				return err
			}
			log.Info().
				Int64("users", s.TotalUsers).
				Int64("professionals", s.TotalProfessionals).
				Int64("bookings", s.TotalBookings).
				Int64("services", s.TotalServices).
				Msg("dashboard stats")
			return nil
		}},
	}

	failed := 0
	for _, c := range checks {
		if err := c.run(ctx); err != nil {
			failed++
			log.Error().Err(err).Str("check", c.name).Msg("check failed")
			continue
		}
		log.Info().Str("check", c.name).Msg("check passed")
	}

	log.Info().Int("passed", len(checks)-failed).Int("failed", failed).Msg("system check finished")
	if failed > 0 {
		os.Exit(1)
	}
}
