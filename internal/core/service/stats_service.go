package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/servipro/booking-api/internal/api/metrics"
	"github.com/servipro/booking-api/internal/core/domain"
	"github.com/servipro/booking-api/internal/core/ports"
)

// figure is one independent counting query of an aggregate.
type figure struct {
	name    string
	table   ports.Table
	filters []ports.Filter
	dst     *int64
}

type StatsService struct {
	gateway  ports.Gateway
	clock    ports.Clock
	location *time.Location
	logger   zerolog.Logger
}

// NewStatsService returns the statistics aggregator. location decides where
// "today" starts for real-time metrics.
func NewStatsService(gateway ports.Gateway, clock ports.Clock, location *time.Location, logger zerolog.Logger) *StatsService {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if location == nil {
		location = time.UTC
	}
	return &StatsService{gateway: gateway, clock: clock, location: location, logger: logger}
}

// GetDashboardStats runs the four marketplace counts concurrently. A failed
// count is reported as zero; the aggregate itself never fails.
func (s *StatsService) GetDashboardStats(ctx context.Context) (*domain.DashboardStats, error) {
	var stats domain.DashboardStats
	s.count(ctx, []figure{
		{name: "users", table: ports.TableUsers, dst: &stats.TotalUsers},
		{
			name:  "professionals",
			table: ports.TableUsers,
			filters: []ports.Filter{
				ports.Eq("user_type", string(domain.RoleProfessional)),
				ports.Eq("is_active", "true"),
			},
			dst: &stats.TotalProfessionals,
		},
		{name: "bookings", table: ports.TableBookings, dst: &stats.TotalBookings},
		{
			name:    "services",
			table:   ports.TableServices,
			filters: []ports.Filter{ports.Eq("status", domain.ServiceStatusActive)},
			dst:     &stats.TotalServices,
		},
	})
	return &stats, nil
}

// GetRealTimeMetrics counts bookings created today and over the last seven
// days, plus available professionals seen within the last hour.
func (s *StatsService) GetRealTimeMetrics(ctx context.Context) (*domain.RealTimeMetrics, error) {
	now := s.clock.Now()
	local := now.In(s.location)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.location)

	m := domain.RealTimeMetrics{Timestamp: now}
	s.count(ctx, []figure{
		{
			name:    "today_bookings",
			table:   ports.TableBookings,
			filters: []ports.Filter{ports.Gte("created_at", today.UTC().Format(time.RFC3339))},
			dst:     &m.TodayBookings,
		},
		{
			name:    "weekly_bookings",
			table:   ports.TableBookings,
			filters: []ports.Filter{ports.Gte("created_at", now.Add(-7*24*time.Hour).UTC().Format(time.RFC3339))},
			dst:     &m.WeeklyBookings,
		},
		{
			name:  "online_professionals",
			table: ports.TableUsers,
			filters: []ports.Filter{
				ports.Eq("user_type", string(domain.RoleProfessional)),
				ports.Eq("is_available", "true"),
				ports.Gte("last_login", now.Add(-time.Hour).UTC().Format(time.RFC3339)),
			},
			dst: &m.OnlineProfessionals,
		},
	})
	return &m, nil
}

// count runs every figure in its own goroutine and waits for all of them.
// Each goroutine writes only its own destination.
func (s *StatsService) count(ctx context.Context, figures []figure) {
	var wg sync.WaitGroup
	for _, f := range figures {
		wg.Add(1)
		go func(f figure) {
			defer wg.Done()
			n, err := s.gateway.Count(ctx, f.table, f.filters...)
			if err != nil {
				metrics.StatsQueryFailuresTotal.WithLabelValues(f.name).Inc()
				s.logger.Warn().Err(err).Str("figure", f.name).Str("error_kind", domain.Kind(err)).Msg("stats query failed, reporting zero")
				return
			}
			*f.dst = n
		}(f)
	}
	wg.Wait()
}
