package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/servipro/booking-api/internal/api/metrics"
	"github.com/servipro/booking-api/internal/core/domain"
	"github.com/servipro/booking-api/internal/core/ports"
)

// DefaultCatalogTTL is the freshness window of the active services cache.
const DefaultCatalogTTL = 5 * time.Minute

// servicesCache holds the single global catalog entry. The payload and its
// timestamp are always read and written together under mu.
type servicesCache struct {
	mu        sync.Mutex
	clock     ports.Clock
	ttl       time.Duration
	services  []domain.Service
	fetchedAt time.Time
	loaded    bool
}

func (c *servicesCache) get() ([]domain.Service, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loaded || c.clock.Now().Sub(c.fetchedAt) >= c.ttl {
		return nil, false
	}
	return append([]domain.Service(nil), c.services...), true
}

func (c *servicesCache) put(services []domain.Service) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.services = append([]domain.Service(nil), services...)
	c.fetchedAt = c.clock.Now()
	c.loaded = true
}

type CatalogService struct {
	gateway ports.Gateway
	cache   *servicesCache
	logger  zerolog.Logger
}

// NewCatalogService returns a catalog backed by a time-only invalidated cache.
// A non-positive ttl falls back to DefaultCatalogTTL.
func NewCatalogService(gateway ports.Gateway, clock ports.Clock, ttl time.Duration, logger zerolog.Logger) *CatalogService {
	if ttl <= 0 {
		ttl = DefaultCatalogTTL
	}
	if clock == nil {
		clock = ports.SystemClock{}
	}
	return &CatalogService{
		gateway: gateway,
		cache:   &servicesCache{clock: clock, ttl: ttl},
		logger:  logger,
	}
}

// ListActiveServices returns active services ordered by display order then
// name. forceRefresh skips the cache unconditionally; failed fetches are never cached.
func (s *CatalogService) ListActiveServices(ctx context.Context, forceRefresh bool) ([]domain.Service, error) {
	if forceRefresh {
		metrics.CatalogCacheTotal.WithLabelValues("bypass").Inc()
	} else if cached, ok := s.cache.get(); ok {
		metrics.CatalogCacheTotal.WithLabelValues("hit").Inc()
		return cached, nil
	} else {
		metrics.CatalogCacheTotal.WithLabelValues("miss").Inc()
	}

	rows, err := s.gateway.Select(ctx, ports.TableServices, ports.Query{
		Filters: []ports.Filter{ports.Eq("status", domain.ServiceStatusActive)},
		Order:   []ports.Order{ports.Asc("display_order"), ports.Asc("name")},
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("list active services failed")
		return nil, translate("list active services", err)
	}
	services, err := decodeRows[domain.Service](rows)
	if err != nil {
		return nil, fmt.Errorf("list active services: %w", err)
	}
	s.cache.put(services)
	s.logger.Debug().Int("count", len(services)).Msg("services cache refreshed")
	return services, nil
}

// ListByCategory reads active services of one category, ordered by name. It is not cached.
func (s *CatalogService) ListByCategory(ctx context.Context, category string) ([]domain.Service, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return nil, domain.Required("category")
	}
	rows, err := s.gateway.Select(ctx, ports.TableServices, ports.Query{
		Filters: []ports.Filter{
			ports.Eq("category", category),
			ports.Eq("status", domain.ServiceStatusActive),
		},
		Order: []ports.Order{ports.Asc("name")},
	})
	if err != nil {
		return nil, translate("list services by category", err)
	}
	services, err := decodeRows[domain.Service](rows)
	if err != nil {
		return nil, fmt.Errorf("list services by category: %w", err)
	}
	return services, nil
}
