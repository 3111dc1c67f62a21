package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/servipro/booking-api/internal/core/domain"
	"github.com/servipro/booking-api/internal/core/ports"
)

// DefaultSearchLimit caps professional searches when the caller gives no limit.
const DefaultSearchLimit = 20

type ProfessionalService struct {
	gateway      ports.Gateway
	defaultLimit int
	logger       zerolog.Logger
}

func NewProfessionalService(gateway ports.Gateway, defaultLimit int, logger zerolog.Logger) *ProfessionalService {
	if defaultLimit <= 0 {
		defaultLimit = DefaultSearchLimit
	}
	return &ProfessionalService{gateway: gateway, defaultLimit: defaultLimit, logger: logger}
}

// SearchProfessionals lists active professionals, optionally restricted to a
// service and a city (case-insensitive substring). Results come ordered by
// rating; with a reference point they are re-sorted by great-circle distance,
// professionals without coordinates last.
func (s *ProfessionalService) SearchProfessionals(ctx context.Context, c ports.SearchCriteria) ([]domain.Professional, error) {
	if c.RadiusKm < 0 {
		return nil, domain.ValidationErrors{{Field: "radius", Reason: "must not be negative"}}
	}
	limit := c.Limit
	if limit <= 0 {
		limit = s.defaultLimit
	}

	filters := []ports.Filter{
		ports.Eq("user_type", string(domain.RoleProfessional)),
		ports.Eq("is_active", "true"),
	}
	if id := strings.TrimSpace(c.ServiceID); id != "" {
		filters = append(filters, ports.Contains("service_ids", id))
	}
	if city := strings.TrimSpace(c.City); city != "" {
		filters = append(filters, ports.ILike("city", "%"+city+"%"))
	}

	rows, err := s.gateway.Select(ctx, ports.TableUsers, ports.Query{
		Filters: filters,
		Order:   []ports.Order{ports.Desc("rating_average"), ports.Desc("completed_bookings")},
		Limit:   limit,
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("search professionals failed")
		return nil, translate("search professionals", err)
	}
	users, err := decodeRows[domain.User](rows)
	if err != nil {
		return nil, fmt.Errorf("search professionals: %w", err)
	}

	out := make([]domain.Professional, 0, len(users))
	for _, u := range users {
		p := domain.Professional{User: u}
		if c.Reference != nil {
			if at, ok := u.Coordinates(); ok {
				d := domain.DistanceKm(*c.Reference, at)
				if c.RadiusKm > 0 && d > c.RadiusKm {
					continue
				}
				p.DistanceKm = &d
			}
		}
		out = append(out, p)
	}
	if c.Reference != nil {
		sortByDistance(out)
	}
	return out, nil
}

// sortByDistance orders by ascending distance. Unknown distances sort last and
// keep their relative rating order.
func sortByDistance(ps []domain.Professional) {
	sort.SliceStable(ps, func(i, j int) bool {
		a, b := ps[i].DistanceKm, ps[j].DistanceKm
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return *a < *b
		}
	})
}
