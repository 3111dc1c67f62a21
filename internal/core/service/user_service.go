package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/servipro/booking-api/internal/core/domain"
	"github.com/servipro/booking-api/internal/core/ports"
)

const (
	defaultLastName  = "Usuario"
	defaultListLimit = 50
	maxListLimit     = 100
)

type UserService struct {
	gateway     ports.Gateway
	defaultCity string
	logger      zerolog.Logger
}

func NewUserService(gateway ports.Gateway, defaultCity string, logger zerolog.Logger) *UserService {
	return &UserService{gateway: gateway, defaultCity: defaultCity, logger: logger}
}

// CreateUser registers a user. Email is trimmed and lower-cased; a combined
// Name is split on its first space when FirstName is empty. Role defaults to
// client and city to the configured default.
func (s *UserService) CreateUser(ctx context.Context, in ports.CreateUserInput) (*domain.User, error) {
	email := normalizeEmail(in.Email)
	phone := strings.TrimSpace(in.Phone)

	var verrs domain.ValidationErrors
	if email == "" {
		verrs = append(verrs, domain.Required("email")...)
	}
	if phone == "" {
		verrs = append(verrs, domain.Required("phone")...)
	}

	first, last := strings.TrimSpace(in.FirstName), strings.TrimSpace(in.LastName)
	if first == "" && strings.TrimSpace(in.Name) != "" {
		first, last, _ = strings.Cut(strings.TrimSpace(in.Name), " ")
		last = strings.TrimSpace(last)
	}
	if last == "" {
		last = defaultLastName
	}

	role := in.Role
	if role == "" {
		role = domain.RoleClient
	}
	if !role.Valid() {
		verrs = append(verrs, domain.FieldError{Field: "role", Reason: "must be client or professional"})
	}
	if len(verrs) > 0 {
		return nil, verrs
	}

	city := strings.TrimSpace(in.City)
	if city == "" {
		city = s.defaultCity
	}

	row, err := s.gateway.Insert(ctx, ports.TableUsers, ports.Row{
		"email":      email,
		"phone":      phone,
		"first_name": first,
		"last_name":  last,
		"user_type":  string(role),
		"city":       city,
		"address":    optional(in.Address),
		"is_active":  true,
		"source":     domain.SourceWebsite,
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("error_kind", domain.Kind(err)).Msg("create user failed")
		return nil, translate("create user", err)
	}

	var user domain.User
	if err := decodeRow(row, &user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.logger.Info().Str("user_id", user.ID).Str("role", string(user.Role)).Msg("user created")
	return &user, nil
}

// FindUserByEmail resolves an existing user by normalised email.
func (s *UserService) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, domain.Required("email")
	}
	rows, err := s.gateway.Select(ctx, ports.TableUsers, ports.Query{
		Filters: []ports.Filter{ports.Eq("email", email)},
		Limit:   1,
	})
	if err != nil {
		return nil, translate("find user by email", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("find user by email: %w", domain.ErrNotFound)
	}
	var user domain.User
	if err := decodeRow(rows[0], &user); err != nil {
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}

func (s *UserService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, domain.Required("id")
	}
	row, err := s.gateway.Fetch(ctx, ports.TableUsers, id)
	if err != nil {
		return nil, translate("get user", err)
	}
	var user domain.User
	if err := decodeRow(row, &user); err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

// ListRecent returns the newest registrations, at most 100.
func (s *UserService) ListRecent(ctx context.Context, limit int) ([]domain.User, error) {
	switch {
	case limit <= 0:
		limit = defaultListLimit
	case limit > maxListLimit:
		limit = maxListLimit
	}
	rows, err := s.gateway.Select(ctx, ports.TableUsers, ports.Query{
		Order: []ports.Order{ports.Desc("created_at")},
		Limit: limit,
	})
	if err != nil {
		return nil, translate("list recent users", err)
	}
	users, err := decodeRows[domain.User](rows)
	if err != nil {
		return nil, fmt.Errorf("list recent users: %w", err)
	}
	return users, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
