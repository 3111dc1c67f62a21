package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/servipro/booking-api/internal/core/domain"
	"github.com/servipro/booking-api/internal/core/ports"
)

const (
	DateLayout        = "2006-01-02"
	TimeLayout        = "15:04"
	DefaultBookedTime = "09:00"
)

// BookingDefaults fills the values a booking request may omit.
type BookingDefaults struct {
	City     string
	Time     string         // HH:MM used when only a date is requested
	Location *time.Location // zone the requested date and time are expressed in
}

type BookingService struct {
	gateway  ports.Gateway
	defaults BookingDefaults
	logger   zerolog.Logger
}

func NewBookingService(gateway ports.Gateway, defaults BookingDefaults, logger zerolog.Logger) *BookingService {
	if defaults.Time == "" {
		defaults.Time = DefaultBookedTime
	}
	if defaults.Location == nil {
		defaults.Location = time.UTC
	}
	return &BookingService{gateway: gateway, defaults: defaults, logger: logger}
}

// CreateBooking persists a pending booking. The client and service must exist
// in the store; a missing reference fails with domain.ErrBrokenReference.
func (s *BookingService) CreateBooking(ctx context.Context, in ports.CreateBookingInput) (*domain.Booking, error) {
	clientID := strings.TrimSpace(in.ClientID)
	serviceID := strings.TrimSpace(in.ServiceID)
	title := strings.TrimSpace(in.Title)

	var verrs domain.ValidationErrors
	if clientID == "" {
		verrs = append(verrs, domain.Required("clientId")...)
	}
	if serviceID == "" {
		verrs = append(verrs, domain.Required("serviceId")...)
	}
	if title == "" {
		verrs = append(verrs, domain.Required("title")...)
	}

	urgency := in.UrgencyLevel
	if urgency == 0 {
		urgency = domain.DefaultUrgency
	}
	if !domain.ValidUrgency(urgency) {
		verrs = append(verrs, domain.FieldError{Field: "urgencyLevel", Reason: "must be between 1 and 5"})
	}
	if in.EstimatedPrice < 0 {
		verrs = append(verrs, domain.FieldError{Field: "estimatedPrice", Reason: "must not be negative"})
	}

	requested, ferr := s.requestedAt(in.RequestedDate, in.RequestedTime)
	if ferr != nil {
		verrs = append(verrs, *ferr)
	}
	if len(verrs) > 0 {
		return nil, verrs
	}

	city := strings.TrimSpace(in.City)
	if city == "" {
		city = s.defaults.City
	}

	record := ports.Row{
		"client_id":       clientID,
		"professional_id": optional(in.ProfessionalID),
		"service_id":      serviceID,
		"title":           title,
		"description":     optional(in.Description),
		"address":         optional(in.Address),
		"city":            city,
		"latitude":        in.Latitude,
		"longitude":       in.Longitude,
		"requested_date":  nil,
		"urgency_level":   urgency,
		"estimated_price": in.EstimatedPrice,
		"client_notes":    optional(in.ClientNotes),
		"status":          string(domain.BookingPending),
		"source":          domain.SourceWebsite,
	}
	if requested != nil {
		record["requested_date"] = requested.Format(time.RFC3339)
	}

	row, err := s.gateway.Insert(ctx, ports.TableBookings, record)
	if err != nil {
		s.logger.Warn().Err(err).
			Str("client_id", clientID).
			Str("service_id", serviceID).
			Str("error_kind", domain.Kind(err)).
			Msg("create booking failed")
		return nil, translate("create booking", err)
	}

	var booking domain.Booking
	if err := decodeRow(row, &booking); err != nil {
		return nil, fmt.Errorf("create booking: %w", err)
	}
	s.logger.Info().Str("booking_id", booking.ID).Str("client_id", clientID).Msg("booking created")
	return &booking, nil
}

// requestedAt combines date and time into one instant, or nil when no date is set.
func (s *BookingService) requestedAt(date, clock string) (*time.Time, *domain.FieldError) {
	date, clock = strings.TrimSpace(date), strings.TrimSpace(clock)
	if date == "" {
		return nil, nil
	}
	if _, err := time.Parse(DateLayout, date); err != nil {
		return nil, &domain.FieldError{Field: "requestedDate", Reason: "must be YYYY-MM-DD"}
	}
	if clock == "" {
		clock = s.defaults.Time
	}
	if _, err := time.Parse(TimeLayout, clock); err != nil {
		return nil, &domain.FieldError{Field: "requestedTime", Reason: "must be HH:MM"}
	}
	t, err := time.ParseInLocation(DateLayout+" "+TimeLayout, date+" "+clock, s.defaults.Location)
	if err != nil {
		return nil, &domain.FieldError{Field: "requestedDate", Reason: "is not a valid date"}
	}
	return &t, nil
}

func (s *BookingService) GetBooking(ctx context.Context, id string) (*domain.Booking, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, domain.Required("id")
	}
	row, err := s.gateway.Fetch(ctx, ports.TableBookings, id)
	if err != nil {
		return nil, translate("get booking", err)
	}
	var booking domain.Booking
	if err := decodeRow(row, &booking); err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return &booking, nil
}

// ListUserBookings returns the bookings a user requested (client) or is
// assigned to (professional), newest first.
func (s *BookingService) ListUserBookings(ctx context.Context, userID string, role domain.Role) ([]domain.Booking, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, domain.Required("userId")
	}
	column := "client_id"
	switch role {
	case domain.RoleClient, "":
	case domain.RoleProfessional:
		column = "professional_id"
	default:
		return nil, domain.ValidationErrors{{Field: "role", Reason: "must be client or professional"}}
	}

	rows, err := s.gateway.Select(ctx, ports.TableBookings, ports.Query{
		Filters: []ports.Filter{ports.Eq(column, userID)},
		Order:   []ports.Order{ports.Desc("created_at")},
	})
	if err != nil {
		return nil, translate("list user bookings", err)
	}
	bookings, err := decodeRows[domain.Booking](rows)
	if err != nil {
		return nil, fmt.Errorf("list user bookings: %w", err)
	}
	return bookings, nil
}
