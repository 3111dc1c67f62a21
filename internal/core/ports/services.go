package ports

import (
	"context"
	"time"

	"github.com/servipro/booking-api/internal/core/domain"
)

// CreateUserInput carries the data needed to register a user. Name is the
// legacy combined field, split on its first space when FirstName is empty.
type CreateUserInput struct {
	Email     string
	Phone     string
	FirstName string
	LastName  string
	Name      string
	Role      domain.Role
	City      string
	Address   string
}

// UserService creates and resolves marketplace users.
type UserService interface {
	CreateUser(ctx context.Context, in CreateUserInput) (*domain.User, error)
	FindUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUser(ctx context.Context, id string) (*domain.User, error)
	ListRecent(ctx context.Context, limit int) ([]domain.User, error)
}

// CatalogService exposes the read-only service catalog.
type CatalogService interface {
	ListActiveServices(ctx context.Context, forceRefresh bool) ([]domain.Service, error)
	ListByCategory(ctx context.Context, category string) ([]domain.Service, error)
}

// SearchCriteria narrows a professional search. Reference, when set, enables
// distance sorting; RadiusKm > 0 additionally drops professionals known to be farther.
type SearchCriteria struct {
	ServiceID string
	City      string
	Reference *domain.Coordinates
	RadiusKm  float64
	Limit     int
}

// ProfessionalService searches professionals.
type ProfessionalService interface {
	SearchProfessionals(ctx context.Context, c SearchCriteria) ([]domain.Professional, error)
}

// CreateBookingInput carries the data needed to create a booking.
// RequestedDate is YYYY-MM-DD and RequestedTime HH:MM; both may be empty.
// A zero UrgencyLevel defaults to 3.
type CreateBookingInput struct {
	ClientID       string
	ProfessionalID string
	ServiceID      string
	Title          string
	Description    string
	Address        string
	City           string
	Latitude       *float64
	Longitude      *float64
	RequestedDate  string
	RequestedTime  string
	UrgencyLevel   int
	EstimatedPrice float64
	ClientNotes    string
}

// BookingService creates and reads bookings.
type BookingService interface {
	CreateBooking(ctx context.Context, in CreateBookingInput) (*domain.Booking, error)
	GetBooking(ctx context.Context, id string) (*domain.Booking, error)
	ListUserBookings(ctx context.Context, userID string, role domain.Role) ([]domain.Booking, error)
}

// StatsService computes partial-failure tolerant counters.
type StatsService interface {
	GetDashboardStats(ctx context.Context) (*domain.DashboardStats, error)
	GetRealTimeMetrics(ctx context.Context) (*domain.RealTimeMetrics, error)
}

// Clock abstracts the wall clock so expiry can be tested deterministically.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
