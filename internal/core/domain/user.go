package domain

import "time"

// Role is the immutable kind of a marketplace user.
type Role string

const (
	RoleClient       Role = "client"
	RoleProfessional Role = "professional"
)

// RoleAdmin is carried only by back-office bearer tokens; it never appears on a User row.
const RoleAdmin = "admin"

// Valid reports whether r is one of the roles a User row may carry.
func (r Role) Valid() bool {
	return r == RoleClient || r == RoleProfessional
}

// SourceWebsite tags every row written by this application.
const SourceWebsite = "website"

// User represents a client or a professional.
type User struct {
	ID                string     `json:"id"`
	Email             string     `json:"email"`
	Phone             string     `json:"phone"`
	FirstName         string     `json:"first_name"`
	LastName          string     `json:"last_name"`
	Role              Role       `json:"user_type"`
	City              string     `json:"city"`
	Address           *string    `json:"address,omitempty"`
	IsActive          bool       `json:"is_active"`
	IsAvailable       bool       `json:"is_available"`
	RatingAverage     float64    `json:"rating_average"`
	RatingCount       int        `json:"rating_count"`
	CompletedBookings int        `json:"completed_bookings"`
	ServiceIDs        []string   `json:"service_ids,omitempty"`
	Latitude          *float64   `json:"latitude,omitempty"`
	Longitude         *float64   `json:"longitude,omitempty"`
	BusinessName      *string    `json:"business_name,omitempty"`
	Description       *string    `json:"description,omitempty"`
	AvatarURL         *string    `json:"avatar_url,omitempty"`
	YearsExperience   *int       `json:"years_experience,omitempty"`
	Verified          bool       `json:"verified"`
	LastLogin         *time.Time `json:"last_login,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// FullName joins first and last name for display.
func (u *User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// Coordinates returns the stored position of the user, if any.
func (u *User) Coordinates() (Coordinates, bool) {
	if u.Latitude == nil || u.Longitude == nil {
		return Coordinates{}, false
	}
	return Coordinates{Lat: *u.Latitude, Lng: *u.Longitude}, true
}

// Professional is a search result: a professional user plus its distance to the
// caller's reference point, when both positions are known.
type Professional struct {
	User
	DistanceKm *float64 `json:"calculated_distance,omitempty"`
}
