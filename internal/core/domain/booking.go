package domain

import "time"

// BookingStatus is owned by the back office; this application only ever writes the default.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
)

const (
	MinUrgency     = 1
	MaxUrgency     = 5
	DefaultUrgency = 3
)

// ValidUrgency reports whether level belongs to {1,2,3,4,5}.
func ValidUrgency(level int) bool {
	return level >= MinUrgency && level <= MaxUrgency
}

// Booking is a service request.
type Booking struct {
	ID             string        `json:"id"`
	ClientID       string        `json:"client_id"`
	ProfessionalID *string       `json:"professional_id,omitempty"`
	ServiceID      string        `json:"service_id"`
	Title          string        `json:"title"`
	Description    *string       `json:"description,omitempty"`
	Address        *string       `json:"address,omitempty"`
	City           string        `json:"city"`
	Latitude       *float64      `json:"latitude,omitempty"`
	Longitude      *float64      `json:"longitude,omitempty"`
	RequestedDate  *time.Time    `json:"requested_date,omitempty"`
	UrgencyLevel   int           `json:"urgency_level"`
	EstimatedPrice float64       `json:"estimated_price"`
	ClientNotes    *string       `json:"client_notes,omitempty"`
	Status         BookingStatus `json:"status"`
	CreatedAt      time.Time     `json:"created_at"`
}
