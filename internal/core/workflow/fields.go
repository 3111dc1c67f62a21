package workflow

import (
	"fmt"

	"github.com/servipro/booking-api/internal/core/domain"
)

// Client step field names.
const (
	FieldFirstName = "firstName"
	FieldLastName  = "lastName"
	FieldEmail     = "email"
	FieldPhone     = "phone"
	FieldAddress   = "address"
	FieldCity      = "city"
)

// Service step field names.
const (
	FieldServiceID      = "serviceId"
	FieldProfessionalID = "professionalId"
	FieldTitle          = "title"
	FieldDescription    = "description"
	FieldUrgencyLevel   = "urgencyLevel"
	FieldRequestedDate  = "requestedDate"
	FieldRequestedTime  = "requestedTime"
	FieldEstimatedPrice = "estimatedPrice"
	FieldClientNotes    = "clientNotes"
)

var clientFields = map[string]func(*domain.ClientDraft) *string{
	FieldFirstName: func(d *domain.ClientDraft) *string { return &d.FirstName },
	FieldLastName:  func(d *domain.ClientDraft) *string { return &d.LastName },
	FieldEmail:     func(d *domain.ClientDraft) *string { return &d.Email },
	FieldPhone:     func(d *domain.ClientDraft) *string { return &d.Phone },
	FieldAddress:   func(d *domain.ClientDraft) *string { return &d.Address },
	FieldCity:      func(d *domain.ClientDraft) *string { return &d.City },
}

var serviceFields = map[string]func(*domain.ServiceDraft) *string{
	FieldServiceID:      func(d *domain.ServiceDraft) *string { return &d.ServiceID },
	FieldProfessionalID: func(d *domain.ServiceDraft) *string { return &d.ProfessionalID },
	FieldTitle:          func(d *domain.ServiceDraft) *string { return &d.Title },
	FieldDescription:    func(d *domain.ServiceDraft) *string { return &d.Description },
	FieldUrgencyLevel:   func(d *domain.ServiceDraft) *string { return &d.UrgencyLevel },
	FieldRequestedDate:  func(d *domain.ServiceDraft) *string { return &d.RequestedDate },
	FieldRequestedTime:  func(d *domain.ServiceDraft) *string { return &d.RequestedTime },
	FieldEstimatedPrice: func(d *domain.ServiceDraft) *string { return &d.EstimatedPrice },
	FieldClientNotes:    func(d *domain.ServiceDraft) *string { return &d.ClientNotes },
}

func unknownField(name string) error {
	return fmt.Errorf("%w: %q", domain.ErrUnknownField, name)
}
