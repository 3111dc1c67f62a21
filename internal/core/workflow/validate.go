package workflow

import (
	"errors"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/servipro/booking-api/internal/core/domain"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// structErrors runs the struct tags of v and converts failures to field errors.
func structErrors(v any) domain.ValidationErrors {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return domain.ValidationErrors{{Field: "draft", Reason: err.Error()}}
	}
	out := make(domain.ValidationErrors, 0, len(ve))
	for _, fe := range ve {
		reason := "is invalid"
		if fe.Tag() == "required" {
			reason = "is required"
		}
		out = append(out, domain.FieldError{Field: fe.Field(), Reason: reason})
	}
	return out
}

// validateClient checks the client step. Whitespace-only values count as missing.
func validateClient(d domain.ClientDraft) domain.ValidationErrors {
	trimmed := domain.ClientDraft{
		FirstName: strings.TrimSpace(d.FirstName),
		LastName:  strings.TrimSpace(d.LastName),
		Email:     strings.TrimSpace(d.Email),
		Phone:     strings.TrimSpace(d.Phone),
		Address:   strings.TrimSpace(d.Address),
		City:      strings.TrimSpace(d.City),
	}
	return structErrors(trimmed)
}

// validateService checks the service step and parses its numeric and
// calendar fields. Out of range urgency is reported, never clamped.
func validateService(d domain.ServiceDraft) domain.ValidationErrors {
	trimmed := domain.ServiceDraft{
		ServiceID: strings.TrimSpace(d.ServiceID),
		Title:     strings.TrimSpace(d.Title),
	}
	verrs := structErrors(trimmed)

	if _, err := parseUrgency(d.UrgencyLevel); err != nil {
		verrs = append(verrs, domain.FieldError{Field: FieldUrgencyLevel, Reason: "must be an integer between 1 and 5"})
	}
	if _, err := parsePrice(d.EstimatedPrice); err != nil {
		verrs = append(verrs, domain.FieldError{Field: FieldEstimatedPrice, Reason: "must be a non-negative number"})
	}
	if date := strings.TrimSpace(d.RequestedDate); date != "" {
		if _, err := time.Parse("2006-01-02", date); err != nil {
			verrs = append(verrs, domain.FieldError{Field: FieldRequestedDate, Reason: "must be YYYY-MM-DD"})
		}
	}
	if clock := strings.TrimSpace(d.RequestedTime); clock != "" {
		if _, err := time.Parse("15:04", clock); err != nil {
			verrs = append(verrs, domain.FieldError{Field: FieldRequestedTime, Reason: "must be HH:MM"})
		}
	}
	return verrs
}

// parseUrgency reads the urgency draft. Blank means the default level.
func parseUrgency(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.DefaultUrgency, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if !domain.ValidUrgency(n) {
		return 0, strconv.ErrRange
	}
	return n, nil
}

// parsePrice reads the price draft. Blank means zero, which is a valid price.
func parsePrice(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	p, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	if p < 0 || math.IsNaN(p) || math.IsInf(p, 0) {
		return 0, strconv.ErrRange
	}
	return p, nil
}
