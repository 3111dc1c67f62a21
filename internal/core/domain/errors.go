package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Remote store failures. Every Gateway error is a *StoreError whose Kind is one of these.
var (
	ErrConnectionFailure   = errors.New("connection failure")
	ErrConstraintViolation = errors.New("constraint violation")
	ErrNotFound            = errors.New("not found")
	ErrUnknown             = errors.New("unknown store error")
)

// Domain failures surfaced by the operations layer and the booking workflow.
var (
	ErrValidation         = errors.New("validation failed")
	ErrDuplicateEntity    = errors.New("duplicate entity")
	ErrBrokenReference    = errors.New("broken reference")
	ErrInvalidTransition  = errors.New("invalid wizard transition")
	ErrSubmissionInFlight = errors.New("submission already in progress")
	ErrWizardNotFound     = errors.New("wizard session not found")
	ErrUnknownField       = errors.New("unknown draft field")
	ErrForbidden          = errors.New("access forbidden")
)

// Provider error codes returned by the PostgREST endpoint.
const (
	CodeUniqueViolation     = "23505"
	CodeForeignKeyViolation = "23503"
	CodeNoRows              = "PGRST116"
)

// StoreError is the tagged failure reported by the Remote Data Gateway.
type StoreError struct {
	Kind       error
	Code       string
	Constraint string
	Message    string
}

func (e *StoreError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Code != "" {
		fmt.Fprintf(&b, " (%s)", e.Code)
	}
	if e.Constraint != "" {
		fmt.Fprintf(&b, " [%s]", e.Constraint)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

func (e *StoreError) Unwrap() error { return e.Kind }

// IsUniqueViolation reports whether err is a store uniqueness violation.
func IsUniqueViolation(err error) bool {
	var se *StoreError
	return errors.As(err, &se) && se.Kind == ErrConstraintViolation && se.Code == CodeUniqueViolation
}

// IsForeignKeyViolation reports whether err is a store referential-integrity violation.
func IsForeignKeyViolation(err error) bool {
	var se *StoreError
	return errors.As(err, &se) && se.Kind == ErrConstraintViolation && se.Code == CodeForeignKeyViolation
}

// FieldError names a single field that failed a precondition.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationErrors is returned whenever caller-supplied data fails a precondition.
// errors.Is(err, ErrValidation) holds for any non-empty ValidationErrors.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, fe := range v {
		parts = append(parts, fe.Field+" "+fe.Reason)
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (v ValidationErrors) Is(target error) bool { return target == ErrValidation }

// Fields returns the names of the offending fields in order.
func (v ValidationErrors) Fields() []string {
	out := make([]string, len(v))
	for i, fe := range v {
		out[i] = fe.Field
	}
	return out
}

// Has reports whether field is among the offending fields.
func (v ValidationErrors) Has(field string) bool {
	for _, fe := range v {
		if fe.Field == field {
			return true
		}
	}
	return false
}

// Required builds a single-field "is required" validation error.
func Required(field string) ValidationErrors {
	return ValidationErrors{{Field: field, Reason: "is required"}}
}

// Kind returns a stable, provider-agnostic tag for err, suitable for logs,
// metrics labels and client payloads.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrDuplicateEntity):
		return "duplicate_entity"
	case errors.Is(err, ErrBrokenReference):
		return "broken_reference"
	case errors.Is(err, ErrConnectionFailure):
		return "connection_failure"
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrWizardNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrSubmissionInFlight):
		return "submission_in_flight"
	case errors.Is(err, ErrConstraintViolation):
		return "constraint_violation"
	default:
		return "unknown"
	}
}
