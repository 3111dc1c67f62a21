package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/servipro/booking-api/internal/core/domain"
)

// envelope is the success body of every endpoint.
type envelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

func respond(c echo.Context, status int, data any) error {
	return c.JSON(status, envelope{Success: true, Data: data})
}

// Failure attaches a payload to an error so the error handler can render it
// in the failure envelope.
type Failure struct {
	Err  error
	Data any
}

func (f *Failure) Error() string { return f.Err.Error() }
func (f *Failure) Unwrap() error { return f.Err }

// PublicMessage is the client-facing text for an error kind. Provider codes
// and raw store messages never leave the process.
func PublicMessage(kind string) string {
	switch kind {
	case "validation_error":
		return "some fields are missing or invalid"
	case "duplicate_entity":
		return "a user with this email is already registered"
	case "broken_reference":
		return "the referenced client or service does not exist"
	case "not_found":
		return "not found"
	case "invalid_transition":
		return "that action is not available at this step"
	case "submission_in_flight":
		return "a submission is already in progress"
	case "connection_failure":
		return "the service is temporarily unavailable, please try again"
	default:
		return "internal server error"
	}
}

// errorOf renders err for an error payload, keeping provider details out.
func errorOf(err error) *errorBody {
	if err == nil {
		return nil
	}
	kind := domain.Kind(err)
	return &errorBody{Kind: kind, Message: PublicMessage(kind)}
}

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// ErrorEnvelope is the failure body of every endpoint.
type ErrorEnvelope struct {
	Success bool                `json:"success"`
	Error   string              `json:"error"`
	Kind    string              `json:"kind,omitempty"`
	Fields  []domain.FieldError `json:"fields,omitempty"`
	Data    any                 `json:"data,omitempty"`
}
