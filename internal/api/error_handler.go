package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/servipro/booking-api/internal/api/handler"
	"github.com/servipro/booking-api/internal/core/domain"
)

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that maps tagged domain
// errors to status codes and renders the failure envelope. Provider codes and
// raw store messages are logged, never sent.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, body := resolveError(err, log, c)
		var f *handler.Failure
		if errors.As(err, &f) {
			body.Data = f.Data
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, body)
	}
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind string) int {
	switch kind {
	case "validation_error":
		return http.StatusUnprocessableEntity
	case "duplicate_entity", "broken_reference", "invalid_transition", "submission_in_flight", "constraint_violation":
		return http.StatusConflict
	case "not_found":
		return http.StatusNotFound
	case "connection_failure":
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, handler.ErrorEnvelope) {
	// Echo's own errors (bind failures, 404 from router, auth middleware).
	var be *echo.BindingError
	if errors.As(err, &be) {
		return be.Code, handler.ErrorEnvelope{Error: fmt.Sprintf("invalid value for %s", be.Field)}
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, handler.ErrorEnvelope{Error: fmt.Sprintf("%v", he.Message)}
	}

	if errors.Is(err, domain.ErrForbidden) {
		return http.StatusForbidden, handler.ErrorEnvelope{Error: "access forbidden", Kind: "forbidden"}
	}

	kind := domain.Kind(err)
	code := statusFor(kind)
	body := handler.ErrorEnvelope{Error: handler.PublicMessage(kind), Kind: kind}

	var verrs domain.ValidationErrors
	if errors.As(err, &verrs) {
		body.Fields = verrs
	}

	ev := log.Warn()
	if code >= http.StatusInternalServerError {
		ev = log.Error()
	}
	var se *domain.StoreError
	if errors.As(err, &se) {
		ev = ev.Str("provider_code", se.Code).Str("constraint", se.Constraint)
	}
	ev.Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Str("error_kind", kind).
		Int("status", code).
		Msg("request failed")

	return code, body
}
