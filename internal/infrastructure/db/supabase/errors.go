package supabase

import (
	"context"
	"errors"
	"net"
	"net/url"
	"regexp"
	"strings"

	"github.com/sony/gobreaker"

	"github.com/servipro/booking-api/internal/core/domain"
)

// Provider codes that mean the endpoint rejected our credential.
const (
	codeJWTInvalid = "PGRST301"
	codeJWTExpired = "PGRST302"
)

var (
	// postgrest-go renders provider errors as "(CODE) message".
	providerErrRe = regexp.MustCompile(`^\(([^)]*)\)\s*(.*)$`)
	constraintRe  = regexp.MustCompile(`constraint "([^"]+)"`)
)

const parseFailurePrefix = "error parsing error response"

// classify converts any failure of a round trip into a *domain.StoreError.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var se *domain.StoreError
	if errors.As(err, &se) {
		return se
	}

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return &domain.StoreError{Kind: domain.ErrConnectionFailure, Message: "store unavailable: " + err.Error()}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return &domain.StoreError{Kind: domain.ErrConnectionFailure, Message: err.Error()}
	}
	var urlErr *url.Error
	var netErr net.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) {
		return &domain.StoreError{Kind: domain.ErrConnectionFailure, Message: err.Error()}
	}

	msg := err.Error()
	if strings.HasPrefix(msg, parseFailurePrefix) {
		return &domain.StoreError{Kind: domain.ErrConnectionFailure, Message: msg}
	}

	m := providerErrRe.FindStringSubmatch(msg)
	if m == nil {
		return &domain.StoreError{Kind: domain.ErrUnknown, Message: msg}
	}
	code, text := m[1], m[2]
	switch code {
	case domain.CodeUniqueViolation, domain.CodeForeignKeyViolation:
		out := &domain.StoreError{Kind: domain.ErrConstraintViolation, Code: code, Message: text}
		if c := constraintRe.FindStringSubmatch(text); c != nil {
			out.Constraint = c[1]
		}
		return out
	case domain.CodeNoRows:
		return &domain.StoreError{Kind: domain.ErrNotFound, Code: code, Message: text}
	case codeJWTInvalid, codeJWTExpired:
		return &domain.StoreError{Kind: domain.ErrConnectionFailure, Code: code, Message: text}
	default:
		return &domain.StoreError{Kind: domain.ErrUnknown, Code: code, Message: text}
	}
}

// isOutage reports whether err should count against the circuit breaker. A
// caller giving up says nothing about the store's health.
func isOutage(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	return errors.Is(classify(err), domain.ErrConnectionFailure)
}
