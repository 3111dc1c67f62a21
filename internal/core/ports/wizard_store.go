package ports

import (
	"context"
	"time"

	"github.com/servipro/booking-api/internal/core/domain"
)

// WizardStore persists wizard snapshots between requests.
type WizardStore interface {
	// Save stores snap under snap.ID, expiring it after ttl.
	Save(ctx context.Context, snap domain.WizardSnapshot, ttl time.Duration) error
	// Load returns domain.ErrWizardNotFound when the session is unknown or expired.
	Load(ctx context.Context, id string) (domain.WizardSnapshot, error)
	Delete(ctx context.Context, id string) error
	// Lock acquires the exclusive per-session lock. It returns
	// domain.ErrSubmissionInFlight when another holder owns it.
	Lock(ctx context.Context, id string, ttl time.Duration) (release func(), err error)
	Ping(ctx context.Context) error
}

// SubmissionRecorder receives one event per submission attempt. Implementations
// must not block the caller on slow sinks.
type SubmissionRecorder interface {
	Record(ctx context.Context, event domain.SubmissionEvent)
}

// AuditRepository persists submission events.
type AuditRepository interface {
	InsertAttempt(ctx context.Context, event domain.SubmissionEvent) error
}

// AuditReader reads back the submission attempts of one wizard session.
type AuditReader interface {
	SessionAttempts(ctx context.Context, sessionID string) ([]domain.SubmissionEvent, error)
}

// WizardService drives booking wizards across requests. Every call that
// mutates a session serialises on that session.
type WizardService interface {
	Start(ctx context.Context, serviceID, professionalID string) (domain.WizardSnapshot, error)
	Get(ctx context.Context, id string) (domain.WizardSnapshot, error)
	// SetClientFields and SetServiceFields reject the whole batch when any name is unknown.
	SetClientFields(ctx context.Context, id string, fields map[string]string) (domain.WizardSnapshot, error)
	SetServiceFields(ctx context.Context, id string, fields map[string]string) (domain.WizardSnapshot, error)
	Advance(ctx context.Context, id string) (domain.WizardSnapshot, error)
	Retreat(ctx context.Context, id string) (domain.WizardSnapshot, error)
	// Submit returns the resulting snapshot even when the submission failed.
	Submit(ctx context.Context, id string) (domain.WizardSnapshot, error)
	Retry(ctx context.Context, id string) (domain.WizardSnapshot, error)
	Cancel(ctx context.Context, id string) error
}
