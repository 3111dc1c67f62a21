package domain

import "time"

// WizardState is the single tagged state of one booking wizard session.
type WizardState string

const (
	StateCollectingClient  WizardState = "collecting_client"
	StateCollectingService WizardState = "collecting_service"
	StateConfirming        WizardState = "confirming"
	StateSubmitting        WizardState = "submitting"
	StateSubmitted         WizardState = "submitted"
	StateFailed            WizardState = "failed"
	StateClosed            WizardState = "closed"
)

// wizardTransitions defines the allowed state machine edges. Cancellation
// (→ closed) is legal from every state except submitting and closed.
var wizardTransitions = map[WizardState][]WizardState{
	StateCollectingClient:  {StateCollectingService, StateClosed},
	StateCollectingService: {StateConfirming, StateCollectingClient, StateClosed},
	StateConfirming:        {StateSubmitting, StateCollectingService, StateClosed},
	StateSubmitting:        {StateSubmitted, StateFailed},
	StateSubmitted:         {StateClosed},
	StateFailed:            {StateConfirming, StateClosed},
}

// CanTransitionTo reports whether a transition from s to next is valid.
func (s WizardState) CanTransitionTo(next WizardState) bool {
	for _, allowed := range wizardTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition except closing is possible.
func (s WizardState) Terminal() bool {
	return s == StateSubmitted || s == StateClosed
}

// ClientDraft holds the client identity collected in the first wizard step.
type ClientDraft struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName"  validate:"required"`
	Email     string `json:"email"     validate:"required"`
	Phone     string `json:"phone"     validate:"required"`
	Address   string `json:"address"   validate:"required"`
	City      string `json:"city"`
}

// ServiceDraft holds the raw service/schedule inputs collected in the second step.
// Values are kept exactly as entered; parsing happens when the step is validated.
type ServiceDraft struct {
	ServiceID      string `json:"serviceId"      validate:"required"`
	ProfessionalID string `json:"professionalId"`
	Title          string `json:"title"          validate:"required"`
	Description    string `json:"description"`
	UrgencyLevel   string `json:"urgencyLevel"`
	RequestedDate  string `json:"requestedDate"`
	RequestedTime  string `json:"requestedTime"`
	EstimatedPrice string `json:"estimatedPrice"`
	ClientNotes    string `json:"clientNotes"`
}

// WizardSnapshot is the persisted form of a wizard session.
type WizardSnapshot struct {
	ID        string       `json:"id"`
	State     WizardState  `json:"state"`
	Client    ClientDraft  `json:"client"`
	Service   ServiceDraft `json:"service"`
	UserID    string       `json:"userId,omitempty"`
	BookingID string       `json:"bookingId,omitempty"`
	LastError string       `json:"lastError,omitempty"`
	ErrorKind string       `json:"errorKind,omitempty"`
	Attempts  int          `json:"attempts"`
	DismissAt time.Time    `json:"dismissAt,omitzero"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// SubmissionOutcome labels how a submission attempt ended.
type SubmissionOutcome string

const (
	OutcomeSubmitted     SubmissionOutcome = "submitted"
	OutcomeUserFailed    SubmissionOutcome = "user_failed"
	OutcomeBookingFailed SubmissionOutcome = "booking_failed"
	OutcomeInterrupted   SubmissionOutcome = "interrupted" // result never stored
)

// SubmissionEvent is the audit record of one submission attempt.
type SubmissionEvent struct {
	SessionID  string            `json:"session_id"`
	Attempt    int               `json:"attempt"`
	Outcome    SubmissionOutcome `json:"outcome"`
	Email      string            `json:"email"`
	UserID     string            `json:"user_id,omitempty"`
	UserReused bool              `json:"user_reused"`
	BookingID  string            `json:"booking_id,omitempty"`
	ServiceID  string            `json:"service_id"`
	ErrorKind  string            `json:"error_kind,omitempty"`
	Error      string            `json:"error,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}
