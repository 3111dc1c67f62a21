// Package workflow implements the multi-step booking wizard: client details,
// then service details, then confirmation and a two-step submission that
// ensures the client user exists before creating the booking that references it.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/servipro/booking-api/internal/api/metrics"
	"github.com/servipro/booking-api/internal/core/domain"
	"github.com/servipro/booking-api/internal/core/ports"
)

const (
	// DefaultDismissAfter is how long a submitted wizard stays visible.
	DefaultDismissAfter = 3 * time.Second
	// DefaultCity fills the client city when the caller leaves it blank.
	DefaultCity = "Buenos Aires"
)

// ErrInterrupted is the failure recorded for a submission whose outcome was
// lost. It counts as a connection failure so the wizard can be retried.
var ErrInterrupted = fmt.Errorf("%w: submission interrupted before its outcome was stored", domain.ErrConnectionFailure)

// Deps are the collaborators shared by every wizard instance.
type Deps struct {
	Users        ports.UserService
	Bookings     ports.BookingService
	Policy       DuplicatePolicy
	Clock        ports.Clock
	DismissAfter time.Duration
	DefaultCity  string
	// Recorder, when set, receives one event per submission attempt.
	Recorder ports.SubmissionRecorder
	// Observer, when set, is told about every state change after it happened.
	Observer func(id string, from, to domain.WizardState)
	Logger   zerolog.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Policy == "" {
		d.Policy = PolicyReuse
	}
	if d.Clock == nil {
		d.Clock = ports.SystemClock{}
	}
	if d.DismissAfter <= 0 {
		d.DismissAfter = DefaultDismissAfter
	}
	if d.DefaultCity == "" {
		d.DefaultCity = DefaultCity
	}
	return d
}

// StartOptions pre-seed a new wizard.
type StartOptions struct {
	// ID overrides the generated session id.
	ID             string
	Service        *domain.Service
	ProfessionalID string
}

type edge struct{ from, to domain.WizardState }

// Controller drives one wizard session. All methods are safe for concurrent
// use; store calls run without holding the internal lock.
type Controller struct {
	deps Deps

	mu      sync.Mutex
	snap    domain.WizardSnapshot
	pending []edge
}

// Start opens a wizard in collecting_client with empty drafts.
func Start(deps Deps, opts StartOptions) *Controller {
	deps = deps.withDefaults()
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	snap := domain.WizardSnapshot{
		ID:     id,
		State:  domain.StateCollectingClient,
		Client: domain.ClientDraft{City: deps.DefaultCity},
		Service: domain.ServiceDraft{
			ProfessionalID: opts.ProfessionalID,
			UrgencyLevel:   strconv.Itoa(domain.DefaultUrgency),
			EstimatedPrice: "0",
		},
		UpdatedAt: deps.Clock.Now(),
	}
	if svc := opts.Service; svc != nil {
		snap.Service.ServiceID = svc.ID
		snap.Service.Title = "Servicio de " + svc.Name
		if svc.BasePrice != nil {
			snap.Service.EstimatedPrice = strconv.FormatFloat(*svc.BasePrice, 'f', -1, 64)
		}
	}
	return &Controller{deps: deps, snap: snap}
}

// Restore rebuilds a controller from a persisted snapshot.
func Restore(deps Deps, snap domain.WizardSnapshot) *Controller {
	return &Controller{deps: deps.withDefaults(), snap: snap}
}

func (c *Controller) ID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap.ID
}

func (c *Controller) State() domain.WizardState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap.State
}

// Snapshot returns a copy of the current session.
func (c *Controller) Snapshot() domain.WizardSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

// SetClientField stores value as entered. Changing the email after the user
// was resolved forgets the resolved id, so the next submission resolves it
// again; other client fields keep it. Drafts are frozen once submission has
// started.
func (c *Controller) SetClientField(name, value string) error {
	field, ok := clientFields[name]
	if !ok {
		return unknownField(name)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.editable(); err != nil {
		return err
	}
	dst := field(&c.snap.Client)
	if *dst == value {
		return nil
	}
	if name == FieldEmail && normalizeEmail(*dst) != normalizeEmail(value) {
		c.snap.UserID = ""
	}
	*dst = value
	c.snap.UpdatedAt = c.deps.Clock.Now()
	return nil
}

// SetServiceField stores value as entered; it is parsed when the step is advanced.
func (c *Controller) SetServiceField(name, value string) error {
	field, ok := serviceFields[name]
	if !ok {
		return unknownField(name)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.editable(); err != nil {
		return err
	}
	dst := field(&c.snap.Service)
	if *dst == value {
		return nil
	}
	*dst = value
	c.snap.UpdatedAt = c.deps.Clock.Now()
	return nil
}

func (c *Controller) editable() error {
	switch c.snap.State {
	case domain.StateSubmitting:
		return domain.ErrSubmissionInFlight
	case domain.StateSubmitted, domain.StateClosed:
		return fmt.Errorf("%w: drafts are read-only in %s", domain.ErrInvalidTransition, c.snap.State)
	}
	return nil
}

// Advance moves one step forward when the current step validates. A rejected
// advance keeps the state and every draft value.
func (c *Controller) Advance() (domain.WizardState, error) {
	c.mu.Lock()
	var err error
	switch c.snap.State {
	case domain.StateCollectingClient:
		if verrs := validateClient(c.snap.Client); len(verrs) > 0 {
			err = verrs
		} else {
			c.transition(domain.StateCollectingService)
		}
	case domain.StateCollectingService:
		if verrs := validateService(c.snap.Service); len(verrs) > 0 {
			err = verrs
		} else {
			c.transition(domain.StateConfirming)
		}
	default:
		err = c.invalid("advance")
	}
	state := c.snap.State
	c.mu.Unlock()
	c.flush()
	return state, err
}

// Retreat moves one step back without discarding data.
func (c *Controller) Retreat() (domain.WizardState, error) {
	c.mu.Lock()
	var err error
	switch c.snap.State {
	case domain.StateCollectingService:
		c.transition(domain.StateCollectingClient)
	case domain.StateConfirming:
		c.transition(domain.StateCollectingService)
	default:
		err = c.invalid("retreat")
	}
	state := c.snap.State
	c.mu.Unlock()
	c.flush()
	return state, err
}

// Retry re-enters confirmation after a failed submission, keeping every draft
// and the resolved user id.
func (c *Controller) Retry() (domain.WizardState, error) {
	c.mu.Lock()
	var err error
	if c.snap.State == domain.StateFailed {
		c.snap.LastError = ""
		c.snap.ErrorKind = ""
		c.transition(domain.StateConfirming)
	} else {
		err = c.invalid("retry")
	}
	state := c.snap.State
	c.mu.Unlock()
	c.flush()
	return state, err
}

// Cancel discards all drafts and closes the wizard. It is refused while a
// submission is in flight; closing an already closed wizard is a no-op.
func (c *Controller) Cancel() error {
	c.mu.Lock()
	var err error
	switch c.snap.State {
	case domain.StateSubmitting:
		err = domain.ErrSubmissionInFlight
	case domain.StateClosed:
	default:
		if !c.snap.State.CanTransitionTo(domain.StateClosed) {
			err = c.invalid("cancel")
			break
		}
		c.snap.Client = domain.ClientDraft{}
		c.snap.Service = domain.ServiceDraft{}
		c.snap.UserID = ""
		c.snap.LastError = ""
		c.snap.ErrorKind = ""
		c.transition(domain.StateClosed)
	}
	c.mu.Unlock()
	c.flush()
	return err
}

// BeginSubmit moves confirming to submitting after re-validating both drafts.
// A second caller while the first is in flight gets domain.ErrSubmissionInFlight.
func (c *Controller) BeginSubmit() error {
	c.mu.Lock()
	var err error
	switch c.snap.State {
	case domain.StateSubmitting:
		err = domain.ErrSubmissionInFlight
	case domain.StateConfirming:
		verrs := append(validateClient(c.snap.Client), validateService(c.snap.Service)...)
		if len(verrs) > 0 {
			err = verrs
			break
		}
		c.snap.Attempts++
		c.snap.LastError = ""
		c.snap.ErrorKind = ""
		c.transition(domain.StateSubmitting)
	default:
		err = c.invalid("submit")
	}
	c.mu.Unlock()
	c.flush()
	return err
}

// Submit runs the confirming → submitting → submitted|failed sequence. The
// ensure-user call strictly precedes the booking call; nothing is retried
// automatically and no compensating delete is issued when the booking fails.
func (c *Controller) Submit(ctx context.Context) (domain.WizardState, error) {
	if err := c.BeginSubmit(); err != nil {
		return c.State(), err
	}
	return c.Complete(ctx)
}

// Complete performs the two writes of a submission started with BeginSubmit.
func (c *Controller) Complete(ctx context.Context) (domain.WizardState, error) {
	c.mu.Lock()
	if c.snap.State != domain.StateSubmitting {
		err := c.invalid("complete")
		state := c.snap.State
		c.mu.Unlock()
		return state, err
	}
	snap := c.snap
	c.mu.Unlock()

	log := c.deps.Logger.With().Str("session_id", snap.ID).Int("attempt", snap.Attempts).Logger()
	event := domain.SubmissionEvent{
		SessionID: snap.ID,
		Attempt:   snap.Attempts,
		Email:     normalizeEmail(snap.Client.Email),
		ServiceID: strings.TrimSpace(snap.Service.ServiceID),
	}

	userID := snap.UserID
	if userID == "" {
		id, reused, err := c.ensureUser(ctx, snap.Client)
		if err != nil {
			log.Warn().Err(err).Str("error_kind", domain.Kind(err)).Msg("ensure user failed")
			event.Outcome = domain.OutcomeUserFailed
			return c.fail(ctx, event, err)
		}
		userID = id
		event.UserReused = reused
		c.mu.Lock()
		c.snap.UserID = userID
		c.mu.Unlock()
	} else {
		event.UserReused = true
	}
	event.UserID = userID

	booking, err := c.deps.Bookings.CreateBooking(ctx, bookingInput(userID, snap))
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Str("error_kind", domain.Kind(err)).Msg("create booking failed")
		event.Outcome = domain.OutcomeBookingFailed
		return c.fail(ctx, event, err)
	}

	now := c.deps.Clock.Now()
	c.mu.Lock()
	c.snap.BookingID = booking.ID
	c.snap.DismissAt = now.Add(c.deps.DismissAfter)
	c.transition(domain.StateSubmitted)
	state := c.snap.State
	c.mu.Unlock()
	c.flush()

	log.Info().Str("user_id", userID).Str("booking_id", booking.ID).Msg("booking submitted")
	event.Outcome = domain.OutcomeSubmitted
	event.BookingID = booking.ID
	c.record(ctx, event, now)
	return state, nil
}

func (c *Controller) fail(ctx context.Context, event domain.SubmissionEvent, cause error) (domain.WizardState, error) {
	c.mu.Lock()
	c.snap.LastError = cause.Error()
	c.snap.ErrorKind = domain.Kind(cause)
	c.transition(domain.StateFailed)
	state := c.snap.State
	c.mu.Unlock()
	c.flush()

	event.ErrorKind = domain.Kind(cause)
	event.Error = cause.Error()
	c.record(ctx, event, c.deps.Clock.Now())
	return state, fmt.Errorf("submit booking: %w", cause)
}

// Interrupt fails a submission whose outcome was never stored. Callers must
// hold the session lock, so no attempt can still be running. A booking may or
// may not exist remotely; the retained user id keeps a retry from creating a
// second user.
func (c *Controller) Interrupt(ctx context.Context) (domain.WizardState, error) {
	c.mu.Lock()
	if c.snap.State != domain.StateSubmitting {
		err := c.invalid("interrupt")
		state := c.snap.State
		c.mu.Unlock()
		return state, err
	}
	snap := c.snap
	c.mu.Unlock()

	c.deps.Logger.Warn().Str("session_id", snap.ID).Int("attempt", snap.Attempts).Msg("stale submission interrupted")
	event := domain.SubmissionEvent{
		SessionID: snap.ID,
		Attempt:   snap.Attempts,
		Email:     normalizeEmail(snap.Client.Email),
		ServiceID: strings.TrimSpace(snap.Service.ServiceID),
		UserID:    snap.UserID,
		Outcome:   domain.OutcomeInterrupted,
	}
	return c.fail(ctx, event, ErrInterrupted)
}

// ensureUser creates the client user, applying the duplicate policy when the
// email is already registered.
func (c *Controller) ensureUser(ctx context.Context, d domain.ClientDraft) (string, bool, error) {
	user, err := c.deps.Users.CreateUser(ctx, ports.CreateUserInput{
		Email:     d.Email,
		Phone:     d.Phone,
		FirstName: d.FirstName,
		LastName:  d.LastName,
		Role:      domain.RoleClient,
		City:      d.City,
		Address:   d.Address,
	})
	if err == nil {
		return user.ID, false, nil
	}
	if !errors.Is(err, domain.ErrDuplicateEntity) || c.deps.Policy != PolicyReuse {
		return "", false, err
	}
	existing, lookupErr := c.deps.Users.FindUserByEmail(ctx, d.Email)
	if lookupErr != nil {
		return "", false, fmt.Errorf("resolve existing user: %w", lookupErr)
	}
	return existing.ID, true, nil
}

func bookingInput(userID string, snap domain.WizardSnapshot) ports.CreateBookingInput {
	s := snap.Service
	urgency, _ := parseUrgency(s.UrgencyLevel)
	price, _ := parsePrice(s.EstimatedPrice)
	return ports.CreateBookingInput{
		ClientID:       userID,
		ProfessionalID: s.ProfessionalID,
		ServiceID:      s.ServiceID,
		Title:          s.Title,
		Description:    s.Description,
		Address:        snap.Client.Address,
		City:           snap.Client.City,
		RequestedDate:  s.RequestedDate,
		RequestedTime:  s.RequestedTime,
		UrgencyLevel:   urgency,
		EstimatedPrice: price,
		ClientNotes:    s.ClientNotes,
	}
}

func (c *Controller) record(ctx context.Context, event domain.SubmissionEvent, at time.Time) {
	metrics.BookingSubmissionsTotal.WithLabelValues(string(event.Outcome)).Inc()
	if c.deps.Recorder == nil {
		return
	}
	event.OccurredAt = at
	c.deps.Recorder.Record(ctx, event)
}

// transition must be called with mu held, and only along an edge of the
// wizard transition table.
func (c *Controller) transition(to domain.WizardState) {
	from := c.snap.State
	if !from.CanTransitionTo(to) {
		panic(fmt.Sprintf("workflow: illegal transition %s -> %s", from, to))
	}
	c.snap.State = to
	c.snap.UpdatedAt = c.deps.Clock.Now()
	c.pending = append(c.pending, edge{from: from, to: to})
}

// flush reports queued transitions. It must be called without mu held.
func (c *Controller) flush() {
	c.mu.Lock()
	edges := c.pending
	c.pending = nil
	id := c.snap.ID
	c.mu.Unlock()
	for _, e := range edges {
		metrics.WizardTransitionsTotal.WithLabelValues(string(e.from), string(e.to)).Inc()
		if c.deps.Observer != nil {
			c.deps.Observer(id, e.from, e.to)
		}
	}
}

func (c *Controller) invalid(action string) error {
	return fmt.Errorf("%w: cannot %s from %s", domain.ErrInvalidTransition, action, c.snap.State)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
