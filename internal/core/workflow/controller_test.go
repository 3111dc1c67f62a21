package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/servipro/booking-api/internal/core/domain"
	"github.com/servipro/booking-api/internal/core/ports"
)

// ---------------------------------------------------------------------------
// Stubs
// ---------------------------------------------------------------------------

type stubUsers struct {
	mu        sync.Mutex
	byEmail   map[string]domain.User
	created   []ports.CreateUserInput
	lookups   int
	createErr error
}

func newStubUsers() *stubUsers {
	return &stubUsers{byEmail: make(map[string]domain.User)}
}

func (s *stubUsers) CreateUser(_ context.Context, in ports.CreateUserInput) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return nil, s.createErr
	}
	email := normalizeEmail(in.Email)
	if _, ok := s.byEmail[email]; ok {
		cause := &domain.StoreError{Kind: domain.ErrConstraintViolation, Code: domain.CodeUniqueViolation, Constraint: "users_email_key"}
		return nil, fmt.Errorf("create user: %w: %w", domain.ErrDuplicateEntity, cause)
	}
	s.created = append(s.created, in)
	u := domain.User{ID: fmt.Sprintf("user-%d", len(s.byEmail)+1), Email: email, FirstName: in.FirstName, LastName: in.LastName, Role: in.Role}
	s.byEmail[email] = u
	return &u, nil
}

func (s *stubUsers) FindUserByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups++
	u, ok := s.byEmail[normalizeEmail(email)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &u, nil
}

func (s *stubUsers) GetUser(context.Context, string) (*domain.User, error) {
	return nil, domain.ErrNotFound
}

func (s *stubUsers) ListRecent(context.Context, int) ([]domain.User, error) { return nil, nil }

func (s *stubUsers) createdCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.created)
}

type stubBookings struct {
	mu      sync.Mutex
	created []ports.CreateBookingInput
	err     error
	// entered and release, when set, make CreateBooking block until release is closed.
	entered chan struct{}
	release chan struct{}
}

func (s *stubBookings) CreateBooking(_ context.Context, in ports.CreateBookingInput) (*domain.Booking, error) {
	if s.entered != nil {
		close(s.entered)
		<-s.release
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.created = append(s.created, in)
	return &domain.Booking{
		ID:           fmt.Sprintf("booking-%d", len(s.created)),
		ClientID:     in.ClientID,
		ServiceID:    in.ServiceID,
		Title:        in.Title,
		UrgencyLevel: in.UrgencyLevel,
		Status:       domain.BookingPending,
	}, nil
}

func (s *stubBookings) GetBooking(context.Context, string) (*domain.Booking, error) {
	return nil, domain.ErrNotFound
}

func (s *stubBookings) ListUserBookings(context.Context, string, domain.Role) ([]domain.Booking, error) {
	return nil, nil
}

func (s *stubBookings) createdInputs() []ports.CreateBookingInput {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ports.CreateBookingInput(nil), s.created...)
}

type recorderStub struct {
	mu     sync.Mutex
	events []domain.SubmissionEvent
}

func (r *recorderStub) Record(_ context.Context, e domain.SubmissionEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

var testNow = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

type harness struct {
	users    *stubUsers
	bookings *stubBookings
	recorder *recorderStub
	deps     Deps
}

func newHarness(policy DuplicatePolicy) *harness {
	h := &harness{users: newStubUsers(), bookings: &stubBookings{}, recorder: &recorderStub{}}
	h.deps = Deps{
		Users:    h.users,
		Bookings: h.bookings,
		Policy:   policy,
		Clock:    fixedClock{now: testNow},
		Recorder: h.recorder,
		Logger:   zerolog.Nop(),
	}
	return h
}

var plumbing = &domain.Service{ID: "svc-1", Name: "Plumbing"}

func fillAna(t *testing.T, c *Controller) {
	t.Helper()
	for name, value := range map[string]string{
		FieldFirstName: "Ana",
		FieldLastName:  "Ruiz",
		FieldEmail:     "ana@example.com",
		FieldPhone:     "+5491111111111",
		FieldAddress:   "Calle Falsa 123",
		FieldCity:      "Buenos Aires",
	} {
		require.NoError(t, c.SetClientField(name, value))
	}
}

// confirmingAna drives a wizard for the reference scenario up to confirming.
func confirmingAna(t *testing.T, deps Deps) *Controller {
	t.Helper()
	c := Start(deps, StartOptions{Service: plumbing})
	fillAna(t, c)
	state, err := c.Advance()
	require.NoError(t, err)
	require.Equal(t, domain.StateCollectingService, state)

	require.NoError(t, c.SetServiceField(FieldTitle, "Fix leaking faucet"))
	require.NoError(t, c.SetServiceField(FieldUrgencyLevel, "4"))
	state, err = c.Advance()
	require.NoError(t, err)
	require.Equal(t, domain.StateConfirming, state)
	return c
}

// ---------------------------------------------------------------------------
// Drafts and step guards
// ---------------------------------------------------------------------------

func TestStart_Defaults(t *testing.T) {
	c := Start(newHarness(PolicyReuse).deps, StartOptions{})
	snap := c.Snapshot()

	assert.NotEmpty(t, snap.ID)
	assert.Equal(t, domain.StateCollectingClient, snap.State)
	assert.Equal(t, DefaultCity, snap.Client.City)
	assert.Equal(t, "3", snap.Service.UrgencyLevel)
	assert.Equal(t, "0", snap.Service.EstimatedPrice)
	assert.Empty(t, snap.Service.ServiceID)
}

func TestStart_PreSeededService(t *testing.T) {
	price := 15000.0
	svc := &domain.Service{ID: "svc-1", Name: "Plomería", BasePrice: &price}

	snap := Start(newHarness(PolicyReuse).deps, StartOptions{Service: svc, ProfessionalID: "pro-7"}).Snapshot()

	assert.Equal(t, "svc-1", snap.Service.ServiceID)
	assert.Equal(t, "Servicio de Plomería", snap.Service.Title)
	assert.Equal(t, "15000", snap.Service.EstimatedPrice)
	assert.Equal(t, "pro-7", snap.Service.ProfessionalID)
}

func TestAdvance_ClientStepReportsEachMissingField(t *testing.T) {
	for _, missing := range []string{FieldFirstName, FieldLastName, FieldEmail, FieldPhone, FieldAddress} {
		t.Run(missing, func(t *testing.T) {
			c := Start(newHarness(PolicyReuse).deps, StartOptions{})
			fillAna(t, c)
			require.NoError(t, c.SetClientField(missing, "   "))

			state, err := c.Advance()
			assert.Equal(t, domain.StateCollectingClient, state)
			require.ErrorIs(t, err, domain.ErrValidation)

			var verrs domain.ValidationErrors
			require.ErrorAs(t, err, &verrs)
			assert.Equal(t, []string{missing}, verrs.Fields())
			assert.Equal(t, "   ", fieldValue(c.Snapshot().Client, missing), "rejected advance must keep the draft")
		})
	}
}

func fieldValue(d domain.ClientDraft, name string) string {
	return *clientFields[name](&d)
}

func TestAdvance_ServiceStepGuards(t *testing.T) {
	tests := []struct {
		name  string
		field string
		value string
	}{
		{"no service", FieldServiceID, ""},
		{"blank title", FieldTitle, "  "},
		{"urgency zero", FieldUrgencyLevel, "0"},
		{"urgency six", FieldUrgencyLevel, "6"},
		{"urgency negative", FieldUrgencyLevel, "-2"},
		{"urgency fractional", FieldUrgencyLevel, "3.5"},
		{"urgency text", FieldUrgencyLevel, "high"},
		{"negative price", FieldEstimatedPrice, "-1"},
		{"price text", FieldEstimatedPrice, "free"},
		{"bad date", FieldRequestedDate, "10/05/2024"},
		{"bad time", FieldRequestedTime, "9am"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Start(newHarness(PolicyReuse).deps, StartOptions{Service: plumbing})
			fillAna(t, c)
			_, err := c.Advance()
			require.NoError(t, err)

			require.NoError(t, c.SetServiceField(tt.field, tt.value))
			state, err := c.Advance()

			assert.Equal(t, domain.StateCollectingService, state)
			var verrs domain.ValidationErrors
			require.ErrorAs(t, err, &verrs)
			assert.True(t, verrs.Has(tt.field), "expected error on %s, got %v", tt.field, verrs)
			snap := c.Snapshot()
			assert.Equal(t, tt.value, *serviceFields[tt.field](&snap.Service), "value must not be coerced")
		})
	}
}

func TestAdvance_ZeroPriceIsValid(t *testing.T) {
	c := Start(newHarness(PolicyReuse).deps, StartOptions{Service: plumbing})
	fillAna(t, c)
	_, err := c.Advance()
	require.NoError(t, err)
	require.NoError(t, c.SetServiceField(FieldEstimatedPrice, "0"))

	state, err := c.Advance()
	require.NoError(t, err)
	assert.Equal(t, domain.StateConfirming, state)
}

func TestSetField_IdempotentAndOffline(t *testing.T) {
	h := newHarness(PolicyReuse)
	c := Start(h.deps, StartOptions{})

	require.NoError(t, c.SetClientField(FieldEmail, "ana@example.com"))
	first := c.Snapshot()
	require.NoError(t, c.SetClientField(FieldEmail, "ana@example.com"))

	assert.Equal(t, first, c.Snapshot())
	assert.Zero(t, h.users.createdCount())
	assert.Zero(t, h.users.lookups)
}

func TestSetField_UnknownName(t *testing.T) {
	c := Start(newHarness(PolicyReuse).deps, StartOptions{})
	assert.ErrorIs(t, c.SetClientField("nickname", "x"), domain.ErrUnknownField)
	assert.ErrorIs(t, c.SetServiceField("color", "x"), domain.ErrUnknownField)
}

func TestRetreat_KeepsData(t *testing.T) {
	c := confirmingAna(t, newHarness(PolicyReuse).deps)

	state, err := c.Retreat()
	require.NoError(t, err)
	assert.Equal(t, domain.StateCollectingService, state)

	state, err = c.Retreat()
	require.NoError(t, err)
	assert.Equal(t, domain.StateCollectingClient, state)

	_, err = c.Retreat()
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	snap := c.Snapshot()
	assert.Equal(t, "Ana", snap.Client.FirstName)
	assert.Equal(t, "Fix leaking faucet", snap.Service.Title)
}

func TestSubmit_OnlyFromConfirming(t *testing.T) {
	c := Start(newHarness(PolicyReuse).deps, StartOptions{})
	state, err := c.Submit(context.Background())
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Equal(t, domain.StateCollectingClient, state)
}

// ---------------------------------------------------------------------------
// Submission
// ---------------------------------------------------------------------------

func TestSubmit_EndToEnd(t *testing.T) {
	h := newHarness(PolicyReuse)
	var transitions []string
	h.deps.Observer = func(_ string, from, to domain.WizardState) {
		transitions = append(transitions, string(from)+">"+string(to))
	}
	c := confirmingAna(t, h.deps)

	state, err := c.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.StateSubmitted, state)

	require.Len(t, h.users.created, 1)
	assert.Equal(t, "ana@example.com", h.users.created[0].Email)
	assert.Equal(t, domain.RoleClient, h.users.created[0].Role)

	bookings := h.bookings.createdInputs()
	require.Len(t, bookings, 1)
	assert.Equal(t, "Fix leaking faucet", bookings[0].Title)
	assert.Equal(t, 4, bookings[0].UrgencyLevel)
	assert.Equal(t, "svc-1", bookings[0].ServiceID)
	assert.Equal(t, "user-1", bookings[0].ClientID)
	assert.Equal(t, "Calle Falsa 123", bookings[0].Address)

	snap := c.Snapshot()
	assert.Equal(t, "booking-1", snap.BookingID)
	assert.Equal(t, "user-1", snap.UserID)
	assert.Equal(t, testNow.Add(DefaultDismissAfter), snap.DismissAt)
	assert.Equal(t, 1, snap.Attempts)

	assert.Equal(t, []string{
		"collecting_client>collecting_service",
		"collecting_service>confirming",
		"confirming>submitting",
		"submitting>submitted",
	}, transitions)

	require.Len(t, h.recorder.events, 1)
	ev := h.recorder.events[0]
	assert.Equal(t, domain.OutcomeSubmitted, ev.Outcome)
	assert.Equal(t, "booking-1", ev.BookingID)
	assert.False(t, ev.UserReused)
	assert.Equal(t, testNow, ev.OccurredAt)
}

func TestSubmit_DuplicateEmailReuse(t *testing.T) {
	h := newHarness(PolicyReuse)
	first := confirmingAna(t, h.deps)
	_, err := first.Submit(context.Background())
	require.NoError(t, err)

	second := confirmingAna(t, h.deps)
	state, err := second.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.StateSubmitted, state)

	assert.Equal(t, 1, h.users.createdCount(), "no second user row")
	bookings := h.bookings.createdInputs()
	require.Len(t, bookings, 2)
	assert.Equal(t, bookings[0].ClientID, bookings[1].ClientID, "second booking references the existing user")
	assert.Equal(t, 1, h.users.lookups)
	assert.True(t, h.recorder.events[1].UserReused)
}

func TestSubmit_DuplicateEmailReject(t *testing.T) {
	h := newHarness(PolicyReject)
	_, err := confirmingAna(t, h.deps).Submit(context.Background())
	require.NoError(t, err)

	second := confirmingAna(t, h.deps)
	state, err := second.Submit(context.Background())
	assert.Equal(t, domain.StateFailed, state)
	assert.ErrorIs(t, err, domain.ErrDuplicateEntity)

	assert.Len(t, h.bookings.createdInputs(), 1, "no booking for the rejected attempt")
	assert.Zero(t, h.users.lookups, "reject policy never looks the user up")
	snap := second.Snapshot()
	assert.Equal(t, "duplicate_entity", snap.ErrorKind)
	assert.Empty(t, snap.UserID)
	assert.Equal(t, domain.OutcomeUserFailed, h.recorder.events[1].Outcome)
}

func TestSubmit_UserStepFailureSkipsBooking(t *testing.T) {
	h := newHarness(PolicyReuse)
	h.users.createErr = &domain.StoreError{Kind: domain.ErrConnectionFailure}
	c := confirmingAna(t, h.deps)

	state, err := c.Submit(context.Background())
	assert.Equal(t, domain.StateFailed, state)
	assert.ErrorIs(t, err, domain.ErrConnectionFailure)
	assert.Empty(t, h.bookings.createdInputs())
}

func TestSubmit_ConnectionFailureOnBookingThenRetry(t *testing.T) {
	h := newHarness(PolicyReuse)
	h.bookings.err = &domain.StoreError{Kind: domain.ErrConnectionFailure, Message: "dial tcp: i/o timeout"}
	c := confirmingAna(t, h.deps)

	state, err := c.Submit(context.Background())
	assert.Equal(t, domain.StateFailed, state)
	require.ErrorIs(t, err, domain.ErrConnectionFailure)

	snap := c.Snapshot()
	assert.Equal(t, "user-1", snap.UserID, "created user id is retained")
	assert.Equal(t, "connection_failure", snap.ErrorKind)
	assert.Equal(t, "Fix leaking faucet", snap.Service.Title, "drafts survive the failure")

	h.bookings.mu.Lock()
	h.bookings.err = nil
	h.bookings.mu.Unlock()

	state, err = c.Retry()
	require.NoError(t, err)
	assert.Equal(t, domain.StateConfirming, state)
	assert.Empty(t, c.Snapshot().LastError)

	state, err = c.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.StateSubmitted, state)

	assert.Equal(t, 1, h.users.createdCount(), "retry must not recreate the user")
	assert.Zero(t, h.users.lookups)
	bookings := h.bookings.createdInputs()
	require.Len(t, bookings, 1)
	assert.Equal(t, "user-1", bookings[0].ClientID)
	assert.Equal(t, 2, c.Snapshot().Attempts)

	require.Len(t, h.recorder.events, 2)
	assert.Equal(t, domain.OutcomeBookingFailed, h.recorder.events[0].Outcome)
	assert.Equal(t, domain.OutcomeSubmitted, h.recorder.events[1].Outcome)
}

func TestSubmit_ClientEditAfterFailureForgetsUser(t *testing.T) {
	h := newHarness(PolicyReuse)
	h.bookings.err = &domain.StoreError{Kind: domain.ErrConnectionFailure}
	c := confirmingAna(t, h.deps)
	_, _ = c.Submit(context.Background())
	require.Equal(t, "user-1", c.Snapshot().UserID)

	require.NoError(t, c.SetClientField(FieldEmail, " ANA@example.com "))
	assert.Equal(t, "user-1", c.Snapshot().UserID, "same normalized email keeps the user")

	require.NoError(t, c.SetClientField(FieldEmail, "ana.ruiz@example.com"))
	assert.Empty(t, c.Snapshot().UserID)
}

func TestSubmit_RejectPolicyRetryAfterAddressEditKeepsUser(t *testing.T) {
	h := newHarness(PolicyReject)
	h.bookings.err = &domain.StoreError{Kind: domain.ErrConnectionFailure}
	c := confirmingAna(t, h.deps)

	state, err := c.Submit(context.Background())
	require.ErrorIs(t, err, domain.ErrConnectionFailure)
	require.Equal(t, domain.StateFailed, state)

	h.bookings.mu.Lock()
	h.bookings.err = nil
	h.bookings.mu.Unlock()

	require.NoError(t, c.SetClientField(FieldAddress, "Avenida Siempreviva 742"))
	require.NoError(t, c.SetClientField(FieldPhone, "+5491122223333"))
	assert.Equal(t, "user-1", c.Snapshot().UserID)

	_, err = c.Retry()
	require.NoError(t, err)
	state, err = c.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.StateSubmitted, state)

	assert.Equal(t, 1, h.users.createdCount(), "retry must not recreate the user")
	bookings := h.bookings.createdInputs()
	require.Len(t, bookings, 1)
	assert.Equal(t, "user-1", bookings[0].ClientID)
	assert.Equal(t, "Avenida Siempreviva 742", bookings[0].Address)
}

func TestSubmit_ConcurrentSecondCallRejected(t *testing.T) {
	h := newHarness(PolicyReuse)
	h.bookings.entered = make(chan struct{})
	h.bookings.release = make(chan struct{})
	c := confirmingAna(t, h.deps)

	done := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background())
		done <- err
	}()
	<-h.bookings.entered

	state, err := c.Submit(context.Background())
	assert.ErrorIs(t, err, domain.ErrSubmissionInFlight)
	assert.Equal(t, domain.StateSubmitting, state)
	assert.ErrorIs(t, c.Cancel(), domain.ErrSubmissionInFlight, "cancel is disabled mid-submission")
	assert.ErrorIs(t, c.SetClientField(FieldPhone, "1"), domain.ErrSubmissionInFlight)

	close(h.bookings.release)
	require.NoError(t, <-done)
	assert.Equal(t, domain.StateSubmitted, c.State())
	assert.Len(t, h.bookings.createdInputs(), 1)
}

func TestInterrupt_FailsStoredSubmission(t *testing.T) {
	h := newHarness(PolicyReuse)
	c := confirmingAna(t, h.deps)
	require.NoError(t, c.BeginSubmit())
	stored := c.Snapshot()
	stored.UserID = "user-1"

	r := Restore(h.deps, stored)
	state, err := r.Interrupt(context.Background())
	require.ErrorIs(t, err, ErrInterrupted)
	assert.Equal(t, domain.StateFailed, state)

	snap := r.Snapshot()
	assert.Equal(t, "connection_failure", snap.ErrorKind)
	assert.Equal(t, "user-1", snap.UserID)
	assert.Zero(t, h.users.createdCount())
	require.Len(t, h.recorder.events, 1)
	assert.Equal(t, domain.OutcomeInterrupted, h.recorder.events[0].Outcome)

	state, err = r.Retry()
	require.NoError(t, err)
	assert.Equal(t, domain.StateConfirming, state)

	_, err = r.Interrupt(context.Background())
	assert.ErrorIs(t, err, domain.ErrInvalidTransition, "only a submitting wizard can be interrupted")
}

// ---------------------------------------------------------------------------
// Cancellation
// ---------------------------------------------------------------------------

func TestCancel_DiscardsDrafts(t *testing.T) {
	h := newHarness(PolicyReuse)
	c := confirmingAna(t, h.deps)

	require.NoError(t, c.Cancel())
	snap := c.Snapshot()
	assert.Equal(t, domain.StateClosed, snap.State)
	assert.Equal(t, domain.ClientDraft{}, snap.Client)
	assert.Equal(t, domain.ServiceDraft{}, snap.Service)
	assert.Zero(t, h.users.createdCount(), "cancel before submitting has no side effects")

	_, err := c.Advance()
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.NoError(t, c.Cancel(), "closing twice is a no-op")
}

func TestCancel_FromEveryPreSubmitState(t *testing.T) {
	deps := newHarness(PolicyReuse).deps
	steps := []func(*testing.T, *Controller){
		func(*testing.T, *Controller) {},
		func(t *testing.T, c *Controller) { fillAna(t, c); _, _ = c.Advance() },
	}
	for i, step := range steps {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			c := Start(deps, StartOptions{Service: plumbing})
			step(t, c)
			require.NoError(t, c.Cancel())
			assert.Equal(t, domain.StateClosed, c.State())
		})
	}
}

func TestRestore_ContinuesFromSnapshot(t *testing.T) {
	h := newHarness(PolicyReuse)
	snap := confirmingAna(t, h.deps).Snapshot()

	c := Restore(h.deps, snap)
	state, err := c.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.StateSubmitted, state)
	assert.Equal(t, snap.ID, c.ID())
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyReuse, p)

	p, err = ParsePolicy(" Reject ")
	require.NoError(t, err)
	assert.Equal(t, PolicyReject, p)

	_, err = ParsePolicy("merge")
	assert.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrValidation))
}
