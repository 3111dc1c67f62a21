package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/servipro/booking-api/internal/core/domain"
	"github.com/servipro/booking-api/internal/core/ports"
)

type stubCatalog struct {
	forced   bool
	category string
	services []domain.Service
	err      error
}

func (s *stubCatalog) ListActiveServices(_ context.Context, force bool) ([]domain.Service, error) {
	s.forced = force
	return s.services, s.err
}

func (s *stubCatalog) ListByCategory(_ context.Context, category string) ([]domain.Service, error) {
	s.category = category
	return s.services, s.err
}

type stubProfessionals struct {
	got    ports.SearchCriteria
	result []domain.Professional
}

func (s *stubProfessionals) SearchProfessionals(_ context.Context, c ports.SearchCriteria) ([]domain.Professional, error) {
	s.got = c
	return s.result, nil
}

type stubStats struct{}

func (stubStats) GetDashboardStats(context.Context) (*domain.DashboardStats, error) {
	return &domain.DashboardStats{TotalUsers: 10, TotalProfessionals: 0, TotalBookings: 7, TotalServices: 4}, nil
}

func (stubStats) GetRealTimeMetrics(context.Context) (*domain.RealTimeMetrics, error) {
	return &domain.RealTimeMetrics{TodayBookings: 2, WeeklyBookings: 9, OnlineProfessionals: 1}, nil
}

type stubUsers struct {
	got    ports.CreateUserInput
	users  map[string]*domain.User
	recent []domain.User
	limit  int
	err    error
}

func (s *stubUsers) CreateUser(_ context.Context, in ports.CreateUserInput) (*domain.User, error) {
	s.got = in
	if s.err != nil {
		return nil, s.err
	}
	return &domain.User{ID: "u-1", Email: in.Email, FirstName: in.FirstName, Role: domain.RoleClient}, nil
}

func (s *stubUsers) FindUserByEmail(context.Context, string) (*domain.User, error) {
	return nil, domain.ErrNotFound
}

func (s *stubUsers) GetUser(_ context.Context, id string) (*domain.User, error) {
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return nil, &domain.StoreError{Kind: domain.ErrNotFound, Code: domain.CodeNoRows}
}

func (s *stubUsers) ListRecent(_ context.Context, limit int) ([]domain.User, error) {
	s.limit = limit
	return s.recent, nil
}

type stubBookings struct {
	userID string
	role   domain.Role
}

func (s *stubBookings) CreateBooking(context.Context, ports.CreateBookingInput) (*domain.Booking, error) {
	return &domain.Booking{ID: "b-1"}, nil
}

func (s *stubBookings) GetBooking(_ context.Context, id string) (*domain.Booking, error) {
	return &domain.Booking{ID: id, Status: domain.BookingPending, UrgencyLevel: 5}, nil
}

func (s *stubBookings) ListUserBookings(_ context.Context, userID string, role domain.Role) ([]domain.Booking, error) {
	s.userID, s.role = userID, role
	return []domain.Booking{{ID: "b-1", ClientID: userID}}, nil
}

// stubWizards answers every call with snap and err, recording the last field batch.
type stubWizards struct {
	snap      domain.WizardSnapshot
	err       error
	fields    map[string]string
	startArgs [2]string
	cancelled string
}

func (s *stubWizards) Start(_ context.Context, serviceID, professionalID string) (domain.WizardSnapshot, error) {
	s.startArgs = [2]string{serviceID, professionalID}
	return s.snap, s.err
}

func (s *stubWizards) Get(context.Context, string) (domain.WizardSnapshot, error) { return s.snap, s.err }

func (s *stubWizards) SetClientFields(_ context.Context, _ string, f map[string]string) (domain.WizardSnapshot, error) {
	s.fields = f
	return s.snap, s.err
}

func (s *stubWizards) SetServiceFields(_ context.Context, _ string, f map[string]string) (domain.WizardSnapshot, error) {
	s.fields = f
	return s.snap, s.err
}

func (s *stubWizards) Advance(context.Context, string) (domain.WizardSnapshot, error) { return s.snap, s.err }
func (s *stubWizards) Retreat(context.Context, string) (domain.WizardSnapshot, error) { return s.snap, s.err }
func (s *stubWizards) Submit(context.Context, string) (domain.WizardSnapshot, error)  { return s.snap, s.err }
func (s *stubWizards) Retry(context.Context, string) (domain.WizardSnapshot, error)   { return s.snap, s.err }

func (s *stubWizards) Cancel(_ context.Context, id string) error {
	s.cancelled = id
	return s.err
}

type stubAudit struct{}

func (stubAudit) SessionAttempts(_ context.Context, id string) ([]domain.SubmissionEvent, error) {
	return []domain.SubmissionEvent{{SessionID: id, Attempt: 1, Outcome: domain.OutcomeSubmitted}}, nil
}

// newContext builds an echo context with the validator installed.
func newContext(method, target string, body io.Reader) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = NewValidator()
	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

type decodedEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, data any) {
	t.Helper()
	var env decodedEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("invalid json: %v (%s)", err, rec.Body.String())
	}
	if !env.Success {
		t.Fatalf("expected success envelope, got %s", rec.Body.String())
	}
	if data != nil {
		if err := json.Unmarshal(env.Data, data); err != nil {
			t.Fatalf("invalid data: %v", err)
		}
	}
}
