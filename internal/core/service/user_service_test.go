package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/servipro/booking-api/internal/core/domain"
	"github.com/servipro/booking-api/internal/core/ports"
)

var discardLogger = zerolog.Nop()

func newUserService(g *fakeGateway) *UserService {
	return NewUserService(g, "Buenos Aires", discardLogger)
}

func TestCreateUser_NormalisesAndDefaults(t *testing.T) {
	g := newFakeGateway()
	svc := newUserService(g)

	user, err := svc.CreateUser(context.Background(), ports.CreateUserInput{
		Email:     "  Ana@Example.COM ",
		Phone:     " +5491111111111 ",
		FirstName: "Ana",
		LastName:  "Ruiz",
		Address:   "Calle Falsa 123",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.Email != "ana@example.com" {
		t.Errorf("email = %q, want ana@example.com", user.Email)
	}
	if user.Phone != "+5491111111111" {
		t.Errorf("phone = %q, want trimmed", user.Phone)
	}
	if user.Role != domain.RoleClient {
		t.Errorf("role = %q, want client", user.Role)
	}
	if user.City != "Buenos Aires" {
		t.Errorf("city = %q, want default", user.City)
	}
	if user.ID == "" {
		t.Error("expected store-assigned id")
	}

	stored := g.rows(ports.TableUsers)
	if len(stored) != 1 {
		t.Fatalf("stored users = %d, want 1", len(stored))
	}
	if stored[0]["source"] != domain.SourceWebsite {
		t.Errorf("source = %v, want %s", stored[0]["source"], domain.SourceWebsite)
	}
}

func TestCreateUser_SplitsCombinedName(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantFirst string
		wantLast  string
	}{
		{"two words", "Ana Ruiz", "Ana", "Ruiz"},
		{"split on first space only", "Ana María Ruiz", "Ana", "María Ruiz"},
		{"single word", "Ana", "Ana", defaultLastName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newUserService(newFakeGateway())
			user, err := svc.CreateUser(context.Background(), ports.CreateUserInput{
				Email: "a@example.com",
				Phone: "1",
				Name:  tt.input,
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if user.FirstName != tt.wantFirst || user.LastName != tt.wantLast {
				t.Errorf("got %q/%q, want %q/%q", user.FirstName, user.LastName, tt.wantFirst, tt.wantLast)
			}
		})
	}
}

func TestCreateUser_MissingRequiredFields(t *testing.T) {
	g := newFakeGateway()
	svc := newUserService(g)

	_, err := svc.CreateUser(context.Background(), ports.CreateUserInput{Email: "   ", FirstName: "Ana"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	var verrs domain.ValidationErrors
	if !errors.As(err, &verrs) || !verrs.Has("email") || !verrs.Has("phone") {
		t.Errorf("expected email and phone field errors, got %v", err)
	}
	if g.callCount("insert:users") != 0 {
		t.Error("validation failure must not reach the store")
	}
}

func TestCreateUser_RejectsUnknownRole(t *testing.T) {
	svc := newUserService(newFakeGateway())
	_, err := svc.CreateUser(context.Background(), ports.CreateUserInput{
		Email: "a@example.com", Phone: "1", Role: domain.Role("admin"),
	})
	var verrs domain.ValidationErrors
	if !errors.As(err, &verrs) || !verrs.Has("role") {
		t.Fatalf("expected role validation error, got %v", err)
	}
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	g := newFakeGateway()
	svc := newUserService(g)
	in := ports.CreateUserInput{Email: "ana@example.com", Phone: "1", FirstName: "Ana"}

	if _, err := svc.CreateUser(context.Background(), in); err != nil {
		t.Fatalf("first create: %v", err)
	}
	in.Email = "ANA@example.com"
	_, err := svc.CreateUser(context.Background(), in)
	if !errors.Is(err, domain.ErrDuplicateEntity) {
		t.Fatalf("expected ErrDuplicateEntity, got %v", err)
	}
	var se *domain.StoreError
	if !errors.As(err, &se) || se.Constraint != "users_email_key" {
		t.Errorf("expected store cause with constraint, got %v", err)
	}
	if got := len(g.rows(ports.TableUsers)); got != 1 {
		t.Errorf("stored users = %d, want 1", got)
	}
}

func TestCreateUser_ConnectionFailurePropagates(t *testing.T) {
	g := newFakeGateway()
	g.insertErr = func(ports.Table) error {
		return &domain.StoreError{Kind: domain.ErrConnectionFailure, Message: "dial tcp: refused"}
	}
	_, err := newUserService(g).CreateUser(context.Background(), ports.CreateUserInput{Email: "a@b.c", Phone: "1"})
	if !errors.Is(err, domain.ErrConnectionFailure) {
		t.Fatalf("expected ErrConnectionFailure, got %v", err)
	}
	if errors.Is(err, domain.ErrDuplicateEntity) {
		t.Error("connection failure must not be tagged as duplicate")
	}
}

func TestFindUserByEmail(t *testing.T) {
	g := newFakeGateway()
	svc := newUserService(g)
	created, err := svc.CreateUser(context.Background(), ports.CreateUserInput{Email: "ana@example.com", Phone: "1", FirstName: "Ana"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	found, err := svc.FindUserByEmail(context.Background(), " Ana@Example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found.ID != created.ID {
		t.Errorf("id = %q, want %q", found.ID, created.ID)
	}

	_, err = svc.FindUserByEmail(context.Background(), "nobody@example.com")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGetUser_NotFound(t *testing.T) {
	_, err := newUserService(newFakeGateway()).GetUser(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListRecent_ClampsLimitAndOrders(t *testing.T) {
	g := newFakeGateway()
	svc := newUserService(g)
	for _, email := range []string{"a@x.com", "b@x.com", "c@x.com"} {
		if _, err := svc.CreateUser(context.Background(), ports.CreateUserInput{Email: email, Phone: "1"}); err != nil {
			t.Fatalf("create %s: %v", email, err)
		}
	}

	users, err := svc.ListRecent(context.Background(), 500)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q := g.lastQuery(); q.Limit != maxListLimit {
		t.Errorf("limit = %d, want %d", q.Limit, maxListLimit)
	}
	if len(users) != 3 || users[0].Email != "c@x.com" {
		t.Errorf("expected newest first, got %+v", users)
	}

	if _, err := svc.ListRecent(context.Background(), 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q := g.lastQuery(); q.Limit != defaultListLimit {
		t.Errorf("limit = %d, want %d", q.Limit, defaultListLimit)
	}
}
