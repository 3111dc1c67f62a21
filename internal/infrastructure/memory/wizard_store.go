// Package memory provides an in-process WizardStore for single-instance
// deployments and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/servipro/booking-api/internal/core/domain"
	"github.com/servipro/booking-api/internal/core/ports"
)

type entry struct {
	snap      domain.WizardSnapshot
	expiresAt time.Time
}

type WizardStore struct {
	mu    sync.Mutex
	clock ports.Clock
	items map[string]entry
	locks map[string]time.Time
}

func NewWizardStore(clock ports.Clock) *WizardStore {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	return &WizardStore{
		clock: clock,
		items: make(map[string]entry),
		locks: make(map[string]time.Time),
	}
}

func (s *WizardStore) Save(_ context.Context, snap domain.WizardSnapshot, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[snap.ID] = entry{snap: snap, expiresAt: s.clock.Now().Add(ttl)}
	return nil
}

func (s *WizardStore) Load(_ context.Context, id string) (domain.WizardSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[id]
	if !ok {
		return domain.WizardSnapshot{}, domain.ErrWizardNotFound
	}
	if !s.clock.Now().Before(e.expiresAt) {
		delete(s.items, id)
		return domain.WizardSnapshot{}, domain.ErrWizardNotFound
	}
	return e.snap, nil
}

func (s *WizardStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
	return nil
}

// Lock grants the session to one holder until release is called or ttl elapses.
func (s *WizardStore) Lock(_ context.Context, id string, ttl time.Duration) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	if until, held := s.locks[id]; held && now.Before(until) {
		return nil, domain.ErrSubmissionInFlight
	}
	until := now.Add(ttl)
	s.locks[id] = until
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if s.locks[id].Equal(until) {
				delete(s.locks, id)
			}
		})
	}, nil
}

func (s *WizardStore) Ping(context.Context) error { return nil }

// Len reports the number of stored sessions, expired ones included.
func (s *WizardStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
