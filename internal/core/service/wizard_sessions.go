package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/servipro/booking-api/internal/core/domain"
	"github.com/servipro/booking-api/internal/core/ports"
	"github.com/servipro/booking-api/internal/core/workflow"
)

const (
	DefaultSessionTTL = 30 * time.Minute
	// sessionLockTTL bounds how long a crashed holder can block a session.
	sessionLockTTL = 30 * time.Second
	// submitTimeout and persistTimeout keep a submission inside the lock TTL.
	submitTimeout  = 15 * time.Second
	persistTimeout = 5 * time.Second
)

// WizardSessions keeps booking wizards alive across requests. Every mutating
// call holds the session lock for its whole load-modify-save cycle.
type WizardSessions struct {
	store   ports.WizardStore
	catalog ports.CatalogService
	deps    workflow.Deps
	ttl     time.Duration
	logger  zerolog.Logger
}

func NewWizardSessions(
	store ports.WizardStore,
	catalog ports.CatalogService,
	deps workflow.Deps,
	ttl time.Duration,
	logger zerolog.Logger,
) *WizardSessions {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if deps.Clock == nil {
		deps.Clock = ports.SystemClock{}
	}
	return &WizardSessions{store: store, catalog: catalog, deps: deps, ttl: ttl, logger: logger}
}

// Start opens a wizard, optionally pre-seeded with an active service and a
// professional.
func (s *WizardSessions) Start(ctx context.Context, serviceID, professionalID string) (domain.WizardSnapshot, error) {
	opts := workflow.StartOptions{ProfessionalID: strings.TrimSpace(professionalID)}
	if id := strings.TrimSpace(serviceID); id != "" {
		svc, err := s.findService(ctx, id)
		if err != nil {
			return domain.WizardSnapshot{}, err
		}
		opts.Service = svc
	}
	snap := workflow.Start(s.deps, opts).Snapshot()
	if err := s.save(ctx, snap); err != nil {
		return domain.WizardSnapshot{}, err
	}
	s.logger.Info().Str("session_id", snap.ID).Str("service_id", snap.Service.ServiceID).Msg("wizard started")
	return snap, nil
}

func (s *WizardSessions) findService(ctx context.Context, id string) (*domain.Service, error) {
	services, err := s.catalog.ListActiveServices(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("start wizard: %w", err)
	}
	for i := range services {
		if services[i].ID == id {
			return &services[i], nil
		}
	}
	return nil, domain.ValidationErrors{{Field: workflow.FieldServiceID, Reason: "is not an active service"}}
}

// Get returns the current snapshot without locking. A stale submitting state
// is reported as stored until the next locked call fails it.
func (s *WizardSessions) Get(ctx context.Context, id string) (domain.WizardSnapshot, error) {
	return s.store.Load(ctx, id)
}

// SetClientFields applies several client draft edits at once. Unknown names
// reject the whole batch before anything is applied.
func (s *WizardSessions) SetClientFields(ctx context.Context, id string, fields map[string]string) (domain.WizardSnapshot, error) {
	return s.setFields(ctx, id, fields, (*workflow.Controller).SetClientField)
}

// SetServiceFields applies several service draft edits at once.
func (s *WizardSessions) SetServiceFields(ctx context.Context, id string, fields map[string]string) (domain.WizardSnapshot, error) {
	return s.setFields(ctx, id, fields, (*workflow.Controller).SetServiceField)
}

func (s *WizardSessions) setFields(
	ctx context.Context,
	id string,
	fields map[string]string,
	set func(*workflow.Controller, string, string) error,
) (domain.WizardSnapshot, error) {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	return s.mutate(ctx, id, func(c *workflow.Controller) error {
		trial := workflow.Restore(s.deps, c.Snapshot())
		var verrs domain.ValidationErrors
		for _, name := range names {
			if err := set(trial, name, fields[name]); errors.Is(err, domain.ErrUnknownField) {
				verrs = append(verrs, domain.FieldError{Field: name, Reason: "is not a known field"})
			} else if err != nil {
				return err
			}
		}
		if len(verrs) > 0 {
			return verrs
		}
		for _, name := range names {
			if err := set(c, name, fields[name]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *WizardSessions) Advance(ctx context.Context, id string) (domain.WizardSnapshot, error) {
	return s.mutate(ctx, id, func(c *workflow.Controller) error {
		_, err := c.Advance()
		return err
	})
}

func (s *WizardSessions) Retreat(ctx context.Context, id string) (domain.WizardSnapshot, error) {
	return s.mutate(ctx, id, func(c *workflow.Controller) error {
		_, err := c.Retreat()
		return err
	})
}

func (s *WizardSessions) Retry(ctx context.Context, id string) (domain.WizardSnapshot, error) {
	return s.mutate(ctx, id, func(c *workflow.Controller) error {
		_, err := c.Retry()
		return err
	})
}

// Submit runs the two-step submission. The submitting snapshot is saved before
// any remote call so concurrent readers and submitters observe it. Once that
// save succeeded the remote writes and the outcome save no longer follow the
// caller's cancellation.
func (s *WizardSessions) Submit(ctx context.Context, id string) (domain.WizardSnapshot, error) {
	release, err := s.store.Lock(ctx, id, sessionLockTTL)
	if err != nil {
		return domain.WizardSnapshot{}, err
	}
	defer release()

	ctrl, snap, err := s.restore(ctx, id)
	if err != nil {
		return domain.WizardSnapshot{}, err
	}
	if err := ctrl.BeginSubmit(); err != nil {
		return ctrl.Snapshot(), err
	}
	if err := s.save(ctx, ctrl.Snapshot()); err != nil {
		return snap, err
	}

	work, cancel := context.WithTimeout(context.WithoutCancel(ctx), submitTimeout)
	_, submitErr := ctrl.Complete(work)
	cancel()

	out := ctrl.Snapshot()
	if err := s.persist(ctx, out); err != nil {
		s.logger.Error().Err(err).Str("session_id", id).Str("state", string(out.State)).Msg("failed to persist submission result")
		if submitErr == nil {
			return out, err
		}
	}
	return out, submitErr
}

// Cancel closes the wizard and forgets it.
func (s *WizardSessions) Cancel(ctx context.Context, id string) error {
	release, err := s.store.Lock(ctx, id, sessionLockTTL)
	if err != nil {
		return err
	}
	defer release()

	ctrl, snap, err := s.restore(ctx, id)
	if err != nil {
		return err
	}
	if err := ctrl.Cancel(); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("cancel wizard: %w", err)
	}
	s.logger.Info().Str("session_id", id).Str("from", string(snap.State)).Msg("wizard cancelled")
	return nil
}

func (s *WizardSessions) mutate(ctx context.Context, id string, op func(*workflow.Controller) error) (domain.WizardSnapshot, error) {
	release, err := s.store.Lock(ctx, id, sessionLockTTL)
	if err != nil {
		return domain.WizardSnapshot{}, err
	}
	defer release()

	ctrl, snap, err := s.restore(ctx, id)
	if err != nil {
		return domain.WizardSnapshot{}, err
	}
	opErr := op(ctrl)
	out := ctrl.Snapshot()
	if out != snap {
		if err := s.save(ctx, out); err != nil {
			return snap, err
		}
	}
	return out, opErr
}

// restore loads the session for a caller holding its lock. A stored
// submitting state can then only belong to an attempt that ended without
// storing its outcome, so it is failed before anything else happens.
func (s *WizardSessions) restore(ctx context.Context, id string) (*workflow.Controller, domain.WizardSnapshot, error) {
	snap, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, snap, err
	}
	ctrl := workflow.Restore(s.deps, snap)
	if snap.State != domain.StateSubmitting {
		return ctrl, snap, nil
	}
	ctrl.Interrupt(ctx)
	recovered := ctrl.Snapshot()
	if err := s.save(ctx, recovered); err != nil {
		return nil, snap, err
	}
	return ctrl, recovered, nil
}

// persist saves a submission outcome even when ctx is already done.
func (s *WizardSessions) persist(ctx context.Context, snap domain.WizardSnapshot) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	return s.save(ctx, snap)
}

// save stores snap for the session TTL; a submitted wizard only lives until
// its dismissal instant.
func (s *WizardSessions) save(ctx context.Context, snap domain.WizardSnapshot) error {
	ttl := s.ttl
	if snap.State == domain.StateSubmitted && !snap.DismissAt.IsZero() {
		ttl = snap.DismissAt.Sub(s.deps.Clock.Now())
		if ttl < time.Second {
			ttl = time.Second
		}
	}
	if err := s.store.Save(ctx, snap, ttl); err != nil {
		return fmt.Errorf("save wizard %s: %w", snap.ID, err)
	}
	return nil
}
