package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/servipro/booking-api/internal/core/domain"
)

const releaseTimeout = 2 * time.Second

// releaseScript deletes the lock only while it still carries the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// WizardStore keeps wizard snapshots as JSON strings.
// Key format: wizard:<id> for the snapshot, wizard:lock:<id> for the submit lock.
type WizardStore struct {
	client *redis.Client
	log    zerolog.Logger
}

func NewWizardStore(client *redis.Client, log zerolog.Logger) *WizardStore {
	return &WizardStore{client: client, log: log}
}

func (s *WizardStore) Save(ctx context.Context, snap domain.WizardSnapshot, ttl time.Duration) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode wizard %s: %w", snap.ID, err)
	}
	if err := s.client.Set(ctx, snapshotKey(snap.ID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("save wizard %s: %w", snap.ID, err)
	}
	return nil
}

func (s *WizardStore) Load(ctx context.Context, id string) (domain.WizardSnapshot, error) {
	var snap domain.WizardSnapshot
	payload, err := s.client.Get(ctx, snapshotKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return snap, domain.ErrWizardNotFound
	}
	if err != nil {
		return snap, fmt.Errorf("load wizard %s: %w", id, err)
	}
	if err := json.Unmarshal(payload, &snap); err != nil {
		return snap, fmt.Errorf("decode wizard %s: %w", id, err)
	}
	return snap, nil
}

func (s *WizardStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, snapshotKey(id)).Err(); err != nil {
		return fmt.Errorf("delete wizard %s: %w", id, err)
	}
	return nil
}

// Lock takes wizard:lock:<id> with SET NX and a random token. The returned
// release is idempotent and never removes a lock that expired and was taken
// by someone else.
func (s *WizardStore) Lock(ctx context.Context, id string, ttl time.Duration) (func(), error) {
	token := uuid.NewString()
	ok, err := s.client.SetNX(ctx, lockKey(id), token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("lock wizard %s: %w", id, err)
	}
	if !ok {
		return nil, domain.ErrSubmissionInFlight
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		rctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()
		if err := releaseScript.Run(rctx, s.client, []string{lockKey(id)}, token).Err(); err != nil {
			s.log.Warn().Err(err).Str("session_id", id).Msg("wizard lock release failed")
		}
	}, nil
}

func (s *WizardStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func snapshotKey(id string) string { return "wizard:" + id }

func lockKey(id string) string { return "wizard:lock:" + id }
