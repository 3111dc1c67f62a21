// Package queue delivers submission audit events to the audit sink off the
// request path.
package queue

import (
	"context"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/servipro/booking-api/internal/api/metrics"
	"github.com/servipro/booking-api/internal/core/domain"
	"github.com/servipro/booking-api/internal/core/ports"
)

const (
	defaultWorkers = 4
	channelBuffer  = 256
	writeTimeout   = 5 * time.Second
)

// Dispatcher routes submission events to a fixed set of workers by hashing the
// wizard session id, so the attempts of one session are written in order.
// It implements ports.SubmissionRecorder.
type Dispatcher struct {
	workers []chan domain.SubmissionEvent
	repo    ports.AuditRepository
	log     zerolog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher creates a Dispatcher with numWorkers shards.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, repo ports.AuditRepository, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan domain.SubmissionEvent, numWorkers),
		repo:    repo,
		log:     log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan domain.SubmissionEvent, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. They run until Stop.
func (d *Dispatcher) Start() {
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(i, ch)
	}
}

// Stop refuses new events and waits until every queued event was written or
// ctx is done. It must be called before the audit sink is disconnected.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		for _, ch := range d.workers {
			close(ch)
		}
	}
	d.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(drained)
	}()
	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Record hands the event to its shard. It never blocks: when the shard is
// full or the dispatcher is stopped the event is dropped and logged.
func (d *Dispatcher) Record(_ context.Context, event domain.SubmissionEvent) {
	idx := d.shardIndex(event.SessionID)
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.log.Warn().Str("session_id", event.SessionID).Int("attempt", event.Attempt).Msg("audit dispatcher stopped, dropping submission event")
		return
	}
	select {
	case d.workers[idx] <- event:
		metrics.AuditQueueDepth.WithLabelValues(strconv.Itoa(idx)).Set(float64(len(d.workers[idx])))
	default:
		d.log.Warn().
			Str("session_id", event.SessionID).
			Int("attempt", event.Attempt).
			Int("worker_id", idx).
			Msg("audit queue full, dropping submission event")
	}
}

// shardIndex maps a session id deterministically to a worker index.
func (d *Dispatcher) shardIndex(sessionID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sessionID))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(id int, ch <-chan domain.SubmissionEvent) {
	defer d.wg.Done()
	label := strconv.Itoa(id)
	for event := range ch {
		metrics.AuditQueueDepth.WithLabelValues(label).Set(float64(len(ch)))
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := d.repo.InsertAttempt(ctx, event)
		cancel()
		if err != nil {
			d.log.Error().Err(err).
				Str("session_id", event.SessionID).
				Int("attempt", event.Attempt).
				Int("worker_id", id).
				Msg("audit write failed")
		}
	}
}
