// Package outbox is the durable, ordered log of deferred requests captured
// while in pure-offline mode.
package outbox

import (
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/relaykit/relaykit/internal/core/faults"
	"github.com/relaykit/relaykit/internal/core/models"
	"github.com/relaykit/relaykit/pkg/metrics"
	"github.com/relaykit/relaykit/pkg/persistence"
)

type Queue struct {
	mu      sync.Mutex
	store   persistence.Persistence
	metrics metrics.Collector
}

func NewQueue(store persistence.Persistence, collector metrics.Collector) *Queue {
	q := &Queue{store: store, metrics: collector}
	if entries, err := q.load(); err == nil {
		collector.SetOutboxDepth(len(entries))
	}
	return q
}

// newID builds a time-prefixed id that is collision-free within the process
// lifetime.
func newID() string {
	return strconv.FormatInt(time.Now().UnixMilli(), 10) + "-" + uuid.NewString()[:8]
}

func (q *Queue) load() ([]persistence.QueuedRequest, error) {
	entries, err := q.store.LoadQueue()
	if errors.Is(err, persistence.ErrNotFound) {
		return nil, nil
	}
	return entries, err
}

// Enqueue appends the call to the durable log and returns the assigned id.
// Entries are never mutated after this point.
func (q *Queue) Enqueue(call models.Call) (string, error) {
	var body json.RawMessage
	if call.Body != nil {
		raw, err := json.Marshal(call.Body)
		if err != nil {
			return "", faults.Wrap(faults.KindStorage, "encode queued body", err)
		}
		body = raw
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	entries, err := q.load()
	if err != nil {
		return "", faults.Wrap(faults.KindStorage, "load offline queue", err)
	}

	entry := persistence.QueuedRequest{
		ID:         newID(),
		URL:        call.Path,
		Method:     call.Method,
		Body:       body,
		Query:      call.Query,
		EnqueuedAt: time.Now().UTC(),
	}
	entries = append(entries, entry)

	if err := q.store.SaveQueue(entries); err != nil {
		return "", faults.Wrap(faults.KindStorage, "persist offline queue", err)
	}

	q.metrics.RecordEnqueue()
	q.metrics.SetOutboxDepth(len(entries))
	log.Debug().Str("id", entry.ID).Str("url", entry.URL).Str("method", entry.Method).
		Int("depth", len(entries)).Msg("Captured request into outbox")
	return entry.ID, nil
}

// Drain returns the full ordered log without removing anything.
func (q *Queue) Drain() ([]persistence.QueuedRequest, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	entries, err := q.load()
	if err != nil {
		return nil, faults.Wrap(faults.KindStorage, "load offline queue", err)
	}
	return entries, nil
}

// CommitRemainder atomically replaces the persisted log with only the entries
// whose id appears in survivors, preserving original relative order.
func (q *Queue) CommitRemainder(survivors []string) error {
	keep := make(map[string]struct{}, len(survivors))
	for _, id := range survivors {
		keep[id] = struct{}{}
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	entries, err := q.load()
	if err != nil {
		return faults.Wrap(faults.KindStorage, "load offline queue", err)
	}

	remainder := entries[:0:0]
	for _, entry := range entries {
		if _, ok := keep[entry.ID]; ok {
			remainder = append(remainder, entry)
		}
	}

	if err := q.store.SaveQueue(remainder); err != nil {
		return faults.Wrap(faults.KindStorage, "persist offline queue", err)
	}
	q.metrics.SetOutboxDepth(len(remainder))
	return nil
}

// Depth returns the current persisted log length.
func (q *Queue) Depth() (int, error) {
	entries, err := q.Drain()
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}
