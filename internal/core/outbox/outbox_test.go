package outbox

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaykit/relaykit/internal/core/faults"
	"github.com/relaykit/relaykit/internal/core/models"
	"github.com/relaykit/relaykit/pkg/metrics"
	"github.com/relaykit/relaykit/pkg/persistence/implementations/memory"
)

func newTestQueue() (*Queue, *memory.MemoryPersistence, *metrics.MockCollector) {
	store := memory.NewMemoryPersistence()
	collector := metrics.NewMockCollector()
	return NewQueue(store, collector), store, collector
}

func TestEnqueuePreservesFIFOOrder(t *testing.T) {
	q, _, _ := newTestQueue()

	idA, err := q.Enqueue(models.Call{Path: "/api/a", Method: "POST", Body: map[string]any{"v": 1}})
	require.NoError(t, err)
	idB, err := q.Enqueue(models.Call{Path: "/api/b", Method: "PUT"})
	require.NoError(t, err)
	idC, err := q.Enqueue(models.Call{Path: "/api/c", Method: "DELETE"})
	require.NoError(t, err)

	entries, err := q.Drain()
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, []string{idA, idB, idC},
		[]string{entries[0].ID, entries[1].ID, entries[2].ID})
	assert.Equal(t, "/api/a", entries[0].URL)
	assert.JSONEq(t, `{"v":1}`, string(entries[0].Body))
}

func TestEnqueueAssignsUniqueIDs(t *testing.T) {
	q, _, _ := newTestQueue()

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		id, err := q.Enqueue(models.Call{Path: "/api/x", Method: "POST"})
		require.NoError(t, err)
		require.False(t, seen[id], "duplicate id %q", id)
		seen[id] = true
	}
}

func TestDrainDoesNotRemove(t *testing.T) {
	q, _, _ := newTestQueue()

	_, err := q.Enqueue(models.Call{Path: "/api/a", Method: "POST"})
	require.NoError(t, err)

	first, err := q.Drain()
	require.NoError(t, err)
	second, err := q.Drain()
	require.NoError(t, err)
	assert.Equal(t, first, second)

	depth, err := q.Depth()
	require.NoError(t, err)
	assert.Equal(t, 1, depth)
}

func TestCommitRemainderKeepsOrderAndPayload(t *testing.T) {
	q, store, collector := newTestQueue()

	idA, _ := q.Enqueue(models.Call{Path: "/api/a", Method: "POST"})
	idB, _ := q.Enqueue(models.Call{Path: "/api/b", Method: "POST", Body: map[string]any{"keep": true}})
	idC, _ := q.Enqueue(models.Call{Path: "/api/c", Method: "POST"})
	idD, _ := q.Enqueue(models.Call{Path: "/api/d", Method: "POST"})
	_ = idC

	// B and D survive; order must stay B, D
	require.NoError(t, q.CommitRemainder([]string{idD, idB}))

	entries, err := store.LoadQueue()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, idB, entries[0].ID)
	assert.Equal(t, idD, entries[1].ID)
	assert.JSONEq(t, `{"keep":true}`, string(entries[0].Body))
	assert.NotEqual(t, idA, entries[0].ID)

	assert.Equal(t, 2, collector.Depth)
}

func TestCommitRemainderEmptyClearsLog(t *testing.T) {
	q, _, collector := newTestQueue()

	_, _ = q.Enqueue(models.Call{Path: "/api/a", Method: "POST"})
	_, _ = q.Enqueue(models.Call{Path: "/api/b", Method: "POST"})

	require.NoError(t, q.CommitRemainder(nil))

	depth, err := q.Depth()
	require.NoError(t, err)
	assert.Equal(t, 0, depth)
	assert.Equal(t, 0, collector.Depth)
}

func TestEnqueueSurfacesStorageFailure(t *testing.T) {
	q, store, _ := newTestQueue()
	store.FailWrites = true

	_, err := q.Enqueue(models.Call{Path: "/api/a", Method: "POST"})
	require.Error(t, err)
	assert.Equal(t, faults.KindStorage, faults.KindOf(err))
}

func TestEnqueueRawBodyPassesThrough(t *testing.T) {
	q, _, _ := newTestQueue()

	raw := json.RawMessage(`{"already":"encoded"}`)
	_, err := q.Enqueue(models.Call{Path: "/api/a", Method: "POST", Body: raw})
	require.NoError(t, err)

	entries, err := q.Drain()
	require.NoError(t, err)
	assert.JSONEq(t, `{"already":"encoded"}`, string(entries[0].Body))
}

func TestMetricsTrackDepth(t *testing.T) {
	q, _, collector := newTestQueue()

	_, _ = q.Enqueue(models.Call{Path: "/api/a", Method: "POST"})
	_, _ = q.Enqueue(models.Call{Path: "/api/b", Method: "POST"})

	assert.Equal(t, 2, collector.Enqueues)
	assert.Equal(t, 2, collector.Depth)
}
