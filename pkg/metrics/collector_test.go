package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusCollectorCounts(t *testing.T) {
	c := NewPrometheusCollector()

	c.RecordDispatch("ok")
	c.RecordDispatch("ok")
	c.RecordDispatch("transport")
	c.RecordEnqueue()
	c.SetOutboxDepth(3)
	c.RecordSyncPass(2, 1)

	if got := testutil.ToFloat64(c.dispatches.WithLabelValues("ok")); got != 2 {
		t.Errorf("Expected 2 ok dispatches, got %v", got)
	}
	if got := testutil.ToFloat64(c.dispatches.WithLabelValues("transport")); got != 1 {
		t.Errorf("Expected 1 transport dispatch, got %v", got)
	}
	if got := testutil.ToFloat64(c.enqueues); got != 1 {
		t.Errorf("Expected 1 enqueue, got %v", got)
	}
	if got := testutil.ToFloat64(c.outboxDepth); got != 3 {
		t.Errorf("Expected depth 3, got %v", got)
	}
	if got := testutil.ToFloat64(c.syncSynced); got != 2 {
		t.Errorf("Expected 2 replayed, got %v", got)
	}
	if got := testutil.ToFloat64(c.syncFailed); got != 1 {
		t.Errorf("Expected 1 failed, got %v", got)
	}
	if got := testutil.ToFloat64(c.syncPasses); got != 1 {
		t.Errorf("Expected 1 pass, got %v", got)
	}
}

func TestMockCollector(t *testing.T) {
	m := NewMockCollector()

	m.RecordDispatch("deferred")
	m.RecordDispatch("deferred")
	m.RecordEnqueue()
	m.SetOutboxDepth(5)
	m.RecordSyncPass(1, 0)

	if m.DispatchCount("deferred") != 2 {
		t.Errorf("Expected 2 deferred dispatches, got %d", m.DispatchCount("deferred"))
	}
	if m.Enqueues != 1 {
		t.Errorf("Expected 1 enqueue, got %d", m.Enqueues)
	}
	if m.Depth != 5 {
		t.Errorf("Expected depth 5, got %d", m.Depth)
	}
	if m.Passes != 1 || m.Synced != 1 || m.Failed != 0 {
		t.Errorf("Unexpected sync pass state: %+v", m)
	}
}
