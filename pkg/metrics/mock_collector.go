package metrics

import "sync"

// MockCollector records calls for assertions in tests.
type MockCollector struct {
	mu         sync.Mutex
	Dispatches map[string]int
	Enqueues   int
	Depth      int
	Synced     int
	Failed     int
	Passes     int
}

func NewMockCollector() *MockCollector {
	return &MockCollector{Dispatches: make(map[string]int)}
}

func (m *MockCollector) RecordDispatch(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Dispatches[outcome]++
}

func (m *MockCollector) RecordEnqueue() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Enqueues++
}

func (m *MockCollector) SetOutboxDepth(depth int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Depth = depth
}

func (m *MockCollector) RecordSyncPass(synced, failed int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Synced += synced
	m.Failed += failed
	m.Passes++
}

// DispatchCount returns the recorded count for one outcome.
func (m *MockCollector) DispatchCount(outcome string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Dispatches[outcome]
}

// Ensure MockCollector implements Collector
var _ Collector = (*MockCollector)(nil)
