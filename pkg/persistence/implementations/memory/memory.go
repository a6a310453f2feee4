package memory

import (
	"errors"
	"sync"

	"github.com/relaykit/relaykit/pkg/persistence"
)

var errWriteFailed = errors.New("memory persistence: write failed")

// MemoryPersistence keeps all state in process memory. It backs tests and
// ephemeral runs where durability across restarts is not wanted.
type MemoryPersistence struct {
	mu      sync.Mutex
	mode    *persistence.ModeState
	session *persistence.SessionState
	queue   []persistence.QueuedRequest
	flags   *persistence.Flags

	// FailWrites makes every mutating call fail, for storage-failure tests.
	FailWrites bool
}

func NewMemoryPersistence() *MemoryPersistence {
	return &MemoryPersistence{}
}

func (mp *MemoryPersistence) Initialize() error { return nil }
func (mp *MemoryPersistence) Close() error      { return nil }

func (mp *MemoryPersistence) SaveModeState(state persistence.ModeState) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	if mp.FailWrites {
		return errWriteFailed
	}
	mp.mode = &state
	return nil
}

func (mp *MemoryPersistence) LoadModeState() (persistence.ModeState, error) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	if mp.mode == nil {
		return persistence.ModeState{}, persistence.ErrNotFound
	}
	return *mp.mode, nil
}

func (mp *MemoryPersistence) SaveSessionState(state persistence.SessionState) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	if mp.FailWrites {
		return errWriteFailed
	}
	copied := state
	copied.Profile = copyProfile(state.Profile)
	mp.session = &copied
	return nil
}

func (mp *MemoryPersistence) LoadSessionState() (persistence.SessionState, error) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	if mp.session == nil {
		return persistence.SessionState{}, persistence.ErrNotFound
	}
	copied := *mp.session
	copied.Profile = copyProfile(mp.session.Profile)
	return copied, nil
}

func (mp *MemoryPersistence) ClearSessionState() error {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	if mp.FailWrites {
		return errWriteFailed
	}
	mp.session = nil
	return nil
}

func (mp *MemoryPersistence) SaveQueue(entries []persistence.QueuedRequest) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	if mp.FailWrites {
		return errWriteFailed
	}
	mp.queue = append([]persistence.QueuedRequest(nil), entries...)
	return nil
}

func (mp *MemoryPersistence) LoadQueue() ([]persistence.QueuedRequest, error) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	if mp.queue == nil {
		return nil, persistence.ErrNotFound
	}
	return append([]persistence.QueuedRequest(nil), mp.queue...), nil
}

func (mp *MemoryPersistence) SaveFlags(flags persistence.Flags) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	if mp.FailWrites {
		return errWriteFailed
	}
	mp.flags = &flags
	return nil
}

func (mp *MemoryPersistence) LoadFlags() (persistence.Flags, error) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	if mp.flags == nil {
		return persistence.Flags{}, persistence.ErrNotFound
	}
	return *mp.flags, nil
}

func copyProfile(p map[string]any) map[string]any {
	if p == nil {
		return nil
	}
	out := make(map[string]any, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Ensure MemoryPersistence implements Persistence
var _ persistence.Persistence = (*MemoryPersistence)(nil)
