package persistence

import "errors"

// ErrNotFound is returned by Load* methods when nothing has been persisted
// under the requested key yet.
var ErrNotFound = errors.New("persistence: not found")

// Persistence defines the interface for all storage backends
type Persistence interface {
	/* Mode state */

	// SaveModeState persists the current operating mode and resolved endpoints
	SaveModeState(state ModeState) error
	// LoadModeState loads the persisted operating mode and endpoints
	LoadModeState() (ModeState, error)

	/* Session state */

	// SaveSessionState persists the authentication token and user profile
	SaveSessionState(state SessionState) error
	// LoadSessionState loads the persisted token and profile
	LoadSessionState() (SessionState, error)
	// ClearSessionState removes the persisted session entirely
	ClearSessionState() error

	/* Offline queue */

	// SaveQueue rewrites the whole ordered log. The log is persisted as a
	// whole on every mutation so a partial append can never be observed.
	SaveQueue(entries []QueuedRequest) error
	// LoadQueue loads the ordered log
	LoadQueue() ([]QueuedRequest, error)

	/* Flags */

	// SaveFlags persists small markers that survive restarts
	SaveFlags(flags Flags) error
	// LoadFlags loads the persisted markers
	LoadFlags() (Flags, error)

	// Lifecycle
	Initialize() error
	Close() error
}

// Config for persistence implementations
type Config struct {
	Type    string `json:"type"`     // "json", "sqlite", "memory"
	DataDir string `json:"data_dir"` // Base directory for storage
}
