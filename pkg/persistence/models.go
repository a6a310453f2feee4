package persistence

import (
	"encoding/json"
	"time"
)

// ModeState is the persisted operating mode and the endpoint set resolved
// for it.
type ModeState struct {
	Mode          string `json:"mode"`
	APIBaseURL    string `json:"api_base_url"`
	StreamBaseURL string `json:"stream_base_url"`
}

// SessionState is the persisted authentication state. An empty token means
// unauthenticated.
type SessionState struct {
	Token   string         `json:"token"`
	Profile map[string]any `json:"profile,omitempty"`
}

// QueuedRequest is one deferred outbound call captured while in offline mode.
// Entries are never mutated after enqueue.
type QueuedRequest struct {
	ID         string            `json:"id"`
	URL        string            `json:"url"`
	Method     string            `json:"method"`
	Body       json.RawMessage   `json:"body,omitempty"`
	Query      map[string]string `json:"query,omitempty"`
	EnqueuedAt time.Time         `json:"enqueued_at"`
}

// Flags holds persisted one-off markers.
type Flags struct {
	FirstEnter bool `json:"first_enter"`
}
