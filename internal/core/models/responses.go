package models

import (
	"encoding/json"

	"github.com/relaykit/relaykit/pkg/persistence"
)

// Application-level status codes carried in the wire envelope.
const (
	CodeOK           = 200
	CodeUnauthorized = 401
	CodeForbidden    = 403
)

// AcceptedOfflineMessage is the synthetic message returned when a call is
// captured into the outbox instead of being sent.
const AcceptedOfflineMessage = "accepted for later delivery"

// Envelope is the application-level wire envelope every endpoint responds
// with.
type Envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Result is the classified outcome of a successful dispatch. Deferred marks
// the synthetic offline accept: the call was captured for later delivery and
// no server-side effect has occurred.
type Result struct {
	Code     int
	Message  string
	Data     json.RawMessage
	Deferred bool
}

// AcceptedOffline builds the synthetic success result for a captured call.
func AcceptedOffline() Result {
	return Result{Code: CodeOK, Message: AcceptedOfflineMessage, Deferred: true}
}

/* Ops API responses */

type ErrorResponse struct {
	Error string `json:"error"`
}

type SuccessResponse struct {
	Message string `json:"message"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

type OverviewResponse struct {
	Version       string `json:"version"`
	Mode          string `json:"mode"`
	APIBaseURL    string `json:"api_base_url"`
	StreamBaseURL string `json:"stream_base_url"`
	QueueDepth    int    `json:"queue_depth"`
	LoggedIn      bool   `json:"logged_in"`
	Username      string `json:"username,omitempty"`
}

type QueueListResponse struct {
	Requests []persistence.QueuedRequest `json:"requests"`
}

type SyncResponse struct {
	Synced int `json:"synced"`
	Failed int `json:"failed"`
}
