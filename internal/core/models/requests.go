package models

// Call describes one outbound request entering the dispatcher. Path is
// relative to the resolved API base URL. Body is either a structured payload
// (JSON-encoded on the wire) or raw []byte form data with a caller-supplied
// Content-Type header.
type Call struct {
	Path    string
	Method  string
	Body    any
	Query   map[string]string
	Headers map[string]string
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Nickname string `json:"nickname,omitempty"`
}

type SwitchModeRequest struct {
	Mode          string `json:"mode"`
	APIBaseURL    string `json:"api_base_url,omitempty"`
	StreamBaseURL string `json:"stream_base_url,omitempty"`
}
