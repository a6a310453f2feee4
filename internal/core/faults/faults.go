// Package faults holds the classified failure taxonomy for dispatch and
// sync. The dispatcher classifies each call exactly once; higher layers
// branch on the Kind and never inspect raw transport detail.
package faults

import (
	"errors"
	"fmt"
)

type Kind int

const (
	// KindStorage: the durable store is unavailable. Fatal to the
	// triggering call, never retried automatically.
	KindStorage Kind = iota + 1
	// KindTransport: no response, timeout, or connection refused. Retried
	// only through an explicit later sync pass.
	KindTransport
	// KindAuth: invalid or expired credential. Triggers forced logout.
	KindAuth
	// KindPermission: authorization denied. No state change.
	KindPermission
	// KindApplication: server-reported business error, surfaced verbatim.
	KindApplication
	// KindSyncRefused: sync attempted while in pure-offline mode.
	KindSyncRefused
	// KindSyncBusy: another sync pass is already in progress.
	KindSyncBusy
)

func (k Kind) String() string {
	switch k {
	case KindStorage:
		return "storage"
	case KindTransport:
		return "transport"
	case KindAuth:
		return "auth"
	case KindPermission:
		return "permission"
	case KindApplication:
		return "application"
	case KindSyncRefused:
		return "sync_refused"
	case KindSyncBusy:
		return "sync_busy"
	}
	return "unknown"
}

// Fault is one classified failure.
type Fault struct {
	kind           Kind
	message        string
	err            error
	suggestOffline bool
}

func (f *Fault) Error() string {
	if f.err != nil {
		return fmt.Sprintf("%s: %s: %v", f.kind, f.message, f.err)
	}
	return fmt.Sprintf("%s: %s", f.kind, f.message)
}

func (f *Fault) Unwrap() error { return f.err }

func (f *Fault) Kind() Kind { return f.kind }

// Message is the caller-facing text, for application faults the
// server-supplied message verbatim.
func (f *Fault) Message() string { return f.message }

// SuggestOffline reports whether the caller may want to offer a switch to
// offline mode. Set on transport faults raised while in online mode. A hint
// only, never an automatic action.
func (f *Fault) SuggestOffline() bool { return f.suggestOffline }

func New(kind Kind, message string) *Fault {
	return &Fault{kind: kind, message: message}
}

func Wrap(kind Kind, message string, err error) *Fault {
	return &Fault{kind: kind, message: message, err: err}
}

// TransportWithHint builds a transport fault carrying the offline-switch hint.
func TransportWithHint(message string, err error, suggestOffline bool) *Fault {
	return &Fault{kind: KindTransport, message: message, err: err, suggestOffline: suggestOffline}
}

// KindOf extracts the Kind from err, or 0 if err carries no Fault.
func KindOf(err error) Kind {
	var f *Fault
	if errors.As(err, &f) {
		return f.kind
	}
	return 0
}

// IsKind reports whether err is a Fault of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
