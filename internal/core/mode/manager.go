// Package mode owns the current operating mode and the endpoint set resolved
// for it. A switch to a different mode invalidates the session and fires the
// registered reset hooks so long-lived state keyed to the old endpoints is
// rebuilt deterministically.
package mode

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/relaykit/relaykit/internal/core/faults"
	"github.com/relaykit/relaykit/pkg/persistence"
)

type Mode string

const (
	// ModeLocal targets a deployment running on this machine.
	ModeLocal Mode = "local"
	// ModeOnline targets the production hosts.
	ModeOnline Mode = "online"
	// ModeOffline is pure offline: no network calls are attempted and every
	// dispatch is captured into the outbox.
	ModeOffline Mode = "offline"
)

func (m Mode) Valid() bool {
	return m == ModeLocal || m == ModeOnline || m == ModeOffline
}

// Parse converts a string into a Mode, rejecting unknown values.
func Parse(s string) (Mode, error) {
	m := Mode(s)
	if !m.Valid() {
		return "", fmt.Errorf("unknown mode %q", s)
	}
	return m, nil
}

// EndpointSet holds the resolved base addresses for the current mode.
type EndpointSet struct {
	APIBaseURL    string
	StreamBaseURL string
}

// Built-in per-mode defaults. Offline inherits the current endpoints
// unchanged since the network is not expected to be reachable at all.
const (
	LocalAPIBaseURL     = "http://localhost:8080"
	LocalStreamBaseURL  = "ws://localhost:8081"
	OnlineAPIBaseURL    = "https://api.relaykit.io"
	OnlineStreamBaseURL = "wss://stream.relaykit.io"
)

// Known local service names tracked alongside the mode.
var localServiceNames = []string{"database", "redis", "nginx", "backend"}

type Manager struct {
	mu    sync.RWMutex
	store persistence.Persistence

	state      persistence.ModeState
	firstEnter bool
	services   map[string]string

	invalidateSession func()
	resetHooks        []func()
}

// NewManager restores the persisted mode state, or starts in online mode with
// its default endpoints when nothing is persisted yet.
func NewManager(store persistence.Persistence) (*Manager, error) {
	m := &Manager{
		store:      store,
		firstEnter: true,
		services:   make(map[string]string, len(localServiceNames)),
	}
	for _, name := range localServiceNames {
		m.services[name] = "stopped"
	}

	state, err := store.LoadModeState()
	switch {
	case err == nil:
		if !Mode(state.Mode).Valid() {
			return nil, fmt.Errorf("persisted mode state is corrupt: %q", state.Mode)
		}
		m.state = state
	case errors.Is(err, persistence.ErrNotFound):
		m.state = persistence.ModeState{
			Mode:          string(ModeOnline),
			APIBaseURL:    OnlineAPIBaseURL,
			StreamBaseURL: OnlineStreamBaseURL,
		}
	default:
		return nil, faults.Wrap(faults.KindStorage, "load mode state", err)
	}

	flags, err := store.LoadFlags()
	if err == nil {
		m.firstEnter = flags.FirstEnter
	} else if !errors.Is(err, persistence.ErrNotFound) {
		return nil, faults.Wrap(faults.KindStorage, "load flags", err)
	}

	return m, nil
}

// Mode returns the active operating mode.
func (m *Manager) Mode() Mode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Mode(m.state.Mode)
}

// Endpoints returns the endpoint set resolved for the active mode.
func (m *Manager) Endpoints() EndpointSet {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return EndpointSet{
		APIBaseURL:    m.state.APIBaseURL,
		StreamBaseURL: m.state.StreamBaseURL,
	}
}

// SetSessionInvalidator registers the forced-logout callback fired when a
// switch changes the mode. Credentials are not guaranteed valid across
// endpoint boundaries.
func (m *Manager) SetSessionInvalidator(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidateSession = fn
}

// OnReset registers a hook fired after a mode change so dependent components
// (stream connections, in-flight request state) reinitialize against the new
// endpoints.
func (m *Manager) OnReset(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetHooks = append(m.resetHooks, fn)
}

// SwitchMode sets the active mode and resolves the endpoint set from the
// overrides when given, else from the built-in per-mode defaults. If target
// differs from the mode active before the call, the session is invalidated
// and the reset hooks fire. A dispatch already in flight may still complete
// against the old endpoints; any dispatch issued after SwitchMode returns
// sees the new ones.
func (m *Manager) SwitchMode(target Mode, apiOverride, streamOverride string) error {
	if !target.Valid() {
		return fmt.Errorf("unknown mode %q", target)
	}

	m.mu.Lock()
	// Compare against the mode active before assigning anything.
	changed := target != Mode(m.state.Mode)

	api, stream := apiOverride, streamOverride
	switch target {
	case ModeOffline:
		// Endpoints inherited unchanged unless explicitly overridden.
		if api == "" {
			api = m.state.APIBaseURL
		}
		if stream == "" {
			stream = m.state.StreamBaseURL
		}
	case ModeLocal:
		if api == "" {
			api = LocalAPIBaseURL
		}
		if stream == "" {
			stream = LocalStreamBaseURL
		}
	case ModeOnline:
		if api == "" {
			api = OnlineAPIBaseURL
		}
		if stream == "" {
			stream = OnlineStreamBaseURL
		}
	}

	m.state = persistence.ModeState{
		Mode:          string(target),
		APIBaseURL:    api,
		StreamBaseURL: stream,
	}
	err := m.store.SaveModeState(m.state)
	invalidate := m.invalidateSession
	hooks := append(([]func())(nil), m.resetHooks...)
	m.mu.Unlock()

	if err != nil {
		return faults.Wrap(faults.KindStorage, "save mode state", err)
	}

	log.Info().Str("mode", string(target)).Str("api", api).Str("stream", stream).
		Bool("changed", changed).Msg("Mode switched")

	if changed {
		if invalidate != nil {
			invalidate()
		}
		for _, hook := range hooks {
			hook()
		}
	}
	return nil
}

// FirstEnter reports whether this install has never completed first-run setup.
func (m *Manager) FirstEnter() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.firstEnter
}

// SetFirstEnter persists the first-run marker.
func (m *Manager) SetFirstEnter(flag bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.firstEnter = flag
	if err := m.store.SaveFlags(persistence.Flags{FirstEnter: flag}); err != nil {
		return faults.Wrap(faults.KindStorage, "save flags", err)
	}
	return nil
}

// ServiceStatuses returns a copy of the tracked local service states.
func (m *Manager) ServiceStatuses() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.services))
	for k, v := range m.services {
		out[k] = v
	}
	return out
}

// UpdateServiceStatuses merges the given states into the tracked map.
func (m *Manager) UpdateServiceStatuses(patch map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range patch {
		m.services[k] = v
	}
}
