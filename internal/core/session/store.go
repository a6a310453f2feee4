// Package session owns the authentication token and user profile, persisting
// both across restarts. Login, registration, and profile reads go through the
// request dispatcher so the mode and auth policy applies to them like to any
// other call.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/relaykit/relaykit/internal/core/faults"
	"github.com/relaykit/relaykit/internal/core/models"
	"github.com/relaykit/relaykit/pkg/persistence"
)

const (
	loginPath    = "/api/user/login"
	registerPath = "/api/user/register"
	profilePath  = "/api/user/info"
	updatePath   = "/api/user/update"
)

// Caller executes one outbound call under the current mode/auth policy.
type Caller interface {
	Dispatch(ctx context.Context, call models.Call) (models.Result, error)
}

// Profile is the loosely-structured user attribute bag.
type Profile map[string]any

func (p Profile) str(key string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return ""
}

func (p Profile) ID() string       { return p.str("id") }
func (p Profile) Username() string { return p.str("username") }
func (p Profile) Avatar() string   { return p.str("avatar") }

// Nickname falls back to the username when unset.
func (p Profile) Nickname() string {
	if nick := p.str("nickname"); nick != "" {
		return nick
	}
	return p.Username()
}

// Role defaults to "user" when unset.
func (p Profile) Role() string {
	if role := p.str("role"); role != "" {
		return role
	}
	return "user"
}

type Store struct {
	mu         sync.RWMutex
	store      persistence.Persistence
	dispatcher Caller
	state      persistence.SessionState

	// onNavigate signals the redirect to the unauthenticated entry point.
	onNavigate func()
}

// NewStore restores the persisted session. A persisted JWT whose exp claim
// has passed loads as unauthenticated.
func NewStore(store persistence.Persistence) (*Store, error) {
	s := &Store{store: store}

	state, err := store.LoadSessionState()
	switch {
	case err == nil:
		if tokenExpired(state.Token) {
			log.Info().Msg("Persisted token expired, starting unauthenticated")
		} else {
			s.state = state
		}
	case errors.Is(err, persistence.ErrNotFound):
	default:
		return nil, faults.Wrap(faults.KindStorage, "load session state", err)
	}
	return s, nil
}

// AttachDispatcher wires the dispatcher after construction; the dispatcher
// itself needs this store as its token source.
func (s *Store) AttachDispatcher(d Caller) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dispatcher = d
}

// OnNavigate registers the redirect callback fired once per Logout call.
func (s *Store) OnNavigate(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onNavigate = fn
}

// tokenExpired reports whether token carries a parseable exp claim in the
// past. Opaque tokens without claims are kept.
func tokenExpired(token string) bool {
	if token == "" {
		return false
	}
	var claims jwt.RegisteredClaims
	_, _, err := jwt.NewParser().ParseUnverified(token, &claims)
	if err != nil || claims.ExpiresAt == nil {
		return false
	}
	return time.Now().After(claims.ExpiresAt.Time)
}

// Token returns the current bearer credential, empty when unauthenticated.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Token
}

// Authenticated reports whether a token is present.
func (s *Store) Authenticated() bool {
	return s.Token() != ""
}

// Profile returns a copy of the current profile attributes.
func (s *Store) Profile() Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(Profile, len(s.state.Profile))
	for k, v := range s.state.Profile {
		out[k] = v
	}
	return out
}

type loginPayload struct {
	Token    string         `json:"token"`
	UserInfo map[string]any `json:"userInfo"`
}

// Login authenticates against the remote auth endpoint. On success the
// returned session is persisted; on failure the current session is left
// untouched and the error propagates.
func (s *Store) Login(ctx context.Context, username, password string) (Profile, error) {
	dispatcher := s.caller()
	if dispatcher == nil {
		return nil, errors.New("session: no dispatcher attached")
	}

	result, err := dispatcher.Dispatch(ctx, models.Call{
		Path:   loginPath,
		Method: "POST",
		Body:   models.LoginRequest{Username: username, Password: password},
	})
	if err != nil {
		return nil, err
	}

	var payload loginPayload
	if err := json.Unmarshal(result.Data, &payload); err != nil {
		return nil, faults.Wrap(faults.KindApplication, "decode login response", err)
	}
	if payload.Token == "" {
		return nil, faults.New(faults.KindApplication, "login response carried no token")
	}

	s.mu.Lock()
	s.state = persistence.SessionState{Token: payload.Token, Profile: payload.UserInfo}
	err = s.store.SaveSessionState(s.state)
	s.mu.Unlock()
	if err != nil {
		return nil, faults.Wrap(faults.KindStorage, "persist session", err)
	}

	log.Info().Str("username", username).Msg("Logged in")
	return s.Profile(), nil
}

// Register creates an account through the remote auth endpoint. The session
// is not touched; callers log in afterwards.
func (s *Store) Register(ctx context.Context, details models.RegisterRequest) (bool, error) {
	dispatcher := s.caller()
	if dispatcher == nil {
		return false, errors.New("session: no dispatcher attached")
	}

	_, err := dispatcher.Dispatch(ctx, models.Call{
		Path:   registerPath,
		Method: "POST",
		Body:   details,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// Logout clears the session, persists the clear, and signals navigation to
// the unauthenticated entry point. Idempotent: repeated calls clear again and
// redirect once per call.
func (s *Store) Logout() {
	s.mu.Lock()
	s.state = persistence.SessionState{}
	if err := s.store.ClearSessionState(); err != nil {
		log.Error().Err(err).Msg("Failed to clear persisted session")
	}
	navigate := s.onNavigate
	s.mu.Unlock()

	if navigate != nil {
		navigate()
	}
}

// Invalidate clears the session without the navigation signal. Used by the
// mode manager on switch, where the reset hooks already drive
// reinitialization.
func (s *Store) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = persistence.SessionState{}
	if err := s.store.ClearSessionState(); err != nil {
		log.Error().Err(err).Msg("Failed to clear persisted session")
	}
}

// FetchProfile pulls the profile from the remote endpoint. Any failure is
// treated as session expiry: the session is cleared before the error
// propagates, so a stale authenticated state is never left behind.
func (s *Store) FetchProfile(ctx context.Context) (Profile, error) {
	dispatcher := s.caller()
	if dispatcher == nil {
		return nil, errors.New("session: no dispatcher attached")
	}

	result, err := dispatcher.Dispatch(ctx, models.Call{Path: profilePath, Method: "GET"})
	if err != nil {
		log.Warn().Err(err).Msg("Profile fetch failed, treating as session expiry")
		s.Logout()
		return nil, err
	}

	var profile map[string]any
	if err := json.Unmarshal(result.Data, &profile); err != nil {
		s.Logout()
		return nil, faults.Wrap(faults.KindApplication, "decode profile", err)
	}

	s.mu.Lock()
	s.state.Profile = profile
	err = s.store.SaveSessionState(s.state)
	s.mu.Unlock()
	if err != nil {
		return nil, faults.Wrap(faults.KindStorage, "persist session", err)
	}
	return s.Profile(), nil
}

// UpdateProfile sends the patch to the remote endpoint and merges the
// server-confirmed attributes into the stored profile. Fields absent from
// the patch are never removed.
func (s *Store) UpdateProfile(ctx context.Context, patch map[string]any) (Profile, error) {
	dispatcher := s.caller()
	if dispatcher == nil {
		return nil, errors.New("session: no dispatcher attached")
	}

	result, err := dispatcher.Dispatch(ctx, models.Call{
		Path:   updatePath,
		Method: "PUT",
		Body:   patch,
	})
	if err != nil {
		return nil, err
	}

	confirmed := patch
	if len(result.Data) > 0 {
		var fromServer map[string]any
		if err := json.Unmarshal(result.Data, &fromServer); err == nil && len(fromServer) > 0 {
			confirmed = fromServer
		}
	}

	s.mu.Lock()
	if s.state.Profile == nil {
		s.state.Profile = make(map[string]any, len(confirmed))
	}
	for k, v := range confirmed {
		s.state.Profile[k] = v
	}
	err = s.store.SaveSessionState(s.state)
	s.mu.Unlock()
	if err != nil {
		return nil, faults.Wrap(faults.KindStorage, "persist session", err)
	}
	return s.Profile(), nil
}

// SetAvatar stores the avatar URL locally without a remote round trip.
func (s *Store) SetAvatar(url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Profile == nil {
		s.state.Profile = make(map[string]any, 1)
	}
	s.state.Profile["avatar"] = url
	if err := s.store.SaveSessionState(s.state); err != nil {
		return faults.Wrap(faults.KindStorage, "persist session", err)
	}
	return nil
}

func (s *Store) caller() Caller {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dispatcher
}
