package session

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaykit/relaykit/internal/core/faults"
	"github.com/relaykit/relaykit/internal/core/models"
	"github.com/relaykit/relaykit/pkg/persistence"
	"github.com/relaykit/relaykit/pkg/persistence/implementations/memory"
)

// fakeCaller routes dispatches to a handler function.
type fakeCaller struct {
	calls   []models.Call
	handler func(call models.Call) (models.Result, error)
}

func (f *fakeCaller) Dispatch(_ context.Context, call models.Call) (models.Result, error) {
	f.calls = append(f.calls, call)
	return f.handler(call)
}

func okResult(data string) (models.Result, error) {
	return models.Result{Code: models.CodeOK, Data: json.RawMessage(data)}, nil
}

func newTestStore(t *testing.T, handler func(models.Call) (models.Result, error)) (*Store, *fakeCaller, *memory.MemoryPersistence) {
	t.Helper()
	persist := memory.NewMemoryPersistence()
	s, err := NewStore(persist)
	require.NoError(t, err)
	caller := &fakeCaller{handler: handler}
	s.AttachDispatcher(caller)
	return s, caller, persist
}

func TestLoginPersistsSession(t *testing.T) {
	s, caller, persist := newTestStore(t, func(models.Call) (models.Result, error) {
		return okResult(`{"token":"tok-1","userInfo":{"id":"7","username":"alice"}}`)
	})

	profile, err := s.Login(context.Background(), "alice", "secret")
	require.NoError(t, err)

	assert.Equal(t, "tok-1", s.Token())
	assert.True(t, s.Authenticated())
	assert.Equal(t, "alice", profile.Username())

	require.Len(t, caller.calls, 1)
	assert.Equal(t, "/api/user/login", caller.calls[0].Path)
	assert.Equal(t, "POST", caller.calls[0].Method)

	saved, err := persist.LoadSessionState()
	require.NoError(t, err)
	assert.Equal(t, "tok-1", saved.Token)
}

func TestLoginFailureLeavesSessionUntouched(t *testing.T) {
	s, _, _ := newTestStore(t, func(models.Call) (models.Result, error) {
		return models.Result{}, faults.New(faults.KindAuth, "bad credentials")
	})

	_, err := s.Login(context.Background(), "alice", "wrong")
	require.Error(t, err)
	assert.Equal(t, faults.KindAuth, faults.KindOf(err))
	assert.Empty(t, s.Token())
}

func TestLogoutIsIdempotent(t *testing.T) {
	s, _, persist := newTestStore(t, func(models.Call) (models.Result, error) {
		return okResult(`{"token":"tok-1","userInfo":{}}`)
	})
	_, err := s.Login(context.Background(), "alice", "secret")
	require.NoError(t, err)

	redirects := 0
	s.OnNavigate(func() { redirects++ })

	s.Logout()
	assert.Empty(t, s.Token())
	assert.Empty(t, s.Profile())
	assert.Equal(t, 1, redirects)

	// Second logout clears again without error and redirects once more
	s.Logout()
	assert.Empty(t, s.Token())
	assert.Equal(t, 2, redirects)

	_, err = persist.LoadSessionState()
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestInvalidateSkipsNavigation(t *testing.T) {
	s, _, _ := newTestStore(t, func(models.Call) (models.Result, error) {
		return okResult(`{"token":"tok-1","userInfo":{}}`)
	})
	_, err := s.Login(context.Background(), "alice", "secret")
	require.NoError(t, err)

	redirects := 0
	s.OnNavigate(func() { redirects++ })

	s.Invalidate()
	assert.Empty(t, s.Token())
	assert.Equal(t, 0, redirects)
}

func TestFetchProfileFailureLogsOut(t *testing.T) {
	s, _, _ := newTestStore(t, func(call models.Call) (models.Result, error) {
		if call.Path == "/api/user/login" {
			return okResult(`{"token":"tok-1","userInfo":{"username":"alice"}}`)
		}
		return models.Result{}, faults.New(faults.KindTransport, "no response")
	})
	_, err := s.Login(context.Background(), "alice", "secret")
	require.NoError(t, err)

	_, err = s.FetchProfile(context.Background())
	require.Error(t, err)
	assert.Empty(t, s.Token())
	assert.Empty(t, s.Profile())
}

func TestFetchProfileUpdatesStoredProfile(t *testing.T) {
	s, _, _ := newTestStore(t, func(call models.Call) (models.Result, error) {
		if call.Path == "/api/user/login" {
			return okResult(`{"token":"tok-1","userInfo":{}}`)
		}
		return okResult(`{"username":"alice","nickname":"Al"}`)
	})
	_, err := s.Login(context.Background(), "alice", "secret")
	require.NoError(t, err)

	profile, err := s.FetchProfile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Al", profile.Nickname())
}

func TestUpdateProfileMergePreservesFields(t *testing.T) {
	s, _, _ := newTestStore(t, func(call models.Call) (models.Result, error) {
		if call.Path == "/api/user/login" {
			return okResult(`{"token":"tok-1","userInfo":{"username":"alice","avatar":"a.png"}}`)
		}
		return okResult(`{"nickname":"Al"}`)
	})
	_, err := s.Login(context.Background(), "alice", "secret")
	require.NoError(t, err)

	profile, err := s.UpdateProfile(context.Background(), map[string]any{"nickname": "Al"})
	require.NoError(t, err)

	// Patched field applied, untouched fields preserved
	assert.Equal(t, "Al", profile.Nickname())
	assert.Equal(t, "alice", profile.Username())
	assert.Equal(t, "a.png", profile.Avatar())
}

func TestProfileDefaults(t *testing.T) {
	p := Profile{"username": "bob"}
	assert.Equal(t, "bob", p.Nickname())
	assert.Equal(t, "user", p.Role())
	assert.Empty(t, p.Avatar())

	p = Profile{"username": "bob", "nickname": "Bobby", "role": "admin"}
	assert.Equal(t, "Bobby", p.Nickname())
	assert.Equal(t, "admin", p.Role())
}

func TestSetAvatar(t *testing.T) {
	s, _, persist := newTestStore(t, func(models.Call) (models.Result, error) {
		return okResult(`{}`)
	})

	require.NoError(t, s.SetAvatar("http://cdn/x.png"))
	assert.Equal(t, "http://cdn/x.png", s.Profile().Avatar())

	saved, err := persist.LoadSessionState()
	require.NoError(t, err)
	assert.Equal(t, "http://cdn/x.png", saved.Profile["avatar"])
}

func TestRestoresPersistedSession(t *testing.T) {
	persist := memory.NewMemoryPersistence()
	require.NoError(t, persist.SaveSessionState(persistence.SessionState{
		Token:   "opaque-token",
		Profile: map[string]any{"username": "carol"},
	}))

	s, err := NewStore(persist)
	require.NoError(t, err)
	assert.Equal(t, "opaque-token", s.Token())
	assert.Equal(t, "carol", s.Profile().Username())
}

func TestExpiredJwtLoadsUnauthenticated(t *testing.T) {
	// JWT with exp in the distant past (header/payload unsigned, parse-only)
	expired := "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9." +
		"eyJleHAiOjk0NjY4NDgwMH0." + // 2000-01-01
		"c2ln"

	persist := memory.NewMemoryPersistence()
	require.NoError(t, persist.SaveSessionState(persistence.SessionState{Token: expired}))

	s, err := NewStore(persist)
	require.NoError(t, err)
	assert.Empty(t, s.Token())
}

func TestRegister(t *testing.T) {
	s, caller, _ := newTestStore(t, func(models.Call) (models.Result, error) {
		return okResult(`{}`)
	})

	ok, err := s.Register(context.Background(), models.RegisterRequest{Username: "dave", Password: "pw"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, s.Token())

	require.Len(t, caller.calls, 1)
	assert.Equal(t, "/api/user/register", caller.calls[0].Path)
}
