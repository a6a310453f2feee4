package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaykit/relaykit/internal/core/faults"
	"github.com/relaykit/relaykit/internal/core/mode"
	"github.com/relaykit/relaykit/pkg/persistence/implementations/memory"
)

func newStreamServer(t *testing.T, payload string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		if payload != "" {
			conn.WriteMessage(websocket.TextMessage, []byte(payload))
		}
		// Hold the connection open until the client closes it
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func newModes(t *testing.T, streamURL string) *mode.Manager {
	t.Helper()
	modes, err := mode.NewManager(memory.NewMemoryPersistence())
	require.NoError(t, err)
	require.NoError(t, modes.SwitchMode(mode.ModeLocal, "http://localhost:8080", streamURL))
	return modes
}

func TestConnectDeliversMessages(t *testing.T) {
	srv := newStreamServer(t, `{"event":"ping"}`)
	defer srv.Close()

	modes := newModes(t, wsURL(srv))
	client := NewClient(modes, "/ws")

	received := make(chan []byte, 1)
	client.OnMessage(func(payload []byte) { received <- payload })

	require.NoError(t, client.Connect(context.Background()))
	defer client.Close()
	assert.True(t, client.Connected())

	select {
	case payload := <-received:
		assert.JSONEq(t, `{"event":"ping"}`, string(payload))
	case <-time.After(5 * time.Second):
		t.Fatal("no message received")
	}
}

func TestConnectRefusedOffline(t *testing.T) {
	modes := newModes(t, "ws://localhost:1")
	require.NoError(t, modes.SwitchMode(mode.ModeOffline, "", ""))

	client := NewClient(modes, "/ws")
	err := client.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, faults.KindTransport, faults.KindOf(err))
	assert.False(t, client.Connected())
}

func TestCloseIsIdempotent(t *testing.T) {
	srv := newStreamServer(t, "")
	defer srv.Close()

	modes := newModes(t, wsURL(srv))
	client := NewClient(modes, "/ws")
	require.NoError(t, client.Connect(context.Background()))

	require.NoError(t, client.Close())
	assert.False(t, client.Connected())
	require.NoError(t, client.Close())
}

func TestResetRedialsAgainstNewEndpoints(t *testing.T) {
	first := newStreamServer(t, "")
	defer first.Close()
	second := newStreamServer(t, "")
	defer second.Close()

	modes := newModes(t, wsURL(first))
	client := NewClient(modes, "/ws")
	modes.OnReset(client.Reset)
	require.NoError(t, client.Connect(context.Background()))

	// Switch mode; the reset hook redials against the new stream endpoint
	require.NoError(t, modes.SwitchMode(mode.ModeOnline, "http://localhost:8080", wsURL(second)))
	assert.True(t, client.Connected())
	client.Close()
}

func TestResetStaysDownWhenDisconnected(t *testing.T) {
	modes := newModes(t, "ws://localhost:1")
	client := NewClient(modes, "/ws")

	client.Reset()
	assert.False(t, client.Connected())
}
