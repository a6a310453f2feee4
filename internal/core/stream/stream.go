// Package stream maintains the long-lived websocket connection to the
// stream endpoint of the active mode. The client registers itself as a mode
// reset hook so a switch tears the connection down and redials against the
// new endpoints.
package stream

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/relaykit/relaykit/internal/core/faults"
	"github.com/relaykit/relaykit/internal/core/mode"
)

const dialTimeout = 10 * time.Second

type Client struct {
	mu    sync.Mutex
	modes *mode.Manager
	path  string
	conn  *websocket.Conn

	// onMessage receives every frame from the read loop.
	onMessage func(payload []byte)
}

func NewClient(modes *mode.Manager, path string) *Client {
	return &Client{modes: modes, path: path}
}

// OnMessage registers the frame handler. Must be set before Connect.
func (c *Client) OnMessage(fn func(payload []byte)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onMessage = fn
}

// Connect dials the stream endpoint of the active mode and starts the read
// loop. Refused in pure-offline mode. An existing connection is closed first.
func (c *Client) Connect(ctx context.Context) error {
	if c.modes.Mode() == mode.ModeOffline {
		return faults.New(faults.KindTransport, "stream unavailable in offline mode")
	}

	url := strings.TrimSuffix(c.modes.Endpoints().StreamBaseURL, "/") + c.path

	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return faults.TransportWithHint("dial stream endpoint", err,
			c.modes.Mode() == mode.ModeOnline)
	}

	c.mu.Lock()
	old := c.conn
	c.conn = conn
	handler := c.onMessage
	c.mu.Unlock()

	if old != nil {
		old.Close()
	}

	log.Info().Str("url", url).Msg("Stream connected")
	go c.readLoop(conn, handler)
	return nil
}

// Connected reports whether a connection is currently held.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

func (c *Client) readLoop(conn *websocket.Conn, handler func([]byte)) {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			if c.conn == conn {
				c.conn = nil
			}
			c.mu.Unlock()
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Msg("Stream connection lost")
			}
			return
		}
		if handler != nil {
			handler(payload)
		}
	}
}

// Close tears down the current connection, if any.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return conn.Close()
}

// Reset drops the connection after a mode switch. If a connection was held,
// it redials against the endpoints now active; in offline mode it just stays
// down. Registered as a mode reset hook.
func (c *Client) Reset() {
	c.mu.Lock()
	wasConnected := c.conn != nil
	c.mu.Unlock()

	if err := c.Close(); err != nil {
		log.Debug().Err(err).Msg("Closing stream on reset")
	}
	if !wasConnected || c.modes.Mode() == mode.ModeOffline {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		log.Warn().Err(err).Msg("Stream redial after mode switch failed")
	}
}
