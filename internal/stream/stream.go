// Package stream owns the lifecycle of one streaming connection:
// dial, authenticate, subscribe, keep-alive, close. Reconnection is the
// owner's decision; this package only reports the close.
package stream

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"quotebridge/internal/types"
)

// State is the lifecycle state of a Connection.
type State int32

const (
	StateConnecting State = iota
	StateAuthenticating
	StateSubscribing
	StateActive
	StateClosing
	StateClosed
	StateErrored
)

// String implements fmt.Stringer for State.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateAuthenticating:
		return "AUTHENTICATING"
	case StateSubscribing:
		return "SUBSCRIBING"
	case StateActive:
		return "ACTIVE"
	case StateClosing:
		return "CLOSING"
	case StateClosed:
		return "CLOSED"
	case StateErrored:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Conn is the minimal transport a Connection drives. Production code uses
// the gorilla-backed implementation from Dial; tests inject fakes.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// Dialer opens a raw transport connection to a URL.
type Dialer func(url string) (Conn, error)

// Profile is the per-venue strategy object composed into the generic
// lifecycle: payload builders plus timing knobs. Nil payloads mean the
// venue does not use that step.
type Profile struct {
	URL           string
	BuildAuth     func() ([]byte, error)
	Subscribe     []byte
	Ping          []byte
	PingInterval  time.Duration
	PostAuthDelay time.Duration
}

// Connection is one live streaming connection. It is owned by exactly one
// quote-engine subscription slot.
type Connection struct {
	profile   Profile
	conn      Conn
	onMessage func([]byte)
	onClosed  func(error)

	state    atomic.Int32
	writeMu  sync.Mutex
	pingDone chan struct{}
	termOnce sync.Once
	wg       sync.WaitGroup
}

// Open dials and walks the connection through auth and subscribe into the
// ACTIVE state, then starts the reader and keep-alive tasks. onMessage is
// invoked sequentially, in wire order, on the reader goroutine. onClosed
// is invoked exactly once, with nil for a local Close and the triggering
// error otherwise.
func Open(profile Profile, dial Dialer, onMessage func([]byte), onClosed func(error)) (*Connection, error) {
	c := &Connection{
		profile:   profile,
		onMessage: onMessage,
		onClosed:  onClosed,
		pingDone:  make(chan struct{}),
	}
	c.state.Store(int32(StateConnecting))

	conn, err := dial(profile.URL)
	if err != nil {
		c.state.Store(int32(StateErrored))
		return nil, types.NewError(types.ErrKindConnection, "dial "+profile.URL, err)
	}
	c.conn = conn

	if profile.BuildAuth != nil {
		c.state.Store(int32(StateAuthenticating))
		payload, err := profile.BuildAuth()
		if err != nil {
			conn.Close()
			c.state.Store(int32(StateErrored))
			return nil, types.NewError(types.ErrKindConnection, "build auth payload", err)
		}
		if err := c.write(payload); err != nil {
			conn.Close()
			c.state.Store(int32(StateErrored))
			return nil, types.NewError(types.ErrKindConnection, "send auth payload", err)
		}
		// Some venues reject a subscribe sent immediately after auth.
		if profile.PostAuthDelay > 0 {
			time.Sleep(profile.PostAuthDelay)
		}
	}

	if profile.Subscribe != nil {
		c.state.Store(int32(StateSubscribing))
		if err := c.write(profile.Subscribe); err != nil {
			conn.Close()
			c.state.Store(int32(StateErrored))
			return nil, types.NewError(types.ErrKindConnection, "send subscribe payload", err)
		}
	}

	c.state.Store(int32(StateActive))
	log.Debug().Str("url", profile.URL).Msg("connection active")

	if profile.PingInterval > 0 && profile.Ping != nil {
		c.wg.Add(1)
		go c.pingLoop()
	}
	c.wg.Add(1)
	go c.readLoop()

	return c, nil
}

// State returns the current lifecycle state.
func (c *Connection) State() State {
	return State(c.state.Load())
}

// Send writes a raw payload to the connection.
func (c *Connection) Send(data []byte) error {
	if c.State() != StateActive {
		return types.Errorf(types.ErrKindConnection, "connection is %s", c.State())
	}
	return c.write(data)
}

// Close terminates the connection locally. Idempotent.
func (c *Connection) Close() {
	c.state.CompareAndSwap(int32(StateActive), int32(StateClosing))
	c.terminate(nil, StateClosed)
}

func (c *Connection) write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(data)
}

func (c *Connection) readLoop() {
	defer c.wg.Done()
	for {
		msg, err := c.conn.ReadMessage()
		if err != nil {
			c.terminate(err, StateErrored)
			return
		}
		if c.onMessage != nil {
			c.onMessage(msg)
		}
	}
}

func (c *Connection) pingLoop() {
	defer c.wg.Done()
	ticker := time.NewTicker(c.profile.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.pingDone:
			return
		case <-ticker.C:
			if c.State() != StateActive {
				return
			}
			if err := c.write(c.profile.Ping); err != nil {
				log.Warn().Err(err).Str("url", c.profile.URL).Msg("keep-alive send failed")
				c.terminate(err, StateErrored)
				return
			}
		}
	}
}

// terminate stops the keep-alive, closes the socket, records the final
// state and fires the closed callback. Safe to call from any goroutine;
// only the first call wins.
func (c *Connection) terminate(reason error, final State) {
	c.termOnce.Do(func() {
		close(c.pingDone)
		c.state.Store(int32(final))
		c.conn.Close()
		if reason != nil {
			log.Warn().Err(reason).Str("url", c.profile.URL).Msg("connection lost")
		} else {
			log.Debug().Str("url", c.profile.URL).Msg("connection closed")
		}
		if c.onClosed != nil {
			c.onClosed(reason)
		}
	})
}

// Dial is the production Dialer, backed by gorilla/websocket.
func Dial(url string) (Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.Dial(url, http.Header{})
	if err != nil {
		return nil, err
	}
	return &wsConn{conn: conn}, nil
}

type wsConn struct {
	conn *websocket.Conn
}

func (w *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := w.conn.ReadMessage()
	return data, err
}

func (w *wsConn) WriteMessage(data []byte) error {
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

func (w *wsConn) Close() error {
	return w.conn.Close()
}
