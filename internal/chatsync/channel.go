package chatsync

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// ChannelState is the lifecycle of one duplex connection.
type ChannelState int32

const (
	StateDisconnected ChannelState = iota
	StateConnecting
	StateOpen
	StateClosed
)

func (s ChannelState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "disconnected"
	}
}

// EventKind distinguishes inbound channel events.
type EventKind string

const (
	EventMessage EventKind = "message"
	EventError   EventKind = "error"
	EventClosed  EventKind = "closed"
)

// Event is delivered to the single registered listener. Payload is only set
// for EventMessage.
type Event struct {
	Kind    EventKind
	Payload []byte
}

// wsConn is the slice of *websocket.Conn the channel needs; tests substitute
// a stub.
type wsConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dialer opens a websocket connection to the given url.
type Dialer func(ctx context.Context, url string) (wsConn, error)

func gorillaDial(ctx context.Context, rawURL string) (wsConn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, rawURL, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Channel wraps one live websocket connection bound to exactly one backend
// session id. It is exclusively owned by the feature instance that created
// it; transport errors degrade it to Closed instead of escaping.
type Channel struct {
	wsBase string
	dial   Dialer

	mu        sync.Mutex
	sessionID string
	state     ChannelState
	conn      wsConn
	gen       uint64
	listener  func(Event)
	closing   bool
}

// NewChannel builds a channel for the given API base URL. The http(s) scheme
// is rewritten to ws(s).
func NewChannel(baseURL string) (*Channel, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing base url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http", "":
		u.Scheme = "ws"
	}
	return &Channel{wsBase: u.String(), dial: gorillaDial}, nil
}

// SetListener registers the single event listener. Passing nil deregisters it;
// events delivered afterwards are dropped.
func (c *Channel) SetListener(fn func(Event)) {
	c.mu.Lock()
	c.listener = fn
	c.mu.Unlock()
}

// State reports the current channel state.
func (c *Channel) State() ChannelState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect opens the socket for the given session id. It is idempotent: while
// a connection for the same id is Open or Connecting this is a no-op, so a
// second call never opens a second socket.
func (c *Channel) Connect(ctx context.Context, sessionID string) error {
	c.mu.Lock()
	if c.sessionID == sessionID && (c.state == StateOpen || c.state == StateConnecting) {
		c.mu.Unlock()
		return nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.sessionID = sessionID
	c.state = StateConnecting
	c.gen++
	gen := c.gen
	c.closing = false
	c.mu.Unlock()

	wsURL := fmt.Sprintf("%s/api/v1/chat/ws/%s", c.wsBase, sessionID)
	conn, err := c.dial(ctx, wsURL)

	c.mu.Lock()
	if c.gen != gen {
		// A newer Connect or Close superseded this dial.
		c.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return nil
	}
	if err != nil {
		c.state = StateDisconnected
		c.sessionID = ""
		c.mu.Unlock()
		return fmt.Errorf("dialing %s: %w", wsURL, err)
	}
	c.conn = conn
	c.state = StateOpen
	c.mu.Unlock()

	log.Debug().Str("component", "chatsync").Str("session_id", sessionID).Msg("channel open")
	go c.readLoop(conn, gen)
	return nil
}

// Send writes one raw text frame. Valid only in the Open state; nothing is
// queued while the channel is down.
func (c *Channel) Send(text string) error {
	c.mu.Lock()
	if c.state != StateOpen || c.conn == nil {
		c.mu.Unlock()
		return ErrChannelNotOpen
	}
	conn := c.conn
	c.mu.Unlock()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		return fmt.Errorf("%w: %v", ErrChannelNotOpen, err)
	}
	return nil
}

// Close releases the socket. It is safe on every exit path, including when
// the channel never connected.
func (c *Channel) Close() {
	c.mu.Lock()
	c.closing = true
	conn := c.conn
	c.conn = nil
	c.sessionID = ""
	c.state = StateClosed
	c.gen++
	c.mu.Unlock()

	if conn != nil {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = conn.Close()
	}
}

func (c *Channel) readLoop(conn wsConn, gen uint64) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			stale := c.gen != gen
			deliberate := c.closing
			if !stale {
				// Clear the handle so a later Connect with the same id may
				// open a fresh socket.
				c.conn = nil
				c.sessionID = ""
				c.state = StateClosed
			}
			listener := c.listener
			c.mu.Unlock()

			if stale {
				return
			}
			if !deliberate {
				log.Debug().Err(err).Str("component", "chatsync").Msg("channel read failed")
				deliver(listener, Event{Kind: EventError})
			}
			deliver(listener, Event{Kind: EventClosed})
			return
		}

		c.mu.Lock()
		stale := c.gen != gen
		listener := c.listener
		c.mu.Unlock()
		if stale {
			return
		}
		deliver(listener, Event{Kind: EventMessage, Payload: data})
	}
}

func deliver(listener func(Event), ev Event) {
	if listener != nil {
		listener(ev)
	}
}
