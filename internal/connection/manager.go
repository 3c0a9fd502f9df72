// internal/connection/manager.go

package connection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/openwave/chatsync/internal/protocol"
	"github.com/openwave/chatsync/internal/session"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512 * 1024 // 512KB

	// Outbound buffer per connection
	sendBuffer = 256

	handshakeTimeout = 10 * time.Second
)

var (
	// ErrUnavailable is returned by Emit while no socket is connected.
	// Sends are never queued for later delivery.
	ErrUnavailable = errors.New("connection unavailable")

	ErrAlreadyConnected = errors.New("already connected")
	ErrSendBufferFull   = errors.New("send buffer full")
)

// State is the connection lifecycle phase.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// Manager owns the single persistent socket for a session. It is the
// only component allowed to write to the network; everything else
// observes state through the bus and sends through Emit. On loss it
// attempts a bounded number of reconnects before giving up with a
// connect_error event.
type Manager struct {
	sess     session.Session
	url      string
	attempts int
	delay    time.Duration

	bus *Bus

	mu     sync.Mutex
	state  State
	conn   *websocket.Conn
	send   chan []byte
	gen    int
	closed bool
}

// NewManager builds a manager for the given session. attempts and delay
// bound the automatic reconnection; zero values fall back to 5 tries
// one second apart, matching the server's expectations.
func NewManager(sess session.Session, socketURL string, attempts int, delay time.Duration) *Manager {
	if attempts <= 0 {
		attempts = 5
	}
	if delay <= 0 {
		delay = time.Second
	}
	return &Manager{
		sess:     sess,
		url:      socketURL,
		attempts: attempts,
		delay:    delay,
		bus:      NewBus(),
	}
}

// Subscribe registers a handler for a named inbound event. Lifecycle
// transitions are published under the connect, disconnect and
// connect_error events.
func (m *Manager) Subscribe(event string, h Handler) *Subscription {
	return m.bus.Subscribe(event, h)
}

// State returns the current lifecycle phase.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Connected reports whether the socket is currently usable.
func (m *Manager) Connected() bool {
	return m.State() == StateConnected
}

// Connect dials the server and starts the read/write pumps. The auth
// token travels in the handshake; once connected the manager announces
// presence with user_connected so the server includes this client in
// presence broadcasts.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return errors.New("manager is closed")
	}
	if m.state == StateConnected || m.state == StateConnecting {
		m.mu.Unlock()
		return ErrAlreadyConnected
	}
	m.state = StateConnecting
	m.mu.Unlock()

	conn, err := m.dial(ctx)
	if err != nil {
		m.mu.Lock()
		m.state = StateDisconnected
		m.mu.Unlock()
		return fmt.Errorf("failed to connect: %w", err)
	}

	m.install(conn)
	return nil
}

// Emit sends a named event to the server. It fails immediately with
// ErrUnavailable while disconnected; there is no offline queue.
func (m *Manager) Emit(event string, payload interface{}) error {
	env, err := protocol.NewEnvelope(event, payload)
	if err != nil {
		return err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	// The lock is held across the send so handleLoss cannot close the
	// channel between the state check and the enqueue. The select never
	// blocks, so holding it here is safe.
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateConnected || m.send == nil {
		return ErrUnavailable
	}

	select {
	case m.send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close announces departure, tears the socket down and disables any
// further reconnection.
func (m *Manager) Close() error {
	// Best effort; the server also detects the closing handshake.
	_ = m.Emit(protocol.EventUserDisconnected, m.sess.UserID)

	m.mu.Lock()
	m.closed = true
	m.state = StateDisconnected
	conn := m.conn
	m.conn = nil
	m.send = nil
	m.gen++
	m.mu.Unlock()

	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		return conn.Close()
	}
	return nil
}

func (m *Manager) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+m.sess.Token)

	conn, resp, err := dialer.DialContext(ctx, m.url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: status %d: %w", m.url, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial %s: %w", m.url, err)
	}
	return conn, nil
}

// install wires a freshly dialed socket, announces presence and
// publishes the connect event.
func (m *Manager) install(conn *websocket.Conn) {
	m.mu.Lock()
	m.gen++
	gen := m.gen
	m.conn = conn
	m.send = make(chan []byte, sendBuffer)
	m.state = StateConnected
	send := m.send
	m.mu.Unlock()

	go m.writePump(conn, send)
	go m.readPump(conn, gen)

	m.bus.Publish(protocol.EventConnect, nil)

	if err := m.Emit(protocol.EventUserConnected, m.sess.UserID); err != nil {
		log.Printf("Failed to announce presence: %v", err)
	}
}

func (m *Manager) readPump(conn *websocket.Conn, gen int) {
	defer conn.Close()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Printf("Error unmarshaling envelope: %v", err)
			continue
		}

		// Handlers run inline so events keep arrival order.
		m.bus.Publish(env.Event, env.Data)
	}

	m.handleLoss(gen)
}

func (m *Manager) writePump(conn *websocket.Conn, send chan []byte) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case data, ok := <-send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleLoss transitions into reconnection after an unexpected read
// failure. Stale pumps from an already-replaced connection are ignored.
func (m *Manager) handleLoss(gen int) {
	m.mu.Lock()
	if m.closed || gen != m.gen {
		m.mu.Unlock()
		return
	}
	if m.send != nil {
		close(m.send)
		m.send = nil
	}
	m.conn = nil
	m.state = StateReconnecting
	m.mu.Unlock()

	m.bus.Publish(protocol.EventDisconnect, nil)

	go m.reconnect(gen)
}

func (m *Manager) reconnect(gen int) {
	for attempt := 1; attempt <= m.attempts; attempt++ {
		time.Sleep(m.delay)

		m.mu.Lock()
		if m.closed || gen != m.gen {
			m.mu.Unlock()
			return
		}
		m.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), handshakeTimeout)
		conn, err := m.dial(ctx)
		cancel()
		if err != nil {
			log.Printf("Reconnect attempt %d/%d failed: %v", attempt, m.attempts, err)
			continue
		}

		m.install(conn)
		return
	}

	m.mu.Lock()
	if m.closed || gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.state = StateDisconnected
	m.mu.Unlock()

	data, _ := json.Marshal(protocol.MessageErrorPayload{
		Error: fmt.Sprintf("reconnection failed after %d attempts", m.attempts),
	})
	m.bus.Publish(protocol.EventConnectError, data)
}
