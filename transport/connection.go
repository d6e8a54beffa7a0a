package transport

import (
	"context"
	"sync"
	"time"

	"github.com/genesis-mesh/node/internal/logger"
	"github.com/genesis-mesh/node/trust"
)

// State is one node in the connection lifecycle state machine:
// Dialing -> Handshaking -> Established -> {Draining -> Closed, Failed}.
type State int

const (
	StateDialing State = iota
	StateHandshaking
	StateEstablished
	StateDraining
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDialing:
		return "Dialing"
	case StateHandshaking:
		return "Handshaking"
	case StateEstablished:
		return "Established"
	case StateDraining:
		return "Draining"
	case StateClosed:
		return "Closed"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

const (
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultIdleTimeout      = 30 * time.Second
	DefaultPingInterval     = 15 * time.Second
	DefaultDrainTimeout     = 5 * time.Second
	MaxMissedPongs          = 2
)

// Wire abstracts the byte-stream underneath a Connection (e.g. a
// gorilla/websocket connection) so Connection's state machine has no
// compile-time dependency on a specific transport library.
type Wire interface {
	WriteMessage(data []byte) error
	ReadMessage() ([]byte, error)
	Close() error
}

// Connection is one peer link's framing + session + state machine. The
// transport package is the sole owner of Connections; peer/routing hold
// only a NodeID and reach the connection through the transport's lookup
// interface.
type Connection struct {
	mu           sync.Mutex
	peerID       trust.NodeID
	wire         Wire
	session      *Session
	state        State
	sendQueue    chan Frame
	missedPongs  int
	lastPongAt   time.Time
	cancel       context.CancelFunc
	closeOnce    sync.Once
}

// NewConnection wraps wire in the Dialing state. Callers drive the FSM
// forward via SetHandshaking/Establish/Fail.
func NewConnection(wire Wire, sendQueueSize int) *Connection {
	if sendQueueSize <= 0 {
		sendQueueSize = 256
	}
	return &Connection{
		wire:      wire,
		state:     StateDialing,
		sendQueue: make(chan Frame, sendQueueSize),
	}
}

// State returns the connection's current FSM state.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetHandshaking transitions Dialing -> Handshaking on transport open.
func (c *Connection) SetHandshaking() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateDialing {
		c.state = StateHandshaking
	}
}

// Establish transitions Handshaking -> Established once the peer's
// certificate has verified and handshake nonces matched, binding the
// connection to peerID and its derived Session.
func (c *Connection) Establish(peerID trust.NodeID, session *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateHandshaking {
		return
	}
	c.peerID = peerID
	c.session = session
	c.state = StateEstablished
	c.lastPongAt = time.Now()
	logger.Info("connection established", logger.String("peer", string(peerID)))
}

// Fail transitions any state to Failed, recording reason for audit.
func (c *Connection) Fail(reason error) {
	c.mu.Lock()
	prior := c.state
	c.state = StateFailed
	c.mu.Unlock()
	if prior != StateFailed {
		logger.Warn("connection failed", logger.String("peer", string(c.peerID)), logger.Error(reason))
	}
	c.shutdown()
}

// Drain transitions Established -> Draining; enqueued messages are
// given up to DefaultDrainTimeout to flush before the connection closes.
func (c *Connection) Drain() {
	c.mu.Lock()
	if c.state != StateEstablished {
		c.mu.Unlock()
		return
	}
	c.state = StateDraining
	c.mu.Unlock()

	deadline := time.NewTimer(DefaultDrainTimeout)
	defer deadline.Stop()
	for {
		select {
		case <-deadline.C:
			c.close()
			return
		default:
			if len(c.sendQueue) == 0 {
				c.close()
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func (c *Connection) close() {
	c.mu.Lock()
	c.state = StateClosed
	c.mu.Unlock()
	c.shutdown()
}

func (c *Connection) shutdown() {
	c.closeOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		_ = c.wire.Close()
	})
}

// PeerID returns the remote node's identity, valid once Established.
func (c *Connection) PeerID() trust.NodeID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peerID
}

// OnDrop, if set, is called whenever Enqueue drops a frame under
// backpressure. It exists only so a caller outside this package (the
// node's metrics wiring) can observe drops without this package
// importing internal/metrics, which itself imports transport for its
// sentinel errors — a direct import here would cycle.
var OnDrop func(kind Kind)

// Enqueue places f on the send queue. Non-Control frames are dropped
// (oldest first) under backpressure; a saturated queue for a Control
// frame instead fails the connection, since control traffic must never
// be silently dropped.
func (c *Connection) Enqueue(f Frame) error {
	select {
	case c.sendQueue <- f:
		return nil
	default:
	}
	if f.Kind == KindControl {
		c.Fail(ErrProtocolViolation)
		return ErrClosed
	}
	select {
	case <-c.sendQueue:
	default:
	}
	select {
	case c.sendQueue <- f:
	default:
	}
	if OnDrop != nil {
		OnDrop(f.Kind)
	}
	return nil
}

// WriteLoop drains the send queue onto the wire, sealing each frame's
// payload through Session, until ctx is cancelled.
func (c *Connection) WriteLoop(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return
		case f := <-c.sendQueue:
			if err := c.writeFrame(f); err != nil {
				c.Fail(err)
				return
			}
		}
	}
}

// SendHandshakeFrame writes a frame straight to the wire, bypassing the
// send queue and WriteLoop. It exists only for the Handshaking state,
// before a Session has been derived and before WriteLoop has started:
// the handshake exchange needs to see the frame hit the wire
// synchronously so it can then block on ReadFrame for the peer's reply.
func (c *Connection) SendHandshakeFrame(kind Kind, payload []byte) error {
	return c.writeFrame(Frame{Kind: kind, Payload: payload})
}

func (c *Connection) writeFrame(f Frame) error {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()

	payload := f.Payload
	if session != nil {
		sealed, err := session.Seal(f.Payload)
		if err != nil {
			return err
		}
		payload = sealed
	}
	raw, err := Frame{Version: FrameVersion, Kind: f.Kind, Payload: payload}.Marshal()
	if err != nil {
		return err
	}
	return c.wire.WriteMessage(raw)
}

// ReadFrame reads and authenticates one frame from the wire, opening
// its Session-sealed payload once Established.
func (c *Connection) ReadFrame() (Frame, error) {
	raw, err := c.wire.ReadMessage()
	if err != nil {
		return Frame{}, err
	}
	f, err := Unmarshal(raw)
	if err != nil {
		return Frame{}, err
	}

	c.mu.Lock()
	session := c.session
	c.mu.Unlock()

	if session != nil {
		plaintext, err := session.Open(f.Payload)
		if err != nil {
			return Frame{}, err
		}
		f.Payload = plaintext
	}
	return f, nil
}

// HandlePong records a liveness response, resetting the missed-pong
// counter.
func (c *Connection) HandlePong() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.missedPongs = 0
	c.lastPongAt = time.Now()
}

// CheckLiveness reports whether the connection has exceeded
// MaxMissedPongs, incrementing the miss counter as a side effect. The
// ping loop calls this once per PingInterval tick.
func (c *Connection) CheckLiveness() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.missedPongs++
	return c.missedPongs > MaxMissedPongs
}
