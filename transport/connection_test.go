package transport

import (
	"context"
	"testing"

	"github.com/genesis-mesh/node/trust"
)

// pipeWire is an in-memory Wire backed by unbuffered channels, letting
// connection tests run without a real socket.
type pipeWire struct {
	out    chan []byte
	in     chan []byte
	closed chan struct{}
}

func newPipePair() (*pipeWire, *pipeWire) {
	ab := make(chan []byte, 16)
	ba := make(chan []byte, 16)
	closed := make(chan struct{})
	a := &pipeWire{out: ab, in: ba, closed: closed}
	b := &pipeWire{out: ba, in: ab, closed: closed}
	return a, b
}

func (p *pipeWire) WriteMessage(data []byte) error {
	cp := make([]byte, len(data))
	copy(cp, data)
	select {
	case p.out <- cp:
		return nil
	case <-p.closed:
		return ErrClosed
	}
}

func (p *pipeWire) ReadMessage() ([]byte, error) {
	select {
	case data := <-p.in:
		return data, nil
	case <-p.closed:
		return nil, ErrClosed
	}
}

func (p *pipeWire) Close() error {
	select {
	case <-p.closed:
	default:
		close(p.closed)
	}
	return nil
}

func TestConnectionStateTransitions(t *testing.T) {
	a, _ := newPipePair()
	conn := NewConnection(a, 4)
	if conn.State() != StateDialing {
		t.Fatalf("want Dialing, got %v", conn.State())
	}
	conn.SetHandshaking()
	if conn.State() != StateHandshaking {
		t.Fatalf("want Handshaking, got %v", conn.State())
	}
	conn.Establish(trust.NodeID("peer-a"), nil)
	if conn.State() != StateEstablished {
		t.Fatalf("want Established, got %v", conn.State())
	}
	if conn.PeerID() != trust.NodeID("peer-a") {
		t.Fatalf("peer id = %v", conn.PeerID())
	}
}

func TestConnectionFailIsSticky(t *testing.T) {
	a, _ := newPipePair()
	conn := NewConnection(a, 4)
	conn.Fail(ErrTimeout)
	if conn.State() != StateFailed {
		t.Fatalf("want Failed, got %v", conn.State())
	}
}

func TestConnectionFrameRoundTripUnencrypted(t *testing.T) {
	a, b := newPipePair()
	connA := NewConnection(a, 4)
	connB := NewConnection(b, 4)

	go func() {
		_ = connA.Enqueue(Frame{Kind: KindPing, Payload: []byte("hi")})
	}()
	go connA.WriteLoop(context.Background())

	got, err := connB.ReadFrame()
	if err != nil {
		t.Fatal(err)
	}
	if got.Kind != KindPing || string(got.Payload) != "hi" {
		t.Fatalf("got %+v", got)
	}
}

func TestConnectionEnqueueDropsOldestNonControlUnderBackpressure(t *testing.T) {
	a, _ := newPipePair()
	conn := NewConnection(a, 1)
	if err := conn.Enqueue(Frame{Kind: KindPing, Payload: []byte("1")}); err != nil {
		t.Fatal(err)
	}
	if err := conn.Enqueue(Frame{Kind: KindPing, Payload: []byte("2")}); err != nil {
		t.Fatal(err)
	}
	select {
	case f := <-conn.sendQueue:
		if string(f.Payload) != "2" {
			t.Fatalf("expected newest frame to survive, got %q", f.Payload)
		}
	default:
		t.Fatal("expected a frame queued")
	}
}

func TestConnectionEnqueueFailsConnectionOnSaturatedControlFrame(t *testing.T) {
	a, _ := newPipePair()
	conn := NewConnection(a, 1)
	_ = conn.Enqueue(Frame{Kind: KindPing, Payload: []byte("1")})
	err := conn.Enqueue(Frame{Kind: KindControl, Payload: []byte("2")})
	if err != ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if conn.State() != StateFailed {
		t.Fatalf("want Failed, got %v", conn.State())
	}
}

func TestCheckLivenessTripsAfterMaxMissedPongs(t *testing.T) {
	a, _ := newPipePair()
	conn := NewConnection(a, 4)
	for i := 0; i < MaxMissedPongs; i++ {
		if conn.CheckLiveness() {
			t.Fatalf("should not trip before %d misses", MaxMissedPongs+1)
		}
	}
	if !conn.CheckLiveness() {
		t.Fatal("expected liveness check to trip")
	}
	conn.HandlePong()
	if conn.CheckLiveness() {
		t.Fatal("pong should reset miss counter")
	}
}
