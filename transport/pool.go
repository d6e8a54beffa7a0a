package transport

import (
	"sync"

	"github.com/genesis-mesh/node/trust"
)

// DefaultMaxConnections caps concurrent peer links; a node sitting on
// more edges than this is almost certainly being used as a gossip
// amplifier rather than a normal mesh participant.
const DefaultMaxConnections = 50

// Pool owns every Connection a node holds open, indexed by peer
// identity, and enforces the max-concurrent-connections cap and
// outbound-dial deduplication.
type Pool struct {
	mu      sync.RWMutex
	byPeer  map[trust.NodeID]*Connection
	dialing map[trust.NodeID]struct{}
	max     int
}

// NewPool builds an empty pool. max <= 0 falls back to DefaultMaxConnections.
func NewPool(max int) *Pool {
	if max <= 0 {
		max = DefaultMaxConnections
	}
	return &Pool{
		byPeer:  make(map[trust.NodeID]*Connection),
		dialing: make(map[trust.NodeID]struct{}),
		max:     max,
	}
}

// BeginDial reserves id for an outbound dial, returning false if a dial
// or connection to id is already in flight so callers don't open a
// second redundant link to the same peer.
func (p *Pool) BeginDial(id trust.NodeID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.byPeer[id]; exists {
		return false
	}
	if _, inFlight := p.dialing[id]; inFlight {
		return false
	}
	if len(p.byPeer)+len(p.dialing) >= p.max {
		return false
	}
	p.dialing[id] = struct{}{}
	return true
}

// AbortDial releases a reservation made by BeginDial that never reached Add.
func (p *Pool) AbortDial(id trust.NodeID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.dialing, id)
}

// Add installs an established connection under id, clearing any dial
// reservation. Returns ErrPoolFull if the cap would be exceeded by an
// inbound connection that never went through BeginDial.
func (p *Pool) Add(id trust.NodeID, conn *Connection) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.dialing, id)
	if _, exists := p.byPeer[id]; exists {
		return ErrPoolFull
	}
	if len(p.byPeer) >= p.max {
		return ErrPoolFull
	}
	p.byPeer[id] = conn
	return nil
}

// Get returns the connection for id, if any.
func (p *Pool) Get(id trust.NodeID) (*Connection, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	c, ok := p.byPeer[id]
	return c, ok
}

// Remove drops id from the pool, e.g. once its connection reaches Closed/Failed.
func (p *Pool) Remove(id trust.NodeID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.byPeer, id)
	delete(p.dialing, id)
}

// Len returns the number of established connections.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.byPeer)
}

// All returns a snapshot of connected peer IDs.
func (p *Pool) All() []trust.NodeID {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]trust.NodeID, 0, len(p.byPeer))
	for id := range p.byPeer {
		out = append(out, id)
	}
	return out
}

// ActivePeersExcept implements routing.Sender's peer-enumeration half,
// letting the router flood broadcasts without depending on transport
// internals beyond this interface.
func (p *Pool) ActivePeersExcept(exclude trust.NodeID) []trust.NodeID {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]trust.NodeID, 0, len(p.byPeer))
	for id := range p.byPeer {
		if id != exclude {
			out = append(out, id)
		}
	}
	return out
}

// CloseAll drains and closes every connection, used during node shutdown.
func (p *Pool) CloseAll() {
	p.mu.Lock()
	conns := make([]*Connection, 0, len(p.byPeer))
	for _, c := range p.byPeer {
		conns = append(conns, c)
	}
	p.mu.Unlock()

	for _, c := range conns {
		c.Drain()
	}
}
