package routing

import (
	"sync/atomic"

	"github.com/genesis-mesh/node/trust"
)

// Packet is the unit the router forwards: a destination, a hop budget,
// its originating source, and a dedup identity.
type Packet struct {
	Dest      trust.NodeID
	TTL       int
	Source    trust.NodeID
	PayloadID string
	Data      []byte
}

// Sender delivers a packet to a specific next hop, or to every active
// peer except one (broadcast flood). Satisfied by the transport/peer
// layer; kept as an interface so routing has no import-time dependency
// on transport.
type Sender interface {
	SendTo(hop trust.NodeID, pkt Packet) error
	ActivePeersExcept(ingress trust.NodeID) []trust.NodeID
}

// Router owns a Table and a Sender and implements the forwarding and
// announcement rules from the spec's routing component.
type Router struct {
	self    trust.NodeID
	table   *Table
	seen    *SeenCache
	sender  Sender
	maxHops int
	seq     uint64 // last sequence number this node originated for itself
}

// NewRouter creates a Router for self, forwarding through sender.
func NewRouter(self trust.NodeID, table *Table, seen *SeenCache, sender Sender, maxHops int) *Router {
	return &Router{self: self, table: table, seen: seen, sender: sender, maxHops: maxHops}
}

// Deliver handler, set by the owning node to consume packets addressed
// to self.
type Deliver func(pkt Packet)

// Forward routes an inbound packet per spec.md §4.4's decision tree, in
// order: deliver if addressed to self; else decrement TTL and drop if
// expired; look up the route and drop if absent or withdrawn; dedup
// against the seen cache; send to the next hop. The ordering matters —
// a packet that is both TTL-expired and already seen must report
// ErrTtlExpired, not ErrDuplicate, since TTL is checked first.
func (r *Router) Forward(pkt Packet, deliver Deliver) error {
	if pkt.Dest == r.self {
		if deliver != nil {
			deliver(pkt)
		}
		return nil
	}

	pkt.TTL--
	if pkt.TTL <= 0 {
		return ErrTtlExpired
	}

	entry, ok := r.table.Lookup(pkt.Dest)
	if !ok || entry.Flags&FlagWithdrawn != 0 {
		return ErrNoRoute
	}

	if r.seen.SeenOrRecord(pkt.PayloadID) {
		return ErrDuplicate
	}

	return r.sender.SendTo(entry.NextHop, pkt)
}

// Broadcast reliable-floods pkt to every active peer except ingress,
// gated by the same seen cache used for unicast forwarding.
func (r *Router) Broadcast(pkt Packet, ingress trust.NodeID) {
	if r.seen.SeenOrRecord(pkt.PayloadID) {
		return
	}
	for _, peerID := range r.sender.ActivePeersExcept(ingress) {
		_ = r.sender.SendTo(peerID, pkt)
	}
}

// NextOriginationSequence returns the next even sequence number this
// node should use when announcing a route to itself. Odd numbers are
// reserved for withdrawals.
func (r *Router) NextOriginationSequence() uint64 {
	next := atomic.AddUint64(&r.seq, 2)
	return next
}

// NextWithdrawalSequence returns the odd sequence number that
// invalidates the most recently originated announcement.
func (r *Router) NextWithdrawalSequence() uint64 {
	return atomic.LoadUint64(&r.seq) + 1
}

// OriginateSelf builds this node's self-announcement: metric 0, a fresh
// even sequence number.
func (r *Router) OriginateSelf() Entry {
	return Entry{
		Destination:    r.self,
		NextHop:        r.self,
		Metric:         0,
		SequenceNumber: r.NextOriginationSequence(),
		LearnedFrom:    r.self,
	}
}

// Accept feeds an incoming RouteAnnounce entry (already relabeled with
// LearnedFrom/NextHop/Metric+1 by the caller) through the DSDV
// selection rule, capping metric at maxHops.
func (r *Router) Accept(candidate Entry) bool {
	if candidate.Metric > r.maxHops {
		return false
	}
	return r.table.Accept(candidate)
}

// WithdrawDestination invalidates the locally held route to dest, if
// any, and returns the withdrawal entry ready to flood. Used for an
// administratively triggered withdrawal (an anchor-issued
// ControlRouteWithdraw message), as opposed to the automatic withdrawal
// HandlePeerDisconnect performs when a peer drops.
func (r *Router) WithdrawDestination(dest trust.NodeID) (Entry, bool) {
	withdrawal, ok := r.table.InvalidateDestination(dest)
	if !ok {
		return Entry{}, false
	}
	withdrawal.SequenceNumber++
	return withdrawal, true
}

// HandlePeerDisconnect invalidates every route through hop and returns
// withdrawal entries ready to flood.
func (r *Router) HandlePeerDisconnect(hop trust.NodeID) []Entry {
	affected := r.table.InvalidateNextHop(hop)
	if len(affected) == 0 {
		return nil
	}
	withdrawals := make([]Entry, 0, len(affected))
	for _, dest := range affected {
		withdrawSeq := r.NextWithdrawalSequence()
		if e, ok := r.table.Lookup(dest); ok {
			withdrawSeq = e.SequenceNumber + 1
		}
		withdrawals = append(withdrawals, Entry{
			Destination:    dest,
			NextHop:        hop,
			Metric:         r.maxHops + 1,
			SequenceNumber: withdrawSeq,
			LearnedFrom:    r.self,
			Flags:          FlagWithdrawn,
		})
	}
	return withdrawals
}
