package crlsync

import (
	"context"
	"time"

	"github.com/genesis-mesh/node/internal/logger"
	"github.com/genesis-mesh/node/trust"
)

// DefaultAnnounceInterval matches spec.md's crl_announce_interval_s default.
const DefaultAnnounceInterval = 60 * time.Second

// CrlAnnounce/CrlRequest/CrlPush payloads, carried as the JSON body of
// transport.Kind{CrlAnnounce,CrlRequest,CrlPush} frames.
type Announce struct {
	Sequence uint64 `json:"sequence"`
}

type Request struct {
	Since uint64 `json:"since"`
}

type Push struct {
	CRL trust.CRL `json:"crl"`
}

// Peers abstracts the subset of the connection pool the gossip loop
// needs: broadcasting an announcement and sending a targeted reply.
type Peers interface {
	Broadcast(kind Kind, payload interface{})
	SendTo(peer trust.NodeID, kind Kind, payload interface{}) error
	ConnectedPeers() []trust.NodeID
}

// Kind mirrors the subset of transport.Kind the CRL gossip protocol
// uses; kept distinct to avoid crlsync depending on the transport
// package's full frame machinery.
type Kind int

const (
	KindCrlAnnounce Kind = iota
	KindCrlRequest
	KindCrlPush
)

// Disconnector drops the connection to a peer once it is revoked.
type Disconnector interface {
	Disconnect(peer trust.NodeID, reason string)
}

// Gossip runs the periodic announce loop and handles incoming
// Announce/Request/Push messages per spec.md §4.6.
type Gossip struct {
	store        *Store
	peers        Peers
	disconnector Disconnector
	interval     time.Duration
}

// NewGossip wires a Store to its peer transport for periodic
// announcement and request/push handling.
func NewGossip(store *Store, peers Peers, disconnector Disconnector, interval time.Duration) *Gossip {
	if interval <= 0 {
		interval = DefaultAnnounceInterval
	}
	return &Gossip{store: store, peers: peers, disconnector: disconnector, interval: interval}
}

// Run periodically broadcasts the local CRL sequence to every
// connected peer until ctx is cancelled.
func (g *Gossip) Run(ctx context.Context) {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.peers.Broadcast(KindCrlAnnounce, Announce{Sequence: g.store.Sequence()})
		}
	}
}

// HandleAnnounce responds to a peer's sequence announcement: if it's
// ahead of ours, request the delta.
func (g *Gossip) HandleAnnounce(from trust.NodeID, msg Announce) {
	if msg.Sequence > g.store.Sequence() {
		_ = g.peers.SendTo(from, KindCrlRequest, Request{Since: g.store.Sequence()})
	}
}

// HandleRequest answers a peer's CrlRequest with the full current CRL.
// The protocol treats the CRL as an authoritative snapshot, not a diff
// log, so "since" only gates whether a response is worth sending.
func (g *Gossip) HandleRequest(from trust.NodeID, msg Request) {
	snapshot := g.store.Snapshot()
	if snapshot.Sequence <= msg.Since {
		return
	}
	_ = g.peers.SendTo(from, KindCrlPush, Push{CRL: *snapshot})
}

// HandlePush verifies and applies an incoming CRL push (gossip reply
// or NA emergency push), disconnecting any peer newly revoked and
// re-flooding the push to other anchors on emergency pushes.
func (g *Gossip) HandlePush(msg Push, reflood bool) {
	newlyRevoked, applied, err := g.store.Apply(&msg.CRL)
	if err != nil {
		logger.Warn("crl push rejected", logger.Error(err))
		return
	}
	if !applied {
		return
	}
	for _, subject := range newlyRevoked {
		g.disconnector.Disconnect(trust.NodeID(subject), "revoked")
	}
	if reflood {
		g.peers.Broadcast(KindCrlPush, msg)
	}
}
