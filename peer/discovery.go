package peer

import (
	"context"
	"time"

	"github.com/genesis-mesh/node/internal/logger"
	"github.com/genesis-mesh/node/trust"
)

// DefaultDiscoveryInterval matches discovery_interval_s's documented default.
const DefaultDiscoveryInterval = 60 * time.Second

// DefaultStaleSweepInterval is how often the staleness sweeper runs;
// running it more often than the stale timeout itself wastes nothing
// but CPU, so a modest fixed cadence is used regardless of configured
// stale_peer_timeout_s.
const DefaultStaleSweepInterval = time.Minute

// Requester asks a connected peer for its known-peer sample. Satisfied
// by the transport/connection layer; kept as an interface here so
// peer.Discovery has no import-time dependency on transport.
type Requester interface {
	RequestPeerList(ctx context.Context, id trust.NodeID, cap int) ([]GossipEntry, error)
	ConnectedPeers() []trust.NodeID
}

// Discovery drives the periodic gossip that keeps Manager's peer table
// populated beyond the bootstrap anchors.
type Discovery struct {
	manager  *Manager
	req      Requester
	interval time.Duration
	cap      int
}

// NewDiscovery wires a Discovery loop against manager using req to reach
// connected peers.
func NewDiscovery(manager *Manager, req Requester, interval time.Duration, gossipCap int) *Discovery {
	if interval <= 0 {
		interval = DefaultDiscoveryInterval
	}
	return &Discovery{manager: manager, req: req, interval: interval, cap: gossipCap}
}

// Run blocks, issuing a discovery round every interval until ctx is
// cancelled. It is intended to run as one of the node's long-lived
// cooperative tasks.
func (d *Discovery) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.round(ctx)
		}
	}
}

func (d *Discovery) round(ctx context.Context) {
	for _, id := range d.req.ConnectedPeers() {
		entries, err := d.req.RequestPeerList(ctx, id, d.cap)
		if err != nil {
			logger.Warn("discovery request failed", logger.String("node_id", string(id)), logger.Error(err))
			continue
		}
		d.manager.Merge(entries)
	}
}

// RunStaleSweep evicts stale peers every DefaultStaleSweepInterval until
// ctx is cancelled, logging each eviction as a NodeLeft-worthy event
// (the audit append itself is the caller's responsibility via the
// onEvicted callback, called once per evicted ID).
func (d *Discovery) RunStaleSweep(ctx context.Context, onEvicted func(trust.NodeID)) {
	ticker := time.NewTicker(DefaultStaleSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, id := range d.manager.Sweep() {
				if onEvicted != nil {
					onEvicted(id)
				}
			}
		}
	}
}
