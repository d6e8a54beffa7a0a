package node

import (
	"context"
	"time"

	"github.com/genesis-mesh/node/internal/logger"
	"github.com/genesis-mesh/node/routing"
	"github.com/genesis-mesh/node/transport"
	"github.com/genesis-mesh/node/trust"
)

// runRouteAnnounceLoop periodically re-announces this node's own route
// (metric 0) and the full table snapshot to every connected peer, per
// spec.md §4.4's distance-vector convergence rule.
func (n *Node) runRouteAnnounceLoop(ctx context.Context) {
	ticker := time.NewTicker(n.cfg.routeAnnounceInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			self := n.router.OriginateSelf()
			n.table.Accept(self)
			n.floodRouteAnnounce(self, "")
			for _, entry := range n.table.Snapshot() {
				if entry.Destination == n.self {
					continue
				}
				n.floodRouteAnnounce(entry, "")
			}
		}
	}
}

func (n *Node) runRouteStaleSweep(ctx context.Context) {
	ticker := time.NewTicker(n.cfg.routeAnnounceInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.table.SweepStale()
		}
	}
}

// floodRouteAnnounce sends entry as a KindRouteAnnounce to every
// connected peer except exclude (the peer it was just learned from, if
// any).
func (n *Node) floodRouteAnnounce(entry routing.Entry, exclude trust.NodeID) {
	n.floodRoute(transport.KindRouteAnnounce, entry, exclude)
}

func (n *Node) floodRouteWithdraw(entry routing.Entry) {
	n.floodRoute(transport.KindRouteWithdraw, entry, "")
}

func (n *Node) floodRoute(kind transport.Kind, entry routing.Entry, exclude trust.NodeID) {
	f, err := marshalFrame(kind, toWireEntry(entry))
	if err != nil {
		return
	}
	for _, id := range n.pool.ActivePeersExcept(exclude) {
		if conn, ok := n.pool.Get(id); ok {
			if err := conn.Enqueue(f); err != nil {
				logger.Warn("route flood send failed", logger.String("peer", string(id)), logger.Error(err))
			}
		}
	}
}
