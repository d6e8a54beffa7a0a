package node

import (
	"context"
	"time"

	"github.com/genesis-mesh/node/audit"
	"github.com/genesis-mesh/node/internal/logger"
	"github.com/genesis-mesh/node/internal/metrics"
	"github.com/genesis-mesh/node/transport"
	"github.com/genesis-mesh/node/trust"
)

// dialBootstrapAnchors opens a connection to every configured anchor
// endpoint at startup. Failures are logged and left for discovery to
// eventually route around; bootstrap anchors are a starting point, not
// a hard dependency once the mesh has converged.
func (n *Node) dialBootstrapAnchors(ctx context.Context) {
	for _, endpoint := range n.cfg.BootstrapEndpoints {
		endpoint := endpoint
		n.spawn(func() { n.dial(ctx, endpoint) })
	}
}

func (n *Node) dial(ctx context.Context, endpoint string) {
	dialCtx, cancel := context.WithTimeout(ctx, n.cfg.handshakeTimeout())
	defer cancel()

	conn, err := n.wsDialer.Dial(dialCtx, endpoint, 256)
	if err != nil {
		metrics.RecordClassified(err)
		logger.Warn("dial failed", logger.String("endpoint", endpoint), logger.Error(err))
		return
	}
	n.handleConnection(ctx, conn, true)
}

// acceptConnection is ws.Server's AcceptHandler, invoked once per
// inbound WebSocket upgrade.
func (n *Node) acceptConnection(conn *transport.Connection) {
	n.spawn(func() { n.handleConnection(context.Background(), conn, false) })
}

func (n *Node) handleConnection(ctx context.Context, conn *transport.Connection, dialed bool) {
	conn.SetHandshaking()
	peerID, err := n.runHandshake(ctx, conn, dialed)
	if err != nil {
		metrics.RecordClassified(err)
		logger.Warn("handshake failed", logger.Error(err))
		conn.Fail(err)
		n.audit(audit.EventConnFailed, "", map[string]interface{}{"reason": err.Error()})
		return
	}

	if dialed {
		if !n.pool.BeginDial(peerID) {
			metrics.RecordError(metrics.KindPoolFull)
			conn.Fail(transport.ErrPoolFull)
			return
		}
	}
	if err := n.pool.Add(peerID, conn); err != nil {
		metrics.RecordClassified(err)
		n.pool.AbortDial(peerID)
		conn.Fail(err)
		return
	}

	n.peers.Observe(peerID, "", nil)
	n.peers.MarkConnected(peerID, true)
	n.audit(audit.EventConnEstablished, peerID, nil)

	connCtx, connCancel := context.WithCancel(ctx)
	defer connCancel()

	n.spawn(func() { conn.WriteLoop(connCtx) })
	n.spawn(func() { n.runPingLoop(connCtx, conn, peerID) })

	n.readLoop(conn, peerID)

	connCancel()
	n.pool.Remove(peerID)
	n.peers.MarkConnected(peerID, false)
	for _, withdrawal := range n.router.HandlePeerDisconnect(peerID) {
		n.floodRouteWithdraw(withdrawal)
	}
	n.audit(audit.EventConnClosed, peerID, nil)
}

func (n *Node) runPingLoop(ctx context.Context, conn *transport.Connection, peerID trust.NodeID) {
	ticker := time.NewTicker(n.cfg.pingInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if conn.CheckLiveness() {
				metrics.RecordError(metrics.KindTimeout)
				conn.Fail(transport.ErrTimeout)
				return
			}
			f, err := marshalFrame(transport.KindPing, struct{}{})
			if err != nil {
				continue
			}
			_ = conn.Enqueue(f)
		}
	}
}

// readLoop blocks reading frames from conn until it closes or fails,
// dispatching each by Kind. This is the per-connection read half of
// spec.md §5's "(b) one I/O pair (read, write) per active connection".
func (n *Node) readLoop(conn *transport.Connection, peerID trust.NodeID) {
	for {
		f, err := conn.ReadFrame()
		if err != nil {
			return
		}
		if !transport.KnownKind(f.Kind) {
			continue
		}
		n.dispatchFrame(conn, peerID, f)
	}
}

