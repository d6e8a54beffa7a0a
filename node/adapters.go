package node

import (
	"context"
	"fmt"

	"github.com/genesis-mesh/node/audit"
	"github.com/genesis-mesh/node/crlsync"
	"github.com/genesis-mesh/node/peer"
	"github.com/genesis-mesh/node/routing"
	"github.com/genesis-mesh/node/transport"
	"github.com/genesis-mesh/node/trust"
)

// routingSender adapts the transport pool to routing.Sender, encoding
// each Packet as a KindData frame on the addressed connection.
type routingSender struct {
	n *Node
}

func (s routingSender) SendTo(hop trust.NodeID, pkt routing.Packet) error {
	conn, ok := s.n.pool.Get(hop)
	if !ok {
		return fmt.Errorf("node: no connection to %s", hop)
	}
	f, err := marshalFrame(transport.KindDataForward, toWirePacket(pkt))
	if err != nil {
		return err
	}
	return conn.Enqueue(f)
}

func (s routingSender) ActivePeersExcept(exclude trust.NodeID) []trust.NodeID {
	return s.n.pool.ActivePeersExcept(exclude)
}

// crlPeers adapts the transport pool to crlsync.Peers.
type crlPeers struct {
	n *Node
}

func (p crlPeers) Broadcast(kind crlsync.Kind, payload interface{}) {
	f, err := marshalFrame(crlKindToTransport(kind), payload)
	if err != nil {
		return
	}
	for _, id := range p.n.pool.All() {
		if conn, ok := p.n.pool.Get(id); ok {
			_ = conn.Enqueue(f)
		}
	}
}

func (p crlPeers) SendTo(peerID trust.NodeID, kind crlsync.Kind, payload interface{}) error {
	conn, ok := p.n.pool.Get(peerID)
	if !ok {
		return fmt.Errorf("node: no connection to %s", peerID)
	}
	f, err := marshalFrame(crlKindToTransport(kind), payload)
	if err != nil {
		return err
	}
	return conn.Enqueue(f)
}

func (p crlPeers) ConnectedPeers() []trust.NodeID {
	return p.n.pool.All()
}

// disconnector adapts the transport pool + peer manager to crlsync.Disconnector.
type disconnector struct {
	n *Node
}

func (d disconnector) Disconnect(peerID trust.NodeID, reason string) {
	if conn, ok := d.n.pool.Get(peerID); ok {
		conn.Fail(fmt.Errorf("node: %s", reason))
	}
	d.n.peers.MarkConnected(peerID, false)
	d.n.audit(audit.EventNodeBlacklisted, peerID, map[string]interface{}{"reason": reason})
}

// peerRequester adapts the transport pool to peer.Requester, correlating
// KindPeerListRequest/KindPeerListResponse frames by request id since
// the connection's read loop (not this call) is what actually observes
// the response frame.
type peerRequester struct {
	n *Node
}

func (r peerRequester) ConnectedPeers() []trust.NodeID {
	return r.n.pool.All()
}

func (r peerRequester) RequestPeerList(ctx context.Context, id trust.NodeID, cap int) ([]peer.GossipEntry, error) {
	conn, ok := r.n.pool.Get(id)
	if !ok {
		return nil, fmt.Errorf("node: no connection to %s", id)
	}

	reqID, ch := r.n.beginPeerListRequest()
	defer r.n.endPeerListRequest(reqID)

	f, err := marshalFrame(transport.KindPeerListRequest, peerListRequestMsg{RequestID: reqID, Cap: cap})
	if err != nil {
		return nil, err
	}
	if err := conn.Enqueue(f); err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case entries := <-ch:
		return entries, nil
	}
}
