package node

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/genesis-mesh/node/crlsync"
	"github.com/genesis-mesh/node/internal/logger"
	"github.com/genesis-mesh/node/internal/metrics"
	"github.com/genesis-mesh/node/peer"
	"github.com/genesis-mesh/node/rbac"
	oidcrbac "github.com/genesis-mesh/node/rbac/oidc"
	"github.com/genesis-mesh/node/routing"
	"github.com/genesis-mesh/node/transport"
	"github.com/genesis-mesh/node/trust"
)

// dispatchFrame routes one inbound frame from peerID to the component
// that owns its Kind. It is the sole caller of every protocol handler
// once a connection reaches Established.
func (n *Node) dispatchFrame(conn *transport.Connection, peerID trust.NodeID, f transport.Frame) {
	metrics.MessagesProcessed.WithLabelValues(fmt.Sprintf("%d", f.Kind), "received").Inc()
	metrics.MessageSize.Observe(float64(len(f.Payload)))
	switch f.Kind {
	case transport.KindPing:
		n.handlePing(conn)
	case transport.KindPong:
		conn.HandlePong()
	case transport.KindPeerListRequest:
		n.handlePeerListRequest(conn, peerID, f)
	case transport.KindPeerListResponse:
		n.handlePeerListResponse(f)
	case transport.KindRouteAnnounce:
		n.handleRouteEntry(peerID, f, false)
	case transport.KindRouteWithdraw:
		n.handleRouteEntry(peerID, f, true)
	case transport.KindData, transport.KindDataForward:
		n.handleDataPacket(f)
	case transport.KindControl:
		n.handleControl(f)
	case transport.KindCrlAnnounce:
		n.handleCrlAnnounce(peerID, f)
	case transport.KindCrlRequest:
		n.handleCrlRequest(peerID, f)
	case transport.KindCrlPush:
		n.handleCrlPush(f, false)
	case transport.KindHandshake, transport.KindHandshakeAck:
		logger.Warn("unexpected handshake frame on established connection",
			logger.String("peer", string(peerID)))
	default:
		logger.Warn("unhandled frame kind", logger.Any("kind", f.Kind))
	}
}

func (n *Node) handlePing(conn *transport.Connection) {
	f, err := marshalFrame(transport.KindPong, struct{}{})
	if err != nil {
		return
	}
	_ = conn.Enqueue(f)
}

func (n *Node) handlePeerListRequest(conn *transport.Connection, peerID trust.NodeID, f transport.Frame) {
	var req peerListRequestMsg
	if err := json.Unmarshal(f.Payload, &req); err != nil {
		return
	}
	sample := n.peers.GossipSample(peerID)
	cap := req.Cap
	if cap > 0 && cap < len(sample) {
		sample = sample[:cap]
	}
	entries := make([]peerListEntryMsg, 0, len(sample))
	for _, r := range sample {
		entries = append(entries, peerListEntryMsg{NodeID: r.NodeID, Endpoint: r.Endpoint, LastHeard: r.LastHeard})
	}
	resp, err := marshalFrame(transport.KindPeerListResponse, peerListResponseMsg{RequestID: req.RequestID, Peers: entries})
	if err != nil {
		return
	}
	_ = conn.Enqueue(resp)
}

func (n *Node) handlePeerListResponse(f transport.Frame) {
	var resp peerListResponseMsg
	if err := json.Unmarshal(f.Payload, &resp); err != nil {
		return
	}
	entries := make([]peer.GossipEntry, 0, len(resp.Peers))
	for _, p := range resp.Peers {
		entries = append(entries, peer.GossipEntry{NodeID: p.NodeID, Endpoint: p.Endpoint, LastHeard: p.LastHeard})
	}
	n.resolvePeerListRequest(resp.RequestID, entries)
}

// handleRouteEntry relabels a wire entry with the actual connection it
// arrived on before handing it to the router: NextHop/LearnedFrom are
// never trusted off the wire, per routing.Router.Accept's contract.
func (n *Node) handleRouteEntry(peerID trust.NodeID, f transport.Frame, withdraw bool) {
	var w wireEntry
	if err := json.Unmarshal(f.Payload, &w); err != nil {
		return
	}
	candidate := routing.Entry{
		Destination:    w.Destination,
		NextHop:        peerID,
		Metric:         w.Metric + 1,
		SequenceNumber: w.SequenceNumber,
		LearnedFrom:    peerID,
	}
	if withdraw {
		candidate.Flags = routing.FlagWithdrawn
	}
	if n.router.Accept(candidate) {
		if withdraw {
			n.floodRouteWithdraw(candidate)
		} else {
			n.floodRouteAnnounce(candidate, peerID)
		}
	}
}

func (n *Node) handleDataPacket(f transport.Frame) {
	var w wirePacket
	if err := json.Unmarshal(f.Payload, &w); err != nil {
		return
	}
	if err := n.router.Forward(w.toPacket(), n.deliverPacket); err != nil {
		metrics.RecordClassified(err)
		logger.Warn("packet forwarding failed", logger.Error(err))
	}
}

func (n *Node) deliverPacket(pkt routing.Packet) {
	logger.Info("packet delivered", logger.String("source", string(pkt.Source)), logger.Int("bytes", len(pkt.Data)))
}

func (n *Node) handleControl(f transport.Frame) {
	var msg trust.ControlMessage
	if err := json.Unmarshal(f.Payload, &msg); err != nil {
		return
	}
	issuer := trust.NodeID(msg.IssuerCert.SubjectPubkey)
	action, err := n.rbacHandler.Handle(&msg, issuer, time.Now())
	if err != nil {
		return
	}
	if n.oidcGate != nil {
		env := oidcrbac.Envelope{IDToken: msg.IDToken}
		if err := n.oidcGate.Verify(context.Background(), &msg.IssuerCert, env); err != nil {
			logger.Warn("control message rejected by oidc gate", logger.Error(err))
			return
		}
	}
	switch action {
	case rbac.ActionApplyPolicy:
		n.applyPolicyUpdate(msg.Payload)
	case rbac.ActionApplyCRL:
		n.applyControlCRL(msg.Payload)
	case rbac.ActionWithdrawRoute:
		n.applyControlRouteWithdraw(msg.Payload)
	case rbac.ActionShutdown:
		logger.Warn("shutdown command accepted from control plane")
		n.Shutdown()
	case rbac.ActionNone:
	}
}

func (n *Node) applyPolicyUpdate(payload []byte) {
	var manifest trust.PolicyManifest
	if err := json.Unmarshal(payload, &manifest); err != nil {
		logger.Warn("malformed policy update payload", logger.Error(err))
		return
	}
	if err := n.chain.VerifyPolicy(&manifest); err != nil {
		logger.Warn("policy update rejected", logger.Error(err))
		return
	}
	if err := n.paths.savePolicy(&manifest); err != nil {
		logger.Warn("failed to persist policy manifest", logger.Error(err))
	}
}

// applyControlRouteWithdraw handles an anchor-issued ControlRouteWithdraw
// message: pulls the named destination from the local table and floods
// the withdrawal, same as an automatic peer-disconnect withdrawal.
func (n *Node) applyControlRouteWithdraw(payload []byte) {
	var req controlRouteWithdrawPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		logger.Warn("malformed route withdraw payload", logger.Error(err))
		return
	}
	withdrawal, ok := n.router.WithdrawDestination(req.Destination)
	if !ok {
		return
	}
	n.floodRouteWithdraw(withdrawal)
}

func (n *Node) applyControlCRL(payload []byte) {
	var incoming trust.CRL
	if err := json.Unmarshal(payload, &incoming); err != nil {
		logger.Warn("malformed control CRL payload", logger.Error(err))
		return
	}
	n.gossip.HandlePush(crlsync.Push{CRL: incoming}, true)
	if err := n.paths.saveCRL(n.crlStore.Snapshot()); err != nil {
		logger.Warn("failed to persist CRL", logger.Error(err))
	}
}

func (n *Node) handleCrlAnnounce(peerID trust.NodeID, f transport.Frame) {
	var msg crlsync.Announce
	if err := json.Unmarshal(f.Payload, &msg); err != nil {
		return
	}
	n.gossip.HandleAnnounce(peerID, msg)
}

func (n *Node) handleCrlRequest(peerID trust.NodeID, f transport.Frame) {
	var msg crlsync.Request
	if err := json.Unmarshal(f.Payload, &msg); err != nil {
		return
	}
	n.gossip.HandleRequest(peerID, msg)
}

func (n *Node) handleCrlPush(f transport.Frame, reflood bool) {
	var msg crlsync.Push
	if err := json.Unmarshal(f.Payload, &msg); err != nil {
		return
	}
	n.gossip.HandlePush(msg, reflood)
	if err := n.paths.saveCRL(n.crlStore.Snapshot()); err != nil {
		logger.Warn("failed to persist CRL", logger.Error(err))
	}
}
