package node

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/genesis-mesh/node/crlsync"
	"github.com/genesis-mesh/node/routing"
	"github.com/genesis-mesh/node/transport"
	"github.com/genesis-mesh/node/trust"
)

// wirePacket is the JSON payload of a KindData/KindDataForward frame.
type wirePacket struct {
	Dest      trust.NodeID `json:"dest"`
	TTL       int          `json:"ttl"`
	Source    trust.NodeID `json:"source"`
	PayloadID string       `json:"payload_id"`
	Data      []byte       `json:"data"`
}

func toWirePacket(pkt routing.Packet) wirePacket {
	return wirePacket{Dest: pkt.Dest, TTL: pkt.TTL, Source: pkt.Source, PayloadID: pkt.PayloadID, Data: pkt.Data}
}

func (w wirePacket) toPacket() routing.Packet {
	return routing.Packet{Dest: w.Dest, TTL: w.TTL, Source: w.Source, PayloadID: w.PayloadID, Data: w.Data}
}

// wireEntry is the JSON payload of a KindRouteAnnounce/KindRouteWithdraw
// frame, mirroring routing.Entry's signaled fields (NextHop/LearnedFrom
// are re-derived by the receiver from the connection the frame arrived
// on, not trusted from the wire).
type wireEntry struct {
	Destination    trust.NodeID `json:"destination"`
	Metric         int          `json:"metric"`
	SequenceNumber uint64       `json:"sequence_number"`
}

func toWireEntry(e routing.Entry) wireEntry {
	return wireEntry{Destination: e.Destination, Metric: e.Metric, SequenceNumber: e.SequenceNumber}
}

// controlRouteWithdrawPayload is ControlMessage.Payload's shape for a
// ControlRouteWithdraw message (SPEC_FULL.md's administrative route
// withdrawal supplement): the single destination an anchor wants pulled
// from every node's table.
type controlRouteWithdrawPayload struct {
	Destination trust.NodeID `json:"destination"`
}

// peerListRequestMsg/peerListResponseMsg carry a correlation id since
// the mesh wire protocol is frame-oriented, not strict request/reply;
// RequestID lets a connection's read loop route an async response back
// to the discovery round that issued the request.
type peerListRequestMsg struct {
	RequestID string `json:"request_id"`
	Cap       int    `json:"cap"`
}

type peerListEntryMsg struct {
	NodeID    trust.NodeID `json:"node_id"`
	Endpoint  string       `json:"endpoint"`
	LastHeard time.Time    `json:"last_heard"`
}

type peerListResponseMsg struct {
	RequestID string             `json:"request_id"`
	Peers     []peerListEntryMsg `json:"peers"`
}

func marshalFrame(kind transport.Kind, v interface{}) (transport.Frame, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return transport.Frame{}, fmt.Errorf("node: encode %T: %w", v, err)
	}
	return transport.Frame{Version: transport.FrameVersion, Kind: kind, Payload: payload}, nil
}

// crlKindToTransport maps crlsync's package-local Kind onto the wire
// frame kind it is carried over.
func crlKindToTransport(k crlsync.Kind) transport.Kind {
	switch k {
	case crlsync.KindCrlAnnounce:
		return transport.KindCrlAnnounce
	case crlsync.KindCrlRequest:
		return transport.KindCrlRequest
	default:
		return transport.KindCrlPush
	}
}
