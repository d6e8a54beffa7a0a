package node

import (
	"encoding/json"
	"testing"

	"github.com/genesis-mesh/node/crlsync"
	"github.com/genesis-mesh/node/routing"
	"github.com/genesis-mesh/node/transport"
)

func TestWirePacketRoundTrip(t *testing.T) {
	pkt := routing.Packet{Dest: "b", TTL: 5, Source: "a", PayloadID: "p1", Data: []byte("hello")}
	got := toWirePacket(pkt).toPacket()
	if got.Dest != pkt.Dest || got.TTL != pkt.TTL || got.Source != pkt.Source ||
		got.PayloadID != pkt.PayloadID || string(got.Data) != string(pkt.Data) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, pkt)
	}
}

func TestWireEntryOmitsNextHopAndLearnedFrom(t *testing.T) {
	e := routing.Entry{Destination: "x", NextHop: "b", Metric: 2, SequenceNumber: 4, LearnedFrom: "b"}
	raw, err := json.Marshal(toWireEntry(e))
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) == "" {
		t.Fatal("expected non-empty payload")
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}
	for _, forbidden := range []string{"next_hop", "learned_from", "flags"} {
		if _, ok := decoded[forbidden]; ok {
			t.Fatalf("wireEntry leaked %q onto the wire", forbidden)
		}
	}
}

func TestMarshalFrameSetsVersionAndKind(t *testing.T) {
	f, err := marshalFrame(transport.KindPing, struct{}{})
	if err != nil {
		t.Fatal(err)
	}
	if f.Version != transport.FrameVersion || f.Kind != transport.KindPing {
		t.Fatalf("got %+v", f)
	}
}

func TestCrlKindToTransport(t *testing.T) {
	cases := map[crlsync.Kind]transport.Kind{
		crlsync.KindCrlAnnounce: transport.KindCrlAnnounce,
		crlsync.KindCrlRequest:  transport.KindCrlRequest,
		crlsync.KindCrlPush:     transport.KindCrlPush,
	}
	for in, want := range cases {
		if got := crlKindToTransport(in); got != want {
			t.Fatalf("crlKindToTransport(%v) = %v, want %v", in, got, want)
		}
	}
}

func TestPeerListRequestRoundTrip(t *testing.T) {
	msg := peerListRequestMsg{RequestID: "r1", Cap: 16}
	raw, err := json.Marshal(msg)
	if err != nil {
		t.Fatal(err)
	}
	var decoded peerListRequestMsg
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded != msg {
		t.Fatalf("got %+v, want %+v", decoded, msg)
	}
}
