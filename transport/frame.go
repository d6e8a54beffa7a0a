package transport

import (
	"encoding/binary"
	"fmt"
)

// Kind is the wire message type carried by a Frame. Codes are stable;
// an unrecognized kind on the wire MUST be ignored, not treated as an
// error, to preserve forward compatibility.
type Kind uint8

const (
	KindHandshake Kind = iota + 1
	KindHandshakeAck
	KindPing
	KindPong
	KindPeerListRequest
	KindPeerListResponse
	KindRouteAnnounce
	KindRouteWithdraw
	KindData
	KindDataForward
	KindControl
	KindCrlAnnounce
	KindCrlRequest
	KindCrlPush
)

// FrameVersion is the only wire version this implementation speaks.
const FrameVersion uint8 = 1

// MaxPayloadLen bounds a single frame's payload to guard against a
// malicious or buggy peer claiming an enormous length prefix.
const MaxPayloadLen = 16 << 20 // 16 MiB

// HeaderLen is the fixed-size prefix: version(1) + kind(1) + len(4).
const HeaderLen = 6

// Frame is one unit of the peer wire protocol:
// [u8 version][u8 kind][u32 len BE][bytes payload].
// Payload is canonical JSON once authenticated and decrypted by Session.
type Frame struct {
	Version uint8
	Kind    Kind
	Payload []byte
}

// Marshal encodes f into the wire representation.
func (f Frame) Marshal() ([]byte, error) {
	if len(f.Payload) > MaxPayloadLen {
		return nil, ErrFrameTooLarge
	}
	buf := make([]byte, HeaderLen+len(f.Payload))
	buf[0] = f.Version
	buf[1] = byte(f.Kind)
	binary.BigEndian.PutUint32(buf[2:6], uint32(len(f.Payload)))
	copy(buf[HeaderLen:], f.Payload)
	return buf, nil
}

// Unmarshal decodes a complete frame from buf. buf must contain exactly
// one frame; framing off a stream is ReadFrame's job.
func Unmarshal(buf []byte) (Frame, error) {
	if len(buf) < HeaderLen {
		return Frame{}, fmt.Errorf("transport: %w: short header", ErrProtocolViolation)
	}
	length := binary.BigEndian.Uint32(buf[2:6])
	if length > MaxPayloadLen {
		return Frame{}, ErrFrameTooLarge
	}
	if len(buf) != HeaderLen+int(length) {
		return Frame{}, fmt.Errorf("transport: %w: length mismatch", ErrProtocolViolation)
	}
	return Frame{
		Version: buf[0],
		Kind:    Kind(buf[1]),
		Payload: buf[HeaderLen:],
	}, nil
}

// KnownKind reports whether kind is one this build recognizes. Unknown
// kinds are dropped silently by the connection's read loop rather than
// treated as ErrUnknownKind, preserving forward compatibility; the error
// remains available for callers that must reject strictly (e.g. tests).
func KnownKind(k Kind) bool {
	return k >= KindHandshake && k <= KindCrlPush
}
