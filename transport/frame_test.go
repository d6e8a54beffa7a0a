package transport

import "testing"

func TestFrameRoundTrip(t *testing.T) {
	f := Frame{Version: FrameVersion, Kind: KindData, Payload: []byte("hello mesh")}
	raw, err := f.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	got, err := Unmarshal(raw)
	if err != nil {
		t.Fatal(err)
	}
	if got.Version != f.Version || got.Kind != f.Kind || string(got.Payload) != string(f.Payload) {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestFrameMarshalRejectsOversizedPayload(t *testing.T) {
	f := Frame{Version: FrameVersion, Kind: KindData, Payload: make([]byte, MaxPayloadLen+1)}
	if _, err := f.Marshal(); err != ErrFrameTooLarge {
		t.Fatalf("expected ErrFrameTooLarge, got %v", err)
	}
}

func TestUnmarshalRejectsShortHeader(t *testing.T) {
	if _, err := Unmarshal([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error on short header")
	}
}

func TestUnmarshalRejectsLengthMismatch(t *testing.T) {
	buf := []byte{FrameVersion, byte(KindPing), 0, 0, 0, 5, 'h', 'i'}
	if _, err := Unmarshal(buf); err == nil {
		t.Fatal("expected error on length mismatch")
	}
}

func TestKnownKind(t *testing.T) {
	if !KnownKind(KindHandshake) || !KnownKind(KindCrlPush) {
		t.Fatal("boundary kinds should be known")
	}
	if KnownKind(Kind(0)) || KnownKind(Kind(255)) {
		t.Fatal("out-of-range kinds should be unknown")
	}
}
