package audit

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAppendAndVerify(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	log, err := Open(path, RotationPolicy{})
	if err != nil {
		t.Fatal(err)
	}
	defer log.Close()

	if _, err := log.Append(EventNodeStarted, "self", "", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := log.Append(EventConnEstablished, "self", "peer-1", map[string]interface{}{"endpoint": "10.0.0.1:9000"}); err != nil {
		t.Fatal(err)
	}

	if idx, err := log.Verify(); err != nil {
		t.Fatalf("expected clean chain, got break at %d: %v", idx, err)
	}
	if log.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", log.Len())
	}
}

func TestReopenReplaysChain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	log, err := Open(path, RotationPolicy{})
	if err != nil {
		t.Fatal(err)
	}
	log.Append(EventNodeStarted, "self", "", nil)
	log.Append(EventNodeStopped, "self", "", nil)
	log.Close()

	reopened, err := Open(path, RotationPolicy{})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if reopened.Len() != 2 {
		t.Fatalf("Len() after reopen = %d, want 2", reopened.Len())
	}
	if idx, err := reopened.Verify(); err != nil {
		t.Fatalf("expected clean chain after reopen, got break at %d: %v", idx, err)
	}
}

func TestTamperedEventBreaksChain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	log, err := Open(path, RotationPolicy{})
	if err != nil {
		t.Fatal(err)
	}
	log.Append(EventNodeStarted, "self", "", nil)
	log.Append(EventConnEstablished, "self", "peer-1", nil)
	log.Close()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	tampered := []byte(string(raw)[:len(raw)-5] + "XXXX\n")
	if err := os.WriteFile(path, tampered, 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := Open(path, RotationPolicy{}); err == nil {
		t.Fatal("expected chain-broken error reopening tampered log")
	}
}
