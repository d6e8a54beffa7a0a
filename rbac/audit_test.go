package rbac

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/genesis-mesh/node/audit"
	"github.com/genesis-mesh/node/trust"
)

func TestLogAuditAppendsControlEvents(t *testing.T) {
	log, err := audit.Open(filepath.Join(t.TempDir(), "audit.log"), audit.RotationPolicy{})
	if err != nil {
		t.Fatal(err)
	}
	defer log.Close()

	a := NewLogAudit(log)
	msg := &trust.ControlMessage{
		MessageID: "m1",
		Kind:      trust.ControlShutdown,
		Scope:     "anything",
		IssuedAt:  time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
		IssuerCert: trust.JoinCertificate{
			SubjectPubkey: "subject-1",
		},
	}

	a.ControlReceived(msg)
	a.ControlAccepted(msg)
	a.ControlRejected(msg, RejectReplay)

	if log.Len() != 3 {
		t.Fatalf("expected 3 audit events, got %d", log.Len())
	}
	if idx, err := log.Verify(); err != nil {
		t.Fatalf("chain broken at index %d: %v", idx, err)
	}
}
