package rbac

import (
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/mr-tron/base58"

	"github.com/genesis-mesh/node/trust"
)

type fakeAudit struct {
	received []*trust.ControlMessage
	accepted []*trust.ControlMessage
	rejected []RejectReason
}

func (f *fakeAudit) ControlReceived(msg *trust.ControlMessage) { f.received = append(f.received, msg) }
func (f *fakeAudit) ControlAccepted(msg *trust.ControlMessage) { f.accepted = append(f.accepted, msg) }
func (f *fakeAudit) ControlRejected(msg *trust.ControlMessage, reason RejectReason) {
	f.rejected = append(f.rejected, reason)
}

type fakeReputation struct {
	downgraded []trust.NodeID
}

func (f *fakeReputation) RecordBad(peer trust.NodeID) bool {
	f.downgraded = append(f.downgraded, peer)
	return false
}

func buildChainAndCert(t *testing.T, roles []string) (*trust.Chain, *trust.JoinCertificate, ed25519.PrivateKey) {
	t.Helper()
	rootPub, rootPriv, _ := ed25519.GenerateKey(nil)
	naPub, naPriv, _ := ed25519.GenerateKey(nil)
	subjectPub, subjectPriv, _ := ed25519.GenerateKey(nil)

	g := &trust.GenesisBlock{
		NetworkName:   "rbac-test",
		Version:       "1",
		RootPublicKey: base58.Encode(rootPub),
		NetworkAuthority: trust.NetworkAuthorityRef{
			PublicKey: base58.Encode(naPub),
			ValidFrom: time.Now().Add(-time.Hour),
			ValidTo:   time.Now().Add(24 * time.Hour),
		},
		AllowedTransports: []string{"websocket"},
		BootstrapAnchors:  []string{"anchor-1"},
	}
	payload, err := trust.Canonicalize(g)
	if err != nil {
		t.Fatal(err)
	}
	g.Signatures = []trust.KeySignature{{
		KeyID:     string(trust.NodeIDFromPublicKey(rootPub)),
		Signature: ed25519.Sign(rootPriv, payload),
	}}
	chain, err := trust.NewChain(g, time.Now())
	if err != nil {
		t.Fatal(err)
	}

	cert := &trust.JoinCertificate{
		SubjectPubkey: string(trust.NodeIDFromPublicKey(subjectPub)),
		Roles:         roles,
		NetworkID:     "rbac-test",
		IssuedAt:      time.Now().Add(-time.Minute),
		ExpiresAt:     time.Now().Add(time.Hour),
		Serial:        1,
		IssuerKeyID:   string(trust.NodeIDFromPublicKey(naPub)),
	}
	certPayload, err := trust.Canonicalize(cert)
	if err != nil {
		t.Fatal(err)
	}
	cert.Signature = ed25519.Sign(naPriv, certPayload)

	return chain, cert, subjectPriv
}

func signControlMessage(t *testing.T, msg *trust.ControlMessage, subjectPriv ed25519.PrivateKey) {
	t.Helper()
	payload, err := trust.Canonicalize(msg)
	if err != nil {
		t.Fatal(err)
	}
	msg.Signature = ed25519.Sign(subjectPriv, payload)
}

func TestHandlerAcceptsAuthorizedMessage(t *testing.T) {
	chain, cert, subjectPriv := buildChainAndCert(t, []string{"admin"})
	msg := &trust.ControlMessage{
		MessageID:  "msg-1",
		Kind:       trust.ControlShutdown,
		Scope:      "anything",
		IssuedAt:   time.Now().Add(-time.Second),
		ExpiresAt:  time.Now().Add(time.Hour),
		IssuerCert: *cert,
	}
	signControlMessage(t, msg, subjectPriv)

	audit := &fakeAudit{}
	handler := NewHandler(chain, NewReplayCache(0, 0), audit, &fakeReputation{})
	action, err := handler.Handle(msg, "peer-1", time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if action != ActionShutdown {
		t.Fatalf("action = %v", action)
	}
	if len(audit.accepted) != 1 {
		t.Fatal("expected ControlAccepted audit event")
	}
}

func TestHandlerRejectsUnauthorizedRole(t *testing.T) {
	chain, cert, subjectPriv := buildChainAndCert(t, []string{"client"})
	msg := &trust.ControlMessage{
		MessageID:  "msg-2",
		Kind:       trust.ControlShutdown,
		Scope:      "anything",
		IssuedAt:   time.Now().Add(-time.Second),
		ExpiresAt:  time.Now().Add(time.Hour),
		IssuerCert: *cert,
	}
	signControlMessage(t, msg, subjectPriv)

	audit := &fakeAudit{}
	reputation := &fakeReputation{}
	handler := NewHandler(chain, NewReplayCache(0, 0), audit, reputation)
	_, err := handler.Handle(msg, "peer-1", time.Now())
	if err == nil {
		t.Fatal("expected rejection")
	}
	if len(audit.rejected) != 1 || audit.rejected[0] != RejectUnauthorizedRole {
		t.Fatalf("rejected reasons = %v", audit.rejected)
	}
	if len(reputation.downgraded) != 1 {
		t.Fatal("expected reputation downgrade on reject")
	}
}

func TestHandlerRejectsScopeDenied(t *testing.T) {
	chain, cert, subjectPriv := buildChainAndCert(t, []string{"operator"})
	msg := &trust.ControlMessage{
		MessageID:  "msg-3",
		Kind:       trust.ControlPolicyUpdate,
		Scope:      "mesh:routes",
		IssuedAt:   time.Now().Add(-time.Second),
		ExpiresAt:  time.Now().Add(time.Hour),
		IssuerCert: *cert,
	}
	signControlMessage(t, msg, subjectPriv)

	audit := &fakeAudit{}
	handler := NewHandler(chain, NewReplayCache(0, 0), audit, &fakeReputation{})
	_, err := handler.Handle(msg, "peer-1", time.Now())
	if err == nil {
		t.Fatal("expected rejection")
	}
	if len(audit.rejected) != 1 || audit.rejected[0] != RejectScopeDenied {
		t.Fatalf("rejected reasons = %v", audit.rejected)
	}
}

func TestHandlerRejectsReplay(t *testing.T) {
	chain, cert, subjectPriv := buildChainAndCert(t, []string{"admin"})
	msg := &trust.ControlMessage{
		MessageID:  "msg-4",
		Kind:       trust.ControlShutdown,
		Scope:      "anything",
		IssuedAt:   time.Now().Add(-time.Second),
		ExpiresAt:  time.Now().Add(time.Hour),
		IssuerCert: *cert,
	}
	signControlMessage(t, msg, subjectPriv)

	audit := &fakeAudit{}
	handler := NewHandler(chain, NewReplayCache(0, 0), audit, &fakeReputation{})
	if _, err := handler.Handle(msg, "peer-1", time.Now()); err != nil {
		t.Fatal(err)
	}
	_, err := handler.Handle(msg, "peer-1", time.Now())
	if err == nil {
		t.Fatal("expected replay rejection on second delivery")
	}
	if audit.rejected[len(audit.rejected)-1] != RejectReplay {
		t.Fatalf("rejected reasons = %v", audit.rejected)
	}
}
