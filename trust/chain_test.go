package trust

import (
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/mr-tron/base58"
)

func signGenesis(t *testing.T, g *GenesisBlock, rootPriv ed25519.PrivateKey) {
	t.Helper()
	payload, err := Canonicalize(g)
	if err != nil {
		t.Fatal(err)
	}
	sig := ed25519.Sign(rootPriv, payload)
	g.Signatures = []KeySignature{{KeyID: string(NodeIDFromPublicKey(rootPriv.Public().(ed25519.PublicKey))), Signature: sig}}
}

func testGenesis(t *testing.T) (*GenesisBlock, ed25519.PrivateKey, ed25519.PrivateKey) {
	t.Helper()
	rootPub, rootPriv, _ := ed25519.GenerateKey(nil)
	naPub, naPriv, _ := ed25519.GenerateKey(nil)

	g := &GenesisBlock{
		NetworkName:   "genesis-mesh-test",
		Version:       "1",
		RootPublicKey: base58.Encode(rootPub),
		NetworkAuthority: NetworkAuthorityRef{
			PublicKey: base58.Encode(naPub),
			ValidFrom: time.Now().Add(-time.Hour),
			ValidTo:   time.Now().Add(24 * time.Hour),
		},
		AllowedTransports: []string{"websocket"},
		BootstrapAnchors:  []string{"anchor-1"},
	}
	signGenesis(t, g, rootPriv)
	return g, rootPriv, naPriv
}

func TestNewChainVerifiesRootSignature(t *testing.T) {
	g, _, _ := testGenesis(t)
	if _, err := NewChain(g, time.Now()); err != nil {
		t.Fatalf("expected valid genesis to import cleanly, got %v", err)
	}
}

func TestNewChainRejectsTamperedGenesis(t *testing.T) {
	g, _, _ := testGenesis(t)
	g.BootstrapAnchors = append(g.BootstrapAnchors, "anchor-injected")
	if _, err := NewChain(g, time.Now()); err == nil {
		t.Fatal("expected tampered genesis to fail verification")
	}
}

func TestVerifyCertificateLifecycle(t *testing.T) {
	g, _, naPriv := testGenesis(t)
	chain, err := NewChain(g, time.Now())
	if err != nil {
		t.Fatal(err)
	}

	subjectPub, _, _ := ed25519.GenerateKey(nil)
	now := time.Now()
	cert := &JoinCertificate{
		SubjectPubkey: base58.Encode(subjectPub),
		Roles:         []string{"client"},
		NetworkID:     "genesis-mesh-test",
		IssuedAt:      now.Add(-time.Minute),
		ExpiresAt:     now.Add(time.Hour),
		Serial:        1,
	}
	payload, err := Canonicalize(cert)
	if err != nil {
		t.Fatal(err)
	}
	cert.Signature = ed25519.Sign(naPriv, payload)

	if err := chain.VerifyCertificate(cert, now); err != nil {
		t.Fatalf("expected valid cert, got %v", err)
	}

	expired := *cert
	expired.ExpiresAt = now.Add(-time.Second)
	if err := chain.VerifyCertificate(&expired, now); err != ErrExpiredCert {
		t.Fatalf("expected ErrExpiredCert, got %v", err)
	}
}

func TestCRLSequenceMustIncrease(t *testing.T) {
	g, _, naPriv := testGenesis(t)
	chain, err := NewChain(g, time.Now())
	if err != nil {
		t.Fatal(err)
	}

	crl1 := &CRL{Sequence: 1, IssuedAt: time.Now()}
	payload, _ := Canonicalize(crl1)
	crl1.Signature = ed25519.Sign(naPriv, payload)
	if err := chain.ReplaceCRL(crl1); err != nil {
		t.Fatalf("expected first CRL to install: %v", err)
	}

	stale := &CRL{Sequence: 1, IssuedAt: time.Now()}
	payload, _ = Canonicalize(stale)
	stale.Signature = ed25519.Sign(naPriv, payload)
	if err := chain.ReplaceCRL(stale); err != ErrSequenceNotIncreasing {
		t.Fatalf("expected ErrSequenceNotIncreasing, got %v", err)
	}
}
