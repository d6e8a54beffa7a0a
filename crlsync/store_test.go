package crlsync

import (
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/mr-tron/base58"

	"github.com/genesis-mesh/node/trust"
)

func newTestChain(t *testing.T) (*trust.Chain, ed25519.PrivateKey) {
	t.Helper()
	rootPub, rootPriv, _ := ed25519.GenerateKey(nil)
	naPub, naPriv, _ := ed25519.GenerateKey(nil)

	g := &trust.GenesisBlock{
		NetworkName:   "crlsync-test",
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
	return chain, naPriv
}

func signCRL(t *testing.T, crl *trust.CRL, naPriv ed25519.PrivateKey) {
	t.Helper()
	payload, err := trust.Canonicalize(crl)
	if err != nil {
		t.Fatal(err)
	}
	crl.Signature = ed25519.Sign(naPriv, payload)
}

func TestStoreAppliesHigherSequence(t *testing.T) {
	chain, naPriv := newTestChain(t)
	store := NewStore(chain)

	crl := &trust.CRL{
		Sequence: 1,
		IssuedAt: time.Now(),
		Revocations: []trust.Revocation{
			{SubjectPubkey: "evil-node", Reason: "compromised", RevokedAt: time.Now()},
		},
	}
	signCRL(t, crl, naPriv)

	revoked, applied, err := store.Apply(crl)
	if err != nil {
		t.Fatal(err)
	}
	if !applied {
		t.Fatal("expected apply to succeed")
	}
	if len(revoked) != 1 || revoked[0] != "evil-node" {
		t.Fatalf("revoked = %v", revoked)
	}
	if store.Sequence() != 1 {
		t.Fatalf("sequence = %d", store.Sequence())
	}
}

func TestStoreRejectsLowerOrEqualSequence(t *testing.T) {
	chain, naPriv := newTestChain(t)
	store := NewStore(chain)

	first := &trust.CRL{Sequence: 2, IssuedAt: time.Now()}
	signCRL(t, first, naPriv)
	if _, _, err := store.Apply(first); err != nil {
		t.Fatal(err)
	}

	stale := &trust.CRL{Sequence: 2, IssuedAt: time.Now()}
	signCRL(t, stale, naPriv)
	_, applied, err := store.Apply(stale)
	if err != nil {
		t.Fatal(err)
	}
	if applied {
		t.Fatal("expected same-sequence CRL to be rejected")
	}
}

func TestStoreOnlyReportsNewlyRevoked(t *testing.T) {
	chain, naPriv := newTestChain(t)
	store := NewStore(chain)

	first := &trust.CRL{
		Sequence:    1,
		IssuedAt:    time.Now(),
		Revocations: []trust.Revocation{{SubjectPubkey: "a", Reason: "r", RevokedAt: time.Now()}},
	}
	signCRL(t, first, naPriv)
	if _, _, err := store.Apply(first); err != nil {
		t.Fatal(err)
	}

	second := &trust.CRL{
		Sequence: 2,
		IssuedAt: time.Now(),
		Revocations: []trust.Revocation{
			{SubjectPubkey: "a", Reason: "r", RevokedAt: time.Now()},
			{SubjectPubkey: "b", Reason: "r2", RevokedAt: time.Now()},
		},
	}
	signCRL(t, second, naPriv)
	revoked, applied, err := store.Apply(second)
	if err != nil {
		t.Fatal(err)
	}
	if !applied {
		t.Fatal("expected apply to succeed")
	}
	if len(revoked) != 1 || revoked[0] != "b" {
		t.Fatalf("revoked = %v, want only the new entry", revoked)
	}
}
