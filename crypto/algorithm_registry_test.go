package crypto

import (
	"testing"

	_ "github.com/genesis-mesh/node/crypto/keys"
)

func TestRegisterAndGetAlgorithmInfo(t *testing.T) {
	info, err := GetAlgorithmInfo(KeyTypeEd25519)
	if err != nil {
		t.Fatalf("GetAlgorithmInfo(Ed25519): %v", err)
	}
	if info.CanonicalName != "ed25519" {
		t.Errorf("canonical name = %q, want ed25519", info.CanonicalName)
	}
	if !info.SupportsSignature {
		t.Error("Ed25519 should support signature")
	}
	if info.SupportsEncryption {
		t.Error("Ed25519 should not support encryption")
	}
}

func TestGetAlgorithmInfoUnknown(t *testing.T) {
	_, err := GetAlgorithmInfo(KeyType("bogus"))
	if err == nil {
		t.Fatal("expected error for unregistered key type")
	}
}

func TestListSupportedAlgorithms(t *testing.T) {
	algos := ListSupportedAlgorithms()
	seen := map[KeyType]bool{}
	for _, a := range algos {
		seen[a.KeyType] = true
	}
	for _, want := range []KeyType{KeyTypeEd25519, KeyTypeSecp256k1, KeyTypeX25519, KeyTypeRSA} {
		if !seen[want] {
			t.Errorf("ListSupportedAlgorithms missing %s", want)
		}
	}
}

func TestIsAlgorithmSupported(t *testing.T) {
	if !IsAlgorithmSupported(KeyTypeEd25519) {
		t.Error("Ed25519 should be supported")
	}
	if IsAlgorithmSupported(KeyType("bogus")) {
		t.Error("bogus key type should not be supported")
	}
}

func TestSupportsSignatureAndKeyGeneration(t *testing.T) {
	if !SupportsSignature(KeyTypeEd25519) {
		t.Error("Ed25519 should support signature")
	}
	if SupportsSignature(KeyTypeX25519) {
		t.Error("X25519 is exchange-only and should not support signature")
	}
	if !SupportsKeyGeneration(KeyTypeRSA) {
		t.Error("RSA should support key generation")
	}
}
