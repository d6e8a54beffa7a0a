package node

import "testing"

func TestNewOIDCGateNilWithoutIssuer(t *testing.T) {
	if g := newOIDCGate(Config{}); g != nil {
		t.Fatalf("expected nil gate with no OIDCIssuer configured, got %+v", g)
	}
}

func TestNewOIDCGateBuiltWhenIssuerConfigured(t *testing.T) {
	g := newOIDCGate(Config{OIDCIssuer: "https://issuer.example.com/", OIDCAudience: "https://mesh.example.com/api"})
	if g == nil {
		t.Fatal("expected a non-nil gate when OIDCIssuer is set")
	}
}
