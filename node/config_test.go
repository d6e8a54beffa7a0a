package node

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultsMatchSpec(t *testing.T) {
	d := defaults()
	if d.MaxConnections != 50 || d.RouteAnnounceIntervalSeconds != 30 ||
		d.DiscoveryIntervalSeconds != 60 || d.CrlAnnounceIntervalSeconds != 60 ||
		d.RenewalRatio != 0.5 || d.HandshakeTimeoutSeconds != 10 ||
		d.PingIntervalSeconds != 15 || d.MaxHops != 6 || d.PeerGossipCap != 32 ||
		d.StalePeerTimeoutSeconds != 900 || d.ReputationBlacklistThreshold != 0.2 {
		t.Fatalf("defaults drifted from spec: %+v", d)
	}
}

func TestValidateRejectsMissingFields(t *testing.T) {
	cases := []Config{
		{NetworkAuthorityURL: "http://na", RenewalRatio: 0.5, DataDir: "x"},
		{ListenAddress: ":9000", RenewalRatio: 0.5, DataDir: "x"},
		{ListenAddress: ":9000", NetworkAuthorityURL: "http://na", RenewalRatio: 0, DataDir: "x"},
		{ListenAddress: ":9000", NetworkAuthorityURL: "http://na", RenewalRatio: 1, DataDir: "x"},
		{ListenAddress: ":9000", NetworkAuthorityURL: "http://na", RenewalRatio: 0.5},
	}
	for i, c := range cases {
		if err := c.Validate(); err == nil {
			t.Fatalf("case %d: expected Validate to reject %+v", i, c)
		}
	}
}

func TestLoadConfigAppliesDefaultsOnTopOfFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "meshd.yaml")
	contents := "listen_address: \":9000\"\nnetwork_authority_url: \"http://na.local\"\ndata_dir: \"" + dir + "\"\n"
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.MaxConnections != 50 {
		t.Fatalf("expected default max_connections to survive, got %d", cfg.MaxConnections)
	}
	if cfg.ListenAddress != ":9000" {
		t.Fatalf("expected file value to override default, got %q", cfg.ListenAddress)
	}
}

func TestLoadConfigMissingFileIsConfigError(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected an error for a missing config file")
	}
	if ExitCode(err) != ExitConfigError {
		t.Fatalf("expected exit code %d, got %d", ExitConfigError, ExitCode(err))
	}
}
