// Package node wires every mesh component — trust chain, transport,
// peer manager, routing, CRL gossip, certificate renewal, and the RBAC
// control plane — into one running daemon per spec.md's concurrency
// and external-interfaces sections.
package node

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the recognized option set from spec.md §6, loaded from a
// YAML file the way config.Load reads its own node configuration.
type Config struct {
	BootstrapEndpoints []string `yaml:"bootstrap_endpoints"`
	ListenAddress      string   `yaml:"listen_address"`
	Role               string   `yaml:"role"`
	DataDir            string   `yaml:"data_dir"`
	NetworkAuthorityURL string  `yaml:"network_authority_url"`

	MaxConnections               int     `yaml:"max_connections"`
	RouteAnnounceIntervalSeconds int     `yaml:"route_announce_interval_s"`
	DiscoveryIntervalSeconds     int     `yaml:"discovery_interval_s"`
	CrlAnnounceIntervalSeconds   int     `yaml:"crl_announce_interval_s"`
	RenewalRatio                 float64 `yaml:"renewal_ratio"`
	HandshakeTimeoutSeconds      int     `yaml:"handshake_timeout_s"`
	PingIntervalSeconds          int     `yaml:"ping_interval_s"`
	MaxHops                      int     `yaml:"max_hops"`
	PeerGossipCap                int     `yaml:"peer_gossip_cap"`
	StalePeerTimeoutSeconds      int     `yaml:"stale_peer_timeout_s"`
	ReputationBlacklistThreshold float64 `yaml:"reputation_blacklist_threshold"`

	// AuditMirrorDSN, when set, mirrors appended audit events into
	// Postgres via audit/pgstore in addition to the mandatory local file.
	AuditMirrorDSN string `yaml:"audit_mirror_dsn"`

	// OIDCIssuer, when set, requires admin/operator control messages to
	// additionally carry a valid OIDC ID token from this issuer (see
	// rbac/oidc.Gate). Left empty, those roles are gated on their Ed25519
	// signature alone.
	OIDCIssuer   string `yaml:"oidc_issuer"`
	OIDCAudience string `yaml:"oidc_audience"`
}

// defaults matches spec.md §6's documented values exactly.
func defaults() Config {
	return Config{
		MaxConnections:               50,
		RouteAnnounceIntervalSeconds: 30,
		DiscoveryIntervalSeconds:     60,
		CrlAnnounceIntervalSeconds:   60,
		RenewalRatio:                 0.5,
		HandshakeTimeoutSeconds:      10,
		PingIntervalSeconds:          15,
		MaxHops:                      6,
		PeerGossipCap:                32,
		StalePeerTimeoutSeconds:      900,
		ReputationBlacklistThreshold: 0.2,
		DataDir:                      "./data",
	}
}

// LoadConfig reads and validates a node configuration file. Any field
// left zero in the file falls back to defaults().
func LoadConfig(path string) (Config, error) {
	cfg := defaults()

	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("node: %w: read config: %v", ErrConfig, err)
	}

	loaded := defaults()
	if err := yaml.Unmarshal(raw, &loaded); err != nil {
		return Config{}, fmt.Errorf("node: %w: parse config: %v", ErrConfig, err)
	}
	cfg = loaded

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration invariants that must hold before a
// node can start: a non-empty listen address, a non-empty Network
// Authority URL, a renewal ratio strictly between 0 and 1, and a
// non-empty data directory.
func (c Config) Validate() error {
	if c.ListenAddress == "" {
		return fmt.Errorf("node: %w: listen_address is required", ErrConfig)
	}
	if c.NetworkAuthorityURL == "" {
		return fmt.Errorf("node: %w: network_authority_url is required", ErrConfig)
	}
	if c.RenewalRatio <= 0 || c.RenewalRatio >= 1 {
		return fmt.Errorf("node: %w: renewal_ratio must be in (0,1)", ErrConfig)
	}
	if c.DataDir == "" {
		return fmt.Errorf("node: %w: data_dir is required", ErrConfig)
	}
	return nil
}

func (c Config) handshakeTimeout() time.Duration {
	return time.Duration(c.HandshakeTimeoutSeconds) * time.Second
}

func (c Config) pingInterval() time.Duration {
	return time.Duration(c.PingIntervalSeconds) * time.Second
}

func (c Config) routeAnnounceInterval() time.Duration {
	return time.Duration(c.RouteAnnounceIntervalSeconds) * time.Second
}

func (c Config) discoveryInterval() time.Duration {
	return time.Duration(c.DiscoveryIntervalSeconds) * time.Second
}

func (c Config) crlAnnounceInterval() time.Duration {
	return time.Duration(c.CrlAnnounceIntervalSeconds) * time.Second
}

func (c Config) stalePeerTimeout() time.Duration {
	return time.Duration(c.StalePeerTimeoutSeconds) * time.Second
}
