package node

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/genesis-mesh/node/peer"
	"github.com/genesis-mesh/node/trust"
)

// statePaths resolves the fixed filesystem layout spec.md §6 defines
// under a node's configured data_dir.
type statePaths struct {
	root string
}

func newStatePaths(dataDir string) statePaths { return statePaths{root: dataDir} }

func (p statePaths) keysDir() string   { return filepath.Join(p.root, "keys") }
func (p statePaths) cert() string      { return filepath.Join(p.root, "state", "cert.json") }
func (p statePaths) crl() string       { return filepath.Join(p.root, "state", "crl.json") }
func (p statePaths) policy() string    { return filepath.Join(p.root, "state", "policy.json") }
func (p statePaths) peers() string     { return filepath.Join(p.root, "state", "peers.json") }
func (p statePaths) auditLog() string  { return filepath.Join(p.root, "state", "audit.log") }

func (p statePaths) ensureDirs() error {
	if err := os.MkdirAll(p.keysDir(), 0o700); err != nil {
		return err
	}
	return os.MkdirAll(filepath.Join(p.root, "state"), 0o700)
}

func loadJSON(path string, out interface{}) (bool, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("node: decode %s: %w", path, err)
	}
	return true, nil
}

func saveJSON(path string, v interface{}) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("node: encode %s: %w", path, err)
	}
	return os.WriteFile(path, raw, 0o600)
}

func (p statePaths) loadCert() (*trust.JoinCertificate, error) {
	var cert trust.JoinCertificate
	ok, err := loadJSON(p.cert(), &cert)
	if err != nil || !ok {
		return nil, err
	}
	return &cert, nil
}

func (p statePaths) saveCert(cert *trust.JoinCertificate) error {
	return saveJSON(p.cert(), cert)
}

func (p statePaths) loadCRL() (*trust.CRL, error) {
	var crl trust.CRL
	ok, err := loadJSON(p.crl(), &crl)
	if err != nil || !ok {
		return nil, err
	}
	return &crl, nil
}

func (p statePaths) saveCRL(crl *trust.CRL) error {
	return saveJSON(p.crl(), crl)
}

func (p statePaths) loadPolicy() (*trust.PolicyManifest, error) {
	var policy trust.PolicyManifest
	ok, err := loadJSON(p.policy(), &policy)
	if err != nil || !ok {
		return nil, err
	}
	return &policy, nil
}

func (p statePaths) savePolicy(policy *trust.PolicyManifest) error {
	return saveJSON(p.policy(), policy)
}

// peerSnapshotEntry is peers.json's on-disk shape: spec.md §6 calls
// this "persisted peer table snapshot (optional warm start)".
type peerSnapshotEntry struct {
	NodeID    trust.NodeID `json:"node_id"`
	Endpoint  string       `json:"endpoint"`
	LastHeard time.Time    `json:"last_heard"`
}

// loadPeerSnapshot returns the warm-start entries heard within
// staleAfter, or nil if no snapshot exists.
func (p statePaths) loadPeerSnapshot(staleAfter time.Duration) ([]peer.GossipEntry, error) {
	var entries []peerSnapshotEntry
	ok, err := loadJSON(p.peers(), &entries)
	if err != nil || !ok {
		return nil, err
	}
	out := make([]peer.GossipEntry, 0, len(entries))
	for _, e := range entries {
		if time.Since(e.LastHeard) > staleAfter {
			continue
		}
		out = append(out, peer.GossipEntry{NodeID: e.NodeID, Endpoint: e.Endpoint, LastHeard: e.LastHeard})
	}
	return out, nil
}

// savePeerSnapshot writes the current peer table to peers.json, called
// on clean shutdown per SPEC_FULL.md's peer warm-start supplement.
func (p statePaths) savePeerSnapshot(records []*peer.Record) error {
	entries := make([]peerSnapshotEntry, 0, len(records))
	for _, r := range records {
		entries = append(entries, peerSnapshotEntry{NodeID: r.NodeID, Endpoint: r.Endpoint, LastHeard: r.LastHeard})
	}
	return saveJSON(p.peers(), entries)
}
