package peer

import (
	"sort"
	"sync"
	"time"

	"github.com/genesis-mesh/node/internal/logger"
	"github.com/genesis-mesh/node/internal/metrics"
	"github.com/genesis-mesh/node/trust"
)

// Manager owns the node's view of every known peer, keyed by NodeID.
// The transport exclusively owns connections; Manager holds only a
// Connected flag and dials/backoff bookkeeping, looking up live
// connections through the transport's own lookup interface.
type Manager struct {
	mu           sync.RWMutex
	peers        map[trust.NodeID]*Record
	staleTimeout time.Duration
	gossipCap    int
}

// Config bounds Manager's staleness and gossip behavior, mirroring
// stale_peer_timeout_s and peer_gossip_cap from the node configuration.
type Config struct {
	StaleTimeout time.Duration
	GossipCap    int
}

// DefaultConfig matches the spec's documented defaults.
func DefaultConfig() Config {
	return Config{StaleTimeout: 15 * time.Minute, GossipCap: 32}
}

// NewManager creates an empty peer manager.
func NewManager(cfg Config) *Manager {
	return &Manager{
		peers:        make(map[trust.NodeID]*Record),
		staleTimeout: cfg.StaleTimeout,
		gossipCap:    cfg.GossipCap,
	}
}

// Observe records a sighting of id at endpoint, creating a Record on
// first sighting and merging last_heard/roles otherwise.
func (m *Manager) Observe(id trust.NodeID, endpoint string, roles []string) *Record {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.peers[id]
	if !ok {
		r = NewRecord(id, endpoint)
		m.peers[id] = r
		logger.Debug("peer observed", logger.String("node_id", string(id)))
		return r
	}
	r.Touch(now, endpoint, roles)
	return r
}

// Get returns the Record for id, if known.
func (m *Manager) Get(id trust.NodeID) (*Record, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.peers[id]
	return r, ok
}

// MarkConnected flips a peer's connected flag, used by the transport's
// connection-lifecycle callbacks.
func (m *Manager) MarkConnected(id trust.NodeID, connected bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.peers[id]; ok {
		r.Connected = connected
		r.LastSeen = time.Now()
	}
}

// RecordGood/RecordBad apply a reputation delta for id, if known.
func (m *Manager) RecordGood(id trust.NodeID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.peers[id]; ok {
		r.RecordGood()
	}
}

func (m *Manager) RecordBad(id trust.NodeID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.peers[id]
	if !ok {
		return false
	}
	r.RecordBad(time.Now())
	blacklisted := r.Blacklisted(time.Now())
	if blacklisted {
		metrics.RecordError(metrics.KindPeerBlacklisted)
		logger.Info("peer blacklisted", logger.String("node_id", string(id)), logger.Any("reputation", r.Reputation))
	}
	return blacklisted
}

// Blacklisted reports whether id is currently serving a blacklist window.
func (m *Manager) Blacklisted(id trust.NodeID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.peers[id]
	return ok && r.Blacklisted(time.Now())
}

// GossipSample returns, for a PeerListResponse, up to gossipCap known
// peers other than exclude, most recently heard first. Peers are not
// filtered by connection state or staleness.
func (m *Manager) GossipSample(exclude trust.NodeID) []*Record {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Record, 0, len(m.peers))
	for id, r := range m.peers {
		if id == exclude {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastHeard.After(out[j].LastHeard) })
	if len(out) > m.gossipCap {
		out = out[:m.gossipCap]
	}
	return out
}

// Merge folds gossip-received entries into the local table: unknown
// peers enter as observed, known peers update last_heard only if the
// incoming value is newer. Merge is commutative and idempotent by
// construction, since Touch only ever advances last_heard.
func (m *Manager) Merge(entries []GossipEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		r, ok := m.peers[e.NodeID]
		if !ok {
			m.peers[e.NodeID] = NewRecord(e.NodeID, e.Endpoint)
			logger.Debug("peer observed", logger.String("node_id", string(e.NodeID)))
			continue
		}
		r.Touch(e.LastHeard, e.Endpoint, nil)
	}
}

// GossipEntry is one (node_id, endpoint, last_heard) tuple exchanged by
// the discovery protocol's PeerListResponse.
type GossipEntry struct {
	NodeID    trust.NodeID
	Endpoint  string
	LastHeard time.Time
}

// Sweep evicts peers not heard from within the stale window and without
// an active connection. Returns the evicted NodeIDs for audit logging.
func (m *Manager) Sweep() []trust.NodeID {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()

	var evicted []trust.NodeID
	for id, r := range m.peers {
		if r.Stale(now, m.staleTimeout) {
			evicted = append(evicted, id)
			delete(m.peers, id)
		}
	}
	return evicted
}

// All returns a snapshot of every known peer. Used by health reporting
// and tests; callers must not mutate the returned records.
func (m *Manager) All() []*Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Record, 0, len(m.peers))
	for _, r := range m.peers {
		out = append(out, r)
	}
	return out
}
