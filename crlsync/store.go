// Package crlsync keeps one node's certificate revocation list current
// by wrapping trust.Chain's CRL slot with sequence bookkeeping and
// the gossip distribution protocol from spec.md §4.6.
package crlsync

import (
	"sync"
	"time"

	"github.com/genesis-mesh/node/internal/logger"
	"github.com/genesis-mesh/node/trust"
)

// Store owns the node's single authoritative CRL, applying higher-
// sequence replacements and reporting which subjects newly became
// revoked so callers can drop their connections.
type Store struct {
	mu          sync.Mutex
	chain       *trust.Chain
	lastApplied time.Time
	supersedes  uint64
}

// NewStore wraps chain, whose CRL() accessor already holds the CRL applied at genesis.
func NewStore(chain *trust.Chain) *Store {
	return &Store{chain: chain, lastApplied: time.Now()}
}

// LastAppliedAt satisfies health.CRLFreshness, reporting when the held
// CRL last advanced to a higher sequence.
func (s *Store) LastAppliedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastApplied
}

// Sequence returns the locally held CRL's sequence number.
func (s *Store) Sequence() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chain.CRL().Sequence
}

// Snapshot returns the currently held CRL.
func (s *Store) Snapshot() *trust.CRL {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chain.CRL()
}

// Supersedes returns the sequence number the currently held CRL
// replaced, or 0 if no replacement has happened yet. The CRL is an
// authoritative snapshot, not a log, so this is tracked purely for
// audit/debugging visibility into compaction and never affects
// acceptance semantics.
func (s *Store) Supersedes() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.supersedes
}

// Apply installs incoming if it verifies and has a higher sequence
// than the locally held CRL, returning the set of subjects newly
// revoked by the replacement (for the caller to drop connections to
// and emit audit NodeBlacklisted).
func (s *Store) Apply(incoming *trust.CRL) (newlyRevoked []string, applied bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.chain.CRL()
	if incoming.Sequence <= current.Sequence {
		return nil, false, nil
	}

	previouslyRevoked := make(map[string]bool, len(current.Revocations))
	for _, r := range current.Revocations {
		previouslyRevoked[r.SubjectPubkey] = true
	}

	if err := s.chain.ReplaceCRL(incoming); err != nil {
		return nil, false, err
	}
	s.supersedes = current.Sequence
	s.lastApplied = time.Now()

	for _, r := range incoming.Revocations {
		if !previouslyRevoked[r.SubjectPubkey] {
			newlyRevoked = append(newlyRevoked, r.SubjectPubkey)
		}
	}
	logger.Info("crl replaced", logger.Any("sequence", incoming.Sequence), logger.Any("new_revocations", len(newlyRevoked)))
	return newlyRevoked, true, nil
}
