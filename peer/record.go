package peer

import (
	"time"

	"github.com/genesis-mesh/node/trust"
)

// Reputation bounds.
const (
	MinReputation             = 0.0
	MaxReputation             = 1.0
	InitialReputation         = 0.5
	ReputationGoodDelta       = 0.02
	ReputationBadDelta        = 0.1
	ReputationBlacklistThresh = 0.2

	BlacklistInitial = 60 * time.Second
	BlacklistCap     = time.Hour
)

// Record tracks everything the peer manager knows about one mesh
// participant. It is created on first sighting (gossip or inbound
// handshake) and garbage-collected once stale with no active
// connection.
type Record struct {
	NodeID            trust.NodeID
	Endpoint          string
	FirstSeen         time.Time
	LastSeen          time.Time
	LastHeard         time.Time
	Reputation        float64
	ConsecutiveFails  int
	BlacklistedUntil  time.Time
	ObservedRoles     []string
	Connected         bool

	backoff time.Duration
}

// NewRecord creates a freshly observed peer with neutral reputation.
func NewRecord(id trust.NodeID, endpoint string) *Record {
	now := time.Now()
	return &Record{
		NodeID:     id,
		Endpoint:   endpoint,
		FirstSeen:  now,
		LastSeen:   now,
		LastHeard:  now,
		Reputation: InitialReputation,
	}
}

// Blacklisted reports whether the peer is currently serving a
// reputation-triggered blacklist window.
func (r *Record) Blacklisted(now time.Time) bool {
	return now.Before(r.BlacklistedUntil)
}

// RecordGood nudges reputation upward on a successful interaction
// (handshake, pong, correct routing announce).
func (r *Record) RecordGood() {
	r.Reputation += ReputationGoodDelta
	if r.Reputation > MaxReputation {
		r.Reputation = MaxReputation
	}
	r.ConsecutiveFails = 0
}

// RecordBad nudges reputation downward on misbehavior (bad signature,
// invalid route, TTL abuse) and, once below threshold, blacklists the
// peer for an exponentially increasing duration.
func (r *Record) RecordBad(now time.Time) {
	r.Reputation -= ReputationBadDelta
	if r.Reputation < MinReputation {
		r.Reputation = MinReputation
	}
	r.ConsecutiveFails++

	if r.Reputation < ReputationBlacklistThresh {
		if r.backoff == 0 {
			r.backoff = BlacklistInitial
		} else {
			r.backoff *= 2
			if r.backoff > BlacklistCap {
				r.backoff = BlacklistCap
			}
		}
		r.BlacklistedUntil = now.Add(r.backoff)
	}
}

// Touch marks the peer as heard from at now, merging in endpoint/role
// observations from gossip without clobbering a more recent sighting.
func (r *Record) Touch(now time.Time, endpoint string, roles []string) {
	if now.After(r.LastHeard) {
		r.LastHeard = now
		if endpoint != "" {
			r.Endpoint = endpoint
		}
		if len(roles) > 0 {
			r.ObservedRoles = roles
		}
	}
}

// Stale reports whether the peer hasn't been heard from within window
// and has no active connection — the eviction condition.
func (r *Record) Stale(now time.Time, window time.Duration) bool {
	return !r.Connected && now.Sub(r.LastHeard) > window
}
