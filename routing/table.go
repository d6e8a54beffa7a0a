package routing

import (
	"sync"
	"time"

	"github.com/genesis-mesh/node/trust"
)

// EntryFlags marks out-of-band state on a RouteEntry.
type EntryFlags uint8

const (
	FlagNone EntryFlags = 0
	// FlagWithdrawn marks a withdrawn entry, whether installed from a
	// withdrawal announcement or invalidated locally (InvalidateNextHop,
	// InvalidateDestination); it is kept only long enough to suppress
	// stale re-announcements before the invalidation grace window
	// removes it.
	FlagWithdrawn EntryFlags = 1 << iota
)

// Entry is one distance-vector route: how to reach Destination, at what
// cost, and which announcement last justified believing it.
type Entry struct {
	Destination    trust.NodeID
	NextHop        trust.NodeID
	Metric         int
	SequenceNumber uint64
	LearnedFrom    trust.NodeID
	LastUpdated    time.Time
	Flags          EntryFlags
}

// Table is the node's distance-vector routing table, one Entry per
// known destination. It is safe for concurrent use.
type Table struct {
	mu            sync.RWMutex
	entries       map[trust.NodeID]*Entry
	staleTimeout  time.Duration
	invalidateWin time.Duration
}

// NewTable creates an empty routing table. staleTimeout is typically
// 3x the route announcement interval; invalidateWindow bounds how long
// a withdrawn/invalidated entry lingers before removal.
func NewTable(staleTimeout, invalidateWindow time.Duration) *Table {
	return &Table{
		entries:       make(map[trust.NodeID]*Entry),
		staleTimeout:  staleTimeout,
		invalidateWin: invalidateWindow,
	}
}

// Lookup returns the entry held for dest, if any. Stale entries are
// returned until SweepStale removes them, and withdrawn entries are
// returned with FlagWithdrawn set.
func (t *Table) Lookup(dest trust.NodeID) (*Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[dest]
	return e, ok
}

// Accept applies the DSDV selection rule: a candidate announcement
// replaces the current entry iff its sequence number is strictly
// greater, or equal with a metric that, plus one, is still strictly
// lower than the current metric. Other equal-sequence candidates keep
// the existing route (stability); a genuinely new destination is
// always installed. Returns true iff the table changed.
func (t *Table) Accept(candidate Entry) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	current, exists := t.entries[candidate.Destination]
	if !exists {
		candidate.LastUpdated = time.Now()
		t.entries[candidate.Destination] = &candidate
		return true
	}

	switch {
	case candidate.SequenceNumber > current.SequenceNumber:
	case candidate.SequenceNumber == current.SequenceNumber && candidate.Metric+1 < current.Metric:
	default:
		return false
	}

	candidate.LastUpdated = time.Now()
	t.entries[candidate.Destination] = &candidate
	return true
}

// InvalidateNextHop marks every route whose NextHop is hop as withdrawn
// and returns the destinations affected, so the router can flood a
// withdrawal announcement for each (odd sequence = last_seq + 1).
func (t *Table) InvalidateNextHop(hop trust.NodeID) []trust.NodeID {
	t.mu.Lock()
	defer t.mu.Unlock()

	var affected []trust.NodeID
	for dest, e := range t.entries {
		if e.NextHop == hop && e.Flags&FlagWithdrawn == 0 {
			e.Flags |= FlagWithdrawn
			e.LastUpdated = time.Now()
			affected = append(affected, dest)
		}
	}
	return affected
}

// InvalidateDestination marks dest's entry withdrawn in place and
// returns it (with the flag set), or false if dest isn't held or is
// already withdrawn. Mirrors InvalidateNextHop's single-entry case, for
// an administratively triggered withdrawal of one destination rather
// than every route through a dropped peer.
func (t *Table) InvalidateDestination(dest trust.NodeID) (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[dest]
	if !ok || e.Flags&FlagWithdrawn != 0 {
		return Entry{}, false
	}
	e.Flags |= FlagWithdrawn
	e.LastUpdated = time.Now()
	return *e, true
}

// SweepStale removes entries unrefreshed for longer than staleTimeout,
// or withdrawn entries older than invalidateWindow. Returns the removed
// destinations.
func (t *Table) SweepStale() []trust.NodeID {
	now := time.Now()
	t.mu.Lock()
	defer t.mu.Unlock()

	var removed []trust.NodeID
	for dest, e := range t.entries {
		if e.Flags&FlagWithdrawn != 0 && now.Sub(e.LastUpdated) > t.invalidateWin {
			delete(t.entries, dest)
			removed = append(removed, dest)
			continue
		}
		if e.Flags&FlagWithdrawn == 0 && now.Sub(e.LastUpdated) > t.staleTimeout {
			delete(t.entries, dest)
			removed = append(removed, dest)
		}
	}
	return removed
}

// Snapshot returns every active (non-withdrawn) entry, used to emit a
// full-table RouteAnnounce round.
func (t *Table) Snapshot() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Entry, 0, len(t.entries))
	for _, e := range t.entries {
		if e.Flags&FlagWithdrawn == 0 {
			out = append(out, *e)
		}
	}
	return out
}
