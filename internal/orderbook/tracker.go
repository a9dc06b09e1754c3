package orderbook

import (
	"sync"
	"time"
)

// DefaultDepth is the default per-side level cap, per spec §3.
const DefaultDepth = 50

// PriceLevelChange is a single delta entry; NewVolume == 0 means removal.
type PriceLevelChange struct {
	Price     int64
	NewVolume int64
}

// Delta is the minimal set of price-level changes needed to transform
// one snapshot into the next, per spec §3/§4.6.
type Delta struct {
	Symbol      string
	Venue       string
	PrevVersion uint64
	Version     uint64
	TimestampNs uint64
	BidChanges  []PriceLevelChange
	AskChanges  []PriceLevelChange
}

// Snapshot is the full depth-capped book state for one (symbol, venue).
type Snapshot struct {
	Symbol      string
	Venue       string
	Version     uint64
	TimestampNs uint64
	Bids        *Levels
	Asks        *Levels
}

type bookState struct {
	mu       sync.Mutex
	snapshot *Snapshot
}

// Tracker holds the last snapshot per (symbol, venue) and computes
// minimal deltas between successive updates.
type Tracker struct {
	depth int
	mu    sync.RWMutex
	books map[string]*bookState
}

func NewTracker(depth int) *Tracker {
	if depth <= 0 {
		depth = DefaultDepth
	}
	return &Tracker{depth: depth, books: make(map[string]*bookState)}
}

func key(symbol, venue string) string { return venue + ":" + symbol }

func (t *Tracker) bookFor(symbol, venue string) *bookState {
	k := key(symbol, venue)
	t.mu.RLock()
	b, ok := t.books[k]
	t.mu.RUnlock()
	if ok {
		return b
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if b, ok := t.books[k]; ok {
		return b
	}
	b = &bookState{}
	t.books[k] = b
	return b
}

// ApplyUpdate ingests a new raw snapshot (unbounded levels), truncates it
// to the depth cap, computes the delta against the prior snapshot (if
// any), and stores the new snapshot. Returns the delta (nil on first
// load — only the snapshot is published then, per spec §4.6 step 4) and
// whether this was the initial load for the (symbol, venue) pair.
func (t *Tracker) ApplyUpdate(symbol, venue string, bids, asks []Level, timestampNs uint64) (*Snapshot, *Delta, bool) {
	b := t.bookFor(symbol, venue)
	b.mu.Lock()
	defer b.mu.Unlock()

	newBids := NewLevels(true, t.depth)
	for _, lvl := range bids {
		newBids.Set(lvl.Price, lvl.Size)
	}
	newAsks := NewLevels(false, t.depth)
	for _, lvl := range asks {
		newAsks.Set(lvl.Price, lvl.Size)
	}

	prev := b.snapshot
	var version uint64
	nsVersion := uint64(time.Now().UnixNano())
	if prev == nil {
		version = 1
		if nsVersion > version {
			version = nsVersion
		}
	} else {
		version = prev.Version + 1
		if nsVersion > version {
			version = nsVersion
		}
	}

	newSnap := &Snapshot{
		Symbol:      symbol,
		Venue:       venue,
		Version:     version,
		TimestampNs: timestampNs,
		Bids:        newBids,
		Asks:        newAsks,
	}
	b.snapshot = newSnap

	if prev == nil {
		return newSnap, nil, true
	}

	delta := &Delta{
		Symbol:      symbol,
		Venue:       venue,
		PrevVersion: prev.Version,
		Version:     version,
		TimestampNs: timestampNs,
		BidChanges:  computeSideDelta(prev.Bids, newBids),
		AskChanges:  computeSideDelta(prev.Asks, newAsks),
	}
	return newSnap, delta, false
}

// computeSideDelta emits a change for every price in the union of prior
// and new sides whose volume changed; a price present only in prior
// emits NewVolume == 0 (removal), per spec §4.6.
func computeSideDelta(prev, next *Levels) []PriceLevelChange {
	var changes []PriceLevelChange

	seen := make(map[int64]bool)
	for _, lvl := range next.Snapshot() {
		seen[lvl.Price] = true
		prevSize, existed := prev.Get(lvl.Price)
		if !existed || prevSize != lvl.Size {
			changes = append(changes, PriceLevelChange{Price: lvl.Price, NewVolume: lvl.Size})
		}
	}
	for _, lvl := range prev.Snapshot() {
		if !seen[lvl.Price] {
			changes = append(changes, PriceLevelChange{Price: lvl.Price, NewVolume: 0})
		}
	}
	return changes
}

// Apply reconstructs a new snapshot from a prior one and a delta; it is
// the apply side of spec §4.6/§8's invariant apply(prev, delta) == new
// and performs no check itself.
func Apply(prev *Snapshot, delta *Delta) *Snapshot {
	bids := prev.Bids.Clone()
	for _, c := range delta.BidChanges {
		bids.Set(c.Price, c.NewVolume)
	}
	asks := prev.Asks.Clone()
	for _, c := range delta.AskChanges {
		asks.Set(c.Price, c.NewVolume)
	}
	return &Snapshot{
		Symbol:      prev.Symbol,
		Venue:       prev.Venue,
		Version:     delta.Version,
		TimestampNs: delta.TimestampNs,
		Bids:        bids,
		Asks:        asks,
	}
}

// Latest returns the current snapshot for a (symbol, venue) pair, if any.
func (t *Tracker) Latest(symbol, venue string) (*Snapshot, bool) {
	b := t.bookFor(symbol, venue)
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshot, b.snapshot != nil
}
