package arbitrage

import (
	"sync"

	"github.com/flowrelay/marketdata/internal/types"
)

// MemoryPoolStore is a concurrency-safe in-memory PoolStore. Real pool
// state arrives from a vendor-specific chain-log adapter (out of scope
// here, same boundary as the exchange adapter feeding C1) and calls
// Upsert as new reserves/liquidity are observed.
//
// PoolInstrumentId embeds a TokenIDs slice, so it is not a comparable Go
// type and cannot be a map key directly. Pools are bucketed by
// CacheKey() (the fast, lossy hash) and disambiguated within a bucket by
// FastEquals, the same pattern internal/types documents for any
// PoolInstrumentId lookup.
type MemoryPoolStore struct {
	mu      sync.RWMutex
	buckets map[uint64][]Pool
}

func NewMemoryPoolStore() *MemoryPoolStore {
	return &MemoryPoolStore{buckets: make(map[uint64][]Pool)}
}

// Upsert records a pool's latest state and returns it, for convenience
// when the caller immediately wants to trigger OnPoolUpdate.
func (s *MemoryPoolStore) Upsert(p Pool) Pool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := p.ID.CacheKey()
	bucket := s.buckets[key]
	for i, existing := range bucket {
		if existing.ID.FastEquals(p.ID) {
			bucket[i] = p
			return p
		}
	}
	s.buckets[key] = append(bucket, p)
	return p
}

func (s *MemoryPoolStore) AllPools() []Pool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Pool, 0, len(s.buckets))
	for _, bucket := range s.buckets {
		out = append(out, bucket...)
	}
	return out
}

func (s *MemoryPoolStore) Pool(id types.PoolInstrumentId) (Pool, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, existing := range s.buckets[id.CacheKey()] {
		if existing.ID.FastEquals(id) {
			return existing, true
		}
	}
	return Pool{}, false
}
