// Package registry implements the message schema registry (C3): a
// process-local cache keyed by full InstrumentId, and dispatch from raw
// TLV bytes to typed semantic records.
package registry

import (
	"fmt"
	"sync"

	"github.com/flowrelay/marketdata/internal/codec"
	"github.com/flowrelay/marketdata/internal/types"
)

// TLV types within the MarketData domain range (spec §3/§6).
const (
	TLVInstrumentDiscovered uint8 = 1
	TLVPoolDiscovered       uint8 = 2
	TLVTrade                uint8 = 3
	TLVOrderBookSnapshot    uint8 = 4
	TLVOrderBookDelta       uint8 = 5
)

// RecordKind tags what a ProcessedMessage actually carries.
type RecordKind int

const (
	KindUnknown RecordKind = iota
	KindInstrument
	KindPool
	KindOpaque
)

// ProcessedMessage is the dispatch result of ProcessMessage: exactly one
// of Instrument/Pool is populated according to Kind, or Kind is
// KindOpaque for TLV types this registry doesn't maintain cache state
// for (trades, deltas — those flow straight to C4/C6, not through the
// instrument cache).
type ProcessedMessage struct {
	Kind       RecordKind
	Instrument *types.InstrumentId
	Pool       *types.PoolInstrumentId
	TLVType    uint8
	Payload    []byte
}

// shard count for the instrument cache; spec §5 calls for "fine-grained
// sharding" so readers never block writers on unrelated keys.
const shardCount = 16

type shard struct {
	mu    sync.RWMutex
	byID  map[[16]byte]types.InstrumentId
	byHint map[uint64][16]byte // lossy projection -> full id bytes; hint-only, never authoritative
}

// Registry is the process-local instrument/pool cache.
type Registry struct {
	shards [shardCount]*shard
}

func New() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i] = &shard{
			byID:   make(map[[16]byte]types.InstrumentId),
			byHint: make(map[uint64][16]byte),
		}
	}
	return r
}

func shardIndex(id types.InstrumentId) int {
	b := id.Bytes()
	var h uint64
	for _, c := range b {
		h = h*31 + uint64(c)
	}
	return int(h % shardCount)
}

// Insert records an instrument in the cache, keyed by its full id. The
// lossy Hint() projection is recorded only in the secondary hint index,
// never consulted for economic logic.
func (r *Registry) Insert(id types.InstrumentId) {
	s := r.shards[shardIndex(id)]
	s.mu.Lock()
	defer s.mu.Unlock()
	b := id.Bytes()
	s.byID[b] = id
	s.byHint[id.Hint()] = b
}

// Lookup retrieves an instrument by its full id.
func (r *Registry) Lookup(id types.InstrumentId) (types.InstrumentId, bool) {
	s := r.shards[shardIndex(id)]
	s.mu.RLock()
	defer s.mu.RUnlock()
	got, ok := s.byID[id.Bytes()]
	return got, ok
}

// LookupByHint services legacy lookups by the lossy 8-byte projection
// only; spec §4.3 forbids using this path for economic decisions since
// distinct instruments can share a hint.
func (r *Registry) LookupByHint(hint uint64) (types.InstrumentId, bool) {
	for _, s := range r.shards {
		s.mu.RLock()
		b, ok := s.byHint[hint]
		s.mu.RUnlock()
		if ok {
			return types.InstrumentIdFromBytes(b), true
		}
	}
	return types.InstrumentId{}, false
}

// ProcessMessage dispatches a single TLV's payload by type, inserting any
// discovered instrument into the cache and returning a typed
// ProcessedMessage; a discovered pool is decoded and returned but not
// cached. Trade and order-book TLVs are returned as KindOpaque
// since their state lives in C4 (ring transport) and C6 (order-book
// tracker), not the instrument cache.
func (r *Registry) ProcessMessage(domain codec.RelayDomain, tlv codec.TLV) (ProcessedMessage, error) {
	switch tlv.Type {
	case TLVInstrumentDiscovered:
		id, err := decodeInstrumentTLV(tlv.Payload)
		if err != nil {
			return ProcessedMessage{}, fmt.Errorf("registry: decode instrument TLV: %w", err)
		}
		r.Insert(id)
		return ProcessedMessage{Kind: KindInstrument, Instrument: &id, TLVType: tlv.Type}, nil

	case TLVPoolDiscovered:
		pool, err := decodePoolTLV(tlv.Payload)
		if err != nil {
			return ProcessedMessage{}, fmt.Errorf("registry: decode pool TLV: %w", err)
		}
		return ProcessedMessage{Kind: KindPool, Pool: &pool, TLVType: tlv.Type}, nil

	case TLVTrade, TLVOrderBookSnapshot, TLVOrderBookDelta:
		return ProcessedMessage{Kind: KindOpaque, TLVType: tlv.Type, Payload: tlv.Payload}, nil

	default:
		return ProcessedMessage{Kind: KindUnknown, TLVType: tlv.Type, Payload: tlv.Payload}, nil
	}
}

// decodeInstrumentTLV parses a 16-byte InstrumentId payload (venue u16,
// asset_type u8, reserved u8, asset_id u64, little-endian).
func decodeInstrumentTLV(payload []byte) (types.InstrumentId, error) {
	if len(payload) != 16 {
		return types.InstrumentId{}, fmt.Errorf("%w: instrument TLV must be 16 bytes, got %d", codec.ErrTLVLengthMismatch, len(payload))
	}
	var b [16]byte
	copy(b[:], payload)
	return types.InstrumentIdFromBytes(b), nil
}

// decodePoolTLV parses a variable-length PoolInstrumentId payload: venue
// u16, token_count u8, fast_hash u64, token_ids[token_count] u64.
func decodePoolTLV(payload []byte) (types.PoolInstrumentId, error) {
	const headerLen = 2 + 1 + 8
	if len(payload) < headerLen {
		return types.PoolInstrumentId{}, fmt.Errorf("%w: pool TLV shorter than header", codec.ErrTLVLengthMismatch)
	}
	venue := uint16(payload[0]) | uint16(payload[1])<<8
	count := int(payload[2])
	if len(payload) != headerLen+count*8 {
		return types.PoolInstrumentId{}, fmt.Errorf("%w: pool TLV length does not match token_count", codec.ErrTLVLengthMismatch)
	}
	ids := make([]uint64, count)
	off := headerLen
	for i := 0; i < count; i++ {
		var v uint64
		for b := 0; b < 8; b++ {
			v |= uint64(payload[off+b]) << (8 * b)
		}
		ids[i] = v
		off += 8
	}
	return types.NewPoolInstrumentId(venue, ids)
}
