// Package types implements the identity and fixed-point primitives (C1):
// InstrumentId, PoolInstrumentId, and the USD/token fixed-point boundary.
package types

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

// AssetType tags what an InstrumentId's asset_id field addresses.
type AssetType uint8

const (
	AssetTypeUnknown AssetType = 0
	AssetTypeToken    AssetType = 1
	AssetTypeSpotPair AssetType = 2
	AssetTypePool     AssetType = 3
)

// InstrumentId is the 16-byte packed identity for a single token or
// venue-listed instrument. Two ids are equal iff every field is equal; the
// 8-byte Hint() projection exists only as a cache key, never an authority.
type InstrumentId struct {
	Venue     uint16
	AssetType AssetType
	Reserved  uint8
	AssetID   uint64
}

// Equal reports whether two InstrumentIds refer to the same instrument.
// All four fields must match — there is no partial or hashed equality.
func (id InstrumentId) Equal(other InstrumentId) bool {
	return id.Venue == other.Venue &&
		id.AssetType == other.AssetType &&
		id.Reserved == other.Reserved &&
		id.AssetID == other.AssetID
}

// Bytes packs the InstrumentId into its 16-byte little-endian wire form.
func (id InstrumentId) Bytes() [16]byte {
	var out [16]byte
	binary.LittleEndian.PutUint16(out[0:2], id.Venue)
	out[2] = uint8(id.AssetType)
	out[3] = id.Reserved
	binary.LittleEndian.PutUint64(out[8:16], id.AssetID)
	return out
}

// InstrumentIdFromBytes unpacks a 16-byte wire form back into an InstrumentId.
func InstrumentIdFromBytes(b [16]byte) InstrumentId {
	return InstrumentId{
		Venue:     binary.LittleEndian.Uint16(b[0:2]),
		AssetType: AssetType(b[2]),
		Reserved:  b[3],
		AssetID:   binary.LittleEndian.Uint64(b[8:16]),
	}
}

// Hint returns the lossy 8-byte asset-id projection. It MUST NOT be used
// as an authoritative key for economic decisions — collisions across
// venues/asset-types are possible and expected. It exists solely to
// service legacy lookups (see internal/registry's secondary index).
func (id InstrumentId) Hint() uint64 {
	return id.AssetID
}

// InstrumentFromEthToken derives an InstrumentId for an ERC-20 token given
// its 20-byte Ethereum address. The asset_id is the low 8 bytes of the
// address's big-endian representation, which is sufficient entropy for a
// venue-scoped cache key (full bijection for Ethereum tokens is carried by
// the pair, not the single-token id, exactly as spec's InstrumentId model
// documents the asset_id as a single u64 field).
func InstrumentFromEthToken(venue uint16, addr common.Address) (InstrumentId, error) {
	if addr == (common.Address{}) {
		return InstrumentId{}, fmt.Errorf("types: zero ethereum address is not a valid token")
	}
	assetID := binary.BigEndian.Uint64(addr[12:20])
	return InstrumentId{
		Venue:     venue,
		AssetType: AssetTypeToken,
		AssetID:   assetID,
	}, nil
}

// PoolInstrumentId is the variable-length identity for an AMM pool. It
// stores the full sorted-unique token set so equality is a true bijection;
// FastHash is only a deterministic pre-check used to short-circuit
// fast_equals before the (potentially expensive) full comparison.
type PoolInstrumentId struct {
	Venue     uint16
	AssetType AssetType // always AssetTypePool
	TokenIDs  []uint64  // sorted ascending, deduplicated
	FastHash  uint64
}

// NewPoolInstrumentId builds a canonical pool identity from a venue and an
// arbitrary-order, possibly-duplicated token id list. The result is
// independent of input order (spec §8 scenario 3 / property: permutations
// of token_ids yield equal objects).
func NewPoolInstrumentId(venue uint16, tokenIDs []uint64) (PoolInstrumentId, error) {
	if len(tokenIDs) < 2 || len(tokenIDs) > 255 {
		return PoolInstrumentId{}, fmt.Errorf("types: pool must have 2..255 tokens, got %d", len(tokenIDs))
	}

	sorted := make([]uint64, len(tokenIDs))
	copy(sorted, tokenIDs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	deduped := sorted[:1]
	for _, id := range sorted[1:] {
		if id != deduped[len(deduped)-1] {
			deduped = append(deduped, id)
		}
	}
	if len(deduped) < 2 {
		return PoolInstrumentId{}, fmt.Errorf("types: pool must have at least 2 distinct tokens, got %d", len(deduped))
	}

	return PoolInstrumentId{
		Venue:     venue,
		AssetType: AssetTypePool,
		TokenIDs:  deduped,
		FastHash:  poolHash(venue, deduped),
	}, nil
}

// NewPoolInstrumentIdFromPair is a convenience constructor for the common
// two-token case.
func NewPoolInstrumentIdFromPair(venue uint16, tokenA, tokenB uint64) (PoolInstrumentId, error) {
	return NewPoolInstrumentId(venue, []uint64{tokenA, tokenB})
}

// poolHash computes the deterministic fast-rejection hash of (venue,
// sorted token_ids). It is non-bijective by design — see CacheKey.
func poolHash(venue uint16, sortedTokenIDs []uint64) uint64 {
	h := fnv.New64a()
	var buf [10]byte
	binary.LittleEndian.PutUint16(buf[0:2], venue)
	h.Write(buf[0:2])
	for _, id := range sortedTokenIDs {
		binary.LittleEndian.PutUint64(buf[2:10], id)
		h.Write(buf[2:10])
	}
	return h.Sum64()
}

// TokenCount returns the number of distinct tokens in the pool.
func (p PoolInstrumentId) TokenCount() int {
	return len(p.TokenIDs)
}

// GetTokens returns the ascending, deduplicated token id slice.
func (p PoolInstrumentId) GetTokens() []uint64 {
	return p.TokenIDs
}

// ContainsToken reports whether the pool includes the given token,
// using binary search since TokenIDs is always sorted.
func (p PoolInstrumentId) ContainsToken(tokenID uint64) bool {
	i := sort.Search(len(p.TokenIDs), func(i int) bool { return p.TokenIDs[i] >= tokenID })
	return i < len(p.TokenIDs) && p.TokenIDs[i] == tokenID
}

// OtherTokens returns the pool's tokens excluding the given one.
func (p PoolInstrumentId) OtherTokens(tokenID uint64) []uint64 {
	out := make([]uint64, 0, len(p.TokenIDs))
	for _, id := range p.TokenIDs {
		if id != tokenID {
			out = append(out, id)
		}
	}
	return out
}

// SharesTokensWith reports whether this pool and other share at least one
// token, via a merge-style two-pointer scan over both sorted id lists.
func (p PoolInstrumentId) SharesTokensWith(other PoolInstrumentId) bool {
	i, j := 0, 0
	for i < len(p.TokenIDs) && j < len(other.TokenIDs) {
		switch {
		case p.TokenIDs[i] == other.TokenIDs[j]:
			return true
		case p.TokenIDs[i] < other.TokenIDs[j]:
			i++
		default:
			j++
		}
	}
	return false
}

// SharedTokens returns the sorted set of tokens common to both pools.
func (p PoolInstrumentId) SharedTokens(other PoolInstrumentId) []uint64 {
	var shared []uint64
	i, j := 0, 0
	for i < len(p.TokenIDs) && j < len(other.TokenIDs) {
		switch {
		case p.TokenIDs[i] == other.TokenIDs[j]:
			shared = append(shared, p.TokenIDs[i])
			i++
			j++
		case p.TokenIDs[i] < other.TokenIDs[j]:
			i++
		default:
			j++
		}
	}
	return shared
}

// FastEquals first rejects on hash mismatch, then falls back to a full
// venue + token-count + element-wise comparison. Equality NEVER relies on
// the hash alone — a hash match is only a prerequisite for the expensive
// comparison, matching the bijection requirement in spec §9.
func (p PoolInstrumentId) FastEquals(other PoolInstrumentId) bool {
	if p.FastHash != other.FastHash {
		return false
	}
	if p.Venue != other.Venue || len(p.TokenIDs) != len(other.TokenIDs) {
		return false
	}
	for i := range p.TokenIDs {
		if p.TokenIDs[i] != other.TokenIDs[i] {
			return false
		}
	}
	return true
}

// CacheKey returns the non-authoritative fast-rejection hash. Documented
// as lossy: only use where a collision can be handled gracefully (e.g. as
// a map bucket key followed by FastEquals, never as a standalone identity).
func (p PoolInstrumentId) CacheKey() uint64 {
	return p.FastHash
}
