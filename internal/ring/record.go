// Package ring implements the single-producer / multi-consumer
// shared-memory ring transport (C4): fixed-size record slots, a
// power-of-two capacity, an atomic writer cursor, and a true per-consumer
// read cursor per subscriber (never a single shared read index).
package ring

import (
	"encoding/binary"
	"fmt"
)

// RecordKind distinguishes the two fixed-size record layouts a feed can
// carry. A feed carries exactly one kind for its lifetime.
type RecordKind uint8

const (
	KindTrade RecordKind = iota + 1
	KindOrderBookDelta
)

// TradeRecordSize and DeltaRecordSize are the two canonical fixed record
// sizes. Picking a single canonical layout per record kind and enforcing
// it at init time is the Open Question decision spec §9 asks
// implementers to make explicitly, since the original sources carry
// several inconsistent "V2" delta layouts and at least one acknowledged
// corruption bug in that path.
const (
	TradeRecordSize       = 64
	OrderBookDeltaRecSize = 296 // 40-byte head + 2 sides * maxDeltaLevels * 16
)

// TradeRecord is the canonical fixed-size wire layout for a single trade,
// written directly into a ring slot.
//
//	offset size  field
//	0      8     instrument id (InstrumentId.Hint projection, cache-only)
//	8      8     price (USD fixed-point, 8 decimals)
//	16     8     size (USD fixed-point, 8 decimals)
//	24     1     side (0=buy,1=sell)
//	25     7     _pad
//	32     8     timestamp_ns
//	40     8     sequence
//	48     16    _reserved
type TradeRecord struct {
	InstrumentHint uint64
	PriceUSD       int64
	SizeUSD        int64
	Side           uint8
	TimestampNs    uint64
	Sequence       uint64
}

func (r TradeRecord) encode(dst []byte) {
	binary.LittleEndian.PutUint64(dst[0:8], r.InstrumentHint)
	binary.LittleEndian.PutUint64(dst[8:16], uint64(r.PriceUSD))
	binary.LittleEndian.PutUint64(dst[16:24], uint64(r.SizeUSD))
	dst[24] = r.Side
	binary.LittleEndian.PutUint64(dst[32:40], r.TimestampNs)
	binary.LittleEndian.PutUint64(dst[40:48], r.Sequence)
}

func decodeTradeRecord(src []byte) TradeRecord {
	return TradeRecord{
		InstrumentHint: binary.LittleEndian.Uint64(src[0:8]),
		PriceUSD:       int64(binary.LittleEndian.Uint64(src[8:16])),
		SizeUSD:        int64(binary.LittleEndian.Uint64(src[16:24])),
		Side:           src[24],
		TimestampNs:    binary.LittleEndian.Uint64(src[32:40]),
		Sequence:       binary.LittleEndian.Uint64(src[40:48]),
	}
}

// OrderBookDeltaRecord is the single canonical delta layout for this
// repository (spec §9's open question, resolved here). A delta's changed
// levels are capped at maxDeltaLevels per side so the record stays
// fixed-size; a delta exceeding the cap forces a full resnapshot instead
// (see internal/orderbook).
const maxDeltaLevels = 8

type PriceLevelChange struct {
	PriceUSD  int64
	NewVolume int64 // 0 means removal
}

type OrderBookDeltaRecord struct {
	InstrumentHint uint64
	PrevVersion    uint64
	Version        uint64
	TimestampNs    uint64
	BidCount       uint8
	AskCount       uint8
	BidChanges     [maxDeltaLevels]PriceLevelChange
	AskChanges     [maxDeltaLevels]PriceLevelChange
}

func (r OrderBookDeltaRecord) encode(dst []byte) {
	binary.LittleEndian.PutUint64(dst[0:8], r.InstrumentHint)
	binary.LittleEndian.PutUint64(dst[8:16], r.PrevVersion)
	binary.LittleEndian.PutUint64(dst[16:24], r.Version)
	binary.LittleEndian.PutUint64(dst[24:32], r.TimestampNs)
	dst[32] = r.BidCount
	dst[33] = r.AskCount
	off := 40
	for i := 0; i < maxDeltaLevels; i++ {
		binary.LittleEndian.PutUint64(dst[off:off+8], uint64(r.BidChanges[i].PriceUSD))
		binary.LittleEndian.PutUint64(dst[off+8:off+16], uint64(r.BidChanges[i].NewVolume))
		off += 16
	}
	for i := 0; i < maxDeltaLevels; i++ {
		binary.LittleEndian.PutUint64(dst[off:off+8], uint64(r.AskChanges[i].PriceUSD))
		binary.LittleEndian.PutUint64(dst[off+8:off+16], uint64(r.AskChanges[i].NewVolume))
		off += 16
	}
}

func decodeOrderBookDeltaRecord(src []byte) OrderBookDeltaRecord {
	r := OrderBookDeltaRecord{
		InstrumentHint: binary.LittleEndian.Uint64(src[0:8]),
		PrevVersion:    binary.LittleEndian.Uint64(src[8:16]),
		Version:        binary.LittleEndian.Uint64(src[16:24]),
		TimestampNs:    binary.LittleEndian.Uint64(src[24:32]),
		BidCount:       src[32],
		AskCount:       src[33],
	}
	off := 40
	for i := 0; i < maxDeltaLevels; i++ {
		r.BidChanges[i] = PriceLevelChange{
			PriceUSD:  int64(binary.LittleEndian.Uint64(src[off : off+8])),
			NewVolume: int64(binary.LittleEndian.Uint64(src[off+8 : off+16])),
		}
		off += 16
	}
	for i := 0; i < maxDeltaLevels; i++ {
		r.AskChanges[i] = PriceLevelChange{
			PriceUSD:  int64(binary.LittleEndian.Uint64(src[off : off+8])),
			NewVolume: int64(binary.LittleEndian.Uint64(src[off+8 : off+16])),
		}
		off += 16
	}
	return r
}

// init enforces the compile-time-equivalent size assertion spec §9 asks
// for: Go has no static_assert, so the closest equivalent is a panic at
// package-init time if the declared constants and actual wire encoding
// ever drift apart.
func init() {
	var t TradeRecord
	buf := make([]byte, TradeRecordSize)
	t.encode(buf) // panics via index-out-of-range if TradeRecordSize is too small

	var d OrderBookDeltaRecord
	dbuf := make([]byte, OrderBookDeltaRecSize)
	d.encode(dbuf)

	want := 40 + 2*maxDeltaLevels*16
	if want > OrderBookDeltaRecSize {
		panic(fmt.Sprintf("ring: OrderBookDeltaRecSize too small: need %d, have %d", want, OrderBookDeltaRecSize))
	}
}

func recordSizeFor(kind RecordKind) int {
	switch kind {
	case KindTrade:
		return TradeRecordSize
	case KindOrderBookDelta:
		return OrderBookDeltaRecSize
	default:
		panic(fmt.Sprintf("ring: unknown record kind %d", kind))
	}
}
