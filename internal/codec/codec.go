package codec

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"time"
)

// Size ceilings per domain (spec §4.2). A zero per-domain ceiling means
// "use DefaultMaxBytes" (and a zero DefaultMaxBytes means
// DefaultLimits.DefaultMaxBytes); HardMaxBytes has no such fallback.
type Limits struct {
	MarketDataMaxBytes uint32
	SignalMaxBytes     uint32
	ExecutionMaxBytes  uint32
	DefaultMaxBytes    uint32
	HardMaxBytes       uint32
}

// DefaultLimits mirrors spec §4.2's concrete ceilings.
var DefaultLimits = Limits{
	MarketDataMaxBytes: 4 * 1024,
	SignalMaxBytes:      8 * 1024,
	ExecutionMaxBytes:   16 * 1024,
	DefaultMaxBytes:     64 * 1024,
	HardMaxBytes:        16 * 1024 * 1024,
}

func (l Limits) ceilingFor(domain RelayDomain) uint32 {
	switch domain {
	case DomainMarketData:
		if l.MarketDataMaxBytes > 0 {
			return l.MarketDataMaxBytes
		}
	case DomainSignal:
		if l.SignalMaxBytes > 0 {
			return l.SignalMaxBytes
		}
	case DomainExecution:
		if l.ExecutionMaxBytes > 0 {
			return l.ExecutionMaxBytes
		}
	}
	if l.DefaultMaxBytes > 0 {
		return l.DefaultMaxBytes
	}
	return DefaultLimits.DefaultMaxBytes
}

// Build encodes a full Protocol V2 message: header plus TLV stream, with
// the checksum computed over the header (minus checksum field) and
// payload, XORed with the total-length factor per spec §4.2.
func Build(domain RelayDomain, source uint8, sequence uint32, timestampNs uint64, tlvs []TLV) ([]byte, error) {
	var payload []byte
	var err error
	for _, t := range tlvs {
		payload, err = EncodeTLV(payload, t)
		if err != nil {
			return nil, err
		}
	}

	total := HeaderSize + len(payload)
	out := make([]byte, total)

	h := Header{
		Magic:       Magic,
		PayloadSize: uint32(len(payload)),
		RelayDomain: domain,
		Source:      source,
		Sequence:    sequence,
		TimestampNs: timestampNs,
	}
	if err := h.Encode(out[:HeaderSize]); err != nil {
		return nil, err
	}
	copy(out[HeaderSize:], payload)

	h.Checksum = calculateChecksum(out)
	binary.LittleEndian.PutUint32(out[28:32], h.Checksum)

	return out, nil
}

// calculateChecksum implements spec §4.2's exact algorithm: CRC32 over the
// header bytes [0,28) (excluding the checksum field itself) plus the
// payload bytes [32,len), XORed with (total_len * 0xDEADBEEF).
func calculateChecksum(message []byte) uint32 {
	hasher := crc32.NewIEEE()
	hasher.Write(message[0:28])
	if len(message) > HeaderSize {
		hasher.Write(message[HeaderSize:])
	}
	base := hasher.Sum32()
	return base ^ (uint32(len(message)) * Magic)
}

// ParsedMessage is the result of a successful parse: the header plus the
// TLVs found in its payload.
type ParsedMessage struct {
	Header Header
	TLVs   []TLV
}

// ParseFast implements the MarketData fast path: verifies magic and
// bounds only, skips the checksum. It is the >1M msg/s path spec §4.2
// requires; a TLV domain violation is not an error here, only counted by
// the caller as a warning (ValidateTLVDomain is still exposed for callers
// that want to track the warning rate without paying validated-mode cost
// on every message).
func ParseFast(data []byte, limits Limits) (ParsedMessage, error) {
	if len(data) < HeaderSize {
		return ParsedMessage{}, fmt.Errorf("%w: message shorter than header", ErrTruncated)
	}
	h, err := DecodeHeader(data)
	if err != nil {
		return ParsedMessage{}, err
	}
	if h.Magic != Magic {
		return ParsedMessage{}, fmt.Errorf("%w: got 0x%08X", ErrBadMagic, h.Magic)
	}
	ceiling := limits.ceilingFor(h.RelayDomain)
	if ceiling == 0 {
		ceiling = limits.DefaultMaxBytes
	}
	if uint32(len(data)) > ceiling || uint32(len(data)) > limits.HardMaxBytes {
		return ParsedMessage{}, fmt.Errorf("%w: %d bytes", ErrOversized, len(data))
	}
	if int(h.PayloadSize) != len(data)-HeaderSize {
		return ParsedMessage{}, fmt.Errorf("%w: header says %d, got %d", ErrPayloadSizeMismatch, h.PayloadSize, len(data)-HeaderSize)
	}

	tlvs, err := DecodeTLVs(data[HeaderSize:])
	if err != nil {
		return ParsedMessage{}, err
	}
	return ParsedMessage{Header: h, TLVs: tlvs}, nil
}

// maxTimestampSkew is the window spec §3 allows timestamp_ns to deviate
// from wall-clock "now" by, in either direction.
const maxTimestampSkew = 24 * time.Hour

// ParseValidated implements the Signal/Execution validated path: verifies
// magic, size, checksum, per-TLV domain range, and timestamp freshness. A
// violation of any of these is a hard ProtocolError.
func ParseValidated(data []byte, limits Limits, now time.Time) (ParsedMessage, error) {
	msg, err := ParseFast(data, limits)
	if err != nil {
		return ParsedMessage{}, err
	}

	if calculateChecksum(data) != msg.Header.Checksum {
		return ParsedMessage{}, ErrChecksumMismatch
	}

	if _, ok := domainRanges[msg.Header.RelayDomain]; !ok && msg.Header.RelayDomain != 0 {
		// Vendor/experimental domains outside the three named ones are
		// only valid if every TLV type is in the vendor range; fall
		// through to the per-TLV check below rather than rejecting here.
	}

	for _, t := range msg.TLVs {
		if err := ValidateTLVDomain(msg.Header.RelayDomain, t.Type); err != nil {
			return ParsedMessage{}, err
		}
	}

	skew := now.Sub(time.Unix(0, int64(msg.Header.TimestampNs)))
	if skew > maxTimestampSkew || skew < -maxTimestampSkew {
		return ParsedMessage{}, fmt.Errorf("%w: timestamp_ns=%d now=%d", ErrTimestampOutOfWindow, msg.Header.TimestampNs, now.UnixNano())
	}

	return msg, nil
}
