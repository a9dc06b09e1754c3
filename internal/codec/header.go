// Package codec implements the Protocol V2 wire format (C2): the 32-byte
// fixed header, TLV framing, domain separation, and the checksum/validator
// that backs both the fast (MarketData) and validated (Signal/Execution)
// parse paths.
package codec

import (
	"encoding/binary"
	"fmt"
)

// HeaderSize is the fixed size, in bytes, of every Protocol V2 message
// header.
const HeaderSize = 32

// Magic is the fixed 4-byte sentinel every message begins with.
const Magic uint32 = 0xDEADBEEF

// RelayDomain tags which domain a message belongs to, which in turn
// selects its TLV type range, size ceiling, and parse mode.
type RelayDomain uint8

const (
	DomainMarketData RelayDomain = 1
	DomainSignal     RelayDomain = 2
	DomainExecution  RelayDomain = 3
)

func (d RelayDomain) String() string {
	switch d {
	case DomainMarketData:
		return "MarketData"
	case DomainSignal:
		return "Signal"
	case DomainExecution:
		return "Execution"
	default:
		return fmt.Sprintf("RelayDomain(%d)", uint8(d))
	}
}

// Header is the 32-byte, little-endian, packed Protocol V2 message header.
type Header struct {
	Magic        uint32
	PayloadSize  uint32
	RelayDomain  RelayDomain
	Source       uint8
	Sequence     uint32
	TimestampNs  uint64
	Checksum     uint32
}

// Encode writes the header's wire form (32 bytes) into dst, which must be
// at least HeaderSize long. The checksum field is written as-is; Build
// encodes the header first, then computes calculateChecksum over the
// finished message and writes it into bytes [28,32).
func (h Header) Encode(dst []byte) error {
	if len(dst) < HeaderSize {
		return fmt.Errorf("%w: header buffer too small (%d < %d)", ErrTruncated, len(dst), HeaderSize)
	}
	binary.LittleEndian.PutUint32(dst[0:4], h.Magic)
	binary.LittleEndian.PutUint32(dst[4:8], h.PayloadSize)
	dst[8] = uint8(h.RelayDomain)
	dst[9] = h.Source
	binary.LittleEndian.PutUint16(dst[10:12], 0) // _pad
	binary.LittleEndian.PutUint32(dst[12:16], h.Sequence)
	binary.LittleEndian.PutUint64(dst[16:24], h.TimestampNs)
	binary.LittleEndian.PutUint32(dst[24:28], 0) // _reserved
	binary.LittleEndian.PutUint32(dst[28:32], h.Checksum)
	return nil
}

// DecodeHeader parses the fixed 32-byte header from the front of src.
func DecodeHeader(src []byte) (Header, error) {
	if len(src) < HeaderSize {
		return Header{}, fmt.Errorf("%w: message shorter than header (%d < %d)", ErrTruncated, len(src), HeaderSize)
	}

	h := Header{
		Magic:       binary.LittleEndian.Uint32(src[0:4]),
		PayloadSize: binary.LittleEndian.Uint32(src[4:8]),
		RelayDomain: RelayDomain(src[8]),
		Source:      src[9],
		Sequence:    binary.LittleEndian.Uint32(src[12:16]),
		TimestampNs: binary.LittleEndian.Uint64(src[16:24]),
		Checksum:    binary.LittleEndian.Uint32(src[28:32]),
	}
	return h, nil
}
