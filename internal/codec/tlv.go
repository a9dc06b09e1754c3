package codec

import "fmt"

// extMarker is the sentinel length byte (0xFF) signalling the extended TLV
// form, per spec §6's EBNF: ext_tlv = type:u8 0xFF length:u16 payload.
const extMarker = 0xFF

// extThreshold is the smallest payload length that must use the extended
// form (length >= 256 cannot fit in the standard form's single byte).
const extThreshold = 256

// TLV is a single decoded Type-Length-Value record.
type TLV struct {
	Type    uint8
	Payload []byte
}

// EncodeTLV appends the wire form of a single TLV to dst and returns the
// result. It picks the standard or extended form automatically based on
// payload length.
func EncodeTLV(dst []byte, t TLV) ([]byte, error) {
	if len(t.Payload) < extThreshold {
		dst = append(dst, t.Type, uint8(len(t.Payload)))
		dst = append(dst, t.Payload...)
		return dst, nil
	}
	if len(t.Payload) > 0xFFFF {
		return nil, fmt.Errorf("%w: TLV payload of %d bytes exceeds extended length field", ErrOversized, len(t.Payload))
	}
	dst = append(dst, t.Type, extMarker)
	dst = append(dst, uint8(len(t.Payload)), uint8(len(t.Payload)>>8))
	dst = append(dst, t.Payload...)
	return dst, nil
}

// DecodeTLVs walks the TLV stream in src, returning each record in
// encounter order. A malformed stream (truncated header/payload) returns
// ErrTruncated with whatever TLVs were successfully parsed before the
// fault, so a fast-mode caller may still make use of a partial result.
func DecodeTLVs(src []byte) ([]TLV, error) {
	var out []TLV
	i := 0
	for i < len(src) {
		if i+2 > len(src) {
			return out, fmt.Errorf("%w: truncated TLV type/length at offset %d", ErrTruncated, i)
		}
		typ := src[i]
		lengthByte := src[i+1]

		if lengthByte == extMarker {
			if i+4 > len(src) {
				return out, fmt.Errorf("%w: truncated extended TLV length at offset %d", ErrTruncated, i)
			}
			length := int(src[i+2]) | int(src[i+3])<<8
			start := i + 4
			end := start + length
			if end > len(src) {
				return out, fmt.Errorf("%w: extended TLV payload overruns message at offset %d", ErrTruncated, i)
			}
			out = append(out, TLV{Type: typ, Payload: src[start:end]})
			i = end
			continue
		}

		length := int(lengthByte)
		start := i + 2
		end := start + length
		if end > len(src) {
			return out, fmt.Errorf("%w: standard TLV payload overruns message at offset %d", ErrTruncated, i)
		}
		out = append(out, TLV{Type: typ, Payload: src[start:end]})
		i = end
	}
	return out, nil
}

// TLVTypeRange is an inclusive [Min, Max] range of TLV types allowed
// within a given relay domain.
type TLVTypeRange struct {
	Min uint8
	Max uint8
}

// Contains reports whether t falls within the range.
func (r TLVTypeRange) Contains(t uint8) bool {
	return t >= r.Min && t <= r.Max
}

// domainRanges implements spec §3's strict TLV type ranges per domain.
var domainRanges = map[RelayDomain]TLVTypeRange{
	DomainMarketData: {Min: 1, Max: 19},
	DomainSignal:     {Min: 20, Max: 39},
	DomainExecution:  {Min: 40, Max: 79},
}

// VendorRangeMin is the start of the vendor/experimental TLV type range
// (200+); types in this range are never domain-checked.
const VendorRangeMin uint8 = 200

// ValidateTLVDomain checks a single TLV's type against the allowed range
// for its containing message's relay domain, per spec §4.2.
func ValidateTLVDomain(domain RelayDomain, tlvType uint8) error {
	if tlvType >= VendorRangeMin {
		return nil
	}
	r, ok := domainRanges[domain]
	if !ok {
		return fmt.Errorf("%w: %s", ErrInvalidDomain, domain)
	}
	if !r.Contains(tlvType) {
		return fmt.Errorf("%w: type %d not in [%d,%d] for domain %s", ErrTLVOutOfRange, tlvType, r.Min, r.Max, domain)
	}
	return nil
}
