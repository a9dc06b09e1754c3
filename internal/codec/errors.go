package codec

import "errors"

// ProtocolError is the taxonomy of codec-level failures (spec §7). Hot
// paths count these and drop the offending message; they are never fatal
// to the consumer loop.
var (
	ErrBadMagic          = errors.New("codec: bad magic")
	ErrOversized         = errors.New("codec: message exceeds size ceiling")
	ErrTruncated         = errors.New("codec: truncated header or TLV")
	ErrChecksumMismatch  = errors.New("codec: checksum mismatch")
	ErrInvalidDomain     = errors.New("codec: invalid relay domain")
	ErrTLVOutOfRange     = errors.New("codec: TLV type out of range for domain")
	ErrTLVLengthMismatch = errors.New("codec: TLV length mismatch")
	ErrPayloadSizeMismatch = errors.New("codec: payload_size does not match TLV bytes")
	ErrTimestampOutOfWindow = errors.New("codec: timestamp outside +/-24h window")
)
