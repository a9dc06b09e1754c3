package codec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTrip(t *testing.T) {
	msg, err := Build(DomainMarketData, 3, 42, uint64(time.Now().UnixNano()), []TLV{
		{Type: 1, Payload: []byte{0xAA, 0xBB, 0xCC}},
	})
	require.NoError(t, err)

	parsed, err := ParseFast(msg, DefaultLimits)
	require.NoError(t, err)
	assert.Equal(t, DomainMarketData, parsed.Header.RelayDomain)
	assert.Equal(t, uint8(3), parsed.Header.Source)
	assert.Equal(t, uint32(42), parsed.Header.Sequence)
	require.Len(t, parsed.TLVs, 1)
	assert.Equal(t, uint8(1), parsed.TLVs[0].Type)
	assert.Equal(t, []byte{0xAA, 0xBB, 0xCC}, parsed.TLVs[0].Payload)

	validated, err := ParseValidated(msg, DefaultLimits, time.Now())
	require.NoError(t, err)
	assert.Equal(t, parsed.Header, validated.Header)
}

func TestChecksumCorruptionRejectedInValidatedMode(t *testing.T) {
	msg, err := Build(DomainSignal, 1, 7, uint64(time.Now().UnixNano()), []TLV{
		{Type: 20, Payload: []byte{0x01}},
	})
	require.NoError(t, err)

	corrupted := append([]byte(nil), msg...)
	corrupted[HeaderSize] ^= 0xFF // flip a payload byte, leaving the stored checksum stale

	_, err = ParseValidated(corrupted, DefaultLimits, time.Now())
	assert.ErrorIs(t, err, ErrChecksumMismatch)

	// fast mode never checks the checksum, so the corrupted message still parses
	parsed, err := ParseFast(corrupted, DefaultLimits)
	require.NoError(t, err)
	assert.Equal(t, DomainSignal, parsed.Header.RelayDomain)
}

func TestExtendedTLVRoundTrip(t *testing.T) {
	bigPayload := make([]byte, 300)
	for i := range bigPayload {
		bigPayload[i] = byte(i)
	}
	msg, err := Build(DomainExecution, 2, 1, uint64(time.Now().UnixNano()), []TLV{
		{Type: 40, Payload: bigPayload},
	})
	require.NoError(t, err)

	parsed, err := ParseValidated(msg, DefaultLimits, time.Now())
	require.NoError(t, err)
	require.Len(t, parsed.TLVs, 1)
	assert.Equal(t, bigPayload, parsed.TLVs[0].Payload)
}

func TestBadMagicRejected(t *testing.T) {
	msg, err := Build(DomainMarketData, 1, 1, uint64(time.Now().UnixNano()), nil)
	require.NoError(t, err)
	msg[0] ^= 0xFF

	_, err = ParseFast(msg, DefaultLimits)
	assert.ErrorIs(t, err, ErrBadMagic)
}

func TestOversizedMessageRejected(t *testing.T) {
	payload := make([]byte, int(DefaultLimits.MarketDataMaxBytes))
	msg, err := Build(DomainMarketData, 1, 1, uint64(time.Now().UnixNano()), []TLV{
		{Type: 1, Payload: payload},
	})
	require.NoError(t, err)

	_, err = ParseFast(msg, DefaultLimits)
	assert.ErrorIs(t, err, ErrOversized)
}

func TestTLVOutOfDomainRangeRejectedInValidatedMode(t *testing.T) {
	msg, err := Build(DomainMarketData, 1, 1, uint64(time.Now().UnixNano()), []TLV{
		{Type: 25, Payload: []byte{1}}, // 25 is in the Signal range, not MarketData
	})
	require.NoError(t, err)

	_, err = ParseValidated(msg, DefaultLimits, time.Now())
	assert.ErrorIs(t, err, ErrTLVOutOfRange)

	// fast mode ignores domain range violations entirely
	_, err = ParseFast(msg, DefaultLimits)
	assert.NoError(t, err)
}

func TestVendorTLVTypeBypassesRangeCheck(t *testing.T) {
	msg, err := Build(DomainMarketData, 1, 1, uint64(time.Now().UnixNano()), []TLV{
		{Type: 201, Payload: []byte{9}},
	})
	require.NoError(t, err)

	_, err = ParseValidated(msg, DefaultLimits, time.Now())
	assert.NoError(t, err)
}

func TestStaleTimestampRejectedInValidatedMode(t *testing.T) {
	stale := uint64(time.Now().Add(-48 * time.Hour).UnixNano())
	msg, err := Build(DomainSignal, 1, 1, stale, []TLV{{Type: 20, Payload: []byte{1}}})
	require.NoError(t, err)

	_, err = ParseValidated(msg, DefaultLimits, time.Now())
	assert.ErrorIs(t, err, ErrTimestampOutOfWindow)
}
