package registry

import (
	"testing"

	"github.com/flowrelay/marketdata/internal/codec"
	"github.com/flowrelay/marketdata/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessMessageInsertsInstrument(t *testing.T) {
	r := New()
	id := types.InstrumentId{Venue: 1, AssetType: types.AssetTypeToken, AssetID: 99}
	b := id.Bytes()

	msg, err := r.ProcessMessage(codec.DomainMarketData, codec.TLV{Type: TLVInstrumentDiscovered, Payload: b[:]})
	require.NoError(t, err)
	require.Equal(t, KindInstrument, msg.Kind)
	assert.True(t, id.Equal(*msg.Instrument))

	got, ok := r.Lookup(id)
	require.True(t, ok)
	assert.True(t, id.Equal(got))
}

func TestProcessMessagePoolTLV(t *testing.T) {
	r := New()
	payload := make([]byte, 2+1+8+2*8)
	payload[0], payload[1] = 1, 0 // venue = 1
	payload[2] = 2                // token_count
	// fast_hash bytes (3:11) left zero; registry recomputes canonically.
	putLE64(payload[11:19], 200)
	putLE64(payload[19:27], 100)

	msg, err := r.ProcessMessage(codec.DomainMarketData, codec.TLV{Type: TLVPoolDiscovered, Payload: payload})
	require.NoError(t, err)
	require.Equal(t, KindPool, msg.Kind)
	assert.Equal(t, []uint64{100, 200}, msg.Pool.GetTokens())
}

func TestProcessMessageOpaqueForTradeTLV(t *testing.T) {
	r := New()
	msg, err := r.ProcessMessage(codec.DomainMarketData, codec.TLV{Type: TLVTrade, Payload: []byte{1, 2, 3}})
	require.NoError(t, err)
	assert.Equal(t, KindOpaque, msg.Kind)
}

func TestLookupByHintIsSeparateFromAuthoritativeLookup(t *testing.T) {
	r := New()
	id := types.InstrumentId{Venue: 1, AssetType: types.AssetTypeToken, AssetID: 0x1122334455}
	r.Insert(id)

	got, ok := r.LookupByHint(id.Hint())
	require.True(t, ok)
	assert.True(t, id.Equal(got))
}

func putLE64(dst []byte, v uint64) {
	for i := 0; i < 8; i++ {
		dst[i] = byte(v >> (8 * i))
	}
}
