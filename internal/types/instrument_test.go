package types

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstrumentIdEquality(t *testing.T) {
	a := InstrumentId{Venue: 1, AssetType: AssetTypeToken, AssetID: 42}
	b := InstrumentId{Venue: 1, AssetType: AssetTypeToken, AssetID: 42}
	c := InstrumentId{Venue: 2, AssetType: AssetTypeToken, AssetID: 42}

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestInstrumentIdBytesRoundTrip(t *testing.T) {
	id := InstrumentId{Venue: 7, AssetType: AssetTypePool, Reserved: 3, AssetID: 0xDEADBEEFCAFEBABE}
	got := InstrumentIdFromBytes(id.Bytes())
	assert.True(t, id.Equal(got))
}

func TestPoolInstrumentIdBijection(t *testing.T) {
	weth := uint64(0xC02aaA39b223FE88)
	usdc := uint64(0xA0B86991c6218B36)

	p1, err := NewPoolInstrumentIdFromPair(1, weth, usdc)
	require.NoError(t, err)
	p2, err := NewPoolInstrumentIdFromPair(1, usdc, weth)
	require.NoError(t, err)

	assert.True(t, p1.FastEquals(p2))
	assert.Equal(t, p1.GetTokens(), p2.GetTokens())
	assert.Equal(t, []uint64{usdc, weth}, p1.GetTokens())
}

func TestPoolInstrumentIdPermutationsEqual(t *testing.T) {
	tokens := []uint64{5, 1, 3, 2, 4}
	reordered := []uint64{4, 3, 2, 1, 5}

	p1, err := NewPoolInstrumentId(9, tokens)
	require.NoError(t, err)
	p2, err := NewPoolInstrumentId(9, reordered)
	require.NoError(t, err)

	assert.True(t, p1.FastEquals(p2))
}

func TestPoolInstrumentIdDedup(t *testing.T) {
	p, err := NewPoolInstrumentId(1, []uint64{1, 1, 2, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 3}, p.GetTokens())
}

func TestPoolInstrumentIdRejectsTooFewDistinctTokens(t *testing.T) {
	_, err := NewPoolInstrumentId(1, []uint64{1, 1})
	assert.Error(t, err)
}

func TestFastEqualsRejectsDifferentVenue(t *testing.T) {
	p1, _ := NewPoolInstrumentIdFromPair(1, 10, 20)
	p2, _ := NewPoolInstrumentIdFromPair(2, 10, 20)
	assert.False(t, p1.FastEquals(p2))
}

func TestSharesTokensWith(t *testing.T) {
	p1, _ := NewPoolInstrumentIdFromPair(1, 10, 20)
	p2, _ := NewPoolInstrumentIdFromPair(1, 20, 30)
	p3, _ := NewPoolInstrumentIdFromPair(1, 40, 50)

	assert.True(t, p1.SharesTokensWith(p2))
	assert.False(t, p1.SharesTokensWith(p3))
	assert.Equal(t, []uint64{20}, p1.SharedTokens(p2))
}

func TestUSDFixedPointRoundTrip(t *testing.T) {
	d := decimal.RequireFromString("1234.56789012")
	usd, err := USDFromDecimal(d)
	require.NoError(t, err)
	assert.True(t, usd.Decimal().Equal(d))
}

func TestUSDOverflow(t *testing.T) {
	huge := decimal.RequireFromString("999999999999999999999999")
	_, err := USDFromDecimal(huge)
	assert.ErrorIs(t, err, ErrPrecisionOverflow)
}

func TestTokenAmountToUSD(t *testing.T) {
	amt, err := NewTokenAmount(big.NewInt(1_500000000000000000), 18) // 1.5 tokens at 18 decimals
	require.NoError(t, err)

	price := decimal.RequireFromString("2000.00")
	usd, err := amt.ToUSD(price)
	require.NoError(t, err)
	assert.Equal(t, "3000", usd.Decimal().StringFixed(0))
}

func TestTokenAmountRejectsNegative(t *testing.T) {
	_, err := NewTokenAmount(big.NewInt(-1), 18)
	assert.Error(t, err)
}
