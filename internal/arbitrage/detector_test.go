package arbitrage

import (
	"errors"
	"testing"

	"github.com/flowrelay/marketdata/internal/amm"
	"github.com/flowrelay/marketdata/internal/types"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	pools []Pool
}

func (f *fakeStore) AllPools() []Pool { return f.pools }
func (f *fakeStore) Pool(id types.PoolInstrumentId) (Pool, bool) {
	for _, p := range f.pools {
		if p.ID.FastEquals(id) {
			return p, true
		}
	}
	return Pool{}, false
}

func mustPool(t *testing.T, venue uint16, a, b uint64) types.PoolInstrumentId {
	t.Helper()
	p, err := types.NewPoolInstrumentIdFromPair(venue, a, b)
	require.NoError(t, err)
	return p
}

func TestOnPoolUpdateFindsV2V2Opportunity(t *testing.T) {
	eth := types.InstrumentId{Venue: 1, AssetType: types.AssetTypeToken, AssetID: 1}
	usdc := types.InstrumentId{Venue: 1, AssetType: types.AssetTypeToken, AssetID: 2}

	poolA := Pool{
		ID:     mustPool(t, 1, 1, 2),
		Kind:   PoolKindV2,
		Tokens: [2]types.InstrumentId{usdc, eth},
		V2:     amm.V2Pool{ReserveIn: decimal.NewFromInt(1_000_000), ReserveOut: decimal.NewFromInt(400), FeeBps: 30},
	}
	poolB := Pool{
		ID:     mustPool(t, 2, 1, 2),
		Kind:   PoolKindV2,
		Tokens: [2]types.InstrumentId{usdc, eth},
		V2:     amm.V2Pool{ReserveIn: decimal.NewFromInt(390), ReserveOut: decimal.NewFromInt(1_000_000), FeeBps: 30},
	}

	store := &fakeStore{pools: []Pool{poolA, poolB}}
	prices := NewTradePriceCache()
	prices.Update(usdc, decimal.NewFromInt(1))

	d := NewDetector(store, prices, amm.MultiHopParams{MaxSlippageBps: 1000, PerHopSlippageCap: 500})
	opps, errs := d.OnPoolUpdate(poolA)

	assert.NotEmpty(t, opps)
	for _, e := range errs {
		assert.False(t, errors.Is(e, ErrInvalidPoolPair))
	}
}

func TestOnPoolUpdateRejectsPairNotSharingTwoTokens(t *testing.T) {
	a := Pool{ID: mustPool(t, 1, 1, 2), Kind: PoolKindV2, V2: amm.V2Pool{ReserveIn: decimal.NewFromInt(1), ReserveOut: decimal.NewFromInt(1), FeeBps: 30}}
	b := Pool{ID: mustPool(t, 1, 3, 4), Kind: PoolKindV2, V2: amm.V2Pool{ReserveIn: decimal.NewFromInt(1), ReserveOut: decimal.NewFromInt(1), FeeBps: 30}}

	store := &fakeStore{pools: []Pool{a, b}}
	d := NewDetector(store, NewTradePriceCache(), amm.MultiHopParams{})
	_, errs := d.OnPoolUpdate(a)
	assert.Empty(t, errs) // shares zero tokens, not an invalid-pair error: just never enumerated
}

func TestEvaluateDirectionRejectsMissingPrice(t *testing.T) {
	eth := types.InstrumentId{Venue: 1, AssetType: types.AssetTypeToken, AssetID: 1}
	usdc := types.InstrumentId{Venue: 1, AssetType: types.AssetTypeToken, AssetID: 2}
	poolA := Pool{ID: mustPool(t, 1, 1, 2), Kind: PoolKindV2, Tokens: [2]types.InstrumentId{usdc, eth}, V2: amm.V2Pool{ReserveIn: decimal.NewFromInt(100), ReserveOut: decimal.NewFromInt(100), FeeBps: 30}}
	poolB := Pool{ID: mustPool(t, 2, 1, 2), Kind: PoolKindV2, Tokens: [2]types.InstrumentId{usdc, eth}, V2: amm.V2Pool{ReserveIn: decimal.NewFromInt(100), ReserveOut: decimal.NewFromInt(100), FeeBps: 30}}

	d := NewDetector(&fakeStore{pools: []Pool{poolA, poolB}}, NewTradePriceCache(), amm.MultiHopParams{})
	_, err := d.evaluateDirection(poolA, poolB, true)
	assert.ErrorIs(t, err, ErrTokenPriceUnavailable)
}

func TestEvaluateDirectionRejectsZeroLiquidity(t *testing.T) {
	eth := types.InstrumentId{Venue: 1, AssetType: types.AssetTypeToken, AssetID: 1}
	usdc := types.InstrumentId{Venue: 1, AssetType: types.AssetTypeToken, AssetID: 2}
	poolA := Pool{ID: mustPool(t, 1, 1, 2), Kind: PoolKindV2, Tokens: [2]types.InstrumentId{usdc, eth}, V2: amm.V2Pool{ReserveIn: decimal.Zero, ReserveOut: decimal.NewFromInt(100), FeeBps: 30}}
	poolB := Pool{ID: mustPool(t, 2, 1, 2), Kind: PoolKindV2, Tokens: [2]types.InstrumentId{usdc, eth}, V2: amm.V2Pool{ReserveIn: decimal.NewFromInt(100), ReserveOut: decimal.NewFromInt(100), FeeBps: 30}}

	prices := NewTradePriceCache()
	prices.Update(usdc, decimal.NewFromInt(1))
	d := NewDetector(&fakeStore{pools: []Pool{poolA, poolB}}, prices, amm.MultiHopParams{})
	_, err := d.evaluateDirection(poolA, poolB, true)
	assert.ErrorIs(t, err, ErrZeroLiquidity)
}

func TestMixedStrategyTagsAssigned(t *testing.T) {
	eth := types.InstrumentId{Venue: 1, AssetType: types.AssetTypeToken, AssetID: 1}
	usdc := types.InstrumentId{Venue: 1, AssetType: types.AssetTypeToken, AssetID: 2}

	v2Pool := Pool{ID: mustPool(t, 1, 1, 2), Kind: PoolKindV2, Tokens: [2]types.InstrumentId{usdc, eth}, V2: amm.V2Pool{ReserveIn: decimal.NewFromInt(1_000_000), ReserveOut: decimal.NewFromInt(400), FeeBps: 30}}
	v3Pool := Pool{
		ID:     mustPool(t, 2, 1, 2),
		Kind:   PoolKindV3,
		Tokens: [2]types.InstrumentId{usdc, eth},
		V3: amm.V3Pool{
			SqrtPriceX96: uint256.NewInt(0).Lsh(uint256.NewInt(1), 96),
			Liquidity:    uint256.NewInt(1_000_000_000),
			FeePips:      3000,
		},
	}

	prices := NewTradePriceCache()
	prices.Update(usdc, decimal.NewFromInt(1))
	d := NewDetector(&fakeStore{pools: []Pool{v2Pool, v3Pool}}, prices, amm.MultiHopParams{MaxSlippageBps: 2000, PerHopSlippageCap: 2000})

	opp, err := d.evaluateDirection(v2Pool, v3Pool, true)
	require.NoError(t, err)
	if opp != nil {
		assert.Equal(t, StrategyV2V3, opp.Strategy)
	}
}
