package amm

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestV2OutputScenario(t *testing.T) {
	// spec §8 scenario 4: in=1000, reserve_in=1_000_000, reserve_out=400,
	// fee_bps=30 => out in (0.39, 0.41)
	out := CalculateV2Output(
		decimal.NewFromInt(1000),
		decimal.NewFromInt(1_000_000),
		decimal.NewFromInt(400),
		30,
	)
	lower := decimal.RequireFromString("0.39")
	upper := decimal.RequireFromString("0.41")
	assert.True(t, out.GreaterThan(lower), "out=%s should be > 0.39", out)
	assert.True(t, out.LessThan(upper), "out=%s should be < 0.41", out)
}

func TestV2OutputZeroOnBadInput(t *testing.T) {
	assert.True(t, CalculateV2Output(decimal.Zero, decimal.NewFromInt(100), decimal.NewFromInt(100), 30).IsZero())
	assert.True(t, CalculateV2Output(decimal.NewFromInt(10), decimal.Zero, decimal.NewFromInt(100), 30).IsZero())
}

func TestV2OutputMonotoneInAmountIn(t *testing.T) {
	reserveIn := decimal.NewFromInt(1_000_000)
	reserveOut := decimal.NewFromInt(400)
	prev := decimal.Zero
	for _, amt := range []int64{10, 100, 1000, 10000, 100000} {
		out := CalculateV2Output(decimal.NewFromInt(amt), reserveIn, reserveOut, 30)
		assert.True(t, out.GreaterThanOrEqual(prev))
		assert.True(t, out.LessThan(reserveOut))
		prev = out
	}
}

func TestOptimalV2ArbitrageScenario(t *testing.T) {
	// spec §8 scenario 5: pools (1_000_000 USDC / 400 ETH, 30bps) and
	// (390 ETH / 1_000_000 USDC, 30bps) => optimal input > 0 and <
	// 100_000 USDC; executing the two swaps yields positive gross profit.
	poolA := V2Pool{ReserveIn: decimal.NewFromInt(1_000_000), ReserveOut: decimal.NewFromInt(400), FeeBps: 30}
	poolB := V2Pool{ReserveIn: decimal.NewFromInt(390), ReserveOut: decimal.NewFromInt(1_000_000), FeeBps: 30}

	optimal, err := CalculateOptimalV2Arbitrage(poolA, poolB)
	require.NoError(t, err)

	assert.True(t, optimal.GreaterThan(decimal.Zero))
	assert.True(t, optimal.LessThan(decimal.NewFromInt(100_000)))

	ethOut := CalculateV2Output(optimal, poolA.ReserveIn, poolA.ReserveOut, poolA.FeeBps)
	usdcBack := CalculateV2Output(ethOut, poolB.ReserveIn, poolB.ReserveOut, poolB.FeeBps)
	assert.True(t, usdcBack.GreaterThan(optimal), "expected gross profit: back=%s in=%s", usdcBack, optimal)
}

func TestDecimalSqrtConverges(t *testing.T) {
	got, err := DecimalSqrt(decimal.NewFromInt(144))
	require.NoError(t, err)
	assert.True(t, got.Sub(decimal.NewFromInt(12)).Abs().LessThan(decimal.RequireFromString("0.001")))
}

func TestV3SwapWithinTick(t *testing.T) {
	pool := V3Pool{
		SqrtPriceX96: uint256.NewInt(0).Lsh(uint256.NewInt(1), 96), // price ratio 1.0
		Liquidity:    uint256.NewInt(1_000_000_000),
		CurrentTick:  0,
		FeePips:      3000,
	}

	res, err := SwapWithinTick(pool, decimal.NewFromInt(1000), false, decimal.RequireFromString("1e38"))
	require.NoError(t, err)
	assert.True(t, res.AmountOut.GreaterThan(decimal.Zero))
}

func TestCalculateOptimalV3ArbitrageNoOpportunityWhenPricesEqual(t *testing.T) {
	sqrtP := uint256.NewInt(0).Lsh(uint256.NewInt(1), 96)
	pool := V3Pool{SqrtPriceX96: sqrtP, Liquidity: uint256.NewInt(1_000_000), CurrentTick: 0, FeePips: 3000}

	optimal, err := CalculateOptimalV3Arbitrage(pool, pool, decimal.NewFromInt(1))
	require.NoError(t, err)
	assert.True(t, optimal.IsZero())
}

func TestSimulateMultiHopRejectsOnExcessiveSlippage(t *testing.T) {
	hops := []Hop{
		{Kind: HopV2, V2: V2Pool{ReserveIn: decimal.NewFromInt(1000), ReserveOut: decimal.NewFromInt(10), FeeBps: 30}},
	}
	params := MultiHopParams{MaxSlippageBps: 1, PerHopSlippageCap: 1, GasSafetyFactor: defaultGasSafetyFactor}

	result, err := SimulateMultiHop(decimal.NewFromInt(500), hops, params)
	require.NoError(t, err)
	assert.True(t, result.Rejected)
}

func TestMixedArbitrageV2ToV3Runs(t *testing.T) {
	v2Pool := V2Pool{ReserveIn: decimal.NewFromInt(1_000_000), ReserveOut: decimal.NewFromInt(400), FeeBps: 30}
	v3Pool := V3Pool{
		SqrtPriceX96: uint256.NewInt(0).Lsh(uint256.NewInt(1), 96),
		Liquidity:    uint256.NewInt(1_000_000_000),
		CurrentTick:  0,
		FeePips:      3000,
	}

	result, err := MixedArbitrage(true, v2Pool, v3Pool, decimal.NewFromInt(1))
	require.NoError(t, err)
	if !result.Rejected {
		assert.True(t, result.AmountOut.GreaterThanOrEqual(decimal.Zero))
	}
}
