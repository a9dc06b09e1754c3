package amm

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// q96 is 2^96, the fixed-point scale V3 prices are carried in.
var q96 = decimal.RequireFromString("79228162514264337593543950336")

// tickSpacingDefault matches the 0.3% fee tier, the tier this kernel's
// in-tick math assumes when computing the next tick boundary.
const tickSpacingDefault = 60

// V3Pool is a concentrated-liquidity pool's tick-local state.
// SqrtPriceX96 and Liquidity are carried as wide unsigned integers
// (uint160/uint128 on the wire) since their magnitudes exceed what a
// signed 64-bit type can hold; both are converted to decimal.Decimal at
// the kernel boundary, never earlier.
type V3Pool struct {
	SqrtPriceX96 *uint256.Int
	Liquidity    *uint256.Int
	CurrentTick  int32
	FeePips      int64
}

func (p V3Pool) sqrtPriceDecimal() decimal.Decimal {
	return decimal.NewFromBigInt(p.SqrtPriceX96.ToBig(), 0)
}

func (p V3Pool) liquidityDecimal() decimal.Decimal {
	return decimal.NewFromBigInt(p.Liquidity.ToBig(), 0)
}

// sqrtPriceToPrice converts a Q96 sqrt price to the plain price ratio.
func sqrtPriceToPrice(sqrtPriceX96 decimal.Decimal) decimal.Decimal {
	sqrtPrice := sqrtPriceX96.Div(q96)
	return sqrtPrice.Mul(sqrtPrice)
}

// tickToSqrtPriceRatio approximates 1.0001^(tick/2) the way the
// reference scanner does for single-tick bounds: exact at tick 0,
// linearized for nonzero ticks since this kernel never crosses more
// than one tick boundary away from current.
func tickToSqrtPriceRatio(tick int32) decimal.Decimal {
	if tick == 0 {
		return one
	}
	step := decimal.RequireFromString("0.00005")
	delta := decimal.NewFromInt(int64(tick)).Mul(step)
	if tick > 0 {
		return one.Add(delta)
	}
	return one.Sub(delta.Abs())
}

// V3SwapResult is the outcome of an in-tick swap.
type V3SwapResult struct {
	NewSqrtPriceX96 decimal.Decimal
	AmountOut       decimal.Decimal
	PriceImpact     decimal.Decimal
}

// SwapWithinTick computes the output of a trade that stays within the
// pool's current tick, per spec §4.7: given sqrt_price_x96, liquidity,
// fee_pips, input amount and direction, returns the new sqrt_price and
// output amount, enforcing a caller-supplied sqrtPriceLimit that
// prevents crossing tick boundaries.
func SwapWithinTick(pool V3Pool, amountIn decimal.Decimal, zeroForOne bool, sqrtPriceLimit decimal.Decimal) (V3SwapResult, error) {
	if amountIn.Sign() <= 0 {
		return V3SwapResult{}, fmt.Errorf("amm: non-positive input amount %s", amountIn)
	}
	if pool.Liquidity.IsZero() {
		return V3SwapResult{}, fmt.Errorf("amm: zero liquidity")
	}

	l := pool.liquidityDecimal()
	sqrtPrice := pool.sqrtPriceDecimal()
	feeMult := decimal.NewFromInt(1_000_000 - pool.FeePips).Div(decimal.NewFromInt(1_000_000))
	amountInAfterFee := amountIn.Mul(feeMult)

	var newSqrtPrice decimal.Decimal
	if zeroForOne {
		// price decreases: 1/sqrtP' = 1/sqrtP + amountIn/L
		invSqrtPrice := q96.Div(sqrtPrice)
		newInv := invSqrtPrice.Add(amountInAfterFee.Div(l))
		newSqrtPrice = q96.Div(newInv)
		if newSqrtPrice.LessThan(sqrtPriceLimit) {
			newSqrtPrice = sqrtPriceLimit
		}
	} else {
		// price increases: sqrtP' = sqrtP + amountIn/L * Q96
		newSqrtPrice = sqrtPrice.Add(amountInAfterFee.Mul(q96).Div(l))
		if newSqrtPrice.GreaterThan(sqrtPriceLimit) && sqrtPriceLimit.Sign() > 0 {
			newSqrtPrice = sqrtPriceLimit
		}
	}

	// amountOut = L * |sqrtP' - sqrtP| / Q96 (token1-denominated approximation
	// consistent with the reserve-free concentrated-liquidity model).
	amountOut := l.Mul(newSqrtPrice.Sub(sqrtPrice).Abs()).Div(q96)

	oldPrice := sqrtPriceToPrice(sqrtPrice)
	newPrice := sqrtPriceToPrice(newSqrtPrice)
	var impact decimal.Decimal
	if oldPrice.Sign() != 0 {
		impact = newPrice.Sub(oldPrice).Abs().Div(oldPrice)
	}

	return V3SwapResult{
		NewSqrtPriceX96: newSqrtPrice,
		AmountOut:       amountOut,
		PriceImpact:     impact,
	}, nil
}

// MaxAmountInTick bounds how much can be traded before the pool would
// cross into the next tick, per spec §4.7.
func MaxAmountInTick(pool V3Pool) decimal.Decimal {
	nextTick := ((pool.CurrentTick / tickSpacingDefault) + 1) * tickSpacingDefault
	sqrtPriceNext := tickToSqrtPriceRatio(nextTick).Mul(q96)
	l := pool.liquidityDecimal()
	sqrtPrice := pool.sqrtPriceDecimal()
	if sqrtPrice.IsZero() {
		return zero
	}
	return l.Mul(sqrtPriceNext.Sub(sqrtPrice)).Div(sqrtPrice).Abs()
}

// CalculateOptimalV3Arbitrage finds the closed-form optimal input for an
// in-tick arbitrage between two V3 pools, per spec §4.7:
//
//	x* = L_eff * (sqrt(pB/pA) - 1), L_eff = min(L_A, L_B)
//
// profitable only if x*·sqrt(pB/pA) - x* > gasCostUsd.
func CalculateOptimalV3Arbitrage(a, b V3Pool, gasCostUSD decimal.Decimal) (decimal.Decimal, error) {
	priceA := sqrtPriceToPrice(a.sqrtPriceDecimal())
	priceB := sqrtPriceToPrice(b.sqrtPriceDecimal())
	if priceB.LessThanOrEqual(priceA) {
		return zero, nil
	}

	lEff := decimal.Min(a.liquidityDecimal(), b.liquidityDecimal())
	priceRatio := priceB.Div(priceA)
	if priceRatio.LessThanOrEqual(one) {
		return zero, nil
	}

	sqrtRatio, err := DecimalSqrt(priceRatio)
	if err != nil {
		return zero, err
	}

	optimal := lEff.Mul(sqrtRatio.Sub(one))
	if optimal.Sign() <= 0 {
		return zero, nil
	}

	grossProfit := optimal.Mul(sqrtRatio).Sub(optimal)
	netProfit := grossProfit.Sub(gasCostUSD)
	if netProfit.Sign() <= 0 {
		return zero, nil
	}

	maxInTick := MaxAmountInTick(a)
	return decimal.Min(optimal, maxInTick), nil
}
