// Package amm implements the AMM math kernel (C7): V2 constant-product
// math and closed-form optimal arbitrage, V3 single-tick swap math and
// in-tick optimal arbitrage, multi-hop cumulative slippage, and mixed
// V2<->V3 cross-protocol arbitrage. Every computation is on
// shopspring/decimal; no floating point appears anywhere in this
// package, per spec §4.7's explicit non-goal.
package amm

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	zero = decimal.Zero
	one  = decimal.NewFromInt(1)
	ten  = decimal.NewFromInt(10000)
)

// V2Pool is a constant-product pool's reserves and fee tier.
type V2Pool struct {
	ReserveIn  decimal.Decimal
	ReserveOut decimal.Decimal
	FeeBps     int64
}

func feeMultiplier(feeBps int64) decimal.Decimal {
	return decimal.NewFromInt(10000 - feeBps).Div(ten)
}

// CalculateV2Output computes constant-product swap output per spec
// §4.7: out = (in*(10000-fee_bps)*reserve_out) / (reserve_in*10000 +
// in*(10000-fee_bps)). Returns zero for non-positive input or any
// zero/negative reserve.
func CalculateV2Output(amountIn, reserveIn, reserveOut decimal.Decimal, feeBps int64) decimal.Decimal {
	if amountIn.Sign() <= 0 || reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return zero
	}

	amountInAfterFee := amountIn.Mul(feeMultiplier(feeBps))
	numerator := amountInAfterFee.Mul(reserveOut)
	denominator := reserveIn.Add(amountInAfterFee)
	if denominator.Sign() <= 0 {
		return zero
	}
	return numerator.Div(denominator)
}

// maxArbFractionOfReserve caps the optimal amount at 10% of the smaller
// engaged reserve, per spec §4.7.
var maxArbFractionOfReserve = decimal.RequireFromString("0.1")

// newtonSqrtTolerance is the fixed-point convergence tolerance, expressed
// as a fraction of the operand, per spec §4.7 ("<=1e-6 of operand").
var newtonSqrtTolerance = decimal.RequireFromString("0.000001")

const maxNewtonIterations = 64

// DecimalSqrt computes sqrt(value) via Newton's method to within
// 1e-6 of value, with no floating point involved.
func DecimalSqrt(value decimal.Decimal) (decimal.Decimal, error) {
	if value.Sign() < 0 {
		return zero, fmt.Errorf("amm: sqrt of negative value %s", value)
	}
	if value.IsZero() {
		return zero, nil
	}

	tolerance := value.Mul(newtonSqrtTolerance).Abs()
	if tolerance.IsZero() {
		tolerance = newtonSqrtTolerance
	}

	x := value.Div(decimal.NewFromInt(2))
	if x.IsZero() {
		x = one
	}

	for i := 0; i < maxNewtonIterations; i++ {
		next := x.Add(value.Div(x)).Div(decimal.NewFromInt(2))
		if next.Sub(x).Abs().LessThan(tolerance) {
			return next, nil
		}
		x = next
	}
	return x, nil
}

// CalculateOptimalV2Arbitrage finds the closed-form optimal input amount
// for buying on pool A and selling on pool B (the input that maximizes
// CalculateV2Output through B of CalculateV2Output through A, minus the
// input):
//
//	x* = (sqrt(rA_in*rA_out*rB_in*rB_out*fA*fB) - rA_in*rB_in) / (fA*(rB_in + fB*rA_out))
//
// clamped to 10% of the smaller engaged reserve. Returns zero when no
// profitable arbitrage exists.
func CalculateOptimalV2Arbitrage(a, b V2Pool) (decimal.Decimal, error) {
	fA := feeMultiplier(a.FeeBps)
	fB := feeMultiplier(b.FeeBps)

	inProduct := a.ReserveIn.Mul(b.ReserveIn)
	if inProduct.Sign() <= 0 {
		return zero, nil
	}

	// sqrt(rA_in*rA_out*rB_in*rB_out*fA*fB) = rA_in*rB_in*sqrt(k); taking the
	// root of the dimensionless k keeps DecimalSqrt's relative tolerance
	// small against the result.
	k := fA.Mul(fB).Mul(a.ReserveOut).Mul(b.ReserveOut).Div(inProduct)
	if k.Sign() <= 0 {
		return zero, nil
	}
	sqrtK, err := DecimalSqrt(k)
	if err != nil {
		return zero, err
	}

	optimal := inProduct.Mul(sqrtK.Sub(one)).Div(fA.Mul(b.ReserveIn.Add(fB.Mul(a.ReserveOut))))
	if optimal.Sign() <= 0 {
		return zero, nil
	}

	maxAmount := decimal.Min(a.ReserveIn, b.ReserveOut).Mul(maxArbFractionOfReserve)
	return decimal.Min(optimal, maxAmount), nil
}
