package amm

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// HopKind distinguishes which math a multi-hop leg uses.
type HopKind int

const (
	HopV2 HopKind = iota
	HopV3
)

// Hop is a single leg of a multi-hop path.
type Hop struct {
	Kind HopKind
	V2   V2Pool
	V3   V3Pool
	// ZeroForOne only applies to V3 hops; direction for V2 hops is
	// implicit in ReserveIn/ReserveOut.
	ZeroForOne bool
}

// v3GasSurchargeUSD is the fixed per-hop overhead V3 hops add to the gas
// estimate, per spec §4.7 ("V3 adds a fixed overhead per V3 hop").
var v3GasSurchargeUSD = decimal.RequireFromString("1.5")

// defaultGasSafetyFactor is spec §4.7's default multiplier on the raw gas
// estimate.
var defaultGasSafetyFactor = decimal.RequireFromString("1.3")

// MultiHopResult summarizes a simulated path.
type MultiHopResult struct {
	AmountIn             decimal.Decimal
	AmountOut            decimal.Decimal
	CumulativeSlippage   decimal.Decimal // (1 - product of (1 - impact_i)) in bps
	PerHopImpact         []decimal.Decimal
	GasCostUSD           decimal.Decimal
	Rejected             bool
	RejectReason         string
}

// MultiHopParams bounds a path evaluation, per spec §4.7.
type MultiHopParams struct {
	MaxSlippageBps     int64
	PerHopSlippageCap  int64 // bps
	BaseGasUSD         decimal.Decimal
	PerHopGasUSD       decimal.Decimal
	GasSafetyFactor    decimal.Decimal
}

// SimulateMultiHop applies V2 or V3 math hop by hop, accumulating
// multiplicative slippage and rejecting paths that exceed the caller's
// cumulative or per-hop caps.
func SimulateMultiHop(amountIn decimal.Decimal, hops []Hop, params MultiHopParams) (MultiHopResult, error) {
	if len(hops) == 0 {
		return MultiHopResult{}, fmt.Errorf("amm: empty hop path")
	}

	cumulative := one
	impacts := make([]decimal.Decimal, 0, len(hops))
	current := amountIn
	v3HopCount := 0

	for i, hop := range hops {
		var out decimal.Decimal
		var impact decimal.Decimal

		switch hop.Kind {
		case HopV2:
			out = CalculateV2Output(current, hop.V2.ReserveIn, hop.V2.ReserveOut, hop.V2.FeeBps)
			if out.Sign() <= 0 {
				return MultiHopResult{Rejected: true, RejectReason: "zero output"}, nil
			}
			spotPrice := hop.V2.ReserveOut.Div(hop.V2.ReserveIn)
			effectivePrice := out.Div(current)
			if spotPrice.Sign() != 0 {
				impact = spotPrice.Sub(effectivePrice).Div(spotPrice).Abs()
			}

		case HopV3:
			v3HopCount++
			limit := zero
			if !hop.ZeroForOne {
				limit = decimal.RequireFromString("1e38") // effectively unbounded unless caller narrows it
			}
			res, err := SwapWithinTick(hop.V3, current, hop.ZeroForOne, limit)
			if err != nil {
				return MultiHopResult{}, fmt.Errorf("amm: hop %d: %w", i, err)
			}
			out = res.AmountOut
			impact = res.PriceImpact

		default:
			return MultiHopResult{}, fmt.Errorf("amm: unknown hop kind %d", hop.Kind)
		}

		if impact.Mul(decimal.NewFromInt(10000)).GreaterThan(decimal.NewFromInt(params.PerHopSlippageCap)) {
			return MultiHopResult{Rejected: true, RejectReason: fmt.Sprintf("hop %d exceeds per-hop slippage cap", i)}, nil
		}

		impacts = append(impacts, impact)
		cumulative = cumulative.Mul(one.Sub(impact))
		current = out
	}

	cumulativeSlippageBps := one.Sub(cumulative).Mul(decimal.NewFromInt(10000))
	if cumulativeSlippageBps.GreaterThan(decimal.NewFromInt(params.MaxSlippageBps)) {
		return MultiHopResult{Rejected: true, RejectReason: "cumulative slippage exceeds cap"}, nil
	}

	gasCost := params.BaseGasUSD.Add(params.PerHopGasUSD.Mul(decimal.NewFromInt(int64(len(hops)))))
	gasCost = gasCost.Add(v3GasSurchargeUSD.Mul(decimal.NewFromInt(int64(v3HopCount))))
	safety := params.GasSafetyFactor
	if safety.IsZero() {
		safety = defaultGasSafetyFactor
	}
	gasCost = gasCost.Mul(safety)

	return MultiHopResult{
		AmountIn:           amountIn,
		AmountOut:          current,
		CumulativeSlippage: cumulativeSlippageBps,
		PerHopImpact:       impacts,
		GasCostUSD:         gasCost,
	}, nil
}

// MixedArbitrage computes the optimal input and expected output for a
// single-hop V2<->V3 or V3<->V2 cross-protocol arbitrage, a case the
// reference scanner left unimplemented. The input size is a fixed
// fraction (maxArbFractionOfReserve) of the buy leg's liquidity: the V2
// pool's ReserveIn when buying on the V2 leg, the V3 pool's liquidity
// when buying on the V3 leg; no closed-form optimizer is run. Both legs
// are then simulated with the exact swap functions to report the
// realized numbers.
func MixedArbitrage(buyV2 bool, v2Pool V2Pool, v3Pool V3Pool, gasCostUSD decimal.Decimal) (MultiHopResult, error) {
	var seed decimal.Decimal
	if buyV2 {
		// size against the V2 leg's own liquidity as a starting point;
		// the real bound comes from simulating both legs below.
		seed = v2Pool.ReserveIn.Mul(maxArbFractionOfReserve)
	} else {
		seed = v3Pool.liquidityDecimal().Mul(maxArbFractionOfReserve)
	}
	if seed.Sign() <= 0 {
		return MultiHopResult{Rejected: true, RejectReason: "no seed liquidity"}, nil
	}

	var hops []Hop
	if buyV2 {
		hops = []Hop{
			{Kind: HopV2, V2: v2Pool},
			{Kind: HopV3, V3: v3Pool, ZeroForOne: false},
		}
	} else {
		hops = []Hop{
			{Kind: HopV3, V3: v3Pool, ZeroForOne: true},
			{Kind: HopV2, V2: v2Pool},
		}
	}

	params := MultiHopParams{
		MaxSlippageBps:    1000,
		PerHopSlippageCap: 500,
		BaseGasUSD:        decimal.RequireFromString("2"),
		PerHopGasUSD:      decimal.RequireFromString("1"),
		GasSafetyFactor:   defaultGasSafetyFactor,
	}
	if !gasCostUSD.IsZero() {
		params.BaseGasUSD = gasCostUSD
		params.PerHopGasUSD = zero
	}

	return SimulateMultiHop(seed, hops, params)
}
