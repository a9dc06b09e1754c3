package arbitrage

import (
	"fmt"
	"sync"
	"time"

	"github.com/flowrelay/marketdata/internal/amm"
	"github.com/flowrelay/marketdata/internal/types"
	"github.com/shopspring/decimal"
)

// StrategyTag names which protocol pairing an opportunity crosses, per
// spec §4.8.
type StrategyTag string

const (
	StrategyV2V2 StrategyTag = "V2<->V2"
	StrategyV3V3 StrategyTag = "V3<->V3"
	StrategyV2V3 StrategyTag = "V2<->V3"
	StrategyV3V2 StrategyTag = "V3<->V2"
)

// PoolKind distinguishes which AMM family a pool belongs to.
type PoolKind int

const (
	PoolKindV2 PoolKind = iota
	PoolKindV3
)

// Pool is the detector's view of a single pool's state, keyed by its
// bijective PoolInstrumentId.
type Pool struct {
	ID     types.PoolInstrumentId
	Kind   PoolKind
	Tokens [2]types.InstrumentId // base (the token priced and used as TokenIn), then quote
	V2     amm.V2Pool
	V3     amm.V3Pool
}

// ArbitrageOpportunity is the emitted record for a profitable candidate,
// per spec §4.8.
type ArbitrageOpportunity struct {
	OpportunityID      uint64
	PoolA, PoolB       types.PoolInstrumentId
	TokenIn, TokenOut  types.InstrumentId
	OptimalAmount      decimal.Decimal
	ExpectedProfitUSD  decimal.Decimal
	TotalSlippageBps   decimal.Decimal
	GasCostUSD         decimal.Decimal
	TimestampNs        int64
	Strategy           StrategyTag
}

// PoolStore gives the detector access to every known pool, for
// enumerating candidates that share exactly two tokens with an updated
// pool.
type PoolStore interface {
	AllPools() []Pool
	Pool(id types.PoolInstrumentId) (Pool, bool)
}

// Detector implements spec §4.8's algorithm.
type Detector struct {
	store  PoolStore
	prices PriceSource
	params amm.MultiHopParams

	mu      sync.Mutex
	nextID  uint64
}

func NewDetector(store PoolStore, prices PriceSource, params amm.MultiHopParams) *Detector {
	return &Detector{store: store, prices: prices, params: params}
}

func (d *Detector) allocateID() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	return d.nextID
}

// OnPoolUpdate runs the full candidate search against a single updated
// pool, per spec §4.8 steps 1-3.
func (d *Detector) OnPoolUpdate(updated Pool) ([]ArbitrageOpportunity, []error) {
	var opportunities []ArbitrageOpportunity
	var errs []error

	for _, candidate := range d.store.AllPools() {
		if candidate.ID.FastEquals(updated.ID) {
			continue
		}
		if !updated.ID.SharesTokensWith(candidate.ID) {
			continue
		}
		shared := updated.ID.SharedTokens(candidate.ID)
		if len(shared) != 2 {
			errs = append(errs, fmt.Errorf("%w: pool %v and %v", ErrInvalidPoolPair, updated.ID, candidate.ID))
			continue
		}

		for _, dir := range []bool{true, false} {
			opp, err := d.evaluateDirection(updated, candidate, dir)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if opp != nil {
				opportunities = append(opportunities, *opp)
			}
		}
	}

	return opportunities, errs
}

func (d *Detector) evaluateDirection(a, b Pool, aToB bool) (*ArbitrageOpportunity, error) {
	buyPool, sellPool := a, b
	if !aToB {
		buyPool, sellPool = b, a
	}

	baseToken := buyPool.Tokens[0]
	if _, ok := d.prices.LatestPriceUSD(baseToken); !ok {
		return nil, fmt.Errorf("%w: token %v", ErrTokenPriceUnavailable, baseToken)
	}

	if buyPool.Kind == PoolKindV2 && buyPool.V2.ReserveIn.IsZero() {
		return nil, fmt.Errorf("%w: pool %v", ErrZeroLiquidity, buyPool.ID)
	}
	if buyPool.Kind == PoolKindV3 && buyPool.V3.Liquidity.IsZero() {
		return nil, fmt.Errorf("%w: pool %v", ErrZeroLiquidity, buyPool.ID)
	}
	if sellPool.Kind == PoolKindV2 && sellPool.V2.ReserveOut.IsZero() {
		return nil, fmt.Errorf("%w: pool %v", ErrZeroLiquidity, sellPool.ID)
	}
	if sellPool.Kind == PoolKindV3 && sellPool.V3.Liquidity.IsZero() {
		return nil, fmt.Errorf("%w: pool %v", ErrZeroLiquidity, sellPool.ID)
	}

	var (
		optimal      decimal.Decimal
		err          error
		gas          = decimal.RequireFromString("2")
		tag          StrategyTag
		profitBase   decimal.Decimal // in baseToken units, before USD conversion
		slippageBps  decimal.Decimal
		gasCostUSD   = gas
	)

	switch {
	case buyPool.Kind == PoolKindV2 && sellPool.Kind == PoolKindV2:
		tag = StrategyV2V2
		optimal, err = amm.CalculateOptimalV2Arbitrage(buyPool.V2, sellPool.V2)
		if err == nil && optimal.Sign() > 0 {
			leg1Out := amm.CalculateV2Output(optimal, buyPool.V2.ReserveIn, buyPool.V2.ReserveOut, buyPool.V2.FeeBps)
			leg2Out := amm.CalculateV2Output(leg1Out, sellPool.V2.ReserveOut, sellPool.V2.ReserveIn, sellPool.V2.FeeBps)
			profitBase = leg2Out.Sub(optimal)
			slippageBps = roundTripSlippageBps(optimal, leg1Out, buyPool.V2, leg1Out, leg2Out, sellPool.V2)
		}
	case buyPool.Kind == PoolKindV3 && sellPool.Kind == PoolKindV3:
		tag = StrategyV3V3
		optimal, err = amm.CalculateOptimalV3Arbitrage(buyPool.V3, sellPool.V3, gas)
		if err == nil && optimal.Sign() > 0 {
			hops := []amm.Hop{
				{Kind: amm.HopV3, V3: buyPool.V3, ZeroForOne: true},
				{Kind: amm.HopV3, V3: sellPool.V3, ZeroForOne: false},
			}
			var result amm.MultiHopResult
			result, err = amm.SimulateMultiHop(optimal, hops, d.params)
			if err == nil {
				if result.Rejected {
					return nil, nil
				}
				profitBase = result.AmountOut.Sub(result.AmountIn)
				slippageBps = result.CumulativeSlippage
				gasCostUSD = result.GasCostUSD
			}
		}
	case buyPool.Kind == PoolKindV2 && sellPool.Kind == PoolKindV3:
		tag = StrategyV2V3
		var result amm.MultiHopResult
		result, err = amm.MixedArbitrage(true, buyPool.V2, sellPool.V3, gas)
		if err == nil {
			if result.Rejected {
				return nil, nil
			}
			optimal = result.AmountIn
			profitBase = result.AmountOut.Sub(result.AmountIn)
			slippageBps = result.CumulativeSlippage
			gasCostUSD = result.GasCostUSD
		}
	default: // V3 -> V2
		tag = StrategyV3V2
		var result amm.MultiHopResult
		result, err = amm.MixedArbitrage(false, sellPool.V2, buyPool.V3, gas)
		if err == nil {
			if result.Rejected {
				return nil, nil
			}
			optimal = result.AmountIn
			profitBase = result.AmountOut.Sub(result.AmountIn)
			slippageBps = result.CumulativeSlippage
			gasCostUSD = result.GasCostUSD
		}
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAmmCalculationFailed, err)
	}
	if optimal.Sign() <= 0 {
		return nil, nil // not profitable; not an error, just no opportunity
	}

	price, _ := d.prices.LatestPriceUSD(baseToken) // presence already confirmed above
	expectedProfitUSD := profitBase.Mul(price).Sub(gasCostUSD)
	if expectedProfitUSD.Sign() <= 0 {
		return nil, nil // gross profit does not clear gas cost; no opportunity
	}

	now := time.Now()
	if now.IsZero() {
		return nil, ErrOpportunityGenerationFailed
	}

	return &ArbitrageOpportunity{
		OpportunityID:     d.allocateID(),
		PoolA:             buyPool.ID,
		PoolB:             sellPool.ID,
		TokenIn:           baseToken,
		TokenOut:          buyPool.Tokens[1],
		OptimalAmount:     optimal,
		ExpectedProfitUSD: expectedProfitUSD,
		TotalSlippageBps:  slippageBps,
		GasCostUSD:        gasCostUSD,
		TimestampNs:       now.UnixNano(),
		Strategy:          tag,
	}, nil
}

// roundTripSlippageBps computes the cumulative price-impact of a
// buy-then-sell V2 round trip the same way amm.SimulateMultiHop does for
// a two-hop path: per-leg impact against that leg's own spot price, then
// combined multiplicatively rather than summed.
func roundTripSlippageBps(leg1In, leg1Out decimal.Decimal, buyPool amm.V2Pool, leg2In, leg2Out decimal.Decimal, sellPool amm.V2Pool) decimal.Decimal {
	one := decimal.NewFromInt(1)
	bps := decimal.NewFromInt(10000)

	var impact1, impact2 decimal.Decimal
	if spot := buyPool.ReserveOut.Div(buyPool.ReserveIn); spot.Sign() != 0 {
		impact1 = spot.Sub(leg1Out.Div(leg1In)).Div(spot).Abs()
	}
	if spot := sellPool.ReserveIn.Div(sellPool.ReserveOut); spot.Sign() != 0 {
		impact2 = spot.Sub(leg2Out.Div(leg2In)).Div(spot).Abs()
	}

	cumulative := one.Sub(impact1).Mul(one.Sub(impact2))
	return one.Sub(cumulative).Mul(bps)
}
