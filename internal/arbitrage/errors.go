// Package arbitrage implements the arbitrage detector (C8): pairs pools
// sharing exactly two tokens, evaluates both swap directions via the AMM
// math kernel, and emits profitable opportunities with a monotonic id.
package arbitrage

import "errors"

// DetectorError is the strict failure taxonomy spec §4.8/§7 requires;
// every case is a skip of the single candidate, never a crash of the
// detector loop.
var (
	ErrPoolNotFound             = errors.New("arbitrage: pool not found")
	ErrInvalidPoolPair          = errors.New("arbitrage: pair does not share exactly two tokens")
	ErrTokenPriceUnavailable    = errors.New("arbitrage: token price unavailable")
	ErrPrecisionOverflow        = errors.New("arbitrage: precision overflow")
	ErrZeroLiquidity            = errors.New("arbitrage: zero liquidity")
	ErrAmmCalculationFailed     = errors.New("arbitrage: amm calculation failed")
	ErrOpportunityGenerationFailed = errors.New("arbitrage: opportunity generation failed")
)
