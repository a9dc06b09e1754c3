package types

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// USDScale is the fixed-point scale for USD amounts: 8 decimal places.
const USDScale = 8

var usdScaleFactor = decimal.New(1, USDScale)

// USD is a signed, 8-decimal fixed-point USD amount backed by an int64.
// All arithmetic stays in integer space; conversion to/from decimal.Decimal
// is the one explicit, non-hot-path boundary crossing.
type USD int64

// USDFromDecimal converts an arbitrary-precision decimal USD value into
// the fixed-point representation. Returns ErrPrecisionOverflow if the
// scaled value does not fit in an int64 — economic callers must handle
// this, never silently clamp.
func USDFromDecimal(d decimal.Decimal) (USD, error) {
	scaled := d.Mul(usdScaleFactor)
	if !scaled.IsInteger() {
		scaled = scaled.Round(0)
	}
	if !scaled.BigInt().IsInt64() {
		return 0, fmt.Errorf("%w: usd value %s overflows int64 at 1e%d scale", ErrPrecisionOverflow, d.String(), USDScale)
	}
	return USD(scaled.IntPart()), nil
}

// Decimal converts the fixed-point amount back to an arbitrary-precision
// decimal for display or further arithmetic off the economic hot path.
func (u USD) Decimal() decimal.Decimal {
	return decimal.New(int64(u), -USDScale)
}

// ClampedDisplayString renders the amount for a UI/log surface. Unlike
// Decimal, this path is explicitly permitted to saturate rather than
// error — it must never be called from a code path that makes an
// economic decision.
func (u USD) ClampedDisplayString() string {
	return u.Decimal().StringFixed(2)
}

// ErrPrecisionOverflow is returned whenever a conversion between the
// 8-decimal USD domain and a wide token-amount domain cannot be
// represented without loss. It is a sentinel: callers use errors.Is.
var ErrPrecisionOverflow = fmt.Errorf("types: precision overflow")

// TokenAmount is a token quantity expressed in the token's native decimal
// count, backed by an arbitrary-precision unsigned integer (wide enough
// for any ERC-20 supply; the 128-bit minimum the spec requires is a lower
// bound we exceed by using math/big rather than committing to a fixed
// width, since the eventual token decimal count is not known until
// runtime).
type TokenAmount struct {
	Raw      *big.Int // integer amount at Decimals precision
	Decimals uint8
}

// NewTokenAmount constructs a TokenAmount, rejecting negative raw values
// since token balances/amounts are never negative in this domain.
func NewTokenAmount(raw *big.Int, decimals uint8) (TokenAmount, error) {
	if raw.Sign() < 0 {
		return TokenAmount{}, fmt.Errorf("types: token amount must be non-negative, got %s", raw.String())
	}
	return TokenAmount{Raw: new(big.Int).Set(raw), Decimals: decimals}, nil
}

// Decimal converts the wide integer amount into a decimal.Decimal at its
// native precision. This is the explicit conversion boundary called out
// in spec §4.1 — never call it from a hot path.
func (t TokenAmount) Decimal() decimal.Decimal {
	return decimal.NewFromBigInt(t.Raw, -int32(t.Decimals))
}

// ToUSD converts a token amount to the fixed-point USD domain given a
// unit price (USD per whole token). Returns ErrPrecisionOverflow if the
// result does not fit in the USD domain.
func (t TokenAmount) ToUSD(unitPriceUSD decimal.Decimal) (USD, error) {
	usdValue := t.Decimal().Mul(unitPriceUSD)
	return USDFromDecimal(usdValue)
}

// TokenAmountFromDecimal converts a decimal token quantity at the given
// native precision into the wide-integer representation.
func TokenAmountFromDecimal(d decimal.Decimal, decimals uint8) (TokenAmount, error) {
	scaled := d.Shift(int32(decimals))
	if !scaled.IsInteger() {
		scaled = scaled.Round(0)
	}
	raw := scaled.BigInt()
	return NewTokenAmount(raw, decimals)
}
