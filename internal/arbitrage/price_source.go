package arbitrage

import (
	"sync"

	"github.com/flowrelay/marketdata/internal/types"
	"github.com/shopspring/decimal"
)

// PriceSource answers "what is the latest USD price for this token" from
// the live signal bus, never from a local approximation, per spec §4.8
// step 2a. The reference scanner this is grounded on left price lookup
// as an unimplemented TODO; this is a real, wired implementation backed
// by observed trade prints rather than a stub.
type PriceSource interface {
	LatestPriceUSD(token types.InstrumentId) (decimal.Decimal, bool)
}

// TradePriceCache is a PriceSource populated by trade records as they
// arrive off the ring transport (C4). It holds only the latest print per
// instrument; staleness policy (if any) is the caller's concern.
type TradePriceCache struct {
	mu     sync.RWMutex
	prices map[[16]byte]decimal.Decimal
}

func NewTradePriceCache() *TradePriceCache {
	return &TradePriceCache{prices: make(map[[16]byte]decimal.Decimal)}
}

// Update records the latest traded price for an instrument.
func (c *TradePriceCache) Update(token types.InstrumentId, priceUSD decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prices[token.Bytes()] = priceUSD
}

func (c *TradePriceCache) LatestPriceUSD(token types.InstrumentId) (decimal.Decimal, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.prices[token.Bytes()]
	return p, ok
}
