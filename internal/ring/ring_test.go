package ring

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOverwriteUnreadBackpressureScenario(t *testing.T) {
	// spec §8 scenario 7: capacity 4, overwrite_unread, publish 6 records
	// with the consumer reading none; consumer should observe the last 4
	// and a dropped-count of 2.
	r, err := New(KindTrade, 4, OverwriteUnread)
	require.NoError(t, err)

	id := r.Subscribe()
	for i := uint64(0); i < 6; i++ {
		require.NoError(t, r.PublishTrade(TradeRecord{Sequence: i}))
	}

	slots, err := r.ReadAvailable(id)
	require.NoError(t, err)
	require.Len(t, slots, 4)

	var seqs []uint64
	for _, s := range slots {
		seqs = append(seqs, DecodeTrade(s).Sequence)
	}
	assert.Equal(t, []uint64{2, 3, 4, 5}, seqs)
	assert.Equal(t, int64(2), r.Dropped())
}

func TestPerConsumerCursorsAreIndependent(t *testing.T) {
	r, err := New(KindTrade, 8, OverwriteUnread)
	require.NoError(t, err)

	slow := r.Subscribe()
	fast := r.Subscribe()

	for i := uint64(0); i < 3; i++ {
		require.NoError(t, r.PublishTrade(TradeRecord{Sequence: i}))
	}

	fastSlots, err := r.ReadAvailable(fast)
	require.NoError(t, err)
	require.Len(t, fastSlots, 3)
	require.NoError(t, r.Release(fast, len(fastSlots)))

	// slow consumer hasn't released yet, and must still see all 3
	slowSlots, err := r.ReadAvailable(slow)
	require.NoError(t, err)
	assert.Len(t, slowSlots, 3)
}

func TestNewRejectsNonPowerOfTwo(t *testing.T) {
	_, err := New(KindTrade, 3, OverwriteUnread)
	assert.ErrorIs(t, err, ErrNotPowerOfTwo)
}

func TestSemaphoreTierWakesOnNotify(t *testing.T) {
	tier := NewSemaphoreTier(1)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- tier.Wait(ctx) }()

	tier.Notify()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("tier did not wake on notify")
	}
}

func TestOrderBookDeltaRoundTrip(t *testing.T) {
	r, err := New(KindOrderBookDelta, 4, Backpressure)
	require.NoError(t, err)
	id := r.Subscribe()

	rec := OrderBookDeltaRecord{
		InstrumentHint: 42,
		PrevVersion:    1,
		Version:        2,
		BidCount:       1,
	}
	rec.BidChanges[0] = PriceLevelChange{PriceUSD: 10000000000, NewVolume: 300000000}

	require.NoError(t, r.PublishDelta(rec))
	slots, err := r.ReadAvailable(id)
	require.NoError(t, err)
	require.Len(t, slots, 1)

	got := DecodeDelta(slots[0])
	assert.Equal(t, rec.InstrumentHint, got.InstrumentHint)
	assert.Equal(t, rec.Version, got.Version)
	assert.Equal(t, rec.BidChanges[0], got.BidChanges[0])
}
