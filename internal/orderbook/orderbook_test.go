package orderbook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeltaApplyScenario(t *testing.T) {
	// spec §8 scenario 6: prior bids [(100,1),(99,2)], new bids
	// [(100,1),(98,3)] => delta removes 99, adds 98 at volume 3, keeps
	// 100; applying delta reconstructs the new book.
	tr := NewTracker(50)

	prevSnap, _, first := tr.ApplyUpdate("BTCUSD", "binance",
		[]Level{{Price: 100, Size: 1}, {Price: 99, Size: 2}},
		nil, 1000)
	require.True(t, first)

	newSnap, delta, first2 := tr.ApplyUpdate("BTCUSD", "binance",
		[]Level{{Price: 100, Size: 1}, {Price: 98, Size: 3}},
		nil, 2000)
	require.False(t, first2)
	require.NotNil(t, delta)

	changesByPrice := make(map[int64]int64)
	for _, c := range delta.BidChanges {
		changesByPrice[c.Price] = c.NewVolume
	}
	assert.Equal(t, int64(0), changesByPrice[99])
	assert.Equal(t, int64(3), changesByPrice[98])
	_, has100Change := changesByPrice[100]
	assert.False(t, has100Change, "unchanged price 100 should not appear in delta")

	reconstructed := Apply(prevSnap, delta)
	assert.Equal(t, newSnap.Bids.Snapshot(), reconstructed.Bids.Snapshot())
}

func TestLevelsMaintainSortOrder(t *testing.T) {
	bids := NewLevels(true, 0)
	bids.Set(100, 1)
	bids.Set(105, 2)
	bids.Set(95, 3)

	got := bids.Snapshot()
	assert.Equal(t, []Level{{105, 2}, {100, 1}, {95, 3}}, got)
}

func TestLevelsRespectDepthCap(t *testing.T) {
	asks := NewLevels(false, 2)
	asks.Set(10, 1)
	asks.Set(20, 1)
	asks.Set(5, 1)

	assert.Len(t, asks.Snapshot(), 2)
	assert.Equal(t, int64(5), asks.Snapshot()[0].Price)
}

func TestZeroSizeRemovesLevel(t *testing.T) {
	l := NewLevels(true, 0)
	l.Set(100, 5)
	l.Set(100, 0)
	_, ok := l.Get(100)
	assert.False(t, ok)
}

func TestFirstSnapshotHasNoDelta(t *testing.T) {
	tr := NewTracker(10)
	_, delta, first := tr.ApplyUpdate("ETHUSD", "coinbase", []Level{{Price: 1, Size: 1}}, nil, 1)
	assert.True(t, first)
	assert.Nil(t, delta)
}
