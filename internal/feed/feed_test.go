package feed

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	dir := t.TempDir()
	r, err := NewRegistry(dir)
	require.NoError(t, err)
	return r
}

func TestRegisterAndDiscoverLiveFeed(t *testing.T) {
	r := newTestRegistry(t)

	ringFile := filepath.Join(t.TempDir(), "trades.ring")
	require.NoError(t, os.WriteFile(ringFile, []byte("x"), 0o644))

	m := Metadata{
		FeedID:        "binance-btcusdt-trades",
		FeedType:      TypeTrades,
		Path:          ringFile,
		Exchange:      "binance",
		Capacity:      1024,
		CreatedAt:     time.Now().Unix(),
		LastHeartbeat: time.Now().Unix(),
		ProducerPID:   os.Getpid(),
	}
	require.NoError(t, r.RegisterFeed(m))

	found, err := r.Discover()
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, m.FeedID, found[0].FeedID)
}

func TestDiscoverPurgesStaleHeartbeat(t *testing.T) {
	r := newTestRegistry(t)

	ringFile := filepath.Join(t.TempDir(), "trades.ring")
	require.NoError(t, os.WriteFile(ringFile, []byte("x"), 0o644))

	m := Metadata{
		FeedID:        "stale-feed",
		FeedType:      TypeTrades,
		Path:          ringFile,
		ProducerPID:   os.Getpid(),
		LastHeartbeat: time.Now().Add(-time.Hour).Unix(),
	}
	require.NoError(t, r.RegisterFeed(m))

	found, err := r.Discover()
	require.NoError(t, err)
	assert.Empty(t, found)

	_, err = os.Stat(filepath.Join(r.dir, m.FeedID+".json"))
	assert.True(t, os.IsNotExist(err))
}

func TestDiscoverPurgesDeadProducer(t *testing.T) {
	r := newTestRegistry(t)
	ringFile := filepath.Join(t.TempDir(), "trades.ring")
	require.NoError(t, os.WriteFile(ringFile, []byte("x"), 0o644))

	m := Metadata{
		FeedID:        "dead-producer-feed",
		FeedType:      TypeTrades,
		Path:          ringFile,
		ProducerPID:   999999, // almost certainly not alive
		LastHeartbeat: time.Now().Unix(),
	}
	require.NoError(t, r.RegisterFeed(m))

	found, err := r.Discover()
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestUpdateHeartbeatRefreshesTimestamp(t *testing.T) {
	r := newTestRegistry(t)
	ringFile := filepath.Join(t.TempDir(), "trades.ring")
	require.NoError(t, os.WriteFile(ringFile, []byte("x"), 0o644))

	m := Metadata{
		FeedID:        "hb-feed",
		FeedType:      TypeTrades,
		Path:          ringFile,
		ProducerPID:   os.Getpid(),
		LastHeartbeat: time.Now().Add(-20 * time.Second).Unix(),
	}
	require.NoError(t, r.RegisterFeed(m))
	require.NoError(t, r.UpdateHeartbeat(m.FeedID))

	got, err := r.GetFeed(m.FeedID)
	require.NoError(t, err)
	assert.InDelta(t, time.Now().Unix(), got.LastHeartbeat, 2)
}

func TestAllocateConsumerIDWrapsAtPlatformMax(t *testing.T) {
	feedID := "wrap-test-feed"
	delete(allocators, feedID)

	seen := make(map[int]bool)
	for i := 0; i < maxConsumerID()*2; i++ {
		seen[AllocateConsumerID(feedID)] = true
	}
	assert.Len(t, seen, maxConsumerID())
}
