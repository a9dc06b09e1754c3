package gasmetrics

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnomalyDetectionScenario(t *testing.T) {
	// spec §8 scenario 8: after 50 samples uniformly near 100_000, a
	// sample of 500_000 is flagged Critical by the percentile method.
	tr := NewTracker(DefaultWindowSize)
	rng := rand.New(rand.NewSource(1))

	var last *Anomaly
	for i := 0; i < 50; i++ {
		v := 100_000 + float64(rng.Intn(2000)-1000)
		last = tr.Insert("swap", v)
		assert.Nil(t, last)
	}

	anomaly := tr.Insert("swap", 500_000)
	require.NotNil(t, anomaly)
	assert.Equal(t, MethodPercentile, anomaly.Method)
	assert.Equal(t, SeverityCritical, anomaly.Severity)
}

func TestPercentileOrderingInvariant(t *testing.T) {
	tr := NewTracker(DefaultWindowSize)
	rng := rand.New(rand.NewSource(2))
	for i := 0; i < 200; i++ {
		tr.Insert("scenario", rng.Float64()*1000)
	}
	stats := tr.Statistics("scenario")
	assert.LessOrEqual(t, stats.P50, stats.P90)
	assert.LessOrEqual(t, stats.P90, stats.P95)
	assert.LessOrEqual(t, stats.P95, stats.P99)
}

func TestNoAnomalyBelowMinimumSamples(t *testing.T) {
	tr := NewTracker(DefaultWindowSize)
	for i := 0; i < 5; i++ {
		assert.Nil(t, tr.Insert("scenario", 100))
	}
	assert.Nil(t, tr.Insert("scenario", 1_000_000))
}

func TestTrendDetectsIncreasing(t *testing.T) {
	tr := NewTracker(DefaultWindowSize)
	for i := 0; i < 20; i++ {
		tr.Insert("scenario", float64(i)*10)
	}
	trend := tr.Trend("scenario")
	assert.Equal(t, TrendIncreasing, trend.Direction)
}

func TestTrendDetectsStableWhenFlat(t *testing.T) {
	tr := NewTracker(DefaultWindowSize)
	for i := 0; i < 20; i++ {
		tr.Insert("scenario", 100)
	}
	trend := tr.Trend("scenario")
	assert.Equal(t, TrendStable, trend.Direction)
}
