package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeAccuracyAndRecalibrationFlag(t *testing.T) {
	r := NewReporter()
	r.Record(PredictionRecord{PredictedGasUSD: 10, ActualGasUSD: 11, PredictedSlippageBps: 5, ActualSlippageBps: 6, PredictedProfitUSD: 100, ActualProfitUSD: 95})
	r.Record(PredictionRecord{PredictedGasUSD: 10, ActualGasUSD: 9, PredictedSlippageBps: 5, ActualSlippageBps: 4, PredictedProfitUSD: 100, ActualProfitUSD: 105})

	m := r.Compute()
	assert.InDelta(t, 90, m.GasAccuracy, 1)
	assert.False(t, m.RequiresRecalibration)
}

func TestRequiresRecalibrationWhenAccuracyLow(t *testing.T) {
	r := NewReporter()
	r.Record(PredictionRecord{PredictedGasUSD: 10, ActualGasUSD: 100, PredictedSlippageBps: 1, ActualSlippageBps: 1, PredictedProfitUSD: 10, ActualProfitUSD: 10})

	m := r.Compute()
	assert.True(t, m.RequiresRecalibration)
}

func TestUnderestimationPatternDetectsSystematicBias(t *testing.T) {
	r := NewReporter()
	for i := 0; i < 10; i++ {
		r.Record(PredictionRecord{PredictedGasUSD: 10, ActualGasUSD: 20})
	}
	assert.True(t, r.UnderestimationPattern())
}

func TestEmptyReporterIsNeutral(t *testing.T) {
	r := NewReporter()
	assert.False(t, r.UnderestimationPattern())
	m := r.Compute()
	assert.Equal(t, 100.0, m.GasAccuracy)
}
