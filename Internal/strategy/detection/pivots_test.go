package detection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fazecat/contractionscout/Internal/types"
)

func pivotPrices(pivots []PivotPoint) []float64 {
	out := make([]float64, len(pivots))
	for i, p := range pivots {
		out[i] = p.Price
	}
	return out
}

func TestExtractPivots_ZigzagThroughRuns(t *testing.T) {
	w, merged := mergedFixture(t, contractingCloses(), 20, 2)

	pivots := ExtractPivots(w, merged)

	require.Len(t, pivots, 6)
	assert.Equal(t, []float64{68, 116, 92, 104, 98, 101}, pivotPrices(pivots))
	wantIdx := []types.BarIndex{1, 4, 8, 12, 15, 21}
	for i, p := range pivots {
		assert.Equal(t, wantIdx[i], p.BarIndex)
		assert.Equal(t, types.BarIndex(21)-wantIdx[i], types.BarIndex(p.Offset))
		assert.Equal(t, w.Bars[wantIdx[i]].Timestamp, p.Time)
	}
	assert.Equal(t, types.BarOffset(0), pivots[len(pivots)-1].Offset)
}

func TestExtractPivots_LastExtremeBeforeCurrentBar(t *testing.T) {
	closes := contractingCloses()
	closes[19] = 102.5
	w, merged := mergedFixture(t, closes, 20, 2)

	pivots := ExtractPivots(w, merged)

	// the last run's high and the closing bar are both pivots
	assert.Equal(t, []float64{68, 116, 92, 104, 98, 102.5, 101}, pivotPrices(pivots))
	assert.Equal(t, len(merged)+2, len(pivots))
}

func TestExtractPivots_SingleRunNoDuplicateBars(t *testing.T) {
	w := flatWindow(101, 103, 104, 102, 101.5, 102, 103, 105, 104, 101.2)
	intervals := ScanIntervals(w, 10)
	require.Len(t, intervals, 1)

	pivots := ExtractPivots(w, intervals)

	// opening low, run high, then the close
	assert.Equal(t, []float64{101, 105, 101.2}, pivotPrices(pivots))
	for i := 1; i < len(pivots); i++ {
		assert.NotEqual(t, pivots[i-1].BarIndex, pivots[i].BarIndex)
	}
}

func TestExtractPivots_FirstRunExtremesOnSameBar(t *testing.T) {
	w := flatWindow(104, 98, 96, 99, 103, 105, 102, 97, 95, 101)
	intervals := ScanIntervals(w, 10)
	require.Equal(t, Above, intervals[0].Type)
	require.Equal(t, 1, intervals[0].Bars())

	pivots := ExtractPivots(w, intervals)

	assert.Equal(t, types.BarIndex(0), pivots[0].BarIndex)
	assert.Equal(t, 104.0, pivots[0].Price)
	assert.NotEqual(t, types.BarIndex(0), pivots[1].BarIndex)
}

func TestExtractPivots_OpeningVertexAfterFirstPeak(t *testing.T) {
	// the first run makes its high before its low
	w := flatWindow(104, 101, 97, 96, 103, 105, 98, 97, 102, 101.5)
	intervals := ScanIntervals(w, 10)
	require.Len(t, intervals, 5)

	pivots := ExtractPivots(w, intervals)

	assert.Equal(t, []float64{101, 104, 96, 105, 97, 102, 101.5}, pivotPrices(pivots))
	assert.Equal(t, types.BarIndex(1), pivots[0].BarIndex)
	assert.Equal(t, types.BarIndex(0), pivots[1].BarIndex)
	for i := 2; i < len(pivots); i++ {
		assert.Greater(t, pivots[i].BarIndex, pivots[i-1].BarIndex)
	}
}

func TestExtractPivots_Empty(t *testing.T) {
	assert.Nil(t, ExtractPivots(flatWindow(101), nil))
}

func TestScoreContraction_HalvingLegs(t *testing.T) {
	score := ScoreContraction(pricesToPivots(68, 116, 92, 104, 98, 101))

	require.Len(t, score.Legs, 5)
	assert.Equal(t, []float64{48, 24, 12, 6, 3}, legAmplitudes(score.Legs))
	assert.Equal(t, 4, score.Contracting)
	assert.Equal(t, 1.0, score.Ratio)
	assert.False(t, score.Legs[0].Contracting)
	assert.Equal(t, 0.5, score.Legs[1].Ratio)
}

func TestScoreContraction_EqualLegsCountAsContracting(t *testing.T) {
	score := ScoreContraction(pricesToPivots(100, 110, 100, 110))

	assert.Equal(t, 2, score.Contracting)
	assert.Equal(t, 1.0, score.Ratio)
}

func TestScoreContraction_WideningLegs(t *testing.T) {
	score := ScoreContraction(pricesToPivots(101, 102, 97, 109, 80, 145))

	assert.Equal(t, 0, score.Contracting)
	assert.Equal(t, 0.0, score.Ratio)
}

func TestScoreContraction_FlatLegsNeverContract(t *testing.T) {
	score := ScoreContraction(pricesToPivots(100, 110, 110, 105))

	require.Len(t, score.Legs, 3)
	assert.False(t, score.Legs[1].Contracting)
	assert.Equal(t, 0.0, score.Legs[1].Ratio)
	assert.False(t, score.Legs[2].Contracting)
	assert.Equal(t, 0.0, score.Legs[2].Ratio)
	assert.Equal(t, 0.0, score.Ratio)
}

func TestScoreContraction_TooFewPivots(t *testing.T) {
	assert.Equal(t, Score{}, ScoreContraction(nil))
	assert.Equal(t, Score{}, ScoreContraction(pricesToPivots(100)))

	one := ScoreContraction(pricesToPivots(100, 105))
	assert.Len(t, one.Legs, 1)
	assert.Equal(t, 0.0, one.Ratio)
}

func pricesToPivots(prices ...float64) []PivotPoint {
	pivots := make([]PivotPoint, len(prices))
	for i, p := range prices {
		pivots[i] = PivotPoint{BarIndex: types.BarIndex(i), Price: p}
	}
	return pivots
}

func legAmplitudes(legs []Leg) []float64 {
	out := make([]float64, len(legs))
	for i, l := range legs {
		out[i] = l.Amplitude
	}
	return out
}
