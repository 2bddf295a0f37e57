package detection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fazecat/contractionscout/Internal/types"
)

func TestScanIntervals_SplitsOnBaselineCrossings(t *testing.T) {
	w := flatWindow(contractingCloses()...)

	intervals := ScanIntervals(w, 20)
	require.Len(t, intervals, 5)

	wantTypes := []IntervalType{Above, Below, Above, Below, Above}
	wantBounds := [][2]types.BarIndex{{2, 6}, {7, 10}, {11, 13}, {14, 16}, {17, 21}}
	for i, iv := range intervals {
		assert.Equal(t, wantTypes[i], iv.Type, "interval %d", i)
		assert.Equal(t, wantBounds[i][0], iv.OpenIndex, "interval %d open", i)
		assert.Equal(t, wantBounds[i][1], iv.CloseIndex, "interval %d close", i)
	}

	first := intervals[0]
	assert.Equal(t, 116.0, first.High)
	assert.Equal(t, types.BarIndex(4), first.HighIndex)
	assert.Equal(t, 101.0, first.Low)
	assert.Equal(t, 116.0, first.HighestClose)
	assert.Equal(t, 101.0, first.LowestClose)
	assert.Equal(t, types.BarIndex(4), first.HighestCloseIndex)
	assert.Equal(t, types.BarIndex(2), first.LowestCloseIndex)
	assert.Equal(t, 101.0, first.Open)
	assert.Equal(t, 103.0, first.Close)
	assert.Equal(t, w.Bars[6].Timestamp, first.CloseTime)
}

func TestScanIntervals_CoversWindowWithoutGaps(t *testing.T) {
	bars := randomWalkBars(80, 7)
	w := flatWindow()
	for _, b := range bars {
		w.Bars = append(w.Bars, b)
		w.Baseline = append(w.Baseline, 100)
		w.Volatility = append(w.Volatility, 1)
	}

	intervals := ScanIntervals(w, 60)
	require.NotEmpty(t, intervals)
	assert.Equal(t, types.BarIndex(20), intervals[0].OpenIndex)
	assert.Equal(t, w.Current(), intervals[len(intervals)-1].CloseIndex)
	for i := 1; i < len(intervals); i++ {
		assert.Equal(t, intervals[i-1].CloseIndex+1, intervals[i].OpenIndex)
		assert.NotEqual(t, intervals[i-1].Type, intervals[i].Type)
	}
}

func TestScanIntervals_ShortWindow(t *testing.T) {
	w := flatWindow(101, 102, 103)
	assert.Nil(t, ScanIntervals(w, 10))
}

func TestExtendFirstInterval_AboveTakesLowerOverscanLow(t *testing.T) {
	w := flatWindow(contractingCloses()...)
	intervals := ScanIntervals(w, 20)

	extended := ExtendFirstInterval(w, intervals, 2)

	first := extended[0]
	assert.Equal(t, types.BarIndex(1), first.OpenIndex)
	assert.Equal(t, 68.0, first.Low)
	assert.Equal(t, types.BarIndex(1), first.LowIndex)
	assert.Equal(t, 68.0, first.Open)
	// high side untouched
	assert.Equal(t, 116.0, first.High)
	// input list is not modified
	assert.Equal(t, types.BarIndex(2), intervals[0].OpenIndex)
}

func TestExtendFirstInterval_BelowTakesHigherOverscanHigh(t *testing.T) {
	w := flatWindow(
		112, 104, 101,
		99, 95, 97,
		101, 103, 102, 101, 104, 101, 102,
	)
	intervals := ScanIntervals(w, 10)
	require.Equal(t, Below, intervals[0].Type)

	extended := ExtendFirstInterval(w, intervals, 3)
	first := extended[0]
	assert.Equal(t, 112.0, first.High)
	assert.Equal(t, types.BarIndex(0), first.HighIndex)
	assert.Equal(t, types.BarIndex(0), first.OpenIndex)
	assert.Equal(t, 95.0, first.Low)
}

func TestExtendFirstInterval_NoLowerLowKeepsBoundary(t *testing.T) {
	w := flatWindow(wideningCloses()...)
	intervals := ScanIntervals(w, 15)

	extended := ExtendFirstInterval(w, intervals, 2)
	assert.Equal(t, intervals, extended)
}
