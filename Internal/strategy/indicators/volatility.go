package indicators

import (
	"fmt"
	"math"

	"github.com/fazecat/contractionscout/Internal/types"
)

// VolatilityEstimator is an average true range advanced one bar at a time.
// Until length bars exist it is the running mean of true range, then Wilder smoothing.
type VolatilityEstimator struct {
	length    int
	prevClose float64
	values    *types.History[float64]
}

func NewVolatilityEstimator(length int) (*VolatilityEstimator, error) {
	if length <= 0 {
		return nil, fmt.Errorf("volatility length must be positive: %d", length)
	}
	return &VolatilityEstimator{length: length, values: types.NewHistory[float64](0)}, nil
}

// Retain keeps only the newest n values readable through At. It resets the estimator.
func (v *VolatilityEstimator) Retain(n int) {
	v.values = types.NewHistory[float64](n)
	v.prevClose = 0
}

// TrueRange of a bar given the previous close. The first bar has no previous close.
func TrueRange(bar types.Bar, prevClose float64, hasPrev bool) float64 {
	tr := bar.High - bar.Low
	if !hasPrev {
		return tr
	}
	return math.Max(tr, math.Max(math.Abs(bar.High-prevClose), math.Abs(bar.Low-prevClose)))
}

func (v *VolatilityEstimator) Update(bar types.Bar) float64 {
	n := v.values.Count()
	tr := TrueRange(bar, v.prevClose, n > 0)
	v.prevClose = bar.Close

	prev, _ := v.values.Last()
	var atr float64
	switch {
	case n == 0:
		atr = tr
	case n < v.length:
		atr = (prev*float64(n) + tr) / float64(n+1)
	default:
		atr = (prev*float64(v.length-1) + tr) / float64(v.length)
	}
	v.values.Push(atr)
	return atr
}

func (v *VolatilityEstimator) Len() int {
	return v.values.Count()
}

func (v *VolatilityEstimator) Value() float64 {
	atr, _ := v.values.Last()
	return atr
}

func (v *VolatilityEstimator) At(index types.BarIndex) float64 {
	return v.values.At(index)
}

func (v *VolatilityEstimator) Reset() {
	v.values.Reset()
	v.prevClose = 0
}
