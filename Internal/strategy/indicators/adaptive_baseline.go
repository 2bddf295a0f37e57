package indicators

import (
	"fmt"
	"math"

	"github.com/fazecat/contractionscout/Internal/types"
)

// AdaptiveBaseline is an efficiency-ratio weighted moving average (Kaufman style).
// It is advanced one price per bar and its values are read by absolute bar index.
// Only the lookback prices are held; values are all kept unless Retain bounds them.
type AdaptiveBaseline struct {
	fastSC           float64
	slowSC           float64
	efficiencyLength int

	prices *types.History[float64]
	values *types.History[float64]
}

func NewAdaptiveBaseline(fastLength, slowLength, efficiencyLength int) (*AdaptiveBaseline, error) {
	if fastLength <= 0 || slowLength <= 0 {
		return nil, fmt.Errorf("baseline lengths must be positive: fast=%d slow=%d", fastLength, slowLength)
	}
	if fastLength >= slowLength {
		return nil, fmt.Errorf("baseline fast length %d must be below slow length %d", fastLength, slowLength)
	}
	if efficiencyLength <= 0 {
		return nil, fmt.Errorf("baseline efficiency length must be positive: %d", efficiencyLength)
	}
	return &AdaptiveBaseline{
		fastSC:           2.0 / float64(fastLength+1),
		slowSC:           2.0 / float64(slowLength+1),
		efficiencyLength: efficiencyLength,
		prices:           types.NewHistory[float64](efficiencyLength + 1),
		values:           types.NewHistory[float64](0),
	}, nil
}

// Retain keeps only the newest n values readable through At. It resets the baseline.
func (b *AdaptiveBaseline) Retain(n int) {
	b.values = types.NewHistory[float64](n)
	b.prices.Reset()
}

// Update consumes the next price and returns the new baseline value.
func (b *AdaptiveBaseline) Update(price float64) float64 {
	i := b.prices.Push(price)

	prev, ok := b.values.Last()
	// first sample seeds the recurrence
	if !ok {
		b.values.Push(price)
		return price
	}

	er, ok := b.efficiencyRatio(i)
	if !ok {
		b.values.Push(prev)
		return prev
	}

	sc := math.Pow(er*(b.fastSC-b.slowSC)+b.slowSC, 2)
	v := prev + sc*(price-prev)
	b.values.Push(v)
	return v
}

// efficiencyRatio is net change over total absolute change across the lookback.
// ok is false when price did not move at all inside the window.
func (b *AdaptiveBaseline) efficiencyRatio(i types.BarIndex) (float64, bool) {
	n := types.BarIndex(b.efficiencyLength)
	if i < n {
		n = i
	}
	signal := math.Abs(b.prices.At(i) - b.prices.At(i-n))
	noise := 0.0
	for k := i - n + 1; k <= i; k++ {
		noise += math.Abs(b.prices.At(k) - b.prices.At(k-1))
	}
	if noise == 0 {
		return 0, false
	}
	return math.Min(signal/noise, 1), true
}

// Len is the number of prices consumed since the last Reset.
func (b *AdaptiveBaseline) Len() int {
	return b.values.Count()
}

// Value returns the most recent baseline value.
func (b *AdaptiveBaseline) Value() float64 {
	v, _ := b.values.Last()
	return v
}

func (b *AdaptiveBaseline) At(index types.BarIndex) float64 {
	return b.values.At(index)
}

func (b *AdaptiveBaseline) Reset() {
	b.prices.Reset()
	b.values.Reset()
}
