package detection

import (
	"time"

	"github.com/fazecat/contractionscout/Internal/types"
)

type IntervalType string

const (
	Above IntervalType = "ABOVE"
	Below IntervalType = "BELOW"
)

// Window is what the pipeline stages read: bars with their baseline and
// volatility values, oldest first. Bars[0] has absolute index First.
type Window struct {
	Bars       []types.Bar
	Baseline   []float64
	Volatility []float64
	First      types.BarIndex
}

// Current is the absolute index of the newest bar in the window.
func (w Window) Current() types.BarIndex {
	return w.First + types.BarIndex(len(w.Bars)-1)
}

func (w Window) bar(i types.BarIndex) types.Bar      { return w.Bars[i-w.First] }
func (w Window) baseline(i types.BarIndex) float64   { return w.Baseline[i-w.First] }
func (w Window) volatility(i types.BarIndex) float64 { return w.Volatility[i-w.First] }

func (w Window) classify(i types.BarIndex) IntervalType {
	if w.bar(i).Close > w.baseline(i) {
		return Above
	}
	return Below
}

// Interval is a contiguous run of bars on one side of the baseline. Values are
// never shared between passes: every change returns a new Interval.
type Interval struct {
	Type IntervalType `json:"type"`

	OpenIndex  types.BarIndex `json:"open_index"`
	HighIndex  types.BarIndex `json:"high_index"`
	LowIndex   types.BarIndex `json:"low_index"`
	CloseIndex types.BarIndex `json:"close_index"`

	OpenTime  time.Time `json:"open_time"`
	HighTime  time.Time `json:"high_time"`
	LowTime   time.Time `json:"low_time"`
	CloseTime time.Time `json:"close_time"`

	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`

	HighestClose      float64        `json:"highest_close"`
	LowestClose       float64        `json:"lowest_close"`
	HighestCloseIndex types.BarIndex `json:"highest_close_index"`
	LowestCloseIndex  types.BarIndex `json:"lowest_close_index"`
}

func newInterval(typ IntervalType, i types.BarIndex, bar types.Bar) Interval {
	return Interval{
		Type:         typ,
		OpenIndex:    i,
		HighIndex:    i,
		LowIndex:     i,
		CloseIndex:   i,
		OpenTime:     bar.Timestamp,
		HighTime:     bar.Timestamp,
		LowTime:      bar.Timestamp,
		CloseTime:    bar.Timestamp,
		Open:         bar.Open,
		High:         bar.High,
		Low:          bar.Low,
		Close:        bar.Close,
		HighestClose: bar.Close,
		LowestClose:  bar.Close,

		HighestCloseIndex: i,
		LowestCloseIndex:  i,
	}
}

// add accumulates the next bar on the close side.
func (iv Interval) add(i types.BarIndex, bar types.Bar) Interval {
	return iv.absorbNewer(newInterval(iv.Type, i, bar))
}

// absorbNewer folds a later interval into iv, moving the close side forward.
func (iv Interval) absorbNewer(src Interval) Interval {
	out := iv.combineExtrema(src)
	out.CloseIndex = src.CloseIndex
	out.CloseTime = src.CloseTime
	out.Close = src.Close
	return out
}

// absorbOlder folds an earlier interval into iv, moving the open side back.
func (iv Interval) absorbOlder(src Interval) Interval {
	out := iv.combineExtrema(src)
	out.OpenIndex = src.OpenIndex
	out.OpenTime = src.OpenTime
	out.Open = src.Open
	return out
}

// combineExtrema keeps iv's type and boundaries. Ties keep iv's extremum.
func (iv Interval) combineExtrema(src Interval) Interval {
	out := iv
	if src.High > out.High {
		out.High, out.HighIndex, out.HighTime = src.High, src.HighIndex, src.HighTime
	}
	if src.Low < out.Low {
		out.Low, out.LowIndex, out.LowTime = src.Low, src.LowIndex, src.LowTime
	}
	if src.HighestClose > out.HighestClose {
		out.HighestClose, out.HighestCloseIndex = src.HighestClose, src.HighestCloseIndex
	}
	if src.LowestClose < out.LowestClose {
		out.LowestClose, out.LowestCloseIndex = src.LowestClose, src.LowestCloseIndex
	}
	return out
}

// absorbWhipsaw folds an older insignificant run into iv like absorbOlder, but
// iv keeps its own type-consistent peak close.
func (iv Interval) absorbWhipsaw(src Interval) Interval {
	out := iv.absorbOlder(src)
	if iv.Type == Above {
		out.HighestClose, out.HighestCloseIndex = iv.HighestClose, iv.HighestCloseIndex
	} else {
		out.LowestClose, out.LowestCloseIndex = iv.LowestClose, iv.LowestCloseIndex
	}
	return out
}

// PeakClose is the type-consistent close extremum: the highest close of an Above
// run, the lowest close of a Below run.
func (iv Interval) PeakClose() (types.BarIndex, float64) {
	if iv.Type == Above {
		return iv.HighestCloseIndex, iv.HighestClose
	}
	return iv.LowestCloseIndex, iv.LowestClose
}

// Extreme is the type-consistent extremum: the high of an Above run, the low of a Below run.
func (iv Interval) Extreme() (types.BarIndex, time.Time, float64) {
	if iv.Type == Above {
		return iv.HighIndex, iv.HighTime, iv.High
	}
	return iv.LowIndex, iv.LowTime, iv.Low
}

// Opposite is the extremum against the run's side: the low of an Above run, the high of a Below run.
func (iv Interval) Opposite() (types.BarIndex, time.Time, float64) {
	if iv.Type == Above {
		return iv.LowIndex, iv.LowTime, iv.Low
	}
	return iv.HighIndex, iv.HighTime, iv.High
}

// Bars is the number of bars the interval covers.
func (iv Interval) Bars() int {
	return int(iv.CloseIndex-iv.OpenIndex) + 1
}

// ScanIntervals splits the newest scanLength bars of w into runs above or below
// the baseline, oldest first. The runs cover the scan range without gaps.
func ScanIntervals(w Window, scanLength int) []Interval {
	current := w.Current()
	start := current - types.BarIndex(scanLength) + 1
	if start < w.First || scanLength <= 0 {
		return nil
	}

	intervals := make([]Interval, 0, scanLength/2)
	open := newInterval(w.classify(start), start, w.bar(start))
	for i := start + 1; i <= current; i++ {
		typ := w.classify(i)
		if typ != open.Type {
			intervals = append(intervals, open)
			open = newInterval(typ, i, w.bar(i))
			continue
		}
		open = open.add(i, w.bar(i))
	}
	return append(intervals, open)
}

// ExtendFirstInterval looks up to overscanLength bars before the first interval.
// An Above run takes over the lowest older low that undercuts its own low, a Below
// run the highest older high above its own high, moving the open boundary there.
func ExtendFirstInterval(w Window, intervals []Interval, overscanLength int) []Interval {
	if len(intervals) == 0 || overscanLength <= 0 {
		return intervals
	}

	out := append([]Interval(nil), intervals...)
	first := out[0]
	for k := 1; k <= overscanLength; k++ {
		i := intervals[0].OpenIndex - types.BarIndex(k)
		if i < w.First {
			break
		}
		bar := w.bar(i)
		switch first.Type {
		case Above:
			if bar.Low < first.Low {
				first.Low, first.LowIndex, first.LowTime = bar.Low, i, bar.Timestamp
				first.OpenIndex, first.OpenTime, first.Open = i, bar.Timestamp, bar.Open
			}
		case Below:
			if bar.High > first.High {
				first.High, first.HighIndex, first.HighTime = bar.High, i, bar.Timestamp
				first.OpenIndex, first.OpenTime, first.Open = i, bar.Timestamp, bar.Open
			}
		}
	}
	out[0] = first
	return out
}
