package detection

import (
	"time"

	"github.com/fazecat/contractionscout/Internal/types"
)

// PivotPoint is a vertex of the zigzag drawn through the merged runs.
type PivotPoint struct {
	BarIndex types.BarIndex  `json:"bar_index"`
	Offset   types.BarOffset `json:"offset"`
	Time     time.Time       `json:"time"`
	Price    float64         `json:"price"`
}

// ExtractPivots turns merged runs (oldest first) into turning points. The first run
// contributes its opening vertex and its own extremum, every other run its extremum,
// and the newest bar's close always ends the zigzag. A pivot on the same bar as the
// previous one is dropped.
func ExtractPivots(w Window, intervals []Interval) []PivotPoint {
	if len(intervals) == 0 {
		return nil
	}

	current := w.Current()
	pivots := make([]PivotPoint, 0, len(intervals)+2)
	emit := func(i types.BarIndex, t time.Time, price float64) {
		if n := len(pivots); n > 0 && pivots[n-1].BarIndex == i {
			return
		}
		pivots = append(pivots, PivotPoint{BarIndex: i, Offset: i.OffsetFrom(current), Time: t, Price: price})
	}

	last := len(intervals) - 1
	for k, iv := range intervals {
		if k == 0 {
			emit(iv.Opposite())
		}
		i, t, price := iv.Extreme()
		if k == last && i == current {
			continue
		}
		emit(i, t, price)
	}

	bar := w.bar(current)
	emit(current, bar.Timestamp, bar.Close)
	return pivots
}
