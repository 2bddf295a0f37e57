package types

import "time"

type Bar struct {
	Timestamp time.Time `json:"t"`
	Open      float64   `json:"o"`
	High      float64   `json:"h"`
	Low       float64   `json:"l"`
	Close     float64   `json:"c"`
	Volume    float64   `json:"v"`
}

// BarIndex is the absolute position of a bar in the whole series. The first bar
// ever fed is 0 and the number only grows.
type BarIndex int

// BarOffset is the distance back from the current bar: 0 is the most recent bar.
type BarOffset int

// OffsetFrom converts an absolute index into an offset relative to current.
func (i BarIndex) OffsetFrom(current BarIndex) BarOffset {
	return BarOffset(current - i)
}

// IndexFrom converts an offset relative to current into an absolute index.
func (o BarOffset) IndexFrom(current BarIndex) BarIndex {
	return current - BarIndex(o)
}

type Candidate struct {
	Symbol           string
	Timeframe        string
	Found            bool
	ContractionRatio float64
	PivotCount       int
	Analysis         string
	LastClose        float64
	Bars             []Bar
}
