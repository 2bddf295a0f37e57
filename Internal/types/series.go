package types

// Series is the ordered bar history a detector reads from, addressed relative
// to the current bar.
type Series interface {
	Count() int
	Current() BarIndex
	Ago(offset BarOffset) Bar
	At(index BarIndex) Bar
}

// BarSeries is an append-only, oldest-first bar history. Absolute indices keep
// counting from the first bar even after old bars are dropped.
type BarSeries struct {
	bars *History[Bar]
}

// NewBarSeries keeps the newest keep bars. keep <= 0 keeps every bar.
func NewBarSeries(keep int) *BarSeries {
	return &BarSeries{bars: NewHistory[Bar](keep)}
}

// Push appends the newest closed bar and returns its absolute index.
func (s *BarSeries) Push(bar Bar) BarIndex {
	return s.bars.Push(bar)
}

// Count is the number of bars pushed since the last Reset.
func (s *BarSeries) Count() int {
	return s.bars.Count()
}

// Retained is the number of bars still addressable through At and Ago.
func (s *BarSeries) Retained() int {
	return s.bars.Retained()
}

// Current returns the index of the newest bar, or -1 when the series is empty.
func (s *BarSeries) Current() BarIndex {
	return s.bars.Current()
}

func (s *BarSeries) Ago(offset BarOffset) Bar {
	return s.bars.At(offset.IndexFrom(s.Current()))
}

func (s *BarSeries) At(index BarIndex) Bar {
	return s.bars.At(index)
}

func (s *BarSeries) Reset() {
	s.bars.Reset()
}
