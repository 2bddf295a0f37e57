package detection

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/fazecat/contractionscout/Internal/strategy/indicators"
	"github.com/fazecat/contractionscout/Internal/types"
)

// Reason explains a NotFound result.
type Reason string

const (
	ReasonNone                Reason = ""
	ReasonInsufficientHistory Reason = "INSUFFICIENT_HISTORY"
	ReasonInsufficientLegs    Reason = "INSUFFICIENT_LEGS"
	ReasonThresholdUnmet      Reason = "THRESHOLD_UNMET"
)

// Result is the outcome of one evaluation. It is built from scratch every call.
type Result struct {
	Found  bool   `json:"found"`
	Reason Reason `json:"reason,omitempty"`

	OpenTime  time.Time `json:"open_time"`
	CloseTime time.Time `json:"close_time"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`

	Pivots           []PivotPoint `json:"pivots"`
	Legs             []Leg        `json:"legs"`
	Intervals        []Interval   `json:"intervals"`
	ContractionRatio float64      `json:"contraction_ratio"`
}

// Detect runs the pipeline over a window whose newest bar is the evaluation bar.
func Detect(w Window, cfg Config) Result {
	if len(w.Bars) < cfg.RequiredBars() {
		return Result{Reason: ReasonInsufficientHistory, Pivots: []PivotPoint{}}
	}

	intervals := ScanIntervals(w, cfg.ScanLength)
	intervals = ExtendFirstInterval(w, intervals, cfg.OverscanLength)
	merged := MergeIntervals(w, intervals, cfg.MinimumATRDelta)

	if len(merged)+1 < cfg.MinimumRequiredLegs {
		return Result{Reason: ReasonInsufficientLegs, Intervals: merged, Pivots: []PivotPoint{}}
	}

	pivots := ExtractPivots(w, merged)
	score := ScoreContraction(pivots)

	current := w.bar(w.Current())
	res := Result{
		OpenTime:         merged[0].OpenTime,
		CloseTime:        current.Timestamp,
		Open:             merged[0].Open,
		High:             math.Inf(-1),
		Low:              math.Inf(1),
		Close:            current.Close,
		Pivots:           pivots,
		Legs:             score.Legs,
		Intervals:        merged,
		ContractionRatio: score.Ratio,
	}
	for _, iv := range merged {
		res.High = math.Max(res.High, iv.High)
		res.Low = math.Min(res.Low, iv.Low)
	}

	switch {
	case len(pivots) < cfg.MinimumRequiredLegs+1:
		res.Reason = ReasonInsufficientLegs
	case score.Ratio < cfg.MinimumPercentageContractingLegs:
		res.Reason = ReasonThresholdUnmet
	default:
		res.Found = true
	}
	return res
}

// ContractionDetector owns the baseline and volatility recurrences and evaluates
// the pattern at the newest bar. Feed it every closed bar in order, through
// Advance or OnBarClose, even on bars where no evaluation is wanted.
// Only the newest RequiredBars bars and indicator values stay readable, so a
// long-running detector holds bounded memory. It is not safe for concurrent use.
type ContractionDetector struct {
	cfg        Config
	series     *types.BarSeries
	baseline   *indicators.AdaptiveBaseline
	volatility *indicators.VolatilityEstimator
	logger     zerolog.Logger
}

type Option func(*ContractionDetector)

func WithLogger(logger zerolog.Logger) Option {
	return func(d *ContractionDetector) {
		d.logger = logger
	}
}

// NewContractionDetector validates cfg and returns a detector with empty history.
func NewContractionDetector(cfg Config, opts ...Option) (*ContractionDetector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	baseline, err := indicators.NewAdaptiveBaseline(cfg.FastLength, cfg.SlowLength, cfg.EfficiencyLength)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	volatility, err := indicators.NewVolatilityEstimator(cfg.ATRLength)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	keep := cfg.RequiredBars()
	baseline.Retain(keep)
	volatility.Retain(keep)

	d := &ContractionDetector{
		cfg:        cfg,
		series:     types.NewBarSeries(keep),
		baseline:   baseline,
		volatility: volatility,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

func (d *ContractionDetector) Config() Config {
	return d.cfg
}

func (d *ContractionDetector) Series() types.Series {
	return d.series
}

// Advance records a closed bar and steps both recurrences without evaluating.
func (d *ContractionDetector) Advance(bar types.Bar) types.BarIndex {
	i := d.series.Push(bar)
	d.baseline.Update(bar.Close)
	d.volatility.Update(bar)
	return i
}

// OnBarClose advances and evaluates at the new bar.
func (d *ContractionDetector) OnBarClose(bar types.Bar) Result {
	d.Advance(bar)
	return d.Evaluate()
}

// Evaluate classifies the window ending at the newest bar.
func (d *ContractionDetector) Evaluate() Result {
	need := d.cfg.RequiredBars()
	if d.series.Count() < need {
		d.logger.Debug().
			Int("bars", d.series.Count()).
			Int("required", need).
			Msg("not enough history for contraction scan")
		return Result{Reason: ReasonInsufficientHistory, Pivots: []PivotPoint{}}
	}

	res := Detect(d.window(need), d.cfg)

	event := d.logger.Debug().
		Int("bar", int(d.series.Current())).
		Int("intervals", len(res.Intervals)).
		Int("pivots", len(res.Pivots)).
		Float64("contraction_ratio", res.ContractionRatio)
	if res.Found {
		event.Msg("volatility contraction found")
	} else {
		event.Str("reason", string(res.Reason)).Msg("volatility contraction not found")
	}
	return res
}

// window copies the newest n bars and their indicator values.
func (d *ContractionDetector) window(n int) Window {
	current := d.series.Current()
	first := current - types.BarIndex(n) + 1
	w := Window{
		Bars:       make([]types.Bar, 0, n),
		Baseline:   make([]float64, 0, n),
		Volatility: make([]float64, 0, n),
		First:      first,
	}
	for i := first; i <= current; i++ {
		w.Bars = append(w.Bars, d.series.At(i))
		w.Baseline = append(w.Baseline, d.baseline.At(i))
		w.Volatility = append(w.Volatility, d.volatility.At(i))
	}
	return w
}

// Reset drops all history and recurrence state.
func (d *ContractionDetector) Reset() {
	d.series.Reset()
	d.baseline.Reset()
	d.volatility.Reset()
}
