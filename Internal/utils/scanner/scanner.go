package scanner

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	datafeed "github.com/fazecat/contractionscout/Internal/database"
	"github.com/fazecat/contractionscout/Internal/strategy/detection"
	"github.com/fazecat/contractionscout/Internal/types"
	"github.com/fazecat/contractionscout/Internal/utils/telemetry"
)

// DetectionSink persists Found results.
type DetectionSink interface {
	LogDetection(ctx context.Context, rec *datafeed.DetectionRecord) (bool, error)
}

type Request struct {
	Symbol      string
	Timeframe   string
	Profile     string
	Config      detection.Config
	HistoryBars int
}

// limit is the number of bars to fetch: the configured history, but never
// less than the detector needs.
func (r Request) limit() int {
	if need := r.Config.RequiredBars(); r.HistoryBars < need {
		return need
	}
	return r.HistoryBars
}

type SymbolResult struct {
	Symbol    string           `json:"symbol"`
	Timeframe string           `json:"timeframe"`
	Profile   string           `json:"profile"`
	Bars      int              `json:"bars"`
	Result    detection.Result `json:"result"`
	Stored    bool             `json:"stored"`
	Err       error            `json:"-"`
}

// Candidate flattens the result for listings.
func (r SymbolResult) Candidate() types.Candidate {
	c := types.Candidate{
		Symbol:           r.Symbol,
		Timeframe:        r.Timeframe,
		Found:            r.Result.Found,
		ContractionRatio: r.Result.ContractionRatio,
		PivotCount:       len(r.Result.Pivots),
		LastClose:        r.Result.Close,
	}
	switch {
	case r.Err != nil:
		c.Analysis = "error: " + r.Err.Error()
	case r.Result.Found:
		c.Analysis = fmt.Sprintf("%d legs, %.0f%% contracting", len(r.Result.Legs), r.Result.ContractionRatio*100)
	default:
		c.Analysis = strings.ToLower(string(r.Result.Reason))
	}
	return c
}

type Scanner struct {
	feed    datafeed.BarFeed
	sink    DetectionSink
	metrics *telemetry.Metrics
	logger  zerolog.Logger
	workers int
}

type Option func(*Scanner)

func WithSink(sink DetectionSink) Option {
	return func(s *Scanner) { s.sink = sink }
}

func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Scanner) { s.metrics = m }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Scanner) { s.logger = logger }
}

func WithWorkers(n int) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.workers = n
		}
	}
}

func New(feed datafeed.BarFeed, opts ...Option) *Scanner {
	s := &Scanner{feed: feed, logger: zerolog.Nop(), workers: 4}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScanSymbol fetches history, feeds every bar to a fresh detector and
// evaluates at the newest bar. Found results are persisted when a sink is set.
func (s *Scanner) ScanSymbol(ctx context.Context, req Request) (SymbolResult, error) {
	defer s.metrics.TrackScan("symbol")()

	out := SymbolResult{Symbol: req.Symbol, Timeframe: req.Timeframe, Profile: req.Profile}
	bars, err := s.feed.GetBars(ctx, req.Symbol, req.Timeframe, req.limit())
	if err != nil {
		return out, fmt.Errorf("failed to fetch bars for %s: %w", req.Symbol, err)
	}
	out.Bars = len(bars)

	d, err := detection.NewContractionDetector(req.Config, detection.WithLogger(s.logger.With().Str("symbol", req.Symbol).Logger()))
	if err != nil {
		return out, err
	}
	for _, bar := range bars {
		d.Advance(bar)
	}
	out.Result = d.Evaluate()
	s.observe(out.Result)

	if out.Result.Found && s.sink != nil {
		rec, err := datafeed.NewDetectionRecord(req.Symbol, req.Timeframe, req.Profile, out.Result)
		if err != nil {
			return out, err
		}
		stored, err := s.sink.LogDetection(ctx, &rec)
		if err != nil {
			return out, fmt.Errorf("failed to store detection for %s: %w", req.Symbol, err)
		}
		out.Stored = stored
		if stored {
			s.metrics.ObserveStored()
		}
	}
	return out, nil
}

// ScanWatchlist scans symbols concurrently. Per-symbol failures are reported
// in SymbolResult.Err and do not stop the scan. Results keep the input order.
func (s *Scanner) ScanWatchlist(ctx context.Context, symbols []string, base Request) ([]SymbolResult, error) {
	defer s.metrics.TrackScan("watchlist")()

	results := make([]SymbolResult, len(symbols))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for i, symbol := range symbols {
		i, symbol := i, symbol
		req := base
		req.Symbol = symbol
		g.Go(func() error {
			res, err := s.ScanSymbol(gctx, req)
			if err != nil {
				res.Err = err
				s.logger.Warn().Err(err).Str("symbol", symbol).Msg("symbol scan failed")
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	if err := ctx.Err(); err != nil {
		return results, err
	}

	found := 0
	for _, r := range results {
		if r.Result.Found {
			found++
		}
	}
	s.logger.Info().
		Int("symbols", len(symbols)).
		Int("found", found).
		Str("timeframe", base.Timeframe).
		Str("profile", base.Profile).
		Msg("watchlist scan complete")
	return results, nil
}

// Found filters results down to detections, tightest ratio first.
func Found(results []SymbolResult) []SymbolResult {
	var out []SymbolResult
	for _, r := range results {
		if r.Err == nil && r.Result.Found {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Result.ContractionRatio > out[j].Result.ContractionRatio
	})
	return out
}

func (s *Scanner) observe(res detection.Result) {
	scored := res.Reason != detection.ReasonInsufficientHistory && len(res.Legs) > 0
	s.metrics.ObserveEvaluation(res.Found, string(res.Reason), res.ContractionRatio, scored)
}
