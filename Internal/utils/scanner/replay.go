package scanner

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/fazecat/contractionscout/Internal/strategy/detection"
	"github.com/fazecat/contractionscout/Internal/types"
)

// Hit is a bar at which the pattern was found during a replay.
type Hit struct {
	BarIndex types.BarIndex   `json:"bar_index"`
	Time     time.Time        `json:"time"`
	Result   detection.Result `json:"result"`
}

type ReplayReport struct {
	Symbol    string                   `json:"symbol"`
	Bars      int                      `json:"bars"`
	Evaluated int                      `json:"evaluated"`
	Reasons   map[detection.Reason]int `json:"reasons"`
	Hits      []Hit                    `json:"hits"`
}

// Episodes counts runs of consecutive found bars.
func (r ReplayReport) Episodes() int {
	n := 0
	for i, h := range r.Hits {
		if i == 0 || h.BarIndex != r.Hits[i-1].BarIndex+1 {
			n++
		}
	}
	return n
}

// Replay evaluates the detector on every bar, oldest first, the way a chart
// host recomputes on each bar close.
func Replay(bars []types.Bar, cfg detection.Config, logger zerolog.Logger) (ReplayReport, error) {
	d, err := detection.NewContractionDetector(cfg, detection.WithLogger(logger))
	if err != nil {
		return ReplayReport{}, err
	}

	report := ReplayReport{Bars: len(bars), Reasons: make(map[detection.Reason]int)}
	for _, bar := range bars {
		res := d.OnBarClose(bar)
		if res.Reason == detection.ReasonInsufficientHistory {
			continue
		}
		report.Evaluated++
		if res.Found {
			report.Hits = append(report.Hits, Hit{
				BarIndex: d.Series().Current(),
				Time:     bar.Timestamp,
				Result:   res,
			})
			continue
		}
		report.Reasons[res.Reason]++
	}
	return report, nil
}

// ReplaySymbol fetches history for req and replays it bar by bar.
func (s *Scanner) ReplaySymbol(ctx context.Context, req Request) (ReplayReport, error) {
	defer s.metrics.TrackScan("replay")()

	bars, err := s.feed.GetBars(ctx, req.Symbol, req.Timeframe, req.limit())
	if err != nil {
		return ReplayReport{}, fmt.Errorf("failed to fetch bars for %s: %w", req.Symbol, err)
	}
	report, err := Replay(bars, req.Config, s.logger.With().Str("symbol", req.Symbol).Logger())
	if err != nil {
		return ReplayReport{}, err
	}
	report.Symbol = req.Symbol

	for _, h := range report.Hits {
		s.observe(h.Result)
	}
	for reason, n := range report.Reasons {
		for i := 0; i < n; i++ {
			s.metrics.ObserveEvaluation(false, string(reason), 0, false)
		}
	}

	s.logger.Info().
		Str("symbol", req.Symbol).
		Int("bars", report.Bars).
		Int("hits", len(report.Hits)).
		Int("episodes", report.Episodes()).
		Msg("replay complete")
	return report, nil
}
