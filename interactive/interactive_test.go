package interactive

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	datafeed "github.com/fazecat/contractionscout/Internal/database"
	"github.com/fazecat/contractionscout/Internal/types"
	"github.com/fazecat/contractionscout/Internal/utils/config"
	"github.com/fazecat/contractionscout/Internal/utils/scanner"
)

func init() {
	color.NoColor = true
}

func swingBars(n int) []types.Bar {
	cycle := []float64{101, 103, 105, 103, 101, 99, 97, 95, 97, 99}
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]types.Bar, n)
	prev := cycle[len(cycle)-1]
	for i := range bars {
		c := cycle[i%len(cycle)]
		hi, lo := c, prev
		if prev > c {
			hi, lo = prev, c
		}
		bars[i] = types.Bar{Timestamp: t0.AddDate(0, 0, i), Open: prev, High: hi + 0.2, Low: lo - 0.2, Close: c}
		prev = c
	}
	return bars
}

func flatBars(n int) []types.Bar {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]types.Bar, n)
	for i := range bars {
		bars[i] = types.Bar{Timestamp: t0.AddDate(0, 0, i), Open: 100, High: 100.5, Low: 99.5, Close: 100}
	}
	return bars
}

type staticFeed map[string][]types.Bar

func (f staticFeed) GetBars(ctx context.Context, symbol, timeframe string, limit int) ([]types.Bar, error) {
	bars, ok := f[symbol]
	if !ok {
		return nil, datafeed.ErrNoBars
	}
	if len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}
	return bars, nil
}

type fakeHistory struct{}

func (fakeHistory) GetDetectionHistory(ctx context.Context, symbol string, limit int) ([]datafeed.DetectionRecord, error) {
	return []datafeed.DetectionRecord{{
		Symbol:           "AAPL",
		Timeframe:        "1Day",
		Profile:          "standard",
		DetectedAt:       time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		High:             decimal.NewFromInt(110),
		Low:              decimal.NewFromInt(100),
		Close:            decimal.NewFromInt(100),
		ContractionRatio: 0.8,
	}}, nil
}

func (fakeHistory) GetDetectionStats(ctx context.Context, symbol string, lookbackDays int) (*datafeed.DetectionStats, error) {
	return &datafeed.DetectionStats{
		TotalDetections:  1,
		DistinctSymbols:  1,
		AverageRatio:     0.8,
		TightestSymbol:   "AAPL",
		TightestRangePct: decimal.NewFromInt(10),
	}, nil
}

func newSession(input string, history HistoryReader) (*Session, *bytes.Buffer) {
	cfg := config.Default()
	cfg.Global.Watchlist = []string{"AAPL", "FLAT"}
	feed := staticFeed{"AAPL": swingBars(250), "FLAT": flatBars(250)}

	var out bytes.Buffer
	return NewSession(cfg, scanner.New(feed), history, strings.NewReader(input), &out), &out
}

func TestRun_AnalyzeSymbol(t *testing.T) {
	s, out := newSession("1\naapl\n\n\n6\n", nil)
	require.NoError(t, s.Run(context.Background()))

	assert.Contains(t, out.String(), "Analyzing AAPL on 1Day with profile standard")
	assert.Contains(t, out.String(), "AAPL  FOUND")
	assert.Contains(t, out.String(), "Goodbye!")
}

func TestRun_ScanWatchlist(t *testing.T) {
	s, out := newSession("2\n1\n", nil)
	require.NoError(t, s.Run(context.Background()))

	assert.Contains(t, out.String(), "Scanning 2 symbols on 1Day")
	assert.Contains(t, out.String(), "✅ 1 contracting: AAPL")
}

func TestRun_InvalidChoiceAndEOF(t *testing.T) {
	s, out := newSession("9\nabc", nil)
	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, 2, strings.Count(out.String(), "Invalid input. Try again."))
}

func TestRun_ErrorsAreShown(t *testing.T) {
	s, out := newSession("4\n1\nmissing\n\n\n6\n", nil)
	require.NoError(t, s.Run(context.Background()))

	assert.Contains(t, out.String(), "❌ detection history needs a database")
	assert.Contains(t, out.String(), "❌ failed to fetch bars for MISSING")
}

func TestRun_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s, _ := newSession("6\n", nil)
	assert.ErrorIs(t, s.Run(ctx), context.Canceled)
}

func TestReplayCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aapl.csv")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, datafeed.WriteBarsCSV(f, swingBars(120)))
	require.NoError(t, f.Close())

	s, out := newSession(path+"\n\n", nil)
	require.NoError(t, s.ReplayCSV(context.Background()))
	assert.Contains(t, out.String(), "120 bars, 51 evaluated")
}

func TestShowHistory(t *testing.T) {
	s, out := newSession("aapl\n", fakeHistory{})
	require.NoError(t, s.ShowHistory(context.Background()))

	assert.Contains(t, out.String(), "DETECTION HISTORY")
	assert.Contains(t, out.String(), "range 10.0%")
	assert.Contains(t, out.String(), "tightest AAPL (10.0%)")
}

func TestMenus(t *testing.T) {
	s, _ := newSession("5\n\n9\n", nil)

	tf, err := s.ShowTimeframeMenu("1Day")
	require.NoError(t, err)
	assert.Equal(t, "1Hour", tf)

	tf, err = s.ShowTimeframeMenu("1Day")
	require.NoError(t, err)
	assert.Equal(t, "1Day", tf)

	_, err = s.ShowTimeframeMenu("1Day")
	assert.Error(t, err)
}

func TestConfigureFromMenu(t *testing.T) {
	s, out := newSession("5\n1\n5\n6\n", nil)
	require.NoError(t, s.Run(context.Background()))
	assert.Contains(t, out.String(), "Configuration Menu")
	assert.Contains(t, out.String(), "Goodbye!")
}
