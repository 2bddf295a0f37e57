package datafeed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

var csvTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ReadBarsCSV parses a header row naming time, open, high, low, close and an
// optional volume column. Rows may be in any order; bars come back oldest first.
func ReadBarsCSV(r io.Reader) ([]Bar, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	cols, err := csvColumns(header)
	if err != nil {
		return nil, err
	}

	var bars []Bar
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
		bar, err := parseCSVBar(rec, cols)
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
		bars = append(bars, bar)
	}

	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })
	return bars, nil
}

func csvColumns(header []string) (map[string]int, error) {
	aliases := map[string]string{
		"timestamp": "time", "time": "time", "date": "time", "datetime": "time", "t": "time",
		"open": "open", "o": "open",
		"high": "high", "h": "high",
		"low": "low", "l": "low",
		"close": "close", "c": "close",
		"volume": "volume", "v": "volume", "vol": "volume",
	}
	cols := make(map[string]int)
	for i, name := range header {
		if canonical, ok := aliases[strings.ToLower(strings.TrimSpace(name))]; ok {
			cols[canonical] = i
		}
	}
	for _, required := range []string{"time", "open", "high", "low", "close"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("csv header missing %s column", required)
		}
	}
	return cols, nil
}

func parseCSVBar(rec []string, cols map[string]int) (Bar, error) {
	field := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	ts, err := parseCSVTime(field("time"))
	if err != nil {
		return Bar{}, err
	}
	bar := Bar{Timestamp: ts}
	for _, p := range []struct {
		name string
		dst  *float64
	}{
		{"open", &bar.Open}, {"high", &bar.High}, {"low", &bar.Low}, {"close", &bar.Close},
	} {
		v, err := strconv.ParseFloat(field(p.name), 64)
		if err != nil {
			return Bar{}, fmt.Errorf("invalid %s %q", p.name, field(p.name))
		}
		*p.dst = v
	}
	if s := field("volume"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Bar{}, fmt.Errorf("invalid volume %q", s)
		}
		bar.Volume = v
	}
	if bar.High < bar.Low {
		return Bar{}, fmt.Errorf("high %.4f below low %.4f", bar.High, bar.Low)
	}
	return bar, nil
}

func parseCSVTime(s string) (time.Time, error) {
	for _, layout := range csvTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

// WriteBarsCSV writes bars with the header ReadBarsCSV expects.
func WriteBarsCSV(w io.Writer, bars []Bar) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"timestamp", "open", "high", "low", "close", "volume"}); err != nil {
		return err
	}
	for _, b := range bars {
		if err := cw.Write([]string{
			b.Timestamp.UTC().Format(time.RFC3339),
			formatF(b.Open), formatF(b.High), formatF(b.Low), formatF(b.Close), formatF(b.Volume),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatF(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

// CSVFeed serves bars from <dir>/<SYMBOL>.csv, ignoring the timeframe.
type CSVFeed struct {
	dir string
}

func NewCSVFeed(dir string) *CSVFeed {
	return &CSVFeed{dir: dir}
}

func (f *CSVFeed) GetBars(ctx context.Context, symbol, timeframe string, limit int) ([]Bar, error) {
	name := strings.ToUpper(strings.ReplaceAll(symbol, "/", "")) + ".csv"
	bars, err := LoadBarsCSV(filepath.Join(f.dir, name))
	if err != nil {
		return nil, err
	}
	bars = newest(bars, limit)
	if len(bars) == 0 {
		return nil, fmt.Errorf("%s: %w", symbol, ErrNoBars)
	}
	return bars, nil
}

// LoadBarsCSV reads a bar file from disk.
func LoadBarsCSV(path string) ([]Bar, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	bars, err := ReadBarsCSV(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return bars, nil
}
