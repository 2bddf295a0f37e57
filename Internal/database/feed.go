package datafeed

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fazecat/contractionscout/Internal/types"
)

type Bar = types.Bar

var ErrNoBars = errors.New("no bars returned")

// BarFeed returns up to limit closed bars, oldest first.
type BarFeed interface {
	GetBars(ctx context.Context, symbol, timeframe string, limit int) ([]Bar, error)
}

// Timeframe is a parsed bar size such as 15Min or 1Day.
type Timeframe struct {
	N    int
	Unit string
}

var timeframeUnits = map[string]time.Duration{
	"Min":   time.Minute,
	"Hour":  time.Hour,
	"Day":   24 * time.Hour,
	"Week":  7 * 24 * time.Hour,
	"Month": 30 * 24 * time.Hour,
}

func ParseTimeframe(tf string) (Timeframe, error) {
	tf = strings.TrimSpace(tf)
	i := 0
	for i < len(tf) && tf[i] >= '0' && tf[i] <= '9' {
		i++
	}
	n := 1
	if i > 0 {
		v, err := strconv.Atoi(tf[:i])
		if err != nil || v <= 0 {
			return Timeframe{}, fmt.Errorf("invalid timeframe %q", tf)
		}
		n = v
	}
	unit := tf[i:]
	if _, ok := timeframeUnits[unit]; !ok {
		return Timeframe{}, fmt.Errorf("invalid timeframe %q: unit must be one of Min, Hour, Day, Week, Month", tf)
	}
	return Timeframe{N: n, Unit: unit}, nil
}

func (t Timeframe) String() string {
	return strconv.Itoa(t.N) + t.Unit
}

func (t Timeframe) Duration() time.Duration {
	return time.Duration(t.N) * timeframeUnits[t.Unit]
}

// Lookback is how far back to request so that limit bars survive market
// closures. Intraday sessions cover roughly a quarter of the clock.
func (t Timeframe) Lookback(limit int) time.Duration {
	d := t.Duration() * time.Duration(limit+2)
	switch t.Unit {
	case "Min", "Hour":
		return d * 4
	case "Day":
		return d*7/5 + 10*24*time.Hour
	}
	return d
}

// newest keeps the last limit bars of an oldest-first slice.
func newest(bars []Bar, limit int) []Bar {
	if limit > 0 && len(bars) > limit {
		return bars[len(bars)-limit:]
	}
	return bars
}
