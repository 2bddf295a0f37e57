package detection

import (
	"math/rand"
	"time"

	"github.com/fazecat/contractionscout/Internal/types"
)

var fixtureStart = time.Date(2024, 3, 4, 14, 30, 0, 0, time.UTC)

// flatWindow builds zero-range bars at the given closes around a constant
// baseline of 100 with volatility 1, so a run is significant once its extreme
// close clears 100 +/- 0.5 under the default delta.
func flatWindow(closes ...float64) Window {
	w := Window{}
	for i, c := range closes {
		w.Bars = append(w.Bars, types.Bar{
			Timestamp: fixtureStart.Add(time.Duration(i) * time.Hour),
			Open:      c,
			High:      c,
			Low:       c,
			Close:     c,
			Volume:    1000,
		})
		w.Baseline = append(w.Baseline, 100)
		w.Volatility = append(w.Volatility, 1)
	}
	return w
}

func fixtureConfig(scanLength, overscanLength int) Config {
	cfg := DefaultConfig()
	cfg.ScanLength = scanLength
	cfg.OverscanLength = overscanLength
	return cfg
}

// contractingCloses: two overscan bars then five runs whose swings halve
// 48, 24, 12, 6, 3 with the last high on the newest bar.
func contractingCloses() []float64 {
	return []float64{
		80, 68,
		101, 108, 116, 110, 103,
		97, 92, 94, 98,
		101, 104, 102,
		99, 98, 99.2,
		100.4, 100.6, 100.8, 100.9, 101,
	}
}

// widening swings 1, 5, 12, 29, 65.
func wideningCloses() []float64 {
	return []float64{
		101.5, 101.2,
		101, 102, 101.5,
		98, 97, 98.5,
		103, 109, 105,
		95, 80, 90,
		105, 120, 145,
	}
}

// randomWalkBars is a deterministic noisy walk used for property checks.
func randomWalkBars(n int, seed int64) []types.Bar {
	rng := rand.New(rand.NewSource(seed))
	bars := make([]types.Bar, n)
	price := 100.0
	for i := range bars {
		open := price
		price += rng.NormFloat64() * 1.5
		if price < 5 {
			price = 5
		}
		hi := open
		lo := price
		if price > open {
			hi, lo = price, open
		}
		bars[i] = types.Bar{
			Timestamp: fixtureStart.Add(time.Duration(i) * 15 * time.Minute),
			Open:      open,
			High:      hi + rng.Float64(),
			Low:       lo - rng.Float64(),
			Close:     price,
			Volume:    float64(1000 + rng.Intn(500)),
		}
	}
	return bars
}
