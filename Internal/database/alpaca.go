package datafeed

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/fazecat/contractionscout/Internal/utils/telemetry"
)

type stockBarsClient interface {
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
}

type cryptoBarsClient interface {
	GetCryptoBars(symbol string, req marketdata.GetCryptoBarsRequest) ([]marketdata.CryptoBar, error)
}

type AlpacaFeedConfig struct {
	DataFeed          string
	AssetType         string
	RequestsPerMinute int
	MaxFailures       uint32
	OpenTimeout       time.Duration
}

// AlpacaFeed fetches bars from the Alpaca market data API behind a rate
// limiter and a circuit breaker.
type AlpacaFeed struct {
	stocks  stockBarsClient
	crypto  cryptoBarsClient
	cfg     AlpacaFeedConfig
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	metrics *telemetry.Metrics
	logger  zerolog.Logger
	now     func() time.Time
}

// NewAlpacaFeed builds clients from ALPACA_API_KEY and ALPACA_API_SECRET.
func NewAlpacaFeed(cfg AlpacaFeedConfig, metrics *telemetry.Metrics, logger zerolog.Logger) (*AlpacaFeed, error) {
	apiKey := os.Getenv("ALPACA_API_KEY")
	secretKey := os.Getenv("ALPACA_API_SECRET")
	if apiKey == "" || secretKey == "" {
		return nil, fmt.Errorf("ALPACA_API_KEY and ALPACA_API_SECRET must be set")
	}

	// one client serves both the stock and crypto bar endpoints
	client := marketdata.NewClient(marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: secretKey,
	})
	return newAlpacaFeed(client, client, cfg, metrics, logger), nil
}

func newAlpacaFeed(stocks stockBarsClient, crypto cryptoBarsClient, cfg AlpacaFeedConfig, metrics *telemetry.Metrics, logger zerolog.Logger) *AlpacaFeed {
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 180
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.DataFeed == "" {
		cfg.DataFeed = "iex"
	}

	f := &AlpacaFeed{
		stocks:  stocks,
		crypto:  crypto,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1),
		metrics: metrics,
		logger:  logger.With().Str("component", "alpaca_feed").Logger(),
		now:     time.Now,
	}
	f.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "alpaca-bars",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			f.logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		},
	})
	return f
}

// GetBars returns the newest limit closed bars for symbol, oldest first.
func (f *AlpacaFeed) GetBars(ctx context.Context, symbol, timeframe string, limit int) ([]Bar, error) {
	tf, err := ParseTimeframe(timeframe)
	if err != nil {
		return nil, err
	}
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	end := f.now().UTC()
	start := end.Add(-tf.Lookback(limit))

	out, err := f.breaker.Execute(func() (interface{}, error) {
		if f.isCrypto(symbol) {
			return f.cryptoBars(symbol, tf, start, end)
		}
		return f.stockBars(symbol, tf, start, end)
	})
	f.metrics.ObserveFeed("alpaca", err)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s bars for %s: %w", timeframe, symbol, err)
	}

	bars := newest(out.([]Bar), limit)
	if len(bars) == 0 {
		return nil, fmt.Errorf("%s %s: %w", symbol, timeframe, ErrNoBars)
	}
	f.logger.Debug().Str("symbol", symbol).Str("timeframe", timeframe).Int("bars", len(bars)).Msg("bars received")
	return bars, nil
}

func (f *AlpacaFeed) isCrypto(symbol string) bool {
	return f.cfg.AssetType == "crypto" || strings.Contains(symbol, "/")
}

func (f *AlpacaFeed) stockBars(symbol string, tf Timeframe, start, end time.Time) ([]Bar, error) {
	raw, err := f.stocks.GetBars(symbol, marketdata.GetBarsRequest{
		TimeFrame:  marketdata.NewTimeFrame(tf.N, marketdata.TimeFrameUnit(tf.Unit)),
		Adjustment: marketdata.Adjustment("split"),
		Start:      start,
		End:        end,
		Feed:       marketdata.Feed(f.cfg.DataFeed),
	})
	if err != nil {
		return nil, err
	}
	bars := make([]Bar, 0, len(raw))
	for _, b := range raw {
		bars = append(bars, Bar{
			Timestamp: b.Timestamp,
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    float64(b.Volume),
		})
	}
	return bars, nil
}

func (f *AlpacaFeed) cryptoBars(symbol string, tf Timeframe, start, end time.Time) ([]Bar, error) {
	raw, err := f.crypto.GetCryptoBars(symbol, marketdata.GetCryptoBarsRequest{
		TimeFrame: marketdata.NewTimeFrame(tf.N, marketdata.TimeFrameUnit(tf.Unit)),
		Start:     start,
		End:       end,
	})
	if err != nil {
		return nil, err
	}
	bars := make([]Bar, 0, len(raw))
	for _, b := range raw {
		bars = append(bars, Bar{
			Timestamp: b.Timestamp,
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    float64(b.Volume),
		})
	}
	return bars, nil
}

// BreakerState reports the circuit breaker state for health output.
func (f *AlpacaFeed) BreakerState() string {
	return f.breaker.State().String()
}
