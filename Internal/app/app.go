// Package app wires the feed, cache, store and scanner shared by every entry point.
package app

import (
	"context"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	datafeed "github.com/fazecat/contractionscout/Internal/database"
	"github.com/fazecat/contractionscout/Internal/utils/config"
	"github.com/fazecat/contractionscout/Internal/utils/logging"
	"github.com/fazecat/contractionscout/Internal/utils/scanner"
	"github.com/fazecat/contractionscout/Internal/utils/telemetry"
)

type Options struct {
	// CSVDir replaces the Alpaca feed with <dir>/<SYMBOL>.csv files.
	CSVDir string
	// Registry receives the collectors; nil leaves them unregistered.
	Registry prometheus.Registerer
	// NoStore skips the database even when one is reachable.
	NoStore bool
}

type Services struct {
	Config  *config.Config
	Metrics *telemetry.Metrics
	Feed    datafeed.BarFeed
	Store   *datafeed.DetectionStore // nil without a database
	Scanner *scanner.Scanner

	db    *sqlx.DB
	redis *redis.Client
}

// Build connects the configured dependencies. Only a missing bar feed is fatal:
// Redis and Postgres failures are logged and the services run without them.
func Build(ctx context.Context, cfg *config.Config, opts Options) (*Services, error) {
	s := &Services{Config: cfg, Metrics: telemetry.NewMetrics(opts.Registry)}

	if opts.CSVDir != "" {
		s.Feed = datafeed.NewCSVFeed(opts.CSVDir)
	} else {
		feed, err := datafeed.NewAlpacaFeed(datafeed.AlpacaFeedConfig{
			DataFeed:          cfg.Feed.DataFeed,
			AssetType:         cfg.Global.AssetType,
			RequestsPerMinute: cfg.Feed.RequestsPerMinute,
			MaxFailures:       cfg.Feed.Breaker.MaxFailures,
			OpenTimeout:       cfg.Feed.Breaker.OpenTimeout,
		}, s.Metrics, logging.Component("feed"))
		if err != nil {
			return nil, err
		}
		s.Feed = feed

		if cfg.Cache.Enabled {
			client, err := datafeed.NewRedisClient(ctx, datafeed.CacheConfig{
				Address:  cfg.Cache.Address,
				Password: os.Getenv("REDIS_PASSWORD"),
				DB:       cfg.Cache.DB,
			})
			if err != nil {
				log.Warn().Err(err).Msg("redis unavailable at startup, cache starts degraded")
			}
			s.redis = client
			s.Feed = datafeed.NewCachedFeed(client, s.Feed, cfg.Cache.TTL, s.Metrics, logging.Component("cache"))
		}
	}

	scanOpts := []scanner.Option{
		scanner.WithMetrics(s.Metrics),
		scanner.WithLogger(logging.Component("scanner")),
	}
	if !opts.NoStore {
		db, err := datafeed.OpenDatabase(ctx, datafeed.DatabaseConfigFromEnv())
		if err != nil {
			log.Warn().Err(err).Msg("database unavailable, detections will not be stored")
		} else {
			s.db = db
			s.Store = datafeed.NewDetectionStore(db, 0)
			scanOpts = append(scanOpts, scanner.WithSink(s.Store))
		}
	}
	s.Scanner = scanner.New(s.Feed, scanOpts...)
	return s, nil
}

// Request is the scan request for profile on the configured timeframe.
// An empty profile selects the default one.
func (s *Services) Request(symbol, profile string) (scanner.Request, error) {
	if profile == "" {
		profile = s.Config.Global.DefaultProfile
	}
	cfg, err := s.Config.DetectorConfig(profile)
	if err != nil {
		return scanner.Request{}, err
	}
	return scanner.Request{
		Symbol:      symbol,
		Timeframe:   s.Config.Global.Timeframe,
		Profile:     profile,
		Config:      cfg,
		HistoryBars: s.Config.Global.HistoryBars,
	}, nil
}

func (s *Services) Close() {
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close database")
		}
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close redis")
		}
	}
}
