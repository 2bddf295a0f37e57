package datafeed

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string

	MaxOpenConns int
	QueryTimeout time.Duration
}

// DatabaseConfigFromEnv reads DB_* variables. DB_PASSWORD has no default.
func DatabaseConfigFromEnv() DatabaseConfig {
	return DatabaseConfig{
		Host:         getEnvOrDefault("DB_HOST", "localhost"),
		Port:         getEnvOrDefault("DB_PORT", "5432"),
		User:         getEnvOrDefault("DB_USER", "postgres"),
		Password:     os.Getenv("DB_PASSWORD"),
		DBName:       getEnvOrDefault("DB_NAME", "contractionscout"),
		SSLMode:      getEnvOrDefault("DB_SSLMODE", "disable"),
		MaxOpenConns: 10,
		QueryTimeout: 10 * time.Second,
	}
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// OpenDatabase connects, pings and makes sure the schema exists.
func OpenDatabase(ctx context.Context, cfg DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxOpenConns / 2)
	}
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := HealthCheck(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	if err := InitSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return db, nil
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS contraction_detections (
	id UUID PRIMARY KEY,
	symbol TEXT NOT NULL,
	timeframe TEXT NOT NULL,
	profile TEXT NOT NULL,
	open_time TIMESTAMPTZ NOT NULL,
	detected_at TIMESTAMPTZ NOT NULL,
	open_price NUMERIC NOT NULL,
	high_price NUMERIC NOT NULL,
	low_price NUMERIC NOT NULL,
	close_price NUMERIC NOT NULL,
	contraction_ratio DOUBLE PRECISION NOT NULL,
	pivot_count INTEGER NOT NULL,
	pivots JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (symbol, timeframe, profile, detected_at)
);

CREATE INDEX IF NOT EXISTS idx_contraction_detections_symbol ON contraction_detections(symbol);
CREATE INDEX IF NOT EXISTS idx_contraction_detections_detected_at ON contraction_detections(detected_at);
`

func InitSchema(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, schemaSQL)
	return err
}

func HealthCheck(ctx context.Context, db *sqlx.DB) error {
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
