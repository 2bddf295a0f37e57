package datafeed

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/fazecat/contractionscout/Internal/strategy/detection"
)

// DetectionRecord is one persisted Found result.
type DetectionRecord struct {
	ID               uuid.UUID       `db:"id" json:"id"`
	Symbol           string          `db:"symbol" json:"symbol"`
	Timeframe        string          `db:"timeframe" json:"timeframe"`
	Profile          string          `db:"profile" json:"profile"`
	OpenTime         time.Time       `db:"open_time" json:"open_time"`
	DetectedAt       time.Time       `db:"detected_at" json:"detected_at"`
	Open             decimal.Decimal `db:"open_price" json:"open"`
	High             decimal.Decimal `db:"high_price" json:"high"`
	Low              decimal.Decimal `db:"low_price" json:"low"`
	Close            decimal.Decimal `db:"close_price" json:"close"`
	ContractionRatio float64         `db:"contraction_ratio" json:"contraction_ratio"`
	PivotCount       int             `db:"pivot_count" json:"pivot_count"`
	PivotsJSON       []byte          `db:"pivots" json:"-"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
}

// NewDetectionRecord converts a Found result for storage.
func NewDetectionRecord(symbol, timeframe, profile string, res detection.Result) (DetectionRecord, error) {
	if !res.Found {
		return DetectionRecord{}, fmt.Errorf("result for %s is not a detection", symbol)
	}
	pivots, err := json.Marshal(res.Pivots)
	if err != nil {
		return DetectionRecord{}, fmt.Errorf("failed to marshal pivots: %w", err)
	}
	return DetectionRecord{
		ID:               uuid.New(),
		Symbol:           symbol,
		Timeframe:        timeframe,
		Profile:          profile,
		OpenTime:         res.OpenTime,
		DetectedAt:       res.CloseTime,
		Open:             decimal.NewFromFloat(res.Open),
		High:             decimal.NewFromFloat(res.High),
		Low:              decimal.NewFromFloat(res.Low),
		Close:            decimal.NewFromFloat(res.Close),
		ContractionRatio: res.ContractionRatio,
		PivotCount:       len(res.Pivots),
		PivotsJSON:       pivots,
	}, nil
}

// Pivots decodes the stored zigzag.
func (r DetectionRecord) Pivots() ([]detection.PivotPoint, error) {
	var pivots []detection.PivotPoint
	if len(r.PivotsJSON) == 0 {
		return pivots, nil
	}
	if err := json.Unmarshal(r.PivotsJSON, &pivots); err != nil {
		return nil, fmt.Errorf("failed to decode pivots of %s: %w", r.ID, err)
	}
	return pivots, nil
}

// RangePercent is the envelope height as a percentage of the close.
func (r DetectionRecord) RangePercent() decimal.Decimal {
	if r.Close.IsZero() {
		return decimal.Zero
	}
	return r.High.Sub(r.Low).Div(r.Close).Mul(decimal.NewFromInt(100))
}

type DetectionStore struct {
	db      *sqlx.DB
	timeout time.Duration
}

func NewDetectionStore(db *sqlx.DB, timeout time.Duration) *DetectionStore {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &DetectionStore{db: db, timeout: timeout}
}

const detectionColumns = `id, symbol, timeframe, profile, open_time, detected_at,
	open_price, high_price, low_price, close_price, contraction_ratio, pivot_count, pivots, created_at`

// LogDetection inserts rec. A detection already stored for the same symbol,
// timeframe, profile and bar is skipped and reported with inserted=false.
func (s *DetectionStore) LogDetection(ctx context.Context, rec *DetectionRecord) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}

	query := `
		INSERT INTO contraction_detections (id, symbol, timeframe, profile, open_time, detected_at,
			open_price, high_price, low_price, close_price, contraction_ratio, pivot_count, pivots)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (symbol, timeframe, profile, detected_at) DO NOTHING
		RETURNING created_at`

	err := s.db.QueryRowxContext(ctx, query,
		rec.ID, rec.Symbol, rec.Timeframe, rec.Profile, rec.OpenTime, rec.DetectedAt,
		rec.Open.String(), rec.High.String(), rec.Low.String(), rec.Close.String(),
		rec.ContractionRatio, rec.PivotCount, rec.PivotsJSON).
		Scan(&rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to log detection: %w", err)
	}

	log.Info().
		Str("symbol", rec.Symbol).
		Str("timeframe", rec.Timeframe).
		Str("profile", rec.Profile).
		Float64("contraction_ratio", rec.ContractionRatio).
		Time("detected_at", rec.DetectedAt).
		Msg("detection stored")
	return true, nil
}

// GetDetectionHistory returns the newest detections first. An empty symbol
// matches every symbol.
func (s *DetectionStore) GetDetectionHistory(ctx context.Context, symbol string, limit int) ([]DetectionRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + detectionColumns + `
		FROM contraction_detections
		WHERE ($1 = '' OR symbol = $1)
		ORDER BY detected_at DESC
		LIMIT $2`

	var records []DetectionRecord
	if err := s.db.SelectContext(ctx, &records, query, symbol, limit); err != nil {
		return nil, fmt.Errorf("failed to fetch detection history: %w", err)
	}
	return records, nil
}

// GetLatestDetection returns nil when the symbol has no detections.
func (s *DetectionStore) GetLatestDetection(ctx context.Context, symbol string) (*DetectionRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := `SELECT ` + detectionColumns + `
		FROM contraction_detections
		WHERE symbol = $1
		ORDER BY detected_at DESC
		LIMIT 1`

	var rec DetectionRecord
	err := s.db.QueryRowxContext(ctx, query, symbol).StructScan(&rec)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch latest detection for %s: %w", symbol, err)
	}
	return &rec, nil
}

type DetectionStats struct {
	TotalDetections  int             `json:"total_detections"`
	DistinctSymbols  int             `json:"distinct_symbols"`
	AverageRatio     float64         `json:"average_ratio"`
	AveragePivots    float64         `json:"average_pivots"`
	AverageRangePct  decimal.Decimal `json:"average_range_pct"`
	TightestRangePct decimal.Decimal `json:"tightest_range_pct"`
	TightestSymbol   string          `json:"tightest_symbol"`
	LastDetectedAt   *time.Time      `json:"last_detected_at,omitempty"`
}

// GetDetectionStats summarizes detections of the last lookbackDays days.
func (s *DetectionStore) GetDetectionStats(ctx context.Context, symbol string, lookbackDays int) (*DetectionStats, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cutoff := time.Now().AddDate(0, 0, -lookbackDays)
	query := `SELECT ` + detectionColumns + `
		FROM contraction_detections
		WHERE ($1 = '' OR symbol = $1) AND detected_at >= $2
		ORDER BY detected_at DESC`

	var records []DetectionRecord
	if err := s.db.SelectContext(ctx, &records, query, symbol, cutoff); err != nil {
		return nil, fmt.Errorf("failed to fetch detections for stats: %w", err)
	}
	return summarize(records), nil
}

func summarize(records []DetectionRecord) *DetectionStats {
	stats := &DetectionStats{
		AverageRangePct:  decimal.Zero,
		TightestRangePct: decimal.Zero,
	}
	if len(records) == 0 {
		return stats
	}

	symbols := make(map[string]struct{})
	totalRange := decimal.Zero
	ratioSum, pivotSum := 0.0, 0
	for i, rec := range records {
		symbols[rec.Symbol] = struct{}{}
		ratioSum += rec.ContractionRatio
		pivotSum += rec.PivotCount

		rng := rec.RangePercent()
		totalRange = totalRange.Add(rng)
		if i == 0 || rng.LessThan(stats.TightestRangePct) {
			stats.TightestRangePct = rng
			stats.TightestSymbol = rec.Symbol
		}
		if stats.LastDetectedAt == nil || rec.DetectedAt.After(*stats.LastDetectedAt) {
			t := rec.DetectedAt
			stats.LastDetectedAt = &t
		}
	}

	n := len(records)
	stats.TotalDetections = n
	stats.DistinctSymbols = len(symbols)
	stats.AverageRatio = ratioSum / float64(n)
	stats.AveragePivots = float64(pivotSum) / float64(n)
	stats.AverageRangePct = totalRange.Div(decimal.NewFromInt(int64(n))).Round(4)
	return stats
}
