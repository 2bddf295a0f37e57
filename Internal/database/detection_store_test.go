package datafeed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fazecat/contractionscout/Internal/strategy/detection"
)

var storeColumns = []string{
	"id", "symbol", "timeframe", "profile", "open_time", "detected_at",
	"open_price", "high_price", "low_price", "close_price", "contraction_ratio", "pivot_count", "pivots", "created_at",
}

func newMockStore(t *testing.T) (*DetectionStore, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return NewDetectionStore(sqlx.NewDb(mockDB, "postgres"), time.Second), mock
}

func foundResult() detection.Result {
	t0 := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	return detection.Result{
		Found:     true,
		OpenTime:  t0,
		CloseTime: t0.Add(21 * 24 * time.Hour),
		Open:      68,
		High:      116,
		Low:       68,
		Close:     101,
		Pivots: []detection.PivotPoint{
			{BarIndex: 1, Offset: 20, Time: t0, Price: 68},
			{BarIndex: 4, Offset: 17, Time: t0.Add(72 * time.Hour), Price: 116},
			{BarIndex: 21, Offset: 0, Time: t0.Add(21 * 24 * time.Hour), Price: 101},
		},
		ContractionRatio: 1,
	}
}

func TestNewDetectionRecord(t *testing.T) {
	rec, err := NewDetectionRecord("AAPL", "1Day", "standard", foundResult())
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, rec.ID)
	assert.Equal(t, "116", rec.High.String())
	assert.Equal(t, 3, rec.PivotCount)

	pivots, err := rec.Pivots()
	require.NoError(t, err)
	assert.Equal(t, foundResult().Pivots, pivots)
}

func TestNewDetectionRecord_RejectsNotFound(t *testing.T) {
	_, err := NewDetectionRecord("AAPL", "1Day", "standard", detection.Result{Reason: detection.ReasonThresholdUnmet})
	assert.Error(t, err)
}

func TestLogDetection_Inserts(t *testing.T) {
	store, mock := newMockStore(t)
	rec, err := NewDetectionRecord("AAPL", "1Day", "standard", foundResult())
	require.NoError(t, err)
	created := time.Now().UTC()

	mock.ExpectQuery("INSERT INTO contraction_detections").
		WithArgs(sqlmock.AnyArg(), "AAPL", "1Day", "standard", sqlmock.AnyArg(), sqlmock.AnyArg(),
			"68", "116", "68", "101", 1.0, 3, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(created))

	inserted, err := store.LogDetection(context.Background(), &rec)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, created, rec.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLogDetection_DuplicateIsSkipped(t *testing.T) {
	store, mock := newMockStore(t)
	rec, err := NewDetectionRecord("AAPL", "1Day", "standard", foundResult())
	require.NoError(t, err)

	mock.ExpectQuery("INSERT INTO contraction_detections").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}))

	inserted, err := store.LogDetection(context.Background(), &rec)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLogDetection_Error(t *testing.T) {
	store, mock := newMockStore(t)
	rec := DetectionRecord{Symbol: "AAPL"}

	mock.ExpectQuery("INSERT INTO contraction_detections").
		WillReturnError(errors.New("connection reset"))

	_, err := store.LogDetection(context.Background(), &rec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to log detection")
	assert.NotEqual(t, uuid.Nil, rec.ID)
}

func TestGetDetectionHistory(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()
	at := time.Date(2024, 5, 22, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(storeColumns).
		AddRow(id.String(), "AAPL", "1Day", "standard", at.Add(-21*24*time.Hour), at,
			"68", "116", "68", "101.25", 0.8, 6, []byte(`[{"bar_index":1,"offset":20,"time":"2024-05-01T00:00:00Z","price":68}]`), at)
	mock.ExpectQuery("SELECT (.+) FROM contraction_detections").
		WithArgs("AAPL", 2).
		WillReturnRows(rows)

	records, err := store.GetDetectionHistory(context.Background(), "AAPL", 2)
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, id, rec.ID)
	assert.True(t, rec.Close.Equal(decimal.RequireFromString("101.25")))
	assert.Equal(t, 6, rec.PivotCount)
	pivots, err := rec.Pivots()
	require.NoError(t, err)
	require.Len(t, pivots, 1)
	assert.Equal(t, 68.0, pivots[0].Price)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetDetectionHistory_DefaultLimit(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT (.+) FROM contraction_detections").
		WithArgs("", 50).
		WillReturnRows(sqlmock.NewRows(storeColumns))

	records, err := store.GetDetectionHistory(context.Background(), "", 0)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetLatestDetection_None(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT (.+) FROM contraction_detections").
		WithArgs("MSFT").
		WillReturnRows(sqlmock.NewRows(storeColumns))

	rec, err := store.GetLatestDetection(context.Background(), "MSFT")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestGetDetectionStats(t *testing.T) {
	store, mock := newMockStore(t)
	at := time.Now().UTC().Add(-time.Hour)

	rows := sqlmock.NewRows(storeColumns).
		AddRow(uuid.NewString(), "AAPL", "1Day", "standard", at, at, "100", "110", "100", "100", 1.0, 6, []byte(`[]`), at).
		AddRow(uuid.NewString(), "MSFT", "1Day", "standard", at, at.Add(-time.Hour), "50", "51", "49", "50", 0.8, 7, []byte(`[]`), at)
	mock.ExpectQuery("SELECT (.+) FROM contraction_detections").
		WithArgs("", sqlmock.AnyArg()).
		WillReturnRows(rows)

	stats, err := store.GetDetectionStats(context.Background(), "", 30)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.TotalDetections)
	assert.Equal(t, 2, stats.DistinctSymbols)
	assert.InDelta(t, 0.9, stats.AverageRatio, 1e-9)
	assert.Equal(t, 6.5, stats.AveragePivots)
	assert.Equal(t, "7", stats.AverageRangePct.String())
	assert.Equal(t, "4", stats.TightestRangePct.String())
	assert.Equal(t, "MSFT", stats.TightestSymbol)
	require.NotNil(t, stats.LastDetectedAt)
	assert.True(t, stats.LastDetectedAt.Equal(at))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSummarize_Empty(t *testing.T) {
	stats := summarize(nil)
	assert.Equal(t, 0, stats.TotalDetections)
	assert.True(t, stats.AverageRangePct.IsZero())
	assert.Nil(t, stats.LastDetectedAt)
}
