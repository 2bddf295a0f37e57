package internal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	datafeed "github.com/fazecat/contractionscout/Internal/database"
	"github.com/fazecat/contractionscout/Internal/strategy/detection"
	"github.com/fazecat/contractionscout/Internal/utils/config"
	"github.com/fazecat/contractionscout/Internal/utils/scanner"
)

// DetectionReader is the read side of the detection store.
type DetectionReader interface {
	GetDetectionHistory(ctx context.Context, symbol string, limit int) ([]datafeed.DetectionRecord, error)
	GetLatestDetection(ctx context.Context, symbol string) (*datafeed.DetectionRecord, error)
	GetDetectionStats(ctx context.Context, symbol string, lookbackDays int) (*datafeed.DetectionStats, error)
}

type API struct {
	Scanner    *scanner.Scanner
	Store      DetectionReader // nil when no database is configured
	Config     *config.Config
	JWTManager *JWTManager
	Logger     zerolog.Logger
}

type tokenRequest struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

func (api *API) HandleGenerateToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		WriteError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	token, expires, err := api.JWTManager.GenerateToken(req.UserID, req.Email)
	if err != nil {
		api.Logger.Error().Err(err).Msg("token generation failed")
		WriteError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"token":      token,
		"expires_at": expires,
	})
}

func (api *API) HandleGetProfiles(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"default":  api.Config.Global.DefaultProfile,
		"profiles": api.Config.Profiles,
	})
}

// request builds a scan request from ?profile= and ?timeframe=, falling back to the global config.
func (api *API) request(r *http.Request) (scanner.Request, error) {
	profile := r.URL.Query().Get("profile")
	if profile == "" {
		profile = api.Config.Global.DefaultProfile
	}
	cfg, err := api.Config.DetectorConfig(profile)
	if err != nil {
		return scanner.Request{}, err
	}

	timeframe := r.URL.Query().Get("timeframe")
	if timeframe == "" {
		timeframe = api.Config.Global.Timeframe
	}
	if _, err := datafeed.ParseTimeframe(timeframe); err != nil {
		return scanner.Request{}, err
	}

	return scanner.Request{
		Symbol:      strings.ToUpper(chi.URLParam(r, "symbol")),
		Timeframe:   timeframe,
		Profile:     profile,
		Config:      cfg,
		HistoryBars: api.Config.Global.HistoryBars,
	}, nil
}

func (api *API) HandleDetect(w http.ResponseWriter, r *http.Request) {
	req, err := api.request(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := api.Scanner.ScanSymbol(r.Context(), req)
	if err != nil {
		api.writeScanError(w, req.Symbol, err)
		return
	}
	WriteJSON(w, http.StatusOK, res)
}

func (api *API) HandleReplay(w http.ResponseWriter, r *http.Request) {
	req, err := api.request(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := api.Scanner.ReplaySymbol(r.Context(), req)
	if err != nil {
		api.writeScanError(w, req.Symbol, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"report":   report,
		"episodes": report.Episodes(),
	})
}

type scanRow struct {
	Symbol           string  `json:"symbol"`
	Found            bool    `json:"found"`
	ContractionRatio float64 `json:"contraction_ratio"`
	PivotCount       int     `json:"pivot_count"`
	LastClose        float64 `json:"last_close"`
	Analysis         string  `json:"analysis"`
	Stored           bool    `json:"stored"`
}

// HandleScan runs the configured watchlist, or ?symbols=A,B,C when given.
func (api *API) HandleScan(w http.ResponseWriter, r *http.Request) {
	base, err := api.request(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	symbols := api.Config.Global.Watchlist
	if raw := r.URL.Query().Get("symbols"); raw != "" {
		symbols = nil
		for _, s := range strings.Split(raw, ",") {
			if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
				symbols = append(symbols, s)
			}
		}
	}
	if len(symbols) == 0 {
		WriteError(w, http.StatusBadRequest, "No symbols to scan")
		return
	}

	results, err := api.Scanner.ScanWatchlist(r.Context(), symbols, base)
	if err != nil {
		WriteError(w, http.StatusServiceUnavailable, "Scan interrupted")
		return
	}

	rows := make([]scanRow, 0, len(results))
	for _, res := range results {
		c := res.Candidate()
		rows = append(rows, scanRow{
			Symbol:           c.Symbol,
			Found:            c.Found,
			ContractionRatio: c.ContractionRatio,
			PivotCount:       c.PivotCount,
			LastClose:        c.LastClose,
			Analysis:         c.Analysis,
			Stored:           res.Stored,
		})
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"profile":   base.Profile,
		"timeframe": base.Timeframe,
		"found":     len(scanner.Found(results)),
		"results":   rows,
	})
}

func (api *API) writeScanError(w http.ResponseWriter, symbol string, err error) {
	switch {
	case errors.Is(err, datafeed.ErrNoBars):
		WriteError(w, http.StatusNotFound, "No bars for "+symbol)
	case errors.Is(err, detection.ErrInvalidConfig):
		WriteError(w, http.StatusBadRequest, err.Error())
	default:
		api.Logger.Error().Err(err).Str("symbol", symbol).Msg("detection failed")
		WriteError(w, http.StatusBadGateway, "Failed to evaluate "+symbol)
	}
}

type detectionView struct {
	datafeed.DetectionRecord
	Pivots   []detection.PivotPoint `json:"pivots"`
	RangePct decimal.Decimal        `json:"range_pct"`
}

func newDetectionView(rec datafeed.DetectionRecord) detectionView {
	// A stored record with unreadable pivots is still listed, without them.
	pivots, _ := rec.Pivots()
	return detectionView{DetectionRecord: rec, Pivots: pivots, RangePct: rec.RangePercent().Round(2)}
}

func (api *API) storeAvailable(w http.ResponseWriter) bool {
	if api.Store == nil {
		WriteError(w, http.StatusServiceUnavailable, "Detection history is not configured")
		return false
	}
	return true
}

func (api *API) HandleGetDetections(w http.ResponseWriter, r *http.Request) {
	if !api.storeAvailable(w) {
		return
	}
	symbol := strings.ToUpper(r.URL.Query().Get("symbol"))
	limitStr := r.URL.Query().Get("limit")

	limit := 50
	if limitStr != "" {
		parsedLimit, err := strconv.Atoi(limitStr)
		if err == nil && parsedLimit > 0 {
			limit = parsedLimit
		}
	}

	records, err := api.Store.GetDetectionHistory(r.Context(), symbol, limit)
	if err != nil {
		api.Logger.Error().Err(err).Msg("failed to fetch detections")
		WriteError(w, http.StatusInternalServerError, "Failed to fetch detections")
		return
	}

	views := make([]detectionView, 0, len(records))
	for _, rec := range records {
		views = append(views, newDetectionView(rec))
	}
	WriteJSON(w, http.StatusOK, views)
}

func (api *API) HandleLatestDetection(w http.ResponseWriter, r *http.Request) {
	if !api.storeAvailable(w) {
		return
	}
	symbol := strings.ToUpper(chi.URLParam(r, "symbol"))

	rec, err := api.Store.GetLatestDetection(r.Context(), symbol)
	if err != nil {
		api.Logger.Error().Err(err).Str("symbol", symbol).Msg("failed to fetch latest detection")
		WriteError(w, http.StatusInternalServerError, "Failed to fetch detection")
		return
	}
	if rec == nil {
		WriteError(w, http.StatusNotFound, "No detections for "+symbol)
		return
	}
	WriteJSON(w, http.StatusOK, newDetectionView(*rec))
}

func (api *API) HandleDetectionStats(w http.ResponseWriter, r *http.Request) {
	if !api.storeAvailable(w) {
		return
	}
	symbol := strings.ToUpper(r.URL.Query().Get("symbol"))

	days := 30
	if d, err := strconv.Atoi(r.URL.Query().Get("days")); err == nil && d > 0 {
		days = d
	}

	stats, err := api.Store.GetDetectionStats(r.Context(), symbol, days)
	if err != nil {
		api.Logger.Error().Err(err).Msg("failed to compute detection stats")
		WriteError(w, http.StatusInternalServerError, "Failed to compute stats")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"days":  days,
		"stats": stats,
	})
}
