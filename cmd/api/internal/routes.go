package internal

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires every route. Detection endpoints require a bearer token.
func NewRouter(api *API, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestLogger(api.Logger))
	r.Use(middleware.Recoverer)
	r.Use(CorsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, "healthy")
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Post("/api/token", api.HandleGenerateToken)
	r.Get("/api/profiles", api.HandleGetProfiles)

	// History
	r.Get("/api/detections", api.HandleGetDetections)
	r.Get("/api/detections/stats", api.HandleDetectionStats)
	r.Get("/api/detections/{symbol}/latest", api.HandleLatestDetection)

	r.Group(func(r chi.Router) {
		r.Use(JWTAuthMiddleware(api.JWTManager))
		r.Get("/api/detect/{symbol}", api.HandleDetect)
		r.Get("/api/replay/{symbol}", api.HandleReplay)
		r.Get("/api/scan", api.HandleScan)
	})

	return r
}
