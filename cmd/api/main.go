package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"github.com/fazecat/contractionscout/Internal/app"
	"github.com/fazecat/contractionscout/Internal/utils/config"
	"github.com/fazecat/contractionscout/Internal/utils/logging"
	"github.com/fazecat/contractionscout/cmd/api/internal"
)

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../../.env")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Pretty)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	services, err := app.Build(ctx, cfg, app.Options{Registry: reg})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize services")
	}
	defer services.Close()

	api := &internal.API{
		Scanner:    services.Scanner,
		Config:     cfg,
		JWTManager: internal.NewJWTManager(cfg.API.TokenTTL),
		Logger:     logging.Component("api"),
	}
	if services.Store != nil {
		api.Store = services.Store
	}
	if api.JWTManager.UsingDefaultSecret() {
		log.Warn().Msg("JWT_SECRET_KEY not set, using the development secret")
	}

	srv := &http.Server{
		Addr:              cfg.API.Addr,
		Handler:           internal.NewRouter(api, reg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("server shutdown failed")
		}
	}()

	logger.Info().Str("addr", cfg.API.Addr).Msg("starting API server")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server failed")
	}
}
