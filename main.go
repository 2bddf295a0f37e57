package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/fazecat/contractionscout/Internal/app"
	"github.com/fazecat/contractionscout/Internal/utils/config"
	"github.com/fazecat/contractionscout/Internal/utils/logging"
	"github.com/fazecat/contractionscout/interactive"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using the environment")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Pretty)

	ctx := context.Background()

	services, err := app.Build(ctx, cfg, app.Options{})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize services")
	}
	defer services.Close()

	session := interactive.NewSession(cfg, services.Scanner, nil, os.Stdin, os.Stdout)
	if services.Store != nil {
		session.History = services.Store
	}
	session.Logger = logging.Component("menu")

	fmt.Printf("Timeframe %s, %d symbols on the watchlist, profile %s\n",
		cfg.Global.Timeframe, len(cfg.Global.Watchlist), cfg.Global.DefaultProfile)
	if err := session.Run(ctx); err != nil {
		log.Error().Err(err).Msg("menu stopped")
	}
}
