package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"gtfs-segments/internal/config"

	_ "time/tzdata"
)

func main() {
	if os.Getenv("LOG_FORMAT") != "JSON" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	if os.Getenv("DEBUG") == "YES" {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	} else {
		log.Logger = log.Logger.Level(zerolog.InfoLevel)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Root context with cancellation on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app := &cli.App{
		Name:        "segments",
		Usage:       "GTFS segment catalogue and flow/speed indicators",
		Description: "Builds the unique stop-to-stop segments of a GTFS network and counts the scheduled passages and speeds on each of them for a service day",

		Commands: []*cli.Command{
			catalogueCommand(cfg),
			indicatorsCommand(cfg),
			importStatusCommand(cfg),
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Fatal().Err(err).Send()
	}
}
