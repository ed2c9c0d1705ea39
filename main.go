package main

import (
	"context"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/llehouerou/scrubber/internal/config"
)

func main() {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
	})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", "err", err)
	}

	runner := NewRunner(RunnerOpts{
		Config: cfg,
		Logger: logger,
	})

	app := &cli.Command{
		Name:     "scrubber",
		Usage:    "Inspect and correct Last.fm play history",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		logger.Fatal(err)
	}
}
