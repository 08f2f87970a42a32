package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"

	"github.com/stratadb/strata/internal/cli"
)

func main() {
	// Flags are parsed by cobra later; peek at verbose early so the
	// logger is configured before any command runs.
	level := slog.LevelInfo
	for _, arg := range os.Args[1:] {
		if arg == "-v" || arg == "--verbose" {
			level = slog.LevelDebug
		}
	}
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
	})))

	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		slog.Error(err.Error())
		os.Exit(cli.GetExitCode(err))
	}
}
