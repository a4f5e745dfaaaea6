package telemetry

import (
	"log/slog"
	"os"
)

// InitSlog installs the default text logger. Verbose mode enables debug
// output, including the per-request snapshot ids logged by
// restyutil-instrumented clients.
func InitSlog(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
}
