package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"rdcatalog/cmd/portal-cli/cmd"
	"rdcatalog/lib/telemetry"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// running without a telemetry.json5 nearby is the normal case
	// for the CLI
	tele, err := telemetry.SetupFromEnv(ctx, "portal-cli")
	if err == nil {
		defer tele.Shutdown(context.Background())
	}

	cmd.Execute(ctx)
}
