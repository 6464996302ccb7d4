// Command datasheet processes product datasheets from the command line.
//
// It shares configuration, storage and processing with the HTTP server, so a
// run started here shows up in the server's listing and vice versa.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
)

func main() {
	// .env values never override variables already set in the environment
	_ = godotenv.Load()

	// An interrupted run is left pending and can be processed again with --run.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
