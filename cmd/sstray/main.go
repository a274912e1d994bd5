// Package main is the entry point for the sstray CLI.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/xabinapal/sstray/internal/cli"
)

func main() {
	// Create a context that cancels on interrupt signals
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	app := cli.New()
	if err := app.Execute(ctx); err != nil {
		cli.PrintError(os.Stderr, err)
		cancel()
		os.Exit(cli.ExitCode(err))
	}
}
