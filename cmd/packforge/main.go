// Package main is the entry point for the packforge CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/packforge/packforge/internal/cli"
)

// Version information set by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// gracePeriod bounds how long a build or release may keep winding down
// after the first interrupt before the process force-exits.
const gracePeriod = 30 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	interrupts := make(chan os.Signal, 2)
	signal.Notify(interrupts, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	finished := make(chan struct{})
	defer close(finished)

	go func() {
		sig := <-interrupts
		fmt.Fprintf(os.Stderr, "\nReceived %v, finishing current step (interrupt again to force quit)\n", sig)
		cancel()

		select {
		case <-finished:
		case <-time.After(gracePeriod):
			fmt.Fprintf(os.Stderr, "\nShutdown grace period of %v exceeded, forcing exit\n", gracePeriod)
			os.Exit(1)
		case sig = <-interrupts:
			fmt.Fprintf(os.Stderr, "\nReceived %v again, forcing exit\n", sig)
			os.Exit(1)
		}
	}()

	cli.SetVersionInfo(version, commit, date)

	err := cli.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	if ctx.Err() != nil {
		fmt.Fprintln(os.Stderr, "Canceled")
		return 130
	}
	// cobra runs with SilenceErrors, so the failure surfaces here.
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return 1
}
