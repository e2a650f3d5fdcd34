package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"chronicle/internal/config"
)

// version is set at build time via -ldflags.
var version = "dev"

const (
	exitFailure     = 1
	exitPartialRun  = 2
	exitInterrupted = 130
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitFailure)
	}
	if cfg.TrustedProjectConfigPath != "" {
		fmt.Fprintf(os.Stderr, "warning: using trusted project config from %s\n", cfg.TrustedProjectConfigPath)
	}

	// Interrupting `chronicle run` cancels in-flight fetches; committed rows stay.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = newRootCmd(cfg).ExecuteContext(ctx)
	stop()
	if err != nil {
		for _, line := range formatCLIError(err) {
			fmt.Fprintln(os.Stderr, line)
		}
	}
	os.Exit(exitCode(ctx, err))
}

// exitCode maps a command result to the process status. A run where only some
// sources failed exits 2 so schedulers can tell it from a run that archived nothing.
func exitCode(ctx context.Context, err error) int {
	if err == nil {
		return 0
	}
	if ctx.Err() != nil {
		return exitInterrupted
	}
	var partial *partialRunError
	if errors.As(err, &partial) && partial.failed < partial.total {
		return exitPartialRun
	}
	return exitFailure
}
