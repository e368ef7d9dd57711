package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// cmdContext returns a context cancelled on SIGINT/SIGTERM so long-running
// commands shut down cleanly.
func cmdContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
