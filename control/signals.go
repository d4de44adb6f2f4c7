package control

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// WatchSignals requests stop on SIGINT or SIGTERM. The returned func
// releases the signal handler.
func WatchSignals(ctx context.Context, ctl RunControl, logger *slog.Logger) (release func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		select {
		case sig := <-ch:
			if logger != nil {
				logger.Info("signal received, stopping", "category", "control", "signal", sig.String())
			}
			ctl.Stop()
		case <-ctx.Done():
		case <-done:
		}
	}()
	return func() {
		signal.Stop(ch)
		close(done)
	}
}
