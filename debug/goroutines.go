// Package debug holds ticker loggers that are only started with the debug
// flag, to rule out goroutine or memory growth during long runs.
package debug

import (
	"context"
	"log/slog"
	"runtime"
	"runtime/metrics"
	"time"

	"github.com/dustin/go-humanize"
)

// StartGoroutineLogger logs goroutine count and stack usage every interval
// until ctx is done.
func StartGoroutineLogger(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		interval = time.Second
	}
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		samples := []metrics.Sample{{Name: "/sched/goroutines:goroutines"}}
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				logGoroutines(logger, samples)
			}
		}
	}()
}

func logGoroutines(logger *slog.Logger, samples []metrics.Sample) {
	metrics.Read(samples)
	var goroutines uint64
	if samples[0].Value.Kind() == metrics.KindUint64 {
		goroutines = samples[0].Value.Uint64()
	}
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	logger.Info("goroutine-stacks",
		slog.String("category", "debug"),
		slog.Uint64("goroutines", goroutines),
		slog.String("stack_inuse", humanize.IBytes(ms.StackInuse)),
		slog.String("stack_sys", humanize.IBytes(ms.StackSys)),
		slog.String("heap_alloc", humanize.IBytes(ms.HeapAlloc)),
	)
}
