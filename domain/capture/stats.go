package capture

import (
	"time"
)

// SourceStats summarises frame acquisition for instrumentation.
type SourceStats struct {
	Grabs      uint64
	CacheHits  uint64
	Errors     uint64
	AvgGrab    time.Duration
	LastGrab   time.Time
	CachedRect int
	// process-wide raw buffer pool counters
	PoolReused uint64
	PoolFresh  uint64
}
