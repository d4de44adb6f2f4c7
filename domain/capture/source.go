package capture

import (
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const frameCacheSize = 16

// SourceOptions configures a CachedSource.
type SourceOptions struct {
	// WindowTitle binds the capture area to a window when non-empty.
	WindowTitle string
	// CacheTTL keeps frames per rectangle for this long; 0 disables caching.
	CacheTTL time.Duration
	// WindowRect overrides the platform window lookup (tests).
	WindowRect func(title string) (image.Rectangle, error)
}

// CachedSource turns raw grabs into grayscale frames. Frames are cached per
// absolute rectangle so several references probed in one poll share a grab.
type CachedSource struct {
	grabber Grabber
	opts    SourceOptions
	logger  *slog.Logger
	cache   *expirable.LRU[image.Rectangle, *Frame]

	areaMu sync.Mutex
	area   *image.Rectangle

	grabs     atomic.Uint64
	hits      atomic.Uint64
	errors    atomic.Uint64
	grabNanos atomic.Uint64
	lastGrab  atomic.Int64
}

// NewCachedSource constructs a source over grabber.
func NewCachedSource(grabber Grabber, opts SourceOptions, logger *slog.Logger) *CachedSource {
	if opts.WindowRect == nil {
		opts.WindowRect = WindowRect
	}
	s := &CachedSource{grabber: grabber, opts: opts, logger: logger}
	if opts.CacheTTL > 0 {
		s.cache = expirable.NewLRU[image.Rectangle, *Frame](frameCacheSize, nil, opts.CacheTTL)
	}
	return s
}

// Area returns the full capture area, resolving it on first use.
func (s *CachedSource) Area() (image.Rectangle, error) {
	s.areaMu.Lock()
	defer s.areaMu.Unlock()
	if s.area != nil {
		return *s.area, nil
	}
	area, err := s.resolveArea()
	if err != nil {
		return image.Rectangle{}, err
	}
	s.area = &area
	if s.logger != nil {
		s.logger.Info("capture area", "category", "capture", "area", area.String(), "window", s.opts.WindowTitle)
	}
	return area, nil
}

// Refresh forgets the resolved area and every cached frame.
func (s *CachedSource) Refresh() {
	s.areaMu.Lock()
	s.area = nil
	s.areaMu.Unlock()
	if s.cache != nil {
		s.cache.Purge()
	}
}

func (s *CachedSource) resolveArea() (image.Rectangle, error) {
	if s.opts.WindowTitle != "" {
		r, err := s.opts.WindowRect(s.opts.WindowTitle)
		if err == nil && !r.Empty() {
			return r, nil
		}
		if s.logger != nil {
			s.logger.Warn("window binding failed, using display", "category", "capture", "title", s.opts.WindowTitle, "error", err)
		}
	}
	return s.grabber.Bounds()
}

// Capture returns a grayscale frame for region r of the capture area.
func (s *CachedSource) Capture(r Region) (*Frame, error) {
	area, err := s.Area()
	if err != nil {
		s.errors.Add(1)
		return nil, err
	}
	rect := r.Rect(area)
	if rect.Empty() {
		s.errors.Add(1)
		return nil, fmt.Errorf("capture: region %+v is empty inside %v", r, area)
	}
	if s.cache != nil {
		if f, ok := s.cache.Get(rect); ok {
			s.hits.Add(1)
			return f, nil
		}
	}
	start := time.Now()
	rgba, err := s.grabber.Grab(rect)
	if err != nil {
		s.errors.Add(1)
		return nil, err
	}
	gray := grayFromRGBA(rgba)
	RecycleFrame(rgba)
	f := NewFrame(gray, rect.Min)

	s.grabNanos.Add(uint64(time.Since(start).Nanoseconds()))
	s.grabs.Add(1)
	s.lastGrab.Store(time.Now().UnixNano())
	if s.cache != nil {
		s.cache.Add(rect, f)
	}
	return f, nil
}

// Stats returns a snapshot of acquisition counters.
func (s *CachedSource) Stats() SourceStats {
	grabs := s.grabs.Load()
	var avg time.Duration
	if grabs > 0 {
		avg = time.Duration(s.grabNanos.Load() / grabs)
	}
	var last time.Time
	if ns := s.lastGrab.Load(); ns != 0 {
		last = time.Unix(0, ns)
	}
	cached := 0
	if s.cache != nil {
		cached = s.cache.Len()
	}
	reused, fresh := poolCounters()
	return SourceStats{
		PoolReused: reused,
		PoolFresh:  fresh,
		Grabs:      grabs,
		CacheHits:  s.hits.Load(),
		Errors:     s.errors.Load(),
		AvgGrab:    avg,
		LastGrab:   last,
		CachedRect: cached,
	}
}

// LogStats writes the current counters at debug level.
func (s *CachedSource) LogStats() {
	if s.logger == nil {
		return
	}
	stats := s.Stats()
	s.logger.Debug("capture.stats",
		"category", "capture",
		"grabs", stats.Grabs,
		"cache_hits", stats.CacheHits,
		"errors", stats.Errors,
		"avg_grab", stats.AvgGrab,
		"cached_rects", stats.CachedRect,
		"pool_reused", stats.PoolReused,
	)
}
