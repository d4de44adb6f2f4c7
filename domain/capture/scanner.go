package capture

import (
	"log/slog"
)

// Scanner answers "is reference name visible in region" against live frames.
type Scanner struct {
	src      Source
	patterns PatternSet
	matcher  *Matcher
	logger   *slog.Logger
}

// NewScanner wires a frame source, a pattern set and a matcher together.
func NewScanner(src Source, patterns PatternSet, matcher *Matcher, logger *slog.Logger) *Scanner {
	if matcher == nil {
		matcher = NewMatcher(1, false)
	}
	return &Scanner{src: src, patterns: patterns, matcher: matcher, logger: logger}
}

// Scan captures region, scores the named pattern and returns a detection in
// absolute coordinates when the score reaches threshold. Capture failures
// are logged and reported as absence.
func (s *Scanner) Scan(name string, region Region, threshold float64) (Detection, bool) {
	p := s.patterns.Get(name)
	f, err := s.src.Capture(region)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("capture failed", "category", "error", "reference", name, "error", err)
		}
		return Detection{}, false
	}
	d, ok := s.matcher.Find(f, p, threshold)
	if s.logger != nil {
		s.logger.Debug("score", "category", "score", "reference", name,
			"score", d.Score, "threshold", threshold, "found", ok)
	}
	if !ok {
		return Detection{}, false
	}
	d.Name = name
	return d, true
}
