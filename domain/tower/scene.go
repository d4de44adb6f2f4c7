package tower

import (
	"github.com/soocke/tower-bot-go/domain/capture"
)

// Scanner runs one region-scoped detection against a live frame.
type Scanner interface {
	Scan(name string, region capture.Region, threshold float64) (capture.Detection, bool)
}

type sceneKey struct {
	ref    string
	region capture.Region
}

type sceneHit struct {
	d  capture.Detection
	ok bool
}

// PollScene is a Scene for a single poll. Each (reference, region) pair is
// scanned at most once; later queries return the memoized result.
type PollScene struct {
	scanner   Scanner
	threshold func(string) float64
	memo      map[sceneKey]sceneHit
	scans     int
}

// NewScene returns an empty scene backed by scanner.
func NewScene(scanner Scanner, threshold func(string) float64) *PollScene {
	if threshold == nil {
		threshold = ThresholdFunc(nil, nil)
	}
	return &PollScene{scanner: scanner, threshold: threshold, memo: make(map[sceneKey]sceneHit, 8)}
}

// Find scans the full capture area.
func (s *PollScene) Find(ref string) (capture.Detection, bool) {
	return s.FindIn(ref, capture.Full)
}

// FindIn scans region.
func (s *PollScene) FindIn(ref string, region capture.Region) (capture.Detection, bool) {
	if region.IsFull() {
		region = capture.Full
	}
	k := sceneKey{ref: ref, region: region}
	if h, ok := s.memo[k]; ok {
		return h.d, h.ok
	}
	d, ok := s.scanner.Scan(ref, region, s.threshold(ref))
	s.scans++
	s.memo[k] = sceneHit{d: d, ok: ok}
	return d, ok
}

// Scans returns how many scans actually ran.
func (s *PollScene) Scans() int { return s.scans }
