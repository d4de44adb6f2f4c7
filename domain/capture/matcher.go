package capture

import (
	"image"
)

// searchFunc returns the best score and frame-local top-left offset of p in f.
type searchFunc func(f *Frame, p *Pattern, stride int, refine bool) (float64, image.Point)

// Matcher scores patterns against frames. Results are deterministic for a
// fixed frame, pattern and option set.
type Matcher struct {
	Stride int  // coarse scan step; 1 searches every offset
	Refine bool // with Stride>1, rescan the neighbourhood of the coarse best
	search searchFunc
}

// NewMatcher returns a Matcher using the build's default search backend.
func NewMatcher(stride int, refine bool) *Matcher {
	if stride <= 0 {
		stride = 1
	}
	return &Matcher{Stride: stride, Refine: refine, search: defaultSearch}
}

// fits reports whether p can be placed inside f at all.
func fits(f *Frame, p *Pattern) bool {
	if f == nil || p == nil {
		return false
	}
	fs, ps := f.Size(), p.Size()
	if ps.X == 0 || ps.Y == 0 {
		return false
	}
	return fs.X >= ps.X && fs.Y >= ps.Y
}

// Score returns the best-aligned score and its absolute top-left point. ok is
// false when the frame is smaller than the pattern; no search is run then.
func (m *Matcher) Score(f *Frame, p *Pattern) (score float64, topLeft image.Point, ok bool) {
	if !fits(f, p) {
		return 0, image.Point{}, false
	}
	search := m.search
	if search == nil {
		search = defaultSearch
	}
	s, at := search(f, p, m.Stride, m.Refine)
	return s, at.Add(f.Origin), true
}

// Find returns a detection when the best score reaches threshold. On a miss
// the detection carries only the pattern name and the best score; the score
// is -1 when the frame is smaller than the pattern.
func (m *Matcher) Find(f *Frame, p *Pattern, threshold float64) (Detection, bool) {
	if p == nil {
		return Detection{Score: -1}, false
	}
	score, tl, ok := m.Score(f, p)
	if !ok {
		return Detection{Name: p.Name, Score: -1}, false
	}
	if score < threshold {
		return Detection{Name: p.Name, Score: score}, false
	}
	return Detection{
		Name:        p.Name,
		TopLeft:     tl,
		BottomRight: tl.Add(p.Size()),
		Score:       score,
	}, true
}
