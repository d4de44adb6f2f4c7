package capture

import (
	"errors"
	"image"
	"image/draw"
	"testing"
	"time"
)

// fakeGrabber serves sub-rectangles of a fixed screen image.
type fakeGrabber struct {
	screen *image.RGBA
	grabs  int
	fail   bool
}

func newFakeGrabber(bounds image.Rectangle, g *image.Gray, at image.Point) *fakeGrabber {
	screen := image.NewRGBA(bounds)
	if g != nil {
		draw.Draw(screen, g.Bounds().Add(at), g, image.Point{}, draw.Src)
	}
	return &fakeGrabber{screen: screen}
}

func (f *fakeGrabber) Bounds() (image.Rectangle, error) { return f.screen.Bounds(), nil }

func (f *fakeGrabber) Grab(rect image.Rectangle) (*image.RGBA, error) {
	f.grabs++
	if f.fail {
		return nil, errors.New("grab failed")
	}
	out := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(out, out.Bounds(), f.screen, rect.Min, draw.Src)
	return out, nil
}

type patternMap map[string]*Pattern

func (m patternMap) Get(name string) *Pattern { return m[name] }

func TestCachedSource_CachesPerRect(t *testing.T) {
	g := newFakeGrabber(image.Rect(0, 0, 200, 100), nil, image.Point{})
	src := NewCachedSource(g, SourceOptions{CacheTTL: time.Minute}, nil)
	a, err := src.Capture(Full)
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	b, _ := src.Capture(Full)
	if a != b || g.grabs != 1 {
		t.Fatalf("expected cached frame, grabs=%d", g.grabs)
	}
	r, _ := src.Capture(Region{X: 0.5, Y: 0.5, W: 0.5, H: 0.5})
	if g.grabs != 2 || r.Origin != (image.Point{X: 100, Y: 50}) || r.Size() != (image.Point{X: 100, Y: 50}) {
		t.Fatalf("region frame origin=%v size=%v grabs=%d", r.Origin, r.Size(), g.grabs)
	}
	st := src.Stats()
	if st.Grabs != 2 || st.CacheHits != 1 {
		t.Fatalf("stats = %+v", st)
	}
	src.Refresh()
	_, _ = src.Capture(Full)
	if g.grabs != 3 {
		t.Fatalf("refresh should drop cached frames, grabs=%d", g.grabs)
	}
}

func TestCachedSource_NoCache(t *testing.T) {
	g := newFakeGrabber(image.Rect(0, 0, 20, 20), nil, image.Point{})
	src := NewCachedSource(g, SourceOptions{}, nil)
	_, _ = src.Capture(Full)
	_, _ = src.Capture(Full)
	if g.grabs != 2 {
		t.Fatalf("zero TTL must grab every time, grabs=%d", g.grabs)
	}
}

func TestCachedSource_WindowBinding(t *testing.T) {
	g := newFakeGrabber(image.Rect(0, 0, 400, 300), nil, image.Point{})
	win := image.Rect(40, 30, 240, 130)
	src := NewCachedSource(g, SourceOptions{
		WindowTitle: "Game",
		WindowRect: func(title string) (image.Rectangle, error) {
			if title != "Game" {
				t.Fatalf("unexpected title %q", title)
			}
			return win, nil
		},
	}, nil)
	area, err := src.Area()
	if err != nil || area != win {
		t.Fatalf("area = %v, %v", area, err)
	}

	missing := NewCachedSource(g, SourceOptions{
		WindowTitle: "Gone",
		WindowRect:  func(string) (image.Rectangle, error) { return image.Rectangle{}, ErrUnsupported },
	}, nil)
	if area, _ := missing.Area(); area != g.screen.Bounds() {
		t.Fatalf("failed binding should fall back to grabber bounds, got %v", area)
	}
}

func TestScanner_RegionDetectionIsAbsolute(t *testing.T) {
	label := noiseGray(24, 10, 42)
	bounds := image.Rect(1000, 200, 2000, 1000) // second monitor style offset
	at := image.Point{X: 1000 + 620, Y: 200 + 500}
	g := newFakeGrabber(bounds, label, at)
	src := NewCachedSource(g, SourceOptions{CacheTTL: time.Second}, nil)
	sc := NewScanner(src, patternMap{"matching": NewPattern("matching", label)}, NewMatcher(1, false), nil)

	d, ok := sc.Scan("matching", Region{X: 0.50, Y: 0.62, W: 0.40, H: 0.08}, 0.9)
	if !ok {
		t.Fatalf("expected detection inside region")
	}
	if d.TopLeft != at || d.BottomRight != at.Add(image.Point{X: 24, Y: 10}) {
		t.Fatalf("detection box %v..%v, want top-left %v", d.TopLeft, d.BottomRight, at)
	}
	if _, ok := sc.Scan("matching", Region{X: 0, Y: 0, W: 0.3, H: 0.3}, 0.9); ok {
		t.Fatalf("label outside region must not be found")
	}
}

func TestScanner_CaptureErrorIsAbsence(t *testing.T) {
	g := newFakeGrabber(image.Rect(0, 0, 50, 50), nil, image.Point{})
	g.fail = true
	sc := NewScanner(NewCachedSource(g, SourceOptions{}, nil), patternMap{"x": NewPattern("x", noiseGray(5, 5, 1))}, nil, nil)
	if _, ok := sc.Scan("x", Full, 0); ok {
		t.Fatalf("failed capture must report absence")
	}
}

func TestScanner_GatesThroughMatcherFind(t *testing.T) {
	g := newFakeGrabber(image.Rect(0, 0, 40, 30), nil, image.Point{})
	m := NewMatcher(1, false)
	calls := 0
	m.search = func(*Frame, *Pattern, int, bool) (float64, image.Point) {
		calls++
		return 0.6, image.Point{X: 3, Y: 4}
	}
	sc := NewScanner(NewCachedSource(g, SourceOptions{}, nil), patternMap{"x": NewPattern("x", noiseGray(5, 5, 1))}, m, nil)

	if _, ok := sc.Scan("x", Full, 0.61); ok {
		t.Fatalf("score below threshold must be absence")
	}
	d, ok := sc.Scan("x", Full, 0.6)
	if !ok || d.Name != "x" || d.Score != 0.6 {
		t.Fatalf("detection at threshold: ok=%v %+v", ok, d)
	}
	if d.TopLeft != (image.Point{X: 3, Y: 4}) || d.BottomRight != (image.Point{X: 8, Y: 9}) {
		t.Fatalf("box %v..%v", d.TopLeft, d.BottomRight)
	}
	if _, ok := sc.Scan("undeclared", Full, 0); ok {
		t.Fatalf("unknown reference must be absence")
	}
	if calls != 2 {
		t.Fatalf("search ran %d times", calls)
	}
}
