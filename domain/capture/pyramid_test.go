package capture

import (
	"image"
	"math/rand/v2"
	"testing"
	"time"
)

// blockGray returns a texture of random flat blocks, closer to UI art than
// per-pixel noise.
func blockGray(w, h, block int, seed uint64) *image.Gray {
	r := rand.New(rand.NewPCG(seed, seed^0x9e37))
	cols := (w + block - 1) / block
	rows := (h + block - 1) / block
	vals := make([]uint8, cols*rows)
	for i := range vals {
		vals[i] = uint8(r.IntN(256))
	}
	g := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			g.Pix[y*g.Stride+x] = vals[(y/block)*cols+x/block]
		}
	}
	return g
}

func TestPattern_PyramidLevels(t *testing.T) {
	p := NewPattern("btn", blockGray(120, 40, 6, 1))
	levels := p.pyramid()
	want := []image.Point{{120, 40}, {60, 20}, {30, 10}, {15, 5}}
	if len(levels) != len(want) {
		t.Fatalf("got %d levels", len(levels))
	}
	for i, l := range levels {
		if l.Size() != want[i] {
			t.Fatalf("level %d size %v, want %v", i, l.Size(), want[i])
		}
	}
	if small := NewPattern("dot", blockGray(7, 7, 2, 1)); len(small.pyramid()) != 1 {
		t.Fatalf("pattern under twice the minimum side must not be halved")
	}
}

func TestFrame_LevelsAreBuiltOnce(t *testing.T) {
	f := NewFrame(blockGray(64, 20, 4, 2), image.Point{X: 7, Y: 7})
	if f.level(0) != f {
		t.Fatalf("level 0 is the frame itself")
	}
	l2 := f.level(2)
	if l2 == nil || l2.Size() != (image.Point{X: 16, Y: 5}) {
		t.Fatalf("level 2 = %v", l2.Size())
	}
	if f.level(2) != l2 || f.level(1).Size() != (image.Point{X: 32, Y: 10}) {
		t.Fatalf("levels not cached")
	}
	if f.level(6) != nil {
		t.Fatalf("level without pixels must be nil")
	}
}

func TestScorePyramid_FindsExactMatchAtAnyOffset(t *testing.T) {
	frame := blockGray(400, 300, 6, 3)
	f := NewFrame(frame, image.Point{})
	for _, off := range []image.Point{{0, 0}, {1, 1}, {137, 91}, {279, 259}, {336, 276}} {
		p := NewPattern("crop", crop(frame, image.Rect(off.X, off.Y, off.X+64, off.Y+24)))
		score, at := scorePyramid(f, p, 4, true)
		if at != off || score < 0.999 {
			t.Fatalf("offset %v: found %v score %v", off, at, score)
		}
	}
}

func TestScorePyramid_NeverExceedsExhaustiveScore(t *testing.T) {
	frame := blockGray(160, 120, 5, 4)
	f := NewFrame(frame, image.Point{})
	for seed := uint64(10); seed < 16; seed++ {
		p := NewPattern("absent", blockGray(32, 16, 5, seed))
		exhaustive, _ := scoreNCC(f, p, 1, false)
		got, at := scorePyramid(f, p, 1, false)
		if got > exhaustive+1e-9 {
			t.Fatalf("seed %d: pyramid %v above exhaustive %v", seed, got, exhaustive)
		}
		if at.X < 0 || at.Y < 0 || at.X > 160-32 || at.Y > 120-16 {
			t.Fatalf("seed %d: offset %v outside the search space", seed, at)
		}
	}
}

func TestScorePyramid_SmallPatternUsesStridedScan(t *testing.T) {
	frame := noiseGray(60, 40, 5)
	f := NewFrame(frame, image.Point{})
	p := NewPattern("tiny", crop(frame, image.Rect(32, 20, 39, 27)))
	gotScore, gotAt := scorePyramid(f, p, 4, true)
	wantScore, wantAt := scoreNCC(f, p, 4, true)
	if gotScore != wantScore || gotAt != wantAt {
		t.Fatalf("pyramid %v@%v, strided %v@%v", gotScore, gotAt, wantScore, wantAt)
	}
	if gotAt != (image.Point{X: 32, Y: 20}) {
		t.Fatalf("tiny crop found at %v", gotAt)
	}
}

func TestScorePyramid_FlatFrameScoresZero(t *testing.T) {
	f := NewFrame(image.NewGray(image.Rect(0, 0, 200, 100)), image.Point{})
	p := NewPattern("btn", blockGray(40, 16, 4, 6))
	if score, _ := scorePyramid(f, p, 4, true); score != 0 {
		t.Fatalf("flat frame score %v", score)
	}
}

// A 1080p scan has to fit well inside one poll, or the loop cannot keep its
// cadence, the click rate or its timers.
func TestMatcher_FullHDScanBudget(t *testing.T) {
	if testing.Short() || raceEnabled {
		t.Skip("timing test")
	}
	screen := blockGray(1920, 1080, 8, 7)
	at := image.Point{X: 1237, Y: 613}
	p := NewPattern("confirm_match", crop(screen, image.Rectangle{Min: at, Max: at.Add(image.Point{X: 120, Y: 40})}))
	m := NewMatcher(4, true)

	const budget = time.Second
	start := time.Now()
	d, ok := m.Find(NewFrame(screen, image.Point{}), p, 0.9)
	elapsed := time.Since(start)
	if !ok || d.TopLeft != at {
		t.Fatalf("expected detection at %v, got %+v ok=%v", at, d, ok)
	}
	if elapsed > budget {
		t.Fatalf("1920x1080 scan took %v, budget %v", elapsed, budget)
	}
}

func BenchmarkMatcherFind(b *testing.B) {
	screen := blockGray(1920, 1080, 8, 7)
	at := image.Point{X: 1237, Y: 613}
	p := NewPattern("confirm_match", crop(screen, image.Rectangle{Min: at, Max: at.Add(image.Point{X: 120, Y: 40})}))
	m := NewMatcher(4, true)
	b.ReportAllocs()
	for b.Loop() {
		// a fresh frame per poll, as the source delivers
		if _, ok := m.Find(NewFrame(screen, image.Point{}), p, 0.9); !ok {
			b.Fatal("no detection")
		}
	}
}
