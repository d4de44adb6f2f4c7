package tower

import (
	"context"
	"image"
	"image/draw"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/soocke/tower-bot-go/domain/capture"
)

// screenGrabber serves sub-rectangles of one synthetic screen.
type screenGrabber struct{ screen *image.RGBA }

func (g *screenGrabber) Bounds() (image.Rectangle, error) { return g.screen.Bounds(), nil }

func (g *screenGrabber) Grab(r image.Rectangle) (*image.RGBA, error) {
	out := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(out, out.Bounds(), g.screen, r.Min, draw.Src)
	return out, nil
}

type patternSet map[string]*capture.Pattern

func (s patternSet) Get(name string) *capture.Pattern { return s[name] }

func blocks(w, h, size int, seed uint64) *image.Gray {
	r := rand.New(rand.NewPCG(seed, seed+7))
	g := image.NewGray(image.Rect(0, 0, w, h))
	cols := (w + size - 1) / size
	vals := make([]uint8, cols*((h+size-1)/size))
	for i := range vals {
		vals[i] = uint8(r.IntN(256))
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			g.Pix[y*g.Stride+x] = vals[(y/size)*cols+x/size]
		}
	}
	return g
}

// clickTimes records when each rapid click fires.
type clickTimes struct {
	mu    sync.Mutex
	at    []time.Time
	limit int
	stop  func()
}

func (c *clickTimes) PressKey(string, time.Duration)     {}
func (c *clickTimes) PressAndRelease(string)             {}
func (c *clickTimes) ClickAt(image.Point, time.Duration) {}

func (c *clickTimes) RapidClick() {
	c.mu.Lock()
	c.at = append(c.at, time.Now())
	n := len(c.at)
	c.mu.Unlock()
	if n == c.limit {
		c.stop()
	}
}

// Rapid click recovery through the real scanner: every poll scans the
// session indicator, the confirm popup and the victory banner on a 1080p
// screen, and the click spacing must still follow the configured rate.
func TestController_RapidClickRateWithRealScans(t *testing.T) {
	if testing.Short() || raceEnabled {
		t.Skip("timing test")
	}
	screen := image.NewRGBA(image.Rect(0, 0, 1920, 1080))
	draw.Draw(screen, screen.Bounds(), blocks(1920, 1080, 8, 1), image.Point{}, draw.Src)
	patterns := patternSet{}
	for i, name := range References {
		patterns[name] = capture.NewPattern(name, blocks(120, 40, 6, uint64(100+i)))
	}
	src := capture.NewCachedSource(&screenGrabber{screen: screen}, capture.SourceOptions{CacheTTL: 40 * time.Millisecond}, nil)
	scanner := capture.NewScanner(src, patterns, capture.NewMatcher(4, true), nil)

	flag := &RunFlag{}
	flag.Start()
	exec := &clickTimes{limit: 16, stop: flag.Stop}
	m := newTestMachine()
	c := NewController(m, scanner, nil, exec, flag, discardLogger, Options{})
	c.mem = Memory{State: StateRapidClickRecovery}

	done := make(chan struct{})
	go func() {
		_ = c.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		flag.Stop()
		<-done
		t.Fatalf("only %d clicks in 10s", len(exec.at))
	}

	s := m.Settings()
	minGap := time.Duration(float64(time.Second) / s.CPSMax)
	maxGap := time.Duration(float64(time.Second) / s.CPSMin)
	if len(exec.at) != exec.limit {
		t.Fatalf("clicks = %d", len(exec.at))
	}
	var sum time.Duration
	for i := 1; i < len(exec.at); i++ {
		gap := exec.at[i].Sub(exec.at[i-1])
		if gap < minGap-time.Millisecond {
			t.Fatalf("click %d came %v after the previous one, faster than %v", i, gap, minGap)
		}
		sum += gap
	}
	// scan overhead may stretch the spacing a little, never by whole polls
	mean := sum / time.Duration(len(exec.at)-1)
	if mean > maxGap+60*time.Millisecond {
		t.Fatalf("mean click spacing %v, rate bound %v", mean, maxGap)
	}
	if c.Current() != StateRapidClickRecovery {
		t.Fatalf("state drifted to %v", c.Current())
	}
}
