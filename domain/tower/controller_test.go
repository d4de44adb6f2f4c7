package tower

import (
	"context"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/soocke/tower-bot-go/domain/capture"
)

type recordedExec struct {
	mu    sync.Mutex
	acts  []Action
	onAct func(Action)
}

func (r *recordedExec) add(a Action) {
	r.mu.Lock()
	r.acts = append(r.acts, a)
	hook := r.onAct
	r.mu.Unlock()
	if hook != nil {
		hook(a)
	}
}

func (r *recordedExec) PressKey(key string, hold time.Duration) { r.add(PressKey(key, hold)) }
func (r *recordedExec) PressAndRelease(key string)              { r.add(Tap(key)) }
func (r *recordedExec) ClickAt(p image.Point, move time.Duration) {
	r.add(Click(p, move))
}
func (r *recordedExec) RapidClick() { r.add(RapidClick()) }

// fakeClock advances on Sleep and calls hook after each sleep.
type fakeClock struct {
	now    time.Time
	slept  []time.Duration
	onNext func(n int)
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) {
	c.now = c.now.Add(d)
	c.slept = append(c.slept, d)
	if c.onNext != nil {
		c.onNext(len(c.slept))
	}
}

type panicScanner struct{}

func (panicScanner) Scan(string, capture.Region, float64) (capture.Detection, bool) {
	panic("scanner exploded")
}

func newTestController(sc Scanner, flag *RunFlag, clk *fakeClock) (*Controller, *recordedExec) {
	exec := &recordedExec{}
	c := NewController(newTestMachine(), sc, nil, exec, flag, discardLogger, Options{
		Poll:  50 * time.Millisecond,
		Idle:  100 * time.Millisecond,
		Clock: clk,
	})
	return c, exec
}

func TestController_PollsAndNotifiesListeners(t *testing.T) {
	flag := &RunFlag{}
	flag.Start()
	clk := &fakeClock{now: t0}
	c, exec := newTestController(&scoreScanner{scores: map[string]float64{RefEntryPrompt: 0.99}}, flag, clk)

	clk.onNext = func(n int) {
		if n == 2 {
			flag.Stop()
		}
	}

	var seen [][2]State
	c.AddListener(func(prev, next State) {
		seen = append(seen, [2]State{prev, next})
		flag.Pause()
	})
	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(seen) != 1 || seen[0] != [2]State{StateAwaitPrompt, StateAwaitOptionA} {
		t.Fatalf("unexpected transitions %v", seen)
	}
	if c.Current() != StateAwaitOptionA {
		t.Fatalf("current %v", c.Current())
	}
	// a pause request keeps the poll's sequence intact
	if len(exec.acts) != 1 || exec.acts[0].Kind != ActPressKey {
		t.Fatalf("executed %v", exec.acts)
	}
	// full settle pause, no extra poll sleep after it, then one idle sleep
	if len(clk.slept) != 2 || clk.slept[0] != time.Second || clk.slept[1] != 100*time.Millisecond {
		t.Fatalf("sleeps %v", clk.slept)
	}
	if s := c.Stats(); s.Polls != 1 || s.Actions != 2 || s.Stretches != 1 {
		t.Fatalf("stats %+v", s)
	}
}

func TestController_StopDropsRemainingActions(t *testing.T) {
	flag := &RunFlag{}
	flag.Start()
	clk := &fakeClock{now: t0}
	c, exec := newTestController(&scoreScanner{scores: map[string]float64{RefEntryPrompt: 0.99}}, flag, clk)
	c.AddListener(func(State, State) { flag.Stop() })

	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(exec.acts) != 0 || len(clk.slept) != 0 {
		t.Fatalf("stop before execution still ran %v, slept %v", exec.acts, clk.slept)
	}
	if c.Current() != StateAwaitOptionA {
		t.Fatalf("memory of the last poll must be kept, got %v", c.Current())
	}
}

func TestController_StopCutsSettlePauseShort(t *testing.T) {
	flag := &RunFlag{}
	flag.Start()
	exec := &recordedExec{}
	exec.onAct = func(a Action) {
		if a.Kind == ActPressKey {
			time.AfterFunc(20*time.Millisecond, flag.Stop)
		}
	}
	// real clock: the entry prompt poll ends in a one second settle pause
	c := NewController(newTestMachine(), &scoreScanner{scores: map[string]float64{RefEntryPrompt: 0.99}},
		nil, exec, flag, discardLogger, Options{})

	start := time.Now()
	done := make(chan struct{})
	go func() {
		_ = c.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("controller did not stop")
	}
	if elapsed := time.Since(start); elapsed >= 500*time.Millisecond {
		t.Fatalf("stop waited out the settle pause: %v", elapsed)
	}
}

func TestController_PauseDuringSettleWaitsItOut(t *testing.T) {
	flag := &RunFlag{}
	flag.Start()
	var escAt, invAt time.Time
	exec := &recordedExec{}
	exec.onAct = func(a Action) {
		switch {
		case a.Kind == ActTap && a.Key == "esc":
			escAt = time.Now()
			time.AfterFunc(20*time.Millisecond, func() { flag.Pause() })
		case a.Kind == ActTap && a.Key == "i":
			invAt = time.Now()
			flag.Stop()
		}
	}
	c := NewController(newTestMachine(), &scoreScanner{}, nil, exec, flag, discardLogger, Options{})
	// ownership grace long expired: the poll runs the escape sequence
	c.mem = Memory{State: StateOwnershipPrompt, CaptainWaitStart: time.Now().Add(-time.Hour)}
	settle := c.machine.s.SettleEscape

	_ = c.Run(context.Background())
	if escAt.IsZero() || invAt.IsZero() {
		t.Fatalf("escape sequence incomplete: %v", exec.acts)
	}
	if gap := invAt.Sub(escAt); gap < settle {
		t.Fatalf("pause request cut the %v settle short: %v", settle, gap)
	}
}

func TestController_IdlePollSleep(t *testing.T) {
	flag := &RunFlag{}
	flag.Start()
	clk := &fakeClock{now: t0}
	clk.onNext = func(n int) {
		if n == 3 {
			flag.Stop()
		}
	}
	c, exec := newTestController(&scoreScanner{}, flag, clk)
	_ = c.Run(context.Background())
	if s := c.Stats(); s.Polls != 3 {
		t.Fatalf("expected 3 polls, got %d", s.Polls)
	}
	for _, d := range clk.slept {
		if d != 50*time.Millisecond {
			t.Fatalf("expected poll interval sleeps, got %v", clk.slept)
		}
	}
	if len(exec.acts) != 0 {
		t.Fatalf("no actions expected, got %v", exec.acts)
	}
}

func TestController_PausedDoesNotPoll(t *testing.T) {
	flag := &RunFlag{}
	clk := &fakeClock{now: t0}
	clk.onNext = func(n int) {
		if n == 5 {
			flag.Stop()
		}
	}
	sc := &scoreScanner{scores: map[string]float64{RefEntryPrompt: 0.99}}
	c, _ := newTestController(sc, flag, clk)
	_ = c.Run(context.Background())
	if sc.calls != 0 || c.Stats().Polls != 0 {
		t.Fatalf("paused controller scanned %d times", sc.calls)
	}
	for _, d := range clk.slept {
		if d != 100*time.Millisecond {
			t.Fatalf("expected idle sleeps, got %v", clk.slept)
		}
	}
}

func TestController_ContextCancelStops(t *testing.T) {
	flag := &RunFlag{}
	flag.Start()
	ctx, cancel := context.WithCancel(context.Background())
	clk := &fakeClock{now: t0}
	clk.onNext = func(n int) {
		if n == 2 {
			cancel()
		}
	}
	c, _ := newTestController(&scoreScanner{}, flag, clk)
	done := make(chan struct{})
	go func() {
		_ = c.Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("controller did not stop on cancel")
	}
}

func TestController_PanicResetsAndContinues(t *testing.T) {
	flag := &RunFlag{}
	flag.Start()
	clk := &fakeClock{now: t0}
	clk.onNext = func(n int) {
		if n == 2 {
			flag.Stop()
		}
	}
	c, _ := newTestController(panicScanner{}, flag, clk)
	c.mu.Lock()
	c.mem = Memory{State: StateAwaitExitPrompt, MatchClicked: true}
	c.mu.Unlock()

	_ = c.Run(context.Background())
	s := c.Stats()
	if s.Panics != 2 {
		t.Fatalf("expected a recovered panic per poll, got %d", s.Panics)
	}
	if s.State != StateAwaitPrompt {
		t.Fatalf("expected reset after panic, got %v", s.State)
	}
}

func TestController_CycleAccounting(t *testing.T) {
	c, _ := newTestController(&scoreScanner{}, nil, &fakeClock{now: t0})
	var n int
	c.AddListener(func(State, State) { n++ })

	c.notify(StatePostExitVerify, StateAwaitPrompt)
	c.notify(StatePartyLeaveFlow, StateAwaitPrompt)
	c.notify(StateConfirmMonitor, StateAwaitPrompt)
	c.notify(StateRapidClickRecovery, StatePostExitVerify)
	c.notify(StateAwaitPrompt, StateAwaitPrompt)

	s := c.Stats()
	if s.Cycles != 3 || s.GuardResets != 1 || s.FailsafeExits != 1 {
		t.Fatalf("stats %+v", s)
	}
	if s.Stretch != s.Tally {
		t.Fatalf("single stretch should match lifetime: %+v vs %+v", s.Stretch, s.Tally)
	}
	if n != 4 {
		t.Fatalf("listener called %d times, self transitions must be skipped", n)
	}
}
