package tower

import (
	"context"
	"io"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// Clock abstracts time for the control loop.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done.
	Sleep(ctx context.Context, d time.Duration)
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Options tunes the control loop cadence.
type Options struct {
	Poll  time.Duration // delay between polls that did not end in a settle pause
	Idle  time.Duration // delay between run-flag checks while paused
	Clock Clock
}

// Stats are lifetime counters; they survive full resets. The embedded Tally
// covers the whole process, Stretch only the current or last run stretch.
type Stats struct {
	Tally
	Stretch   Tally
	Stretches int
	Polls     uint64
	Actions   uint64
	Panics    uint64
	State     State
	Session   time.Duration
	Total     time.Duration
}

// Controller runs the perception-action loop. It is the only writer of the
// machine memory; signal sources talk to it through the RunFlag.
type Controller struct {
	machine   *Machine
	scanner   Scanner
	threshold func(string) float64
	exec      Executor
	flag      *RunFlag
	logger    *slog.Logger
	opts      Options

	mu        sync.Mutex
	mem       Memory
	listeners []Listener
	stats     Stats
	session   Session
	startedAt time.Time
}

// NewController wires the loop together.
func NewController(m *Machine, scanner Scanner, threshold func(string) float64, exec Executor, flag *RunFlag, logger *slog.Logger, opts Options) *Controller {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Poll <= 0 {
		opts.Poll = 50 * time.Millisecond
	}
	if opts.Idle <= 0 {
		opts.Idle = 50 * time.Millisecond
	}
	if opts.Clock == nil {
		opts.Clock = realClock{}
	}
	if flag == nil {
		flag = &RunFlag{}
	}
	return &Controller{
		machine:   m,
		scanner:   scanner,
		threshold: threshold,
		exec:      exec,
		flag:      flag,
		logger:    logger,
		opts:      opts,
	}
}

// AddListener registers l for every subsequent state transition. Listeners
// run on the control goroutine and must not block.
func (c *Controller) AddListener(l Listener) {
	c.mu.Lock()
	c.listeners = append(c.listeners, l)
	c.mu.Unlock()
}

// Current returns the machine state.
func (c *Controller) Current() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mem.State
}

// Stats returns a snapshot of the lifetime counters.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.State = c.mem.State
	s.Tally = c.session.Lifetime()
	s.Stretch = c.session.Stretch()
	s.Stretches = c.session.Stretches()
	s.Session, s.Total = c.session.Durations()
	return s
}

// Run polls until exit is requested or ctx is done. A stop request is seen
// within one poll: it cuts the current settle pause short and drops the
// poll's remaining actions, while an input already started finishes.
func (c *Controller) Run(ctx context.Context) error {
	c.startedAt = c.opts.Clock.Now()
	last := Paused
	c.logger.Info("controller ready", "category", "state", "state", c.Current().String())
	for {
		if err := ctx.Err(); err != nil {
			c.tickSession(false)
			c.logSummary("context done")
			return nil
		}
		run := c.flag.Load()
		ended := c.tickSession(run == Running)
		if run != last {
			c.logger.Info("run flag", "category", "control", "from", last.String(), "to", run.String())
			last = run
		}
		switch run {
		case ExitRequested:
			c.logSummary("exit")
			return nil
		case Paused:
			if ended {
				c.logSummary("paused")
			}
			c.opts.Clock.Sleep(ctx, c.opts.Idle)
			continue
		}
		if !c.poll(ctx) {
			c.opts.Clock.Sleep(ctx, c.opts.Poll)
		}
	}
}

func (c *Controller) tickSession(running bool) (ended bool) {
	now := c.opts.Clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Observe(running, now)
}

// poll runs one Step and executes its actions. It reports whether the step
// ended with a settle pause, which already throttled the loop.
func (c *Controller) poll(ctx context.Context) (settled bool) {
	c.mu.Lock()
	mem := c.mem
	c.mu.Unlock()
	prev := mem.State

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("poll panic, resetting", "category", "error", "error", r, "state", prev.String(), "stack", string(debug.Stack()))
			c.mu.Lock()
			c.stats.Panics++
			c.mem.Reset()
			c.mu.Unlock()
			c.notify(prev, StateAwaitPrompt)
			settled = false
		}
	}()

	scene := NewScene(c.scanner, c.threshold)
	next, acts := c.machine.Step(mem, scene, c.opts.Clock.Now())

	c.mu.Lock()
	c.mem = next
	c.stats.Polls++
	c.stats.Actions += uint64(len(acts))
	c.mu.Unlock()

	c.notify(prev, next.State)

	for _, a := range acts {
		if ctx.Err() != nil || c.flag.Load() == ExitRequested {
			break
		}
		c.execute(ctx, a)
	}
	return len(acts) > 0 && acts[len(acts)-1].Kind == ActPause
}

func (c *Controller) execute(ctx context.Context, a Action) {
	if a.Kind != ActPause && a.Kind != ActRapidClick {
		c.logger.Debug("action", "category", "action", "action", a.String())
	}
	switch a.Kind {
	case ActPressKey:
		c.exec.PressKey(a.Key, a.Dur)
	case ActTap:
		c.exec.PressAndRelease(a.Key)
	case ActClick:
		c.exec.ClickAt(a.Point, a.Dur)
	case ActRapidClick:
		c.exec.RapidClick()
	case ActPause:
		c.settle(ctx, a.Dur)
	}
}

// settle waits out a pause action. An exit request ends the wait at once; a
// pause request does not, so the poll's action sequence stays intact.
func (c *Controller) settle(ctx context.Context, d time.Duration) {
	deadline := c.opts.Clock.Now().Add(d)
	for {
		changed := c.flag.Changed()
		if c.flag.Load() == ExitRequested {
			return
		}
		left := deadline.Sub(c.opts.Clock.Now())
		if left <= 0 || ctx.Err() != nil {
			return
		}
		wctx, cancel := context.WithCancel(ctx)
		go func() {
			select {
			case <-changed:
				cancel()
			case <-wctx.Done():
			}
		}()
		c.opts.Clock.Sleep(wctx, left)
		cancel()
	}
}

func (c *Controller) notify(prev, next State) {
	if prev == next {
		return
	}
	c.mu.Lock()
	c.session.Record(prev, next)
	listeners := append([]Listener(nil), c.listeners...)
	c.mu.Unlock()

	c.logger.Info("state transition", "category", "state", "from", prev.String(), "to", next.String())
	for _, l := range listeners {
		l(prev, next)
	}
}

func (c *Controller) logSummary(reason string) {
	s := c.Stats()
	c.logger.Info("session summary",
		"category", "state",
		"reason", reason,
		"state", s.State.String(),
		"cycles", humanize.Comma(int64(s.Cycles)),
		"guard_resets", humanize.Comma(int64(s.GuardResets)),
		"failsafe_exits", s.FailsafeExits,
		"stretch_cycles", humanize.Comma(int64(s.Stretch.Cycles)),
		"stretch", s.Session.Round(time.Second).String(),
		"polls", humanize.Comma(int64(s.Polls)),
		"running_for", s.Total.Round(time.Second).String(),
		"started", humanize.Time(c.startedAt),
	)
}
