package action

import (
	"image"
	"log/slog"
	"time"
)

// Device is the raw input primitive set of one platform.
type Device interface {
	KeyDown(key string) error
	KeyUp(key string) error
	MoveTo(x, y int) error
	Position() (x, y int, err error)
	LeftClick() error
}

const moveStep = 5 * time.Millisecond

// Input executes controller actions on a Device. Every call is best effort:
// failures and panics are logged and swallowed, never returned.
type Input struct {
	dev    Device
	logger *slog.Logger
	sleep  func(time.Duration)
}

// NewInput wraps dev.
func NewInput(dev Device, logger *slog.Logger) *Input {
	return &Input{dev: dev, logger: logger, sleep: time.Sleep}
}

// PressKey holds key for hold and releases it.
func (in *Input) PressKey(key string, hold time.Duration) {
	defer in.recoverLog("press key")
	if err := in.dev.KeyDown(key); err != nil {
		in.fail("key down", err, "key", key)
		return
	}
	if hold > 0 {
		in.sleep(hold)
	}
	if err := in.dev.KeyUp(key); err != nil {
		in.fail("key up", err, "key", key)
	}
}

// PressAndRelease taps key.
func (in *Input) PressAndRelease(key string) { in.PressKey(key, 0) }

// ClickAt glides the pointer to p over move and left-clicks.
func (in *Input) ClickAt(p image.Point, move time.Duration) {
	defer in.recoverLog("click")
	in.glide(p, move)
	if err := in.dev.LeftClick(); err != nil {
		in.fail("left click", err, "x", p.X, "y", p.Y)
	}
}

// RapidClick issues one left click where the pointer currently is.
func (in *Input) RapidClick() {
	defer in.recoverLog("rapid click")
	if err := in.dev.LeftClick(); err != nil {
		in.fail("left click", err)
	}
}

// glide moves linearly in moveStep increments, ending exactly on p.
func (in *Input) glide(p image.Point, d time.Duration) {
	steps := int(d / moveStep)
	if steps > 1 {
		x0, y0, err := in.dev.Position()
		if err == nil {
			for i := 1; i < steps; i++ {
				x := x0 + (p.X-x0)*i/steps
				y := y0 + (p.Y-y0)*i/steps
				if err := in.dev.MoveTo(x, y); err != nil {
					in.fail("move", err, "x", x, "y", y)
					break
				}
				in.sleep(moveStep)
			}
		}
	}
	if err := in.dev.MoveTo(p.X, p.Y); err != nil {
		in.fail("move", err, "x", p.X, "y", p.Y)
	}
}

func (in *Input) fail(op string, err error, attrs ...any) {
	if in.logger == nil {
		return
	}
	args := append([]any{"category", "error", "op", op, "error", err}, attrs...)
	in.logger.Warn("input failed", args...)
}

func (in *Input) recoverLog(op string) {
	if r := recover(); r != nil && in.logger != nil {
		in.logger.Error("input panic", "category", "error", "op", op, "error", r)
	}
}
