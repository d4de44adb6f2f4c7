package control

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Bindings maps hotkeys to commands.
type Bindings struct {
	Start string
	Pause string
	Stop  string
}

// DefaultBindings are F8 start, F9 pause and F10 stop.
var DefaultBindings = Bindings{Start: "f8", Pause: "f9", Stop: "f10"}

// HotkeyWatcher polls global key state and fires on the press edge, so a
// held key triggers once.
type HotkeyWatcher struct {
	Ctl      RunControl
	Logger   *slog.Logger
	Pressed  func(key string) bool
	Bindings Bindings
	interval time.Duration
	running  atomic.Bool
	done     chan struct{}
	wg       sync.WaitGroup
	down     map[string]bool
}

// NewHotkeyWatcher constructs a watcher. A nil pressed func uses the
// platform key state, which is a no-op outside Windows.
func NewHotkeyWatcher(ctl RunControl, logger *slog.Logger, pressed func(string) bool) *HotkeyWatcher {
	if pressed == nil {
		pressed = keyPressed
	}
	return &HotkeyWatcher{
		Ctl:      ctl,
		Logger:   logger,
		Pressed:  pressed,
		Bindings: DefaultBindings,
		interval: 50 * time.Millisecond,
		down:     map[string]bool{},
	}
}

// Supported reports whether global hotkeys work on this platform.
func Supported() bool { return hotkeysSupported }

// Start begins polling. Calling Start on a running watcher does nothing.
func (w *HotkeyWatcher) Start() {
	if !w.running.CompareAndSwap(false, true) {
		return
	}
	w.done = make(chan struct{})
	w.wg.Add(1)
	go w.loop()
}

// Stop ends polling and waits for the loop to exit.
func (w *HotkeyWatcher) Stop() {
	if !w.running.CompareAndSwap(true, false) {
		return
	}
	close(w.done)
	w.wg.Wait()
}

func (w *HotkeyWatcher) loop() {
	defer w.wg.Done()
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			w.poll()
		case <-w.done:
			return
		}
	}
}

func (w *HotkeyWatcher) poll() {
	w.check(w.Bindings.Start, CmdStart)
	w.check(w.Bindings.Pause, CmdPause)
	w.check(w.Bindings.Stop, CmdStop)
}

func (w *HotkeyWatcher) check(key string, cmd Command) {
	if key == "" {
		return
	}
	pressed := w.Pressed(key)
	was := w.down[key]
	w.down[key] = pressed
	if !pressed || was { // only react on the press edge
		return
	}
	ok := Apply(w.Ctl, cmd)
	if w.Logger != nil {
		w.Logger.Info("hotkey", "category", "control", "key", key, "command", string(cmd), "applied", ok)
	}
}
