package capture

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strings"

	kscreenshot "github.com/kbinani/screenshot"
	vscreenshot "github.com/vova616/screenshot"
)

// ErrUnsupported is returned by capture features missing on this platform.
var ErrUnsupported = errors.New("capture: unsupported on this platform")

// NewGrabber returns the grabber for backend: "display" (monitor by index),
// "screen" (primary screen) or "gdi" (Windows GDI BitBlt).
func NewGrabber(backend string, monitor int, logger *slog.Logger) (Grabber, error) {
	switch strings.ToLower(backend) {
	case "", "display":
		return &displayGrabber{monitor: monitor, logger: logger}, nil
	case "screen":
		return screenGrabber{}, nil
	case "gdi":
		return newGDIGrabber()
	default:
		return nil, fmt.Errorf("capture: unknown backend %q", backend)
	}
}

// displayGrabber selects a monitor by 1-based index; 0 is the primary
// display. An index past the last display falls back to the primary one.
type displayGrabber struct {
	monitor int
	logger  *slog.Logger
	warned  bool
}

func (g *displayGrabber) Bounds() (image.Rectangle, error) {
	n := kscreenshot.NumActiveDisplays()
	if n <= 0 {
		return image.Rectangle{}, errors.New("capture: no active displays")
	}
	idx := max(g.monitor-1, 0)
	if idx >= n {
		if !g.warned && g.logger != nil {
			g.logger.Warn("monitor not available, using primary",
				"category", "capture", "monitor", g.monitor, "active", n)
			g.warned = true
		}
		idx = 0
	}
	return kscreenshot.GetDisplayBounds(idx), nil
}

func (g *displayGrabber) Grab(rect image.Rectangle) (*image.RGBA, error) {
	if rect.Empty() {
		return nil, fmt.Errorf("capture: empty rect %v", rect)
	}
	return kscreenshot.CaptureRect(rect)
}

// screenGrabber captures from the primary screen.
type screenGrabber struct{}

func (screenGrabber) Bounds() (image.Rectangle, error) { return vscreenshot.ScreenRect() }

func (screenGrabber) Grab(rect image.Rectangle) (*image.RGBA, error) {
	if rect.Empty() {
		return nil, fmt.Errorf("capture: empty rect %v", rect)
	}
	return vscreenshot.CaptureRect(rect)
}
