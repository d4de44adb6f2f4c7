//go:build !windows

package capture

import (
	"image"
)

func newGDIGrabber() (Grabber, error) { return nil, ErrUnsupported }

// WindowRect binds the capture area to a window title; Windows only.
func WindowRect(string) (image.Rectangle, error) { return image.Rectangle{}, ErrUnsupported }
