//go:build !windows

package action

import (
	"github.com/go-vgo/robotgo"
)

type robotDevice struct{}

// NewDevice returns the robotgo input device.
func NewDevice() Device { return robotDevice{} }

func (robotDevice) KeyDown(key string) error { return robotgo.KeyToggle(key, "down") }

func (robotDevice) KeyUp(key string) error { return robotgo.KeyToggle(key, "up") }

func (robotDevice) MoveTo(x, y int) error {
	robotgo.Move(x, y)
	return nil
}

func (robotDevice) Position() (int, int, error) {
	x, y := robotgo.Location()
	return x, y, nil
}

func (robotDevice) LeftClick() error {
	robotgo.Click("left", false)
	return nil
}
