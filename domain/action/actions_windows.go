//go:build windows

package action

import (
	"fmt"
	"strings"
	"unsafe"

	"golang.org/x/sys/windows"
)

const (
	keyeventfKeyup      = 0x0002
	mouseeventfLeftdown = 0x0002
	mouseeventfLeftup   = 0x0004
)

var (
	user32           = windows.NewLazySystemDLL("user32.dll")
	procKeybdEvent   = user32.NewProc("keybd_event")
	procMouseEvent   = user32.NewProc("mouse_event")
	procSetCursorPos = user32.NewProc("SetCursorPos")
	procGetCursorPos = user32.NewProc("GetCursorPos")
)

type winDevice struct{}

// NewDevice returns the Win32 input device.
func NewDevice() Device { return winDevice{} }

func (winDevice) KeyDown(key string) error {
	vk, ok := ParseVK(key)
	if !ok {
		return fmt.Errorf("unknown key %q", key)
	}
	_, _, _ = procKeybdEvent.Call(uintptr(vk), 0, 0, 0)
	return nil
}

func (winDevice) KeyUp(key string) error {
	vk, ok := ParseVK(key)
	if !ok {
		return fmt.Errorf("unknown key %q", key)
	}
	_, _, _ = procKeybdEvent.Call(uintptr(vk), 0, keyeventfKeyup, 0)
	return nil
}

func (winDevice) MoveTo(x, y int) error {
	if r, _, err := procSetCursorPos.Call(uintptr(int32(x)), uintptr(int32(y))); r == 0 {
		return fmt.Errorf("SetCursorPos: %w", err)
	}
	return nil
}

func (winDevice) Position() (int, int, error) {
	var pt struct{ X, Y int32 }
	if r, _, err := procGetCursorPos.Call(uintptr(unsafe.Pointer(&pt))); r == 0 {
		return 0, 0, fmt.Errorf("GetCursorPos: %w", err)
	}
	return int(pt.X), int(pt.Y), nil
}

func (winDevice) LeftClick() error {
	_, _, _ = procMouseEvent.Call(mouseeventfLeftdown, 0, 0, 0, 0)
	_, _, _ = procMouseEvent.Call(mouseeventfLeftup, 0, 0, 0, 0)
	return nil
}

var namedVK = map[string]byte{
	"esc": 0x1B, "escape": 0x1B,
	"enter": 0x0D, "return": 0x0D,
	"space": 0x20, "tab": 0x09,
	"shift": 0x10, "ctrl": 0x11, "control": 0x11, "alt": 0x12,
}

// ParseVK converts a key token (e.g. "F8", "r", "esc") into a Windows
// virtual-key code. Recognizes F1..F24, letters, digits and a few named keys.
func ParseVK(key string) (byte, bool) {
	k := strings.ToLower(strings.TrimSpace(key))
	if vk, ok := namedVK[k]; ok {
		return vk, true
	}
	if len(k) == 1 {
		c := k[0]
		switch {
		case c >= 'a' && c <= 'z':
			return c - 'a' + 'A', true // 'A'..'Z' match VK codes
		case c >= '0' && c <= '9':
			return c, true
		}
	}
	if len(k) >= 2 && k[0] == 'f' {
		n := 0
		for _, c := range k[1:] {
			if c < '0' || c > '9' {
				return 0, false
			}
			n = n*10 + int(c-'0')
		}
		if n >= 1 && n <= 24 {
			return byte(0x70 + (n - 1)), true // VK_F1=0x70
		}
	}
	return 0, false
}
