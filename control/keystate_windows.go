//go:build windows

package control

import (
	"golang.org/x/sys/windows"

	"github.com/soocke/tower-bot-go/domain/action"
)

const hotkeysSupported = true

var (
	user32               = windows.NewLazySystemDLL("user32.dll")
	procGetAsyncKeyState = user32.NewProc("GetAsyncKeyState")
)

// keyPressed reports whether key is currently down, regardless of which
// window has focus.
func keyPressed(key string) bool {
	vk, ok := action.ParseVK(key)
	if !ok {
		return false
	}
	r, _, _ := procGetAsyncKeyState.Call(uintptr(vk))
	return r&0x8000 != 0
}
