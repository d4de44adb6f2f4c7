//go:build !windows

package control

const hotkeysSupported = false

func keyPressed(string) bool { return false }
