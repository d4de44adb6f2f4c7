// Package control holds the signal sources that start, pause and stop the
// controller. None of them touch controller state directly; they only flip
// the shared run flag.
package control

import (
	"errors"
	"fmt"
	"strings"
)

// RunControl is the run flag as seen by signal sources.
type RunControl interface {
	Start() bool
	Pause() bool
	Stop()
}

// Command is a run flag request.
type Command string

const (
	CmdStart Command = "start"
	CmdPause Command = "pause"
	CmdStop  Command = "stop"
)

// ErrUnknownCommand is returned by ParseCommand for unrecognised input.
var ErrUnknownCommand = errors.New("control: unknown command")

// ParseCommand accepts the command names plus a few short aliases.
func ParseCommand(s string) (Command, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "start", "s", "run", "resume":
		return CmdStart, nil
	case "pause", "p":
		return CmdPause, nil
	case "stop", "q", "quit", "exit":
		return CmdStop, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCommand, s)
}

// Apply forwards cmd to ctl. It reports false when the flag refused the
// change because exit was already requested.
func Apply(ctl RunControl, cmd Command) bool {
	switch cmd {
	case CmdStart:
		return ctl.Start()
	case CmdPause:
		return ctl.Pause()
	case CmdStop:
		ctl.Stop()
		return true
	}
	return false
}

type startHook struct {
	RunControl
	hook func()
}

func (s startHook) Start() bool {
	s.hook()
	return s.RunControl.Start()
}

// OnStart returns ctl with hook run ahead of every start request, whatever
// the signal source.
func OnStart(ctl RunControl, hook func()) RunControl {
	if hook == nil {
		return ctl
	}
	return startHook{RunControl: ctl, hook: hook}
}
