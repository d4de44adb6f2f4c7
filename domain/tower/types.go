package tower

import (
	"fmt"
	"image"
	"time"

	"github.com/soocke/tower-bot-go/domain/capture"
)

// State enumerates the states of the run cycle.
type State int

const (
	StateAwaitPrompt State = iota
	StateAwaitOptionA
	StateAwaitOptionB
	StateOwnershipPrompt
	StateMatchingUntilConfirm
	StateConfirmMonitor
	StateRapidClickRecovery
	StateAwaitExitPrompt
	StatePostExitVerify
	StatePartyLeaveFlow
)

func (s State) String() string {
	switch s {
	case StateAwaitPrompt:
		return "await_prompt"
	case StateAwaitOptionA:
		return "await_option_a"
	case StateAwaitOptionB:
		return "await_option_b"
	case StateOwnershipPrompt:
		return "ownership_prompt"
	case StateMatchingUntilConfirm:
		return "matching_until_confirm"
	case StateConfirmMonitor:
		return "confirm_monitor"
	case StateRapidClickRecovery:
		return "rapid_click_recovery"
	case StateAwaitExitPrompt:
		return "await_exit_prompt"
	case StatePostExitVerify:
		return "post_exit_verify"
	case StatePartyLeaveFlow:
		return "party_leave_flow"
	default:
		return "unknown"
	}
}

// Reference names the machine looks for.
const (
	RefEntryPrompt    = "entry_prompt"
	RefDifficultyHard = "difficulty_hard"
	RefMatch          = "match"
	RefDeclineCaptain = "decline_captain"
	RefMatching       = "matching"
	RefConfirmMatch   = "confirm_match"
	RefVictory        = "victory"
	RefLeaveDungeon   = "leave_dungeon"
	RefDungeonHUD     = "dungeon_hud"
	RefLeaveIcon      = "leave_icon"
	RefConfirmParty   = "confirm_party"
)

// References lists every name the machine may request.
var References = []string{
	RefEntryPrompt, RefDifficultyHard, RefMatch, RefDeclineCaptain,
	RefMatching, RefConfirmMatch, RefVictory, RefLeaveDungeon,
	RefDungeonHUD, RefLeaveIcon, RefConfirmParty,
}

// Scene answers detection queries for one poll. Implementations memoize so
// repeated queries within a poll observe the same frame.
type Scene interface {
	Find(ref string) (capture.Detection, bool)
	FindIn(ref string, region capture.Region) (capture.Detection, bool)
}

// ActionKind discriminates Action.
type ActionKind int

const (
	ActPressKey ActionKind = iota
	ActTap
	ActClick
	ActRapidClick
	ActPause
)

// Action is one side effect requested by the machine. Dur is the hold time
// for ActPressKey, the pointer travel time for ActClick and the length of an
// ActPause.
type Action struct {
	Kind  ActionKind
	Key   string
	Point image.Point
	Dur   time.Duration
}

func PressKey(key string, hold time.Duration) Action {
	return Action{Kind: ActPressKey, Key: key, Dur: hold}
}
func Tap(key string) Action { return Action{Kind: ActTap, Key: key} }
func Click(p image.Point, move time.Duration) Action {
	return Action{Kind: ActClick, Point: p, Dur: move}
}
func RapidClick() Action           { return Action{Kind: ActRapidClick} }
func Pause(d time.Duration) Action { return Action{Kind: ActPause, Dur: d} }

func (a Action) String() string {
	switch a.Kind {
	case ActPressKey:
		return fmt.Sprintf("press(%s,%v)", a.Key, a.Dur)
	case ActTap:
		return fmt.Sprintf("tap(%s)", a.Key)
	case ActClick:
		return fmt.Sprintf("click(%d,%d)", a.Point.X, a.Point.Y)
	case ActRapidClick:
		return "rapid_click"
	case ActPause:
		return fmt.Sprintf("pause(%v)", a.Dur)
	default:
		return "unknown"
	}
}

// Executor performs actions. Calls are fire-and-forget: nothing they do
// feeds back into control flow.
type Executor interface {
	PressKey(key string, hold time.Duration)
	PressAndRelease(key string)
	ClickAt(p image.Point, move time.Duration)
	RapidClick()
}

// Listener is called on each state transition.
type Listener func(prev, next State)
