package tower

import "time"

// Memory is the machine's entire mutable state. The zero value is the
// initial state with every flag, latch, timer and counter cleared.
type Memory struct {
	State State

	// one-shots
	HardClicked  bool
	MatchClicked bool

	// latches
	MatchingSeen bool
	HUDArmed     bool

	// timers
	CaptainWaitStart   time.Time
	MatchCheckStart    time.Time
	LastMatchRetry     time.Time
	ConfirmWindowStart time.Time
	LastConfirmSeen    time.Time
	DungeonTimerStart  time.Time
	LastFailsafeTry    time.Time
	PostExitStart      time.Time
	LeaveEnter         time.Time
	ProbeStart         time.Time

	// multi-poll sequences
	FailsafePending  bool
	LeaveIconClicked bool
	LeaveEscPending  bool
	ProbeDone        bool

	// counters
	MatchRetries     int
	RapidClicks      int
	FailsafeAttempts int
}

// Reset clears every field and returns to StateAwaitPrompt.
func (m *Memory) Reset() { *m = Memory{} }

// IsInitial reports whether m equals a freshly reset memory.
func (m Memory) IsInitial() bool { return m == Memory{} }
