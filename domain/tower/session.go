package tower

import (
	"time"
)

// Tally counts how cycles ended.
type Tally struct {
	Cycles        uint64 // returns to the entry prompt state
	GuardResets   uint64 // of those, returns that skipped the exit paths
	FailsafeExits uint64 // recoveries that left through the failsafe key
}

func (t *Tally) add(d Tally) {
	t.Cycles += d.Cycles
	t.GuardResets += d.GuardResets
	t.FailsafeExits += d.FailsafeExits
}

// classify maps one state change to the outcome it completes, if any. Only
// post-exit verification and the party-leave flow hand back to the prompt
// on purpose; every other return is a reset.
func classify(prev, next State) Tally {
	var d Tally
	if next == StateAwaitPrompt {
		d.Cycles = 1
		if prev != StatePostExitVerify && prev != StatePartyLeaveFlow {
			d.GuardResets = 1
		}
	}
	if prev == StateRapidClickRecovery && next == StatePostExitVerify {
		d.FailsafeExits = 1
	}
	return d
}

// Session tracks run stretches. A stretch begins when the run flag turns on
// and ends when it turns off; outcomes are tallied per stretch and for the
// process lifetime. The zero value is ready to use.
type Session struct {
	running   bool
	since     time.Time
	last      time.Duration // ongoing or most recent stretch
	past      time.Duration // all finished stretches
	stretches int

	stretch  Tally
	lifetime Tally
}

// Observe feeds the run flag seen at now. It reports whether a stretch ended.
func (s *Session) Observe(running bool, now time.Time) (ended bool) {
	switch {
	case running && !s.running:
		s.running, s.since, s.last = true, now, 0
		s.stretch = Tally{}
		s.stretches++
	case running:
		s.last = now.Sub(s.since)
	case s.running:
		s.last = now.Sub(s.since)
		s.past += s.last
		s.running = false
		return true
	}
	return false
}

// Record tallies the outcome of a state change.
func (s *Session) Record(prev, next State) {
	d := classify(prev, next)
	s.stretch.add(d)
	s.lifetime.add(d)
}

// Durations returns the ongoing or most recent stretch and the total running
// time including it.
func (s *Session) Durations() (stretch, total time.Duration) {
	total = s.past
	if s.running {
		total += s.last
	}
	return s.last, total
}

// Stretch returns the outcomes of the ongoing or most recent stretch.
func (s *Session) Stretch() Tally { return s.stretch }

// Lifetime returns the outcomes since the process started.
func (s *Session) Lifetime() Tally { return s.lifetime }

// Stretches returns how many stretches have begun.
func (s *Session) Stretches() int { return s.stretches }
