package tower

import (
	"testing"
	"time"
)

func TestSession_StretchDurations(t *testing.T) {
	var s Session
	base := time.Unix(0, 0)

	s.Observe(true, base)
	s.Observe(true, base.Add(5*time.Second))
	if st, tot := s.Durations(); st != 5*time.Second || tot != 5*time.Second {
		t.Fatalf("running: stretch=%v total=%v", st, tot)
	}

	if !s.Observe(false, base.Add(6*time.Second)) {
		t.Fatalf("turning off must end the stretch")
	}
	if s.Observe(false, base.Add(9*time.Second)) {
		t.Fatalf("idle tick ended a stretch twice")
	}
	if st, tot := s.Durations(); st != 6*time.Second || tot != 6*time.Second {
		t.Fatalf("paused: stretch=%v total=%v", st, tot)
	}

	s.Observe(true, base.Add(10*time.Second))
	s.Observe(true, base.Add(13*time.Second))
	if st, tot := s.Durations(); st != 3*time.Second || tot != 9*time.Second {
		t.Fatalf("second stretch: stretch=%v total=%v", st, tot)
	}
	if s.Stretches() != 2 {
		t.Fatalf("stretches = %d", s.Stretches())
	}
}

func TestSession_TalliesPerStretchAndLifetime(t *testing.T) {
	var s Session
	base := time.Unix(0, 0)
	s.Observe(true, base)
	s.Record(StatePostExitVerify, StateAwaitPrompt)
	s.Record(StateRapidClickRecovery, StatePostExitVerify)
	s.Record(StatePostExitVerify, StateAwaitPrompt)
	s.Observe(false, base.Add(time.Minute))

	s.Observe(true, base.Add(2*time.Minute))
	s.Record(StateConfirmMonitor, StateAwaitPrompt)
	s.Record(StatePartyLeaveFlow, StateAwaitPrompt)

	if got := s.Stretch(); got != (Tally{Cycles: 2, GuardResets: 1}) {
		t.Fatalf("stretch tally %+v", got)
	}
	if got := s.Lifetime(); got != (Tally{Cycles: 4, GuardResets: 1, FailsafeExits: 1}) {
		t.Fatalf("lifetime tally %+v", got)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		prev, next State
		want       Tally
	}{
		{StatePostExitVerify, StateAwaitPrompt, Tally{Cycles: 1}},
		{StatePartyLeaveFlow, StateAwaitPrompt, Tally{Cycles: 1}},
		{StateOwnershipPrompt, StateAwaitPrompt, Tally{Cycles: 1, GuardResets: 1}},
		{StateRapidClickRecovery, StatePostExitVerify, Tally{FailsafeExits: 1}},
		{StateAwaitExitPrompt, StatePostExitVerify, Tally{}},
		{StateAwaitPrompt, StateAwaitOptionA, Tally{}},
	}
	for _, tc := range cases {
		if got := classify(tc.prev, tc.next); got != tc.want {
			t.Fatalf("%v -> %v: %+v, want %+v", tc.prev, tc.next, got, tc.want)
		}
	}
}
