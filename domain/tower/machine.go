package tower

import (
	"io"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/soocke/tower-bot-go/domain/capture"
)

// Machine is the transition function of the run cycle. Step has no side
// effects besides logging and drawing from its random source; scans happen
// through the Scene and input is returned as Actions.
type Machine struct {
	s        Settings
	rng      *rand.Rand
	logger   *slog.Logger
	probeLog *slog.Logger
}

// NewMachine constructs a machine. A nil rng seeds one from the runtime.
func NewMachine(s Settings, rng *rand.Rand, logger *slog.Logger) *Machine {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Machine{
		s:        s,
		rng:      rng,
		logger:   logger.With("category", "state"),
		probeLog: logger.With("category", "probe"),
	}
}

// Settings returns the machine's settings.
func (m *Machine) Settings() Settings { return m.s }

// Desynchronized reports whether the in-progress indicator and the entry
// prompt are both visible while mem is outside the initial state. It never
// fires during the party-leave flow.
func (m *Machine) Desynchronized(mem Memory, sc Scene) bool {
	if mem.State == StateAwaitPrompt || mem.State == StatePartyLeaveFlow {
		return false
	}
	if _, ok := sc.Find(RefDungeonHUD); !ok {
		return false
	}
	_, ok := sc.Find(RefEntryPrompt)
	return ok
}

// Step advances mem by one poll observed through sc at time now.
func (m *Machine) Step(mem Memory, sc Scene, now time.Time) (Memory, []Action) {
	st := &step{m: m, s: &m.s, mem: mem, sc: sc, now: now}
	if m.Desynchronized(mem, sc) {
		m.logger.Info("entry prompt visible in session, resynchronizing", "state", mem.State.String())
		st.reset("desync")
		st.pause(m.s.SettleGuard)
		return st.mem, st.acts
	}
	switch mem.State {
	case StateAwaitPrompt:
		st.awaitPrompt()
	case StateAwaitOptionA:
		st.awaitOptionA()
	case StateAwaitOptionB:
		st.awaitOptionB()
	case StateOwnershipPrompt:
		st.ownershipPrompt()
	case StateMatchingUntilConfirm:
		st.matchingUntilConfirm()
	case StateConfirmMonitor:
		st.confirmMonitor()
	case StateRapidClickRecovery:
		st.rapidClickRecovery()
	case StateAwaitExitPrompt:
		st.awaitExitPrompt()
	case StatePostExitVerify:
		st.postExitVerify()
	case StatePartyLeaveFlow:
		st.partyLeaveFlow()
	default:
		m.logger.Warn("unknown state, resetting", "state", int(mem.State))
		st.reset("unknown state")
	}
	return st.mem, st.acts
}

// step accumulates the outcome of one Step call.
type step struct {
	m    *Machine
	s    *Settings
	mem  Memory
	sc   Scene
	now  time.Time
	acts []Action
}

func (st *step) emit(a ...Action) { st.acts = append(st.acts, a...) }

// pause emits a settle pause and returns the time it ends.
func (st *step) pause(d time.Duration) time.Time {
	if d > 0 {
		st.emit(Pause(d))
	}
	return st.now.Add(d)
}

// click emits a humanised click on the centre of d.
func (st *step) click(d capture.Detection) {
	p := d.Center()
	if j := st.s.JitterPx; j > 0 {
		p.X += st.m.rng.IntN(2*j+1) - j
		p.Y += st.m.rng.IntN(2*j+1) - j
	}
	move := st.s.MoveMin
	if span := st.s.MoveMax - st.s.MoveMin; span > 0 {
		move += time.Duration(st.m.rng.Int64N(int64(span) + 1))
	}
	st.emit(Click(p, move))
}

func (st *step) escapeSequence() time.Time {
	st.emit(Tap(st.s.EscapeKey))
	at := st.pause(st.s.SettleEscape)
	st.emit(Tap(st.s.InventoryKey))
	return at
}

func (st *step) reset(reason string) {
	st.m.logger.Debug("full reset", "reason", reason, "from", st.mem.State.String(),
		"match_retries", st.mem.MatchRetries, "rapid_clicks", st.mem.RapidClicks,
		"failsafe_attempts", st.mem.FailsafeAttempts)
	st.mem.Reset()
}

func (st *step) elapsed(since time.Time) time.Duration { return st.now.Sub(since) }

func (st *step) matchingVisible() bool {
	for _, r := range st.s.MatchingRegions {
		if _, ok := st.sc.FindIn(RefMatching, r); ok {
			return true
		}
	}
	return false
}

func (st *step) awaitPrompt() {
	if _, ok := st.sc.Find(RefEntryPrompt); !ok {
		return
	}
	st.m.logger.Info("entry prompt, interacting")
	st.emit(PressKey(st.s.InteractKey, st.s.InteractHold))
	st.pause(st.s.SettleAction)
	st.mem.State = StateAwaitOptionA
}

func (st *step) awaitOptionA() {
	if !st.mem.HardClicked {
		if d, ok := st.sc.Find(RefDifficultyHard); ok {
			st.m.logger.Info("difficulty option, clicking once")
			st.click(d)
			st.pause(st.s.SettleAction)
			st.mem.HardClicked = true
		}
	}
	st.mem.State = StateAwaitOptionB
}

func (st *step) awaitOptionB() {
	if st.mem.MatchClicked {
		return
	}
	d, ok := st.sc.Find(RefMatch)
	if !ok {
		return
	}
	st.m.logger.Info("match button, clicking once")
	st.click(d)
	st.mem.CaptainWaitStart = st.pause(st.s.SettleAction)
	st.mem.MatchClicked = true
	st.mem.State = StateOwnershipPrompt
}

func (st *step) ownershipPrompt() {
	if d, ok := st.sc.Find(RefDeclineCaptain); ok {
		st.m.logger.Info("ownership prompt, declining")
		st.click(d)
		st.mem.MatchCheckStart = st.pause(st.s.SettleDecline)
		st.mem.State = StateMatchingUntilConfirm
		return
	}
	if st.elapsed(st.mem.CaptainWaitStart) >= st.s.OwnershipGrace {
		st.m.logger.Info("no ownership prompt within grace, leaving party")
		st.mem.LeaveEnter = st.escapeSequence()
		st.mem.State = StatePartyLeaveFlow
	}
}

func (st *step) matchingUntilConfirm() {
	if !st.mem.MatchingSeen && st.matchingVisible() {
		st.m.logger.Info("matching seen, latched")
		st.mem.MatchingSeen = true
	}

	if st.elapsed(st.mem.LastMatchRetry) >= st.s.MatchRetryCooldown {
		if !st.matchingVisible() {
			if d, ok := st.sc.Find(RefMatch); ok {
				st.m.logger.Info("matching not visible, clicking match again")
				st.click(d)
				st.mem.CaptainWaitStart = st.pause(st.s.SettleDecline)
				st.mem.LastMatchRetry = st.now
				st.mem.MatchRetries++
				st.mem.State = StateOwnershipPrompt
				return
			}
			st.mem.LastMatchRetry = st.now
		}
	}

	if d, ok := st.sc.Find(RefConfirmMatch); ok {
		st.m.logger.Info("confirm popup, first confirm")
		st.click(d)
		at := st.pause(st.s.SettleConfirm)
		st.mem.ConfirmWindowStart = at
		st.mem.LastConfirmSeen = at
		st.mem.State = StateConfirmMonitor
		return
	}

	if !st.mem.MatchingSeen && st.elapsed(st.mem.MatchCheckStart) >= st.s.MatchTimeout {
		st.m.logger.Info("no matching and no confirm, leaving party")
		st.mem.LeaveEnter = st.escapeSequence()
		st.mem.State = StatePartyLeaveFlow
	}
}

// armFailsafe starts the long failsafe timer the first time the in-progress
// indicator is seen.
func (st *step) armFailsafe() {
	if st.mem.HUDArmed {
		return
	}
	if _, ok := st.sc.Find(RefDungeonHUD); !ok {
		return
	}
	st.m.logger.Info("session indicator seen, failsafe armed", "failsafe", st.s.Failsafe)
	st.mem.DungeonTimerStart = st.now
	st.mem.HUDArmed = true
	st.emit(PressKey(st.s.HUDKey, st.s.HUDHold))
}

func (st *step) confirmMonitor() {
	st.armFailsafe()

	if d, ok := st.sc.Find(RefConfirmMatch); ok {
		st.mem.LastConfirmSeen = st.now
		st.m.logger.Debug("confirm visible, clicking")
		st.click(d)
		st.pause(st.s.SettleReconfirm)
	}

	if _, ok := st.sc.Find(RefVictory); ok {
		st.m.logger.Info("victory during confirm monitor")
		st.mem.State = StateAwaitExitPrompt
		return
	}

	if st.elapsed(st.mem.ConfirmWindowStart) >= st.s.ConfirmWindow {
		gone := st.elapsed(st.mem.LastConfirmSeen)
		switch {
		case gone >= st.s.ConfirmWindow+st.s.ConfirmGoneMargin:
			st.m.logger.Info("confirm gone, starting rapid click recovery", "gone", gone)
			st.mem.State = StateRapidClickRecovery
		case gone <= st.s.ConfirmGoneMargin:
			st.mem.ConfirmWindowStart = st.now
		}
	}
}

func (st *step) rapidClickRecovery() {
	st.armFailsafe()

	if st.mem.FailsafePending {
		st.mem.FailsafePending = false
		if d, ok := st.sc.Find(RefConfirmParty); ok {
			st.m.logger.Info("failsafe confirm, verifying exit")
			st.click(d)
			at := st.pause(st.s.SettlePostExit)
			st.reset("failsafe")
			st.mem.PostExitStart = at
			st.mem.State = StatePostExitVerify
			return
		}
	}

	if st.mem.HUDArmed && st.elapsed(st.mem.DungeonTimerStart) >= st.s.Failsafe &&
		st.elapsed(st.mem.LastFailsafeTry) >= st.s.FailsafeRetry {
		st.m.logger.Info("failsafe reached, pressing key and checking for confirm")
		st.emit(Tap(st.s.FailsafeKey))
		st.pause(st.s.SettleFailsafeKey)
		st.mem.LastFailsafeTry = st.now
		st.mem.FailsafeAttempts++
		st.mem.FailsafePending = true
		return
	}

	if d, ok := st.sc.Find(RefConfirmMatch); ok {
		st.m.logger.Info("confirm reappeared, back to confirm monitor")
		st.click(d)
		at := st.pause(st.s.SettleReconfirm)
		st.mem.ConfirmWindowStart = at
		st.mem.LastConfirmSeen = at
		st.mem.MatchingSeen = true
		st.mem.State = StateConfirmMonitor
		return
	}

	if _, ok := st.sc.Find(RefVictory); ok {
		st.m.logger.Info("victory during rapid click recovery")
		st.mem.State = StateAwaitExitPrompt
		return
	}

	st.emit(RapidClick())
	st.mem.RapidClicks++
	cps := st.s.CPSMin
	if st.s.CPSMax > st.s.CPSMin {
		cps += st.m.rng.Float64() * (st.s.CPSMax - st.s.CPSMin)
	}
	if cps > 0 {
		st.pause(time.Duration(float64(time.Second) / cps))
	}
}

func (st *step) awaitExitPrompt() {
	d, ok := st.sc.Find(RefLeaveDungeon)
	if !ok {
		return
	}
	st.m.logger.Info("exit control, clicking")
	st.click(d)
	st.mem.PostExitStart = st.pause(st.s.SettleAction)
	st.mem.State = StatePostExitVerify
}

func (st *step) postExitVerify() {
	if d, ok := st.sc.Find(RefConfirmMatch); ok {
		st.m.logger.Info("confirm after exit, back to confirm monitor")
		st.click(d)
		at := st.pause(st.s.SettlePostExit)
		st.mem.ConfirmWindowStart = at
		st.mem.LastConfirmSeen = at
		st.mem.MatchingSeen = true
		st.mem.State = StateConfirmMonitor
		return
	}
	if _, ok := st.sc.Find(RefEntryPrompt); ok {
		st.m.logger.Info("entry prompt after exit, cycle complete")
		st.reset("cycle complete")
		return
	}
	if st.elapsed(st.mem.PostExitStart) >= st.s.PostExitWindow {
		st.m.logger.Info("post-exit window elapsed, resetting")
		st.reset("post-exit timeout")
	}
}

func (st *step) partyLeaveFlow() {
	if st.mem.LeaveIconClicked {
		if d, ok := st.sc.Find(RefConfirmParty); ok {
			st.m.logger.Info("party leave confirm, clicking")
			st.click(d)
			st.pause(st.s.SettlePartyAccept)
		}
		st.emit(Tap(st.s.EscapeKey))
		st.pause(st.s.SettleLeaveClose)
		st.reset("left party")
		return
	}

	if st.mem.LeaveEscPending {
		st.mem.LeaveEscPending = false
		if _, ok := st.sc.Find(RefEntryPrompt); ok {
			st.m.logger.Info("entry prompt after escape, resetting")
			st.reset("entry after escape")
			return
		}
		switch {
		case st.mem.ProbeStart.IsZero():
			st.mem.ProbeStart = st.now
		case !st.mem.ProbeDone:
			st.probe()
			st.mem.ProbeDone = true
		}
		return
	}

	if st.elapsed(st.mem.LeaveEnter) < st.s.LeaveRenderGrace {
		return
	}

	if d, ok := st.sc.Find(RefLeaveIcon); ok {
		st.m.logger.Info("leave icon, clicking")
		st.click(d)
		st.pause(st.s.SettleLeaveIcon)
		st.mem.LeaveIconClicked = true
		return
	}

	if st.elapsed(st.mem.LeaveEnter) >= st.s.LeaveTimeout {
		st.m.logger.Info("leave icon not found, escaping and checking entry prompt")
		st.emit(Tap(st.s.EscapeKey))
		st.pause(st.s.SettleEscape)
		st.mem.LeaveEscPending = true
	}
}

// probe scans every known reference once and logs the first hit.
func (st *step) probe() {
	log := st.m.probeLog
	for _, name := range st.s.ProbeOrder {
		if d, ok := st.sc.Find(name); ok {
			log.Info("probe hit", "reference", name, "score", d.Score)
			return
		}
	}
	log.Info("probe found no reference")
}
