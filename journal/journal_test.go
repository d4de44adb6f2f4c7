package journal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/soocke/tower-bot-go/domain/tower"
)

func openTemp(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "sub", "journal.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpen_AppliesMigrationsOnce(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "j.db")
	db, err := Open(p)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if v, err := db.Version(); err != nil || v != 1 {
		t.Fatalf("version %d %v", v, err)
	}
	db.Close()

	db, err = Open(p)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()
	if v, _ := db.Version(); v != 1 {
		t.Fatalf("version after reopen %d", v)
	}
}

func TestJournal_RecordsTransitionsAndCycles(t *testing.T) {
	db := openTemp(t)
	j, err := New(db, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if j.Session() == "" {
		t.Fatalf("empty session id")
	}

	seq := []tower.State{
		tower.StateAwaitOptionA, tower.StateAwaitOptionB, tower.StateOwnershipPrompt,
		tower.StatePartyLeaveFlow, tower.StateAwaitPrompt,
		tower.StateAwaitOptionA, tower.StateAwaitOptionB, tower.StateOwnershipPrompt,
		tower.StateMatchingUntilConfirm, tower.StateConfirmMonitor, tower.StateAwaitExitPrompt,
		tower.StatePostExitVerify, tower.StateAwaitPrompt,
	}
	prev := tower.StateAwaitPrompt
	for _, s := range seq {
		j.OnTransition(prev, s)
		prev = s
	}

	if n, err := j.Transitions(); err != nil || n != len(seq) {
		t.Fatalf("transitions %d %v", n, err)
	}
	out, err := j.Outcomes()
	if err != nil {
		t.Fatalf("outcomes: %v", err)
	}
	if len(out) != 2 || out["party_leave_flow"] != 1 || out["post_exit_verify"] != 1 {
		t.Fatalf("outcomes %v", out)
	}
}

func TestJournal_CloseEndsSession(t *testing.T) {
	db := openTemp(t)
	j, err := New(db, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	end := time.Date(2025, 3, 1, 13, 0, 0, 0, time.UTC)
	j.now = func() time.Time { return end }
	if err := j.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	var ended time.Time
	if err := db.conn.QueryRow(`SELECT ended_at FROM sessions WHERE id = ?`, j.Session()).Scan(&ended); err != nil {
		t.Fatalf("query: %v", err)
	}
	if !ended.Equal(end) {
		t.Fatalf("ended_at %v, want %v", ended, end)
	}

	j.OnTransition(tower.StateAwaitPrompt, tower.StateAwaitOptionA)
	if n, _ := j.Transitions(); n != 0 {
		t.Fatalf("transition recorded after close")
	}
}

func TestJournal_FailuresAreSwallowed(t *testing.T) {
	db := openTemp(t)
	j, err := New(db, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	db.Close()
	// must not panic or block
	j.OnTransition(tower.StateConfirmMonitor, tower.StateAwaitPrompt)
}

func TestJournal_SessionsAreDistinct(t *testing.T) {
	db := openTemp(t)
	a, err := New(db, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	b, err := New(db, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if a.Session() == b.Session() {
		t.Fatalf("session ids collide")
	}
	a.OnTransition(tower.StateAwaitPrompt, tower.StateAwaitOptionA)
	if n, _ := b.Transitions(); n != 0 {
		t.Fatalf("transitions leaked across sessions")
	}
}
