package journal

import (
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/soocke/tower-bot-go/domain/tower"
)

// Journal records one process run as a session. Write failures are logged
// and dropped so they never reach the control loop.
type Journal struct {
	db     *DB
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	session string
	closed  bool
}

// New starts a session in db.
func New(db *DB, logger *slog.Logger) (*Journal, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	j := &Journal{db: db, logger: logger.With("category", "journal"), now: time.Now}
	if err := j.start(); err != nil {
		return nil, err
	}
	return j, nil
}

func (j *Journal) start() error {
	id := uuid.NewString()
	if _, err := j.db.conn.Exec(`INSERT INTO sessions (id, started_at) VALUES (?, ?)`, id, j.now().UTC()); err != nil {
		return fmt.Errorf("journal: start session: %w", err)
	}
	j.session = id
	j.logger.Info("session started", "session", id, "path", j.db.Path())
	return nil
}

// Session returns the current session id.
func (j *Journal) Session() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.session
}

// OnTransition is a tower.Listener. It stores the transition and, on a
// return to the initial state, the completed cycle with the state it came
// from as outcome.
func (j *Journal) OnTransition(prev, next tower.State) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return
	}
	at := j.now().UTC()
	err := j.db.ExecTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO transitions (session_id, at, from_state, to_state) VALUES (?, ?, ?, ?)`,
			j.session, at, prev.String(), next.String()); err != nil {
			return err
		}
		if next == tower.StateAwaitPrompt && prev != tower.StateAwaitPrompt {
			_, err := tx.Exec(`INSERT INTO cycles (session_id, at, outcome) VALUES (?, ?, ?)`,
				j.session, at, prev.String())
			return err
		}
		return nil
	})
	if err != nil {
		j.logger.Error("record transition failed", "error", err, "from", prev.String(), "to", next.String())
	}
}

// Close ends the session. Later transitions are ignored.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	if _, err := j.db.conn.Exec(`UPDATE sessions SET ended_at = ? WHERE id = ?`, j.now().UTC(), j.session); err != nil {
		return fmt.Errorf("journal: end session: %w", err)
	}
	j.logger.Info("session ended", "session", j.session)
	return nil
}

// Outcomes counts the cycles of the current session by outcome.
func (j *Journal) Outcomes() (map[string]int, error) {
	rows, err := j.db.conn.Query(`SELECT outcome, COUNT(*) FROM cycles WHERE session_id = ? GROUP BY outcome`, j.Session())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var o string
		var n int
		if err := rows.Scan(&o, &n); err != nil {
			return nil, err
		}
		out[o] = n
	}
	return out, rows.Err()
}

// Transitions returns how many transitions the current session recorded.
func (j *Journal) Transitions() (int, error) {
	var n int
	err := j.db.conn.QueryRow(`SELECT COUNT(*) FROM transitions WHERE session_id = ?`, j.Session()).Scan(&n)
	return n, err
}
