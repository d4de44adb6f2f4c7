package control

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"strings"
)

// ReadCommands reads one command per line from r until EOF or ctx is done.
// Blank lines are ignored, unknown ones logged.
func ReadCommands(ctx context.Context, r io.Reader, ctl RunControl, logger *slog.Logger) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		cmd, err := ParseCommand(line)
		if err != nil {
			if logger != nil {
				logger.Warn("ignoring input", "category", "control", "error", err)
			}
			continue
		}
		ok := Apply(ctl, cmd)
		if logger != nil {
			logger.Info("command", "category", "control", "source", "stdin", "command", string(cmd), "applied", ok)
		}
	}
	return sc.Err()
}
