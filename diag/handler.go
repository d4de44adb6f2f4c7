package diag

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
)

// logHandler turns records into Events for the hub.
type logHandler struct {
	hub    *Hub
	level  slog.Leveler
	attrs  []slog.Attr
	prefix string
}

// LogHandler returns a slog.Handler that streams records at or above level
// to every connected client.
func (h *Hub) LogHandler(level slog.Leveler) slog.Handler {
	if level == nil {
		level = slog.LevelInfo
	}
	return &logHandler{hub: h, level: level}
}

func (l *logHandler) Enabled(_ context.Context, lv slog.Level) bool {
	return lv >= l.level.Level() && l.hub.Clients() > 0
}

func (l *logHandler) Handle(_ context.Context, r slog.Record) error {
	e := Event{Type: "log", Time: r.Time, Level: r.Level.String(), Message: r.Message}
	if n := len(l.attrs) + r.NumAttrs(); n > 0 {
		e.Attrs = make(map[string]any, n)
	}
	for _, a := range l.attrs {
		addAttr(e.Attrs, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		addAttr(e.Attrs, l.prefix, a)
		return true
	})
	l.hub.broadcast(e)
	return nil
}

func (l *logHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	n := *l
	n.attrs = make([]slog.Attr, 0, len(l.attrs)+len(attrs))
	n.attrs = append(n.attrs, l.attrs...)
	for _, a := range attrs {
		if l.prefix != "" {
			a.Key = l.prefix + a.Key
		}
		n.attrs = append(n.attrs, a)
	}
	return &n
}

func (l *logHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return l
	}
	n := *l
	n.prefix = l.prefix + name + "."
	return &n
}

func addAttr(m map[string]any, prefix string, a slog.Attr) {
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p += a.Key + "."
		}
		for _, ga := range v.Group() {
			addAttr(m, p, ga)
		}
		return
	}
	if a.Key == "" {
		return
	}
	switch v.Kind() {
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			m[prefix+a.Key] = err.Error()
			return
		}
		m[prefix+a.Key] = v.Any()
	case slog.KindDuration:
		m[prefix+a.Key] = v.Duration().String()
	default:
		m[prefix+a.Key] = v.Any()
	}
}

func writeJSON(w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}
