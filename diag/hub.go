package diag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/soocke/tower-bot-go/control"
)

const (
	clientBuffer = 64
	writeTimeout = 2 * time.Second
)

type client struct {
	send    chan any
	dropped atomic.Int64
}

// Hub streams log records to websocket clients and accepts run flag
// commands from them. A slow client loses records instead of stalling the
// logger.
type Hub struct {
	ctl    control.RunControl
	status func() any
	logger *slog.Logger

	mu      sync.RWMutex
	clients map[*websocket.Conn]*client
}

// NewHub constructs a hub. status, when set, backs GET /api/status.
func NewHub(ctl control.RunControl, status func() any, logger *slog.Logger) *Hub {
	return &Hub{ctl: ctl, status: status, logger: logger, clients: make(map[*websocket.Conn]*client)}
}

// SetLogger replaces the hub's own logger. Call it before Serve.
func (h *Hub) SetLogger(l *slog.Logger) { h.logger = l }

// Handler returns the HTTP handler.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.handleWebSocket)
	mux.HandleFunc("GET /api/status", h.handleStatus)
	return mux
}

// Clients returns the number of connected websocket clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Serve listens on addr until ctx is done.
func (h *Hub) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("diag: listen %s: %w", addr, err)
	}
	srv := &http.Server{
		Handler:     h.Handler(),
		ReadTimeout: 10 * time.Second,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	h.log().Info("diagnostic hub listening", "category", "control", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("diag: serve: %w", err)
	}
	return nil
}

func (h *Hub) log() *slog.Logger {
	if h.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return h.logger
}

func (h *Hub) handleStatus(w http.ResponseWriter, r *http.Request) {
	if h.status == nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := writeJSON(w, h.status()); err != nil {
		h.log().Debug("status write failed", "category", "error", "error", err)
	}
}

func (h *Hub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"localhost:*", "127.0.0.1:*"},
	})
	if err != nil {
		h.log().Error("websocket accept error", "category", "error", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	c := &client{send: make(chan any, clientBuffer)}
	h.mu.Lock()
	h.clients[conn] = c
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}()

	go h.writeLoop(ctx, conn, c)

	for {
		var msg CommandMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			return
		}
		cmd, err := control.ParseCommand(msg.Command)
		if err != nil {
			h.enqueue(c, ErrorMessage{Type: "error", Message: err.Error()})
			continue
		}
		applied := control.Apply(h.ctl, cmd)
		h.log().Info("command", "category", "control", "source", "websocket",
			"remote", r.RemoteAddr, "command", string(cmd), "applied", applied)
		h.enqueue(c, AckMessage{Type: "ack", Command: string(cmd), Applied: applied})
	}
}

func (h *Hub) writeLoop(ctx context.Context, conn *websocket.Conn, c *client) {
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-c.send:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, conn, m)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func (h *Hub) enqueue(c *client, m any) {
	select {
	case c.send <- m:
	default:
		c.dropped.Add(1)
	}
}

func (h *Hub) broadcast(e Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		h.enqueue(c, e)
	}
}
