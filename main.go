package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/soocke/tower-bot-go/assets"
	"github.com/soocke/tower-bot-go/config"
	"github.com/soocke/tower-bot-go/control"
	"github.com/soocke/tower-bot-go/debug"
	"github.com/soocke/tower-bot-go/diag"
	"github.com/soocke/tower-bot-go/domain/action"
	"github.com/soocke/tower-bot-go/domain/capture"
	"github.com/soocke/tower-bot-go/domain/reference"
	"github.com/soocke/tower-bot-go/domain/tower"
	"github.com/soocke/tower-bot-go/journal"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "tower-bot:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		cfgPath   = flag.String("config", config.DefaultPath(), "config file (.json, .yaml or .ini)")
		debugFlag = flag.Bool("debug", false, "debug logging and runtime stats")
		autostart = flag.Bool("autostart", false, "start running immediately instead of paused")
	)
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return err
	}
	cfg.ApplyEnv()
	if *debugFlag {
		cfg.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level := parseLevel(cfg.LogLevel, cfg.Debug)
	flagState := &tower.RunFlag{}
	// Every start re-resolves the capture area: the bound window may have
	// moved while paused. src is set before any signal source runs.
	var src *capture.CachedSource
	ctl := control.OnStart(flagState, func() {
		if src != nil {
			src.Refresh()
		}
	})

	// The hub is created before the logger so remote clients see startup.
	var hub *diag.Hub
	var controller *tower.Controller
	handlers := []slog.Handler{newJSONHandler(level, os.Stdout)}
	if cfg.RemoteAddr != "" {
		hub = diag.NewHub(ctl, func() any { return statusOf(controller) }, nil)
		handlers = append(handlers, hub.LogHandler(level))
	}
	logger := slog.New(diag.NewFanout(handlers...))
	slog.SetDefault(logger)
	if hub != nil {
		hub.SetLogger(logger)
	}
	logger.Info("configuration loaded", "category", "control", "path", *cfgPath,
		"monitor", cfg.MonitorIndex, "backend", cfg.CaptureBackend, "window", cfg.WindowTitle)

	lib, err := loadReferences(cfg, logger)
	if err != nil {
		logger.Error("reference library", "category", "error", "error", err)
		return err
	}

	grabber, err := capture.NewGrabber(cfg.CaptureBackend, cfg.MonitorIndex, logger)
	if err != nil {
		return err
	}
	src = capture.NewCachedSource(grabber, capture.SourceOptions{
		WindowTitle: cfg.WindowTitle,
		CacheTTL:    time.Duration(cfg.FrameCacheMS) * time.Millisecond,
	}, logger)
	if area, err := src.Area(); err != nil {
		logger.Warn("capture area unavailable", "category", "capture", "error", err)
	} else {
		logger.Info("capture area", "category", "capture", "rect", area.String())
	}
	scanner := capture.NewScanner(src, lib, capture.NewMatcher(cfg.Stride, cfg.Refine), logger)

	machine := tower.NewMachine(tower.SettingsFromConfig(cfg), nil, logger)
	input := action.NewInput(action.NewDevice(), logger)
	controller = tower.NewController(machine, scanner, tower.ThresholdFunc(cfg.Threshold, lib.Threshold),
		input, flagState, logger, tower.Options{Poll: time.Duration(cfg.PollMS) * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if jr := openJournal(cfg, logger); jr != nil {
		defer jr.close()
		controller.AddListener(jr.OnTransition)
	}

	release := control.WatchSignals(ctx, ctl, logger)
	defer release()
	go func() {
		if err := control.ReadCommands(ctx, os.Stdin, ctl, logger); err != nil {
			logger.Debug("stdin closed", "category", "control", "error", err)
		}
	}()
	if cfg.Hotkeys {
		if control.Supported() {
			hk := control.NewHotkeyWatcher(ctl, logger, nil)
			hk.Start()
			defer hk.Stop()
			logger.Info("hotkeys: F8 start, F9 pause, F10 stop", "category", "control")
		} else {
			logger.Info("global hotkeys unavailable, use stdin commands", "category", "control")
		}
	}
	if hub != nil {
		go func() {
			if err := hub.Serve(ctx, cfg.RemoteAddr); err != nil {
				logger.Error("diagnostic hub", "category", "error", "error", err)
			}
		}()
	}
	if cfg.Debug {
		debug.StartGoroutineLogger(ctx, 10*time.Second, logger)
		debug.StartMemLogger(ctx, 10*time.Second, logger)
		go logCaptureStats(ctx, src)
	}

	if *autostart {
		ctl.Start()
	}
	logger.Info("ready", "category", "control", "run", flagState.Load().String())
	return controller.Run(ctx)
}

func loadReferences(cfg *config.Config, logger *slog.Logger) (*reference.Library, error) {
	var (
		m   *reference.Manifest
		err error
	)
	if cfg.Manifest != "" {
		m, err = reference.LoadManifest(cfg.Manifest)
	} else {
		m, err = reference.ParseManifest(assets.ReferencesYAML)
	}
	if err != nil {
		return nil, err
	}
	lib, err := reference.Load(os.DirFS(cfg.AssetsDir), m, logger)
	if err != nil {
		return nil, err
	}
	if err := lib.Require(tower.References...); err != nil {
		return nil, err
	}
	if err := lib.Require(cfg.ProbeOrder...); err != nil {
		return nil, err
	}
	if logger != nil {
		logger.Info("references loaded", "category", "control", "count", len(lib.Names()), "names", lib.Names())
	}
	return lib, nil
}

type journalHandle struct {
	*journal.Journal
	db     *journal.DB
	logger *slog.Logger
}

// openJournal opens the journal; failures are logged and journaling is
// skipped.
func openJournal(cfg *config.Config, logger *slog.Logger) *journalHandle {
	path := cfg.JournalPath
	if path == "" {
		path = config.DefaultJournalPath()
	}
	if path == "off" {
		return nil
	}
	db, err := journal.Open(path)
	if err != nil {
		logger.Error("journal disabled", "category", "journal", "error", err)
		return nil
	}
	j, err := journal.New(db, logger)
	if err != nil {
		db.Close()
		logger.Error("journal disabled", "category", "journal", "error", err)
		return nil
	}
	return &journalHandle{Journal: j, db: db, logger: logger}
}

func (h *journalHandle) close() {
	if out, err := h.Outcomes(); err == nil {
		n, _ := h.Transitions()
		h.logger.Info("cycle outcomes", "category", "journal", "outcomes", out, "transitions", n)
	}
	err := errors.Join(h.Journal.Close(), h.db.Close())
	if err != nil {
		h.logger.Error("journal close", "category", "journal", "error", err)
	}
}

func logCaptureStats(ctx context.Context, src *capture.CachedSource) {
	t := time.NewTicker(5 * time.Second)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			src.LogStats()
		}
	}
}

func statusOf(c *tower.Controller) any {
	if c == nil {
		return map[string]any{"state": "starting"}
	}
	s := c.Stats()
	return map[string]any{
		"state":          s.State.String(),
		"polls":          s.Polls,
		"cycles":         s.Cycles,
		"guard_resets":   s.GuardResets,
		"failsafe_exits": s.FailsafeExits,
		"stretch_cycles": s.Stretch.Cycles,
		"stretches":      s.Stretches,
		"session":        s.Session.String(),
		"total":          s.Total.String(),
	}
}
