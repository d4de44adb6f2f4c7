package config

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

// Config holds runtime configuration for capture, matching and the control loop.
// Fields may be loaded from a JSON, YAML or INI file and overridden by
// environment variables and command-line flags.
type Config struct {
	Debug    bool   `json:"debug" yaml:"debug"`
	LogLevel string `json:"log_level" yaml:"log_level"`

	// Capture area
	MonitorIndex   int    `json:"monitor_index" yaml:"monitor_index"`
	WindowTitle    string `json:"window_title" yaml:"window_title"`
	CaptureBackend string `json:"capture_backend" yaml:"capture_backend"` // display | screen | gdi
	FrameCacheMS   int    `json:"frame_cache_ms" yaml:"frame_cache_ms"`

	// Matching
	AssetsDir       string             `json:"assets_dir" yaml:"assets_dir"`
	Manifest        string             `json:"manifest" yaml:"manifest"` // empty: embedded default
	Stride          int                `json:"stride" yaml:"stride"`
	Refine          bool               `json:"refine" yaml:"refine"`
	Thresholds      map[string]float64 `json:"thresholds" yaml:"thresholds"`
	MatchingRegions []Region           `json:"matching_regions" yaml:"matching_regions"`
	ProbeOrder      []string           `json:"probe_order" yaml:"probe_order"`

	Timing Timing `json:"timing" yaml:"timing"`
	Input  Input  `json:"input" yaml:"input"`

	// Control loop and surroundings
	PollMS      int    `json:"poll_ms" yaml:"poll_ms"`
	JournalPath string `json:"journal_path" yaml:"journal_path"`
	RemoteAddr  string `json:"remote_addr" yaml:"remote_addr"`
	Hotkeys     bool   `json:"hotkeys" yaml:"hotkeys"`
}

// Region is a fractional sub-rectangle of the capture area.
type Region struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	W float64 `json:"w" yaml:"w"`
	H float64 `json:"h" yaml:"h"`
}

// Timing groups every timer and settle pause, in seconds.
type Timing struct {
	OwnershipGrace     float64 `json:"ownership_grace" yaml:"ownership_grace" ini:"ownership_grace"`
	MatchTimeout       float64 `json:"match_timeout" yaml:"match_timeout" ini:"match_timeout"`
	MatchRetryCooldown float64 `json:"match_retry_cooldown" yaml:"match_retry_cooldown" ini:"match_retry_cooldown"`
	ConfirmWindow      float64 `json:"confirm_window" yaml:"confirm_window" ini:"confirm_window"`
	ConfirmGoneMargin  float64 `json:"confirm_gone_margin" yaml:"confirm_gone_margin" ini:"confirm_gone_margin"`
	PostExitWindow     float64 `json:"post_exit_window" yaml:"post_exit_window" ini:"post_exit_window"`
	Failsafe           float64 `json:"failsafe" yaml:"failsafe" ini:"failsafe"`
	FailsafeRetry      float64 `json:"failsafe_retry" yaml:"failsafe_retry" ini:"failsafe_retry"`
	LeaveTimeout       float64 `json:"leave_timeout" yaml:"leave_timeout" ini:"leave_timeout"`
	LeaveRenderGrace   float64 `json:"leave_render_grace" yaml:"leave_render_grace" ini:"leave_render_grace"`

	SettleAction      float64 `json:"settle_action" yaml:"settle_action" ini:"settle_action"`
	SettleDecline     float64 `json:"settle_decline" yaml:"settle_decline" ini:"settle_decline"`
	SettleConfirm     float64 `json:"settle_confirm" yaml:"settle_confirm" ini:"settle_confirm"`
	SettleReconfirm   float64 `json:"settle_reconfirm" yaml:"settle_reconfirm" ini:"settle_reconfirm"`
	SettlePostExit    float64 `json:"settle_post_exit" yaml:"settle_post_exit" ini:"settle_post_exit"`
	SettleLeaveIcon   float64 `json:"settle_leave_icon" yaml:"settle_leave_icon" ini:"settle_leave_icon"`
	SettlePartyAccept float64 `json:"settle_party_accept" yaml:"settle_party_accept" ini:"settle_party_accept"`
	SettleLeaveClose  float64 `json:"settle_leave_close" yaml:"settle_leave_close" ini:"settle_leave_close"`
	SettleEscape      float64 `json:"settle_escape" yaml:"settle_escape" ini:"settle_escape"`
	SettleFailsafeKey float64 `json:"settle_failsafe_key" yaml:"settle_failsafe_key" ini:"settle_failsafe_key"`
	SettleGuard       float64 `json:"settle_guard" yaml:"settle_guard" ini:"settle_guard"`
}

// Input configures key names and click humanisation.
type Input struct {
	InteractKey   string `json:"interact_key" yaml:"interact_key" ini:"interact_key"`
	HUDKey        string `json:"hud_key" yaml:"hud_key" ini:"hud_key"`
	EscapeKey     string `json:"escape_key" yaml:"escape_key" ini:"escape_key"`
	InventoryKey  string `json:"inventory_key" yaml:"inventory_key" ini:"inventory_key"`
	FailsafeKey   string `json:"failsafe_key" yaml:"failsafe_key" ini:"failsafe_key"`
	InteractHold  int    `json:"interact_hold_ms" yaml:"interact_hold_ms" ini:"interact_hold_ms"`
	HUDHold       int    `json:"hud_hold_ms" yaml:"hud_hold_ms" ini:"hud_hold_ms"`
	JitterPx      int    `json:"jitter_px" yaml:"jitter_px" ini:"jitter_px"`
	MoveMinMS     int    `json:"move_min_ms" yaml:"move_min_ms" ini:"move_min_ms"`
	MoveMaxMS     int    `json:"move_max_ms" yaml:"move_max_ms" ini:"move_max_ms"`
	ClicksPerSecL int    `json:"cps_min" yaml:"cps_min" ini:"cps_min"`
	ClicksPerSecH int    `json:"cps_max" yaml:"cps_max" ini:"cps_max"`
}

// DefaultThreshold applies to any reference without a tuned threshold.
const DefaultThreshold = 0.8

// DefaultConfig returns a Config populated with the tuned defaults.
func DefaultConfig() *Config {
	return &Config{
		Debug:          false,
		LogLevel:       "info",
		MonitorIndex:   2,
		CaptureBackend: "display",
		FrameCacheMS:   40,
		AssetsDir:      "assets",
		Stride:         4,
		Refine:         true,
		Thresholds:     map[string]float64{},
		MatchingRegions: []Region{
			{X: 0.50, Y: 0.62, W: 0.40, H: 0.08},
			{X: 0.56, Y: 0.86, W: 0.36, H: 0.10},
		},
		ProbeOrder: []string{
			"entry_prompt", "difficulty_hard", "match",
			"matching", "confirm_match",
			"dungeon_hud", "leave_dungeon",
			"leave_icon", "confirm_party",
		},
		Timing: Timing{
			OwnershipGrace:     3.0,
			MatchTimeout:       5.0,
			MatchRetryCooldown: 3.0,
			ConfirmWindow:      15.0,
			ConfirmGoneMargin:  1.0,
			PostExitWindow:     8.0,
			Failsafe:           16 * 60,
			FailsafeRetry:      2.0,
			LeaveTimeout:       5.0,
			LeaveRenderGrace:   0.6,
			SettleAction:       1.0,
			SettleDecline:      0.6,
			SettleConfirm:      0.8,
			SettleReconfirm:    0.3,
			SettlePostExit:     0.6,
			SettleLeaveIcon:    0.6,
			SettlePartyAccept:  0.8,
			SettleLeaveClose:   0.4,
			SettleEscape:       0.2,
			SettleFailsafeKey:  0.3,
			SettleGuard:        0.15,
		},
		Input: Input{
			InteractKey:   "f",
			HUDKey:        "h",
			EscapeKey:     "esc",
			InventoryKey:  "i",
			FailsafeKey:   "p",
			InteractHold:  60,
			HUDHold:       2000,
			JitterPx:      3,
			MoveMinMS:     20,
			MoveMaxMS:     60,
			ClicksPerSecL: 12,
			ClicksPerSecH: 20,
		},
		PollMS:  50,
		Hotkeys: true,
	}
}

// Validate clamps/normalizes values to safe ranges.
func (c *Config) Validate() error {
	def := DefaultConfig()
	if c.MonitorIndex < 0 {
		c.MonitorIndex = 0
	}
	switch c.CaptureBackend {
	case "display", "screen", "gdi":
	default:
		c.CaptureBackend = def.CaptureBackend
	}
	if c.FrameCacheMS < 0 {
		c.FrameCacheMS = 0
	}
	if c.AssetsDir == "" {
		c.AssetsDir = def.AssetsDir
	}
	if c.Stride <= 0 {
		c.Stride = def.Stride
	}
	if c.Thresholds == nil {
		c.Thresholds = map[string]float64{}
	}
	for k, v := range c.Thresholds {
		if v <= 0 || v > 1 {
			c.Thresholds[k] = DefaultThreshold
		}
	}
	kept := c.MatchingRegions[:0]
	for _, r := range c.MatchingRegions {
		if r.Valid() {
			kept = append(kept, r)
		}
	}
	c.MatchingRegions = kept
	if len(c.MatchingRegions) == 0 {
		c.MatchingRegions = def.MatchingRegions
	}
	if len(c.ProbeOrder) == 0 {
		c.ProbeOrder = def.ProbeOrder
	}
	c.Timing.clamp(def.Timing)
	c.Input.clamp(def.Input)
	if c.PollMS <= 0 {
		c.PollMS = def.PollMS
	}
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		c.LogLevel = def.LogLevel
	}
	if c.RemoteAddr != "" {
		if _, _, err := net.SplitHostPort(c.RemoteAddr); err != nil {
			return fmt.Errorf("config: remote_addr %q: %w", c.RemoteAddr, err)
		}
	}
	return nil
}

// Valid reports whether r lies inside the unit square with a non-empty area.
func (r Region) Valid() bool {
	if r.W <= 0 || r.H <= 0 || r.X < 0 || r.Y < 0 {
		return false
	}
	return r.X+r.W <= 1.0000001 && r.Y+r.H <= 1.0000001
}

func (t *Timing) clamp(def Timing) {
	pos := func(v *float64, d float64) {
		if *v <= 0 {
			*v = d
		}
	}
	nonNeg := func(v *float64) {
		if *v < 0 {
			*v = 0
		}
	}
	pos(&t.OwnershipGrace, def.OwnershipGrace)
	pos(&t.MatchTimeout, def.MatchTimeout)
	pos(&t.MatchRetryCooldown, def.MatchRetryCooldown)
	pos(&t.ConfirmWindow, def.ConfirmWindow)
	nonNeg(&t.ConfirmGoneMargin)
	pos(&t.PostExitWindow, def.PostExitWindow)
	pos(&t.Failsafe, def.Failsafe)
	pos(&t.FailsafeRetry, def.FailsafeRetry)
	pos(&t.LeaveTimeout, def.LeaveTimeout)
	nonNeg(&t.LeaveRenderGrace)
	for _, v := range []*float64{
		&t.SettleAction, &t.SettleDecline, &t.SettleConfirm, &t.SettleReconfirm,
		&t.SettlePostExit, &t.SettleLeaveIcon, &t.SettlePartyAccept, &t.SettleLeaveClose,
		&t.SettleEscape, &t.SettleFailsafeKey, &t.SettleGuard,
	} {
		nonNeg(v)
	}
}

func (in *Input) clamp(def Input) {
	key := func(v *string, d string) {
		*v = strings.ToLower(strings.TrimSpace(*v))
		if *v == "" {
			*v = d
		}
	}
	key(&in.InteractKey, def.InteractKey)
	key(&in.HUDKey, def.HUDKey)
	key(&in.EscapeKey, def.EscapeKey)
	key(&in.InventoryKey, def.InventoryKey)
	key(&in.FailsafeKey, def.FailsafeKey)
	if in.InteractHold < 0 {
		in.InteractHold = 0
	}
	if in.HUDHold < 0 {
		in.HUDHold = 0
	}
	if in.JitterPx < 0 {
		in.JitterPx = 0
	}
	if in.MoveMinMS < 0 {
		in.MoveMinMS = 0
	}
	if in.MoveMaxMS < in.MoveMinMS {
		in.MoveMaxMS = in.MoveMinMS
	}
	if in.ClicksPerSecL <= 0 {
		in.ClicksPerSecL = def.ClicksPerSecL
	}
	if in.ClicksPerSecH < in.ClicksPerSecL {
		in.ClicksPerSecH = in.ClicksPerSecL
	}
}

// Threshold returns the configured override for name, if any.
func (c *Config) Threshold(name string) (float64, bool) {
	v, ok := c.Thresholds[name]
	return v, ok
}

// DefaultPath returns the per-user config file location.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, "tower-bot", "config.json")
}

// DefaultJournalPath returns the per-user journal database location.
func DefaultJournalPath() string {
	return filepath.Join(xdg.DataHome, "tower-bot", "journal.db")
}

// Load attempts to read configuration from path. The decoder is picked by the
// file extension (.json, .yaml/.yml, .ini). If the file does not exist it
// returns DefaultConfig(). On decode error it returns defaults with the error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	defer f.Close()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json", "":
		if err := json.NewDecoder(f).Decode(cfg); err != nil {
			return DefaultConfig(), fmt.Errorf("config: decode %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
			return DefaultConfig(), fmt.Errorf("config: decode %s: %w", path, err)
		}
	case ".ini":
		if err := decodeINI(f, cfg); err != nil {
			return DefaultConfig(), fmt.Errorf("config: decode %s: %w", path, err)
		}
	default:
		return cfg, fmt.Errorf("config: unsupported extension %q", ext)
	}
	if err := cfg.Validate(); err != nil {
		return DefaultConfig(), err
	}
	return cfg, nil
}

// Save writes the configuration to path, as YAML for .yaml/.yml and JSON otherwise.
func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		enc := yaml.NewEncoder(f)
		enc.SetIndent(2)
		if err := enc.Encode(c); err != nil {
			return err
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		return enc.Encode(c)
	}
}
