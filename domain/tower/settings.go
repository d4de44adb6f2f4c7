package tower

import (
	"time"

	"github.com/soocke/tower-bot-go/config"
	"github.com/soocke/tower-bot-go/domain/capture"
)

// Settings carries every tunable the machine reads. The machine itself
// holds no thresholds, timings or key names.
type Settings struct {
	MatchingRegions []capture.Region
	ProbeOrder      []string

	OwnershipGrace     time.Duration
	MatchTimeout       time.Duration
	MatchRetryCooldown time.Duration
	ConfirmWindow      time.Duration
	ConfirmGoneMargin  time.Duration
	PostExitWindow     time.Duration
	Failsafe           time.Duration
	FailsafeRetry      time.Duration
	LeaveTimeout       time.Duration
	LeaveRenderGrace   time.Duration

	SettleAction      time.Duration
	SettleDecline     time.Duration
	SettleConfirm     time.Duration
	SettleReconfirm   time.Duration
	SettlePostExit    time.Duration
	SettleLeaveIcon   time.Duration
	SettlePartyAccept time.Duration
	SettleLeaveClose  time.Duration
	SettleEscape      time.Duration
	SettleFailsafeKey time.Duration
	SettleGuard       time.Duration

	InteractKey  string
	HUDKey       string
	EscapeKey    string
	InventoryKey string
	FailsafeKey  string
	InteractHold time.Duration
	HUDHold      time.Duration

	JitterPx int
	MoveMin  time.Duration
	MoveMax  time.Duration
	CPSMin   float64
	CPSMax   float64
}

func secs(v float64) time.Duration { return time.Duration(v * float64(time.Second)) }

func millis(v int) time.Duration { return time.Duration(v) * time.Millisecond }

// SettingsFromConfig converts a validated config.
func SettingsFromConfig(cfg *config.Config) Settings {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	regions := make([]capture.Region, 0, len(cfg.MatchingRegions))
	for _, r := range cfg.MatchingRegions {
		regions = append(regions, capture.Region{X: r.X, Y: r.Y, W: r.W, H: r.H})
	}
	t, in := cfg.Timing, cfg.Input
	return Settings{
		MatchingRegions: regions,
		ProbeOrder:      append([]string(nil), cfg.ProbeOrder...),

		OwnershipGrace:     secs(t.OwnershipGrace),
		MatchTimeout:       secs(t.MatchTimeout),
		MatchRetryCooldown: secs(t.MatchRetryCooldown),
		ConfirmWindow:      secs(t.ConfirmWindow),
		ConfirmGoneMargin:  secs(t.ConfirmGoneMargin),
		PostExitWindow:     secs(t.PostExitWindow),
		Failsafe:           secs(t.Failsafe),
		FailsafeRetry:      secs(t.FailsafeRetry),
		LeaveTimeout:       secs(t.LeaveTimeout),
		LeaveRenderGrace:   secs(t.LeaveRenderGrace),

		SettleAction:      secs(t.SettleAction),
		SettleDecline:     secs(t.SettleDecline),
		SettleConfirm:     secs(t.SettleConfirm),
		SettleReconfirm:   secs(t.SettleReconfirm),
		SettlePostExit:    secs(t.SettlePostExit),
		SettleLeaveIcon:   secs(t.SettleLeaveIcon),
		SettlePartyAccept: secs(t.SettlePartyAccept),
		SettleLeaveClose:  secs(t.SettleLeaveClose),
		SettleEscape:      secs(t.SettleEscape),
		SettleFailsafeKey: secs(t.SettleFailsafeKey),
		SettleGuard:       secs(t.SettleGuard),

		InteractKey:  in.InteractKey,
		HUDKey:       in.HUDKey,
		EscapeKey:    in.EscapeKey,
		InventoryKey: in.InventoryKey,
		FailsafeKey:  in.FailsafeKey,
		InteractHold: millis(in.InteractHold),
		HUDHold:      millis(in.HUDHold),

		JitterPx: in.JitterPx,
		MoveMin:  millis(in.MoveMinMS),
		MoveMax:  millis(in.MoveMaxMS),
		CPSMin:   float64(in.ClicksPerSecL),
		CPSMax:   float64(in.ClicksPerSecH),
	}
}

// ThresholdFunc resolves a reference threshold: configured override first,
// then fallback (usually the reference library), then config.DefaultThreshold.
func ThresholdFunc(override func(string) (float64, bool), fallback func(string) float64) func(string) float64 {
	return func(name string) float64 {
		if override != nil {
			if v, ok := override(name); ok {
				return v
			}
		}
		if fallback != nil {
			return fallback(name)
		}
		return config.DefaultThreshold
	}
}
