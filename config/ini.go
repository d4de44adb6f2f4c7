package config

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"gopkg.in/ini.v1"
)

// decodeINI reads an INI document into cfg. Missing keys keep the values
// already present in cfg.
//
//	[capture]    monitor_index, window_title, backend, frame_cache_ms
//	[matching]   assets_dir, manifest, stride, refine, regions, probe_order
//	[thresholds] <reference> = <score>
//	[timing]     see Timing
//	[input]      see Input
//	[control]    debug, log_level, poll_ms, journal_path, remote_addr, hotkeys
func decodeINI(r io.Reader, cfg *Config) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f, err := ini.Load(data)
	if err != nil {
		return err
	}

	capture := f.Section("capture")
	cfg.MonitorIndex = capture.Key("monitor_index").MustInt(cfg.MonitorIndex)
	cfg.WindowTitle = capture.Key("window_title").MustString(cfg.WindowTitle)
	cfg.CaptureBackend = capture.Key("backend").MustString(cfg.CaptureBackend)
	cfg.FrameCacheMS = capture.Key("frame_cache_ms").MustInt(cfg.FrameCacheMS)

	matching := f.Section("matching")
	cfg.AssetsDir = matching.Key("assets_dir").MustString(cfg.AssetsDir)
	cfg.Manifest = matching.Key("manifest").MustString(cfg.Manifest)
	cfg.Stride = matching.Key("stride").MustInt(cfg.Stride)
	cfg.Refine = matching.Key("refine").MustBool(cfg.Refine)
	if matching.HasKey("regions") {
		regions, err := parseRegions(matching.Key("regions").String())
		if err != nil {
			return err
		}
		cfg.MatchingRegions = regions
	}
	if matching.HasKey("probe_order") {
		cfg.ProbeOrder = matching.Key("probe_order").Strings(",")
	}

	if cfg.Thresholds == nil {
		cfg.Thresholds = map[string]float64{}
	}
	for _, k := range f.Section("thresholds").Keys() {
		v, err := k.Float64()
		if err != nil {
			return fmt.Errorf("threshold %s: %w", k.Name(), err)
		}
		cfg.Thresholds[k.Name()] = v
	}

	if err := f.Section("timing").MapTo(&cfg.Timing); err != nil {
		return err
	}
	if err := f.Section("input").MapTo(&cfg.Input); err != nil {
		return err
	}

	control := f.Section("control")
	cfg.Debug = control.Key("debug").MustBool(cfg.Debug)
	cfg.LogLevel = control.Key("log_level").MustString(cfg.LogLevel)
	cfg.PollMS = control.Key("poll_ms").MustInt(cfg.PollMS)
	cfg.JournalPath = control.Key("journal_path").MustString(cfg.JournalPath)
	cfg.RemoteAddr = control.Key("remote_addr").MustString(cfg.RemoteAddr)
	cfg.Hotkeys = control.Key("hotkeys").MustBool(cfg.Hotkeys)
	return nil
}

// parseRegions parses "x,y,w,h; x,y,w,h".
func parseRegions(s string) ([]Region, error) {
	var out []Region
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.Split(part, ",")
		if len(fields) != 4 {
			return nil, fmt.Errorf("region %q: want 4 values, got %d", part, len(fields))
		}
		var v [4]float64
		for i, fs := range fields {
			n, err := strconv.ParseFloat(strings.TrimSpace(fs), 64)
			if err != nil {
				return nil, fmt.Errorf("region %q: %w", part, err)
			}
			v[i] = n
		}
		out = append(out, Region{X: v[0], Y: v[1], W: v[2], H: v[3]})
	}
	return out, nil
}
