package main

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/soocke/tower-bot-go/config"
	"github.com/soocke/tower-bot-go/domain/reference"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in    string
		debug bool
		want  slog.Level
	}{
		{"", false, slog.LevelInfo},
		{"WARN", false, slog.LevelWarn},
		{"error", false, slog.LevelError},
		{"error", true, slog.LevelDebug},
		{"verbose", false, slog.LevelInfo},
	}
	for _, c := range cases {
		if got := parseLevel(c.in, c.debug); got != c.want {
			t.Fatalf("parseLevel(%q,%v)=%v want %v", c.in, c.debug, got, c.want)
		}
	}
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(slog.LevelInfo, &buf).Info("ready", "category", "control")
	if !strings.Contains(buf.String(), `"category":"control"`) {
		t.Fatalf("unexpected output %s", buf.String())
	}
}

func TestLoadReferences_MissingAssetsFails(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.AssetsDir = t.TempDir()
	if _, err := loadReferences(cfg, nil); !errors.Is(err, reference.ErrMissingAsset) {
		t.Fatalf("expected missing asset error, got %v", err)
	}
}
