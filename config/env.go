package config

import (
	"os"
	"strconv"
	"strings"
)

// ApplyEnv overrides selected fields from the environment. Unparseable values
// are ignored.
func (c *Config) ApplyEnv() {
	c.MonitorIndex = getEnvInt("MONITOR_INDEX", c.MonitorIndex)
	c.WindowTitle = getEnv("GAME_WINDOW_TITLE", c.WindowTitle)
	c.Debug = getEnvBool("TOWERBOT_DEBUG", c.Debug)
	c.RemoteAddr = getEnv("TOWERBOT_REMOTE_ADDR", c.RemoteAddr)
	c.JournalPath = getEnv("TOWERBOT_JOURNAL", c.JournalPath)
	c.AssetsDir = getEnv("TOWERBOT_ASSETS_DIR", c.AssetsDir)
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}
