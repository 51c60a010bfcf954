package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/stake-plus/taskagent/src/data"
)

// GetSetting retrieves a setting with env fallback
func GetSetting(name, envKey, defaultValue string) string {
	val := data.GetSetting(name)
	if val == "" && envKey != "" {
		val = os.Getenv(envKey)
	}
	if val == "" {
		val = defaultValue
	}
	return val
}

func getBoolSetting(name, envKey string, def bool) bool {
	raw := strings.ToLower(strings.TrimSpace(GetSetting(name, envKey, "")))
	switch raw {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}

// getIntSetting ignores non-positive and unparsable values.
func getIntSetting(name, envKey string, def int) int {
	raw := strings.TrimSpace(GetSetting(name, envKey, ""))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val <= 0 {
		return def
	}
	return val
}

func getFloatSetting(name, envKey string, def float64) float64 {
	raw := strings.TrimSpace(GetSetting(name, envKey, ""))
	if raw == "" {
		return def
	}
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil || val < 0 {
		return def
	}
	return val
}

// getSecondsSetting reads a whole number of seconds.
func getSecondsSetting(name, envKey string, def time.Duration) time.Duration {
	secs := getIntSetting(name, envKey, 0)
	if secs == 0 {
		return def
	}
	return time.Duration(secs) * time.Second
}
