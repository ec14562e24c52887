package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// FromEnvOrFlag returns the environment value when present, otherwise falls back to a CLI flag then default.
func FromEnvOrFlag(envKey, flagVal, def string) string {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		return v
	}
	if v := strings.TrimSpace(flagVal); v != "" {
		return v
	}
	return def
}

// FromEnvOrFlagBool merges boolean values from ENV and flags (defaulting to def).
func FromEnvOrFlagBool(envKey string, flagVal, def bool) bool {
	if ev := strings.TrimSpace(os.Getenv(envKey)); ev != "" {
		if b, ok := parseBool(ev); ok {
			return b
		}
		return def
	}
	if flagVal {
		return true
	}
	return def
}

// FromEnvOrFlagInt resolves an integer; a value below lowest is an error naming envKey.
func FromEnvOrFlagInt(envKey string, flagVal, def, lowest int) (int, error) {
	if ev := strings.TrimSpace(os.Getenv(envKey)); ev != "" {
		n, err := strconv.Atoi(ev)
		if err != nil {
			return 0, fmt.Errorf("%s: %q is not an integer", envKey, ev)
		}
		if n < lowest {
			return 0, fmt.Errorf("%s: must be >= %d, got %d", envKey, lowest, n)
		}
		return n, nil
	}
	if flagVal != 0 {
		if flagVal < lowest {
			return 0, fmt.Errorf("%s: must be >= %d, got %d", envKey, lowest, flagVal)
		}
		return flagVal, nil
	}
	return def, nil
}

// FromEnvOrFlagDuration reads a positive duration given in seconds or Go syntax.
func FromEnvOrFlagDuration(envKey, flagVal string, def time.Duration) (time.Duration, error) {
	raw := FromEnvOrFlag(envKey, flagVal, "")
	if raw == "" {
		return def, nil
	}
	d, err := parseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", envKey, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: must be > 0, got %v", envKey, d)
	}
	return d, nil
}

// SplitList splits a comma separated value, dropping blank items.
func SplitList(s string) []string {
	var out []string
	for item := range strings.SplitSeq(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseDuration(s string) (time.Duration, error) {
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(n * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%q is neither seconds nor a duration", s)
	}
	return d, nil
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "1", "true", "t", "yes", "y":
		return true, true
	case "0", "false", "f", "no", "n":
		return false, true
	default:
		return false, false
	}
}
