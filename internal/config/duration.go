package config

import (
	"fmt"
	"strings"
	"time"
)

// Every duration knob in the config file is a Go duration string
// ("30s", "5m", "1h30m"). An absent or empty field means "unset":
// callers with a component default use ParseDurationOrDefault
// (notify.interval -> 1m, email.timeout -> 15s), callers where zero
// means "disabled" use ParseDurationField directly
// (scheduler.default_timeout). Negative values are always a config
// error.

// ParseDurationField parses one duration knob. Empty raw maps to 0;
// path goes into the error so a validation failure names the exact
// field.
func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

// ParseDurationOrDefault is ParseDurationField with unset (or zero)
// replaced by the component default.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}
