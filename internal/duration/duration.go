// Package duration parses and prints human-readable durations like "12h",
// "7d" or "2w".
package duration

import (
	"fmt"
	"strings"
	"time"
)

const day = 24 * time.Hour

var units = map[string]time.Duration{
	"s": time.Second, "sec": time.Second, "secs": time.Second,
	"m": time.Minute, "min": time.Minute, "mins": time.Minute,
	"h": time.Hour, "hr": time.Hour, "hrs": time.Hour, "hour": time.Hour, "hours": time.Hour,
	"d": day, "day": day, "days": day,
	"w": 7 * day, "wk": 7 * day, "wks": 7 * day, "week": 7 * day, "weeks": 7 * day,
	"mo": 30 * day, "month": 30 * day, "months": 30 * day,
	"y": 365 * day, "yr": 365 * day, "yrs": 365 * day, "year": 365 * day, "years": 365 * day,
}

// Parse parses "<n><unit>" durations. Go duration strings such as
// "1h30m" are accepted too.
func Parse(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if d, err := time.ParseDuration(s); err == nil {
		if d < 0 {
			return 0, fmt.Errorf("negative duration: %s", s)
		}
		return d, nil
	}

	var n int
	var unit string
	if _, err := fmt.Sscanf(s, "%d%s", &n, &unit); err != nil {
		return 0, fmt.Errorf("invalid duration format: %s (use e.g., 12h, 7d, 2w)", s)
	}
	if n < 0 {
		return 0, fmt.Errorf("negative duration: %s", s)
	}

	u, ok := units[strings.ToLower(unit)]
	if !ok {
		return 0, fmt.Errorf("unknown duration unit: %s", unit)
	}
	return time.Duration(n) * u, nil
}

// Short formats d compactly: "now", "5m", "2h", "3d", "2w", "3mo".
func Short(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < day:
		return fmt.Sprintf("%dh", int(d.Hours()))
	}

	days := int(d / day)
	switch {
	case days < 7:
		return fmt.Sprintf("%dd", days)
	case days < 30:
		return fmt.Sprintf("%dw", days/7)
	default:
		return fmt.Sprintf("%dmo", days/30)
	}
}
