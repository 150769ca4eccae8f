package nobo

import (
	"fmt"
	"strconv"
	"time"
)

const (
	MinTemperature = 7
	MaxTemperature = 30
)

// timestampLayout is the 14-digit wire timestamp, YYYYMMDDHHMMSS.
const timestampLayout = "20060102150405"

// ValidateTemperature checks that a target temperature is within the range
// accepted by the hub.
func ValidateTemperature(label string, c int) error {
	if c < MinTemperature || c > MaxTemperature {
		return fmt.Errorf("%w: %s %d out of range %d-%d", ErrValidation, label, c, MinTemperature, MaxTemperature)
	}
	return nil
}

// parseTemperature parses and range-checks a wire temperature.
func parseTemperature(label, raw string) (int, error) {
	c, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q not numeric", ErrValidation, label, raw)
	}
	if err := ValidateTemperature(label, c); err != nil {
		return 0, err
	}
	return c, nil
}

// IsValidDatetime reports whether ts has the 14-digit YYYYMMDDHHMMSS shape.
func IsValidDatetime(ts string) bool {
	if len(ts) != 14 {
		return false
	}
	for i := 0; i < len(ts); i++ {
		if ts[i] < '0' || ts[i] > '9' {
			return false
		}
	}
	return true
}

// IsQuarterMinute reports whether m falls on a 15-minute boundary.
func IsQuarterMinute(m int) bool {
	return m%15 == 0
}

// validateOverrideTime accepts NoValue or a 14-digit timestamp whose minute
// field is on a quarter hour.
func validateOverrideTime(label, ts string) error {
	if ts == NoValue {
		return nil
	}
	if !IsValidDatetime(ts) {
		return fmt.Errorf("%w: %s %q is not YYYYMMDDHHMMSS", ErrValidation, label, ts)
	}
	m, _ := strconv.Atoi(ts[10:12])
	if !IsQuarterMinute(m) {
		return fmt.Errorf("%w: %s %q not on a 15-minute boundary", ErrValidation, label, ts)
	}
	return nil
}

// FormatTimestamp renders t in the hub's 14-digit layout.
func FormatTimestamp(t time.Time) string {
	return t.Format(timestampLayout)
}
