package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/aarondl/opt/null"
	"github.com/shopspring/decimal"
)

var (
	ErrElapsedFormat = errors.New("unrecognized elapsed time")
	ErrMetricFormat  = errors.New("unrecognized metric value")
)

// NormalizeElapsed converts the elapsed time display forms ("57s", "1:23",
// "01:23", "1:02:11") to zero-padded "mm:ss". Hours fold into minutes, so
// "1:02:11" becomes "62:11".
func NormalizeElapsed(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", ErrElapsedFormat
	}
	if !strings.Contains(s, ":") {
		// bare seconds ("57s")
		s = strings.TrimSuffix(s, "s")
	}
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return "", fmt.Errorf("%w: %q", ErrElapsedFormat, raw)
	}
	total := 0
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || v < 0 {
			return "", fmt.Errorf("%w: %q", ErrElapsedFormat, raw)
		}
		total = total*60 + v
	}
	return fmt.Sprintf("%02d:%02d", total/60, total%60), nil
}

// ParseMetric extracts the numeric part of a metric cell ("321 W", "152 bpm",
// "89.7") and rounds it half-up to an integer. Empty and dash cells yield an
// unset value.
func ParseMetric(raw string) (null.Val[int], error) {
	s := strings.TrimSpace(raw)
	switch s {
	case "", "-", "--", "—", "–":
		return null.FromPtr[int](nil), nil
	}
	num := numericPrefix(s)
	if num == "" {
		return null.FromPtr[int](nil), fmt.Errorf("%w: %q", ErrMetricFormat, raw)
	}
	d, err := decimal.NewFromString(num)
	if err != nil {
		return null.FromPtr[int](nil), fmt.Errorf("%w: %q", ErrMetricFormat, raw)
	}
	// Round is half away from zero which matches half-up for these
	// non-negative readings (320.5 -> 321, 89.7 -> 90)
	return null.From(int(d.Round(0).IntPart())), nil
}

// numericPrefix returns the leading number of s, ignoring thousands
// separators. "1,021 W" yields "1021".
func numericPrefix(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.':
			b.WriteRune(r)
		case r == ',':
			// thousands separator
		default:
			return b.String()
		}
	}
	return b.String()
}
