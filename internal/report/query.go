package report

import (
	"strconv"
	"strings"
	"time"
	"unicode"
)

// ParseMonthQuery recognizes a month and year written as one search
// string: "June 2025", "jun 2025", "2025 June", "06/2025" or "2025-06".
// Anything else reports ok=false and should be treated as free text.
func ParseMonthQuery(s string) (year int, month time.Month, ok bool) {
	parts := strings.FieldsFunc(strings.TrimSpace(s), func(r rune) bool {
		return unicode.IsSpace(r) || r == '/' || r == '-' || r == ','
	})
	if len(parts) != 2 {
		return 0, 0, false
	}
	a, b := parts[0], parts[1]

	if y, ok := parseYear(b); ok {
		if m, ok := parseMonth(a); ok {
			return y, m, true
		}
	}
	if y, ok := parseYear(a); ok {
		if m, ok := parseMonth(b); ok {
			return y, m, true
		}
	}
	return 0, 0, false
}

func parseYear(s string) (int, bool) {
	if len(s) != 4 {
		return 0, false
	}
	y, err := strconv.Atoi(s)
	if err != nil || y < 1000 {
		return 0, false
	}
	return y, true
}

// parseMonth accepts 1 or 2 digit numbers, full English month names and
// their three letter abbreviations, case-insensitively.
func parseMonth(s string) (time.Month, bool) {
	if len(s) <= 2 {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 12 {
			return 0, false
		}
		return time.Month(n), true
	}
	s = strings.ToLower(s)
	for m := time.January; m <= time.December; m++ {
		name := strings.ToLower(m.String())
		if s == name || s == name[:3] {
			return m, true
		}
	}
	return 0, false
}
