package skrill

import "strconv"

// FormatAmount renders a monetary value the way the provider expects:
// fixed-point with two decimals, then trailing zeros and a trailing decimal
// point stripped (19.50 -> "19.5", 20.00 -> "20", 19.99 -> "19.99").
func FormatAmount(value float64) string {
	s := strconv.FormatFloat(value, 'f', 2, 64)
	for len(s) > 0 && s[len(s)-1] == '0' {
		s = s[:len(s)-1]
	}
	if len(s) > 0 && s[len(s)-1] == '.' {
		s = s[:len(s)-1]
	}
	return s
}

// Truncate caps a field at the provider-specified maximum length.
// Overflow is truncated, never rejected.
func Truncate(value string, max int) string {
	if max <= 0 {
		return value
	}
	runes := []rune(value)
	if len(runes) <= max {
		return value
	}
	return string(runes[:max])
}
