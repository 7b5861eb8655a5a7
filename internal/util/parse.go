package util

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

// ErrNotAmount is returned when a price string has no parsable amount.
var ErrNotAmount = errors.New("not a currency amount")

// CleanText collapses internal whitespace runs and trims the result, the
// normalization every collector applies to extracted text nodes.
func CleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// freeWords are price strings meaning "costs nothing" across the sources.
var freeWords = map[string]bool{"free": true, "gratis": true}

var amountRegex = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)

// ParseAmount extracts a numeric amount from a scraped price string,
// tolerating currency symbols, thousands separators and surrounding text
// ("$1,299.99", "US$25", "Now: 19.99"). "Free" parses as 0.
func ParseAmount(s string) (float64, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, ErrNotAmount
	}
	if freeWords[strings.ToLower(trimmed)] {
		return 0, nil
	}
	match := amountRegex.FindString(trimmed)
	if match == "" {
		return 0, ErrNotAmount
	}
	amount, err := strconv.ParseFloat(strings.ReplaceAll(match, ",", ""), 64)
	if err != nil {
		return 0, ErrNotAmount
	}
	return amount, nil
}

// Truncate caps s at max runes, appending an ellipsis when it was cut.
func Truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 1 {
		return string(runes[:max])
	}
	return string(runes[:max-1]) + "…"
}
