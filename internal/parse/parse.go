// Package parse converts the formatted cell values found in study reports
// into numeric primitives.
//
// Report tables format numbers inconsistently: currency cells carry dollar
// signs, thousands separators, and parenthetical notes; power cells carry a
// "MW" suffix; percentage cells a "%" suffix. Every parser here accepts the
// raw cell text and returns a plain float64, degrading to 0 on anything it
// cannot read — a single bad cell must never take down extraction of the
// rest of the document.
package parse

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	noteRE     = regexp.MustCompile(`\(.*?\)`)
	currencyRE = regexp.MustCompile(`[$,]`)
)

// Currency parses a dollar amount: "$1,234,567" -> 1234567.
// Parenthetical annotations like "(See Note 1)" are stripped first.
func Currency(s string) float64 {
	if strings.TrimSpace(s) == "" {
		return 0
	}
	cleaned := noteRE.ReplaceAllString(s, "")
	cleaned = currencyRE.ReplaceAllString(cleaned, "")
	v, err := strconv.ParseFloat(strings.TrimSpace(cleaned), 64)
	if err != nil {
		return 0
	}
	return v
}

// Percentage parses a percent cell into a fraction: "32.7%" -> 0.327.
func Percentage(s string) float64 {
	cleaned := strings.TrimSpace(strings.ReplaceAll(s, "%", ""))
	if cleaned == "" {
		return 0
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return v / 100.0
}

// MW parses a power value: "20.2 MW" -> 20.2.
func MW(s string) float64 {
	cleaned := strings.TrimSpace(strings.ReplaceAll(s, "MW", ""))
	if cleaned == "" {
		return 0
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return v
}

// Loading parses a facility loading ratio: "121.47 %" -> 121.47.
// The value stays in percent terms — loading is conventionally compared
// against 100 (121.47 means 121.47% of rated capacity), so it is not
// divided down the way Percentage is.
func Loading(s string) float64 {
	cleaned := strings.TrimSpace(strings.ReplaceAll(s, "%", ""))
	if cleaned == "" {
		return 0
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return v
}

// Number parses a bare numeric cell (ratings, MVA figures), tolerating
// thousands separators and surrounding whitespace.
func Number(s string) float64 {
	cleaned := strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if cleaned == "" {
		return 0
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return v
}

// SplitUpgradeRef splits the composite upgrade identifier convention used in
// upgrade-summary cells: "n9670.0 / DAYr190039" carries the RTEP number and
// the owning utility's internal id in one cell, separated by " / ". A cell
// with no separator is entirely the RTEP id. All knowledge of this string
// convention lives here so it can be revisited in one place.
func SplitUpgradeRef(s string) (rtepID, toID string) {
	s = strings.TrimSpace(s)
	if before, after, ok := strings.Cut(s, " / "); ok {
		return strings.TrimSpace(before), strings.TrimSpace(after)
	}
	return s, ""
}
