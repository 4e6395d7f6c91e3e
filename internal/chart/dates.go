// Package chart holds the evolution chart: series filtering, moving
// average, hover hit-testing and drawing onto a PNG or SVG surface.
package chart

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	isoPrefix = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})`)
	brPrefix  = regexp.MustCompile(`^(\d{2})/(\d{2})/(\d{4})`)
)

// fallbackLayouts are tried when neither the ISO nor the Brazilian prefix
// matches.
var fallbackLayouts = []string{
	time.RFC3339,
	time.RFC1123,
	time.RFC1123Z,
	"2006/01/02",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"02 Jan 2006",
	"Mon Jan 2 2006",
}

// ParseDate reads a series label as a calendar date. It accepts an ISO
// "YYYY-MM-DD" prefix, a Brazilian "DD/MM/YYYY" prefix and a few generic
// layouts. Out-of-range days roll over into the next month.
func ParseDate(s string) (time.Time, bool) {
	text := strings.TrimSpace(s)
	if text == "" {
		return time.Time{}, false
	}

	if m := isoPrefix.FindStringSubmatch(text); m != nil {
		return civilDate(m[1], m[2], m[3]), true
	}
	if m := brPrefix.FindStringSubmatch(text); m != nil {
		return civilDate(m[3], m[2], m[1]), true
	}

	for _, layout := range fallbackLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

func civilDate(year, month, day string) time.Time {
	y, _ := strconv.Atoi(year)
	m, _ := strconv.Atoi(month)
	d, _ := strconv.Atoi(day)
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

// MonthKey returns the "YYYY-MM" bucket of t.
func MonthKey(t time.Time) string {
	return fmt.Sprintf("%04d-%02d", t.Year(), int(t.Month()))
}

var shortMonths = [...]string{
	"jan.", "fev.", "mar.", "abr.", "mai.", "jun.",
	"jul.", "ago.", "set.", "out.", "nov.", "dez.",
}

// MonthLabel renders t the way pt-BR short month labels read, e.g.
// "fev. de 2026".
func MonthLabel(t time.Time) string {
	return fmt.Sprintf("%s de %d", shortMonths[t.Month()-1], t.Year())
}
