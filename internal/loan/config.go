// Package loan is the loan simulator: limits, the simple-interest quote,
// CPF validation and the confirmation statement.
package loan

import (
	"html"
	"regexp"
	"strconv"
	"strings"
	"time"

	"genio/internal/money"
)

// DefaultMaxInstallments applies when the panel carries no maximum.
const DefaultMaxInstallments = 24

// Config is the loan panel's static configuration. It is read once and
// never changes for the lifetime of a page.
type Config struct {
	Limit           float64
	MonthlyRate     float64
	MaxInstallments int
	MaxEndDate      *time.Time
}

// attribute names, each with the alias the dashboard template uses.
var (
	limitAttrs        = []string{"limit", "limite"}
	rateAttrs         = []string{"monthly-rate", "juros"}
	installmentsAttrs = []string{"max-installments", "max-parcelas"}
	maxDateAttrs      = []string{"max-date", "max-data"}
)

// ConfigFromAttrs reads the data-* attributes of the loan panel. Keys may
// be given with or without the "data-" prefix.
func ConfigFromAttrs(attrs map[string]string) Config {
	lookup := func(names []string) string {
		for _, name := range names {
			if v, ok := attrs[name]; ok {
				return v
			}
			if v, ok := attrs["data-"+name]; ok {
				return v
			}
		}
		return ""
	}

	cfg := Config{
		Limit:           ParseNumber(lookup(limitAttrs)),
		MonthlyRate:     ParseNumber(lookup(rateAttrs)),
		MaxInstallments: DefaultMaxInstallments,
	}
	if raw := strings.TrimSpace(lookup(installmentsAttrs)); raw != "" {
		if n, ok := ParseInt(raw); ok {
			cfg.MaxInstallments = n
		}
	}
	if d, ok := ParseDate(lookup(maxDateAttrs)); ok {
		cfg.MaxEndDate = &d
	}
	return cfg
}

var dataAttr = regexp.MustCompile(`\bdata-([a-z-]+)="([^"]*)"`)

// ScanAttrs collects the data-* attributes of rendered markup, keyed with
// the "data-" prefix, for ConfigFromAttrs. The first occurrence wins.
func ScanAttrs(markup string) map[string]string {
	attrs := make(map[string]string)
	for _, m := range dataAttr.FindAllStringSubmatch(markup, -1) {
		key := "data-" + m[1]
		if _, seen := attrs[key]; !seen {
			attrs[key] = html.UnescapeString(m[2])
		}
	}
	return attrs
}

// Attrs renders cfg back into data-* attribute values, the inverse of
// ConfigFromAttrs.
func (c Config) Attrs() map[string]string {
	attrs := map[string]string{
		"data-limit":            strconv.FormatFloat(c.Limit, 'f', 2, 64),
		"data-monthly-rate":     strconv.FormatFloat(c.MonthlyRate, 'f', -1, 64),
		"data-max-installments": strconv.Itoa(c.MaxInstallments),
		"data-max-date":         "",
	}
	if c.MaxEndDate != nil {
		attrs["data-max-date"] = c.MaxEndDate.Format("2006-01-02")
	}
	return attrs
}

// ParseNumber reads a user-typed amount in pt-BR or plain notation
// ("1.234,56", "1234,56", "1234.56"). Anything unreadable is 0.
func ParseNumber(s string) float64 {
	d, ok := money.Parse(s)
	if !ok {
		return 0
	}
	f, _ := d.Float64()
	return f
}

var leadingInt = regexp.MustCompile(`^[+-]?\d+`)

// ParseInt reads the leading integer of s, the way a number input reports
// a partially typed value.
func ParseInt(s string) (int, bool) {
	m := leadingInt.FindString(strings.TrimSpace(s))
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ParseDate reads "YYYY-MM-DD" or "DD/MM/YYYY" as a local calendar date.
func ParseDate(s string) (time.Time, bool) {
	text := strings.TrimSpace(s)
	if text == "" {
		return time.Time{}, false
	}

	var y, m, d int
	var err error
	if strings.Contains(text, "/") {
		parts := strings.Split(text, "/")
		if len(parts) != 3 {
			return time.Time{}, false
		}
		d, m, y, err = atoi3(parts[0], parts[1], parts[2])
	} else {
		parts := strings.Split(text, "-")
		if len(parts) != 3 {
			return time.Time{}, false
		}
		y, m, d, err = atoi3(parts[0], parts[1], parts[2])
	}
	if err != nil || y == 0 || m == 0 || d == 0 {
		return time.Time{}, false
	}
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.Local), true
}

func atoi3(a, b, c string) (int, int, int, error) {
	x, err := strconv.Atoi(strings.TrimSpace(a))
	if err != nil {
		return 0, 0, 0, err
	}
	y, err := strconv.Atoi(strings.TrimSpace(b))
	if err != nil {
		return 0, 0, 0, err
	}
	z, err := strconv.Atoi(strings.TrimSpace(c))
	if err != nil {
		return 0, 0, 0, err
	}
	return x, y, z, nil
}

// FormatDate renders t as DD/MM/YYYY, or a placeholder for the zero time.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return "--/--/----"
	}
	return t.Format("02/01/2006")
}
