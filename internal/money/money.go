// Package money formats and parses Brazilian real amounts.
package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatBRL renders v as "R$ 1.234,56".
func FormatBRL(v float64) string {
	return FormatDecimal(decimal.NewFromFloat(v))
}

// FormatDecimal renders d as "R$ 1.234,56", with a leading minus for
// negative amounts.
func FormatDecimal(d decimal.Decimal) string {
	negative := d.IsNegative()
	if negative {
		d = d.Neg()
	}
	text := d.StringFixed(2)
	if text == "0.00" {
		negative = false
	}

	intPart, frac, _ := strings.Cut(text, ".")
	var sb strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			sb.WriteRune('.')
		}
		sb.WriteRune(c)
	}
	sb.WriteRune(',')
	sb.WriteString(frac)

	if negative {
		return "-R$ " + sb.String()
	}
	return "R$ " + sb.String()
}

// FormatPercent renders v with two decimals and a comma, e.g. "4,08%".
func FormatPercent(v float64) string {
	return strings.Replace(decimal.NewFromFloat(v).StringFixed(2), ".", ",", 1) + "%"
}

// FormatRate renders v with two decimals and a comma, without the sign.
func FormatRate(v float64) string {
	return strings.Replace(decimal.NewFromFloat(v).StringFixed(2), ".", ",", 1)
}

// Parse reads an amount written either way: "R$ 1.234,56", "1234,56",
// "1,234.56" or "1234.56". The rightmost separator is the decimal mark
// when both appear.
func Parse(s string) (decimal.Decimal, bool) {
	text := strings.TrimSpace(s)
	text = strings.TrimSpace(strings.ReplaceAll(text, "R$", ""))
	text = strings.ReplaceAll(text, " ", "")
	text = strings.ReplaceAll(text, "\u00a0", "")
	if text == "" {
		return decimal.Zero, false
	}

	hasComma := strings.Contains(text, ",")
	hasDot := strings.Contains(text, ".")
	switch {
	case hasComma && hasDot:
		if strings.LastIndex(text, ",") > strings.LastIndex(text, ".") {
			text = strings.ReplaceAll(text, ".", "")
			text = strings.ReplaceAll(text, ",", ".")
		} else {
			text = strings.ReplaceAll(text, ",", "")
		}
	case hasComma:
		text = strings.ReplaceAll(text, ".", "")
		text = strings.ReplaceAll(text, ",", ".")
	}

	d, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
