package loan

import "strings"

// ValidCPF reports whether s carries a well-formed CPF: eleven digits once
// punctuation is stripped, not all the same, with both check digits
// matching the mod-11 sums.
func ValidCPF(s string) bool {
	digits := OnlyDigits(s)
	if len(digits) != 11 {
		return false
	}
	if strings.Count(digits, digits[:1]) == 11 {
		return false
	}

	d1 := cpfCheckDigit(digits[:9], 10)
	d2 := cpfCheckDigit(digits[:9]+string(rune('0'+d1)), 11)
	return int(digits[9]-'0') == d1 && int(digits[10]-'0') == d2
}

func cpfCheckDigit(base string, weight int) int {
	sum := 0
	for i := 0; i < len(base); i++ {
		sum += int(base[i]-'0') * (weight - i)
	}
	mod := (sum * 10) % 11
	if mod == 10 {
		return 0
	}
	return mod
}

// OnlyDigits drops every non-digit rune from s.
func OnlyDigits(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// FormatCPF renders eleven digits as 000.000.000-00; other input is
// returned unchanged.
func FormatCPF(s string) string {
	d := OnlyDigits(s)
	if len(d) != 11 {
		return s
	}
	return d[:3] + "." + d[3:6] + "." + d[6:9] + "-" + d[9:]
}
