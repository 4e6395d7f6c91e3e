package money

import "testing"

func TestFormatBRL(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "R$ 0,00"},
		{1, "R$ 1,00"},
		{1234.5, "R$ 1.234,50"},
		{1234567.891, "R$ 1.234.567,89"},
		{-42.1, "-R$ 42,10"},
		{-0.001, "R$ 0,00"},
	}

	for _, tt := range tests {
		if got := FormatBRL(tt.in); got != tt.want {
			t.Errorf("FormatBRL(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatPercent(t *testing.T) {
	if got := FormatPercent(4.08); got != "4,08%" {
		t.Errorf("FormatPercent(4.08) = %q", got)
	}
	if got := FormatPercent(48.96); got != "48,96%" {
		t.Errorf("FormatPercent(48.96) = %q", got)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"R$ 1.234,56", "1234.56", true},
		{"1234,56", "1234.56", true},
		{"1,234.56", "1234.56", true},
		{"1234.56", "1234.56", true},
		{"  ", "0", false},
		{"abc", "0", false},
		{"1.234.567", "0", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := Parse(tt.in)
			if ok != tt.wantOK {
				t.Fatalf("Parse(%q) ok = %v, want %v", tt.in, ok, tt.wantOK)
			}
			if ok && got.String() != tt.want {
				t.Errorf("Parse(%q) = %s, want %s", tt.in, got.String(), tt.want)
			}
		})
	}
}
