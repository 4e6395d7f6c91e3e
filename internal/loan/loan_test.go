package loan

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

const validCPF = "529.982.247-25"

func TestValidCPF(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"52998224725", true},
		{validCPF, true},
		{"111.444.777-35", true},
		{"11111111111", false},
		{"00000000000", false},
		{"52998224724", false},
		{"52998224735", false},
		{"5299822472", false},
		{"529982247250", false},
		{"", false},
		{"abc", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ValidCPF(tt.input); got != tt.want {
				t.Errorf("ValidCPF(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestValidCPFCheckDigitMutations(t *testing.T) {
	digits := OnlyDigits(validCPF)
	for pos := 9; pos < 11; pos++ {
		for d := byte('0'); d <= '9'; d++ {
			if digits[pos] == d {
				continue
			}
			mutated := []byte(digits)
			mutated[pos] = d
			if ValidCPF(string(mutated)) {
				t.Errorf("mutation %s should be invalid", mutated)
			}
		}
	}
}

func TestFormatCPF(t *testing.T) {
	if got := FormatCPF("52998224725"); got != validCPF {
		t.Errorf("FormatCPF = %q", got)
	}
	if got := FormatCPF("123"); got != "123" {
		t.Errorf("short input should pass through, got %q", got)
	}
}

func TestAddMonths(t *testing.T) {
	tests := []struct {
		start string
		n     int
		want  string
	}{
		{"2026-01-31", 1, "2026-02-28"},
		{"2028-01-31", 1, "2028-02-29"},
		{"2026-03-31", 1, "2026-04-30"},
		{"2026-01-15", 12, "2027-01-15"},
		{"2026-10-31", 4, "2027-02-28"},
		{"2026-05-10", 0, "2026-05-10"},
	}

	for _, tt := range tests {
		t.Run(tt.start, func(t *testing.T) {
			start, _ := time.Parse("2006-01-02", tt.start)
			if got := AddMonths(start, tt.n).Format("2006-01-02"); got != tt.want {
				t.Errorf("AddMonths(%s, %d) = %s, want %s", tt.start, tt.n, got, tt.want)
			}
		})
	}
}

func TestQuoteTotals(t *testing.T) {
	cfg := Config{Limit: 10000, MonthlyRate: 2, MaxInstallments: 24}
	today := time.Date(2026, 2, 10, 9, 0, 0, 0, time.Local)

	for n := 1; n <= 24; n++ {
		for _, amount := range []float64{0, 1, 150.75, 5000} {
			q := Quote(cfg, amount, n, today)
			want := amount * (1 + 0.02*float64(n))
			if math.Abs(q.Total-want) > 1e-9 {
				t.Errorf("n=%d a=%v total = %v, want %v", n, amount, q.Total, want)
			}
			if math.Abs(q.PerInstallment-q.Total/float64(n)) > 1e-9 {
				t.Errorf("n=%d per installment = %v", n, q.PerInstallment)
			}
			if q.Total < 0 || math.IsInf(q.Total, 0) || math.IsNaN(q.PerInstallment) {
				t.Errorf("n=%d produced a non-finite or negative total", n)
			}
			if q.InterestPct != 2*float64(n) {
				t.Errorf("n=%d interest = %v", n, q.InterestPct)
			}
		}
	}

	zero := Quote(cfg, 1000, 0, today)
	if zero.Total != 0 || zero.PerInstallment != 0 || !zero.EndDate.IsZero() {
		t.Errorf("n=0 should produce an empty quote, got %+v", zero)
	}
}

func TestQuoteValidationPriority(t *testing.T) {
	maxDate := time.Date(2026, 6, 30, 0, 0, 0, 0, time.Local)
	today := time.Date(2026, 2, 10, 15, 30, 0, 0, time.Local)

	tests := []struct {
		name            string
		maxInstallments int
		amount          float64
		installments    int
		want            string
	}{
		{"all fine", 6, 500, 3, ""},
		{"over limit", 6, 5000, 3, MsgOverLimit},
		{"too many installments beats limit", 3, 5000, 4, MsgTooManyInstallments(3)},
		{"past cutoff beats installments and limit", 3, 5000, 5, MsgPastMaxDate},
		{"past cutoff", 6, 500, 5, MsgPastMaxDate},
		{"ending before the cutoff is allowed", 6, 500, 4, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{Limit: 1000, MonthlyRate: 1, MaxInstallments: tt.maxInstallments, MaxEndDate: &maxDate}
			q := Quote(cfg, tt.amount, tt.installments, today)
			if q.Error != tt.want {
				t.Errorf("Error = %q, want %q", q.Error, tt.want)
			}
		})
	}
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		input string
		want  float64
	}{
		{"1.234,56", 1234.56},
		{"1234,56", 1234.56},
		{"1234.56", 1234.56},
		{" 2 500 ", 2500},
		{"", 0},
		{"abc", 0},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseNumber(tt.input); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("ParseNumber(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestConfigFromAttrs(t *testing.T) {
	cfg := ConfigFromAttrs(map[string]string{
		"data-limit":   "1.500,00",
		"juros":        "2,5",
		"max-parcelas": "10",
		"max-data":     "31/12/2026",
	})

	if cfg.Limit != 1500 || cfg.MonthlyRate != 2.5 || cfg.MaxInstallments != 10 {
		t.Errorf("unexpected config %+v", cfg)
	}
	if cfg.MaxEndDate == nil || cfg.MaxEndDate.Format("2006-01-02") != "2026-12-31" {
		t.Errorf("MaxEndDate = %v", cfg.MaxEndDate)
	}

	defaults := ConfigFromAttrs(map[string]string{})
	if defaults.MaxInstallments != DefaultMaxInstallments || defaults.MaxEndDate != nil {
		t.Errorf("defaults = %+v", defaults)
	}

	roundTrip := ConfigFromAttrs(cfg.Attrs())
	if roundTrip.Limit != cfg.Limit || roundTrip.MaxInstallments != cfg.MaxInstallments ||
		!roundTrip.MaxEndDate.Equal(*cfg.MaxEndDate) {
		t.Errorf("Attrs round trip = %+v", roundTrip)
	}
}

func TestScanAttrs(t *testing.T) {
	markup := `<section class="loan" data-limit="1800.00" data-monthly-rate="4.08"
  data-max-installments="12" data-max-date="2099-12-31">
  <p data-field="total">R$ 0,00</p><p data-limit="1">shadowed</p>`

	attrs := ScanAttrs(markup)
	if attrs["data-limit"] != "1800.00" || attrs["data-field"] != "total" {
		t.Errorf("ScanAttrs = %v", attrs)
	}

	cfg := ConfigFromAttrs(attrs)
	if cfg.Limit != 1800 || cfg.MonthlyRate != 4.08 || cfg.MaxInstallments != 12 {
		t.Errorf("config from markup = %+v", cfg)
	}
	if cfg.MaxEndDate == nil || cfg.MaxEndDate.Year() != 2099 {
		t.Errorf("MaxEndDate = %v", cfg.MaxEndDate)
	}
}

func completeDraft() Draft {
	return Draft{
		Amount:        "1.000,00",
		Installments:  "3",
		PixKey:        "maria@example.com",
		PixCPF:        validCPF,
		PixName:       "Maria",
		TermsAccepted: true,
	}
}

func TestDraftCanProceed(t *testing.T) {
	if !completeDraft().CanProceed() {
		t.Fatal("complete draft should proceed")
	}

	breakers := map[string]func(*Draft){
		"zero amount":       func(d *Draft) { d.Amount = "0" },
		"no installments":   func(d *Draft) { d.Installments = "" },
		"blank pix key":     func(d *Draft) { d.PixKey = "  " },
		"blank cpf":         func(d *Draft) { d.PixCPF = "" },
		"invalid cpf":       func(d *Draft) { d.PixCPF = "529.982.247-24" },
		"blank name":        func(d *Draft) { d.PixName = "" },
		"terms not checked": func(d *Draft) { d.TermsAccepted = false },
	}

	for name, breakIt := range breakers {
		t.Run(name, func(t *testing.T) {
			d := completeDraft()
			breakIt(&d)
			if d.CanProceed() {
				t.Errorf("draft with %s should not proceed", name)
			}
		})
	}
}

func TestSimulatorProceed(t *testing.T) {
	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.Local)
	sim := NewSimulator(Config{Limit: 5000, MonthlyRate: 2, MaxInstallments: 12}).
		WithClock(func() time.Time { return now })

	st, err := sim.Proceed(completeDraft())
	if err != nil {
		t.Fatalf("Proceed: %v", err)
	}
	if math.Abs(st.Total-1060) > 1e-9 || st.Installments != 3 || st.InterestPct != 6 {
		t.Errorf("statement totals = %+v", st)
	}
	if st.Receiver != "Maria" || st.ReceiverCPF != validCPF || len(st.Protocol) != 8 {
		t.Errorf("statement receiver = %+v", st)
	}
	if st.EndDate.Format("2006-01-02") != "2026-05-10" {
		t.Errorf("EndDate = %v", st.EndDate)
	}

	bad := completeDraft()
	bad.PixCPF = "123.456.789-00"
	if _, err := sim.Proceed(bad); !errors.Is(err, ErrInvalidCPF) {
		t.Errorf("invalid CPF err = %v", err)
	}

	incomplete := completeDraft()
	incomplete.TermsAccepted = false
	if _, err := sim.Proceed(incomplete); !errors.Is(err, ErrIncomplete) {
		t.Errorf("incomplete err = %v", err)
	}
}

func TestTermsConfig(t *testing.T) {
	maxDate := time.Date(2026, 12, 31, 0, 0, 0, 0, time.Local)
	terms := Terms{
		MonthlyRate:     decimal.RequireFromString("2.5"),
		MaxDate:         &maxDate,
		MaxValuePct:     decimal.NewFromInt(20),
		MaxInstallments: 0,
	}

	cfg := terms.Config(decimal.RequireFromString("1000.50"))
	if cfg.Limit != 1200.6 {
		t.Errorf("Limit = %v, want 1200.6", cfg.Limit)
	}
	if cfg.MonthlyRate != 2.5 || cfg.MaxInstallments != DefaultMaxInstallments || cfg.MaxEndDate != &maxDate {
		t.Errorf("unexpected config %+v", cfg)
	}
}
