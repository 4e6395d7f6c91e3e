package loan

import (
	"time"

	"github.com/shopspring/decimal"
)

// Terms are the pool-wide loan charges from the charges sheet.
type Terms struct {
	MonthlyRate     decimal.Decimal
	MaxDate         *time.Time
	MaxInstallments int
	MaxValuePct     decimal.Decimal
}

// Config derives the panel configuration for a participant who has applied
// amount in the pool: the limit is applied * (1 + MaxValuePct/100).
func (t Terms) Config(applied decimal.Decimal) Config {
	hundred := decimal.NewFromInt(100)
	limit := applied.Mul(decimal.NewFromInt(1).Add(t.MaxValuePct.Div(hundred))).Round(2)

	cfg := Config{
		MonthlyRate:     t.MonthlyRate.InexactFloat64(),
		MaxInstallments: t.MaxInstallments,
		MaxEndDate:      t.MaxDate,
	}
	cfg.Limit = limit.InexactFloat64()
	if cfg.MaxInstallments <= 0 {
		cfg.MaxInstallments = DefaultMaxInstallments
	}
	return cfg
}

// DefaultTerms are the charges used while the charges sheet is missing or
// unreadable: 4.08% a month, 24 installments, up to 20% over the applied
// balance and no end date before 10/11/2026.
func DefaultTerms() Terms {
	maxDate := time.Date(2026, time.November, 10, 0, 0, 0, 0, time.Local)
	return Terms{
		MonthlyRate:     decimal.RequireFromString("4.08"),
		MaxDate:         &maxDate,
		MaxInstallments: DefaultMaxInstallments,
		MaxValuePct:     decimal.NewFromInt(20),
	}
}
