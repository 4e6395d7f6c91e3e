package loan

import (
	"fmt"
	"time"
)

// Validation messages shown under the loan form.
const (
	MsgOverLimit   = "O valor desejado ultrapassa o limite máximo disponível."
	MsgPastMaxDate = "A data final das parcelas ultrapassa o limite permitido."
)

// MsgTooManyInstallments is the installment-count error for max.
func MsgTooManyInstallments(max int) string {
	return fmt.Sprintf("O número de parcelas não pode ultrapassar %d.", max)
}

// Summary is the live result panel of the simulator.
type Summary struct {
	Amount         float64   `json:"amount"`
	Installments   int       `json:"installments"`
	InterestPct    float64   `json:"interest_pct"`
	Total          float64   `json:"total"`
	PerInstallment float64   `json:"per_installment"`
	EndDate        time.Time `json:"end_date"`
	Error          string    `json:"error,omitempty"`
}

// Quote computes the simple-interest totals for amount over installments
// months starting today:
//
//	total = amount * (1 + rate/100 * n), per installment = total / n
//
// Totals are zero when n <= 0. At most one validation message is set: an
// end date past the cutoff beats too many installments, which beats an
// amount over the limit.
func Quote(cfg Config, amount float64, installments int, today time.Time) Summary {
	s := Summary{Amount: amount, Installments: installments}

	if installments > 0 {
		n := float64(installments)
		s.InterestPct = cfg.MonthlyRate * n
		s.Total = amount * (1 + cfg.MonthlyRate/100*n)
		s.PerInstallment = s.Total / n
		s.EndDate = AddMonths(dateOf(today), installments)
	}

	switch {
	case installments > 0 && cfg.MaxEndDate != nil && s.EndDate.After(dateOf(*cfg.MaxEndDate)):
		s.Error = MsgPastMaxDate
	case installments > cfg.MaxInstallments:
		s.Error = MsgTooManyInstallments(cfg.MaxInstallments)
	case amount > cfg.Limit:
		s.Error = MsgOverLimit
	}
	return s
}

// AddMonths advances t by n calendar months. When the day of month does
// not exist in the target month it is clamped to that month's last day, so
// 31 January plus one month is 28 or 29 February.
func AddMonths(t time.Time, n int) time.Time {
	first := time.Date(t.Year(), t.Month(), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	target := first.AddDate(0, n, 0)
	lastDay := time.Date(target.Year(), target.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
	return time.Date(target.Year(), target.Month(), min(t.Day(), lastDay),
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
