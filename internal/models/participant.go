package models

import "github.com/shopspring/decimal"

// Balances holds a participant's position in the savings pool.
type Balances struct {
	Current  decimal.Decimal  `json:"atual"`
	Applied  *decimal.Decimal `json:"aplicado,omitempty"`
	Variance *decimal.Decimal `json:"variacao,omitempty"`
}

// VarianceFloat returns the variance as float64, 0 when unknown.
func (b *Balances) VarianceFloat() float64 {
	if b == nil || b.Variance == nil {
		return 0
	}
	f, _ := b.Variance.Float64()
	return f
}

// AppliedOrZero returns the applied amount or zero when absent.
func (b *Balances) AppliedOrZero() decimal.Decimal {
	if b == nil || b.Applied == nil {
		return decimal.Zero
	}
	return *b.Applied
}

// Participant is one row of the participants sheet.
type Participant struct {
	CPF      string    `json:"cpf"`
	Name     string    `json:"nome"`
	Balances *Balances `json:"saldos,omitempty"`
}

// SeriesSummary is the header shown above the evolution chart.
type SeriesSummary struct {
	Count     int     `json:"count"`
	First     float64 `json:"first"`
	Latest    float64 `json:"latest"`
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
	Change    float64 `json:"change"`
	ChangePct float64 `json:"change_pct"`
	FirstDate string  `json:"first_date"`
	LastDate  string  `json:"last_date"`
}

// MonthEnd is one row of the month-end table: the last value recorded in
// the month and its change against the previous month.
type MonthEnd struct {
	Month     string  `json:"month"`
	Label     string  `json:"label"`
	Value     float64 `json:"value"`
	Change    float64 `json:"change"`
	ChangePct float64 `json:"change_pct"`
}
