package loan

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrInvalidCPF is returned when a receiver CPF was typed but fails
	// the checksum.
	ErrInvalidCPF = errors.New("CPF do recebedor inválido.")
	// ErrIncomplete is returned when any other proceed condition fails.
	ErrIncomplete = errors.New("Preencha todos os campos e aceite os termos para prosseguir.")
)

// Draft is the loan form as the user typed it.
type Draft struct {
	Amount        string
	Installments  string
	PixKey        string
	PixCPF        string
	PixName       string
	TermsAccepted bool
}

// AmountValue returns the parsed amount, 0 when unreadable.
func (d Draft) AmountValue() float64 {
	return ParseNumber(d.Amount)
}

// InstallmentsValue returns the parsed installment count, 0 when
// unreadable.
func (d Draft) InstallmentsValue() int {
	n, _ := ParseInt(d.Installments)
	return n
}

// CanProceed reports whether the proceed button is enabled: positive
// amount and installments, every PIX field filled, a valid CPF and the
// terms accepted.
func (d Draft) CanProceed() bool {
	return d.AmountValue() > 0 &&
		d.InstallmentsValue() > 0 &&
		strings.TrimSpace(d.PixKey) != "" &&
		strings.TrimSpace(d.PixCPF) != "" &&
		ValidCPF(d.PixCPF) &&
		strings.TrimSpace(d.PixName) != "" &&
		d.TermsAccepted
}

// Statement is the confirmation shown after proceeding.
type Statement struct {
	Protocol     string    `json:"protocol"`
	IssuedAt     time.Time `json:"issued_at"`
	Amount       float64   `json:"amount"`
	Installments int       `json:"installments"`
	MonthlyRate  float64   `json:"monthly_rate"`
	InterestPct  float64   `json:"interest_pct"`
	Total        float64   `json:"total"`
	PerMonth     float64   `json:"per_installment"`
	EndDate      time.Time `json:"end_date"`
	Receiver     string    `json:"receiver"`
	ReceiverCPF  string    `json:"receiver_cpf"`
	PixKey       string    `json:"pix_key"`
}

// Simulator binds a Config to a clock. It is constructed once per page.
type Simulator struct {
	cfg Config
	now func() time.Time
}

// NewSimulator returns a simulator for cfg using the wall clock.
func NewSimulator(cfg Config) *Simulator {
	return &Simulator{cfg: cfg, now: time.Now}
}

// WithClock replaces the clock, for tests and for replaying a quote.
func (s *Simulator) WithClock(now func() time.Time) *Simulator {
	s.now = now
	return s
}

// Config returns the simulator's configuration.
func (s *Simulator) Config() Config {
	return s.cfg
}

// Update recomputes the summary panel for the current draft.
func (s *Simulator) Update(d Draft) Summary {
	return Quote(s.cfg, d.AmountValue(), d.InstallmentsValue(), s.now())
}

// Proceed turns a complete draft into a Statement. When the draft cannot
// proceed it returns ErrInvalidCPF if a CPF was typed and fails the
// checksum, ErrIncomplete otherwise.
func (s *Simulator) Proceed(d Draft) (Statement, error) {
	if !d.CanProceed() {
		if cpf := strings.TrimSpace(d.PixCPF); cpf != "" && !ValidCPF(cpf) {
			return Statement{}, ErrInvalidCPF
		}
		return Statement{}, ErrIncomplete
	}

	now := s.now()
	q := Quote(s.cfg, d.AmountValue(), d.InstallmentsValue(), now)
	return Statement{
		Protocol:     strings.ToUpper(uuid.New().String()[:8]),
		IssuedAt:     now,
		Amount:       q.Amount,
		Installments: q.Installments,
		MonthlyRate:  s.cfg.MonthlyRate,
		InterestPct:  q.InterestPct,
		Total:        q.Total,
		PerMonth:     q.PerInstallment,
		EndDate:      q.EndDate,
		Receiver:     placeholder(d.PixName),
		ReceiverCPF:  placeholder(d.PixCPF),
		PixKey:       placeholder(d.PixKey),
	}, nil
}

func placeholder(s string) string {
	if v := strings.TrimSpace(s); v != "" {
		return v
	}
	return "-"
}
