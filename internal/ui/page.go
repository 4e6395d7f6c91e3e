package ui

import (
	"net/url"
	"strings"
)

// Query keys understood by FromQuery.
const (
	KeyPanel     = "panel"
	KeyFilter    = "filter"
	KeyChart     = "chart"
	KeyLoan      = "emprestimo"
	KeyStatement = "comprovante"

	valueOpen = "open"
)

// Page is the panel state of one dashboard view.
type Page struct {
	Profile   SidePanel
	Filter    FilterPanel
	Chart     Panel
	Loan      Panel
	Statement Panel
}

// NewPage returns the page as it first loads: every panel closed.
func NewPage() *Page {
	return &Page{
		Profile:   SidePanel{Panel{style: StyleOpen}},
		Filter:    FilterPanel{Panel{style: StyleHidden}},
		Chart:     Panel{style: StyleCollapse},
		Loan:      Panel{style: StyleHidden},
		Statement: Panel{style: StyleHidden},
	}
}

// FromQuery rebuilds the page state from a request query, so links can
// carry panel state without scripts (?panel=profile&chart=open).
func FromQuery(q url.Values) *Page {
	p := NewPage()
	p.Profile.Set(strings.EqualFold(q.Get(KeyPanel), "profile"))
	p.Filter.Set(q.Get(KeyFilter) == valueOpen)
	p.Chart.Set(q.Get(KeyChart) == valueOpen)
	p.Loan.Set(q.Get(KeyLoan) == valueOpen)
	p.Statement.Set(q.Get(KeyStatement) == valueOpen)
	return p
}

// Query encodes the page state; closed panels are omitted.
func (p *Page) Query() url.Values {
	q := url.Values{}
	if p.Profile.IsOpen() {
		q.Set(KeyPanel, "profile")
	}
	if p.Filter.IsOpen() {
		q.Set(KeyFilter, valueOpen)
	}
	if p.Chart.IsOpen() {
		q.Set(KeyChart, valueOpen)
	}
	if p.Loan.IsOpen() {
		q.Set(KeyLoan, valueOpen)
	}
	if p.Statement.IsOpen() {
		q.Set(KeyStatement, valueOpen)
	}
	return q
}

// ToggleQuery returns the query string of this page with the named panel
// toggled; unknown names leave the state unchanged.
func (p *Page) ToggleQuery(name string) string {
	next := *p
	if panel := next.panel(name); panel != nil {
		panel.Toggle()
	}
	return next.Query().Encode()
}

func (p *Page) panel(name string) *Panel {
	switch name {
	case KeyPanel, "profile":
		return &p.Profile.Panel
	case KeyFilter:
		return &p.Filter.Panel
	case KeyChart:
		return &p.Chart
	case KeyLoan:
		return &p.Loan
	case KeyStatement:
		return &p.Statement
	}
	return nil
}

// FilterKeyQuery returns the query string after key is pressed while the
// page is shown.
func (p *Page) FilterKeyQuery(key string) string {
	next := *p
	next.Filter.OnKey(key)
	return next.Query().Encode()
}

// FilterClickQuery returns the query string after a document click on
// target.
func (p *Page) FilterClickQuery(target ClickTarget) string {
	next := *p
	next.Filter.OnDocumentClick(target)
	return next.Query().Encode()
}
