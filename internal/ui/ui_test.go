package ui

import (
	"net/url"
	"testing"
)

func TestPanelTransitions(t *testing.T) {
	tests := []struct {
		name      string
		style     Style
		openClass string
		shutClass string
	}{
		{"open style", StyleOpen, "open", ""},
		{"hidden style", StyleHidden, "", "is-hidden"},
		{"collapse style", StyleCollapse, "is-open", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPanel(tt.style, false)
			if p.Class() != tt.shutClass || p.AriaHidden() != "true" {
				t.Errorf("closed: class=%q aria=%q", p.Class(), p.AriaHidden())
			}

			p.Open()
			p.Open()
			if !p.IsOpen() || p.Class() != tt.openClass || p.AriaHidden() != "false" {
				t.Errorf("open: class=%q aria=%q", p.Class(), p.AriaHidden())
			}

			p.Toggle()
			if p.IsOpen() {
				t.Error("toggle should close an open panel")
			}
			p.Close()
			if p.IsOpen() {
				t.Error("close should be idempotent")
			}
		})
	}
}

func TestSidePanelOverlay(t *testing.T) {
	page := NewPage()
	page.Profile.Open()
	if page.Profile.Class() != "open" || page.Profile.OverlayClass() != "show" {
		t.Errorf("open profile: %q %q", page.Profile.Class(), page.Profile.OverlayClass())
	}
	page.Profile.Close()
	if page.Profile.OverlayClass() != "" {
		t.Error("overlay should hide with the panel")
	}
}

func TestFilterPanelDismissal(t *testing.T) {
	tests := []struct {
		name   string
		target ClickTarget
		key    string
		open   bool
	}{
		{"click inside keeps it open", ClickInPanel, "", true},
		{"click on the button keeps it open", ClickOnButton, "", true},
		{"click outside closes", ClickOutside, "", false},
		{"escape closes", ClickInPanel, "Escape", false},
		{"other keys do nothing", ClickInPanel, "Enter", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &FilterPanel{Panel{style: StyleHidden}}
			f.Open()
			f.OnDocumentClick(tt.target)
			if tt.key != "" {
				f.OnKey(tt.key)
			}
			if f.IsOpen() != tt.open {
				t.Errorf("IsOpen = %v, want %v", f.IsOpen(), tt.open)
			}
		})
	}
}

func TestPageQuery(t *testing.T) {
	q, _ := url.ParseQuery("panel=profile&chart=open&filter=closed")
	page := FromQuery(q)

	if !page.Profile.IsOpen() || !page.Chart.IsOpen() || page.Filter.IsOpen() {
		t.Fatalf("FromQuery = %+v", page)
	}
	if got := page.Query().Encode(); got != "chart=open&panel=profile" {
		t.Errorf("Query = %q", got)
	}

	toggled := page.ToggleQuery(KeyChart)
	if toggled != "panel=profile" {
		t.Errorf("ToggleQuery(chart) = %q", toggled)
	}
	if !page.Chart.IsOpen() {
		t.Error("ToggleQuery must not mutate the page")
	}
	if got := page.ToggleQuery("nope"); got != "chart=open&panel=profile" {
		t.Errorf("unknown toggle = %q", got)
	}
}

func TestFilterDismissQueries(t *testing.T) {
	q, _ := url.ParseQuery("filter=open&chart=open")
	page := FromQuery(q)

	if got := page.FilterKeyQuery("Escape"); got != "chart=open" {
		t.Errorf("FilterKeyQuery(Escape) = %q", got)
	}
	if got := page.FilterKeyQuery("Enter"); got != "chart=open&filter=open" {
		t.Errorf("FilterKeyQuery(Enter) = %q", got)
	}
	if got := page.FilterClickQuery(ClickOutside); got != "chart=open" {
		t.Errorf("FilterClickQuery(outside) = %q", got)
	}
	if got := page.FilterClickQuery(ClickInPanel); got != "chart=open&filter=open" {
		t.Errorf("FilterClickQuery(in panel) = %q", got)
	}
	if !page.Filter.IsOpen() {
		t.Error("dismiss queries must not change the page itself")
	}
}
