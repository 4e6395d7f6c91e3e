// Package ui holds the visibility state of the dashboard's panels and
// overlays.
package ui

// Style is how a panel's class attribute reflects its state.
type Style int

const (
	// StyleOpen adds "open" while the panel is visible.
	StyleOpen Style = iota
	// StyleHidden adds "is-hidden" while the panel is closed.
	StyleHidden
	// StyleCollapse adds "is-open" to the collapse button while expanded.
	StyleCollapse
)

// Panel is a single boolean visibility flag. Every transition is
// idempotent.
type Panel struct {
	style Style
	open  bool
}

// NewPanel returns a panel with the given style and initial state.
func NewPanel(style Style, open bool) *Panel {
	return &Panel{style: style, open: open}
}

func (p *Panel) Open()        { p.open = true }
func (p *Panel) Close()       { p.open = false }
func (p *Panel) Toggle()      { p.open = !p.open }
func (p *Panel) IsOpen() bool { return p.open }

// Set forces the visibility.
func (p *Panel) Set(visible bool) { p.open = visible }

// Class returns the class flag for the current state, empty when none
// applies.
func (p *Panel) Class() string {
	switch p.style {
	case StyleHidden:
		if !p.open {
			return "is-hidden"
		}
	case StyleCollapse:
		if p.open {
			return "is-open"
		}
	default:
		if p.open {
			return "open"
		}
	}
	return ""
}

// AriaHidden mirrors the state for assistive technology.
func (p *Panel) AriaHidden() string {
	if p.open {
		return "false"
	}
	return "true"
}

// SidePanel is the profile drawer. Its overlay opens and closes with it.
type SidePanel struct {
	Panel
}

// OverlayClass is the class flag of the dimming overlay.
func (s *SidePanel) OverlayClass() string {
	if s.open {
		return "show"
	}
	return ""
}

// ClickTarget classifies where a document click landed.
type ClickTarget int

const (
	ClickOutside ClickTarget = iota
	ClickInPanel
	ClickOnButton
)

// FilterPanel is the chart filter popover. Besides its button it closes on
// clicks outside itself and on Escape.
type FilterPanel struct {
	Panel
}

// OnDocumentClick closes the panel when the click landed neither inside it
// nor on the filter button.
func (f *FilterPanel) OnDocumentClick(target ClickTarget) {
	if !f.open {
		return
	}
	if target == ClickInPanel || target == ClickOnButton {
		return
	}
	f.Close()
}

// OnKey closes the panel on Escape.
func (f *FilterPanel) OnKey(key string) {
	if key == "Escape" {
		f.Close()
	}
}
