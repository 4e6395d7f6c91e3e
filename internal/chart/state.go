package chart

import "math"

// Mode is the series style.
type Mode string

const (
	ModeLine Mode = "line"
	ModeBar  Mode = "bar"
)

// ParseMode maps a button value to a Mode, defaulting to ModeLine.
func ParseMode(s string) Mode {
	if Mode(s) == ModeBar {
		return ModeBar
	}
	return ModeLine
}

// Canvas geometry, in canvas pixels.
const (
	padding       = 24
	yAxisWidth    = 70
	plotLeft      = padding + yAxisWidth
	plotRight     = padding
	plotTop       = padding
	plotBottom    = padding
	canvasHeight  = 220
	minCanvasWide = 320

	gridTicks = 4
	maxLabels = 6
)

// State is the geometry of the last render. It is derived from the
// controller on every redraw and never stored elsewhere.
type State struct {
	Mode    Mode
	Values  []float64
	Labels  []string
	Average []float64

	MinPlot float64
	Range   float64

	CanvasWidth  int
	CanvasHeight int
	Left         float64
	Top          float64
	Width        float64
	Height       float64

	Hover int
}

// Drawable reports whether there are enough points for axes and series.
func (s *State) Drawable() bool {
	return s != nil && len(s.Values) > 1
}

func newState(mode Mode, values []float64, labels []string, average []float64, canvasWidth, hover int) *State {
	s := &State{
		Mode:         mode,
		Values:       values,
		Labels:       labels,
		Average:      average,
		CanvasWidth:  canvasWidth,
		CanvasHeight: canvasHeight,
		Left:         plotLeft,
		Top:          plotTop,
		Width:        float64(canvasWidth - plotLeft - plotRight),
		Height:       float64(canvasHeight - plotTop - plotBottom),
		Hover:        -1,
	}
	if !s.Drawable() {
		return s
	}

	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	span := hi - lo
	if span == 0 {
		span = 1
	}
	s.Range = span * 1.7
	s.MinPlot = lo - span*0.7

	if hover >= 0 && hover < len(values) {
		s.Hover = hover
	}
	return s
}

// BarWidth is the horizontal slot of one bar.
func (s *State) BarWidth() float64 {
	return s.Width / float64(len(s.Values))
}

// X returns the canvas x of point i: the slot centre in bar mode, an evenly
// spaced position in line mode.
func (s *State) X(i int) float64 {
	if s.Mode == ModeBar {
		return s.Left + (float64(i)+0.5)*s.BarWidth()
	}
	return s.seriesX(i, len(s.Values))
}

func (s *State) seriesX(i, n int) float64 {
	if n < 2 {
		return s.Left
	}
	return s.Left + s.Width*float64(i)/float64(n-1)
}

// Y returns the canvas y of value v.
func (s *State) Y(v float64) float64 {
	return s.Top + s.Height - ((v-s.MinPlot)/s.Range)*s.Height
}

// IndexAt maps a canvas x to the nearest point. It reports false when x is
// outside the plot region.
func (s *State) IndexAt(canvasX float64) (int, bool) {
	if !s.Drawable() {
		return -1, false
	}
	if canvasX < s.Left || canvasX > s.Left+s.Width {
		return -1, false
	}

	var idx int
	if s.Mode == ModeBar {
		idx = int(math.Floor((canvasX - s.Left) / s.BarWidth()))
	} else {
		idx = int(math.Round((canvasX - s.Left) / s.Width * float64(len(s.Values)-1)))
	}
	idx = max(0, min(len(s.Values)-1, idx))
	return idx, true
}

// LabelStep is the index stride between x-axis date labels.
func (s *State) LabelStep() int {
	return max(1, len(s.Labels)/maxLabels)
}
