package chart

import (
	"io"
	"math"
	"slices"

	"genio/internal/models"
	"genio/internal/money"
)

const defaultCanvasWidth = 640

// Controller owns the chart's page state: the series, the active filter
// selection, the moving-average toggle and the hover index. Every
// transition re-derives the filtered indexes; Render derives the rest.
// A Controller is not safe for concurrent use.
type Controller struct {
	points []models.Point
	months []MonthOption

	mode   Mode
	period Period
	month  string
	week   int
	quick  QuickRange

	maEnabled bool
	maPeriod  int

	filtered []int
	hover    int
	width    int
}

// NewController builds a controller over points with the filter panel in
// its cleared state.
func NewController(points []models.Point) *Controller {
	c := &Controller{
		mode:      ModeLine,
		period:    PeriodAll,
		week:      1,
		maEnabled: true,
		maPeriod:  2,
		hover:     -1,
		width:     defaultCanvasWidth,
	}
	c.SetData(points)
	return c
}

// SetData replaces the series, as the periodic refresh does. Month options
// are rebuilt, the filter is re-applied and hover is cleared.
func (c *Controller) SetData(points []models.Point) {
	c.points = models.Clean(points)
	c.months = MonthOptions(c.points)
	if !c.hasMonth(c.month) {
		c.month = ""
		if len(c.months) > 0 {
			c.month = c.months[0].Key
		}
	}
	c.applyFilter()
	c.hover = -1
}

// Points returns the current series.
func (c *Controller) Points() []models.Point {
	return c.points
}

// Months returns the month radio options; the first one is the default.
func (c *Controller) Months() []MonthOption {
	return c.months
}

func (c *Controller) hasMonth(key string) bool {
	if key == "" {
		return false
	}
	return slices.ContainsFunc(c.months, func(m MonthOption) bool { return m.Key == key })
}

// Mode returns the active series style.
func (c *Controller) Mode() Mode { return c.mode }

// SetMode switches between line and bar and re-applies the filter.
func (c *Controller) SetMode(m Mode) {
	c.mode = m
	c.applyFilter()
}

// Period returns the selected calendar period.
func (c *Controller) Period() Period { return c.period }

// SelectedMonth returns the selected month key.
func (c *Controller) SelectedMonth() string { return c.month }

// SelectedWeek returns the selected week bucket.
func (c *Controller) SelectedWeek() int { return c.week }

// Quick returns the active quick range, empty when none.
func (c *Controller) Quick() QuickRange { return c.quick }

// SetPeriod changes the period radio. Like the radio itself, it only takes
// effect on ApplyFilter.
func (c *Controller) SetPeriod(p Period) {
	c.period = p
}

// SelectMonth changes the month radio; unknown keys are ignored.
func (c *Controller) SelectMonth(key string) {
	if c.hasMonth(key) {
		c.month = key
	}
}

// SelectWeek changes the week radio.
func (c *Controller) SelectWeek(week int) {
	if week >= 1 {
		c.week = week
	}
}

// ToggleQuick activates q, or clears it when q is already active. Activating
// a quick range moves the period radio back to "todos".
func (c *Controller) ToggleQuick(q QuickRange) {
	if c.quick == q {
		c.quick = ""
	} else {
		c.quick = q
		if q != "" {
			c.period = PeriodAll
		}
	}
	c.applyFilter()
}

// ApplyFilter is the filter panel's confirm action: it drops the quick range
// and applies the calendar selection.
func (c *Controller) ApplyFilter() {
	c.quick = ""
	c.applyFilter()
}

// ClearFilters resets every filter control to its default.
func (c *Controller) ClearFilters() {
	c.period = PeriodAll
	c.week = 1
	c.month = ""
	if len(c.months) > 0 {
		c.month = c.months[0].Key
	}
	c.maEnabled = true
	c.maPeriod = 2
	c.quick = ""
	c.filtered = nil
}

// MovingAverage reports whether the overlay is on and its window.
func (c *Controller) MovingAverage() (bool, int) {
	return c.maEnabled, c.maPeriod
}

// SetMovingAverage toggles the overlay and sets its window; windows below
// 2 are raised to 2.
func (c *Controller) SetMovingAverage(enabled bool, period int) {
	c.maEnabled = enabled
	c.maPeriod = max(2, period)
}

// Resize sets the canvas width from the wrapper width.
func (c *Controller) Resize(width int) {
	c.width = max(minCanvasWide, width)
}

// Filtered returns the active index subset, nil meaning every point.
func (c *Controller) Filtered() []int {
	return c.filtered
}

func (c *Controller) applyFilter() {
	if len(c.points) == 0 {
		c.filtered = nil
		return
	}

	if c.quick != "" {
		indexes := QuickIndexes(c.points, c.quick)
		if len(indexes) == 0 {
			indexes = nil
		}
		c.filtered = indexes
		return
	}

	switch c.period {
	case PeriodWeek:
		c.filtered = WeekIndexes(c.points, c.week)
	case PeriodMonth:
		if c.month != "" {
			c.filtered = MonthIndexes(c.points, c.month)
		} else {
			c.filtered = nil
		}
	default:
		c.filtered = nil
	}
}

// State derives the render geometry for the current selection.
func (c *Controller) State() *State {
	indexes := c.filtered
	if indexes == nil {
		indexes = make([]int, len(c.points))
		for i := range indexes {
			indexes[i] = i
		}
	}

	values := make([]float64, 0, len(indexes))
	labels := make([]string, 0, len(indexes))
	for _, i := range indexes {
		if i < 0 || i >= len(c.points) {
			continue
		}
		values = append(values, c.points[i].Value)
		labels = append(labels, c.points[i].Date)
	}

	var average []float64
	if c.maEnabled {
		average = MovingAverage(values, c.maPeriod)
	}

	return newState(c.mode, values, labels, average, c.width, c.hover)
}

// Render redraws the chart into w.
func (c *Controller) Render(w io.Writer, format Format) error {
	return Draw(w, c.State(), format)
}

// Viewport describes where the canvas sits on screen: its bounding rect and
// the rect of the wrapper the tooltip is positioned in.
type Viewport struct {
	RectLeft, RectTop, RectWidth, RectHeight float64
	WrapLeft, WrapTop, WrapWidth             float64
}

// CanvasViewport is the identity viewport for a canvas drawn at its natural
// size at the wrapper's origin.
func CanvasViewport(width int) Viewport {
	return Viewport{
		RectWidth:  float64(width),
		RectHeight: canvasHeight,
		WrapWidth:  float64(width),
	}
}

// Tooltip is the hover popup.
type Tooltip struct {
	Visible bool    `json:"visible"`
	Index   int     `json:"index"`
	Text    string  `json:"text"`
	Left    float64 `json:"left"`
	Top     float64 `json:"top"`
}

// ToCanvasX maps a pointer x in screen space to canvas space.
func (v Viewport) ToCanvasX(clientX float64, canvasWidth int) float64 {
	if v.RectWidth <= 0 {
		return clientX - v.RectLeft
	}
	return (clientX - v.RectLeft) * float64(canvasWidth) / v.RectWidth
}

// HoverAt handles a pointer move over a canvas drawn at natural size.
func (c *Controller) HoverAt(canvasX float64) Tooltip {
	return c.Hover(canvasX, CanvasViewport(c.width))
}

// Hover handles a pointer move at screen x clientX. Outside the plot region
// the hover is cleared.
func (c *Controller) Hover(clientX float64, vp Viewport) Tooltip {
	state := c.State()
	if !state.Drawable() {
		c.hover = -1
		return Tooltip{Index: -1}
	}

	canvasX := vp.ToCanvasX(clientX, state.CanvasWidth)
	idx, ok := state.IndexAt(canvasX)
	if !ok {
		c.hover = -1
		return Tooltip{Index: -1}
	}
	c.hover = idx

	value := state.Values[idx]
	text := money.FormatBRL(value)
	if label := state.Labels[idx]; label != "" {
		text = label + " • " + text
	}

	scaleX := 1.0
	scaleY := 1.0
	if vp.RectWidth > 0 {
		scaleX = float64(state.CanvasWidth) / vp.RectWidth
	}
	if vp.RectHeight > 0 {
		scaleY = float64(state.CanvasHeight) / vp.RectHeight
	}
	pointX := state.X(idx)
	pointY := state.Y(value)

	left := (vp.RectLeft - vp.WrapLeft) + pointX/scaleX
	left = math.Max(14, math.Min(vp.WrapWidth-14, left))
	top := math.Max(12, (vp.RectTop-vp.WrapTop)+pointY/scaleY)

	return Tooltip{
		Visible: true,
		Index:   idx,
		Text:    text,
		Left:    left,
		Top:     top,
	}
}

// Leave clears hover when the pointer leaves the canvas.
func (c *Controller) Leave() {
	c.hover = -1
}

// HoverIndex returns the hovered point, -1 when none.
func (c *Controller) HoverIndex() int {
	return c.hover
}

// SetHover pins the hover to point i of the filtered series. Out-of-range
// indexes clear it.
func (c *Controller) SetHover(i int) {
	if i < 0 || i >= len(c.State().Values) {
		c.hover = -1
		return
	}
	c.hover = i
}

// Width returns the canvas width.
func (c *Controller) Width() int {
	return c.width
}
