package chart

import (
	"fmt"
	"io"
	"math"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"genio/internal/money"
)

// Format selects the output surface.
type Format string

const (
	FormatPNG Format = "png"
	FormatSVG Format = "svg"
)

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	if f == FormatSVG {
		return "image/svg+xml"
	}
	return "image/png"
}

// NoDataMessage is drawn when fewer than two points survive the filter.
const NoDataMessage = "Sem dados suficientes para o gráfico."

var (
	colorBackground = drawing.ColorWhite
	colorGrid       = drawing.Color{R: 0, G: 0, B: 0, A: 20}
	colorText       = drawing.Color{R: 0x55, G: 0x55, B: 0x55, A: 255}
	colorLine       = drawing.Color{R: 11, G: 107, B: 58, A: 255}
	colorArea       = drawing.Color{R: 11, G: 107, B: 58, A: 36}
	colorBarFill    = drawing.Color{R: 17, G: 94, B: 89, A: 115}
	colorAverage    = drawing.Color{R: 11, G: 107, B: 184, A: 255}
	colorGuide      = drawing.Color{R: 11, G: 107, B: 58, A: 89}
)

// Draw paints state onto a new surface of the given format and writes the
// encoded result to w.
func Draw(w io.Writer, state *State, format Format) error {
	provider := gochart.PNG
	if format == FormatSVG {
		provider = gochart.SVG
	}

	r, err := provider(state.CanvasWidth, state.CanvasHeight)
	if err != nil {
		return fmt.Errorf("creating %s surface: %w", format, err)
	}
	font, err := gochart.GetDefaultFont()
	if err != nil {
		return fmt.Errorf("loading chart font: %w", err)
	}
	r.SetDPI(72)
	r.SetFont(font)

	fillRect(r, 0, 0, float64(state.CanvasWidth), float64(state.CanvasHeight), colorBackground)

	if !state.Drawable() {
		r.SetFontSize(14)
		r.SetFontColor(colorText)
		r.Text(NoDataMessage, padding, state.CanvasHeight/2)
		return r.Save(w)
	}

	drawGrid(r, state)
	drawXLabels(r, state)
	if state.Mode == ModeBar {
		drawBars(r, state)
	} else {
		drawLine(r, state)
	}
	drawHover(r, state)

	return r.Save(w)
}

func drawGrid(r gochart.Renderer, s *State) {
	r.SetStrokeColor(colorGrid)
	r.SetStrokeWidth(1)
	for i := 0; i <= gridTicks; i++ {
		t := float64(i) / gridTicks
		y := s.Top + s.Height - t*s.Height
		r.MoveTo(px(s.Left), px(y))
		r.LineTo(px(s.Left+s.Width), px(y))
		r.Stroke()
	}

	// Value labels sit between the rules.
	step := s.Range / gridTicks
	r.SetFontSize(12)
	r.SetFontColor(colorText)
	for i := 0; i < gridTicks; i++ {
		t := (float64(i) + 0.5) / gridTicks
		y := s.Top + s.Height - t*s.Height
		label := money.FormatBRL(s.MinPlot + (float64(i)+0.5)*step)
		box := r.MeasureText(label)
		r.Text(label, px(s.Left-8)-box.Width(), px(y)+box.Height()/2)
	}
}

func drawXLabels(r gochart.Renderer, s *State) {
	if len(s.Labels) < 2 {
		return
	}
	r.SetFontSize(11)
	r.SetFontColor(colorText)
	y := s.Top + s.Height + 6
	for i := 0; i < len(s.Labels); i += s.LabelStep() {
		text := s.Labels[i]
		if text == "" {
			continue
		}
		x := s.seriesX(i, len(s.Labels))
		box := r.MeasureText(text)
		r.Text(text, px(x)-box.Width()/2, px(y)+box.Height())
	}
}

func drawBars(r gochart.Renderer, s *State) {
	barWidth := s.BarWidth()
	for i, v := range s.Values {
		x := s.Left + float64(i)*barWidth + barWidth*0.15
		h := ((v - s.MinPlot) / s.Range) * s.Height
		y := s.Top + s.Height - h
		fillRect(r, x, y, barWidth*0.7, h, colorBarFill)
	}
}

func drawLine(r gochart.Renderer, s *State) {
	baseline := s.Top + s.Height

	// Area under the curve first so the stroke stays on top.
	r.SetFillColor(colorArea)
	r.SetStrokeWidth(0)
	r.SetStrokeColor(drawing.ColorTransparent)
	for i, v := range s.Values {
		x, y := px(s.X(i)), px(s.Y(v))
		if i == 0 {
			r.MoveTo(x, y)
		} else {
			r.LineTo(x, y)
		}
	}
	r.LineTo(px(s.Left+s.Width), px(baseline))
	r.LineTo(px(s.Left), px(baseline))
	r.Close()
	r.Fill()

	strokeSeries(r, s, s.Values, colorLine, 2)

	if len(s.Average) > 0 {
		strokeSeries(r, s, s.Average, colorAverage, 1.5)
	}
}

// strokeSeries maps values over their own length, so an overlay whose
// length differs from the main series still spans the plot.
func strokeSeries(r gochart.Renderer, s *State, values []float64, color drawing.Color, width float64) {
	r.SetStrokeColor(color)
	r.SetStrokeWidth(width)
	for i, v := range values {
		x, y := px(s.seriesX(i, len(values))), px(s.Y(v))
		if i == 0 {
			r.MoveTo(x, y)
		} else {
			r.LineTo(x, y)
		}
	}
	r.Stroke()
}

func drawHover(r gochart.Renderer, s *State) {
	if s.Hover < 0 || s.Hover >= len(s.Values) {
		return
	}
	x := s.X(s.Hover)
	y := s.Y(s.Values[s.Hover])

	r.SetStrokeColor(colorGuide)
	r.SetStrokeWidth(1)
	r.MoveTo(px(x), px(s.Top))
	r.LineTo(px(x), px(s.Top+s.Height))
	r.Stroke()

	r.SetFillColor(drawing.ColorWhite)
	r.SetStrokeColor(colorLine)
	r.SetStrokeWidth(2)
	r.Circle(4.5, px(x), px(y))
	r.FillStroke()
}

func fillRect(r gochart.Renderer, x, y, w, h float64, color drawing.Color) {
	r.SetFillColor(color)
	r.SetStrokeWidth(0)
	r.SetStrokeColor(drawing.ColorTransparent)
	r.MoveTo(px(x), px(y))
	r.LineTo(px(x+w), px(y))
	r.LineTo(px(x+w), px(y+h))
	r.LineTo(px(x), px(y+h))
	r.Close()
	r.Fill()
}

func px(v float64) int {
	return int(math.Round(v))
}
