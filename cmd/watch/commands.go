package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"genio/internal/chart"
	"genio/internal/models"
	"genio/internal/money"
)

const help = `commands:
  mode line|bar      series style
  range 1d|1w|1m|1y  toggle a quick range
  month YYYY-MM      show one month
  week N             show days 7N-6..7N of every month
  all                clear every filter
  ma N|off           moving average window
  hover F            tooltip at fraction F (0..1) of the chart width
  render FILE        write the chart to FILE (.png or .svg)
  show               print the filtered series
  quit
`

var errQuit = errors.New("quit")

// viewer holds the chart the terminal user drives. The series arrives from
// the poller goroutine, so every access goes through mu.
type viewer struct {
	mu   sync.Mutex
	ctrl *chart.Controller
	out  io.Writer
}

func newViewer(out io.Writer) *viewer {
	return &viewer{ctrl: chart.NewController(nil), out: out}
}

// setSeries replaces the series after a refresh.
func (v *viewer) setSeries(points []models.Point) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.ctrl.SetData(points)
	fmt.Fprintf(v.out, "série atualizada: %d pontos\n", len(v.ctrl.Points()))
}

// exec runs one command line. It returns errQuit for quit.
func (v *viewer) exec(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	v.mu.Lock()
	defer v.mu.Unlock()

	switch cmd {
	case "quit", "exit", "q":
		return errQuit

	case "help", "?":
		fmt.Fprint(v.out, help)

	case "mode":
		if len(args) != 1 {
			return errors.New("usage: mode line|bar")
		}
		v.ctrl.SetMode(chart.ParseMode(args[0]))
		fmt.Fprintf(v.out, "modo: %s\n", v.ctrl.Mode())

	case "range":
		if len(args) != 1 || chart.QuickRange(args[0]).Days() == 0 {
			return errors.New("usage: range 1d|1w|1m|1y")
		}
		v.ctrl.ToggleQuick(chart.QuickRange(args[0]))
		if q := v.ctrl.Quick(); q != "" {
			fmt.Fprintf(v.out, "intervalo: %s\n", q)
		} else {
			fmt.Fprintln(v.out, "intervalo removido")
		}

	case "month":
		if len(args) != 1 {
			return errors.New("usage: month YYYY-MM")
		}
		v.ctrl.SelectMonth(args[0])
		if v.ctrl.SelectedMonth() != args[0] {
			return fmt.Errorf("no data for month %s", args[0])
		}
		v.ctrl.SetPeriod(chart.PeriodMonth)
		v.ctrl.ApplyFilter()

	case "week":
		if len(args) != 1 {
			return errors.New("usage: week N")
		}
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 || n > 5 {
			return errors.New("week must be between 1 and 5")
		}
		v.ctrl.SelectWeek(n)
		v.ctrl.SetPeriod(chart.PeriodWeek)
		v.ctrl.ApplyFilter()

	case "all", "clear":
		v.ctrl.ClearFilters()

	case "ma":
		if len(args) != 1 {
			return errors.New("usage: ma N|off")
		}
		_, period := v.ctrl.MovingAverage()
		if args[0] == "off" {
			v.ctrl.SetMovingAverage(false, period)
			break
		}
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid window %q", args[0])
		}
		v.ctrl.SetMovingAverage(true, n)

	case "hover":
		if len(args) != 1 {
			return errors.New("usage: hover F")
		}
		f, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("invalid position %q", args[0])
		}
		tip := v.ctrl.HoverAt(f * float64(v.ctrl.Width()))
		if !tip.Visible {
			fmt.Fprintln(v.out, "(fora do gráfico)")
			break
		}
		fmt.Fprintln(v.out, tip.Text)

	case "render":
		if len(args) != 1 {
			return errors.New("usage: render FILE")
		}
		return v.render(args[0])

	case "show":
		v.show()

	default:
		return fmt.Errorf("unknown command %q (try help)", cmd)
	}
	return nil
}

func (v *viewer) render(path string) error {
	format := chart.FormatPNG
	if strings.EqualFold(filepath.Ext(path), ".svg") {
		format = chart.FormatSVG
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := v.ctrl.Render(f, format); err != nil {
		f.Close()
		return fmt.Errorf("rendering chart: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(v.out, "gráfico salvo em %s\n", path)
	return nil
}

func (v *viewer) show() {
	points := v.ctrl.Points()
	indexes := v.ctrl.Filtered()
	if indexes == nil {
		indexes = make([]int, len(points))
		for i := range points {
			indexes[i] = i
		}
	}
	if len(indexes) == 0 {
		fmt.Fprintln(v.out, "(sem pontos)")
		return
	}
	for _, i := range indexes {
		fmt.Fprintf(v.out, "%-12s %s\n", points[i].Date, money.FormatBRL(points[i].Value))
	}
}
