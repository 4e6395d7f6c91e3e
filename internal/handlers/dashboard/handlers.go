package dashboard

import (
	"bytes"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"genio/internal/chart"
	httpx "genio/internal/http"
	"genio/internal/models"
	"genio/internal/services/dataloader"
	"genio/internal/services/metrics"
	"genio/internal/session"
	"genio/internal/templates"
	"genio/internal/ui"
)

var (
	loader   *dataloader.DataLoader
	renderer *templates.Renderer
	summary  *metrics.Service
	log      logrus.FieldLogger = logrus.StandardLogger()
)

// Initialize sets up the dashboard package with required dependencies
func Initialize(l *dataloader.DataLoader, r *templates.Renderer, logger logrus.FieldLogger) {
	loader = l
	renderer = r
	summary = metrics.New()
	if logger != nil {
		log = logger
	}
}

// RegisterRoutes registers all dashboard routes behind the session gate.
// The refresh and data endpoints are polled; whether they count as
// activity is up to the session manager.
func RegisterRoutes(r chi.Router, sm *session.Manager) {
	r.With(sm.RequirePage).Get("/dashboard", handleDashboard)

	r.Group(func(r chi.Router) {
		r.Use(sm.RequireAPI(httpx.StatusError, true))
		r.Get("/evolucao/grafico.png", handleChart(chart.FormatPNG))
		r.Get("/evolucao/grafico.svg", handleChart(chart.FormatSVG))
		r.Get("/evolucao/tooltip", handleTooltip)
	})

	r.Group(func(r chi.Router) {
		r.Use(sm.RequirePolling(httpx.StatusError))
		r.Get("/relatorio/atualizar", handleRefreshReport)
		r.Get("/informacoes/atualizar", handleRefreshParticipants)
	})

	r.With(sm.RequirePolling([]models.Point{})).Get("/evolucao/dados", handleEvolutionData)
	r.With(sm.RequireAPI(httpx.Status("expired"), true)).Get("/session/ping", handlePing)
}

func handleDashboard(w http.ResponseWriter, r *http.Request) {
	user := session.UserFrom(r.Context())
	query := r.URL.Query()

	if err := loader.RefreshParticipants(); err != nil {
		log.WithError(err).Warn("Warning: participants refresh failed")
	}
	points := loader.Evolution(r.Context(), 0)
	if err := loader.RefreshReport(); err != nil {
		log.WithError(err).Warn("Warning: report refresh failed")
	}

	name := loader.NameByCPF(user)
	ctrl := chart.FromQuery(points, query)
	page := ui.FromQuery(query)
	maEnabled, maPeriod := ctrl.MovingAverage()

	chartQuery := ctrl.Query()
	pageData := map[string]any{
		"Title":       "Dashboard",
		"ActiveTab":   "dashboard",
		"User":        user,
		"Name":        name,
		"Balances":    loader.Balances(user),
		"Evolution":   points,
		"Summary":     summary.Summarize(points),
		"MonthEnds":   summary.MonthEnds(points),
		"Months":      ctrl.Months(),
		"Weeks":       []int{1, 2, 3, 4, 5},
		"Controller":  ctrl,
		"MAEnabled":   maEnabled,
		"MAPeriod":    maPeriod,
		"Page":        page,
		"PageFields":  page.Query(),
		"ChartPNG":    withQuery("/evolucao/grafico.png", chartQuery),
		"ChartSVG":    withQuery("/evolucao/grafico.svg", chartQuery),
		"ChartQuery":  chartQuery.Encode(),
		"Toggle":      toggleLinks(page, chartQuery),
		"QuickRanges": quickLinks(ctrl, page),
		"Modes":       modeLinks(ctrl, page),
		"ClearFilter": withQuery("/dashboard", page.Query()),
		"FilterEscape": withQuery("/dashboard", chartQuery,
			parseQuery(page.FilterKeyQuery("Escape"))),
		"FilterOutside": withQuery("/dashboard", chartQuery,
			parseQuery(page.FilterClickQuery(ui.ClickOutside))),
	}

	httpx.RenderTemplate(w, renderer, "dashboard", pageData)
}

// Link is a navigation link of the dashboard.
type Link struct {
	Label  string
	Href   string
	Active bool
}

var quickLabels = map[chart.QuickRange]string{
	chart.RangeDay:   "1D",
	chart.RangeWeek:  "1S",
	chart.RangeMonth: "1M",
	chart.RangeYear:  "1A",
}

// withQuery joins path with the merged queries; later values win.
func withQuery(path string, queries ...url.Values) string {
	merged := url.Values{}
	for _, q := range queries {
		for k, v := range q {
			merged[k] = v
		}
	}
	if len(merged) == 0 {
		return path
	}
	return path + "?" + merged.Encode()
}

// parseQuery decodes a query built by ui.Page; it never fails on those.
func parseQuery(raw string) url.Values {
	q, _ := url.ParseQuery(raw)
	return q
}

// toggleLinks returns, per panel, the dashboard URL with that panel
// toggled and the chart selection kept.
func toggleLinks(page *ui.Page, chartQuery url.Values) map[string]string {
	links := make(map[string]string)
	for name, key := range map[string]string{
		"profile":   ui.KeyPanel,
		"filter":    ui.KeyFilter,
		"chart":     ui.KeyChart,
		"loan":      ui.KeyLoan,
		"statement": ui.KeyStatement,
	} {
		links[name] = withQuery("/dashboard", chartQuery, parseQuery(page.ToggleQuery(key)))
	}
	return links
}

// quickLinks returns the quick range buttons. Choosing the active range
// again clears it; choosing any range replaces the calendar filter.
func quickLinks(ctrl *chart.Controller, page *ui.Page) []Link {
	ranges := []chart.QuickRange{chart.RangeDay, chart.RangeWeek, chart.RangeMonth, chart.RangeYear}
	links := make([]Link, 0, len(ranges))
	for _, r := range ranges {
		q := ctrl.Query()
		for _, key := range []string{chart.QueryRange, chart.QueryPeriod, chart.QueryMonth, chart.QueryWeek} {
			q.Del(key)
		}
		active := ctrl.Quick() == r
		if !active {
			q.Set(chart.QueryRange, string(r))
		}
		links = append(links, Link{
			Label:  quickLabels[r],
			Href:   withQuery("/dashboard", page.Query(), q),
			Active: active,
		})
	}
	return links
}

// modeLinks returns the line/bar switch.
func modeLinks(ctrl *chart.Controller, page *ui.Page) []Link {
	modes := []struct {
		mode  chart.Mode
		label string
	}{
		{chart.ModeLine, "Linha"},
		{chart.ModeBar, "Barras"},
	}
	links := make([]Link, 0, len(modes))
	for _, m := range modes {
		q := ctrl.Query()
		q.Del(chart.QueryMode)
		if m.mode != chart.ModeLine {
			q.Set(chart.QueryMode, string(m.mode))
		}
		links = append(links, Link{
			Label:  m.label,
			Href:   withQuery("/dashboard", page.Query(), q),
			Active: ctrl.Mode() == m.mode,
		})
	}
	return links
}

// handleChart draws the evolution chart for the selection in the query.
func handleChart(format chart.Format) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		points := loader.Evolution(r.Context(), 0)
		ctrl := chart.FromQuery(points, r.URL.Query())

		var buf bytes.Buffer
		if err := ctrl.Render(&buf, format); err != nil {
			log.WithError(err).Error("rendering chart")
			http.Error(w, "Error rendering chart", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", format.ContentType())
		w.Header().Set("Cache-Control", "no-store")
		w.Write(buf.Bytes())
	}
}

// handleTooltip answers a pointer position over the chart image. x is in
// canvas pixels unless the rendered width of the image is given as rw.
func handleTooltip(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	points := loader.Evolution(r.Context(), 0)
	ctrl := chart.FromQuery(points, query)

	x, err := strconv.ParseFloat(query.Get("x"), 64)
	if err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, httpx.StatusError)
		return
	}

	vp := chart.CanvasViewport(ctrl.Width())
	if rw, err := strconv.ParseFloat(query.Get("rw"), 64); err == nil && rw > 0 {
		vp.RectWidth = rw
		vp.WrapWidth = rw
		if rh, err := strconv.ParseFloat(query.Get("rh"), 64); err == nil && rh > 0 {
			vp.RectHeight = rh
		}
	}

	httpx.WriteJSON(w, http.StatusOK, ctrl.Hover(x, vp))
}

func handleRefreshReport(w http.ResponseWriter, r *http.Request) {
	if err := loader.RefreshReport(); err != nil {
		log.WithError(err).Warn("Warning: report refresh failed")
		httpx.WriteJSON(w, http.StatusOK, httpx.StatusError)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, httpx.StatusOK)
}

func handleRefreshParticipants(w http.ResponseWriter, r *http.Request) {
	if err := loader.RefreshParticipants(); err != nil {
		log.WithError(err).Warn("Warning: participants refresh failed")
		httpx.WriteJSON(w, http.StatusOK, httpx.StatusError)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, httpx.StatusOK)
}

// handleEvolutionData returns the series, the last ?limite=N points when
// given. A limit that is not a number is ignored.
func handleEvolutionData(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limite"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			limit = n
		}
	}

	points := loader.Evolution(r.Context(), limit)
	if points == nil {
		points = []models.Point{}
	}
	httpx.WriteJSON(w, http.StatusOK, points)
}

func handlePing(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, httpx.StatusOK)
}
