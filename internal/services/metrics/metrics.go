package metrics

import (
	"math"
	"sort"

	"genio/internal/chart"
	"genio/internal/models"
)

// trendMonths is how many months the month-end table shows.
const trendMonths = 6

// Service provides metric calculation functionality
type Service struct{}

// New creates a new metrics service
func New() *Service {
	return &Service{}
}

// Summarize computes the header shown above the evolution chart. Points
// that are not numbers are ignored; an empty series yields a zero summary.
func (s *Service) Summarize(points []models.Point) *models.SeriesSummary {
	points = models.Clean(points)
	summary := &models.SeriesSummary{Count: len(points)}
	if len(points) == 0 {
		return summary
	}

	first, last := points[0], points[len(points)-1]
	summary.First = first.Value
	summary.Latest = last.Value
	summary.FirstDate = first.Date
	summary.LastDate = last.Date
	summary.Min, summary.Max = first.Value, first.Value
	for _, p := range points[1:] {
		summary.Min = math.Min(summary.Min, p.Value)
		summary.Max = math.Max(summary.Max, p.Value)
	}
	summary.Change = last.Value - first.Value
	summary.ChangePct = s.PercentChange(last.Value, first.Value)
	return summary
}

// MonthEnds returns the last value of each calendar month, oldest first,
// with the change against the previous month. Only the most recent six
// months are kept; undated points are skipped.
func (s *Service) MonthEnds(points []models.Point) []models.MonthEnd {
	closing := make(map[string]float64)
	labels := make(map[string]string)
	for _, p := range models.Clean(points) {
		t, ok := chart.ParseDate(p.Date)
		if !ok {
			continue
		}
		key := chart.MonthKey(t)
		closing[key] = p.Value
		labels[key] = chart.MonthLabel(t)
	}

	var months []string
	for m := range closing {
		months = append(months, m)
	}
	sort.Strings(months)

	var trend []models.MonthEnd
	for i, m := range months {
		row := models.MonthEnd{Month: m, Label: labels[m], Value: closing[m]}
		if i > 0 {
			prev := closing[months[i-1]]
			row.Change = row.Value - prev
			row.ChangePct = s.PercentChange(row.Value, prev)
		}
		trend = append(trend, row)
	}

	// Take last six months
	if len(trend) > trendMonths {
		trend = trend[len(trend)-trendMonths:]
	}
	return trend
}

// PercentChange calculates the percentage change between two values
func (s *Service) PercentChange(current, previous float64) float64 {
	if previous == 0 {
		if current == 0 {
			return 0
		}
		return 100
	}
	return ((current - previous) / math.Abs(previous)) * 100
}
