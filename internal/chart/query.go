package chart

import (
	"net/url"
	"strconv"

	"genio/internal/models"
)

// Query keys of the chart image and tooltip endpoints.
const (
	QueryMode     = "mode"
	QueryRange    = "range"
	QueryPeriod   = "period"
	QueryMonth    = "month"
	QueryWeek     = "week"
	QueryMA       = "ma"
	QueryMAPeriod = "ma_period"
	QueryHover    = "hover"
	QueryWidth    = "width"
)

// FromQuery builds a controller over points and replays the selection
// encoded in q: mode first, then either the quick range or the calendar
// filter, then the overlay, width and hover.
func FromQuery(points []models.Point, q url.Values) *Controller {
	c := NewController(points)

	if w, err := strconv.Atoi(q.Get(QueryWidth)); err == nil {
		c.Resize(w)
	}
	c.SetMode(ParseMode(q.Get(QueryMode)))

	enabled := q.Get(QueryMA) != "0"
	period := 2
	if n, err := strconv.Atoi(q.Get(QueryMAPeriod)); err == nil {
		period = n
	}
	c.SetMovingAverage(enabled, period)

	if r := QuickRange(q.Get(QueryRange)); r.Days() > 0 {
		c.ToggleQuick(r)
	} else {
		c.SetPeriod(ParsePeriod(q.Get(QueryPeriod)))
		c.SelectMonth(q.Get(QueryMonth))
		if week, err := strconv.Atoi(q.Get(QueryWeek)); err == nil {
			c.SelectWeek(week)
		}
		c.ApplyFilter()
	}

	if i, err := strconv.Atoi(q.Get(QueryHover)); err == nil {
		c.SetHover(i)
	}
	return c
}

// Query encodes the controller's selection so FromQuery can rebuild it.
// Defaults are omitted; hover is not carried.
func (c *Controller) Query() url.Values {
	q := url.Values{}
	if c.mode != ModeLine {
		q.Set(QueryMode, string(c.mode))
	}
	if c.quick != "" {
		q.Set(QueryRange, string(c.quick))
	} else if c.period != PeriodAll {
		q.Set(QueryPeriod, string(c.period))
		if c.period == PeriodMonth && c.month != "" {
			q.Set(QueryMonth, c.month)
		}
		if c.period == PeriodWeek {
			q.Set(QueryWeek, strconv.Itoa(c.week))
		}
	}
	if !c.maEnabled {
		q.Set(QueryMA, "0")
	} else if c.maPeriod != 2 {
		q.Set(QueryMAPeriod, strconv.Itoa(c.maPeriod))
	}
	if c.width != defaultCanvasWidth {
		q.Set(QueryWidth, strconv.Itoa(c.width))
	}
	return q
}
