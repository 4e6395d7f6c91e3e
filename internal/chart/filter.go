package chart

import (
	"sort"
	"time"

	"genio/internal/models"
)

// QuickRange is a relative window ending at the latest date in the series.
type QuickRange string

const (
	RangeDay   QuickRange = "1d"
	RangeWeek  QuickRange = "1w"
	RangeMonth QuickRange = "1m"
	RangeYear  QuickRange = "1y"
)

var quickRangeDays = map[QuickRange]int{
	RangeDay:   1,
	RangeWeek:  7,
	RangeMonth: 30,
	RangeYear:  365,
}

// Days returns the window length, 0 for an unknown range.
func (q QuickRange) Days() int {
	return quickRangeDays[q]
}

// Period selects which calendar filter the filter panel applies.
type Period string

const (
	PeriodAll   Period = "todos"
	PeriodMonth Period = "mes"
	PeriodWeek  Period = "semana"
)

// ParsePeriod maps a form value to a Period, defaulting to PeriodAll.
func ParsePeriod(s string) Period {
	switch Period(s) {
	case PeriodMonth, PeriodWeek:
		return Period(s)
	}
	return PeriodAll
}

// QuickIndexes returns the positions of points dated within the last N days
// of the latest parsed date. When no label parses it falls back to the last
// N positions. Unknown ranges return nil.
func QuickIndexes(points []models.Point, q QuickRange) []int {
	days := q.Days()
	if days == 0 {
		return nil
	}

	dates := make([]time.Time, len(points))
	valid := make([]bool, len(points))
	var latest time.Time
	found := false
	for i, p := range points {
		d, ok := ParseDate(p.Date)
		if !ok {
			continue
		}
		dates[i], valid[i] = d, true
		if !found || d.After(latest) {
			latest = d
			found = true
		}
	}

	if !found {
		count := min(len(points), days)
		indexes := make([]int, 0, count)
		for i := len(points) - count; i < len(points); i++ {
			indexes = append(indexes, i)
		}
		return indexes
	}

	start := latest.AddDate(0, 0, -(days - 1))
	var indexes []int
	for i := range points {
		if valid[i] && !dates[i].Before(start) {
			indexes = append(indexes, i)
		}
	}
	return indexes
}

// MonthIndexes returns the positions of points falling in the "YYYY-MM"
// month key. Undated points never match.
func MonthIndexes(points []models.Point, key string) []int {
	indexes := []int{}
	for i, p := range points {
		d, ok := ParseDate(p.Date)
		if !ok {
			continue
		}
		if MonthKey(d) == key {
			indexes = append(indexes, i)
		}
	}
	return indexes
}

// WeekIndexes returns the positions of points whose day of month falls in
// the 7-day bucket of week (1 covers days 1-7, 2 covers 8-14, ...).
func WeekIndexes(points []models.Point, week int) []int {
	if week < 1 {
		week = 1
	}
	first := (week-1)*7 + 1
	last := week * 7

	indexes := []int{}
	for i, p := range points {
		d, ok := ParseDate(p.Date)
		if !ok {
			continue
		}
		if day := d.Day(); day >= first && day <= last {
			indexes = append(indexes, i)
		}
	}
	return indexes
}

// MonthOption is one entry of the month radio group.
type MonthOption struct {
	Key   string
	Label string
}

// MonthOptions lists the distinct months present in the series, sorted by
// key.
func MonthOptions(points []models.Point) []MonthOption {
	seen := make(map[string]string)
	for _, p := range points {
		d, ok := ParseDate(p.Date)
		if !ok {
			continue
		}
		key := MonthKey(d)
		if _, exists := seen[key]; !exists {
			seen[key] = MonthLabel(d)
		}
	}

	options := make([]MonthOption, 0, len(seen))
	for key, label := range seen {
		options = append(options, MonthOption{Key: key, Label: label})
	}
	sort.Slice(options, func(i, j int) bool {
		return options[i].Key < options[j].Key
	})
	return options
}
