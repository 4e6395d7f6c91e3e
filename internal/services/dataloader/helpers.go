package dataloader

import (
	"math"
	"strings"
	"time"

	"genio/internal/models"
	"genio/internal/money"
)

// cell returns the trimmed value at idx, "" when the row is short.
func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// indexOf finds a header by exact, case-insensitive name.
func indexOf(header []string, name string) int {
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return i
		}
	}
	return -1
}

// parseValue parses a pt-BR or plain amount, NaN when it is not one.
func parseValue(s string) float64 {
	d, ok := money.Parse(s)
	if !ok {
		return math.NaN()
	}
	return d.InexactFloat64()
}

// parseDate tries the layouts found in the report sheet. Day comes first
// in slashed dates.
func parseDate(s string) time.Time {
	formats := []string{
		"2006-01-02",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"02/01/2006",
		"2/1/2006",
		"02/01/2006 15:04:05",
		"02-01-2006",
	}

	s = strings.TrimSpace(s)
	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}

	return time.Time{}
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// trimTrailingEmpty drops empty rows at the end of a sheet.
func trimTrailingEmpty(rows [][]string) [][]string {
	end := len(rows)
	for end > 0 && isEmptyRow(rows[end-1]) {
		end--
	}
	return rows[:end]
}

// dropEmptyColumns removes columns that are empty in every row.
func dropEmptyColumns(rows [][]string) [][]string {
	width := 0
	for _, row := range rows {
		width = max(width, len(row))
	}

	keep := make([]int, 0, width)
	for col := 0; col < width; col++ {
		for _, row := range rows {
			if cell(row, col) != "" {
				keep = append(keep, col)
				break
			}
		}
	}

	out := make([][]string, len(rows))
	for i, row := range rows {
		record := make([]string, len(keep))
		for j, col := range keep {
			if col < len(row) {
				record[j] = row[col]
			}
		}
		out[i] = record
	}
	return out
}

// cachedPoint carries a point through the cache; unparseable values are
// stored as "nan" so they survive the round trip.
type cachedPoint struct {
	Date  string `json:"data"`
	Value any    `json:"valor"`
}

func encodable(points []models.Point) []cachedPoint {
	out := make([]cachedPoint, len(points))
	for i, p := range points {
		out[i] = cachedPoint{Date: p.Date, Value: p.Value}
		if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
			out[i].Value = "nan"
		}
	}
	return out
}
