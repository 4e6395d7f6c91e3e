package models

import (
	"encoding/json"
	"math"
	"strings"

	"genio/internal/money"
)

// Point is one sample of the savings-pool evolution series.
// Order is the order the server produced, which is chronological.
type Point struct {
	Date  string  `json:"data"`
	Value float64 `json:"valor"`
}

// UnmarshalJSON accepts both the host's {data, valor} keys and the
// {date, value} spelling. Values may arrive as numbers or as numeric
// strings in pt-BR or plain notation.
func (p *Point) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	*p = Point{Value: math.NaN()}
	for _, key := range []string{"data", "date"} {
		if v, ok := raw[key]; ok {
			var s string
			if err := json.Unmarshal(v, &s); err == nil {
				p.Date = strings.TrimSpace(s)
			}
			break
		}
	}
	for _, key := range []string{"valor", "value"} {
		if v, ok := raw[key]; ok {
			p.Value = decodeNumber(v)
			break
		}
	}
	return nil
}

func decodeNumber(v json.RawMessage) float64 {
	var f float64
	if err := json.Unmarshal(v, &f); err == nil {
		return f
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		if d, ok := money.Parse(s); ok {
			return d.InexactFloat64()
		}
	}
	return math.NaN()
}

// ParseSeries decodes a JSON array of points. Anything malformed yields an
// empty series; callers render "no data" in that case.
func ParseSeries(data []byte) []Point {
	var points []Point
	if err := json.Unmarshal(data, &points); err != nil {
		return nil
	}
	return points
}

// Clean drops points whose value is not a number, keeping dates and
// values aligned by index.
func Clean(points []Point) []Point {
	out := make([]Point, 0, len(points))
	for _, p := range points {
		if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
			continue
		}
		out = append(out, p)
	}
	return out
}
