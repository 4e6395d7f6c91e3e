package models

import (
	"math"
	"testing"
)

func TestParseSeries(t *testing.T) {
	data := []byte(`[
		{"data": "2026-02-02", "valor": 1000},
		{"date": "2026-02-03", "value": "1.234,56"},
		{"data": "2026-02-04", "valor": "1500.25"},
		{"data": "2026-02-05", "valor": "R$ 2.000,00"},
		{"data": "2026-02-06", "valor": "n/d"},
		{"data": "2026-02-07"}
	]`)

	points := ParseSeries(data)
	if len(points) != 6 {
		t.Fatalf("got %d points, want 6", len(points))
	}

	want := []float64{1000, 1234.56, 1500.25, 2000}
	for i, v := range want {
		if math.Abs(points[i].Value-v) > 1e-9 {
			t.Errorf("points[%d].Value = %v, want %v", i, points[i].Value, v)
		}
	}
	if points[1].Date != "2026-02-03" {
		t.Errorf("points[1].Date = %q", points[1].Date)
	}
	for _, i := range []int{4, 5} {
		if !math.IsNaN(points[i].Value) {
			t.Errorf("points[%d].Value = %v, want NaN", i, points[i].Value)
		}
	}

	if clean := Clean(points); len(clean) != 4 {
		t.Errorf("Clean kept %d points, want 4", len(clean))
	}
}

func TestParseSeriesMalformed(t *testing.T) {
	for _, input := range []string{"", "{}", "not json", `[{"data": 1, "valor": []}`} {
		if got := ParseSeries([]byte(input)); len(got) != 0 {
			t.Errorf("ParseSeries(%q) = %v, want empty", input, got)
		}
	}
}
