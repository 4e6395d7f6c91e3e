package workbook

import (
	"bytes"
	"testing"

	"genio/internal/testutil"
)

func TestOpenAndRows(t *testing.T) {
	path := testutil.WriteXLSX(t, t.TempDir(), "Caixinha 2026.xlsx",
		testutil.Sheet{Name: "Resumo"},
		testutil.Sheet{Name: "Participantes", Rows: [][]testutil.Cell{
			{testutil.Str("A1", "CPF"), testutil.Str("B1", "Nome"), testutil.Inline("C1", "Saldo Atual"), testutil.Str("D1", "Aplicado")},
			{testutil.Num("A2", "52998224725"), testutil.Str("B2", "Maria"), testutil.Num("C2", "1550.25"), testutil.Num("D2", "1500")},
			{testutil.Str("A4", "11144477735"), testutil.Date("D4", "46055")},
		}},
	)

	wb, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	names := wb.SheetNames()
	if len(names) != 2 || names[1] != "Participantes" {
		t.Fatalf("SheetNames = %v", names)
	}

	rows, err := wb.Rows("Participantes")
	if err != nil {
		t.Fatalf("Rows: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("len(rows) = %d, want 4", len(rows))
	}
	for i, row := range rows {
		if len(row) != 4 {
			t.Errorf("row %d width = %d, want 4", i, len(row))
		}
	}
	if rows[0][2] != "Saldo Atual" || rows[1][1] != "Maria" || rows[1][2] != "1550.25" {
		t.Errorf("unexpected cells: %q", rows[:2])
	}
	if rows[2][0] != "" {
		t.Errorf("missing row should be empty, got %q", rows[2])
	}
	if rows[3][1] != "" || rows[3][3] != "2026-02-02" {
		t.Errorf("row 4 = %q", rows[3])
	}

	if _, err := wb.Rows("Nope"); err == nil {
		t.Error("expected an error for an unknown sheet")
	}
}

func TestOpenRejectsNonZip(t *testing.T) {
	if _, err := Read(bytes.NewReader([]byte("not a zip")), 9); err == nil {
		t.Error("expected an error")
	}
}

func TestColumnNumber(t *testing.T) {
	tests := map[string]int{"A1": 1, "E190": 5, "U190": 21, "Z9": 26, "AA3": 27, "ab10": 28}
	for ref, want := range tests {
		if got := columnNumber(ref); got != want {
			t.Errorf("columnNumber(%q) = %d, want %d", ref, got, want)
		}
	}
}

func TestSerialDate(t *testing.T) {
	tests := []struct {
		serial float64
		want   string
	}{
		{46055, "2026-02-02"},
		{45292, "2024-01-01"},
		{46055.5, "2026-02-02 12:00:00"},
	}
	for _, tt := range tests {
		if got := SerialDate(tt.serial); got != tt.want {
			t.Errorf("SerialDate(%v) = %q, want %q", tt.serial, got, tt.want)
		}
	}
}

func TestFoldAndResolve(t *testing.T) {
	if got := Fold("  Variação "); got != "variacao" {
		t.Errorf("Fold = %q", got)
	}

	names := []string{"Resumo", "PARTICIPANTES 2026", "Base"}
	if got := ResolveSheet(names, "base", "base"); got != "Base" {
		t.Errorf("exact match = %q", got)
	}
	if got := ResolveSheet(names, "participantes", "particip"); got != "PARTICIPANTES 2026" {
		t.Errorf("hint match = %q", got)
	}
	if got := ResolveSheet(names, "outra", ""); got != "Resumo" {
		t.Errorf("fallback = %q", got)
	}
	if got := ResolveSheet(nil, "base", "base"); got != "" {
		t.Errorf("empty workbook = %q", got)
	}
}

func TestFindColumn(t *testing.T) {
	header := []string{"Data", "Saldo Atual", "Aplicado", "Variação", "CPF"}
	if got := FindColumn(header, "cpf"); got != 4 {
		t.Errorf("cpf = %d", got)
	}
	if got := FindColumn(header, "atual", "saldo"); got != 1 {
		t.Errorf("atual = %d", got)
	}
	if got := FindColumn(header, "variacao"); got != 3 {
		t.Errorf("variacao = %d", got)
	}
	if got := FindColumn(header, "caixinha"); got != -1 {
		t.Errorf("missing = %d", got)
	}
}
