package dataloader

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"genio/internal/services/cache"
	"genio/internal/services/storage"
	"genio/internal/testutil"
)

func newLoader(t *testing.T) (*DataLoader, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.New(filepath.Join(dir, "data"))
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	dl := New(
		filepath.Join(dir, "Relatorio.xlsx"),
		filepath.Join(dir, "Caixinha 2026.xlsx"),
		store, nil, 0, nil,
	)
	return dl, dir
}

func writeReport(t *testing.T, dir string) {
	t.Helper()
	testutil.WriteXLSX(t, dir, "Relatorio.xlsx",
		testutil.Sheet{Name: "Resumo"},
		testutil.Sheet{Name: "Base", Rows: [][]testutil.Cell{
			{testutil.Str("A1", "Relatório Caixinha")},
			{testutil.Str("A4", "Data"), testutil.Str("D4", "Caixinha 2026")},
			{testutil.Date("A5", "46055"), testutil.Num("D5", "1000")},
			{testutil.Date("A6", "46056"), testutil.Str("D6", "1.050,50")},
			{testutil.Date("A7", "46057"), testutil.Str("D7", "-")},
			{testutil.Date("A8", "46058"), testutil.Num("D8", "1100")},
		}},
	)
}

func writeParticipants(t *testing.T, dir string) {
	t.Helper()
	testutil.WriteXLSX(t, dir, "Caixinha 2026.xlsx",
		testutil.Sheet{Name: "Capa"},
		testutil.Sheet{Name: "Participantes 2026", Rows: [][]testutil.Cell{
			{testutil.Str("A1", "CPF"), testutil.Str("B1", "Nome"), testutil.Str("C1", "Saldo Atual"), testutil.Str("D1", "Aplicado")},
			{testutil.Num("A2", "52998224725"), testutil.Str("B2", "Maria Silva"), testutil.Num("C2", "1550.25"), testutil.Num("D2", "1500")},
			{testutil.Str("A3", "111.444.777-35"), testutil.Str("B3", "João"), testutil.Str("C3", "R$ 2.000,00")},
			{testutil.Num("A4", "1234567890"), testutil.Str("B4", "Ana")},
		}},
	)
}

func TestBuildColumnIndex(t *testing.T) {
	tests := []struct {
		name     string
		header   []string
		expected map[string]int
	}{
		{
			name:     "participants",
			header:   []string{"CPF", "Nome Completo", "Saldo Atual", "Aplicado"},
			expected: map[string]int{"CPF": 0, "Name": 1, "Current": 2, "Applied": 3},
		},
		{
			name:     "report with accents",
			header:   []string{"Data", "Observação", "CAIXINHA 2026"},
			expected: map[string]int{"Date": 0, "Value": 2},
		},
		{
			name:     "saldo fallback",
			header:   []string{"cpf", "saldo"},
			expected: map[string]int{"CPF": 0, "Current": 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildColumnIndex(tt.header)
			if len(got) != len(tt.expected) {
				t.Errorf("buildColumnIndex(%v) = %v, want %v", tt.header, got, tt.expected)
			}
			for k, v := range tt.expected {
				if got[k] != v {
					t.Errorf("column %s = %d, want %d", k, got[k], v)
				}
			}
		})
	}
}

func TestNormalizeCPF(t *testing.T) {
	tests := map[string]string{
		"529.982.247-25":  "52998224725",
		"1234567890":      "01234567890",
		" 111 444 777 35": "11144477735",
		"abc":             "",
		"":                "",
	}
	for in, want := range tests {
		if got := NormalizeCPF(in); got != want {
			t.Errorf("NormalizeCPF(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRefreshReport(t *testing.T) {
	dl, dir := newLoader(t)

	if err := dl.RefreshReport(); !errors.Is(err, ErrNoWorkbook) {
		t.Fatalf("missing workbook: err = %v, want ErrNoWorkbook", err)
	}

	writeReport(t, dir)
	if err := dl.RefreshReport(); err != nil {
		t.Fatalf("RefreshReport: %v", err)
	}

	records, err := dl.Store().ReadCSV(ReportCSV)
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if len(records) != 5 {
		t.Fatalf("records = %d, want 5", len(records))
	}
	if got := records[0]; len(got) != 2 || got[0] != "Data" || got[1] != "Caixinha 2026" {
		t.Errorf("header = %q, want empty columns dropped", got)
	}
	if got := records[1]; got[0] != "2026-02-02" || got[1] != "1000" {
		t.Errorf("first row = %q", got)
	}
}

func TestEvolutionFromReport(t *testing.T) {
	dl, dir := newLoader(t)
	writeReport(t, dir)
	if err := dl.RefreshReport(); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	points := dl.Evolution(ctx, 0)
	if len(points) != 3 {
		t.Fatalf("points = %v, want 3", points)
	}
	want := []float64{1000, 1050.5, 1100}
	for i, p := range points {
		if math.Abs(p.Value-want[i]) > 1e-9 {
			t.Errorf("point %d = %v, want %v", i, p.Value, want[i])
		}
	}
	if points[0].Date != "2026-02-02" {
		t.Errorf("date = %q", points[0].Date)
	}

	// The limit counts rows; the unparseable one is dropped afterwards.
	tail := dl.Evolution(ctx, 2)
	if len(tail) != 1 || tail[0].Value != 1100 {
		t.Errorf("Evolution(2) = %v", tail)
	}
}

func TestEvolutionPositionalFallback(t *testing.T) {
	dl, dir := newLoader(t)
	testutil.WriteXLSX(t, dir, "Relatorio.xlsx",
		testutil.Sheet{Name: "Base", Rows: [][]testutil.Cell{
			{testutil.Str("A4", "Data"), testutil.Str("B4", "Outro")},
			{testutil.Num("E190", "500"), testutil.Date("U190", "46054")},
			{testutil.Num("E191", "600"), testutil.Date("U191", "46055")},
			{testutil.Date("U192", "46056")},
			{testutil.Str("E193", "700,5"), testutil.Str("U193", "03/02/2026")},
			{testutil.Num("E194", "800"), testutil.Str("U194", "sem data")},
		}},
	)

	points := dl.Evolution(context.Background(), 0)
	if len(points) != 2 {
		t.Fatalf("points = %v, want 2", points)
	}
	if points[0].Date != "2026-02-02" || points[0].Value != 600 {
		t.Errorf("first = %+v", points[0])
	}
	if points[1].Value != 700.5 {
		t.Errorf("second = %+v", points[1])
	}

	records, err := dl.Store().ReadCSV(EvolutionCSV)
	if err != nil {
		t.Fatalf("evolution CSV: %v", err)
	}
	if records[0][0] != "idx" || records[1][0] != "191" || records[2][0] != "193" {
		t.Errorf("records = %q", records)
	}

	// A report CSV without the value column still falls back.
	if err := dl.RefreshReport(); err != nil {
		t.Fatal(err)
	}
	if got := dl.Evolution(context.Background(), 1); len(got) != 1 || got[0].Value != 700.5 {
		t.Errorf("Evolution(1) = %v", got)
	}
}

func TestEvolutionEmpty(t *testing.T) {
	dl, _ := newLoader(t)
	if got := dl.Evolution(context.Background(), 0); len(got) != 0 {
		t.Errorf("Evolution without sources = %v", got)
	}
}

func TestEvolutionCache(t *testing.T) {
	dl, dir := newLoader(t)
	dl.cache = cache.NewMemory(time.Minute)
	dl.ttl = time.Minute
	writeReport(t, dir)
	if err := dl.RefreshReport(); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if got := dl.Evolution(ctx, 0); len(got) != 3 {
		t.Fatalf("first read = %v", got)
	}

	// Written behind the loader's back: the cached series still answers.
	if err := dl.Store().WriteCSV(ReportCSV, [][]string{{"data", "caixinha"}, {"2026-03-01", "5"}}); err != nil {
		t.Fatal(err)
	}
	if got := dl.Evolution(ctx, 0); len(got) != 3 {
		t.Errorf("cached read = %v", got)
	}

	// A refresh invalidates it.
	if err := dl.RefreshReport(); err != nil {
		t.Fatal(err)
	}
	if err := dl.Store().WriteCSV(ReportCSV, [][]string{{"data", "caixinha"}, {"2026-03-01", "5"}}); err != nil {
		t.Fatal(err)
	}
	got := dl.Evolution(ctx, 0)
	if len(got) != 1 || got[0].Value != 5 {
		t.Errorf("after refresh = %v", got)
	}
}

func TestParticipantLookup(t *testing.T) {
	dl, dir := newLoader(t)

	if _, err := dl.Participant("529.982.247-25"); !errors.Is(err, ErrNoWorkbook) {
		t.Fatalf("err = %v, want ErrNoWorkbook", err)
	}

	writeParticipants(t, dir)

	p, err := dl.Participant("529.982.247-25")
	if err != nil {
		t.Fatalf("Participant: %v", err)
	}
	if p.Name != "Maria Silva" || p.CPF != "52998224725" {
		t.Errorf("participant = %+v", p)
	}
	b := p.Balances
	if b == nil || b.Applied == nil || b.Variance == nil {
		t.Fatalf("balances = %+v", b)
	}
	if b.Current.String() != "1550.25" || b.Applied.String() != "1500" || b.Variance.String() != "50.25" {
		t.Errorf("balances = %s / %s / %s", b.Current, b.Applied, b.Variance)
	}

	b = dl.Balances("11144477735")
	if b == nil || b.Current.String() != "2000" || b.Applied != nil || b.Variance != nil {
		t.Errorf("balances without applied = %+v", b)
	}

	if got := dl.NameByCPF("01234567890"); got != "Ana" {
		t.Errorf("NameByCPF = %q", got)
	}
	if b := dl.Balances("1234567890"); b != nil {
		t.Errorf("empty balance should be nil, got %+v", b)
	}

	if _, err := dl.Participant("00000000191"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown CPF: err = %v", err)
	}
	if _, err := dl.Participant(""); !errors.Is(err, ErrNotFound) {
		t.Errorf("empty CPF: err = %v", err)
	}
}

func TestLoadTerms(t *testing.T) {
	dl, _ := newLoader(t)

	if _, err := dl.LoadTerms(); err == nil {
		t.Fatal("expected an error without encargos.csv")
	}

	csv := "\xef\xbb\xbfchave;valor\njuros_mensal;4,08%\nmax_data;10/11/2026\nMax Parcelas;12 x\nmax_valor_perc;20\n"
	if err := dl.Store().WriteFile(ChargesCSV, []byte(csv), 0644); err != nil {
		t.Fatal(err)
	}
	terms, err := dl.LoadTerms()
	if err != nil {
		t.Fatalf("LoadTerms: %v", err)
	}
	if terms.MonthlyRate.String() != "4.08" {
		t.Errorf("MonthlyRate = %s", terms.MonthlyRate)
	}
	if terms.MaxValuePct.String() != "20" {
		t.Errorf("MaxValuePct = %s", terms.MaxValuePct)
	}
	if terms.MaxInstallments != 12 {
		t.Errorf("MaxInstallments = %d", terms.MaxInstallments)
	}
	if terms.MaxDate == nil || terms.MaxDate.Format("2006-01-02") != "2026-11-10" {
		t.Errorf("MaxDate = %v", terms.MaxDate)
	}
}

func TestParseTermsErrors(t *testing.T) {
	tests := []struct {
		name    string
		records [][]string
	}{
		{"empty", nil},
		{"missing key", [][]string{{"chave", "valor"}, {"juros_mensal", "4"}, {"max_data", "2026-11-10"}, {"max_parcelas", "12"}}},
		{"bad rate", [][]string{{"chave", "valor"}, {"juros_mensal", "abc"}, {"max_data", "2026-11-10"}, {"max_parcelas", "12"}, {"max_valor_perc", "20"}}},
		{"bad date", [][]string{{"chave", "valor"}, {"juros_mensal", "4"}, {"max_data", "amanhã"}, {"max_parcelas", "12"}, {"max_valor_perc", "20"}}},
		{"no digits", [][]string{{"chave", "valor"}, {"juros_mensal", "4"}, {"max_data", "2026-11-10"}, {"max_parcelas", "doze"}, {"max_valor_perc", "20"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseTerms(tt.records); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestParseTermsHeaderless(t *testing.T) {
	records := [][]string{
		{"parametro", "conteudo"},
		{"juros_mensal", "1.234,5"},
		{"max_data", "2026-11-10"},
		{"max_parcelas", "24"},
		{"max_valor_perc", "20,5"},
	}
	terms, err := parseTerms(records)
	if err != nil {
		t.Fatalf("parseTerms: %v", err)
	}
	if terms.MonthlyRate.String() != "1234.5" || terms.MaxValuePct.String() != "20.5" {
		t.Errorf("terms = %+v", terms)
	}
}

func TestGetFileInfo(t *testing.T) {
	dl, dir := newLoader(t)
	writeReport(t, dir)
	if err := dl.RefreshReport(); err != nil {
		t.Fatal(err)
	}

	infos, err := dl.GetFileInfo()
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 2 {
		t.Fatalf("infos = %+v", infos)
	}
	if infos[0].Name != "Relatorio.xlsx" || infos[0].Generated {
		t.Errorf("workbook info = %+v", infos[0])
	}
	if infos[1].Name != ReportCSV || infos[1].Rows != 4 || !infos[1].Generated {
		t.Errorf("csv info = %+v", infos[1])
	}
}
