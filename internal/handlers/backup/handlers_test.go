package backup

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"genio/internal/services/storage"
)

func zipOf(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestRestoreZip(t *testing.T) {
	dir := t.TempDir()
	s, err := storage.New(dir)
	if err != nil {
		t.Fatal(err)
	}
	store = s

	restored, err := restoreZip(zipOf(t, map[string]string{
		"informacoes.csv":      "cpf,nome\n52998224725,Maria\n",
		"antigo/relatorio.CSV": "data,caixinha 2026\n",
		"notas.txt":            "ignorado",
		".encryption-verify":   "x",
		"planilhas/Base.xlsx":  "PK",
		"cache/evolucao.json":  "[]",
	}))
	if err != nil {
		t.Fatalf("restoreZip: %v", err)
	}
	if restored != 2 {
		t.Errorf("restored = %d, want 2", restored)
	}

	for _, name := range []string{"informacoes.csv", "relatorio.CSV"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s not restored: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "notas.txt")); err == nil {
		t.Error("non-CSV entry should be skipped")
	}
}

func TestRestoreZipRejects(t *testing.T) {
	s, err := storage.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	store = s

	if _, err := restoreZip([]byte("not a zip")); err == nil {
		t.Error("expected an error for invalid zip data")
	}
	if _, err := restoreZip(zipOf(t, map[string]string{"leia.txt": "x"})); err == nil {
		t.Error("expected an error for an archive without CSV files")
	}
}

func TestSkipInBackup(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{".encrypted", true},
		{".encryption-verify", true},
		{"cache/evolucao.json", true},
		{"informacoes.csv", false},
		{"planilhas/Relatorio.xlsx", false},
	}
	for _, tt := range tests {
		if got := skipInBackup(tt.path); got != tt.want {
			t.Errorf("skipInBackup(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
