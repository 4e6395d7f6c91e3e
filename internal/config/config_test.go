package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.SessionIdle != 180*time.Second {
		t.Errorf("SessionIdle = %v", cfg.SessionIdle)
	}
	if filepath.Base(cfg.ReportPath()) != "Relatorio.xlsx" {
		t.Errorf("ReportPath = %s", cfg.ReportPath())
	}
	if filepath.Base(cfg.ParticipantsPath()) != "Caixinha 2026.xlsx" {
		t.Errorf("ParticipantsPath = %s", cfg.ParticipantsPath())
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "genio.yaml")
	yamlText := "listen_addr: \":9000\"\nsession_idle: 2m\nredis_addr: localhost:6379\nrefresh_schedule: \"@every 1m\"\n"
	if err := os.WriteFile(path, []byte(yamlText), 0600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("GENIO_CONFIG", path)
	t.Setenv("GENIO_DATA_DIR", filepath.Join(dir, "data"))
	t.Setenv("GENIO_SESSION_IDLE", "90")
	t.Setenv("GENIO_STORAGE_PASSWORD", "s3cret")
	t.Setenv("GENIO_SECURE_COOKIES", "1")
	t.Setenv("GENIO_PASSIVE_POLLING", "true")

	cfg := Load()

	if cfg.ListenAddr != ":9000" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.RedisAddr != "localhost:6379" || cfg.RefreshSchedule != "@every 1m" {
		t.Errorf("yaml values not applied: %+v", cfg)
	}
	if cfg.SessionIdle != 90*time.Second {
		t.Errorf("env should win over the file, SessionIdle = %v", cfg.SessionIdle)
	}
	if cfg.StoragePassword != "s3cret" {
		t.Error("storage password not read from env")
	}
	if !cfg.SecureCookies {
		t.Error("secure cookies not read from env")
	}
	if !cfg.PassivePolling {
		t.Error("passive polling not read from env")
	}
	if _, err := os.Stat(cfg.WorkbookDirectory); err != nil {
		t.Errorf("workbook directory not created: %v", err)
	}
}

func TestLoadFileErrors(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	_ = os.WriteFile(bad, []byte("listen_addr: [unclosed"), 0600)
	if err := cfg.LoadFile(bad); err == nil {
		t.Error("expected a parse error")
	}
}

func TestLogger(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogLevel = "warn"
	if got := cfg.Logger().GetLevel(); got != logrus.WarnLevel {
		t.Errorf("level = %v", got)
	}

	cfg.Debug = true
	if got := cfg.Logger().GetLevel(); got != logrus.DebugLevel {
		t.Errorf("debug level = %v", got)
	}

	cfg.LogLevel = "nonsense"
	cfg.Debug = false
	if got := cfg.Logger().GetLevel(); got != logrus.InfoLevel {
		t.Errorf("fallback level = %v", got)
	}
}
