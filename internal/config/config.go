package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	// Server settings
	ListenAddr string `yaml:"listen_addr"`
	Debug      bool   `yaml:"debug"`
	LogLevel   string `yaml:"log_level"`

	// Directories
	DataDirectory      string `yaml:"data_directory"`
	WorkbookDirectory  string `yaml:"workbook_directory"`
	TemplatesDirectory string `yaml:"templates_directory"`
	StaticDirectory    string `yaml:"static_directory"`

	// Source workbooks, relative to WorkbookDirectory
	ReportWorkbook       string `yaml:"report_workbook"`
	ParticipantsWorkbook string `yaml:"participants_workbook"`

	// Session
	SessionSecret string        `yaml:"session_secret"`
	SessionIdle   time.Duration `yaml:"session_idle"`
	SecureCookies bool          `yaml:"secure_cookies"`
	UsersFile     string        `yaml:"users_file"`
	// PassivePolling stops the dashboard's timed refreshes from keeping
	// the session alive.
	PassivePolling bool `yaml:"passive_polling"`

	// Cache: in-process unless RedisAddr is set
	RedisAddr string        `yaml:"redis_addr"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`

	// RefreshSchedule is the cron spec of the server-side workbook refresh;
	// empty disables it.
	RefreshSchedule string `yaml:"refresh_schedule"`

	// StoragePassword unlocks an encrypted data directory. Never read from
	// the YAML file.
	StoragePassword string `yaml:"-"`
}

// DefaultConfig returns configuration with sensible defaults
func DefaultConfig() *Config {
	// Get working directory
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}

	return &Config{
		ListenAddr:           ":5000",
		LogLevel:             "info",
		DataDirectory:        filepath.Join(wd, "data"),
		WorkbookDirectory:    filepath.Join(wd, "data", "planilhas"),
		TemplatesDirectory:   filepath.Join(wd, "web", "templates"),
		StaticDirectory:      filepath.Join(wd, "web", "static"),
		ReportWorkbook:       "Relatorio.xlsx",
		ParticipantsWorkbook: "Caixinha 2026.xlsx",
		SessionIdle:          180 * time.Second,
		UsersFile:            filepath.Join(wd, "data", "usuarios.csv"),
		CacheTTL:             40 * time.Second,
		RefreshSchedule:      "@every 5m",
	}
}

// Load builds the configuration from defaults, the YAML file named by
// GENIO_CONFIG and GENIO_* environment variables, in that order.
func Load() *Config {
	cfg := DefaultConfig()

	if path := os.Getenv("GENIO_CONFIG"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			logrus.Warnf("Warning: could not read config file %s: %v", path, err)
		}
	}

	cfg.applyEnv()

	// Ensure directories exist
	cfg.ensureDirectories()

	return cfg
}

// LoadFile overlays the YAML file at path onto c.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	if addr := os.Getenv("GENIO_LISTEN_ADDR"); addr != "" {
		c.ListenAddr = addr
	}
	if debug := os.Getenv("GENIO_DEBUG"); debug == "true" || debug == "1" {
		c.Debug = true
	}
	if level := os.Getenv("GENIO_LOG_LEVEL"); level != "" {
		c.LogLevel = level
	}
	if dataDir := os.Getenv("GENIO_DATA_DIR"); dataDir != "" {
		c.DataDirectory = dataDir
		c.WorkbookDirectory = filepath.Join(dataDir, "planilhas")
		c.UsersFile = filepath.Join(dataDir, "usuarios.csv")
	}
	if dir := os.Getenv("GENIO_WORKBOOK_DIR"); dir != "" {
		c.WorkbookDirectory = dir
	}
	if templatesDir := os.Getenv("GENIO_TEMPLATES_DIR"); templatesDir != "" {
		c.TemplatesDirectory = templatesDir
	}
	if staticDir := os.Getenv("GENIO_STATIC_DIR"); staticDir != "" {
		c.StaticDirectory = staticDir
	}
	if secret := os.Getenv("GENIO_SESSION_SECRET"); secret != "" {
		c.SessionSecret = secret
	}
	if idle := os.Getenv("GENIO_SESSION_IDLE"); idle != "" {
		if d, err := parseSeconds(idle); err == nil {
			c.SessionIdle = d
		} else {
			logrus.Warnf("Warning: ignoring GENIO_SESSION_IDLE=%q: %v", idle, err)
		}
	}
	if secure := os.Getenv("GENIO_SECURE_COOKIES"); secure == "true" || secure == "1" {
		c.SecureCookies = true
	}
	if passive := os.Getenv("GENIO_PASSIVE_POLLING"); passive == "true" || passive == "1" {
		c.PassivePolling = true
	}
	if users := os.Getenv("GENIO_USERS_FILE"); users != "" {
		c.UsersFile = users
	}
	if redis := os.Getenv("GENIO_REDIS_ADDR"); redis != "" {
		c.RedisAddr = redis
	}
	if spec, ok := os.LookupEnv("GENIO_REFRESH_SCHEDULE"); ok {
		c.RefreshSchedule = spec
	}
	if password := os.Getenv("GENIO_STORAGE_PASSWORD"); password != "" {
		c.StoragePassword = password
	}
}

// parseSeconds accepts a Go duration ("3m") or a bare number of seconds.
func parseSeconds(s string) (time.Duration, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(s)
}

// ReportPath is the full path of the report workbook.
func (c *Config) ReportPath() string {
	return filepath.Join(c.WorkbookDirectory, c.ReportWorkbook)
}

// ParticipantsPath is the full path of the participants workbook.
func (c *Config) ParticipantsPath() string {
	return filepath.Join(c.WorkbookDirectory, c.ParticipantsWorkbook)
}

// Logger builds the process logger: JSON in production, text when
// debugging.
func (c *Config) Logger() *logrus.Logger {
	logger := logrus.New()
	if c.Debug {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	if c.Debug && level < logrus.DebugLevel {
		level = logrus.DebugLevel
	}
	logger.SetLevel(level)
	return logger
}

// ensureDirectories creates required directories if they don't exist
func (c *Config) ensureDirectories() {
	dirs := []string{
		c.DataDirectory,
		c.WorkbookDirectory,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			logrus.Warnf("Warning: could not create directory %s: %v", dir, err)
		}
	}
}
