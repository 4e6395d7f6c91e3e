package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"genio/internal/config"
	"genio/internal/handlers/auth"
	"genio/internal/handlers/backup"
	"genio/internal/handlers/dashboard"
	"genio/internal/handlers/simulator"
	"genio/internal/services/cache"
	"genio/internal/services/dataloader"
	"genio/internal/services/storage"
	"genio/internal/session"
	"genio/internal/templates"
	"genio/internal/version"
)

var (
	cfg      *config.Config
	logger   *logrus.Logger
	store    *storage.Storage
	loader   *dataloader.DataLoader
	renderer *templates.Renderer
	sessions *session.Manager
)

func main() {
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	info := version.Get()
	if *showVersion {
		fmt.Println(info)
		return
	}

	// Load configuration
	cfg = config.Load()
	logger = cfg.Logger()
	logger.WithFields(info.Fields()).Info("Starting genio")
	if warning := info.Warning(); warning != "" {
		logger.Warn(warning)
	}
	logger.WithFields(logrus.Fields{
		"listen": cfg.ListenAddr,
		"data":   cfg.DataDirectory,
	}).Info("configuration loaded")

	var err error
	store, err = storage.New(cfg.DataDirectory)
	if err != nil {
		logger.Fatalf("Failed to open data directory: %v", err)
	}
	if store.IsEncrypted() {
		if err := unlockStorage(store, cfg.StoragePassword); err != nil {
			logger.Fatalf("Failed to unlock data directory: %v", err)
		}
		logger.Info("data directory unlocked")
	}

	if err := SetupDependencies(cfg); err != nil {
		logger.Fatalf("Failed to setup dependencies: %v", err)
	}

	scheduler := cron.New()
	if cfg.RefreshSchedule != "" {
		if _, err := scheduler.AddFunc(cfg.RefreshSchedule, loader.RefreshAll); err != nil {
			logger.WithError(err).Warnf("Warning: invalid refresh schedule %q, refresh disabled", cfg.RefreshSchedule)
		} else {
			logger.WithField("schedule", cfg.RefreshSchedule).Info("workbook refresh scheduled")
		}
	}
	scheduler.Start()

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      SetupRouter(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Infof("Listening on %s", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		for range hup {
			if renderer == nil {
				continue
			}
			if err := renderer.Reload(); err != nil {
				logger.WithError(err).Error("reloading templates")
			} else {
				logger.Info("templates reloaded")
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		logger.Errorf("Server failed: %v", err)
	case <-quit:
		logger.Info("Shutting down server...")
	}

	<-scheduler.Stop().Done()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Error during server shutdown: %v", err)
	}
	store.Lock()
	logger.Info("Server exited")
}

// unlockStorage unlocks an encrypted data directory with password, or
// prompts for it when running on a terminal.
func unlockStorage(s *storage.Storage, password string) error {
	if password == "" {
		fd := int(os.Stdin.Fd())
		if !term.IsTerminal(fd) {
			return errors.New("data directory is encrypted; set GENIO_STORAGE_PASSWORD")
		}
		fmt.Fprint(os.Stderr, "Data directory password: ")
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return fmt.Errorf("reading password: %w", err)
		}
		password = strings.TrimSpace(string(b))
	}
	return s.Unlock(password)
}

// SetupDependencies builds the services from c and hands them to the
// handler packages. store must already be open.
func SetupDependencies(c *config.Config) error {
	if logger == nil {
		logger = c.Logger()
	}
	if store == nil {
		var err error
		if store, err = storage.New(c.DataDirectory); err != nil {
			return fmt.Errorf("opening data directory: %w", err)
		}
	}

	seriesCache, isRedis := cache.New(context.Background(), c.RedisAddr, c.CacheTTL)
	cacheName := "memory"
	if isRedis {
		cacheName = "redis"
	} else if c.RedisAddr != "" {
		logger.WithField("addr", c.RedisAddr).Warn("Warning: redis unreachable, caching in memory")
	}

	loader = dataloader.New(c.ReportPath(), c.ParticipantsPath(), store, seriesCache, c.CacheTTL, logger)

	var err error
	renderer, err = templates.New(c.TemplatesDirectory, c.Debug, logger)
	if err != nil {
		logger.WithError(err).Warn("Warning: could not load templates")
	}

	sessions, err = session.NewManager(c.SessionSecret, c.SessionIdle, logger)
	if err != nil {
		return fmt.Errorf("creating session manager: %w", err)
	}
	sessions.SetSecure(c.SecureCookies)
	sessions.SetPassivePolling(c.PassivePolling)
	if c.SessionSecret == "" {
		logger.Warn("Warning: no session secret configured, sessions end on restart")
	}
	logger.WithField("idle", sessions.Idle().String()).Debug("sessions ready")

	auth.Initialize(session.NewUsers(store, c.UsersFile), sessions, renderer, logger)
	dashboard.Initialize(loader, renderer, logger)
	simulator.Initialize(loader, renderer, seriesCache, logger)
	backup.Initialize(store, loader, cacheName, logger)
	return nil
}

// SetupRouter builds the chi router with every route.
func SetupRouter() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	// Static files
	fileServer := http.FileServer(http.Dir(cfg.StaticDirectory))
	r.Handle("/static/*", http.StripPrefix("/static/", fileServer))

	auth.RegisterRoutes(r)
	dashboard.RegisterRoutes(r, sessions)
	simulator.RegisterRoutes(r, sessions)
	backup.RegisterRoutes(r, sessions)

	return r
}
