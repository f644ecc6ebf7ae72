package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"hide-mail-go/internal/cloudflare"
	"hide-mail-go/internal/config"
	"hide-mail-go/internal/database"
	"hide-mail-go/internal/handler"
	"hide-mail-go/internal/metrics"
	"hide-mail-go/internal/pool"
	"hide-mail-go/internal/router"
	"hide-mail-go/internal/scheduler"
	"hide-mail-go/internal/service"
	"hide-mail-go/internal/settings"
)

// Run initializes and starts the application
func Run() error {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetLevel(logrus.InfoLevel)

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	configureLogging(cfg.Log)

	logrus.Info("Starting hide-mail service")

	store, err := newSettingsStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize settings store: %w", err)
	}

	m := metrics.NewMetrics(prometheus.DefaultRegisterer)
	client := cloudflare.NewClient(&cfg.Cloudflare)

	svc := service.New(
		store,
		func(apiKey string) service.Provider { return client.WithToken(apiKey) },
		cfg.Pool,
		cfg.Sync,
		pool.NewWordGenerator(time.Now().UnixNano()),
		m,
	)

	sched := scheduler.NewScheduler(cfg.Pool.ReconcileIntervalMinutes, svc)

	h := handler.NewHandlers(svc, sched)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router.SetupRouter(h),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	if cfg.Pool.ReconcileIntervalMinutes > 0 {
		if err := sched.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	} else {
		logrus.Info("Pool reconciliation schedule disabled")
	}

	go func() {
		logrus.Infof("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logrus.Errorf("HTTP server shutdown error: %v", err)
	}

	if err := sched.Shutdown(); err != nil {
		logrus.Errorf("Failed to stop scheduler: %v", err)
	}
	sched.Wait()

	if err := svc.WaitForSetup(ctx); err != nil {
		logrus.Warnf("Setup run still in progress at shutdown: %v", err)
	}

	logrus.Info("Server stopped gracefully")
	return nil
}

func configureLogging(cfg config.LogConfig) {
	if cfg.Format == "text" {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	if level, err := logrus.ParseLevel(cfg.Level); err == nil {
		logrus.SetLevel(level)
	}
}

// newSettingsStore builds the configured backend, optionally keeping the API
// key in the system keyring.
func newSettingsStore(cfg *config.Config) (settings.Store, error) {
	var store settings.Store

	switch cfg.Settings.Backend {
	case config.BackendDatabase:
		db, err := database.InitDatabase(cfg.Database)
		if err != nil {
			return nil, err
		}
		store = settings.NewDBStore(db)
	default:
		store = settings.NewFileStore(cfg.Settings.FilePath)
	}

	if cfg.Settings.UseKeyring {
		ring, err := settings.OpenKeyring(cfg.Settings.KeyringDir)
		if err != nil {
			return nil, err
		}
		store = settings.NewKeyringStore(store, ring)
	}

	return store, nil
}
