package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hls-switcher/internal/platform/config"
	"hls-switcher/internal/platform/logger"
	"hls-switcher/internal/platform/metrics"
	"hls-switcher/internal/switcher"

	"github.com/go-chi/chi/v5"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()

	cfg, err := config.LoadSwitcher()
	if err != nil {
		logger.New("error", "json").Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	primary := switcher.OriginEndpoint{Role: switcher.Primary, BaseURL: cfg.PrimaryBaseURL}
	backup := switcher.OriginEndpoint{Role: switcher.Backup, BaseURL: cfg.BackupBaseURL}
	policy := switcher.Policy{
		Threshold:         cfg.Threshold,
		Windows:           uint(cfg.Windows),
		FailbackThreshold: cfg.FailbackThreshold,
		FailbackWindows:   uint(cfg.FailbackWindows),
	}

	met := metrics.New()
	store := switcher.NewInMemoryStore()
	prober := switcher.NewProber(primary, backup, cfg.PlaylistPath, cfg.ProbeTimeout, met)
	monitor := switcher.NewMonitor(prober, store, policy, cfg.CheckInterval, log, met)
	h := switcher.NewHandler(switcher.NewRouter(primary, backup, store, cfg.ProxyTimeout), store, log)

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		met.Handler(func() { met.SetActivePrimary(store.Active() == switcher.Primary) }).ServeHTTP(w, r)
	})
	h.Routes(r)

	monitorCtx, stopMonitor := context.WithCancel(context.Background())
	defer stopMonitor()
	go monitor.Run(monitorCtx)

	addr := ":" + cfg.Port
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server starting",
		"port", cfg.Port,
		"primary", cfg.PrimaryBaseURL,
		"backup", cfg.BackupBaseURL,
		"playlist_path", cfg.PlaylistPath,
		"check_interval", cfg.CheckInterval,
		"threshold", cfg.Threshold,
		"required_windows", cfg.Windows,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")
	stopMonitor()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
