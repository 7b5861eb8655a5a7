package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/pauljones0/dealfeed-bot/internal/admin"
	"github.com/pauljones0/dealfeed-bot/internal/collector"
	"github.com/pauljones0/dealfeed-bot/internal/config"
	"github.com/pauljones0/dealfeed-bot/internal/notifier"
	"github.com/pauljones0/dealfeed-bot/internal/pipeline"
	"github.com/pauljones0/dealfeed-bot/internal/storage"
	"github.com/pauljones0/dealfeed-bot/internal/storage/lockfile"
)

// lockStaleAfter is how old an abandoned lock must be before a new process
// takes it over.
const lockStaleAfter = 2 * time.Hour

func main() {
	slog.Info("Starting deal feed bot...")
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Critical error loading configuration", "error", err)
		os.Exit(1)
	}

	lock, err := lockfile.Acquire(cfg.LockPath, lockStaleAfter)
	if err != nil {
		slog.Error("Another instance appears to be running", "error", err)
		os.Exit(1)
	}
	defer lock.Release()

	store, err := storage.Open(cfg.DatabasePath)
	if err != nil {
		slog.Error("Critical error opening deal database", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	n, err := notifier.New(cfg.DiscordWebhookURL)
	if err != nil {
		slog.Error("Critical error building notifier", "error", err)
		os.Exit(1)
	}

	registry := collector.NewRegistry()
	registry.Register(collector.NewSlickdeals(cfg.SlickdealsURL))
	registry.Register(collector.NewDealNews(cfg.DealNewsURL))
	registry.Register(collector.NewDealsOfAmerica(cfg.DealsOfAmericaURL))
	for _, name := range cfg.DisabledSources {
		if err := registry.Disable(name); err != nil {
			slog.Warn("Ignoring unknown source in DISABLED_SOURCES", "source", name)
		}
	}

	deliverer := pipeline.NewDeliverer(n, cfg.SendInterval, cfg.MaxAttempts, cfg.RetryBaseDelay)
	runner := pipeline.NewRunner(registry, store, n, deliverer, pipeline.RunnerConfig{
		Retention:        cfg.Retention,
		MaxDealsPerCycle: cfg.MaxDealsPerCycle,
		MinScore:         cfg.MinScore,
	})

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// DelayIfStillRunning keeps a slow cycle from overlapping the next tick;
	// it delays, never doubles up.
	scheduler := cron.New(cron.WithChain(
		cron.Recover(cron.DefaultLogger),
		cron.DelayIfStillRunning(cron.DefaultLogger),
	))
	_, err = scheduler.AddFunc(fmt.Sprintf("@every %s", cfg.CycleInterval), func() {
		runner.RunCycle(rootCtx)
	})
	if err != nil {
		slog.Error("Critical error scheduling cycles", "error", err)
		os.Exit(1)
	}
	scheduler.Start()
	slog.Info("Cycle schedule started", "interval", cfg.CycleInterval)

	adminSrv := admin.New(registry, runner, store)
	httpServer := &http.Server{
		Addr:         cfg.AdminAddr,
		Handler:      adminSrv.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		slog.Info("Admin server listening", "addr", cfg.AdminAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Admin server failed", "error", err)
			stop()
		}
	}()

	// First cycle right away; the schedule covers the rest.
	go runner.RunCycle(rootCtx)

	<-rootCtx.Done()
	slog.Info("Received signal, shutting down gracefully...")

	cronCtx := scheduler.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("Admin server shutdown error", "error", err)
	}
	select {
	case <-cronCtx.Done():
	case <-shutdownCtx.Done():
		slog.Warn("Timed out waiting for the running cycle")
	}

	for _, sc := range registry.Sessions() {
		sc.Release()
	}
	slog.Info("Bot stopped.")
}
