// Command parleyd runs parley's API server and, in its default deployment
// mode, the in-process turn worker and watchdog alongside it (spec.md §2).
// Grounded on the teacher's cmd/tarsy/main.go wiring order (load config,
// connect database, build services, start server) generalized from Gin to
// the chi-backed pkg/api and from a single monolithic service list to
// parley's Services aggregate.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/coworklab/parley/pkg/api"
	"github.com/coworklab/parley/pkg/config"
	"github.com/coworklab/parley/pkg/database"
	"github.com/coworklab/parley/pkg/dispatcher"
	"github.com/coworklab/parley/pkg/events"
	"github.com/coworklab/parley/pkg/llm/anthropicclient"
	"github.com/coworklab/parley/pkg/services"
	"github.com/coworklab/parley/pkg/store/pg"
	"github.com/coworklab/parley/pkg/turn"
	"github.com/coworklab/parley/pkg/version"
	"github.com/coworklab/parley/pkg/watchdog"
)

func main() {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "directory holding .env")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		fmt.Fprintf(os.Stderr, "parleyd: no .env at %s, using existing environment: %v\n", envPath, err)
	}

	bootLog := newLogger(config.DefaultLogConfig())

	cfg, err := config.Load()
	if err != nil {
		bootLog.Error("parleyd: load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		bootLog.Error("parleyd: invalid config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.Log)
	slog.SetDefault(log)

	log.Info("parleyd: starting", "version", version.Full(), "worker_mode", cfg.Worker.Mode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := database.NewClient(ctx, cfg.Database)
	if err != nil {
		log.Error("parleyd: connect database", "error", err)
		os.Exit(1)
	}
	defer dbClient.Close()
	log.Info("parleyd: connected to postgres")

	st := pg.New(dbClient.DB())
	hub := events.NewHub(10*time.Second, log)

	var (
		nudge      services.Nudger
		inProcDisp *dispatcher.Dispatcher
		wd         *watchdog.Service
	)

	switch cfg.Worker.Mode {
	case config.WorkerModeRemote:
		nudge = dispatcher.NewRemoteNudger(cfg.Worker.RemoteBaseURL, cfg.Security.InternalAPIKey, log)
		log.Info("parleyd: worker mode remote, turn worker runs out of process", "remote_base_url", cfg.Worker.RemoteBaseURL)
	default:
		llmClient := anthropicclient.New(4096, 1.0)
		runner := turn.New(st, llmClient, hub, cfg.Worker, cfg.Security.TokenEncryptionKey, log)
		inProcDisp = dispatcher.New(runner, log)
		nudge = inProcDisp

		wd = watchdog.New(st, hub, cfg.Watchdog, log)
		wd.Start(ctx)
		defer wd.Stop()
	}

	svc := services.New(st, cfg, hub, nudge)
	srv := api.NewServer(cfg, svc, hub, inProcDisp, log)

	errCh := make(chan error, 1)
	go func() {
		log.Info("parleyd: http listening", "addr", cfg.HTTP.BindAddr)
		if err := srv.Start(cfg.HTTP.BindAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		log.Info("parleyd: shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error("parleyd: http server failed", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.GracefulShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("parleyd: graceful shutdown failed", "error", err)
	}
	if inProcDisp != nil {
		inProcDisp.Wait()
	}
	log.Info("parleyd: stopped")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
