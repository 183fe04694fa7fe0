package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ChamsBouzaiene/causette/internal/attachments"
	"github.com/ChamsBouzaiene/causette/internal/config"
	"github.com/ChamsBouzaiene/causette/internal/gateway"
	"github.com/ChamsBouzaiene/causette/internal/history"
	"github.com/ChamsBouzaiene/causette/internal/logger"
	"github.com/ChamsBouzaiene/causette/internal/prompts"
	"github.com/ChamsBouzaiene/causette/internal/server"
	"github.com/ChamsBouzaiene/causette/internal/watch"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := run(); err != nil {
		log.Fatalf("causette failed: %v", err)
	}
}

func run() error {
	// Persisted preferences override stale shell environment.
	if mgr, err := config.NewManager(); err == nil {
		if prefs, err := mgr.Load(); err == nil {
			prefs.ApplyEnv()
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	rootLog := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
		Output: os.Stderr,
	})

	// Opening the store runs the legacy migration; it never fails, a
	// corrupt file just starts empty.
	hist, err := history.Open(cfg.HistoryPath(), logger.Component(rootLog, "history"))
	if err != nil {
		return err
	}

	searchIdx, err := history.NewSearchIndex()
	if err != nil {
		return fmt.Errorf("failed to build search index: %w", err)
	}
	defer searchIdx.Close()
	hist.SetIndex(searchIdx)

	prm, err := prompts.Open(cfg.PromptsPath(), logger.Component(rootLog, "prompts"))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry, err := attachments.NewRegistry(ctx, cfg.UploadsDir(), cfg.AttachmentsDBPath(), cfg.MaxUploadBytes)
	if err != nil {
		return fmt.Errorf("failed to open attachment registry: %w", err)
	}
	defer registry.Close()

	client, model, err := gateway.NewClientFromEnv()
	if err != nil {
		return err
	}
	rootLog.Info().Str("model", model).Msg("completion gateway ready")

	if cfg.WatchFiles {
		watcher, err := watch.NewFileWatcher(logger.Component(rootLog, "watch"))
		if err != nil {
			rootLog.Warn().Err(err).Msg("file watching disabled")
		} else {
			defer watcher.Stop()
			if err := watcher.Watch(cfg.HistoryPath(), hist.MaybeReload); err != nil {
				rootLog.Warn().Err(err).Msg("cannot watch history file")
			}
			if err := watcher.Watch(cfg.PromptsPath(), prm.MaybeReload); err != nil {
				rootLog.Warn().Err(err).Msg("cannot watch prompts file")
			}
			watcher.Start()
		}
	}

	srv := server.New(server.Options{
		Log:          logger.Component(rootLog, "http"),
		Client:       client,
		DefaultModel: model,
		History:      hist,
		Reconciler:   history.NewReconciler(hist, logger.Component(rootLog, "reconcile")),
		Search:       searchIdx,
		Prompts:      prm,
		Attachments:  registry,
		PublicDir:    cfg.PublicDir,
	})

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: srv.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		rootLog.Info().Int("port", cfg.Port).Msg("server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	rootLog.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}
