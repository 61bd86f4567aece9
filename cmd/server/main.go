package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/viant/afs"

	"github.com/erykwalder/quoth/internal/api"
	"github.com/erykwalder/quoth/internal/config"
	"github.com/erykwalder/quoth/internal/pipeline"
	"github.com/erykwalder/quoth/internal/refindex"
	"github.com/erykwalder/quoth/internal/vault"
)

func main() {
	cfg, err := config.Load()
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, cfg, log); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}

// serve runs until ctx is cancelled, then drains HTTP requests before
// stopping the index workers and closing the reference store.
func serve(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	store, closeStore, err := refindex.OpenStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open %s reference store: %w", cfg.IndexBackend, err)
	}
	defer closeStore()

	v := vault.New(afs.New(), cfg.VaultURL, log.With("component", "vault"))
	index := refindex.New(store, v, log.With("component", "refindex"), refindex.Options{
		SafeReadAttempts: cfg.SafeReadAttempts,
		SafeReadWait:     cfg.SafeReadWait,
	})
	if err := index.Load(ctx); err != nil {
		return fmt.Errorf("load reference index: %w", err)
	}

	orch := pipeline.NewOrchestrator(cfg, index, v, log.With("component", "pipeline"))
	orch.Start(context.WithoutCancel(ctx))
	defer orch.Stop()

	// an empty store means the vault has never been indexed
	if len(index.Entries()) == 0 {
		if err := orch.Submit(pipeline.NewJob(pipeline.KindRebuild, "", "")); err != nil {
			log.Warn("initial rebuild not queued", "error", err)
		}
	}

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      api.NewServer(v, index, orch, log, cfg),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("starting quoth", "port", cfg.Port, "vault", cfg.VaultURL, "backend", cfg.IndexBackend)
		errc <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
