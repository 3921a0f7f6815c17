package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tradearena/internal/config"
	"tradearena/internal/engine"
	"tradearena/internal/feed"
	"tradearena/internal/httpapi"
	"tradearena/internal/prices"
	"tradearena/internal/store"
	"tradearena/internal/universe"
	"tradearena/internal/util"
)

func main() {
	cfgPath := "config/arena.yaml"
	if p := os.Getenv("ARENA_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level)
	util.SetDefault(logger)

	sqlitePath := cfg.Storage.SQLitePath
	if sqlitePath == "" {
		sqlitePath = "data/arena.db"
	}
	st, err := store.NewSQLiteStore(sqlitePath)
	if err != nil {
		log.Fatalf("opening store: %v", err)
	}
	defer st.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Idempotent: a no-op when the game row already exists.
	if err := st.InitGame(ctx, cfg.Game.StartingCash); err != nil {
		log.Fatalf("initializing game: %v", err)
	}

	hub := feed.NewHub(logger)
	go hub.Run(ctx)

	eng := engine.NewEngine(st, cfg.Registry(), hub, logger)

	var archive *store.ParquetArchive
	if cfg.Storage.DataDir != "" {
		archive = store.NewParquetArchive(cfg.Storage.DataDir)
	}

	// In-process price refresher when Alpaca credentials are configured.
	if cfg.Alpaca.APIKey != "" {
		fetcher := prices.NewAlpacaFetcher(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.DataURL)
		sink := prices.StoreSink{Store: st, Feed: hub}
		refresher := prices.NewRefresher(fetcher, sink, st, universe.IndexSymbols(), time.Minute, logger)
		go func() {
			if err := refresher.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("price refresher stopped", "err", err)
			}
		}()
	}

	srv := httpapi.NewServer(
		st,
		eng,
		archive,
		hub,
		hub,
		cfg.Server.AuthToken,
		cfg.Server.CORSOrigin,
		cfg.Game.MaxTradesPerRound,
		logger,
	)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: srv.Handler(),
	}

	go func() {
		logger.Info("arena server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down arena server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
