// Command arena-prices runs the Alpaca price refresher out of process,
// pushing refreshed prices to the server over HTTP. Use it when the server
// runs without Alpaca credentials, or to refresh from a separate host.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"tradearena/internal/config"
	"tradearena/internal/prices"
	"tradearena/internal/universe"
	"tradearena/internal/util"
	"tradearena/pkg/arena"
)

func main() {
	serverURL := flag.String("server", "http://localhost:8080", "arena server base URL")
	symbolsFlag := flag.String("symbols", "", "comma-separated extra symbols to refresh (default: index universe)")
	interval := flag.Duration("interval", time.Minute, "refresh interval")
	once := flag.Bool("once", false, "refresh once and exit")
	flag.Parse()

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

	if cfg.Alpaca.APIKey == "" || cfg.Alpaca.APISecret == "" {
		log.Fatal("Alpaca credentials not configured (alpaca.api_key / APCA_API_KEY_ID)")
	}

	watch := universe.IndexSymbols()
	if *symbolsFlag != "" {
		for _, sym := range strings.Split(*symbolsFlag, ",") {
			watch = append(watch, strings.TrimSpace(sym))
		}
	}

	fetcher := prices.NewAlpacaFetcher(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.DataURL)
	client := arena.NewClient(*serverURL, cfg.Server.AuthToken)
	refresher := prices.NewRefresher(fetcher, client, nil, watch, *interval, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *once {
		if err := refresher.RefreshOnce(ctx); err != nil {
			log.Fatalf("refresh failed: %v", err)
		}
		return
	}

	logger.Info("price refresher starting", "server", *serverURL, "interval", *interval, "symbols", len(watch))
	if err := refresher.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("refresher error: %v", err)
	}
}
