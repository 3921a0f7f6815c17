// Package prices refreshes last-known prices from the Alpaca market-data
// API. It is the out-of-band price source: the order path never calls out
// to Alpaca, it only reads whatever the refresher (or a manual price push)
// has written.
package prices

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"tradearena/internal/store"
	"tradearena/internal/util"
)

// ---------------------------------------------------------------------------
// Interfaces
// ---------------------------------------------------------------------------

// Fetcher returns the latest trade price per symbol. Symbols with no trade
// data are simply absent from the result.
type Fetcher interface {
	LatestPrices(ctx context.Context, symbols []string) (map[string]float64, error)
}

// Sink receives a batch of refreshed prices.
type Sink interface {
	PushPrices(ctx context.Context, prices map[string]float64) error
}

// SymbolSource lists the symbols currently held by any bot.
type SymbolSource interface {
	ListHeldSymbols(ctx context.Context) ([]string, error)
}

var _ Fetcher = (*AlpacaFetcher)(nil)
var _ Sink = StoreSink{}

// ---------------------------------------------------------------------------
// AlpacaFetcher
// ---------------------------------------------------------------------------

// AlpacaFetcher fetches latest trades from the Alpaca market-data API.
type AlpacaFetcher struct {
	client *marketdata.Client
}

// NewAlpacaFetcher creates an AlpacaFetcher with the given credentials.
// dataURL may be empty to use the SDK default.
func NewAlpacaFetcher(apiKey, apiSecret, dataURL string) *AlpacaFetcher {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}
	return &AlpacaFetcher{client: marketdata.NewClient(opts)}
}

// LatestPrices returns the latest trade price for each symbol that has one.
func (f *AlpacaFetcher) LatestPrices(ctx context.Context, symbols []string) (map[string]float64, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	trades, err := f.client.GetLatestTrades(symbols, marketdata.GetLatestTradeRequest{
		Feed: "iex",
	})
	if err != nil {
		return nil, fmt.Errorf("GetLatestTrades: %w", err)
	}

	prices := make(map[string]float64, len(trades))
	for symbol, trade := range trades {
		if trade.Price > 0 {
			prices[strings.ToUpper(symbol)] = trade.Price
		}
	}
	return prices, nil
}

// ---------------------------------------------------------------------------
// StoreSink
// ---------------------------------------------------------------------------

// Broadcaster publishes feed events to connected viewers.
type Broadcaster interface {
	Publish(eventType string, data any)
}

// StoreSink writes refreshed prices straight into the arena store, updating
// held positions and recomputing bot valuations, then notifies the feed.
type StoreSink struct {
	Store store.PriceStore
	Feed  Broadcaster // optional
}

// PushPrices forwards the batch to the store and broadcasts it.
func (s StoreSink) PushPrices(ctx context.Context, prices map[string]float64) error {
	if err := s.Store.UpdateLastPrices(ctx, prices); err != nil {
		return err
	}
	if s.Feed != nil {
		s.Feed.Publish("prices", prices)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Refresher
// ---------------------------------------------------------------------------

// Refresher periodically fetches latest prices for all held symbols plus a
// static watch list and pushes them to a sink.
type Refresher struct {
	fetch    Fetcher
	sink     Sink
	held     SymbolSource // optional; nil when running out of process
	watch    []string
	interval time.Duration
	limiter  *util.RateLimiter
	backoff  time.Duration
	log      *slog.Logger
}

// NewRefresher creates a Refresher. held may be nil; watch may be empty.
// The Alpaca free tier allows 200 requests per minute, the limiter stays
// well under that.
func NewRefresher(fetch Fetcher, sink Sink, held SymbolSource, watch []string, interval time.Duration, log *slog.Logger) *Refresher {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Refresher{
		fetch:    fetch,
		sink:     sink,
		held:     held,
		watch:    watch,
		interval: interval,
		limiter:  util.NewRateLimiter(60),
		backoff:  time.Second,
		log:      log.With("component", "prices"),
	}
}

// Run refreshes immediately, then on every interval tick until ctx is
// cancelled. Individual refresh failures are logged and retried on the next
// tick.
func (r *Refresher) Run(ctx context.Context) error {
	if err := r.RefreshOnce(ctx); err != nil && ctx.Err() == nil {
		r.log.Error("refresh failed", "err", err)
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.RefreshOnce(ctx); err != nil && ctx.Err() == nil {
				r.log.Error("refresh failed", "err", err)
			}
		}
	}
}

// RefreshOnce fetches and pushes one batch of prices. It is a no-op when
// there is nothing to refresh.
func (r *Refresher) RefreshOnce(ctx context.Context) error {
	symbols, err := r.symbols(ctx)
	if err != nil {
		return fmt.Errorf("listing symbols: %w", err)
	}
	if len(symbols) == 0 {
		return nil
	}

	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}

	var prices map[string]float64
	err = util.Retry(ctx, 3, r.backoff, func() error {
		var ferr error
		prices, ferr = r.fetch.LatestPrices(ctx, symbols)
		return ferr
	})
	if err != nil {
		return fmt.Errorf("fetching prices: %w", err)
	}
	if len(prices) == 0 {
		r.log.Warn("no prices returned", "symbols", len(symbols))
		return nil
	}

	if err := r.sink.PushPrices(ctx, prices); err != nil {
		return fmt.Errorf("pushing prices: %w", err)
	}

	r.log.Info("prices refreshed", "requested", len(symbols), "updated", len(prices))
	return nil
}

// symbols merges the static watch list with currently held symbols,
// deduplicated and sorted.
func (r *Refresher) symbols(ctx context.Context) ([]string, error) {
	set := make(map[string]struct{}, len(r.watch))
	for _, sym := range r.watch {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym != "" {
			set[sym] = struct{}{}
		}
	}

	if r.held != nil {
		held, err := r.held.ListHeldSymbols(ctx)
		if err != nil {
			return nil, err
		}
		for _, sym := range held {
			set[strings.ToUpper(sym)] = struct{}{}
		}
	}

	symbols := make([]string, 0, len(set))
	for sym := range set {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	return symbols, nil
}
