package prices

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

type fakeFetcher struct {
	prices   map[string]float64
	err      error
	requests [][]string
}

func (f *fakeFetcher) LatestPrices(_ context.Context, symbols []string) (map[string]float64, error) {
	f.requests = append(f.requests, symbols)
	return f.prices, f.err
}

type fakeSink struct {
	pushed []map[string]float64
	err    error
}

func (s *fakeSink) PushPrices(_ context.Context, prices map[string]float64) error {
	s.pushed = append(s.pushed, prices)
	return s.err
}

type fakeSource struct {
	symbols []string
	err     error
}

func (s *fakeSource) ListHeldSymbols(context.Context) ([]string, error) {
	return s.symbols, s.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRefreshOnce(t *testing.T) {
	fetch := &fakeFetcher{prices: map[string]float64{"NVDA": 140, "SPY": 500.5}}
	sink := &fakeSink{}
	held := &fakeSource{symbols: []string{"NVDA", "spy"}}

	r := NewRefresher(fetch, sink, held, []string{"SPY", "QQQ"}, time.Minute, testLogger())
	if err := r.RefreshOnce(context.Background()); err != nil {
		t.Fatalf("RefreshOnce: %v", err)
	}

	if len(fetch.requests) != 1 {
		t.Fatalf("fetch called %d times, want 1", len(fetch.requests))
	}
	// Watch list plus held symbols, deduplicated and sorted.
	want := []string{"NVDA", "QQQ", "SPY"}
	got := fetch.requests[0]
	if len(got) != len(want) {
		t.Fatalf("requested symbols = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("symbol[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if len(sink.pushed) != 1 || sink.pushed[0]["NVDA"] != 140 {
		t.Errorf("pushed = %v", sink.pushed)
	}
}

func TestRefreshOnceNoSymbols(t *testing.T) {
	fetch := &fakeFetcher{}
	sink := &fakeSink{}

	r := NewRefresher(fetch, sink, nil, nil, time.Minute, testLogger())
	if err := r.RefreshOnce(context.Background()); err != nil {
		t.Fatalf("RefreshOnce: %v", err)
	}
	if len(fetch.requests) != 0 || len(sink.pushed) != 0 {
		t.Errorf("expected no activity, got fetch=%d push=%d", len(fetch.requests), len(sink.pushed))
	}
}

func TestRefreshOnceEmptyResultSkipsPush(t *testing.T) {
	fetch := &fakeFetcher{prices: map[string]float64{}}
	sink := &fakeSink{}

	r := NewRefresher(fetch, sink, nil, []string{"SPY"}, time.Minute, testLogger())
	if err := r.RefreshOnce(context.Background()); err != nil {
		t.Fatalf("RefreshOnce: %v", err)
	}
	if len(sink.pushed) != 0 {
		t.Errorf("pushed empty batch: %v", sink.pushed)
	}
}

func TestRefreshOnceFetchError(t *testing.T) {
	fetch := &fakeFetcher{err: errors.New("api down")}
	sink := &fakeSink{}

	r := NewRefresher(fetch, sink, nil, []string{"SPY"}, time.Minute, testLogger())
	r.backoff = 0

	err := r.RefreshOnce(context.Background())
	if err == nil {
		t.Fatal("expected error when fetch fails")
	}
	if len(sink.pushed) != 0 {
		t.Errorf("pushed despite fetch error: %v", sink.pushed)
	}
}
