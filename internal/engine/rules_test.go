package engine

import (
	"testing"

	"tradearena/internal/domain"
	"tradearena/internal/profile"
)

func buyOrder(symbol string, shares int64) *domain.Order {
	return &domain.Order{Side: domain.SideBuy, Symbol: symbol, Shares: shares}
}

func sellOrder(symbol string, shares int64) *domain.Order {
	return &domain.Order{Side: domain.SideSell, Symbol: symbol, Shares: shares}
}

func TestNoProfileIsUnconstrained(t *testing.T) {
	bot := &domain.Bot{ID: "gary", Cash: 100000, TotalValue: 100000}
	if reason := checkConstraints(bot, nil, buyOrder("TQQQ", 1000), 50, nil); reason != "" {
		t.Errorf("unconstrained bot rejected: %q", reason)
	}
}

func TestUniverseRestriction(t *testing.T) {
	prof := &profile.Profile{IndexOnly: true}
	bot := &domain.Bot{ID: "turtle", Cash: 100000, TotalValue: 100000}

	if reason := checkConstraints(bot, prof, buyOrder("AAPL", 10), 100, nil); reason != "" {
		t.Errorf("AAPL should be allowed: %q", reason)
	}
	reason := checkConstraints(bot, prof, buyOrder("ZZZZ", 10), 100, nil)
	if reason != "ZZZZ not in allowed universe" {
		t.Errorf("reason = %q", reason)
	}
}

func TestPositionSizeCap(t *testing.T) {
	prof := &profile.Profile{MaxPositionPct: 5}
	bot := &domain.Bot{ID: "turtle", Cash: 100000, TotalValue: 100000}

	// Exactly at the cap: 10000 shares at $0.50 is $5,000 of a $100,000 book.
	if reason := checkConstraints(bot, prof, buyOrder("AAPL", 10000), 0.5, nil); reason != "" {
		t.Errorf("boundary buy rejected: %q", reason)
	}

	// One more share crosses it.
	if reason := checkConstraints(bot, prof, buyOrder("AAPL", 10001), 0.5, nil); reason == "" {
		t.Error("over-cap buy accepted")
	}

	// Existing position counts toward the cap.
	positions := []domain.Position{{BotID: "turtle", Symbol: "AAPL", Shares: 100, AvgCost: 30, LastPrice: 30}}
	reason := checkConstraints(bot, prof, buyOrder("AAPL", 5000), 0.5, positions)
	if reason != "position would be 5.5% of portfolio, exceeding 5% max" {
		t.Errorf("reason = %q", reason)
	}

	// Sells are not capped.
	if reason := checkConstraints(bot, prof, sellOrder("AAPL", 100), 30, positions); reason != "" {
		t.Errorf("sell rejected by position cap: %q", reason)
	}
}

func TestMinCashFloor(t *testing.T) {
	prof := &profile.Profile{MinCashPct: 30}
	bot := &domain.Bot{ID: "turtle", Cash: 40000, TotalValue: 100000}

	// Landing exactly on the floor passes: 40000 - 10000 = 30000 = 30%.
	if reason := checkConstraints(bot, prof, buyOrder("AAPL", 10000), 1, nil); reason != "" {
		t.Errorf("boundary buy rejected: %q", reason)
	}

	reason := checkConstraints(bot, prof, buyOrder("AAPL", 11000), 1, nil)
	if reason != "cash after trade would be 29.0%, below 30% minimum" {
		t.Errorf("reason = %q", reason)
	}
}

func TestMaxCashCeiling(t *testing.T) {
	prof := &profile.Profile{MaxCashPct: 20}
	bot := &domain.Bot{ID: "degen", Cash: 10000, TotalValue: 100000}
	positions := []domain.Position{{BotID: "degen", Symbol: "TQQQ", Shares: 30000, AvgCost: 3, LastPrice: 3}}

	// Exactly at the ceiling: 10000 + 10000 = 20000 = 20%.
	if reason := checkConstraints(bot, prof, sellOrder("TQQQ", 10000), 1, positions); reason != "" {
		t.Errorf("boundary sell rejected: %q", reason)
	}

	reason := checkConstraints(bot, prof, sellOrder("TQQQ", 15000), 1, positions)
	if reason != "cash after sale would be 25.0%, exceeding 20% max - must stay invested" {
		t.Errorf("reason = %q", reason)
	}

	// Buys are never blocked by the ceiling.
	if reason := checkConstraints(bot, prof, buyOrder("TQQQ", 100), 3, positions); reason != "" {
		t.Errorf("buy rejected by cash ceiling: %q", reason)
	}
}

func TestInstrumentExclusions(t *testing.T) {
	prof := &profile.Profile{NoCrypto: true, NoLeverage: true}
	bot := &domain.Bot{ID: "boomer", Cash: 100000, TotalValue: 100000}

	reason := checkConstraints(bot, prof, buyOrder("COIN", 10), 200, nil)
	if reason != "COIN is crypto-related - not allowed" {
		t.Errorf("crypto reason = %q", reason)
	}

	reason = checkConstraints(bot, prof, buyOrder("TQQQ", 10), 45, nil)
	if reason != "TQQQ is a leveraged ETF - not allowed" {
		t.Errorf("leverage reason = %q", reason)
	}

	// Exits from excluded instruments are always allowed.
	positions := []domain.Position{{BotID: "boomer", Symbol: "COIN", Shares: 10, AvgCost: 200}}
	if reason := checkConstraints(bot, prof, sellOrder("COIN", 10), 200, positions); reason != "" {
		t.Errorf("sell of crypto holding rejected: %q", reason)
	}

	if reason := checkConstraints(bot, prof, buyOrder("KO", 100), 60, nil); reason != "" {
		t.Errorf("plain equity rejected: %q", reason)
	}
}

func TestLongEquityCap(t *testing.T) {
	prof := &profile.Profile{MaxLongEquityPct: 30}
	bot := &domain.Bot{ID: "doomer", Cash: 70000, TotalValue: 100000}
	positions := []domain.Position{
		{BotID: "doomer", Symbol: "AAPL", Shares: 200, AvgCost: 100, LastPrice: 100}, // 20000 long
		{BotID: "doomer", Symbol: "SQQQ", Shares: 1000, AvgCost: 10, LastPrice: 10},  // hedge, ignored
	}

	// Exactly at the cap: 20000 + 10000 = 30000 = 30%.
	if reason := checkConstraints(bot, prof, buyOrder("MSFT", 10000), 1, positions); reason != "" {
		t.Errorf("boundary buy rejected: %q", reason)
	}

	reason := checkConstraints(bot, prof, buyOrder("MSFT", 15000), 1, positions)
	if reason != "long equity would be 35.0%, exceeding 30% max" {
		t.Errorf("reason = %q", reason)
	}

	// Hedge buys are exempt.
	if reason := checkConstraints(bot, prof, buyOrder("UVXY", 1000), 20, positions); reason != "" {
		t.Errorf("hedge buy rejected by long-equity cap: %q", reason)
	}
}

func TestHedgeRetention(t *testing.T) {
	prof := &profile.Profile{RequiresHedge: true}
	bot := &domain.Bot{ID: "doomer", Cash: 50000, TotalValue: 100000}

	oneHedge := []domain.Position{
		{BotID: "doomer", Symbol: "SQQQ", Shares: 100, AvgCost: 10, LastPrice: 10},
	}

	// Selling the entire only hedge is refused.
	reason := checkConstraints(bot, prof, sellOrder("SQQQ", 100), 10, oneHedge)
	if reason != "must maintain at least one hedge position" {
		t.Errorf("reason = %q", reason)
	}

	// A partial sale keeps the hedge alive.
	if reason := checkConstraints(bot, prof, sellOrder("SQQQ", 50), 10, oneHedge); reason != "" {
		t.Errorf("partial hedge sale rejected: %q", reason)
	}

	// With a second hedge, closing one out entirely is fine.
	twoHedges := append(oneHedge, domain.Position{BotID: "doomer", Symbol: "GLD", Shares: 10, AvgCost: 180, LastPrice: 180})
	if reason := checkConstraints(bot, prof, sellOrder("SQQQ", 100), 10, twoHedges); reason != "" {
		t.Errorf("sale with backup hedge rejected: %q", reason)
	}

	// Selling a non-hedge is not this rule's business.
	mixed := append(oneHedge, domain.Position{BotID: "doomer", Symbol: "AAPL", Shares: 10, AvgCost: 100, LastPrice: 100})
	if reason := checkConstraints(bot, prof, sellOrder("AAPL", 10), 100, mixed); reason != "" {
		t.Errorf("non-hedge sale rejected: %q", reason)
	}
}

func TestTechnicalCitation(t *testing.T) {
	prof := &profile.Profile{RequiresTechnicalCitation: true}
	bot := &domain.Bot{ID: "quant", Cash: 100000, TotalValue: 100000}

	order := buyOrder("NVDA", 10)
	order.Commentary = "RSI at 28, heavily oversold"
	if reason := checkConstraints(bot, prof, order, 140, nil); reason != "" {
		t.Errorf("cited order rejected: %q", reason)
	}

	order.Commentary = "just vibes"
	reason := checkConstraints(bot, prof, order, 140, nil)
	if reason != "commentary must cite a technical indicator" {
		t.Errorf("reason = %q", reason)
	}

	order.Commentary = ""
	if reason := checkConstraints(bot, prof, order, 140, nil); reason == "" {
		t.Error("empty commentary accepted")
	}
}

func TestCitesTechnicalIndicator(t *testing.T) {
	for _, good := range []string{
		"MACD crossover confirmed",
		"price broke resistance at 450",
		"20-day moving average trending up",
		"VWAP reclaim",
	} {
		if !CitesTechnicalIndicator(good) {
			t.Errorf("CitesTechnicalIndicator(%q) = false", good)
		}
	}
	for _, bad := range []string{"", "I like the company", "to the moon"} {
		if CitesTechnicalIndicator(bad) {
			t.Errorf("CitesTechnicalIndicator(%q) = true", bad)
		}
	}
}

// A multiply-offending order must always report the first rule in evaluation
// order, so rejections are reproducible.
func TestRuleOrderIsFixed(t *testing.T) {
	prof := &profile.Profile{IndexOnly: true, MaxPositionPct: 5, MinCashPct: 30}
	bot := &domain.Bot{ID: "turtle", Cash: 100000, TotalValue: 100000}

	// Out of universe AND over the position cap AND under the cash floor.
	reason := checkConstraints(bot, prof, buyOrder("ZZZZ", 90000), 1, nil)
	if reason != "ZZZZ not in allowed universe" {
		t.Errorf("reason = %q, want the universe message first", reason)
	}
}
