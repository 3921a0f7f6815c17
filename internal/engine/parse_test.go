package engine

import (
	"strings"
	"testing"
	"unicode/utf8"

	"tradearena/internal/domain"
)

func TestParseOrders(t *testing.T) {
	output := `Market looks frothy but NVDA momentum is strong.
TRADE: BUY 50 NVDA @ 142.30
TRADE: SELL 10 AAPL @ 230.50
Keeping some powder dry.`

	orders := ParseOrders(output)
	if len(orders) != 2 {
		t.Fatalf("parsed %d orders, want 2", len(orders))
	}

	if orders[0].Side != domain.SideBuy || orders[0].Shares != 50 ||
		orders[0].Symbol != "NVDA" || orders[0].StatedPrice != 142.30 {
		t.Errorf("order 0 = %+v", orders[0])
	}
	if orders[1].Side != domain.SideSell || orders[1].Shares != 10 || orders[1].Symbol != "AAPL" {
		t.Errorf("order 1 = %+v", orders[1])
	}
}

func TestParseOrdersCaseAndSpacing(t *testing.T) {
	orders := ParseOrders("trade: buy 5 spy @ 500")
	if len(orders) != 1 {
		t.Fatalf("parsed %d orders, want 1", len(orders))
	}
	if orders[0].Side != domain.SideBuy || orders[0].Symbol != "SPY" {
		t.Errorf("order = %+v", orders[0])
	}
}

func TestParseOrdersIgnoresMalformed(t *testing.T) {
	for _, bad := range []string{
		"BUY 50 NVDA @ 142.30",       // missing TRADE: prefix
		"TRADE: HOLD 50 NVDA @ 142",  // invalid side
		"TRADE: BUY NVDA @ 142.30",   // missing shares
		"TRADE: BUY 50 NVDA",         // missing price
		"thinking about buying NVDA", // prose
	} {
		if got := ParseOrders(bad); len(got) != 0 {
			t.Errorf("ParseOrders(%q) = %+v, want none", bad, got)
		}
	}
}

func TestExtractCommentary(t *testing.T) {
	output := `Tech is overextended here.
TRADE: SELL 20 QQQ @ 480.25
Rotating into defensives.`

	got := ExtractCommentary(output)
	want := "Tech is overextended here. Rotating into defensives."
	if got != want {
		t.Errorf("ExtractCommentary = %q, want %q", got, want)
	}

	if got := ExtractCommentary("TRADE: BUY 1 SPY @ 500"); got != "" {
		t.Errorf("orders-only output should yield no commentary, got %q", got)
	}
}

func TestExtractCommentaryTruncates(t *testing.T) {
	long := strings.Repeat("a", 600)
	got := ExtractCommentary(long)
	if len(got) != maxCommentaryLen {
		t.Errorf("len = %d, want %d", len(got), maxCommentaryLen)
	}
	if !strings.HasSuffix(got, "...") {
		t.Error("truncated commentary should end with ellipsis")
	}
}

func TestExtractCommentaryTruncatesOnRuneBoundary(t *testing.T) {
	// 300 two-byte runes put the cut point mid-rune at byte 497.
	long := strings.Repeat("é", 300)
	got := ExtractCommentary(long)
	if !utf8.ValidString(got) {
		t.Fatalf("truncated commentary is not valid UTF-8: %q", got)
	}
	if len(got) > maxCommentaryLen {
		t.Errorf("len = %d, want at most %d", len(got), maxCommentaryLen)
	}
	if !strings.HasSuffix(got, "...") {
		t.Error("truncated commentary should end with ellipsis")
	}
}
