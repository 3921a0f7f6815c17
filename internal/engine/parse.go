package engine

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"tradearena/internal/domain"
)

// tradePattern matches order lines in bot output, e.g.:
//
//	TRADE: BUY 50 NVDA @ 142.30
//
// The price field is part of the format agents emit but carries no weight:
// execution prices are resolved by the engine, never taken from the agent.
var tradePattern = regexp.MustCompile(`(?i)TRADE:\s*(BUY|SELL)\s+(\d+)\s+([A-Z.]{1,6})\s+@\s+(\d+(?:\.\d+)?)`)

// ParsedOrder is one order line lifted from bot output.
type ParsedOrder struct {
	Side        domain.OrderSide
	Shares      int64
	Symbol      string
	StatedPrice float64 // what the agent wrote; informational only
}

// ParseOrders extracts order lines from raw bot output. Lines that do not
// match the format are ignored; malformed values never produce an order.
func ParseOrders(output string) []ParsedOrder {
	var orders []ParsedOrder
	for _, m := range tradePattern.FindAllStringSubmatch(output, -1) {
		shares, err := strconv.ParseInt(m[2], 10, 64)
		if err != nil || shares <= 0 {
			continue
		}
		price, err := strconv.ParseFloat(m[4], 64)
		if err != nil || price <= 0 {
			continue
		}
		orders = append(orders, ParsedOrder{
			Side:        domain.OrderSide(strings.ToUpper(m[1])),
			Shares:      shares,
			Symbol:      strings.ToUpper(m[3]),
			StatedPrice: price,
		})
	}
	return orders
}

// maxCommentaryLen bounds stored commentary.
const maxCommentaryLen = 500

// ExtractCommentary returns the non-order text of bot output, joined into a
// single line and truncated. Returns "" when the output is orders only.
func ExtractCommentary(output string) string {
	var kept []string
	for _, line := range strings.Split(output, "\n") {
		if tradePattern.MatchString(line) {
			continue
		}
		if s := strings.TrimSpace(line); s != "" {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		return ""
	}
	commentary := strings.Join(kept, " ")
	if len(commentary) > maxCommentaryLen {
		cut := maxCommentaryLen - 3
		// Never split a multi-byte rune.
		for cut > 0 && !utf8.RuneStart(commentary[cut]) {
			cut--
		}
		commentary = commentary[:cut] + "..."
	}
	return commentary
}
