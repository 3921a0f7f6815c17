package engine

import (
	"fmt"
	"strings"

	"tradearena/internal/domain"
	"tradearena/internal/profile"
	"tradearena/internal/universe"
)

// technicalIndicators are the terms that satisfy a citation requirement.
// Matched case-insensitively as substrings of the order commentary.
var technicalIndicators = []string{
	"rsi", "macd", "sma", "ema", "bollinger", "stochastic",
	"momentum", "roc", "atr", "adx", "obv", "vwap",
	"moving average", "relative strength", "support", "resistance",
	"oversold", "overbought", "crossover", "divergence",
}

// checkConstraints evaluates an order against a bot's constraint profile.
// It returns "" when the order passes, or a human-readable rejection reason.
// All percentage thresholds use the bot's pre-trade total value as the
// denominator and reject only when strictly exceeded: an order that lands a
// bot exactly on a limit passes.
//
// Rules are evaluated in a fixed order so a multiply-offending order always
// reports the same reason.
func checkConstraints(bot *domain.Bot, prof *profile.Profile, order *domain.Order, price float64, positions []domain.Position) string {
	if prof == nil {
		return ""
	}

	tradeValue := float64(order.Shares) * price
	total := bot.TotalValue

	// Universe restriction.
	if prof.IndexOnly && !universe.InIndex(order.Symbol) {
		return fmt.Sprintf("%s not in allowed universe", order.Symbol)
	}

	// Position-size cap: post-trade position vs pre-trade total value.
	if prof.MaxPositionPct > 0 && order.Side == domain.SideBuy {
		existingValue := 0.0
		if pos := domain.FindPosition(positions, order.Symbol); pos != nil {
			existingValue = pos.MarketValue()
		}
		newPosition := existingValue + tradeValue
		if newPosition > total*prof.MaxPositionPct/100 {
			return fmt.Sprintf("position would be %.1f%% of portfolio, exceeding %.0f%% max",
				newPosition/total*100, prof.MaxPositionPct)
		}
	}

	// Cash floor: post-trade cash vs pre-trade total value.
	if prof.MinCashPct > 0 && order.Side == domain.SideBuy {
		cashAfter := bot.Cash - tradeValue
		if cashAfter < total*prof.MinCashPct/100 {
			return fmt.Sprintf("cash after trade would be %.1f%%, below %.0f%% minimum",
				cashAfter/total*100, prof.MinCashPct)
		}
	}

	// Cash ceiling: a sale may not leave the bot mostly in cash.
	if prof.MaxCashPct > 0 && order.Side == domain.SideSell {
		cashAfter := bot.Cash + tradeValue
		if cashAfter > total*prof.MaxCashPct/100 {
			return fmt.Sprintf("cash after sale would be %.1f%%, exceeding %.0f%% max - must stay invested",
				cashAfter/total*100, prof.MaxCashPct)
		}
	}

	// Instrument exclusions apply to buys; bots may always exit a holding.
	if prof.NoCrypto && order.Side == domain.SideBuy && universe.IsCryptoLinked(order.Symbol) {
		return fmt.Sprintf("%s is crypto-related - not allowed", order.Symbol)
	}
	if prof.NoLeverage && order.Side == domain.SideBuy && universe.IsLeveraged(order.Symbol) {
		return fmt.Sprintf("%s is a leveraged ETF - not allowed", order.Symbol)
	}

	// Long-equity cap: non-hedge exposure after a non-hedge buy.
	if prof.MaxLongEquityPct > 0 && order.Side == domain.SideBuy && !universe.IsHedge(order.Symbol) {
		longEquity := 0.0
		for _, pos := range positions {
			if !universe.IsHedge(pos.Symbol) {
				longEquity += pos.MarketValue()
			}
		}
		newLong := longEquity + tradeValue
		if newLong > total*prof.MaxLongEquityPct/100 {
			return fmt.Sprintf("long equity would be %.1f%%, exceeding %.0f%% max",
				newLong/total*100, prof.MaxLongEquityPct)
		}
	}

	// Hedge retention: selling a hedge may not leave the bot unhedged.
	if prof.RequiresHedge && order.Side == domain.SideSell && universe.IsHedge(order.Symbol) {
		if !hedgeRemains(positions, order) {
			return "must maintain at least one hedge position"
		}
	}

	// Citation requirement: commentary must name a technical indicator.
	if prof.RequiresTechnicalCitation && !CitesTechnicalIndicator(order.Commentary) {
		return "commentary must cite a technical indicator"
	}

	return ""
}

// hedgeRemains reports whether at least one hedge position survives the sale.
func hedgeRemains(positions []domain.Position, order *domain.Order) bool {
	for _, pos := range positions {
		if !universe.IsHedge(pos.Symbol) {
			continue
		}
		if pos.Symbol == order.Symbol {
			if pos.Shares > order.Shares {
				return true
			}
			continue
		}
		return true
	}
	return false
}

// CitesTechnicalIndicator reports whether the commentary names at least one
// recognized technical indicator.
func CitesTechnicalIndicator(commentary string) bool {
	if commentary == "" {
		return false
	}
	lower := strings.ToLower(commentary)
	for _, ind := range technicalIndicators {
		if strings.Contains(lower, ind) {
			return true
		}
	}
	return false
}
