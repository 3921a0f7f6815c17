package engine

import (
	"tradearena/internal/domain"
)

// settlement is the computed effect of an accepted order, before persistence.
type settlement struct {
	NewCash       float64
	NewTotalValue float64
	Position      *domain.Position // resulting position, nil when closed
	ClosedSymbol  string           // symbol whose position was closed, if any
}

// settle applies an order to a bot's cash and positions. The caller has
// already verified affordability and constraints; settle never fails.
//
// Buys merge into any existing position at the weighted-average cost of all
// shares. Sells reduce shares without touching average cost; a sale of the
// entire holding closes the position. Total value is always recomputed in
// full from post-trade cash and positions rather than adjusted
// incrementally.
func settle(bot *domain.Bot, positions []domain.Position, order *domain.Order, price float64) settlement {
	tradeValue := float64(order.Shares) * price
	var out settlement

	pos := domain.FindPosition(positions, order.Symbol)

	switch order.Side {
	case domain.SideBuy:
		out.NewCash = bot.Cash - tradeValue
		if pos == nil {
			positions = append(positions, domain.Position{
				BotID:     bot.ID,
				Symbol:    order.Symbol,
				Shares:    order.Shares,
				AvgCost:   price,
				LastPrice: price,
			})
			pos = &positions[len(positions)-1]
		} else {
			newShares := pos.Shares + order.Shares
			pos.AvgCost = (pos.CostBasis() + tradeValue) / float64(newShares)
			pos.Shares = newShares
			pos.LastPrice = price
		}
		p := *pos
		out.Position = &p

	case domain.SideSell:
		out.NewCash = bot.Cash + tradeValue
		pos.Shares -= order.Shares
		pos.LastPrice = price
		if pos.Shares <= 0 {
			out.ClosedSymbol = order.Symbol
			positions = removePosition(positions, order.Symbol)
		} else {
			p := *pos
			out.Position = &p
		}
	}

	out.NewTotalValue = out.NewCash + domain.PositionsValue(positions)
	return out
}

func removePosition(positions []domain.Position, symbol string) []domain.Position {
	out := positions[:0]
	for _, p := range positions {
		if p.Symbol != symbol {
			out = append(out, p)
		}
	}
	return out
}
