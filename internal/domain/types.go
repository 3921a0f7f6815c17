// Package domain defines the core types of the trading arena: bots, their
// positions, orders, executed trades, and the shared game record.
package domain

import "time"

// OrderSide is the direction of an order.
type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

// Valid reports whether the side is one of the two recognised values.
func (s OrderSide) Valid() bool {
	return s == SideBuy || s == SideSell
}

// BotKind is a bot's class tag. Baseline archetypes carry a constraint
// profile; free agents trade without one.
type BotKind string

const (
	KindTurtle    BotKind = "turtle"
	KindDegen     BotKind = "degen"
	KindBoomer    BotKind = "boomer"
	KindQuant     BotKind = "quant"
	KindDoomer    BotKind = "doomer"
	KindFreeAgent BotKind = "free_agent"
)

// GameStatus is the lifecycle state of the competition.
type GameStatus string

const (
	StatusRunning GameStatus = "running"
	StatusPaused  GameStatus = "paused"
)

// Game is the single shared competition record: status, round counter, and
// the cash every bot started with (used for return calculations).
type Game struct {
	Status       GameStatus `json:"status"`
	StartingCash float64    `json:"starting_cash"`
	CurrentRound int        `json:"current_round"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Bot is a participant with its own cash and position ledger. TotalValue is
// a derived quantity: cash plus the market value of all open positions,
// recomputed in full on every settlement and on bulk price updates, never
// incrementally adjusted.
type Bot struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Kind           BotKind   `json:"kind"`
	Cash           float64   `json:"cash"`
	TotalValue     float64   `json:"total_value"`
	LastCommentary string    `json:"last_commentary,omitempty"`
	Enabled        bool      `json:"enabled"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Position is a bot's holding in a single symbol. A bot holds at most one
// position per symbol; a position with zero shares does not exist. AvgCost
// is the weighted-average cost across all buys and is never changed by a
// sell. LastPrice is the last price observed for the symbol, used for
// valuation until something fresher arrives.
type Position struct {
	BotID     string  `json:"bot_id"`
	Symbol    string  `json:"symbol"`
	Shares    int64   `json:"shares"`
	AvgCost   float64 `json:"avg_cost"`
	LastPrice float64 `json:"last_price,omitempty"`
}

// MarketValue values the position at its last-known price, falling back to
// average cost when no price has been observed yet.
func (p Position) MarketValue() float64 {
	price := p.LastPrice
	if price == 0 {
		price = p.AvgCost
	}
	return float64(p.Shares) * price
}

// CostBasis is the total amount paid for the currently held shares.
func (p Position) CostBasis() float64 {
	return float64(p.Shares) * p.AvgCost
}

// UnrealizedPnL is the gain or loss versus cost basis at the last-known
// price. Zero when no price has been observed.
func (p Position) UnrealizedPnL() float64 {
	if p.LastPrice == 0 {
		return 0
	}
	return p.MarketValue() - p.CostBasis()
}

// Order is a bot's proposed trade. Orders are ephemeral: an accepted order
// becomes a Trade, a rejected one becomes a RejectedTrade. They are never
// stored as-is.
type Order struct {
	Side       OrderSide `json:"side"`
	Symbol     string    `json:"symbol"`
	Shares     int64     `json:"shares"`
	Commentary string    `json:"commentary,omitempty"`
}

// Trade is an immutable record of a settled order, tagged with the round it
// occurred in.
type Trade struct {
	ID         int64     `json:"id"`
	BotID      string    `json:"bot_id"`
	Symbol     string    `json:"symbol"`
	Side       OrderSide `json:"side"`
	Shares     int64     `json:"shares"`
	Price      float64   `json:"price"`
	Commentary string    `json:"commentary,omitempty"`
	Round      int       `json:"round"`
	ExecutedAt time.Time `json:"executed_at"`
}

// Value is the trade's notional value (shares times execution price).
func (t Trade) Value() float64 {
	return float64(t.Shares) * t.Price
}

// RejectedTrade records an order that failed validation, with the reason
// shown to the submitting agent. Rejections are first-class events in the
// arena: viewers see why a trade was refused.
type RejectedTrade struct {
	ID         int64     `json:"id"`
	BotID      string    `json:"bot_id"`
	Symbol     string    `json:"symbol"`
	Side       OrderSide `json:"side"`
	Shares     int64     `json:"shares"`
	Reason     string    `json:"reason"`
	Round      int       `json:"round"`
	RejectedAt time.Time `json:"rejected_at"`
}

// FindPosition returns the position for symbol, or nil if the bot does not
// hold it.
func FindPosition(positions []Position, symbol string) *Position {
	for i := range positions {
		if positions[i].Symbol == symbol {
			return &positions[i]
		}
	}
	return nil
}

// PositionsValue sums the market value of all positions.
func PositionsValue(positions []Position) float64 {
	var total float64
	for _, p := range positions {
		total += p.MarketValue()
	}
	return total
}
