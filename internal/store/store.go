// Package store defines storage interfaces for persisting and retrieving
// arena state: the game record, bots, positions, trades, and rejections.
package store

import (
	"context"
	"errors"

	"tradearena/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// SettlementUpdate is the full effect of one accepted order, applied
// atomically: the bot's new cash and total value, the resulting position
// (nil when untouched), any position closed by the trade, and the trade
// record itself.
type SettlementUpdate struct {
	Bot          *domain.Bot
	Position     *domain.Position // upserted when non-nil
	ClosedSymbol string           // deleted when non-empty
	Trade        *domain.Trade
}

// GameStore persists the single shared game record.
type GameStore interface {
	// InitGame creates the game row if it does not exist yet.
	InitGame(ctx context.Context, startingCash float64) error

	// GetGame retrieves the game record.
	GetGame(ctx context.Context) (*domain.Game, error)

	// SetStatus updates the game lifecycle status.
	SetStatus(ctx context.Context, status domain.GameStatus) error

	// IncrementRound bumps the round counter and returns the new round.
	IncrementRound(ctx context.Context) (int, error)
}

// BotStore persists and retrieves bot records.
type BotStore interface {
	// CreateBot inserts a new bot.
	CreateBot(ctx context.Context, bot *domain.Bot) error

	// GetBot retrieves a single bot by its ID.
	GetBot(ctx context.Context, id string) (*domain.Bot, error)

	// ListBots returns all bots ordered by total value descending.
	ListBots(ctx context.Context) ([]domain.Bot, error)

	// UpdateCommentary stores a bot's latest commentary.
	UpdateCommentary(ctx context.Context, botID, commentary string) error
}

// PositionStore persists and retrieves position records.
type PositionStore interface {
	// GetPositions returns all positions held by a bot.
	GetPositions(ctx context.Context, botID string) ([]domain.Position, error)

	// ListHeldSymbols returns the distinct symbols held across all bots.
	ListHeldSymbols(ctx context.Context) ([]string, error)
}

// PriceStore tracks last-known prices supplied from outside the order path.
// This is how a symbol nobody holds and nobody has traded becomes priceable.
type PriceStore interface {
	// UpdateLastPrices records last-known prices, updates any open positions
	// in those symbols, and recomputes the total value of every bot holding
	// them.
	UpdateLastPrices(ctx context.Context, prices map[string]float64) error

	// GetPrice returns the recorded last-known price for a symbol, or
	// ErrNotFound when none was ever supplied.
	GetPrice(ctx context.Context, symbol string) (float64, error)
}

// TradeStore persists and retrieves executed and rejected trades.
type TradeStore interface {
	// ApplySettlement persists the effect of an accepted order in a single
	// transaction.
	ApplySettlement(ctx context.Context, upd *SettlementUpdate) error

	// LastTradePrice returns the price of the most recent trade in a symbol
	// across all bots, or ErrNotFound when the symbol has never traded.
	LastTradePrice(ctx context.Context, symbol string) (float64, error)

	// ListTrades returns recent trades, newest first, optionally filtered by
	// bot, up to limit.
	ListTrades(ctx context.Context, botID string, limit int) ([]domain.Trade, error)

	// TradesForRound returns all trades executed in the given round.
	TradesForRound(ctx context.Context, round int) ([]domain.Trade, error)

	// SaveRejectedTrade records a rejected order.
	SaveRejectedTrade(ctx context.Context, rt *domain.RejectedTrade) error

	// ListRejectedTrades returns recent rejections, newest first, up to limit.
	ListRejectedTrades(ctx context.Context, limit int) ([]domain.RejectedTrade, error)
}

// Store is the composite storage interface the engine and HTTP layer use.
type Store interface {
	GameStore
	BotStore
	PositionStore
	PriceStore
	TradeStore
}
