// Package engine validates and settles bot orders: it resolves execution
// prices, enforces per-class constraint profiles, and applies accepted
// trades to bot state atomically.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tradearena/internal/domain"
	"tradearena/internal/profile"
	"tradearena/internal/store"
)

// RejectCode classifies why an order was refused.
type RejectCode string

const (
	RejectBadRequest         RejectCode = "bad_request"
	RejectNotFound           RejectCode = "not_found"
	RejectNoPriceData        RejectCode = "no_price_data"
	RejectInsufficientCash   RejectCode = "insufficient_cash"
	RejectInsufficientShares RejectCode = "insufficient_shares"
	RejectConstraint         RejectCode = "constraint"
)

// Outcome is the result of submitting an order. A rejection is a normal
// outcome, not an error: errors from SubmitOrder mean the engine itself
// failed (storage unavailable, context canceled).
type Outcome struct {
	Accepted bool          `json:"accepted"`
	Trade    *domain.Trade `json:"trade,omitempty"`
	Code     RejectCode    `json:"code,omitempty"`
	Reason   string        `json:"reason,omitempty"`
}

// Sink receives engine events for broadcast. Publishes are fire-and-forget;
// a sink must never block the caller.
type Sink interface {
	Publish(eventType string, data any)
}

// nopSink drops all events.
type nopSink struct{}

func (nopSink) Publish(string, any) {}

// Engine orchestrates order submission end to end. One instance serves all
// bots; per-bot mutexes serialize the read-validate-settle-persist cycle so
// two orders for the same bot can never interleave.
type Engine struct {
	store    store.Store
	profiles profile.Registry
	sink     Sink
	log      *slog.Logger

	mu    sync.Mutex // guards locks
	locks map[string]*sync.Mutex
}

// NewEngine creates an Engine wired with the given dependencies. A nil sink
// disables event publication.
func NewEngine(st store.Store, profiles profile.Registry, sink Sink, log *slog.Logger) *Engine {
	if sink == nil {
		sink = nopSink{}
	}
	return &Engine{
		store:    st,
		profiles: profiles,
		sink:     sink,
		log:      log.With("component", "engine"),
		locks:    make(map[string]*sync.Mutex),
	}
}

// botLock returns the mutex for a bot, creating it on first use.
func (e *Engine) botLock(botID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[botID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[botID] = l
	}
	return l
}

// SubmitOrder validates and, if every check passes, settles an order for a
// bot. The bot's lock is held across the whole cycle. Rejections are
// recorded and broadcast; failures doing so are logged but never change the
// outcome.
func (e *Engine) SubmitOrder(ctx context.Context, botID string, order *domain.Order) (*Outcome, error) {
	if botID == "" || order == nil {
		return &Outcome{Code: RejectBadRequest, Reason: "missing bot id or order"}, nil
	}
	if !order.Side.Valid() {
		return e.reject(ctx, botID, order, RejectBadRequest, fmt.Sprintf("invalid side %q", order.Side)), nil
	}
	if order.Symbol == "" {
		return e.reject(ctx, botID, order, RejectBadRequest, "missing symbol"), nil
	}
	if order.Shares <= 0 {
		return e.reject(ctx, botID, order, RejectBadRequest, "shares must be positive"), nil
	}

	lock := e.botLock(botID)
	lock.Lock()
	defer lock.Unlock()

	bot, err := e.store.GetBot(ctx, botID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Nothing to attribute the rejection to; not recorded.
			return &Outcome{Code: RejectNotFound, Reason: fmt.Sprintf("unknown bot %q", botID)}, nil
		}
		return nil, fmt.Errorf("loading bot %s: %w", botID, err)
	}
	if !bot.Enabled {
		return e.reject(ctx, botID, order, RejectBadRequest, "bot is disabled"), nil
	}

	game, err := e.store.GetGame(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading game: %w", err)
	}
	if game.Status != domain.StatusRunning {
		return e.reject(ctx, botID, order, RejectBadRequest, "game is paused"), nil
	}

	positions, err := e.store.GetPositions(ctx, botID)
	if err != nil {
		return nil, fmt.Errorf("loading positions for %s: %w", botID, err)
	}

	price, err := resolvePrice(ctx, e.store, positions, order.Symbol)
	if err != nil {
		if errors.Is(err, errNoPrice) {
			return e.reject(ctx, botID, order, RejectNoPriceData,
				fmt.Sprintf("no price data for %s", order.Symbol)), nil
		}
		return nil, fmt.Errorf("resolving price for %s: %w", order.Symbol, err)
	}

	tradeValue := float64(order.Shares) * price
	switch order.Side {
	case domain.SideBuy:
		if tradeValue > bot.Cash {
			return e.reject(ctx, botID, order, RejectInsufficientCash,
				fmt.Sprintf("insufficient cash: need $%.2f, have $%.2f", tradeValue, bot.Cash)), nil
		}
	case domain.SideSell:
		held := int64(0)
		if pos := domain.FindPosition(positions, order.Symbol); pos != nil {
			held = pos.Shares
		}
		if held < order.Shares {
			return e.reject(ctx, botID, order, RejectInsufficientShares,
				fmt.Sprintf("insufficient shares: need %d, have %d", order.Shares, held)), nil
		}
	}

	if reason := checkConstraints(bot, e.profiles.For(bot.Kind), order, price, positions); reason != "" {
		return e.reject(ctx, botID, order, RejectConstraint, reason), nil
	}

	result := settle(bot, positions, order, price)

	trade := &domain.Trade{
		BotID:      botID,
		Symbol:     order.Symbol,
		Side:       order.Side,
		Shares:     order.Shares,
		Price:      price,
		Commentary: order.Commentary,
		Round:      game.CurrentRound,
		ExecutedAt: time.Now().UTC(),
	}

	updated := *bot
	updated.Cash = result.NewCash
	updated.TotalValue = result.NewTotalValue
	if order.Commentary != "" {
		updated.LastCommentary = order.Commentary
	}

	upd := &store.SettlementUpdate{
		Bot:          &updated,
		Position:     result.Position,
		ClosedSymbol: result.ClosedSymbol,
		Trade:        trade,
	}
	if err := e.store.ApplySettlement(ctx, upd); err != nil {
		return nil, fmt.Errorf("settling trade for %s: %w", botID, err)
	}

	e.log.Info("trade executed",
		"bot", botID, "side", order.Side, "symbol", order.Symbol,
		"shares", order.Shares, "price", price, "round", trade.Round)
	e.sink.Publish("trade", trade)
	if order.Commentary != "" {
		e.sink.Publish("chat", map[string]any{
			"bot_id":     botID,
			"commentary": order.Commentary,
		})
	}

	return &Outcome{Accepted: true, Trade: trade}, nil
}

// reject records and broadcasts a refused order, then returns its outcome.
// Recording failures are logged and swallowed: a rejection must reach the
// submitter even when bookkeeping misbehaves.
func (e *Engine) reject(ctx context.Context, botID string, order *domain.Order, code RejectCode, reason string) *Outcome {
	round := 0
	if game, err := e.store.GetGame(ctx); err == nil {
		round = game.CurrentRound
	}

	rt := &domain.RejectedTrade{
		BotID:      botID,
		Symbol:     order.Symbol,
		Side:       order.Side,
		Shares:     order.Shares,
		Reason:     reason,
		Round:      round,
		RejectedAt: time.Now().UTC(),
	}
	if err := e.store.SaveRejectedTrade(ctx, rt); err != nil {
		e.log.Error("recording rejected trade", "bot", botID, "error", err)
	}

	e.log.Info("trade rejected",
		"bot", botID, "side", order.Side, "symbol", order.Symbol,
		"shares", order.Shares, "code", code, "reason", reason)
	e.sink.Publish("rejected", rt)

	return &Outcome{Code: code, Reason: reason}
}
