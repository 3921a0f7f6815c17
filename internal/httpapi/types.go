// Package httpapi provides the arena's HTTP REST API and mounts the viewer
// WebSocket feed.
package httpapi

import (
	"tradearena/internal/domain"
	"tradearena/internal/engine"
)

// StateResponse is the full public game state.
type StateResponse struct {
	Game *domain.Game `json:"game"`
	Bots []domain.Bot `json:"bots"`
}

// LeaderboardEntry is one ranked row of the leaderboard.
type LeaderboardEntry struct {
	Rank           int     `json:"rank"`
	BotID          string  `json:"bot_id"`
	Name           string  `json:"name"`
	Kind           string  `json:"kind"`
	TotalValue     float64 `json:"total_value"`
	Cash           float64 `json:"cash"`
	ReturnPct      float64 `json:"return_pct"`
	LastCommentary string  `json:"last_commentary,omitempty"`
}

// LeaderboardResponse is the ranked standings for a round.
type LeaderboardResponse struct {
	Round   int                `json:"round"`
	Entries []LeaderboardEntry `json:"entries"`
}

// BotDetailResponse is a single bot with its holdings and recent activity.
type BotDetailResponse struct {
	Bot       *domain.Bot       `json:"bot"`
	Positions []domain.Position `json:"positions"`
	Trades    []domain.Trade    `json:"trades"`
}

// OrderRequest submits orders for a bot: either one structured order, or
// raw bot output to be parsed for TRADE lines.
type OrderRequest struct {
	Side       string `json:"side,omitempty"`
	Symbol     string `json:"symbol,omitempty"`
	Shares     int64  `json:"shares,omitempty"`
	Commentary string `json:"commentary,omitempty"`

	// Raw bot output; when set the structured fields are ignored.
	Text string `json:"text,omitempty"`
}

// OrderResponse returns the outcome of each submitted order.
type OrderResponse struct {
	Outcomes []engine.Outcome `json:"outcomes"`
}

// PricesRequest is a bulk last-price update.
type PricesRequest struct {
	Prices map[string]float64 `json:"prices"`
}

// RoundResponse reports the round counter after an increment.
type RoundResponse struct {
	Round int `json:"round"`
}

// StatusRequest changes the game lifecycle status.
type StatusRequest struct {
	Status string `json:"status"`
}
