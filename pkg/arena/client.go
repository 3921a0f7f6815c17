// Package arena provides a Go client for the trading arena HTTP API.
package arena

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client talks to an arena-server instance. The zero value is not usable;
// construct with NewClient.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates an arena API client. token may be empty for read-only
// use against a server without auth.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("arena: %d %s", e.StatusCode, e.Message)
}

// ---------------------------------------------------------------------------
// Wire types (mirror the server's JSON responses)
// ---------------------------------------------------------------------------

// Game is the shared competition record.
type Game struct {
	Status       string    `json:"status"`
	StartingCash float64   `json:"starting_cash"`
	CurrentRound int       `json:"current_round"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Bot is a competition participant.
type Bot struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Kind           string    `json:"kind"`
	Cash           float64   `json:"cash"`
	TotalValue     float64   `json:"total_value"`
	LastCommentary string    `json:"last_commentary,omitempty"`
	Enabled        bool      `json:"enabled"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Position is a bot's holding in one symbol.
type Position struct {
	BotID     string  `json:"bot_id"`
	Symbol    string  `json:"symbol"`
	Shares    int64   `json:"shares"`
	AvgCost   float64 `json:"avg_cost"`
	LastPrice float64 `json:"last_price,omitempty"`
}

// Trade is an executed order.
type Trade struct {
	ID         int64     `json:"id"`
	BotID      string    `json:"bot_id"`
	Symbol     string    `json:"symbol"`
	Side       string    `json:"side"`
	Shares     int64     `json:"shares"`
	Price      float64   `json:"price"`
	Commentary string    `json:"commentary,omitempty"`
	Round      int       `json:"round"`
	ExecutedAt time.Time `json:"executed_at"`
}

// RejectedTrade is an order that failed validation.
type RejectedTrade struct {
	ID         int64     `json:"id"`
	BotID      string    `json:"bot_id"`
	Symbol     string    `json:"symbol"`
	Side       string    `json:"side"`
	Shares     int64     `json:"shares"`
	Reason     string    `json:"reason"`
	Round      int       `json:"round"`
	RejectedAt time.Time `json:"rejected_at"`
}

// State is the full public game state.
type State struct {
	Game *Game `json:"game"`
	Bots []Bot `json:"bots"`
}

// LeaderboardEntry is one ranked leaderboard row.
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

// Leaderboard is the ranked standings for a round.
type Leaderboard struct {
	Round   int                `json:"round"`
	Entries []LeaderboardEntry `json:"entries"`
}

// BotDetail is a bot with its holdings and recent trades.
type BotDetail struct {
	Bot       *Bot       `json:"bot"`
	Positions []Position `json:"positions"`
	Trades    []Trade    `json:"trades"`
}

// OrderRequest submits orders for a bot: either one structured order, or
// raw agent output to be parsed for TRADE lines.
type OrderRequest struct {
	Side       string `json:"side,omitempty"`
	Symbol     string `json:"symbol,omitempty"`
	Shares     int64  `json:"shares,omitempty"`
	Commentary string `json:"commentary,omitempty"`
	Text       string `json:"text,omitempty"`
}

// Outcome is the result of one submitted order.
type Outcome struct {
	Accepted bool   `json:"accepted"`
	Trade    *Trade `json:"trade,omitempty"`
	Code     string `json:"code,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// ---------------------------------------------------------------------------
// API methods
// ---------------------------------------------------------------------------

// State retrieves the full game state.
func (c *Client) State(ctx context.Context) (*State, error) {
	var out State
	if err := c.do(ctx, http.MethodGet, "/api/state", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Leaderboard retrieves the current standings.
func (c *Client) Leaderboard(ctx context.Context) (*Leaderboard, error) {
	var out Leaderboard
	if err := c.do(ctx, http.MethodGet, "/api/leaderboard", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Bot retrieves one bot with positions and recent trades.
func (c *Client) Bot(ctx context.Context, botID string) (*BotDetail, error) {
	var out BotDetail
	if err := c.do(ctx, http.MethodGet, "/api/bot/"+url.PathEscape(botID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Trades retrieves trade history, optionally filtered by bot and round.
// Zero round means all rounds; empty botID means all bots.
func (c *Client) Trades(ctx context.Context, botID string, round, limit int) ([]Trade, error) {
	q := url.Values{}
	if botID != "" {
		q.Set("bot_id", botID)
	}
	if round > 0 {
		q.Set("round", strconv.Itoa(round))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/trades"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out []Trade
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Rejected retrieves recently rejected trades.
func (c *Client) Rejected(ctx context.Context, limit int) ([]RejectedTrade, error) {
	path := "/api/rejected"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out []RejectedTrade
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SubmitOrders submits an order request for a bot and returns the outcome
// of each parsed order.
func (c *Client) SubmitOrders(ctx context.Context, botID string, req OrderRequest) ([]Outcome, error) {
	var out struct {
		Outcomes []Outcome `json:"outcomes"`
	}
	path := "/api/bot/" + url.PathEscape(botID) + "/orders"
	if err := c.do(ctx, http.MethodPost, path, req, &out); err != nil {
		return nil, err
	}
	return out.Outcomes, nil
}

// SubmitText submits raw agent output containing TRADE lines for a bot.
func (c *Client) SubmitText(ctx context.Context, botID, text string) ([]Outcome, error) {
	return c.SubmitOrders(ctx, botID, OrderRequest{Text: text})
}

// UpdatePrices pushes a bulk last-price update.
func (c *Client) UpdatePrices(ctx context.Context, prices map[string]float64) error {
	body := struct {
		Prices map[string]float64 `json:"prices"`
	}{Prices: prices}
	return c.do(ctx, http.MethodPut, "/api/prices", body, nil)
}

// PushPrices is an alias for UpdatePrices matching the price-refresher sink.
func (c *Client) PushPrices(ctx context.Context, prices map[string]float64) error {
	return c.UpdatePrices(ctx, prices)
}

// IncrementRound advances the round counter and returns the new round.
func (c *Client) IncrementRound(ctx context.Context) (int, error) {
	var out struct {
		Round int `json:"round"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/round/increment", nil, &out); err != nil {
		return 0, err
	}
	return out.Round, nil
}

// SetStatus sets the game lifecycle status ("running" or "paused").
func (c *Client) SetStatus(ctx context.Context, status string) error {
	body := struct {
		Status string `json:"status"`
	}{Status: status}
	return c.do(ctx, http.MethodPost, "/api/game/status", body, nil)
}

// ---------------------------------------------------------------------------
// Transport
// ---------------------------------------------------------------------------

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(data, &apiErr) != nil || apiErr.Error == "" {
			apiErr.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: apiErr.Error}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
