package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"tradearena/internal/domain"
	"tradearena/internal/engine"
	"tradearena/internal/store"
)

// Server serves the arena HTTP API.
type Server struct {
	store      store.Store
	engine     *engine.Engine
	archive    *store.ParquetArchive
	feed       http.Handler
	sink       engine.Sink
	authToken  string
	corsOrigin string
	maxOrders  int
	log        *slog.Logger
}

// NewServer creates the API server. feed serves the WebSocket route and may
// be nil; sink receives round and leaderboard events; maxOrders caps how
// many parsed orders a single text submission may carry.
func NewServer(
	st store.Store,
	eng *engine.Engine,
	archive *store.ParquetArchive,
	feed http.Handler,
	sink engine.Sink,
	authToken string,
	corsOrigin string,
	maxOrders int,
	log *slog.Logger,
) *Server {
	if maxOrders <= 0 {
		maxOrders = 3
	}
	return &Server{
		store:      st,
		engine:     eng,
		archive:    archive,
		feed:       feed,
		sink:       sink,
		authToken:  authToken,
		corsOrigin: corsOrigin,
		maxOrders:  maxOrders,
		log:        log.With("component", "httpapi"),
	}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("GET /api/leaderboard", s.handleLeaderboard)
	mux.HandleFunc("GET /api/bot/{id}", s.handleBotDetail)
	mux.HandleFunc("GET /api/trades", s.handleTrades)
	mux.HandleFunc("GET /api/rejected", s.handleRejected)
	mux.HandleFunc("POST /api/bot/{id}/orders", s.withAuth(s.handleOrders))
	mux.HandleFunc("PUT /api/prices", s.withAuth(s.handlePrices))
	mux.HandleFunc("POST /api/round/increment", s.withAuth(s.handleRoundIncrement))
	mux.HandleFunc("POST /api/game/status", s.withAuth(s.handleGameStatus))
	if s.feed != nil {
		mux.Handle("GET /ws", s.feed)
	}
}

// Handler returns an http.Handler with CORS middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return s.corsMiddleware(mux)
}

// withAuth requires a bearer token on mutating routes. An empty configured
// token disables auth (local development).
func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.authToken != "" {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token != s.authToken {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	origin := s.corsOrigin
	if origin == "" {
		origin = "*"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// parseLimit extracts the "limit" query param, defaulting and clamping.
func parseLimit(r *http.Request) int {
	const defaultLimit, maxLimit = 50, 500
	v := r.URL.Query().Get("limit")
	if v == "" {
		return defaultLimit
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return defaultLimit
	}
	if n > maxLimit {
		return maxLimit
	}
	return n
}

// ---------------------------------------------------------------------------
// Read endpoints
// ---------------------------------------------------------------------------

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	game, err := s.store.GetGame(r.Context())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "game not initialized")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load game")
		return
	}
	bots, err := s.store.ListBots(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load bots")
		return
	}
	writeJSON(w, StateResponse{Game: game, Bots: bots})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	resp, err := s.buildLeaderboard(r)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "game not initialized")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to build leaderboard")
		return
	}
	writeJSON(w, resp)
}

func (s *Server) buildLeaderboard(r *http.Request) (*LeaderboardResponse, error) {
	game, err := s.store.GetGame(r.Context())
	if err != nil {
		return nil, err
	}
	bots, err := s.store.ListBots(r.Context())
	if err != nil {
		return nil, err
	}

	entries := make([]LeaderboardEntry, 0, len(bots))
	for i, bot := range bots {
		returnPct := 0.0
		if game.StartingCash > 0 {
			returnPct = (bot.TotalValue - game.StartingCash) / game.StartingCash * 100
		}
		entries = append(entries, LeaderboardEntry{
			Rank:           i + 1,
			BotID:          bot.ID,
			Name:           bot.Name,
			Kind:           string(bot.Kind),
			TotalValue:     bot.TotalValue,
			Cash:           bot.Cash,
			ReturnPct:      returnPct,
			LastCommentary: bot.LastCommentary,
		})
	}
	return &LeaderboardResponse{Round: game.CurrentRound, Entries: entries}, nil
}

func (s *Server) handleBotDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	bot, err := s.store.GetBot(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("unknown bot %q", id))
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load bot")
		return
	}

	positions, err := s.store.GetPositions(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load positions")
		return
	}
	trades, err := s.store.ListTrades(r.Context(), id, parseLimit(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load trades")
		return
	}
	if positions == nil {
		positions = []domain.Position{}
	}
	if trades == nil {
		trades = []domain.Trade{}
	}

	writeJSON(w, BotDetailResponse{Bot: bot, Positions: positions, Trades: trades})
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	botID := r.URL.Query().Get("bot_id")
	limit := parseLimit(r)

	var trades []domain.Trade
	var err error
	if v := r.URL.Query().Get("round"); v != "" {
		round, aerr := strconv.Atoi(v)
		if aerr != nil || round <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid round %q", v))
			return
		}
		trades, err = s.store.TradesForRound(r.Context(), round)
		if err == nil {
			trades = filterTradesByBot(trades, botID, limit)
		}
	} else {
		trades, err = s.store.ListTrades(r.Context(), botID, limit)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load trades")
		return
	}
	if trades == nil {
		trades = []domain.Trade{}
	}
	writeJSON(w, trades)
}

// filterTradesByBot narrows a round's trades to one bot and caps the count.
func filterTradesByBot(trades []domain.Trade, botID string, limit int) []domain.Trade {
	out := make([]domain.Trade, 0, len(trades))
	for _, tr := range trades {
		if botID != "" && tr.BotID != botID {
			continue
		}
		out = append(out, tr)
		if len(out) == limit {
			break
		}
	}
	return out
}

func (s *Server) handleRejected(w http.ResponseWriter, r *http.Request) {
	rejected, err := s.store.ListRejectedTrades(r.Context(), parseLimit(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load rejected trades")
		return
	}
	if rejected == nil {
		rejected = []domain.RejectedTrade{}
	}
	writeJSON(w, rejected)
}

// ---------------------------------------------------------------------------
// Mutating endpoints
// ---------------------------------------------------------------------------

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	botID := r.PathValue("id")

	var req OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var orders []*domain.Order
	if req.Text != "" {
		parsed := engine.ParseOrders(req.Text)
		if len(parsed) > s.maxOrders {
			parsed = parsed[:s.maxOrders]
		}
		commentary := engine.ExtractCommentary(req.Text)
		for _, p := range parsed {
			orders = append(orders, &domain.Order{
				Side:       p.Side,
				Symbol:     p.Symbol,
				Shares:     p.Shares,
				Commentary: commentary,
			})
		}
		// Output with no TRADE lines still carries the bot's voice: store
		// the commentary and broadcast it, but execute nothing.
		if len(orders) == 0 {
			if commentary == "" {
				writeError(w, http.StatusBadRequest, "no TRADE lines or commentary found in text")
				return
			}
			if err := s.store.UpdateCommentary(r.Context(), botID, commentary); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					writeError(w, http.StatusNotFound, fmt.Sprintf("unknown bot %q", botID))
					return
				}
				writeError(w, http.StatusInternalServerError, "failed to store commentary")
				return
			}
			if s.sink != nil {
				s.sink.Publish("chat", map[string]any{
					"bot_id":     botID,
					"commentary": commentary,
				})
			}
			writeJSON(w, OrderResponse{Outcomes: []engine.Outcome{}})
			return
		}
	} else {
		orders = append(orders, &domain.Order{
			Side:       domain.OrderSide(strings.ToUpper(req.Side)),
			Symbol:     strings.ToUpper(req.Symbol),
			Shares:     req.Shares,
			Commentary: req.Commentary,
		})
	}

	resp := OrderResponse{Outcomes: make([]engine.Outcome, 0, len(orders))}
	for _, order := range orders {
		outcome, err := s.engine.SubmitOrder(r.Context(), botID, order)
		if err != nil {
			s.log.Error("submitting order", "bot", botID, "error", err)
			writeError(w, http.StatusInternalServerError, "order submission failed")
			return
		}
		resp.Outcomes = append(resp.Outcomes, *outcome)
	}

	// A single not-found outcome maps to 404; everything else is a 200 with
	// per-order outcomes, since rejection is a business result.
	if len(resp.Outcomes) == 1 && resp.Outcomes[0].Code == engine.RejectNotFound {
		writeError(w, http.StatusNotFound, resp.Outcomes[0].Reason)
		return
	}
	writeJSON(w, resp)
}

func (s *Server) handlePrices(w http.ResponseWriter, r *http.Request) {
	var req PricesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Prices) == 0 {
		writeError(w, http.StatusBadRequest, "no prices supplied")
		return
	}
	for symbol, price := range req.Prices {
		if symbol == "" || price <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid price for %q", symbol))
			return
		}
	}

	if err := s.store.UpdateLastPrices(r.Context(), req.Prices); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update prices")
		return
	}
	s.log.Info("prices updated", "symbols", len(req.Prices))
	if s.sink != nil {
		s.sink.Publish("prices", req.Prices)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRoundIncrement(w http.ResponseWriter, r *http.Request) {
	round, err := s.store.IncrementRound(r.Context())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "game not initialized")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to increment round")
		return
	}

	// Archive the finished round. Failures are logged, not surfaced: the
	// round is already advanced and SQLite remains authoritative.
	finished := round - 1
	if s.archive != nil && finished > 0 {
		trades, err := s.store.TradesForRound(r.Context(), finished)
		if err != nil {
			s.log.Error("loading trades for archive", "round", finished, "error", err)
		} else if err := s.archive.ArchiveRound(finished, trades); err != nil {
			s.log.Error("archiving round", "round", finished, "error", err)
		}
	}

	s.log.Info("round advanced", "round", round)
	if s.sink != nil {
		s.sink.Publish("round", RoundResponse{Round: round})
		if lb, err := s.buildLeaderboard(r); err == nil {
			s.sink.Publish("leaderboard", lb)
		}
	}

	writeJSON(w, RoundResponse{Round: round})
}

func (s *Server) handleGameStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	status := domain.GameStatus(req.Status)
	if status != domain.StatusRunning && status != domain.StatusPaused {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid status %q", req.Status))
		return
	}

	if err := s.store.SetStatus(r.Context(), status); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "game not initialized")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to set status")
		return
	}

	s.log.Info("game status changed", "status", status)
	if s.sink != nil {
		s.sink.Publish("status", map[string]string{"status": string(status)})
	}
	w.WriteHeader(http.StatusNoContent)
}
