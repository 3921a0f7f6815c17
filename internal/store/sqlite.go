package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tradearena/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ Store = (*SQLiteStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS game (
	id            INTEGER PRIMARY KEY CHECK (id = 1),
	status        TEXT    NOT NULL,
	starting_cash REAL    NOT NULL,
	current_round INTEGER NOT NULL DEFAULT 0,
	created_at    TEXT    NOT NULL,
	updated_at    TEXT    NOT NULL
);

CREATE TABLE IF NOT EXISTS bots (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	kind            TEXT NOT NULL,
	cash            REAL NOT NULL,
	total_value     REAL NOT NULL,
	last_commentary TEXT NOT NULL DEFAULT '',
	enabled         INTEGER NOT NULL DEFAULT 1,
	updated_at      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS positions (
	bot_id     TEXT NOT NULL REFERENCES bots(id),
	symbol     TEXT NOT NULL,
	shares     INTEGER NOT NULL,
	avg_cost   REAL NOT NULL,
	last_price REAL NOT NULL DEFAULT 0,
	PRIMARY KEY (bot_id, symbol)
);

CREATE TABLE IF NOT EXISTS prices (
	symbol     TEXT PRIMARY KEY,
	price      REAL NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS trades (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	bot_id      TEXT NOT NULL,
	symbol      TEXT NOT NULL,
	side        TEXT NOT NULL,
	shares      INTEGER NOT NULL,
	price       REAL NOT NULL,
	commentary  TEXT NOT NULL DEFAULT '',
	round       INTEGER NOT NULL,
	executed_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades(symbol, id);
CREATE INDEX IF NOT EXISTS idx_trades_round ON trades(round);

CREATE TABLE IF NOT EXISTS rejected_trades (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	bot_id      TEXT NOT NULL,
	symbol      TEXT NOT NULL,
	side        TEXT NOT NULL,
	shares      INTEGER NOT NULL,
	reason      TEXT NOT NULL,
	round       INTEGER NOT NULL,
	rejected_at TEXT NOT NULL
);
`

// SQLiteStore implements Store backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, bootstraps
// the schema, and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// Serialize writers; the engine holds per-bot locks but distinct bots
	// still settle concurrently.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("bootstrapping schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

// ---------------------------------------------------------------------------
// GameStore implementation
// ---------------------------------------------------------------------------

// InitGame creates the game row if it does not exist yet.
func (s *SQLiteStore) InitGame(ctx context.Context, startingCash float64) error {
	ts := now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO game (id, status, starting_cash, current_round, created_at, updated_at)
		VALUES (1, ?, ?, 0, ?, ?)
		ON CONFLICT (id) DO NOTHING`,
		string(domain.StatusRunning), startingCash, ts, ts)
	return err
}

// GetGame retrieves the game record.
func (s *SQLiteStore) GetGame(ctx context.Context) (*domain.Game, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT status, starting_cash, current_round, created_at, updated_at
		FROM game WHERE id = 1`)

	var g domain.Game
	var created, updated string
	err := row.Scan(&g.Status, &g.StartingCash, &g.CurrentRound, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	g.CreatedAt = parseTime(created)
	g.UpdatedAt = parseTime(updated)
	return &g, nil
}

// SetStatus updates the game lifecycle status.
func (s *SQLiteStore) SetStatus(ctx context.Context, status domain.GameStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE game SET status = ?, updated_at = ? WHERE id = 1`,
		string(status), now())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementRound bumps the round counter and returns the new round.
func (s *SQLiteStore) IncrementRound(ctx context.Context) (int, error) {
	var round int
	err := s.db.QueryRowContext(ctx, `
		UPDATE game SET current_round = current_round + 1, updated_at = ?
		WHERE id = 1
		RETURNING current_round`, now()).Scan(&round)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	return round, err
}

// ---------------------------------------------------------------------------
// BotStore implementation
// ---------------------------------------------------------------------------

// CreateBot inserts a new bot.
func (s *SQLiteStore) CreateBot(ctx context.Context, bot *domain.Bot) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bots (id, name, kind, cash, total_value, last_commentary, enabled, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		bot.ID, bot.Name, string(bot.Kind), bot.Cash, bot.TotalValue,
		bot.LastCommentary, bot.Enabled, now())
	return err
}

// GetBot retrieves a single bot by its ID.
func (s *SQLiteStore) GetBot(ctx context.Context, id string) (*domain.Bot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, kind, cash, total_value, last_commentary, enabled, updated_at
		FROM bots WHERE id = ?`, id)

	bot, err := scanBot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return bot, nil
}

// ListBots returns all bots ordered by total value descending.
func (s *SQLiteStore) ListBots(ctx context.Context) ([]domain.Bot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, kind, cash, total_value, last_commentary, enabled, updated_at
		FROM bots ORDER BY total_value DESC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bots []domain.Bot
	for rows.Next() {
		bot, err := scanBot(rows)
		if err != nil {
			return nil, err
		}
		bots = append(bots, *bot)
	}
	return bots, rows.Err()
}

// UpdateCommentary stores a bot's latest commentary.
func (s *SQLiteStore) UpdateCommentary(ctx context.Context, botID, commentary string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE bots SET last_commentary = ?, updated_at = ? WHERE id = ?`,
		commentary, now(), botID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBot(row rowScanner) (*domain.Bot, error) {
	var b domain.Bot
	var updated string
	err := row.Scan(&b.ID, &b.Name, &b.Kind, &b.Cash, &b.TotalValue,
		&b.LastCommentary, &b.Enabled, &updated)
	if err != nil {
		return nil, err
	}
	b.UpdatedAt = parseTime(updated)
	return &b, nil
}

// ---------------------------------------------------------------------------
// PositionStore implementation
// ---------------------------------------------------------------------------

// GetPositions returns all positions held by a bot.
func (s *SQLiteStore) GetPositions(ctx context.Context, botID string) ([]domain.Position, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT bot_id, symbol, shares, avg_cost, last_price
		FROM positions WHERE bot_id = ? ORDER BY symbol ASC`, botID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		var p domain.Position
		if err := rows.Scan(&p.BotID, &p.Symbol, &p.Shares, &p.AvgCost, &p.LastPrice); err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// ListHeldSymbols returns the distinct symbols held across all bots.
func (s *SQLiteStore) ListHeldSymbols(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT symbol FROM positions ORDER BY symbol ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, err
		}
		symbols = append(symbols, sym)
	}
	return symbols, rows.Err()
}

// ---------------------------------------------------------------------------
// PriceStore implementation
// ---------------------------------------------------------------------------

// GetPrice returns the recorded last-known price for a symbol.
func (s *SQLiteStore) GetPrice(ctx context.Context, symbol string) (float64, error) {
	var price float64
	err := s.db.QueryRowContext(ctx,
		`SELECT price FROM prices WHERE symbol = ?`, symbol).Scan(&price)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	return price, err
}

// UpdateLastPrices records last-known prices, updates open positions in
// those symbols, and recomputes the total value of every bot holding them,
// in a single transaction.
func (s *SQLiteStore) UpdateLastPrices(ctx context.Context, prices map[string]float64) error {
	if len(prices) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	affected := make(map[string]struct{})
	for symbol, price := range prices {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO prices (symbol, price, updated_at) VALUES (?, ?, ?)
			ON CONFLICT (symbol) DO UPDATE SET
				price = excluded.price,
				updated_at = excluded.updated_at`,
			symbol, price, now()); err != nil {
			return err
		}

		rows, err := tx.QueryContext(ctx,
			`SELECT bot_id FROM positions WHERE symbol = ?`, symbol)
		if err != nil {
			return err
		}
		for rows.Next() {
			var botID string
			if err := rows.Scan(&botID); err != nil {
				rows.Close()
				return err
			}
			affected[botID] = struct{}{}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()

		if _, err := tx.ExecContext(ctx,
			`UPDATE positions SET last_price = ? WHERE symbol = ?`, price, symbol); err != nil {
			return err
		}
	}

	// Full recompute for every affected bot: cash plus position market value
	// at the last price, falling back to average cost.
	ts := now()
	for botID := range affected {
		if _, err := tx.ExecContext(ctx, `
			UPDATE bots SET total_value = cash + COALESCE((
				SELECT SUM(shares * (CASE WHEN last_price > 0 THEN last_price ELSE avg_cost END))
				FROM positions WHERE positions.bot_id = bots.id), 0),
				updated_at = ?
			WHERE id = ?`, ts, botID); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ---------------------------------------------------------------------------
// TradeStore implementation
// ---------------------------------------------------------------------------

// ApplySettlement persists the effect of an accepted order in a single
// transaction: bot cash/value, the resulting or closed position, and the
// trade record. The trade's assigned ID is written back into upd.Trade.
func (s *SQLiteStore) ApplySettlement(ctx context.Context, upd *SettlementUpdate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	ts := now()
	res, err := tx.ExecContext(ctx, `
		UPDATE bots SET cash = ?, total_value = ?, last_commentary = ?, updated_at = ?
		WHERE id = ?`,
		upd.Bot.Cash, upd.Bot.TotalValue, upd.Bot.LastCommentary, ts, upd.Bot.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	if upd.Position != nil {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO positions (bot_id, symbol, shares, avg_cost, last_price)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (bot_id, symbol) DO UPDATE SET
				shares = excluded.shares,
				avg_cost = excluded.avg_cost,
				last_price = excluded.last_price`,
			upd.Position.BotID, upd.Position.Symbol, upd.Position.Shares,
			upd.Position.AvgCost, upd.Position.LastPrice); err != nil {
			return err
		}
	}

	if upd.ClosedSymbol != "" {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM positions WHERE bot_id = ? AND symbol = ?`,
			upd.Bot.ID, upd.ClosedSymbol); err != nil {
			return err
		}
	}

	tradeRes, err := tx.ExecContext(ctx, `
		INSERT INTO trades (bot_id, symbol, side, shares, price, commentary, round, executed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		upd.Trade.BotID, upd.Trade.Symbol, string(upd.Trade.Side), upd.Trade.Shares,
		upd.Trade.Price, upd.Trade.Commentary, upd.Trade.Round,
		upd.Trade.ExecutedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return err
	}
	if id, err := tradeRes.LastInsertId(); err == nil {
		upd.Trade.ID = id
	}

	return tx.Commit()
}

// LastTradePrice returns the price of the most recent trade in a symbol
// across all bots.
func (s *SQLiteStore) LastTradePrice(ctx context.Context, symbol string) (float64, error) {
	var price float64
	err := s.db.QueryRowContext(ctx,
		`SELECT price FROM trades WHERE symbol = ? ORDER BY id DESC LIMIT 1`,
		symbol).Scan(&price)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	return price, err
}

// ListTrades returns recent trades, newest first, optionally filtered by bot.
func (s *SQLiteStore) ListTrades(ctx context.Context, botID string, limit int) ([]domain.Trade, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, bot_id, symbol, side, shares, price, commentary, round, executed_at
		FROM trades`
	args := []any{}
	if botID != "" {
		query += ` WHERE bot_id = ?`
		args = append(args, botID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTrades(rows)
}

// TradesForRound returns all trades executed in the given round, oldest first.
func (s *SQLiteStore) TradesForRound(ctx context.Context, round int) ([]domain.Trade, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, bot_id, symbol, side, shares, price, commentary, round, executed_at
		FROM trades WHERE round = ? ORDER BY id ASC`, round)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTrades(rows)
}

func scanTrades(rows *sql.Rows) ([]domain.Trade, error) {
	var trades []domain.Trade
	for rows.Next() {
		var t domain.Trade
		var executed string
		if err := rows.Scan(&t.ID, &t.BotID, &t.Symbol, &t.Side, &t.Shares,
			&t.Price, &t.Commentary, &t.Round, &executed); err != nil {
			return nil, err
		}
		t.ExecutedAt = parseTime(executed)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// SaveRejectedTrade records a rejected order. The assigned ID is written back
// into rt.
func (s *SQLiteStore) SaveRejectedTrade(ctx context.Context, rt *domain.RejectedTrade) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO rejected_trades (bot_id, symbol, side, shares, reason, round, rejected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rt.BotID, rt.Symbol, string(rt.Side), rt.Shares, rt.Reason, rt.Round,
		rt.RejectedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return err
	}
	if id, err := res.LastInsertId(); err == nil {
		rt.ID = id
	}
	return nil
}

// ListRejectedTrades returns recent rejections, newest first.
func (s *SQLiteStore) ListRejectedTrades(ctx context.Context, limit int) ([]domain.RejectedTrade, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, bot_id, symbol, side, shares, reason, round, rejected_at
		FROM rejected_trades ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rejected []domain.RejectedTrade
	for rows.Next() {
		var rt domain.RejectedTrade
		var at string
		if err := rows.Scan(&rt.ID, &rt.BotID, &rt.Symbol, &rt.Side, &rt.Shares,
			&rt.Reason, &rt.Round, &at); err != nil {
			return nil, err
		}
		rt.RejectedAt = parseTime(at)
		rejected = append(rejected, rt)
	}
	return rejected, rows.Err()
}
