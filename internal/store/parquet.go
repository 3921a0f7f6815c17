package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/parquet-go/parquet-go"

	"tradearena/internal/domain"
)

// ParquetArchive writes executed trades to Parquet files on disk, one file
// per round. The archive is a historical record for offline analysis; SQLite
// stays authoritative.
type ParquetArchive struct {
	DataDir string
}

// NewParquetArchive creates an archive rooted at the given data directory.
func NewParquetArchive(dataDir string) *ParquetArchive {
	return &ParquetArchive{DataDir: dataDir}
}

// ---------------------------------------------------------------------------
// Parquet record type (on-disk schema)
// ---------------------------------------------------------------------------

// ArchivedTrade is the Parquet schema for an executed trade.
type ArchivedTrade struct {
	ID         int64   `parquet:"id"`
	BotID      string  `parquet:"bot_id"`
	Symbol     string  `parquet:"symbol"`
	Side       string  `parquet:"side"`
	Shares     int64   `parquet:"shares"`
	Price      float64 `parquet:"price"`
	Commentary string  `parquet:"commentary"`
	Round      int32   `parquet:"round"`
	ExecutedAt int64   `parquet:"executed_at,timestamp(millisecond)"` // Unix ms
}

// ---------------------------------------------------------------------------
// Archive operations
// ---------------------------------------------------------------------------

// ArchiveRound writes the round's trades to its Parquet file at:
//
//	<DataDir>/arena/trades/round-<NNNN>.parquet
//
// Re-archiving a round merges with any existing file, deduplicating by trade
// ID with incoming records winning.
func (a *ParquetArchive) ArchiveRound(round int, trades []domain.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	records := make([]ArchivedTrade, 0, len(trades))
	for _, t := range trades {
		records = append(records, ArchivedTrade{
			ID:         t.ID,
			BotID:      t.BotID,
			Symbol:     t.Symbol,
			Side:       string(t.Side),
			Shares:     t.Shares,
			Price:      t.Price,
			Commentary: t.Commentary,
			Round:      int32(t.Round),
			ExecutedAt: t.ExecutedAt.UnixMilli(),
		})
	}

	path := a.roundPath(round)
	existing, _ := readParquetFile[ArchivedTrade](path)
	merged := mergeArchivedTrades(existing, records)

	if err := writeParquetFile(path, merged); err != nil {
		return fmt.Errorf("archiving round %d: %w", round, err)
	}
	return nil
}

// ReadRound reads back the archived trades for a round. A missing file is
// not an error; it returns an empty slice.
func (a *ParquetArchive) ReadRound(round int) ([]domain.Trade, error) {
	records, err := readParquetFile[ArchivedTrade](a.roundPath(round))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	trades := make([]domain.Trade, 0, len(records))
	for _, r := range records {
		trades = append(trades, domain.Trade{
			ID:         r.ID,
			BotID:      r.BotID,
			Symbol:     r.Symbol,
			Side:       domain.OrderSide(r.Side),
			Shares:     r.Shares,
			Price:      r.Price,
			Commentary: r.Commentary,
			Round:      int(r.Round),
			ExecutedAt: time.UnixMilli(r.ExecutedAt).UTC(),
		})
	}
	return trades, nil
}

// roundPath returns the filesystem path for a round's Parquet file.
// Layout: <dataDir>/arena/trades/round-<NNNN>.parquet
func (a *ParquetArchive) roundPath(round int) string {
	name := fmt.Sprintf("round-%04d.parquet", round)
	return filepath.Join(a.DataDir, "arena", "trades", name)
}

// ---------------------------------------------------------------------------
// Parquet file helpers
// ---------------------------------------------------------------------------

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// mergeArchivedTrades deduplicates records by trade ID, preferring incoming
// records over existing ones. Results are sorted by ID.
func mergeArchivedTrades(existing, incoming []ArchivedTrade) []ArchivedTrade {
	seen := make(map[int64]ArchivedTrade, len(existing)+len(incoming))
	for _, r := range existing {
		seen[r.ID] = r
	}
	for _, r := range incoming {
		seen[r.ID] = r
	}

	merged := make([]ArchivedTrade, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].ID < merged[j].ID
	})
	return merged
}
