package engine

import (
	"context"
	"errors"

	"tradearena/internal/domain"
	"tradearena/internal/store"
)

// errNoPrice marks a symbol with no resolvable price. Distinct from storage
// failures so the caller can reject instead of erroring.
var errNoPrice = errors.New("no price data")

// priceSource is the slice of storage the resolver needs.
type priceSource interface {
	LastTradePrice(ctx context.Context, symbol string) (float64, error)
	GetPrice(ctx context.Context, symbol string) (float64, error)
}

// resolvePrice determines the execution price for a symbol. Agents do not
// choose prices; the engine resolves them from what it already knows:
//
//  1. the submitting bot's own position in the symbol, valued at its
//     last-known price (average cost when no price was ever observed);
//  2. the most recent trade in the symbol across all bots;
//  3. the last price supplied out of band (the refresher or the price
//     update endpoint);
//  4. otherwise the symbol is unpriceable and the order cannot proceed.
func resolvePrice(ctx context.Context, src priceSource, positions []domain.Position, symbol string) (float64, error) {
	if pos := domain.FindPosition(positions, symbol); pos != nil {
		if pos.LastPrice > 0 {
			return pos.LastPrice, nil
		}
		if pos.AvgCost > 0 {
			return pos.AvgCost, nil
		}
	}

	price, err := src.LastTradePrice(ctx, symbol)
	if err == nil {
		return price, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return 0, err
	}

	price, err = src.GetPrice(ctx, symbol)
	if err == nil {
		return price, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return 0, err
	}

	return 0, errNoPrice
}
