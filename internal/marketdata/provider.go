// Package marketdata fetches symbol histories, the scan universe and
// trade-seat disclosures from the upstream quote service.
package marketdata

import (
	"context"
	"time"

	"github.com/vkulagin/stockscan/internal/model"
)

// HistoryProvider returns a symbol's daily bars for the trailing lookback,
// ordered by strictly increasing date.
type HistoryProvider interface {
	History(ctx context.Context, symbol string, lookbackDays int) ([]model.PricePoint, error)
}

// UniverseProvider lists the candidate symbols for a scan date.
type UniverseProvider interface {
	ListSymbols(ctx context.Context, date time.Time) ([]model.SymbolInfo, error)
}

// DisclosureProvider returns the trade-seat names disclosed for a symbol on
// a date, empty if none.
type DisclosureProvider interface {
	Disclosures(ctx context.Context, symbol string, date time.Time) ([]string, error)
}
