package repository

import (
	"context"
	"time"

	"boxshop-api/internal/model"
)

// Meta keys stored in the meta_flags table.
const (
	MetaShopOpen       = "shop_open"
	MetaStockMessageID = "stock_message_id"
)

// LedgerRepository defines ledger data access: stock quantities, the
// append-only purchase log and meta flags.
type LedgerRepository interface {
	// WithTx runs fn in a single transaction. Repository calls made with the
	// context passed to fn join that transaction.
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error

	// SeedCategories creates zero-quantity stock rows for missing categories.
	SeedCategories(ctx context.Context, categories []model.Category) error

	// GetQuantity returns on-hand stock; unknown categories yield 0.
	GetQuantity(ctx context.Context, category model.Category) (int, error)

	// GetAllStock returns every stock row ordered by category.
	GetAllStock(ctx context.Context) ([]model.StockRecord, error)

	// Increment adds amount to the category's stock.
	Increment(ctx context.Context, category model.Category, amount int) error

	// TryDecrement subtracts amount only if enough stock remains, as one
	// indivisible statement. It reports false when stock is insufficient.
	TryDecrement(ctx context.Context, category model.Category, amount int) (bool, error)

	// AppendPurchaseEvent appends to the purchase log.
	AppendPurchaseEvent(ctx context.Context, ev model.PurchaseEvent) error

	// SumWindow sums quantities of the actor's events in category strictly after cutoff.
	SumWindow(ctx context.Context, actor string, category model.Category, cutoff time.Time) (int, error)

	// EarliestInWindow returns the oldest event time strictly after cutoff,
	// or the zero time if there is none.
	EarliestInWindow(ctx context.Context, actor string, category model.Category, cutoff time.Time) (time.Time, error)

	// WindowTotals sums the actor's quantities per category strictly after cutoff.
	WindowTotals(ctx context.Context, actor string, cutoff time.Time) (map[model.Category]int, error)

	// DeletePurchaseEvents removes the actor's events, or all events when actor is empty.
	DeletePurchaseEvents(ctx context.Context, actor string) (int64, error)

	// GetMeta reads a meta flag; ok is false when the key is absent.
	GetMeta(ctx context.Context, key string) (value string, ok bool, err error)

	// SetMeta inserts or replaces a meta flag.
	SetMeta(ctx context.Context, key, value string) error

	// GetStats returns statistics about the ledger.
	GetStats(ctx context.Context) (*model.LedgerStats, error)

	// Close closes the repository connection.
	Close() error
}
