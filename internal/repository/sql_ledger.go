package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"boxshop-api/internal/model"
)

// dialect captures the SQL differences between the database/sql backends.
// Queries are written with '?' placeholders and rebound per dialect.
type dialect struct {
	name         string
	numbered     bool // $1, $2 ... placeholders
	schema       []string
	seedStock    string
	incrementSQL string
	setMetaSQL   string
}

func (d dialect) bind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// sqlLedger implements LedgerRepository on database/sql. Timestamps are
// stored as unix seconds.
type sqlLedger struct {
	db      *sql.DB
	dialect dialect
}

func (r *sqlLedger) createTables(ctx context.Context) error {
	for _, stmt := range r.dialect.schema {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (r *sqlLedger) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return conn(ctx, r.db).ExecContext(ctx, r.dialect.bind(query), args...)
}

func (r *sqlLedger) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return conn(ctx, r.db).QueryContext(ctx, r.dialect.bind(query), args...)
}

func (r *sqlLedger) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return conn(ctx, r.db).QueryRowContext(ctx, r.dialect.bind(query), args...)
}

// WithTx runs fn in a single transaction.
func (r *sqlLedger) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.db, fn)
}

// SeedCategories creates zero-quantity stock rows for missing categories.
func (r *sqlLedger) SeedCategories(ctx context.Context, categories []model.Category) error {
	for _, c := range categories {
		if _, err := r.exec(ctx, r.dialect.seedStock, string(c)); err != nil {
			return fmt.Errorf("failed to seed category %s: %w", c, err)
		}
	}
	return nil
}

// GetQuantity returns on-hand stock; unknown categories yield 0.
func (r *sqlLedger) GetQuantity(ctx context.Context, category model.Category) (int, error) {
	var qty int
	err := r.queryRow(ctx, `SELECT quantity FROM stock WHERE category = ?`, string(category)).Scan(&qty)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get quantity: %w", err)
	}
	return qty, nil
}

// GetAllStock returns every stock row ordered by category.
func (r *sqlLedger) GetAllStock(ctx context.Context) ([]model.StockRecord, error) {
	rows, err := r.query(ctx, `SELECT category, quantity FROM stock ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("failed to list stock: %w", err)
	}
	defer rows.Close()

	var out []model.StockRecord
	for rows.Next() {
		var (
			category string
			rec      model.StockRecord
		)
		if err := rows.Scan(&category, &rec.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan stock: %w", err)
		}
		rec.Category = model.Category(category)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list stock: %w", err)
	}
	return out, nil
}

// Increment adds amount to the category's stock, creating the row if needed.
func (r *sqlLedger) Increment(ctx context.Context, category model.Category, amount int) error {
	if _, err := r.exec(ctx, r.dialect.incrementSQL, string(category), amount); err != nil {
		return fmt.Errorf("failed to increment stock: %w", err)
	}
	return nil
}

// TryDecrement subtracts amount only if enough stock remains.
func (r *sqlLedger) TryDecrement(ctx context.Context, category model.Category, amount int) (bool, error) {
	res, err := r.exec(ctx,
		`UPDATE stock SET quantity = quantity - ? WHERE category = ? AND quantity >= ?`,
		amount, string(category), amount)
	if err != nil {
		return false, fmt.Errorf("failed to decrement stock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to decrement stock: %w", err)
	}
	return n == 1, nil
}

// AppendPurchaseEvent appends to the purchase log.
func (r *sqlLedger) AppendPurchaseEvent(ctx context.Context, ev model.PurchaseEvent) error {
	_, err := r.exec(ctx,
		`INSERT INTO purchase_events (id, actor, category, quantity, created_at) VALUES (?, ?, ?, ?, ?)`,
		ev.ID, ev.Actor, string(ev.Category), ev.Quantity, ev.Timestamp.Unix())
	if err != nil {
		return fmt.Errorf("failed to append purchase event: %w", err)
	}
	return nil
}

// SumWindow sums the actor's quantities in category strictly after cutoff.
func (r *sqlLedger) SumWindow(ctx context.Context, actor string, category model.Category, cutoff time.Time) (int, error) {
	var total int
	err := r.queryRow(ctx, `
		SELECT COALESCE(SUM(quantity), 0)
		FROM purchase_events
		WHERE actor = ? AND category = ? AND created_at > ?`,
		actor, string(category), cutoff.Unix()).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum window: %w", err)
	}
	return total, nil
}

// EarliestInWindow returns the oldest event time strictly after cutoff.
func (r *sqlLedger) EarliestInWindow(ctx context.Context, actor string, category model.Category, cutoff time.Time) (time.Time, error) {
	var earliest sql.NullInt64
	err := r.queryRow(ctx, `
		SELECT MIN(created_at)
		FROM purchase_events
		WHERE actor = ? AND category = ? AND created_at > ?`,
		actor, string(category), cutoff.Unix()).Scan(&earliest)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get earliest event: %w", err)
	}
	if !earliest.Valid {
		return time.Time{}, nil
	}
	return time.Unix(earliest.Int64, 0).UTC(), nil
}

// WindowTotals sums the actor's quantities per category strictly after cutoff.
func (r *sqlLedger) WindowTotals(ctx context.Context, actor string, cutoff time.Time) (map[model.Category]int, error) {
	rows, err := r.query(ctx, `
		SELECT category, COALESCE(SUM(quantity), 0)
		FROM purchase_events
		WHERE actor = ? AND created_at > ?
		GROUP BY category`,
		actor, cutoff.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to sum window totals: %w", err)
	}
	defer rows.Close()

	totals := make(map[model.Category]int)
	for rows.Next() {
		var (
			category string
			total    int
		)
		if err := rows.Scan(&category, &total); err != nil {
			return nil, fmt.Errorf("failed to scan window totals: %w", err)
		}
		totals[model.Category(category)] = total
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to sum window totals: %w", err)
	}
	return totals, nil
}

// DeletePurchaseEvents removes the actor's events, or all events when actor is empty.
func (r *sqlLedger) DeletePurchaseEvents(ctx context.Context, actor string) (int64, error) {
	var (
		res sql.Result
		err error
	)
	if actor == "" {
		res, err = r.exec(ctx, `DELETE FROM purchase_events`)
	} else {
		res, err = r.exec(ctx, `DELETE FROM purchase_events WHERE actor = ?`, actor)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to delete purchase events: %w", err)
	}
	return res.RowsAffected()
}

// GetMeta reads a meta flag.
func (r *sqlLedger) GetMeta(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.queryRow(ctx, `SELECT meta_value FROM meta_flags WHERE meta_key = ?`, key).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get meta %s: %w", key, err)
	}
	return value, true, nil
}

// SetMeta inserts or replaces a meta flag.
func (r *sqlLedger) SetMeta(ctx context.Context, key, value string) error {
	if _, err := r.exec(ctx, r.dialect.setMetaSQL, key, value); err != nil {
		return fmt.Errorf("failed to set meta %s: %w", key, err)
	}
	return nil
}

// GetStats returns statistics about the ledger.
func (r *sqlLedger) GetStats(ctx context.Context) (*model.LedgerStats, error) {
	stock, err := r.GetAllStock(ctx)
	if err != nil {
		return nil, err
	}

	stats := &model.LedgerStats{Backend: r.dialect.name, Stock: stock}
	if err := r.queryRow(ctx, `SELECT COUNT(*) FROM purchase_events`).Scan(&stats.PurchaseEvents); err != nil {
		return nil, fmt.Errorf("failed to count purchase events: %w", err)
	}

	var last sql.NullInt64
	if err := r.queryRow(ctx, `SELECT MAX(created_at) FROM purchase_events`).Scan(&last); err == nil && last.Valid {
		t := time.Unix(last.Int64, 0).UTC()
		stats.LastPurchase = &t
	}
	return stats, nil
}

// Close closes the database connection pool.
func (r *sqlLedger) Close() error {
	return r.db.Close()
}
