package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
)

var sqliteDialect = dialect{
	name: "sqlite",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS stock (
			category TEXT PRIMARY KEY,
			quantity INTEGER NOT NULL CHECK (quantity >= 0)
		)`,
		`CREATE TABLE IF NOT EXISTS purchase_events (
			id TEXT PRIMARY KEY,
			actor TEXT NOT NULL,
			category TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_purchase_actor_window ON purchase_events(actor, category, created_at)`,
		`CREATE TABLE IF NOT EXISTS meta_flags (
			meta_key TEXT PRIMARY KEY,
			meta_value TEXT NOT NULL
		)`,
	},
	seedStock: `INSERT INTO stock (category, quantity) VALUES (?, 0) ON CONFLICT(category) DO NOTHING`,
	incrementSQL: `INSERT INTO stock (category, quantity) VALUES (?, ?)
		ON CONFLICT(category) DO UPDATE SET quantity = stock.quantity + excluded.quantity`,
	setMetaSQL: `INSERT INTO meta_flags (meta_key, meta_value) VALUES (?, ?)
		ON CONFLICT(meta_key) DO UPDATE SET meta_value = excluded.meta_value`,
}

// SQLiteLedgerRepository implements LedgerRepository using SQLite.
// A single connection serializes every transaction, which is what makes the
// quota check and the stock decrement indivisible on this backend.
type SQLiteLedgerRepository struct {
	sqlLedger
}

// NewSQLiteLedgerRepository creates a new SQLite ledger repository.
// dbPath is the path to the SQLite database file (e.g., "./data/stock.db")
func NewSQLiteLedgerRepository(dbPath string) (*SQLiteLedgerRepository, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)&_txlock=immediate", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	// SQLite connection pool settings
	db.SetMaxOpenConns(1) // SQLite only supports 1 writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0) // Keep connection alive

	repo := &SQLiteLedgerRepository{sqlLedger{db: db, dialect: sqliteDialect}}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := repo.createTables(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log.Printf("[SQLiteLedgerRepository] Initialized with database: %s", dbPath)
	return repo, nil
}

// Ensure SQLiteLedgerRepository implements LedgerRepository
var _ LedgerRepository = (*SQLiteLedgerRepository)(nil)
