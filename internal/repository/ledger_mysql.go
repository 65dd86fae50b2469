package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

var mysqlDialect = dialect{
	name: "mysql",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS stock (
			category VARCHAR(64) NOT NULL PRIMARY KEY,
			quantity INT NOT NULL CHECK (quantity >= 0)
		)`,
		`CREATE TABLE IF NOT EXISTS purchase_events (
			id CHAR(36) NOT NULL PRIMARY KEY,
			actor VARCHAR(128) NOT NULL,
			category VARCHAR(64) NOT NULL,
			quantity INT NOT NULL,
			created_at BIGINT NOT NULL,
			INDEX idx_purchase_actor_window (actor, category, created_at)
		)`,
		`CREATE TABLE IF NOT EXISTS meta_flags (
			meta_key VARCHAR(64) NOT NULL PRIMARY KEY,
			meta_value TEXT NOT NULL
		)`,
	},
	seedStock: `INSERT IGNORE INTO stock (category, quantity) VALUES (?, 0)`,
	incrementSQL: `INSERT INTO stock (category, quantity) VALUES (?, ?)
		ON DUPLICATE KEY UPDATE quantity = quantity + VALUES(quantity)`,
	setMetaSQL: `INSERT INTO meta_flags (meta_key, meta_value) VALUES (?, ?)
		ON DUPLICATE KEY UPDATE meta_value = VALUES(meta_value)`,
}

// MySQLLedgerRepository implements LedgerRepository using MySQL (InnoDB).
type MySQLLedgerRepository struct {
	sqlLedger
}

// NewMySQLLedgerRepository creates a new MySQL ledger repository.
func NewMySQLLedgerRepository(dsn string) (*MySQLLedgerRepository, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	repo := &MySQLLedgerRepository{sqlLedger{db: db, dialect: mysqlDialect}}
	if err := repo.createTables(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log.Println("[MySQLLedgerRepository] Initialized")
	return repo, nil
}

// Ensure MySQLLedgerRepository implements LedgerRepository
var _ LedgerRepository = (*MySQLLedgerRepository)(nil)
