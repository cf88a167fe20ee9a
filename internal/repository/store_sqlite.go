package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"tradehub-rest-api/internal/model"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
)

// SQLiteStore implements Store using SQLite.
// Thread-safe with WAL mode for high-concurrency reads.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteStore creates a new SQLite-backed store.
// dbPath is the path to the SQLite database file (e.g., "./data/tradehub.db")
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Open with WAL mode and other optimizations
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	// SQLite connection pool settings
	db.SetMaxOpenConns(1) // SQLite only supports 1 writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0) // Keep connection alive

	if err := createSQLiteTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log.Printf("[SQLiteStore] Initialized with database: %s", dbPath)
	return &SQLiteStore{db: db}, nil
}

// createSQLiteTables creates the user and transaction tables.
func createSQLiteTables(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS trading_users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		doc TEXT NOT NULL,
		updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
	);
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		doc TEXT NOT NULL,
		updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
	);
	CREATE INDEX IF NOT EXISTS idx_transactions_status ON transactions(status);
	`
	_, err := db.Exec(query)
	return err
}

// SaveUser inserts or updates the full user aggregate.
func (s *SQLiteStore) SaveUser(ctx context.Context, user *model.TradingUser) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}

	query := `
		INSERT INTO trading_users (id, username, doc, updated_at)
		VALUES (?, ?, ?, datetime('now'))
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			doc = excluded.doc,
			updated_at = datetime('now')`

	if _, err := s.db.ExecContext(ctx, query, user.ID.String(), user.Username, string(doc)); err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// SaveTransaction inserts or updates the full transaction aggregate.
func (s *SQLiteStore) SaveTransaction(ctx context.Context, transaction *model.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := json.Marshal(transaction)
	if err != nil {
		return fmt.Errorf("failed to encode transaction: %w", err)
	}

	query := `
		INSERT INTO transactions (id, status, doc, updated_at)
		VALUES (?, ?, ?, datetime('now'))
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			doc = excluded.doc,
			updated_at = datetime('now')`

	if _, err := s.db.ExecContext(ctx, query, transaction.ID.String(), string(transaction.Status), string(doc)); err != nil {
		return fmt.Errorf("failed to upsert transaction: %w", err)
	}
	return nil
}

// DeleteTransaction removes a transaction record.
func (s *SQLiteStore) DeleteTransaction(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id.String()); err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	return nil
}

// LoadAll restores every persisted user and transaction.
func (s *SQLiteStore) LoadAll(ctx context.Context) ([]*model.TradingUser, []*model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := loadUserDocs(ctx, s.db, `SELECT doc FROM trading_users`)
	if err != nil {
		return nil, nil, err
	}
	transactions, err := loadTransactionDocs(ctx, s.db, `SELECT doc FROM transactions`)
	if err != nil {
		return nil, nil, err
	}
	return users, transactions, nil
}

// Stats returns row counts for the admin surface.
func (s *SQLiteStore) Stats(ctx context.Context) (map[string]interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := map[string]interface{}{"backend": "sqlite"}

	var userCount, txCount int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM trading_users`).Scan(&userCount); err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&txCount); err != nil {
		return nil, fmt.Errorf("failed to count transactions: %w", err)
	}

	stats["users"] = userCount
	stats["transactions"] = txCount
	return stats, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// loadUserDocs scans JSON user documents from the given query.
func loadUserDocs(ctx context.Context, db *sql.DB, query string) ([]*model.TradingUser, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []*model.TradingUser
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		var user model.TradingUser
		if err := json.Unmarshal([]byte(doc), &user); err != nil {
			return nil, fmt.Errorf("failed to decode user doc: %w", err)
		}
		users = append(users, &user)
	}
	return users, rows.Err()
}

// loadTransactionDocs scans JSON transaction documents from the given query.
func loadTransactionDocs(ctx context.Context, db *sql.DB, query string) ([]*model.Transaction, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*model.Transaction
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan transaction row: %w", err)
		}
		var transaction model.Transaction
		if err := json.Unmarshal([]byte(doc), &transaction); err != nil {
			return nil, fmt.Errorf("failed to decode transaction doc: %w", err)
		}
		transactions = append(transactions, &transaction)
	}
	return transactions, rows.Err()
}
