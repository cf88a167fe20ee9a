package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"

	"tradehub-rest-api/internal/model"

	"github.com/google/uuid"
)

// MySQLStore implements Store using MySQL. Used when several API instances
// share one database; SQLite remains the single-instance default.
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore creates a MySQL-backed store on an already-opened connection
// pool.
func NewMySQLStore(db *sql.DB) (*MySQLStore, error) {
	if err := createMySQLTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log.Printf("[MySQLStore] Initialized")
	return &MySQLStore{db: db}, nil
}

func createMySQLTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS trading_users (
			id VARCHAR(36) PRIMARY KEY,
			username VARCHAR(255) NOT NULL UNIQUE,
			doc MEDIUMTEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id VARCHAR(36) PRIMARY KEY,
			status VARCHAR(32) NOT NULL,
			doc MEDIUMTEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			INDEX idx_transactions_status (status)
		)`,
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// SaveUser inserts or updates the full user aggregate.
func (s *MySQLStore) SaveUser(ctx context.Context, user *model.TradingUser) error {
	doc, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}

	query := `
		INSERT INTO trading_users (id, username, doc)
		VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE username = VALUES(username), doc = VALUES(doc)`

	if _, err := s.db.ExecContext(ctx, query, user.ID.String(), user.Username, string(doc)); err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// SaveTransaction inserts or updates the full transaction aggregate.
func (s *MySQLStore) SaveTransaction(ctx context.Context, transaction *model.Transaction) error {
	doc, err := json.Marshal(transaction)
	if err != nil {
		return fmt.Errorf("failed to encode transaction: %w", err)
	}

	query := `
		INSERT INTO transactions (id, status, doc)
		VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE status = VALUES(status), doc = VALUES(doc)`

	if _, err := s.db.ExecContext(ctx, query, transaction.ID.String(), string(transaction.Status), string(doc)); err != nil {
		return fmt.Errorf("failed to upsert transaction: %w", err)
	}
	return nil
}

// DeleteTransaction removes a transaction record.
func (s *MySQLStore) DeleteTransaction(ctx context.Context, id uuid.UUID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id.String()); err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	return nil
}

// LoadAll restores every persisted user and transaction.
func (s *MySQLStore) LoadAll(ctx context.Context) ([]*model.TradingUser, []*model.Transaction, error) {
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
func (s *MySQLStore) Stats(ctx context.Context) (map[string]interface{}, error) {
	stats := map[string]interface{}{"backend": "mysql"}

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
func (s *MySQLStore) Close() error {
	return s.db.Close()
}
