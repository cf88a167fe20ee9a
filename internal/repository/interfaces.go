package repository

import (
	"context"

	"tradehub-rest-api/internal/model"

	"github.com/google/uuid"
)

// Store persists the trading system's durable state: all users (with their
// inventories, wishlists and histories) and all transactions. The encoding
// inside each backend is private; callers only see model types.
type Store interface {
	// SaveUser writes the full user aggregate.
	SaveUser(ctx context.Context, user *model.TradingUser) error

	// SaveTransaction writes the full transaction aggregate.
	SaveTransaction(ctx context.Context, transaction *model.Transaction) error

	// DeleteTransaction removes a transaction record.
	DeleteTransaction(ctx context.Context, id uuid.UUID) error

	// LoadAll restores every persisted user and transaction.
	LoadAll(ctx context.Context) ([]*model.TradingUser, []*model.Transaction, error)

	// Stats returns backend statistics for the admin surface.
	Stats(ctx context.Context) (map[string]interface{}, error)

	// Close closes the underlying connection.
	Close() error
}
