// Package store defines the persistence interface for the pricing engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"

	"github.com/atmx/pricing-engine/internal/model"
)

// ErrNotFound is returned (wrapped) when a model or quote does not exist.
var ErrNotFound = errors.New("store: not found")

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer. Models and quotes are
// immutable once written.
type Store interface {
	// --- Model specs ---

	// CreateModel persists a new model spec.
	CreateModel(ctx context.Context, m *model.ModelSpec) error

	// GetModel retrieves a model spec by its ID.
	GetModel(ctx context.Context, id string) (*model.ModelSpec, error)

	// ListModels returns all model specs, newest first.
	ListModels(ctx context.Context) ([]model.ModelSpec, error)

	// --- Quotes ---

	// InsertQuote appends an immutable pricing record.
	InsertQuote(ctx context.Context, q *model.Quote) error

	// GetQuote retrieves a quote by its ID.
	GetQuote(ctx context.Context, id string) (*model.Quote, error)

	// ListQuotesByModel returns every quote that used the model, oldest
	// first.
	ListQuotesByModel(ctx context.Context, modelID string) ([]model.Quote, error)

	// ListQuotesByTicker returns every quote for a contract ticker, oldest
	// first.
	ListQuotesByTicker(ctx context.Context, ticker string) ([]model.Quote, error)
}
