package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/atmx/pricing-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Models and quotes never change after they are written, so entries
// are populated on write and on read miss and only expire by TTL.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, populate cache) ---

func (s *CachedStore) CreateModel(ctx context.Context, m *model.ModelSpec) error {
	if err := s.primary.CreateModel(ctx, m); err != nil {
		return err
	}
	s.cache(ctx, modelKey(m.ID), m)
	return nil
}

func (s *CachedStore) InsertQuote(ctx context.Context, q *model.Quote) error {
	if err := s.primary.InsertQuote(ctx, q); err != nil {
		return err
	}
	s.cache(ctx, quoteKey(q.ID), q)
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetModel(ctx context.Context, id string) (*model.ModelSpec, error) {
	var m model.ModelSpec
	if s.lookup(ctx, modelKey(id), &m) {
		return &m, nil
	}

	// Cache miss: read from primary.
	fresh, err := s.primary.GetModel(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache(ctx, modelKey(id), fresh)
	return fresh, nil
}

func (s *CachedStore) GetQuote(ctx context.Context, id string) (*model.Quote, error) {
	var q model.Quote
	if s.lookup(ctx, quoteKey(id), &q) {
		return &q, nil
	}

	fresh, err := s.primary.GetQuote(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache(ctx, quoteKey(id), fresh)
	return fresh, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) ListModels(ctx context.Context) ([]model.ModelSpec, error) {
	return s.primary.ListModels(ctx)
}

func (s *CachedStore) ListQuotesByModel(ctx context.Context, modelID string) ([]model.Quote, error) {
	return s.primary.ListQuotesByModel(ctx, modelID)
}

func (s *CachedStore) ListQuotesByTicker(ctx context.Context, ticker string) ([]model.Quote, error) {
	return s.primary.ListQuotesByTicker(ctx, ticker)
}

// --- Cache helpers ---

func (s *CachedStore) lookup(ctx context.Context, key string, dst any) bool {
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(data, dst) == nil
}

func (s *CachedStore) cache(ctx context.Context, key string, v any) {
	if data, err := json.Marshal(v); err == nil {
		s.rdb.Set(ctx, key, data, s.ttl)
	}
}

func modelKey(id string) string { return fmt.Sprintf("model:%s", id) }
func quoteKey(id string) string { return fmt.Sprintf("quote:%s", id) }
