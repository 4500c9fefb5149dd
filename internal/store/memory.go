package store

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/atmx/pricing-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu     sync.RWMutex
	models map[string]*model.ModelSpec
	quotes []model.Quote
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		models: make(map[string]*model.ModelSpec),
	}
}

func (s *MemoryStore) CreateModel(_ context.Context, m *model.ModelSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.models[m.ID]; ok {
		return fmt.Errorf("model %s already exists", m.ID)
	}

	// Store a copy to avoid external mutation.
	copy := *m
	s.models[m.ID] = &copy
	return nil
}

func (s *MemoryStore) GetModel(_ context.Context, id string) (*model.ModelSpec, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.models[id]
	if !ok {
		return nil, fmt.Errorf("%w: model %s", ErrNotFound, id)
	}
	copy := *m
	return &copy, nil
}

func (s *MemoryStore) ListModels(_ context.Context) ([]model.ModelSpec, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	models := make([]model.ModelSpec, 0, len(s.models))
	for _, m := range s.models {
		models = append(models, *m)
	}
	sort.Slice(models, func(i, j int) bool {
		return models[i].CreatedAt.After(models[j].CreatedAt)
	})
	return models, nil
}

func (s *MemoryStore) InsertQuote(_ context.Context, q *model.Quote) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.quotes = append(s.quotes, cloneQuote(q))
	return nil
}

func (s *MemoryStore) GetQuote(_ context.Context, id string) (*model.Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, q := range s.quotes {
		if q.ID == id {
			c := cloneQuote(&q)
			return &c, nil
		}
	}
	return nil, fmt.Errorf("%w: quote %s", ErrNotFound, id)
}

func (s *MemoryStore) ListQuotesByModel(_ context.Context, modelID string) ([]model.Quote, error) {
	return s.filterQuotes(func(q *model.Quote) bool {
		return slices.Contains(q.ModelIDs, modelID)
	}), nil
}

func (s *MemoryStore) ListQuotesByTicker(_ context.Context, ticker string) ([]model.Quote, error) {
	return s.filterQuotes(func(q *model.Quote) bool {
		return q.Ticker == ticker
	}), nil
}

func (s *MemoryStore) filterQuotes(keep func(*model.Quote) bool) []model.Quote {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Quote
	for i := range s.quotes {
		if keep(&s.quotes[i]) {
			result = append(result, cloneQuote(&s.quotes[i]))
		}
	}
	return result
}

// cloneQuote copies the slices a caller could otherwise mutate in place.
func cloneQuote(q *model.Quote) model.Quote {
	c := *q
	c.ModelIDs = slices.Clone(q.ModelIDs)
	c.InitialPrices = slices.Clone(q.InitialPrices)
	c.Contract.Weights = slices.Clone(q.Contract.Weights)
	c.Contract.ExerciseSteps = slices.Clone(q.Contract.ExerciseSteps)
	return c
}
