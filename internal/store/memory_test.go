package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/atmx/pricing-engine/internal/contract"
	"github.com/atmx/pricing-engine/internal/model"
	"github.com/atmx/pricing-engine/internal/sim"
)

func TestMemoryStore_Models(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now()

	older := &model.ModelSpec{ID: "m1", Name: "gbm", Kind: sim.KindStationary, CreatedAt: now.Add(-time.Minute)}
	newer := &model.ModelSpec{ID: "m2", Name: "heston", Kind: sim.KindStochasticVolatility, CreatedAt: now}
	if err := s.CreateModel(ctx, older); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateModel(ctx, newer); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateModel(ctx, older); err == nil {
		t.Error("expected error for duplicate model id")
	}

	got, err := s.GetModel(ctx, "m1")
	if err != nil {
		t.Fatal(err)
	}
	got.Name = "mutated"
	again, _ := s.GetModel(ctx, "m1")
	if again.Name != "gbm" {
		t.Error("store should hand out copies")
	}

	list, _ := s.ListModels(ctx)
	if len(list) != 2 || list[0].ID != "m2" {
		t.Errorf("expected newest first, got %+v", list)
	}

	if _, err := s.GetModel(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_Quotes(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	quotes := []model.Quote{
		{ID: "q1", Ticker: "MC-VANILLA-CALL-EUROPEAN-K100", Family: contract.FamilyVanilla, ModelIDs: []string{"a"}},
		{ID: "q2", Ticker: "MC-SPREAD-CALL-EUROPEAN-K5", Family: contract.FamilySpread, ModelIDs: []string{"a", "b"}},
		{ID: "q3", Ticker: "MC-VANILLA-CALL-EUROPEAN-K100", Family: contract.FamilyVanilla, ModelIDs: []string{"b"}},
	}
	for i := range quotes {
		if err := s.InsertQuote(ctx, &quotes[i]); err != nil {
			t.Fatal(err)
		}
	}

	byModel, _ := s.ListQuotesByModel(ctx, "a")
	if len(byModel) != 2 || byModel[0].ID != "q1" || byModel[1].ID != "q2" {
		t.Errorf("unexpected quotes for model a: %+v", byModel)
	}

	byTicker, _ := s.ListQuotesByTicker(ctx, "MC-VANILLA-CALL-EUROPEAN-K100")
	if len(byTicker) != 2 || byTicker[1].ID != "q3" {
		t.Errorf("unexpected quotes for ticker: %+v", byTicker)
	}

	q, err := s.GetQuote(ctx, "q2")
	if err != nil {
		t.Fatal(err)
	}
	q.ModelIDs[0] = "mutated"
	again, _ := s.GetQuote(ctx, "q2")
	if again.ModelIDs[0] != "a" {
		t.Error("store should hand out deep copies of quotes")
	}

	if _, err := s.GetQuote(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
