// Package model defines the core domain types shared across the pricing
// engine. Reported prices use shopspring/decimal, never float64.
package model

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/atmx/pricing-engine/internal/contract"
	"github.com/atmx/pricing-engine/internal/sim"
)

// PriceScale is the number of decimal places kept on a quoted price.
const PriceScale = 8

// ModelSpec is a named, stored parameterisation of a price process.
// Specs are immutable once created.
type ModelSpec struct {
	ID        string     `json:"id" db:"id"`
	Name      string     `json:"name" db:"name"`
	Kind      sim.Kind   `json:"kind" db:"kind"`
	Params    sim.Params `json:"params" db:"params"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

// Build returns the validated sim.Model described by m.
func (m *ModelSpec) Build() (sim.Model, error) {
	return sim.New(m.Kind, m.Params)
}

// Quote is an immutable record of one pricing run.
// Schema: {models, contract, controls, seed, price, timestamp}
type Quote struct {
	ID            string            `json:"id" db:"id"`
	Ticker        string            `json:"ticker" db:"ticker"`
	Family        contract.Family   `json:"family" db:"family"`
	ModelIDs      []string          `json:"model_ids" db:"model_ids"`
	Contract      contract.Contract `json:"contract" db:"contract"`
	InitialPrices []float64         `json:"initial_prices" db:"initial_prices"`
	Maturity      float64           `json:"t" db:"maturity"`
	Paths         int               `json:"paths" db:"paths"`
	Steps         int               `json:"steps" db:"steps"`
	Seed          *uint64           `json:"seed,omitempty" db:"seed"` // entropy seed the run used
	DiscountRate  float64           `json:"discount_rate" db:"discount_rate"`
	Price         decimal.Decimal   `json:"price" db:"price"`
	DurationMS    int64             `json:"duration_ms" db:"duration_ms"`
	CreatedAt     time.Time         `json:"created_at" db:"created_at"`
}

// RoundPrice converts a simulated price to its reported decimal form.
func RoundPrice(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(PriceScale)
}
