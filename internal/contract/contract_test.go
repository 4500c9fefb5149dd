package contract

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/atmx/pricing-engine/internal/exercise"
	"github.com/atmx/pricing-engine/internal/payoff"
	"github.com/atmx/pricing-engine/internal/sim"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func dp(f float64) *decimal.Decimal {
	v := d(f)
	return &v
}

func TestParseTicker_Valid(t *testing.T) {
	tk, err := ParseTicker("MC-BARRIER-CALL-AMERICAN-K100-B120-UP-OUT")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tk.Family != FamilyBarrier {
		t.Errorf("expected family=BARRIER, got %s", tk.Family)
	}
	if tk.Kind != "CALL" {
		t.Errorf("expected kind=CALL, got %s", tk.Kind)
	}
	if tk.Style != "AMERICAN" {
		t.Errorf("expected style=AMERICAN, got %s", tk.Style)
	}
	if tk.Terms != "K100-B120-UP-OUT" {
		t.Errorf("expected terms=K100-B120-UP-OUT, got %s", tk.Terms)
	}
}

func TestParseTicker_InvalidFormat(t *testing.T) {
	tests := []string{
		"",
		"INVALID",
		"MC-VANILLA",
		"MC-VANILLA-CALL",
		"MC-VANILLA-STRADDLE-EUROPEAN-K100",
		"MC-VANILLA-CALL-ASIAN-K100",   // not a style
		"BS-VANILLA-CALL-EUROPEAN-K100", // wrong prefix
		"MC-VANILLA-RANGE-EUROPEAN",     // RANGE is digital only
	}
	for _, ticker := range tests {
		_, err := ParseTicker(ticker)
		if err == nil {
			t.Errorf("expected error for ticker %q", ticker)
		}
	}
}

func TestParseTicker_InvalidFamily(t *testing.T) {
	_, err := ParseTicker("MC-CLIQUET-CALL-EUROPEAN-K100")
	if !errors.Is(err, ErrInvalidFamily) {
		t.Errorf("expected ErrInvalidFamily, got %v", err)
	}
}

func TestTicker_RoundTripsThroughParse(t *testing.T) {
	contracts := []Contract{
		{Family: FamilyVanilla, Strike: d(100)},
		{Family: FamilyAsian, OptionType: "put", Strike: d(95.5), Averaging: "geometric"},
		{Family: FamilyBarrier, Strike: d(100), Barrier: dp(120), Knock: "out", Style: "american"},
		{Family: FamilyBasket, Strike: d(100), Weights: []float64{0.5, 0.5}},
		{Family: FamilyDigital, Payoff: d(1), Lower: dp(90), Upper: dp(110)},
		{Family: FamilyLookback, StrikeKind: "floating", OptionType: "put"},
		{Family: FamilySpread, Strike: d(5), Style: "bermudan", ExerciseSteps: []int{10, 5}},
	}
	for _, c := range contracts {
		ticker, err := c.Ticker()
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", c.Family, err)
		}
		tk, err := ParseTicker(ticker)
		if err != nil {
			t.Fatalf("%s: ticker %q did not parse: %v", c.Family, ticker, err)
		}
		if tk.Family != c.Family {
			t.Errorf("expected family=%s, got %s", c.Family, tk.Family)
		}
	}
}

func TestTicker_Canonical(t *testing.T) {
	a := Contract{Family: "barrier", OptionType: "CALL", Strike: d(100), Barrier: dp(120), Direction: "Up", Knock: "in"}
	b := Contract{Family: FamilyBarrier, Strike: d(100), Barrier: dp(120)}
	ta, err := a.Ticker()
	if err != nil {
		t.Fatal(err)
	}
	tb, _ := b.Ticker()
	if ta != tb {
		t.Errorf("equivalent contracts should share a ticker: %s vs %s", ta, tb)
	}
	if ta != "MC-BARRIER-CALL-EUROPEAN-K100-B120-UP-IN" {
		t.Errorf("unexpected ticker %s", ta)
	}

	berm, _ := Contract{Family: FamilyVanilla, Strike: d(100), Style: "bermudan", ExerciseSteps: []int{10, 5, 10}}.Ticker()
	if berm != "MC-VANILLA-CALL-BERMUDAN-K100-E5_10" {
		t.Errorf("unexpected bermudan ticker %s", berm)
	}
	rng, _ := Contract{Family: FamilyDigital, Payoff: d(1), Lower: dp(90), Upper: dp(110)}.Ticker()
	if rng != "MC-DIGITAL-RANGE-EUROPEAN-L90-U110-CASH-P1" {
		t.Errorf("unexpected range ticker %s", rng)
	}
}

func TestResolve_Defaults(t *testing.T) {
	terms, err := Contract{Family: FamilyVanilla, Strike: d(100)}.Resolve()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if terms.Type != payoff.Call || terms.Style != exercise.European {
		t.Errorf("expected european call, got %s %s", terms.Type, terms.Style)
	}
	if terms.Strike != 100 {
		t.Errorf("expected strike=100, got %g", terms.Strike)
	}
}

func TestResolve_InvalidTerms(t *testing.T) {
	tests := map[string]Contract{
		"bad option type":    {Family: FamilyVanilla, OptionType: "straddle"},
		"bad style":          {Family: FamilyVanilla, Style: "asian"},
		"bermudan no steps":  {Family: FamilyVanilla, Style: "bermudan"},
		"barrier missing":    {Family: FamilyBarrier, Strike: d(100)},
		"bad knock":          {Family: FamilyBarrier, Barrier: dp(120), Knock: "sideways"},
		"basket no weights":  {Family: FamilyBasket},
		"half range":         {Family: FamilyDigital, Payoff: d(1), Lower: dp(90)},
		"inverted range":     {Family: FamilyDigital, Payoff: d(1), Lower: dp(110), Upper: dp(90)},
		"cash without value": {Family: FamilyDigital, Strike: d(100)},
		"bad strike kind":    {Family: FamilyLookback, StrikeKind: "moving"},
	}
	for name, c := range tests {
		if _, err := c.Resolve(); !errors.Is(err, sim.ErrInvalidArgument) {
			t.Errorf("%s: expected ErrInvalidArgument, got %v", name, err)
		}
	}
	if _, err := (Contract{Family: "CLIQUET"}).Resolve(); !errors.Is(err, ErrInvalidFamily) {
		t.Errorf("expected ErrInvalidFamily, got %v", err)
	}
}

func TestFamily_Assets(t *testing.T) {
	if FamilySpread.Assets() != 2 || FamilyVanilla.Assets() != 1 || FamilyBasket.Assets() != 0 {
		t.Error("unexpected asset counts")
	}
}
