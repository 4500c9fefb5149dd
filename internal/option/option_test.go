package option_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/atmx/pricing-engine/internal/exercise"
	"github.com/atmx/pricing-engine/internal/option"
	"github.com/atmx/pricing-engine/internal/payoff"
	"github.com/atmx/pricing-engine/internal/sim"
)

func pricer(seed uint64) *option.Pricer {
	return option.NewPricer(&sim.Simulator{Entropy: sim.Seed(seed)}, exercise.NewEngine(0, 0))
}

// flat never moves off its initial price.
var flat = sim.Stationary{Mu: 0, Sigma: 0}

func european(paths, steps int) option.Run {
	return option.Run{T: 1, Paths: paths, Steps: steps, Style: exercise.European}
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

// --- Single-asset families ---

func TestVanilla_FlatPath(t *testing.T) {
	v, err := pricer(1).Vanilla(context.Background(),
		option.VanillaTerms{Model: flat, S0: 100, Strike: 90, Type: payoff.Call}, european(10, 5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !near(v, 10) {
		t.Errorf("expected 10, got %g", v)
	}
}

func TestAsian_ConstantPathMatchesVanilla(t *testing.T) {
	ctx := context.Background()
	p := pricer(1)
	vanilla, err := p.Vanilla(ctx, option.VanillaTerms{Model: flat, S0: 100, Strike: 95, Type: payoff.Call}, european(5, 12))
	if err != nil {
		t.Fatal(err)
	}
	for _, a := range []payoff.Averaging{payoff.Arithmetic, payoff.Geometric} {
		asian, err := p.Asian(ctx, option.AsianTerms{Model: flat, S0: 100, Strike: 95, Type: payoff.Call, Averaging: a}, european(5, 12))
		if err != nil {
			t.Fatal(err)
		}
		if !near(asian, vanilla) {
			t.Errorf("%s asian %g should equal vanilla %g on a constant path", a, asian, vanilla)
		}
	}
}

func TestAsian_GeometricFullYearOfSteps(t *testing.T) {
	ctx := context.Background()
	for _, style := range []exercise.Style{exercise.European, exercise.American} {
		run := european(4, 252)
		run.Style = style
		v, err := pricer(1).Asian(ctx, option.AsianTerms{Model: flat, S0: 100, Strike: 90, Type: payoff.Call, Averaging: payoff.Geometric}, run)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", style, err)
		}
		if v != 10 {
			t.Errorf("%s: expected exactly 10, got %g", style, v)
		}
	}
}

func TestAsian_GeometricNegativePathIsNotFinite(t *testing.T) {
	crossing := sim.MeanReverting{Mu: -50, Theta: 2, Sigma: 0}
	_, err := pricer(1).Asian(context.Background(),
		option.AsianTerms{Model: crossing, S0: 1, Strike: 1, Type: payoff.Call, Averaging: payoff.Geometric}, european(2, 50))
	if !errors.Is(err, option.ErrNonFinitePrice) {
		t.Errorf("expected ErrNonFinitePrice, got %v", err)
	}
}

func TestBarrier_KnockInAndKnockOut(t *testing.T) {
	ctx := context.Background()
	rising := sim.Stationary{Mu: 0.15, Sigma: 0}
	terms := option.BarrierTerms{Model: rising, S0: 100, Strike: 100, Barrier: 110, Type: payoff.Call, Direction: payoff.Up}

	terms.Knock = payoff.KnockIn
	in, err := pricer(1).Barrier(ctx, terms, european(3, 252))
	if err != nil {
		t.Fatal(err)
	}
	want := 100*math.Exp(0.15) - 100
	if math.Abs(in-want) > 1e-8 {
		t.Errorf("knock-in: expected %g, got %g", want, in)
	}

	terms.Knock = payoff.KnockOut
	out, err := pricer(1).Barrier(ctx, terms, european(3, 252))
	if err != nil {
		t.Fatal(err)
	}
	if out != 0 {
		t.Errorf("knock-out should be worthless once the barrier is crossed, got %g", out)
	}
}

func TestDigital_CashPaysAmountOrNothing(t *testing.T) {
	m := sim.Stationary{Mu: 0, Sigma: 0.3}
	for seed := uint64(1); seed <= 20; seed++ {
		v, err := pricer(seed).Digital(context.Background(), option.DigitalTerms{
			Model: m, S0: 100, Settlement: payoff.Cash, Payoff: 7, Type: payoff.Call, Strike: 100,
		}, european(1, 20))
		if err != nil {
			t.Fatal(err)
		}
		if v != 0 && v != 7 {
			t.Fatalf("seed %d: single-path cash digital must be 0 or 7, got %g", seed, v)
		}
	}
}

func TestDigital_DoubleRange(t *testing.T) {
	ctx := context.Background()
	terms := option.DigitalTerms{Model: flat, Settlement: payoff.Cash, Payoff: 1, Double: true, Lower: 90, Upper: 110}

	terms.S0 = 100
	v, err := pricer(1).Digital(ctx, terms, european(4, 10))
	if err != nil {
		t.Fatal(err)
	}
	if v != 1 {
		t.Errorf("inside range: expected 1, got %g", v)
	}

	terms.S0 = 111
	v, err = pricer(1).Digital(ctx, terms, european(4, 10))
	if err != nil {
		t.Fatal(err)
	}
	if v != 0 {
		t.Errorf("outside range: expected 0, got %g", v)
	}

	terms.Lower, terms.Upper = 120, 80
	if _, err := pricer(1).Digital(ctx, terms, european(4, 10)); !errors.Is(err, sim.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for inverted range, got %v", err)
	}
}

func TestLookback_FixedAndFloating(t *testing.T) {
	ctx := context.Background()
	rising := sim.Stationary{Mu: 0.1, Sigma: 0}
	top := 100 * math.Exp(0.1)

	fixed, err := pricer(1).Lookback(ctx, option.LookbackTerms{Model: rising, S0: 100, Strike: 100, Type: payoff.Call}, european(2, 50))
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(fixed-(top-100)) > 1e-8 {
		t.Errorf("fixed lookback: expected %g, got %g", top-100, fixed)
	}

	// on a monotone path the running max is the terminal price
	floating, err := pricer(1).Lookback(ctx, option.LookbackTerms{Model: rising, S0: 100, Type: payoff.Call, StrikeKind: payoff.Floating}, european(2, 50))
	if err != nil {
		t.Fatal(err)
	}
	if floating != 0 {
		t.Errorf("floating lookback on a rising path: expected 0, got %g", floating)
	}
}

// --- Multi-asset families ---

func TestBasket_TwoFlatAssets(t *testing.T) {
	v, err := pricer(1).Basket(context.Background(), option.BasketTerms{
		Models:  []sim.Model{flat, flat},
		S0s:     []float64{100, 100},
		Weights: []float64{0.5, 0.5},
		Strike:  0,
		Type:    payoff.Call,
	}, european(8, 10))
	if err != nil {
		t.Fatal(err)
	}
	if !near(v, 100) {
		t.Errorf("expected 100, got %g", v)
	}
}

func TestBasket_MismatchedLengths(t *testing.T) {
	cases := map[string]option.BasketTerms{
		"empty":   {},
		"weights": {Models: []sim.Model{flat, flat}, S0s: []float64{100, 100}, Weights: []float64{1}},
		"prices":  {Models: []sim.Model{flat}, S0s: []float64{100, 100}, Weights: []float64{1}},
	}
	for name, c := range cases {
		if _, err := pricer(1).Basket(context.Background(), c, european(1, 1)); !errors.Is(err, sim.ErrInvalidArgument) {
			t.Errorf("%s: expected ErrInvalidArgument, got %v", name, err)
		}
	}
}

func TestSpread_FlatAssets(t *testing.T) {
	v, err := pricer(1).Spread(context.Background(), option.SpreadTerms{
		Models: [2]sim.Model{flat, flat},
		S0s:    [2]float64{120, 100},
		Strike: 5,
		Type:   payoff.Call,
	}, european(3, 4))
	if err != nil {
		t.Fatal(err)
	}
	if !near(v, 15) {
		t.Errorf("expected 15, got %g", v)
	}
}

// --- Exercise styles ---

func TestVanilla_AmericanAtLeastEuropean(t *testing.T) {
	ctx := context.Background()
	terms := option.VanillaTerms{Model: sim.Stationary{Mu: 0.01, Sigma: 0.25}, S0: 100, Strike: 100, Type: payoff.Put}
	run := option.Run{T: 1, Paths: 3000, Steps: 50}

	run.Style = exercise.European
	eu, err := pricer(99).Vanilla(ctx, terms, run)
	if err != nil {
		t.Fatal(err)
	}
	run.Style = exercise.American
	am, err := pricer(99).Vanilla(ctx, terms, run)
	if err != nil {
		t.Fatal(err)
	}
	if am < eu {
		t.Errorf("american %g should not be below european %g", am, eu)
	}
}

func TestRun_BermudanNeedsSchedule(t *testing.T) {
	run := option.Run{T: 1, Paths: 10, Steps: 10, Style: exercise.Bermudan}
	_, err := pricer(1).Vanilla(context.Background(), option.VanillaTerms{Model: flat, S0: 100, Strike: 100}, run)
	if !errors.Is(err, sim.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}

	run.ExerciseSteps = []int{5, 10}
	if _, err := pricer(1).Vanilla(context.Background(), option.VanillaTerms{Model: flat, S0: 100, Strike: 100}, run); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestVanilla_RejectsBeforeSimulating(t *testing.T) {
	ctx := context.Background()
	if _, err := pricer(1).Vanilla(ctx, option.VanillaTerms{S0: 100, Strike: 100}, european(1, 1)); !errors.Is(err, sim.ErrInvalidArgument) {
		t.Errorf("nil model: expected ErrInvalidArgument, got %v", err)
	}
	if _, err := pricer(1).Vanilla(ctx, option.VanillaTerms{Model: flat, S0: 100, Strike: 100}, european(0, 1)); !errors.Is(err, sim.ErrInvalidArgument) {
		t.Errorf("zero paths: expected ErrInvalidArgument, got %v", err)
	}
	if _, err := pricer(1).Vanilla(ctx, option.VanillaTerms{Model: flat, S0: 100, Strike: math.Inf(1)}, european(1, 1)); !errors.Is(err, sim.ErrInvalidArgument) {
		t.Errorf("infinite strike: expected ErrInvalidArgument, got %v", err)
	}
}
