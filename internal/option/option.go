// Package option prices contract families by composing a simulator, a state
// transform, an exercise-value function and the exercise engine.
//
// Every method validates its inputs before any path is simulated.
package option

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/atmx/pricing-engine/internal/exercise"
	"github.com/atmx/pricing-engine/internal/payoff"
	"github.com/atmx/pricing-engine/internal/sim"
	"gonum.org/v1/gonum/mat"
)

// ErrNonFinitePrice is returned when the sample mean is NaN or infinite,
// for instance a geometric average over a path that went negative.
var ErrNonFinitePrice = errors.New("option: price is not finite")

// Run holds the controls shared by every family.
type Run struct {
	T     float64
	Paths int
	Steps int
	Style exercise.Style
	// ExerciseSteps is required for Bermudan exercise and ignored otherwise.
	ExerciseSteps []int
}

// Validate checks the run controls, including the Bermudan schedule.
func (r Run) Validate() error {
	if err := (sim.Request{T: r.T, Paths: r.Paths, Steps: r.Steps}).Validate(); err != nil {
		return err
	}
	switch r.Style {
	case exercise.European, exercise.American:
		return nil
	case exercise.Bermudan:
		return exercise.ValidateSchedule(r.ExerciseSteps, r.Steps)
	}
	return fmt.Errorf("%w: unknown exercise style %d", sim.ErrInvalidArgument, r.Style)
}

func (r Run) request(s0 float64) sim.Request {
	return sim.Request{S0: s0, T: r.T, Paths: r.Paths, Steps: r.Steps}
}

type VanillaTerms struct {
	Model  sim.Model
	S0     float64
	Strike float64
	Type   payoff.OptionType
}

type AsianTerms struct {
	Model     sim.Model
	S0        float64
	Strike    float64
	Type      payoff.OptionType
	Averaging payoff.Averaging
}

type BarrierTerms struct {
	Model     sim.Model
	S0        float64
	Strike    float64
	Barrier   float64
	Type      payoff.OptionType
	Direction payoff.Direction
	Knock     payoff.Knock
}

// BasketTerms prices an option on sum(Weights[j] * S_j). Models, S0s and
// Weights are index-aligned.
type BasketTerms struct {
	Models  []sim.Model
	S0s     []float64
	Weights []float64
	Strike  float64
	Type    payoff.OptionType
}

// DigitalTerms covers single-strike digitals (Strike, Type) and, when
// Double is set, range digitals (Lower, Upper).
type DigitalTerms struct {
	Model      sim.Model
	S0         float64
	Settlement payoff.Settlement
	Payoff     float64
	Type       payoff.OptionType
	Strike     float64
	Double     bool
	Lower      float64
	Upper      float64
}

type LookbackTerms struct {
	Model      sim.Model
	S0         float64
	Strike     float64
	Type       payoff.OptionType
	StrikeKind payoff.StrikeKind
}

// SpreadTerms prices an option on S_1 - S_2.
type SpreadTerms struct {
	Models [2]sim.Model
	S0s    [2]float64
	Strike float64
	Type   payoff.OptionType
}

// Pricer is the pricing facade.
type Pricer struct {
	Simulator *sim.Simulator
	Engine    *exercise.Engine
}

// NewPricer wires a Pricer. Nil arguments fall back to a time-seeded
// simulator and an undiscounted engine.
func NewPricer(s *sim.Simulator, e *exercise.Engine) *Pricer {
	if s == nil {
		s = sim.NewSimulator(nil)
	}
	if e == nil {
		e = exercise.NewEngine(0, s.Workers)
	}
	return &Pricer{Simulator: s, Engine: e}
}

func (p *Pricer) Vanilla(ctx context.Context, c VanillaTerms, r Run) (float64, error) {
	if err := prepare(r, single(c.Model, c.S0)); err != nil {
		return 0, err
	}
	ex, err := payoff.Intrinsic(c.Type, c.Strike)
	if err != nil {
		return 0, err
	}
	res, err := p.Simulator.Run(ctx, c.Model, r.request(c.S0))
	if err != nil {
		return 0, err
	}
	return p.value(ctx, r, res.Prices, nil, ex, res.Dt)
}

func (p *Pricer) Asian(ctx context.Context, c AsianTerms, r Run) (float64, error) {
	if err := prepare(r, single(c.Model, c.S0)); err != nil {
		return 0, err
	}
	ex, err := payoff.Intrinsic(c.Type, c.Strike)
	if err != nil {
		return 0, err
	}
	if c.Averaging != payoff.Arithmetic && c.Averaging != payoff.Geometric {
		return 0, fmt.Errorf("%w: unknown averaging %d", sim.ErrInvalidArgument, c.Averaging)
	}
	res, err := p.Simulator.Run(ctx, c.Model, r.request(c.S0))
	if err != nil {
		return 0, err
	}
	avg, err := payoff.RunningAverage(res.Prices, c.Averaging)
	if err != nil {
		return 0, err
	}
	return p.value(ctx, r, avg, nil, ex, res.Dt)
}

func (p *Pricer) Barrier(ctx context.Context, c BarrierTerms, r Run) (float64, error) {
	if err := prepare(r, single(c.Model, c.S0)); err != nil {
		return 0, err
	}
	ex, err := payoff.Barrier(c.Type, c.Knock, c.Strike)
	if err != nil {
		return 0, err
	}
	if c.Direction != payoff.Up && c.Direction != payoff.Down {
		return 0, fmt.Errorf("%w: unknown barrier direction %d", sim.ErrInvalidArgument, c.Direction)
	}
	if math.IsNaN(c.Barrier) || math.IsInf(c.Barrier, 0) {
		return 0, fmt.Errorf("%w: barrier must be finite, got %g", sim.ErrInvalidArgument, c.Barrier)
	}
	res, err := p.Simulator.Run(ctx, c.Model, r.request(c.S0))
	if err != nil {
		return 0, err
	}
	hits, err := payoff.BarrierHits(res.Prices, c.Direction, c.Barrier)
	if err != nil {
		return 0, err
	}
	return p.value(ctx, r, hits, res.Prices, ex, res.Dt)
}

func (p *Pricer) Basket(ctx context.Context, c BasketTerms, r Run) (float64, error) {
	n := len(c.Models)
	if n == 0 || len(c.S0s) != n || len(c.Weights) != n {
		return 0, fmt.Errorf("%w: basket needs matching non-empty models, prices and weights (got %d, %d, %d)",
			sim.ErrInvalidArgument, n, len(c.S0s), len(c.Weights))
	}
	assets := make([]asset, n)
	for j := range c.Models {
		assets[j] = asset{c.Models[j], c.S0s[j]}
		if math.IsNaN(c.Weights[j]) || math.IsInf(c.Weights[j], 0) {
			return 0, fmt.Errorf("%w: weight %d must be finite, got %g", sim.ErrInvalidArgument, j, c.Weights[j])
		}
	}
	if err := prepare(r, assets...); err != nil {
		return 0, err
	}
	ex, err := payoff.Intrinsic(c.Type, c.Strike)
	if err != nil {
		return 0, err
	}

	grids := make([]*mat.Dense, n)
	var dt float64
	for j, a := range assets {
		res, err := p.Simulator.Asset(j).Run(ctx, a.model, r.request(a.s0))
		if err != nil {
			return 0, err
		}
		grids[j], dt = res.Prices, res.Dt
	}
	basket, err := payoff.WeightedSum(grids, c.Weights)
	if err != nil {
		return 0, err
	}
	return p.value(ctx, r, basket, nil, ex, dt)
}

func (p *Pricer) Digital(ctx context.Context, c DigitalTerms, r Run) (float64, error) {
	if err := prepare(r, single(c.Model, c.S0)); err != nil {
		return 0, err
	}
	var ex payoff.ExerciseFunc
	var err error
	if c.Double {
		ex, err = payoff.DoubleDigital(c.Settlement, c.Lower, c.Upper, c.Payoff)
	} else {
		ex, err = payoff.Digital(c.Settlement, c.Type, c.Strike, c.Payoff)
	}
	if err != nil {
		return 0, err
	}
	res, err := p.Simulator.Run(ctx, c.Model, r.request(c.S0))
	if err != nil {
		return 0, err
	}
	return p.value(ctx, r, res.Prices, nil, ex, res.Dt)
}

func (p *Pricer) Lookback(ctx context.Context, c LookbackTerms, r Run) (float64, error) {
	if err := prepare(r, single(c.Model, c.S0)); err != nil {
		return 0, err
	}
	ex, err := payoff.Lookback(c.StrikeKind, c.Type, c.Strike)
	if err != nil {
		return 0, err
	}
	res, err := p.Simulator.Run(ctx, c.Model, r.request(c.S0))
	if err != nil {
		return 0, err
	}
	ext, err := payoff.RunningExtremum(res.Prices, c.Type)
	if err != nil {
		return 0, err
	}
	return p.value(ctx, r, ext, res.Prices, ex, res.Dt)
}

func (p *Pricer) Spread(ctx context.Context, c SpreadTerms, r Run) (float64, error) {
	if err := prepare(r, asset{c.Models[0], c.S0s[0]}, asset{c.Models[1], c.S0s[1]}); err != nil {
		return 0, err
	}
	ex, err := payoff.Intrinsic(c.Type, c.Strike)
	if err != nil {
		return 0, err
	}
	first, err := p.Simulator.Asset(0).Run(ctx, c.Models[0], r.request(c.S0s[0]))
	if err != nil {
		return 0, err
	}
	second, err := p.Simulator.Asset(1).Run(ctx, c.Models[1], r.request(c.S0s[1]))
	if err != nil {
		return 0, err
	}
	spread, err := payoff.Spread(first.Prices, second.Prices)
	if err != nil {
		return 0, err
	}
	return p.value(ctx, r, spread, first.Prices, ex, first.Dt)
}

func (p *Pricer) value(ctx context.Context, r Run, state, spot *mat.Dense, ex payoff.ExerciseFunc, dt float64) (float64, error) {
	v, err := p.Engine.Price(ctx, exercise.Input{
		State:    state,
		Spot:     spot,
		Payoff:   ex,
		Style:    r.Style,
		Schedule: r.ExerciseSteps,
		Dt:       dt,
	})
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: got %g", ErrNonFinitePrice, v)
	}
	return v, nil
}

type asset struct {
	model sim.Model
	s0    float64
}

func single(m sim.Model, s0 float64) asset { return asset{m, s0} }

// prepare validates the run and every underlying before simulation starts.
func prepare(r Run, assets ...asset) error {
	if err := r.Validate(); err != nil {
		return err
	}
	for j, a := range assets {
		if a.model == nil {
			return fmt.Errorf("%w: asset %d has no model", sim.ErrInvalidArgument, j)
		}
		if err := a.model.Validate(); err != nil {
			return err
		}
		if math.IsNaN(a.s0) || math.IsInf(a.s0, 0) {
			return fmt.Errorf("%w: asset %d initial price must be finite, got %g", sim.ErrInvalidArgument, j, a.s0)
		}
	}
	return nil
}
