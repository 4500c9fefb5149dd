// Package exercise values a state sequence under European, American or
// Bermudan exercise and averages the result across paths.
package exercise

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"
	"strings"

	"github.com/atmx/pricing-engine/internal/payoff"
	"github.com/atmx/pricing-engine/internal/sim"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

const chunkSize = 256

// Style is when a contract may be exercised.
type Style int

const (
	European Style = iota
	American
	Bermudan
)

var styles = map[string]Style{"european": European, "american": American, "bermudan": Bermudan}

// String returns the lower-case token ParseStyle accepts.
func (s Style) String() string {
	for k, v := range styles {
		if v == s {
			return k
		}
	}
	return "unknown"
}

// ParseStyle accepts "european" (default), "american" or "bermudan".
func ParseStyle(tok string) (Style, error) {
	key := strings.ToLower(strings.TrimSpace(tok))
	if key == "" {
		return European, nil
	}
	if s, ok := styles[key]; ok {
		return s, nil
	}
	return 0, fmt.Errorf("%w: unknown exercise style %q (expected one of american, bermudan, european)",
		sim.ErrInvalidArgument, tok)
}

// Input is one valuation request. State and Spot share a shape; Spot is the
// raw price grid some payoffs read alongside the state (barrier, floating
// lookback). Schedule lists the exercisable steps of a Bermudan contract.
type Input struct {
	State    *mat.Dense
	Spot     *mat.Dense
	Payoff   payoff.ExerciseFunc
	Style    Style
	Schedule []int
	Dt       float64
}

// Engine runs the backward induction.
type Engine struct {
	// DiscountRate r gives a per-step factor exp(-r*dt). Zero keeps the
	// valuation undiscounted.
	DiscountRate float64
	Workers      int
}

// NewEngine returns an Engine discounting at rate with the given worker bound.
func NewEngine(rate float64, workers int) *Engine {
	return &Engine{DiscountRate: rate, Workers: workers}
}

// ValidateSchedule checks a Bermudan schedule against a grid with steps
// columns after column 0.
func ValidateSchedule(schedule []int, steps int) error {
	if len(schedule) == 0 {
		return fmt.Errorf("%w: bermudan exercise requires at least one exercise step", sim.ErrInvalidArgument)
	}
	for _, t := range schedule {
		if t < 0 || t > steps {
			return fmt.Errorf("%w: exercise step %d outside [0, %d]", sim.ErrInvalidArgument, t, steps)
		}
	}
	return nil
}

// Price returns the mean over paths of the path value at step 0.
//
// European paths are worth the terminal exercise value, discounted over the
// whole horizon. American paths take max(exercise, discounted continuation)
// at every step going backwards; Bermudan paths only at the scheduled steps.
// The continuation is the realised value of the same path, not a regression
// estimate, so early-exercise prices carry foresight.
func (e *Engine) Price(ctx context.Context, in Input) (float64, error) {
	if in.State == nil || in.Payoff == nil {
		return 0, fmt.Errorf("%w: state grid and payoff are required", sim.ErrInvalidArgument)
	}
	spot := in.Spot
	if spot == nil {
		spot = in.State
	}
	rows, cols := in.State.Dims()
	if r, c := spot.Dims(); r != rows || c != cols {
		return 0, fmt.Errorf("%w: state is %dx%d but spot is %dx%d", sim.ErrInvalidArgument, rows, cols, r, c)
	}
	if rows == 0 || cols < 2 {
		return 0, fmt.Errorf("%w: grid needs at least one path and one step", sim.ErrInvalidArgument)
	}
	if in.Dt < 0 || math.IsNaN(in.Dt) || math.IsInf(in.Dt, 0) {
		return 0, fmt.Errorf("%w: dt must be finite and non-negative, got %g", sim.ErrInvalidArgument, in.Dt)
	}
	steps := cols - 1

	var exercisable []bool
	switch in.Style {
	case European, American:
	case Bermudan:
		if err := ValidateSchedule(in.Schedule, steps); err != nil {
			return 0, err
		}
		exercisable = make([]bool, cols)
		for _, t := range in.Schedule {
			exercisable[t] = true
		}
	default:
		return 0, fmt.Errorf("%w: unknown exercise style %d", sim.ErrInvalidArgument, in.Style)
	}

	df := math.Exp(-e.DiscountRate * in.Dt)
	value := e.pathValue(in.Style, in.Payoff, df, steps, exercisable)

	values := make([]float64, rows)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers())
	for lo := 0; lo < rows; lo += chunkSize {
		if gctx.Err() != nil {
			break
		}
		lo := lo
		hi := min(lo+chunkSize, rows)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for i := lo; i < hi; i++ {
				values[i] = value(in.State.RawRowView(i), spot.RawRowView(i))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return stat.Mean(values, nil), nil
}

func (e *Engine) pathValue(style Style, ex payoff.ExerciseFunc, df float64, steps int, exercisable []bool) func(state, spot []float64) float64 {
	if style == European {
		horizon := math.Pow(df, float64(steps))
		return func(state, spot []float64) float64 {
			return horizon * ex(state[steps], spot[steps])
		}
	}
	return func(state, spot []float64) float64 {
		v := ex(state[steps], spot[steps])
		for t := steps - 1; t >= 0; t-- {
			v *= df
			if exercisable == nil || exercisable[t] {
				v = math.Max(ex(state[t], spot[t]), v)
			}
		}
		return v
	}
}

func (e *Engine) workers() int {
	if e.Workers > 0 {
		return e.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// Steps returns the sorted, de-duplicated form of a schedule.
func Steps(schedule []int) []int {
	out := append([]int(nil), schedule...)
	sort.Ints(out)
	n := 0
	for i, t := range out {
		if i == 0 || t != out[n-1] {
			out[n] = t
			n++
		}
	}
	return out[:n]
}
