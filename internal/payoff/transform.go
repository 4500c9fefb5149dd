package payoff

import (
	"fmt"
	"math"

	"github.com/atmx/pricing-engine/internal/sim"
	"gonum.org/v1/gonum/mat"
)

// RunningAverage returns the per-path running average of prices, including
// column 0:
//
//	arithmetic: avg[t] = (avg[t-1]*t + p[t]) / (t+1)
//	geometric:  avg[t] = (p[t] * avg[t-1]^t) ^ (1/(t+1))
//
// The geometric form is evaluated as avg[t-1] * (p[t]/avg[t-1])^(1/(t+1)),
// which stays finite for any number of steps. A negative price makes it NaN
// and a zero price makes it 0.
func RunningAverage(prices *mat.Dense, a Averaging) (*mat.Dense, error) {
	var next func(prev, p float64, t int) float64
	switch a {
	case Arithmetic:
		next = func(prev, p float64, t int) float64 {
			return (prev*float64(t) + p) / float64(t+1)
		}
	case Geometric:
		next = geometricStep
	default:
		return nil, fmt.Errorf("%w: unknown averaging %d", sim.ErrInvalidArgument, a)
	}
	return scan(prices, next), nil
}

func geometricStep(prev, p float64, t int) float64 {
	switch {
	case prev < 0 || p < 0 || math.IsNaN(prev) || math.IsNaN(p):
		return math.NaN()
	case prev == 0 || p == 0:
		return 0
	}
	return prev * math.Exp(math.Log(p/prev)/float64(t+1))
}

// BarrierHits returns 1 from the first step at which the path reaches the
// barrier (p >= barrier going up, p <= barrier going down) and 0 before.
// Column 0 is tested too, so a path starting beyond the barrier is hit
// from the outset.
func BarrierHits(prices *mat.Dense, d Direction, barrier float64) (*mat.Dense, error) {
	var crossed func(p float64) bool
	switch d {
	case Up:
		crossed = func(p float64) bool { return p >= barrier }
	case Down:
		crossed = func(p float64) bool { return p <= barrier }
	default:
		return nil, fmt.Errorf("%w: unknown barrier direction %d", sim.ErrInvalidArgument, d)
	}
	if err := finite("barrier", barrier); err != nil {
		return nil, err
	}

	r, c := prices.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		src, dst := prices.RawRowView(i), out.RawRowView(i)
		hit := false
		for t, p := range src[:c] {
			hit = hit || crossed(p)
			if hit {
				dst[t] = 1
			}
		}
	}
	return out, nil
}

// RunningExtremum returns the running maximum for calls and the running
// minimum for puts.
func RunningExtremum(prices *mat.Dense, t OptionType) (*mat.Dense, error) {
	switch t {
	case Call:
		return scan(prices, func(prev, p float64, _ int) float64 { return math.Max(prev, p) }), nil
	case Put:
		return scan(prices, func(prev, p float64, _ int) float64 { return math.Min(prev, p) }), nil
	}
	return nil, fmt.Errorf("%w: unknown option type %d", sim.ErrInvalidArgument, t)
}

// WeightedSum returns sum_j weights[j]*grids[j]. All grids must share a
// shape and there must be exactly one weight per grid.
func WeightedSum(grids []*mat.Dense, weights []float64) (*mat.Dense, error) {
	if len(grids) == 0 {
		return nil, fmt.Errorf("%w: weighted sum needs at least one grid", sim.ErrInvalidArgument)
	}
	if len(grids) != len(weights) {
		return nil, fmt.Errorf("%w: %d grids but %d weights", sim.ErrInvalidArgument, len(grids), len(weights))
	}
	r, c := grids[0].Dims()
	out := mat.NewDense(r, c, nil)
	var term mat.Dense
	for j, g := range grids {
		if err := sameShape(grids[0], g); err != nil {
			return nil, err
		}
		if err := finite("weight", weights[j]); err != nil {
			return nil, err
		}
		term.Scale(weights[j], g)
		out.Add(out, &term)
	}
	return out, nil
}

// Spread returns a - b.
func Spread(a, b *mat.Dense) (*mat.Dense, error) {
	if err := sameShape(a, b); err != nil {
		return nil, err
	}
	r, c := a.Dims()
	out := mat.NewDense(r, c, nil)
	out.Sub(a, b)
	return out, nil
}

func sameShape(a, b *mat.Dense) error {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	if ar != br || ac != bc {
		return fmt.Errorf("%w: grid shapes differ (%dx%d vs %dx%d)", sim.ErrInvalidArgument, ar, ac, br, bc)
	}
	return nil
}

// scan applies a left fold along every row, seeding with column 0.
func scan(prices *mat.Dense, next func(prev, p float64, t int) float64) *mat.Dense {
	r, c := prices.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		src, dst := prices.RawRowView(i), out.RawRowView(i)
		dst[0] = src[0]
		for t := 1; t < c; t++ {
			dst[t] = next(dst[t-1], src[t], t)
		}
	}
	return out
}
