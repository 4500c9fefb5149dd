package sim

import (
	"context"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// chunkSize is the number of paths a worker simulates between cancellation
// checks.
const chunkSize = 256

// Request holds the simulation controls for one call.
type Request struct {
	S0    float64 // initial price
	T     float64 // horizon
	Paths int     // M
	Steps int     // N
}

// Dt returns the step length T/N.
func (r Request) Dt() float64 { return r.T / float64(r.Steps) }

// Validate rejects non-positive path or step counts, a non-positive
// horizon and a non-finite initial price.
func (r Request) Validate() error {
	if r.Paths < 1 {
		return invalid("paths must be positive, got %d", r.Paths)
	}
	if r.Steps < 1 {
		return invalid("steps must be positive, got %d", r.Steps)
	}
	if !(r.T > 0) || math.IsInf(r.T, 0) {
		return invalid("horizon must be positive and finite, got %g", r.T)
	}
	return finite("initial price", r.S0)
}

// Result is the output of one simulation. Variance is nil for models
// without a stochastic variance.
type Result struct {
	Prices   *mat.Dense
	Variance *mat.Dense
	Dt       float64
}

// Simulator runs models over an injected Entropy.
type Simulator struct {
	Entropy Entropy
	// Workers bounds the number of goroutines; <= 0 means GOMAXPROCS.
	Workers int
}

// NewSimulator returns a Simulator drawing from e. A nil e is replaced by a
// time-seeded Entropy.
func NewSimulator(e Entropy) *Simulator {
	if e == nil {
		e = NewEntropy()
	}
	return &Simulator{Entropy: e}
}

// Asset returns a Simulator whose streams are independent from s and from
// every other asset index.
func (s *Simulator) Asset(i int) *Simulator {
	return &Simulator{Entropy: Child(s.entropy(), i), Workers: s.Workers}
}

func (s *Simulator) entropy() Entropy {
	if s.Entropy == nil {
		return NewEntropy()
	}
	return s.Entropy
}

func (s *Simulator) workers() int {
	if s.Workers > 0 {
		return s.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// Run simulates req.Paths independent paths of m. Paths are split into
// chunks that run in parallel; ctx is checked before each chunk.
func (s *Simulator) Run(ctx context.Context, m Model, req Request) (*Result, error) {
	if m == nil {
		return nil, invalid("model is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}

	proc := m.process()
	dt := req.Dt()
	cols := req.Steps + 1

	prices := mat.NewDense(req.Paths, cols, nil)
	var variance *mat.Dense
	if proc.variance {
		variance = mat.NewDense(req.Paths, cols, nil)
	}

	entropy := s.entropy()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers())

	for lo := 0; lo < req.Paths; lo += chunkSize {
		if gctx.Err() != nil {
			break
		}
		lo := lo
		hi := min(lo+chunkSize, req.Paths)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for i := lo; i < hi; i++ {
				row := prices.RawRowView(i)
				row[0] = req.S0
				var vrow []float64
				if variance != nil {
					vrow = variance.RawRowView(i)
				}
				proc.run(row, vrow, dt, entropy.Stream(i))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Result{Prices: prices, Variance: variance, Dt: dt}, nil
}

// Simulate is the one-shot form of Simulator.Run with time-seeded entropy:
// it returns the Paths×(Steps+1) price grid.
func Simulate(ctx context.Context, m Model, s0, t float64, paths, steps int) (*mat.Dense, error) {
	res, err := NewSimulator(nil).Run(ctx, m, Request{S0: s0, T: t, Paths: paths, Steps: steps})
	if err != nil {
		return nil, err
	}
	return res.Prices, nil
}
