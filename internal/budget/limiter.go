// Package budget bounds the simulation work the service accepts.
//
// A pricing request costs assets*paths*(steps+1) grid cells. The limiter
// rejects single requests above a per-request ceiling and requests that
// would push the cells currently being simulated past a global ceiling.
package budget

import (
	"errors"
	"math"
	"sync"
)

var (
	// ErrRequestTooLarge is returned when a single request costs more than
	// MaxPerRequest.
	ErrRequestTooLarge = errors.New("budget: request exceeds per-request work limit")

	// ErrCapacityExceeded is returned when admitting the request would push
	// in-flight work beyond MaxInFlight.
	ErrCapacityExceeded = errors.New("budget: in-flight work limit exceeded")
)

// WorkLimiter enforces work limits. A zero limit disables that check.
type WorkLimiter struct {
	// MaxPerRequest is the largest cost a single request may have.
	MaxPerRequest int64

	// MaxInFlight is the largest total cost of requests being priced at
	// the same time.
	MaxInFlight int64
}

// NewWorkLimiter creates a limiter with the given ceilings. Negative values
// are treated as zero (unlimited).
func NewWorkLimiter(maxPerRequest, maxInFlight int64) *WorkLimiter {
	return &WorkLimiter{
		MaxPerRequest: max(maxPerRequest, 0),
		MaxInFlight:   max(maxInFlight, 0),
	}
}

// Cost returns assets*paths*(steps+1), saturating at math.MaxInt64.
func Cost(assets, paths, steps int) int64 {
	if assets <= 0 || paths <= 0 || steps < 0 {
		return 0
	}
	cost := int64(1)
	for _, f := range []int64{int64(assets), int64(paths), int64(steps) + 1} {
		if cost > math.MaxInt64/f {
			return math.MaxInt64
		}
		cost *= f
	}
	return cost
}

// CheckLimit validates whether a request of the given cost may start while
// inFlight cells are already being simulated.
func (l *WorkLimiter) CheckLimit(cost, inFlight int64) error {
	// 1. Per-request limit.
	if l.MaxPerRequest > 0 && cost > l.MaxPerRequest {
		return ErrRequestTooLarge
	}

	// 2. Aggregate in-flight limit.
	if l.MaxInFlight > 0 && cost > l.MaxInFlight-inFlight {
		return ErrCapacityExceeded
	}

	return nil
}

// Gate tracks in-flight work against a WorkLimiter.
type Gate struct {
	limiter *WorkLimiter

	mu       sync.Mutex
	inFlight int64
}

func NewGate(l *WorkLimiter) *Gate {
	if l == nil {
		l = &WorkLimiter{}
	}
	return &Gate{limiter: l}
}

// Acquire admits a request of the given cost. The returned release func
// must be called once the request finishes; it is safe to call more than
// once.
func (g *Gate) Acquire(cost int64) (release func(), err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.limiter.CheckLimit(cost, g.inFlight); err != nil {
		return nil, err
	}
	g.inFlight += cost

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			g.inFlight -= cost
			g.mu.Unlock()
		})
	}, nil
}

// InFlight returns the cost currently admitted.
func (g *Gate) InFlight() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inFlight
}
