package payoff

import (
	"fmt"
	"math"

	"github.com/atmx/pricing-engine/internal/sim"
)

// ExerciseFunc is the value of exercising at one grid cell. state is the
// contract's state sequence at that cell and spot is the raw simulated price
// at the same cell. Implementations are pure and never negative.
type ExerciseFunc func(state, spot float64) float64

type intrinsicFn func(s, k float64) float64

var intrinsic = [...]intrinsicFn{
	Call: func(s, k float64) float64 { return math.Max(s-k, 0) },
	Put:  func(s, k float64) float64 { return math.Max(k-s, 0) },
}

// in-the-money tests for single-strike digitals; both are strict.
var pays = [...]func(s, k float64) bool{
	Call: func(s, k float64) bool { return s > k },
	Put:  func(s, k float64) bool { return s < k },
}

var settle = [...]func(s, amount float64) float64{
	Cash:  func(_, amount float64) float64 { return amount },
	Asset: func(s, _ float64) float64 { return s },
}

// Intrinsic pays max(s-K, 0) for calls and max(K-s, 0) for puts on the
// state value.
func Intrinsic(t OptionType, strike float64) (ExerciseFunc, error) {
	f, err := intrinsicOf(t, strike)
	if err != nil {
		return nil, err
	}
	return func(state, _ float64) float64 { return f(state, strike) }, nil
}

// Barrier reads state as the hit flag produced by BarrierHits. A knock-in
// pays the intrinsic value of spot only if the barrier has been hit; a
// knock-out only if it has not.
func Barrier(t OptionType, k Knock, strike float64) (ExerciseFunc, error) {
	f, err := intrinsicOf(t, strike)
	if err != nil {
		return nil, err
	}
	switch k {
	case KnockIn:
		return func(hit, spot float64) float64 {
			if hit == 0 {
				return 0
			}
			return f(spot, strike)
		}, nil
	case KnockOut:
		return func(hit, spot float64) float64 {
			if hit != 0 {
				return 0
			}
			return f(spot, strike)
		}, nil
	}
	return nil, fmt.Errorf("%w: unknown knock %d", sim.ErrInvalidArgument, k)
}

// Digital pays when the state is strictly above (call) or strictly below
// (put) the strike. Cash settlement pays amount, asset settlement pays the
// state value itself.
func Digital(st Settlement, t OptionType, strike, amount float64) (ExerciseFunc, error) {
	if err := checkSettlement(st); err != nil {
		return nil, err
	}
	if t != Call && t != Put {
		return nil, fmt.Errorf("%w: unknown option type %d", sim.ErrInvalidArgument, t)
	}
	if err := finite("strike", strike); err != nil {
		return nil, err
	}
	if err := finite("payoff", amount); err != nil {
		return nil, err
	}
	in, pay := pays[t], settle[st]
	return func(s, _ float64) float64 {
		if !in(s, strike) {
			return 0
		}
		return math.Max(pay(s, amount), 0)
	}, nil
}

// DoubleDigital pays when lower <= state <= upper.
func DoubleDigital(st Settlement, lower, upper, amount float64) (ExerciseFunc, error) {
	if err := checkSettlement(st); err != nil {
		return nil, err
	}
	if err := firstErr(finite("lower", lower), finite("upper", upper), finite("payoff", amount)); err != nil {
		return nil, err
	}
	if lower > upper {
		return nil, fmt.Errorf("%w: lower bound %g exceeds upper bound %g", sim.ErrInvalidArgument, lower, upper)
	}
	pay := settle[st]
	return func(s, _ float64) float64 {
		if s < lower || s > upper {
			return 0
		}
		return math.Max(pay(s, amount), 0)
	}, nil
}

// Lookback reads state as the running extremum from RunningExtremum. A
// fixed strike pays the intrinsic value of the extremum. A floating strike
// pays max(ext-spot, 0) for calls and max(spot-ext, 0) for puts; strike is
// ignored.
func Lookback(kind StrikeKind, t OptionType, strike float64) (ExerciseFunc, error) {
	switch kind {
	case Fixed:
		return Intrinsic(t, strike)
	case Floating:
		switch t {
		case Call:
			return func(ext, spot float64) float64 { return math.Max(ext-spot, 0) }, nil
		case Put:
			return func(ext, spot float64) float64 { return math.Max(spot-ext, 0) }, nil
		}
		return nil, fmt.Errorf("%w: unknown option type %d", sim.ErrInvalidArgument, t)
	}
	return nil, fmt.Errorf("%w: unknown strike kind %d", sim.ErrInvalidArgument, kind)
}

func intrinsicOf(t OptionType, strike float64) (intrinsicFn, error) {
	if t != Call && t != Put {
		return nil, fmt.Errorf("%w: unknown option type %d", sim.ErrInvalidArgument, t)
	}
	if err := finite("strike", strike); err != nil {
		return nil, err
	}
	return intrinsic[t], nil
}

func checkSettlement(st Settlement) error {
	if st != Cash && st != Asset {
		return fmt.Errorf("%w: unknown settlement %d", sim.ErrInvalidArgument, st)
	}
	return nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func finite(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %s must be finite, got %g", sim.ErrInvalidArgument, name, v)
	}
	return nil
}
