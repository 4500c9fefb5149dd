// Package sim simulates asset price paths for Monte Carlo pricing.
//
// Five model families are supported, all driven by the same discretisation
// loop: geometric Brownian motion (Stationary), Ornstein-Uhlenbeck
// (MeanReverting), Merton jump diffusion (JumpDiffusion), Heston
// (StochasticVolatility) and Bates (StochasticVolatilityJump). A model only
// contributes its per-step update; the loop, the grid layout and the random
// streams are shared.
//
// Grids are gonum *mat.Dense values with one row per path and Steps+1
// columns. Column 0 holds the initial price for every row.
package sim

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// ErrInvalidArgument is the root error for rejected inputs. Payoff, exercise
// and option packages wrap it so callers can match with errors.Is.
var ErrInvalidArgument = errors.New("invalid argument")

// Kind names a model family.
type Kind string

const (
	KindStationary               Kind = "stationary"
	KindMeanReverting            Kind = "mean_reverting"
	KindJumpDiffusion            Kind = "jump_diffusion"
	KindStochasticVolatility     Kind = "stochastic_volatility"
	KindStochasticVolatilityJump Kind = "stochastic_volatility_jump"
)

var kindAliases = map[string]Kind{
	"stationary":                 KindStationary,
	"gbm":                        KindStationary,
	"mean_reverting":             KindMeanReverting,
	"ou":                         KindMeanReverting,
	"jump_diffusion":             KindJumpDiffusion,
	"merton":                     KindJumpDiffusion,
	"stochastic_volatility":      KindStochasticVolatility,
	"heston":                     KindStochasticVolatility,
	"stochastic_volatility_jump": KindStochasticVolatilityJump,
	"bates":                      KindStochasticVolatilityJump,
}

// ParseKind resolves a model token (canonical name or alias such as "gbm",
// "heston", "bates").
func ParseKind(tok string) (Kind, error) {
	k, ok := kindAliases[strings.ToLower(strings.TrimSpace(tok))]
	if !ok {
		names := make([]string, 0, len(kindAliases))
		for name := range kindAliases {
			names = append(names, name)
		}
		sort.Strings(names)
		return "", fmt.Errorf("%w: unknown model kind %q (expected one of %s)",
			ErrInvalidArgument, tok, strings.Join(names, ", "))
	}
	return k, nil
}

// Model is a parameterised price process. The set of implementations is
// closed: only the five model types in this package satisfy it.
type Model interface {
	Kind() Kind
	Validate() error
	process() process
}

// Params is the flat, serialisable parameter set shared by all model
// families. Fields that a family does not use are ignored.
type Params struct {
	Mu      float64 `json:"mu"`
	Sigma   float64 `json:"sigma"`
	Theta   float64 `json:"theta,omitempty"`
	Kappa   float64 `json:"kappa,omitempty"`
	Rho     float64 `json:"rho,omitempty"`
	LambdaJ float64 `json:"lambda_j,omitempty"`
	MuJ     float64 `json:"mu_j,omitempty"`
	SigmaJ  float64 `json:"sigma_j,omitempty"`
	V0      float64 `json:"v0,omitempty"`
}

var builders = map[Kind]func(Params) Model{
	KindStationary: func(p Params) Model {
		return Stationary{Mu: p.Mu, Sigma: p.Sigma}
	},
	KindMeanReverting: func(p Params) Model {
		return MeanReverting{Mu: p.Mu, Theta: p.Theta, Sigma: p.Sigma}
	},
	KindJumpDiffusion: func(p Params) Model {
		return JumpDiffusion{Mu: p.Mu, Sigma: p.Sigma, Jumps: jumpsOf(p)}
	},
	KindStochasticVolatility: func(p Params) Model {
		return StochasticVolatility{Mu: p.Mu, Kappa: p.Kappa, Theta: p.Theta, Sigma: p.Sigma, Rho: p.Rho, V0: p.V0}
	},
	KindStochasticVolatilityJump: func(p Params) Model {
		return StochasticVolatilityJump{
			Mu: p.Mu, Kappa: p.Kappa, Theta: p.Theta, Sigma: p.Sigma, Rho: p.Rho, V0: p.V0,
			Jumps: jumpsOf(p),
		}
	},
}

func jumpsOf(p Params) Jumps {
	return Jumps{Lambda: p.LambdaJ, Mu: p.MuJ, Sigma: p.SigmaJ}
}

// New builds and validates a model of the given kind.
func New(kind Kind, p Params) (Model, error) {
	k, err := ParseKind(string(kind))
	if err != nil {
		return nil, err
	}
	m := builders[k](p)
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidArgument}, args...)...)
}

// nonNegative rejects negative values and NaN.
func nonNegative(name string, v float64) error {
	if !(v >= 0) || math.IsInf(v, 0) {
		return invalid("%s must be a finite non-negative number, got %g", name, v)
	}
	return nil
}

func finite(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return invalid("%s must be finite, got %g", name, v)
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
