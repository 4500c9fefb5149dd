package sim

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// pathState is what one path carries from step to step.
type pathState struct {
	price    float64
	variance float64
}

// diffusion advances the continuous part of a path by one step.
type diffusion interface {
	start(st *pathState)
	step(st *pathState, dt, sqrtDt float64, rng *rand.Rand)
}

// process composes a diffusion with an optional jump component. variance
// marks processes whose variance path is worth reporting.
type process struct {
	diffusion diffusion
	jump      *Jumps
	variance  bool
}

// run fills one row of the price grid (and the variance row, if non-nil).
// prices[0] must already hold S0.
func (p process) run(prices, variances []float64, dt float64, src rand.Source) {
	rng := rand.New(src)
	sqrtDt := math.Sqrt(dt)

	st := pathState{price: prices[0]}
	p.diffusion.start(&st)
	if variances != nil {
		variances[0] = st.variance
	}

	var jumps distuv.Poisson
	var sizes distuv.LogNormal
	if p.jump != nil {
		jumps = distuv.Poisson{Lambda: p.jump.Lambda * dt, Src: src}
		sizes = distuv.LogNormal{Mu: p.jump.Mu, Sigma: p.jump.Sigma, Src: src}
	}

	for t := 1; t < len(prices); t++ {
		p.diffusion.step(&st, dt, sqrtDt, rng)
		if p.jump != nil {
			if n := jumps.Rand(); n > 0 {
				st.price *= 1 + n*(sizes.Rand()-1)
			}
		}
		prices[t] = st.price
		if variances != nil {
			variances[t] = st.variance
		}
	}
}

type gbm struct {
	mu, sigma float64
}

func (gbm) start(*pathState) {}

func (g gbm) step(st *pathState, dt, sqrtDt float64, rng *rand.Rand) {
	z := rng.NormFloat64()
	st.price *= math.Exp((g.mu-0.5*g.sigma*g.sigma)*dt + g.sigma*sqrtDt*z)
}

type ou struct {
	mu, theta, sigma float64
}

func (ou) start(*pathState) {}

func (o ou) step(st *pathState, dt, sqrtDt float64, rng *rand.Rand) {
	z := rng.NormFloat64()
	st.price += o.theta*(o.mu-st.price)*dt + o.sigma*sqrtDt*z
}

type heston struct {
	mu, kappa, theta, sigma, rho float64
	v0                           float64
	rhoBar                       float64 // sqrt(1 - rho²)
}

func newHeston(mu, kappa, theta, sigma, rho, v0 float64) heston {
	if v0 <= 0 {
		v0 = theta
	}
	return heston{
		mu: mu, kappa: kappa, theta: theta, sigma: sigma, rho: rho,
		v0:     v0,
		rhoBar: math.Sqrt(1 - rho*rho),
	}
}

func (h heston) start(st *pathState) { st.variance = h.v0 }

// step uses V[t-1] for both the price and the variance update, then floors
// the new variance at zero (full truncation).
func (h heston) step(st *pathState, dt, sqrtDt float64, rng *rand.Rand) {
	z1 := rng.NormFloat64()
	z2 := rng.NormFloat64()
	dW1 := sqrtDt * z1
	dW2 := sqrtDt * (h.rho*z1 + h.rhoBar*z2)

	v := st.variance
	sv := math.Sqrt(v)
	next := v + h.kappa*(h.theta-v)*dt + h.sigma*sv*dW2

	st.price *= math.Exp((h.mu-0.5*v)*dt + sv*dW1)
	st.variance = math.Max(next, 0)
}
