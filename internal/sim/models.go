package sim

// Stationary is geometric Brownian motion with constant drift and volatility:
//
//	S[t] = S[t-1] * exp((Mu - Sigma²/2)*dt + Sigma*sqrt(dt)*Z)
type Stationary struct {
	Mu    float64 `json:"mu"`
	Sigma float64 `json:"sigma"`
}

func (Stationary) Kind() Kind { return KindStationary }

func (m Stationary) Validate() error {
	return firstErr(finite("mu", m.Mu), nonNegative("sigma", m.Sigma))
}

func (m Stationary) process() process {
	return process{diffusion: gbm{mu: m.Mu, sigma: m.Sigma}}
}

// MeanReverting is an Ornstein-Uhlenbeck process pulled towards Mu at rate
// Theta:
//
//	S[t] = S[t-1] + Theta*(Mu - S[t-1])*dt + Sigma*sqrt(dt)*Z
//
// The process is not floored and may go negative.
type MeanReverting struct {
	Mu    float64 `json:"mu"`
	Theta float64 `json:"theta"`
	Sigma float64 `json:"sigma"`
}

func (MeanReverting) Kind() Kind { return KindMeanReverting }

func (m MeanReverting) Validate() error {
	return firstErr(finite("mu", m.Mu), nonNegative("theta", m.Theta), nonNegative("sigma", m.Sigma))
}

func (m MeanReverting) process() process {
	return process{diffusion: ou{mu: m.Mu, theta: m.Theta, sigma: m.Sigma}}
}

// Jumps parameterises the Merton jump component: the number of jumps per
// step is Poisson(Lambda*dt) and the relative jump size is
// exp(N(Mu, Sigma)) - 1.
type Jumps struct {
	Lambda float64 `json:"lambda_j"`
	Mu     float64 `json:"mu_j"`
	Sigma  float64 `json:"sigma_j"`
}

func (j Jumps) validate() error {
	return firstErr(nonNegative("lambda_j", j.Lambda), finite("mu_j", j.Mu), nonNegative("sigma_j", j.Sigma))
}

// JumpDiffusion is the Merton model: a GBM step followed by the jump
// multiplier (1 + jumps*size).
type JumpDiffusion struct {
	Mu    float64 `json:"mu"`
	Sigma float64 `json:"sigma"`
	Jumps Jumps   `json:"jumps"`
}

func (JumpDiffusion) Kind() Kind { return KindJumpDiffusion }

func (m JumpDiffusion) Validate() error {
	return firstErr(finite("mu", m.Mu), nonNegative("sigma", m.Sigma), m.Jumps.validate())
}

func (m JumpDiffusion) process() process {
	j := m.Jumps
	return process{diffusion: gbm{mu: m.Mu, sigma: m.Sigma}, jump: &j}
}

// StochasticVolatility is the Heston model with full truncation of the
// variance. V0 <= 0 starts the variance at its long-run mean Theta.
type StochasticVolatility struct {
	Mu    float64 `json:"mu"`
	Kappa float64 `json:"kappa"`
	Theta float64 `json:"theta"`
	Sigma float64 `json:"sigma"`
	Rho   float64 `json:"rho"`
	V0    float64 `json:"v0,omitempty"`
}

func (StochasticVolatility) Kind() Kind { return KindStochasticVolatility }

func (m StochasticVolatility) Validate() error {
	return validateHeston(m.Mu, m.Kappa, m.Theta, m.Sigma, m.Rho, m.V0)
}

func (m StochasticVolatility) process() process {
	return process{diffusion: newHeston(m.Mu, m.Kappa, m.Theta, m.Sigma, m.Rho, m.V0), variance: true}
}

// StochasticVolatilityJump is the Bates model: Heston dynamics with the
// Merton jump multiplier applied to every price update.
type StochasticVolatilityJump struct {
	Mu    float64 `json:"mu"`
	Kappa float64 `json:"kappa"`
	Theta float64 `json:"theta"`
	Sigma float64 `json:"sigma"`
	Rho   float64 `json:"rho"`
	V0    float64 `json:"v0,omitempty"`
	Jumps Jumps   `json:"jumps"`
}

func (StochasticVolatilityJump) Kind() Kind { return KindStochasticVolatilityJump }

func (m StochasticVolatilityJump) Validate() error {
	return firstErr(validateHeston(m.Mu, m.Kappa, m.Theta, m.Sigma, m.Rho, m.V0), m.Jumps.validate())
}

func (m StochasticVolatilityJump) process() process {
	j := m.Jumps
	return process{
		diffusion: newHeston(m.Mu, m.Kappa, m.Theta, m.Sigma, m.Rho, m.V0),
		jump:      &j,
		variance:  true,
	}
}

func validateHeston(mu, kappa, theta, sigma, rho, v0 float64) error {
	if err := firstErr(
		finite("mu", mu),
		nonNegative("kappa", kappa),
		nonNegative("theta", theta),
		nonNegative("sigma", sigma),
		finite("v0", v0),
	); err != nil {
		return err
	}
	if !(rho >= -1 && rho <= 1) {
		return invalid("rho must lie in [-1, 1], got %g", rho)
	}
	return nil
}
