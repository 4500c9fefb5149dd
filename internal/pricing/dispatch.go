package pricing

import (
	"context"

	"github.com/atmx/pricing-engine/internal/contract"
	"github.com/atmx/pricing-engine/internal/option"
	"github.com/atmx/pricing-engine/internal/sim"
)

// pricingInput carries a validated request to a family's pricer. models and
// s0s are index-aligned and sized for the family.
type pricingInput struct {
	models []sim.Model
	s0s    []float64
	terms  *contract.Terms
	run    option.Run
}

type priceFunc func(ctx context.Context, p *option.Pricer, in pricingInput) (float64, error)

var pricers = map[contract.Family]priceFunc{
	contract.FamilyVanilla: func(ctx context.Context, p *option.Pricer, in pricingInput) (float64, error) {
		return p.Vanilla(ctx, option.VanillaTerms{
			Model:  in.models[0],
			S0:     in.s0s[0],
			Strike: in.terms.Strike,
			Type:   in.terms.Type,
		}, in.run)
	},
	contract.FamilyAsian: func(ctx context.Context, p *option.Pricer, in pricingInput) (float64, error) {
		return p.Asian(ctx, option.AsianTerms{
			Model:     in.models[0],
			S0:        in.s0s[0],
			Strike:    in.terms.Strike,
			Type:      in.terms.Type,
			Averaging: in.terms.Averaging,
		}, in.run)
	},
	contract.FamilyBarrier: func(ctx context.Context, p *option.Pricer, in pricingInput) (float64, error) {
		return p.Barrier(ctx, option.BarrierTerms{
			Model:     in.models[0],
			S0:        in.s0s[0],
			Strike:    in.terms.Strike,
			Barrier:   in.terms.Barrier,
			Type:      in.terms.Type,
			Direction: in.terms.Direction,
			Knock:     in.terms.Knock,
		}, in.run)
	},
	contract.FamilyBasket: func(ctx context.Context, p *option.Pricer, in pricingInput) (float64, error) {
		return p.Basket(ctx, option.BasketTerms{
			Models:  in.models,
			S0s:     in.s0s,
			Weights: in.terms.Weights,
			Strike:  in.terms.Strike,
			Type:    in.terms.Type,
		}, in.run)
	},
	contract.FamilyDigital: func(ctx context.Context, p *option.Pricer, in pricingInput) (float64, error) {
		return p.Digital(ctx, option.DigitalTerms{
			Model:      in.models[0],
			S0:         in.s0s[0],
			Settlement: in.terms.Settlement,
			Payoff:     in.terms.Payoff,
			Type:       in.terms.Type,
			Strike:     in.terms.Strike,
			Double:     in.terms.Double,
			Lower:      in.terms.Lower,
			Upper:      in.terms.Upper,
		}, in.run)
	},
	contract.FamilyLookback: func(ctx context.Context, p *option.Pricer, in pricingInput) (float64, error) {
		return p.Lookback(ctx, option.LookbackTerms{
			Model:      in.models[0],
			S0:         in.s0s[0],
			Strike:     in.terms.Strike,
			Type:       in.terms.Type,
			StrikeKind: in.terms.StrikeKind,
		}, in.run)
	},
	contract.FamilySpread: func(ctx context.Context, p *option.Pricer, in pricingInput) (float64, error) {
		return p.Spread(ctx, option.SpreadTerms{
			Models: [2]sim.Model{in.models[0], in.models[1]},
			S0s:    [2]float64{in.s0s[0], in.s0s[1]},
			Strike: in.terms.Strike,
			Type:   in.terms.Type,
		}, in.run)
	},
}
