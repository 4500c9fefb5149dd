// Package contract handles option contract validation, resolution of the
// string tokens into typed pricing terms, and the canonical ticker used to
// index stored quotes.
package contract

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/atmx/pricing-engine/internal/exercise"
	"github.com/atmx/pricing-engine/internal/payoff"
	"github.com/atmx/pricing-engine/internal/sim"
)

type Family string

// Supported contract families.
const (
	FamilyVanilla  Family = "VANILLA"
	FamilyAsian    Family = "ASIAN"
	FamilyBarrier  Family = "BARRIER"
	FamilyBasket   Family = "BASKET"
	FamilyDigital  Family = "DIGITAL"
	FamilyLookback Family = "LOOKBACK"
	FamilySpread   Family = "SPREAD"
)

// validFamilies maps each family to its number of underlyings; 0 means
// "one or more".
var validFamilies = map[Family]int{
	FamilyVanilla:  1,
	FamilyAsian:    1,
	FamilyBarrier:  1,
	FamilyBasket:   0,
	FamilyDigital:  1,
	FamilyLookback: 1,
	FamilySpread:   2,
}

// tickerRegex matches: MC-{family}-{CALL|PUT|RANGE}-{style}[-{terms}]
// Example: MC-BARRIER-CALL-AMERICAN-K100-B120-UP-OUT
var tickerRegex = regexp.MustCompile(
	`^MC-([A-Z]+)-(CALL|PUT|RANGE)-(EUROPEAN|AMERICAN|BERMUDAN)(?:-(.+))?$`,
)

var (
	ErrInvalidTicker = errors.New("contract: invalid ticker format")
	ErrInvalidFamily = errors.New("contract: unsupported contract family")
)

// Contract is the wire form of an option contract. Token fields are
// case-insensitive and fall back to the defaults of the payoff package when
// empty.
type Contract struct {
	Family        Family           `json:"family"`
	OptionType    string           `json:"option_type,omitempty"`
	Style         string           `json:"style,omitempty"`
	ExerciseSteps []int            `json:"exercise_steps,omitempty"`
	Strike        decimal.Decimal  `json:"strike"`
	Barrier       *decimal.Decimal `json:"barrier,omitempty"`
	Direction     string           `json:"direction,omitempty"`
	Knock         string           `json:"knock,omitempty"`
	Averaging     string           `json:"averaging,omitempty"`
	Settlement    string           `json:"settlement,omitempty"`
	Payoff        decimal.Decimal  `json:"payoff,omitempty"`
	Lower         *decimal.Decimal `json:"lower,omitempty"`
	Upper         *decimal.Decimal `json:"upper,omitempty"`
	StrikeKind    string           `json:"strike_kind,omitempty"`
	Weights       []float64        `json:"weights,omitempty"`
}

// Terms is a resolved contract.
type Terms struct {
	Family     Family
	Type       payoff.OptionType
	Style      exercise.Style
	Schedule   []int
	Strike     float64
	Barrier    float64
	Direction  payoff.Direction
	Knock      payoff.Knock
	Averaging  payoff.Averaging
	Settlement payoff.Settlement
	Payoff     float64
	Double     bool
	Lower      float64
	Upper      float64
	StrikeKind payoff.StrikeKind
	Weights    []float64
}

// Assets returns how many underlyings the family prices; 0 means "one or
// more" (basket).
func (f Family) Assets() int { return validFamilies[f] }

func (f Family) Valid() bool {
	_, ok := validFamilies[f]
	return ok
}

// Resolve validates the contract and parses its tokens. Family-specific
// terms are checked here; run controls and models are checked by the
// pricer.
func (c Contract) Resolve() (*Terms, error) {
	fam := Family(strings.ToUpper(string(c.Family)))
	if !fam.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFamily, c.Family)
	}
	t := &Terms{
		Family:   fam,
		Strike:   c.Strike.InexactFloat64(),
		Payoff:   c.Payoff.InexactFloat64(),
		Schedule: exercise.Steps(c.ExerciseSteps),
		Weights:  c.Weights,
	}

	var err error
	if t.Type, err = payoff.ParseOptionType(c.OptionType); err != nil {
		return nil, err
	}
	if t.Style, err = exercise.ParseStyle(c.Style); err != nil {
		return nil, err
	}
	if t.Style == exercise.Bermudan && len(t.Schedule) == 0 {
		return nil, invalid("bermudan contracts need exercise_steps")
	}

	switch fam {
	case FamilyAsian:
		t.Averaging, err = payoff.ParseAveraging(c.Averaging)
	case FamilyBarrier:
		if c.Barrier == nil {
			return nil, invalid("barrier contracts need a barrier level")
		}
		t.Barrier = c.Barrier.InexactFloat64()
		if t.Direction, err = payoff.ParseDirection(c.Direction); err != nil {
			return nil, err
		}
		t.Knock, err = payoff.ParseKnock(c.Knock)
	case FamilyBasket:
		if len(c.Weights) == 0 {
			return nil, invalid("basket contracts need weights")
		}
	case FamilyDigital:
		if t.Settlement, err = payoff.ParseSettlement(c.Settlement); err != nil {
			return nil, err
		}
		if (c.Lower == nil) != (c.Upper == nil) {
			return nil, invalid("range digitals need both lower and upper")
		}
		if c.Lower != nil {
			t.Double = true
			t.Lower, t.Upper = c.Lower.InexactFloat64(), c.Upper.InexactFloat64()
			if t.Lower > t.Upper {
				return nil, invalid("lower %s exceeds upper %s", c.Lower, c.Upper)
			}
		}
		if t.Settlement == payoff.Cash && !c.Payoff.IsPositive() {
			return nil, invalid("cash digitals need a positive payoff")
		}
	case FamilyLookback:
		t.StrikeKind, err = payoff.ParseStrikeKind(c.StrikeKind)
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Ticker renders the canonical identifier of a contract:
// MC-{family}-{CALL|PUT|RANGE}-{style}[-{terms}]. Equivalent contracts
// render the same ticker. c must resolve.
func (c Contract) Ticker() (string, error) {
	t, err := c.Resolve()
	if err != nil {
		return "", err
	}
	kind := strings.ToUpper(t.Type.String())
	if t.Double {
		kind = "RANGE"
	}
	parts := []string{"MC", string(t.Family), kind, strings.ToUpper(t.Style.String())}

	if !t.Double && !(t.Family == FamilyLookback && t.StrikeKind == payoff.Floating) {
		parts = append(parts, "K"+c.Strike.String())
	}
	switch t.Family {
	case FamilyAsian:
		parts = append(parts, strings.ToUpper(t.Averaging.String()))
	case FamilyBarrier:
		parts = append(parts, "B"+c.Barrier.String(), strings.ToUpper(t.Direction.String()), strings.ToUpper(t.Knock.String()))
	case FamilyBasket:
		w := make([]string, len(t.Weights))
		for i, x := range t.Weights {
			w[i] = strconv.FormatFloat(x, 'g', -1, 64)
		}
		parts = append(parts, "W"+strings.Join(w, "_"))
	case FamilyDigital:
		if t.Double {
			parts = append(parts, "L"+c.Lower.String(), "U"+c.Upper.String())
		}
		parts = append(parts, strings.ToUpper(t.Settlement.String()))
		if t.Settlement == payoff.Cash {
			parts = append(parts, "P"+c.Payoff.String())
		}
	case FamilyLookback:
		parts = append(parts, strings.ToUpper(t.StrikeKind.String()))
	}
	if t.Style == exercise.Bermudan {
		s := make([]string, len(t.Schedule))
		for i, step := range t.Schedule {
			s[i] = strconv.Itoa(step)
		}
		parts = append(parts, "E"+strings.Join(s, "_"))
	}
	return strings.Join(parts, "-"), nil
}

// Ticker is a parsed ticker prefix.
type Ticker struct {
	Raw    string `json:"ticker"`
	Family Family `json:"family"`
	Kind   string `json:"kind"` // CALL, PUT or RANGE
	Style  string `json:"style"`
	Terms  string `json:"terms,omitempty"`
}

// ParseTicker parses and validates a ticker's prefix.
// Format: MC-{family}-{CALL|PUT|RANGE}-{style}[-{terms}]
func ParseTicker(ticker string) (*Ticker, error) {
	matches := tickerRegex.FindStringSubmatch(ticker)
	if matches == nil {
		return nil, fmt.Errorf("%w: %s (expected MC-{family}-{CALL|PUT|RANGE}-{style}[-{terms}])",
			ErrInvalidTicker, ticker)
	}

	fam := Family(matches[1])
	if !fam.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidFamily, fam)
	}
	if matches[2] == "RANGE" && fam != FamilyDigital {
		return nil, fmt.Errorf("%w: RANGE is only valid for DIGITAL", ErrInvalidTicker)
	}

	return &Ticker{
		Raw:    ticker,
		Family: fam,
		Kind:   matches[2],
		Style:  matches[3],
		Terms:  matches[4],
	}, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: contract: "+format, append([]any{sim.ErrInvalidArgument}, args...)...)
}
