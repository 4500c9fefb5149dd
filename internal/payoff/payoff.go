// Package payoff turns simulated price grids into the per-contract state a
// payoff reads, and defines the exercise-value functions applied to that
// state.
package payoff

import (
	"fmt"
	"sort"
	"strings"

	"github.com/atmx/pricing-engine/internal/sim"
)

// OptionType is the call/put side of a payoff.
type OptionType int

const (
	Call OptionType = iota
	Put
)

// Averaging selects the running mean an Asian contract is written on.
type Averaging int

const (
	Arithmetic Averaging = iota
	Geometric
)

// Direction says whether a barrier is crossed from below or above.
type Direction int

const (
	Up Direction = iota
	Down
)

// Knock says whether hitting the barrier activates or cancels the payoff.
type Knock int

const (
	KnockIn Knock = iota
	KnockOut
)

// Settlement is what a digital pays when in the money.
type Settlement int

const (
	Cash Settlement = iota
	Asset
)

// StrikeKind distinguishes fixed-strike from floating-strike lookbacks.
type StrikeKind int

const (
	Fixed StrikeKind = iota
	Floating
)

var (
	optionTypes = map[string]OptionType{"call": Call, "put": Put}
	averagings  = map[string]Averaging{"arithmetic": Arithmetic, "geometric": Geometric}
	directions  = map[string]Direction{"up": Up, "down": Down}
	knocks      = map[string]Knock{"in": KnockIn, "knock_in": KnockIn, "out": KnockOut, "knock_out": KnockOut}
	settlements = map[string]Settlement{"cash": Cash, "asset": Asset}
	strikeKinds = map[string]StrikeKind{"fixed": Fixed, "floating": Floating}
)

func (o OptionType) String() string { return nameOf(optionTypes, o) }
func (a Averaging) String() string  { return nameOf(averagings, a) }
func (d Direction) String() string  { return nameOf(directions, d) }
func (k Knock) String() string      { return nameOf(knocks, k) }
func (s Settlement) String() string { return nameOf(settlements, s) }
func (s StrikeKind) String() string { return nameOf(strikeKinds, s) }

// ParseOptionType accepts "call" or "put", case-insensitively. An empty
// token selects Call.
func ParseOptionType(tok string) (OptionType, error) {
	return parseToken("option type", optionTypes, tok, Call)
}

// ParseAveraging accepts "arithmetic" (default) or "geometric".
func ParseAveraging(tok string) (Averaging, error) {
	return parseToken("averaging", averagings, tok, Arithmetic)
}

// ParseDirection accepts "up" (default) or "down".
func ParseDirection(tok string) (Direction, error) {
	return parseToken("barrier direction", directions, tok, Up)
}

// ParseKnock accepts "in" (default) or "out".
func ParseKnock(tok string) (Knock, error) {
	return parseToken("knock", knocks, tok, KnockIn)
}

// ParseSettlement accepts "cash" (default) or "asset".
func ParseSettlement(tok string) (Settlement, error) {
	return parseToken("settlement", settlements, tok, Cash)
}

// ParseStrikeKind accepts "fixed" (default) or "floating".
func ParseStrikeKind(tok string) (StrikeKind, error) {
	return parseToken("strike kind", strikeKinds, tok, Fixed)
}

func parseToken[T comparable](what string, table map[string]T, tok string, def T) (T, error) {
	key := strings.ToLower(strings.TrimSpace(tok))
	if key == "" {
		return def, nil
	}
	if v, ok := table[key]; ok {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("%w: unknown %s %q (expected one of %s)",
		sim.ErrInvalidArgument, what, tok, strings.Join(keys(table), ", "))
}

func keys[T any](table map[string]T) []string {
	out := make([]string, 0, len(table))
	for k := range table {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// nameOf returns the shortest token mapping to v.
func nameOf[T comparable](table map[string]T, v T) string {
	best := ""
	for k, x := range table {
		if x == v && (best == "" || len(k) < len(best) || (len(k) == len(best) && k < best)) {
			best = k
		}
	}
	if best == "" {
		return "unknown"
	}
	return best
}
