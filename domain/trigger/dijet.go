// Package trigger computes the efficiency of the electron + dijet + MHT
// trigger's jet legs from per-jet single-leg efficiencies.
package trigger

import (
	"fmt"

	"wjjfit/internal/errors"

	"gonum.org/v1/gonum/stat/combin"
)

// MaxEnumeratedJets bounds the exhaustive enumeration, which visits 3^N
// jet-state assignments (59049 at the bound).
const MaxEnumeratedJets = 10

// legTolerance absorbs rounding in efficiency tables where the two tiers of
// one jet sum to 1.
const legTolerance = 1e-9

// Jet states in an assignment
const (
	stateFail  = 0 // fails both legs
	stateLoose = 1 // passes the loose leg but not the tight leg (tier B)
	stateTight = 2 // passes the tight leg (tier A)
)

// Rule decides whether an assignment with the given numbers of tight and
// loose-only jets fires the trigger.
type Rule int

const (
	// AnyTightOrTwoLoose fires on at least one tight-leg jet, or at least two
	// loose-but-not-tight jets.
	AnyTightOrTwoLoose Rule = iota
	// TightPlusSecondLeg fires on at least one tight-leg jet accompanied by a
	// second jet passing either leg. This is the dijet trigger's condition
	// as used for the 2011 W+jets fits.
	TightPlusSecondLeg
)

// ParseRule maps the configuration spelling of a rule to its value
func ParseRule(s string) (Rule, error) {
	switch s {
	case "", "any-tight-or-two-loose":
		return AnyTightOrTwoLoose, nil
	case "tight-plus-second-leg":
		return TightPlusSecondLeg, nil
	default:
		return 0, errors.ConfigInvalid(fmt.Sprintf("unknown trigger rule %q", s))
	}
}

func (r Rule) String() string {
	switch r {
	case AnyTightOrTwoLoose:
		return "any-tight-or-two-loose"
	case TightPlusSecondLeg:
		return "tight-plus-second-leg"
	default:
		return fmt.Sprintf("Rule(%d)", int(r))
	}
}

// Fires reports whether an assignment with tight tier-A jets and loose
// tier-B-only jets satisfies the rule.
func (r Rule) Fires(tight, loose int) bool {
	switch r {
	case TightPlusSecondLeg:
		return tight >= 1 && tight+loose >= 2
	default:
		return tight >= 1 || loose >= 2
	}
}

// DijetEfficiency is Efficiency under the default rule
func DijetEfficiency(nJets int, eff30, eff25n30 []float64) (float64, error) {
	return AnyTightOrTwoLoose.Efficiency(nJets, eff30, eff25n30)
}

// Efficiency returns the probability that the first nJets jets fire the
// trigger, given each jet's tight-leg efficiency eff30[i] and its
// loose-but-not-tight efficiency eff25n30[i]. Every assignment of the jets to
// {fail, loose only, tight} is enumerated and the probabilities of the firing
// assignments are summed, so the cost is O(3^nJets · nJets).
//
// Each jet must satisfy 0 <= eff30[i], eff25n30[i] and eff30[i]+eff25n30[i] <= 1.
func (r Rule) Efficiency(nJets int, eff30, eff25n30 []float64) (float64, error) {
	if err := validate(nJets, eff30, eff25n30); err != nil {
		return 0, err
	}
	if nJets == 0 {
		return 0, nil
	}

	lens := make([]int, nJets)
	for i := range lens {
		lens[i] = 3
	}

	var eff float64
	digits := make([]int, nJets)
	gen := combin.NewCartesianGenerator(lens)
	for gen.Next() {
		digits = gen.Product(digits)

		tight, loose := 0, 0
		for _, d := range digits {
			switch d {
			case stateLoose:
				loose++
			case stateTight:
				tight++
			}
		}
		if !r.Fires(tight, loose) {
			continue
		}

		p := 1.0
		for i, d := range digits {
			switch d {
			case stateFail:
				p *= 1 - eff30[i] - eff25n30[i]
			case stateLoose:
				p *= eff25n30[i]
			case stateTight:
				p *= eff30[i]
			}
		}
		eff += p
	}
	return eff, nil
}

func validate(nJets int, eff30, eff25n30 []float64) error {
	switch {
	case nJets < 0:
		return errors.InvalidInput(fmt.Sprintf("negative jet count %d", nJets))
	case nJets > MaxEnumeratedJets:
		return errors.InvalidInput(fmt.Sprintf("jet count %d exceeds enumeration bound %d", nJets, MaxEnumeratedJets))
	case nJets > len(eff30) || nJets > len(eff25n30):
		return errors.InvalidInput(fmt.Sprintf("jet count %d exceeds efficiency slots (%d tight, %d loose)",
			nJets, len(eff30), len(eff25n30)))
	}

	for i := 0; i < nJets; i++ {
		a, b := eff30[i], eff25n30[i]
		if a < 0 || a > 1 || b < 0 || b > 1 || a+b > 1+legTolerance {
			return errors.InvalidInput(fmt.Sprintf("jet %d: tight %.6g and loose-only %.6g are not valid exclusive probabilities", i, a, b))
		}
	}
	return nil
}
