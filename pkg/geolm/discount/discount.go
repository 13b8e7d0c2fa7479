// Package discount holds the policies that decide how much probability mass a
// model reserves for grams it has not observed.
package discount

import (
	"fmt"
	"math"
	"strings"

	"github.com/cognicore/geolm/pkg/geolm/internalerr"
)

// Kind selects a discounting policy.
type Kind int

const (
	KindJelinekMercer Kind = iota
	KindDirichlet
	KindPseudoGoodTuring
)

// Default factors used when a configuration leaves the factor at zero.
const (
	DefaultJelinekMercerFactor = 0.3
	DefaultDirichletFactor     = 1000.0
)

// maxGoodTuringMass caps the Pseudo-Good-Turing estimate so seen grams
// always keep some mass.
const maxGoodTuringMass = 0.5

// Strategy is a discounting policy and its scalar parameter.
type Strategy struct {
	Kind   Kind
	Factor float64
}

// Stats are the per-model statistics a strategy reads.
type Stats struct {
	NumTokens    float64
	NumTypes     int
	NumTypesOnce int // grams observed exactly once
}

// JelinekMercer reserves a fixed fraction of mass for unseen grams.
func JelinekMercer(factor float64) Strategy {
	return Strategy{Kind: KindJelinekMercer, Factor: factor}
}

// Dirichlet reserves factor/(n+factor) for unseen grams, so longer models
// trust their own counts more.
func Dirichlet(factor float64) Strategy {
	return Strategy{Kind: KindDirichlet, Factor: factor}
}

// PseudoGoodTuring estimates unseen mass from the share of singleton grams.
func PseudoGoodTuring() Strategy {
	return Strategy{Kind: KindPseudoGoodTuring}
}

// UnseenMass returns the probability mass reserved for unseen grams, in [0,1].
//
//	Jelinek-Mercer:      factor
//	Dirichlet:           1 - n/(n+factor)
//	Pseudo-Good-Turing:  clamp(max(1, once)/n, 0, 0.5), 0.5 when n == 0
func (s Strategy) UnseenMass(st Stats) float64 {
	switch s.Kind {
	case KindJelinekMercer:
		return s.Factor
	case KindDirichlet:
		if st.NumTokens+s.Factor == 0 {
			return 1
		}
		return 1 - st.NumTokens/(st.NumTokens+s.Factor)
	case KindPseudoGoodTuring:
		if st.NumTokens <= 0 {
			return maxGoodTuringMass
		}
		once := math.Max(1, float64(st.NumTypesOnce))
		return math.Min(maxGoodTuringMass, math.Max(0, once/st.NumTokens))
	}
	panic(fmt.Sprintf("discount: unknown strategy kind %d", s.Kind))
}

// DefaultInterpolate reports whether the strategy interpolates with the
// global distribution (true) or backs off to it (false) when the lookup
// policy is not configured explicitly.
func (s Strategy) DefaultInterpolate() bool {
	return s.Kind != KindPseudoGoodTuring
}

// Validate checks the factor is in range for the strategy.
func (s Strategy) Validate() error {
	switch s.Kind {
	case KindJelinekMercer:
		if s.Factor < 0 || s.Factor > 1 || math.IsNaN(s.Factor) {
			return fmt.Errorf("%w: jelinek-mercer factor %v not in [0,1]", internalerr.ErrInvalidConfig, s.Factor)
		}
	case KindDirichlet:
		if s.Factor <= 0 || math.IsNaN(s.Factor) || math.IsInf(s.Factor, 0) {
			return fmt.Errorf("%w: dirichlet factor %v must be positive", internalerr.ErrInvalidConfig, s.Factor)
		}
	case KindPseudoGoodTuring:
	default:
		return fmt.Errorf("%w: unknown strategy kind %d", internalerr.ErrInvalidConfig, s.Kind)
	}
	return nil
}

func (s Strategy) String() string {
	switch s.Kind {
	case KindJelinekMercer:
		return fmt.Sprintf("jelinek-mercer(%g)", s.Factor)
	case KindDirichlet:
		return fmt.Sprintf("dirichlet(%g)", s.Factor)
	case KindPseudoGoodTuring:
		return "pseudo-good-turing"
	}
	return fmt.Sprintf("unknown(%d)", s.Kind)
}

// Parse builds a Strategy from its configuration name. A zero factor selects
// the strategy's default.
func Parse(name string, factor float64) (Strategy, error) {
	var s Strategy
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "jelinek-mercer", "jelinek", "jm":
		if factor == 0 {
			factor = DefaultJelinekMercerFactor
		}
		s = JelinekMercer(factor)
	case "dirichlet":
		if factor == 0 {
			factor = DefaultDirichletFactor
		}
		s = Dirichlet(factor)
	case "pseudo-good-turing", "good-turing", "pgt":
		s = PseudoGoodTuring()
	default:
		return Strategy{}, fmt.Errorf("%w: unknown strategy %q", internalerr.ErrInvalidConfig, name)
	}
	if err := s.Validate(); err != nil {
		return Strategy{}, err
	}
	return s, nil
}
