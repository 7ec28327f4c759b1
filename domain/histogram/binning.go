package histogram

import (
	"fmt"
	"math"

	"wjjfit/internal/errors"

	"gonum.org/v1/gonum/floats"
)

// Binning is either N equal-width bins over [Min,Max) or, when Edges is
// set, the variable-width bins Edges[i]..Edges[i+1]. Explicit edges take
// precedence wherever a histogram or density model is built.
type Binning struct {
	N     int
	Min   float64
	Max   float64
	Edges []float64
}

// Uniform describes n equal-width bins over [min,max)
func Uniform(n int, min, max float64) Binning {
	return Binning{N: n, Min: min, Max: max}
}

// Variable describes explicit bin edges
func Variable(edges []float64) Binning {
	b := Binning{Edges: append([]float64(nil), edges...)}
	if len(edges) > 0 {
		b.N = len(edges) - 1
		b.Min = edges[0]
		b.Max = edges[len(edges)-1]
	}
	return b
}

// IsVariable reports whether explicit edges are in use
func (b Binning) IsVariable() bool {
	return len(b.Edges) > 1
}

// Validate checks the binning is usable
func (b Binning) Validate() error {
	if b.IsVariable() {
		if floats.HasNaN(b.Edges) {
			return errors.ConfigInvalid("bin edges contain NaN")
		}
		for i := 1; i < len(b.Edges); i++ {
			if !(b.Edges[i] > b.Edges[i-1]) {
				return errors.ConfigInvalid(fmt.Sprintf("bin edges not strictly increasing at index %d (%g after %g)",
					i, b.Edges[i], b.Edges[i-1]))
			}
		}
		return nil
	}
	if len(b.Edges) == 1 {
		return errors.ConfigInvalid("a single bin edge defines no bin")
	}
	if b.N <= 0 {
		return errors.ConfigInvalid(fmt.Sprintf("bin count must be positive, got %d", b.N))
	}
	if math.IsNaN(b.Min) || math.IsNaN(b.Max) || !(b.Max > b.Min) {
		return errors.ConfigInvalid(fmt.Sprintf("invalid range [%g, %g]", b.Min, b.Max))
	}
	return nil
}

// Scaled multiplies the bin count of a uniform binning by mult, used for
// template histograms finer than the display binning. Variable binnings and
// non-positive multipliers are returned unchanged.
func (b Binning) Scaled(mult float64) Binning {
	if b.IsVariable() || mult <= 0 || mult == 1 {
		return b
	}
	n := int(float64(b.N) * mult)
	if n < 1 {
		n = 1
	}
	return Uniform(n, b.Min, b.Max)
}

// BinEdges returns the N+1 edges of the binning
func (b Binning) BinEdges() []float64 {
	if b.IsVariable() {
		return append([]float64(nil), b.Edges...)
	}
	edges := make([]float64, b.N+1)
	floats.Span(edges, b.Min, b.Max)
	return edges
}

// Len returns the number of bins
func (b Binning) Len() int {
	if b.IsVariable() {
		return len(b.Edges) - 1
	}
	return b.N
}

// Equal reports whether two binnings produce the same edges
func (b Binning) Equal(o Binning) bool {
	if b.Len() != o.Len() {
		return false
	}
	return floats.EqualApprox(b.BinEdges(), o.BinEdges(), 1e-12)
}
