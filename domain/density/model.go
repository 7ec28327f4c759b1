// Package density builds normalised probability-density models of one
// observable: empirical shapes taken from histograms, and composites that
// add sub-models with coefficients. Models are immutable once built.
package density

import (
	"fmt"
	"math"

	"wjjfit/domain/histogram"
	"wjjfit/internal/errors"
)

// Model is a density over one observable. The set of implementations is
// closed: *Empirical and *Composite. Code that walks a model switches over
// exactly these two kinds.
type Model interface {
	Name() string
	model()
}

// Empirical is a piecewise-constant density with the shape of a histogram,
// normalised to unit integral over the histogram's range.
type Empirical struct {
	name string
	hist *histogram.Histogram
	bins  []histogram.Bin
	total float64
	norm  float64
}

// NewEmpirical wraps h. A histogram with zero total weight yields a density
// that is zero everywhere.
func NewEmpirical(name string, h *histogram.Histogram) (*Empirical, error) {
	if h == nil {
		return nil, errors.InvalidInput(fmt.Sprintf("model %s: nil histogram", name))
	}
	e := &Empirical{name: name, hist: h, bins: h.Bins()}
	for _, b := range e.bins {
		e.total += b.SumW
	}
	if e.total != 0 {
		e.norm = 1 / e.total
	}
	return e, nil
}

func (*Empirical) model() {}

// Name returns the model name
func (e *Empirical) Name() string { return e.name }

// Histogram returns the underlying distribution
func (e *Empirical) Histogram() *histogram.Histogram { return e.hist }

// Bins returns the underlying bins
func (e *Empirical) Bins() []histogram.Bin { return e.bins }

// Value returns the normalised density at x
func (e *Empirical) Value(x float64) float64 {
	i := e.hist.FindBin(x)
	if i < 0 {
		return 0
	}
	b := e.bins[i]
	return b.SumW * e.norm / b.Width()
}

// Integral returns the integral of the density over [lo, hi]
func (e *Empirical) Integral(lo, hi float64) float64 {
	var sum float64
	for _, b := range e.bins {
		overlap := math.Min(hi, b.High) - math.Max(lo, b.Low)
		if overlap <= 0 {
			continue
		}
		sum += b.SumW * e.norm * overlap / b.Width()
	}
	return sum
}

// ExpectedEvents is the histogram's sum of weights when the model was built
func (e *Empirical) ExpectedEvents() float64 {
	return e.total
}

// CoefMode says how a composite's coefficients are read
type CoefMode int

const (
	// Extended: every term has a coefficient, each the expected event count
	// of its sub-model. Built with NewExtended.
	Extended CoefMode = iota
	// Fractional: coefficients in [0,1] are the sub-models' fractions of the
	// composite's yield. A last term without a coefficient takes the
	// remainder. Built with NewComposite.
	Fractional
	// Uncoefficiented: no term has a coefficient; sub-models contribute in
	// proportion to their own expected event counts.
	Uncoefficiented
)

func (m CoefMode) String() string {
	switch m {
	case Extended:
		return "extended"
	case Fractional:
		return "fractional"
	case Uncoefficiented:
		return "uncoefficiented"
	default:
		return fmt.Sprintf("CoefMode(%d)", int(m))
	}
}

// Term is one sub-model of a composite, with an optional coefficient
type Term struct {
	Model Model
	Coef  *float64
}

// With pairs m with coefficient c
func With(m Model, c float64) Term {
	return Term{Model: m, Coef: &c}
}

// Remainder is a term without a coefficient
func Remainder(m Model) Term {
	return Term{Model: m}
}

// Composite is the weighted sum of its terms' densities
type Composite struct {
	name  string
	terms []Term
	mode  CoefMode
	yield float64
}

// NewComposite builds a composite whose coefficients are fractions. Either
// every term carries a fraction, all but the last (which takes the
// remainder), or none; anything else is a configuration error. Fractions
// lie in [0,1] and sum to at most 1. yield is the composite's expected
// event count before the fractions are applied; zero means the sum of the
// sub-models' counts.
func NewComposite(name string, yield float64, terms ...Term) (*Composite, error) {
	withCoef, err := checkTerms(name, terms)
	if err != nil {
		return nil, err
	}
	if yield < 0 || math.IsNaN(yield) {
		return nil, errors.ConfigInvalid(fmt.Sprintf("composite %s: yield is %g", name, yield))
	}

	c := &Composite{name: name, terms: append([]Term(nil), terms...), yield: yield}
	switch {
	case withCoef == 0:
		c.mode = Uncoefficiented
		return c, nil
	case withCoef == len(terms):
	case withCoef == len(terms)-1 && terms[len(terms)-1].Coef == nil:
	default:
		return nil, errors.ConfigInvalid(fmt.Sprintf(
			"composite %s: %d of %d terms have coefficients; need all, all but the last, or none",
			name, withCoef, len(terms)))
	}
	c.mode = Fractional

	var sum float64
	for i, t := range terms {
		if t.Coef == nil {
			continue
		}
		f := *t.Coef
		if f < 0 || f > 1 || math.IsNaN(f) {
			return nil, errors.ConfigInvalid(fmt.Sprintf("composite %s: fraction %d is %g, outside [0,1]", name, i, f))
		}
		sum += f
	}
	if sum > 1+1e-12 {
		return nil, errors.ConfigInvalid(fmt.Sprintf("composite %s: fractions sum to %g > 1", name, sum))
	}
	return c, nil
}

// NewExtended builds a composite whose coefficients are the expected event
// counts of its terms. Every term needs a non-negative yield.
func NewExtended(name string, terms ...Term) (*Composite, error) {
	withCoef, err := checkTerms(name, terms)
	if err != nil {
		return nil, err
	}
	if withCoef != len(terms) {
		return nil, errors.ConfigInvalid(fmt.Sprintf(
			"extended composite %s: %d of %d terms have yields", name, withCoef, len(terms)))
	}
	for i, t := range terms {
		if *t.Coef < 0 || math.IsNaN(*t.Coef) {
			return nil, errors.ConfigInvalid(fmt.Sprintf("composite %s: yield %d is %g", name, i, *t.Coef))
		}
	}
	return &Composite{name: name, terms: append([]Term(nil), terms...), mode: Extended}, nil
}

// checkTerms rejects empty composites and nil models and counts the terms
// carrying a coefficient.
func checkTerms(name string, terms []Term) (int, error) {
	if len(terms) == 0 {
		return 0, errors.ConfigInvalid(fmt.Sprintf("composite %s has no terms", name))
	}
	withCoef := 0
	for i, t := range terms {
		if t.Model == nil {
			return 0, errors.ConfigInvalid(fmt.Sprintf("composite %s: term %d has no model", name, i))
		}
		if t.Coef != nil {
			withCoef++
		}
	}
	return withCoef, nil
}

func (*Composite) model() {}

// Name returns the model name
func (c *Composite) Name() string { return c.name }

// Mode returns the coefficient mode
func (c *Composite) Mode() CoefMode { return c.mode }

// Terms returns the composite's terms in order
func (c *Composite) Terms() []Term { return append([]Term(nil), c.terms...) }

// Fractions returns the normalised weight of each term's density
func (c *Composite) Fractions() []float64 {
	fr := make([]float64, len(c.terms))
	switch c.mode {
	case Extended:
		var total float64
		for _, t := range c.terms {
			total += *t.Coef
		}
		if total == 0 {
			return fr
		}
		for i, t := range c.terms {
			fr[i] = *t.Coef / total
		}
	case Fractional:
		last := len(c.terms) - 1
		if c.terms[last].Coef == nil {
			rest := 1.0
			for i, t := range c.terms[:last] {
				fr[i] = *t.Coef
				rest -= *t.Coef
			}
			fr[last] = math.Max(rest, 0)
			return fr
		}
		sum := c.coefSum()
		if sum == 0 {
			return fr
		}
		for i, t := range c.terms {
			fr[i] = *t.Coef / sum
		}
	case Uncoefficiented:
		var total float64
		for i, t := range c.terms {
			fr[i] = ExpectedEvents(t.Model)
			total += fr[i]
		}
		if total == 0 {
			return make([]float64, len(c.terms))
		}
		for i := range fr {
			fr[i] /= total
		}
	}
	return fr
}

// coefSum adds up the coefficients that are present
func (c *Composite) coefSum() float64 {
	var sum float64
	for _, t := range c.terms {
		if t.Coef != nil {
			sum += *t.Coef
		}
	}
	return sum
}

// baseYield is the yield a Fractional or Uncoefficiented composite's
// fractions apply to.
func (c *Composite) baseYield() float64 {
	if c.yield > 0 {
		return c.yield
	}
	var sum float64
	for _, t := range c.terms {
		sum += ExpectedEvents(t.Model)
	}
	return sum
}

// ExpectedEvents returns the number of events a model predicts over its
// full range.
func ExpectedEvents(m Model) float64 {
	switch m := m.(type) {
	case *Empirical:
		return m.ExpectedEvents()
	case *Composite:
		switch {
		case m.mode == Extended:
			return m.coefSum()
		case m.mode == Fractional && m.terms[len(m.terms)-1].Coef != nil:
			// every term has a fraction, so the fractions may leave part of
			// the yield unassigned
			return m.baseYield() * m.coefSum()
		default:
			return m.baseYield()
		}
	default:
		panic(fmt.Sprintf("density: unknown model kind %T", m))
	}
}

// Integral returns the integral of a model's normalised density over [lo, hi]
func Integral(m Model, lo, hi float64) float64 {
	switch m := m.(type) {
	case *Empirical:
		return m.Integral(lo, hi)
	case *Composite:
		fr := m.Fractions()
		var sum float64
		for i, t := range m.terms {
			if fr[i] == 0 {
				continue
			}
			sum += fr[i] * Integral(t.Model, lo, hi)
		}
		return sum
	default:
		panic(fmt.Sprintf("density: unknown model kind %T", m))
	}
}

// Value returns a model's normalised density at x
func Value(m Model, x float64) float64 {
	switch m := m.(type) {
	case *Empirical:
		return m.Value(x)
	case *Composite:
		fr := m.Fractions()
		var sum float64
		for i, t := range m.terms {
			sum += fr[i] * Value(t.Model, x)
		}
		return sum
	default:
		panic(fmt.Sprintf("density: unknown model kind %T", m))
	}
}
