// Package gof measures how well a fitted density model describes binned
// data, including the statistical uncertainty of histogram templates.
package gof

import (
	"fmt"
	"math"

	"wjjfit/domain/density"
	"wjjfit/internal/errors"

	"gonum.org/v1/gonum/stat/distuv"
)

// Pull is the per-bin diagnostic of an evaluation
type Pull struct {
	Low       float64
	High      float64
	Observed  float64
	Expected  float64
	ModelVar  float64 // propagated template variance of Expected
	DataError float64 // data error on the side of the deviation
	Value     float64 // signed pull (Observed-Expected)/sigma
	Used      bool    // false for empty data bins
}

// Result of one evaluation
type Result struct {
	Chi2  float64
	NBins int
	Pulls []Pull
}

// NDF returns the degrees of freedom after nFitParams floated parameters
func (r Result) NDF(nFitParams int) int {
	if ndf := r.NBins - nFitParams; ndf > 0 {
		return ndf
	}
	return 0
}

// PValue returns the chi-square survival probability of the statistic
func (r Result) PValue(nFitParams int) float64 {
	ndf := r.NDF(nFitParams)
	if ndf == 0 {
		return 1
	}
	return distuv.ChiSquared{K: float64(ndf)}.Survival(r.Chi2)
}

// Evaluate computes the chi-square of data against model over the
// observable range [obsMin, obsMax]. Each bin's expectation is the model's
// expected events times its bin fraction; its variance is propagated from
// the statistics of the model's histogram templates. Bins with zero
// observed content are skipped. The data error is the downward one when the
// observation lies above the expectation and the upward one otherwise.
func Evaluate(data []Point, model density.Model, obsMin, obsMax float64) (Result, error) {
	if model == nil {
		return Result{}, errors.InvalidInput("nil model")
	}
	if !(obsMax > obsMin) {
		return Result{}, errors.InvalidInput(fmt.Sprintf("invalid observable range [%g, %g]", obsMin, obsMax))
	}

	nTotal := density.ExpectedEvents(model)
	fullInt := density.Integral(model, obsMin, obsMax)

	res := Result{Pulls: make([]Pull, 0, len(data))}
	for _, p := range data {
		lo, hi := p.Low(), p.High()
		var expected float64
		if fullInt != 0 {
			expected = nTotal * density.Integral(model, lo, hi) / fullInt
		}
		modelVar, err := Variance(model, lo, hi, expected, obsMin, obsMax)
		if err != nil {
			return Result{}, errors.Wrapf(err, "bin [%g, %g]", lo, hi)
		}

		pull := Pull{Low: lo, High: hi, Observed: p.Y, Expected: expected, ModelVar: modelVar}
		if p.Y != 0 {
			pull.Used = true
			res.NBins++

			pull.DataError = p.YHigh
			if p.Y > expected {
				pull.DataError = p.YLow
			}
			sigma2 := pull.DataError*pull.DataError + modelVar
			if sigma2 > 0 {
				pull.Value = (p.Y - expected) / math.Sqrt(sigma2)
				res.Chi2 += pull.Value * pull.Value
			}
		}
		res.Pulls = append(res.Pulls, pull)
	}
	return res, nil
}

// Variance returns the statistical variance of nBin, the expected count of
// model in [lo, hi), arising from the finite statistics of its templates.
// Sub-models of a composite are treated as independent. [obsMin, obsMax] is
// the range over which sub-model integrals are normalised.
func Variance(model density.Model, lo, hi, nBin, obsMin, obsMax float64) (float64, error) {
	switch m := model.(type) {
	case *density.Empirical:
		return empiricalVariance(m, lo, hi, nBin), nil
	case *density.Composite:
		return compositeVariance(m, lo, hi, nBin, obsMin, obsMax)
	default:
		return 0, errors.InternalError(fmt.Sprintf("unhandled model kind %T", model))
	}
}

func empiricalVariance(m *density.Empirical, lo, hi, nBin float64) float64 {
	var sumw, sumw2 float64
	for _, b := range m.Bins() {
		if !overlaps(b.Low, b.High, lo, hi) {
			continue
		}
		sumw += b.SumW
		sumw2 += b.SumW2
	}
	if sumw == 0 {
		return 0
	}
	return nBin * nBin * sumw2 / (sumw * sumw)
}

func compositeVariance(m *density.Composite, lo, hi, nBin, obsMin, obsMax float64) (float64, error) {
	terms := m.Terms()
	fr := m.Fractions()
	var total float64
	for i, t := range terms {
		var iN float64
		switch m.Mode() {
		case density.Extended:
			iN = *t.Coef * binFraction(t.Model, lo, hi, obsMin, obsMax)
		case density.Fractional:
			iN = fr[i] * nBin
		case density.Uncoefficiented:
			iN = density.ExpectedEvents(t.Model) * binFraction(t.Model, lo, hi, obsMin, obsMax)
		}
		v, err := Variance(t.Model, lo, hi, iN, obsMin, obsMax)
		if err != nil {
			return 0, errors.Wrapf(err, "term %d (%s) of %s", i, t.Model.Name(), m.Name())
		}
		total += v
	}
	return total, nil
}

// binFraction is the share of a model's integral over the observable range
// that falls in [lo, hi]; zero when the model has no content there.
func binFraction(m density.Model, lo, hi, obsMin, obsMax float64) float64 {
	full := density.Integral(m, obsMin, obsMax)
	if full == 0 {
		return 0
	}
	return density.Integral(m, lo, hi) / full
}

// overlaps reports whether [aLo,aHi) and [bLo,bHi) share more than a
// rounding sliver.
func overlaps(aLo, aHi, bLo, bHi float64) bool {
	width := math.Min(aHi-aLo, bHi-bLo)
	return math.Min(aHi, bHi)-math.Max(aLo, bLo) > 1e-9*width
}
