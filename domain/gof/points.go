package gof

import (
	"math"

	"wjjfit/domain/histogram"

	"gonum.org/v1/gonum/stat/distuv"
)

// Point is one data bin as a plotted point: centre X with half-widths
// XLow/XHigh, observed value Y with downward and upward errors.
type Point struct {
	X     float64
	Y     float64
	XLow  float64
	XHigh float64
	YLow  float64
	YHigh float64
}

// Low returns the bin's lower edge
func (p Point) Low() float64 { return p.X - p.XLow }

// High returns the bin's upper edge
func (p Point) High() float64 { return p.X + p.XHigh }

// ErrorMode selects how Y errors are assigned when converting a histogram
type ErrorMode int

const (
	// PoissonErrors uses the 68.27% Garwood interval on the bin count,
	// appropriate for unweighted data.
	PoissonErrors ErrorMode = iota
	// SumW2Errors uses the symmetric sqrt(sum of squared weights).
	SumW2Errors
)

// oneSigma is the central coverage of ±1 standard deviation
const oneSigma = 0.682689492137086

// PointsFromHistogram turns every bin of h into a Point
func PointsFromHistogram(h *histogram.Histogram, mode ErrorMode) []Point {
	bins := h.Bins()
	points := make([]Point, len(bins))
	for i, b := range bins {
		half := 0.5 * b.Width()
		p := Point{X: b.Center(), Y: b.SumW, XLow: half, XHigh: half}
		switch mode {
		case SumW2Errors:
			e := math.Sqrt(b.SumW2)
			p.YLow, p.YHigh = e, e
		default:
			lo, hi := PoissonInterval(b.SumW)
			p.YLow, p.YHigh = b.SumW-lo, hi-b.SumW
		}
		points[i] = p
	}
	return points
}

// PoissonInterval returns the central 68.27% Garwood confidence interval
// for a Poisson mean given n observed events.
func PoissonInterval(n float64) (lo, hi float64) {
	if n < 0 {
		n = 0
	}
	alpha := 1 - oneSigma
	if n > 0 {
		lo = 0.5 * distuv.ChiSquared{K: 2 * n}.Quantile(alpha/2)
	}
	hi = 0.5 * distuv.ChiSquared{K: 2 * (n + 1)}.Quantile(1-alpha/2)
	return lo, hi
}
