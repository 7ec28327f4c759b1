// Package histogram accumulates weighted frequency distributions of one
// observable. Each bin keeps its sum of weights and sum of squared weights.
package histogram

import (
	"fmt"
	"sort"

	"wjjfit/internal/errors"
	"wjjfit/ports"

	"go-hep.org/x/hep/hbook"
)

// Bin is one bin of a filled histogram, covering [Low, High)
type Bin struct {
	Low   float64
	High  float64
	SumW  float64
	SumW2 float64
}

// Width returns High-Low
func (b Bin) Width() float64 { return b.High - b.Low }

// Center returns the bin midpoint
func (b Bin) Center() float64 { return 0.5 * (b.Low + b.High) }

// Histogram is a binned distribution backed by an hbook.H1D. Values outside
// the binning range are discarded.
type Histogram struct {
	name    string
	binning Binning
	edges   []float64
	h       *hbook.H1D
}

// New creates an empty histogram
func New(name string, b Binning) (*Histogram, error) {
	if err := b.Validate(); err != nil {
		return nil, errors.Wrapf(err, "histogram %s", name)
	}
	// uniform binnings are built from explicit edges too so that bin lookup
	// and BinEdges agree to the last bit
	edges := b.BinEdges()
	h := hbook.NewH1DFromEdges(edges)
	h.Ann = hbook.Annotation{"name": name}
	return &Histogram{name: name, binning: b, edges: edges, h: h}, nil
}

// Name returns the histogram name
func (h *Histogram) Name() string { return h.name }

// Binning returns the binning the histogram was built with
func (h *Histogram) Binning() Binning { return h.binning }

// Len returns the number of bins
func (h *Histogram) Len() int { return h.h.Len() }

// Min returns the low edge of the first bin
func (h *Histogram) Min() float64 { return h.edges[0] }

// Max returns the high edge of the last bin
func (h *Histogram) Max() float64 { return h.edges[len(h.edges)-1] }

// Fill adds weight w at x. It reports whether x fell inside the range.
func (h *Histogram) Fill(x, w float64) bool {
	if !(x >= h.Min() && x < h.Max()) {
		return false
	}
	h.h.Fill(x, w)
	return true
}

// Bin returns bin i
func (h *Histogram) Bin(i int) Bin {
	b := h.h.Binning.Bins[i]
	return Bin{Low: b.XMin(), High: b.XMax(), SumW: b.SumW(), SumW2: b.SumW2()}
}

// Bins returns a copy of all bins in order
func (h *Histogram) Bins() []Bin {
	bins := make([]Bin, h.Len())
	for i := range bins {
		bins[i] = h.Bin(i)
	}
	return bins
}

// FindBin returns the index of the bin holding x, or -1 outside the range
func (h *Histogram) FindBin(x float64) int {
	if !(x >= h.Min() && x < h.Max()) {
		return -1
	}
	edges := h.edges
	i := sort.SearchFloat64s(edges, x)
	if i < len(edges) && edges[i] == x {
		return i
	}
	return i - 1
}

// SumW returns the in-range sum of weights
func (h *Histogram) SumW() float64 {
	var s float64
	for _, b := range h.h.Binning.Bins {
		s += b.SumW()
	}
	return s
}

// SumW2 returns the in-range sum of squared weights
func (h *Histogram) SumW2() float64 {
	var s float64
	for _, b := range h.h.Binning.Bins {
		s += b.SumW2()
	}
	return s
}

// Entries returns the number of in-range fills
func (h *Histogram) Entries() int64 {
	var n int64
	for _, b := range h.h.Binning.Bins {
		n += b.Entries()
	}
	return n
}

// Scale multiplies every bin's sum of weights by f (and sum of squared weights by f²)
func (h *Histogram) Scale(f float64) {
	h.h.Scale(f)
}

// Normalize scales the histogram to unit sum of weights. Empty histograms
// are left untouched.
func (h *Histogram) Normalize() {
	if s := h.SumW(); s != 0 {
		h.Scale(1 / s)
	}
}

// Add returns a new histogram named name holding the bin-by-bin sum of h and o
func (h *Histogram) Add(name string, o *Histogram) (*Histogram, error) {
	if !h.binning.Equal(o.binning) {
		return nil, errors.InvalidInput(fmt.Sprintf("cannot add %s to %s: binnings differ", o.name, h.name))
	}
	sum := hbook.AddH1D(h.h, o.h)
	sum.Ann = hbook.Annotation{"name": name}
	return &Histogram{name: name, binning: h.binning, edges: h.edges, h: sum}, nil
}

// Random draws one value from the histogram's shape: a bin chosen with
// probability proportional to its sum of weights, then a uniform position
// inside it. Histograms without positive content return their lower edge.
func (h *Histogram) Random(rng ports.RandomStream) float64 {
	bins := h.Bins()
	cumulative := make([]float64, len(bins))
	var total float64
	for i, b := range bins {
		if b.SumW > 0 {
			total += b.SumW
		}
		cumulative[i] = total
	}
	if total <= 0 {
		return h.Min()
	}
	u := rng.Float64() * total
	i := sort.Search(len(cumulative), func(i int) bool { return cumulative[i] > u })
	if i == len(cumulative) {
		i = len(cumulative) - 1
	}
	return bins[i].Low + bins[i].Width()*rng.Float64()
}
