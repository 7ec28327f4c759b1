// Package sample holds unbinned observable values for unbinned fits.
package sample

import (
	"github.com/montanaflynn/stats"
)

// Sample is an unweighted list of observable values. Unbinned samples never
// carry per-event weights; weighting is applied on the binned path only.
type Sample struct {
	Name       string
	Observable string
	Values     []float64
}

// New creates an empty sample
func New(name, observable string) *Sample {
	return &Sample{Name: name, Observable: observable}
}

// Add appends one value
func (s *Sample) Add(v float64) {
	s.Values = append(s.Values, v)
}

// Len returns the number of values
func (s *Sample) Len() int {
	return len(s.Values)
}

// Summary describes a sample's location and spread
type Summary struct {
	N      int
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
	Median float64
	Q25    float64
	Q75    float64
}

// Summarize computes summary statistics; an empty sample yields the zero Summary
func (s *Sample) Summarize() (Summary, error) {
	sum := Summary{N: len(s.Values)}
	if len(s.Values) == 0 {
		return sum, nil
	}
	data := stats.Float64Data(s.Values)

	var err error
	if sum.Mean, err = data.Mean(); err != nil {
		return sum, err
	}
	if sum.StdDev, err = data.StandardDeviationSample(); err != nil {
		return sum, err
	}
	if sum.Min, err = data.Min(); err != nil {
		return sum, err
	}
	if sum.Max, err = data.Max(); err != nil {
		return sum, err
	}
	if sum.Median, err = data.Median(); err != nil {
		return sum, err
	}
	if sum.Q25, err = data.Percentile(25); err != nil {
		return sum, err
	}
	if sum.Q75, err = data.Percentile(75); err != nil {
		return sum, err
	}
	return sum, nil
}
