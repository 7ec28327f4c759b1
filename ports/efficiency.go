package ports

// EfficiencyProvider is a lookup of a single-object efficiency, e.g. a lepton
// identification scale factor in (pT, eta) or a trigger leg in (MET, 0).
// Values are expected in [0,1] and carry no uncertainty.
type EfficiencyProvider interface {
	Efficiency(x, y float64) float64
}

// EfficiencyFunc adapts a plain function to EfficiencyProvider
type EfficiencyFunc func(x, y float64) float64

// Efficiency implements EfficiencyProvider
func (f EfficiencyFunc) Efficiency(x, y float64) float64 {
	return f(x, y)
}
