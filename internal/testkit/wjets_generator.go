package testkit

import (
	"math"
	"math/rand"

	"wjjfit/domain/event"
)

// WJetsGeneratorConfig configures the synthetic W+jets event generator
type WJetsGeneratorConfig struct {
	Events int   `json:"events"`
	Seed   int64 `json:"seed"`

	Electron bool `json:"electron"` // fill electron rather than muon kinematics

	// Continuum mjj falls exponentially above MassFloor with slope MassSlope;
	// a fraction PeakFraction sits in a Gaussian peak at PeakMass.
	MassFloor    float64 `json:"mass_floor"`
	MassSlope    float64 `json:"mass_slope"`
	PeakMass     float64 `json:"peak_mass"`
	PeakWidth    float64 `json:"peak_width"`
	PeakFraction float64 `json:"peak_fraction"`

	ThreeJetFraction float64 `json:"three_jet_fraction"`
}

// DefaultWJetsConfig returns a W+2/3 jets sample resembling the 2011 selection
func DefaultWJetsConfig() WJetsGeneratorConfig {
	return WJetsGeneratorConfig{
		Events:           2000,
		Seed:             42,
		MassFloor:        40,
		MassSlope:        1. / 45,
		PeakMass:         82,
		PeakWidth:        9,
		PeakFraction:     0.08,
		ThreeJetFraction: 0.3,
	}
}

// WJetsGenerator produces reproducible reduced-tree style event records
type WJetsGenerator struct {
	config WJetsGeneratorConfig
	rng    *rand.Rand
}

// NewWJetsGenerator creates a generator seeded from config
func NewWJetsGenerator(config WJetsGeneratorConfig) *WJetsGenerator {
	return &WJetsGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// GenerateEvents generates config.Events records
func (g *WJetsGenerator) GenerateEvents() []event.Record {
	events := make([]event.Record, 0, g.config.Events)
	for i := 0; i < g.config.Events; i++ {
		events = append(events, g.generateEvent())
	}
	return events
}

func (g *WJetsGenerator) generateEvent() event.Record {
	nj := 2
	if g.rng.Float64() < g.config.ThreeJetFraction {
		nj = 3
	}

	pt := make([]float64, event.MaxJets)
	eta := make([]float64, event.MaxJets)
	phi := make([]float64, event.MaxJets)
	for i := 0; i < nj; i++ {
		// Jets come pT ordered
		floor := 30.
		if i > 0 {
			floor = math.Min(25, pt[i-1])
		}
		pt[i] = floor + g.rng.ExpFloat64()*20
		if i > 0 && pt[i] > pt[i-1] {
			pt[i] = pt[i-1]
		}
		eta[i] = (g.rng.Float64()*2 - 1) * 2.4
		phi[i] = (g.rng.Float64()*2 - 1) * math.Pi
	}

	rec := event.Record{
		event.FieldMjj:    g.mass(),
		event.FieldJetPt:  pt,
		event.FieldJetEta: eta,
		"JetPFCor_Phi":    phi,
		event.FieldMET:    25 + g.rng.ExpFloat64()*15,
		event.FieldNPV:    1 + g.rng.Intn(20),
		event.FieldNJets:  nj,
		"W_mt":            40 + g.rng.ExpFloat64()*30,
	}

	lepPt := 25 + g.rng.ExpFloat64()*15
	lepEta := (g.rng.Float64()*2 - 1) * 2.1
	if g.config.Electron {
		rec[event.FieldElectronPt] = lepPt
		rec[event.FieldElectronEta] = lepEta
	} else {
		rec[event.FieldMuonPt] = lepPt
		rec[event.FieldMuonEta] = lepEta
	}
	return rec
}

func (g *WJetsGenerator) mass() float64 {
	if g.rng.Float64() < g.config.PeakFraction {
		return g.config.PeakMass + g.rng.NormFloat64()*g.config.PeakWidth
	}
	return g.config.MassFloor + g.rng.ExpFloat64()/g.config.MassSlope
}

// Source returns an in-memory event source holding events under
// (locator, recordSet)
func Source(locator, recordSet string, events []event.Record) *event.MemorySource {
	src := event.NewMemorySource()
	src.Put(locator, recordSet, events)
	return src
}

// UniformMassEvents returns n two-jet muon events with the observable spaced
// evenly at min + (i+0.5)(max-min)/n, each with identical kinematics
// otherwise.
func UniformMassEvents(n int, min, max float64) []event.Record {
	events := make([]event.Record, n)
	step := (max - min) / float64(n)
	for i := range events {
		events[i] = event.Record{
			event.FieldMjj:         min + (float64(i)+0.5)*step,
			event.FieldJetPt:       []float64{50, 40, 0, 0, 0, 0},
			event.FieldJetEta:      []float64{0.5, -0.5, 0, 0, 0, 0},
			event.FieldMET:         40.0,
			event.FieldNPV:         8,
			event.FieldNJets:       2,
			event.FieldMuonPt:      35.0,
			event.FieldMuonEta:     0.2,
			event.FieldElectronPt:  35.0,
			event.FieldElectronEta: 0.2,
		}
	}
	return events
}
