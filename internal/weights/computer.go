// Package weights computes per-event efficiency weights from lepton, jet and
// missing-energy trigger and identification efficiencies.
package weights

import (
	"fmt"

	"wjjfit/domain/event"
	"wjjfit/domain/trigger"
	"wjjfit/internal/errors"
	"wjjfit/ports"
)

// SingleElectronCutoffLumi is the integrated luminosity (pb^-1) recorded
// with the single-electron trigger before the electron+dijet+MHT trigger
// existed. That fraction of the electron data needs no jet or MHT
// trigger correction.
const SingleElectronCutoffLumi = 1000.

// Lepton selects the lepton flavour of a channel
type Lepton int

const (
	Muon Lepton = iota
	Electron
)

func (l Lepton) String() string {
	if l == Electron {
		return "electron"
	}
	return "muon"
}

// Providers is the set of efficiency lookups used for one analysis
type Providers struct {
	EleReco    ports.EfficiencyProvider // supercluster to reconstructed electron
	EleID      ports.EfficiencyProvider // reconstructed electron to WP80 identification
	EleTrigger ports.EfficiencyProvider // electron leg of the trigger
	MuID       ports.EfficiencyProvider // reconstructed muon to isolated muon
	MuTrigger  ports.EfficiencyProvider // single-muon trigger
	Jet30      ports.EfficiencyProvider // jet passes the 30 GeV leg
	Jet25Not30 ports.EfficiencyProvider // jet passes the 25 GeV leg but not the 30 GeV leg
	MHT        ports.EfficiencyProvider // missing-energy leg, looked up as (MET, 0)
}

func (p Providers) validate() error {
	missing := []string{}
	for name, prov := range map[string]ports.EfficiencyProvider{
		"EleReco": p.EleReco, "EleID": p.EleID, "EleTrigger": p.EleTrigger,
		"MuID": p.MuID, "MuTrigger": p.MuTrigger,
		"Jet30": p.Jet30, "Jet25Not30": p.Jet25Not30, "MHT": p.MHT,
	} {
		if prov == nil {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return errors.ConfigInvalid(fmt.Sprintf("missing efficiency providers: %v", missing))
	}
	return nil
}

// Computer turns one selected event into a multiplicative weight
type Computer struct {
	providers Providers
	intLumi   float64
	rule      trigger.Rule
	rng       ports.RandomStream
}

// NewComputer creates a weight computer. rng is the single stream drawn from,
// in event order, for the electron trigger-redundancy correction; sharing one
// stream across passes keeps draws uncorrelated while a fixed seed
// reproduces a run.
func NewComputer(p Providers, intLumi float64, rule trigger.Rule, rng ports.RandomStream) (*Computer, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	if !(intLumi > 0) {
		return nil, errors.ConfigInvalid(fmt.Sprintf("integrated luminosity must be positive, got %g", intLumi))
	}
	if rng == nil {
		return nil, errors.ConfigInvalid("nil random stream")
	}
	return &Computer{providers: p, intLumi: intLumi, rule: rule, rng: rng}, nil
}

// Rule returns the trigger firing rule used for the jet legs
func (c *Computer) Rule() trigger.Rule { return c.rule }

// IntLumi returns the integrated luminosity the bypass fraction is taken from
func (c *Computer) IntLumi() float64 { return c.intLumi }

// Weight returns the efficiency weight of rec for the given lepton flavour:
// lepton reconstruction, identification and trigger-leg efficiencies
// (electrons) or identification and trigger efficiencies (muons). Electron
// events are further multiplied by the jet and MHT trigger-leg efficiencies
// unless a uniform draw falls in the early single-electron-trigger fraction
// SingleElectronCutoffLumi/intLumi. Exactly one draw is consumed per
// electron event.
func (c *Computer) Weight(rec event.Record, lepton Lepton) (float64, error) {
	ptField, etaField := event.FieldMuonPt, event.FieldMuonEta
	if lepton == Electron {
		ptField, etaField = event.FieldElectronPt, event.FieldElectronEta
	}
	pt, err := rec.Float(ptField)
	if err != nil {
		return 0, err
	}
	eta, err := rec.Float(etaField)
	if err != nil {
		return 0, err
	}

	w := 1.0
	if lepton == Electron {
		w *= c.providers.EleReco.Efficiency(pt, eta)
		w *= c.providers.EleID.Efficiency(pt, eta)
		w *= c.providers.EleTrigger.Efficiency(pt, eta)
	} else {
		w *= c.providers.MuID.Efficiency(pt, eta)
		w *= c.providers.MuTrigger.Efficiency(pt, eta)
	}

	jetEff, err := c.JetTriggerEfficiency(rec)
	if err != nil {
		return 0, err
	}
	met, err := rec.Float(event.FieldMET)
	if err != nil {
		return 0, err
	}
	mhtEff := c.providers.MHT.Efficiency(met, 0)

	if lepton == Electron && c.rng.Float64() > SingleElectronCutoffLumi/c.intLumi {
		w *= jetEff * mhtEff
	}
	return w, nil
}

// JetTriggerEfficiency evaluates both jet legs for every jet slot and
// combines them over the event's jet count.
func (c *Computer) JetTriggerEfficiency(rec event.Record) (float64, error) {
	nj, err := rec.Int(event.FieldNJets)
	if err != nil {
		return 0, err
	}
	eff30 := make([]float64, event.MaxJets)
	eff25n30 := make([]float64, event.MaxJets)
	for i := 0; i < event.MaxJets; i++ {
		pt, err := rec.At(event.FieldJetPt, i)
		if err != nil {
			return 0, err
		}
		eta, err := rec.At(event.FieldJetEta, i)
		if err != nil {
			return 0, err
		}
		eff30[i] = c.providers.Jet30.Efficiency(pt, eta)
		eff25n30[i] = c.providers.Jet25Not30.Efficiency(pt, eta)
	}
	eff, err := c.rule.Efficiency(nj, eff30, eff25n30)
	if err != nil {
		return 0, errors.Wrapf(err, "jet trigger efficiency for %d jets", nj)
	}
	return eff, nil
}
