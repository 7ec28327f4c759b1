// Package event holds the per-event record passed through selection,
// weighting and filling. Records are read-only once produced by a source.
package event

import (
	"fmt"
	"sort"

	"wjjfit/internal/errors"
)

// Branch names of the reduced W+jets trees
const (
	FieldMjj         = "Mass2j_PFCor"
	FieldJetPt       = "JetPFCor_Pt"
	FieldJetEta      = "JetPFCor_Eta"
	FieldMET         = "event_met_pfmet"
	FieldNPV         = "event_nPV"
	FieldNJets       = "evtNJ"
	FieldElectronPt  = "W_electron_pt"
	FieldElectronEta = "W_electron_eta"
	FieldMuonPt      = "W_muon_pt"
	FieldMuonEta     = "W_muon_eta"
)

// MaxJets is the fixed length of the jet collection arrays
const MaxJets = 6

// Record maps a field name to a scalar (float64, float32, int, int64) or a
// fixed-length array ([]float64).
type Record map[string]any

// Float returns a scalar field as float64
func (r Record) Float(name string) (float64, error) {
	v, ok := r[name]
	if !ok {
		return 0, errors.NotFound(fmt.Sprintf("field %s", name))
	}
	f, ok := toFloat(v)
	if !ok {
		return 0, errors.InvalidInput(fmt.Sprintf("field %s is %T, not a scalar", name, v))
	}
	return f, nil
}

// Int returns a scalar field truncated to int
func (r Record) Int(name string) (int, error) {
	f, err := r.Float(name)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

// Floats returns an array field
func (r Record) Floats(name string) ([]float64, error) {
	v, ok := r[name]
	if !ok {
		return nil, errors.NotFound(fmt.Sprintf("field %s", name))
	}
	switch arr := v.(type) {
	case []float64:
		return arr, nil
	case []float32:
		out := make([]float64, len(arr))
		for i, x := range arr {
			out[i] = float64(x)
		}
		return out, nil
	default:
		return nil, errors.InvalidInput(fmt.Sprintf("field %s is %T, not an array", name, v))
	}
}

// At returns element i of an array field; missing trailing slots read as 0
func (r Record) At(name string, i int) (float64, error) {
	arr, err := r.Floats(name)
	if err != nil {
		return 0, err
	}
	if i < 0 {
		return 0, errors.InvalidInput(fmt.Sprintf("negative index %d into %s", i, name))
	}
	if i >= len(arr) {
		return 0, nil
	}
	return arr[i], nil
}

// Names lists the record's fields in sorted order
func (r Record) Names() []string {
	names := make([]string, 0, len(r))
	for k := range r {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}
