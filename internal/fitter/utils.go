// Package fitter turns event sources into the binned distributions, density
// models and unbinned samples consumed by an mjj fit.
package fitter

import (
	"context"
	"fmt"

	"wjjfit/domain/density"
	"wjjfit/domain/event"
	"wjjfit/domain/histogram"
	"wjjfit/domain/sample"
	"wjjfit/internal/config"
	"wjjfit/internal/errors"
	"wjjfit/internal/logging"
	"wjjfit/internal/selection"
	"wjjfit/internal/weights"
	"wjjfit/ports"

	"go.uber.org/zap"
)

// Utils builds fit inputs for one FitParameters configuration
type Utils struct {
	params  config.FitParameters
	source  ports.EventSource
	weights *weights.Computer
	nominal *selection.Predicate
	trunc   *selection.Predicate
	logger  *zap.Logger
}

// HistOptions selects how FileToHistogram fills a histogram
type HistOptions struct {
	Lepton weights.Lepton
	// JES selects a jet-energy-scale shift: 0 is nominal, i >= 1 applies
	// JESScales[i-1].
	JES int
	// NoCuts fills every event in the record set, unweighted
	NoCuts bool
	// BinMult refines a uniform binning; values <= 0 mean 1
	BinMult float64
	// CutOverride replaces the nominal selection; overridden selections are
	// filled unweighted
	CutOverride string
}

// New validates params and compiles its selections. w may be nil only when
// efficiency corrections are disabled.
func New(params config.FitParameters, source ports.EventSource, w *weights.Computer) (*Utils, error) {
	if source == nil {
		return nil, errors.ConfigInvalid("nil event source")
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if params.DoEffCorrections && w == nil {
		return nil, errors.ConfigInvalid("efficiency corrections enabled without a weight computer")
	}
	if w != nil {
		if w.Rule() != params.Rule() {
			return nil, errors.ConfigInvalid(fmt.Sprintf("weight computer uses trigger rule %s but the parameters select %s",
				w.Rule(), params.Rule()))
		}
		if w.IntLumi() != params.IntLumi {
			return nil, errors.ConfigInvalid(fmt.Sprintf("weight computer uses int_lumi %g but the parameters select %g",
				w.IntLumi(), params.IntLumi))
		}
	}

	u := &Utils{
		params:  params,
		source:  source,
		weights: w,
		logger:  logging.Component("fitter"),
	}
	if err := u.compileCuts(); err != nil {
		return nil, err
	}
	return u, nil
}

func (u *Utils) compileCuts() error {
	nominal, err := selection.Compile(u.FullCuts(false))
	if err != nil {
		return errors.Wrap(err, "compile nominal selection")
	}
	u.nominal = nominal
	u.trunc = nominal
	if u.params.HasTruncation() {
		trunc, err := selection.Compile(u.FullCuts(true))
		if err != nil {
			return errors.Wrap(err, "compile truncated selection")
		}
		u.trunc = trunc
	}
	return nil
}

// Params returns a copy of the active parameters
func (u *Utils) Params() config.FitParameters {
	return u.params.WithJetMultiplicity(u.params.NJets)
}

// UpdateJets switches the jet-multiplicity category and recompiles the
// selections derived from it.
func (u *Utils) UpdateJets(njets int) error {
	if njets < 0 {
		return errors.ConfigInvalid(fmt.Sprintf("negative jet multiplicity %d", njets))
	}
	prev := u.params
	u.params = u.params.WithJetMultiplicity(njets)
	if err := u.compileCuts(); err != nil {
		u.params = prev
		return err
	}
	return nil
}

// FullCuts returns the selection text for the active parameters
func (u *Utils) FullCuts(trunc bool) string {
	return selection.FullCuts(u.params, trunc)
}

// NewEmptyHistogram creates an empty histogram over the fit range. Explicit
// bin edges always win; otherwise the uniform bin count is multiplied by
// binMult.
func (u *Utils) NewEmptyHistogram(name string, binMult float64) (*histogram.Histogram, error) {
	return histogram.New(name, u.params.Binning().Scaled(binMult))
}

// FileToHistogram fills a histogram of the observable from the record set
// at locator. Selected events are weighted by the efficiency computer when
// corrections are enabled and the nominal selection is used. The observable
// is multiplied by (1 + JES shift) before binning, and values outside the
// fit range are dropped. A missing record set is logged and returned as a
// NOT_FOUND error.
func (u *Utils) FileToHistogram(ctx context.Context, locator, name string, opts HistOptions) (*histogram.Histogram, error) {
	h, err := u.NewEmptyHistogram(name, opts.BinMult)
	if err != nil {
		return nil, err
	}

	pred := u.nominal
	switch {
	case opts.NoCuts:
		pred = nil
	case opts.CutOverride != "":
		if pred, err = selection.Compile(opts.CutOverride); err != nil {
			return nil, errors.Wrapf(err, "compile cut override for %s", name)
		}
	}
	doWeights := u.params.DoEffCorrections && !opts.NoCuts && opts.CutOverride == ""
	scale := 1 + u.params.JESScale(opts.JES-1)

	var read, selected, filled int
	var sumW float64
	err = u.source.Scan(ctx, locator, u.params.RecordSet, func(rec event.Record) error {
		read++
		if pred != nil {
			ok, err := pred.Match(rec)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
		}
		selected++

		w := 1.0
		if doWeights {
			var werr error
			if w, werr = u.weights.Weight(rec, opts.Lepton); werr != nil {
				return werr
			}
		}
		x, ferr := rec.Float(u.params.Observable)
		if ferr != nil {
			return ferr
		}
		if h.Fill(x*scale, w) {
			filled++
			sumW += w
		}
		return nil
	})
	if err != nil {
		return nil, u.scanFailed(err, locator, name)
	}

	u.logger.Info("filled histogram",
		zap.String("histogram", name),
		zap.String("locator", locator),
		zap.Int("read", read),
		zap.Int("selected", selected),
		zap.Int("filled", filled),
		zap.Float64("sumw", sumW),
		zap.Bool("weighted", doWeights))
	return h, nil
}

// HistogramToModel wraps h as a unit-normalised empirical model registered
// in ws under name. A model already registered under name is returned as is.
func (u *Utils) HistogramToModel(h *histogram.Histogram, name string, ws *density.Workspace) (density.Model, error) {
	if m, ok := ws.Get(name); ok {
		u.logger.Debug("reusing model", zap.String("model", name))
		return m, nil
	}
	return ws.EmpiricalFromHistogram(name, h)
}

// FileToSample collects the observable of every selected event at locator
// into an unbinned sample. trunc applies the truncated window; noCuts keeps
// every event inside the fit range. Samples are unweighted even when
// efficiency corrections are enabled.
func (u *Utils) FileToSample(ctx context.Context, locator, name string, trunc, noCuts bool) (*sample.Sample, error) {
	pred := u.nominal
	if trunc {
		pred = u.trunc
	}
	if noCuts {
		pred = nil
	}

	s := sample.New(name, u.params.Observable)
	var read int
	err := u.source.Scan(ctx, locator, u.params.RecordSet, func(rec event.Record) error {
		read++
		if pred != nil {
			ok, err := pred.Match(rec)
			if err != nil || !ok {
				return err
			}
		}
		x, err := rec.Float(u.params.Observable)
		if err != nil {
			return err
		}
		if x >= u.params.MinMass && x <= u.params.MaxMass {
			s.Add(x)
		}
		return nil
	})
	if err != nil {
		return nil, u.scanFailed(err, locator, name)
	}

	u.logger.Info("built sample",
		zap.String("sample", name),
		zap.String("locator", locator),
		zap.Int("read", read),
		zap.Int("kept", s.Len()))
	return s, nil
}

// HistogramToSample draws Entries() values from the shape of h, producing a
// toy unbinned sample.
func (u *Utils) HistogramToSample(h *histogram.Histogram, name string, rng ports.RandomStream) *sample.Sample {
	s := sample.New(name, u.params.Observable)
	for i := int64(0); i < h.Entries(); i++ {
		s.Add(h.Random(rng))
	}
	return s
}

// Channel is one lepton channel contributing to a combined template
type Channel struct {
	Locator string
	Lepton  weights.Lepton
}

// CombinedTemplate fills each channel with opts (its Lepton overridden per
// channel), adds them and normalises the sum to unit area. Channels whose
// record set is missing are skipped; it is an error if none remain.
func (u *Utils) CombinedTemplate(ctx context.Context, name string, opts HistOptions, channels ...Channel) (*histogram.Histogram, error) {
	sum, err := u.NewEmptyHistogram(name, opts.BinMult)
	if err != nil {
		return nil, err
	}
	found := 0
	for i, ch := range channels {
		o := opts
		o.Lepton = ch.Lepton
		h, err := u.FileToHistogram(ctx, ch.Locator, fmt.Sprintf("%s_%s_%d", name, ch.Lepton, i), o)
		if errors.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if sum, err = sum.Add(name, h); err != nil {
			return nil, err
		}
		found++
	}
	if found == 0 {
		return nil, errors.NotFound(fmt.Sprintf("record set %s for template %s", u.params.RecordSet, name))
	}
	sum.Normalize()
	return sum, nil
}

func (u *Utils) scanFailed(err error, locator, name string) error {
	if errors.IsNotFound(err) {
		u.logger.Warn("record set not found",
			zap.String("record_set", u.params.RecordSet),
			zap.String("locator", locator),
			zap.String("target", name),
			zap.Error(err))
		return err
	}
	return errors.Wrapf(err, "read %s from %s", name, locator)
}
