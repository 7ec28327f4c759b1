// Package container wires one fit configuration into its event source,
// efficiency lookups, random stream and fitter.
package container

import (
	"math/rand"

	"wjjfit/adapters/efficiency"
	"wjjfit/internal/config"
	"wjjfit/internal/errors"
	"wjjfit/internal/fitter"
	"wjjfit/internal/logging"
	"wjjfit/internal/weights"
	"wjjfit/ports"

	"go.uber.org/zap"
)

// Container holds the dependencies of one fit configuration
type Container struct {
	Params config.FitParameters

	// Infrastructure
	Source ports.EventSource
	Stream ports.RandomStream

	// Efficiency corrections; nil when disabled
	Providers *weights.Providers
	Weights   *weights.Computer

	Fitter *fitter.Utils
}

// SeededStream returns the random stream for seed
func SeededStream(seed int64) ports.RandomStream {
	return rand.New(rand.NewSource(seed))
}

// New builds a container from params. With efficiency corrections enabled
// the standard efficiency tables are read from params.EffDir, and the weight
// computer takes params' trigger rule, luminosity and seed.
func New(params config.FitParameters, source ports.EventSource) (*Container, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if !params.DoEffCorrections {
		return build(params, source, nil)
	}

	providers, err := efficiency.LoadStandardSet(params.EffDir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load efficiency tables from %s", params.EffDir)
	}
	return build(params, source, &providers)
}

// NewWithProviders builds a container using the given efficiency lookups in
// place of the tables under params.EffDir.
func NewWithProviders(params config.FitParameters, source ports.EventSource, providers weights.Providers) (*Container, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return build(params, source, &providers)
}

func build(params config.FitParameters, source ports.EventSource, providers *weights.Providers) (*Container, error) {
	c := &Container{
		Params:    params,
		Source:    source,
		Stream:    SeededStream(params.Seed),
		Providers: providers,
	}

	if providers != nil {
		w, err := weights.NewComputer(*providers, params.IntLumi, params.Rule(), c.Stream)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create weight computer")
		}
		c.Weights = w
	}

	f, err := fitter.New(params, source, c.Weights)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create fitter")
	}
	c.Fitter = f

	logging.Component("container").Info("fit configuration wired",
		zap.String("observable", params.Observable),
		zap.Int("njets", params.NJets),
		zap.String("trigger_rule", params.Rule().String()),
		zap.Int64("seed", params.Seed),
		zap.Bool("eff_corrections", c.Weights != nil))
	return c, nil
}
