package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"wjjfit/domain/histogram"
	"wjjfit/domain/trigger"
	"wjjfit/internal/errors"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultSeed seeds the trigger-redundancy random stream when none is configured
const DefaultSeed int64 = 987654321

// FitParameters configures one mjj fit: the observable and its binning, the
// event selection and the efficiency corrections. Treat it as a value; use
// WithJetMultiplicity to derive a variant.
type FitParameters struct {
	Observable string    `yaml:"observable" validate:"required"`
	RecordSet  string    `yaml:"record_set" validate:"required"`
	MinMass    float64   `yaml:"min_mass"`
	MaxMass    float64   `yaml:"max_mass"`
	NBins      int       `yaml:"nbins" validate:"gt=0"`
	BinEdges   []float64 `yaml:"bin_edges"`
	NJets      int       `yaml:"njets" validate:"gte=0"`

	// Truncation window excluded from truncated selections; zero values mean unset
	MinTrunc float64 `yaml:"min_trunc"`
	MaxTrunc float64 `yaml:"max_trunc"`

	Cuts             string    `yaml:"cuts"`
	IntLumi          float64   `yaml:"int_lumi" validate:"gt=0"`
	DoEffCorrections bool      `yaml:"do_eff_corrections"`
	JESScales        []float64 `yaml:"jes_scales" validate:"dive,gt=-1"`
	EffDir           string    `yaml:"eff_dir"`
	TriggerRule      string    `yaml:"trigger_rule" validate:"omitempty,oneof=any-tight-or-two-loose tight-plus-second-leg"`
	Seed             int64     `yaml:"seed"`
}

// Default returns the parameters of the standard 2011 W+jets mjj fit
func Default() FitParameters {
	return FitParameters{
		Observable:  "Mass2j_PFCor",
		RecordSet:   "WJet",
		MinMass:     60,
		MaxMass:     300,
		NBins:       24,
		NJets:       2,
		IntLumi:     1000,
		EffDir:      "EffTable2011/",
		TriggerRule: trigger.AnyTightOrTwoLoose.String(),
		Seed:        DefaultSeed,
	}
}

// Load reads parameters from a YAML file layered over Default, applies
// environment overrides and validates the result.
func Load(path string) (*FitParameters, error) {
	params := Default()

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(errors.WithCode(errors.CodeConfigInvalid, err), "failed to read fit parameters %s", path)
	}
	if err := yaml.Unmarshal(raw, &params); err != nil {
		return nil, errors.Wrapf(errors.WithCode(errors.CodeConfigInvalid, err), "failed to parse fit parameters %s", path)
	}

	// A missing .env is fine; variables may come from the real environment
	_ = godotenv.Load()
	applyEnv(&params)

	if err := params.Validate(); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return &params, nil
}

// applyEnv overrides fields from WJJ_* variables
func applyEnv(p *FitParameters) {
	p.Observable = getEnvOrDefault("WJJ_OBSERVABLE", p.Observable)
	p.RecordSet = getEnvOrDefault("WJJ_RECORD_SET", p.RecordSet)
	p.MinMass = getEnvFloatOrDefault("WJJ_MIN_MASS", p.MinMass)
	p.MaxMass = getEnvFloatOrDefault("WJJ_MAX_MASS", p.MaxMass)
	p.NBins = getEnvIntOrDefault("WJJ_NBINS", p.NBins)
	p.NJets = getEnvIntOrDefault("WJJ_NJETS", p.NJets)
	p.Cuts = getEnvOrDefault("WJJ_CUTS", p.Cuts)
	p.IntLumi = getEnvFloatOrDefault("WJJ_INT_LUMI", p.IntLumi)
	p.DoEffCorrections = getEnvBoolOrDefault("WJJ_DO_EFF_CORRECTIONS", p.DoEffCorrections)
	p.EffDir = getEnvOrDefault("WJJ_EFF_DIR", p.EffDir)
	p.TriggerRule = getEnvOrDefault("WJJ_TRIGGER_RULE", p.TriggerRule)
	p.Seed = int64(getEnvIntOrDefault("WJJ_SEED", int(p.Seed)))
	if edges := os.Getenv("WJJ_BIN_EDGES"); edges != "" {
		if parsed, err := parseFloatList(edges); err == nil {
			p.BinEdges = parsed
		}
	}
}

var validate = validator.New()

// Validate checks the parameters are self-consistent. When explicit bin
// edges are given with both mass bounds zero, the bounds are taken from the
// edges.
func (p *FitParameters) Validate() error {
	if err := validate.Struct(p); err != nil {
		return errors.WithCode(errors.CodeConfigInvalid, err)
	}

	if len(p.BinEdges) > 0 {
		if len(p.BinEdges) < 2 {
			return errors.ConfigInvalid("bin_edges needs at least two edges")
		}
		if p.MinMass == 0 && p.MaxMass == 0 {
			p.MinMass = p.BinEdges[0]
			p.MaxMass = p.BinEdges[len(p.BinEdges)-1]
		}
		if p.BinEdges[0] != p.MinMass || p.BinEdges[len(p.BinEdges)-1] != p.MaxMass {
			return errors.ConfigInvalid(fmt.Sprintf("bin_edges span [%g, %g] but the fit range is [%g, %g]",
				p.BinEdges[0], p.BinEdges[len(p.BinEdges)-1], p.MinMass, p.MaxMass))
		}
	}
	if !(p.MaxMass > p.MinMass) {
		return errors.ConfigInvalid(fmt.Sprintf("max_mass %g must exceed min_mass %g", p.MaxMass, p.MinMass))
	}
	if err := p.Binning().Validate(); err != nil {
		return err
	}

	if p.HasTruncation() {
		if !(p.MinMass <= p.MinTrunc && p.MinTrunc < p.MaxTrunc && p.MaxTrunc <= p.MaxMass) {
			return errors.ConfigInvalid(fmt.Sprintf("truncation window [%g, %g] must lie inside [%g, %g]",
				p.MinTrunc, p.MaxTrunc, p.MinMass, p.MaxMass))
		}
	}
	if _, err := trigger.ParseRule(p.TriggerRule); err != nil {
		return err
	}
	return nil
}

// Binning returns the explicit edges when configured, else the uniform binning
func (p FitParameters) Binning() histogram.Binning {
	if len(p.BinEdges) > 1 {
		return histogram.Variable(p.BinEdges)
	}
	return histogram.Uniform(p.NBins, p.MinMass, p.MaxMass)
}

// HasTruncation reports whether a truncation window is configured
func (p FitParameters) HasTruncation() bool {
	return p.MinTrunc != 0 || p.MaxTrunc != 0
}

// Rule returns the configured trigger firing rule
func (p FitParameters) Rule() trigger.Rule {
	r, _ := trigger.ParseRule(p.TriggerRule)
	return r
}

// JESScale returns the jet-energy-scale shift for systematic index i, or 0
// when i selects no shift.
func (p FitParameters) JESScale(i int) float64 {
	if i >= 0 && i < len(p.JESScales) {
		return p.JESScales[i]
	}
	return 0
}

// WithJetMultiplicity returns a copy selecting njets jets
func (p FitParameters) WithJetMultiplicity(njets int) FitParameters {
	p.NJets = njets
	p.BinEdges = append([]float64(nil), p.BinEdges...)
	p.JESScales = append([]float64(nil), p.JESScales...)
	return p
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func parseFloatList(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}
