// Package efficiency loads efficiency lookup tables and assembles the
// provider set used by the event weight computer.
package efficiency

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"wjjfit/internal/errors"
	"wjjfit/internal/logging"
	"wjjfit/internal/weights"

	"go.uber.org/zap"
)

// Band is one rectangular cell of a lookup table
type Band struct {
	XLow, XHigh float64
	YLow, YHigh float64
	Eff         float64
}

func (b Band) contains(x, y float64) bool {
	return x >= b.XLow && x < b.XHigh && y >= b.YLow && y < b.YHigh
}

// Table is a piecewise-constant efficiency over (x, y), typically (pT, eta)
// or (MET, 0). Points above the table's x range take the value of the
// highest x band, modelling the efficiency plateau; any other point outside
// every band has efficiency 0.
type Table struct {
	name  string
	bands []Band
	xMax  float64
}

// NewTable builds a table from its bands
func NewTable(name string, bands []Band) (*Table, error) {
	if len(bands) == 0 {
		return nil, errors.ConfigInvalid(fmt.Sprintf("efficiency table %s has no bands", name))
	}
	t := &Table{name: name, bands: append([]Band(nil), bands...)}
	sort.SliceStable(t.bands, func(i, j int) bool {
		if t.bands[i].XLow != t.bands[j].XLow {
			return t.bands[i].XLow < t.bands[j].XLow
		}
		return t.bands[i].YLow < t.bands[j].YLow
	})
	for i, b := range t.bands {
		if !(b.XHigh > b.XLow) || !(b.YHigh > b.YLow) {
			return nil, errors.ConfigInvalid(fmt.Sprintf("efficiency table %s: band %d has an empty range", name, i))
		}
		if b.Eff < 0 || b.Eff > 1 {
			return nil, errors.ConfigInvalid(fmt.Sprintf("efficiency table %s: band %d efficiency %g outside [0,1]", name, i, b.Eff))
		}
		if i == 0 || b.XHigh > t.xMax {
			t.xMax = b.XHigh
		}
	}
	return t, nil
}

// Name returns the table name
func (t *Table) Name() string { return t.name }

// Bands returns a copy of the table's bands, sorted by x then y
func (t *Table) Bands() []Band { return append([]Band(nil), t.bands...) }

// Efficiency implements ports.EfficiencyProvider
func (t *Table) Efficiency(x, y float64) float64 {
	if x >= t.xMax {
		// just inside the last band
		x = t.xMax - 1e-9*(1+math.Abs(t.xMax))
	}
	for _, b := range t.bands {
		if b.contains(x, y) {
			return b.Eff
		}
	}
	return 0
}

// ReadTable parses a whitespace-separated table with one band per line:
// xlow xhigh ylow yhigh eff, optionally followed by uncertainty columns that
// are ignored. Blank lines and lines starting with '#' are skipped.
func ReadTable(name string, r io.Reader) (*Table, error) {
	var bands []Band
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) < 5 {
			return nil, errors.ConfigInvalid(fmt.Sprintf("efficiency table %s line %d: want at least 5 columns, got %d", name, line, len(fields)))
		}
		var v [5]float64
		for i := range v {
			f, err := strconv.ParseFloat(fields[i], 64)
			if err != nil {
				return nil, errors.Wrapf(errors.WithCode(errors.CodeConfigInvalid, err),
					"efficiency table %s line %d column %d", name, line, i+1)
			}
			v[i] = f
		}
		bands = append(bands, Band{XLow: v[0], XHigh: v[1], YLow: v[2], YHigh: v[3], Eff: v[4]})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.SourceError(name, err)
	}
	return NewTable(name, bands)
}

// LoadTable reads a table file
func LoadTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFound(fmt.Sprintf("efficiency table %s", path))
		}
		return nil, errors.SourceError(path, err)
	}
	defer f.Close()
	return ReadTable(filepath.Base(path), f)
}

// Constant is an efficiency independent of its inputs
type Constant float64

// Efficiency implements ports.EfficiencyProvider
func (c Constant) Efficiency(x, y float64) float64 { return float64(c) }

// Standard table files of the 2011 electron and muon analyses
const (
	FileEleReco    = "eleEffsSCToReco_ScaleFactors.txt"
	FileEleID      = "eleEffsRecoToWP80_ScaleFactors.txt"
	FileEleTrigger = "eleEffsWP80ToHLTEle27_May10ReReco.txt"
	FileEleLeg     = "eleEffsHLTEle2jPfMht_data_LWA_Ele.txt"
	FileMuID       = "muonEffsRecoToIso_ScaleFactors.txt"
	FileMuTrigger  = "muonEffsIsoToHLT_data_LP_LWA.txt"
	FileJet30      = "eleEffsHLTEle2jPfMht_data_LWA_Jet30.txt"
	FileJet25Not30 = "eleEffsHLTEle2jPfMht_data_LWA_Jet25Not30.txt"
	FileMHT        = "eleEffsHLTEle2jPfMht_data_LWA_PfMht.txt"
)

// LoadStandardSet loads the standard tables from dir. The electron leg of
// the cross trigger (FileEleLeg) is not part of the weight and is not read.
func LoadStandardSet(dir string) (weights.Providers, error) {
	logger := logging.Component("efficiency")

	files := []struct {
		file string
		set  func(p *weights.Providers, t *Table)
	}{
		{FileEleReco, func(p *weights.Providers, t *Table) { p.EleReco = t }},
		{FileEleID, func(p *weights.Providers, t *Table) { p.EleID = t }},
		{FileEleTrigger, func(p *weights.Providers, t *Table) { p.EleTrigger = t }},
		{FileMuID, func(p *weights.Providers, t *Table) { p.MuID = t }},
		{FileMuTrigger, func(p *weights.Providers, t *Table) { p.MuTrigger = t }},
		{FileJet30, func(p *weights.Providers, t *Table) { p.Jet30 = t }},
		{FileJet25Not30, func(p *weights.Providers, t *Table) { p.Jet25Not30 = t }},
		{FileMHT, func(p *weights.Providers, t *Table) { p.MHT = t }},
	}

	var p weights.Providers
	for _, f := range files {
		t, err := LoadTable(filepath.Join(dir, f.file))
		if err != nil {
			return weights.Providers{}, errors.Wrapf(err, "load standard efficiencies from %s", dir)
		}
		f.set(&p, t)
		logger.Debug("loaded efficiency table", zap.String("file", f.file), zap.Int("bands", len(t.bands)))
	}
	return p, nil
}
