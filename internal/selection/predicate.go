// Package selection builds the event selection of an mjj fit: the cut
// expression text in the trees' branch names and a compiled predicate that
// evaluates it on event records.
package selection

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"wjjfit/domain/event"
	"wjjfit/internal/config"
	"wjjfit/internal/errors"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// JetCut returns the jet-multiplicity requirement; categories below 2 select
// the inclusive 2-or-3 jet bin.
func JetCut(njets int) string {
	if njets < 2 {
		return fmt.Sprintf("%s==2 || %s==3", event.FieldNJets, event.FieldNJets)
	}
	return fmt.Sprintf("%s==%d", event.FieldNJets, njets)
}

// FullCuts returns the complete selection: the mass window (or, when trunc
// is set, the window minus the truncation region) AND the jet cut AND any
// additional cuts from the parameters. Bounds are written exactly so the
// window matches the histogram range.
func FullCuts(p config.FitParameters, trunc bool) string {
	v := p.Observable
	cut := fmt.Sprintf("((%s >= %s) && (%s <= %s))", v, bound(p.MinMass), v, bound(p.MaxMass))
	if trunc && p.HasTruncation() {
		cut = fmt.Sprintf("(((%s >= %s) && (%s <= %s)) || ((%s >= %s) && (%s <= %s)))",
			v, bound(p.MinMass), v, bound(p.MinTrunc),
			v, bound(p.MaxTrunc), v, bound(p.MaxMass))
	}
	cut += fmt.Sprintf(" && (%s)", JetCut(p.NJets))
	if strings.TrimSpace(p.Cuts) != "" {
		cut += fmt.Sprintf(" && (%s)", p.Cuts)
	}
	return "(" + cut + ")"
}

// bound formats a window edge with the shortest exact decimal, without an
// exponent
func bound(x float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64)
}

// Predicate is a compiled selection expression
type Predicate struct {
	text    string
	program *vm.Program
}

// math helpers available inside cut expressions, besides expr's builtins
var functions = []expr.Option{
	unary("sqrt", math.Sqrt),
	unary("cos", math.Cos),
	unary("sin", math.Sin),
	unary("exp", math.Exp),
	unary("log", math.Log),
}

func unary(name string, fn func(float64) float64) expr.Option {
	return expr.Function(name, func(params ...any) (any, error) {
		if len(params) != 1 {
			return nil, fmt.Errorf("%s: want 1 argument, got %d", name, len(params))
		}
		x, ok := number(params[0])
		if !ok {
			return nil, fmt.Errorf("%s: argument %v is not numeric", name, params[0])
		}
		return fn(x), nil
	})
}

func number(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	default:
		return 0, false
	}
}

// Compile parses a selection expression. The empty expression selects
// every event.
func Compile(text string) (*Predicate, error) {
	p := &Predicate{text: strings.TrimSpace(text)}
	if p.text == "" {
		return p, nil
	}
	opts := append([]expr.Option{expr.AsBool()}, functions...)
	program, err := expr.Compile(p.text, opts...)
	if err != nil {
		return nil, errors.Wrapf(errors.WithCode(errors.CodeConfigInvalid, err), "compile selection %q", p.text)
	}
	p.program = program
	return p, nil
}

// MustCompile is Compile for expressions known to be valid
func MustCompile(text string) *Predicate {
	p, err := Compile(text)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the expression text
func (p *Predicate) String() string { return p.text }

// Match evaluates the predicate on one record
func (p *Predicate) Match(rec event.Record) (bool, error) {
	if p.program == nil {
		return true, nil
	}
	out, err := expr.Run(p.program, map[string]any(rec))
	if err != nil {
		return false, errors.Wrapf(errors.WithCode(errors.CodeInvalidInput, err), "evaluate selection %q", p.text)
	}
	ok, _ := out.(bool)
	return ok, nil
}
