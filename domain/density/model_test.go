package density

import (
	"testing"

	"wjjfit/domain/histogram"
	"wjjfit/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func filled(t *testing.T, name string, b histogram.Binning, xs, ws []float64) *histogram.Histogram {
	t.Helper()
	h, err := histogram.New(name, b)
	require.NoError(t, err)
	for i, x := range xs {
		h.Fill(x, ws[i])
	}
	return h
}

// area sums density × width over the histogram's bins
func area(e *Empirical) float64 {
	var a float64
	for _, b := range e.Bins() {
		a += e.Value(b.Center()) * b.Width()
	}
	return a
}

func TestEmpirical_UnitIntegral(t *testing.T) {
	xs := []float64{61, 75, 75, 110, 190, 260, 299}
	ws := []float64{1, 0.5, 2, 1.2, 0.8, 3, 1}

	for name, b := range map[string]histogram.Binning{
		"uniform":  histogram.Uniform(24, 60, 300),
		"variable": histogram.Variable([]float64{60, 70, 85, 100, 150, 200, 300}),
	} {
		t.Run(name, func(t *testing.T) {
			e, err := NewEmpirical(name, filled(t, name, b, xs, ws))
			require.NoError(t, err)
			assert.InDelta(t, 1.0, area(e), 1e-12)
			assert.InDelta(t, 1.0, e.Integral(60, 300), 1e-12)
			assert.InDelta(t, 1.0, Integral(e, -1e9, 1e9), 1e-12)
		})
	}
}

func TestEmpirical_PartialIntegral(t *testing.T) {
	h := filled(t, "flat", histogram.Uniform(10, 0, 100), []float64{5, 15, 25, 35, 45, 55, 65, 75, 85, 95},
		[]float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 1})
	e, err := NewEmpirical("flat", h)
	require.NoError(t, err)

	assert.InDelta(t, 0.1, e.Integral(10, 20), 1e-12)
	assert.InDelta(t, 0.25, e.Integral(0, 25), 1e-12)
	assert.InDelta(t, 0.01, e.Value(42), 1e-12)
	assert.Zero(t, e.Value(100))
	assert.InDelta(t, 10.0, e.ExpectedEvents(), 1e-12)
}

func TestEmpirical_EmptyHistogram(t *testing.T) {
	h, err := histogram.New("empty", histogram.Uniform(4, 0, 1))
	require.NoError(t, err)
	e, err := NewEmpirical("empty", h)
	require.NoError(t, err)

	assert.Zero(t, e.Integral(0, 1))
	assert.Zero(t, e.Value(0.3))
}

func TestNewComposite_Modes(t *testing.T) {
	h := filled(t, "a", histogram.Uniform(2, 0, 2), []float64{0.5, 1.5}, []float64{1, 3})
	a, err := NewEmpirical("a", h)
	require.NoError(t, err)
	b, err := NewEmpirical("b", h)
	require.NoError(t, err)
	c, err := NewEmpirical("c", h)
	require.NoError(t, err)

	ext, err := NewExtended("ext", With(a, 30), With(b, 10))
	require.NoError(t, err)
	assert.Equal(t, Extended, ext.Mode())
	assert.InDelta(t, 40.0, ExpectedEvents(ext), 1e-12)
	assert.Equal(t, []float64{0.75, 0.25}, ext.Fractions())

	frac, err := NewComposite("frac", 200, With(a, 0.2), With(b, 0.3), Remainder(c))
	require.NoError(t, err)
	assert.Equal(t, Fractional, frac.Mode())
	assert.InDelta(t, 200.0, ExpectedEvents(frac), 1e-12)
	fr := frac.Fractions()
	assert.InDelta(t, 0.5, fr[2], 1e-12)

	all, err := NewComposite("all", 100, With(a, 0.3), With(b, 0.2))
	require.NoError(t, err)
	assert.Equal(t, Fractional, all.Mode())
	assert.InDelta(t, 50.0, ExpectedEvents(all), 1e-12)
	fr = all.Fractions()
	assert.InDelta(t, 0.6, fr[0], 1e-12)
	assert.InDelta(t, 0.4, fr[1], 1e-12)

	single, err := NewComposite("single", 100, With(a, 1))
	require.NoError(t, err)
	assert.Equal(t, Fractional, single.Mode())
	assert.InDelta(t, 100.0, ExpectedEvents(single), 1e-12)
	assert.InDelta(t, 1.0, Integral(single, 0, 2), 1e-12)

	plain, err := NewComposite("plain", 0, Remainder(a), Remainder(ext))
	require.NoError(t, err)
	assert.Equal(t, Uncoefficiented, plain.Mode())
	assert.InDelta(t, 44.0, ExpectedEvents(plain), 1e-12)
	assert.InDelta(t, 1.0, Integral(plain, 0, 2), 1e-12)
}

func TestNewComposite_Invalid(t *testing.T) {
	h := filled(t, "a", histogram.Uniform(2, 0, 2), []float64{0.5}, []float64{1})
	a, err := NewEmpirical("a", h)
	require.NoError(t, err)

	tests := []struct {
		name  string
		terms []Term
	}{
		{"no terms", nil},
		{"partial coefficients", []Term{With(a, 0.2), Remainder(a), Remainder(a)}},
		{"last has coefficient only", []Term{Remainder(a), With(a, 0.3)}},
		{"fraction above one", []Term{With(a, 1.2), Remainder(a)}},
		{"fractions sum above one", []Term{With(a, 0.6), With(a, 0.6), Remainder(a)}},
		{"negative fraction", []Term{With(a, -0.1), Remainder(a)}},
		{"coefficient above one", []Term{With(a, 3)}},
		{"all fractions sum above one", []Term{With(a, 0.7), With(a, 0.6)}},
		{"nil model", []Term{{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewComposite("bad", 0, tt.terms...)
			assert.True(t, errors.HasCode(err, errors.CodeConfigInvalid), "got %v", err)
		})
	}
}

func TestNewExtended_Invalid(t *testing.T) {
	h := filled(t, "a", histogram.Uniform(2, 0, 2), []float64{0.5}, []float64{1})
	a, err := NewEmpirical("a", h)
	require.NoError(t, err)

	_, err = NewExtended("bad")
	assert.True(t, errors.HasCode(err, errors.CodeConfigInvalid))
	_, err = NewExtended("bad", With(a, 10), Remainder(a))
	assert.True(t, errors.HasCode(err, errors.CodeConfigInvalid))
	_, err = NewExtended("bad", With(a, -3))
	assert.True(t, errors.HasCode(err, errors.CodeConfigInvalid))

	_, err = NewComposite("bad", -5, Remainder(a))
	assert.True(t, errors.HasCode(err, errors.CodeConfigInvalid))
}

func TestComposite_IntegralAndValue(t *testing.T) {
	left := filled(t, "left", histogram.Uniform(2, 0, 2), []float64{0.5}, []float64{1})
	right := filled(t, "right", histogram.Uniform(2, 0, 2), []float64{1.5}, []float64{1})
	l, err := NewEmpirical("left", left)
	require.NoError(t, err)
	r, err := NewEmpirical("right", right)
	require.NoError(t, err)

	sum, err := NewComposite("sum", 100, With(l, 0.25), Remainder(r))
	require.NoError(t, err)

	assert.InDelta(t, 0.25, Integral(sum, 0, 1), 1e-12)
	assert.InDelta(t, 0.75, Integral(sum, 1, 2), 1e-12)
	assert.InDelta(t, 0.75, Value(sum, 1.2), 1e-12)
}

func TestWorkspace_Idempotent(t *testing.T) {
	ws := NewWorkspace()
	h1 := filled(t, "h1", histogram.Uniform(2, 0, 2), []float64{0.5}, []float64{1})
	h2 := filled(t, "h2", histogram.Uniform(2, 0, 2), []float64{1.5}, []float64{1})

	first, err := ws.EmpiricalFromHistogram("WW_shape", h1)
	require.NoError(t, err)
	second, err := ws.EmpiricalFromHistogram("WW_shape", h2)
	require.NoError(t, err)

	assert.Same(t, first, second)
	e, err := ws.Empirical("WW_shape")
	require.NoError(t, err)
	assert.Same(t, h1, e.Histogram())
	assert.Equal(t, []string{"WW_shape"}, ws.Names())

	_, err = ws.Empirical("ttbar_shape")
	assert.True(t, errors.IsNotFound(err))
}
