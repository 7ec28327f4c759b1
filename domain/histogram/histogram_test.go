package histogram

import (
	"math/rand"
	"testing"

	"wjjfit/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uniformTen(t *testing.T) *Histogram {
	t.Helper()
	h, err := New("flat", Uniform(10, 0, 100))
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		require.True(t, h.Fill(float64(i)+0.5, 1))
	}
	return h
}

func TestHistogram_UniformFill(t *testing.T) {
	h := uniformTen(t)

	require.Equal(t, 10, h.Len())
	for i, b := range h.Bins() {
		assert.InDelta(t, 10.0, b.SumW, 1e-12, "bin %d", i)
		assert.InDelta(t, 10.0, b.SumW2, 1e-12, "bin %d", i)
		assert.InDelta(t, float64(10*i), b.Low, 1e-12)
		assert.InDelta(t, float64(10*i+10), b.High, 1e-12)
	}
	assert.InDelta(t, 100.0, h.SumW(), 1e-12)
	assert.Equal(t, int64(100), h.Entries())
}

func TestHistogram_WeightsAndOutOfRange(t *testing.T) {
	h, err := New("w", Uniform(4, 0, 4))
	require.NoError(t, err)

	values := []float64{-1, 0, 0.5, 1.5, 3.99, 4, 7}
	weights := []float64{2, 0.5, 1.5, 2, 3, 9, 9}
	var inRange float64
	for i, x := range values {
		if h.Fill(x, weights[i]) {
			inRange += weights[i]
		}
	}
	assert.InDelta(t, 7.0, inRange, 1e-12)
	assert.InDelta(t, inRange, h.SumW(), 1e-12)
	assert.InDelta(t, 0.25+2.25+4+9, h.SumW2(), 1e-12)
}

func TestHistogram_BoundaryValuesLandOnce(t *testing.T) {
	h, err := New("edges", Variable([]float64{0, 10, 25, 50, 100}))
	require.NoError(t, err)

	for _, x := range []float64{0, 10, 25, 50} {
		require.True(t, h.Fill(x, 1))
	}
	assert.False(t, h.Fill(100, 1), "upper edge is exclusive")

	bins := h.Bins()
	for i, b := range bins {
		assert.InDelta(t, 1.0, b.SumW, 1e-12, "bin %d [%g,%g)", i, b.Low, b.High)
	}
	assert.Equal(t, 1, h.FindBin(10))
	assert.Equal(t, 0, h.FindBin(9.999))
	assert.Equal(t, 3, h.FindBin(99))
	assert.Equal(t, -1, h.FindBin(100))
	assert.Equal(t, -1, h.FindBin(-0.1))
}

func TestBinning_Validate(t *testing.T) {
	tests := []struct {
		name string
		b    Binning
		ok   bool
	}{
		{"uniform", Uniform(24, 60, 300), true},
		{"variable", Variable([]float64{60, 70, 90, 300}), true},
		{"zero bins", Uniform(0, 0, 1), false},
		{"inverted range", Uniform(5, 10, 1), false},
		{"unsorted edges", Variable([]float64{0, 5, 3}), false},
		{"repeated edge", Variable([]float64{0, 5, 5, 6}), false},
		{"single edge", Binning{Edges: []float64{1}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.b.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.HasCode(err, errors.CodeConfigInvalid), "got %v", err)
			}
		})
	}
}

func TestBinning_Scaled(t *testing.T) {
	b := Uniform(24, 60, 300).Scaled(2.5)
	assert.Equal(t, 60, b.N)
	assert.Equal(t, 60.0, b.Min)

	v := Variable([]float64{0, 1, 3})
	assert.Equal(t, v.BinEdges(), v.Scaled(4).BinEdges(), "explicit edges ignore the multiplier")
}

func TestHistogram_ScaleAndAdd(t *testing.T) {
	el := uniformTen(t)
	mu := uniformTen(t)
	mu.Scale(0.5)

	assert.InDelta(t, 50.0, mu.SumW(), 1e-12)
	assert.InDelta(t, 0.25*10, mu.Bin(0).SumW2, 1e-12)

	sum, err := el.Add("combined", mu)
	require.NoError(t, err)
	assert.Equal(t, "combined", sum.Name())
	assert.InDelta(t, 150.0, sum.SumW(), 1e-9)
	assert.InDelta(t, 12.5, sum.Bin(3).SumW2, 1e-9)

	other, err := New("coarse", Uniform(5, 0, 100))
	require.NoError(t, err)
	_, err = el.Add("bad", other)
	assert.True(t, errors.HasCode(err, errors.CodeInvalidInput))
}

func TestHistogram_Normalize(t *testing.T) {
	h := uniformTen(t)
	h.Normalize()
	assert.InDelta(t, 1.0, h.SumW(), 1e-12)

	empty, err := New("empty", Uniform(3, 0, 1))
	require.NoError(t, err)
	empty.Normalize()
	assert.Zero(t, empty.SumW())
}

func TestHistogram_RandomFollowsShape(t *testing.T) {
	h, err := New("peak", Uniform(4, 0, 4))
	require.NoError(t, err)
	h.Fill(1.5, 3)
	h.Fill(2.5, 1)

	rng := rand.New(rand.NewSource(7))
	counts := make([]int, 4)
	for i := 0; i < 4000; i++ {
		x := h.Random(rng)
		require.GreaterOrEqual(t, x, 0.0)
		require.Less(t, x, 4.0)
		counts[h.FindBin(x)]++
	}
	assert.Zero(t, counts[0])
	assert.Zero(t, counts[3])
	assert.InDelta(t, 3000, counts[1], 150)
	assert.InDelta(t, 1000, counts[2], 150)
}
