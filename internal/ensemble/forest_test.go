package ensemble

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hansel67/stock-analyzer/internal/contracts"
)

// synthetic y = 3·x0 − 2·x1² + noise
func synthetic(n int, seed int64) ([][]float64, []float64) {
	rng := rand.New(rand.NewSource(seed))
	x := make([][]float64, n)
	y := make([]float64, n)
	for i := range x {
		a, b := rng.Float64()*4-2, rng.Float64()*4-2
		x[i] = []float64{a, b}
		y[i] = 3*a - 2*b*b + 0.1*rng.NormFloat64()
	}
	return x, y
}

func r2(actual, predicted []float64) float64 {
	var mean float64
	for _, v := range actual {
		mean += v
	}
	mean /= float64(len(actual))

	var ssRes, ssTot float64
	for i := range actual {
		ssRes += (actual[i] - predicted[i]) * (actual[i] - predicted[i])
		ssTot += (actual[i] - mean) * (actual[i] - mean)
	}
	return 1 - ssRes/ssTot
}

func TestFit_LearnsSignal(t *testing.T) {
	x, y := synthetic(400, 1)
	xt, yt := synthetic(200, 2)

	cfg := DefaultConfig()
	cfg.Trees = 50
	f, err := Fit(x, y, cfg)
	require.NoError(t, err)

	assert.Equal(t, 50, f.Size())
	assert.Equal(t, 2, f.Features())
	assert.Greater(t, r2(yt, f.Predict(xt)), 0.8, "out-of-sample R² should beat the mean baseline by a wide margin")
}

func TestFit_DeterministicAcrossWorkers(t *testing.T) {
	x, y := synthetic(150, 3)

	cfg := DefaultConfig()
	cfg.Trees = 20
	cfg.Workers = 1
	a, err := Fit(x, y, cfg)
	require.NoError(t, err)

	cfg.Workers = 8
	b, err := Fit(x, y, cfg)
	require.NoError(t, err)

	assert.Equal(t, a.Predict(x), b.Predict(x))

	cfg.Seed = 7
	c, err := Fit(x, y, cfg)
	require.NoError(t, err)
	assert.NotEqual(t, a.Predict(x), c.Predict(x), "different seeds should give different forests")
}

func TestFit_PredictionsWithinLabelRange(t *testing.T) {
	x, y := synthetic(100, 4)
	f, err := Fit(x, y, DefaultConfig())
	require.NoError(t, err)

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range y {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	probe := [][]float64{{-100, -100}, {100, 100}, {0, 0}}
	for _, p := range f.Predict(probe) {
		assert.GreaterOrEqual(t, p, lo)
		assert.LessOrEqual(t, p, hi)
	}
}

func TestFit_MaxDepthAndLeafSize(t *testing.T) {
	x, y := synthetic(200, 5)

	cfg := DefaultConfig()
	cfg.Trees = 5
	cfg.MaxDepth = 3
	cfg.MinSamplesLeaf = 10
	f, err := Fit(x, y, cfg)
	require.NoError(t, err)

	for i := 0; i < f.Size(); i++ {
		tree := f.Tree(i)
		assert.LessOrEqual(t, tree.Depth(), 3)
		assert.LessOrEqual(t, tree.Leaves(), 8)
	}
}

func TestFit_ConstantLabels(t *testing.T) {
	x := [][]float64{{1, 2}, {2, 3}, {3, 4}, {4, 5}}
	y := []float64{7, 7, 7, 7}

	f, err := Fit(x, y, DefaultConfig())
	require.NoError(t, err)
	for _, p := range f.Predict(x) {
		assert.Equal(t, 7.0, p)
	}
}

func TestFit_SingleRow(t *testing.T) {
	f, err := Fit([][]float64{{1, 1}}, []float64{3}, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, []float64{3}, f.Predict([][]float64{{5, 5}}))
}

func TestFit_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		x    [][]float64
		y    []float64
	}{
		{"empty", nil, nil},
		{"length mismatch", [][]float64{{1}, {2}}, []float64{1}},
		{"ragged", [][]float64{{1, 2}, {3}}, []float64{1, 2}},
		{"no features", [][]float64{{}}, []float64{1}},
		{"nan feature", [][]float64{{math.NaN()}}, []float64{1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Fit(tt.x, tt.y, DefaultConfig())
			assert.True(t, errors.Is(err, contracts.ErrInsufficientData), "got %v", err)
		})
	}

	cfg := DefaultConfig()
	cfg.Trees = 0
	_, err := Fit([][]float64{{1}}, []float64{1}, cfg)
	assert.Error(t, err)
}
