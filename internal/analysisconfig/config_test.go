package analysisconfig

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hansel67/stock-analyzer/pkg/config"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 10, cfg.LookbackYears)
	assert.Equal(t, 0.8, cfg.SplitRatio)
	assert.Equal(t, 30, cfg.HistogramBins)
	assert.Equal(t, 5, cfg.GARCH.MinObservations)
	assert.Equal(t, 2000, cfg.GARCH.MaxIterations)
	assert.Equal(t, 1e-10, cfg.GARCH.Tolerance)
	assert.Equal(t, 100, cfg.Ensemble.Trees)
	assert.Equal(t, int64(42), cfg.Ensemble.Seed)
	assert.NoError(t, Validate(cfg))
}

func TestLoad_RepositoryProfile(t *testing.T) {
	path := "../../config/analysis/default.yaml"
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Skip("profile not found")
	}

	cfg, data, err := Load(path)
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	// 저장소 기본 프로필 = 내장 기본값
	want, err := Hash(Default())
	require.NoError(t, err)
	got, err := Hash(cfg)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestParse_PartialProfileKeepsDefaults(t *testing.T) {
	cfg, err := Parse([]byte("ensemble:\n  trees: 25\n"))
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.Ensemble.Trees)
	assert.Equal(t, 0.8, cfg.SplitRatio)
	assert.Equal(t, 2000, cfg.GARCH.MaxIterations)

	empty, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), empty)
}

func TestParse_UnknownField(t *testing.T) {
	_, err := Parse([]byte("split_ratoi: 0.7\n"))
	assert.Error(t, err)
}

func TestParse_ValidationFailure(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		field string
	}{
		{"split ratio", "split_ratio: 1.0\n", "SplitRatio"},
		{"trees", "ensemble:\n  trees: 0\n", "Ensemble.Trees"},
		{"garch min obs", "garch:\n  min_observations: 1\n", "GARCH.MinObservations"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			var verr ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestHash(t *testing.T) {
	a, err := Hash(Default())
	require.NoError(t, err)
	assert.Len(t, a, 64)

	b, _ := Hash(Default())
	assert.Equal(t, a, b, "hash must be deterministic")

	cfg := Default()
	cfg.Ensemble.Workers = 16
	c, _ := Hash(cfg)
	assert.Equal(t, a, c, "workers do not change results")

	cfg.Ensemble.Seed = 1
	d, _ := Hash(cfg)
	assert.NotEqual(t, a, d)
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	cfg.ApplyEnv(&config.Config{Analysis: config.AnalysisConfig{
		LookbackYears: 5,
		Trees:         10,
		SplitRatio:    0.7,
	}})

	assert.Equal(t, 5, cfg.LookbackYears)
	assert.Equal(t, 10, cfg.Ensemble.Trees)
	assert.Equal(t, 0.7, cfg.SplitRatio)
	assert.Equal(t, int64(42), cfg.Ensemble.Seed, "zero seed leaves the profile value")

	cfg.ApplyEnv(nil)
	assert.Equal(t, 5, cfg.LookbackYears)
}

func TestConversions(t *testing.T) {
	cfg := Default()

	v := cfg.Volatility()
	assert.Equal(t, 5, v.MinObservations)
	assert.Equal(t, 2000, v.MaxIterations)

	f := cfg.Forest()
	assert.Equal(t, 100, f.Trees)
	assert.Equal(t, int64(42), f.Seed)
}

func TestLoad_MissingFile(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
