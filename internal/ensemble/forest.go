package ensemble

import (
	"fmt"
	"math"
	"math/rand"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/hansel67/stock-analyzer/internal/contracts"
)

// =============================================================================
// Bagged regression-tree ensemble
// =============================================================================
// 각 트리는 부트스트랩 표본 + 분할마다 무작위 특성 부분집합으로 학습
// 예측 = 트리 예측의 산술평균

// seedStride 트리별 시드 간격 (인접 트리의 난수열이 겹치지 않도록)
const seedStride int64 = 0x5851F42D4C957F2D

// Config 앙상블 설정
type Config struct {
	Trees           int   // 트리 개수 (기본: 100)
	MaxDepth        int   // 0 = 제한 없음
	MinSamplesSplit int   // 분할 최소 표본 (기본: 2)
	MinSamplesLeaf  int   // 리프 최소 표본 (기본: 1)
	MaxFeatures     int   // 0 = max(1, ⌊√p⌋)
	Seed            int64 // 재현성 시드
	Workers         int   // 0 = GOMAXPROCS
}

// DefaultConfig 기본 설정
func DefaultConfig() Config {
	return Config{
		Trees:           100,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Seed:            42,
	}
}

func (c Config) validate() error {
	if c.Trees < 1 {
		return fmt.Errorf("trees must be >= 1, got %d", c.Trees)
	}
	if c.MaxDepth < 0 || c.MaxFeatures < 0 || c.Workers < 0 {
		return fmt.Errorf("max_depth, max_features and workers must be >= 0")
	}
	if c.MinSamplesSplit < 2 {
		return fmt.Errorf("min_samples_split must be >= 2, got %d", c.MinSamplesSplit)
	}
	if c.MinSamplesLeaf < 1 {
		return fmt.Errorf("min_samples_leaf must be >= 1, got %d", c.MinSamplesLeaf)
	}
	return nil
}

// Forest 학습된 앙상블 (학습 후 읽기 전용, 동시 Predict 안전)
type Forest struct {
	trees    []*Tree
	features int
}

// Fit trains cfg.Trees trees in parallel. The result depends only on the
// inputs and cfg.Seed, never on cfg.Workers or goroutine scheduling.
func Fit(x [][]float64, y []float64, cfg Config) (*Forest, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if err := checkInput(x, y); err != nil {
		return nil, err
	}

	p := len(x[0])
	maxFeat := cfg.MaxFeatures
	if maxFeat == 0 {
		maxFeat = int(math.Max(1, math.Floor(math.Sqrt(float64(p)))))
	}
	if maxFeat > p {
		maxFeat = p
	}

	workers := cfg.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	trees := make([]*Tree, cfg.Trees)
	var g errgroup.Group
	g.SetLimit(workers)

	for i := range trees {
		i := i
		g.Go(func() error {
			rng := rand.New(rand.NewSource(cfg.Seed + int64(i+1)*seedStride))
			idx := make([]int, len(x))
			for k := range idx {
				idx[k] = rng.Intn(len(x))
			}
			trees[i] = growTree(x, y, idx, cfg, maxFeat, rng)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Forest{trees: trees, features: p}, nil
}

// Predict averages the tree predictions for every row.
// Rows must have the feature count the forest was trained on.
func (f *Forest) Predict(x [][]float64) []float64 {
	out := make([]float64, len(x))
	for i, row := range x {
		var sum float64
		for _, t := range f.trees {
			sum += t.Predict(row)
		}
		out[i] = sum / float64(len(f.trees))
	}
	return out
}

// Size returns the number of trees
func (f *Forest) Size() int { return len(f.trees) }

// Features returns the number of input columns
func (f *Forest) Features() int { return f.features }

// Tree returns the i-th fitted tree
func (f *Forest) Tree(i int) *Tree { return f.trees[i] }

func checkInput(x [][]float64, y []float64) error {
	if len(x) == 0 {
		return fmt.Errorf("%w: no training rows", contracts.ErrInsufficientData)
	}
	if len(x) != len(y) {
		return fmt.Errorf("%w: %d rows but %d labels", contracts.ErrInsufficientData, len(x), len(y))
	}
	p := len(x[0])
	if p == 0 {
		return fmt.Errorf("%w: rows have no features", contracts.ErrInsufficientData)
	}
	for i, row := range x {
		if len(row) != p {
			return fmt.Errorf("%w: row %d has %d features, want %d",
				contracts.ErrInsufficientData, i, len(row), p)
		}
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: row %d has a non-finite feature", contracts.ErrInsufficientData, i)
			}
		}
		if math.IsNaN(y[i]) || math.IsInf(y[i], 0) {
			return fmt.Errorf("%w: label %d is not finite", contracts.ErrInsufficientData, i)
		}
	}
	return nil
}
