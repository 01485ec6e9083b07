package ensemble

import (
	"math/rand"
	"sort"
)

// node 회귀 트리 노드 (leaf이면 feature = -1)
type node struct {
	feature   int
	threshold float64
	left      int
	right     int
	value     float64
}

// Tree CART 회귀 트리 (분산 감소 기준)
type Tree struct {
	nodes []node
}

// Predict returns the leaf mean reached by row
func (t *Tree) Predict(row []float64) float64 {
	i := 0
	for {
		n := t.nodes[i]
		if n.feature < 0 {
			return n.value
		}
		if row[n.feature] <= n.threshold {
			i = n.left
		} else {
			i = n.right
		}
	}
}

// Depth returns the number of edges on the longest root-to-leaf path
func (t *Tree) Depth() int {
	var walk func(i int) int
	walk = func(i int) int {
		n := t.nodes[i]
		if n.feature < 0 {
			return 0
		}
		l, r := walk(n.left), walk(n.right)
		if l > r {
			return l + 1
		}
		return r + 1
	}
	return walk(0)
}

// Leaves returns the number of leaf nodes
func (t *Tree) Leaves() int {
	count := 0
	for _, n := range t.nodes {
		if n.feature < 0 {
			count++
		}
	}
	return count
}

// treeBuilder 단일 트리 학습 상태 (고루틴마다 하나)
type treeBuilder struct {
	x       [][]float64
	y       []float64
	cfg     Config
	maxFeat int
	rng     *rand.Rand
	nodes   []node
}

// growTree fits a tree on the sample indices (duplicates allowed for bootstrap)
func growTree(x [][]float64, y []float64, idx []int, cfg Config, maxFeat int, rng *rand.Rand) *Tree {
	b := &treeBuilder{x: x, y: y, cfg: cfg, maxFeat: maxFeat, rng: rng}
	b.grow(idx, 0)
	return &Tree{nodes: b.nodes}
}

func (b *treeBuilder) grow(idx []int, depth int) int {
	id := len(b.nodes)
	b.nodes = append(b.nodes, node{feature: -1, value: b.mean(idx)})

	if len(idx) < b.cfg.MinSamplesSplit || len(idx) < 2*b.cfg.MinSamplesLeaf {
		return id
	}
	if b.cfg.MaxDepth > 0 && depth >= b.cfg.MaxDepth {
		return id
	}
	if b.sse(idx) <= 0 {
		return id
	}

	feature, threshold, ok := b.bestSplit(idx)
	if !ok {
		return id
	}

	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, i := range idx {
		if b.x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	if len(left) == 0 || len(right) == 0 {
		return id
	}

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[id] = node{feature: feature, threshold: threshold, left: l, right: r, value: b.nodes[id].value}
	return id
}

// bestSplit tries a random subset of maxFeat features first and falls back
// to the remaining ones only when none of the subset yields a valid split.
func (b *treeBuilder) bestSplit(idx []int) (int, float64, bool) {
	order := b.rng.Perm(len(b.x[0]))

	bestFeature, bestThreshold := -1, 0.0
	bestScore := 0.0
	found := false

	for k, f := range order {
		if k >= b.maxFeat && found {
			break
		}
		threshold, score, ok := b.splitOn(idx, f)
		if !ok {
			continue
		}
		if !found || score > bestScore {
			bestFeature, bestThreshold, bestScore = f, threshold, score
			found = true
		}
	}
	return bestFeature, bestThreshold, found
}

// splitOn finds the threshold on feature f maximising Σ_left²/n_l + Σ_right²/n_r,
// which is equivalent to minimising the children's summed squared error.
func (b *treeBuilder) splitOn(idx []int, f int) (float64, float64, bool) {
	sorted := make([]int, len(idx))
	copy(sorted, idx)
	sort.SliceStable(sorted, func(i, j int) bool {
		return b.x[sorted[i]][f] < b.x[sorted[j]][f]
	})

	var total float64
	for _, i := range sorted {
		total += b.y[i]
	}

	n := len(sorted)
	minLeaf := b.cfg.MinSamplesLeaf
	var leftSum float64
	bestScore, bestThreshold := 0.0, 0.0
	found := false

	for k := 0; k < n-1; k++ {
		leftSum += b.y[sorted[k]]
		nl := k + 1
		nr := n - nl
		if nl < minLeaf {
			continue
		}
		if nr < minLeaf {
			break
		}
		lo, hi := b.x[sorted[k]][f], b.x[sorted[k+1]][f]
		if lo == hi {
			continue
		}

		rightSum := total - leftSum
		score := leftSum*leftSum/float64(nl) + rightSum*rightSum/float64(nr)
		if !found || score > bestScore {
			bestScore = score
			bestThreshold = lo + (hi-lo)/2
			if bestThreshold >= hi {
				bestThreshold = lo
			}
			found = true
		}
	}
	return bestThreshold, bestScore, found
}

func (b *treeBuilder) mean(idx []int) float64 {
	var sum float64
	for _, i := range idx {
		sum += b.y[i]
	}
	return sum / float64(len(idx))
}

func (b *treeBuilder) sse(idx []int) float64 {
	m := b.mean(idx)
	var ss float64
	for _, i := range idx {
		d := b.y[i] - m
		ss += d * d
	}
	return ss
}
