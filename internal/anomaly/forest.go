// Package anomaly flags transactions that are statistically isolated within
// their batch using an isolation-forest ensemble.
package anomaly

import (
	"math"
	"math/rand"
	"sort"

	"github.com/finsight/finsight/internal/feature"
	"github.com/finsight/finsight/internal/model"
)

// Result is the per-transaction outcome of a detection run.
type Result struct {
	TransactionID string  `json:"transaction_id"`
	Score         float64 `json:"anomaly_score"`
	IsAnomaly     bool    `json:"is_anomaly"`
}

// Options configure a detection run. Zero values are replaced by the stated
// defaults; validation of caller-supplied values happens at the engine boundary.
type Options struct {
	// Contamination is the expected fraction of outliers in the batch. The
	// decision threshold flags the top Contamination share of scores.
	Contamination float64
	// Trees is the ensemble size.
	Trees int
	// Seed feeds the partitioning RNG. A fixed seed makes repeated runs on the
	// same batch reproduce the same flags.
	Seed int64
}

const (
	DefaultContamination = 0.10
	DefaultTrees         = 100
	DefaultSeed          = 42
	maxSubsample         = 256
)

// Detect scores every transaction in the batch. The forest is built fresh from
// this batch alone; nothing fitted is retained between calls, so detections for
// different users never share model state.
//
// Degenerate batches where no feature varies produce IsAnomaly=false for every
// row rather than collapsing onto a meaningless threshold.
func Detect(txns []*model.Transaction, opts Options) []Result {
	if len(txns) == 0 {
		return nil
	}
	if opts.Contamination == 0 {
		opts.Contamination = DefaultContamination
	}
	if opts.Trees == 0 {
		opts.Trees = DefaultTrees
	}
	if opts.Seed == 0 {
		opts.Seed = DefaultSeed
	}

	vectors := feature.Build(txns)
	data := make([][]float64, len(vectors))
	for i, v := range vectors {
		data[i] = v.Values()
	}

	results := make([]Result, len(txns))
	for i, t := range txns {
		results[i] = Result{TransactionID: t.ID}
	}

	if !hasVariance(data) {
		return results
	}

	f := growForest(data, opts)
	scores := make([]float64, len(data))
	for i, row := range data {
		scores[i] = f.score(row)
		results[i].Score = scores[i]
	}

	// Threshold at the contamination quantile: the top floor(rate*n) scores are
	// the outlier partition. Batches too small to yield a whole outlier produce
	// scores but no flags.
	k := int(opts.Contamination * float64(len(scores)))
	if k > 0 {
		sorted := append([]float64(nil), scores...)
		sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))
		threshold := sorted[k-1]
		for i := range results {
			results[i].IsAnomaly = results[i].Score >= threshold
		}
	}
	return results
}

func hasVariance(data [][]float64) bool {
	for d := 0; d < feature.Dim; d++ {
		first := data[0][d]
		for _, row := range data[1:] {
			if row[d] != first {
				return true
			}
		}
	}
	return false
}

// forest is an ensemble of isolation trees over one batch.
type forest struct {
	trees     []*treeNode
	subsample int
}

type treeNode struct {
	splitDim   int
	splitValue float64
	left       *treeNode
	right      *treeNode
	size       int // leaf sample count
	leaf       bool
}

func growForest(data [][]float64, opts Options) *forest {
	rng := rand.New(rand.NewSource(opts.Seed))
	psi := len(data)
	if psi > maxSubsample {
		psi = maxSubsample
	}
	maxDepth := int(math.Ceil(math.Log2(float64(psi)))) + 1

	f := &forest{subsample: psi}
	for i := 0; i < opts.Trees; i++ {
		sample := make([][]float64, psi)
		for j, idx := range rng.Perm(len(data))[:psi] {
			sample[j] = data[idx]
		}
		f.trees = append(f.trees, growTree(sample, 0, maxDepth, rng))
	}
	return f
}

func growTree(sample [][]float64, depth, maxDepth int, rng *rand.Rand) *treeNode {
	if depth >= maxDepth || len(sample) <= 1 {
		return &treeNode{leaf: true, size: len(sample)}
	}

	// Dimensions with spread in this subsample are the only split candidates.
	var candidates []int
	for d := 0; d < feature.Dim; d++ {
		lo, hi := bounds(sample, d)
		if hi > lo {
			candidates = append(candidates, d)
		}
	}
	if len(candidates) == 0 {
		return &treeNode{leaf: true, size: len(sample)}
	}

	dim := candidates[rng.Intn(len(candidates))]
	lo, hi := bounds(sample, dim)
	split := lo + rng.Float64()*(hi-lo)

	var left, right [][]float64
	for _, row := range sample {
		if row[dim] < split {
			left = append(left, row)
		} else {
			right = append(right, row)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return &treeNode{leaf: true, size: len(sample)}
	}

	return &treeNode{
		splitDim:   dim,
		splitValue: split,
		left:       growTree(left, depth+1, maxDepth, rng),
		right:      growTree(right, depth+1, maxDepth, rng),
	}
}

func bounds(sample [][]float64, dim int) (lo, hi float64) {
	lo, hi = sample[0][dim], sample[0][dim]
	for _, row := range sample[1:] {
		if row[dim] < lo {
			lo = row[dim]
		}
		if row[dim] > hi {
			hi = row[dim]
		}
	}
	return lo, hi
}

// score maps the mean isolation path length onto (0, 1); shorter paths mean
// easier isolation and a higher score.
func (f *forest) score(row []float64) float64 {
	var total float64
	for _, t := range f.trees {
		total += pathLength(t, row, 0)
	}
	mean := total / float64(len(f.trees))
	return math.Pow(2, -mean/avgPathLength(f.subsample))
}

func pathLength(node *treeNode, row []float64, depth int) float64 {
	if node.leaf {
		return float64(depth) + avgPathLength(node.size)
	}
	if row[node.splitDim] < node.splitValue {
		return pathLength(node.left, row, depth+1)
	}
	return pathLength(node.right, row, depth+1)
}

const eulerGamma = 0.5772156649015329

// avgPathLength is the expected path length of an unsuccessful BST search over
// n nodes, the standard normalization term for isolation forests.
func avgPathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	h := math.Log(float64(n-1)) + eulerGamma
	return 2*h - 2*float64(n-1)/float64(n)
}
