package ml

import (
	"fmt"
	"math/rand"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
)

// Regressor is the minimal model-stage abstraction: a dense numeric row in,
// a point estimate out.
type Regressor interface {
	PredictRow(row []float64) (float64, error)
	Kind() string
}

// TreeAttributor is implemented by tree-ensemble regressors that can produce
// exact per-feature contributions for a single row. Contributions sum to
// prediction minus the expected value over the training distribution.
type TreeAttributor interface {
	Attributions(row []float64) ([]float64, error)
}

// TreeNode is a node in a regression tree
type TreeNode struct {
	IsLeaf       bool      `json:"is_leaf"`
	FeatureIndex int       `json:"feature_index,omitempty"` // Index of feature to split on
	Threshold    float64   `json:"threshold,omitempty"`     // Split threshold (<= goes left)
	Left         *TreeNode `json:"left,omitempty"`
	Right        *TreeNode `json:"right,omitempty"`
	Samples      int       `json:"samples"` // Training samples reaching this node
	Value        float64   `json:"value"`   // Mean target value at this node
}

// RegressionTree is a single variance-reduction decision tree
type RegressionTree struct {
	Root            *TreeNode `json:"root"`
	MaxDepth        int       `json:"max_depth"`
	MinSamplesSplit int       `json:"min_samples_split"`
	MinSamplesLeaf  int       `json:"min_samples_leaf"`
}

// NewRegressionTree creates a regression tree with the given hyperparameters
func NewRegressionTree(maxDepth, minSamplesSplit, minSamplesLeaf int) *RegressionTree {
	if maxDepth <= 0 {
		maxDepth = 10
	}
	if minSamplesSplit <= 0 {
		minSamplesSplit = 2
	}
	if minSamplesLeaf <= 0 {
		minSamplesLeaf = 1
	}
	return &RegressionTree{
		MaxDepth:        maxDepth,
		MinSamplesSplit: minSamplesSplit,
		MinSamplesLeaf:  minSamplesLeaf,
	}
}

// Fit builds the tree from training data
func (t *RegressionTree) Fit(X [][]float64, y []float64) error {
	if len(X) == 0 {
		return fmt.Errorf("empty training data")
	}
	if len(X) != len(y) {
		return fmt.Errorf("X and y must have same number of samples")
	}
	indices := make([]int, len(X))
	for i := range indices {
		indices[i] = i
	}
	t.Root = t.buildTree(X, y, indices, 0)
	return nil
}

// PredictRow predicts the target value for a single sample
func (t *RegressionTree) PredictRow(row []float64) (float64, error) {
	if t.Root == nil {
		return 0, fmt.Errorf("model not trained")
	}
	node := t.Root
	for !node.IsLeaf {
		if node.FeatureIndex >= len(row) {
			return 0, fmt.Errorf("sample has %d features, tree expects at least %d", len(row), node.FeatureIndex+1)
		}
		if row[node.FeatureIndex] <= node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node.Value, nil
}

// ExpectedValue returns the training-distribution mean prediction: each leaf
// weighted by the fraction of training samples reaching it.
func (t *RegressionTree) ExpectedValue() float64 {
	if t.Root == nil {
		return 0
	}
	return leafMean(t.Root, float64(t.Root.Samples))
}

func leafMean(node *TreeNode, total float64) float64 {
	if node.IsLeaf {
		return node.Value * float64(node.Samples) / total
	}
	return leafMean(node.Left, total) + leafMean(node.Right, total)
}

// buildTree recursively builds the regression tree
func (t *RegressionTree) buildTree(X [][]float64, y []float64, indices []int, depth int) *TreeNode {
	node := &TreeNode{
		Samples: len(indices),
	}

	values := make([]float64, len(indices))
	for i, idx := range indices {
		values[i] = y[idx]
	}
	mean := meanOf(values)
	variance := varianceOf(values, mean)
	node.Value = mean

	if depth >= t.MaxDepth || len(indices) < t.MinSamplesSplit || variance < 1e-7 {
		node.IsLeaf = true
		return node
	}

	feature, threshold, gain := t.bestSplit(X, y, indices, variance)
	if gain <= 0 {
		node.IsLeaf = true
		return node
	}

	leftIndices, rightIndices := splitIndices(X, indices, feature, threshold)
	if len(leftIndices) < t.MinSamplesLeaf || len(rightIndices) < t.MinSamplesLeaf {
		node.IsLeaf = true
		return node
	}

	node.FeatureIndex = feature
	node.Threshold = threshold
	node.Left = t.buildTree(X, y, leftIndices, depth+1)
	node.Right = t.buildTree(X, y, rightIndices, depth+1)
	return node
}

// bestSplit finds the split with the highest variance reduction
func (t *RegressionTree) bestSplit(X [][]float64, y []float64, indices []int, parentVariance float64) (int, float64, float64) {
	bestFeature := -1
	bestThreshold := 0.0
	bestGain := 0.0

	numFeatures := len(X[indices[0]])
	for feature := 0; feature < numFeatures; feature++ {
		values := make([]float64, len(indices))
		for i, idx := range indices {
			values[i] = X[idx][feature]
		}

		for _, threshold := range candidateThresholds(values) {
			leftIndices, rightIndices := splitIndices(X, indices, feature, threshold)
			if len(leftIndices) == 0 || len(rightIndices) == 0 {
				continue
			}

			leftValues := make([]float64, len(leftIndices))
			for i, idx := range leftIndices {
				leftValues[i] = y[idx]
			}
			rightValues := make([]float64, len(rightIndices))
			for i, idx := range rightIndices {
				rightValues[i] = y[idx]
			}

			n := float64(len(indices))
			nLeft := float64(len(leftIndices))
			nRight := float64(len(rightIndices))

			leftVar := varianceOf(leftValues, meanOf(leftValues))
			rightVar := varianceOf(rightValues, meanOf(rightValues))
			weighted := (nLeft/n)*leftVar + (nRight/n)*rightVar

			gain := parentVariance - weighted
			if gain > bestGain {
				bestGain = gain
				bestFeature = feature
				bestThreshold = threshold
			}
		}
	}

	return bestFeature, bestThreshold, bestGain
}

// candidateThresholds returns midpoints between consecutive unique values
func candidateThresholds(values []float64) []float64 {
	unique := make([]float64, 0, len(values))
	seen := make(map[float64]struct{})
	for _, v := range values {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			unique = append(unique, v)
		}
	}
	sort.Float64s(unique)

	thresholds := make([]float64, 0, len(unique))
	for i := 0; i < len(unique)-1; i++ {
		thresholds = append(thresholds, (unique[i]+unique[i+1])/2)
	}
	return thresholds
}

func splitIndices(X [][]float64, indices []int, feature int, threshold float64) ([]int, []int) {
	var left, right []int
	for _, idx := range indices {
		if X[idx][feature] <= threshold {
			left = append(left, idx)
		} else {
			right = append(right, idx)
		}
	}
	return left, right
}

func meanOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func varianceOf(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return sum / float64(len(values))
}

// RegressionForest is a bootstrap ensemble of regression trees. The forest
// prediction is the mean over trees.
type RegressionForest struct {
	Trees           []*RegressionTree `json:"trees"`
	NumTrees        int               `json:"num_trees"`
	MaxDepth        int               `json:"max_depth"`
	MinSamplesSplit int               `json:"min_samples_split"`
	MinSamplesLeaf  int               `json:"min_samples_leaf"`
	NumFeatures     int               `json:"num_features"`
	RandomSeed      int64             `json:"random_seed"`

	// parallelism bounds the fan-out of Fit and PredictRow across trees.
	// It is set once at load time, before any prediction is dispatched,
	// and never changed while the forest is serving.
	parallelism int
}

// NewRegressionForest creates a forest with the given hyperparameters
func NewRegressionForest(numTrees, maxDepth, minSamplesSplit, minSamplesLeaf int, seed int64) *RegressionForest {
	if numTrees <= 0 {
		numTrees = 100
	}
	if maxDepth <= 0 {
		maxDepth = 10
	}
	return &RegressionForest{
		NumTrees:        numTrees,
		MaxDepth:        maxDepth,
		MinSamplesSplit: minSamplesSplit,
		MinSamplesLeaf:  minSamplesLeaf,
		RandomSeed:      seed,
		parallelism:     runtime.GOMAXPROCS(0),
	}
}

// SetParallelism pins the number of worker goroutines used across trees.
// Values below 1 force strictly sequential execution.
func (f *RegressionForest) SetParallelism(n int) {
	if n < 1 {
		n = 1
	}
	f.parallelism = n
}

// Parallelism returns the current worker bound
func (f *RegressionForest) Parallelism() int {
	if f.parallelism < 1 {
		return 1
	}
	return f.parallelism
}

// Kind identifies the model family inside a serialized pipeline
func (f *RegressionForest) Kind() string {
	return "random_forest"
}

// Fit trains the forest on bootstrap samples of the training data
func (f *RegressionForest) Fit(X [][]float64, y []float64) error {
	if len(X) == 0 {
		return fmt.Errorf("empty training data")
	}
	if len(X) != len(y) {
		return fmt.Errorf("X and y must have same number of samples")
	}

	f.NumFeatures = len(X[0])
	f.Trees = make([]*RegressionTree, f.NumTrees)

	var g errgroup.Group
	g.SetLimit(f.Parallelism())
	for i := 0; i < f.NumTrees; i++ {
		treeIdx := i
		g.Go(func() error {
			rng := rand.New(rand.NewSource(f.RandomSeed + int64(treeIdx)))
			bootX, bootY := bootstrapSample(X, y, rng)
			tree := NewRegressionTree(f.MaxDepth, f.MinSamplesSplit, f.MinSamplesLeaf)
			if err := tree.Fit(bootX, bootY); err != nil {
				return fmt.Errorf("tree %d training failed: %w", treeIdx, err)
			}
			f.Trees[treeIdx] = tree
			return nil
		})
	}
	return g.Wait()
}

// PredictRow predicts the target value for a single sample as the mean of
// all tree predictions
func (f *RegressionForest) PredictRow(row []float64) (float64, error) {
	if len(f.Trees) == 0 {
		return 0, fmt.Errorf("model not trained")
	}
	if len(row) != f.NumFeatures {
		return 0, fmt.Errorf("sample has %d features, forest expects %d", len(row), f.NumFeatures)
	}

	sums := make([]float64, len(f.Trees))
	workers := f.Parallelism()
	if workers <= 1 {
		for i, tree := range f.Trees {
			pred, err := tree.PredictRow(row)
			if err != nil {
				return 0, err
			}
			sums[i] = pred
		}
	} else {
		var g errgroup.Group
		g.SetLimit(workers)
		for i, tree := range f.Trees {
			i, tree := i, tree
			g.Go(func() error {
				pred, err := tree.PredictRow(row)
				if err != nil {
					return err
				}
				sums[i] = pred
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return 0, err
		}
	}

	total := 0.0
	for _, s := range sums {
		total += s
	}
	return total / float64(len(f.Trees)), nil
}

// ExpectedValue returns the mean training-distribution prediction across trees
func (f *RegressionForest) ExpectedValue() float64 {
	if len(f.Trees) == 0 {
		return 0
	}
	total := 0.0
	for _, tree := range f.Trees {
		total += tree.ExpectedValue()
	}
	return total / float64(len(f.Trees))
}

// bootstrapSample draws len(X) samples with replacement
func bootstrapSample(X [][]float64, y []float64, rng *rand.Rand) ([][]float64, []float64) {
	n := len(X)
	bootX := make([][]float64, n)
	bootY := make([]float64, n)
	for i := 0; i < n; i++ {
		idx := rng.Intn(n)
		bootX[i] = X[idx]
		bootY[i] = y[idx]
	}
	return bootX, bootY
}

var _ TreeAttributor = (*RegressionForest)(nil)
var _ Regressor = (*RegressionForest)(nil)
