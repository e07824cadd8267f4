package ml

import "fmt"

// Exact SHAP values for tree ensembles, after Lundberg et al.'s TreeExplainer
// polynomial-time algorithm. Each decision path is weighted by the fraction
// of training samples that reach it, so the per-feature contributions for a
// row sum exactly to prediction minus the training-distribution mean.

// pathElement tracks one feature split along the current decision path:
// the fraction of subsets that flow down when the feature is excluded
// (zeroFraction), when it is included (oneFraction), and the permutation
// weight accumulated so far.
type pathElement struct {
	featureIndex int
	zeroFraction float64
	oneFraction  float64
	pathWeight   float64
}

// Attributions computes per-feature SHAP values for a single row, averaged
// over all trees in the forest
func (f *RegressionForest) Attributions(row []float64) ([]float64, error) {
	if len(f.Trees) == 0 {
		return nil, fmt.Errorf("model not trained")
	}
	if len(row) != f.NumFeatures {
		return nil, fmt.Errorf("sample has %d features, forest expects %d", len(row), f.NumFeatures)
	}

	phi := make([]float64, f.NumFeatures)
	for _, tree := range f.Trees {
		treePhi, err := tree.Attributions(row, f.NumFeatures)
		if err != nil {
			return nil, err
		}
		for i, v := range treePhi {
			phi[i] += v
		}
	}
	for i := range phi {
		phi[i] /= float64(len(f.Trees))
	}
	return phi, nil
}

// Attributions computes per-feature SHAP values for a single row against
// this tree
func (t *RegressionTree) Attributions(row []float64, numFeatures int) ([]float64, error) {
	if t.Root == nil {
		return nil, fmt.Errorf("model not trained")
	}
	phi := make([]float64, numFeatures)
	shapRecurse(t.Root, row, phi, nil, 1, 1, -1)
	return phi, nil
}

// shapRecurse walks every decision path, maintaining the set of features
// split on so far together with their inclusion/exclusion flow fractions
func shapRecurse(node *TreeNode, row []float64, phi []float64, path []pathElement, zeroFraction, oneFraction float64, featureIndex int) {
	path = extendPath(path, zeroFraction, oneFraction, featureIndex)

	if node.IsLeaf {
		for i := 1; i < len(path); i++ {
			w := unwoundPathSum(path, i)
			phi[path[i].featureIndex] += w * (path[i].oneFraction - path[i].zeroFraction) * node.Value
		}
		return
	}

	var hot, cold *TreeNode
	if row[node.FeatureIndex] <= node.Threshold {
		hot, cold = node.Left, node.Right
	} else {
		hot, cold = node.Right, node.Left
	}

	incomingZero, incomingOne := 1.0, 1.0
	if k := findPathElement(path, node.FeatureIndex); k >= 0 {
		// The same feature was already split on higher up: undo its
		// previous extension so it is counted once per path.
		incomingZero = path[k].zeroFraction
		incomingOne = path[k].oneFraction
		path = unwindPath(path, k)
	}

	cover := float64(node.Samples)
	shapRecurse(hot, row, phi, path, incomingZero*float64(hot.Samples)/cover, incomingOne, node.FeatureIndex)
	shapRecurse(cold, row, phi, path, incomingZero*float64(cold.Samples)/cover, 0, node.FeatureIndex)
}

// extendPath grows the path by one split, updating the permutation weights
// of every prefix length. The returned slice is a fresh copy, so callers
// further up the recursion keep their own view.
func extendPath(path []pathElement, zeroFraction, oneFraction float64, featureIndex int) []pathElement {
	n := len(path)
	out := make([]pathElement, n+1)
	copy(out, path)
	weight := 0.0
	if n == 0 {
		weight = 1
	}
	out[n] = pathElement{
		featureIndex: featureIndex,
		zeroFraction: zeroFraction,
		oneFraction:  oneFraction,
		pathWeight:   weight,
	}
	for i := n - 1; i >= 0; i-- {
		out[i+1].pathWeight += oneFraction * out[i].pathWeight * float64(i+1) / float64(n+1)
		out[i].pathWeight = zeroFraction * out[i].pathWeight * float64(n-i) / float64(n+1)
	}
	return out
}

// unwindPath removes the element at index k, inverting extendPath's weight
// updates. The input slice is owned by the caller frame (extendPath copied
// it), so it is shortened in place.
func unwindPath(path []pathElement, k int) []pathElement {
	n := len(path)
	one := path[k].oneFraction
	zero := path[k].zeroFraction
	carried := path[n-1].pathWeight

	for i := n - 2; i >= 0; i-- {
		if one != 0 {
			prev := path[i].pathWeight
			path[i].pathWeight = carried * float64(n) / (float64(i+1) * one)
			carried = prev - path[i].pathWeight*zero*float64(n-i-1)/float64(n)
		} else {
			path[i].pathWeight = path[i].pathWeight * float64(n) / (zero * float64(n-i-1))
		}
	}
	for i := k; i < n-1; i++ {
		path[i].featureIndex = path[i+1].featureIndex
		path[i].zeroFraction = path[i+1].zeroFraction
		path[i].oneFraction = path[i+1].oneFraction
	}
	return path[:n-1]
}

// unwoundPathSum returns the total permutation weight the path would carry
// after removing element k, without materializing the shortened path
func unwoundPathSum(path []pathElement, k int) float64 {
	n := len(path)
	one := path[k].oneFraction
	zero := path[k].zeroFraction
	carried := path[n-1].pathWeight
	total := 0.0

	for i := n - 2; i >= 0; i-- {
		if one != 0 {
			w := carried * float64(n) / (float64(i+1) * one)
			total += w
			carried = path[i].pathWeight - w*zero*float64(n-i-1)/float64(n)
		} else {
			total += path[i].pathWeight * float64(n) / (zero * float64(n-i-1))
		}
	}
	return total
}

// findPathElement returns the index of the first path element splitting on
// featureIndex, or -1
func findPathElement(path []pathElement, featureIndex int) int {
	// Skip the root placeholder at index 0.
	for i := 1; i < len(path); i++ {
		if path[i].featureIndex == featureIndex {
			return i
		}
	}
	return -1
}
