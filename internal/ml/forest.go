package ml

import (
	"errors"
	"math"
	"math/rand/v2"
	"sort"
)

// ForestParams tunes random forest training. Zero values are replaced by
// the defaults from DefaultForestParams.
type ForestParams struct {
	Trees           int   `json:"trees"`
	MaxDepth        int   `json:"max_depth"`
	MinSamplesSplit int   `json:"min_samples_split"`
	MinSamplesLeaf  int   `json:"min_samples_leaf"`
	Seed            int64 `json:"seed"`
}

// DefaultForestParams mirrors the tuning the service uses for daily climate
// data: enough trees for a stable probability estimate, shallow enough to
// stay low-variance on a few thousand samples.
func DefaultForestParams() ForestParams {
	return ForestParams{
		Trees:           50,
		MaxDepth:        10,
		MinSamplesSplit: 20,
		MinSamplesLeaf:  10,
		Seed:            42,
	}
}

// Node is one node of a CART decision tree. Leaf nodes carry the positive
// class probability observed in their training partition.
type Node struct {
	Feature   int     `json:"f,omitempty"`
	Threshold float64 `json:"t,omitempty"`
	Left      *Node   `json:"l,omitempty"`
	Right     *Node   `json:"r,omitempty"`
	Leaf      bool    `json:"leaf,omitempty"`
	Prob      float64 `json:"p"`
}

// Tree is a single CART binary classifier.
type Tree struct {
	Root *Node `json:"root"`
}

// Forest is a bagged ensemble of CART trees fit on bootstrap samples with
// random feature subsets per split. PredictProb averages leaf probabilities
// across trees.
type Forest struct {
	Params ForestParams `json:"params"`
	Trees  []Tree       `json:"trees"`
}

// FitForest trains a random forest on the given matrix and binary labels.
// Training is deterministic for a fixed ForestParams.Seed.
func FitForest(X [][]float64, y []int, params ForestParams) (*Forest, error) {
	if len(X) == 0 {
		return nil, errors.New("ml: cannot fit forest on empty matrix")
	}
	if len(X) != len(y) {
		return nil, errors.New("ml: feature and label counts differ")
	}

	def := DefaultForestParams()
	if params.Trees <= 0 {
		params.Trees = def.Trees
	}
	if params.MaxDepth <= 0 {
		params.MaxDepth = def.MaxDepth
	}
	if params.MinSamplesSplit <= 0 {
		params.MinSamplesSplit = def.MinSamplesSplit
	}
	if params.MinSamplesLeaf <= 0 {
		params.MinSamplesLeaf = def.MinSamplesLeaf
	}

	rng := rand.New(rand.NewPCG(uint64(params.Seed), 0))
	nSamples := len(X)
	nFeatures := len(X[0])
	// sqrt(F) features considered per split, the usual bagging heuristic.
	mtry := int(math.Sqrt(float64(nFeatures)))
	if mtry < 1 {
		mtry = 1
	}

	forest := &Forest{
		Params: params,
		Trees:  make([]Tree, 0, params.Trees),
	}

	for t := 0; t < params.Trees; t++ {
		// Bootstrap sample with replacement.
		idx := make([]int, nSamples)
		for i := range idx {
			idx[i] = rng.IntN(nSamples)
		}
		root := growNode(X, y, idx, 0, mtry, params, rng)
		forest.Trees = append(forest.Trees, Tree{Root: root})
	}

	return forest, nil
}

// PredictProb returns the average positive-class probability across trees
// for one feature vector. The vector must already be scaled with the same
// Scaler used at training time.
func (f *Forest) PredictProb(x []float64) float64 {
	if len(f.Trees) == 0 {
		return 0
	}
	sum := 0.0
	for i := range f.Trees {
		sum += f.Trees[i].predict(x)
	}
	return sum / float64(len(f.Trees))
}

// Accuracy computes classification accuracy on a labeled set, using the
// conventional 0.5 probability cutoff.
func (f *Forest) Accuracy(X [][]float64, y []int) float64 {
	if len(X) == 0 {
		return 0
	}
	correct := 0
	for i, row := range X {
		pred := 0
		if f.PredictProb(row) > 0.5 {
			pred = 1
		}
		if pred == y[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(X))
}

func (t *Tree) predict(x []float64) float64 {
	n := t.Root
	for n != nil && !n.Leaf {
		if n.Feature < len(x) && x[n.Feature] <= n.Threshold {
			n = n.Left
		} else {
			n = n.Right
		}
	}
	if n == nil {
		return 0
	}
	return n.Prob
}

// growNode recursively builds a CART node over the sample indices idx.
func growNode(X [][]float64, y []int, idx []int, depth, mtry int, params ForestParams, rng *rand.Rand) *Node {
	pos := 0
	for _, i := range idx {
		pos += y[i]
	}
	prob := float64(pos) / float64(len(idx))

	// Stop: pure node, depth limit, or too few samples to split.
	if pos == 0 || pos == len(idx) || depth >= params.MaxDepth || len(idx) < params.MinSamplesSplit {
		return &Node{Leaf: true, Prob: prob}
	}

	feat, thr, ok := bestSplit(X, y, idx, mtry, params.MinSamplesLeaf, rng)
	if !ok {
		return &Node{Leaf: true, Prob: prob}
	}

	var leftIdx, rightIdx []int
	for _, i := range idx {
		if X[i][feat] <= thr {
			leftIdx = append(leftIdx, i)
		} else {
			rightIdx = append(rightIdx, i)
		}
	}
	if len(leftIdx) < params.MinSamplesLeaf || len(rightIdx) < params.MinSamplesLeaf {
		return &Node{Leaf: true, Prob: prob}
	}

	return &Node{
		Feature:   feat,
		Threshold: thr,
		Left:      growNode(X, y, leftIdx, depth+1, mtry, params, rng),
		Right:     growNode(X, y, rightIdx, depth+1, mtry, params, rng),
		Prob:      prob,
	}
}

// bestSplit scans a random subset of features for the gini-optimal
// threshold. Candidate thresholds are midpoints between consecutive
// distinct sorted values.
func bestSplit(X [][]float64, y []int, idx []int, mtry, minLeaf int, rng *rand.Rand) (int, float64, bool) {
	nFeatures := len(X[idx[0]])
	features := rng.Perm(nFeatures)[:mtry]

	bestGini := math.Inf(1)
	bestFeat := -1
	bestThr := 0.0

	type valLabel struct {
		v float64
		y int
	}
	total := len(idx)

	for _, feat := range features {
		vals := make([]valLabel, total)
		totalPos := 0
		for k, i := range idx {
			vals[k] = valLabel{v: X[i][feat], y: y[i]}
			totalPos += y[i]
		}
		sort.Slice(vals, func(a, b int) bool { return vals[a].v < vals[b].v })

		leftPos := 0
		for k := 0; k < total-1; k++ {
			leftPos += vals[k].y
			if vals[k].v == vals[k+1].v {
				continue
			}
			nLeft := k + 1
			nRight := total - nLeft
			if nLeft < minLeaf || nRight < minLeaf {
				continue
			}
			g := weightedGini(leftPos, nLeft, totalPos-leftPos, nRight)
			if g < bestGini {
				bestGini = g
				bestFeat = feat
				bestThr = (vals[k].v + vals[k+1].v) / 2
			}
		}
	}

	if bestFeat < 0 {
		return 0, 0, false
	}
	return bestFeat, bestThr, true
}

// weightedGini computes the size-weighted gini impurity of a binary split.
func weightedGini(leftPos, nLeft, rightPos, nRight int) float64 {
	gini := func(pos, n int) float64 {
		if n == 0 {
			return 0
		}
		p := float64(pos) / float64(n)
		return 2 * p * (1 - p)
	}
	total := float64(nLeft + nRight)
	return float64(nLeft)/total*gini(leftPos, nLeft) + float64(nRight)/total*gini(rightPos, nRight)
}
