package model

import (
	"math/rand"
	"sort"
)

// node is a single decision-tree node. Leaves carry the churned fraction
// of training rows that reached them, which is what the forest averages
// into a probability.
type node struct {
	Leaf      bool    `json:"leaf,omitempty"`
	Feature   int     `json:"f,omitempty"`
	Threshold float64 `json:"t,omitempty"`
	Prob      float64 `json:"p,omitempty"`
	Left      *node   `json:"l,omitempty"`
	Right     *node   `json:"r,omitempty"`
}

func (n *node) predict(row []float64) float64 {
	for !n.Leaf {
		if row[n.Feature] <= n.Threshold {
			n = n.Left
		} else {
			n = n.Right
		}
	}
	return n.Prob
}

// treeBuilder grows one CART tree on a bootstrap sample. It accumulates
// weighted impurity decrease per feature, the raw material for the
// forest's feature importances.
type treeBuilder struct {
	maxDepth    int
	minSplit    int
	minLeaf     int
	maxFeatures int
	rng         *rand.Rand
	importances []float64
	total       int
}

func (b *treeBuilder) fit(x [][]float64, y []int, idx []int) *node {
	b.total = len(idx)
	return b.grow(x, y, idx, 0)
}

func (b *treeBuilder) grow(x [][]float64, y []int, idx []int, depth int) *node {
	imp := gini(y, idx)

	if depth >= b.maxDepth || len(idx) < b.minSplit || imp == 0 {
		return leaf(y, idx)
	}

	feat, thr, gain, left, right := b.bestSplit(x, y, idx, imp)
	if feat < 0 {
		return leaf(y, idx)
	}

	b.importances[feat] += float64(len(idx)) / float64(b.total) * gain

	return &node{
		Feature:   feat,
		Threshold: thr,
		Left:      b.grow(x, y, left, depth+1),
		Right:     b.grow(x, y, right, depth+1),
	}
}

// bestSplit scans a random feature subset for the threshold with the
// largest gini gain that leaves at least minLeaf rows on each side.
func (b *treeBuilder) bestSplit(x [][]float64, y []int, idx []int, parentImp float64) (int, float64, float64, []int, []int) {
	bestFeat := -1
	var bestThr, bestGain float64
	var bestLeft, bestRight []int

	for _, feat := range b.featureSubset(len(x[0])) {
		sorted := make([]int, len(idx))
		copy(sorted, idx)
		sort.Slice(sorted, func(i, j int) bool {
			return x[sorted[i]][feat] < x[sorted[j]][feat]
		})

		// running positive counts on each side of the cut
		total := len(sorted)
		totalPos := 0
		for _, i := range sorted {
			totalPos += y[i]
		}

		leftPos := 0
		for cut := 1; cut < total; cut++ {
			leftPos += y[sorted[cut-1]]

			// skip cuts between identical values
			if x[sorted[cut-1]][feat] == x[sorted[cut]][feat] {
				continue
			}
			if cut < b.minLeaf || total-cut < b.minLeaf {
				continue
			}

			gain := parentImp - weightedGini(cut, leftPos, total-cut, totalPos-leftPos, total)
			if gain > bestGain {
				bestGain = gain
				bestFeat = feat
				bestThr = (x[sorted[cut-1]][feat] + x[sorted[cut]][feat]) / 2
				bestLeft = append([]int(nil), sorted[:cut]...)
				bestRight = append([]int(nil), sorted[cut:]...)
			}
		}
	}

	return bestFeat, bestThr, bestGain, bestLeft, bestRight
}

func (b *treeBuilder) featureSubset(n int) []int {
	feats := b.rng.Perm(n)
	if b.maxFeatures > 0 && b.maxFeatures < n {
		feats = feats[:b.maxFeatures]
	}
	sort.Ints(feats)
	return feats
}

func leaf(y []int, idx []int) *node {
	pos := 0
	for _, i := range idx {
		pos += y[i]
	}
	return &node{Leaf: true, Prob: float64(pos) / float64(len(idx))}
}

func gini(y []int, idx []int) float64 {
	if len(idx) == 0 {
		return 0
	}
	pos := 0
	for _, i := range idx {
		pos += y[i]
	}
	p := float64(pos) / float64(len(idx))
	return 2 * p * (1 - p)
}

func weightedGini(nLeft, posLeft, nRight, posRight, total int) float64 {
	gl := giniFromCounts(nLeft, posLeft)
	gr := giniFromCounts(nRight, posRight)
	return (float64(nLeft)*gl + float64(nRight)*gr) / float64(total)
}

func giniFromCounts(n, pos int) float64 {
	if n == 0 {
		return 0
	}
	p := float64(pos) / float64(n)
	return 2 * p * (1 - p)
}
