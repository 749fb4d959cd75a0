package ml

import (
	"sort"
)

const leaf = -1

// Node is one split or leaf of a regression tree. Leaves have Feature == -1.
type Node struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t,omitempty"`
	Left      int     `json:"l,omitempty"`
	Right     int     `json:"r,omitempty"`
	Value     float64 `json:"v"`
}

// TreeParams bound the growth of a single tree
type TreeParams struct {
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
}

// Tree is a CART regression tree minimizing squared error
type Tree struct {
	Nodes []Node `json:"nodes"`

	importance []float64
}

// Predict walks the tree for one sample
func (t *Tree) Predict(x []float64) float64 {
	if len(t.Nodes) == 0 {
		return 0
	}
	i := 0
	for {
		n := t.Nodes[i]
		if n.Feature == leaf {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// Importance returns the normalized total squared-error reduction per feature
func (t *Tree) Importance() []float64 {
	return normalize(t.importance)
}

// FitTree grows a tree over the rows of X selected by idx. idx may repeat rows.
func FitTree(X [][]float64, y []float64, idx []int, p TreeParams) *Tree {
	features := 0
	if len(X) > 0 {
		features = len(X[0])
	}
	b := &treeBuilder{
		X:          X,
		y:          y,
		params:     p,
		importance: make([]float64, features),
	}
	if len(idx) > 0 {
		b.grow(idx, 0)
	}
	return &Tree{Nodes: b.nodes, importance: b.importance}
}

type treeBuilder struct {
	X          [][]float64
	y          []float64
	params     TreeParams
	nodes      []Node
	importance []float64
}

type split struct {
	feature   int
	threshold float64
	gain      float64
	leftSize  int
	order     []int
}

func (b *treeBuilder) grow(idx []int, depth int) int {
	var sum, sumSq float64
	for _, i := range idx {
		sum += b.y[i]
		sumSq += b.y[i] * b.y[i]
	}
	n := float64(len(idx))
	sse := sumSq - sum*sum/n

	node := len(b.nodes)
	b.nodes = append(b.nodes, Node{Feature: leaf, Value: sum / n})

	if depth >= b.params.MaxDepth || len(idx) < b.params.MinSamplesSplit || sse <= 1e-12 {
		return node
	}

	best, ok := b.bestSplit(idx, sum, sumSq)
	if !ok {
		return node
	}
	b.importance[best.feature] += best.gain

	left := append([]int(nil), best.order[:best.leftSize]...)
	right := append([]int(nil), best.order[best.leftSize:]...)

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)

	b.nodes[node].Feature = best.feature
	b.nodes[node].Threshold = best.threshold
	b.nodes[node].Left = l
	b.nodes[node].Right = r
	return node
}

func (b *treeBuilder) bestSplit(idx []int, sum, sumSq float64) (split, bool) {
	n := len(idx)
	minLeaf := b.params.MinSamplesLeaf
	if minLeaf < 1 {
		minLeaf = 1
	}
	parent := sumSq - sum*sum/float64(n)

	var best split
	found := false
	order := make([]int, n)

	for f := range b.importance {
		copy(order, idx)
		sort.Slice(order, func(i, j int) bool {
			return b.X[order[i]][f] < b.X[order[j]][f]
		})

		var sumL, sumSqL float64
		for k := 1; k < n; k++ {
			yv := b.y[order[k-1]]
			sumL += yv
			sumSqL += yv * yv

			if k < minLeaf || n-k < minLeaf {
				continue
			}
			lo, hi := b.X[order[k-1]][f], b.X[order[k]][f]
			if lo == hi {
				continue
			}

			nl, nr := float64(k), float64(n-k)
			sumR, sumSqR := sum-sumL, sumSq-sumSqL
			gain := parent - (sumSqL - sumL*sumL/nl) - (sumSqR - sumR*sumR/nr)
			if gain > best.gain+1e-12 || !found && gain > 1e-12 {
				best = split{feature: f, threshold: (lo + hi) / 2, gain: gain, leftSize: k}
				best.order = append(best.order[:0], order...)
				found = true
			}
		}
	}
	return best, found
}

func normalize(v []float64) []float64 {
	out := make([]float64, len(v))
	total := 0.0
	for _, x := range v {
		total += x
	}
	if total == 0 {
		return out
	}
	for i, x := range v {
		out[i] = x / total
	}
	return out
}
