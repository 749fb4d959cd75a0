package ml

import (
	"math/rand"
	"sort"
)

// BoostingParams configure gradient boosting
type BoostingParams struct {
	Estimators      int     `yaml:"estimators" json:"estimators"`
	MaxDepth        int     `yaml:"max_depth" json:"max_depth"`
	LearningRate    float64 `yaml:"learning_rate" json:"learning_rate"`
	MinSamplesSplit int     `yaml:"min_samples_split" json:"min_samples_split"`
	MinSamplesLeaf  int     `yaml:"min_samples_leaf" json:"min_samples_leaf"`
	Subsample       float64 `yaml:"subsample" json:"subsample"`
}

// GradientBoosting is an additive ensemble of shallow trees fit to residuals
// under squared loss
type GradientBoosting struct {
	Init         float64 `json:"init"`
	LearningRate float64 `json:"learning_rate"`
	Trees        []*Tree `json:"trees"`

	importance []float64
}

// FitGradientBoosting trains a boosted ensemble. The same seed and data always
// produce the same model.
func FitGradientBoosting(X [][]float64, y []float64, p BoostingParams, seed int64) *GradientBoosting {
	n := len(y)
	m := &GradientBoosting{LearningRate: p.LearningRate}
	if n == 0 {
		return m
	}

	for _, v := range y {
		m.Init += v
	}
	m.Init /= float64(n)

	pred := make([]float64, n)
	for i := range pred {
		pred[i] = m.Init
	}
	residual := make([]float64, n)

	sampleSize := n
	if p.Subsample > 0 && p.Subsample < 1 {
		sampleSize = int(p.Subsample * float64(n))
		if sampleSize < 1 {
			sampleSize = 1
		}
	}

	rng := rand.New(rand.NewSource(seed))
	params := TreeParams{
		MaxDepth:        p.MaxDepth,
		MinSamplesSplit: p.MinSamplesSplit,
		MinSamplesLeaf:  p.MinSamplesLeaf,
	}
	all := make([]int, n)
	for i := range all {
		all[i] = i
	}

	var importances [][]float64
	for t := 0; t < p.Estimators; t++ {
		for i := range residual {
			residual[i] = y[i] - pred[i]
		}

		idx := all
		if sampleSize < n {
			idx = rng.Perm(n)[:sampleSize]
			sort.Ints(idx)
		}

		tree := FitTree(X, residual, idx, params)
		m.Trees = append(m.Trees, tree)
		importances = append(importances, tree.Importance())

		for i, x := range X {
			pred[i] += m.LearningRate * tree.Predict(x)
		}
	}

	m.importance = meanColumns(importances, len(X[0]))
	return m
}

// Predict returns the ensemble estimate for one sample
func (m *GradientBoosting) Predict(x []float64) float64 {
	out := m.Init
	for _, t := range m.Trees {
		out += m.LearningRate * t.Predict(x)
	}
	return out
}

// Importance returns the mean normalized feature importance across trees.
// It is only available on a model trained in this process.
func (m *GradientBoosting) Importance() []float64 {
	return normalize(m.importance)
}

func meanColumns(rows [][]float64, cols int) []float64 {
	out := make([]float64, cols)
	if len(rows) == 0 {
		return out
	}
	for _, r := range rows {
		for c, v := range r {
			out[c] += v
		}
	}
	for c := range out {
		out[c] /= float64(len(rows))
	}
	return out
}
