package ml

import (
	"context"
	"math/rand"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ForestParams configure the random forest
type ForestParams struct {
	Estimators      int `yaml:"estimators" json:"estimators"`
	MaxDepth        int `yaml:"max_depth" json:"max_depth"`
	MinSamplesSplit int `yaml:"min_samples_split" json:"min_samples_split"`
	MinSamplesLeaf  int `yaml:"min_samples_leaf" json:"min_samples_leaf"`
}

// RandomForest averages trees grown on bootstrap resamples
type RandomForest struct {
	Trees []*Tree `json:"trees"`

	importance []float64
}

// FitRandomForest grows the trees in parallel. Tree i draws its bootstrap
// sample from seed+i, so the result does not depend on scheduling.
func FitRandomForest(ctx context.Context, X [][]float64, y []float64, p ForestParams, seed int64) (*RandomForest, error) {
	n := len(y)
	f := &RandomForest{Trees: make([]*Tree, p.Estimators)}
	if n == 0 || p.Estimators == 0 {
		f.Trees = nil
		return f, nil
	}

	params := TreeParams{
		MaxDepth:        p.MaxDepth,
		MinSamplesSplit: p.MinSamplesSplit,
		MinSamplesLeaf:  p.MinSamplesLeaf,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for t := 0; t < p.Estimators; t++ {
		t := t
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewSource(seed + int64(t)))
			idx := make([]int, n)
			for i := range idx {
				idx[i] = rng.Intn(n)
			}
			f.Trees[t] = FitTree(X, y, idx, params)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	importances := make([][]float64, len(f.Trees))
	for i, t := range f.Trees {
		importances[i] = t.Importance()
	}
	f.importance = meanColumns(importances, len(X[0]))
	return f, nil
}

// Predict returns the mean of the tree estimates
func (f *RandomForest) Predict(x []float64) float64 {
	if len(f.Trees) == 0 {
		return 0
	}
	sum := 0.0
	for _, t := range f.Trees {
		sum += t.Predict(x)
	}
	return sum / float64(len(f.Trees))
}

// Importance returns the mean normalized feature importance across trees
func (f *RandomForest) Importance() []float64 {
	return normalize(f.importance)
}
