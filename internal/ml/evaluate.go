package ml

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Regressor predicts one target from a feature row
type Regressor interface {
	Predict(x []float64) float64
}

// MeanAbsoluteError of predictions against actual values
func MeanAbsoluteError(actual, predicted []float64) float64 {
	if len(actual) == 0 {
		return 0
	}
	sum := 0.0
	for i := range actual {
		sum += math.Abs(actual[i] - predicted[i])
	}
	return sum / float64(len(actual))
}

// R2 is the coefficient of determination. A constant actual series yields 0.
func R2(actual, predicted []float64) float64 {
	if len(actual) == 0 {
		return 0
	}
	mean := stat.Mean(actual, nil)
	var ssRes, ssTot float64
	for i := range actual {
		ssRes += (actual[i] - predicted[i]) * (actual[i] - predicted[i])
		ssTot += (actual[i] - mean) * (actual[i] - mean)
	}
	if ssTot == 0 {
		return 0
	}
	return 1 - ssRes/ssTot
}

// PredictAll applies r to every row of X
func PredictAll(r Regressor, X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, x := range X {
		out[i] = r.Predict(x)
	}
	return out
}

// Fold is one time-ordered train/validation split: rows [0, TrainEnd) train,
// rows [TrainEnd, TestEnd) validate
type Fold struct {
	TrainEnd int
	TestEnd  int
}

// TimeSeriesSplit partitions n ordered rows into k expanding-window folds.
// Each validation block has n/(k+1) rows and directly follows its training
// window. Returns nil when n is too small for k folds.
func TimeSeriesSplit(n, k int) []Fold {
	if k < 2 || n < k+1 {
		return nil
	}
	testSize := n / (k + 1)
	start := n - k*testSize

	folds := make([]Fold, k)
	for i := range folds {
		trainEnd := start + i*testSize
		folds[i] = Fold{TrainEnd: trainEnd, TestEnd: trainEnd + testSize}
	}
	return folds
}

// FitFunc trains a fresh regressor (scaler included) on one training window
type FitFunc func(X [][]float64, y []float64) (Regressor, error)

// CrossValidate returns the validation R² of every fold
func CrossValidate(X [][]float64, y []float64, k int, fit FitFunc) ([]float64, error) {
	folds := TimeSeriesSplit(len(y), k)
	scores := make([]float64, 0, len(folds))
	for _, f := range folds {
		model, err := fit(X[:f.TrainEnd], y[:f.TrainEnd])
		if err != nil {
			return nil, err
		}
		pred := PredictAll(model, X[f.TrainEnd:f.TestEnd])
		scores = append(scores, R2(y[f.TrainEnd:f.TestEnd], pred))
	}
	return scores, nil
}

// scaledRegressor applies a fitted scaler before delegating
type scaledRegressor struct {
	scaler *Scaler
	model  Regressor
}

func (s scaledRegressor) Predict(x []float64) float64 {
	return s.model.Predict(s.scaler.Transform(x))
}
