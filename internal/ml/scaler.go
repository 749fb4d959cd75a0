package ml

import (
	"gonum.org/v1/gonum/stat"
)

// Scaler standardizes each feature column to zero mean and unit variance
type Scaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// FitScaler learns column statistics from X. Constant columns get scale 1.
func FitScaler(X [][]float64) *Scaler {
	if len(X) == 0 {
		return &Scaler{}
	}
	cols := len(X[0])
	s := &Scaler{
		Mean:  make([]float64, cols),
		Scale: make([]float64, cols),
	}

	column := make([]float64, len(X))
	for c := 0; c < cols; c++ {
		for i, row := range X {
			column[i] = row[c]
		}
		mean, std := stat.PopMeanStdDev(column, nil)
		if std == 0 {
			std = 1
		}
		s.Mean[c] = mean
		s.Scale[c] = std
	}
	return s
}

// Transform returns a scaled copy of x
func (s *Scaler) Transform(x []float64) []float64 {
	out := make([]float64, len(x))
	for c, v := range x {
		if c < len(s.Mean) {
			out[c] = (v - s.Mean[c]) / s.Scale[c]
		} else {
			out[c] = v
		}
	}
	return out
}

// TransformAll scales every row of X
func (s *Scaler) TransformAll(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i, row := range X {
		out[i] = s.Transform(row)
	}
	return out
}
