// Package ml implements the small supervised-learning toolkit used to train
// per-category weather classifiers: a standard (z-score) feature scaler and
// a random forest of CART decision trees. Both are deterministic given the
// same inputs and seed, and both serialize to JSON so trained artifacts can
// be persisted and reloaded across process restarts.
package ml

import (
	"errors"
	"math"
)

// Scaler standardizes features to zero mean and unit variance. A fitted
// Scaler is immutable; Transform never mutates its input.
type Scaler struct {
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
}

// FitScaler computes per-feature mean and standard deviation from the
// training matrix. Features with zero variance get Std 1 so Transform
// leaves them centered but unscaled.
func FitScaler(X [][]float64) (*Scaler, error) {
	if len(X) == 0 || len(X[0]) == 0 {
		return nil, errors.New("ml: cannot fit scaler on empty matrix")
	}
	nFeat := len(X[0])
	mean := make([]float64, nFeat)
	std := make([]float64, nFeat)

	for _, row := range X {
		for j, v := range row {
			mean[j] += v
		}
	}
	n := float64(len(X))
	for j := range mean {
		mean[j] /= n
	}

	for _, row := range X {
		for j, v := range row {
			d := v - mean[j]
			std[j] += d * d
		}
	}
	for j := range std {
		std[j] = math.Sqrt(std[j] / n)
		if std[j] == 0 {
			std[j] = 1
		}
	}

	return &Scaler{Mean: mean, Std: std}, nil
}

// Transform returns the standardized copy of one feature vector.
func (s *Scaler) Transform(x []float64) []float64 {
	out := make([]float64, len(x))
	for j, v := range x {
		if j >= len(s.Mean) {
			out[j] = v
			continue
		}
		out[j] = (v - s.Mean[j]) / s.Std[j]
	}
	return out
}

// TransformAll standardizes a whole matrix, returning a new matrix.
func (s *Scaler) TransformAll(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i, row := range X {
		out[i] = s.Transform(row)
	}
	return out
}
