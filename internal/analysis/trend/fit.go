// Package trend fits straight trend lines through pivot points.
package trend

import (
	"math"

	"gonum.org/v1/gonum/stat"

	apperrors "chart-patterns/internal/errors"
)

// Line is an ordinary least-squares fit of price against candle index.
// R is the Pearson correlation coefficient of the fit (not R²).
type Line struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
	R         float64 `json:"r"`
}

// At evaluates the line at candle index x.
func (l Line) At(x float64) float64 {
	return l.Slope*x + l.Intercept
}

// Fit regresses ys on xs. It needs at least two points and non-constant xs.
// When ys is constant the slope is 0 and R is reported as 0.
func Fit(xs, ys []float64) (Line, error) {
	n := len(xs)
	if n != len(ys) {
		return Line{}, apperrors.NewDegenerateFitError(n, "xs and ys differ in length")
	}
	if n < 2 {
		return Line{}, apperrors.NewDegenerateFitError(n, "need at least 2 points")
	}

	// Constancy is checked exactly; a computed mean of equal values can be
	// off by an ulp and leave a spurious slope.
	if constant(xs) {
		return Line{}, apperrors.NewDegenerateFitError(n, "x values have zero variance")
	}
	if constant(ys) {
		return Line{Intercept: ys[0]}, nil
	}

	intercept, slope := stat.LinearRegression(xs, ys, nil, false)
	// Rounding can push |r| marginally past 1.
	r := math.Max(-1, math.Min(1, stat.Correlation(xs, ys, nil)))
	return Line{Slope: slope, Intercept: intercept, R: r}, nil
}

func constant(vs []float64) bool {
	for _, v := range vs[1:] {
		if v != vs[0] {
			return false
		}
	}
	return true
}

// FitPoints is Fit over integer indices.
func FitPoints(indices []int, prices []float64) (Line, error) {
	xs := make([]float64, len(indices))
	for i, idx := range indices {
		xs[i] = float64(idx)
	}
	return Fit(xs, prices)
}
