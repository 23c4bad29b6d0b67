package trend

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	apperrors "chart-patterns/internal/errors"
)

func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestFit_ExactLine(t *testing.T) {
	xs := []float64{10, 12, 15, 20}
	ys := make([]float64, len(xs))
	for i, x := range xs {
		ys[i] = 1.1 + 0.002*x
	}

	line, err := Fit(xs, ys)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !approxEqual(line.Slope, 0.002, 1e-12) {
		t.Errorf("slope = %v, want 0.002", line.Slope)
	}
	if !approxEqual(line.Intercept, 1.1, 1e-9) {
		t.Errorf("intercept = %v, want 1.1", line.Intercept)
	}
	if !approxEqual(line.R, 1, 1e-12) {
		t.Errorf("r = %v, want 1", line.R)
	}
	if !approxEqual(line.At(30), 1.16, 1e-9) {
		t.Errorf("At(30) = %v, want 1.16", line.At(30))
	}
}

func TestFit_NegativeCorrelation(t *testing.T) {
	line, err := FitPoints([]int{0, 1, 2, 3}, []float64{4, 3.1, 1.9, 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if line.Slope >= 0 {
		t.Errorf("slope = %v, want negative", line.Slope)
	}
	if line.R > -0.99 {
		t.Errorf("r = %v, want close to -1", line.R)
	}
}

func TestFit_KnownValues(t *testing.T) {
	// x: 1..5, y: 2,4,5,4,5 -> slope 0.6, intercept 2.2, r = 0.7745966692
	line, err := FitPoints([]int{1, 2, 3, 4, 5}, []float64{2, 4, 5, 4, 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !approxEqual(line.Slope, 0.6, 1e-12) {
		t.Errorf("slope = %v, want 0.6", line.Slope)
	}
	if !approxEqual(line.Intercept, 2.2, 1e-12) {
		t.Errorf("intercept = %v, want 2.2", line.Intercept)
	}
	if !approxEqual(line.R, 0.7745966692, 1e-9) {
		t.Errorf("r = %v, want 0.7746", line.R)
	}
}

func TestFit_ConstantY(t *testing.T) {
	for _, y := range []float64{1.2, 0.1, 1.08251} {
		line, err := FitPoints([]int{3, 7, 9, 12, 20}, []float64{y, y, y, y, y})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if line.Slope != 0 || line.R != 0 || line.Intercept != y {
			t.Errorf("y=%v: got %+v, want flat line at y", y, line)
		}
	}
}

func TestFit_Degenerate(t *testing.T) {
	tests := []struct {
		name string
		xs   []float64
		ys   []float64
	}{
		{"empty", nil, nil},
		{"single point", []float64{4}, []float64{1}},
		{"constant x", []float64{4, 4, 4}, []float64{1, 2, 3}},
		{"constant fractional x", []float64{0.1, 0.1, 0.1, 0.1}, []float64{1, 2, 3, 4}},
		{"length mismatch", []float64{1, 2}, []float64{1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Fit(tt.xs, tt.ys)
			if !apperrors.Is(err, apperrors.ErrDegenerateFit) {
				t.Errorf("expected degenerate fit error, got %v", err)
			}
		})
	}
}

// Property: correlation is bounded and shares its sign with the slope.
func TestProperty_FitCorrelationBounds(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("|r| <= 1 and sign(r) == sign(slope)", prop.ForAll(
		func(ys []float64) bool {
			if len(ys) < 2 {
				return true
			}
			xs := make([]float64, len(ys))
			for i := range xs {
				xs[i] = float64(i * 2)
			}
			line, err := Fit(xs, ys)
			if err != nil {
				return false
			}
			if math.Abs(line.R) > 1 {
				return false
			}
			if line.R == 0 {
				return true
			}
			return (line.R > 0) == (line.Slope > 0)
		},
		gen.SliceOfN(12, gen.Float64Range(1.0, 2.0)),
	))

	properties.TestingRun(t)
}
