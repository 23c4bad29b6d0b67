package patterns

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"chart-patterns/internal/analysis"
	"chart-patterns/internal/analysis/trend"
	"chart-patterns/internal/models"
)

var triangleTypes = []analysis.SubType{
	analysis.SubTypeAscending,
	analysis.SubTypeDescending,
	analysis.SubTypeSymmetrical,
}

func triangleConfig(t analysis.SubType) TriangleConfig {
	cfg := DefaultTriangleConfig()
	cfg.Type = t
	return cfg
}

func ascendingTriangle() []models.Candle {
	return channelSeries(42, 3,
		func(i int) float64 { return 1.0 + 0.002*float64(i) },
		func(i int) float64 { return 1.2 + 0.000003*float64(i) })
}

func TestTriangleDetector_EachTypeMatchesOnlyItself(t *testing.T) {
	series := map[analysis.SubType][]models.Candle{
		analysis.SubTypeAscending:  ascendingTriangle(),
		analysis.SubTypeDescending: mirror(ascendingTriangle(), 2.2),
		analysis.SubTypeSymmetrical: channelSeries(42, 3,
			func(i int) float64 { return 1.0 + 0.002*float64(i) },
			func(i int) float64 { return 1.2 - 0.002*float64(i) }),
	}

	for shape, candles := range series {
		for _, typ := range triangleTypes {
			result := scan(t, candles, NewTriangleDetector(triangleConfig(typ)))
			if typ != shape {
				if result.Count() != 0 {
					t.Errorf("%s series: %d %s detections, want 0", shape, result.Count(), typ)
				}
				continue
			}
			assertIndices(t, result, rangeInts(25, 41))
			d, _ := result.At(25)
			if want := (analysis.Kind{Family: analysis.FamilyTriangle, SubType: shape}); d.Kind != want {
				t.Errorf("kind = %v, want %v", d.Kind, want)
			}
		}
	}
}

func TestMatchTriangle_Boundaries(t *testing.T) {
	cfg := DefaultTriangleConfig()
	limit := cfg.SlopeMinLimit
	tests := []struct {
		name      string
		typ       analysis.SubType
		low, high trend.Line
		want      bool
	}{
		{"ascending", analysis.SubTypeAscending, trend.Line{Slope: 0.002, R: 1}, trend.Line{Slope: 0, R: 0.95}, true},
		{"lows rising at limit", analysis.SubTypeAscending, trend.Line{Slope: limit, R: 1}, trend.Line{Slope: 0, R: 0.95}, true},
		{"highs at limit are flat", analysis.SubTypeAscending, trend.Line{Slope: 2 * limit, R: 1}, trend.Line{Slope: limit, R: 1}, true},
		{"highs past limit", analysis.SubTypeAscending, trend.Line{Slope: 0.002, R: 1}, trend.Line{Slope: 2 * limit, R: 1}, false},
		{"descending", analysis.SubTypeDescending, trend.Line{Slope: 0, R: 0.95}, trend.Line{Slope: -0.002, R: -1}, true},
		{"lows at negative limit are flat", analysis.SubTypeDescending, trend.Line{Slope: -limit, R: 1}, trend.Line{Slope: -0.002, R: -1}, true},
		{"symmetrical", analysis.SubTypeSymmetrical, trend.Line{Slope: 0.002, R: 1}, trend.Line{Slope: -0.002, R: -1}, true},
		{"weak correlation", analysis.SubTypeSymmetrical, trend.Line{Slope: 0.002, R: 0.5}, trend.Line{Slope: -0.002, R: -1}, false},
		{"unknown type", analysis.SubTypeTops, trend.Line{Slope: 0.002, R: 1}, trend.Line{Slope: -0.002, R: -1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MatchTriangle(tt.typ, tt.low, tt.high, cfg); got != tt.want {
				t.Errorf("MatchTriangle() = %v, want %v", got, tt.want)
			}
		})
	}
}

// Property: for any pair of lines off the limit boundaries at most one
// triangle type matches.
func TestProperty_TriangleTypesExclusive(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500

	properties := gopter.NewProperties(parameters)
	cfg := DefaultTriangleConfig()
	slope := gen.Float64Range(-5e-5, 5e-5).SuchThat(func(v float64) bool {
		return math.Abs(v) != cfg.SlopeMinLimit && math.Abs(v) != cfg.SlopeMaxLimit
	})

	properties.Property("at most one type matches", prop.ForAll(
		func(lowSlope, highSlope float64) bool {
			low := trend.Line{Slope: lowSlope, R: 1}
			high := trend.Line{Slope: highSlope, R: 1}
			matched := 0
			for _, typ := range triangleTypes {
				if MatchTriangle(typ, low, high, cfg) {
					matched++
				}
			}
			return matched <= 1
		},
		slope, slope,
	))

	properties.TestingRun(t)
}

func TestTriangleDetector_Validate(t *testing.T) {
	cfg := DefaultTriangleConfig()
	cfg.Type = "wedge"
	if err := NewTriangleDetector(cfg).Validate(); err == nil {
		t.Error("unknown triangle type accepted")
	}
	cfg = DefaultTriangleConfig()
	cfg.SlopeMaxLimit = 0
	if err := NewTriangleDetector(cfg).Validate(); err != nil {
		t.Errorf("zero slope limit rejected: %v", err)
	}
	cfg.SlopeMinLimit = -1e-5
	if err := NewTriangleDetector(cfg).Validate(); err == nil {
		t.Error("negative slope limit accepted")
	}
}
