package patterns

import (
	"math"

	"github.com/rs/zerolog"

	"chart-patterns/internal/analysis"
	"chart-patterns/internal/analysis/pivots"
	"chart-patterns/internal/analysis/trend"
	apperrors "chart-patterns/internal/errors"
	"chart-patterns/internal/models"
)

// TriangleConfig holds the triangle thresholds. A detector looks for exactly one Type.
type TriangleConfig struct {
	Lookback      int              `mapstructure:"lookback"`
	MinPoints     int              `mapstructure:"min_points"`
	PivotWindow   int              `mapstructure:"pivot_window"`
	RLimit        float64          `mapstructure:"r_limit"`
	SlopeMaxLimit float64          `mapstructure:"slope_max_limit"`
	SlopeMinLimit float64          `mapstructure:"slope_min_limit"`
	Type          analysis.SubType `mapstructure:"type"`
}

// DefaultTriangleConfig returns the default triangle thresholds.
func DefaultTriangleConfig() TriangleConfig {
	return TriangleConfig{
		Lookback:      25,
		MinPoints:     3,
		PivotWindow:   3,
		RLimit:        0.9,
		SlopeMaxLimit: 0.00001,
		SlopeMinLimit: 0.00001,
		Type:          analysis.SubTypeAscending,
	}
}

// TriangleDetector finds ascending, descending or symmetrical triangles.
type TriangleDetector struct {
	cfg TriangleConfig
}

// NewTriangleDetector creates a triangle detector.
func NewTriangleDetector(cfg TriangleConfig) *TriangleDetector {
	return &TriangleDetector{cfg: cfg}
}

func (d *TriangleDetector) Name() string {
	return "TriangleDetector"
}

func (d *TriangleDetector) Family() analysis.Family {
	return analysis.FamilyTriangle
}

func (d *TriangleDetector) Lookback() int {
	return d.cfg.Lookback
}

// Validate validates the detector configuration.
func (d *TriangleDetector) Validate() error {
	if d.cfg.Lookback <= 0 {
		return apperrors.NewConfigurationError("lookback", d.cfg.Lookback, "must be positive")
	}
	if d.cfg.MinPoints <= 0 {
		return apperrors.NewConfigurationError("min_points", d.cfg.MinPoints, "must be positive")
	}
	if d.cfg.PivotWindow <= 0 {
		return apperrors.NewConfigurationError("pivot_window", d.cfg.PivotWindow, "must be positive")
	}
	if d.cfg.SlopeMaxLimit < 0 || d.cfg.SlopeMinLimit < 0 {
		return apperrors.NewConfigurationError("slope_limit",
			[2]float64{d.cfg.SlopeMinLimit, d.cfg.SlopeMaxLimit}, "must not be negative")
	}
	kind := analysis.Kind{Family: analysis.FamilyTriangle, SubType: d.cfg.Type}
	if !kind.Valid() {
		return apperrors.NewConfigurationError("type", d.cfg.Type, "must be ascending, descending or symmetrical")
	}
	return nil
}

// Prepare labels pivots and returns the per-index evaluator.
func (d *TriangleDetector) Prepare(candles []models.Candle, logger zerolog.Logger) (Evaluator, error) {
	ch, err := pivots.DetectAll(candles, d.cfg.PivotWindow, d.cfg.PivotWindow, pivots.DefaultChannel)
	if err != nil {
		return nil, err
	}

	kind := analysis.Kind{Family: analysis.FamilyTriangle, SubType: d.cfg.Type}
	return func(idx int) *analysis.Detection {
		set := pivots.Collect(candles, ch, idx, d.cfg.Lookback)
		if !enoughPivots(set, d.cfg.MinPoints) {
			return nil
		}
		low, high, err := fitLines(set)
		if err != nil {
			logger.Debug().Err(err).Int("index", idx).Msg("Trend line fit skipped")
			return nil
		}
		if !MatchTriangle(d.cfg.Type, low, high, d.cfg) {
			return nil
		}
		return trendLineDetection(idx, kind, set, low, high, d.cfg.Lookback)
	}, nil
}

// MatchTriangle applies the rule for one triangle type. A side counts as flat
// when |slope| is within its limit, bounds included.
//
//	symmetrical: lows rise (>= min limit), highs fall (<= -max limit)
//	ascending:   lows rise, highs flat
//	descending:  highs fall, lows flat
func MatchTriangle(t analysis.SubType, low, high trend.Line, cfg TriangleConfig) bool {
	if math.Abs(high.R) < cfg.RLimit || math.Abs(low.R) < cfg.RLimit {
		return false
	}
	lowsRise := low.Slope >= cfg.SlopeMinLimit
	highsFall := high.Slope <= -cfg.SlopeMaxLimit
	lowsFlat := math.Abs(low.Slope) <= cfg.SlopeMinLimit
	highsFlat := math.Abs(high.Slope) <= cfg.SlopeMaxLimit

	switch t {
	case analysis.SubTypeSymmetrical:
		return lowsRise && highsFall
	case analysis.SubTypeAscending:
		return lowsRise && highsFlat
	case analysis.SubTypeDescending:
		return highsFall && lowsFlat
	default:
		return false
	}
}
