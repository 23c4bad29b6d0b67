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

// ChannelConfig holds the thresholds for the flag and pennant classifiers.
// RMin/SlopeMin apply to the line through the lows, RMax/SlopeMax to the highs.
type ChannelConfig struct {
	Lookback        int     `mapstructure:"lookback"`
	MinPoints       int     `mapstructure:"min_points"`
	PivotWindow     int     `mapstructure:"pivot_window"`
	RMax            float64 `mapstructure:"r_max"`
	RMin            float64 `mapstructure:"r_min"`
	SlopeMax        float64 `mapstructure:"slope_max"`
	SlopeMin        float64 `mapstructure:"slope_min"`
	LowerRatioSlope float64 `mapstructure:"lower_ratio_slope"`
	UpperRatioSlope float64 `mapstructure:"upper_ratio_slope"`
}

// DefaultFlagConfig returns the default flag thresholds.
func DefaultFlagConfig() ChannelConfig {
	return ChannelConfig{
		Lookback:        25,
		MinPoints:       3,
		PivotWindow:     3,
		RMax:            0.9,
		RMin:            0.9,
		SlopeMax:        0,
		SlopeMin:        0,
		LowerRatioSlope: 0.9,
		UpperRatioSlope: 1.05,
	}
}

// DefaultPennantConfig returns the default pennant thresholds.
func DefaultPennantConfig() ChannelConfig {
	return ChannelConfig{
		Lookback:        20,
		MinPoints:       3,
		PivotWindow:     3,
		RMax:            0.9,
		RMin:            0.9,
		SlopeMax:        -0.0001,
		SlopeMin:        0.0001,
		LowerRatioSlope: 0.95,
		UpperRatioSlope: 1,
	}
}

func (c ChannelConfig) validate() error {
	if c.Lookback <= 0 {
		return apperrors.NewConfigurationError("lookback", c.Lookback, "must be positive")
	}
	if c.MinPoints <= 0 {
		return apperrors.NewConfigurationError("min_points", c.MinPoints, "must be positive")
	}
	if c.PivotWindow <= 0 {
		return apperrors.NewConfigurationError("pivot_window", c.PivotWindow, "must be positive")
	}
	if c.LowerRatioSlope >= c.UpperRatioSlope {
		return apperrors.NewConfigurationError("lower_ratio_slope", c.LowerRatioSlope,
			"must be below upper_ratio_slope")
	}
	return nil
}

// ChannelDetector finds flags (two near-parallel trend lines) or pennants
// (converging lines, lows rising and highs falling).
type ChannelDetector struct {
	cfg     ChannelConfig
	pennant bool
}

// NewFlagDetector creates a flag detector.
func NewFlagDetector(cfg ChannelConfig) *ChannelDetector {
	return &ChannelDetector{cfg: cfg}
}

// NewPennantDetector creates a pennant detector.
func NewPennantDetector(cfg ChannelConfig) *ChannelDetector {
	return &ChannelDetector{cfg: cfg, pennant: true}
}

func (d *ChannelDetector) Name() string {
	if d.pennant {
		return "PennantDetector"
	}
	return "FlagDetector"
}

func (d *ChannelDetector) Family() analysis.Family {
	if d.pennant {
		return analysis.FamilyPennant
	}
	return analysis.FamilyFlag
}

func (d *ChannelDetector) Lookback() int {
	return d.cfg.Lookback
}

// Validate validates the detector configuration.
func (d *ChannelDetector) Validate() error {
	return d.cfg.validate()
}

// Prepare labels pivots and returns the per-index evaluator.
func (d *ChannelDetector) Prepare(candles []models.Candle, logger zerolog.Logger) (Evaluator, error) {
	ch, err := pivots.DetectAll(candles, d.cfg.PivotWindow, d.cfg.PivotWindow, pivots.DefaultChannel)
	if err != nil {
		return nil, err
	}

	kind := analysis.Kind{Family: d.Family()}
	return func(idx int) *analysis.Detection {
		set := pivots.Collect(candles, ch, idx, d.cfg.Lookback)
		if !enoughPivots(set, d.cfg.MinPoints) {
			return nil
		}
		// Flags need both pivot sequences to step up; choppy windows are skipped.
		if !d.pennant && (!pivots.NonDecreasing(set.Lows) || !pivots.NonDecreasing(set.Highs)) {
			return nil
		}

		low, high, err := fitLines(set)
		if err != nil {
			logger.Debug().Err(err).Int("index", idx).Msg("Trend line fit skipped")
			return nil
		}

		var matched bool
		if d.pennant {
			matched = MatchPennant(low, high, d.cfg)
		} else {
			matched = MatchFlag(low, high, d.cfg)
		}
		if !matched {
			return nil
		}
		return trendLineDetection(idx, kind, set, low, high, d.cfg.Lookback)
	}, nil
}

// MatchFlag requires both fits to pass their correlation gates, both slopes
// to sit on the same side of their thresholds, and the low/high slope ratio to
// fall inside the open ratio band.
func MatchFlag(low, high trend.Line, cfg ChannelConfig) bool {
	if math.Abs(high.R) < cfg.RMax || math.Abs(low.R) < cfg.RMin {
		return false
	}
	bothAbove := low.Slope > cfg.SlopeMin && high.Slope > cfg.SlopeMax
	bothBelow := low.Slope < cfg.SlopeMin && high.Slope < cfg.SlopeMax
	if !bothAbove && !bothBelow {
		return false
	}
	ratio := low.Slope / high.Slope
	return ratio > cfg.LowerRatioSlope && ratio < cfg.UpperRatioSlope
}

// MatchPennant requires rising lows, falling highs and |high/low| slope ratio
// inside the open ratio band.
func MatchPennant(low, high trend.Line, cfg ChannelConfig) bool {
	if math.Abs(high.R) < cfg.RMax || math.Abs(low.R) < cfg.RMin {
		return false
	}
	if low.Slope < cfg.SlopeMin || high.Slope > cfg.SlopeMax {
		return false
	}
	ratio := math.Abs(high.Slope / low.Slope)
	return ratio > cfg.LowerRatioSlope && ratio < cfg.UpperRatioSlope
}

// enoughPivots needs minPoints on at least one side and one pivot on each side.
func enoughPivots(set pivots.Set, minPoints int) bool {
	if len(set.Lows) == 0 || len(set.Highs) == 0 {
		return false
	}
	return len(set.Lows) >= minPoints || len(set.Highs) >= minPoints
}

// fitLines fits one line through the lows and one through the highs.
func fitLines(set pivots.Set) (trend.Line, trend.Line, error) {
	low, err := trend.Fit(pivots.XY(set.Lows))
	if err != nil {
		return trend.Line{}, trend.Line{}, apperrors.Wrap(err, "lows")
	}
	high, err := trend.Fit(pivots.XY(set.Highs))
	if err != nil {
		return trend.Line{}, trend.Line{}, apperrors.Wrap(err, "highs")
	}
	return low, high, nil
}

func trendLineDetection(idx int, kind analysis.Kind, set pivots.Set, low, high trend.Line, lookback int) *analysis.Detection {
	all := make([]pivots.Point, 0, len(set.Lows)+len(set.Highs))
	all = append(all, set.Lows...)
	all = append(all, set.Highs...)
	all = sortedPoints(all...)

	return &analysis.Detection{
		Index:        idx,
		Kind:         kind,
		PointIndices: pivots.Indices(all),
		PointPrices:  pivots.Prices(all),
		LowLine:      &low,
		HighLine:     &high,
		LowPivots:    set.Lows,
		HighPivots:   set.Highs,
		Lookback:     lookback,
	}
}
