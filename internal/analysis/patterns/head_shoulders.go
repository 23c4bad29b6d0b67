package patterns

import (
	"math"
	"sort"

	"github.com/rs/zerolog"

	"chart-patterns/internal/analysis"
	"chart-patterns/internal/analysis/pivots"
	"chart-patterns/internal/analysis/trend"
	apperrors "chart-patterns/internal/errors"
	"chart-patterns/internal/models"
)

// HeadAndShouldersConfig holds the thresholds shared by the regular and the
// inverse head-and-shoulders classifier.
type HeadAndShouldersConfig struct {
	Lookback           int     `mapstructure:"lookback"`
	PivotInterval      int     `mapstructure:"pivot_interval"`
	ShortPivotInterval int     `mapstructure:"short_pivot_interval"`
	HeadRatioBefore    float64 `mapstructure:"head_ratio_before"`
	HeadRatioAfter     float64 `mapstructure:"head_ratio_after"`
	// NecklineSlope bounds |slope| of the neckline.
	NecklineSlope float64 `mapstructure:"neckline_slope"`
}

// DefaultHeadAndShouldersConfig returns the default head-and-shoulders thresholds.
func DefaultHeadAndShouldersConfig() HeadAndShouldersConfig {
	return HeadAndShouldersConfig{
		Lookback:           60,
		PivotInterval:      10,
		ShortPivotInterval: 5,
		HeadRatioBefore:    1.0002,
		HeadRatioAfter:     1.0002,
		NecklineSlope:      1e-4,
	}
}

// DefaultInverseHeadAndShouldersConfig returns the default inverse head-and-shoulders thresholds.
func DefaultInverseHeadAndShouldersConfig() HeadAndShouldersConfig {
	return HeadAndShouldersConfig{
		Lookback:           60,
		PivotInterval:      10,
		ShortPivotInterval: 5,
		HeadRatioBefore:    0.98,
		HeadRatioAfter:     0.98,
		NecklineSlope:      1e-4,
	}
}

// HeadAndShouldersDetector finds head-and-shoulders tops, or bottoms when inverse.
type HeadAndShouldersDetector struct {
	cfg     HeadAndShouldersConfig
	inverse bool
}

// NewHeadAndShouldersDetector creates a head-and-shoulders top detector.
func NewHeadAndShouldersDetector(cfg HeadAndShouldersConfig) *HeadAndShouldersDetector {
	return &HeadAndShouldersDetector{cfg: cfg}
}

// NewInverseHeadAndShouldersDetector creates an inverse head-and-shoulders detector.
func NewInverseHeadAndShouldersDetector(cfg HeadAndShouldersConfig) *HeadAndShouldersDetector {
	return &HeadAndShouldersDetector{cfg: cfg, inverse: true}
}

func (d *HeadAndShouldersDetector) Name() string {
	if d.inverse {
		return "InverseHeadAndShouldersDetector"
	}
	return "HeadAndShouldersDetector"
}

func (d *HeadAndShouldersDetector) Family() analysis.Family {
	if d.inverse {
		return analysis.FamilyInverseHeadAndShoulders
	}
	return analysis.FamilyHeadAndShoulders
}

func (d *HeadAndShouldersDetector) Lookback() int {
	return d.cfg.Lookback
}

// Validate validates the detector configuration.
func (d *HeadAndShouldersDetector) Validate() error {
	if d.cfg.PivotInterval <= 0 {
		return apperrors.NewConfigurationError("pivot_interval", d.cfg.PivotInterval, "must be positive")
	}
	if d.cfg.ShortPivotInterval <= 0 {
		return apperrors.NewConfigurationError("short_pivot_interval", d.cfg.ShortPivotInterval, "must be positive")
	}
	if d.cfg.ShortPivotInterval >= d.cfg.PivotInterval {
		return apperrors.NewConfigurationError("short_pivot_interval", d.cfg.ShortPivotInterval,
			"must be less than pivot_interval")
	}
	if d.cfg.Lookback < 2 {
		return apperrors.NewConfigurationError("lookback", d.cfg.Lookback, "must be at least 2")
	}
	return nil
}

// Prepare labels the coarse and the short pivot channels and returns the evaluator.
func (d *HeadAndShouldersDetector) Prepare(candles []models.Candle, logger zerolog.Logger) (Evaluator, error) {
	channels := pivots.Channels{}
	coarse, err := pivots.DetectAll(candles, d.cfg.PivotInterval, d.cfg.PivotInterval, pivots.DefaultChannel)
	if err != nil {
		return nil, err
	}
	short, err := pivots.DetectAll(candles, d.cfg.ShortPivotInterval, d.cfg.ShortPivotInterval, pivots.ShortChannel)
	if err != nil {
		return nil, err
	}
	if err := channels.Add(coarse); err != nil {
		return nil, err
	}
	if err := channels.Add(short); err != nil {
		return nil, err
	}

	return func(idx int) *analysis.Detection {
		if !d.isCandidate(channels, idx) {
			return nil
		}

		set := pivots.CollectAround(candles, channels[pivots.ShortChannel], idx, d.cfg.Lookback)
		if !set.HasBothSides() {
			return nil
		}

		neck := set.Lows
		if d.inverse {
			neck = set.Highs
		}
		neckline, err := trend.Fit(pivots.XY(neck))
		if err != nil {
			logger.Debug().Err(err).Int("index", idx).Msg("Neckline fit skipped")
			return nil
		}

		var points []pivots.Point
		var ok bool
		if d.inverse {
			points, ok = MatchInverseHeadAndShoulders(set, neckline, d.cfg)
		} else {
			points, ok = MatchHeadAndShoulders(set, neckline, d.cfg)
		}
		if !ok {
			return nil
		}

		logger.Debug().Int("index", idx).Float64("neckline_slope", neckline.Slope).Msg("Neckline accepted")
		return &analysis.Detection{
			Index:        idx,
			Kind:         analysis.Kind{Family: d.Family()},
			PointIndices: pivots.Indices(points),
			PointPrices:  pivots.Prices(points),
			Lookback:     d.cfg.Lookback,
		}
	}, nil
}

// isCandidate requires the head candidate to be a pivot of the same side in both channels.
func (d *HeadAndShouldersDetector) isCandidate(channels pivots.Channels, idx int) bool {
	coarse := channels[pivots.DefaultChannel].Label(idx)
	short := channels[pivots.ShortChannel].Label(idx)
	if d.inverse {
		return coarse.IsLow() && short.IsLow()
	}
	return coarse.IsHigh() && short.IsHigh()
}

// MatchHeadAndShoulders checks the top pattern: the highest pivot high stands
// above its neighbouring highs by the configured ratios, the neckline through
// the lows is nearly flat, and the first two lows sit between the shoulders
// and the head. It returns the five pattern points sorted by index.
func MatchHeadAndShoulders(set pivots.Set, neckline trend.Line, cfg HeadAndShouldersConfig) ([]pivots.Point, bool) {
	highs, lows := set.Highs, set.Lows
	if len(lows) < 2 {
		return nil, false
	}
	h := argExtreme(highs, func(a, b float64) bool { return a > b })
	if h <= 0 || h == len(highs)-1 {
		return nil, false
	}

	head := highs[h].Price
	before := highs[h-1].Price
	after := highs[h+1].Price

	if !(head-before > 0 && head/before > cfg.HeadRatioBefore &&
		head-after > 0 && head/after > cfg.HeadRatioAfter &&
		math.Abs(neckline.Slope) <= cfg.NecklineSlope &&
		lows[0].Index > highs[h-1].Index && lows[1].Index < highs[h+1].Index) {
		return nil, false
	}

	return sortedPoints(highs[h-1], lows[0], highs[h], lows[1], highs[h+1]), true
}

// MatchInverseHeadAndShoulders is the mirror of MatchHeadAndShoulders. The head
// is the lowest pivot low; each head/shoulder ratio must be strictly below 1
// and at least the configured ratio.
func MatchInverseHeadAndShoulders(set pivots.Set, neckline trend.Line, cfg HeadAndShouldersConfig) ([]pivots.Point, bool) {
	highs, lows := set.Highs, set.Lows
	if len(highs) < 2 {
		return nil, false
	}
	h := argExtreme(lows, func(a, b float64) bool { return a < b })
	if h <= 0 || h == len(lows)-1 {
		return nil, false
	}

	head := lows[h].Price
	before := lows[h-1].Price
	after := lows[h+1].Price
	ratioBefore := head / before
	ratioAfter := head / after

	if !(before-head > 0 && ratioBefore < 1 && ratioBefore >= cfg.HeadRatioBefore &&
		ratioAfter < 1 && ratioAfter >= cfg.HeadRatioAfter &&
		after-head > 0 &&
		math.Abs(neckline.Slope) <= cfg.NecklineSlope &&
		highs[0].Index > lows[h-1].Index && highs[1].Index < lows[h+1].Index) {
		return nil, false
	}

	return sortedPoints(lows[h-1], highs[0], lows[h], highs[1], lows[h+1]), true
}

// argExtreme returns the first index whose price wins against all others under better.
func argExtreme(points []pivots.Point, better func(a, b float64) bool) int {
	if len(points) == 0 {
		return -1
	}
	best := 0
	for i := 1; i < len(points); i++ {
		if better(points[i].Price, points[best].Price) {
			best = i
		}
	}
	return best
}

func sortedPoints(points ...pivots.Point) []pivots.Point {
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Index < points[j].Index
	})
	return points
}
