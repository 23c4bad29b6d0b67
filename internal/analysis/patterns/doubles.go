package patterns

import (
	"github.com/rs/zerolog"

	"chart-patterns/internal/analysis"
	"chart-patterns/internal/analysis/pivots"
	apperrors "chart-patterns/internal/errors"
	"chart-patterns/internal/models"
)

// DoubleMode selects which double patterns to look for.
type DoubleMode string

const (
	DoubleTops    DoubleMode = "tops"
	DoubleBottoms DoubleMode = "bottoms"
	DoubleBoth    DoubleMode = "both"
)

// doublePivots is the number of pivots a double pattern window must hold.
const doublePivots = 5

// DoublesConfig holds the double top/bottom thresholds.
type DoublesConfig struct {
	Lookback        int        `mapstructure:"lookback"`
	Mode            DoubleMode `mapstructure:"mode"`
	TopsMaxRatio    float64    `mapstructure:"tops_max_ratio"`
	BottomsMinRatio float64    `mapstructure:"bottoms_min_ratio"`
	PivotWindow     int        `mapstructure:"pivot_window"`
}

// DefaultDoublesConfig returns the default double pattern thresholds.
func DefaultDoublesConfig() DoublesConfig {
	return DoublesConfig{
		Lookback:        25,
		Mode:            DoubleTops,
		TopsMaxRatio:    1.01,
		BottomsMinRatio: 0.98,
		PivotWindow:     3,
	}
}

// DoublesDetector finds double tops (M shape) and double bottoms (W shape).
type DoublesDetector struct {
	cfg DoublesConfig
}

// NewDoublesDetector creates a new double pattern detector.
func NewDoublesDetector(cfg DoublesConfig) *DoublesDetector {
	return &DoublesDetector{cfg: cfg}
}

func (d *DoublesDetector) Name() string {
	return "DoublesDetector"
}

func (d *DoublesDetector) Family() analysis.Family {
	return analysis.FamilyDouble
}

func (d *DoublesDetector) Lookback() int {
	return d.cfg.Lookback
}

// Validate validates the detector configuration.
func (d *DoublesDetector) Validate() error {
	if d.cfg.Lookback <= 0 {
		return apperrors.NewConfigurationError("lookback", d.cfg.Lookback, "must be positive")
	}
	if d.cfg.PivotWindow <= 0 {
		return apperrors.NewConfigurationError("pivot_window", d.cfg.PivotWindow, "must be positive")
	}
	switch d.cfg.Mode {
	case DoubleTops, DoubleBottoms, DoubleBoth:
	default:
		return apperrors.NewConfigurationError("mode", d.cfg.Mode, "must be tops, bottoms or both")
	}
	return nil
}

// Prepare labels pivots and returns the per-index evaluator.
func (d *DoublesDetector) Prepare(candles []models.Candle, _ zerolog.Logger) (Evaluator, error) {
	ch, err := pivots.DetectAll(candles, d.cfg.PivotWindow, d.cfg.PivotWindow, pivots.DefaultChannel)
	if err != nil {
		return nil, err
	}

	return func(idx int) *analysis.Detection {
		var indices []int
		var values []float64
		for i := idx - d.cfg.Lookback; i <= idx; i++ {
			if pos, ok := ch.Position(i); ok {
				indices = append(indices, i)
				values = append(values, pos)
			}
		}
		if len(indices) != doublePivots {
			return nil
		}

		var p [doublePivots]float64
		copy(p[:], values)

		kind, ok := d.classify(p)
		if !ok {
			return nil
		}
		return &analysis.Detection{
			Index:        idx,
			Kind:         kind,
			PointIndices: indices,
			PointPrices:  values,
			Lookback:     d.cfg.Lookback,
		}
	}, nil
}

func (d *DoublesDetector) classify(p [doublePivots]float64) (analysis.Kind, bool) {
	if d.cfg.Mode == DoubleTops || d.cfg.Mode == DoubleBoth {
		if MatchDoubleTops(p, d.cfg.TopsMaxRatio) {
			return analysis.KindDoubleTops, true
		}
	}
	if d.cfg.Mode == DoubleBottoms || d.cfg.Mode == DoubleBoth {
		if MatchDoubleBottoms(p, d.cfg.BottomsMinRatio) {
			return analysis.KindDoubleBottoms, true
		}
	}
	return analysis.Kind{}, false
}

// MatchDoubleTops reports whether five pivot positions form an M: peaks p1 and
// p3 above the troughs p0, p2 and p4, the first peak higher but within maxRatio.
func MatchDoubleTops(p [5]float64, maxRatio float64) bool {
	return p[0] < p[1] && p[0] < p[3] &&
		p[2] < p[1] && p[2] < p[3] &&
		p[4] < p[1] && p[4] < p[3] &&
		p[1] > p[3] && p[1]/p[3] <= maxRatio
}

// MatchDoubleBottoms reports whether five pivot positions form a W: troughs p1
// and p3 below p0, p2 and p4, the first trough lower but within minRatio.
func MatchDoubleBottoms(p [5]float64, minRatio float64) bool {
	return p[0] > p[1] && p[0] > p[3] &&
		p[2] > p[1] && p[2] > p[3] &&
		p[4] > p[1] && p[4] > p[3] &&
		p[1] < p[3] && p[1]/p[3] >= minRatio
}
