// Package patterns provides chart pattern classifiers and the scanner that
// runs them over a candle series.
package patterns

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"chart-patterns/internal/analysis"
	apperrors "chart-patterns/internal/errors"
	"chart-patterns/internal/logging"
	"chart-patterns/internal/models"
)

// Evaluator classifies a single candle index. It returns nil when no pattern
// completes there. Evaluators only read precomputed pivots and are safe for
// concurrent use.
type Evaluator func(index int) *analysis.Detection

// Detector is one configured pattern classifier.
type Detector interface {
	Name() string
	Family() analysis.Family
	// Lookback is the first candle index the detector evaluates.
	Lookback() int
	// Validate rejects invalid parameter combinations before any scanning.
	Validate() error
	// Prepare computes the pivot channels for candles and returns the per-index evaluator.
	Prepare(candles []models.Candle, logger zerolog.Logger) (Evaluator, error)
}

// ScanConfig controls how a scan is executed.
type ScanConfig struct {
	Workers int
}

// DefaultScanConfig returns a single-worker scan.
func DefaultScanConfig() ScanConfig {
	return ScanConfig{Workers: 1}
}

// Scanner runs detectors over candle series.
type Scanner struct {
	cfg    ScanConfig
	logger zerolog.Logger
}

// NewScanner creates a new scanner.
func NewScanner(cfg ScanConfig, logger zerolog.Logger) *Scanner {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Scanner{cfg: cfg, logger: logger}
}

// ValidateSeries fails with a SchemaError if any candle lacks a price field.
func ValidateSeries(candles []models.Candle) error {
	for i, c := range candles {
		if field, missing := c.MissingField(); missing {
			return apperrors.NewSchemaError(field, i, "value is missing or not finite")
		}
	}
	return nil
}

// Scan runs det over every candle index from det.Lookback() to the end of the
// series. Pivots are computed once up front; the index range is then sharded
// across the configured workers, each writing only its own slots.
// The caller's candles are never modified.
func (s *Scanner) Scan(ctx context.Context, candles []models.Candle, det Detector) (*analysis.Result, error) {
	if err := ValidateSeries(candles); err != nil {
		return nil, err
	}
	if err := det.Validate(); err != nil {
		return nil, apperrors.Wrapf(err, "%s", det.Name())
	}

	logger := logging.WithFamily(s.logger, string(det.Family())).With().Str("detector", det.Name()).Logger()
	start := time.Now()

	eval, err := det.Prepare(candles, logger)
	if err != nil {
		return nil, apperrors.Wrapf(err, "%s", det.Name())
	}

	result := analysis.NewResult(det.Family(), len(candles))
	first := det.Lookback()
	if first >= len(candles) {
		logger.Debug().
			Int("candles", len(candles)).
			Int("lookback", first).
			Msg("Series shorter than lookback, nothing to scan")
		return result, nil
	}

	workers := s.cfg.Workers
	total := len(candles) - first
	if workers > total {
		workers = total
	}
	chunk := (total + workers - 1) / workers

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		from := first + w*chunk
		to := from + chunk
		if to > len(candles) {
			to = len(candles)
		}
		g.Go(func() error {
			for idx := from; idx < to; idx++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				if d := eval(idx); d != nil {
					logging.LogDetection(logger, d.Kind.String(), d.Index, d.PointIndices)
					result.Set(d)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, apperrors.Wrapf(err, "%s scan interrupted", det.Name())
	}

	logging.LogScan(logger, len(candles), workers, result.Count(), time.Since(start))

	return result, nil
}

// ScanAll runs several detectors over the same series and merges their
// detections by candle index.
func (s *Scanner) ScanAll(ctx context.Context, candles []models.Candle, dets ...Detector) (map[int][]analysis.Detection, []*analysis.Result, error) {
	results := make([]*analysis.Result, 0, len(dets))
	for _, det := range dets {
		r, err := s.Scan(ctx, candles, det)
		if err != nil {
			return nil, nil, err
		}
		results = append(results, r)
	}
	return analysis.Merge(results...), results, nil
}
