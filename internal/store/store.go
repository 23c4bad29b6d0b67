// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"encoding/json"
	"time"

	"chart-patterns/internal/analysis"
	"chart-patterns/internal/models"
)

// DataStore defines the interface for data persistence.
type DataStore interface {
	// Candles
	SaveCandles(ctx context.Context, series string, candles []models.Candle) error
	GetCandles(ctx context.Context, series string) ([]models.Candle, error)
	ListSeries(ctx context.Context) ([]SeriesInfo, error)

	// Scan runs
	SaveRun(ctx context.Context, run *Run, detections []analysis.Detection) error
	GetRun(ctx context.Context, id string) (*Run, error)
	GetRuns(ctx context.Context, filter RunFilter) ([]Run, error)
	GetDetections(ctx context.Context, runID string) ([]analysis.Detection, error)

	// Lifecycle
	Close() error
}

// SeriesInfo summarises one stored candle series.
type SeriesInfo struct {
	Name    string    `json:"name"`
	Candles int       `json:"candles"`
	First   time.Time `json:"first"`
	Last    time.Time `json:"last"`
}

// Run is one classifier pass over a stored or loaded series.
type Run struct {
	ID      string          `json:"id"`
	Series  string          `json:"series"`
	Family  analysis.Family `json:"family"`
	Variant string          `json:"variant,omitempty"` // doubles mode or triangle type
	// Params is the detector configuration as JSON.
	Params     json.RawMessage `json:"params,omitempty"`
	Candles    int             `json:"candles"`
	Detections int             `json:"detections"`
	StartedAt  time.Time       `json:"started_at"`
	Duration   time.Duration   `json:"duration_ns"`
}

// RunFilter represents filters for querying scan runs.
type RunFilter struct {
	Series string
	Family analysis.Family
	Since  time.Time
	Limit  int
}
