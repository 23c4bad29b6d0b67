// Package data loads OHLC candle series from CSV files.
package data

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	apperrors "chart-patterns/internal/errors"
	"chart-patterns/internal/models"
)

// Canonical column names after header normalisation.
const (
	ColumnTimestamp = "timestamp"
	ColumnVolume    = "volume"
)

// timestampHints are matched against lower-cased headers for the optional time column.
var timestampHints = []string{"time", "date"}

// timeLayouts are tried in order when parsing the timestamp column.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"02.01.2006 15:04:05.000",
	"2006.01.02 15:04",
	"2006-01-02",
}

// row is one CSV record. Prices stay strings so a blank cell can be reported
// as a missing field instead of silently becoming zero.
type row struct {
	Timestamp string `csv:"timestamp"`
	Open      string `csv:"open"`
	High      string `csv:"high"`
	Low       string `csv:"low"`
	Close     string `csv:"close"`
	Volume    string `csv:"volume"`
}

// NormalizeHeader renames, for each required price field, the first column
// whose lower-cased name contains that field (so "Open Price" or "BidClose"
// resolve). Volume and timestamp columns are renamed the same way when present.
// A missing price field yields a SchemaError.
func NormalizeHeader(header []string) ([]string, error) {
	out := make([]string, len(header))
	copy(out, header)
	taken := make([]bool, len(header))

	rename := func(name string, hints ...string) bool {
		for i, h := range header {
			if taken[i] {
				continue
			}
			lower := strings.ToLower(strings.TrimSpace(h))
			for _, hint := range hints {
				if strings.Contains(lower, hint) {
					out[i] = name
					taken[i] = true
					return true
				}
			}
		}
		return false
	}

	for _, field := range models.RequiredFields {
		if !rename(field, field) {
			return nil, apperrors.NewSchemaError(field, -1, "no column contains this name")
		}
	}
	rename(ColumnVolume, ColumnVolume)
	rename(ColumnTimestamp, timestampHints...)
	return out, nil
}

// headerReader normalises the first record before gocsv maps it onto row.
type headerReader struct {
	r    *csv.Reader
	done bool
}

func (h *headerReader) Read() ([]string, error) {
	rec, err := h.r.Read()
	if err != nil || h.done {
		return rec, err
	}
	h.done = true
	return NormalizeHeader(rec)
}

func (h *headerReader) ReadAll() ([][]string, error) {
	var out [][]string
	for {
		rec, err := h.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
}

// Read parses a CSV stream into candles indexed from 0.
func Read(r io.Reader) ([]models.Candle, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	var rows []*row
	if err := gocsv.UnmarshalCSV(&headerReader{r: reader}, &rows); err != nil {
		var se *apperrors.SchemaError
		if apperrors.As(err, &se) {
			return nil, se
		}
		return nil, apperrors.NewDataError("csv", "reader", "failed to parse CSV", err)
	}

	candles := make([]models.Candle, len(rows))
	for i, rec := range rows {
		c, err := rec.candle(i)
		if err != nil {
			return nil, err
		}
		candles[i] = c
	}
	return candles, nil
}

// Load reads a CSV file from disk.
func Load(path string) ([]models.Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.NewDataError("csv", path, "failed to open file", err)
	}
	defer f.Close()

	candles, err := Read(f)
	if err != nil {
		return nil, apperrors.Wrapf(err, "load %s", path)
	}
	return candles, nil
}

func (r *row) candle(i int) (models.Candle, error) {
	c := models.Candle{Index: i, Timestamp: parseTime(r.Timestamp)}

	fields := []struct {
		name string
		raw  string
		dst  *float64
	}{
		{models.FieldOpen, r.Open, &c.Open},
		{models.FieldHigh, r.High, &c.High},
		{models.FieldLow, r.Low, &c.Low},
		{models.FieldClose, r.Close, &c.Close},
	}
	for _, f := range fields {
		v, err := parsePrice(f.raw)
		if err != nil {
			return models.Candle{}, apperrors.NewSchemaError(f.name, i, err.Error())
		}
		*f.dst = v
	}

	if r.Volume != "" {
		if v, err := strconv.ParseFloat(strings.TrimSpace(r.Volume), 64); err == nil {
			c.Volume = v
		}
	}
	return c, nil
}

func parsePrice(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, apperrors.New("value is empty")
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, apperrors.New("value is not finite")
	}
	return v, nil
}

func parseTime(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	if sec, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(sec, 0).UTC()
	}
	return time.Time{}
}

// Slice returns candles[from:to] re-indexed from 0, clamping the bounds to the series.
func Slice(candles []models.Candle, from, to int) []models.Candle {
	if from < 0 {
		from = 0
	}
	if to > len(candles) {
		to = len(candles)
	}
	if from >= to {
		return nil
	}
	return models.Reindex(candles[from:to])
}
