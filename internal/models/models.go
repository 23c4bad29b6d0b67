// Package models provides domain models for the chart pattern scanner.
package models

import (
	"math"
	"time"
)

// Candle represents OHLCV data for a time period.
// Index is the candle's position in its series; all window arithmetic uses it.
type Candle struct {
	Index     int
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Price fields a candle must carry.
const (
	FieldOpen  = "open"
	FieldHigh  = "high"
	FieldLow   = "low"
	FieldClose = "close"
)

// RequiredFields lists the price fields in canonical order.
var RequiredFields = []string{FieldOpen, FieldHigh, FieldLow, FieldClose}

// MissingField returns the first price field that is absent (NaN or infinite).
func (c Candle) MissingField() (string, bool) {
	values := [...]float64{c.Open, c.High, c.Low, c.Close}
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return RequiredFields[i], true
		}
	}
	return "", false
}

// Reindex returns a copy of candles with Index rewritten to 0..n-1.
func Reindex(candles []Candle) []Candle {
	out := make([]Candle, len(candles))
	for i, c := range candles {
		c.Index = i
		out[i] = c
	}
	return out
}

// Negate returns a copy of candles mirrored around zero: highs become lows and
// lows become highs. Used to check that bullish and bearish rules are mirror images.
func Negate(candles []Candle) []Candle {
	out := make([]Candle, len(candles))
	for i, c := range candles {
		out[i] = Candle{
			Index:     c.Index,
			Timestamp: c.Timestamp,
			Open:      -c.Open,
			High:      -c.Low,
			Low:       -c.High,
			Close:     -c.Close,
			Volume:    c.Volume,
		}
	}
	return out
}
