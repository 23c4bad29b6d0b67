package pivots

import (
	"chart-patterns/internal/models"
)

// Point is a pivot's candle index and price.
type Point struct {
	Index int     `json:"index"`
	Price float64 `json:"price"`
}

// Set holds the pivot lows and highs found in one window, each in index order.
// The Before/After counters are only filled by CollectAround.
type Set struct {
	Lows        []Point
	Highs       []Point
	Mid         int
	LowsBefore  int
	LowsAfter   int
	HighsBefore int
	HighsAfter  int
}

// Collect gathers the pivots of ch in the trailing window [index-lookback, index].
// Lows carry the candle low, highs the candle high.
func Collect(candles []models.Candle, ch *Channel, index, lookback int) Set {
	from := index - lookback
	if from < 0 {
		from = 0
	}
	to := index
	if to > len(candles)-1 {
		to = len(candles) - 1
	}

	set := Set{Mid: index}
	for i := from; i <= to; i++ {
		set.add(candles[i], ch.Label(i), i)
	}
	return set
}

// CollectAround splits a window of lookback candles ending just before index at
// its midpoint index-lookback/2 and counts pivots of ch strictly on either side.
// The window is [mid-lookback/2, mid+lookback/2).
func CollectAround(candles []models.Candle, ch *Channel, index, lookback int) Set {
	half := lookback / 2
	mid := index - half

	set := Set{Mid: mid}
	for i := mid - half; i < mid+half; i++ {
		if i < 0 || i >= len(candles) {
			continue
		}
		label := ch.Label(i)
		set.add(candles[i], label, i)
		switch {
		case label.IsLow() && i < mid:
			set.LowsBefore++
		case label.IsLow() && i > mid:
			set.LowsAfter++
		case label.IsHigh() && i < mid:
			set.HighsBefore++
		case label.IsHigh() && i > mid:
			set.HighsAfter++
		}
	}
	return set
}

func (s *Set) add(c models.Candle, label Label, i int) {
	switch {
	case label.IsLow():
		s.Lows = append(s.Lows, Point{Index: i, Price: c.Low})
	case label.IsHigh():
		s.Highs = append(s.Highs, Point{Index: i, Price: c.High})
	}
}

// HasBothSides reports whether at least one low and one high lie strictly on each side of Mid.
func (s Set) HasBothSides() bool {
	return s.LowsBefore >= 1 && s.LowsAfter >= 1 && s.HighsBefore >= 1 && s.HighsAfter >= 1
}

// XY splits points into parallel index and price slices for fitting.
func XY(points []Point) ([]float64, []float64) {
	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i] = float64(p.Index)
		ys[i] = p.Price
	}
	return xs, ys
}

// Indices returns the candle indices of points.
func Indices(points []Point) []int {
	out := make([]int, len(points))
	for i, p := range points {
		out[i] = p.Index
	}
	return out
}

// Prices returns the prices of points.
func Prices(points []Point) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Price
	}
	return out
}

// NonDecreasing reports whether prices never fall between adjacent points.
func NonDecreasing(points []Point) bool {
	for i := 1; i < len(points); i++ {
		if points[i].Price-points[i-1].Price < 0 {
			return false
		}
	}
	return true
}
