package patterns

import (
	"context"
	"reflect"
	"testing"

	"github.com/rs/zerolog"

	"chart-patterns/internal/analysis"
	"chart-patterns/internal/models"
)

// turn is a (candle index, mid price) knot of a piecewise linear series.
type turn struct {
	at    int
	price float64
}

// zigzag interpolates mid prices linearly between turns and builds candles
// with High = mid + spread and Low = mid - spread.
func zigzag(n int, spread float64, turns ...turn) []models.Candle {
	candles := make([]models.Candle, n)
	for i := 0; i < n; i++ {
		mid := turns[0].price
		switch {
		case i <= turns[0].at:
		case i >= turns[len(turns)-1].at:
			mid = turns[len(turns)-1].price
		default:
			for k := 1; k < len(turns); k++ {
				a, b := turns[k-1], turns[k]
				if i >= a.at && i <= b.at {
					mid = a.price + (b.price-a.price)*float64(i-a.at)/float64(b.at-a.at)
					break
				}
			}
		}
		candles[i] = models.Candle{Index: i, Open: mid, High: mid + spread, Low: mid - spread, Close: mid, Volume: 1}
	}
	return candles
}

// mirror reflects a series around c/2, turning tops into bottoms.
func mirror(candles []models.Candle, c float64) []models.Candle {
	out := models.Negate(candles)
	for i := range out {
		out[i].Open += c
		out[i].High += c
		out[i].Low += c
		out[i].Close += c
	}
	return out
}

// channelSeries alternates troughs on low(i) and peaks on high(i) every step candles.
func channelSeries(n, step int, low, high func(i int) float64) []models.Candle {
	var turns []turn
	trough := true
	for i := 0; i < n; i += step {
		if trough {
			turns = append(turns, turn{i, low(i)})
		} else {
			turns = append(turns, turn{i, high(i)})
		}
		trough = !trough
	}
	return zigzag(n, 0.0005, turns...)
}

func scan(t *testing.T, candles []models.Candle, det Detector) *analysis.Result {
	t.Helper()
	s := NewScanner(DefaultScanConfig(), zerolog.Nop())
	result, err := s.Scan(context.Background(), candles, det)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	return result
}

func rangeInts(from, to int) []int {
	var out []int
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out
}

func assertIndices(t *testing.T, result *analysis.Result, want []int) {
	t.Helper()
	if got := result.Indices(); !reflect.DeepEqual(got, want) {
		t.Errorf("detection indices = %v, want %v", got, want)
	}
}
