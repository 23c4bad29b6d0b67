package pivots

import (
	"math"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	apperrors "chart-patterns/internal/errors"
	"chart-patterns/internal/models"
)

// series builds candles from parallel high/low slices.
func series(highs, lows []float64) []models.Candle {
	candles := make([]models.Candle, len(highs))
	for i := range highs {
		mid := (highs[i] + lows[i]) / 2
		candles[i] = models.Candle{Index: i, Open: mid, High: highs[i], Low: lows[i], Close: mid}
	}
	return candles
}

func TestDetect_HighAndLow(t *testing.T) {
	highs := []float64{1.10, 1.12, 1.15, 1.12, 1.10, 1.08, 1.09, 1.11}
	lows := []float64{1.05, 1.07, 1.10, 1.07, 1.04, 1.02, 1.04, 1.06}
	candles := series(highs, lows)

	if got := Detect(candles, 2, 2, 2); got != High {
		t.Errorf("index 2 = %v, want high", got)
	}
	if got := Detect(candles, 5, 2, 2); got != Low {
		t.Errorf("index 5 = %v, want low", got)
	}
	if got := Detect(candles, 3, 2, 2); got != None {
		t.Errorf("index 3 = %v, want none", got)
	}
}

func TestDetect_TiesDoNotDisqualify(t *testing.T) {
	highs := []float64{1.0, 1.2, 1.5, 1.5, 1.2, 1.0}
	lows := []float64{0.9, 1.0, 1.1, 1.1, 1.0, 0.9}
	candles := series(highs, lows)

	if got := Detect(candles, 2, 2, 2); got != High {
		t.Errorf("index 2 = %v, want high", got)
	}
	if got := Detect(candles, 3, 2, 2); got != High {
		t.Errorf("index 3 = %v, want high", got)
	}
}

func TestDetect_Both(t *testing.T) {
	// Outside bar: highest high and lowest low of its window.
	highs := []float64{1.1, 1.1, 1.3, 1.1, 1.1}
	lows := []float64{1.0, 1.0, 0.8, 1.0, 1.0}
	candles := series(highs, lows)

	got := Detect(candles, 2, 2, 2)
	if got != Both {
		t.Fatalf("index 2 = %v, want both", got)
	}
	if !got.IsHigh() || got.IsLow() {
		t.Errorf("both must resolve to high only")
	}
	pos, ok := Position(candles[2], got)
	if !ok || math.Abs(pos-(1.3+PositionOffset)) > 1e-12 {
		t.Errorf("both position = %v, want high+offset", pos)
	}
}

func TestDetect_WindowMustFit(t *testing.T) {
	highs := []float64{2, 1, 1, 1, 1, 1, 3}
	lows := []float64{0.5, 0.9, 0.9, 0.9, 0.9, 0.9, 0.4}
	candles := series(highs, lows)

	if got := Detect(candles, 0, 1, 1); got != None {
		t.Errorf("first candle = %v, want none", got)
	}
	if got := Detect(candles, 6, 1, 1); got != None {
		t.Errorf("last candle = %v, want none", got)
	}
	if got := Detect(candles, 2, 3, 3); got != None {
		t.Errorf("left overflow = %v, want none", got)
	}
}

func TestDetectAll_Positions(t *testing.T) {
	highs := []float64{1.10, 1.12, 1.15, 1.12, 1.10, 1.08, 1.09, 1.11}
	lows := []float64{1.05, 1.07, 1.10, 1.07, 1.04, 1.02, 1.04, 1.06}
	candles := series(highs, lows)

	ch, err := DetectAll(candles, 2, 2, ShortChannel)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ch.Name != ShortChannel || ch.Len() != len(candles) {
		t.Fatalf("unexpected channel %+v", ch)
	}

	pos, ok := ch.Position(2)
	if !ok || math.Abs(pos-1.151) > 1e-12 {
		t.Errorf("high position = %v, want 1.151", pos)
	}
	pos, ok = ch.Position(5)
	if !ok || math.Abs(pos-1.019) > 1e-12 {
		t.Errorf("low position = %v, want 1.019", pos)
	}
	if _, ok := ch.Position(3); ok {
		t.Error("non-pivot should have no position")
	}
	if ch.Label(-1) != None || ch.Label(100) != None {
		t.Error("out of range labels should be none")
	}
}

func TestDetectAll_InvalidWindow(t *testing.T) {
	candles := series([]float64{1, 2, 1}, []float64{0.5, 1, 0.5})
	for _, w := range [][2]int{{0, 3}, {3, 0}, {-1, 2}} {
		if _, err := DetectAll(candles, w[0], w[1], ""); !apperrors.Is(err, apperrors.ErrConfigInvalid) {
			t.Errorf("window %v: expected configuration error, got %v", w, err)
		}
	}
}

func TestChannels_Add(t *testing.T) {
	candles := series([]float64{1, 2, 1}, []float64{0.5, 1, 0.5})
	coarse, _ := DetectAll(candles, 1, 1, DefaultChannel)
	again, _ := DetectAll(candles, 1, 1, DefaultChannel)

	cs := Channels{}
	if err := cs.Add(coarse); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := cs.Add(again); !apperrors.Is(err, apperrors.ErrConfigInvalid) {
		t.Errorf("duplicate channel should fail, got %v", err)
	}
}

func randomSeries() gopter.Gen {
	return gen.SliceOfN(40, gen.Float64Range(1.0, 1.5)).Map(func(mids []float64) []models.Candle {
		candles := make([]models.Candle, len(mids))
		for i, m := range mids {
			spread := 0.005 + float64(i%5)*0.002
			candles[i] = models.Candle{Index: i, Open: m, High: m + spread, Low: m - spread, Close: m}
		}
		return candles
	})
}

// Property: candles within left of the start or right of the end are never pivots.
func TestProperty_EdgesAreNone(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("edge candles are none", prop.ForAll(
		func(candles []models.Candle, left, right int) bool {
			n := len(candles)
			for i := 0; i < n; i++ {
				if i-left >= 0 && i+right < n {
					continue
				}
				if Detect(candles, i, left, right) != None {
					return false
				}
			}
			return true
		},
		randomSeries(),
		gen.IntRange(1, 8),
		gen.IntRange(1, 8),
	))

	properties.TestingRun(t)
}

// Property: labeling is a pure function of the series and window.
func TestProperty_LabelingIdempotent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("two passes agree", prop.ForAll(
		func(candles []models.Candle, window int) bool {
			first, err := DetectAll(candles, window, window, DefaultChannel)
			if err != nil {
				return false
			}
			second, err := DetectAll(candles, window, window, DefaultChannel)
			if err != nil {
				return false
			}
			for i := range candles {
				if Detect(candles, i, window, window) != first.Label(i) {
					return false
				}
			}
			return reflect.DeepEqual(first.Labels(), second.Labels())
		},
		randomSeries(),
		gen.IntRange(1, 6),
	))

	properties.TestingRun(t)
}

func TestCollect_TrailingWindow(t *testing.T) {
	highs := []float64{1.10, 1.12, 1.15, 1.12, 1.10, 1.08, 1.09, 1.11, 1.13, 1.12, 1.10}
	lows := []float64{1.05, 1.07, 1.10, 1.07, 1.04, 1.02, 1.04, 1.06, 1.08, 1.07, 1.05}
	candles := series(highs, lows)
	ch, _ := DetectAll(candles, 2, 2, DefaultChannel)

	set := Collect(candles, ch, 10, 10)
	if got := Indices(set.Lows); !reflect.DeepEqual(got, []int{5}) {
		t.Errorf("lows = %v, want [5]", got)
	}
	if got := Indices(set.Highs); !reflect.DeepEqual(got, []int{2, 8}) {
		t.Errorf("highs = %v, want [2 8]", got)
	}
	if got := Prices(set.Highs); !reflect.DeepEqual(got, []float64{1.15, 1.13}) {
		t.Errorf("high prices = %v", got)
	}

	narrow := Collect(candles, ch, 10, 3)
	if len(narrow.Lows) != 0 || len(narrow.Highs) != 1 {
		t.Errorf("narrow window = %+v", narrow)
	}
}

func TestCollectAround_SplitsAtMidpoint(t *testing.T) {
	// Pivots (window 1): highs at 2, 6, 10; lows at 4, 8.
	highs := []float64{1.0, 1.1, 1.3, 1.1, 1.0, 1.1, 1.4, 1.1, 1.0, 1.1, 1.2, 1.1, 1.05, 1.05}
	lows := []float64{0.95, 1.0, 1.2, 1.0, 0.9, 1.0, 1.3, 1.0, 0.92, 1.0, 1.1, 1.05, 1.0, 1.0}
	candles := series(highs, lows)
	ch, _ := DetectAll(candles, 1, 1, ShortChannel)

	set := CollectAround(candles, ch, 12, 12)
	if set.Mid != 6 {
		t.Fatalf("mid = %d, want 6", set.Mid)
	}
	if got := Indices(set.Highs); !reflect.DeepEqual(got, []int{2, 6, 10}) {
		t.Errorf("highs = %v", got)
	}
	if got := Indices(set.Lows); !reflect.DeepEqual(got, []int{4, 8}) {
		t.Errorf("lows = %v", got)
	}
	if set.HighsBefore != 1 || set.HighsAfter != 1 || set.LowsBefore != 1 || set.LowsAfter != 1 {
		t.Errorf("side counts = %+v", set)
	}
	if !set.HasBothSides() {
		t.Error("expected pivots on both sides")
	}
}

func TestNonDecreasing(t *testing.T) {
	up := []Point{{1, 1.0}, {3, 1.0}, {5, 1.2}}
	down := []Point{{1, 1.0}, {3, 0.9}}
	if !NonDecreasing(up) {
		t.Error("flat then rising should pass")
	}
	if NonDecreasing(down) {
		t.Error("falling should fail")
	}
	if !NonDecreasing(nil) {
		t.Error("empty should pass")
	}
}
