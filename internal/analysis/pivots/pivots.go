// Package pivots labels local extremum candles and collects them over trailing windows.
package pivots

import (
	"math"

	apperrors "chart-patterns/internal/errors"
	"chart-patterns/internal/models"
)

// Label classifies a candle against its surrounding window.
type Label int

const (
	None Label = iota
	Low
	High
	Both
)

func (l Label) String() string {
	switch l {
	case Low:
		return "low"
	case High:
		return "high"
	case Both:
		return "both"
	default:
		return "none"
	}
}

// IsHigh reports whether downstream consumers treat the label as a pivot high.
// Both resolves to High everywhere.
func (l Label) IsHigh() bool {
	return l == High || l == Both
}

// IsLow reports whether downstream consumers treat the label as a pivot low.
// A Both candle is never a low.
func (l Label) IsLow() bool {
	return l == Low
}

// IsPivot reports whether the label is anything other than None.
func (l Label) IsPivot() bool {
	return l != None
}

// Channel names used by the classifiers.
const (
	DefaultChannel = "pivot"
	ShortChannel   = "short_pivot"
)

// PositionOffset keeps marker positions off the candle's own high/low.
const PositionOffset = 1e-3

// Detect labels the candle at index against the inclusive window
// [index-left, index+right]. Ties with other candles in the window do not
// disqualify the pivot. Candles whose window does not fit in the series are None.
func Detect(candles []models.Candle, index, left, right int) Label {
	if index-left < 0 || index+right >= len(candles) {
		return None
	}

	isLow, isHigh := true, true
	current := candles[index]
	for j := index - left; j <= index+right; j++ {
		if current.Low > candles[j].Low {
			isLow = false
		}
		if current.High < candles[j].High {
			isHigh = false
		}
		if !isLow && !isHigh {
			return None
		}
	}

	switch {
	case isLow && isHigh:
		return Both
	case isLow:
		return Low
	default:
		return High
	}
}

// Position returns the marker value for a labeled candle: low-offset for a low,
// high+offset for a high (Both included). ok is false for None.
func Position(c models.Candle, label Label) (float64, bool) {
	switch {
	case label.IsLow():
		return c.Low - PositionOffset, true
	case label.IsHigh():
		return c.High + PositionOffset, true
	default:
		return math.NaN(), false
	}
}

// Channel is one named, independently parameterised pivot labeling of a series.
// It is immutable once built and safe for concurrent reads.
type Channel struct {
	Name      string
	Left      int
	Right     int
	labels    []Label
	positions []float64
}

// DetectAll labels every candle in the series under the given channel name.
func DetectAll(candles []models.Candle, left, right int, name string) (*Channel, error) {
	if left <= 0 {
		return nil, apperrors.NewConfigurationError("left_count", left, "must be positive")
	}
	if right <= 0 {
		return nil, apperrors.NewConfigurationError("right_count", right, "must be positive")
	}
	if name == "" {
		name = DefaultChannel
	}

	ch := &Channel{
		Name:      name,
		Left:      left,
		Right:     right,
		labels:    make([]Label, len(candles)),
		positions: make([]float64, len(candles)),
	}
	for i := range candles {
		label := Detect(candles, i, left, right)
		ch.labels[i] = label
		ch.positions[i], _ = Position(candles[i], label)
	}
	return ch, nil
}

// Len returns the number of labeled candles.
func (c *Channel) Len() int {
	return len(c.labels)
}

// Label returns the label at index, None when out of range.
func (c *Channel) Label(index int) Label {
	if index < 0 || index >= len(c.labels) {
		return None
	}
	return c.labels[index]
}

// Position returns the marker value at index; ok is false when the candle is not a pivot.
func (c *Channel) Position(index int) (float64, bool) {
	if !c.Label(index).IsPivot() {
		return math.NaN(), false
	}
	return c.positions[index], true
}

// Labels returns a copy of all labels.
func (c *Channel) Labels() []Label {
	out := make([]Label, len(c.labels))
	copy(out, c.labels)
	return out
}

// Channels holds several labelings of the same series keyed by name.
type Channels map[string]*Channel

// Add registers ch, rejecting a duplicate name.
func (cs Channels) Add(ch *Channel) error {
	if _, exists := cs[ch.Name]; exists {
		return apperrors.NewConfigurationError("channel", ch.Name, "already registered")
	}
	cs[ch.Name] = ch
	return nil
}
