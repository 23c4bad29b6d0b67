// Package analysis provides the shared vocabulary for chart pattern detection:
// pattern kinds, detection records and per-series results.
package analysis

import (
	"sort"
	"strings"

	"chart-patterns/internal/analysis/pivots"
	"chart-patterns/internal/analysis/trend"
)

// Family is a chart pattern family.
type Family string

const (
	FamilyDouble                  Family = "double"
	FamilyHeadAndShoulders        Family = "head_and_shoulders"
	FamilyInverseHeadAndShoulders Family = "inverse_head_and_shoulders"
	FamilyFlag                    Family = "flag"
	FamilyPennant                 Family = "pennant"
	FamilyTriangle                Family = "triangle"
)

// Families lists every family in scan order.
var Families = []Family{
	FamilyDouble, FamilyHeadAndShoulders, FamilyInverseHeadAndShoulders,
	FamilyFlag, FamilyPennant, FamilyTriangle,
}

// ParseFamily resolves a family name, accepting dashes for underscores.
func ParseFamily(name string) (Family, bool) {
	f := Family(strings.ReplaceAll(strings.ToLower(name), "-", "_"))
	for _, v := range Families {
		if v == f {
			return f, true
		}
	}
	return "", false
}

// SubType is the variant within a family. Families without variants use SubTypeNone.
type SubType string

const (
	SubTypeNone        SubType = ""
	SubTypeTops        SubType = "tops"
	SubTypeBottoms     SubType = "bottoms"
	SubTypeAscending   SubType = "ascending"
	SubTypeDescending  SubType = "descending"
	SubTypeSymmetrical SubType = "symmetrical"
)

// Kind is a (family, sub-type) pair. Only the values below are valid.
type Kind struct {
	Family  Family  `json:"family"`
	SubType SubType `json:"sub_type,omitempty"`
}

var (
	KindDoubleTops              = Kind{FamilyDouble, SubTypeTops}
	KindDoubleBottoms           = Kind{FamilyDouble, SubTypeBottoms}
	KindHeadAndShoulders        = Kind{FamilyHeadAndShoulders, SubTypeNone}
	KindInverseHeadAndShoulders = Kind{FamilyInverseHeadAndShoulders, SubTypeNone}
	KindFlag                    = Kind{FamilyFlag, SubTypeNone}
	KindPennant                 = Kind{FamilyPennant, SubTypeNone}
	KindTriangleAscending       = Kind{FamilyTriangle, SubTypeAscending}
	KindTriangleDescending      = Kind{FamilyTriangle, SubTypeDescending}
	KindTriangleSymmetrical     = Kind{FamilyTriangle, SubTypeSymmetrical}
)

// Kinds lists every valid kind.
var Kinds = []Kind{
	KindDoubleTops, KindDoubleBottoms,
	KindHeadAndShoulders, KindInverseHeadAndShoulders,
	KindFlag, KindPennant,
	KindTriangleAscending, KindTriangleDescending, KindTriangleSymmetrical,
}

// Valid reports whether k is one of Kinds.
func (k Kind) Valid() bool {
	for _, v := range Kinds {
		if v == k {
			return true
		}
	}
	return false
}

func (k Kind) String() string {
	if k.SubType == SubTypeNone {
		return string(k.Family)
	}
	return string(k.Family) + "/" + string(k.SubType)
}

// HasTrendLines reports whether detections of this family carry fitted lines.
func (f Family) HasTrendLines() bool {
	return f == FamilyFlag || f == FamilyPennant || f == FamilyTriangle
}

// Detection is a pattern confirmed at candle Index.
type Detection struct {
	Index        int       `json:"index"`
	Kind         Kind      `json:"kind"`
	PointIndices []int     `json:"point_indices"`
	PointPrices  []float64 `json:"point_prices"`

	// Set only for trend-line families.
	LowLine    *trend.Line    `json:"low_line,omitempty"`
	HighLine   *trend.Line    `json:"high_line,omitempty"`
	LowPivots  []pivots.Point `json:"low_pivots,omitempty"`
	HighPivots []pivots.Point `json:"high_pivots,omitempty"`

	// Lookback is the window length the detection was evaluated over.
	Lookback int `json:"lookback"`
}

// Result holds at most one detection per candle for one classifier run.
// Each slot is written by exactly one scanning worker.
type Result struct {
	Family Family
	slots  []*Detection
}

// NewResult allocates an empty result for a series of n candles.
func NewResult(family Family, n int) *Result {
	return &Result{Family: family, slots: make([]*Detection, n)}
}

// Len is the number of candles the result covers.
func (r *Result) Len() int {
	return len(r.slots)
}

// Set stores d at its index. Out-of-range detections are dropped.
func (r *Result) Set(d *Detection) {
	if d == nil || d.Index < 0 || d.Index >= len(r.slots) {
		return
	}
	r.slots[d.Index] = d
}

// At returns the detection at candle index, if any.
func (r *Result) At(index int) (Detection, bool) {
	if index < 0 || index >= len(r.slots) || r.slots[index] == nil {
		return Detection{}, false
	}
	return *r.slots[index], true
}

// Detections returns all detections in index order.
func (r *Result) Detections() []Detection {
	var out []Detection
	for _, d := range r.slots {
		if d != nil {
			out = append(out, *d)
		}
	}
	return out
}

// Count returns the number of detections.
func (r *Result) Count() int {
	n := 0
	for _, d := range r.slots {
		if d != nil {
			n++
		}
	}
	return n
}

// Indices returns the candle indices carrying a detection.
func (r *Result) Indices() []int {
	var out []int
	for i, d := range r.slots {
		if d != nil {
			out = append(out, i)
		}
	}
	return out
}

// Merge combines results from different families into one map keyed by candle index.
func Merge(results ...*Result) map[int][]Detection {
	merged := make(map[int][]Detection)
	for _, r := range results {
		for _, d := range r.Detections() {
			merged[d.Index] = append(merged[d.Index], d)
		}
	}
	for idx := range merged {
		sort.SliceStable(merged[idx], func(i, j int) bool {
			return merged[idx][i].Kind.Family < merged[idx][j].Kind.Family
		})
	}
	return merged
}
