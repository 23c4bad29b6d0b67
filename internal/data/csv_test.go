package data

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	apperrors "chart-patterns/internal/errors"
	"chart-patterns/internal/models"
)

const sample = `Gmt time,Open,High,Low,Close,Volume
01.01.2020 00:00:00.000,1.1210,1.1230,1.1200,1.1220,1500
01.01.2020 04:00:00.000,1.1220,1.1250,1.1215,1.1240,1800
01.01.2020 08:00:00.000,1.1240,1.1245,1.1190,1.1195,2100
`

func TestNormalizeHeader(t *testing.T) {
	tests := []struct {
		name   string
		header []string
		want   []string
	}{
		{
			name:   "title case",
			header: []string{"Date", "Open", "High", "Low", "Close"},
			want:   []string{"timestamp", "open", "high", "low", "close"},
		},
		{
			name:   "substring match",
			header: []string{"BidOpen", "BidHigh", "BidLow", "BidClose", "Tick Volume"},
			want:   []string{"open", "high", "low", "close", "volume"},
		},
		{
			name:   "first match wins",
			header: []string{"open", "high", "low", "close", "adj close"},
			want:   []string{"open", "high", "low", "close", "adj close"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeHeader(tt.header)
			if err != nil {
				t.Fatalf("NormalizeHeader() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("NormalizeHeader() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNormalizeHeader_MissingColumn(t *testing.T) {
	_, err := NormalizeHeader([]string{"open", "high", "close"})
	var se *apperrors.SchemaError
	if !apperrors.As(err, &se) {
		t.Fatalf("error = %v, want *SchemaError", err)
	}
	if se.Field != models.FieldLow || se.Index != -1 {
		t.Errorf("schema error = %+v, want low at table level", se)
	}
}

func TestRead(t *testing.T) {
	candles, err := Read(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(candles) != 3 {
		t.Fatalf("got %d candles, want 3", len(candles))
	}

	c := candles[1]
	if c.Index != 1 || c.Open != 1.1220 || c.High != 1.1250 || c.Low != 1.1215 || c.Close != 1.1240 || c.Volume != 1800 {
		t.Errorf("candle[1] = %+v", c)
	}
	want := time.Date(2020, 1, 1, 4, 0, 0, 0, time.UTC)
	if !c.Timestamp.Equal(want) {
		t.Errorf("timestamp = %v, want %v", c.Timestamp, want)
	}
}

func TestRead_MissingColumn(t *testing.T) {
	_, err := Read(strings.NewReader("time,open,high,close\n1,1,1,1\n"))
	if !apperrors.Is(err, apperrors.ErrSchema) {
		t.Errorf("Read() error = %v, want schema error", err)
	}
}

func TestRead_BlankPrice(t *testing.T) {
	input := "open,high,low,close\n1.0,1.2,0.9,1.1\n1.1,,1.0,1.05\n"
	_, err := Read(strings.NewReader(input))

	var se *apperrors.SchemaError
	if !apperrors.As(err, &se) {
		t.Fatalf("Read() error = %v, want *SchemaError", err)
	}
	if se.Field != models.FieldHigh || se.Index != 1 {
		t.Errorf("schema error = %+v, want high at row 1", se)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "series.csv")
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		t.Fatal(err)
	}
	candles, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(candles) != 3 {
		t.Errorf("got %d candles, want 3", len(candles))
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Error("Load() of a missing file succeeded")
	}
}

func TestSlice(t *testing.T) {
	candles, err := Read(strings.NewReader(sample))
	if err != nil {
		t.Fatal(err)
	}

	got := Slice(candles, 1, 3)
	if len(got) != 2 || got[0].Index != 0 || got[1].Index != 1 {
		t.Fatalf("Slice(1, 3) = %+v", got)
	}
	if got[0].Close != candles[1].Close {
		t.Errorf("Slice kept wrong rows")
	}
	if candles[1].Index != 1 {
		t.Error("Slice re-indexed the source series")
	}

	if n := len(Slice(candles, -5, 100)); n != 3 {
		t.Errorf("clamped slice has %d candles, want 3", n)
	}
	if Slice(candles, 2, 2) != nil {
		t.Error("empty range returned candles")
	}
}
