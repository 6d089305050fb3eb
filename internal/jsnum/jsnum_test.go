package jsnum

import (
	"math"
	"strconv"
	"testing"

	"pgregory.net/rapid"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{math.Copysign(0, -1), "0"},
		{1, "1"},
		{-1.5, "-1.5"},
		{148, "148"},
		{0.1 + 0.2, "0.30000000000000004"},
		{1e21, "1e+21"},
		{1e20, "100000000000000000000"},
		{123456789012345680000, "123456789012345680000"},
		{0.000001, "0.000001"},
		{0.0000001, "1e-7"},
		{1.5e-7, "1.5e-7"},
		{2.5e300, "2.5e+300"},
		{math.NaN(), "NaN"},
		{math.Inf(1), "Infinity"},
		{math.Inf(-1), "-Infinity"},
	}
	for _, tt := range tests {
		if got := Format(tt.in); got != tt.want {
			t.Errorf("Format(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// Each weight is (10 * 148 * factor) / 10 as evaluated by a browser.
func TestFormatPlanetWeights(t *testing.T) {
	factors := map[float64]string{
		27.072: "4006.656",
		.378:   "55.944",
		.166:   "24.568",
		.907:   "134.23600000000002",
		.377:   "55.79600000000001",
		2.364:  "349.87199999999996",
		1.064:  "157.472",
		.889:   "131.572",
		1.125:  "166.5",
		.067:   "9.916",
	}
	for factor, want := range factors {
		got := Format((10 * 148 * factor) / 10)
		if got != want {
			t.Errorf("factor %v: got %q want %q", factor, got, want)
		}
	}
}

func TestFormatRoundTrips(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		f := rapid.Float64().Draw(t, "f")
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return
		}
		s := Format(f)
		back, err := strconv.ParseFloat(s, 64)
		if err != nil {
			t.Fatalf("Format(%v) = %q does not parse: %v", f, s, err)
		}
		if back != f && !(f == 0 && back == 0) {
			t.Fatalf("Format(%v) = %q round-trips to %v", f, s, back)
		}
	})
}
