package types

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"small", "24", "24", false},
		{"beyond int64", "3600000000000000000000", "3600000000000000000000", false},
		{"zero", "0", "0", false},
		{"trailing zero fraction", "10.000", "10", false},
		{"fraction", "10.5", "", true},
		{"negative", "-1", "", true},
		{"garbage", "abc", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error for %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(d(tt.want)) {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestMulDivFloor(t *testing.T) {
	tests := []struct {
		name    string
		a, b, c string
		want    string
	}{
		{"exact", "24", "1", "24", "1"},
		{"floors", "10", "1", "3", "3"},
		{"fractional multiplier", "1000", "12.5", "100", "125"},
		{"fractional result floors", "7", "12.5", "100", "0"},
		{"large", "1000000000000000000000", "3", "7", "428571428571428571428"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MulDivFloor(d(tt.a), d(tt.b), d(tt.c))
			if !got.Equal(d(tt.want)) {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestMulDivFloorByZero(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for division by zero")
		}
	}()

	_ = MulDivFloor(d("1"), d("1"), decimal.Zero)
}

func TestPercentOf(t *testing.T) {
	if got := PercentOf(d("200"), d("10")); !got.Equal(d("20")) {
		t.Errorf("10%% of 200: got %s", got)
	}
	if got := PercentOf(d("9"), d("50")); !got.Equal(d("4")) {
		t.Errorf("50%% of 9: got %s", got)
	}
	if got := PercentOf(d("9"), Hundred); !got.Equal(d("9")) {
		t.Errorf("100%% of 9: got %s", got)
	}
}

func TestValidPercent(t *testing.T) {
	tests := []struct {
		pct  string
		want bool
	}{
		{"0", true},
		{"100", true},
		{"33.33", true},
		{"-0.01", false},
		{"100.01", false},
	}

	for _, tt := range tests {
		if got := ValidPercent(d(tt.pct)); got != tt.want {
			t.Errorf("ValidPercent(%s) = %v, want %v", tt.pct, got, tt.want)
		}
	}
}

func TestMin(t *testing.T) {
	if got := Min(d("3"), d("2")); !got.Equal(d("2")) {
		t.Errorf("Min: got %s", got)
	}
	if got := Min(d("2"), d("3")); !got.Equal(d("2")) {
		t.Errorf("Min: got %s", got)
	}
}
