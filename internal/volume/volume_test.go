package volume

import (
	"math"
	"testing"
)

func TestString(t *testing.T) {
	tests := []struct {
		cubic float64
		want  string
	}{
		{-0.0, "0%"},
		{0.0, "0%"},
		{0.4, "40%"},
		{1.0, "100%"},
	}
	for _, tt := range tests {
		if got := FromCubic(tt.cubic).String(); got != tt.want {
			t.Errorf("FromCubic(%v).String() = %q, want %q", tt.cubic, got, tt.want)
		}
	}
}

func TestCubicLinearRoundTrip(t *testing.T) {
	for i := 0; i <= 10; i++ {
		linear := FromLinear(float64(i) / 10)
		cubic := FromCubic(linear.Cubic())
		again := FromLinear(cubic.Linear())
		if math.Abs(linear.Linear()-again.Linear()) > 1e-7 {
			t.Errorf("linear round trip diverged at %d/10: %v vs %v", i, linear.Linear(), again.Linear())
		}
		if math.Abs(linear.Cubic()-again.Cubic()) > 1e-7 {
			t.Errorf("cubic round trip diverged at %d/10: %v vs %v", i, linear.Cubic(), again.Cubic())
		}
	}

	v := FromLinear(0.125)
	if math.Abs(v.Cubic()-0.5) > 1e-7 {
		t.Errorf("FromLinear(0.125).Cubic() = %v, want 0.5", v.Cubic())
	}
}

func TestAddClamps(t *testing.T) {
	tests := []struct {
		start, delta float64
		want         string
	}{
		{0.7, 0.2, "90%"},
		{0.7, 0.4, "100%"},
		{0.3, -0.2, "10%"},
		{0.3, -0.4, "0%"},
	}
	for _, tt := range tests {
		if got := FromCubic(tt.start).Add(tt.delta).String(); got != tt.want {
			t.Errorf("FromCubic(%v).Add(%v) = %q, want %q", tt.start, tt.delta, got, tt.want)
		}
	}
}

func TestFromCubicClamps(t *testing.T) {
	if got := FromCubic(1.5).Cubic(); got != 1 {
		t.Errorf("FromCubic(1.5).Cubic() = %v, want 1", got)
	}
	if got := FromCubic(-0.5).Cubic(); got != 0 {
		t.Errorf("FromCubic(-0.5).Cubic() = %v, want 0", got)
	}
}

func TestIsMuted(t *testing.T) {
	if !FromCubic(0).IsMuted() {
		t.Error("FromCubic(0).IsMuted() = false, want true")
	}
	if FromCubic(0.1).IsMuted() {
		t.Error("FromCubic(0.1).IsMuted() = true, want false")
	}
}
