// Package volume provides the cubic-taper volume value used across the
// playback engine. User-facing levels (commands, snapshots, MPRIS) are
// cubic; the pipeline gain is linear.
package volume

import (
	"fmt"
	"math"
)

// Volume is a playback volume level with a cubic taper.
// The zero value is silence.
type Volume struct {
	cubic float64
}

// FromCubic creates a Volume from a cubic level, clamped to [0, 1].
func FromCubic(cubic float64) Volume {
	return Volume{cubic: clamp(cubic)}
}

// FromLinear creates a Volume from a linear amplitude, clamped to [0, 1].
func FromLinear(linear float64) Volume {
	return FromCubic(math.Cbrt(clamp(linear)))
}

// Cubic returns the cubic level in [0, 1].
func (v Volume) Cubic() float64 {
	return v.cubic
}

// Linear returns the linear amplitude in [0, 1].
func (v Volume) Linear() float64 {
	return math.Pow(v.cubic, 3)
}

// Add returns the volume shifted by delta on the cubic scale, clamped.
func (v Volume) Add(delta float64) Volume {
	return FromCubic(v.cubic + delta)
}

// IsMuted returns true if the volume is effectively silent.
func (v Volume) IsMuted() bool {
	return v.cubic == 0
}

// String formats the cubic level as a percentage.
func (v Volume) String() string {
	return fmt.Sprintf("%.0f%%", math.Abs(v.cubic)*100)
}

func clamp(f float64) float64 {
	return math.Min(math.Max(f, 0), 1)
}
