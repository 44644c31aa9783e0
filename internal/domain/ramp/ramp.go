// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package ramp interpolates numeric effect parameters over a session.
package ramp

import (
	"math"
	"time"
)

// Clamp01 limits t to [0, 1]. NaN maps to 0.
func Clamp01(t float64) float64 {
	if math.IsNaN(t) || t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}

// Lerp interpolates between a and b with t clamped to [0, 1].
// It returns exactly a at t=0 and exactly b at t=1.
func Lerp(a, b, t float64) float64 {
	t = Clamp01(t)
	switch t {
	case 0:
		return a
	case 1:
		return b
	}
	return a + (b-a)*t
}

// Progress is elapsed/total clamped to [0, 1]. A non-positive total counts as done.
func Progress(elapsed, total time.Duration) float64 {
	if total <= 0 {
		return 1
	}
	return Clamp01(float64(elapsed) / float64(total))
}

// OffsetProgress is the progress of a ramp that begins at offset:
// (elapsed-offset)/(total-offset), clamped to [0, 1].
func OffsetProgress(elapsed, offset, total time.Duration) float64 {
	if offset <= 0 {
		return Progress(elapsed, total)
	}
	if elapsed <= offset {
		return 0
	}
	return Progress(elapsed-offset, total-offset)
}

// Value is the ramp value at elapsed for a ramp from..to starting at offset.
func Value(from, to float64, elapsed, offset, total time.Duration) float64 {
	return Lerp(from, to, OffsetProgress(elapsed, offset, total))
}
