// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package fixedpoint provides the small numeric primitives shared by the
// flash log engine: Q15 fixed-point saturation and the CRC-16/CCITT used to
// protect every page footer.
package fixedpoint

import "math"

// Q15Scale is the unit scale of a Q15 fixed-point value (§3 Frame20).
const Q15Scale = 32767

// ToQ15 converts a float in [-1, 1] to a saturated Q15 int16, matching the
// firmware's lround(x * 32767) followed by clamp to [-32768, 32767].
func ToQ15(x float64) int16 {
	v := math.Round(x * Q15Scale)
	if v > 32767 {
		v = 32767
	} else if v < -32768 {
		v = -32768
	}
	return int16(v)
}

// FromQ15 converts a Q15 int16 back to a float in [-1, 1].
func FromQ15(v int16) float64 {
	return float64(v) / Q15Scale
}
