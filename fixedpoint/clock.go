// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package fixedpoint

import "time"

// Clock is the monotonic millisecond timebase every subsystem samples
// instead of calling time.Now() directly, so tests can supply a fake one
// (§5: all core algorithms are non-blocking modulo flash waits, and must be
// driveable from a synthetic rtc trace per §8 property 6).
type Clock interface {
	// NowMs returns a monotonically non-decreasing millisecond counter.
	// It has no relation to wall-clock time; it is the "rtc_ms" of §4.5.
	NowMs() uint32
}

// SystemClock implements Clock using the process monotonic clock, scaled to
// milliseconds and wrapped to 32 bits the way the firmware's millis() does.
type SystemClock struct {
	start time.Time
}

// NewSystemClock returns a Clock anchored at the current time.
func NewSystemClock() *SystemClock {
	return &SystemClock{start: time.Now()}
}

// NowMs implements Clock.
func (c *SystemClock) NowMs() uint32 {
	return uint32(time.Since(c.start).Milliseconds())
}
