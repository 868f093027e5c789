// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package timesync

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// First beacon hard-initializes the anchor; a second beacon 60s later with
// a +50ms error nudges phase and frequency and stays converging.
func TestFirstDiscipline(t *testing.T) {
	d := New()
	require.False(t, d.IsInitialized())

	r0 := d.OnBeacon(1_700_000_000_000, 10_000)
	require.True(t, r0.Initialized)
	require.True(t, r0.Accepted)
	require.EqualValues(t, 1_700_000_000_000, d.NowUnixMs(10_000))

	r1 := d.OnBeacon(1_700_000_060_050, 70_000)
	require.True(t, r1.Accepted)
	require.InDelta(t, 50, r1.DeltaRealVsBeaconMs, 0.001)
	require.InDelta(t, 8.33, r1.FreqPpm, 0.01)

	now := d.NowUnixMs(70_000)
	require.InDelta(t, 1_700_000_060_000, int64(now), 100)
}

// Monotonic latch: NowUnixMs must never decrease across calls, even when
// the rtc argument jitters backward within the same anchor epoch.
func TestNowUnixMsMonotonic(t *testing.T) {
	d := New()
	d.OnBeacon(1_700_000_000_000, 10_000)
	a := d.NowUnixMs(20_000)
	b := d.NowUnixMs(15_000)
	require.GreaterOrEqual(t, b, a)
}

// Beacons outside the phase-reject window are reported but do not move the
// anchor.
func TestOnBeaconRejectsOutsidePhaseWindow(t *testing.T) {
	d := New()
	d.OnBeacon(1_700_000_000_000, 10_000)
	before := d.NowUnixMs(70_000)

	r := d.OnBeacon(1_700_000_060_500, 70_000) // +500ms, outside ±100ms
	require.False(t, r.Accepted)

	after := d.NowUnixMs(70_000)
	require.Equal(t, before, after)
}

// Beacons outside the Δt gate (too soon) are rejected without updating the
// anchor.
func TestOnBeaconRejectsDeltaTooSmall(t *testing.T) {
	d := New()
	d.OnBeacon(1_700_000_000_000, 10_000)
	r := d.OnBeacon(1_700_000_001_000, 11_000) // Δt = 1s < 30s gate
	require.False(t, r.Accepted)
}

// Testable Property 7: a phase error inside the frequency deadband is
// corrected by exactly the K_PHASE fraction, which is folded into the new
// anchor, leaving (1-K_PHASE) of it as residual error, with freq_ppm
// untouched.
func TestPhaseCorrectionAppliesPartialGain(t *testing.T) {
	d := New()
	d.OnBeacon(1_700_000_000_000, 0)

	const delta = 4 // within the ±5ms deadband: freq must not move
	r := d.OnBeacon(1_700_000_060_000+delta, 60_000)
	require.True(t, r.Accepted)
	require.Zero(t, r.FreqPpm)
	require.InDelta(t, delta, r.DeltaRealVsBeaconMs, 0.001)

	// post = pre + K_PHASE*delta = 1_700_000_060_000 + 0.6, rounds to ...001.
	require.EqualValues(t, 1_700_000_060_001, d.NowUnixMs(60_000))
}

// Once the anchor matches the true signal exactly, further on-time beacons
// leave the residual at zero (fixed point, no drift introduced).
func TestSteadyStateZeroResidual(t *testing.T) {
	d := New()
	d.OnBeacon(1_700_000_000_000, 0)

	rtc := uint32(0)
	beacon := uint64(1_700_000_000_000)
	for i := 0; i < 4; i++ {
		rtc += 60_000
		beacon += 60_000
		r := d.OnBeacon(beacon, rtc)
		require.True(t, r.Accepted)
		require.Zero(t, r.DeltaRealVsBeaconMs)
		require.Zero(t, r.FreqPpm)
	}
	require.EqualValues(t, beacon, d.NowUnixMs(rtc))
}

func TestReanchorPreservesFreqOptionally(t *testing.T) {
	d := New()
	d.OnBeacon(1_700_000_000_000, 0)
	d.OnBeacon(1_700_000_060_050, 60_000)
	freqBefore := d.freqPpm
	require.NotZero(t, freqBefore)

	d.Reanchor(1_800_000_000_000, 100_000, true)
	require.Equal(t, freqBefore, d.freqPpm)
	require.EqualValues(t, 1_800_000_000_000, d.NowUnixMs(100_000))

	d.Reanchor(1_900_000_000_000, 200_000, false)
	require.Zero(t, d.freqPpm)
}
