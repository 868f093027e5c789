// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package receiver

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// Scan phase lock: accepting a beacon schedules the next scan at the
// smallest period boundary after it, plus the configured phase offset.
func TestScanPhaseLock(t *testing.T) {
	s := NewScheduler(SchedulerConfig{PeriodMs: 1000, ScanDurationMs: 100, InitialPhaseOffsetMs: 150})
	s.OnBeaconAccepted(12_345_000)
	require.True(t, s.Locked())
	require.EqualValues(t, 12_346_150, s.NextScanUnixMs())

	action, _ := s.Poll(12_346_149, false, true)
	require.Equal(t, ActionNone, action)

	action, dur := s.Poll(12_346_150, false, true)
	require.Equal(t, ActionStart, action)
	require.EqualValues(t, 100, dur)
	require.EqualValues(t, 12_347_150, s.NextScanUnixMs())
}

func TestSchedulerNeverStartsWhileScanActive(t *testing.T) {
	s := NewScheduler(SchedulerConfig{PeriodMs: 1000, ScanDurationMs: 100})
	s.OnBeaconAccepted(0)
	action, _ := s.Poll(10_000, true, true)
	require.Equal(t, ActionNone, action)
}

func TestSchedulerPrelockBackToBack(t *testing.T) {
	s := NewScheduler(SchedulerConfig{PeriodMs: 1000, ScanDurationMs: 100, PrelockBackToBack: true})
	action, dur := s.Poll(0, false, false)
	require.Equal(t, ActionStart, action)
	require.EqualValues(t, 100, dur)
}

func TestSchedulerPrelockWaitsWithoutBackToBack(t *testing.T) {
	s := NewScheduler(SchedulerConfig{PeriodMs: 1000, ScanDurationMs: 100})
	action, _ := s.Poll(0, false, false)
	require.Equal(t, ActionNone, action)
}

func TestSchedulerMissCounterAndForcePrelock(t *testing.T) {
	s := NewScheduler(SchedulerConfig{PeriodMs: 1000, ScanDurationMs: 100})
	s.OnBeaconAccepted(0)
	s.OnScanFinished(false)
	s.OnScanFinished(false)
	require.EqualValues(t, 2, s.ConsecutiveMisses())
	s.OnScanFinished(true)
	require.EqualValues(t, 0, s.ConsecutiveMisses())

	s.ForcePrelock()
	require.False(t, s.Locked())
}
