// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package receiver

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rdts/logger-core/timesync"
)

// Receiver rejects a beacon whose time is behind the last accepted one,
// without mutating any state.
func TestReceiverRejectsTimeBackwards(t *testing.T) {
	p := New(timesync.New())

	d0 := p.Accept(1_700_000_000_000, 10_000)
	require.True(t, d0.Accepted)
	last, have := p.LastAccepted()
	require.True(t, have)
	require.EqualValues(t, 1_700_000_000_000, last)

	d1 := p.Accept(1_700_000_000_000-1, 70_000)
	require.False(t, d1.Accepted)
	require.Equal(t, RejectTimeBackwards, d1.Reject)

	lastAfter, _ := p.LastAccepted()
	require.Equal(t, last, lastAfter, "rejection must not mutate last-accepted state")
}

func TestReceiverRejectsEstimateError(t *testing.T) {
	p := New(timesync.New())
	p.Accept(1_700_000_000_000, 10_000)

	// 10s of rtc later the prediction has moved 10s (it tracks rtc 1:1), so
	// an offer 30s after the first is 20s away from prediction and blows
	// the 10s ESTIMATE_ERROR gate.
	d := p.Accept(1_700_000_000_000+30_000, 20_000)
	require.False(t, d.Accepted)
	require.Equal(t, RejectEstimateError, d.Reject)
}

func TestReceiverQualityProgression(t *testing.T) {
	p := New(timesync.New())
	require.Equal(t, QualityInvalid, p.Quality())

	p.Accept(1_700_000_000_000, 0)
	require.Equal(t, QualityLocking, p.Quality())

	p.Accept(1_700_000_060_000, 60_000)
	require.Equal(t, QualityLocking, p.Quality())

	p.Accept(1_700_000_120_000, 120_000)
	require.Equal(t, QualityLocked, p.Quality())

	require.Equal(t, QualityHoldover, p.QualityWithHoldover(true))
}

func TestReacquireBypassesGates(t *testing.T) {
	p := New(timesync.New())
	p.Accept(1_700_000_000_000, 0)

	p.ArmReacquire(true)
	require.True(t, p.ReacquireArmed())

	// Would normally reject as TIME_BACKWARDS; reacquire bypasses the gate.
	d := p.Accept(1_000, 999_999)
	require.True(t, d.Accepted)
	require.False(t, p.ReacquireArmed())

	last, _ := p.LastAccepted()
	require.EqualValues(t, 1_000, last)
}
