// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package timesync

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeMasterLocalClock struct{ ms uint32 }

func (c *fakeMasterLocalClock) NowMs() uint32 { return c.ms }

func TestMasterClockUnanchoredReturnsZero(t *testing.T) {
	mc := NewMasterClock(&fakeMasterLocalClock{ms: 1000})
	require.False(t, mc.Anchored())
	require.EqualValues(t, 0, mc.NowUnixMs())
}

func TestMasterClockTracksElapsedLocalTime(t *testing.T) {
	local := &fakeMasterLocalClock{ms: 1000}
	mc := NewMasterClock(local)
	mc.SetTimeAnchor(1_700_000_000_000)
	require.True(t, mc.Anchored())
	require.EqualValues(t, 1_700_000_000_000, mc.NowUnixMs())

	local.ms += 2500
	require.EqualValues(t, 1_700_000_002_500, mc.NowUnixMs())
}

func TestMasterClockReanchorDiscardsPriorDrift(t *testing.T) {
	local := &fakeMasterLocalClock{ms: 0}
	mc := NewMasterClock(local)
	mc.SetTimeAnchor(1000)
	local.ms = 5000
	require.EqualValues(t, 6000, mc.NowUnixMs())

	mc.SetTimeAnchor(9000)
	require.EqualValues(t, 9000, mc.NowUnixMs())
	local.ms += 10
	require.EqualValues(t, 9010, mc.NowUnixMs())
}

func TestMasterClockUptimeIsRawLocalReading(t *testing.T) {
	local := &fakeMasterLocalClock{ms: 42}
	mc := NewMasterClock(local)
	require.EqualValues(t, 42, mc.UptimeMs())
}
