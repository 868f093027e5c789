// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package timesync

import "github.com/rdts/logger-core/fixedpoint"

// MasterClock is the beacon master's own free-running Unix-time source,
// grounded in original_source/RDTS_CLI/RDTSserver.h's rdtsm_set_time_anchor
// / rdtsm_now_unix_ms / rdtsm_uptime_ms. Unlike Discipline, it never runs a
// PLL/FLL loop: the master is the reference, so its Unix time is just an
// anchor plus however much local monotonic time has elapsed since.
type MasterClock struct {
	clock       fixedpoint.Clock
	anchorUnix  uint64
	anchorLocal uint32
	anchored    bool
}

// NewMasterClock returns a MasterClock with no anchor set; NowUnixMs
// returns 0 until SetTimeAnchor is called.
func NewMasterClock(clock fixedpoint.Clock) *MasterClock {
	return &MasterClock{clock: clock}
}

// SetTimeAnchor pins unixMs as "now" at the clock's current reading
// (rdtsm_set_time_anchor). Later calls re-anchor from the new reading,
// discarding drift accumulated against the previous anchor.
func (m *MasterClock) SetTimeAnchor(unixMs uint64) {
	m.anchorUnix = unixMs
	m.anchorLocal = m.clock.NowMs()
	m.anchored = true
}

// Anchored reports whether SetTimeAnchor has ever been called.
func (m *MasterClock) Anchored() bool { return m.anchored }

// NowUnixMs returns the master's current estimate of Unix time
// (rdtsm_now_unix_ms): the anchor plus elapsed local monotonic time,
// wrapping the same way the 32-bit local counter does.
func (m *MasterClock) NowUnixMs() uint64 {
	if !m.anchored {
		return 0
	}
	elapsed := uint32(m.clock.NowMs() - m.anchorLocal)
	return m.anchorUnix + uint64(elapsed)
}

// UptimeMs returns the raw local monotonic reading (rdtsm_uptime_ms), with
// no relation to the Unix anchor.
func (m *MasterClock) UptimeMs() uint32 {
	return m.clock.NowMs()
}
