// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package receiver

// PollAction is the outcome of one Scheduler.Poll call.
type PollAction int

// PollAction values.
const (
	ActionNone PollAction = iota
	ActionStart
)

// SchedulerConfig configures a Scheduler's scan cadence (§4.6 Scan
// scheduler).
type SchedulerConfig struct {
	PeriodMs             uint64
	ScanDurationMs       uint32
	InitialPhaseOffsetMs int64
	PrelockBackToBack    bool
}

// Scheduler places scan windows phase-locked onto predicted beacon
// arrivals (§4.6), grounded in
// original_source/RDTS_SCN_ESP_4/ScanScheduler.h.
type Scheduler struct {
	cfg SchedulerConfig

	locked       bool
	nextScanUnix uint64

	consecutiveMisses uint32
}

// NewScheduler returns a Scheduler configured with cfg, starting unlocked
// (pre-lock).
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	return &Scheduler{cfg: cfg}
}

// Locked reports whether the scheduler has phase-locked to a beacon.
func (s *Scheduler) Locked() bool { return s.locked }

// NextScanUnixMs returns the Unix time of the next scheduled scan start,
// valid only once Locked reports true.
func (s *Scheduler) NextScanUnixMs() uint64 { return s.nextScanUnix }

// Poll decides whether to start a scan window now, given the current
// disciplined Unix time, whether a scan is already running, and whether
// disciplined time is available at all (§4.6 Poll contract).
func (s *Scheduler) Poll(unixNow uint64, scanActive bool, timeAvailable bool) (PollAction, uint32) {
	if scanActive {
		return ActionNone, 0
	}
	if !s.locked || !timeAvailable {
		if s.cfg.PrelockBackToBack {
			return ActionStart, s.cfg.ScanDurationMs
		}
		return ActionNone, 0
	}
	if unixNow >= s.nextScanUnix {
		s.nextScanUnix += s.cfg.PeriodMs
		return ActionStart, s.cfg.ScanDurationMs
	}
	return ActionNone, 0
}

// OnBeaconAccepted phase-locks the scheduler onto beaconUnixMs: the next
// scan is scheduled at the smallest period boundary strictly after
// beaconUnixMs, plus the configured phase offset (§4.6, §8 property 8).
// Only the first accepted beacon that locks re-phases the schedule; once
// locked, later calls are a no-op and Poll advances the window by period.
func (s *Scheduler) OnBeaconAccepted(beaconUnixMs uint64) {
	if s.locked {
		return
	}
	period := s.cfg.PeriodMs
	nextBoundary := (beaconUnixMs/period + 1) * period
	next := int64(nextBoundary) + s.cfg.InitialPhaseOffsetMs
	if next < 0 {
		next = 0
	}
	s.nextScanUnix = uint64(next)
	s.locked = true
	s.consecutiveMisses = 0
}

// ForcePrelock resets lock state while preserving configuration, used by
// an external reacquire policy after prolonged silence (§4.6).
func (s *Scheduler) ForcePrelock() {
	s.locked = false
	s.nextScanUnix = 0
}

// OnScanFinished records whether the just-completed scan window yielded a
// decoded packet, maintaining the consecutive-miss diagnostic counter
// (original_source/RDTS_SCN_ESP_4/ScanScheduler.h
// scan_sched_consecutive_misses / SCAN_MISSED_SYNC_THRESHOLD).
func (s *Scheduler) OnScanFinished(hadPacket bool) {
	if hadPacket {
		s.consecutiveMisses = 0
		return
	}
	s.consecutiveMisses++
}

// ConsecutiveMisses returns the number of scan windows in a row that ended
// without a decoded packet. An out-of-scope reacquire policy consults this
// to decide when to call Policy.ArmReacquire.
func (s *Scheduler) ConsecutiveMisses() uint32 { return s.consecutiveMisses }
