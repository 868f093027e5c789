// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package timesync implements the anchored PLL+FLL clock discipline loop
// that converges a logger's local monotonic time onto beacon-carried master
// Unix time (§4.5, C6), grounded in
// original_source/RDTS_SCN_ESP_4/TimeDisciplined.h.
package timesync

import "math"

// Tuning constants (§4.5).
const (
	KPhase         = 0.15
	KFreq          = 0.01
	PhaseRejectMs  = 100
	FreqDeadbandMs = 5
	FreqClampPpm   = 2000
	DeltaGateMinMs = 30_000
	DeltaGateMaxMs = 3_000_000
)

// Discipline holds the anchored clock model: (epoch_rtc_ms, epoch_unix_ms,
// freq_ppm, phase_ms). The zero value is a valid, uninitialized Discipline.
type Discipline struct {
	initialized bool

	epochRtcMs  uint32
	epochUnixMs int64
	freqPpm     float64
	phaseMs     float64

	havePrevRtc bool
	prevRtcMs   uint32

	lastLocalMs int64
}

// New returns an uninitialized Discipline.
func New() *Discipline { return &Discipline{} }

// IsInitialized reports whether a beacon has ever been accepted.
func (d *Discipline) IsInitialized() bool { return d.initialized }

// predict computes the anchored prediction without mutating any state.
func (d *Discipline) predict(rtc uint32) int64 {
	elapsed := float64(int64(rtc) - int64(d.epochRtcMs))
	v := float64(d.epochUnixMs) + elapsed*(1+d.freqPpm*1e-6) + d.phaseMs
	return int64(math.Round(v))
}

// PredictUnixMs predicts disciplined Unix time without mutating the
// monotonic latch (§4.5 "now" is distinct from prediction).
func (d *Discipline) PredictUnixMs(rtc uint32) int64 {
	if !d.initialized {
		return 0
	}
	return d.predict(rtc)
}

// NowUnixMs computes predict(rtc), then enforces and updates the monotonic
// latch so that successive calls never decrease (§3 invariant, §4.5 "Now").
func (d *Discipline) NowUnixMs(rtc uint32) uint64 {
	pred := d.predict(rtc)
	if pred < d.lastLocalMs {
		pred = d.lastLocalMs
	}
	d.lastLocalMs = pred
	if pred < 0 {
		return 0
	}
	return uint64(pred)
}

// BeaconReport is the diagnostic record returned by every OnBeacon call
// (§4.5 Report), extended with the original firmware's delta_rtc_vs_beacon
// field (original_source/RDTS_SCN_ESP_4/TimeDisciplined.h) and an Accepted
// flag reporting whether this call's internal gates passed.
type BeaconReport struct {
	RtcRxMs      uint32
	BeaconUnixMs uint64

	RawUnixMs       int64
	LocalUnixMsPre  int64
	LocalUnixMsPost int64

	DeltaRtcVsBeaconMs  int64
	DeltaRealVsBeaconMs int64

	FreqPpm     float64
	OffsetMs    int64 // B = epoch_unix_ms - epoch_rtc_ms
	Initialized bool
	Accepted    bool
}

func (d *Discipline) offsetMs() int64 { return d.epochUnixMs - int64(d.epochRtcMs) }

// OnBeacon is the only place discipline occurs (§4.5). On an uninitialized
// Discipline this hard-initializes the anchor; otherwise it runs the
// PLL+FLL update, gated by the Δt and phase-reject windows.
func (d *Discipline) OnBeacon(beaconUnixMs uint64, rtcRx uint32) BeaconReport {
	if !d.initialized {
		return d.hardInit(beaconUnixMs, rtcRx)
	}

	pre := d.predict(rtcRx)
	deltaReal := int64(beaconUnixMs) - pre
	deltaRtc := int64(rtcRx) - int64(d.prevRtcMs)

	report := BeaconReport{
		RtcRxMs: rtcRx, BeaconUnixMs: beaconUnixMs,
		RawUnixMs: pre, LocalUnixMsPre: pre, LocalUnixMsPost: pre,
		DeltaRtcVsBeaconMs: deltaRtc, DeltaRealVsBeaconMs: deltaReal,
		FreqPpm: d.freqPpm, OffsetMs: d.offsetMs(), Initialized: true,
	}

	inGate := d.havePrevRtc && deltaRtc >= DeltaGateMinMs && deltaRtc <= DeltaGateMaxMs && absInt64(deltaReal) <= PhaseRejectMs
	if !inGate {
		return report
	}

	d.phaseMs += KPhase * float64(deltaReal)
	if absInt64(deltaReal) > FreqDeadbandMs {
		d.freqPpm = clampF(d.freqPpm+KFreq*(float64(deltaReal)/float64(deltaRtc))*1e6, -FreqClampPpm, FreqClampPpm)
	}
	post := d.predict(rtcRx)
	if post < d.lastLocalMs {
		post = d.lastLocalMs
	}
	d.epochRtcMs = rtcRx
	d.epochUnixMs = post
	d.phaseMs = 0
	d.prevRtcMs = rtcRx
	d.lastLocalMs = post

	report.LocalUnixMsPost = post
	report.FreqPpm = d.freqPpm
	report.OffsetMs = d.offsetMs()
	report.Accepted = true
	return report
}

func (d *Discipline) hardInit(beaconUnixMs uint64, rtcRx uint32) BeaconReport {
	d.epochRtcMs = rtcRx
	d.epochUnixMs = int64(beaconUnixMs)
	d.freqPpm = 0
	d.phaseMs = 0
	d.prevRtcMs = rtcRx
	d.havePrevRtc = true
	d.lastLocalMs = int64(beaconUnixMs)
	d.initialized = true
	return BeaconReport{
		RtcRxMs: rtcRx, BeaconUnixMs: beaconUnixMs,
		RawUnixMs: int64(beaconUnixMs), LocalUnixMsPre: int64(beaconUnixMs), LocalUnixMsPost: int64(beaconUnixMs),
		FreqPpm: 0, OffsetMs: d.offsetMs(), Initialized: true, Accepted: true,
	}
}

// Reanchor unconditionally re-anchors the clock model to (rtcRx,
// beaconUnixMs), zeroing phase. Used by reacquire (§4.5 "Reanchor"). When
// preserveFreq is false, freq_ppm is also reset.
func (d *Discipline) Reanchor(beaconUnixMs uint64, rtcRx uint32, preserveFreq bool) {
	d.epochRtcMs = rtcRx
	d.epochUnixMs = int64(beaconUnixMs)
	d.phaseMs = 0
	if !preserveFreq {
		d.freqPpm = 0
	}
	d.prevRtcMs = rtcRx
	d.havePrevRtc = true
	d.lastLocalMs = int64(beaconUnixMs)
	d.initialized = true
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
