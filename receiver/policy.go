// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package receiver implements the receiver-side accept/reject gating of
// decoded beacons and the phase-locked scan scheduler (§4.6, C7), grounded
// in original_source/RDTS_SCN_ESP_4/ScanScheduler.h. It is the coordinator
// §9 Design Notes calls for: one-way calls out to timesync.Discipline
// (prediction only, then update-on-accept), never the other way around.
package receiver

import "github.com/rdts/logger-core/timesync"

// Quality reports the receiver's time-discipline confidence (§4.6).
type Quality int

// Quality values, in the order the state machine progresses through them.
const (
	QualityInvalid Quality = iota
	QualityLocking
	QualityLocked
	QualityHoldover
)

func (q Quality) String() string {
	switch q {
	case QualityInvalid:
		return "INVALID"
	case QualityLocking:
		return "LOCKING"
	case QualityLocked:
		return "LOCKED"
	case QualityHoldover:
		return "HOLDOVER"
	default:
		return "UNKNOWN"
	}
}

// LockBeaconCount is the number of accepted beacons required to transition
// LOCKING -> LOCKED (§4.6).
const LockBeaconCount = 3

// EstimateErrorGateMs is the maximum |beacon - predict(rtc_rx)| the policy
// tolerates before rejecting with ESTIMATE_ERROR (§4.6 step 2).
const EstimateErrorGateMs = 10_000

// RejectReason distinguishes why Accept rejected a packet (§7
// ReceiverReject taxonomy).
type RejectReason int

// Reject reasons.
const (
	RejectNone RejectReason = iota
	RejectTimeBackwards
	RejectEstimateError
)

func (r RejectReason) String() string {
	switch r {
	case RejectTimeBackwards:
		return "TIME_BACKWARDS"
	case RejectEstimateError:
		return "ESTIMATE_ERROR"
	default:
		return "NONE"
	}
}

// Decision is the outcome of one Policy.Accept call.
type Decision struct {
	Accepted bool
	Reject   RejectReason
	Report   timesync.BeaconReport // zero value if rejected
}

// Policy holds the receiver's acceptance-gate state: the last accepted
// master time, accepted-beacon count, and the one-shot reacquire flag
// (§4.6).
type Policy struct {
	disc *timesync.Discipline

	haveBeacon    bool
	lastAccepted  uint64
	acceptedCount int

	reacquireArmed        bool
	reacquirePreserveFreq bool
}

// New returns a Policy driving disc. disc must outlive the Policy.
func New(disc *timesync.Discipline) *Policy {
	return &Policy{disc: disc}
}

// ArmReacquire arms the one-shot reacquire mode: the next Accept call
// unconditionally accepts and re-anchors time to that packet, bypassing
// the normal gates (§4.6). When preserveFreq is true, the discipline's
// current frequency estimate survives the reanchor.
func (p *Policy) ArmReacquire(preserveFreq bool) {
	p.reacquireArmed = true
	p.reacquirePreserveFreq = preserveFreq
}

// ReacquireArmed reports whether a reacquire is pending.
func (p *Policy) ReacquireArmed() bool { return p.reacquireArmed }

// Accept applies the receiver policy to one decoded beacon's
// master_unix_ms, sampled at local rtc rtcRx (§4.6 "Per-packet policy").
// Rejections never mutate receiver or discipline state (§7 policy).
func (p *Policy) Accept(masterUnixMs uint64, rtcRx uint32) Decision {
	if p.reacquireArmed {
		p.reacquireArmed = false
		p.disc.Reanchor(masterUnixMs, rtcRx, p.reacquirePreserveFreq)
		p.haveBeacon = true
		p.lastAccepted = masterUnixMs
		p.acceptedCount = 1
		return Decision{Accepted: true, Report: timesync.BeaconReport{
			RtcRxMs: rtcRx, BeaconUnixMs: masterUnixMs, Initialized: true, Accepted: true,
		}}
	}

	if p.haveBeacon && masterUnixMs < p.lastAccepted {
		return Decision{Accepted: false, Reject: RejectTimeBackwards}
	}

	if p.disc.IsInitialized() {
		predicted := p.disc.PredictUnixMs(rtcRx)
		delta := int64(masterUnixMs) - predicted
		if absInt64(delta) > EstimateErrorGateMs {
			return Decision{Accepted: false, Reject: RejectEstimateError}
		}
	}

	report := p.disc.OnBeacon(masterUnixMs, rtcRx)
	p.haveBeacon = true
	p.lastAccepted = masterUnixMs
	p.acceptedCount++
	return Decision{Accepted: true, Report: report}
}

// LastAccepted returns the most recently accepted master_unix_ms and
// whether any beacon has ever been accepted.
func (p *Policy) LastAccepted() (uint64, bool) { return p.lastAccepted, p.haveBeacon }

// Quality reports the receiver's current discipline confidence (§4.6). The
// receiver itself never transitions to HOLDOVER on its own; that signal is
// a diagnostic the caller derives from beacon silence (see Scheduler's
// consecutive-miss counter) and reports by calling QualityWithHoldover.
func (p *Policy) Quality() Quality {
	switch {
	case p.acceptedCount == 0:
		return QualityInvalid
	case p.acceptedCount < LockBeaconCount:
		return QualityLocking
	default:
		return QualityLocked
	}
}

// QualityWithHoldover reports HOLDOVER instead of LOCKED when holdover is
// true, matching §4.6's note that HOLDOVER is a diagnostic overlay on an
// otherwise-LOCKED receiver, not a distinct internal state.
func (p *Policy) QualityWithHoldover(holdover bool) Quality {
	q := p.Quality()
	if holdover && q == QualityLocked {
		return QualityHoldover
	}
	return q
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
