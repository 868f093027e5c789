// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package recorder

import (
	"fmt"

	"github.com/rdts/logger-core/fixedpoint"
	"github.com/rdts/logger-core/frame"
)

// LiveFrame is the single-sample wire record the `frame`/`aframe` command
// surface streams (§6, §4.3 "Live-frame probe"). It adds a CRC16 over the
// Frame20 bytes so a timeout's synthetic failure frame is distinguishable
// from line noise by the same mechanism as every other wire record in this
// system, rather than by a sentinel value.
type LiveFrame struct {
	Frame frame.Frame20
	CRC16 uint16
	OK    bool // false on probe timeout
}

// liveMarkerHi and liveMarkerLo are the binary framing bytes for a live-frame record,
// distinct from Playback's per-frame marker so a stream reader can tell
// the two apart.
const (
	liveMarkerHi = 0x4C // 'L'
	liveMarkerLo = 0x46 // 'F'
)

func newLiveFrame(f frame.Frame20, ok bool) LiveFrame {
	return LiveFrame{Frame: f, CRC16: fixedpoint.CRC16(f.Marshal()), OK: ok}
}

// WriteASCII writes the ASCII rendering of lf to sink (§6 command
// surface's `aframe`).
func (lf LiveFrame) WriteASCII(sink Sink) {
	status := "OK"
	if !lf.OK {
		status = "TIMEOUT"
	}
	f := lf.Frame
	sink.WriteLine(fmt.Sprintf("@LIVE %d %d %d %d %d %d %d %d %d %d crc=0x%04X %s",
		f.Q0, f.Q1, f.Q2, f.Q3, f.Ax, f.Ay, f.Az, f.Mx, f.My, f.Mz, lf.CRC16, status))
}

// WriteBinary writes the binary framing of lf to sink (§6 command
// surface's `frame`): 4-byte marker header, 20 Frame20 bytes, 2-byte CRC16.
func (lf LiveFrame) WriteBinary(sink Sink) {
	buf := make([]byte, 0, 4+frame.Size+2)
	buf = append(buf, liveMarkerHi, liveMarkerLo, frame.Size, 0x00)
	buf = append(buf, lf.Frame.Marshal()...)
	buf = append(buf, byte(lf.CRC16), byte(lf.CRC16>>8))
	sink.Write(buf)
}

// RawAccelMag is the narrow contract for reading current accelerometer and
// magnetometer registers regardless of whether a fresh fused-quaternion
// frame is available, used to populate a timed-out live-frame probe's
// synthetic failure frame (§4.3 "current accel/mag").
type RawAccelMag interface {
	ReadRawAccelMag() (ax, ay, az, mx, my, mz int16)
}

// LiveFrameProbe is a one-shot, non-blocking read of the next IMU frame,
// bounded by a deadline (§4.3 "Live-frame probe"). Service makes one
// bounded attempt per call and reschedules until the deadline, matching
// §5's "one bounded attempt per service call".
type LiveFrameProbe struct {
	eng        *Engine
	raw        RawAccelMag
	format     Format
	deadlineMs uint32
	done       bool
}

// StartLiveFrameProbe begins a probe that must resolve by deadlineMs (an
// absolute value on the Engine's clock). raw may be nil, in which case a
// timeout's accel/mag fields are zero.
func (e *Engine) StartLiveFrameProbe(format Format, deadlineMs uint32, raw RawAccelMag) *LiveFrameProbe {
	return &LiveFrameProbe{eng: e, raw: raw, format: format, deadlineMs: deadlineMs}
}

// Done reports whether the probe has resolved (success or timeout).
func (p *LiveFrameProbe) Done() bool { return p.done }

// Service makes one bounded attempt to read a frame; if it succeeds, or if
// the deadline has passed, it writes the result to sink and resolves.
// Otherwise it returns false to be called again on the next tick.
func (p *LiveFrameProbe) Service(sink Sink) (done bool) {
	if p.done {
		return true
	}
	if p.eng.imu != nil {
		if f, ok := p.eng.imu.TryReadFrame(); ok {
			p.emit(sink, newLiveFrame(f, true))
			return true
		}
	}
	if p.eng.clock.NowMs() < p.deadlineMs {
		return false
	}

	var f frame.Frame20
	if p.raw != nil {
		f.Ax, f.Ay, f.Az, f.Mx, f.My, f.Mz = p.raw.ReadRawAccelMag()
	}
	p.emit(sink, newLiveFrame(f, false))
	return true
}

func (p *LiveFrameProbe) emit(sink Sink, lf LiveFrame) {
	p.done = true
	switch p.format {
	case FormatASCII:
		lf.WriteASCII(sink)
	case FormatBinary:
		lf.WriteBinary(sink)
	}
}
