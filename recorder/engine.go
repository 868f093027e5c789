// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package recorder implements the mode-driven recording/playback state
// machine (§4.3, C4): frame buffering into 256-byte pages, flush policy,
// the sync sub-log scheduler, and dual-format (ASCII/binary) streaming,
// grounded in original_source/RDTS_SCN_ESP_4/Logger.h.
package recorder

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/rdts/logger-core/fixedpoint"
	"github.com/rdts/logger-core/frame"
	"github.com/rdts/logger-core/storage"
)

// SyncIntervalMs is the sync-frame sampling period during RECORDING
// (§4.3 Sync scheduler).
const SyncIntervalMs = 60_000

// Mode is the recorder's run mode (§4.3).
type Mode int

// Mode values.
const (
	ModeIdle Mode = iota
	ModeRecording
	ModePlayback
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "IDLE"
	case ModeRecording:
		return "RECORDING"
	case ModePlayback:
		return "PLAYBACK"
	default:
		return "UNKNOWN"
	}
}

// IMU is the narrow contract the recorder needs from the out-of-scope IMU
// driver (§1): a non-blocking frame poll and a FIFO/DMP reset invoked at
// session start.
type IMU interface {
	// TryReadFrame returns the next buffered frame, if any is ready.
	TryReadFrame() (frame.Frame20, bool)
	// ResetFIFO flushes the IMU's internal FIFO/DMP buffer.
	ResetFIFO()
}

// TempSensor reports die temperature in hundredths of a degree C (§3
// SyncFrame). ReadTempC100 returns ok=false when no reading is available.
type TempSensor interface {
	ReadTempC100() (int16, bool)
}

// BeaconTime returns the last accepted beacon's master_unix_ms, or 0 if
// none has been accepted yet (§4.3 Sync scheduler). Satisfied by
// receiver.Policy.LastAccepted narrowed to its first return value.
type BeaconTime func() uint64

// Sink is the capability interface replacing the firmware's Stream&
// polymorphism (§9 Design Notes): Write for raw binary framing, WriteLine
// for ASCII text lines. Any type satisfying this structurally (no import
// of this package required) can be passed to the streaming methods.
type Sink interface {
	Write(p []byte) (int, error)
	WriteLine(s string)
}

// ErrFlashAbsent is returned by StartSession when no storage engine is
// attached (§4.3 "Refuse to start if flash is absent...").
var ErrFlashAbsent = errors.New("recorder: flash absent")

// ErrSyncRegionFull is returned by StartSession when the sync region has
// no room left (§4.3 "...or sync region is already full").
var ErrSyncRegionFull = errors.New("recorder: sync region already full")

// ErrWrongMode is returned when an operation is invoked in a mode it
// doesn't support.
var ErrWrongMode = errors.New("recorder: wrong mode")

// Engine is the recording/playback state machine (§4.3). It is
// single-threaded: every method must be called from the main loop
// goroutine (§5).
type Engine struct {
	storage *storage.Engine
	clock   fixedpoint.Clock
	imu     IMU
	temp    TempSensor
	beacon  BeaconTime
	log     *logrus.Entry

	mode Mode

	frameIndex      int
	pageFrames      [frame.FramesPerPage]frame.Frame20
	recordStartPage uint32
	pageFirstID     uint32
	pageStartMs     uint32
	recordPageLimit uint32 // 0 = unlimited

	syncFrames     [frame.SyncPerPage]frame.SyncFrame
	syncIndex      int
	syncFirstID    uint32
	lastSyncMs     uint32
	haveLastSyncMs bool

	flashFailed bool
}

// New returns an Engine in IDLE mode, wired to the given collaborators.
// temp may be nil (die temperature always reports unavailable).
func New(st *storage.Engine, clock fixedpoint.Clock, imu IMU, temp TempSensor, beacon BeaconTime, log *logrus.Logger) *Engine {
	if log == nil {
		log = logrus.New()
	}
	return &Engine{storage: st, clock: clock, imu: imu, temp: temp, beacon: beacon, log: log.WithField("component", "recorder")}
}

// Mode returns the current run mode.
func (e *Engine) Mode() Mode { return e.mode }

// StartSession transitions IDLE -> RECORDING (§4.3 "Session start").
// pageLimit caps the number of IMU pages this session may write; 0 means
// unlimited (until the region itself is exhausted).
func (e *Engine) StartSession(pageLimit uint32) error {
	if e.mode != ModeIdle {
		return fmt.Errorf("%w: start session requires IDLE, have %v", ErrWrongMode, e.mode)
	}
	if e.storage == nil {
		return ErrFlashAbsent
	}
	if e.storage.SyncRegionFull() {
		return ErrSyncRegionFull
	}

	e.frameIndex = 0
	e.recordStartPage = e.storage.CurrentPage()
	e.pageFirstID = e.storage.FrameCounter()
	e.pageStartMs = e.clock.NowMs()
	e.recordPageLimit = pageLimit

	e.syncIndex = 0
	e.syncFirstID = e.storage.SyncCounter() + 1
	now := e.clock.NowMs()
	e.lastSyncMs = now - SyncIntervalMs // forces an immediate sample (§4.3)
	e.haveLastSyncMs = true

	e.flashFailed = false
	if e.imu != nil {
		e.imu.ResetFIFO()
	}
	e.mode = ModeRecording
	e.log.WithFields(logrus.Fields{"start_page": e.recordStartPage, "page_limit": pageLimit}).Info("recording session started")
	return nil
}

// pageLimitReached reports whether this session has hit its configured
// page cap (§4.2 "Respect record_page_limit").
func (e *Engine) pageLimitReached() bool {
	if e.recordPageLimit == 0 {
		return false
	}
	return e.storage.CurrentPage()-e.recordStartPage >= e.recordPageLimit
}

// LogFrame is the recording-path entry point invoked once per frame
// produced by the IMU collaborator (§4.3 Recording path). It is a no-op
// outside RECORDING.
func (e *Engine) LogFrame(f frame.Frame20) error {
	if e.mode != ModeRecording {
		return nil
	}

	e.maybeSampleSync()

	if e.frameIndex == 0 {
		if e.storage.IMURegionFull() || e.pageLimitReached() {
			return e.stopRecording()
		}
		e.pageFirstID = e.storage.FrameCounter()
		e.pageStartMs = e.clock.NowMs()
	}

	e.pageFrames[e.frameIndex] = f
	e.frameIndex++

	if e.frameIndex == frame.FramesPerPage {
		if err := e.flushIMUPage(); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) flushIMUPage() error {
	frames := e.pageFrames[:e.frameIndex]
	err := e.storage.FlushPage(frames, e.pageFirstID, e.pageStartMs)
	e.frameIndex = 0
	if err != nil {
		e.flashFailed = true
		e.log.WithError(err).Error("imu page flush failed; recording continues per policy")
		return err
	}
	if e.storage.IMURegionFull() || e.pageLimitReached() {
		return e.stopRecording()
	}
	return nil
}

// stopRecording flushes any partial pages and returns to IDLE (§4.3 "Mode
// transitions", §7 "Partial buffers are flushed on session-stop").
func (e *Engine) stopRecording() error {
	var flushErr error
	if e.frameIndex > 0 {
		frames := e.pageFrames[:e.frameIndex]
		firstID := e.pageFirstID
		e.frameIndex = 0
		if err := e.storage.FlushPage(frames, firstID, e.pageStartMs); err != nil {
			flushErr = err
		}
	}
	if e.syncIndex > 0 {
		if err := e.flushSyncPageLocked(); err != nil && flushErr == nil {
			flushErr = err
		}
	}
	e.mode = ModeIdle
	e.log.Info("recording session stopped")
	return flushErr
}

// Stop explicitly ends a RECORDING session, flushing any pending partial
// pages (§4.3 "stop").
func (e *Engine) Stop() error {
	if e.mode != ModeRecording {
		return nil
	}
	return e.stopRecording()
}

// maybeSampleSync advances the sync scheduler by whole SYNC_INTERVAL_MS
// steps to avoid drift, sampling once per elapsed interval (§4.3 Sync
// scheduler).
func (e *Engine) maybeSampleSync() {
	if e.storage.SyncRegionFull() {
		return
	}
	now := e.clock.NowMs()
	for now-e.lastSyncMs >= SyncIntervalMs {
		e.lastSyncMs += SyncIntervalMs
		e.sampleSync(now)
		if e.storage.SyncRegionFull() {
			return
		}
	}
}

func (e *Engine) sampleSync(nowMs uint32) {
	var masterMs uint64
	if e.beacon != nil {
		masterMs = e.beacon()
	}
	tempC100 := frame.TempUnavailable
	if e.temp != nil {
		if v, ok := e.temp.ReadTempC100(); ok {
			tempC100 = v
		}
	}
	sf := frame.SyncFrame{MasterUnixMs: masterMs, LocalMs: nowMs, TempC100: tempC100}
	sf.CRC16 = fixedpoint.CRC16(sf.CRCPrefix())

	e.syncFrames[e.syncIndex] = sf
	e.syncIndex++
	if e.syncIndex == frame.SyncPerPage {
		if err := e.flushSyncPageLocked(); err != nil {
			e.log.WithError(err).Error("sync page flush failed")
		}
	}
}

func (e *Engine) flushSyncPageLocked() error {
	frames := e.syncFrames[:e.syncIndex]
	firstID := e.syncFirstID
	err := e.storage.FlushSyncPage(frames, firstID)
	e.syncIndex = 0
	e.syncFirstID = e.storage.SyncCounter() + 1
	return err
}
