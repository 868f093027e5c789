// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package storage

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/rdts/logger-core/fixedpoint"
	"github.com/rdts/logger-core/flash"
	"github.com/rdts/logger-core/frame"
)

// ErrRegionFull is returned by FlushPage/FlushSyncPage when the respective
// region has no room for another page.
var ErrRegionFull = errors.New("storage: region full")

// Engine owns the flash chip, its geometry, and the IMU/sync write
// frontiers (§4.2). It is single-threaded, matching §5's cooperative
// scheduling model: every method must be called from the same goroutine
// (the main loop).
type Engine struct {
	chip flash.Chip
	geom Geometry
	log  *logrus.Entry

	currentPage  uint32
	frameCounter uint32

	syncCurrentIdx uint32 // index within the sync region, not an absolute page
	syncCounter    uint32

	scratch [flash.SectorSize]byte
}

// Open computes geometry for a chip, scans both regions for the write
// frontier, and returns a ready-to-use Engine plus the two boot reports.
func Open(chip flash.Chip, log *logrus.Logger) (*Engine, BootReport, BootReport, error) {
	if log == nil {
		log = logrus.New()
	}
	geom, err := ComputeGeometry(chip.Pages())
	if err != nil {
		return nil, BootReport{}, BootReport{}, err
	}
	imuReport, err := scanIMU(chip, geom.ImuPages)
	if err != nil {
		return nil, BootReport{}, BootReport{}, err
	}
	syncReport, syncCounter, err := scanSync(chip, geom)
	if err != nil {
		return nil, BootReport{}, BootReport{}, err
	}
	e := &Engine{
		chip:           chip,
		geom:           geom,
		log:            log.WithField("component", "storage"),
		currentPage:    imuReport.CurrentPage,
		frameCounter:   imuReport.FrameCounter,
		syncCurrentIdx: syncReport.CurrentPage,
		syncCounter:    syncCounter,
	}
	e.log.WithFields(logrus.Fields{
		"imu_pages_found": imuReport.PagesFound, "imu_valid": imuReport.ValidPages, "imu_corrupt": imuReport.CorruptPages,
		"sync_pages_found": syncReport.PagesFound, "frame_counter": e.frameCounter,
	}).Info("boot scan complete")
	return e, imuReport, syncReport, nil
}

// Geometry returns the engine's computed geometry.
func (e *Engine) Geometry() Geometry { return e.geom }

// CurrentPage is the next IMU page index that will be written.
func (e *Engine) CurrentPage() uint32 { return e.currentPage }

// FrameCounter is the monotonic id of the next frame to be recorded.
func (e *Engine) FrameCounter() uint32 { return e.frameCounter }

// SyncCounter is the number of sync frames flushed so far (dense, 1-based
// ids run 1..SyncCounter).
func (e *Engine) SyncCounter() uint32 { return e.syncCounter }

// SyncCurrentPage is the next sync-region page index (relative to the
// region's start) that will be written; also the write frontier playback
// streams up to.
func (e *Engine) SyncCurrentPage() uint32 { return e.syncCurrentIdx }

// IMURegionFull reports whether the IMU region has no room for another
// page.
func (e *Engine) IMURegionFull() bool { return e.currentPage >= e.geom.ImuPages }

// SyncRegionFull reports whether the sync region has no room for another
// page.
func (e *Engine) SyncRegionFull() bool { return e.syncCurrentIdx >= e.geom.SyncPages }

// buildFooteredPage lays down frame bytes, 0xFF padding, and a footer whose
// CRC16 covers [frame region || footer prefix] (§4.2 Page flush).
func buildFooteredPage(frameBytes []byte, footer func(crc uint16) []byte) []byte {
	page := make([]byte, frame.PageSize)
	for i := range page {
		page[i] = 0xFF
	}
	copy(page, frameBytes)
	copy(page[footerOffset:], footer(0))
	crc := fixedpoint.CRC16(crcInput(page))
	copy(page[footerOffset:], footer(crc))
	return page
}

// FlushPage programs one IMU page containing frames (0 < len(frames) <=
// FramesPerPage), advancing the write frontier. It returns ErrRegionFull
// without touching flash if the IMU region is already exhausted.
func (e *Engine) FlushPage(frames []frame.Frame20, firstFrameID, pageStartMs uint32) error {
	if e.IMURegionFull() {
		return ErrRegionFull
	}
	if len(frames) == 0 || len(frames) > frame.FramesPerPage {
		return fmt.Errorf("storage: flush page: invalid frame count %d", len(frames))
	}
	frameBytes := make([]byte, len(frames)*frame.Size)
	for i, f := range frames {
		f.Put(frameBytes[i*frame.Size : (i+1)*frame.Size])
	}
	page := buildFooteredPage(frameBytes, func(crc uint16) []byte {
		return frame.PageFooter{
			Magic: frame.PageMagic, ValidFrames: uint16(len(frames)),
			CRC16: crc, FirstFrameID: firstFrameID, PageStartMs: pageStartMs,
		}.Marshal()
	})
	if err := e.chip.ProgramPage(e.currentPage*frame.PageSize, page); err != nil {
		return fmt.Errorf("%w: flush imu page %d: %v", flash.ErrIO, e.currentPage, err)
	}
	e.log.WithFields(logrus.Fields{"page": e.currentPage, "frames": len(frames), "first_id": firstFrameID}).Debug("flushed imu page")
	e.currentPage++
	e.frameCounter = firstFrameID + uint32(len(frames))
	return nil
}

// FlushSyncPage programs one sync page containing frames (0 < len(frames)
// <= SyncPerPage), advancing the sync frontier. firstSyncID is the 1-based
// id of frames[0] (§3: first_sync_id = sync_counter - valid_frames + 1).
func (e *Engine) FlushSyncPage(frames []frame.SyncFrame, firstSyncID uint32) error {
	if e.SyncRegionFull() {
		return ErrRegionFull
	}
	if len(frames) == 0 || len(frames) > frame.SyncPerPage {
		return fmt.Errorf("storage: flush sync page: invalid frame count %d", len(frames))
	}
	frameBytes := make([]byte, len(frames)*frame.SyncSize)
	for i, f := range frames {
		copy(frameBytes[i*frame.SyncSize:(i+1)*frame.SyncSize], f.Marshal())
	}
	page := buildFooteredPage(frameBytes, func(crc uint16) []byte {
		return frame.SyncPageFooter{
			Magic: frame.SyncMagic, ValidFrames: uint16(len(frames)),
			CRC16: crc, FirstSyncID: firstSyncID, PageStartMs: frames[0].LocalMs,
		}.Marshal()
	})
	addr := (e.geom.SyncRegionStart() + e.syncCurrentIdx) * frame.PageSize
	if err := e.chip.ProgramPage(addr, page); err != nil {
		return fmt.Errorf("%w: flush sync page %d: %v", flash.ErrIO, e.syncCurrentIdx, err)
	}
	e.log.WithFields(logrus.Fields{"sync_page": e.syncCurrentIdx, "frames": len(frames), "first_id": firstSyncID}).Debug("flushed sync page")
	e.syncCurrentIdx++
	e.syncCounter = firstSyncID + uint32(len(frames)) - 1
	return nil
}
