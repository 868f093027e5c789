// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package storage

import (
	"fmt"

	"github.com/rdts/logger-core/fixedpoint"
	"github.com/rdts/logger-core/flash"
	"github.com/rdts/logger-core/frame"
)

// PageRecord is one raw IMU or sync page read back for playback: the frame
// bytes, the parsed footer fields, and whether the footer's CRC actually
// validated. CRCOK is exposed so callers can report the real comparison
// result instead of the firmware's hardcoded "true" (§9 open question).
type PageRecord struct {
	FrameBytes   []byte
	Magic        uint32
	ValidFrames  uint16
	CRC16        uint16
	CRCOK        bool
	FirstID      uint32
	PageStartMs  uint32
}

// ReadIMUPage reads and parses IMU page index p (§4.3 playback page load).
func (e *Engine) ReadIMUPage(p uint32) (PageRecord, error) {
	if p >= e.currentPage {
		return PageRecord{}, fmt.Errorf("storage: read imu page %d: out of written range (current=%d)", p, e.currentPage)
	}
	page := make([]byte, frame.PageSize)
	if err := e.chip.Read(p*frame.PageSize, page); err != nil {
		return PageRecord{}, fmt.Errorf("%w: read imu page %d: %v", flash.ErrIO, p, err)
	}
	footer := frame.UnmarshalPageFooter(page[footerOffset:])
	return PageRecord{
		FrameBytes:  page[:footerOffset],
		Magic:       footer.Magic,
		ValidFrames: footer.ValidFrames,
		CRC16:       footer.CRC16,
		CRCOK:       footer.ValidFrames <= frame.FramesPerPage && fixedpoint.CRC16(crcInput(page)) == footer.CRC16,
		FirstID:     footer.FirstFrameID,
		PageStartMs: footer.PageStartMs,
	}, nil
}

// ReadSyncPage reads and parses sync page index i within the sync region
// (§4.3 sdump).
func (e *Engine) ReadSyncPage(i uint32) (PageRecord, error) {
	if i >= e.syncCurrentIdx {
		return PageRecord{}, fmt.Errorf("storage: read sync page %d: out of written range (current=%d)", i, e.syncCurrentIdx)
	}
	addr := (e.geom.SyncRegionStart() + i) * frame.PageSize
	page := make([]byte, frame.PageSize)
	if err := e.chip.Read(addr, page); err != nil {
		return PageRecord{}, fmt.Errorf("%w: read sync page %d: %v", flash.ErrIO, i, err)
	}
	footer := frame.UnmarshalSyncPageFooter(page[footerOffset:])
	return PageRecord{
		FrameBytes:  page[:footerOffset],
		Magic:       footer.Magic,
		ValidFrames: footer.ValidFrames,
		CRC16:       footer.CRC16,
		CRCOK:       footer.ValidFrames <= frame.SyncPerPage && fixedpoint.CRC16(crcInput(page)) == footer.CRC16,
		FirstID:     footer.FirstSyncID,
		PageStartMs: footer.PageStartMs,
	}, nil
}
