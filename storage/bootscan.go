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

// BootReport summarizes a boot-time scan of one region (§4.2 Boot scan).
type BootReport struct {
	PagesFound   uint32
	ValidPages   uint32
	CorruptPages uint32
	CurrentPage  uint32
	FrameCounter uint32
}

// scanIMU scans pages [0, imuPages) of chip, stopping at the first page
// whose footer magic isn't PageMagic. That index becomes the write
// frontier (CurrentPage). FrameCounter is reconstructed from the last
// scanned page's footer regardless of whether that page's CRC validated,
// matching §8 scenario S2 (CRC corruption doesn't erase the frontier).
func scanIMU(chip flash.Chip, imuPages uint32) (BootReport, error) {
	var r BootReport
	page := make([]byte, frame.PageSize)
	var last frame.PageFooter
	haveLast := false
	for p := uint32(0); p < imuPages; p++ {
		if err := chip.Read(p*frame.PageSize, page); err != nil {
			return BootReport{}, fmt.Errorf("storage: boot scan imu page %d: %w", p, err)
		}
		footer := frame.UnmarshalPageFooter(page[footerOffset:])
		if footer.Magic != frame.PageMagic {
			break
		}
		r.PagesFound++
		last = footer
		haveLast = true
		if footer.ValidFrames <= frame.FramesPerPage && fixedpoint.CRC16(crcInput(page)) == footer.CRC16 {
			r.ValidPages++
		} else {
			r.CorruptPages++
		}
	}
	r.CurrentPage = r.PagesFound
	if haveLast && last.ValidFrames <= frame.FramesPerPage {
		r.FrameCounter = last.FirstFrameID + uint32(last.ValidFrames)
	}
	return r, nil
}

// scanSync scans the sync region the same way scanIMU does, reconstructing
// the dense 1-based sync frame counter from the last page's footer.
func scanSync(chip flash.Chip, geom Geometry) (BootReport, uint32, error) {
	var r BootReport
	page := make([]byte, frame.PageSize)
	var last frame.SyncPageFooter
	haveLast := false
	for i := uint32(0); i < geom.SyncPages; i++ {
		p := geom.SyncRegionStart() + i
		if err := chip.Read(p*frame.PageSize, page); err != nil {
			return BootReport{}, 0, fmt.Errorf("storage: boot scan sync page %d: %w", p, err)
		}
		footer := frame.UnmarshalSyncPageFooter(page[footerOffset:])
		if footer.Magic != frame.SyncMagic {
			break
		}
		r.PagesFound++
		last = footer
		haveLast = true
		if footer.ValidFrames <= frame.SyncPerPage && fixedpoint.CRC16(crcInput(page)) == footer.CRC16 {
			r.ValidPages++
		} else {
			r.CorruptPages++
		}
	}
	r.CurrentPage = r.PagesFound
	var syncCounter uint32
	if haveLast && last.ValidFrames <= frame.SyncPerPage {
		syncCounter = last.FirstSyncID + uint32(last.ValidFrames) - 1
	}
	return r, syncCounter, nil
}
