// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package storage

import (
	"fmt"

	"github.com/rdts/logger-core/flash"
	"github.com/rdts/logger-core/frame"
)

// EraseLog erases every sector backing the IMU and sync regions, leaving
// the reserved tail storage untouched, and resets the write frontiers
// (§6 command surface `erase`).
func (e *Engine) EraseLog() error {
	pagesPerSector := uint32(flash.SectorSize / frame.PageSize)
	recordPages := e.geom.ImuPages + e.geom.SyncPages
	for base := uint32(0); base < recordPages; base += pagesPerSector {
		// A sector that runs past recordPages also holds the first tail
		// pages; they are read before the erase and programmed back after it.
		var keep []byte
		if end := base + pagesPerSector; end > recordPages {
			keep = e.scratch[:(end-recordPages)*frame.PageSize]
			if err := e.chip.Read(recordPages*frame.PageSize, keep); err != nil {
				return fmt.Errorf("%w: erase log read tail at page %d: %v", flash.ErrIO, recordPages, err)
			}
		}
		if err := e.chip.EraseSector(base * frame.PageSize); err != nil {
			return fmt.Errorf("%w: erase log sector at page %d: %v", flash.ErrIO, base, err)
		}
		for off := 0; off < len(keep); off += frame.PageSize {
			if err := e.chip.ProgramPage(recordPages*frame.PageSize+uint32(off), keep[off:off+frame.PageSize]); err != nil {
				return fmt.Errorf("%w: erase log restore tail page: %v", flash.ErrIO, err)
			}
		}
	}
	e.resetFrontiers()
	e.log.Info("log region erased")
	return nil
}

// EraseAll erases the entire chip, including reserved tail storage (§6
// command surface `erase_all`).
func (e *Engine) EraseAll() error {
	if err := e.chip.EraseChip(); err != nil {
		return fmt.Errorf("%w: erase chip: %v", flash.ErrIO, err)
	}
	e.resetFrontiers()
	e.log.Info("chip erased")
	return nil
}

func (e *Engine) resetFrontiers() {
	e.currentPage = 0
	e.frameCounter = 0
	e.syncCurrentIdx = 0
	e.syncCounter = 0
}
