// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package storage

import (
	"fmt"

	"github.com/rdts/logger-core/flash"
	"github.com/rdts/logger-core/frame"
)

// SlotSize is the size of one indexed tail-storage slot, one per page.
const SlotSize = frame.PageSize

// SerialProvider returns the device's formatted serial number, backing the
// read-only virtual slot 0.
type SerialProvider func() string

// ReadSlot reads the 256-byte slot at index (§4.2 Indexed tail storage).
// Index 0 is virtual and returns the device serial via serial; indices >=
// 256 are rejected.
func (e *Engine) ReadSlot(index uint32, serial SerialProvider) ([]byte, error) {
	if index >= TailPages {
		return nil, fmt.Errorf("storage: slot index %d out of range", index)
	}
	if index == 0 {
		s := serial()
		b := make([]byte, SlotSize)
		copy(b, []byte(s))
		return b, nil
	}
	addr := (e.geom.StorageBase + index) * frame.PageSize
	b := make([]byte, SlotSize)
	if err := e.chip.Read(addr, b); err != nil {
		return nil, fmt.Errorf("%w: read slot %d: %v", flash.ErrIO, index, err)
	}
	return b, nil
}

// WriteSlot writes a 256-byte payload at index via read-modify-erase-write
// of the containing 4KB sector (§4.2). Index 0 is read-only; indices >=
// 256 are rejected.
func (e *Engine) WriteSlot(index uint32, payload []byte) error {
	if index == 0 {
		return fmt.Errorf("storage: slot 0 is read-only")
	}
	if index >= TailPages {
		return fmt.Errorf("storage: slot index %d out of range", index)
	}
	if len(payload) != SlotSize {
		return fmt.Errorf("storage: slot payload must be %d bytes, got %d", SlotSize, len(payload))
	}
	pagesPerSector := flash.SectorSize / frame.PageSize // 16
	slotPage := e.geom.StorageBase + index
	sectorBase := slotPage - (slotPage % uint32(pagesPerSector))
	sectorAddr := sectorBase * frame.PageSize

	scratch := e.scratch[:flash.SectorSize]
	if err := e.chip.Read(sectorAddr, scratch); err != nil {
		return fmt.Errorf("%w: tail rmw read sector at slot %d: %v", flash.ErrIO, index, err)
	}
	offsetInSector := int(slotPage-sectorBase) * frame.PageSize
	copy(scratch[offsetInSector:offsetInSector+SlotSize], payload)

	if err := e.chip.EraseSector(sectorAddr); err != nil {
		return fmt.Errorf("%w: tail rmw erase sector at slot %d: %v", flash.ErrIO, index, err)
	}
	for p := 0; p < pagesPerSector; p++ {
		pageAddr := sectorAddr + uint32(p*frame.PageSize)
		pageBuf := scratch[p*frame.PageSize : (p+1)*frame.PageSize]
		if err := e.chip.ProgramPage(pageAddr, pageBuf); err != nil {
			return fmt.Errorf("%w: tail rmw program page %d at slot %d: %v", flash.ErrIO, p, index, err)
		}
	}
	return nil
}
