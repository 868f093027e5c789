// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package flash

import (
	"fmt"
	"math/bits"
)

// Partition is a writable, randomly addressable byte window backing the
// emulated flash, standing in for the out-of-scope SPI/partition-backed
// flash driver's partition mode (§4.1 backend (b)).
type Partition interface {
	ReadAt(p []byte, off int64) (int, error)
	WriteAt(p []byte, off int64) (int, error)
	Size() int64
}

// Emulated backs a Chip with a power-of-two-capacity window over a
// Partition, rather than external NOR.
type Emulated struct {
	part Partition
	size int64
	pages uint32
}

// NewEmulated wraps part as a Chip. capacity must be a power of two and no
// larger than part.Size().
func NewEmulated(part Partition, capacity int64) (*Emulated, error) {
	if capacity <= 0 || capacity&(capacity-1) != 0 {
		return nil, fmt.Errorf("flash: emulated capacity %d is not a power of two", capacity)
	}
	if capacity > part.Size() {
		return nil, fmt.Errorf("flash: emulated capacity %d exceeds partition size %d", capacity, part.Size())
	}
	return &Emulated{part: part, size: capacity, pages: uint32(capacity / PageSize)}, nil
}

// Pages implements Chip.
func (e *Emulated) Pages() uint32 { return e.pages }

// ReadID implements Chip. The capacity byte c satisfies (1<<c) == capacity,
// per §4.1.
func (e *Emulated) ReadID() (ID, error) {
	return ID{Manufacturer: 0xEF, Type: 0x40, Capacity: byte(bits.Len64(uint64(e.size)) - 1)}, nil
}

// Read implements Chip.
func (e *Emulated) Read(addr uint32, buf []byte) error {
	n, err := e.part.ReadAt(buf, int64(addr))
	if err != nil {
		return fmt.Errorf("%w: emulated read at 0x%06x: %v", ErrIO, addr, err)
	}
	if n != len(buf) {
		return fmt.Errorf("%w: emulated read at 0x%06x: short read", ErrIO, addr)
	}
	return nil
}

// ProgramPage implements Chip. Emulated flash has no real program-vs-erase
// asymmetry; it simply overwrites the bytes.
func (e *Emulated) ProgramPage(addr uint32, buf []byte) error {
	if len(buf) > PageSize {
		return fmt.Errorf("flash: program %d bytes exceeds page size", len(buf))
	}
	n, err := e.part.WriteAt(buf, int64(addr))
	if err != nil {
		return fmt.Errorf("%w: emulated program at 0x%06x: %v", ErrIO, addr, err)
	}
	if n != len(buf) {
		return fmt.Errorf("%w: emulated program at 0x%06x: short write", ErrIO, addr)
	}
	return nil
}

// EraseSector implements Chip, writing 0xFF across the sector.
func (e *Emulated) EraseSector(addr uint32) error {
	base := addr - (addr % SectorSize)
	blank := make([]byte, SectorSize)
	for i := range blank {
		blank[i] = 0xFF
	}
	if _, err := e.part.WriteAt(blank, int64(base)); err != nil {
		return fmt.Errorf("%w: emulated erase sector at 0x%06x: %v", ErrIO, base, err)
	}
	return nil
}

// EraseChip implements Chip.
func (e *Emulated) EraseChip() error {
	blank := make([]byte, SectorSize)
	for i := range blank {
		blank[i] = 0xFF
	}
	for off := int64(0); off < e.size; off += SectorSize {
		if _, err := e.part.WriteAt(blank, off); err != nil {
			return fmt.Errorf("%w: emulated chip erase at 0x%06x: %v", ErrIO, off, err)
		}
	}
	return nil
}
