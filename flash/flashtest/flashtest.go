// Copyright 2016 Google Inc. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package flashtest is meant to be used to test drivers over a fake flash
// chip, the way periph's conn/spi/spitest fakes an SPI bus.
package flashtest

import (
	"fmt"

	"github.com/rdts/logger-core/flash"
)

// Chip is an in-memory flash.Chip backed by a byte slice, initialized to
// the erased state (all 0xFF).
type Chip struct {
	Data []byte
	ID   flash.ID

	// FailRead/FailProgram/FailErase, when non-nil, is returned in place of
	// the operation's normal result, to exercise §7 error propagation.
	FailRead    error
	FailProgram error
	FailErase   error

	ProgramCount int
	EraseCount   int
}

// New returns a Chip with pages worth of erased (0xFF) storage.
func New(pages uint32) *Chip {
	d := make([]byte, int(pages)*flash.PageSize)
	for i := range d {
		d[i] = 0xFF
	}
	return &Chip{Data: d, ID: flash.ID{Manufacturer: 0xEF, Type: 0x40, Capacity: 16}}
}

// Pages implements flash.Chip.
func (c *Chip) Pages() uint32 { return uint32(len(c.Data) / flash.PageSize) }

// ReadID implements flash.Chip.
func (c *Chip) ReadID() (flash.ID, error) { return c.ID, nil }

// Read implements flash.Chip.
func (c *Chip) Read(addr uint32, buf []byte) error {
	if c.FailRead != nil {
		return c.FailRead
	}
	if int(addr)+len(buf) > len(c.Data) {
		return fmt.Errorf("flashtest: read out of range")
	}
	copy(buf, c.Data[addr:int(addr)+len(buf)])
	return nil
}

// ProgramPage implements flash.Chip. It models real NOR semantics: bits can
// only go from 1 to 0, never back, without an erase.
func (c *Chip) ProgramPage(addr uint32, buf []byte) error {
	if c.FailProgram != nil {
		return c.FailProgram
	}
	if len(buf) > flash.PageSize {
		return fmt.Errorf("flashtest: program exceeds page size")
	}
	if int(addr)+len(buf) > len(c.Data) {
		return fmt.Errorf("flashtest: program out of range")
	}
	c.ProgramCount++
	for i, b := range buf {
		c.Data[int(addr)+i] &= b
	}
	return nil
}

// EraseSector implements flash.Chip.
func (c *Chip) EraseSector(addr uint32) error {
	if c.FailErase != nil {
		return c.FailErase
	}
	base := addr - (addr % flash.SectorSize)
	if int(base)+flash.SectorSize > len(c.Data) {
		return fmt.Errorf("flashtest: erase out of range")
	}
	c.EraseCount++
	for i := base; i < base+flash.SectorSize; i++ {
		c.Data[i] = 0xFF
	}
	return nil
}

// EraseChip implements flash.Chip.
func (c *Chip) EraseChip() error {
	if c.FailErase != nil {
		return c.FailErase
	}
	for i := range c.Data {
		c.Data[i] = 0xFF
	}
	return nil
}
