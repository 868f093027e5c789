// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package flash

import (
	"fmt"
	"time"
)

// JEDEC command bytes (grounded in original_source/P25QxxDRIVER/P25Qxx.h).
const (
	cmdReadID      = 0x9F
	cmdRead        = 0x03
	cmdPageProgram = 0x02
	cmdSectorErase = 0x20
	cmdChipErase   = 0xC7
	cmdReadStatus  = 0x05
	cmdWriteEnable = 0x06

	statusWIP = 0x01

	pageProgramTimeout = 10 * time.Millisecond
	sectorEraseTimeout = 2 * time.Second
	chipEraseTimeout   = 100 * time.Second
)

// Bus is the minimal half-duplex SPI transaction primitive the NOR backend
// needs: write cmd (and any address/data), then read resp bytes, all under
// one CS assertion. It stands in for the out-of-scope SPI/partition-backed
// flash driver (spec.md §1); periph's conn/spi.Conn is the shape this is
// narrowed from.
type Bus struct {
	// Tx asserts CS, writes w, reads len(r) bytes into r, deasserts CS.
	Tx func(w []byte, r []byte) error
}

// NOR is a JEDEC-command-set NOR flash backend (§4.1 backend (a)).
type NOR struct {
	bus   Bus
	pages uint32
	sleep func(time.Duration)
}

// NewNOR wraps bus as a Chip with the given total page count.
func NewNOR(bus Bus, pages uint32) *NOR {
	return &NOR{bus: bus, pages: pages, sleep: time.Sleep}
}

// Pages implements Chip.
func (n *NOR) Pages() uint32 { return n.pages }

// ReadID implements Chip. Absent chips return id bytes of 0x00 or 0xFF,
// which Detect treats as "no external flash present".
func (n *NOR) ReadID() (ID, error) {
	r := make([]byte, 3)
	if err := n.bus.Tx([]byte{cmdReadID}, r); err != nil {
		return ID{}, fmt.Errorf("flash: read id: %w", err)
	}
	return ID{Manufacturer: r[0], Type: r[1], Capacity: r[2]}, nil
}

// Read implements Chip.
func (n *NOR) Read(addr uint32, buf []byte) error {
	cmd := []byte{cmdRead, byte(addr >> 16), byte(addr >> 8), byte(addr)}
	if err := n.bus.Tx(cmd, buf); err != nil {
		return fmt.Errorf("%w: read at 0x%06x: %v", ErrIO, addr, err)
	}
	return nil
}

// ProgramPage implements Chip.
func (n *NOR) ProgramPage(addr uint32, buf []byte) error {
	if len(buf) > PageSize {
		return fmt.Errorf("flash: program %d bytes exceeds page size", len(buf))
	}
	if err := n.writeEnable(); err != nil {
		return err
	}
	cmd := append([]byte{cmdPageProgram, byte(addr >> 16), byte(addr >> 8), byte(addr)}, buf...)
	if err := n.bus.Tx(cmd, nil); err != nil {
		return fmt.Errorf("%w: program page at 0x%06x: %v", ErrIO, addr, err)
	}
	return n.waitReady(pageProgramTimeout)
}

// EraseSector implements Chip.
func (n *NOR) EraseSector(addr uint32) error {
	if err := n.writeEnable(); err != nil {
		return err
	}
	cmd := []byte{cmdSectorErase, byte(addr >> 16), byte(addr >> 8), byte(addr)}
	if err := n.bus.Tx(cmd, nil); err != nil {
		return fmt.Errorf("%w: erase sector at 0x%06x: %v", ErrIO, addr, err)
	}
	return n.waitReady(sectorEraseTimeout)
}

// EraseChip implements Chip.
func (n *NOR) EraseChip() error {
	if err := n.writeEnable(); err != nil {
		return err
	}
	if err := n.bus.Tx([]byte{cmdChipErase}, nil); err != nil {
		return fmt.Errorf("%w: chip erase: %v", ErrIO, err)
	}
	return n.waitReady(chipEraseTimeout)
}

func (n *NOR) writeEnable() error {
	if err := n.bus.Tx([]byte{cmdWriteEnable}, nil); err != nil {
		return fmt.Errorf("%w: write enable: %v", ErrIO, err)
	}
	return nil
}

func (n *NOR) readStatus() (byte, error) {
	r := make([]byte, 1)
	if err := n.bus.Tx([]byte{cmdReadStatus}, r); err != nil {
		return 0, fmt.Errorf("%w: read status: %v", ErrIO, err)
	}
	return r[0], nil
}

// waitReady polls the status register's WIP bit until it clears or timeout
// elapses, matching P25Qxx.h's waitForReady.
func (n *NOR) waitReady(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		st, err := n.readStatus()
		if err != nil {
			return err
		}
		if st&statusWIP == 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: timed out waiting for WIP clear", ErrIO)
		}
		n.sleep(time.Millisecond)
	}
}
