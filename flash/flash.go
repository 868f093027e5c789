// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package flash defines the narrow, synchronous interface the storage
// engine uses to talk to NOR flash (§4.1, C1), and two concrete backends: a
// JEDEC-command-set driver over a SPI-like connection, and an emulated
// backend over a writable partition window. This mirrors the way teacher
// exposes conn/spi.Port/Conn as a thin interface with swappable concrete
// buses (sysfs, allwinner, bcm283x, ...).
package flash

import "errors"

// Page and Sector are the flash geometry constants from §3.
const (
	PageSize   = 256
	SectorSize = 4096
)

// ErrIO is returned (possibly wrapped) by a Chip operation that failed at
// the transport layer. Per §7, callers never retry automatically.
var ErrIO = errors.New("flash: io error")

// ID identifies a flash chip's JEDEC triple.
type ID struct {
	Manufacturer byte
	Type         byte
	Capacity     byte // log2(capacity in bytes), JEDEC convention
}

// Chip is the synchronous interface to raw NOR flash (§4.1). Writes within
// one page never cross a 256-byte boundary; callers are responsible for
// alignment.
type Chip interface {
	// Read reads len(buf) bytes starting at addr.
	Read(addr uint32, buf []byte) error
	// ProgramPage programs up to PageSize bytes at addr. addr..addr+len(buf)
	// must not cross a page boundary.
	ProgramPage(addr uint32, buf []byte) error
	// EraseSector erases the 4KB sector containing addr.
	EraseSector(addr uint32) error
	// EraseChip erases the entire chip.
	EraseChip() error
	// ReadID returns the chip's JEDEC identification triple.
	ReadID() (ID, error)
	// Pages returns the total addressable page count.
	Pages() uint32
}
