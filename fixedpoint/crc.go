// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package fixedpoint

import "github.com/sigurn/crc16"

// crcTable is CRC-16/CCITT: poly 0x1021, init 0xFFFF, no input/output
// reflection, no final XOR (§2 C2, GLOSSARY). Teacher (periph's
// devices/lepton/internal) hand-rolls the same polynomial as a reversed
// table; we use the dedicated ecosystem implementation instead since this
// exact parameter set ships as a named preset.
var crcTable = crc16.MakeTable(crc16.CCITT_FALSE)

// CRC16 computes CRC-16/CCITT over d.
func CRC16(d []byte) uint16 {
	return crc16.Checksum(d, crcTable)
}
