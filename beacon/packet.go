// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package beacon implements the authenticated beacon wire format and its
// AES-128-CMAC verification (§4.4, C5). It covers the payload after the
// 2-byte BLE manufacturer company identifier, which is the out-of-scope
// radio transport's concern (§1).
package beacon

// AddrMode selects how the address list field is interpreted.
type AddrMode uint8

// Valid AddrMode values (§3 Beacon packet).
const (
	AddrNone AddrMode = 0
	AddrAll  AddrMode = 1
	AddrList AddrMode = 2
)

// MaxAddrs is the maximum number of 4-byte addresses a LIST-mode packet may
// carry.
const MaxAddrs = 8

// MACLen is the number of truncated CMAC bytes appended to an authenticated
// packet.
const MACLen = 8

// Version is the only wire version this codec understands.
const Version = 1

// NoAuth is the flags bit permitting MAC omission.
const NoAuth = 1 << 0

// MaxMasterUnixMs rejects implausible timestamps (year ~2100), per §3.
const MaxMasterUnixMs = 4_102_444_800_000

// headerSize is the fixed portion of the packet preceding the address list.
const headerSize = 16

// Packet is a decoded (or to-be-built) beacon packet.
type Packet struct {
	Version      uint8
	AddrMode     AddrMode
	WindowLen    uint8
	Mode         uint8
	Flags        uint8
	MasterUnixMs uint64
	AddrList     []uint32 // len(AddrList) == AddrCount on the wire
}

// NoAuthSet reports whether the NOAUTH flag bit is set.
func (p Packet) NoAuthSet() bool { return p.Flags&NoAuth != 0 }
