// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package beacon

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// DecodeErrorKind distinguishes the reasons Parse can reject a payload
// (§7 BeaconDecode taxonomy).
type DecodeErrorKind int

// Decode error kinds, matching original_source/rdts_decode.h's
// rdts_decode_result_t (minus ERR_INTERNAL: every failure mode here is
// reachable from an explicit length/field check, so there is no
// "shouldn't happen" catch-all left to report).
const (
	ErrLen DecodeErrorKind = iota + 1
	ErrVersion
	ErrAddrMode
	ErrAddrCount
	ErrReserved
	ErrTimeRange
	ErrMAC
)

func (k DecodeErrorKind) String() string {
	switch k {
	case ErrLen:
		return "LEN"
	case ErrVersion:
		return "VERSION"
	case ErrAddrMode:
		return "ADDR_MODE"
	case ErrAddrCount:
		return "ADDR_COUNT"
	case ErrReserved:
		return "RESERVED"
	case ErrTimeRange:
		return "TIME_RANGE"
	case ErrMAC:
		return "MAC"
	default:
		return "UNKNOWN"
	}
}

// DecodeError reports why Parse rejected a payload.
type DecodeError struct {
	Kind DecodeErrorKind
}

func (e *DecodeError) Error() string { return "beacon: decode: " + e.Kind.String() }

// ErrNoKey is returned by Build when authenticated construction is
// requested but no key is provisioned (§4.4 Build (authenticated)).
var ErrNoKey = errors.New("beacon: no key provisioned")

func decodeErr(k DecodeErrorKind) error { return &DecodeError{Kind: k} }

// Parse decodes an RDTS payload (the bytes following the 2-byte BLE
// manufacturer company identifier). key is the provisioned AES-128 key
// used to verify the MAC; it may be nil only if the packet turns out to
// have the NOAUTH flag set.
func Parse(payload []byte, key []byte) (Packet, error) {
	if len(payload) < headerSize {
		return Packet{}, decodeErr(ErrLen)
	}
	version := payload[0]
	if version != Version {
		return Packet{}, decodeErr(ErrVersion)
	}
	addrMode := AddrMode(payload[1])
	if addrMode > AddrList {
		return Packet{}, decodeErr(ErrAddrMode)
	}
	addrCount := payload[2]
	windowLen := payload[3]
	mode := payload[4]
	flags := payload[5]
	if payload[6] != 0 || payload[7] != 0 {
		return Packet{}, decodeErr(ErrReserved)
	}
	masterUnixMs := binary.LittleEndian.Uint64(payload[8:16])
	if masterUnixMs > MaxMasterUnixMs {
		return Packet{}, decodeErr(ErrTimeRange)
	}

	switch addrMode {
	case AddrList:
		if addrCount < 1 || addrCount > MaxAddrs {
			return Packet{}, decodeErr(ErrAddrCount)
		}
	case AddrNone, AddrAll:
		if addrCount != 0 {
			return Packet{}, decodeErr(ErrAddrCount)
		}
	}

	addrBytes := int(addrCount) * 4
	noAuth := flags&NoAuth != 0
	wantLen := headerSize + addrBytes
	macPresent := len(payload) == wantLen+MACLen
	if !macPresent && !(noAuth && len(payload) == wantLen) {
		return Packet{}, decodeErr(ErrLen)
	}

	addrList := make([]uint32, addrCount)
	for i := range addrList {
		off := headerSize + i*4
		addrList[i] = binary.LittleEndian.Uint32(payload[off : off+4])
	}

	if macPresent {
		signedPart := payload[:wantLen]
		mac := payload[wantLen : wantLen+MACLen]
		if key == nil {
			return Packet{}, decodeErr(ErrMAC)
		}
		ok, err := VerifyTruncated(key, signedPart, mac)
		if err != nil || !ok {
			return Packet{}, decodeErr(ErrMAC)
		}
	} else if !noAuth {
		return Packet{}, decodeErr(ErrMAC)
	}

	return Packet{
		Version: version, AddrMode: addrMode, WindowLen: windowLen,
		Mode: mode, Flags: flags, MasterUnixMs: masterUnixMs, AddrList: addrList,
	}, nil
}

// buildPrefix writes the fixed header and address list, matching the wire
// layout of §3.
func buildPrefix(p Packet) ([]byte, error) {
	if p.AddrMode == AddrList {
		if len(p.AddrList) < 1 || len(p.AddrList) > MaxAddrs {
			return nil, fmt.Errorf("beacon: build: LIST mode requires 1..%d addresses, got %d", MaxAddrs, len(p.AddrList))
		}
	} else if len(p.AddrList) != 0 {
		return nil, fmt.Errorf("beacon: build: %v mode must carry zero addresses", p.AddrMode)
	}

	buf := make([]byte, headerSize+len(p.AddrList)*4)
	buf[0] = Version
	buf[1] = byte(p.AddrMode)
	buf[2] = byte(len(p.AddrList))
	buf[3] = p.WindowLen
	buf[4] = p.Mode
	buf[5] = p.Flags
	binary.LittleEndian.PutUint64(buf[8:16], p.MasterUnixMs)
	for i, a := range p.AddrList {
		binary.LittleEndian.PutUint32(buf[headerSize+i*4:headerSize+i*4+4], a)
	}
	return buf, nil
}

// Build constructs the wire bytes of an authenticated beacon packet,
// appending the truncated CMAC computed with key. It refuses if key is
// nil (§4.4 Build (authenticated)).
func Build(p Packet, key []byte) ([]byte, error) {
	if key == nil {
		return nil, ErrNoKey
	}
	prefix, err := buildPrefix(p)
	if err != nil {
		return nil, err
	}
	mac, err := CMAC(key, prefix)
	if err != nil {
		return nil, fmt.Errorf("beacon: build: %w", err)
	}
	return append(prefix, mac[:MACLen]...), nil
}

// BuildNoAuth constructs the wire bytes of an unauthenticated beacon
// packet. p.Flags must have NoAuth set. Per §9's redesign note, this never
// requires a key, matching Parse's contract that NOAUTH permits an absent
// MAC.
func BuildNoAuth(p Packet) ([]byte, error) {
	if p.Flags&NoAuth == 0 {
		return nil, fmt.Errorf("beacon: build noauth: NOAUTH flag not set")
	}
	return buildPrefix(p)
}
