// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package config implements the beacon master's persistent configuration
// record (§6 "Persistent configuration (beacon master)") and the host-side
// settings layer for the CLI binaries, grounded in
// original_source/RDTS_CLI/RDTSserver.h's rdtsm_config_t.
package config

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// RTTSMagic identifies a valid persisted record ("RTTS", little-endian).
const RTTSMagic = 0x52545453

// RTTSVersion is the only record version this package writes or accepts.
const RTTSVersion = 1

// KeyLen is the fixed width of the stored AES-128 beacon key field.
const KeyLen = 32

// ReservedLen is the fixed width of the record's reserved tail.
const ReservedLen = 32

// RecordSize is the fixed on-disk size of an RTTS record, matching the
// value every record's own size field must carry.
const RecordSize = 4 + 1 + 2 + 4 + 2 + 1 + 1 + 1 + 1 + KeyLen + 1 + ReservedLen

// AuthMode selects how the beacon master authenticates outgoing beacons.
// AuthDev permits unauthenticated construction regardless of a packet's
// NOAUTH flag (original_source/RDTS_CLI/RDTSserver.h RDTSM_AUTH_DEV);
// AuthProd requires a key (RDTSM_AUTH_PROD) unless cmd/beacon-master's
// build command is run with --no-auth. This is the
// development-mode toggle SPEC_FULL.md's "Supplemented features" adds.
type AuthMode uint8

// AuthMode values.
const (
	AuthProd AuthMode = 0
	AuthDev  AuthMode = 1
)

// RTTSRecord is the beacon master's persistent configuration (§6).
type RTTSRecord struct {
	BeaconPeriodMs uint32
	BurstSpanMs    uint16
	BurstLen       uint8
	TxPowerDbm     int8
	AuthMode       AuthMode
	KeyLen         uint8
	Key            [KeyLen]byte
	DefaultMode    uint8
}

// ErrRecordInvalid is returned by Unmarshal when the magic, version, or
// size fields don't match what this package writes (§6 "Load rejects
// mismatched magic/version/size").
var ErrRecordInvalid = errors.New("config: rtts record invalid")

// Marshal serializes r into a RecordSize-byte NVS blob.
func (r RTTSRecord) Marshal() []byte {
	b := make([]byte, RecordSize)
	binary.LittleEndian.PutUint32(b[0:4], RTTSMagic)
	b[4] = RTTSVersion
	binary.LittleEndian.PutUint16(b[5:7], RecordSize)
	binary.LittleEndian.PutUint32(b[7:11], r.BeaconPeriodMs)
	binary.LittleEndian.PutUint16(b[11:13], r.BurstSpanMs)
	b[13] = r.BurstLen
	b[14] = byte(r.TxPowerDbm)
	b[15] = byte(r.AuthMode)
	b[16] = r.KeyLen
	copy(b[17:17+KeyLen], r.Key[:])
	b[17+KeyLen] = r.DefaultMode
	// b[17+KeyLen+1 : ] is the reserved tail, left zero.
	return b
}

// Unmarshal parses an NVS blob into an RTTSRecord, rejecting any mismatch
// in magic, version, or declared size (§6).
func Unmarshal(b []byte) (RTTSRecord, error) {
	if len(b) < RecordSize {
		return RTTSRecord{}, fmt.Errorf("%w: short record (%d bytes)", ErrRecordInvalid, len(b))
	}
	magic := binary.LittleEndian.Uint32(b[0:4])
	version := b[4]
	size := binary.LittleEndian.Uint16(b[5:7])
	if magic != RTTSMagic {
		return RTTSRecord{}, fmt.Errorf("%w: bad magic 0x%08X", ErrRecordInvalid, magic)
	}
	if version != RTTSVersion {
		return RTTSRecord{}, fmt.Errorf("%w: bad version %d", ErrRecordInvalid, version)
	}
	if size != RecordSize {
		return RTTSRecord{}, fmt.Errorf("%w: bad size %d", ErrRecordInvalid, size)
	}
	var r RTTSRecord
	r.BeaconPeriodMs = binary.LittleEndian.Uint32(b[7:11])
	r.BurstSpanMs = binary.LittleEndian.Uint16(b[11:13])
	r.BurstLen = b[13]
	r.TxPowerDbm = int8(b[14])
	r.AuthMode = AuthMode(b[15])
	r.KeyLen = b[16]
	copy(r.Key[:], b[17:17+KeyLen])
	r.DefaultMode = b[17+KeyLen]
	return r, nil
}

// Store is the narrow NVS-slot contract the beacon master persists its
// configuration through: a single fixed-size read/write, the master-side
// analogue of storage.Engine's indexed tail slots.
type Store interface {
	Read(buf []byte) error
	Write(buf []byte) error
}

// Load reads and parses the record from store.
func Load(store Store) (RTTSRecord, error) {
	b := make([]byte, RecordSize)
	if err := store.Read(b); err != nil {
		return RTTSRecord{}, fmt.Errorf("config: rtts load: %w", err)
	}
	return Unmarshal(b)
}

// Save serializes and writes r to store.
func Save(store Store, r RTTSRecord) error {
	if err := store.Write(r.Marshal()); err != nil {
		return fmt.Errorf("config: rtts save: %w", err)
	}
	return nil
}

// BuildKey returns r's provisioned key, or nil if KeyLen is 0 (no key
// provisioned).
func (r RTTSRecord) BuildKey() []byte {
	if r.KeyLen == 0 {
		return nil
	}
	n := int(r.KeyLen)
	if n > KeyLen {
		n = KeyLen
	}
	return r.Key[:n]
}
