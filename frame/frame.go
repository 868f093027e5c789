// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package frame defines the on-flash wire layouts shared by the storage
// engine and the recording/playback engine (§3 DATA MODEL): the 20-byte IMU
// frame, the 16-byte page footers, and the 16-byte sync frame. All layouts
// are little-endian and byte-packed; teacher reinterprets bytes via raw
// struct pointers (devices/lepton/internal.Big16 &c) but §9 Design Notes
// calls for explicit serialize/deserialize instead of placement-new style
// reinterpretation, so every type here has Marshal/Unmarshal pairs built on
// encoding/binary.
package frame

import "encoding/binary"

// Sizes of the wire structures, in bytes.
const (
	Size          = 20 // Frame20
	FooterSize    = 16 // PageFooter / SyncPageFooter
	SyncSize      = 16 // SyncFrame
	PageSize      = 256
	FramesPerPage = 12 // (PageSize-FooterSize)/Size
	SyncPerPage   = 15 // (PageSize-FooterSize)/SyncSize

	PageMagic = 0x50414745 // "PAGE", little-endian on the wire
	SyncMagic = 0x53594E43 // "SYNC", little-endian on the wire
)

// Frame20 is one 20-byte IMU sample: a Q15 quaternion plus raw accel/mag.
type Frame20 struct {
	Q0, Q1, Q2, Q3 int16
	Ax, Ay, Az     int16
	Mx, My, Mz     int16
}

// Marshal writes f into a 20-byte little-endian buffer.
func (f Frame20) Marshal() []byte {
	b := make([]byte, Size)
	f.Put(b)
	return b
}

// Put serializes f into b, which must be at least Size bytes.
func (f Frame20) Put(b []byte) {
	binary.LittleEndian.PutUint16(b[0:2], uint16(f.Q0))
	binary.LittleEndian.PutUint16(b[2:4], uint16(f.Q1))
	binary.LittleEndian.PutUint16(b[4:6], uint16(f.Q2))
	binary.LittleEndian.PutUint16(b[6:8], uint16(f.Q3))
	binary.LittleEndian.PutUint16(b[8:10], uint16(f.Ax))
	binary.LittleEndian.PutUint16(b[10:12], uint16(f.Ay))
	binary.LittleEndian.PutUint16(b[12:14], uint16(f.Az))
	binary.LittleEndian.PutUint16(b[14:16], uint16(f.Mx))
	binary.LittleEndian.PutUint16(b[16:18], uint16(f.My))
	binary.LittleEndian.PutUint16(b[18:20], uint16(f.Mz))
}

// UnmarshalFrame20 parses a 20-byte little-endian buffer into a Frame20.
func UnmarshalFrame20(b []byte) Frame20 {
	_ = b[19]
	return Frame20{
		Q0: int16(binary.LittleEndian.Uint16(b[0:2])),
		Q1: int16(binary.LittleEndian.Uint16(b[2:4])),
		Q2: int16(binary.LittleEndian.Uint16(b[4:6])),
		Q3: int16(binary.LittleEndian.Uint16(b[6:8])),
		Ax: int16(binary.LittleEndian.Uint16(b[8:10])),
		Ay: int16(binary.LittleEndian.Uint16(b[10:12])),
		Az: int16(binary.LittleEndian.Uint16(b[12:14])),
		Mx: int16(binary.LittleEndian.Uint16(b[14:16])),
		My: int16(binary.LittleEndian.Uint16(b[16:18])),
		Mz: int16(binary.LittleEndian.Uint16(b[18:20])),
	}
}

// PageFooter is the 16-byte descriptor at offset PageSize-FooterSize of an
// IMU page.
type PageFooter struct {
	Magic         uint32
	ValidFrames   uint16
	CRC16         uint16
	FirstFrameID  uint32
	PageStartMs   uint32
}

// Put serializes the footer into b (at least FooterSize bytes), in field
// order, for CRC computation and programming alike.
func (f PageFooter) Put(b []byte) {
	binary.LittleEndian.PutUint32(b[0:4], f.Magic)
	binary.LittleEndian.PutUint16(b[4:6], f.ValidFrames)
	binary.LittleEndian.PutUint16(b[6:8], f.CRC16)
	binary.LittleEndian.PutUint32(b[8:12], f.FirstFrameID)
	binary.LittleEndian.PutUint32(b[12:16], f.PageStartMs)
}

// Marshal returns the 16-byte serialization of f.
func (f PageFooter) Marshal() []byte {
	b := make([]byte, FooterSize)
	f.Put(b)
	return b
}

// UnmarshalPageFooter parses a 16-byte buffer into a PageFooter.
func UnmarshalPageFooter(b []byte) PageFooter {
	_ = b[15]
	return PageFooter{
		Magic:        binary.LittleEndian.Uint32(b[0:4]),
		ValidFrames:  binary.LittleEndian.Uint16(b[4:6]),
		CRC16:        binary.LittleEndian.Uint16(b[6:8]),
		FirstFrameID: binary.LittleEndian.Uint32(b[8:12]),
		PageStartMs:  binary.LittleEndian.Uint32(b[12:16]),
	}
}

// CRCPrefix returns the footer bytes preceding the CRC16 field (bytes
// [0:6]), the portion folded into the page CRC alongside the frame bytes.
func (f PageFooter) CRCPrefix() []byte {
	b := make([]byte, 6)
	binary.LittleEndian.PutUint32(b[0:4], f.Magic)
	binary.LittleEndian.PutUint16(b[4:6], f.ValidFrames)
	return b
}

// SyncFrame ties a local monotonic timestamp to the last accepted beacon's
// master Unix time (§3).
type SyncFrame struct {
	MasterUnixMs uint64
	LocalMs      uint32
	TempC100     int16 // sentinel math.MinInt16 == unavailable
	CRC16        uint16
}

// TempUnavailable is the sentinel TempC100 value meaning "no die temperature
// reading available".
const TempUnavailable = int16(-32768)

// putPrefix serializes the sync frame's first 14 bytes (everything but CRC16)
// into b, which must be at least SyncSize bytes.
func (s SyncFrame) putPrefix(b []byte) {
	binary.LittleEndian.PutUint64(b[0:8], s.MasterUnixMs)
	binary.LittleEndian.PutUint32(b[8:12], s.LocalMs)
	binary.LittleEndian.PutUint16(b[12:14], uint16(s.TempC100))
}

// Marshal returns the 16-byte serialization of s, including CRC16.
func (s SyncFrame) Marshal() []byte {
	b := make([]byte, SyncSize)
	s.putPrefix(b)
	binary.LittleEndian.PutUint16(b[14:16], s.CRC16)
	return b
}

// CRCPrefix returns the 14 bytes of s that the CRC is computed over.
func (s SyncFrame) CRCPrefix() []byte {
	b := make([]byte, 14)
	s.putPrefix(b)
	return b
}

// UnmarshalSyncFrame parses a 16-byte buffer into a SyncFrame.
func UnmarshalSyncFrame(b []byte) SyncFrame {
	_ = b[15]
	return SyncFrame{
		MasterUnixMs: binary.LittleEndian.Uint64(b[0:8]),
		LocalMs:      binary.LittleEndian.Uint32(b[8:12]),
		TempC100:     int16(binary.LittleEndian.Uint16(b[12:14])),
		CRC16:        binary.LittleEndian.Uint16(b[14:16]),
	}
}

// SyncPageFooter shares PageFooter's shape, with SyncMagic and a 1-based
// FirstSyncID.
type SyncPageFooter struct {
	Magic        uint32
	ValidFrames  uint16
	CRC16        uint16
	FirstSyncID  uint32
	PageStartMs  uint32
}

// Put serializes the footer into b (at least FooterSize bytes).
func (f SyncPageFooter) Put(b []byte) {
	binary.LittleEndian.PutUint32(b[0:4], f.Magic)
	binary.LittleEndian.PutUint16(b[4:6], f.ValidFrames)
	binary.LittleEndian.PutUint16(b[6:8], f.CRC16)
	binary.LittleEndian.PutUint32(b[8:12], f.FirstSyncID)
	binary.LittleEndian.PutUint32(b[12:16], f.PageStartMs)
}

// Marshal returns the 16-byte serialization of f.
func (f SyncPageFooter) Marshal() []byte {
	b := make([]byte, FooterSize)
	f.Put(b)
	return b
}

// UnmarshalSyncPageFooter parses a 16-byte buffer into a SyncPageFooter.
func UnmarshalSyncPageFooter(b []byte) SyncPageFooter {
	_ = b[15]
	return SyncPageFooter{
		Magic:       binary.LittleEndian.Uint32(b[0:4]),
		ValidFrames: binary.LittleEndian.Uint16(b[4:6]),
		CRC16:       binary.LittleEndian.Uint16(b[6:8]),
		FirstSyncID: binary.LittleEndian.Uint32(b[8:12]),
		PageStartMs: binary.LittleEndian.Uint32(b[12:16]),
	}
}

// CRCPrefix returns the footer bytes preceding the CRC16 field.
func (f SyncPageFooter) CRCPrefix() []byte {
	b := make([]byte, 6)
	binary.LittleEndian.PutUint32(b[0:4], f.Magic)
	binary.LittleEndian.PutUint16(b[4:6], f.ValidFrames)
	return b
}
