// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package storage

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rdts/logger-core/flash/flashtest"
	"github.com/rdts/logger-core/frame"
)

func testFrames(n int) []frame.Frame20 {
	fs := make([]frame.Frame20, n)
	for i := range fs {
		fs[i] = frame.Frame20{Q0: 1, Q1: 2, Q2: 3, Q3: 4, Ax: 10, Ay: 20, Az: 30, Mx: 40, My: 50, Mz: 60}
	}
	return fs
}

func TestComputeGeometryTooSmall(t *testing.T) {
	_, err := ComputeGeometry(100)
	require.ErrorIs(t, err, ErrGeometry)
}

func TestComputeGeometrySplit(t *testing.T) {
	g, err := ComputeGeometry(256 + 8256)
	require.NoError(t, err)
	require.EqualValues(t, 8256, g.StorageBase)
	require.Equal(t, g.ImuPages+g.SyncPages, uint32(8256))
	require.GreaterOrEqual(t, g.SyncPages, uint32(1))
}

// Round-trip a single page: flush 12 frames, reboot, and check the boot
// scan recovers the write frontier and frame counter.
func TestFlushPageAndBootScan(t *testing.T) {
	chip := flashtest.New(256 + 1000)
	eng, _, _, err := Open(chip, nil)
	require.NoError(t, err)

	require.NoError(t, eng.FlushPage(testFrames(12), 0, 1000))

	eng2, imuReport, _, err := Open(chip, nil)
	require.NoError(t, err)
	require.EqualValues(t, 1, eng2.CurrentPage())
	require.EqualValues(t, 1, imuReport.ValidPages)
	require.EqualValues(t, 0, imuReport.CorruptPages)
	require.EqualValues(t, 12, eng2.FrameCounter())
}

// Flip a bit in byte 0 of a flushed page, then reboot: the footer still
// parses but the CRC mismatch marks the page corrupt.
func TestFlushPageCRCCorruption(t *testing.T) {
	chip := flashtest.New(256 + 1000)
	eng, _, _, err := Open(chip, nil)
	require.NoError(t, err)
	require.NoError(t, eng.FlushPage(testFrames(12), 0, 1000))

	chip.Data[0] ^= 0x01

	_, imuReport, _, err := Open(chip, nil)
	require.NoError(t, err)
	require.EqualValues(t, 1, imuReport.PagesFound)
	require.EqualValues(t, 0, imuReport.ValidPages)
	require.EqualValues(t, 1, imuReport.CorruptPages)
	require.EqualValues(t, 1, imuReport.CurrentPage)
	require.EqualValues(t, 12, imuReport.FrameCounter)
}

func TestFlushPageRegionFull(t *testing.T) {
	chip := flashtest.New(256 + 256) // record_pages=256, sync_pages clamp(256/800,1,255)=1, imu=255
	eng, _, _, err := Open(chip, nil)
	require.NoError(t, err)
	for i := uint32(0); i < eng.Geometry().ImuPages; i++ {
		require.NoError(t, eng.FlushPage(testFrames(12), i*12, 0))
	}
	require.ErrorIs(t, eng.FlushPage(testFrames(1), 99999, 0), ErrRegionFull)
}

func TestTailStorageWriteReadRoundTrip(t *testing.T) {
	chip := flashtest.New(256 + 1000)
	eng, _, _, err := Open(chip, nil)
	require.NoError(t, err)

	payloadA := make([]byte, SlotSize)
	for i := range payloadA {
		payloadA[i] = byte(i)
	}
	payloadB := make([]byte, SlotSize)
	for i := range payloadB {
		payloadB[i] = byte(255 - i)
	}
	require.NoError(t, eng.WriteSlot(5, payloadA))
	require.NoError(t, eng.WriteSlot(6, payloadB)) // same sector as 5 (pages 1005 and 1006 both lie in 992..1007)

	got, err := eng.ReadSlot(5, nil)
	require.NoError(t, err)
	require.Equal(t, payloadA, got)

	got, err = eng.ReadSlot(6, nil)
	require.NoError(t, err)
	require.Equal(t, payloadB, got)
}

func TestTailStorageSlotZeroIsVirtual(t *testing.T) {
	chip := flashtest.New(256 + 1000)
	eng, _, _, err := Open(chip, nil)
	require.NoError(t, err)

	got, err := eng.ReadSlot(0, func() string { return "SERIAL123" })
	require.NoError(t, err)
	require.Contains(t, string(got), "SERIAL123")
	require.Error(t, eng.WriteSlot(0, make([]byte, SlotSize)))
}

func TestTailStorageRejectsOutOfRange(t *testing.T) {
	chip := flashtest.New(256 + 1000)
	eng, _, _, err := Open(chip, nil)
	require.NoError(t, err)
	_, err = eng.ReadSlot(256, nil)
	require.Error(t, err)
	require.Error(t, eng.WriteSlot(300, make([]byte, SlotSize)))
}
