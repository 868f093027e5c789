// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package flash

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type memPartition struct {
	data []byte
}

func newMemPartition(size int) *memPartition { return &memPartition{data: make([]byte, size)} }

func (m *memPartition) ReadAt(p []byte, off int64) (int, error) {
	return copy(p, m.data[off:]), nil
}

func (m *memPartition) WriteAt(p []byte, off int64) (int, error) {
	return copy(m.data[off:], p), nil
}

func (m *memPartition) Size() int64 { return int64(len(m.data)) }

func TestEmulatedCapacityByte(t *testing.T) {
	part := newMemPartition(1 << 20)
	em, err := NewEmulated(part, 1<<16)
	require.NoError(t, err)
	id, err := em.ReadID()
	require.NoError(t, err)
	require.EqualValues(t, 16, id.Capacity)
	require.Equal(t, int64(1)<<id.Capacity, int64(1<<16))
}

func TestEmulatedRejectsNonPowerOfTwo(t *testing.T) {
	part := newMemPartition(1 << 20)
	_, err := NewEmulated(part, 100000)
	require.Error(t, err)
}

func TestEmulatedProgramReadRoundTrip(t *testing.T) {
	part := newMemPartition(1 << 16)
	em, err := NewEmulated(part, 1<<16)
	require.NoError(t, err)
	buf := make([]byte, PageSize)
	for i := range buf {
		buf[i] = byte(i)
	}
	require.NoError(t, em.ProgramPage(256, buf))
	got := make([]byte, PageSize)
	require.NoError(t, em.Read(256, got))
	require.Equal(t, buf, got)
}

func TestDetectFallsBackToEmulatedWhenNorAbsent(t *testing.T) {
	absentBus := Bus{Tx: func(w, r []byte) error {
		for i := range r {
			r[i] = 0xFF
		}
		return nil
	}}
	part := newMemPartition(1 << 16)
	chip, id, err := Detect(absentBus, 256, part, 1<<16)
	require.NoError(t, err)
	require.NotNil(t, chip)
	require.EqualValues(t, 16, id.Capacity)
}

func TestDetectPrefersNorWhenPresent(t *testing.T) {
	bus := Bus{Tx: func(w, r []byte) error {
		if len(w) > 0 && w[0] == cmdReadID {
			copy(r, []byte{0xEF, 0x40, 0x18})
		}
		return nil
	}}
	chip, id, err := Detect(bus, 1<<20, nil, 0)
	require.NoError(t, err)
	require.NotNil(t, chip)
	require.Equal(t, byte(0xEF), id.Manufacturer)
}
