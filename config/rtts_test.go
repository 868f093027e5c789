// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// memStore is a fixed-size in-memory config.Store for tests.
type memStore struct {
	data []byte
}

func newMemStore() *memStore { return &memStore{data: make([]byte, RecordSize)} }

func (m *memStore) Read(buf []byte) error  { copy(buf, m.data); return nil }
func (m *memStore) Write(buf []byte) error { copy(m.data, buf); return nil }

func TestRTTSRoundTrip(t *testing.T) {
	r := RTTSRecord{
		BeaconPeriodMs: 1000, BurstSpanMs: 50, BurstLen: 3, TxPowerDbm: -4,
		AuthMode: AuthProd, KeyLen: 16, DefaultMode: 2,
	}
	copy(r.Key[:], []byte("0123456789ABCDEF"))

	store := newMemStore()
	require.NoError(t, Save(store, r))

	got, err := Load(store)
	require.NoError(t, err)
	require.Equal(t, r.BeaconPeriodMs, got.BeaconPeriodMs)
	require.Equal(t, r.BurstSpanMs, got.BurstSpanMs)
	require.Equal(t, r.BurstLen, got.BurstLen)
	require.Equal(t, r.TxPowerDbm, got.TxPowerDbm)
	require.Equal(t, r.AuthMode, got.AuthMode)
	require.Equal(t, r.Key, got.Key)
	require.Equal(t, r.DefaultMode, got.DefaultMode)
	require.Equal(t, []byte("0123456789ABCDEF"), got.BuildKey())
}

func TestRTTSRejectsBadMagic(t *testing.T) {
	store := newMemStore()
	store.data[0] = 0x00
	_, err := Load(store)
	require.ErrorIs(t, err, ErrRecordInvalid)
}

func TestRTTSRejectsBadVersion(t *testing.T) {
	r := RTTSRecord{}
	b := r.Marshal()
	b[4] = 2
	_, err := Unmarshal(b)
	require.ErrorIs(t, err, ErrRecordInvalid)
}

func TestHostConfigDefaultsWithoutFile(t *testing.T) {
	cfg, err := LoadHost("nonexistent-rdts-config", t.TempDir())
	require.NoError(t, err)
	require.Equal(t, Defaults(), cfg)
}
