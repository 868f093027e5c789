// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package frame

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrame20RoundTrip(t *testing.T) {
	f := Frame20{Q0: 1, Q1: 2, Q2: 3, Q3: 4, Ax: 10, Ay: 20, Az: 30, Mx: 40, My: 50, Mz: 60}
	got := UnmarshalFrame20(f.Marshal())
	require.Equal(t, f, got)
}

func TestFrame20RoundTripNegative(t *testing.T) {
	f := Frame20{Q0: -32768, Q1: 32767, Q2: -1, Q3: 0, Ax: -100, Ay: 100, Az: 0, Mx: -32768, My: 32767, Mz: -5}
	got := UnmarshalFrame20(f.Marshal())
	require.Equal(t, f, got)
}

func TestPageFooterRoundTrip(t *testing.T) {
	f := PageFooter{Magic: PageMagic, ValidFrames: 12, CRC16: 0xBEEF, FirstFrameID: 7, PageStartMs: 1000}
	got := UnmarshalPageFooter(f.Marshal())
	require.Equal(t, f, got)
}

func TestSyncFrameRoundTrip(t *testing.T) {
	s := SyncFrame{MasterUnixMs: 1700000000000, LocalMs: 12345, TempC100: TempUnavailable, CRC16: 0xABCD}
	got := UnmarshalSyncFrame(s.Marshal())
	require.Equal(t, s, got)
}

func TestSyncPageFooterRoundTrip(t *testing.T) {
	f := SyncPageFooter{Magic: SyncMagic, ValidFrames: 16, CRC16: 0x1234, FirstSyncID: 1, PageStartMs: 500}
	got := UnmarshalSyncPageFooter(f.Marshal())
	require.Equal(t, f, got)
}
