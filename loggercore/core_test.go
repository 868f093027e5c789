// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package loggercore

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rdts/logger-core/beacon"
	"github.com/rdts/logger-core/flash/flashtest"
	"github.com/rdts/logger-core/frame"
	"github.com/rdts/logger-core/receiver"
	"github.com/rdts/logger-core/recorder"
	"github.com/rdts/logger-core/storage"
	"github.com/rdts/logger-core/timesync"
)

type fakeClock struct{ ms uint32 }

func (c *fakeClock) NowMs() uint32 { return c.ms }

type capturingSink struct {
	lines []string
	bytes []byte
}

func (s *capturingSink) Write(p []byte) (int, error) { s.bytes = append(s.bytes, p...); return len(p), nil }
func (s *capturingSink) WriteLine(l string)           { s.lines = append(s.lines, l) }

func newTestCore(t *testing.T) (*Core, *fakeClock) {
	chip := flashtest.New(256 + 1000)
	st, _, _, err := storage.Open(chip, nil)
	require.NoError(t, err)
	clk := &fakeClock{ms: 1_000_000}
	disc := timesync.New()
	rx := receiver.New(disc)
	sched := receiver.NewScheduler(receiver.SchedulerConfig{PeriodMs: 60_000, ScanDurationMs: 200})
	rec := recorder.New(st, clk, nil, nil, func() uint64 { v, _ := rx.LastAccepted(); return v }, nil)
	sink := NewMultiSink(&capturingSink{})
	core := New(st, rec, disc, rx, sched, clk, []byte("0123456789ABCDEF"), func() string { return "SN-1" }, sink, nil)
	return core, clk
}

func TestOnBeaconPacketAcceptsAndLocksScheduler(t *testing.T) {
	core, _ := newTestCore(t)
	pkt := beacon.Packet{AddrMode: beacon.AddrAll, MasterUnixMs: 1_700_000_000_000}
	payload, err := beacon.Build(pkt, core.BeaconKey)
	require.NoError(t, err)

	require.NoError(t, core.OnBeaconPacket(payload))
	last, have := core.Receiver.LastAccepted()
	require.True(t, have)
	require.EqualValues(t, 1_700_000_000_000, last)
	require.True(t, core.Scheduler.Locked())
}

func TestStatusReflectsMode(t *testing.T) {
	core, _ := newTestCore(t)
	require.Contains(t, core.Status(), "mode=IDLE")
	require.Contains(t, core.Status(), "quality=INVALID")

	require.NoError(t, core.Record(0))
	require.Contains(t, core.Status(), "mode=RECORDING")
}

func TestStoreAndReadRoundTrip(t *testing.T) {
	core, _ := newTestCore(t)
	require.NoError(t, core.Store(5, "hello-slot"))
	got, err := core.Read(5)
	require.NoError(t, err)
	require.Equal(t, "hello-slot", got)
}

func TestReadVirtualSlotZeroReturnsSerial(t *testing.T) {
	core, _ := newTestCore(t)
	got, err := core.Read(0)
	require.NoError(t, err)
	require.Equal(t, "SN-1", got)
}

func TestDumpStreamsAllFrames(t *testing.T) {
	core, _ := newTestCore(t)
	require.NoError(t, core.Record(0))
	for i := 0; i < 12; i++ {
		require.NoError(t, core.Recorder.LogFrame(frameSample()))
	}
	require.NoError(t, core.Recorder.Stop())
	require.NoError(t, core.Dump(0))

	cs := core.Sink.sinks[0].(*capturingSink)
	joined := strings.Join(cs.lines, "\n")
	require.Contains(t, joined, "@PAGE 0")
}

func frameSample() frame.Frame20 {
	return frame.Frame20{Q0: 1, Q1: 2, Q2: 3, Q3: 4, Ax: 10, Ay: 20, Az: 30, Mx: 40, My: 50, Mz: 60}
}
