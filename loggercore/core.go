// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package loggercore

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/rdts/logger-core/beacon"
	"github.com/rdts/logger-core/fixedpoint"
	"github.com/rdts/logger-core/receiver"
	"github.com/rdts/logger-core/recorder"
	"github.com/rdts/logger-core/storage"
	"github.com/rdts/logger-core/timesync"
)

// SerialProvider returns the device's formatted serial number (§6 tail
// slot 0).
type SerialProvider func() string

// Core owns every subsystem's mutable state for one logger node (§9
// Design Notes): storage, recording/playback, beacon decode key, clock
// discipline, and receiver policy/scheduler. Every command-surface
// operation and every main-loop poll takes *Core by reference instead of
// touching process-wide globals.
type Core struct {
	Storage    *storage.Engine
	Recorder   *recorder.Engine
	Discipline *timesync.Discipline
	Receiver   *receiver.Policy
	Scheduler  *receiver.Scheduler
	Clock      fixedpoint.Clock

	BeaconKey []byte // AES-128 key verifying incoming beacons; nil disables auth beacons
	Serial    SerialProvider

	Sink *MultiSink
	log  *logrus.Entry

	statusScanActive bool
	statusHoldover   bool
}

// New assembles a Core from its already-constructed subsystems. Discipline
// and Receiver are wired one-way per §9's cyclic-reference note: Receiver
// holds a reference to Discipline and calls it; Discipline never calls
// back into Receiver or Scheduler.
func New(st *storage.Engine, rec *recorder.Engine, disc *timesync.Discipline, rx *receiver.Policy, sched *receiver.Scheduler, clock fixedpoint.Clock, key []byte, serial SerialProvider, sink *MultiSink, log *logrus.Logger) *Core {
	if log == nil {
		log = logrus.New()
	}
	return &Core{
		Storage: st, Recorder: rec, Discipline: disc, Receiver: rx, Scheduler: sched, Clock: clock,
		BeaconKey: key, Serial: serial, Sink: sink, log: log.WithField("component", "loggercore"),
	}
}

// OnBeaconPacket is the one-way coordinator path from §9 Design Notes: a
// BLE scan callback deposits a raw manufacturer-data payload, the main
// loop decodes it with beacon.Parse, hands the result to Receiver (which
// consults Discipline for prediction only), and on acceptance tells
// Discipline to update and Scheduler to re-lock. It never runs the other
// direction.
func (c *Core) OnBeaconPacket(payload []byte) error {
	pkt, err := beacon.Parse(payload, c.BeaconKey)
	if err != nil {
		c.log.WithError(err).Debug("beacon decode rejected")
		return err
	}
	rtcRx := c.Clock.NowMs()
	decision := c.Receiver.Accept(pkt.MasterUnixMs, rtcRx)
	if !decision.Accepted {
		c.log.WithField("reason", decision.Reject).Debug("beacon rejected by receiver policy")
		return nil
	}
	if c.Scheduler != nil {
		c.Scheduler.OnBeaconAccepted(pkt.MasterUnixMs)
	}
	c.log.WithFields(logrus.Fields{
		"master_unix_ms": pkt.MasterUnixMs, "freq_ppm": decision.Report.FreqPpm,
	}).Info("beacon accepted")
	return nil
}

// PollScan drives the scan scheduler once per main-loop tick, returning
// whether a scan window should start now and for how long (§4.6 Poll
// contract).
func (c *Core) PollScan(scanActive bool) (receiver.PollAction, uint32) {
	c.statusScanActive = scanActive
	unixNow := c.Discipline.NowUnixMs(c.Clock.NowMs())
	return c.Scheduler.Poll(unixNow, scanActive, c.Discipline.IsInitialized())
}

// LastAccepted narrows Receiver.LastAccepted to recorder.BeaconTime's
// shape, wiring the sync scheduler's "last accepted beacon" sample source
// (§4.3 Sync scheduler) without recorder importing receiver.
func (c *Core) LastAccepted() uint64 {
	v, _ := c.Receiver.LastAccepted()
	return v
}

// SetHoldover records the out-of-scope reacquire policy's silence
// diagnosis, reflected by Status (§4.6 HOLDOVER).
func (c *Core) SetHoldover(holdover bool) { c.statusHoldover = holdover }

// Status formats the §6 `status` command's single-line summary.
func (c *Core) Status() string {
	last, have := c.Receiver.LastAccepted()
	quality := c.Receiver.QualityWithHoldover(c.statusHoldover)
	return fmt.Sprintf("mode=%s quality=%s last_beacon_ms=%d have_beacon=%t page=%d/%d sync_page=%d now_ms=%d",
		c.Recorder.Mode(), quality, last, have,
		c.Storage.CurrentPage(), c.Storage.Geometry().ImuPages, c.Storage.SyncCurrentPage(),
		c.Discipline.NowUnixMs(c.Clock.NowMs()))
}
