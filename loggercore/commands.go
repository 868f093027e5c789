// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package loggercore

import (
	"fmt"
	"strings"

	"github.com/rdts/logger-core/recorder"
)

// Erase implements the §6 `erase` command: wipes the IMU/sync log region,
// leaving tail storage intact.
func (c *Core) Erase() error { return c.Storage.EraseLog() }

// EraseAll implements the §6 `erase_all` command: wipes the entire chip.
func (c *Core) EraseAll() error { return c.Storage.EraseAll() }

// Record implements the §6 `record [pages]` command: starts a recording
// session capped at pageLimit IMU pages (0 means unlimited).
func (c *Core) Record(pageLimit uint32) error {
	return c.Recorder.StartSession(pageLimit)
}

// Dump implements the §6 `dump [pages]` command: streams the IMU log in
// ASCII form to Sink, driving the cooperative Playback to completion.
func (c *Core) Dump(pageLimit uint32) error {
	pb, err := c.Recorder.StartPlayback(recorder.FormatASCII, pageLimit)
	if err != nil {
		return err
	}
	for {
		done, err := pb.Tick(c.Sink)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

// DumpBinary is the binary-format counterpart of Dump, used by the HTTP
// export path (§6 "Flash binary streams").
func (c *Core) DumpBinary(pageLimit uint32) error {
	pb, err := c.Recorder.StartPlayback(recorder.FormatBinary, pageLimit)
	if err != nil {
		return err
	}
	for {
		done, err := pb.Tick(c.Sink)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

// SDump implements the §6 `sdump` command: streams every written sync page
// in ASCII form.
func (c *Core) SDump() error {
	pb, err := c.Recorder.StartSyncPlayback()
	if err != nil {
		return err
	}
	for {
		done, err := pb.Tick(c.Sink)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

// Store implements the §6 `store <0-255> <ascii>` command: writes ascii,
// null-padded to the 256-byte slot size, to tail-storage slot index.
func (c *Core) Store(index uint32, ascii string) error {
	b := make([]byte, 256)
	copy(b, []byte(ascii))
	return c.Storage.WriteSlot(index, b)
}

// Read implements the §6 `read <0-255>` command: returns the slot's
// contents as a trimmed, null-terminated string for display.
func (c *Core) Read(index uint32) (string, error) {
	b, err := c.Storage.ReadSlot(index, func() string { return c.Serial() })
	if err != nil {
		return "", err
	}
	if i := indexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b), nil
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

// Frame implements the §6 `frame` command: a binary-format live-frame
// probe, bounded by deadlineMs on the Core's clock.
func (c *Core) Frame(deadlineMs uint32, raw recorder.RawAccelMag) {
	probe := c.Recorder.StartLiveFrameProbe(recorder.FormatBinary, deadlineMs, raw)
	for !probe.Service(c.Sink) {
	}
}

// AFrame implements the §6 `aframe` command: the ASCII-format counterpart
// of Frame.
func (c *Core) AFrame(deadlineMs uint32, raw recorder.RawAccelMag) {
	probe := c.Recorder.StartLiveFrameProbe(recorder.FormatASCII, deadlineMs, raw)
	for !probe.Service(c.Sink) {
	}
}

// ParseStoreArgs splits a `store <index> <ascii...>` command line's
// arguments (already tokenized on whitespace) into the target index and
// the remaining text, rejoined with single spaces.
func ParseStoreArgs(args []string) (index uint32, ascii string, err error) {
	if len(args) < 1 {
		return 0, "", fmt.Errorf("loggercore: store requires an index argument")
	}
	var idx uint32
	if _, err := fmt.Sscanf(args[0], "%d", &idx); err != nil {
		return 0, "", fmt.Errorf("loggercore: store: invalid index %q: %w", args[0], err)
	}
	return idx, strings.Join(args[1:], " "), nil
}
