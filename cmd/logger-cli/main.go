// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Command logger-cli exposes the §6 command surface (erase, erase_all,
// record, dump, sdump, store, read, frame, aframe, status) over a logger
// node's flash image, standing in for the out-of-scope interactive prompt
// and command-line parser (§1), narrowed to the operations the core
// actually consumes/exposes. Command trees follow the retrieval pack's
// cobra idiom (one *cobra.Command per verb, RunE wrapping the core call).
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rdts/logger-core/fixedpoint"
	"github.com/rdts/logger-core/flash"
	"github.com/rdts/logger-core/loggercore"
	"github.com/rdts/logger-core/receiver"
	"github.com/rdts/logger-core/recorder"
	"github.com/rdts/logger-core/storage"
	"github.com/rdts/logger-core/timesync"
)

// defaultImagePages must be a power of two (flash.NewEmulated requires a
// power-of-two byte capacity); 8192 pages leaves 7936 pages of IMU/sync
// record region beyond the 256-page reserved tail (§3).
const defaultImagePages = 8192

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var imagePath string
	var logLevel string

	var core *loggercore.Core

	root := &cobra.Command{
		Use:   "logger-cli",
		Short: "Command surface for a single RDTS logger node's flash image",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			log := logrus.New()
			if lvl, err := logrus.ParseLevel(logLevel); err == nil {
				log.SetLevel(lvl)
			}
			c, err := buildCore(imagePath, log)
			if err != nil {
				return err
			}
			core = c
			return nil
		},
	}
	root.PersistentFlags().StringVar(&imagePath, "image", "logger.flash", "path to the flash image file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	sink := loggercore.NewMultiSink(writerSink{w: os.Stdout})

	root.AddCommand(
		&cobra.Command{
			Use:   "erase",
			Short: "Erase the IMU/sync log region, leaving tail storage intact",
			RunE: func(cmd *cobra.Command, args []string) error {
				core.Sink = sink
				return core.Erase()
			},
		},
		&cobra.Command{
			Use:   "erase_all",
			Short: "Erase the entire flash chip",
			RunE: func(cmd *cobra.Command, args []string) error {
				core.Sink = sink
				return core.EraseAll()
			},
		},
		&cobra.Command{
			Use:   "record [pages]",
			Short: "Start a recording session, optionally capped at N pages",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return core.Record(parseOptionalPages(args))
			},
		},
		&cobra.Command{
			Use:   "dump [pages]",
			Short: "Stream the IMU log in ASCII form",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				core.Sink = sink
				return core.Dump(parseOptionalPages(args))
			},
		},
		&cobra.Command{
			Use:   "sdump",
			Short: "Stream the sync log in ASCII form",
			RunE: func(cmd *cobra.Command, args []string) error {
				core.Sink = sink
				return core.SDump()
			},
		},
		&cobra.Command{
			Use:   "store <0-255> <ascii...>",
			Short: "Write ASCII text to a tail-storage slot",
			Args:  cobra.MinimumNArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				idx, ascii, err := loggercore.ParseStoreArgs(args)
				if err != nil {
					return err
				}
				return core.Store(idx, ascii)
			},
		},
		&cobra.Command{
			Use:   "read <0-255>",
			Short: "Read a tail-storage slot as ASCII",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				idx, err := strconv.ParseUint(args[0], 10, 32)
				if err != nil {
					return fmt.Errorf("logger-cli: invalid slot index %q: %w", args[0], err)
				}
				got, err := core.Read(uint32(idx))
				if err != nil {
					return err
				}
				fmt.Println(got)
				return nil
			},
		},
		&cobra.Command{
			Use:   "frame",
			Short: "Binary-format live-frame probe",
			RunE: func(cmd *cobra.Command, args []string) error {
				core.Sink = sink
				core.Frame(core.Clock.NowMs()+500, nil)
				return nil
			},
		},
		&cobra.Command{
			Use:   "aframe",
			Short: "ASCII-format live-frame probe",
			RunE: func(cmd *cobra.Command, args []string) error {
				core.Sink = sink
				core.AFrame(core.Clock.NowMs()+500, nil)
				return nil
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Print mode, discipline quality, and write-frontier status",
			RunE: func(cmd *cobra.Command, args []string) error {
				fmt.Println(core.Status())
				return nil
			},
		},
	)
	return root
}

func parseOptionalPages(args []string) uint32 {
	if len(args) == 0 {
		return 0
	}
	n, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return 0
	}
	return uint32(n)
}

// buildCore assembles a loggercore.Core over an emulated flash image,
// wiring the one-way C6/C7 chain described in §9 Design Notes.
func buildCore(imagePath string, log *logrus.Logger) (*loggercore.Core, error) {
	part, err := openFilePartition(imagePath, int64(defaultImagePages)*flash.PageSize)
	if err != nil {
		return nil, err
	}
	// No SPI bus is wired for this CLI; it always runs against an
	// emulated chip backed by the on-disk image, skipping flash.Detect's
	// external-NOR probe (§4.1 backend (b)).
	chip, err := flash.NewEmulated(part, int64(defaultImagePages)*flash.PageSize)
	if err != nil {
		return nil, err
	}
	st, _, _, err := storage.Open(chip, log)
	if err != nil {
		return nil, err
	}

	clock := fixedpoint.NewSystemClock()
	disc := timesync.New()
	rx := receiver.New(disc)
	sched := receiver.NewScheduler(receiver.SchedulerConfig{PeriodMs: 60_000, ScanDurationMs: 200, InitialPhaseOffsetMs: 50})

	rec := recorder.New(st, clock, nil, nil, func() uint64 {
		v, _ := rx.LastAccepted()
		return v
	}, log)

	serial := func() string { return fmt.Sprintf("RDTS-%08X", st.Geometry().TotalPages) }

	return loggercore.New(st, rec, disc, rx, sched, clock, nil, serial, loggercore.NewMultiSink(), log), nil
}
