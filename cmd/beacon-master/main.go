// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Command beacon-master exposes the beacon master's §6 persistent
// configuration (init/show), its time-anchor accessors
// (original_source/RDTS_CLI/RDTSserver.h's rdtsm_set_time_anchor /
// rdtsm_now_unix_ms / rdtsm_uptime_ms), and a build command that
// constructs one wire-format beacon packet the way the real master would
// before handing it to its BLE advertiser, standing in for the
// out-of-scope BLE radio control (§1).
package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rdts/logger-core/beacon"
	"github.com/rdts/logger-core/config"
	"github.com/rdts/logger-core/fixedpoint"
	"github.com/rdts/logger-core/timesync"
)

// log is set by the root command's PersistentPreRunE before any subcommand
// runs; subcommands that want structured logging use it directly rather
// than threading a *logrus.Logger through every constructor.
var log *logrus.Logger

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	var logLevel string

	root := &cobra.Command{
		Use:   "beacon-master",
		Short: "Configuration and beacon construction for the RDTS beacon master",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			log = newLogger(logLevel)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "beacon-master.rtts", "path to the persisted RTTS config record")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(
		newInitConfigCmd(&configPath),
		newShowConfigCmd(&configPath),
		newNowCmd(&configPath),
		newSetAnchorCmd(&configPath),
		newBuildCmd(&configPath),
	)
	return root
}

func newLogger(level string) *logrus.Logger {
	log := logrus.New()
	if lvl, err := logrus.ParseLevel(level); err == nil {
		log.SetLevel(lvl)
	}
	return log
}

func newInitConfigCmd(configPath *string) *cobra.Command {
	var periodMs uint32
	var burstSpanMs uint16
	var burstLen uint8
	var txPower int8
	var authDev bool
	var keyHex string

	cmd := &cobra.Command{
		Use:   "init-config",
		Short: "Write a fresh RTTS configuration record",
		RunE: func(cmd *cobra.Command, args []string) error {
			rec := config.RTTSRecord{
				BeaconPeriodMs: periodMs,
				BurstSpanMs:    burstSpanMs,
				BurstLen:       burstLen,
				TxPowerDbm:     txPower,
				AuthMode:       config.AuthProd,
			}
			if authDev {
				rec.AuthMode = config.AuthDev
			}
			if keyHex != "" {
				key, err := hex.DecodeString(keyHex)
				if err != nil {
					return fmt.Errorf("beacon-master: invalid --key hex: %w", err)
				}
				if len(key) > config.KeyLen {
					return fmt.Errorf("beacon-master: key longer than %d bytes", config.KeyLen)
				}
				rec.KeyLen = uint8(len(key))
				copy(rec.Key[:], key)
			}
			if err := config.Save(fileStore{path: *configPath}, rec); err != nil {
				return err
			}
			log.WithField("path", *configPath).Info("wrote beacon master config")
			return nil
		},
	}
	cmd.Flags().Uint32Var(&periodMs, "period-ms", 1000, "beacon period, milliseconds")
	cmd.Flags().Uint16Var(&burstSpanMs, "burst-span-ms", 50, "burst span, milliseconds")
	cmd.Flags().Uint8Var(&burstLen, "burst-len", 3, "number of repeated transmissions per beacon")
	cmd.Flags().Int8Var(&txPower, "tx-power-dbm", 0, "advertised TX power, dBm")
	cmd.Flags().BoolVar(&authDev, "auth-dev", false, "permit unauthenticated beacon construction (development only)")
	cmd.Flags().StringVar(&keyHex, "key", "", "AES-128 key, hex-encoded (omit for no key)")
	return cmd
}

func newShowConfigCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show-config",
		Short: "Print the persisted RTTS configuration record",
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := config.Load(fileStore{path: *configPath})
			if err != nil {
				return err
			}
			fmt.Printf("period_ms=%d burst_span_ms=%d burst_len=%d tx_power_dbm=%d auth_mode=%v key_len=%d default_mode=%d\n",
				rec.BeaconPeriodMs, rec.BurstSpanMs, rec.BurstLen, rec.TxPowerDbm, rec.AuthMode, rec.KeyLen, rec.DefaultMode)
			return nil
		},
	}
}

func newNowCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "now",
		Short: "Print the master clock's current Unix time and uptime estimate",
		RunE: func(cmd *cobra.Command, args []string) error {
			mc := timesync.NewMasterClock(fixedpoint.NewSystemClock())
			mc.SetTimeAnchor(nowMsFallback())
			fmt.Printf("unix_ms=%d uptime_ms=%d anchored=%v\n", mc.NowUnixMs(), mc.UptimeMs(), mc.Anchored())
			return nil
		},
	}
}

func newSetAnchorCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "set-anchor <unix_ms>",
		Short: "Pin the master clock's Unix-time anchor to the current local reading",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			unixMs, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("beacon-master: invalid unix_ms %q: %w", args[0], err)
			}
			mc := timesync.NewMasterClock(fixedpoint.NewSystemClock())
			mc.SetTimeAnchor(unixMs)
			fmt.Printf("anchored at unix_ms=%d\n", mc.NowUnixMs())
			return nil
		},
	}
}

func newBuildCmd(configPath *string) *cobra.Command {
	var windowLen uint8
	var mode uint8
	var addrMode uint8
	var noAuth bool

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Construct one wire-format beacon packet from the persisted config and the master clock's current time",
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := config.Load(fileStore{path: *configPath})
			if err != nil {
				return err
			}
			mc := timesync.NewMasterClock(fixedpoint.NewSystemClock())
			mc.SetTimeAnchor(nowMsFallback())

			pkt := beacon.Packet{
				Version:      beacon.Version,
				AddrMode:     beacon.AddrMode(addrMode),
				WindowLen:    windowLen,
				Mode:         mode,
				MasterUnixMs: mc.NowUnixMs(),
			}
			key := rec.BuildKey()
			useAuth := rec.AuthMode == config.AuthProd && !noAuth
			if useAuth && key == nil {
				return fmt.Errorf("beacon-master: AuthProd requires a provisioned key; run init-config --key or pass --no-auth")
			}

			var wire []byte
			if useAuth {
				wire, err = beacon.Build(pkt, key)
			} else {
				pkt.Flags |= beacon.NoAuth
				wire, err = beacon.BuildNoAuth(pkt)
			}
			if err != nil {
				return err
			}
			fmt.Println(hex.EncodeToString(wire))
			return nil
		},
	}
	cmd.Flags().Uint8Var(&windowLen, "window-len", 0, "scan window length field")
	cmd.Flags().Uint8Var(&mode, "mode", 0, "logger mode field")
	cmd.Flags().Uint8Var(&addrMode, "addr-mode", 0, "address mode (0=none, 1=all, 2=list)")
	cmd.Flags().BoolVar(&noAuth, "no-auth", false, "force an unauthenticated build regardless of the config's auth mode")
	return cmd
}

// nowMsFallback stamps the anchor at construction time using the process's
// own wall clock, the one place this binary needs real wall-clock time
// rather than a synthetic trace (it is, after all, the time authority).
func nowMsFallback() uint64 {
	return uint64(time.Now().UnixMilli())
}
