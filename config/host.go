// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// HostConfig is the host-side configuration for the CLI binaries: BLE scan
// parameters, logging, and the HTTP export listen address. This is
// distinct from RTTSRecord, which is the on-device wire format persisted
// by the beacon master itself (§6); HostConfig never touches a logger's
// flash. Neither binary under cmd/ calls LoadHost; both take their
// settings from command-line flags.
type HostConfig struct {
	LogLevel       string `mapstructure:"log_level"`
	ListenAddr     string `mapstructure:"listen_addr"`
	BLEScanWindow  int    `mapstructure:"ble_scan_window_ms"`
	BLEScanInterval int   `mapstructure:"ble_scan_interval_ms"`
	CompanyID      uint16 `mapstructure:"company_id"`
}

// Defaults returns the HostConfig baseline applied before a config file or
// flags are layered on top.
func Defaults() HostConfig {
	return HostConfig{
		LogLevel:        "info",
		ListenAddr:      ":8080",
		BLEScanWindow:   30,
		BLEScanInterval: 60,
		CompanyID:       0xFFFF,
	}
}

// LoadHost reads HostConfig from name (searched in the given paths plus the
// current directory) via viper, falling back to Defaults for anything the
// file or environment doesn't set. A missing config file is not an error;
// a malformed one is.
func LoadHost(name string, paths ...string) (HostConfig, error) {
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.AddConfigPath(".")
	v.SetEnvPrefix("RDTS")
	v.AutomaticEnv()

	def := Defaults()
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("listen_addr", def.ListenAddr)
	v.SetDefault("ble_scan_window_ms", def.BLEScanWindow)
	v.SetDefault("ble_scan_interval_ms", def.BLEScanInterval)
	v.SetDefault("company_id", def.CompanyID)

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return HostConfig{}, fmt.Errorf("config: load %s: %w", name, err)
		}
	}

	var cfg HostConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return HostConfig{}, fmt.Errorf("config: unmarshal %s: %w", name, err)
	}
	return cfg, nil
}
