// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/rdts/logger-core/config"
)

// fileStore persists an RTTSRecord as a flat file, standing in for the
// out-of-scope on-device NVS partition the real beacon master writes to
// (original_source/RDTS_CLI/RDTSserver.h's rdtsm_config_t backing store).
type fileStore struct {
	path string
}

func (s fileStore) Read(buf []byte) error {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("beacon-master: read config %s: %w", s.path, err)
	}
	if len(b) < len(buf) {
		return fmt.Errorf("beacon-master: config %s is truncated (%d bytes)", s.path, len(b))
	}
	copy(buf, b)
	return nil
}

func (s fileStore) Write(buf []byte) error {
	if err := os.WriteFile(s.path, buf, 0o600); err != nil {
		return fmt.Errorf("beacon-master: write config %s: %w", s.path, err)
	}
	return nil
}

var _ config.Store = fileStore{}
