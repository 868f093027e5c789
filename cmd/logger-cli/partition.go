// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/rdts/logger-core/flash"
)

// filePartition backs flash.Emulated with a plain on-disk image file,
// standing in for the out-of-scope SPI/partition-backed flash driver in
// its emulated-over-partition mode (§4.1 backend (b)).
type filePartition struct {
	f *os.File
}

// openFilePartition opens (creating if absent) a flash image file of
// exactly size bytes, initialized to the erased (0xFF) state when newly
// created.
func openFilePartition(path string, size int64) (*filePartition, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logger-cli: open flash image %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.Size() != size {
		blank := make([]byte, size)
		for i := range blank {
			blank[i] = 0xFF
		}
		if _, err := f.WriteAt(blank, 0); err != nil {
			f.Close()
			return nil, fmt.Errorf("logger-cli: initialize flash image: %w", err)
		}
	}
	return &filePartition{f: f}, nil
}

func (p *filePartition) ReadAt(b []byte, off int64) (int, error)  { return p.f.ReadAt(b, off) }
func (p *filePartition) WriteAt(b []byte, off int64) (int, error) { return p.f.WriteAt(b, off) }
func (p *filePartition) Size() int64 {
	info, err := p.f.Stat()
	if err != nil {
		return 0
	}
	return info.Size()
}

var _ flash.Partition = (*filePartition)(nil)
