// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
)

// writerSink adapts an io.Writer to loggercore.Sink, standing in for the
// out-of-scope interactive prompt's console stream (§1).
type writerSink struct {
	w io.Writer
}

func (s writerSink) Write(p []byte) (int, error) { return s.w.Write(p) }

func (s writerSink) WriteLine(l string) { fmt.Fprintln(s.w, l) }
