// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package loggercore

import "sync"

// Mailbox is a single-slot, mutex-protected handoff from a BLE radio
// callback (architecturally an ISR) to the cooperative main loop (§5
// "ISRs ... deposit data into small buffers protected by a critical
// section"). A Deposit from the callback goroutine overwrites any
// undrained value; the main loop Drains once per tick.
type Mailbox[T any] struct {
	mu    sync.Mutex
	value T
	full  bool
}

// Deposit stores v, overwriting anything not yet drained. Safe to call
// from a callback goroutine concurrently with Drain.
func (m *Mailbox[T]) Deposit(v T) {
	m.mu.Lock()
	m.value = v
	m.full = true
	m.mu.Unlock()
}

// Drain removes and returns the pending value, if any.
func (m *Mailbox[T]) Drain() (v T, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.full {
		return v, false
	}
	v, m.full = m.value, false
	var zero T
	m.value = zero
	return v, true
}
