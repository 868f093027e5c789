// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package loggercore assembles the per-device composite (§9 Design Notes'
// "LoggerCore"): one struct owning every subsystem's state, replacing the
// original C++ sources' process-wide globals, passed by reference into
// every operation the main loop drives.
package loggercore

// Sink is the capability interface that replaces the firmware's Stream&
// polymorphism (§9 Design Notes): Write for raw binary framing, WriteLine
// for ASCII text lines. It is structurally identical to recorder.Sink, so
// any value satisfying one satisfies the other without either package
// importing the other.
type Sink interface {
	Write(p []byte) (int, error)
	WriteLine(s string)
}

// MultiSink fans a single emission out to every currently active output
// (serial console, BLE notify characteristic, HTTP export connection, ...),
// the way the firmware's emit_control invokes a closure against every
// registered Stream&.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink returns a MultiSink fanning out to the given sinks.
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

// Add registers another sink.
func (m *MultiSink) Add(s Sink) { m.sinks = append(m.sinks, s) }

// Write implements Sink, writing p to every registered sink. It returns the
// byte count and the first error encountered, if any, continuing to write
// to the remaining sinks regardless (a dead output must not starve the
// others).
func (m *MultiSink) Write(p []byte) (int, error) {
	var firstErr error
	for _, s := range m.sinks {
		if _, err := s.Write(p); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return len(p), firstErr
}

// WriteLine implements Sink, writing l to every registered sink.
func (m *MultiSink) WriteLine(l string) {
	for _, s := range m.sinks {
		s.WriteLine(l)
	}
}

// EmitControl applies f to every currently active sink, the direct
// analogue of the firmware's closure-over-Stream& idiom (§9 Design Notes).
func (m *MultiSink) EmitControl(f func(Sink)) {
	for _, s := range m.sinks {
		f(s)
	}
}
