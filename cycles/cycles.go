/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package cycles abstracts the free-running hardware cycle counter that is
// the sole time source for the time base.
package cycles

import (
	"sync/atomic"
	"time"
)

// Source is a free-running cycle counter. It must be monotonic except
// across the power events the time base explicitly reconciles.
type Source interface {
	Cycles() uint64
}

// Manual is a Source advanced explicitly by the caller.
// Used in tests and to replay recorded counter traces.
type Manual struct {
	c atomic.Uint64
}

// Cycles returns the current counter value.
func (m *Manual) Cycles() uint64 {
	return m.c.Load()
}

// Advance moves the counter forward by d cycles.
func (m *Manual) Advance(d uint64) {
	m.c.Add(d)
}

// Set rewinds or forwards the counter to an arbitrary value,
// emulating a counter reset across a sleep.
func (m *Manual) Set(v uint64) {
	m.c.Store(v)
}

// Measure estimates the frequency of src in cycles per second by sampling
// it against the wall clock over d. Intended for bring-up only: the result
// feeds calibration once, it is never consulted again at conversion time.
func Measure(src Source, d time.Duration) uint64 {
	startCycles := src.Cycles()
	start := time.Now()
	time.Sleep(d)
	elapsed := time.Since(start)
	deltaCycles := src.Cycles() - startCycles
	if elapsed <= 0 {
		return 0
	}
	return uint64(float64(deltaCycles) * float64(time.Second) / float64(elapsed))
}
