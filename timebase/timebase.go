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

// Package timebase maintains the monotonic clock derived from a free-running
// cycle counter.
//
// The counter is the reference for all timing, but its rate is platform
// dependent and it may stop or be reset when the machine naps or sleeps.
// Absolute time is therefore a software abstraction: a calibration Tuple
// mapping counter readings to nanoseconds, kept valid across power events
// by the Reconciler and re-published to lock-free readers after every
// mutation.
//
// All mutating entry points are non-reentrant. The caller proves the
// discipline by passing a cpu.Token minted with interrupts masked and
// guarantees, by protocol, that no other processor mutates concurrently.
// Readers take no token and never block.
package timebase

import (
	"errors"
	"sync/atomic"

	"github.com/facebook/rtclock/cpu"
	"github.com/facebook/rtclock/cycles"
)

// MaxCycleAdjust bounds the backward nudge AdjustBounded accepts, in
// cycles. Anything larger could let a reader observe time running
// backwards between two of its own reads.
const MaxCycleAdjust = 99

// ErrAdjustmentTooLarge means a drift adjustment exceeded MaxCycleAdjust.
var ErrAdjustmentTooLarge = errors.New("cycle adjustment exceeds safe bound")

// Publisher exposes a freshly mutated tuple to other processors and user
// space through a torn-read-free surface. Invoked after every mutation,
// with the writer's exclusion still held.
type Publisher interface {
	Publish(Tuple)
}

// Snapshot is a (cycle, time) base pair captured around a full reset,
// kept for power-management accounting.
type Snapshot struct {
	Cycles uint64
	Time   uint64
}

// TimeBase is the shared calibration tuple and its update protocol.
// A single logical writer mutates it; any number of readers convert
// through it concurrently without locks.
type TimeBase struct {
	src cycles.Source
	pub Publisher

	cur atomic.Pointer[Tuple]

	bootCycles uint64
	rebaseTime uint64 // ns since boot at first calibration, recorded once

	lastSleep Snapshot
	lastWake  Snapshot
}

// New returns a TimeBase reading src and publishing through pub.
// The tuple is not valid until SetTimescale ran.
func New(src cycles.Source, pub Publisher) *TimeBase {
	tb := &TimeBase{
		src:        src,
		pub:        pub,
		bootCycles: src.Cycles(),
	}
	tb.cur.Store(&Tuple{})
	return tb
}

func assertWriter(tok cpu.Token) {
	if !tok.Held() {
		panic("timebase: mutating call without interrupts masked")
	}
}

// SetTimescale calibrates the tuple from a measured cycle frequency and
// rebases absolute time to zero. On the first call it also records how many
// nanoseconds had already elapsed since the counter snapshot taken at
// construction; on some platforms the counter is not reset at warm boot, so
// this is the only way to know the pre-calibration uptime.
func (tb *TimeBase) SetTimescale(tok cpu.Token, frequency uint64) error {
	assertWriter(tok)
	ts, err := NewTimescale(frequency)
	if err != nil {
		return err
	}
	next := *tb.cur.Load()
	next.Scale = ts.Scale
	next.Shift = ts.Shift
	tb.cur.Store(&next)

	if tb.rebaseTime == 0 {
		tb.rebaseTime = next.ToNanoseconds(tb.src.Cycles() - tb.bootCycles)
	}
	tb.Init(tok, 0)
	return nil
}

// Init rebases the tuple at the current counter reading with absolute time
// origin, keeping the current timescale, and publishes the result. Used at
// calibration and by the full sleep/wake reset.
func (tb *TimeBase) Init(tok cpu.Token, origin uint64) {
	assertWriter(tok)
	cur := tb.cur.Load()
	next := &Tuple{
		CycleBase: tb.src.Cycles(),
		TimeBase:  origin,
		Scale:     cur.Scale,
		Shift:     cur.Shift,
	}
	tb.cur.Store(next)
	tb.pub.Publish(*next)
}

// Read returns the current absolute time in nanoseconds. Callable from any
// context: it takes no lock and, concurrent with a mutation, returns either
// the pre- or post-mutation value.
func (tb *TimeBase) Read() uint64 {
	return tb.cur.Load().Now(tb.src.Cycles())
}

// AdjustBounded adds deltaCycles to the cycle base, nudging observed time
// backward by that many cycles' worth of nanoseconds. The delta must not
// exceed MaxCycleAdjust, so a few counter ticks later no reader can have
// seen time run backwards between two of its own reads.
func (tb *TimeBase) AdjustBounded(tok cpu.Token, deltaCycles uint64) error {
	assertWriter(tok)
	if deltaCycles > MaxCycleAdjust {
		return ErrAdjustmentTooLarge
	}
	next := *tb.cur.Load()
	next.CycleBase += deltaCycles
	tb.cur.Store(&next)
	tb.pub.Publish(next)
	return nil
}

// Tuple returns the current calibration tuple. Diagnostic reads only.
func (tb *TimeBase) Tuple() Tuple {
	return *tb.cur.Load()
}

// RebaseTime returns the nanoseconds that had elapsed between the counter
// snapshot at construction and the first calibration. Zero until calibrated.
func (tb *TimeBase) RebaseTime() uint64 {
	return tb.rebaseTime
}

// SleepWakeAudit returns the base pairs recorded around the last full
// reset. Written only by the reset path, so stable outside it.
func (tb *TimeBase) SleepWakeAudit() (sleep, wake Snapshot) {
	return tb.lastSleep, tb.lastWake
}
