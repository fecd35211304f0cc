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

package timebase

import (
	log "github.com/sirupsen/logrus"

	"github.com/facebook/rtclock/cpu"
)

// TimerConfig reapplies the hardware timer's fixed startup configuration.
// Implemented by the timer driver; invoked after a full reset because the
// device loses its programming across a sleep.
type TimerConfig interface {
	Configure()
}

// Reconciler applies the three power-event update policies to a time base.
// Every entry point requires the interrupts-masked token and the
// system-wide single-writer protocol, same as the time base itself.
type Reconciler struct {
	tb     *TimeBase
	timer  TimerConfig
	resync func()
}

// NewReconciler wires a reconciler to its time base, the timer device to
// reconfigure after a full reset, and the deadline re-evaluation hook.
func NewReconciler(tb *TimeBase, timer TimerConfig, resync func()) *Reconciler {
	return &Reconciler{tb: tb, timer: timer, resync: resync}
}

// OnCounterResume recovers from a deep idle state during which the counter
// stopped counting. The caller supplies a replacement base pair derived from
// an outside reference; it is adopted only if time under the candidate is
// strictly later than time under the existing tuple; a stale or jittery
// candidate is silently discarded. Returns whether the candidate was adopted.
func (r *Reconciler) OnCounterResume(tok cpu.Token, newTimeBase, newCycleBase uint64) bool {
	assertWriter(tok)
	cur := r.tb.cur.Load()
	cycles := r.tb.src.Cycles()

	oldNow := cur.Now(cycles)
	newNow := newTimeBase + cur.ToNanoseconds(cycles-newCycleBase)
	if newNow <= oldNow {
		log.Debugf("discarding idle-exit base pair (%d, %d): candidate now %d not after %d",
			newCycleBase, newTimeBase, newNow, oldNow)
		return false
	}
	next := &Tuple{
		CycleBase: newCycleBase,
		TimeBase:  newTimeBase,
		Scale:     cur.Scale,
		Shift:     cur.Shift,
	}
	r.tb.cur.Store(next)
	r.tb.pub.Publish(*next)
	return true
}

// OnDriftAdjust compensates a known small systematic counter drift by
// nudging observed time backward a few cycles' worth. Bounded so observers
// never see time regress between their own reads.
func (r *Reconciler) OnDriftAdjust(tok cpu.Token, deltaCycles uint64) error {
	return r.tb.AdjustBounded(tok, deltaCycles)
}

// OnSleepWakeup reinitializes the time base after a full sleep: the counter
// has been reset, or has progressed with no assumed relation to the prior
// base, so the tuple is rebased unconditionally at origin. The pre- and
// post-reset base pairs are recorded for accounting, the timer's fixed
// configuration is reapplied, and any recorded deadline is invalidated
// since every previously computed deadline is now meaningless.
func (r *Reconciler) OnSleepWakeup(tok cpu.Token, origin uint64) {
	assertWriter(tok)
	cur := r.tb.cur.Load()
	r.tb.lastSleep = Snapshot{Cycles: cur.CycleBase, Time: cur.TimeBase}

	r.tb.Init(tok, origin)

	next := r.tb.cur.Load()
	r.tb.lastWake = Snapshot{Cycles: next.CycleBase, Time: next.TimeBase}

	r.timer.Configure()
	r.resync()
}
