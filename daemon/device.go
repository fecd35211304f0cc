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

package daemon

import (
	"runtime"
	"sync"
	"time"

	"github.com/facebook/rtclock/cpu"
	"github.com/facebook/rtclock/intr"
)

// defaultGranularityNS is the soft timer's arm granularity. Arm times are
// rounded up to it, mimicking a hardware decrementer that can only pop on
// its own tick boundary and may never pop early.
const defaultGranularityNS = 100_000

// code segment selector reported for expiries fired from daemon context
const kernelCS = 0x08

// softTimer implements deadline.Driver on the Go runtime timer. Each expiry
// enters the interrupt demux with a synthetic trap frame, the same path a
// hardware timer interrupt would take.
type softTimer struct {
	proc  *cpu.Processor
	demux *intr.Demux

	mu          sync.Mutex
	granularity uint64
	timer       *time.Timer
}

func newSoftTimer(proc *cpu.Processor, demux *intr.Demux) *softTimer {
	return &softTimer{proc: proc, demux: demux}
}

// Configure applies the fixed startup configuration. Re-invoked after a
// full reset, when a real device would have lost its programming.
func (t *softTimer) Configure() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.granularity = defaultGranularityNS
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

// Arm programs an expiry at deadline, given the current absolute time, and
// returns the rounded-up time it will actually achieve.
func (t *softTimer) Arm(deadline, now uint64) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	pop := deadline
	if t.granularity > 0 {
		if rem := pop % t.granularity; rem != 0 {
			pop += t.granularity - rem
		}
	}
	var delay time.Duration
	if pop > now {
		delay = time.Duration(pop - now)
	}
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(delay, t.fire)
	return pop
}

// Disarm cancels any pending expiry.
func (t *softTimer) Disarm() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	return 0
}

// fire enters the demux the way interrupt glue would: preemption raised,
// interrupts masked, trap frame describing the interrupted context.
func (t *softTimer) fire() {
	t.proc.DisablePreemption()
	tok := t.proc.MaskInterrupts()
	defer func() {
		tok.Restore()
		t.proc.EnablePreemption()
	}()
	pc, _, _, _ := runtime.Caller(0)
	t.demux.Interrupt(t.proc, intr.SavedState64{CS: kernelCS, RIP: uint64(pc)})
}
