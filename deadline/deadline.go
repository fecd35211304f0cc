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

// Package deadline tracks the next hardware timer wakeup per processor and
// runs the arm/disarm protocol toward the timer driver.
package deadline

import (
	"fmt"

	"github.com/facebook/rtclock/cpu"
	"github.com/facebook/rtclock/timebase"
)

// Driver is the hardware timer device. Arm programs an interrupt at the
// requested absolute time, given the current absolute time, and returns the
// time it actually achieved; hardware granularity may make that later than
// requested, never earlier. Disarm clears any pending interrupt. Configure
// applies the device's fixed startup configuration.
type Driver interface {
	Arm(deadline, now uint64) uint64
	Disarm() uint64
	Configure()
}

// Deadline is an optional absolute-time target. The zero value means no
// deadline, replacing the end-of-all-time sentinel the numeric encoding
// would need.
type Deadline struct {
	ns    uint64
	valid bool
}

// At returns a deadline at an absolute time.
func At(ns uint64) Deadline {
	return Deadline{ns: ns, valid: true}
}

// None returns the absent deadline.
func None() Deadline {
	return Deadline{}
}

// Valid reports whether the deadline is set.
func (d Deadline) Valid() bool {
	return d.valid
}

// Nanoseconds returns the deadline's absolute time; zero when unset.
func (d Deadline) Nanoseconds() uint64 {
	return d.ns
}

func (d Deadline) String() string {
	if !d.valid {
		return "none"
	}
	return fmt.Sprintf("%dns", d.ns)
}

// State is the scheduler's arm state.
type State int

// Scheduler states.
const (
	Idle State = iota
	Armed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Armed:
		return "ARMED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Scheduler is the per-processor deadline bookkeeping. It is owned
// exclusively by its processor: every mutation happens with interrupts
// masked on that processor, so no lock is taken.
type Scheduler struct {
	proc *cpu.Processor
	tb   *timebase.TimeBase
	dev  Driver

	state    State
	deadline Deadline // last requested target
	pop      uint64   // time the driver actually achieved
}

// New returns an idle scheduler for a processor.
func New(proc *cpu.Processor, tb *timebase.TimeBase, dev Driver) *Scheduler {
	return &Scheduler{proc: proc, tb: tb, dev: dev}
}

func (s *Scheduler) assertOwner(tok cpu.Token) {
	if !tok.Held() {
		panic("deadline: mutating call without interrupts masked")
	}
	if tok.Processor() != s.proc {
		panic("deadline: scheduler touched from a foreign processor")
	}
}

// Request arms the hardware timer for target, or disarms it when target is
// unset or zero. The difference between the achieved and the requested arm
// time is returned for drift accounting; a conforming driver never arms
// early, so it is never negative. No retry happens here regardless of
// slippage — re-requesting is the generic timer subsystem's call.
func (s *Scheduler) Request(tok cpu.Token, target Deadline) int64 {
	s.assertOwner(tok)
	if !target.Valid() || target.Nanoseconds() == 0 {
		s.pop = s.dev.Disarm()
		s.deadline = None()
		s.state = Idle
		return 0
	}
	now := s.tb.Read()
	pop := s.dev.Arm(target.Nanoseconds(), now)
	s.deadline = target
	s.pop = pop
	s.state = Armed
	return int64(pop - target.Nanoseconds())
}

// ForceReevaluation drops the recorded deadline without touching the
// hardware, so the next deadline-computation pass cannot trust stale state
// and must re-request. Used after a full reset and at start-up.
func (s *Scheduler) ForceReevaluation() {
	s.deadline = None()
	s.state = Idle
}

// State returns the current arm state.
func (s *Scheduler) State() State {
	return s.state
}

// Pending returns the last requested deadline and the arm time the driver
// reported for it.
func (s *Scheduler) Pending() (Deadline, uint64) {
	return s.deadline, s.pop
}
