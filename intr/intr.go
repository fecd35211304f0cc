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

// Package intr decodes the trapped machine state on each hardware timer
// interrupt and forwards to the generic timer-expiry dispatcher. No time
// arithmetic happens here.
package intr

import "github.com/facebook/rtclock/cpu"

// SavedState is the machine state captured at the trap.
type SavedState interface {
	// UserMode reports whether the trap interrupted user-space execution.
	UserMode() bool
	// IP returns the interrupted instruction pointer.
	IP() uint64
}

// SavedState64 is the 64-bit trap frame slice the demux cares about.
type SavedState64 struct {
	CS  uint64
	RIP uint64
}

// UserMode reports whether the saved code segment carries a user privilege level.
func (s SavedState64) UserMode() bool {
	return s.CS&0x03 != 0
}

// IP returns the interrupted instruction pointer.
func (s SavedState64) IP() uint64 {
	return s.RIP
}

// SavedState32 is the 32-bit trap frame slice the demux cares about.
type SavedState32 struct {
	CS  uint32
	EIP uint32
}

// UserMode reports whether the saved code segment carries a user privilege level.
func (s SavedState32) UserMode() bool {
	return s.CS&0x03 != 0
}

// IP returns the interrupted instruction pointer.
func (s SavedState32) IP() uint64 {
	return uint64(s.EIP)
}

// Handler is the generic timer-expiry dispatcher. The execution mode and
// instruction pointer are attribution context only.
type Handler func(userMode bool, ip uint64)

// Demux routes timer interrupts to the expiry handler.
type Demux struct {
	Expiry Handler
}

// Interrupt handles one hardware timer interrupt trapped with state st on
// processor p. The caller must have preemption disabled and interrupts
// masked; a violation is a logic error in the interrupt glue, not a
// recoverable condition, so it panics.
func (d *Demux) Interrupt(p *cpu.Processor, st SavedState) {
	if p.PreemptionLevel() <= 0 {
		panic("intr: timer interrupt with preemption enabled")
	}
	if !p.InterruptsMasked() {
		panic("intr: timer interrupt with interrupts deliverable")
	}
	d.Expiry(st.UserMode(), st.IP())
}
