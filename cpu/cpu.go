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

// Package cpu models the per-processor execution discipline the clock core
// relies on: local interrupt masking and the preemption level. Mutating
// entry points elsewhere in this repo take a Token as proof that the caller
// has masked interrupt delivery on its processor; readers need none.
package cpu

import "sync/atomic"

// Processor is the per-processor slice of machine state we track.
// Interrupt masking and preemption are owned by the processor itself;
// other processors only ever read them for assertions.
type Processor struct {
	ID int

	masked  atomic.Int32 // mask depth, >0 means interrupts are off
	preempt atomic.Int32 // preemption disable depth
}

// New returns a Processor with interrupts deliverable and preemption enabled.
func New(id int) *Processor {
	return &Processor{ID: id}
}

// Token proves that interrupt delivery was masked on a processor when the
// token was minted. The zero Token proves nothing and is rejected by Held.
type Token struct {
	p *Processor
}

// MaskInterrupts disables local interrupt delivery and returns a Token for
// mutating calls into the time base. Masking nests; Restore unwinds one level.
func (p *Processor) MaskInterrupts() Token {
	p.masked.Add(1)
	return Token{p: p}
}

// Restore re-enables one level of interrupt delivery.
func (t Token) Restore() {
	if t.p == nil {
		panic("cpu: Restore on zero Token")
	}
	if t.p.masked.Add(-1) < 0 {
		panic("cpu: unbalanced interrupt mask restore")
	}
}

// Held reports whether the token still proves masked delivery on its processor.
func (t Token) Held() bool {
	return t.p != nil && t.p.InterruptsMasked()
}

// Processor returns the processor the token was minted on, nil for the zero Token.
func (t Token) Processor() *Processor {
	return t.p
}

// InterruptsMasked reports whether local interrupt delivery is off.
func (p *Processor) InterruptsMasked() bool {
	return p.masked.Load() > 0
}

// DisablePreemption raises the preemption level by one.
func (p *Processor) DisablePreemption() {
	p.preempt.Add(1)
}

// EnablePreemption lowers the preemption level by one.
func (p *Processor) EnablePreemption() {
	if p.preempt.Add(-1) < 0 {
		panic("cpu: unbalanced preemption enable")
	}
}

// PreemptionLevel returns the current preemption disable depth.
func (p *Processor) PreemptionLevel() int32 {
	return p.preempt.Load()
}
