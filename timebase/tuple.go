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

import "math/bits"

// Tuple is the calibration state converting cycle counts to absolute time:
// a (CycleBase, TimeBase) pair of corresponding timestamps plus the
// cycles-to-nanoseconds ratio expressed as a 32-bit Q32 scale and a
// power-of-two shift compensating for scale inflation on slow counters.
//
// Tuples are published as a unit and never mutated in place outside the
// single writer; readers always see either the old or the new tuple.
type Tuple struct {
	CycleBase uint64
	TimeBase  uint64
	Scale     uint32
	Shift     uint32
}

// ToNanoseconds converts a cycle delta to elapsed nanoseconds under the
// tuple's timescale. The shift undoes the calibration-time rate inflation,
// then the Q32 scale is applied with a full 128-bit intermediate product,
// so the result never truncates and is monotonic in delta.
func (t Tuple) ToNanoseconds(deltaCycles uint64) uint64 {
	hi, lo := bits.Mul64(deltaCycles<<t.Shift, uint64(t.Scale))
	return hi<<32 | lo>>32
}

// Now derives the absolute time at counter reading cycles.
func (t Tuple) Now(cycles uint64) uint64 {
	return t.TimeBase + t.ToNanoseconds(cycles-t.CycleBase)
}
