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
	"errors"
	"math"
)

// SlowCounterThreshold is the cycle frequency at or below which the direct
// scale computation would overflow 32 bits: the Q32 scale fits only when
// the rate exceeds 1e9 * 2^32 / (2^32 - 1). Calibration doubles the
// effective rate past the threshold and compensates with the tuple shift.
const SlowCounterThreshold = 1_000_067_800

// speedRoundingFactor rounds the exported frequency for display. Cosmetic
// only, it never feeds back into the timescale.
const speedRoundingFactor = 10_000_000

// ErrInvalidFrequency means calibration was asked for a timescale from a
// zero measured frequency. Fatal at boot: no valid tuple can exist.
var ErrInvalidFrequency = errors.New("measured cycle frequency must be non-zero")

// Timescale is the (scale, shift) half of a calibration tuple.
type Timescale struct {
	Scale uint32
	Shift uint32
}

// NewTimescale computes the Q32 nanoseconds-per-cycle scale for a measured
// cycle frequency. Frequencies at or below SlowCounterThreshold are doubled
// until above it, with the shift recording how many doublings the converter
// must undo; this keeps the scale representable in 32 bits for slow or
// virtualized counters.
func NewTimescale(frequency uint64) (Timescale, error) {
	if frequency == 0 {
		return Timescale{}, ErrInvalidFrequency
	}
	var shift uint32
	cycles := frequency
	for cycles <= SlowCounterThreshold {
		shift++
		cycles <<= 1
	}
	return Timescale{
		Scale: uint32((uint64(NanosecondsPerSecond) << 32) / cycles),
		Shift: shift,
	}, nil
}

// ExportSpeed derives the display frequency reported for the counter:
// the measured frequency rounded to the nearest 10MHz, plus the same value
// clamped to 32 bits for legacy consumers of the clock rate field.
func ExportSpeed(frequency uint64) (hz uint64, clockRate uint32) {
	hz = (frequency + speedRoundingFactor/2) / speedRoundingFactor * speedRoundingFactor
	if hz >= 1<<32 {
		clockRate = math.MaxUint32
	} else {
		clockRate = uint32(hz)
	}
	return hz, clockRate
}
