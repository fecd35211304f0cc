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

// Nanosecond unit conversions.
const (
	NanosecondsPerSecond      = 1_000_000_000
	NanosecondsPerMicrosecond = 1_000
)

// AbsoluteToMicrotime splits an absolute time into whole seconds and
// microseconds, returning also the nanosecond remainder within the second.
func AbsoluteToMicrotime(abs uint64) (secs uint64, usecs uint32, remain uint32) {
	secs = abs / NanosecondsPerSecond
	remain = uint32(abs % NanosecondsPerSecond)
	usecs = remain / NanosecondsPerMicrosecond
	return secs, usecs, remain
}

// AbsoluteToNanotime splits an absolute time into whole seconds and
// nanoseconds.
func AbsoluteToNanotime(abs uint64) (secs uint64, nsecs uint32) {
	return abs / NanosecondsPerSecond, uint32(abs % NanosecondsPerSecond)
}

// NanotimeToAbsolute combines a seconds and nanoseconds pair back into an
// absolute time.
func NanotimeToAbsolute(secs uint64, nsecs uint32) uint64 {
	return secs*NanosecondsPerSecond + uint64(nsecs)
}

// IntervalToAbsolute converts an interval expressed as count units of
// unitScale nanoseconds each into an absolute-time interval.
func IntervalToAbsolute(count uint32, unitScale uint32) uint64 {
	return uint64(count) * uint64(unitScale)
}

// TimebaseInfo returns the ratio of absolute-time units to nanoseconds.
// Absolute time is nanoseconds here, so the ratio is 1/1.
func TimebaseInfo() (numer, denom uint32) {
	return 1, 1
}

// DelayUntil spins until absolute time reaches deadline. It never sleeps;
// callers that can block should not use it.
func (tb *TimeBase) DelayUntil(deadline uint64) {
	for tb.Read() < deadline {
	}
}

// Microtime returns the current absolute time as seconds and microseconds.
func (tb *TimeBase) Microtime() (secs uint64, usecs uint32) {
	secs, usecs, _ = AbsoluteToMicrotime(tb.Read())
	return secs, usecs
}

// Nanotime returns the current absolute time as seconds and nanoseconds.
func (tb *TimeBase) Nanotime() (secs uint64, nsecs uint32) {
	return AbsoluteToNanotime(tb.Read())
}
