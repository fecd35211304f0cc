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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAbsoluteToMicrotime(t *testing.T) {
	secs, usecs, remain := AbsoluteToMicrotime(3_000_456_789)
	require.Equal(t, uint64(3), secs)
	require.Equal(t, uint32(456), usecs)
	require.Equal(t, uint32(456_789), remain)

	secs, usecs, remain = AbsoluteToMicrotime(999_999_999)
	require.Equal(t, uint64(0), secs)
	require.Equal(t, uint32(999_999), usecs)
	require.Equal(t, uint32(999_999_999), remain)
}

func TestAbsoluteToNanotime(t *testing.T) {
	secs, nsecs := AbsoluteToNanotime(3_000_456_789)
	require.Equal(t, uint64(3), secs)
	require.Equal(t, uint32(456_789), nsecs)
}

func TestNanotimeRoundTrip(t *testing.T) {
	for _, abs := range []uint64{0, 1, 999_999_999, 1_000_000_000, 3_000_456_789} {
		secs, nsecs := AbsoluteToNanotime(abs)
		require.Equal(t, abs, NanotimeToAbsolute(secs, nsecs))
	}
}

func TestIntervalToAbsolute(t *testing.T) {
	// 125 ticks of 8ms each
	require.Equal(t, uint64(NanosecondsPerSecond), IntervalToAbsolute(125, 8_000_000))
	require.Equal(t, uint64(0), IntervalToAbsolute(0, 8_000_000))
}

func TestTimebaseInfo(t *testing.T) {
	numer, denom := TimebaseInfo()
	require.Equal(t, uint32(1), numer)
	require.Equal(t, uint32(1), denom)
}

func TestDelayUntil(t *testing.T) {
	tb, src, _, _ := newTestBase(t)
	deadline := tb.Read() + 1000

	done := make(chan struct{})
	go func() {
		tb.DelayUntil(deadline)
		close(done)
	}()
	src.Advance(2000)
	<-done
	require.GreaterOrEqual(t, tb.Read(), deadline)
}
