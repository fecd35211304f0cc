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

func TestNewTimescale(t *testing.T) {
	testCases := []struct {
		name      string
		frequency uint64
		wantScale uint32
		wantShift uint32
	}{
		{
			name:      "2GHz counter",
			frequency: 2_000_000_000,
			wantScale: 1 << 31,
			wantShift: 0,
		},
		{
			name:      "1GHz counter needs one doubling",
			frequency: 1_000_000_000,
			wantScale: 1 << 31,
			wantShift: 1, // a direct scale would be exactly 2^32
		},
		{
			name:      "just above threshold",
			frequency: SlowCounterThreshold + 1,
			wantShift: 0,
			wantScale: uint32((uint64(NanosecondsPerSecond) << 32) / (SlowCounterThreshold + 1)),
		},
		{
			name:      "at threshold needs one doubling",
			frequency: SlowCounterThreshold,
			wantShift: 1,
			wantScale: uint32((uint64(NanosecondsPerSecond) << 32) / (2 * SlowCounterThreshold)),
		},
		{
			name:      "500Hz counter",
			frequency: 500,
			wantShift: 21, // 500 << 21 is the first rate above the threshold
			wantScale: uint32((uint64(NanosecondsPerSecond) << 32) / (500 << 21)),
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ts, err := NewTimescale(tc.frequency)
			require.NoError(t, err)
			require.Equal(t, tc.wantShift, ts.Shift)
			require.Equal(t, tc.wantScale, ts.Scale)
		})
	}
}

func TestNewTimescaleZeroFrequency(t *testing.T) {
	_, err := NewTimescale(0)
	require.ErrorIs(t, err, ErrInvalidFrequency)
}

func TestNewTimescaleSlowCounters(t *testing.T) {
	// every slow frequency must get a positive shift and still produce a
	// scale representable in 32 bits, which the return type guarantees as
	// long as the effective rate ended up above the threshold
	for frequency := uint64(1); frequency < SlowCounterThreshold; frequency = frequency*3 + 1 {
		ts, err := NewTimescale(frequency)
		require.NoError(t, err)
		require.Greater(t, ts.Shift, uint32(0), "frequency %d", frequency)
		require.Greater(t, ts.Scale, uint32(0), "frequency %d", frequency)
		require.Greater(t, frequency<<ts.Shift, uint64(SlowCounterThreshold), "frequency %d", frequency)
	}
}

func TestExportSpeed(t *testing.T) {
	testCases := []struct {
		name          string
		frequency     uint64
		wantHz        uint64
		wantClockRate uint32
	}{
		{
			name:          "rounds down",
			frequency:     2_394_999_999,
			wantHz:        2_390_000_000,
			wantClockRate: 2_390_000_000,
		},
		{
			name:          "rounds up",
			frequency:     2_395_000_000,
			wantHz:        2_400_000_000,
			wantClockRate: 2_400_000_000,
		},
		{
			name:          "clamps the 32-bit rate",
			frequency:     5_000_000_000,
			wantHz:        5_000_000_000,
			wantClockRate: 0xFFFFFFFF,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			hz, clockRate := ExportSpeed(tc.frequency)
			require.Equal(t, tc.wantHz, hz)
			require.Equal(t, tc.wantClockRate, clockRate)
		})
	}
}
