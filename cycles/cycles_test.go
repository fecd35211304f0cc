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

package cycles

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestManual(t *testing.T) {
	m := &Manual{}
	require.Equal(t, uint64(0), m.Cycles())

	m.Advance(100)
	require.Equal(t, uint64(100), m.Cycles())

	m.Set(7)
	require.Equal(t, uint64(7), m.Cycles())
}

func TestRuntimeAdvances(t *testing.T) {
	src := Runtime{}
	first := src.Cycles()
	time.Sleep(time.Millisecond)
	require.Greater(t, src.Cycles(), first)
}

func TestMeasure(t *testing.T) {
	// the runtime source ticks in nanoseconds, so the measured frequency
	// must come out near 1GHz
	got := Measure(Runtime{}, 50*time.Millisecond)
	require.InEpsilon(t, uint64(1_000_000_000), got, 0.05)
}
