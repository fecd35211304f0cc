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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDaemonStateRings(t *testing.T) {
	s := newDaemonState(3)
	require.Empty(t, s.takeSlippages(3))

	s.pushSlippage(1)
	s.pushSlippage(2)
	require.Equal(t, []float64{1, 2}, s.takeSlippages(3))

	// the ring keeps only the newest three
	s.pushSlippage(3)
	s.pushSlippage(4)
	require.Equal(t, []float64{2, 3, 4}, s.takeSlippages(3))

	// asking for fewer returns the newest
	require.Equal(t, []float64{3, 4}, s.takeSlippages(2))

	s.pushDrift(50)
	require.Equal(t, []float64{50}, s.takeDrifts(3))
}

func TestStats(t *testing.T) {
	s := NewStats()
	s.SetCounter("a", 10)
	s.UpdateCounterBy("a", 5)
	s.UpdateCounterBy("b", 1)
	require.Equal(t, map[string]int64{"a": 15, "b": 1}, s.Get())

	s.Reset()
	require.Equal(t, map[string]int64{"a": 0, "b": 0}, s.Get())
}
