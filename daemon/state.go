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
	"container/ring"
	"sync"
)

// state of the daemon, guarded by mutex
type daemonState struct {
	sync.Mutex

	slippages *ring.Ring // timer arm slippage samples, in ns
	drifts    *ring.Ring // applied drift adjustments, in cycles
}

func newDaemonState(ringSize int) *daemonState {
	s := &daemonState{
		slippages: ring.New(ringSize),
		drifts:    ring.New(ringSize),
	}
	// init ring buffers with nils
	for i := 0; i < ringSize; i++ {
		s.slippages.Value = nil
		s.slippages = s.slippages.Next()

		s.drifts.Value = nil
		s.drifts = s.drifts.Next()
	}
	return s
}

func (s *daemonState) pushSlippage(ns float64) {
	s.Lock()
	defer s.Unlock()
	s.slippages.Value = ns
	s.slippages = s.slippages.Next()
}

func (s *daemonState) pushDrift(cycles float64) {
	s.Lock()
	defer s.Unlock()
	s.drifts.Value = cycles
	s.drifts = s.drifts.Next()
}

func takeFloats(r *ring.Ring, n int) []float64 {
	result := []float64{}
	cur := r.Prev()
	for j := 0; j < n; j++ {
		if cur.Value == nil {
			continue
		}
		// collected newest first, expressions want oldest first
		result = append([]float64{cur.Value.(float64)}, result...)
		cur = cur.Prev()
	}
	return result
}

func (s *daemonState) takeSlippages(n int) []float64 {
	s.Lock()
	defer s.Unlock()
	return takeFloats(s.slippages, n)
}

func (s *daemonState) takeDrifts(n int) []float64 {
	s.Lock()
	defer s.Unlock()
	return takeFloats(s.drifts, n)
}
