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
	"time"

	"github.com/stretchr/testify/require"

	"github.com/facebook/rtclock/cpu"
	"github.com/facebook/rtclock/intr"
)

func TestSoftTimerArmRoundsUp(t *testing.T) {
	dev := newSoftTimer(cpu.New(0), &intr.Demux{Expiry: func(bool, uint64) {}})
	dev.Configure()
	defer dev.Disarm()

	pop := dev.Arm(defaultGranularityNS+1, 0)
	require.Equal(t, uint64(2*defaultGranularityNS), pop)

	// an aligned deadline is achieved exactly
	pop = dev.Arm(3*defaultGranularityNS, 0)
	require.Equal(t, uint64(3*defaultGranularityNS), pop)
}

func TestSoftTimerFiresThroughDemux(t *testing.T) {
	type expiry struct {
		userMode bool
		ip       uint64
	}
	fired := make(chan expiry, 1)
	proc := cpu.New(0)
	dev := newSoftTimer(proc, &intr.Demux{Expiry: func(userMode bool, ip uint64) {
		fired <- expiry{userMode: userMode, ip: ip}
	}})
	dev.Configure()

	dev.Arm(1, 0) // effectively immediate
	select {
	case e := <-fired:
		require.False(t, e.userMode)
		require.NotZero(t, e.ip)
	case <-time.After(time.Second):
		t.Fatal("timer never fired")
	}
	// the synthetic interrupt path must restore the processor state
	require.Eventually(t, func() bool {
		return !proc.InterruptsMasked() && proc.PreemptionLevel() == 0
	}, time.Second, time.Millisecond)
}

func TestSoftTimerDisarm(t *testing.T) {
	proc := cpu.New(0)
	fired := make(chan struct{}, 1)
	dev := newSoftTimer(proc, &intr.Demux{Expiry: func(bool, uint64) {
		fired <- struct{}{}
	}})
	dev.Configure()

	dev.Arm(uint64(time.Hour.Nanoseconds()), 0)
	require.Equal(t, uint64(0), dev.Disarm())
	select {
	case <-fired:
		t.Fatal("disarmed timer fired")
	case <-time.After(50 * time.Millisecond):
	}
}
