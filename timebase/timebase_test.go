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

	"github.com/facebook/rtclock/cpu"
	"github.com/facebook/rtclock/cycles"
)

// fakePublisher records every published tuple
type fakePublisher struct {
	published []Tuple
}

func (p *fakePublisher) Publish(t Tuple) {
	p.published = append(p.published, t)
}

func (p *fakePublisher) last(t *testing.T) Tuple {
	require.NotEmpty(t, p.published)
	return p.published[len(p.published)-1]
}

// 1GHz manual counter: one cycle is one nanosecond with shift 1 undone
const testFrequency = 1_000_000_000

func newTestBase(t *testing.T) (*TimeBase, *cycles.Manual, *fakePublisher, cpu.Token) {
	src := &cycles.Manual{}
	src.Set(1_000_000)
	pub := &fakePublisher{}
	tb := New(src, pub)
	tok := cpu.New(0).MaskInterrupts()
	require.NoError(t, tb.SetTimescale(tok, testFrequency))
	return tb, src, pub, tok
}

func TestTimeBaseReadTracksCounter(t *testing.T) {
	tb, src, _, _ := newTestBase(t)
	require.Equal(t, uint64(0), tb.Read())

	src.Advance(1500)
	require.Equal(t, uint64(1500), tb.Read())

	src.Advance(1)
	require.Equal(t, uint64(1501), tb.Read())
}

func TestTimeBaseInitPublishes(t *testing.T) {
	tb, src, pub, tok := newTestBase(t)
	src.Advance(10_000)

	tb.Init(tok, 42)
	got := pub.last(t)
	require.Equal(t, src.Cycles(), got.CycleBase)
	require.Equal(t, uint64(42), got.TimeBase)
	require.Equal(t, uint64(42), tb.Read())
}

func TestTimeBaseMutationRequiresToken(t *testing.T) {
	tb, _, _, _ := newTestBase(t)

	require.Panics(t, func() { tb.Init(cpu.Token{}, 0) })

	p := cpu.New(1)
	tok := p.MaskInterrupts()
	tok.Restore()
	// a stale token no longer proves anything
	require.Panics(t, func() { tb.Init(tok, 0) })
}

func TestTimeBaseAdjustBounded(t *testing.T) {
	testCases := []struct {
		name    string
		delta   uint64
		wantErr error
	}{
		{
			name:  "small nudge",
			delta: 10,
		},
		{
			name:  "maximum allowed magnitude",
			delta: MaxCycleAdjust,
		},
		{
			name:    "one unit beyond the bound",
			delta:   MaxCycleAdjust + 1,
			wantErr: ErrAdjustmentTooLarge,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tb, src, pub, tok := newTestBase(t)
			src.Advance(100_000)
			before := tb.Tuple()

			err := tb.AdjustBounded(tok, tc.delta)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				require.Equal(t, before, tb.Tuple())
				return
			}
			require.NoError(t, err)
			require.Equal(t, before.CycleBase+tc.delta, tb.Tuple().CycleBase)
			require.Equal(t, tb.Tuple(), pub.last(t))
		})
	}
}

func TestTimeBaseMonotonicAcrossAdjust(t *testing.T) {
	tb, src, _, tok := newTestBase(t)
	var prev uint64
	for i := 0; i < 1000; i++ {
		src.Advance(250)
		if i%10 == 0 {
			require.NoError(t, tb.AdjustBounded(tok, MaxCycleAdjust))
		}
		now := tb.Read()
		require.GreaterOrEqual(t, now, prev, "iteration %d", i)
		prev = now
	}
}

func TestTimeBaseRebaseTimeRecordedOnce(t *testing.T) {
	src := &cycles.Manual{}
	pub := &fakePublisher{}
	tb := New(src, pub)
	tok := cpu.New(0).MaskInterrupts()

	src.Advance(5000)
	require.NoError(t, tb.SetTimescale(tok, testFrequency))
	first := tb.RebaseTime()
	require.Equal(t, uint64(5000), first)

	src.Advance(5000)
	require.NoError(t, tb.SetTimescale(tok, testFrequency))
	require.Equal(t, first, tb.RebaseTime())
}
