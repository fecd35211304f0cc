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

package commpage

import (
	"encoding/binary"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/facebook/rtclock/timebase"
)

var testTuple = timebase.Tuple{
	CycleBase: 0xDEADBEEF00,
	TimeBase:  123_456_789,
	Scale:     1 << 31,
	Shift:     1,
}

func TestPagePublishLoad(t *testing.T) {
	p := New()
	p.Publish(testTuple)
	require.Equal(t, testTuple, p.Load())

	next := testTuple
	next.TimeBase += 1000
	p.Publish(next)
	require.Equal(t, next, p.Load())
}

func TestPageConcurrentReaders(t *testing.T) {
	p := New()
	p.Publish(timebase.Tuple{TimeBase: 0, Scale: 1})

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var prev uint64
			for {
				select {
				case <-stop:
					return
				default:
				}
				got := p.Load()
				// the writer only moves the base forward, a torn read
				// would show up as a regression
				require.GreaterOrEqual(t, got.TimeBase, prev)
				prev = got.TimeBase
			}
		}()
	}
	for i := uint64(1); i <= 10_000; i++ {
		p.Publish(timebase.Tuple{CycleBase: i * 3, TimeBase: i, Scale: 1})
	}
	close(stop)
	wg.Wait()
}

func TestShmRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "commpage")
	p, err := Create(path)
	require.NoError(t, err)
	defer p.Close()

	p.Publish(testTuple)

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	got, err := r.Load()
	require.NoError(t, err)
	require.Equal(t, testTuple, got)
}

func TestDecodeRejectsCorruption(t *testing.T) {
	path := filepath.Join(t.TempDir(), "commpage")
	p, err := Create(path)
	require.NoError(t, err)
	defer p.Close()
	p.Publish(testTuple)

	img := make([]byte, Size)
	copy(img, p.raw)

	_, err = Decode(img)
	require.NoError(t, err)

	// flip a payload byte: the checksum must catch it
	img[offTimeBase] ^= 0xFF
	_, err = Decode(img)
	require.ErrorIs(t, err, ErrChecksum)

	// odd sequence means a write in flight
	copy(img, p.raw)
	binary.LittleEndian.PutUint32(img[offSeq:], binary.LittleEndian.Uint32(img[offSeq:])|1)
	_, err = Decode(img)
	require.ErrorIs(t, err, ErrTornRead)

	_, err = Decode(img[:10])
	require.Error(t, err)
}
