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

// Package commpage publishes the calibration tuple to readers that take no
// locks: a version-stamped page written by the single clock writer and read
// by everyone else, optionally mirrored into a shared-memory file so other
// processes can read it too.
//
// The write protocol is the usual seqlock: bump the sequence to odd, update
// the payload, checksum it, bump the sequence to even. A reader retries
// while the sequence is odd or changed under it, and verifies the checksum,
// so it can never observe a torn tuple.
package commpage

import (
	"encoding/binary"
	"errors"
	"os"
	"sync/atomic"

	"github.com/cespare/xxhash"

	"github.com/facebook/rtclock/timebase"
)

// Size is the byte size of the exported page.
const Size = 64

// page byte layout, little endian
const (
	offSeq       = 0  // uint32, odd while a write is in flight
	offCycleBase = 8  // uint64
	offTimeBase  = 16 // uint64
	offScale     = 24 // uint32
	offShift     = 28 // uint32
	offSum       = 32 // uint64, xxhash of payload
	payloadStart = offCycleBase
	payloadEnd   = offSum
)

// ErrTornRead means the page was under concurrent modification for every
// read attempt.
var ErrTornRead = errors.New("commpage: torn read")

// ErrChecksum means the page payload does not match its checksum.
var ErrChecksum = errors.New("commpage: checksum mismatch")

// Page is the writer side of the export surface. In-process readers go
// through Load; cross-process readers map the backing file and use Decode.
type Page struct {
	seq        atomic.Uint32
	cycleBase  atomic.Uint64
	timeBase   atomic.Uint64
	scaleShift atomic.Uint64 // scale in the high half, shift in the low

	raw []byte   // shared-memory mirror, nil for a memory-only page
	f   *os.File // backing file of the mirror
}

// New returns a memory-only page.
func New() *Page {
	return &Page{}
}

// Publish stores a new tuple. Single writer only, per the time base
// mutation protocol; the page enforces nothing itself.
func (p *Page) Publish(t timebase.Tuple) {
	p.seq.Add(1)
	p.cycleBase.Store(t.CycleBase)
	p.timeBase.Store(t.TimeBase)
	p.scaleShift.Store(uint64(t.Scale)<<32 | uint64(t.Shift))
	seq := p.seq.Add(1)
	if p.raw != nil {
		p.mirror(t, seq)
	}
}

// Load returns the current tuple, retrying while a write is in flight.
func (p *Page) Load() timebase.Tuple {
	for {
		s1 := p.seq.Load()
		if s1&1 != 0 {
			continue
		}
		t := timebase.Tuple{
			CycleBase: p.cycleBase.Load(),
			TimeBase:  p.timeBase.Load(),
		}
		ss := p.scaleShift.Load()
		t.Scale = uint32(ss >> 32)
		t.Shift = uint32(ss)
		if p.seq.Load() == s1 {
			return t
		}
	}
}

// mirror serializes the tuple into the shared-memory mapping using the same
// seqlock discipline, for readers in other processes.
func (p *Page) mirror(t timebase.Tuple, seq uint32) {
	binary.LittleEndian.PutUint32(p.raw[offSeq:], seq-1) // odd
	binary.LittleEndian.PutUint64(p.raw[offCycleBase:], t.CycleBase)
	binary.LittleEndian.PutUint64(p.raw[offTimeBase:], t.TimeBase)
	binary.LittleEndian.PutUint32(p.raw[offScale:], t.Scale)
	binary.LittleEndian.PutUint32(p.raw[offShift:], t.Shift)
	binary.LittleEndian.PutUint64(p.raw[offSum:], xxhash.Sum64(p.raw[payloadStart:payloadEnd]))
	binary.LittleEndian.PutUint32(p.raw[offSeq:], seq)
}

// Decode extracts a tuple from a page image. Returns ErrTornRead if a write
// was in flight and ErrChecksum if the payload is corrupt; cross-process
// readers are expected to retry on either.
func Decode(b []byte) (timebase.Tuple, error) {
	if len(b) < Size {
		return timebase.Tuple{}, errors.New("commpage: short page")
	}
	if binary.LittleEndian.Uint32(b[offSeq:])&1 != 0 {
		return timebase.Tuple{}, ErrTornRead
	}
	if binary.LittleEndian.Uint64(b[offSum:]) != xxhash.Sum64(b[payloadStart:payloadEnd]) {
		return timebase.Tuple{}, ErrChecksum
	}
	return timebase.Tuple{
		CycleBase: binary.LittleEndian.Uint64(b[offCycleBase:]),
		TimeBase:  binary.LittleEndian.Uint64(b[offTimeBase:]),
		Scale:     binary.LittleEndian.Uint32(b[offScale:]),
		Shift:     binary.LittleEndian.Uint32(b[offShift:]),
	}, nil
}
