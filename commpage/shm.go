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
	"os"

	"golang.org/x/sys/unix"

	"github.com/facebook/rtclock/timebase"
)

// Create opens (creating if needed) the shared-memory file at path and
// returns a page mirroring every publish into it. The file is sized to
// Size and world-readable so unprivileged readers can map it.
func Create(path string) (*Page, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}
	if err := f.Truncate(Size); err != nil {
		f.Close()
		return nil, err
	}
	raw, err := unix.Mmap(int(f.Fd()), 0, Size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &Page{raw: raw, f: f}, nil
}

// Close unmaps and closes the mirror of a file-backed page. No-op for a
// memory-only page.
func (p *Page) Close() error {
	if p.raw == nil {
		return nil
	}
	if err := unix.Munmap(p.raw); err != nil {
		return err
	}
	return p.f.Close()
}

// Reader maps an existing shared-memory page read-only.
type Reader struct {
	f   *os.File
	raw []byte
}

// Open maps the shared-memory file at path for reading.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	raw, err := unix.Mmap(int(f.Fd()), 0, Size, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &Reader{f: f, raw: raw}, nil
}

// maxLoadRetries bounds how long a reader chases an in-flight write before
// reporting a torn read.
const maxLoadRetries = 1000

// Load returns the published tuple, retrying while the writer is mid-update.
func (r *Reader) Load() (timebase.Tuple, error) {
	var err error
	for i := 0; i < maxLoadRetries; i++ {
		var t timebase.Tuple
		t, err = Decode(r.raw)
		if err == nil {
			return t, nil
		}
	}
	return timebase.Tuple{}, err
}

// Close unmaps and closes the page.
func (r *Reader) Close() error {
	if err := unix.Munmap(r.raw); err != nil {
		return err
	}
	return r.f.Close()
}
