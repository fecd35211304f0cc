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
	_ "unsafe" // for go:linkname
)

//go:noescape
//go:linkname nanotime runtime.nanotime
func nanotime() int64

// Runtime is a Source backed by the Go runtime monotonic clock,
// behaving as a 1GHz free-running counter. It survives frequency
// stepping but, like a real counter, its relation to elapsed time
// is void across a full system sleep.
type Runtime struct{}

// Cycles returns the runtime monotonic clock reading.
func (Runtime) Cycles() uint64 {
	return uint64(nanotime())
}
