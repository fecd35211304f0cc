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
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/process"
)

var procStartTime = time.Now()

// collectSysStats gathers process and Go runtime statistics into stats.
func collectSysStats(stats StatsServer) error {
	m := &runtime.MemStats{}
	runtime.ReadMemStats(m)

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}
	stats.SetCounter("process.alive_since", procStartTime.Unix())
	stats.SetCounter("process.uptime", time.Now().Unix()-procStartTime.Unix())

	if val, err := proc.MemoryInfo(); err == nil {
		stats.SetCounter("process.rss", int64(val.RSS))
		stats.SetCounter("process.vms", int64(val.VMS))
	}
	if val, err := proc.NumThreads(); err == nil {
		stats.SetCounter("process.num_threads", int64(val))
	}

	stats.SetCounter("runtime.cpu.goroutines", int64(runtime.NumGoroutine()))
	stats.SetCounter("runtime.mem.alloc", int64(m.Alloc))
	stats.SetCounter("runtime.mem.sys", int64(m.Sys))
	stats.SetCounter("runtime.mem.heap.inuse", int64(m.HeapInuse))
	stats.SetCounter("runtime.gc.pause_total", int64(m.PauseTotalNs))
	return nil
}
