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

package cmd

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/facebook/rtclock/commpage"
	"github.com/facebook/rtclock/cycles"
	"github.com/facebook/rtclock/timebase"
)

// flags
var readCountFlag int
var readIntervalFlag time.Duration

func readRun(shmPath string, count int, interval time.Duration) error {
	reader, err := commpage.Open(shmPath)
	if err != nil {
		return fmt.Errorf("opening exported tuple: %w", err)
	}
	defer reader.Close()

	src := cycles.Runtime{}
	var prev uint64
	for i := 0; i < count; i++ {
		t, err := reader.Load()
		if err != nil {
			return fmt.Errorf("reading exported tuple: %w", err)
		}
		now := t.Now(src.Cycles())
		secs, nsecs := timebase.AbsoluteToNanotime(now)
		fmt.Printf("%d (%d.%09ds)\n", now, secs, nsecs)
		if now < prev {
			return fmt.Errorf("time went backwards: %d then %d", prev, now)
		}
		prev = now
		if i != count-1 {
			time.Sleep(interval)
		}
	}
	return nil
}

func init() {
	RootCmd.AddCommand(readCmd)
	readCmd.Flags().IntVarP(&readCountFlag, "count", "c", 1, "number of reads")
	readCmd.Flags().DurationVarP(&readIntervalFlag, "interval", "i", 100*time.Millisecond, "delay between reads")
}

var readCmd = &cobra.Command{
	Use:   "read",
	Short: "Read absolute time through the exported tuple, verifying monotonicity",
	Run: func(c *cobra.Command, args []string) {
		ConfigureVerbosity()
		if err := readRun(rootShmFlag, readCountFlag, readIntervalFlag); err != nil {
			log.Fatal(err)
		}
	},
}
