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

	"github.com/facebook/rtclock/cycles"
	"github.com/facebook/rtclock/timebase"
)

// flags
var calibrateDurationFlag time.Duration
var calibrateFrequencyFlag uint64

func calibrateRun(frequency uint64, duration time.Duration) error {
	if frequency == 0 {
		log.Infof("measuring cycle frequency over %v", duration)
		frequency = cycles.Measure(cycles.Runtime{}, duration)
	}
	ts, err := timebase.NewTimescale(frequency)
	if err != nil {
		return err
	}
	hz, clockRate := timebase.ExportSpeed(frequency)
	fmt.Printf("frequency: %d\n", frequency)
	fmt.Printf("frequency (rounded): %d\n", hz)
	fmt.Printf("clock rate (clamped): %d\n", clockRate)
	fmt.Printf("scale: %d\n", ts.Scale)
	fmt.Printf("shift: %d\n", ts.Shift)
	return nil
}

func init() {
	RootCmd.AddCommand(calibrateCmd)
	calibrateCmd.Flags().DurationVarP(&calibrateDurationFlag, "duration", "t", 200*time.Millisecond, "how long to sample the counter")
	calibrateCmd.Flags().Uint64VarP(&calibrateFrequencyFlag, "frequency", "f", 0, "skip measurement and calibrate for this frequency")
}

var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Measure the cycle frequency and show the timescale it calibrates to",
	Run: func(c *cobra.Command, args []string) {
		ConfigureVerbosity()
		if err := calibrateRun(calibrateFrequencyFlag, calibrateDurationFlag); err != nil {
			log.Fatal(err)
		}
	},
}
