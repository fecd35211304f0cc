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
	"os"

	"github.com/davecgh/go-spew/spew"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/exp/constraints"

	"github.com/facebook/rtclock/commpage"
	"github.com/facebook/rtclock/cycles"
	"github.com/facebook/rtclock/timebase"
)

type status int

// possible check results
const (
	OK status = iota
	WARN
	FAIL
)

var okString = color.GreenString("[ OK ]")
var warnString = color.YellowString("[WARN]")
var failString = color.RedString("[FAIL]")

var statusToColor = []string{okString, warnString, failString}

// generic function to check value against some thresholds
func checkAgainstThreshold[T constraints.Ordered](name string, value, warnThreshold, failThreshold T, explanation string) (status, string) {
	if value > failThreshold {
		return FAIL, fmt.Sprintf("%s is %s. %s", name, color.RedString("%v", value), explanation)
	}
	if value > warnThreshold {
		return WARN, fmt.Sprintf("%s is %s. %s", name, color.YellowString("%v", value), explanation)
	}
	return OK, fmt.Sprintf("%s is %s", name, color.GreenString("%v", value))
}

func checkCalibrated(t timebase.Tuple) (status, string) {
	if t.Scale == 0 {
		return FAIL, "tuple has zero scale, the clock was never calibrated"
	}
	return OK, fmt.Sprintf("scale is %s", color.GreenString("%d", t.Scale))
}

func checkMonotonic(t timebase.Tuple, src cycles.Source) (status, string) {
	first := t.Now(src.Cycles())
	second := t.Now(src.Cycles())
	if second < first {
		return FAIL, fmt.Sprintf("time went backwards: %d then %d", first, second)
	}
	return OK, "successive reads are non-decreasing"
}

func statusRun(shmPath string) error {
	reader, err := commpage.Open(shmPath)
	if err != nil {
		return fmt.Errorf("opening exported tuple: %w", err)
	}
	defer reader.Close()
	t, err := reader.Load()
	if err != nil {
		return fmt.Errorf("reading exported tuple: %w", err)
	}
	if rootVerboseFlag {
		log.Debug(spew.Sdump(t))
	}

	src := cycles.Runtime{}
	now := t.Now(src.Cycles())
	secs, usecs, _ := timebase.AbsoluteToMicrotime(now)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"field", "value"})
	table.Append([]string{"cycle_base", fmt.Sprintf("%d", t.CycleBase)})
	table.Append([]string{"time_base", fmt.Sprintf("%d", t.TimeBase)})
	table.Append([]string{"scale", fmt.Sprintf("%d", t.Scale)})
	table.Append([]string{"shift", fmt.Sprintf("%d", t.Shift)})
	table.Append([]string{"abs_time", fmt.Sprintf("%d", now)})
	table.Append([]string{"uptime", fmt.Sprintf("%d.%06ds", secs, usecs)})
	table.Render()

	checks := []func() (status, string){
		func() (status, string) { return checkCalibrated(t) },
		func() (status, string) { return checkMonotonic(t, src) },
		func() (status, string) {
			return checkAgainstThreshold("shift", t.Shift, 0, 24,
				"a large shift means a very slow or badly virtualized counter")
		},
	}
	failed := false
	for _, check := range checks {
		s, msg := check()
		fmt.Printf("%s %s\n", statusToColor[s], msg)
		if s == FAIL {
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
	return nil
}

func init() {
	RootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the exported calibration tuple and run sanity checks on it",
	Run: func(c *cobra.Command, args []string) {
		ConfigureVerbosity()
		if err := statusRun(rootShmFlag); err != nil {
			log.Fatal(err)
		}
	},
}
