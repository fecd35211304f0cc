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

package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/facebook/rtclock/daemon"
)

func main() {
	var (
		cfgPath string
		verbose bool
	)
	cfg := daemon.DefaultConfig()

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "rtclock daemon\n")
		fmt.Fprintf(flag.CommandLine.Output(), "%s\n\nFlags:\n", daemon.MathHelp)
		flag.PrintDefaults()
	}

	flag.Uint64Var(&cfg.Frequency, "frequency", 0, "Cycle counter frequency in Hz. 0 means measure at startup")
	flag.DurationVar(&cfg.MeasureDuration, "measure", cfg.MeasureDuration, "How long to sample the counter when measuring frequency")
	flag.DurationVar(&cfg.Interval, "i", time.Second, "Interval at which we re-arm the timer and update stats")
	flag.IntVar(&cfg.RingSize, "buffer", daemon.MathDefaultHistory, "Size of ring buffers, must be at least size of largest num of samples used in the drift formula")
	flag.StringVar(&cfg.ShmPath, "shm", daemon.DefaultShmPath, "Where to export the calibration tuple for other processes")
	flag.IntVar(&cfg.MonitoringPort, "monitoringport", cfg.MonitoringPort, "Port to run monitoring server on, 0 to disable")
	flag.StringVar(&cfg.Math.Drift, "drift", daemon.MathDefaultDrift, "Math expression for drift estimation in cycles")

	flag.StringVar(&cfgPath, "cfg", "", "Path to config")
	flag.BoolVar(&verbose, "verbose", false, "Verbose logging")

	flag.Parse()

	log.SetReportCaller(true)
	if verbose {
		log.SetLevel(log.DebugLevel)
	}
	if cfgPath != "" {
		log.Warningf("using config from %s, flag values are ignored", cfgPath)
		var err error
		cfg, err = daemon.ReadConfig(cfgPath)
		if err != nil {
			log.Fatal(err)
		}
	}
	if err := cfg.EvalAndValidate(); err != nil {
		log.Fatal(err)
	}

	d, err := daemon.New(cfg, daemon.NewStats())
	if err != nil {
		log.Fatal(err)
	}
	if err := d.Run(context.Background()); err != nil {
		log.Fatal(err)
	}
}
