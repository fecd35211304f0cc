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
	"fmt"
	"os"
	"time"

	yaml "gopkg.in/yaml.v2"
)

// DefaultShmPath is where the calibration tuple is exported for other
// processes to read.
const DefaultShmPath = "/dev/shm/rtclock_commpage"

// Config represents configuration we expect to read from file
type Config struct {
	Frequency       uint64        // cycle frequency in Hz, 0 means measure at startup
	MeasureDuration time.Duration // how long to sample the counter when measuring
	Interval        time.Duration // how often we re-arm the timer and refresh stats
	RingSize        int           // must be at least the largest num of samples used in the drift formula
	ShmPath         string        // where to export the calibration tuple
	MonitoringPort  int           // port for monitoring http server
	Math            Math          // configuration for drift estimation
}

// DefaultConfig returns a config with sane defaults.
func DefaultConfig() *Config {
	return &Config{
		MeasureDuration: 200 * time.Millisecond,
		Interval:        time.Second,
		RingSize:        MathDefaultHistory,
		ShmPath:         DefaultShmPath,
		MonitoringPort:  21049,
		Math:            Math{Drift: MathDefaultDrift},
	}
}

// EvalAndValidate makes sure config is valid and evaluates expressions for further use.
func (c *Config) EvalAndValidate() error {
	if c.Frequency == 0 && c.MeasureDuration <= 0 {
		return fmt.Errorf("bad config: either 'frequency' or 'measureduration' must be set")
	}
	if c.Interval <= 0 {
		return fmt.Errorf("bad config: 'interval' must be >0")
	}
	if c.Interval > time.Minute {
		return fmt.Errorf("bad config: 'interval' is over a minute")
	}
	if c.RingSize <= 0 {
		return fmt.Errorf("bad config: 'ringsize' must be >0")
	}
	if c.ShmPath == "" {
		return fmt.Errorf("bad config: 'shmpath' must be specified")
	}
	return c.Math.Prepare()
}

// ReadConfig reads config and unmarshals it from yaml into Config
func ReadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := Config{}
	err = yaml.UnmarshalStrict(data, &c)
	return &c, err
}
