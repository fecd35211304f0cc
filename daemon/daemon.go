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

// Package daemon runs the monotonic clock engine in host context: it
// calibrates the time base from the measured cycle frequency, exports the
// calibration tuple through the commpage, keeps the soft timer armed, and
// reconciles the time base across suspend events it detects by comparing
// counter-derived time against the wall clock.
package daemon

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/facebook/rtclock/commpage"
	"github.com/facebook/rtclock/cpu"
	"github.com/facebook/rtclock/cycles"
	"github.com/facebook/rtclock/deadline"
	"github.com/facebook/rtclock/intr"
	"github.com/facebook/rtclock/timebase"
)

// resumeSlackNS is how far counter-derived time may lag the wall clock
// before we treat the gap as a counter stall during a deep idle state.
const resumeSlackNS = 50_000_000

// Daemon is the clock engine: time base, reconciler, deadline scheduler,
// soft timer and commpage export, plus the loops that drive them.
type Daemon struct {
	cfg   *Config
	stats *Stats
	state *daemonState

	proc  *cpu.Processor
	src   cycles.Source
	page  *commpage.Page
	tb    *timebase.TimeBase
	rec   *timebase.Reconciler
	sched *deadline.Scheduler
	dev   *softTimer
	demux *intr.Demux

	// serializes all tuple mutators; together with the interrupt-mask
	// token this is the system-wide single-writer protocol the time base
	// requires of its callers.
	writer sync.Mutex

	expiries atomic.Int64

	lastWall time.Time
	lastAbs  uint64
}

// New creates the daemon and its whole clock stack.
func New(cfg *Config, stats *Stats) (*Daemon, error) {
	page, err := commpage.Create(cfg.ShmPath)
	if err != nil {
		return nil, err
	}
	proc := cpu.New(0)
	src := cycles.Runtime{}
	tb := timebase.New(src, page)
	demux := &intr.Demux{}
	dev := newSoftTimer(proc, demux)
	sched := deadline.New(proc, tb, dev)

	d := &Daemon{
		cfg:   cfg,
		stats: stats,
		state: newDaemonState(cfg.RingSize),
		proc:  proc,
		src:   src,
		page:  page,
		tb:    tb,
		sched: sched,
		dev:   dev,
		demux: demux,
	}
	d.rec = timebase.NewReconciler(tb, dev, sched.ForceReevaluation)
	demux.Expiry = d.timerExpiry
	return d, nil
}

// timerExpiry is the generic timer-expiry dispatcher fed by the demux.
func (d *Daemon) timerExpiry(userMode bool, ip uint64) {
	d.expiries.Add(1)
	log.Debugf("timer expiry: user=%v ip=%#x", userMode, ip)
}

// mutate runs fn with the single-writer protocol held.
func (d *Daemon) mutate(fn func(tok cpu.Token)) {
	d.writer.Lock()
	defer d.writer.Unlock()
	tok := d.proc.MaskInterrupts()
	defer tok.Restore()
	fn(tok)
}

func (d *Daemon) startup() error {
	freq := d.cfg.Frequency
	if freq == 0 {
		log.Infof("measuring cycle frequency over %v", d.cfg.MeasureDuration)
		freq = cycles.Measure(d.src, d.cfg.MeasureDuration)
	}
	var err error
	d.mutate(func(tok cpu.Token) {
		err = d.tb.SetTimescale(tok, freq)
	})
	if err != nil {
		return err
	}
	t := d.tb.Tuple()
	if t.Shift != 0 {
		log.Warningf("slow cycle counter, timescale shift == %d", t.Shift)
	}
	hz, clockRate := timebase.ExportSpeed(freq)
	log.Infof("[rtclock] frequency %d (%d), scale %d shift %d", hz, freq, t.Scale, t.Shift)

	d.stats.SetCounter("clock.frequency", int64(freq))
	d.stats.SetCounter("clock.frequency_rounded", int64(hz))
	d.stats.SetCounter("clock.clock_rate", int64(clockRate))
	d.stats.SetCounter("clock.scale", int64(t.Scale))
	d.stats.SetCounter("clock.shift", int64(t.Shift))
	d.stats.SetCounter("clock.rebase_time", int64(d.tb.RebaseTime()))

	d.dev.Configure()
	d.sched.ForceReevaluation()

	d.lastWall = time.Now()
	d.lastAbs = d.tb.Read()
	return nil
}

// Run starts the engine and blocks until the context is cancelled or a
// loop fails.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.startup(); err != nil {
		return err
	}
	eg, ctx := errgroup.WithContext(ctx)
	if d.cfg.MonitoringPort > 0 {
		mon := NewMonitoring(d.stats, d.cfg.MonitoringPort)
		eg.Go(mon.Start)
	}
	eg.Go(func() error {
		defer d.page.Close()
		ticker := time.NewTicker(d.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				d.tick()
			}
		}
	})
	return eg.Wait()
}

func (d *Daemon) tick() {
	d.reconcile()
	d.adjustDrift()
	d.rearm()

	now := d.tb.Read()
	secs, usecs := d.tb.Microtime()
	log.Debugf("abs time %d (%d.%06ds)", now, secs, usecs)
	d.stats.SetCounter("clock.abs_time", int64(now))
	d.stats.SetCounter("timer.expiries", d.expiries.Load())
	if err := collectSysStats(d.stats); err != nil {
		log.Warningf("collecting sys stats: %v", err)
	}

	d.lastWall = time.Now()
	d.lastAbs = d.tb.Read()
}

// reconcile detects power events from the divergence between wall-clock
// elapsed time and counter-derived elapsed time, and applies the matching
// update policy.
func (d *Daemon) reconcile() {
	wallElapsed := uint64(time.Since(d.lastWall).Nanoseconds())
	abs := d.tb.Read()
	absElapsed := abs - d.lastAbs

	t := d.tb.Tuple()
	if d.src.Cycles() < t.CycleBase {
		// counter went backwards: it was reset across a full sleep
		log.Warningf("cycle counter reset detected, reinitializing time base")
		d.mutate(func(tok cpu.Token) {
			d.rec.OnSleepWakeup(tok, d.lastAbs+wallElapsed)
		})
		d.stats.UpdateCounterBy("power.sleep_resets", 1)
		return
	}
	if wallElapsed > absElapsed+resumeSlackNS {
		// counter stalled in a deep idle state: offer a corrected base
		candidate := d.lastAbs + wallElapsed
		var adopted bool
		d.mutate(func(tok cpu.Token) {
			adopted = d.rec.OnCounterResume(tok, candidate, d.src.Cycles())
		})
		if adopted {
			log.Infof("adopted idle-exit base, time advanced by %dns", candidate-abs)
			d.stats.UpdateCounterBy("power.idle_exits.adopted", 1)
		} else {
			d.stats.UpdateCounterBy("power.idle_exits.rejected", 1)
		}
	}
}

// adjustDrift evaluates the configured drift expression over collected
// samples and applies a bounded backward nudge when the estimate is in
// range.
func (d *Daemon) adjustDrift() {
	slippages := d.state.takeSlippages(d.cfg.RingSize)
	if len(slippages) == 0 {
		return
	}
	params := map[string]any{
		"slippage": slippages,
		"drift":    d.state.takeDrifts(d.cfg.RingSize),
	}
	est, err := evalExpr(d.cfg.Math.driftExpr, params)
	if err != nil {
		log.Warningf("evaluating drift expression: %v", err)
		return
	}
	if est < 1 {
		return
	}
	cyc := uint64(est)
	if cyc > timebase.MaxCycleAdjust {
		return
	}
	d.mutate(func(tok cpu.Token) {
		err = d.rec.OnDriftAdjust(tok, cyc)
	})
	if err != nil {
		log.Warningf("applying drift adjustment of %d cycles: %v", cyc, err)
		return
	}
	d.state.pushDrift(float64(cyc))
	d.stats.UpdateCounterBy("drift.adjustments", 1)
	d.stats.SetCounter("drift.last_cycles", int64(cyc))
}

// rearm requests the next tick's deadline and records the arm slippage.
func (d *Daemon) rearm() {
	target := d.tb.Read() + uint64(d.cfg.Interval.Nanoseconds())
	var slip int64
	d.mutate(func(tok cpu.Token) {
		slip = d.sched.Request(tok, deadline.At(target))
	})
	d.state.pushSlippage(float64(slip))
	d.stats.SetCounter("timer.slippage", slip)
	d.stats.SetCounter("timer.state", int64(d.sched.State()))
}
