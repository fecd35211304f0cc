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
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// Monitoring exposes daemon counters over http, both as prometheus metrics
// and as plain JSON.
type Monitoring struct {
	registry *prometheus.Registry
	stats    *Stats
	port     int
}

// NewMonitoring creates a monitoring server for stats.
func NewMonitoring(stats *Stats, port int) *Monitoring {
	return &Monitoring{registry: prometheus.NewRegistry(), stats: stats, port: port}
}

func flattenKey(key string) string {
	return strings.NewReplacer(".", "_", "-", "_", " ", "_", "/", "_").Replace(key)
}

func (m *Monitoring) refreshMetrics() {
	for key, val := range m.stats.Get() {
		gauge := prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rtclock_" + flattenKey(key),
			Help: key,
		})
		if err := m.registry.Register(gauge); err != nil {
			are := &prometheus.AlreadyRegisteredError{}
			if errors.As(err, are) {
				gauge = are.ExistingCollector.(prometheus.Gauge)
			} else {
				log.Errorf("failed to register metric %s: %v", key, err)
				continue
			}
		}
		gauge.Set(float64(val))
	}
}

// Start runs the monitoring http server. Blocks.
func (m *Monitoring) Start() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.refreshMetrics()
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	}))
	mux.Handle("/counters.json", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(m.stats.Get()); err != nil {
			log.Errorf("failed to encode counters: %v", err)
		}
	}))
	return http.ListenAndServe(fmt.Sprintf(":%d", m.port), mux)
}
