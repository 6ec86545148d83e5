// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics exposes Prometheus collectors for the debug engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// commandsTotal tracks continuation commands by kind and outcome
	commandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "debuggee_commands_total",
			Help: "Total continuation commands received by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	// pausesTotal tracks interpreter suspensions
	pausesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "debuggee_pauses_total",
			Help: "Total times the interpreter paused, by reason",
		},
		[]string{"reason"},
	)

	// sessionsActive tracks attached debug sessions
	sessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "debuggee_sessions_active",
			Help: "Number of debug sessions with an attached program",
		},
	)

	// connectFailures tracks failed dials to the debugging client
	connectFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "debuggee_connect_failures_total",
			Help: "Total failed connection attempts to the debugging client",
		},
	)

	// protocolErrors tracks protocol commands answered with an error
	protocolErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "debuggee_protocol_errors_total",
			Help: "Total protocol commands answered with an error, by command",
		},
		[]string{"command"},
	)

	// scriptRuns tracks finished script executions
	scriptRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "debuggee_script_runs_total",
			Help: "Total script executions by outcome",
		},
		[]string{"outcome"},
	)

	// scriptDuration tracks wall-clock execution time including pauses
	scriptDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "debuggee_script_duration_seconds",
			Help:    "Script execution time including time spent paused",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
		},
	)
)

// RecordCommand increments the command counter.
func RecordCommand(kind, outcome string) {
	commandsTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordPause increments the pause counter.
func RecordPause(reason string) {
	pausesTotal.WithLabelValues(reason).Inc()
}

// SessionAttached increments the active session gauge.
func SessionAttached() {
	sessionsActive.Inc()
}

// SessionDetached decrements the active session gauge.
func SessionDetached() {
	sessionsActive.Dec()
}

// RecordConnectFailure increments the connect failure counter.
func RecordConnectFailure() {
	connectFailures.Inc()
}

// RecordProtocolError increments the protocol error counter.
func RecordProtocolError(command string) {
	protocolErrors.WithLabelValues(command).Inc()
}

// RecordScriptRun records a finished execution.
func RecordScriptRun(outcome string, elapsed time.Duration) {
	scriptRuns.WithLabelValues(outcome).Inc()
	scriptDuration.Observe(elapsed.Seconds())
}

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
