/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package telemetry holds Prometheus metrics and OpenTelemetry tracing for
// the slot lifecycle engine.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// EngineRunsTotal counts engine stage invocations by stage name.
	EngineRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slotwarden_engine_runs_total",
		Help: "Engine stage invocations.",
	}, []string{"stage"})

	// EngineErrorsTotal counts engine stage failures by stage and reason.
	EngineErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slotwarden_engine_errors_total",
		Help: "Engine stage failures.",
	}, []string{"stage", "reason"})

	// EngineRunDuration observes how long each engine stage takes.
	EngineRunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "slotwarden_engine_run_duration_seconds",
		Help:    "Engine stage duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	// SlotShiftsTotal counts slot window shifts by slot and frequency.
	SlotShiftsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slotwarden_slot_shifts_total",
		Help: "Slot windows advanced by the shifter.",
	}, []string{"slot", "frequency"})

	// CredentialLocksTotal counts credentials locked by owning slot.
	CredentialLocksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slotwarden_credential_locks_total",
		Help: "Credentials locked by the lock pass.",
	}, []string{"slot"})

	// ClaimsClearedTotal counts stale account claims removed by slot.
	ClaimsClearedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slotwarden_claims_cleared_total",
		Help: "Stale account claims removed by the reconciler.",
	}, []string{"slot"})

	// APIRequestsTotal counts HTTP requests by method, endpoint and status.
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slotwarden_api_requests_total",
		Help: "HTTP requests served.",
	}, []string{"method", "endpoint", "status"})

	// APIRequestDuration observes HTTP request latency.
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "slotwarden_api_request_duration_seconds",
		Help:    "HTTP request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint", "status"})

	// APIActiveConnections tracks in-flight HTTP requests.
	APIActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "slotwarden_api_active_connections",
		Help: "In-flight HTTP requests.",
	})

	// LeaderElectionStatus reports whether this instance holds the lease.
	LeaderElectionStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "slotwarden_leader_election_status",
		Help: "1 when this instance is the leader, 0 otherwise.",
	}, []string{"instance"})

	// LeaderElectionChanges counts leadership transitions.
	LeaderElectionChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slotwarden_leader_election_changes_total",
		Help: "Leadership transitions by instance and direction.",
	}, []string{"instance", "change"})
)

// Handler exposes the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
