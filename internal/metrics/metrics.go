// Package metrics exposes the Prometheus counters and gauges the rest
// of the core records against: ingestion throughput, coordinator
// admission outcomes and queue depth, and fan-out delivery/drop
// counts.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// IngestionRecordsTotal counts ingested records by data_type and
	// outcome ("accepted" or a models.ErrorKind rejection reason).
	IngestionRecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "resilience_ingestion_records_total",
		Help: "Total ingestion records processed, by data_type and outcome",
	}, []string{"data_type", "outcome"})

	// CoordinatorSubmissionsTotal counts simulation submissions by
	// outcome: accepted, deduplicated, or overloaded.
	CoordinatorSubmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "resilience_coordinator_submissions_total",
		Help: "Total simulation submissions, by outcome",
	}, []string{"outcome"})

	// CoordinatorActiveJobs tracks the number of distinct in-flight
	// (deduplicated) simulation jobs.
	CoordinatorActiveJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "resilience_coordinator_active_jobs",
		Help: "Number of distinct simulation jobs currently running",
	})

	// FanoutEventsTotal counts events delivered or dropped by the
	// event bus, by topic and outcome ("delivered" or "dropped").
	FanoutEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "resilience_fanout_events_total",
		Help: "Total fan-out events, by topic and outcome",
	}, []string{"topic", "outcome"})
)
