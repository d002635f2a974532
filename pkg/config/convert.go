package config

import (
	"runtime"
	"time"

	"github.com/stratumgrid/resilience-core/internal/cascade"
	"github.com/stratumgrid/resilience-core/internal/ingest"
	"github.com/stratumgrid/resilience-core/internal/scoring"
	"github.com/stratumgrid/resilience-core/pkg/models"
)

// ResolvedWorkerPoolSize returns WorkerPoolSize, or the number of
// logical cores when it is left at its zero-value default.
func (c PlatformConfig) ResolvedWorkerPoolSize() int {
	if c.WorkerPoolSize > 0 {
		return c.WorkerPoolSize
	}
	return runtime.GOMAXPROCS(0)
}

// CriticalityStalenessDuration parses CriticalityStalenessBound. Call
// only after LoadPlatformConfig/ParsePlatformConfigYAML has validated
// the config; the error return exists for callers constructing a
// PlatformConfig by hand.
func (c PlatformConfig) CriticalityStalenessDuration() (time.Duration, error) {
	return time.ParseDuration(c.CriticalityStalenessBound)
}

// ScoringWeights translates the configured scoring section into a
// scoring.Weights value.
func (c PlatformConfig) ScoringWeights() scoring.Weights {
	return scoring.Weights{
		ReachabilityWeight: c.Scoring.ReachabilityWeight,
		DegreeWeight:       c.Scoring.DegreeWeight,
		StressWeight:       c.Scoring.StressWeight,
		ReachabilityDepth:  c.Scoring.ReachabilityDepth,
	}
}

// CascadeParams translates the configured cascade section and the
// top-level top_k_critical_paths knob into a cascade.Params value. An
// empty EventMultiplierTable falls back to cascade.DefaultMultiplierTable.
func (c PlatformConfig) CascadeParams() cascade.Params {
	table := cascade.DefaultMultiplierTable()
	if len(c.Cascade.EventMultiplierTable) > 0 {
		table = make(cascade.MultiplierTable, len(c.Cascade.EventMultiplierTable))
		for eventKind, byNodeKind := range c.Cascade.EventMultiplierTable {
			perKind := make(map[models.NodeKind]float64, len(byNodeKind))
			for nodeKind, mult := range byNodeKind {
				perKind[models.NodeKind(nodeKind)] = mult
			}
			table[models.EventKind(eventKind)] = perKind
		}
	}
	return cascade.Params{
		MultiplierTable:     table,
		RedistributionAlpha: c.Cascade.RecoveryFractionAlpha,
		StressSensitivityK:  c.Cascade.StressSensitivityK,
		StaleAfterTicks:     c.Cascade.StaleAfterTicks,
		TopKCriticalPaths:   c.TopKCriticalPaths,
	}
}

// IngestOptions translates the ingestion section into ingest.Options
// ready to pass to ingest.New.
func (c PlatformConfig) IngestOptions() []ingest.Option {
	opts := []ingest.Option{ingest.WithBufferCapacity(c.Ingestion.Default)}
	for dataType, capacity := range c.Ingestion.ByDataType {
		opts = append(opts, ingest.WithBufferCapacityForType(models.DataType(dataType), capacity))
	}
	return opts
}
