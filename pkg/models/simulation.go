package models

import "time"

// Fingerprint is a deterministic digest of (graph snapshot version,
// request parameters), used both for the reproducibility contract and
// for coordinator-level request deduplication.
type Fingerprint string

// SimulationRequest describes one cascade-simulation ask.
type SimulationRequest struct {
	ScenarioName               string   `json:"scenario_name"`
	Event                      Event    `json:"event"`
	InitialFailures            []NodeID `json:"initial_failures"`
	HorizonMinutes             float64  `json:"horizon_minutes"`
	TimeStepMinutes            float64  `json:"time_step_minutes"`
	MonteCarloRuns             int      `json:"monte_carlo_runs"`
	ConfidenceLevel            float64  `json:"confidence_level"`
	BasePropagationProbability float64  `json:"base_propagation_probability"`
	LoadThresholdMultiplier    float64  `json:"load_threshold_multiplier"`
	RecoveryEnabled            bool     `json:"recovery_enabled"`
	MeanRecoveryTimeMinutes    float64  `json:"mean_recovery_time_minutes"`
}

// FailureEvent is one entry in a run's ordered failure timeline.
type FailureEvent struct {
	TMinutes float64 `json:"t_minutes"`
	NodeID   NodeID  `json:"node_id"`
	CauseID  NodeID  `json:"cause_id,omitempty"` // empty means "no cause" (initial failure or none)
}

// RunResult is the outcome of a single Monte-Carlo run.
type RunResult struct {
	Seed          int64                  `json:"seed"`
	Timeline      []FailureEvent         `json:"timeline"`
	FailedNodes   map[NodeID]bool        `json:"failed_nodes"`
	TimeToFailure map[NodeID]float64     `json:"time_to_failure"` // math.Inf(1) if never failed
	Cause         map[NodeID]NodeID      `json:"cause"`           // node -> the upstream that caused its failure
	ImpactScore   float64                `json:"impact_score"`
}

// ConfidenceInterval is a two-sided interval at some (implicit,
// request-carried) confidence level.
type ConfidenceInterval struct {
	Low  float64 `json:"low"`
	Mean float64 `json:"mean"`
	High float64 `json:"high"`
}

// CriticalPath is one chain of failure causation, from an initial
// failure to a leaf, tallied by frequency across runs.
type CriticalPath struct {
	Nodes            []NodeID `json:"nodes"`
	Frequency        int      `json:"frequency"`
	TotalCriticality float64  `json:"total_criticality"`
}

// BottleneckNode ranks a node by its estimated marginal contribution
// to aggregate impact.
type BottleneckNode struct {
	NodeID              NodeID  `json:"node_id"`
	MarginalContribution float64 `json:"marginal_contribution"`
}

// AggregateResult is the outcome of a full Monte-Carlo simulation
// (N runs aggregated).
type AggregateResult struct {
	FailureProbability     map[NodeID]float64    `json:"failure_probability"`
	MeanTimeToFailure      map[NodeID]float64    `json:"mean_time_to_failure"`
	AffectedNodesCI        ConfidenceInterval     `json:"affected_nodes_ci"`
	ImpactCI               ConfidenceInterval     `json:"impact_ci"`
	CriticalPaths          []CriticalPath         `json:"critical_paths"`
	BottleneckNodes        []BottleneckNode       `json:"bottleneck_nodes"`
	ComputationTimeSeconds float64                `json:"computation_time_seconds"`
	RunsCompleted          int                    `json:"runs_completed"`
	RunsRequested          int                    `json:"runs_requested"`
	Partial                bool                   `json:"partial"`
	Fingerprint            Fingerprint            `json:"fingerprint"`
}

// Topic is one of the closed set of fan-out publication topics.
type Topic string

const (
	TopicGraphMutation      Topic = "graph.mutation"
	TopicSimulationStarted  Topic = "simulation.started"
	TopicSimulationComplete Topic = "simulation.completed"
	TopicSimulationFailed   Topic = "simulation.failed"
)

// BusEvent is a single published notification on the fan-out bus. It is
// distinct from Event (the cascade-triggering initiating event).
type BusEvent struct {
	Topic     Topic          `json:"topic"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   any            `json:"payload"`
}

// DataType is the closed set of ingestion record payload kinds
// recognized and applied by the core.
type DataType string

const (
	DataTypeSensorLoad          DataType = "sensor.load"
	DataTypeSensorHealth        DataType = "sensor.health"
	DataTypeTopologyNodeUpsert  DataType = "topology.node.upsert"
	DataTypeTopologyNodeRemove  DataType = "topology.node.remove"
	DataTypeTopologyEdgeUpsert  DataType = "topology.edge.upsert"
	DataTypeTopologyEdgeRemove  DataType = "topology.edge.remove"
)

// RecognizedDataType reports whether dt is one the core applies to the
// graph store. Unrecognized types are still passed through fan-out.
func RecognizedDataType(dt DataType) bool {
	switch dt {
	case DataTypeSensorLoad, DataTypeSensorHealth, DataTypeTopologyNodeUpsert,
		DataTypeTopologyNodeRemove, DataTypeTopologyEdgeUpsert, DataTypeTopologyEdgeRemove:
		return true
	}
	return false
}

// IngestRecord is one unit of telemetry offered to the ingestion
// pipeline.
type IngestRecord struct {
	SourceID     string         `json:"source_id"`
	Timestamp    time.Time      `json:"timestamp"`
	DataType     DataType       `json:"data_type"`
	Payload      map[string]any `json:"payload"`
	QualityScore float64        `json:"quality_score"`
	Deadline     *time.Time     `json:"deadline,omitempty"`
}

// IngestSummary is the result of an IngestBatch call.
type IngestSummary struct {
	Accepted         int            `json:"accepted"`
	RejectedByReason map[string]int `json:"rejected_by_reason"`
}
