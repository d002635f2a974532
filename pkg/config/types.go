package config

// PlatformConfig is the root configuration for a resilience-core
// deployment: pool sizing, resource budgets, and the tunable knobs of
// the criticality scorer and cascade engine.
type PlatformConfig struct {
	LogLevel string `yaml:"log_level"`

	WorkerPoolSize           int   `yaml:"worker_pool_size"`
	CoordinatorQueueCapacity int   `yaml:"coordinator_queue_capacity"`
	WorkBudget               int64 `yaml:"work_budget"`

	// CriticalityStalenessBound is a Go duration string (e.g. "5m"),
	// governing how long a cached criticality score may be reused
	// before the scorer recomputes it.
	CriticalityStalenessBound string `yaml:"criticality_staleness_bound"`

	Ingestion IngestionConfig `yaml:"ingestion"`
	Scoring   ScoringConfig   `yaml:"scoring"`
	Cascade   CascadeConfig   `yaml:"cascade"`

	TopKCriticalPaths  int     `yaml:"top_k_critical_paths"`
	ConfidenceLevel    float64 `yaml:"confidence_level"`
	MaxHorizonMinutes  float64 `yaml:"max_horizon_minutes"`
	MinTimeStepMinutes float64 `yaml:"min_time_step_minutes"`
}

// IngestionConfig sizes the ingestion pipeline's admission buffers.
// ByDataType lets a bursty source class (e.g. sensor.load) be capped
// independently of slower-moving topology updates; a data type absent
// from ByDataType falls back to Default.
type IngestionConfig struct {
	Default    int64            `yaml:"default_buffer_capacity"`
	ByDataType map[string]int64 `yaml:"buffer_capacity_by_data_type,omitempty"`
}

// ScoringConfig configures the default criticality scorer's signal
// blend, mirroring scoring.Weights.
type ScoringConfig struct {
	ReachabilityWeight float64 `yaml:"reachability_weight"`
	DegreeWeight       float64 `yaml:"degree_weight"`
	StressWeight       float64 `yaml:"stress_weight"`
	ReachabilityDepth  int     `yaml:"reachability_depth"`
}

// CascadeConfig configures the cascade simulation engine's tunable
// parameters, mirroring cascade.Params.
type CascadeConfig struct {
	RecoveryFractionAlpha float64                       `yaml:"recovery_fraction_alpha"`
	StressSensitivityK    float64                       `yaml:"stress_sensitivity_k"`
	StaleAfterTicks       int                           `yaml:"stale_after_ticks"`
	EventMultiplierTable  map[string]map[string]float64 `yaml:"event_multiplier_table,omitempty"`
}
