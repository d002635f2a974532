package config

// DefaultPlatformConfig returns the spec-mandated defaults for every
// knob PlatformConfig exposes. Callers typically load a YAML file over
// this base rather than requiring every field to be set explicitly.
func DefaultPlatformConfig() PlatformConfig {
	return PlatformConfig{
		LogLevel:                  "info",
		WorkerPoolSize:            0, // 0 resolves to logical cores, see ResolvedWorkerPoolSize
		CoordinatorQueueCapacity:  64,
		WorkBudget:                0, // 0 disables the budget check
		CriticalityStalenessBound: "5m",
		Ingestion: IngestionConfig{
			Default: 128,
		},
		Scoring: ScoringConfig{
			ReachabilityWeight: 0.5,
			DegreeWeight:       0.3,
			StressWeight:       0.2,
			ReachabilityDepth:  4,
		},
		Cascade: CascadeConfig{
			RecoveryFractionAlpha: 0.5,
			StressSensitivityK:    1.0,
			StaleAfterTicks:       3,
		},
		TopKCriticalPaths:  5,
		ConfidenceLevel:    0.95,
		MaxHorizonMinutes:  10080, // one week
		MinTimeStepMinutes: 1,
	}
}
