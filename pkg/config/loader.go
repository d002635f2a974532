package config

import (
	"fmt"
	"os"
	"time"

	"github.com/stratumgrid/resilience-core/pkg/models"
)

// LoadPlatformConfig reads and parses a PlatformConfig file.
func LoadPlatformConfig(path string) (*PlatformConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	cfg, err := ParsePlatformConfigYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// validLogLevels mirrors the level vocabulary pkg/logger accepts.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validatePlatformConfig checks every knob's bound against the ranges
// spec §6 and §4 fix for it, returning a structured *models.Error on
// the first violation.
func validatePlatformConfig(cfg *PlatformConfig) error {
	const op = "config.validatePlatformConfig"

	if !validLogLevels[cfg.LogLevel] {
		return models.InvalidRequest(op, fmt.Sprintf("invalid log_level %q (must be debug, info, warn, or error)", cfg.LogLevel))
	}
	if cfg.WorkerPoolSize < 0 {
		return models.InvalidRequest(op, "worker_pool_size cannot be negative")
	}
	if cfg.CoordinatorQueueCapacity <= 0 {
		return models.InvalidRequest(op, "coordinator_queue_capacity must be positive")
	}
	if cfg.WorkBudget < 0 {
		return models.InvalidRequest(op, "work_budget cannot be negative")
	}
	if _, err := time.ParseDuration(cfg.CriticalityStalenessBound); err != nil {
		return models.InvalidRequest(op, fmt.Sprintf("criticality_staleness_bound %q is not a valid duration: %v", cfg.CriticalityStalenessBound, err))
	}
	if err := validateIngestion(&cfg.Ingestion); err != nil {
		return err
	}
	if err := validateScoring(&cfg.Scoring); err != nil {
		return err
	}
	if err := validateCascade(&cfg.Cascade); err != nil {
		return err
	}
	if cfg.TopKCriticalPaths <= 0 {
		return models.InvalidRequest(op, "top_k_critical_paths must be positive")
	}
	if cfg.ConfidenceLevel <= 0 || cfg.ConfidenceLevel >= 1 {
		return models.InvalidRequest(op, "confidence_level must be in (0,1)")
	}
	if cfg.MaxHorizonMinutes <= 0 {
		return models.InvalidRequest(op, "max_horizon_minutes must be positive")
	}
	if cfg.MinTimeStepMinutes <= 0 {
		return models.InvalidRequest(op, "min_time_step_minutes must be positive")
	}
	if cfg.MinTimeStepMinutes > cfg.MaxHorizonMinutes {
		return models.InvalidRequest(op, "min_time_step_minutes cannot exceed max_horizon_minutes")
	}
	return nil
}

func validateIngestion(c *IngestionConfig) error {
	const op = "config.validateIngestion"
	if c.Default <= 0 {
		return models.InvalidRequest(op, "ingestion.default_buffer_capacity must be positive")
	}
	for dataType, capacity := range c.ByDataType {
		if capacity <= 0 {
			return models.InvalidRequest(op, fmt.Sprintf("ingestion.buffer_capacity_by_data_type[%s] must be positive", dataType))
		}
	}
	return nil
}

func validateScoring(c *ScoringConfig) error {
	const op = "config.validateScoring"
	if c.ReachabilityWeight < 0 || c.DegreeWeight < 0 || c.StressWeight < 0 {
		return models.InvalidRequest(op, "scoring weights cannot be negative")
	}
	sum := c.ReachabilityWeight + c.DegreeWeight + c.StressWeight
	if sum <= 0 {
		return models.InvalidRequest(op, "scoring weights must sum to a positive value")
	}
	if c.ReachabilityDepth <= 0 {
		return models.InvalidRequest(op, "scoring.reachability_depth must be positive")
	}
	return nil
}

func validateCascade(c *CascadeConfig) error {
	const op = "config.validateCascade"
	if c.RecoveryFractionAlpha < 0 || c.RecoveryFractionAlpha > 1 {
		return models.InvalidRequest(op, "cascade.recovery_fraction_alpha must be in [0,1]")
	}
	if c.StressSensitivityK < 0 {
		return models.InvalidRequest(op, "cascade.stress_sensitivity_k cannot be negative")
	}
	if c.StaleAfterTicks < 0 {
		return models.InvalidRequest(op, "cascade.stale_after_ticks cannot be negative")
	}
	for eventKind, byNodeKind := range c.EventMultiplierTable {
		for nodeKind, mult := range byNodeKind {
			if mult < 0 {
				return models.InvalidRequest(op, fmt.Sprintf("cascade.event_multiplier_table[%s][%s] cannot be negative", eventKind, nodeKind))
			}
		}
	}
	return nil
}
