package cascade

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sort"

	"github.com/stratumgrid/resilience-core/pkg/models"
)

// canonicalRequest is a stable, field-ordered projection of
// SimulationRequest used only for fingerprinting: map/slice ordering
// in the wire struct must not affect the digest.
type canonicalRequest struct {
	ScenarioName               string   `json:"scenario_name"`
	EventKind                  string   `json:"event_kind"`
	EventSeverity              float64  `json:"event_severity"`
	EventTemperature           *float64 `json:"event_temperature,omitempty"`
	EventWindSpeed             *float64 `json:"event_wind_speed,omitempty"`
	EventPrecipitation         *float64 `json:"event_precipitation,omitempty"`
	InitialFailures            []string `json:"initial_failures"`
	HorizonMinutes             float64  `json:"horizon_minutes"`
	TimeStepMinutes            float64  `json:"time_step_minutes"`
	MonteCarloRuns             int      `json:"monte_carlo_runs"`
	ConfidenceLevel            float64  `json:"confidence_level"`
	BasePropagationProbability float64  `json:"base_propagation_probability"`
	LoadThresholdMultiplier    float64  `json:"load_threshold_multiplier"`
	RecoveryEnabled            bool     `json:"recovery_enabled"`
	MeanRecoveryTimeMinutes    float64  `json:"mean_recovery_time_minutes"`
}

// Fingerprint computes the deterministic digest of a graph snapshot
// version and a normalized SimulationRequest, per spec §3/§4.C.4. Two
// requests that are semantically identical (same parameters, same
// snapshot version, initial_failures order-independent) produce the
// same Fingerprint.
func Fingerprint(graphVersion uint64, req *models.SimulationRequest) models.Fingerprint {
	initial := make([]string, len(req.InitialFailures))
	for i, id := range req.InitialFailures {
		initial[i] = string(id)
	}
	sort.Strings(initial)

	var temperature, windSpeed, precipitation *float64
	if env := req.Event.Environment; env != nil {
		temperature, windSpeed, precipitation = env.Temperature, env.WindSpeed, env.Precipitation
	}

	cr := canonicalRequest{
		ScenarioName:               req.ScenarioName,
		EventKind:                  string(req.Event.Kind),
		EventSeverity:              req.Event.Severity,
		EventTemperature:           temperature,
		EventWindSpeed:             windSpeed,
		EventPrecipitation:         precipitation,
		InitialFailures:            initial,
		HorizonMinutes:             req.HorizonMinutes,
		TimeStepMinutes:            req.TimeStepMinutes,
		MonteCarloRuns:             req.MonteCarloRuns,
		ConfidenceLevel:            req.ConfidenceLevel,
		BasePropagationProbability: req.BasePropagationProbability,
		LoadThresholdMultiplier:    req.LoadThresholdMultiplier,
		RecoveryEnabled:            req.RecoveryEnabled,
		MeanRecoveryTimeMinutes:    req.MeanRecoveryTimeMinutes,
	}

	buf, _ := json.Marshal(cr)
	sum := sha256.Sum256(append([]byte(fmt.Sprintf("v%d:", graphVersion)), buf...))
	return models.Fingerprint(fmt.Sprintf("%x", sum))
}

// MasterSeed derives the deterministic master seed for a fingerprint.
// Identical fingerprints always yield identical master seeds, which is
// what makes the Monte-Carlo aggregate reproducible.
func MasterSeed(fp models.Fingerprint) int64 {
	sum := sha256.Sum256([]byte(fp))
	return int64(binary.BigEndian.Uint64(sum[:8]))
}

// RunSeed derives run index i's seed from the master seed. Runs never
// share RNG state because each gets an independently-seeded source.
func RunSeed(masterSeed int64, runIndex int) int64 {
	h := fnv.New64a()
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], uint64(masterSeed))
	binary.BigEndian.PutUint64(buf[8:], uint64(runIndex))
	_, _ = h.Write(buf[:])
	return int64(h.Sum64())
}
