package cascade

import (
	"math"

	"github.com/stratumgrid/resilience-core/pkg/models"
	"github.com/stratumgrid/resilience-core/pkg/utils"
)

const bootstrapResamples = 2000

// aggregate combines N (possibly fewer, if some runs failed twice)
// completed runs into an AggregateResult per §4.C.3.
func aggregate(runs []*models.RunResult, requested int, criticality map[models.NodeID]float64, req *models.SimulationRequest, params Params, fp models.Fingerprint, elapsedSeconds float64, bootstrapSeed int64) *models.AggregateResult {
	n := len(runs)
	failureCount := make(map[models.NodeID]int)
	timeToFailureSum := make(map[models.NodeID]float64)
	affectedCounts := make([]float64, 0, n)
	impacts := make([]float64, 0, n)

	for _, run := range runs {
		if run == nil {
			continue
		}
		affected := 0
		for id, failed := range run.FailedNodes {
			if !failed {
				continue
			}
			affected++
			failureCount[id]++
			if t := run.TimeToFailure[id]; !math.IsInf(t, 1) {
				timeToFailureSum[id] += t
			}
		}
		affectedCounts = append(affectedCounts, float64(affected))
		impacts = append(impacts, run.ImpactScore)
	}

	failureProbability := make(map[models.NodeID]float64, len(failureCount))
	meanTimeToFailure := make(map[models.NodeID]float64, len(failureCount))
	for id := range criticality {
		count := failureCount[id]
		if n > 0 {
			failureProbability[id] = float64(count) / float64(n)
		}
		// Nodes that never failed get no entry: the mean is taken over
		// failing runs only.
		if count > 0 {
			meanTimeToFailure[id] = timeToFailureSum[id] / float64(count)
		}
	}

	tau := req.HorizonMinutes / 4
	if tau <= 0 {
		tau = 1
	}

	rng := utils.NewRandSource(bootstrapSeed)
	affectedCI := bootstrapCI(affectedCounts, req.ConfidenceLevel, rng)
	impactCI := bootstrapCI(impacts, req.ConfidenceLevel, rng)

	result := &models.AggregateResult{
		FailureProbability:     failureProbability,
		MeanTimeToFailure:      meanTimeToFailure,
		AffectedNodesCI:        affectedCI,
		ImpactCI:               impactCI,
		CriticalPaths:          topCriticalPaths(runs, criticality, params.TopKCriticalPaths),
		BottleneckNodes:        bottlenecks(runs, criticality, tau),
		ComputationTimeSeconds: elapsedSeconds,
		RunsCompleted:          n,
		RunsRequested:          requested,
		Partial:                n < requested,
		Fingerprint:            fp,
	}
	return result
}

// bootstrapCI computes a percentile bootstrap confidence interval at
// the given confidence level (e.g. 0.95) over samples, per spec
// §4.C.3's "bootstrap or Wilson/Student-t CI" allowance.
func bootstrapCI(samples []float64, confidenceLevel float64, rng *utils.RandSource) models.ConfidenceInterval {
	if len(samples) == 0 {
		return models.ConfidenceInterval{}
	}
	if len(samples) == 1 {
		return models.ConfidenceInterval{Low: samples[0], Mean: samples[0], High: samples[0]}
	}

	means := make([]float64, bootstrapResamples)
	for i := 0; i < bootstrapResamples; i++ {
		resample := make([]float64, len(samples))
		for j := range resample {
			resample[j] = samples[rng.Intn(len(samples))]
		}
		means[i] = utils.Mean(resample)
	}

	alpha := 1 - confidenceLevel
	lowPct := 100 * (alpha / 2)
	highPct := 100 * (1 - alpha/2)

	return models.ConfidenceInterval{
		Low:  utils.Percentile(means, lowPct),
		Mean: utils.Mean(samples),
		High: utils.Percentile(means, highPct),
	}
}
