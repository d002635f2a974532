package cascade

import (
	"math"

	"github.com/stratumgrid/resilience-core/pkg/models"
)

// impactScore computes the per-run impact score of §4.C.2: a weighted
// sum over failed nodes of criticality, penalized more heavily for
// early failures than late ones.
func impactScore(rs *runState, criticality map[models.NodeID]float64, tau float64) float64 {
	total := 0.0
	for id, failed := range rs.failed {
		if !failed {
			continue
		}
		total += criticality[id] * (1 + failTimePenalty(rs.tFailed[id], tau))
	}
	return total
}

// failTimePenalty is exp(-t/tau): higher for early failures.
func failTimePenalty(tFailed, tau float64) float64 {
	if math.IsInf(tFailed, 1) {
		return 0
	}
	return math.Exp(-tFailed / tau)
}
