package cascade

import (
	"sort"

	"github.com/stratumgrid/resilience-core/pkg/models"
)

// topBottlenecks bounds how many bottleneck nodes are reported. The
// distilled spec does not name a knob for this (only top_k_critical_paths
// is named); original_source/services/cascading-failure ranks its
// analogous heuristic to a top-10 list, which this expansion keeps.
const topBottlenecks = 10

// bottlenecks ranks nodes by marginal contribution to aggregate
// impact: the expected reduction in impact score if the node were
// hardened (never failed). Per spec §4.C.3 this is approximated by
// removing the node from the successor-of-failure relation and
// replaying each run's already-recorded trajectory without
// re-sampling, keeping the cost linear in runs rather than requiring
// a second Monte-Carlo pass.
func bottlenecks(runs []*models.RunResult, criticality map[models.NodeID]float64, tau float64) []models.BottleneckNode {
	candidateSet := map[models.NodeID]bool{}
	for _, run := range runs {
		if run == nil {
			continue
		}
		for id := range run.FailedNodes {
			candidateSet[id] = true
		}
	}

	contribution := make(map[models.NodeID]float64, len(candidateSet))
	for candidate := range candidateSet {
		var total float64
		for _, run := range runs {
			if run == nil || !run.FailedNodes[candidate] {
				continue
			}
			hardened := replayWithout(run, candidate)
			total += impactWithout(run, criticality, tau) - impactWithoutSet(run, criticality, tau, hardened)
		}
		if len(runs) > 0 {
			contribution[candidate] = total / float64(len(runs))
		}
	}

	result := make([]models.BottleneckNode, 0, len(contribution))
	for id, c := range contribution {
		result = append(result, models.BottleneckNode{NodeID: id, MarginalContribution: c})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].MarginalContribution != result[j].MarginalContribution {
			return result[i].MarginalContribution > result[j].MarginalContribution
		}
		return result[i].NodeID < result[j].NodeID
	})
	if len(result) > topBottlenecks {
		result = result[:topBottlenecks]
	}
	return result
}

// replayWithout returns the set of nodes that would NOT have failed in
// run had candidate been hardened: candidate itself, plus every node
// whose recorded cause chain passes through candidate.
func replayWithout(run *models.RunResult, candidate models.NodeID) map[models.NodeID]bool {
	children := make(map[models.NodeID][]models.NodeID)
	for id := range run.FailedNodes {
		cause := run.Cause[id]
		if cause != noCause {
			children[cause] = append(children[cause], id)
		}
	}

	removed := map[models.NodeID]bool{candidate: true}
	queue := []models.NodeID{candidate}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, child := range children[cur] {
			if !removed[child] {
				removed[child] = true
				queue = append(queue, child)
			}
		}
	}
	return removed
}

func impactWithout(run *models.RunResult, criticality map[models.NodeID]float64, tau float64) float64 {
	total := 0.0
	for id, failed := range run.FailedNodes {
		if !failed {
			continue
		}
		total += criticality[id] * (1 + failTimePenalty(run.TimeToFailure[id], tau))
	}
	return total
}

func impactWithoutSet(run *models.RunResult, criticality map[models.NodeID]float64, tau float64, excluded map[models.NodeID]bool) float64 {
	total := 0.0
	for id, failed := range run.FailedNodes {
		if !failed || excluded[id] {
			continue
		}
		total += criticality[id] * (1 + failTimePenalty(run.TimeToFailure[id], tau))
	}
	return total
}
