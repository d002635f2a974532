package cascade

import (
	"sort"

	"github.com/stratumgrid/resilience-core/pkg/models"
)

// reconstructChains walks the cause forest of a single run from every
// failed leaf back to its root (an initial failure, cause == ""),
// breaking cycles deterministically by refusing to revisit a node
// already on the current chain (spec §9's cyclic-attribution note).
// Chains are returned root-first.
func reconstructChains(run *models.RunResult) [][]models.NodeID {
	isLeaf := make(map[models.NodeID]bool, len(run.FailedNodes))
	hasChild := make(map[models.NodeID]bool, len(run.FailedNodes))
	for id := range run.FailedNodes {
		isLeaf[id] = true
	}
	for id := range run.FailedNodes {
		if cause, ok := run.Cause[id]; ok && cause != noCause {
			hasChild[cause] = true
		}
	}
	for id := range hasChild {
		isLeaf[id] = false
	}

	var leaves []models.NodeID
	for id := range run.FailedNodes {
		if isLeaf[id] {
			leaves = append(leaves, id)
		}
	}
	sort.Slice(leaves, func(i, j int) bool { return leaves[i] < leaves[j] })

	var chains [][]models.NodeID
	for _, leaf := range leaves {
		onChain := map[models.NodeID]bool{}
		var chain []models.NodeID
		cur := leaf
		for {
			if onChain[cur] {
				break // cycle detected; stop extending deterministically
			}
			onChain[cur] = true
			chain = append(chain, cur)
			cause, ok := run.Cause[cur]
			if !ok || cause == noCause {
				break
			}
			cur = cause
		}
		// chain was built leaf-to-root; reverse to root-first.
		for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
			chain[i], chain[j] = chain[j], chain[i]
		}
		chains = append(chains, chain)
	}
	return chains
}

func chainKey(chain []models.NodeID) string {
	key := ""
	for _, id := range chain {
		key += string(id) + ">"
	}
	return key
}

// topCriticalPaths tallies chain frequency across all runs and returns
// the top-K by frequency, ties broken by total criticality along the
// path descending, then by the chain's own node sequence for full
// determinism.
func topCriticalPaths(runs []*models.RunResult, criticality map[models.NodeID]float64, k int) []models.CriticalPath {
	counts := make(map[string]int)
	repr := make(map[string][]models.NodeID)

	for _, run := range runs {
		if run == nil {
			continue
		}
		for _, chain := range reconstructChains(run) {
			if len(chain) < 2 {
				continue // not a propagation chain, just an isolated initial failure
			}
			key := chainKey(chain)
			counts[key]++
			if _, ok := repr[key]; !ok {
				repr[key] = chain
			}
		}
	}

	paths := make([]models.CriticalPath, 0, len(counts))
	for key, count := range counts {
		chain := repr[key]
		total := 0.0
		for _, id := range chain {
			total += criticality[id]
		}
		paths = append(paths, models.CriticalPath{Nodes: chain, Frequency: count, TotalCriticality: total})
	}

	sort.Slice(paths, func(i, j int) bool {
		if paths[i].Frequency != paths[j].Frequency {
			return paths[i].Frequency > paths[j].Frequency
		}
		if paths[i].TotalCriticality != paths[j].TotalCriticality {
			return paths[i].TotalCriticality > paths[j].TotalCriticality
		}
		return chainKey(paths[i].Nodes) < chainKey(paths[j].Nodes)
	})

	if len(paths) > k {
		paths = paths[:k]
	}
	return paths
}
