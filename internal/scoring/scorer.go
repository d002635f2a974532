// Package scoring implements the criticality scorer: a pluggable
// function from a graph snapshot to a per-node score in [0,1], with a
// default analytic blend of centrality signals.
package scoring

import (
	"context"
	"sort"

	"go.opentelemetry.io/otel/attribute"

	"github.com/stratumgrid/resilience-core/internal/graph"
	"github.com/stratumgrid/resilience-core/internal/telemetry"
	"github.com/stratumgrid/resilience-core/pkg/models"
	"github.com/stratumgrid/resilience-core/pkg/utils"
)

// Scorer computes a criticality score in [0,1] for every node in a
// snapshot. A learned replacement (e.g. a GNN) may be substituted so
// long as it satisfies this signature and numeric range.
type Scorer interface {
	Score(ctx context.Context, snap *graph.Snapshot) (map[models.NodeID]float64, error)
}

// Weights configures the default blend's signal weighting and the
// reachability BFS depth. The zero value is invalid; use
// DefaultWeights().
type Weights struct {
	ReachabilityWeight float64
	DegreeWeight       float64
	StressWeight       float64
	ReachabilityDepth  int
}

// DefaultWeights returns the spec-mandated default blend: 0.5
// reachability, 0.3 weighted degree, 0.2 capacity-health stress, with
// a reachability BFS depth of 4.
func DefaultWeights() Weights {
	return Weights{
		ReachabilityWeight: 0.5,
		DegreeWeight:       0.3,
		StressWeight:       0.2,
		ReachabilityDepth:  4,
	}
}

// DefaultScorer implements the analytic blend of §4.B: weighted
// in-degree centrality, bounded-depth reachability mass, and a
// capacity-health stress term. Each signal is separately normalized
// to [0,1] before blending, so the result is monotonic in each signal
// holding the others fixed.
type DefaultScorer struct {
	Weights Weights
}

// NewDefaultScorer builds a DefaultScorer with the given weights.
func NewDefaultScorer(w Weights) *DefaultScorer {
	return &DefaultScorer{Weights: w}
}

func (d *DefaultScorer) Score(ctx context.Context, snap *graph.Snapshot) (map[models.NodeID]float64, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "scoring.default_blend")
	defer span.End()

	ids := snap.NodeIDs()
	degree := d.weightedDegree(snap, ids)
	reach := d.reachabilityMass(ctx, snap, ids)
	stress := d.capacityHealthStress(snap, ids)

	scores := make(map[models.NodeID]float64, len(ids))
	for _, id := range ids {
		blend := d.Weights.ReachabilityWeight*reach[id] +
			d.Weights.DegreeWeight*degree[id] +
			d.Weights.StressWeight*stress[id]
		scores[id] = utils.ClampUnit(blend)
	}

	span.SetAttributes(
		attribute.Int("scoring.node_count", len(ids)),
		attribute.Int("scoring.reachability_depth", d.Weights.ReachabilityDepth),
	)
	return scores, nil
}

// weightedDegree sums the strength of incoming edges per node
// ("who depends on me"), normalized by the graph-wide maximum.
func (d *DefaultScorer) weightedDegree(snap *graph.Snapshot, ids []models.NodeID) map[models.NodeID]float64 {
	raw := make(map[models.NodeID]float64, len(ids))
	max := 0.0
	for _, id := range ids {
		var sum float64
		for _, e := range snap.InNeighbors(id) {
			sum += e.Strength
		}
		raw[id] = sum
		if sum > max {
			max = sum
		}
	}
	if max == 0 {
		return raw
	}
	for id, v := range raw {
		raw[id] = v / max
	}
	return raw
}

// reachabilityMass computes, per node, the fraction of the graph that
// transitively depends on it (i.e. can reach it by following forward
// "depends on" edges backwards) within ReachabilityDepth hops.
func (d *DefaultScorer) reachabilityMass(ctx context.Context, snap *graph.Snapshot, ids []models.NodeID) map[models.NodeID]float64 {
	total := float64(len(ids))
	result := make(map[models.NodeID]float64, len(ids))
	if total == 0 {
		return result
	}
	for _, id := range ids {
		if ctx.Err() != nil {
			return result
		}
		visited := map[models.NodeID]bool{id: true}
		frontier := []models.NodeID{id}
		for depth := 0; depth < d.Weights.ReachabilityDepth && len(frontier) > 0; depth++ {
			var next []models.NodeID
			for _, cur := range frontier {
				for src := range snap.InNeighbors(cur) {
					if !visited[src] {
						visited[src] = true
						next = append(next, src)
					}
				}
			}
			frontier = next
		}
		result[id] = float64(len(visited)-1) / total
	}
	return result
}

// capacityHealthStress is (1 - health) * load_factor, clamped to [0,1]
// since load_factor exceeds 1 for an overloaded node: stressed nodes
// score higher.
func (d *DefaultScorer) capacityHealthStress(snap *graph.Snapshot, ids []models.NodeID) map[models.NodeID]float64 {
	result := make(map[models.NodeID]float64, len(ids))
	for _, id := range ids {
		n := snap.Node(id)
		result[id] = utils.ClampUnit((1 - n.Health) * n.LoadFactor())
	}
	return result
}

// RankedNode pairs a node with its criticality score for presentation
// in descending-score order.
type RankedNode struct {
	ID    models.NodeID `json:"id"`
	Score float64       `json:"score"`
}

// RankedIDs orders scores in stable, human-friendly order (score
// descending, ties broken by NodeID ascending). Exported so the HTTP
// layer and CLI tooling can present criticality results deterministically.
func RankedIDs(scores map[models.NodeID]float64) []models.NodeID {
	ids := make([]models.NodeID, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if scores[ids[i]] != scores[ids[j]] {
			return scores[ids[i]] > scores[ids[j]]
		}
		return ids[i] < ids[j]
	})
	return ids
}

// TopN returns the n highest-scoring nodes, most critical first. A
// non-positive or oversized n is clamped to the available count.
func TopN(scores map[models.NodeID]float64, n int) []RankedNode {
	ids := RankedIDs(scores)
	if n <= 0 || n > len(ids) {
		n = len(ids)
	}
	ranked := make([]RankedNode, n)
	for i := 0; i < n; i++ {
		ranked[i] = RankedNode{ID: ids[i], Score: scores[ids[i]]}
	}
	return ranked
}
