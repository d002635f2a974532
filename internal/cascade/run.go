package cascade

import (
	"context"
	"math"
	"sort"

	"github.com/stratumgrid/resilience-core/internal/graph"
	"github.com/stratumgrid/resilience-core/pkg/models"
	"github.com/stratumgrid/resilience-core/pkg/utils"
)

// Params configures the parts of the single-run algorithm that spec §6
// exposes as named knobs rather than hard-coded constants.
type Params struct {
	MultiplierTable     MultiplierTable
	RedistributionAlpha float64 // α, default 0.5
	StressSensitivityK  float64 // k
	StaleAfterTicks      int     // K, default 3
	TopKCriticalPaths    int     // default 5
}

// DefaultParams returns the spec-mandated defaults.
func DefaultParams() Params {
	return Params{
		MultiplierTable:     DefaultMultiplierTable(),
		RedistributionAlpha: 0.5,
		StressSensitivityK:  1.0,
		StaleAfterTicks:      3,
		TopKCriticalPaths:    5,
	}
}

const noCause = models.NodeID("")

type runState struct {
	failed    map[models.NodeID]bool
	tFailed   map[models.NodeID]float64
	cause     map[models.NodeID]models.NodeID
	extraLoad map[models.NodeID]float64
	given     map[models.NodeID]map[models.NodeID]float64 // F -> dependent -> amount given away
	timeline  []models.FailureEvent
}

func newRunState(ids []models.NodeID) *runState {
	rs := &runState{
		failed:    make(map[models.NodeID]bool, len(ids)),
		tFailed:   make(map[models.NodeID]float64, len(ids)),
		cause:     make(map[models.NodeID]models.NodeID, len(ids)),
		extraLoad: make(map[models.NodeID]float64, len(ids)),
		given:     make(map[models.NodeID]map[models.NodeID]float64),
	}
	for _, id := range ids {
		rs.tFailed[id] = math.Inf(1)
	}
	return rs
}

// runOnce executes a single stochastic Monte-Carlo run of the cascade
// per spec §4.C.1: noisy-OR combination of per-tick dependency
// hazards plus a load-stress term, Bernoulli sampling per node, load
// redistribution on failure, and optional recovery.
func runOnce(ctx context.Context, snap *graph.Snapshot, scores map[models.NodeID]float64, req *models.SimulationRequest, params Params, seed int64) (*models.RunResult, error) {
	ids := snap.NodeIDs()
	rs := newRunState(ids)
	rng := utils.NewRandSource(seed)

	for _, id := range req.InitialFailures {
		if snap.Node(id) == nil {
			return nil, models.InvalidRequest("cascade.runOnce", "unknown initial failure node: "+string(id))
		}
		rs.failed[id] = true
		rs.tFailed[id] = 0
		rs.cause[id] = noCause
		rs.timeline = append(rs.timeline, models.FailureEvent{TMinutes: 0, NodeID: id})
	}

	tau := req.HorizonMinutes / 4
	if tau <= 0 {
		tau = 1
	}
	noChangeStreak := 0

	for t := req.TimeStepMinutes; t <= req.HorizonMinutes+1e-9; t += req.TimeStepMinutes {
		if ctx.Err() != nil {
			return nil, models.Cancelled("cascade.runOnce", "cancellation observed at tick boundary")
		}

		type decision struct {
			node    models.NodeID
			cause   models.NodeID
			latency float64
		}
		var decisions []decision

		for _, n := range ids {
			if rs.failed[n] {
				continue
			}
			p, causeID, latency := rs.hazard(snap, n, req, params, rs.failed)
			if rng.BernoulliBool(p) {
				decisions = append(decisions, decision{node: n, cause: causeID, latency: latency})
			}
		}

		changed := len(decisions) > 0
		for _, d := range decisions {
			tFail := t
			if d.cause != noCause {
				tFail = t + d.latency/60000.0
			}
			rs.failed[d.node] = true
			rs.tFailed[d.node] = tFail
			rs.cause[d.node] = d.cause
			rs.timeline = append(rs.timeline, models.FailureEvent{TMinutes: tFail, NodeID: d.node, CauseID: d.cause})
			rs.redistribute(snap, d.node, params.RedistributionAlpha)
		}

		if req.RecoveryEnabled {
			if rs.recover(snap, ids, req, rng) {
				changed = true
			}
		}

		if changed {
			noChangeStreak = 0
		} else {
			noChangeStreak++
		}

		if !rs.canStillPropagate(snap, ids) && !req.RecoveryEnabled {
			break
		}
		if noChangeStreak >= params.StaleAfterTicks {
			break
		}
	}

	sort.Slice(rs.timeline, func(i, j int) bool {
		if rs.timeline[i].TMinutes != rs.timeline[j].TMinutes {
			return rs.timeline[i].TMinutes < rs.timeline[j].TMinutes
		}
		return rs.timeline[i].NodeID < rs.timeline[j].NodeID
	})

	failedCopy := make(map[models.NodeID]bool, len(rs.failed))
	for k, v := range rs.failed {
		if v {
			failedCopy[k] = true
		}
	}

	return &models.RunResult{
		Seed:          seed,
		Timeline:      rs.timeline,
		FailedNodes:   failedCopy,
		TimeToFailure: rs.tFailed,
		Cause:         rs.cause,
		ImpactScore:   impactScore(rs, scores, tau),
	}, nil
}

// hazard computes the noisy-OR combined failure probability for node n
// this tick, the causing dependency (if any, tie-broken by NodeID
// ascending among equal-hazard candidates), and that dependency edge's
// latency.
func (rs *runState) hazard(snap *graph.Snapshot, n models.NodeID, req *models.SimulationRequest, params Params, failed map[models.NodeID]bool) (float64, models.NodeID, float64) {
	survive := 1.0
	bestHazard := -1.0
	bestCause := noCause
	bestLatency := 0.0

	deps := snap.OutNeighbors(n) // nodes n depends on
	depIDs := make([]models.NodeID, 0, len(deps))
	for dst := range deps {
		depIDs = append(depIDs, dst)
	}
	sort.Slice(depIDs, func(i, j int) bool { return depIDs[i] < depIDs[j] })

	for _, dst := range depIDs {
		if !failed[dst] {
			continue
		}
		edge := deps[dst]
		upstream := snap.Node(dst)
		mult := params.MultiplierTable.EventMultiplier(req.Event, upstream.Kind)
		h := req.BasePropagationProbability * edge.PropagationProbability * edge.Strength * mult
		h = utils.ClampFloat64(h, 0, 1)
		survive *= (1 - h)
		if h > bestHazard {
			bestHazard = h
			bestCause = dst
			bestLatency = edge.LatencyMS
		}
	}

	nNode := snap.Node(n)
	if !math.IsInf(req.LoadThresholdMultiplier, 1) {
		effectiveLoad := nNode.Load + rs.extraLoad[n]
		effectiveFactor := 0.0
		if nNode.Capacity > 0 {
			effectiveFactor = effectiveLoad / nNode.Capacity
		}
		if excess := effectiveFactor - req.LoadThresholdMultiplier; excess > 0 {
			stressP := utils.ClampFloat64(excess*params.StressSensitivityK, 0, 1)
			survive *= (1 - stressP)
		}
	}

	return 1 - survive, bestCause, bestLatency
}

// redistribute moves an alpha fraction of a newly-failed node's load
// equally onto its still-alive dependents (the nodes it supplies).
func (rs *runState) redistribute(snap *graph.Snapshot, failedNode models.NodeID, alpha float64) {
	n := snap.Node(failedNode)
	dependents := snap.InNeighbors(failedNode) // nodes that depend on failedNode
	var alive []models.NodeID
	for src := range dependents {
		if !rs.failed[src] {
			alive = append(alive, src)
		}
	}
	if len(alive) == 0 {
		return
	}
	sort.Slice(alive, func(i, j int) bool { return alive[i] < alive[j] })
	share := (alpha * n.Load) / float64(len(alive))
	if rs.given[failedNode] == nil {
		rs.given[failedNode] = make(map[models.NodeID]float64, len(alive))
	}
	for _, dependent := range alive {
		rs.extraLoad[dependent] += share
		rs.given[failedNode][dependent] += share
	}
}

// recover attempts recovery for every failed node whose dependencies
// have all recovered, returning true if at least one node recovered.
func (rs *runState) recover(snap *graph.Snapshot, ids []models.NodeID, req *models.SimulationRequest, rng *utils.RandSource) bool {
	any := false
	for _, id := range ids {
		if !rs.failed[id] {
			continue
		}
		eligible := true
		for dst := range snap.OutNeighbors(id) {
			if rs.failed[dst] {
				eligible = false
				break
			}
		}
		if !eligible {
			continue
		}
		p := req.TimeStepMinutes / req.MeanRecoveryTimeMinutes
		if rng.BernoulliBool(p) {
			rs.failed[id] = false
			rs.tFailed[id] = math.Inf(1)
			rs.cause[id] = noCause
			for dependent, amt := range rs.given[id] {
				rs.extraLoad[dependent] -= amt
				if rs.extraLoad[dependent] < 0 {
					rs.extraLoad[dependent] = 0
				}
			}
			delete(rs.given, id)
			any = true
		}
	}
	return any
}

// canStillPropagate reports whether any failed node still has a
// non-failed dependent that could yet fail because of it.
func (rs *runState) canStillPropagate(snap *graph.Snapshot, ids []models.NodeID) bool {
	for _, id := range ids {
		if !rs.failed[id] {
			continue
		}
		for src := range snap.InNeighbors(id) {
			if !rs.failed[src] {
				return true
			}
		}
	}
	return false
}
