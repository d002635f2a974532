// Package cascade implements the Monte-Carlo cascading-failure
// simulation engine: single-run stochastic propagation, parallel
// fan-out across runs, and aggregation into probabilities, confidence
// intervals, critical paths, and bottlenecks.
package cascade

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/stratumgrid/resilience-core/internal/graph"
	"github.com/stratumgrid/resilience-core/internal/telemetry"
	"github.com/stratumgrid/resilience-core/pkg/logger"
	"github.com/stratumgrid/resilience-core/pkg/models"
)

// Engine runs Monte-Carlo cascade simulations against immutable graph
// snapshots.
type Engine struct {
	Params     Params
	WorkBudget int64
	Workers    int64
}

// NewEngine builds an Engine. workers <= 0 defaults to 1 (still
// correct, just serial); workBudget <= 0 disables the budget check.
func NewEngine(params Params, workers int, workBudget int64) *Engine {
	if workers <= 0 {
		workers = 1
	}
	return &Engine{Params: params, WorkBudget: workBudget, Workers: int64(workers)}
}

// Simulate runs req.MonteCarloRuns independent Monte-Carlo runs of the
// cascade over snap, scored by criticality, and aggregates them.
func (e *Engine) Simulate(ctx context.Context, snap *graph.Snapshot, criticality map[models.NodeID]float64, req *models.SimulationRequest) (*models.AggregateResult, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "cascade.simulate")
	defer span.End()

	if err := validateRequest(snap, req); err != nil {
		return nil, err
	}

	fp := Fingerprint(snap.Version, req)
	masterSeed := MasterSeed(fp)

	affected := reachableCount(snap, req.InitialFailures)
	ticks := req.HorizonMinutes / req.TimeStepMinutes
	work := int64(float64(req.MonteCarloRuns) * float64(affected) * ticks)
	if e.WorkBudget > 0 && work > e.WorkBudget {
		return nil, models.BudgetExceeded("cascade.Simulate",
			"estimated work exceeds configured budget")
	}

	span.SetAttributes(
		attribute.Int("cascade.monte_carlo_runs", req.MonteCarloRuns),
		attribute.Int64("cascade.estimated_work", work),
		attribute.String("cascade.fingerprint", string(fp)),
	)

	start := time.Now()
	results := make([]*models.RunResult, req.MonteCarloRuns)

	sem := semaphore.NewWeighted(e.Workers)
	g, gctx := errgroup.WithContext(ctx)

	for i := 0; i < req.MonteCarloRuns; i++ {
		i := i
		if err := sem.Acquire(gctx, 1); err != nil {
			break // context cancelled while waiting for a slot
		}
		g.Go(func() error {
			defer sem.Release(1)
			results[i] = e.runWithRetry(gctx, snap, criticality, req, RunSeed(masterSeed, i))
			return nil
		})
	}

	if err := g.Wait(); err != nil && ctx.Err() != nil {
		return nil, models.Cancelled("cascade.Simulate", "cancellation observed")
	}
	if ctx.Err() != nil {
		return nil, models.Cancelled("cascade.Simulate", "cancellation observed")
	}

	completed := make([]*models.RunResult, 0, req.MonteCarloRuns)
	for _, r := range results {
		if r != nil {
			completed = append(completed, r)
		}
	}

	agg := aggregate(completed, req.MonteCarloRuns, criticality, req, e.Params, fp, time.Since(start).Seconds(), masterSeed)
	if agg.Partial {
		logger.ForFingerprint(string(fp)).Warn("cascade run partially completed",
			"completed", agg.RunsCompleted, "requested", agg.RunsRequested)
	}
	return agg, nil
}

// runWithRetry runs one Monte-Carlo iteration, retrying once with a
// fresh seed if the worker panics or the run otherwise fails, per
// §4.C.6. A second failure drops the run (nil), which aggregate()
// accounts for by marking the result partial.
func (e *Engine) runWithRetry(ctx context.Context, snap *graph.Snapshot, criticality map[models.NodeID]float64, req *models.SimulationRequest, seed int64) *models.RunResult {
	if r, ok := e.safeRun(ctx, snap, criticality, req, seed); ok {
		return r
	}
	retrySeed := RunSeed(seed, 1)
	if r, ok := e.safeRun(ctx, snap, criticality, req, retrySeed); ok {
		return r
	}
	return nil
}

func (e *Engine) safeRun(ctx context.Context, snap *graph.Snapshot, criticality map[models.NodeID]float64, req *models.SimulationRequest, seed int64) (result *models.RunResult, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Component("cascade").Error("cascade run panicked", "seed", seed, "recovered", r)
			result, ok = nil, false
		}
	}()
	res, err := runOnce(ctx, snap, criticality, req, e.Params, seed)
	if err != nil {
		if !models.IsKind(err, models.KindCancelled) {
			logger.Component("cascade").Warn("cascade run failed", "seed", seed, "error", err)
		}
		return nil, false
	}
	return res, true
}

func validateRequest(snap *graph.Snapshot, req *models.SimulationRequest) error {
	if req.MonteCarloRuns <= 0 {
		return models.InvalidRequest("cascade.Simulate", "monte_carlo_runs must be positive")
	}
	if req.TimeStepMinutes <= 0 {
		return models.InvalidRequest("cascade.Simulate", "time_step_minutes must be positive")
	}
	if req.HorizonMinutes <= 0 || req.TimeStepMinutes > req.HorizonMinutes {
		return models.InvalidRequest("cascade.Simulate", "time_step_minutes must be <= horizon_minutes")
	}
	if len(req.InitialFailures) == 0 {
		return models.InvalidRequest("cascade.Simulate", "initial_failures must be non-empty")
	}
	for _, id := range req.InitialFailures {
		if snap.Node(id) == nil {
			return models.InvalidRequest("cascade.Simulate", "unknown initial failure node: "+string(id))
		}
	}
	if req.ConfidenceLevel <= 0 || req.ConfidenceLevel >= 1 {
		return models.InvalidRequest("cascade.Simulate", "confidence_level must be in (0,1)")
	}
	return nil
}

// reachableCount returns |the subgraph reachable from seeds|, used as
// the size term in the resource-bound estimate of §4.C.5.
func reachableCount(snap *graph.Snapshot, seeds []models.NodeID) int {
	visited := make(map[models.NodeID]bool, len(seeds))
	var frontier []models.NodeID
	for _, s := range seeds {
		if !visited[s] {
			visited[s] = true
			frontier = append(frontier, s)
		}
	}
	for len(frontier) > 0 {
		var next []models.NodeID
		for _, cur := range frontier {
			for dst := range snap.OutNeighbors(cur) {
				if !visited[dst] {
					visited[dst] = true
					next = append(next, dst)
				}
			}
			for src := range snap.InNeighbors(cur) {
				if !visited[src] {
					visited[src] = true
					next = append(next, src)
				}
			}
		}
		frontier = next
	}
	return len(visited)
}
