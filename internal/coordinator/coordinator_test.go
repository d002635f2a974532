package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/stratumgrid/resilience-core/internal/cascade"
	"github.com/stratumgrid/resilience-core/internal/fanout"
	"github.com/stratumgrid/resilience-core/internal/graph"
	"github.com/stratumgrid/resilience-core/internal/scoring"
	"github.com/stratumgrid/resilience-core/pkg/models"
)

func newTestCoordinator(t *testing.T, poolSize, queueCapacity int) (*Coordinator, *graph.Store) {
	t.Helper()
	store := graph.New()
	if err := store.AddNode(&models.Node{ID: "a", Kind: models.NodeKindPower, Capacity: 10, Load: 5, Health: 1}); err != nil {
		t.Fatalf("seed a: %v", err)
	}
	if err := store.AddNode(&models.Node{ID: "b", Kind: models.NodeKindPower, Capacity: 10, Load: 5, Health: 1}); err != nil {
		t.Fatalf("seed b: %v", err)
	}
	if err := store.AddEdge(&models.Edge{Src: "a", Dst: "b", Strength: 1, PropagationProbability: 1}); err != nil {
		t.Fatalf("seed edge: %v", err)
	}
	cache := scoring.NewCache(scoring.NewDefaultScorer(scoring.DefaultWeights()), time.Minute)
	engine := cascade.NewEngine(cascade.DefaultParams(), 4, 0)
	bus := fanout.New(8)
	return New(engine, store, cache, bus, poolSize, queueCapacity), store
}

func baseRequest() *models.SimulationRequest {
	return &models.SimulationRequest{
		ScenarioName:               "test",
		Event:                      models.Event{Kind: models.EventKindOther, Severity: 0.5, InitialFailures: []models.NodeID{"b"}},
		InitialFailures:            []models.NodeID{"b"},
		HorizonMinutes:             10,
		TimeStepMinutes:            1,
		MonteCarloRuns:             5,
		ConfidenceLevel:            0.9,
		BasePropagationProbability: 1,
		LoadThresholdMultiplier:    1e18,
	}
}

func TestSubmitAndAwaitCompletes(t *testing.T) {
	c, _ := newTestCoordinator(t, 2, 4)
	h, err := c.Submit(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	result, err := c.Await(ctx, h)
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if result.RunsCompleted != 5 {
		t.Fatalf("expected 5 completed runs, got %d", result.RunsCompleted)
	}
}

func TestSubmitDeduplicatesIdenticalRequests(t *testing.T) {
	c, _ := newTestCoordinator(t, 2, 4)
	req := baseRequest()
	h1, err := c.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("Submit 1: %v", err)
	}
	h2, err := c.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("Submit 2: %v", err)
	}
	if h1 == h2 {
		t.Fatal("expected distinct handles for distinct submissions")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r1, err := c.Await(ctx, h1)
	if err != nil {
		t.Fatalf("Await h1: %v", err)
	}
	r2, err := c.Await(ctx, h2)
	if err != nil {
		t.Fatalf("Await h2: %v", err)
	}
	if r1.Fingerprint != r2.Fingerprint {
		t.Fatalf("expected attached submissions to share a result, got %q vs %q", r1.Fingerprint, r2.Fingerprint)
	}
}

func TestSubmitOverloadedWhenCapacityExhausted(t *testing.T) {
	c, _ := newTestCoordinator(t, 1, 1)
	// occupy the single worker and the single queue slot with distinct
	// in-flight requests.
	for _, name := range []string{"first", "second"} {
		req := baseRequest()
		req.ScenarioName = name
		req.MonteCarloRuns = 1000 // slow enough to stay in flight
		if _, err := c.Submit(context.Background(), req); err != nil {
			t.Fatalf("Submit %s: %v", name, err)
		}
	}

	req3 := baseRequest()
	req3.ScenarioName = "third"
	_, err := c.Submit(context.Background(), req3)
	if !models.IsKind(err, models.KindOverloaded) {
		t.Fatalf("expected overloaded error, got %v", err)
	}
}

func TestCancelUnknownHandleReturnsNotFound(t *testing.T) {
	c, _ := newTestCoordinator(t, 2, 4)
	err := c.Cancel(Handle("does-not-exist"))
	if !models.IsKind(err, models.KindNotFound) {
		t.Fatalf("expected not_found error, got %v", err)
	}
}

func TestCancelLastHandleStopsTheJob(t *testing.T) {
	c, _ := newTestCoordinator(t, 1, 4)
	req := baseRequest()
	req.MonteCarloRuns = 1000 // slow enough to cancel mid-flight
	h, err := c.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	c.mu.Lock()
	j := c.byHandle[h]
	c.mu.Unlock()
	if err := c.Cancel(h); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	c.mu.Lock()
	_, stillAttached := c.byHandle[h]
	c.mu.Unlock()
	if stillAttached {
		t.Fatal("expected handle to be detached after Cancel")
	}
	if j.ctx.Err() == nil {
		t.Fatal("expected the job's context to be cancelled once its last handle detached")
	}
}
