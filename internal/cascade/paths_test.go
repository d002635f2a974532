package cascade

import (
	"math"
	"testing"

	"github.com/stratumgrid/resilience-core/pkg/models"
)

func fakeRun(cause map[models.NodeID]models.NodeID) *models.RunResult {
	failed := make(map[models.NodeID]bool, len(cause))
	tFailed := make(map[models.NodeID]float64, len(cause))
	for id := range cause {
		failed[id] = true
		tFailed[id] = 0
	}
	return &models.RunResult{FailedNodes: failed, Cause: cause, TimeToFailure: tFailed}
}

func TestReconstructChainsWalksToRoot(t *testing.T) {
	run := fakeRun(map[models.NodeID]models.NodeID{
		"c": noCause,
		"b": "c",
		"a": "b",
	})
	chains := reconstructChains(run)
	if len(chains) != 1 {
		t.Fatalf("expected exactly one leaf chain, got %d: %v", len(chains), chains)
	}
	got := chains[0]
	want := []models.NodeID{"c", "b", "a"}
	if len(got) != len(want) {
		t.Fatalf("expected chain %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected chain %v, got %v", want, got)
		}
	}
}

func TestReconstructChainsBreaksCycles(t *testing.T) {
	// x and y attribute to each other (a malformed cause graph); z is a
	// genuine leaf hanging off the cycle. Walking from z must terminate.
	run := fakeRun(map[models.NodeID]models.NodeID{
		"x": "y",
		"y": "x",
		"z": "x",
	})
	chains := reconstructChains(run)
	if len(chains) != 1 {
		t.Fatalf("expected exactly one leaf (z), got %d chains: %v", len(chains), chains)
	}
	if len(chains[0]) > 3 {
		t.Fatalf("expected cycle-breaking to bound chain length, got %v", chains[0])
	}
}

func TestTopCriticalPathsRanksByFrequencyThenCriticality(t *testing.T) {
	runA := fakeRun(map[models.NodeID]models.NodeID{"c": noCause, "b": "c"})
	runB := fakeRun(map[models.NodeID]models.NodeID{"c": noCause, "b": "c"})
	runC := fakeRun(map[models.NodeID]models.NodeID{"y": noCause, "x": "y"})

	criticality := map[models.NodeID]float64{"c": 0.9, "b": 0.9, "x": 0.1, "y": 0.1}
	paths := topCriticalPaths([]*models.RunResult{runA, runB, runC}, criticality, 5)
	if len(paths) != 2 {
		t.Fatalf("expected 2 distinct chains, got %d", len(paths))
	}
	if paths[0].Frequency != 2 {
		t.Fatalf("expected the c->b chain (frequency 2) ranked first, got %+v", paths[0])
	}
}

func TestImpactScorePenalizesEarlyFailureMoreThanLate(t *testing.T) {
	rsEarly := &runState{failed: map[models.NodeID]bool{"n": true}, tFailed: map[models.NodeID]float64{"n": 0}}
	rsLate := &runState{failed: map[models.NodeID]bool{"n": true}, tFailed: map[models.NodeID]float64{"n": 100}}
	criticality := map[models.NodeID]float64{"n": 1.0}

	early := impactScore(rsEarly, criticality, 10)
	late := impactScore(rsLate, criticality, 10)
	if early <= late {
		t.Fatalf("expected earlier failure to score higher impact: early=%v late=%v", early, late)
	}
}

func TestFailTimePenaltyIsZeroForNeverFailed(t *testing.T) {
	if p := failTimePenalty(math.Inf(1), 10); p != 0 {
		t.Fatalf("expected zero penalty for a node that never failed, got %v", p)
	}
}
