package cascade

import (
	"testing"

	"github.com/stratumgrid/resilience-core/pkg/models"
)

func TestFingerprintIsOrderIndependentInInitialFailures(t *testing.T) {
	base := func(order []models.NodeID) *models.SimulationRequest {
		return &models.SimulationRequest{
			ScenarioName:    "x",
			Event:           models.Event{Kind: models.EventKindFlood, Severity: 0.7},
			InitialFailures: order,
			HorizonMinutes:  60,
			TimeStepMinutes: 5,
			MonteCarloRuns:  10,
			ConfidenceLevel: 0.95,
		}
	}
	fp1 := Fingerprint(3, base([]models.NodeID{"a", "b", "c"}))
	fp2 := Fingerprint(3, base([]models.NodeID{"c", "a", "b"}))
	if fp1 != fp2 {
		t.Fatalf("expected order-independent fingerprint, got %q vs %q", fp1, fp2)
	}
}

func TestFingerprintChangesWithGraphVersion(t *testing.T) {
	req := &models.SimulationRequest{
		ScenarioName:    "x",
		InitialFailures: []models.NodeID{"a"},
		HorizonMinutes:  60,
		TimeStepMinutes: 5,
		MonteCarloRuns:  10,
		ConfidenceLevel: 0.95,
	}
	fp1 := Fingerprint(1, req)
	fp2 := Fingerprint(2, req)
	if fp1 == fp2 {
		t.Fatal("expected fingerprint to change when graph version changes")
	}
}

func TestRunSeedNeverSharesStateAcrossRuns(t *testing.T) {
	master := MasterSeed(Fingerprint(1, &models.SimulationRequest{InitialFailures: []models.NodeID{"a"}}))
	seen := make(map[int64]bool)
	for i := 0; i < 100; i++ {
		s := RunSeed(master, i)
		if seen[s] {
			t.Fatalf("run seed collision at index %d", i)
		}
		seen[s] = true
	}
}

func TestMasterSeedDeterministicForSameFingerprint(t *testing.T) {
	fp := Fingerprint(7, &models.SimulationRequest{InitialFailures: []models.NodeID{"z"}})
	if MasterSeed(fp) != MasterSeed(fp) {
		t.Fatal("expected MasterSeed to be a pure function of Fingerprint")
	}
}

func TestFingerprintChangesWithEnvironment(t *testing.T) {
	wind := 80.0
	base := &models.SimulationRequest{
		ScenarioName:    "x",
		Event:           models.Event{Kind: models.EventKindHurricane, Severity: 0.8},
		InitialFailures: []models.NodeID{"a"},
		HorizonMinutes:  60,
		TimeStepMinutes: 5,
		MonteCarloRuns:  10,
		ConfidenceLevel: 0.95,
	}
	withEnv := *base
	withEnv.Event.Environment = &models.Environment{WindSpeed: &wind}

	fp1 := Fingerprint(1, base)
	fp2 := Fingerprint(1, &withEnv)
	if fp1 == fp2 {
		t.Fatal("expected fingerprint to change when environment is added, since it now modulates propagation")
	}
}
