//go:build integration
// +build integration

package integration_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stratumgrid/resilience-core/internal/api"
	"github.com/stratumgrid/resilience-core/internal/cascade"
	"github.com/stratumgrid/resilience-core/internal/coordinator"
	"github.com/stratumgrid/resilience-core/internal/fanout"
	"github.com/stratumgrid/resilience-core/internal/graph"
	"github.com/stratumgrid/resilience-core/internal/ingest"
	"github.com/stratumgrid/resilience-core/internal/scoring"
	"github.com/stratumgrid/resilience-core/pkg/models"
)

// newTestServer wires the same components cmd/resilienced wires, over
// httptest, so the HTTP surface is exercised against real components
// rather than mocks.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	store := graph.New()
	bus := fanout.New(0)
	scorer := scoring.NewDefaultScorer(scoring.Weights{
		ReachabilityWeight: 0.5, DegreeWeight: 0.3, StressWeight: 0.2, ReachabilityDepth: 4,
	})
	scores := scoring.NewCache(scorer, time.Minute)
	engine := cascade.NewEngine(cascade.Params{
		MultiplierTable:     cascade.DefaultMultiplierTable(),
		RedistributionAlpha: 0.5,
		StressSensitivityK:  1.0,
		StaleAfterTicks:     3,
		TopKCriticalPaths:   5,
	}, 2, 0)
	pipeline := ingest.New(store, bus)
	coord := coordinator.New(engine, store, scores, bus, 2, 8)

	srv := api.New(pipeline, coord, store, scores)
	return httptest.NewServer(srv.Handler())
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request body: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func TestIntegration_HealthzReportsOK(t *testing.T) {
	ts := newTestServer(t)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestIntegration_CriticalityRanksIngestedTopology(t *testing.T) {
	ts := newTestServer(t)
	defer ts.Close()

	nodes := []map[string]any{
		{"id": "substation-1", "kind": "power", "capacity": 100.0, "health": 1.0},
		{"id": "substation-2", "kind": "power", "capacity": 100.0, "health": 1.0},
		{"id": "pump-1", "kind": "water", "capacity": 50.0, "health": 1.0},
	}
	for _, n := range nodes {
		resp := postJSON(t, ts.URL+"/v1/ingest", models.IngestRecord{
			SourceID:  n["id"].(string),
			DataType:  models.DataTypeTopologyNodeUpsert,
			Timestamp: time.Now(),
			Payload:   n,
		})
		resp.Body.Close()
		if resp.StatusCode != http.StatusAccepted {
			t.Fatalf("ingest node %s: expected 202, got %d", n["id"], resp.StatusCode)
		}
	}
	edges := []map[string]any{
		{"src": "substation-1", "dst": "substation-2", "propagation_probability": 0.6},
		{"src": "substation-2", "dst": "pump-1", "propagation_probability": 0.8},
	}
	for _, e := range edges {
		resp := postJSON(t, ts.URL+"/v1/ingest", models.IngestRecord{
			SourceID:  e["src"].(string) + "->" + e["dst"].(string),
			DataType:  models.DataTypeTopologyEdgeUpsert,
			Timestamp: time.Now(),
			Payload:   e,
		})
		resp.Body.Close()
		if resp.StatusCode != http.StatusAccepted {
			t.Fatalf("ingest edge %v: expected 202, got %d", e, resp.StatusCode)
		}
	}

	resp, err := http.Get(ts.URL + "/v1/criticality?limit=2")
	if err != nil {
		t.Fatalf("GET /v1/criticality: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		GraphVersion uint64 `json:"graph_version"`
		Nodes        []struct {
			ID    string  `json:"id"`
			Score float64 `json:"score"`
		} `json:"nodes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode criticality response: %v", err)
	}
	if len(body.Nodes) != 2 {
		t.Fatalf("expected limit=2 to return 2 nodes, got %d", len(body.Nodes))
	}
	if body.Nodes[0].Score < body.Nodes[1].Score {
		t.Fatalf("expected nodes ordered most critical first, got %+v", body.Nodes)
	}
}

func TestIntegration_IngestThenSubmitSimulation(t *testing.T) {
	ts := newTestServer(t)
	defer ts.Close()

	nodes := []map[string]any{
		{"id": "substation-1", "kind": "power", "capacity": 100.0, "health": 1.0},
		{"id": "substation-2", "kind": "power", "capacity": 100.0, "health": 1.0},
		{"id": "pump-1", "kind": "water", "capacity": 50.0, "health": 1.0},
	}
	for _, n := range nodes {
		resp := postJSON(t, ts.URL+"/v1/ingest", models.IngestRecord{
			SourceID:  n["id"].(string),
			DataType:  models.DataTypeTopologyNodeUpsert,
			Timestamp: time.Now(),
			Payload:   n,
		})
		resp.Body.Close()
		if resp.StatusCode != http.StatusAccepted {
			t.Fatalf("ingest node %s: expected 202, got %d", n["id"], resp.StatusCode)
		}
	}

	edges := []map[string]any{
		{"src": "substation-1", "dst": "substation-2", "propagation_probability": 0.6},
		{"src": "substation-2", "dst": "pump-1", "propagation_probability": 0.8},
	}
	for _, e := range edges {
		resp := postJSON(t, ts.URL+"/v1/ingest", models.IngestRecord{
			SourceID:  e["src"].(string) + "->" + e["dst"].(string),
			DataType:  models.DataTypeTopologyEdgeUpsert,
			Timestamp: time.Now(),
			Payload:   e,
		})
		resp.Body.Close()
		if resp.StatusCode != http.StatusAccepted {
			t.Fatalf("ingest edge %v: expected 202, got %d", e, resp.StatusCode)
		}
	}

	submitResp := postJSON(t, ts.URL+"/v1/simulations", &models.SimulationRequest{
		ScenarioName:               "substation-1 outage",
		Event:                      models.Event{Kind: models.EventKindPowerOutage, Severity: 0.8, InitialFailures: []models.NodeID{"substation-1"}},
		InitialFailures:            []models.NodeID{"substation-1"},
		HorizonMinutes:             60,
		TimeStepMinutes:            5,
		MonteCarloRuns:             20,
		ConfidenceLevel:            0.9,
		BasePropagationProbability: 0.5,
		LoadThresholdMultiplier:    1.2,
	})
	defer submitResp.Body.Close()
	if submitResp.StatusCode != http.StatusAccepted {
		t.Fatalf("submit simulation: expected 202, got %d", submitResp.StatusCode)
	}
	var submitBody map[string]any
	if err := json.NewDecoder(submitResp.Body).Decode(&submitBody); err != nil {
		t.Fatalf("decode submit response: %v", err)
	}
	handle, ok := submitBody["handle"].(string)
	if !ok || handle == "" {
		t.Fatalf("expected non-empty handle, got %v", submitBody)
	}

	deadline := time.Now().Add(10 * time.Second)
	var result models.AggregateResult
	for {
		resp, err := http.Get(ts.URL + "/v1/simulations/" + handle)
		if err != nil {
			t.Fatalf("GET simulation: %v", err)
		}
		if resp.StatusCode == http.StatusOK {
			if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
				resp.Body.Close()
				t.Fatalf("decode result: %v", err)
			}
			resp.Body.Close()
			break
		}
		resp.Body.Close()
		if time.Now().After(deadline) {
			t.Fatalf("simulation did not complete before deadline (last status %d)", resp.StatusCode)
		}
		time.Sleep(50 * time.Millisecond)
	}

	if result.RunsCompleted == 0 {
		t.Fatalf("expected at least one completed run, got %+v", result)
	}
	if result.RunsRequested != 20 {
		t.Fatalf("expected 20 runs requested, got %d", result.RunsRequested)
	}
}

func TestIntegration_MetricsEndpointExposesPrometheusFormat(t *testing.T) {
	ts := newTestServer(t)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct == "" {
		t.Fatalf("expected a Content-Type header on the metrics response")
	}
}
