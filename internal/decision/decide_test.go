package decision

import (
	"reflect"
	"testing"
)

func baseState() GraphState {
	return GraphState{
		MaxIterations:       10,
		ConfidenceThreshold: 0.9,
	}
}

func TestDecideTerminatesOnConfidence(t *testing.T) {
	s := baseState()
	s.Confidence = 0.95
	s.Paths = []PathView{{PathID: "p1", Status: "completed", QualityScore: 8}}

	got := Decide(s)
	if got.Action != ActionSynthesize || got.Reason != "confidence_threshold_reached" {
		t.Fatalf("unexpected action: %+v", got)
	}
}

func TestDecideTerminatesOnMaxIterations(t *testing.T) {
	s := baseState()
	s.IterationCount = 10
	s.Confidence = 0.4

	got := Decide(s)
	if got.Action != ActionSynthesize || got.Reason != "max_iterations_reached" {
		t.Fatalf("unexpected action: %+v", got)
	}
}

func TestDecideTerminatesOnBudgetExhausted(t *testing.T) {
	s := baseState()
	s.BudgetExhausted = true

	got := Decide(s)
	if got.Action != ActionSynthesize || got.Reason != "budget_exhausted" {
		t.Fatalf("unexpected action: %+v", got)
	}
}

func TestDecideBootstrapsWhenNoPaths(t *testing.T) {
	s := baseState()
	got := Decide(s)
	if got.Action != ActionGenerate || got.K != 3 || got.Strategy != "diverse" {
		t.Fatalf("unexpected bootstrap action: %+v", got)
	}
}

func TestDecideWaitsOnRunningPaths(t *testing.T) {
	s := baseState()
	s.Paths = []PathView{{PathID: "p1", Status: "running"}, {PathID: "p2", Status: "pending"}}

	got := Decide(s)
	if got.Action != ActionWait || len(got.PathIDs) != 1 || got.PathIDs[0] != "p1" {
		t.Fatalf("unexpected action: %+v", got)
	}
}

func TestDecideExecutesPendingPaths(t *testing.T) {
	s := baseState()
	s.Paths = []PathView{{PathID: "p1", Status: "pending"}, {PathID: "p2", Status: "pending"}}

	got := Decide(s)
	if got.Action != ActionExecute || len(got.PathIDs) != 2 {
		t.Fatalf("unexpected action: %+v", got)
	}
}

func TestDecideScoresUnscoredCompletedPaths(t *testing.T) {
	s := baseState()
	s.Paths = []PathView{{PathID: "p1", Status: "completed", QualityScore: 0}}

	got := Decide(s)
	if got.Action != ActionScore || got.Threshold != 6.0 || got.KeepTopN != 2 {
		t.Fatalf("unexpected action: %+v", got)
	}
}

func TestDecideAggregatesHighScoringPaths(t *testing.T) {
	s := baseState()
	s.Confidence = 0.5
	s.Paths = []PathView{
		{PathID: "p1", Status: "completed", QualityScore: 8.0},
		{PathID: "p2", Status: "completed", QualityScore: 7.5},
	}

	got := Decide(s)
	if got.Action != ActionAggregate || got.Strategy != "synthesis" || len(got.PathIDs) != 2 {
		t.Fatalf("unexpected action: %+v", got)
	}
}

func TestDecideSkipsAggregateWhenAlreadyAggregated(t *testing.T) {
	s := baseState()
	s.Confidence = 0.5
	s.IsAggregated = true
	s.Paths = []PathView{
		{PathID: "p1", Status: "completed", QualityScore: 8.0},
		{PathID: "p2", Status: "completed", QualityScore: 7.5},
	}

	got := Decide(s)
	if got.Action != ActionGenerate || got.Strategy != "focused" {
		t.Fatalf("expected continued exploration, got: %+v", got)
	}
}

func TestDecideContinuesExplorationBelowConfidence(t *testing.T) {
	s := baseState()
	s.Confidence = 0.5
	s.CurrentFindings = "partial findings so far"
	s.Paths = []PathView{{PathID: "p1", Status: "completed", QualityScore: 6.5}}

	got := Decide(s)
	if got.Action != ActionGenerate || got.K != 2 || got.Strategy != "focused" || got.Context != "partial findings so far" {
		t.Fatalf("unexpected action: %+v", got)
	}
}

func TestDecideContinuesExplorationBelowThreshold(t *testing.T) {
	s := baseState()
	s.Confidence = 0.95
	s.ConfidenceThreshold = 0.9
	s.IsAggregated = true
	s.Paths = []PathView{{PathID: "p1", Status: "completed", QualityScore: 8.0}}

	// Terminate fires first since confidence already exceeds threshold;
	// construct a case where nothing else matches by keeping confidence
	// just under threshold but with no exploitable frontier signal.
	s.Confidence = 0.89
	s.ConfidenceThreshold = 0.9
	got := Decide(s)
	if got.Action != ActionGenerate {
		t.Fatalf("expected continue-exploration fallback before pure fallback, got: %+v", got)
	}
}

func TestDecideIsDeterministic(t *testing.T) {
	s := baseState()
	s.Paths = []PathView{{PathID: "p1", Status: "pending"}}

	first := Decide(s)
	second := Decide(s)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical output for identical input: %+v vs %+v", first, second)
	}
}

func TestDecidePriorityOrderTerminateBeatsBootstrap(t *testing.T) {
	s := baseState()
	s.Confidence = 0.95
	// paths empty AND confidence over threshold: terminate must win.
	got := Decide(s)
	if got.Action != ActionSynthesize {
		t.Fatalf("expected terminate to take priority over bootstrap, got: %+v", got)
	}
}
