package store

import "testing"

func TestInsertAndGetPath(t *testing.T) {
	s := tempStore(t)
	s.CreateSession("sess-1", "topic", "/tmp/x", "deep")

	err := s.InsertPath(Path{
		PathID:           "path-1",
		SessionID:        "sess-1",
		NodeType:         "root",
		Content:          "initial plan",
		Status:           "pending",
		Depth:            0,
		CompressionRatio: 1.0,
	})
	if err != nil {
		t.Fatalf("InsertPath failed: %v", err)
	}

	got, err := s.GetPath("path-1")
	if err != nil {
		t.Fatalf("GetPath failed: %v", err)
	}
	if got.NodeType != "root" || got.Status != "pending" {
		t.Fatalf("unexpected path: %+v", got)
	}
	if got.CompressionRatio != 1.0 {
		t.Fatalf("unexpected compression_ratio: %v", got.CompressionRatio)
	}
}

func TestGetPathNotFound(t *testing.T) {
	s := tempStore(t)
	if _, err := s.GetPath("missing"); err == nil {
		t.Fatal("expected error for missing path")
	}
}

func TestHasRootDetectsExistingRoot(t *testing.T) {
	s := tempStore(t)
	s.CreateSession("sess-1", "topic", "/tmp/x", "deep")

	has, err := s.HasRoot("sess-1")
	if err != nil {
		t.Fatal(err)
	}
	if has {
		t.Fatal("expected no root before any path is inserted")
	}

	s.InsertPath(Path{PathID: "path-1", SessionID: "sess-1", NodeType: "root", Status: "pending"})

	has, err = s.HasRoot("sess-1")
	if err != nil {
		t.Fatal(err)
	}
	if !has {
		t.Fatal("expected HasRoot to report true after inserting a root path")
	}
}

func TestListFrontierExcludesPrunedAggregatedRefined(t *testing.T) {
	s := tempStore(t)
	s.CreateSession("sess-1", "topic", "/tmp/x", "deep")

	s.InsertPath(Path{PathID: "p-pending", SessionID: "sess-1", NodeType: "generated", Status: "pending"})
	s.InsertPath(Path{PathID: "p-completed", SessionID: "sess-1", NodeType: "generated", Status: "completed"})
	s.InsertPath(Path{PathID: "p-pruned", SessionID: "sess-1", NodeType: "generated", Status: "pruned"})
	s.InsertPath(Path{PathID: "p-aggregated", SessionID: "sess-1", NodeType: "generated", Status: "aggregated"})
	s.InsertPath(Path{PathID: "p-refined", SessionID: "sess-1", NodeType: "generated", Status: "refined"})

	frontier, err := s.ListFrontier("sess-1")
	if err != nil {
		t.Fatalf("ListFrontier failed: %v", err)
	}
	if len(frontier) != 2 {
		t.Fatalf("expected 2 frontier paths, got %d", len(frontier))
	}
	for _, p := range frontier {
		if p.Status == "pruned" || p.Status == "aggregated" || p.Status == "refined" {
			t.Fatalf("frontier should exclude status %q", p.Status)
		}
	}
}

func TestUpdatePathStatusNotFound(t *testing.T) {
	s := tempStore(t)
	if err := s.UpdatePathStatus("missing", "completed"); err == nil {
		t.Fatal("expected error for missing path")
	}
}

func TestUpdatePathContentDefaultsCompressionRatio(t *testing.T) {
	s := tempStore(t)
	s.CreateSession("sess-1", "topic", "/tmp/x", "deep")
	s.InsertPath(Path{PathID: "path-1", SessionID: "sess-1", NodeType: "generated", Status: "pending"})

	if err := s.UpdatePathContent("path-1", "full findings text", "short summary", 0); err != nil {
		t.Fatalf("UpdatePathContent failed: %v", err)
	}
	got, err := s.GetPath("path-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.CompressionRatio != 1.0 {
		t.Fatalf("expected compression_ratio to default to 1.0 for non-positive input, got %v", got.CompressionRatio)
	}
	if got.Content != "full findings text" || got.Summary != "short summary" {
		t.Fatalf("unexpected content/summary: %+v", got)
	}
}

func TestSetPathScore(t *testing.T) {
	s := tempStore(t)
	s.CreateSession("sess-1", "topic", "/tmp/x", "deep")
	s.InsertPath(Path{PathID: "path-1", SessionID: "sess-1", NodeType: "generated", Status: "completed"})

	if err := s.SetPathScore("path-1", 8.3); err != nil {
		t.Fatalf("SetPathScore failed: %v", err)
	}
	got, err := s.GetPath("path-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.QualityScore != 8.3 {
		t.Fatalf("expected quality_score 8.3, got %v", got.QualityScore)
	}
}

func TestInsertAndListOperations(t *testing.T) {
	s := tempStore(t)
	s.CreateSession("sess-1", "topic", "/tmp/x", "deep")

	err := s.InsertOperation(Operation{
		OperationID:   "op-1",
		SessionID:     "sess-1",
		OperationType: "generate",
		InputNodes:    []string{"path-0"},
		OutputNodes:   []string{"path-1", "path-2"},
		Parameters:    map[string]any{"k": float64(3), "strategy": "diverse"},
	})
	if err != nil {
		t.Fatalf("InsertOperation failed: %v", err)
	}

	ops, err := s.ListOperations("sess-1")
	if err != nil {
		t.Fatalf("ListOperations failed: %v", err)
	}
	if len(ops) != 1 {
		t.Fatalf("expected 1 operation, got %d", len(ops))
	}
	if len(ops[0].OutputNodes) != 2 {
		t.Fatalf("expected 2 output nodes round-tripped through JSON, got %d", len(ops[0].OutputNodes))
	}
	if ops[0].Parameters["strategy"] != "diverse" {
		t.Fatalf("expected parameters round-tripped through JSON, got %+v", ops[0].Parameters)
	}
}
