package rpc

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/antigravity-dev/deepresearch-mcp/internal/batch"
	"github.com/antigravity-dev/deepresearch-mcp/internal/config"
	"github.com/antigravity-dev/deepresearch-mcp/internal/got"
	"github.com/antigravity-dev/deepresearch-mcp/internal/store"
)

func testDeps(t *testing.T) Deps {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("store.Open failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cfg := config.Default()
	return Deps{
		Store:  st,
		Engine: got.New(st),
		Caches: batch.NewRegistry(cfg.Cache, nil),
	}
}

func call(t *testing.T, r *Registry, name string, args any) (any, error) {
	t.Helper()
	tool, ok := r.Resolve(name)
	if !ok {
		t.Fatalf("tool %q is not registered", name)
	}
	raw, err := json.Marshal(args)
	if err != nil {
		t.Fatalf("marshal args: %v", err)
	}
	return tool.Handle(raw)
}

func TestSpecToolNamesAreAllRegistered(t *testing.T) {
	d := testDeps(t)
	r := BuildRegistry(d)

	names := []string{
		"create_research_session", "get_session_info", "update_session_status",
		"register_agent", "update_agent_status", "get_active_agents",
		"update_current_phase", "get_current_phase", "checkpoint_phase",
		"log_activity", "render_progress",
		"get_next_action",
		"generate_paths", "refine_path", "score_and_prune", "aggregate_paths",
		"extract", "validate", "conflict-detect",
		"fact-extract", "entity-extract", "citation-validate", "source-rate",
		"batch-extract", "batch-validate", "batch-conflict-detect",
		"batch-fact-extract", "batch-entity-extract", "batch-citation-validate", "batch-source-rate",
		"cache-stats", "cache-clear",
		"ingest_content", "batch_ingest", "process_raw",
		"auto_process_data",
	}
	for _, name := range names {
		if _, ok := r.Resolve(name); !ok {
			t.Errorf("expected tool %q to be registered", name)
		}
	}
}

func TestCreateResearchSessionGeneratesSessionID(t *testing.T) {
	d := testDeps(t)
	r := BuildRegistry(d)

	result, err := call(t, r, "create_research_session", map[string]any{
		"topic": "LLM agent orchestration", "output_dir": "/tmp/out",
	})
	if err != nil {
		t.Fatalf("create_research_session failed: %v", err)
	}
	sess, ok := result.(*store.Session)
	if !ok {
		t.Fatalf("unexpected result type %T", result)
	}
	if sess.SessionID == "" {
		t.Fatal("expected a server-generated session_id")
	}
	if sess.ResearchTopic != "LLM agent orchestration" {
		t.Fatalf("unexpected research_topic: %q", sess.ResearchTopic)
	}
}

func TestAgentLifecycleTools(t *testing.T) {
	d := testDeps(t)
	r := BuildRegistry(d)

	sessResult, err := call(t, r, "create_research_session", map[string]any{
		"topic": "agent lifecycle", "output_dir": "/tmp/out",
	})
	if err != nil {
		t.Fatalf("create_research_session failed: %v", err)
	}
	sessionID := sessResult.(*store.Session).SessionID

	_, err = call(t, r, "register_agent", map[string]any{
		"session_id": sessionID, "agent_id": "agent-1", "agent_type": "researcher",
	})
	if err != nil {
		t.Fatalf("register_agent failed: %v", err)
	}

	active, err := call(t, r, "get_active_agents", map[string]any{"session_id": sessionID})
	if err != nil {
		t.Fatalf("get_active_agents failed: %v", err)
	}
	agents, ok := active.([]store.Agent)
	if !ok || len(agents) != 1 {
		t.Fatalf("expected one active agent, got %v", active)
	}

	_, err = call(t, r, "update_agent_status", map[string]any{
		"agent_id": "agent-1", "status": "completed",
	})
	if err != nil {
		t.Fatalf("update_agent_status failed: %v", err)
	}

	active, err = call(t, r, "get_active_agents", map[string]any{"session_id": sessionID})
	if err != nil {
		t.Fatalf("get_active_agents failed: %v", err)
	}
	if agents := active.([]store.Agent); len(agents) != 0 {
		t.Fatalf("expected no active agents after completion, got %v", agents)
	}
}

func TestPhaseAndActivityTools(t *testing.T) {
	d := testDeps(t)
	r := BuildRegistry(d)

	sessResult, _ := call(t, r, "create_research_session", map[string]any{
		"topic": "phase tracking", "output_dir": "/tmp/out",
	})
	sessionID := sessResult.(*store.Session).SessionID

	if _, err := call(t, r, "update_current_phase", map[string]any{"session_id": sessionID, "phase": 2}); err != nil {
		t.Fatalf("update_current_phase failed: %v", err)
	}
	phase, err := call(t, r, "get_current_phase", map[string]any{"session_id": sessionID})
	if err != nil {
		t.Fatalf("get_current_phase failed: %v", err)
	}
	if phase.(map[string]any)["current_phase"] != 2 {
		t.Fatalf("expected current_phase=2, got %v", phase)
	}

	if _, err := call(t, r, "checkpoint_phase", map[string]any{
		"session_id": sessionID, "phase_number": 2, "checkpoint_type": "snapshot", "state_snapshot": "{}",
	}); err != nil {
		t.Fatalf("checkpoint_phase failed: %v", err)
	}

	if _, err := call(t, r, "log_activity", map[string]any{
		"session_id": sessionID, "event_type": "note", "message": "hello",
	}); err != nil {
		t.Fatalf("log_activity failed: %v", err)
	}

	progress, err := call(t, r, "render_progress", map[string]any{"session_id": sessionID})
	if err != nil {
		t.Fatalf("render_progress failed: %v", err)
	}
	snapshot := progress.(map[string]any)
	if snapshot["phase"] != 2 {
		t.Fatalf("expected render_progress phase=2, got %v", snapshot)
	}
	if snapshot["last_activity"] == nil {
		t.Fatal("expected render_progress to surface the logged activity")
	}
}

func TestExtractUnifiedModesMatchLegacyAliases(t *testing.T) {
	d := testDeps(t)
	r := BuildRegistry(d)

	text := "Market cap reached 25%. The acquisition was valued at $3.2 billion."

	unified, err := call(t, r, "extract", map[string]any{"text": text, "mode": "fact"})
	if err != nil {
		t.Fatalf("extract(mode=fact) failed: %v", err)
	}
	legacy, err := call(t, r, "fact-extract", map[string]any{"text": text})
	if err != nil {
		t.Fatalf("fact-extract failed: %v", err)
	}

	uFacts := unified.(map[string]any)["facts"]
	lFacts := legacy.(map[string]any)["facts"]
	uJSON, _ := json.Marshal(uFacts)
	lJSON, _ := json.Marshal(lFacts)
	if string(uJSON) != string(lJSON) {
		t.Fatalf("expected extract(mode=fact) and fact-extract to agree, got %s vs %s", uJSON, lJSON)
	}
}

func TestValidateRejectsMissingModeInput(t *testing.T) {
	d := testDeps(t)
	r := BuildRegistry(d)

	if _, err := call(t, r, "validate", map[string]any{"mode": "citation"}); err == nil {
		t.Fatal("expected an error when mode=citation is called with no citations")
	}
}

func TestBatchExtractUsesBoundedConcurrencyExecutor(t *testing.T) {
	d := testDeps(t)
	r := BuildRegistry(d)

	result, err := call(t, r, "batch-extract", map[string]any{
		"mode": "fact",
		"items": []map[string]any{
			{"text": "Revenue reached 10%. The acquisition was valued at $1 million."},
			{"text": "Revenue reached 20%. The deal was valued at $2 million."},
		},
	})
	if err != nil {
		t.Fatalf("batch-extract failed: %v", err)
	}
	summary := result.(map[string]any)["summary"].(map[string]any)
	if summary["total"] != 2 || summary["successful"] != 2 {
		t.Fatalf("expected 2/2 successful, got %v", summary)
	}
}

func TestBatchFactExtractLegacyAliasForcesMode(t *testing.T) {
	d := testDeps(t)
	r := BuildRegistry(d)

	result, err := call(t, r, "batch-fact-extract", map[string]any{
		"items": []map[string]any{{"text": "Revenue reached 5%. The deal was valued at $500 thousand."}},
	})
	if err != nil {
		t.Fatalf("batch-fact-extract failed: %v", err)
	}
	results := result.(map[string]any)["results"].([]map[string]any)
	data := results[0]["data"].(map[string]any)
	if _, hasEntities := data["entities"]; hasEntities {
		t.Fatalf("expected mode=fact to omit entities, got %v", data)
	}
}

func TestCacheStatsAndClear(t *testing.T) {
	d := testDeps(t)
	r := BuildRegistry(d)

	if _, err := call(t, r, "extract", map[string]any{"text": "Revenue reached 15%. The deal was valued at $1 million.", "mode": "fact"}); err != nil {
		t.Fatalf("extract failed: %v", err)
	}

	stats, err := call(t, r, "cache-stats", map[string]any{})
	if err != nil {
		t.Fatalf("cache-stats failed: %v", err)
	}
	factStats := stats.(map[string]batch.Stats)["fact"]
	if factStats.Size == 0 {
		t.Fatalf("expected a populated fact cache, got %+v", factStats)
	}

	if _, err := call(t, r, "cache-clear", map[string]any{}); err != nil {
		t.Fatalf("cache-clear failed: %v", err)
	}
	stats, _ = call(t, r, "cache-stats", map[string]any{})
	factStats = stats.(map[string]batch.Stats)["fact"]
	if factStats.Size != 0 {
		t.Fatalf("expected fact cache to be empty after cache-clear, got %+v", factStats)
	}
}

func TestIngestContentAndProcessRaw(t *testing.T) {
	d := testDeps(t)
	r := BuildRegistry(d)

	sessResult, _ := call(t, r, "create_research_session", map[string]any{
		"topic": "ingest pipeline", "output_dir": "/tmp/out",
	})
	sessionID := sessResult.(*store.Session).SessionID

	staged, err := call(t, r, "ingest_content", map[string]any{
		"session_id": sessionID, "payload": "Revenue reached 30%. The deal was valued at $4 million.",
	})
	if err != nil {
		t.Fatalf("ingest_content failed: %v", err)
	}
	if staged.(map[string]any)["status"] != "pending" {
		t.Fatalf("expected staged item to be pending, got %v", staged)
	}

	processed, err := call(t, r, "process_raw", map[string]any{"session_id": sessionID, "queue_id": "all"})
	if err != nil {
		t.Fatalf("process_raw failed: %v", err)
	}
	if processed.(map[string]any)["count"] != 1 {
		t.Fatalf("expected one processed item, got %v", processed)
	}

	facts, err := d.Store.ListFacts(sessionID)
	if err != nil {
		t.Fatalf("ListFacts failed: %v", err)
	}
	if len(facts) == 0 {
		t.Fatal("expected process_raw to persist extracted facts")
	}
}

func TestBatchIngestStagesMultipleItems(t *testing.T) {
	d := testDeps(t)
	r := BuildRegistry(d)

	sessResult, _ := call(t, r, "create_research_session", map[string]any{
		"topic": "batch ingest", "output_dir": "/tmp/out",
	})
	sessionID := sessResult.(*store.Session).SessionID

	result, err := call(t, r, "batch_ingest", map[string]any{
		"session_id": sessionID,
		"items": []map[string]any{
			{"payload": "first payload"},
			{"payload": "second payload"},
		},
	})
	if err != nil {
		t.Fatalf("batch_ingest failed: %v", err)
	}
	if result.(map[string]any)["count"] != 2 {
		t.Fatalf("expected two staged items, got %v", result)
	}

	pending, err := d.Store.ListPendingIngestItems(sessionID)
	if err != nil {
		t.Fatalf("ListPendingIngestItems failed: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected two pending items, got %d", len(pending))
	}
}

func TestGeneratePathsAndAggregatePaths(t *testing.T) {
	d := testDeps(t)
	r := BuildRegistry(d)

	sessResult, _ := call(t, r, "create_research_session", map[string]any{
		"topic": "got lifecycle", "output_dir": "/tmp/out",
	})
	sessionID := sessResult.(*store.Session).SessionID

	generated, err := call(t, r, "generate_paths", map[string]any{
		"session_id": sessionID, "query": "explore approach A", "k": 2,
	})
	if err != nil {
		t.Fatalf("generate_paths failed: %v", err)
	}
	projection := generated.(map[string]any)
	if projection["count"] != 2 {
		t.Fatalf("expected 2 generated paths, got %v", projection)
	}
	paths := projection["paths"].([]map[string]any)
	pathIDs := []string{paths[0]["id"].(string), paths[1]["id"].(string)}

	for _, id := range pathIDs {
		if err := d.Store.UpdatePathStatus(id, "completed"); err != nil {
			t.Fatalf("UpdatePathStatus failed: %v", err)
		}
	}

	aggregated, err := call(t, r, "aggregate_paths", map[string]any{
		"session_id": sessionID, "path_ids": pathIDs,
	})
	if err != nil {
		t.Fatalf("aggregate_paths failed: %v", err)
	}
	result := aggregated.(map[string]any)
	if result["synthesis_path_id"] == "" || result["synthesis_path_id"] == nil {
		t.Fatalf("expected a synthesis_path_id, got %v", result)
	}
}
