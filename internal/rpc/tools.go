package rpc

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/antigravity-dev/deepresearch-mcp/internal/apperr"
	"github.com/antigravity-dev/deepresearch-mcp/internal/batch"
	"github.com/antigravity-dev/deepresearch-mcp/internal/decision"
	"github.com/antigravity-dev/deepresearch-mcp/internal/extract"
	"github.com/antigravity-dev/deepresearch-mcp/internal/got"
	"github.com/antigravity-dev/deepresearch-mcp/internal/pipeline"
	"github.com/antigravity-dev/deepresearch-mcp/internal/store"
	"github.com/antigravity-dev/deepresearch-mcp/internal/vectorindex"
)

// Deps bundles every backing package a tool handler may need. One Registry
// is built from one Deps value at startup; nothing here is reassigned once
// BuildRegistry returns.
type Deps struct {
	Store   *store.Store
	Engine  *got.Engine
	Caches  *batch.Registry
	Vectors *vectorindex.Index
	Logger  *slog.Logger
}

// BuildRegistry constructs the full tool registry: session/agent/phase
// state, GoT generate/refine/score/aggregate, get_next_action, the unified
// extraction/validation/conflict operators and their bounded-concurrency
// batch counterparts, the cache introspection tools, the ingest queue, and
// the auto-process pipeline. Legacy tool-name aliases are registered
// alongside the current names so older coordinators keep working
// unconditionally, with no deprecation warning.
func BuildRegistry(d Deps) *Registry {
	r := NewRegistry()

	registerSessionTools(r, d)
	registerAgentTools(r, d)
	registerPhaseTools(r, d)
	registerActivityTools(r, d)
	registerDecisionTools(r, d)
	registerGotTools(r, d)
	registerExtractTools(r, d)
	registerBatchTools(r, d)
	registerCacheTools(r, d)
	registerIngestTools(r, d)
	registerPipelineTools(r, d)

	r.Alias("getNextAction", "get_next_action")
	r.Alias("createSession", "create_research_session")

	return r
}

func registerSessionTools(r *Registry, d Deps) {
	r.Register(Tool{
		Name:        "create_research_session",
		Description: "Creates a new research session and returns its server-generated session_id.",
		InputSchema: schema(map[string]any{
			"topic":         stringProp("The research question or topic."),
			"output_dir":    stringProp("Directory artifacts are written to."),
			"research_type": stringProp("deep or quick; defaults to deep."),
		}, "topic", "output_dir"),
		Handle: func(raw json.RawMessage) (any, error) {
			var args struct {
				Topic        string `json:"topic" validate:"required"`
				OutputDir    string `json:"output_dir" validate:"required"`
				ResearchType string `json:"research_type"`
			}
			if err := decodeAndValidate(raw, &args); err != nil {
				return nil, apperr.Validation(apperr.CodeValidationGeneric, "create_research_session: "+err.Error())
			}
			return d.Store.CreateSession(uuid.New().String(), args.Topic, args.OutputDir, args.ResearchType)
		},
	})

	r.Register(Tool{
		Name:        "get_session_info",
		Description: "Retrieves a session's full current state.",
		InputSchema: schema(map[string]any{"session_id": stringProp("Session identifier.")}, "session_id"),
		Handle: func(raw json.RawMessage) (any, error) {
			var args struct {
				SessionID string `json:"session_id" validate:"required"`
			}
			if err := decodeAndValidate(raw, &args); err != nil {
				return nil, apperr.Validation(apperr.CodeValidationGeneric, "get_session_info: "+err.Error())
			}
			sess, err := d.Store.GetSession(args.SessionID)
			if err != nil {
				return nil, apperr.NotFound("get_session_info: " + err.Error())
			}
			return sess, nil
		},
	})

	r.Register(Tool{
		Name:        "update_session_status",
		Description: "Transitions a session to a new status.",
		InputSchema: schema(map[string]any{
			"session_id": stringProp("Session identifier."),
			"status":     stringProp("New status value."),
		}, "session_id", "status"),
		Handle: func(raw json.RawMessage) (any, error) {
			var args struct {
				SessionID string `json:"session_id" validate:"required"`
				Status    string `json:"status" validate:"required"`
			}
			if err := decodeAndValidate(raw, &args); err != nil {
				return nil, apperr.Validation(apperr.CodeValidationGeneric, "update_session_status: "+err.Error())
			}
			if err := d.Store.UpdateSessionStatus(args.SessionID, args.Status); err != nil {
				return nil, apperr.InvalidStatus("update_session_status: " + err.Error())
			}
			return d.Store.GetSession(args.SessionID)
		},
	})

	r.Register(Tool{
		Name:        "acquire_lock",
		Description: "Takes the session's advisory lock for exclusive coordination.",
		InputSchema: schema(map[string]any{
			"session_id": stringProp("Session identifier."),
			"locker_id":  stringProp("Identity of the requesting coordinator."),
		}, "session_id", "locker_id"),
		Handle: func(raw json.RawMessage) (any, error) {
			var args struct {
				SessionID string `json:"session_id" validate:"required"`
				LockerID  string `json:"locker_id" validate:"required"`
			}
			if err := decodeAndValidate(raw, &args); err != nil {
				return nil, apperr.Validation(apperr.CodeValidationGeneric, "acquire_lock: "+err.Error())
			}
			if err := d.Store.AcquireLock(args.SessionID, args.LockerID); err != nil {
				if lockErr, ok := err.(*store.LockError); ok {
					return nil, apperr.LockContention("acquire_lock: session is locked", lockErr.LockedBy, lockErr.LockedAt)
				}
				return nil, apperr.Storage("acquire_lock", err)
			}
			return map[string]string{"session_id": args.SessionID, "locked_by": args.LockerID}, nil
		},
	})

	r.Register(Tool{
		Name:        "release_lock",
		Description: "Releases the session's advisory lock.",
		InputSchema: schema(map[string]any{
			"session_id": stringProp("Session identifier."),
			"locker_id":  stringProp("Identity that currently holds the lock."),
		}, "session_id", "locker_id"),
		Handle: func(raw json.RawMessage) (any, error) {
			var args struct {
				SessionID string `json:"session_id" validate:"required"`
				LockerID  string `json:"locker_id" validate:"required"`
			}
			if err := decodeAndValidate(raw, &args); err != nil {
				return nil, apperr.Validation(apperr.CodeValidationGeneric, "release_lock: "+err.Error())
			}
			if err := d.Store.ReleaseLock(args.SessionID, args.LockerID); err != nil {
				return nil, apperr.Storage("release_lock", err)
			}
			return map[string]string{"session_id": args.SessionID}, nil
		},
	})
}

func registerAgentTools(r *Registry, d Deps) {
	r.Register(Tool{
		Name:        "register_agent",
		Description: "Registers a worker agent inside a session in the deploying state.",
		InputSchema: schema(map[string]any{
			"session_id":         stringProp("Session identifier."),
			"agent_id":           stringProp("Caller-assigned agent identifier."),
			"agent_type":         stringProp("Agent implementation category."),
			"agent_role":         stringProp("Role label, e.g. researcher or critic."),
			"focus_description":  stringProp("What this agent is responsible for."),
			"search_queries":     arrayOfStringsProp("Queries this agent will run."),
		}, "session_id", "agent_id", "agent_type"),
		Handle: func(raw json.RawMessage) (any, error) {
			var args struct {
				SessionID         string   `json:"session_id" validate:"required"`
				AgentID           string   `json:"agent_id" validate:"required"`
				AgentType         string   `json:"agent_type" validate:"required"`
				AgentRole         string   `json:"agent_role"`
				FocusDescription  string   `json:"focus_description"`
				SearchQueries     []string `json:"search_queries"`
			}
			if err := decodeAndValidate(raw, &args); err != nil {
				return nil, apperr.Validation(apperr.CodeValidationGeneric, "register_agent: "+err.Error())
			}
			agent, err := d.Store.RegisterAgent(args.SessionID, args.AgentID, args.AgentType, args.AgentRole, args.FocusDescription, args.SearchQueries)
			if err != nil {
				return nil, apperr.Storage("register_agent", err)
			}
			return agent, nil
		},
	})

	r.Register(Tool{
		Name:        "update_agent_status",
		Description: "Updates an agent's status and optional output/error fields.",
		InputSchema: schema(map[string]any{
			"agent_id":      stringProp("Agent identifier."),
			"status":        stringProp("New status value."),
			"output_file":   stringProp("Path the agent wrote its output to, if any."),
			"error_message": stringProp("Failure detail, if any."),
		}, "agent_id", "status"),
		Handle: func(raw json.RawMessage) (any, error) {
			var args struct {
				AgentID      string `json:"agent_id" validate:"required"`
				Status       string `json:"status" validate:"required"`
				OutputFile   string `json:"output_file"`
				ErrorMessage string `json:"error_message"`
			}
			if err := decodeAndValidate(raw, &args); err != nil {
				return nil, apperr.Validation(apperr.CodeValidationGeneric, "update_agent_status: "+err.Error())
			}
			if err := d.Store.UpdateAgentStatus(args.AgentID, args.Status, args.OutputFile, args.ErrorMessage); err != nil {
				return nil, apperr.Storage("update_agent_status", err)
			}
			return d.Store.GetAgent(args.AgentID)
		},
	})

	r.Register(Tool{
		Name:        "get_active_agents",
		Description: "Lists agents still deploying or running for a session, oldest first.",
		InputSchema: schema(map[string]any{"session_id": stringProp("Session identifier.")}, "session_id"),
		Handle: func(raw json.RawMessage) (any, error) {
			var args struct {
				SessionID string `json:"session_id" validate:"required"`
			}
			if err := decodeAndValidate(raw, &args); err != nil {
				return nil, apperr.Validation(apperr.CodeValidationGeneric, "get_active_agents: "+err.Error())
			}
			agents, err := d.Store.GetActiveAgents(args.SessionID)
			if err != nil {
				return nil, apperr.Storage("get_active_agents", err)
			}
			return agents, nil
		},
	})
}

func registerPhaseTools(r *Registry, d Deps) {
	r.Register(Tool{
		Name:        "update_current_phase",
		Description: "Advances a session's advisory phase marker. Phase transitions are free-form; no progression DAG is enforced.",
		InputSchema: schema(map[string]any{
			"session_id": stringProp("Session identifier."),
			"phase":      intProp("New phase number."),
		}, "session_id", "phase"),
		Handle: func(raw json.RawMessage) (any, error) {
			var args struct {
				SessionID string `json:"session_id" validate:"required"`
				Phase     int    `json:"phase"`
			}
			if err := decodeAndValidate(raw, &args); err != nil {
				return nil, apperr.Validation(apperr.CodeValidationGeneric, "update_current_phase: "+err.Error())
			}
			if err := d.Store.UpdateCurrentPhase(args.SessionID, args.Phase); err != nil {
				return nil, apperr.Storage("update_current_phase", err)
			}
			return map[string]any{"session_id": args.SessionID, "current_phase": args.Phase}, nil
		},
	})

	r.Register(Tool{
		Name:        "get_current_phase",
		Description: "Reads a session's current advisory phase marker.",
		InputSchema: schema(map[string]any{"session_id": stringProp("Session identifier.")}, "session_id"),
		Handle: func(raw json.RawMessage) (any, error) {
			var args struct {
				SessionID string `json:"session_id" validate:"required"`
			}
			if err := decodeAndValidate(raw, &args); err != nil {
				return nil, apperr.Validation(apperr.CodeValidationGeneric, "get_current_phase: "+err.Error())
			}
			sess, err := d.Store.GetSession(args.SessionID)
			if err != nil {
				return nil, apperr.NotFound("get_current_phase: " + err.Error())
			}
			return map[string]any{"session_id": args.SessionID, "current_phase": sess.CurrentPhase}, nil
		},
	})

	r.Register(Tool{
		Name:        "checkpoint_phase",
		Description: "Writes a named, restorable state snapshot for a session's phase.",
		InputSchema: schema(map[string]any{
			"session_id":      stringProp("Session identifier."),
			"phase_number":    intProp("Phase this checkpoint belongs to."),
			"checkpoint_type": stringProp("Checkpoint category label."),
			"state_snapshot":  stringProp("Serialized state to persist verbatim."),
		}, "session_id", "phase_number", "checkpoint_type", "state_snapshot"),
		Handle: func(raw json.RawMessage) (any, error) {
			var args struct {
				SessionID      string `json:"session_id" validate:"required"`
				PhaseNumber    int    `json:"phase_number"`
				CheckpointType string `json:"checkpoint_type" validate:"required"`
				StateSnapshot  string `json:"state_snapshot" validate:"required"`
			}
			if err := decodeAndValidate(raw, &args); err != nil {
				return nil, apperr.Validation(apperr.CodeValidationGeneric, "checkpoint_phase: "+err.Error())
			}
			cp := store.Checkpoint{
				SessionID:      args.SessionID,
				PhaseNumber:    args.PhaseNumber,
				CheckpointType: args.CheckpointType,
				StateSnapshot:  args.StateSnapshot,
			}
			if err := d.Store.InsertCheckpoint(cp); err != nil {
				return nil, apperr.Storage("checkpoint_phase", err)
			}
			return map[string]any{"success": true, "session_id": args.SessionID, "phase_number": args.PhaseNumber}, nil
		},
	})
}

func registerActivityTools(r *Registry, d Deps) {
	r.Register(Tool{
		Name:        "log_activity",
		Description: "Appends one event to a session's activity log.",
		InputSchema: schema(map[string]any{
			"session_id": stringProp("Session identifier."),
			"phase":      intProp("Phase the event occurred in."),
			"event_type": stringProp("Event category label."),
			"message":    stringProp("Human-readable event description."),
			"agent_id":   stringProp("Agent responsible for the event, if any."),
			"details":    stringProp("Serialized structured detail, if any."),
		}, "session_id", "event_type", "message"),
		Handle: func(raw json.RawMessage) (any, error) {
			var args struct {
				SessionID string `json:"session_id" validate:"required"`
				Phase     int    `json:"phase"`
				EventType string `json:"event_type" validate:"required"`
				Message   string `json:"message" validate:"required"`
				AgentID   string `json:"agent_id"`
				Details   string `json:"details"`
			}
			if err := decodeAndValidate(raw, &args); err != nil {
				return nil, apperr.Validation(apperr.CodeValidationGeneric, "log_activity: "+err.Error())
			}
			entry := store.ActivityLogEntry{
				SessionID: args.SessionID,
				Phase:     args.Phase,
				EventType: args.EventType,
				Message:   args.Message,
				AgentID:   nullableString(args.AgentID),
				Details:   nullableString(args.Details),
			}
			if err := d.Store.InsertActivityLog(entry); err != nil {
				return nil, apperr.Storage("log_activity", err)
			}
			return map[string]any{"success": true, "session_id": args.SessionID}, nil
		},
	})

	r.Register(Tool{
		Name:        "render_progress",
		Description: "Returns a plain data snapshot of a session's current research progress.",
		InputSchema: schema(map[string]any{"session_id": stringProp("Session identifier.")}, "session_id"),
		Handle: func(raw json.RawMessage) (any, error) {
			var args struct {
				SessionID string `json:"session_id" validate:"required"`
			}
			if err := decodeAndValidate(raw, &args); err != nil {
				return nil, apperr.Validation(apperr.CodeValidationGeneric, "render_progress: "+err.Error())
			}
			sess, err := d.Store.GetSession(args.SessionID)
			if err != nil {
				return nil, apperr.NotFound("render_progress: " + err.Error())
			}
			paths, err := d.Store.ListPaths(args.SessionID)
			if err != nil {
				return nil, apperr.Storage("render_progress: list paths", err)
			}
			activeAgents, err := d.Store.GetActiveAgents(args.SessionID)
			if err != nil {
				return nil, apperr.Storage("render_progress: get active agents", err)
			}
			activity, err := d.Store.ListActivityLog(args.SessionID)
			if err != nil {
				return nil, apperr.Storage("render_progress: list activity", err)
			}

			byStatus := map[string]int{}
			for _, p := range paths {
				byStatus[p.Status]++
			}
			var lastActivity any
			if len(activity) > 0 {
				lastActivity = activity[len(activity)-1]
			}

			return map[string]any{
				"phase":                  sess.CurrentPhase,
				"status":                 sess.Status,
				"iteration_count":        sess.IterationCount,
				"max_iterations":         sess.MaxIterations,
				"confidence":             sess.Confidence,
				"confidence_threshold":   sess.ConfidenceThreshold,
				"path_counts_by_status":  byStatus,
				"active_agents":          len(activeAgents),
				"last_activity":          lastActivity,
			}, nil
		},
	})
}

func registerDecisionTools(r *Registry, d Deps) {
	r.Register(Tool{
		Name:        "get_next_action",
		Description: "Evaluates the session's current graph state and returns the next coordinator action.",
		InputSchema: schema(map[string]any{"session_id": stringProp("Session identifier.")}, "session_id"),
		Handle: func(raw json.RawMessage) (any, error) {
			var args struct {
				SessionID string `json:"session_id" validate:"required"`
			}
			if err := decodeAndValidate(raw, &args); err != nil {
				return nil, apperr.Validation(apperr.CodeValidationGeneric, "get_next_action: "+err.Error())
			}

			sess, err := d.Store.GetSession(args.SessionID)
			if err != nil {
				return nil, apperr.NotFound("get_next_action: " + err.Error())
			}
			paths, err := d.Store.ListPaths(args.SessionID)
			if err != nil {
				return nil, apperr.Storage("get_next_action: list paths", err)
			}

			views := make([]decision.PathView, len(paths))
			for i, p := range paths {
				views[i] = decision.PathView{PathID: p.PathID, Status: p.Status, QualityScore: p.QualityScore}
			}

			state := decision.GraphState{
				Paths:               views,
				IterationCount:      sess.IterationCount,
				Confidence:          sess.Confidence,
				IsAggregated:        sess.IsAggregated,
				BudgetExhausted:     sess.BudgetExhausted,
				MaxIterations:       sess.MaxIterations,
				ConfidenceThreshold: sess.ConfidenceThreshold,
			}
			return decision.Decide(state), nil
		},
	})
}

func registerGotTools(r *Registry, d Deps) {
	r.Register(Tool{
		Name:        "generate_paths",
		Description: "Creates new Graph-of-Thoughts exploration paths.",
		InputSchema: schema(map[string]any{
			"session_id": stringProp("Session identifier."),
			"query":      stringProp("The exploration prompt driving this generation."),
			"k":          intProp("Number of paths to create; defaults to 3."),
			"strategy":   stringProp("Generation strategy; defaults to diverse."),
		}, "session_id", "query"),
		Handle: func(raw json.RawMessage) (any, error) {
			var args struct {
				SessionID string `json:"session_id" validate:"required"`
				Query     string `json:"query" validate:"required"`
				K         int    `json:"k"`
				Strategy  string `json:"strategy"`
			}
			if err := decodeAndValidate(raw, &args); err != nil {
				return nil, apperr.Validation(apperr.CodeValidationGeneric, "generate_paths: "+err.Error())
			}
			if args.K == 0 {
				args.K = 3
			}
			if args.Strategy == "" {
				args.Strategy = "diverse"
			}
			paths, err := d.Engine.Generate(args.SessionID, args.Query, args.K, args.Strategy)
			if err != nil {
				return nil, apperr.Processing(apperr.CodeProcessingGeneric, "generate_paths", err)
			}

			projected := make([]map[string]any, len(paths))
			for i, p := range paths {
				projected[i] = map[string]any{"id": p.PathID, "focus": args.Query, "query": args.Query, "status": p.Status}
			}
			return map[string]any{"success": true, "paths": projected, "count": len(projected)}, nil
		},
	})

	r.Register(Tool{
		Name:        "refine_path",
		Description: "Clones a path into a new refined child node.",
		InputSchema: schema(map[string]any{
			"path_id": stringProp("Path to refine."),
			"query":   stringProp("The refinement prompt."),
		}, "path_id", "query"),
		Handle: func(raw json.RawMessage) (any, error) {
			var args struct {
				PathID string `json:"path_id" validate:"required"`
				Query  string `json:"query" validate:"required"`
			}
			if err := decodeAndValidate(raw, &args); err != nil {
				return nil, apperr.Validation(apperr.CodeValidationGeneric, "refine_path: "+err.Error())
			}
			refined, err := d.Engine.Refine(args.PathID, args.Query)
			if err != nil {
				return nil, apperr.Processing(apperr.CodeProcessingGeneric, "refine_path", err)
			}
			return refined, nil
		},
	})

	r.Register(Tool{
		Name:        "score_and_prune",
		Description: "Scores completed paths and prunes below-threshold or excess survivors.",
		InputSchema: schema(map[string]any{
			"session_id": stringProp("Session identifier."),
			"threshold":  numberProp("Minimum quality score to survive; defaults to 6.0."),
			"keep_top_n": intProp("Maximum survivors to retain; defaults to 2."),
		}, "session_id"),
		Handle: func(raw json.RawMessage) (any, error) {
			var args struct {
				SessionID string  `json:"session_id" validate:"required"`
				Threshold float64 `json:"threshold"`
				KeepTopN  int     `json:"keep_top_n"`
			}
			if err := decodeAndValidate(raw, &args); err != nil {
				return nil, apperr.Validation(apperr.CodeValidationGeneric, "score_and_prune: "+err.Error())
			}
			if args.Threshold == 0 {
				args.Threshold = 6.0
			}
			if args.KeepTopN == 0 {
				args.KeepTopN = 2
			}
			scored, pruned, err := d.Engine.ScoreAndPrune(args.SessionID, args.Threshold, args.KeepTopN)
			if err != nil {
				return nil, apperr.Processing(apperr.CodeProcessingGeneric, "score_and_prune", err)
			}
			prunedIDs := make([]string, len(pruned))
			for i, p := range pruned {
				prunedIDs[i] = p.PathID
			}
			return map[string]any{"success": true, "scored": scored, "pruned_ids": prunedIDs}, nil
		},
	})

	r.Register(Tool{
		Name:        "aggregate_paths",
		Description: "Merges one or more paths into a single synthesized node.",
		InputSchema: schema(map[string]any{
			"session_id": stringProp("Session identifier."),
			"path_ids":   arrayOfStringsProp("Paths to merge."),
			"strategy":   stringProp("synthesis, voting, or consensus; defaults to synthesis."),
		}, "session_id", "path_ids"),
		Handle: func(raw json.RawMessage) (any, error) {
			var args struct {
				SessionID string   `json:"session_id" validate:"required"`
				PathIDs   []string `json:"path_ids" validate:"required,min=1"`
				Strategy  string   `json:"strategy"`
			}
			if err := decodeAndValidate(raw, &args); err != nil {
				return nil, apperr.Validation(apperr.CodeValidationGeneric, "aggregate_paths: "+err.Error())
			}
			if args.Strategy == "" {
				args.Strategy = "synthesis"
			}
			aggregated, err := d.Engine.Aggregate(args.SessionID, args.PathIDs, args.Strategy)
			if err != nil {
				return nil, apperr.Processing(apperr.CodeProcessingGeneric, "aggregate_paths", err)
			}
			if d.Vectors != nil && d.Vectors.Enabled() {
				if err := d.Vectors.MirrorPath(context.Background(), args.SessionID, aggregated.PathID, aggregated.Content); err != nil && d.Logger != nil {
					d.Logger.Warn("aggregate_paths: failed to mirror path into vector index", "path_id", aggregated.PathID, "error", err)
				}
			}

			sources, err := d.Store.ListCitations(args.SessionID)
			if err != nil {
				return nil, apperr.Storage("aggregate_paths: list citations", err)
			}
			conflicts, err := d.Store.ListFactConflicts(args.SessionID)
			if err != nil {
				return nil, apperr.Storage("aggregate_paths: list fact conflicts", err)
			}

			return map[string]any{
				"success":            true,
				"synthesis_path_id":  aggregated.PathID,
				"confidence":         aggregated.QualityScore / 10,
				"sources":            len(sources),
				"conflicts":          len(conflicts),
			}, nil
		},
	})
}

// extractArgs is the mode-independent decode target shared by extract,
// validate, and every one of their legacy-alias tools.
type extractArgs struct {
	Text              string          `json:"text"`
	Mode              string          `json:"mode"`
	SourceURL         string          `json:"source_url"`
	SourceMetadata    json.RawMessage `json:"source_metadata"`
	EntityTypes       []string        `json:"entity_types"`
	ExtractRelations  *bool           `json:"extract_relations"`
}

func registerExtractTools(r *Registry, d Deps) {
	r.Register(Tool{
		Name:        "extract",
		Description: "Extracts facts, entities, and relationships from free text (mode: fact, entity, or all).",
		InputSchema: schema(map[string]any{
			"text":              stringProp("Source text to scan."),
			"mode":              stringProp("fact, entity, or all; defaults to all."),
			"source_url":        stringProp("Provenance URL for extracted facts."),
			"source_metadata":   map[string]any{"type": "object", "description": "Opaque provenance metadata, passed through."},
			"entity_types":      arrayOfStringsProp("Entity types to extract; empty means all."),
			"extract_relations": boolProp("Whether to also extract relationships; defaults to true."),
		}, "text"),
		Handle: func(raw json.RawMessage) (any, error) {
			return runExtract(d, raw, "", true)
		},
	})
	r.Register(Tool{
		Name:        "fact-extract",
		Description: "Legacy alias for extract with mode forced to fact.",
		InputSchema: schema(map[string]any{
			"text":       stringProp("Source text to scan."),
			"source_url": stringProp("Provenance URL for extracted facts."),
		}, "text"),
		Handle: func(raw json.RawMessage) (any, error) {
			return runExtract(d, raw, "fact", true)
		},
	})
	r.Register(Tool{
		Name:        "entity-extract",
		Description: "Legacy alias for extract with mode forced to entity.",
		InputSchema: schema(map[string]any{
			"text":         stringProp("Source text to scan."),
			"entity_types": arrayOfStringsProp("Entity types to extract; empty means all."),
		}, "text"),
		Handle: func(raw json.RawMessage) (any, error) {
			return runExtract(d, raw, "entity", true)
		},
	})

	r.Register(Tool{
		Name:        "validate",
		Description: "Validates citations and/or rates a source (mode: citation, source, or all).",
		InputSchema: schema(map[string]any{
			"mode":           stringProp("citation, source, or all; defaults to all."),
			"citations":      arrayProp("Citations to validate."),
			"source_url":     stringProp("Source URL to rate."),
			"source_type":    stringProp("Declared source category, if known."),
			"verify_urls":    boolProp("Reserved for future URL reachability checks."),
			"check_accuracy": boolProp("Reserved for future cross-source accuracy checks."),
		}),
		Handle: func(raw json.RawMessage) (any, error) {
			return runValidate(d, raw, "", true)
		},
	})
	r.Register(Tool{
		Name:        "citation-validate",
		Description: "Legacy alias for validate with mode forced to citation.",
		InputSchema: schema(map[string]any{"citations": arrayProp("Citations to validate.")}, "citations"),
		Handle: func(raw json.RawMessage) (any, error) {
			return runValidate(d, raw, "citation", true)
		},
	})
	r.Register(Tool{
		Name:        "source-rate",
		Description: "Legacy alias for validate with mode forced to source.",
		InputSchema: schema(map[string]any{
			"source_url":  stringProp("Source URL to rate."),
			"source_type": stringProp("Declared source category, if known."),
		}, "source_url"),
		Handle: func(raw json.RawMessage) (any, error) {
			return runValidate(d, raw, "source", true)
		},
	})

	r.Register(Tool{
		Name:        "conflict-detect",
		Description: "Groups facts by entity and attribute and flags disagreements.",
		InputSchema: schema(map[string]any{
			"facts":     arrayProp("Facts to compare."),
			"tolerance": map[string]any{"type": "object", "description": "{numerical: float, temporal: 'same_year'}"},
		}, "facts"),
		Handle: func(raw json.RawMessage) (any, error) {
			return runConflictDetect(d, raw, true)
		},
	})
}

func runExtract(d Deps, raw json.RawMessage, forcedMode string, useCache bool) (any, error) {
	var args extractArgs
	if err := decodeAndValidate(raw, &args); err != nil {
		return nil, apperr.Validation(apperr.CodeValidationGeneric, "extract: "+err.Error())
	}
	if args.Text == "" {
		return nil, apperr.Validation(apperr.CodeValidationGeneric, "extract: text must not be empty")
	}

	mode := forcedMode
	if mode == "" {
		mode = args.Mode
	}
	if mode == "" {
		mode = "all"
	}
	wantRelations := mode == "all" && (args.ExtractRelations == nil || *args.ExtractRelations)

	start := time.Now()
	result := map[string]any{}
	var facts []extract.Fact
	var entities []extract.Entity

	if mode == "fact" || mode == "all" {
		cache := d.Caches.Fact
		if !useCache {
			cache = nil
		}
		f, err := extractWithCache(cache, factCacheKey{Text: args.Text, SourceURL: args.SourceURL}, func() ([]extract.Fact, error) {
			return extract.ExtractFacts(args.Text, args.SourceURL)
		})
		if err != nil {
			return nil, err
		}
		facts = f
		result["facts"] = facts
	}
	if mode == "entity" || mode == "all" {
		cache := d.Caches.Entity
		if !useCache {
			cache = nil
		}
		e, err := extractWithCache(cache, entityCacheKey{Text: args.Text, Types: args.EntityTypes}, func() ([]extract.Entity, error) {
			return extract.ExtractEntities(args.Text, args.EntityTypes), nil
		})
		if err != nil {
			return nil, err
		}
		entities = e
		result["entities"] = entities
	}
	var edges []extract.Relationship
	if wantRelations {
		edges = extract.ExtractRelationships(args.Text)
		result["edges"] = edges
	}

	var quality float64
	if mode == "all" {
		quality = extract.ExtractionQuality(facts)
	}

	result["metadata"] = map[string]any{
		"mode":                  mode,
		"total_facts":           len(facts),
		"total_entities":        len(entities),
		"total_relationships":   len(edges),
		"processing_time_ms":    time.Since(start).Milliseconds(),
		"extraction_quality":    quality,
	}
	return result, nil
}

type factCacheKey struct {
	Text      string
	SourceURL string
}

type entityCacheKey struct {
	Text  string
	Types []string
}

type validateArgs struct {
	Mode       string             `json:"mode"`
	Citations  []extract.Citation `json:"citations"`
	SourceURL  string             `json:"source_url"`
	SourceType string             `json:"source_type"`
}

func runValidate(d Deps, raw json.RawMessage, forcedMode string, useCache bool) (any, error) {
	var args validateArgs
	if err := decodeAndValidate(raw, &args); err != nil {
		return nil, apperr.Validation(apperr.CodeValidationGeneric, "validate: "+err.Error())
	}

	mode := forcedMode
	if mode == "" {
		mode = args.Mode
	}
	if mode == "" {
		mode = "all"
	}

	result := map[string]any{}
	var issues []string

	if mode == "citation" || mode == "all" {
		if len(args.Citations) == 0 {
			return nil, apperr.Validation(apperr.CodeValidationGeneric, "validate: citations must not be empty for mode "+mode)
		}
		cache := d.Caches.Citation
		if !useCache {
			cache = nil
		}
		validation, err := extractWithCache(cache, args.Citations, func() (extract.CitationValidation, error) {
			return extract.ValidateCitations(args.Citations), nil
		})
		if err != nil {
			return nil, err
		}
		result["citation_results"] = validation
		result["complete_citations"] = validation.CompleteCitations
		result["total_citations"] = validation.TotalCitations
		issues = append(issues, validation.Issues...)
	}
	if mode == "source" || mode == "all" {
		if args.SourceURL == "" {
			return nil, apperr.Validation(apperr.CodeValidationGeneric, "validate: source_url is required for mode "+mode)
		}
		cache := d.Caches.SourceRating
		if !useCache {
			cache = nil
		}
		rating, err := extractWithCache(cache, sourceRatingCacheKey{Type: args.SourceType, URL: args.SourceURL}, func() (extract.SourceRating, error) {
			return extract.RateSource(args.SourceType, args.SourceURL), nil
		})
		if err != nil {
			return nil, err
		}
		result["source_rating"] = rating
	}

	result["issues"] = issues
	return result, nil
}

type sourceRatingCacheKey struct {
	Type string
	URL  string
}

type conflictArgs struct {
	Facts     []extract.ConflictFact `json:"facts" validate:"required"`
	Tolerance *struct {
		Numerical float64 `json:"numerical"`
		Temporal  string  `json:"temporal"`
	} `json:"tolerance"`
}

func runConflictDetect(d Deps, raw json.RawMessage, useCache bool) (any, error) {
	var args conflictArgs
	if err := decodeAndValidate(raw, &args); err != nil {
		return nil, apperr.Validation(apperr.CodeValidationGeneric, "conflict-detect: "+err.Error())
	}

	numTol := 0.05
	if args.Tolerance != nil && args.Tolerance.Numerical > 0 {
		numTol = args.Tolerance.Numerical
	}

	cache := d.Caches.Conflict
	if !useCache {
		cache = nil
	}
	conflicts, err := extractWithCache(cache, conflictCacheKey{Facts: args.Facts, Tolerance: numTol}, func() ([]extract.Conflict, error) {
		return extract.DetectConflicts(args.Facts, numTol), nil
	})
	if err != nil {
		return nil, err
	}

	severitySummary := map[string]int{}
	projected := make([]map[string]any, len(conflicts))
	for i, c := range conflicts {
		severitySummary[c.Severity]++
		entry := map[string]any{
			"entity":        c.Entity,
			"attribute":     c.Attribute,
			"conflict_type": c.Kind,
			"severity":      c.Severity,
			"facts":         []extract.ConflictFact{c.FactA, c.FactB},
		}
		if c.Kind == "numerical" {
			denom := maxAbs(c.FactA.ValueNumeric, c.FactB.ValueNumeric)
			if denom != 0 {
				entry["difference_percent"] = (c.Delta / denom) * 100
			}
		}
		projected[i] = entry
	}

	return map[string]any{
		"conflicts":        projected,
		"total_conflicts":  len(projected),
		"severity_summary": severitySummary,
	}, nil
}

type conflictCacheKey struct {
	Facts     []extract.ConflictFact
	Tolerance float64
}

func maxAbs(a, b float64) float64 {
	if a < 0 {
		a = -a
	}
	if b < 0 {
		b = -b
	}
	if a > b {
		return a
	}
	return b
}

// batchArgs is the shared decode target for every batch-* tool: a list of
// raw per-item payloads, an optional top-level mode (forced on each item
// for the fact/entity/citation/source legacy batch aliases), and the
// bounded-concurrency execution contract from spec §4.6.
type batchArgs struct {
	Items   []json.RawMessage `json:"items" validate:"required,min=1"`
	Mode    string            `json:"mode"`
	Options *struct {
		MaxConcurrency int   `json:"maxConcurrency"`
		UseCache       *bool `json:"useCache"`
		StopOnError    bool  `json:"stopOnError"`
	} `json:"options"`
}

func registerBatchTools(r *Registry, d Deps) {
	r.Register(Tool{
		Name:        "batch-extract",
		Description: "Runs extract over many items with bounded concurrency.",
		InputSchema: schema(map[string]any{
			"items":   arrayProp("Per-item extract arguments."),
			"mode":    stringProp("Mode applied to every item; when set, it overrides any mode an item specifies."),
			"options": map[string]any{"type": "object", "description": "{maxConcurrency, useCache, stopOnError}"},
		}, "items"),
		Handle: func(raw json.RawMessage) (any, error) {
			return runBatch(raw, func(ctx context.Context, item json.RawMessage, mode string, useCache bool) (any, error) {
				return runExtract(d, item, mode, useCache)
			})
		},
	})
	r.Register(Tool{
		Name:        "batch-fact-extract",
		Description: "Legacy alias for batch-extract with mode forced to fact.",
		InputSchema: schema(map[string]any{"items": arrayProp("Per-item extract arguments.")}, "items"),
		Handle: func(raw json.RawMessage) (any, error) {
			return runBatch(forceMode(raw, "fact"), func(ctx context.Context, item json.RawMessage, mode string, useCache bool) (any, error) {
				return runExtract(d, item, "fact", useCache)
			})
		},
	})
	r.Register(Tool{
		Name:        "batch-entity-extract",
		Description: "Legacy alias for batch-extract with mode forced to entity.",
		InputSchema: schema(map[string]any{"items": arrayProp("Per-item extract arguments.")}, "items"),
		Handle: func(raw json.RawMessage) (any, error) {
			return runBatch(forceMode(raw, "entity"), func(ctx context.Context, item json.RawMessage, mode string, useCache bool) (any, error) {
				return runExtract(d, item, "entity", useCache)
			})
		},
	})

	r.Register(Tool{
		Name:        "batch-validate",
		Description: "Runs validate over many items with bounded concurrency.",
		InputSchema: schema(map[string]any{
			"items":   arrayProp("Per-item validate arguments."),
			"mode":    stringProp("Mode applied to every item; when set, it overrides any mode an item specifies."),
			"options": map[string]any{"type": "object", "description": "{maxConcurrency, useCache, stopOnError}"},
		}, "items"),
		Handle: func(raw json.RawMessage) (any, error) {
			return runBatch(raw, func(ctx context.Context, item json.RawMessage, mode string, useCache bool) (any, error) {
				return runValidate(d, item, mode, useCache)
			})
		},
	})
	r.Register(Tool{
		Name:        "batch-citation-validate",
		Description: "Legacy alias for batch-validate with mode forced to citation.",
		InputSchema: schema(map[string]any{"items": arrayProp("Per-item validate arguments.")}, "items"),
		Handle: func(raw json.RawMessage) (any, error) {
			return runBatch(forceMode(raw, "citation"), func(ctx context.Context, item json.RawMessage, mode string, useCache bool) (any, error) {
				return runValidate(d, item, "citation", useCache)
			})
		},
	})
	r.Register(Tool{
		Name:        "batch-source-rate",
		Description: "Legacy alias for batch-validate with mode forced to source.",
		InputSchema: schema(map[string]any{"items": arrayProp("Per-item validate arguments.")}, "items"),
		Handle: func(raw json.RawMessage) (any, error) {
			return runBatch(forceMode(raw, "source"), func(ctx context.Context, item json.RawMessage, mode string, useCache bool) (any, error) {
				return runValidate(d, item, "source", useCache)
			})
		},
	})

	r.Register(Tool{
		Name:        "batch-conflict-detect",
		Description: "Runs conflict-detect over many items with bounded concurrency.",
		InputSchema: schema(map[string]any{
			"items":   arrayProp("Per-item conflict-detect arguments."),
			"options": map[string]any{"type": "object", "description": "{maxConcurrency, useCache, stopOnError}"},
		}, "items"),
		Handle: func(raw json.RawMessage) (any, error) {
			return runBatch(raw, func(ctx context.Context, item json.RawMessage, mode string, useCache bool) (any, error) {
				return runConflictDetect(d, item, useCache)
			})
		},
	})
}

// forceMode rewrites raw's top-level "mode" field, used by legacy batch
// alias tools so the shared batchArgs decode still sees the forced mode.
func forceMode(raw json.RawMessage, mode string) json.RawMessage {
	var generic map[string]json.RawMessage
	if err := json.Unmarshal(raw, &generic); err != nil {
		return raw
	}
	modeJSON, _ := json.Marshal(mode)
	generic["mode"] = modeJSON
	rewritten, err := json.Marshal(generic)
	if err != nil {
		return raw
	}
	return rewritten
}

// runBatch decodes the shared batch envelope, fans each item through fn
// via the bounded-concurrency executor (C6), and projects the outcome
// into the wire contract's {results, summary} shape.
func runBatch(raw json.RawMessage, fn func(ctx context.Context, item json.RawMessage, mode string, useCache bool) (any, error)) (any, error) {
	var args batchArgs
	if err := decodeAndValidate(raw, &args); err != nil {
		return nil, apperr.Validation(apperr.CodeValidationGeneric, "batch: "+err.Error())
	}

	opts := batch.Options{MaxConcurrency: 5, UseCache: true, StopOnError: false}
	useCache := true
	if args.Options != nil {
		if args.Options.MaxConcurrency > 0 {
			opts.MaxConcurrency = args.Options.MaxConcurrency
		}
		opts.StopOnError = args.Options.StopOnError
		if args.Options.UseCache != nil {
			useCache = *args.Options.UseCache
		}
	}
	opts.UseCache = useCache

	start := time.Now()
	results, summary := batch.Run(context.Background(), args.Items, opts, func(ctx context.Context, i int, item json.RawMessage) (any, error) {
		return fn(ctx, item, args.Mode, useCache)
	})
	totalMs := time.Since(start).Milliseconds()

	projected := make([]map[string]any, len(results))
	for i, res := range results {
		entry := map[string]any{"id": strconv.Itoa(i), "success": res.Success}
		if res.Success {
			entry["data"] = res.Value
		} else if res.Err != nil {
			entry["error"] = res.Err.Error()
		}
		projected[i] = entry
	}

	var avgMs int64
	if len(results) > 0 {
		avgMs = totalMs / int64(len(results))
	}

	return map[string]any{
		"results": projected,
		"summary": map[string]any{
			"total":       len(results),
			"successful":  summary.Successful,
			"failed":      summary.Failed,
			"totalTimeMs": totalMs,
			"avgTimeMs":   avgMs,
		},
	}, nil
}

func registerCacheTools(r *Registry, d Deps) {
	r.Register(Tool{
		Name:        "cache-stats",
		Description: "Returns size/hit/miss/hit-rate snapshots for every extraction/validation cache family.",
		InputSchema: schema(map[string]any{}),
		Handle: func(raw json.RawMessage) (any, error) {
			return d.Caches.StatsAll(), nil
		},
	})

	r.Register(Tool{
		Name:        "cache-clear",
		Description: "Empties every extraction/validation cache family.",
		InputSchema: schema(map[string]any{}),
		Handle: func(raw json.RawMessage) (any, error) {
			d.Caches.ClearAll()
			return map[string]string{"message": "all caches cleared"}, nil
		},
	})
}

func registerIngestTools(r *Registry, d Deps) {
	r.Register(Tool{
		Name:        "ingest_content",
		Description: "Stages one raw payload in the ingest queue for later processing by process_raw.",
		InputSchema: schema(map[string]any{
			"session_id":   stringProp("Session identifier."),
			"payload":      stringProp("Raw content to stage."),
			"source_url":   stringProp("Provenance URL, if any."),
			"content_type": stringProp("MIME type; defaults to text/markdown."),
		}, "session_id", "payload"),
		Handle: func(raw json.RawMessage) (any, error) {
			var args struct {
				SessionID   string `json:"session_id" validate:"required"`
				Payload     string `json:"payload" validate:"required"`
				SourceURL   string `json:"source_url"`
				ContentType string `json:"content_type"`
			}
			if err := decodeAndValidate(raw, &args); err != nil {
				return nil, apperr.Validation(apperr.CodeValidationGeneric, "ingest_content: "+err.Error())
			}
			queueID := uuid.New().String()
			item := store.IngestQueueItem{
				QueueID:     queueID,
				SessionID:   args.SessionID,
				Payload:     args.Payload,
				SourceURL:   nullableString(args.SourceURL),
				ContentType: args.ContentType,
			}
			if err := d.Store.EnqueueIngestItem(item); err != nil {
				return nil, apperr.Storage("ingest_content", err)
			}
			return map[string]any{"success": true, "queue_id": queueID, "status": "pending"}, nil
		},
	})

	r.Register(Tool{
		Name:        "batch_ingest",
		Description: "Stages many raw payloads in the ingest queue in one call.",
		InputSchema: schema(map[string]any{
			"session_id": stringProp("Session identifier."),
			"items": map[string]any{
				"type":        "array",
				"description": "Array of {payload, source_url?, content_type?}.",
				"items":       map[string]any{"type": "object"},
			},
		}, "session_id", "items"),
		Handle: func(raw json.RawMessage) (any, error) {
			var args struct {
				SessionID string `json:"session_id" validate:"required"`
				Items     []struct {
					Payload     string `json:"payload" validate:"required"`
					SourceURL   string `json:"source_url"`
					ContentType string `json:"content_type"`
				} `json:"items" validate:"required,min=1"`
			}
			if err := decodeAndValidate(raw, &args); err != nil {
				return nil, apperr.Validation(apperr.CodeValidationGeneric, "batch_ingest: "+err.Error())
			}

			queueIDs := make([]string, len(args.Items))
			for i, it := range args.Items {
				queueID := uuid.New().String()
				queueIDs[i] = queueID
				item := store.IngestQueueItem{
					QueueID:     queueID,
					SessionID:   args.SessionID,
					Payload:     it.Payload,
					SourceURL:   nullableString(it.SourceURL),
					ContentType: it.ContentType,
				}
				if err := d.Store.EnqueueIngestItem(item); err != nil {
					return nil, apperr.Storage("batch_ingest", err)
				}
			}
			return map[string]any{"success": true, "queue_ids": queueIDs, "count": len(queueIDs)}, nil
		},
	})

	r.Register(Tool{
		Name:        "process_raw",
		Description: `Transitions queued ingest items (by queue_id, or "all" pending items) through processing to completed/failed, folding extracted facts and entities into the session's tables.`,
		InputSchema: schema(map[string]any{
			"session_id": stringProp("Session identifier."),
			"queue_id":   stringProp(`A specific queue_id, or "all" to process every pending item.`),
		}, "session_id", "queue_id"),
		Handle: func(raw json.RawMessage) (any, error) {
			var args struct {
				SessionID string `json:"session_id" validate:"required"`
				QueueID   string `json:"queue_id" validate:"required"`
			}
			if err := decodeAndValidate(raw, &args); err != nil {
				return nil, apperr.Validation(apperr.CodeValidationGeneric, "process_raw: "+err.Error())
			}

			pending, err := d.Store.ListPendingIngestItems(args.SessionID)
			if err != nil {
				return nil, apperr.Storage("process_raw: list pending", err)
			}

			var toProcess []store.IngestQueueItem
			if args.QueueID == "all" {
				toProcess = pending
			} else {
				for _, it := range pending {
					if it.QueueID == args.QueueID {
						toProcess = append(toProcess, it)
						break
					}
				}
				if len(toProcess) == 0 {
					return nil, apperr.NotFound("process_raw: no pending item " + args.QueueID)
				}
			}

			var processed []map[string]any
			for _, item := range toProcess {
				result := processIngestItem(d, item)
				processed = append(processed, result)
			}

			return map[string]any{"success": true, "session_id": args.SessionID, "processed": processed, "count": len(processed)}, nil
		},
	})
}

func processIngestItem(d Deps, item store.IngestQueueItem) map[string]any {
	d.Store.MarkIngestItemProcessed(item.QueueID, "processing", "")
	facts, err := extract.ExtractFacts(item.Payload, item.SourceURL.String)
	if err != nil {
		d.Store.MarkIngestItemProcessed(item.QueueID, "failed", err.Error())
		return map[string]any{"queue_id": item.QueueID, "status": "failed", "error": err.Error()}
	}
	entities := extract.ExtractEntities(item.Payload, nil)

	for _, f := range facts {
		storeFact := store.Fact{
			FactID:       uuid.New().String(),
			SessionID:    item.SessionID,
			Entity:       f.Subject,
			Attribute:    f.ValueType,
			Value:        strconv.FormatFloat(f.ValueNumeric, 'f', -1, 64),
			ValueType:    f.ValueType,
			ValueNumeric: sql.NullFloat64{Float64: f.ValueNumeric, Valid: true},
			Confidence:   confidenceScore(f.Confidence),
			SourceURL:    nullableString(f.SourceURL),
		}
		if err := d.Store.InsertFact(storeFact); err != nil {
			d.Store.MarkIngestItemProcessed(item.QueueID, "failed", err.Error())
			return map[string]any{"queue_id": item.QueueID, "status": "failed", "error": err.Error()}
		}
	}
	for _, e := range entities {
		storeEntity := store.Entity{
			EntityID:   uuid.New().String(),
			SessionID:  item.SessionID,
			Name:       e.Name,
			EntityType: e.Type,
			SourceURL:  item.SourceURL,
		}
		if err := d.Store.InsertEntity(storeEntity); err != nil {
			d.Store.MarkIngestItemProcessed(item.QueueID, "failed", err.Error())
			return map[string]any{"queue_id": item.QueueID, "status": "failed", "error": err.Error()}
		}
	}

	if err := d.Store.MarkIngestItemProcessed(item.QueueID, "completed", ""); err != nil {
		return map[string]any{"queue_id": item.QueueID, "status": "failed", "error": err.Error()}
	}
	return map[string]any{"queue_id": item.QueueID, "status": "completed", "facts": len(facts), "entities": len(entities)}
}

func confidenceScore(level string) float64 {
	switch level {
	case "High":
		return 0.9
	case "Low":
		return 0.3
	default:
		return 0.6
	}
}

func nullableString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func registerPipelineTools(r *Registry, d Deps) {
	r.Register(Tool{
		Name:        "auto_process_data",
		Description: "Ingests every markdown file under input_dir and emits fact/entity/conflict artifacts to output_dir.",
		InputSchema: schema(map[string]any{
			"session_id":        stringProp("Session identifier."),
			"input_dir":         stringProp("Directory of markdown files to ingest."),
			"output_dir":        stringProp("Directory artifacts are written to."),
			"operations":        arrayOfStringsProp("Subset of operations to run; empty means all."),
			"continue_on_error": boolProp("Keep processing remaining files after a per-file failure."),
		}, "session_id", "input_dir", "output_dir"),
		Handle: func(raw json.RawMessage) (any, error) {
			var args struct {
				SessionID       string   `json:"session_id" validate:"required"`
				InputDir        string   `json:"input_dir" validate:"required"`
				OutputDir       string   `json:"output_dir" validate:"required"`
				Operations      []string `json:"operations"`
				ContinueOnError *bool    `json:"continue_on_error"`
			}
			if err := decodeAndValidate(raw, &args); err != nil {
				return nil, apperr.Validation(apperr.CodeValidationGeneric, "auto_process_data: "+err.Error())
			}
			continueOnError := true
			if args.ContinueOnError != nil {
				continueOnError = *args.ContinueOnError
			}
			result, err := pipeline.Run(args.SessionID, args.InputDir, args.OutputDir, args.Operations,
				pipeline.Options{ContinueOnError: continueOnError}, d.Logger)
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"success":    result.Success,
				"session_id": args.SessionID,
				"results":    result.Results,
				"summary":    result.Summary,
				"warnings":   result.Warnings,
			}, nil
		},
	})
}

// extractWithCache memoizes a deterministic extraction call behind the
// given cache, keyed on the JSON-marshaled request args. A cache miss or a
// disabled cache (nil) falls through to computing fn and storing the
// result for next time.
func extractWithCache[T any](cache *batch.Cache, keyArgs any, fn func() (T, error)) (T, error) {
	var zero T
	if cache == nil {
		return fn()
	}
	key, err := batch.Key(keyArgs)
	if err != nil {
		return fn()
	}
	if cached, ok := cache.Get(key); ok {
		if value, ok := cached.(T); ok {
			return value, nil
		}
	}
	value, err := fn()
	if err != nil {
		return zero, err
	}
	cache.Set(key, value)
	return value, nil
}

func schema(properties map[string]any, required ...string) map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

func stringProp(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

func intProp(description string) map[string]any {
	return map[string]any{"type": "integer", "description": description}
}

func numberProp(description string) map[string]any {
	return map[string]any{"type": "number", "description": description}
}

func boolProp(description string) map[string]any {
	return map[string]any{"type": "boolean", "description": description}
}

func arrayOfStringsProp(description string) map[string]any {
	return map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": description}
}

func arrayProp(description string) map[string]any {
	return map[string]any{"type": "array", "items": map[string]any{"type": "object"}, "description": description}
}
