// Package got implements the Graph-of-Thoughts engine (C3): the operations
// that create, refine, score, prune, and aggregate exploration Path nodes
// against a session's single relational store.
package got

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/antigravity-dev/deepresearch-mcp/internal/store"
)

// Engine applies Graph-of-Thoughts operations against the shared store.
type Engine struct {
	store *store.Store
}

// New constructs an Engine backed by s.
func New(s *store.Store) *Engine {
	return &Engine{store: s}
}

// Generate creates k new paths. When the session's frontier is empty (the
// bootstrap case) the first created path is node_type=root — the only way a
// root is ever created — and any remaining paths are parentless generated
// siblings at depth 0. Otherwise every new path is node_type=generated,
// parented round-robin across the current frontier. Records one Generate
// operation.
func (e *Engine) Generate(sessionID, query string, k int, strategy string) ([]store.Path, error) {
	if k <= 0 {
		return nil, fmt.Errorf("got: generate: k must be positive")
	}

	frontier, err := e.store.ListFrontier(sessionID)
	if err != nil {
		return nil, fmt.Errorf("got: generate: list frontier: %w", err)
	}
	hasRoot, err := e.store.HasRoot(sessionID)
	if err != nil {
		return nil, fmt.Errorf("got: generate: has root: %w", err)
	}

	created := make([]store.Path, 0, k)
	var inputIDs []string
	for i := 0; i < k; i++ {
		p := store.Path{
			PathID:           uuid.New().String(),
			SessionID:        sessionID,
			NodeType:         "generated",
			Status:           "pending",
			QualityScore:     0,
			CompressionRatio: 1.0,
		}

		switch {
		case len(frontier) == 0 && !hasRoot && i == 0:
			p.NodeType = "root"
			p.Depth = 0
		case len(frontier) == 0:
			p.Depth = 0
		default:
			parent := frontier[i%len(frontier)]
			p.ParentID.String = parent.PathID
			p.ParentID.Valid = true
			p.Depth = parent.Depth + 1
			inputIDs = append(inputIDs, parent.PathID)
		}

		if err := e.store.InsertPath(p); err != nil {
			return nil, fmt.Errorf("got: generate: insert path: %w", err)
		}
		created = append(created, p)
	}

	outputIDs := make([]string, len(created))
	for i, p := range created {
		outputIDs[i] = p.PathID
	}
	op := store.Operation{
		OperationID:   uuid.New().String(),
		SessionID:     sessionID,
		OperationType: "Generate",
		InputNodes:    inputIDs,
		OutputNodes:   outputIDs,
		Parameters:    map[string]any{"query": query, "k": k, "strategy": strategy},
	}
	if err := e.store.InsertOperation(op); err != nil {
		return nil, fmt.Errorf("got: generate: record operation: %w", err)
	}
	return created, nil
}

// Refine clones target into a new refined node one depth below it. The
// target itself is left untouched: aggressive pruning of the parent once a
// refinement outscores it is a caller policy, not something this engine
// performs automatically.
func (e *Engine) Refine(pathID, query string) (*store.Path, error) {
	target, err := e.store.GetPath(pathID)
	if err != nil {
		return nil, fmt.Errorf("got: refine: %w", err)
	}

	refined := store.Path{
		PathID:           uuid.New().String(),
		SessionID:        target.SessionID,
		NodeType:         "refined",
		Status:           "pending",
		Depth:            target.Depth + 1,
		CompressionRatio: 1.0,
	}
	refined.ParentID.String = target.PathID
	refined.ParentID.Valid = true

	if err := e.store.InsertPath(refined); err != nil {
		return nil, fmt.Errorf("got: refine: insert path: %w", err)
	}

	op := store.Operation{
		OperationID:   uuid.New().String(),
		SessionID:     target.SessionID,
		OperationType: "Refine",
		InputNodes:    []string{target.PathID},
		OutputNodes:   []string{refined.PathID},
		Parameters:    map[string]any{"query": query},
	}
	if err := e.store.InsertOperation(op); err != nil {
		return nil, fmt.Errorf("got: refine: record operation: %w", err)
	}
	return &refined, nil
}

// ScoreAndPrune scans completed-but-unscored paths, assigns each a rubric
// score, marks below-threshold paths pruned, then prunes all but the
// keep_top_n highest scorers among the survivors (ties broken in favor of
// the older created_at). Deterministic for identical input.
func (e *Engine) ScoreAndPrune(sessionID string, threshold float64, keepTopN int) (scored []store.Path, pruned []store.Path, err error) {
	candidates, err := e.store.ListPathsByStatus(sessionID, "completed")
	if err != nil {
		return nil, nil, fmt.Errorf("got: score and prune: list completed: %w", err)
	}

	var scoreInputs []string
	type scoredPath struct {
		path  store.Path
		score float64
	}
	var freshlyScored []scoredPath
	for _, p := range candidates {
		if p.QualityScore != 0 {
			continue
		}
		score, err := e.scorePath(p)
		if err != nil {
			return nil, nil, fmt.Errorf("got: score and prune: score %s: %w", p.PathID, err)
		}
		if err := e.store.SetPathScore(p.PathID, score); err != nil {
			return nil, nil, fmt.Errorf("got: score and prune: set score: %w", err)
		}
		p.QualityScore = score
		freshlyScored = append(freshlyScored, scoredPath{path: p, score: score})
		scoreInputs = append(scoreInputs, p.PathID)
	}

	op := store.Operation{
		OperationID:   uuid.New().String(),
		SessionID:     sessionID,
		OperationType: "Score",
		InputNodes:    scoreInputs,
		OutputNodes:   scoreInputs,
		Parameters:    map[string]any{"threshold": threshold, "keep_top_n": keepTopN},
	}
	if err := e.store.InsertOperation(op); err != nil {
		return nil, nil, fmt.Errorf("got: score and prune: record score op: %w", err)
	}

	var survivors []scoredPath
	var prunedPaths []store.Path
	for _, sp := range freshlyScored {
		if sp.score < threshold {
			if err := e.store.UpdatePathStatus(sp.path.PathID, "pruned"); err != nil {
				return nil, nil, fmt.Errorf("got: score and prune: prune below threshold: %w", err)
			}
			prunedPaths = append(prunedPaths, sp.path)
			continue
		}
		survivors = append(survivors, sp)
	}

	sort.SliceStable(survivors, func(i, j int) bool {
		if survivors[i].score != survivors[j].score {
			return survivors[i].score > survivors[j].score
		}
		return survivors[i].path.CreatedAt < survivors[j].path.CreatedAt
	})

	for i, sp := range survivors {
		if i < keepTopN {
			scored = append(scored, sp.path)
			continue
		}
		if err := e.store.UpdatePathStatus(sp.path.PathID, "pruned"); err != nil {
			return nil, nil, fmt.Errorf("got: score and prune: prune excess survivor: %w", err)
		}
		prunedPaths = append(prunedPaths, sp.path)
	}

	var allPrunedIDs []string
	for _, p := range prunedPaths {
		allPrunedIDs = append(allPrunedIDs, p.PathID)
	}
	pruneOp := store.Operation{
		OperationID:   uuid.New().String(),
		SessionID:     sessionID,
		OperationType: "Prune",
		InputNodes:    scoreInputs,
		OutputNodes:   allPrunedIDs,
		Parameters:    map[string]any{"threshold": threshold, "keep_top_n": keepTopN},
	}
	if err := e.store.InsertOperation(pruneOp); err != nil {
		return nil, nil, fmt.Errorf("got: score and prune: record prune op: %w", err)
	}

	return scored, prunedPaths, nil
}

// Aggregate merges path_ids into one new node. Under "synthesis" the
// contents are concatenated; under "voting"/"consensus" a textual
// set-union is performed instead — semantic resolution of conflicting
// content is left to the coordinator. Every input path is marked aggregated
// and the session's is_aggregated flag is set.
func (e *Engine) Aggregate(sessionID string, pathIDs []string, strategy string) (*store.Path, error) {
	if len(pathIDs) == 0 {
		return nil, fmt.Errorf("got: aggregate: path_ids must be non-empty")
	}

	var inputs []store.Path
	maxDepth := 0
	for _, id := range pathIDs {
		p, err := e.store.GetPath(id)
		if err != nil {
			return nil, fmt.Errorf("got: aggregate: %w", err)
		}
		inputs = append(inputs, *p)
		if p.Depth > maxDepth {
			maxDepth = p.Depth
		}
	}

	content := mergeContent(inputs, strategy)

	aggregated := store.Path{
		PathID:           uuid.New().String(),
		SessionID:        sessionID,
		NodeType:         "aggregated",
		Status:           "completed",
		Depth:            maxDepth + 1,
		Content:          content,
		CompressionRatio: 1.0,
	}
	aggregated.ParentID.String = pathIDs[0]
	aggregated.ParentID.Valid = true

	if err := e.store.InsertPath(aggregated); err != nil {
		return nil, fmt.Errorf("got: aggregate: insert path: %w", err)
	}

	for _, id := range pathIDs {
		if err := e.store.UpdatePathStatus(id, "aggregated"); err != nil {
			return nil, fmt.Errorf("got: aggregate: mark parent aggregated: %w", err)
		}
	}
	if err := e.store.SetAggregated(sessionID, true); err != nil {
		return nil, fmt.Errorf("got: aggregate: set session aggregated: %w", err)
	}

	op := store.Operation{
		OperationID:   uuid.New().String(),
		SessionID:     sessionID,
		OperationType: "Aggregate",
		InputNodes:    pathIDs,
		OutputNodes:   []string{aggregated.PathID},
		Parameters:    map[string]any{"strategy": strategy},
	}
	if err := e.store.InsertOperation(op); err != nil {
		return nil, fmt.Errorf("got: aggregate: record operation: %w", err)
	}
	return &aggregated, nil
}

func mergeContent(paths []store.Path, strategy string) string {
	switch strategy {
	case "voting", "consensus":
		seen := make(map[string]bool)
		var union string
		for _, p := range paths {
			if seen[p.Content] {
				continue
			}
			seen[p.Content] = true
			if union != "" {
				union += "\n---\n"
			}
			union += p.Content
		}
		return union
	default: // synthesis
		var out string
		for i, p := range paths {
			if i > 0 {
				out += "\n\n"
			}
			out += p.Content
		}
		return out
	}
}
