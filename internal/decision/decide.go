// Package decision implements the pure, deterministic decide() function
// (C4): a read-only projection of graph state in, the next coordinator
// action out. It touches no storage and performs no I/O.
package decision

// PathView is the read-only slice of a Path the decision function needs.
type PathView struct {
	PathID       string
	Status       string
	QualityScore float64
}

// GraphState is the read-only projection decide() evaluates.
type GraphState struct {
	Paths               []PathView
	IterationCount      int
	Confidence          float64
	IsAggregated        bool
	BudgetExhausted     bool
	MaxIterations       int
	ConfidenceThreshold float64
	CurrentFindings     string
}

// Action enumerates the only verbs the server ever emits.
const (
	ActionGenerate   = "generate"
	ActionExecute    = "execute"
	ActionWait       = "wait"
	ActionScore      = "score"
	ActionAggregate  = "aggregate"
	ActionSynthesize = "synthesize"
)

// NextAction is the server's instruction to the coordinator.
type NextAction struct {
	Action    string   `json:"action"`
	Reasoning string   `json:"reasoning"`
	K         int      `json:"k,omitempty"`
	Strategy  string   `json:"strategy,omitempty"`
	PathIDs   []string `json:"path_ids,omitempty"`
	Threshold float64  `json:"threshold,omitempty"`
	KeepTopN  int      `json:"keep_top_n,omitempty"`
	Context   string   `json:"context,omitempty"`
	Reason    string   `json:"reason,omitempty"`
}

// Decide evaluates the eight priority-ordered rules against state and
// returns the first that matches. It is pure: identical input always
// produces byte-identical output.
func Decide(state GraphState) NextAction {
	if action, ok := decideTerminate(state); ok {
		return action
	}
	if len(state.Paths) == 0 {
		return NextAction{
			Action:    ActionGenerate,
			K:         3,
			Strategy:  "diverse",
			Reasoning: "No paths exist yet; bootstrapping initial exploration.",
		}
	}
	if ids := pathIDsByStatus(state.Paths, "running"); len(ids) > 0 {
		return NextAction{
			Action:    ActionWait,
			PathIDs:   ids,
			Reasoning: "Paths are currently running; waiting for the executor to deliver results.",
		}
	}
	if ids := pathIDsByStatus(state.Paths, "pending"); len(ids) > 0 {
		return NextAction{
			Action:    ActionExecute,
			PathIDs:   ids,
			Reasoning: "Pending paths are ready to execute.",
		}
	}
	if hasUnscoredCompleted(state.Paths) {
		return NextAction{
			Action:    ActionScore,
			Threshold: 6.0,
			KeepTopN:  2,
			Reasoning: "Completed paths await scoring before the graph can narrow.",
		}
	}
	if countAtLeast(state.Paths, 7.0) > 1 && !state.IsAggregated {
		return NextAction{
			Action:    ActionAggregate,
			PathIDs:   pathIDsAtLeast(state.Paths, 7.0),
			Strategy:  "synthesis",
			Reasoning: "Multiple high-quality paths are ready to be synthesized.",
		}
	}
	if state.Confidence < state.ConfidenceThreshold {
		return NextAction{
			Action:    ActionGenerate,
			K:         2,
			Strategy:  "focused",
			Context:   state.CurrentFindings,
			Reasoning: "Confidence has not yet reached the threshold; continuing exploration.",
		}
	}
	return NextAction{
		Action:    ActionSynthesize,
		Reasoning: "No other rule matched; falling back to synthesis.",
	}
}

func decideTerminate(state GraphState) (NextAction, bool) {
	switch {
	case state.Confidence >= state.ConfidenceThreshold:
		return NextAction{Action: ActionSynthesize, Reason: "confidence_threshold_reached",
			Reasoning: "Confidence reached the configured threshold."}, true
	case state.IterationCount >= state.MaxIterations:
		return NextAction{Action: ActionSynthesize, Reason: "max_iterations_reached",
			Reasoning: "Maximum iteration count reached."}, true
	case state.BudgetExhausted:
		return NextAction{Action: ActionSynthesize, Reason: "budget_exhausted",
			Reasoning: "The configured budget has been exhausted."}, true
	}
	return NextAction{}, false
}

func pathIDsByStatus(paths []PathView, status string) []string {
	var ids []string
	for _, p := range paths {
		if p.Status == status {
			ids = append(ids, p.PathID)
		}
	}
	return ids
}

func hasUnscoredCompleted(paths []PathView) bool {
	for _, p := range paths {
		if p.Status == "completed" && p.QualityScore == 0 {
			return true
		}
	}
	return false
}

func countAtLeast(paths []PathView, threshold float64) int {
	n := 0
	for _, p := range paths {
		if p.QualityScore >= threshold {
			n++
		}
	}
	return n
}

func pathIDsAtLeast(paths []PathView, threshold float64) []string {
	var ids []string
	for _, p := range paths {
		if p.QualityScore >= threshold {
			ids = append(ids, p.PathID)
		}
	}
	return ids
}
