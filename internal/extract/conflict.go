package extract

import "math"

// ConflictFact is the minimal fact shape conflict_detect groups and
// compares; it deliberately omits fields (subject text, evidence) that
// don't participate in grouping or severity math.
type ConflictFact struct {
	Entity       string
	Attribute    string
	ValueNumeric float64
	Period       string // e.g. a year string, used for temporal comparison
}

// Conflict is one detected disagreement between two facts in the same
// (entity, attribute) group.
type Conflict struct {
	Entity    string
	Attribute string
	Severity  string // "critical", "moderate", "minor"
	Kind      string // "numerical" or "temporal"
	FactA     ConflictFact
	FactB     ConflictFact
	Delta     float64
}

const (
	defaultNumericalTolerance = 0.05
	defaultTemporalTolerance  = "same_year"
)

// DetectConflicts groups facts by (entity, attribute) and classifies
// every pair within a group of two or more. It is symmetric: swapping
// fact a and fact b within a pair yields the same severity and kind.
func DetectConflicts(facts []ConflictFact, numericalTolerance float64) []Conflict {
	if numericalTolerance <= 0 {
		numericalTolerance = defaultNumericalTolerance
	}

	groups := make(map[string][]ConflictFact)
	var order []string
	for _, f := range facts {
		key := f.Entity + "|" + f.Attribute
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], f)
	}

	var conflicts []Conflict
	for _, key := range order {
		group := groups[key]
		if len(group) < 2 {
			continue
		}
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				conflicts = append(conflicts, pairConflicts(group[i], group[j], numericalTolerance)...)
			}
		}
	}
	return conflicts
}

func pairConflicts(a, b ConflictFact, numericalTolerance float64) []Conflict {
	var conflicts []Conflict

	if c, ok := numericalConflict(a, b, numericalTolerance); ok {
		conflicts = append(conflicts, c)
	}
	if c, ok := temporalConflict(a, b); ok {
		conflicts = append(conflicts, c)
	}
	return conflicts
}

func numericalConflict(a, b ConflictFact, tolerance float64) (Conflict, bool) {
	denom := math.Max(math.Abs(a.ValueNumeric), math.Abs(b.ValueNumeric))
	if denom == 0 {
		return Conflict{}, false
	}
	delta := math.Abs(a.ValueNumeric - b.ValueNumeric)
	ratio := delta / denom

	var severity string
	switch {
	case ratio > 0.20:
		severity = "critical"
	case ratio > tolerance:
		severity = "moderate"
	default:
		severity = "minor"
	}

	return Conflict{
		Entity: a.Entity, Attribute: a.Attribute, Severity: severity, Kind: "numerical",
		FactA: a, FactB: b, Delta: delta,
	}, true
}

func temporalConflict(a, b ConflictFact) (Conflict, bool) {
	if a.Period == "" || b.Period == "" || a.Period == b.Period {
		return Conflict{}, false
	}
	return Conflict{
		Entity: a.Entity, Attribute: a.Attribute, Severity: "moderate", Kind: "temporal",
		FactA: a, FactB: b,
	}, true
}
