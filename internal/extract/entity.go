package extract

import (
	"regexp"
	"strings"
)

var entityPatterns = map[string]*regexp.Regexp{
	"company":    regexp.MustCompile(`\b([A-Z][\w&]*(?:\s+[A-Z][\w&]*)*\s+(?:Inc|Corp|Corporation|LLC|Ltd|Co)\b\.?)`),
	"person":     regexp.MustCompile(`\b([A-Z][a-z]+\s+[A-Z][a-z]+)\b`),
	"technology": regexp.MustCompile(`\b([A-Z][a-z]+[A-Z][\w]*|[A-Z]{2,}|\w+(?:\.js|\.ts)|[A-Z]\+\+|[A-Z]#)\b`),
}

var relationshipPatterns = map[string]*regexp.Regexp{
	"invests in":   regexp.MustCompile(`(?i)\b([A-Z][\w\s]{1,40}?)\s+invests?\s+in\s+([A-Z][\w\s]{1,40})`),
	"competes with": regexp.MustCompile(`(?i)\b([A-Z][\w\s]{1,40}?)\s+competes?\s+with\s+([A-Z][\w\s]{1,40})`),
	"acquires":     regexp.MustCompile(`(?i)\b([A-Z][\w\s]{1,40}?)\s+acquires?\s+([A-Z][\w\s]{1,40})`),
}

// Entity is a deduplicated named entity found in text.
type Entity struct {
	Name string
	Type string
}

// Relationship is a directed edge between two entities found in text.
type Relationship struct {
	Source     string
	Target     string
	Verb       string
	Confidence float64
	Evidence   string
}

// ExtractEntities runs the open-vocabulary regex families for the
// requested entity types (company/person/technology; empty means all
// three) and deduplicates results by (name, type).
func ExtractEntities(text string, entityTypes []string) []Entity {
	wanted := entityTypeSet(entityTypes)
	seen := make(map[string]bool)
	var entities []Entity

	for typ, pattern := range entityPatterns {
		if !wanted[typ] {
			continue
		}
		for _, m := range pattern.FindAllStringSubmatch(text, -1) {
			name := strings.TrimSpace(m[1])
			if name == "" {
				continue
			}
			key := name + "|" + typ
			if seen[key] {
				continue
			}
			seen[key] = true
			entities = append(entities, Entity{Name: name, Type: typ})
		}
	}
	return entities
}

func entityTypeSet(types []string) map[string]bool {
	if len(types) == 0 {
		return map[string]bool{"company": true, "person": true, "technology": true}
	}
	set := make(map[string]bool, len(types))
	for _, t := range types {
		set[t] = true
	}
	return set
}

// ExtractRelationships finds ordered entity pairs joined by one of the
// three recognized verbs, emitting a directed edge with a fixed 0.7
// confidence and the full match as evidence.
func ExtractRelationships(text string) []Relationship {
	var rels []Relationship
	for verb, pattern := range relationshipPatterns {
		for _, m := range pattern.FindAllStringSubmatch(text, -1) {
			if len(m) != 3 {
				continue
			}
			rels = append(rels, Relationship{
				Source: strings.TrimSpace(m[1]), Target: strings.TrimSpace(m[2]),
				Verb: verb, Confidence: 0.7, Evidence: m[0],
			})
		}
	}
	return rels
}

// ExtractionQuality computes the combined [0,10] quality score for an
// "all" mode extraction: a fact-count baseline plus source-coverage and
// high-confidence bonuses.
func ExtractionQuality(facts []Fact) float64 {
	n := len(facts)
	if n == 0 {
		return 0
	}

	baseline := float64(n) * 0.5
	if baseline > 5 {
		baseline = 5
	}

	withSource := 0
	highConfidence := 0
	for _, f := range facts {
		if f.SourceURL != "" {
			withSource++
		}
		if f.Confidence == "Medium" || f.Confidence == "High" {
			highConfidence++
		}
	}

	sourceBonus := (float64(withSource) / float64(n)) * 3
	confidenceBonus := (float64(highConfidence) / float64(n)) * 2
	return baseline + sourceBonus + confidenceBonus
}
