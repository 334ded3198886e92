// Package extract implements the deterministic textual operators — fact,
// entity, and relationship extraction, citation/source validation, and
// fact-conflict detection — invoked directly by the coordinator or by the
// auto-process pipeline.
package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/antigravity-dev/deepresearch-mcp/internal/apperr"
)

var (
	percentFactPattern = regexp.MustCompile(`(?i)([A-Za-z][\w\s]{2,60}?)\s+(?:is|was|has|reached|grew to)\s+([\d.,]+)\s*(%|percent|billion|million|thousand)?`)
	currencyFactPattern = regexp.MustCompile(`(?i)([A-Za-z][\w\s]{2,60}?)\s+(?:is|was|valued at|worth)\s+\$([\d.,]+)\s*(B|M|billion|million)?`)
)

// Fact is one extracted numeric or currency claim.
type Fact struct {
	Subject       string
	ValueType     string // "number" or "currency"
	ValueNumeric  float64
	Confidence    string // "Medium" for every pattern-matched fact
	SourceURL     string
	Evidence      string
}

// ExtractFacts scans text line-wise for the two phrase patterns and returns
// one Fact per match. Empty text is a validation failure (E101).
func ExtractFacts(text, sourceURL string) ([]Fact, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperr.Validation(apperr.CodeValidationGeneric, "extract: text must not be empty")
	}

	var facts []Fact
	for _, line := range strings.Split(text, "\n") {
		facts = append(facts, factsFromLine(line, sourceURL)...)
	}
	return facts, nil
}

func factsFromLine(line, sourceURL string) []Fact {
	var facts []Fact

	if m := percentFactPattern.FindStringSubmatch(line); len(m) == 4 {
		if v, ok := parseNumeric(m[2], m[3]); ok {
			facts = append(facts, Fact{
				Subject: strings.TrimSpace(m[1]), ValueType: "number",
				ValueNumeric: v, Confidence: "Medium", SourceURL: sourceURL, Evidence: m[0],
			})
		}
	}
	if m := currencyFactPattern.FindStringSubmatch(line); len(m) == 4 {
		if v, ok := parseNumeric(m[2], m[3]); ok {
			facts = append(facts, Fact{
				Subject: strings.TrimSpace(m[1]), ValueType: "currency",
				ValueNumeric: v, Confidence: "Medium", SourceURL: sourceURL, Evidence: m[0],
			})
		}
	}
	return facts
}

// parseNumeric normalizes a matched number string plus an optional unit
// suffix into a float64: billion/B ⇒ ×10⁹, million/M ⇒ ×10⁶, thousand ⇒
// ×10³, percent/% is retained as a fraction of 100. Sign and rounding of
// the original digits are preserved.
func parseNumeric(raw, unit string) (float64, bool) {
	cleaned := strings.ReplaceAll(raw, ",", "")
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}

	switch strings.ToLower(unit) {
	case "billion", "b":
		v *= 1e9
	case "million", "m":
		v *= 1e6
	case "thousand":
		v *= 1e3
	case "%", "percent":
		v /= 100
	}
	return v, true
}
