package got

import (
	"math"
	"regexp"
	"strings"

	"github.com/antigravity-dev/deepresearch-mcp/internal/store"
)

var (
	introductionPattern  = regexp.MustCompile(`(?i)\b(introduction|overview|background)\b`)
	examplePattern       = regexp.MustCompile(`(?i)\b(for example|for instance|e\.g\.|such as)\b`)
	implicationsPattern  = regexp.MustCompile(`(?i)\b(implications?|impact|consequences?)\b`)
	sourceRatingToPoints = map[string]float64{"A": 2, "B": 1.5, "C": 1, "D": 0.5, "E": 0}
)

// scorePath computes the 0-10 quality score from the four rubric
// dimensions, rounded to one decimal place.
func (e *Engine) scorePath(p store.Path) (float64, error) {
	citations, err := e.store.ListCitations(p.SessionID)
	if err != nil {
		return 0, err
	}
	conflicts, err := e.store.ListFactConflicts(p.SessionID)
	if err != nil {
		return 0, err
	}

	total := scoreCitationQuality(citations) +
		scoreCompleteness(p.Content) +
		scoreAccuracy(conflicts) +
		scoreSourceQuality(citations)

	return math.Round(total*10) / 10, nil
}

// scoreCitationQuality scores 0-3 based on the volume and completeness of
// citations. Completeness requires author, date, title, and url present.
func scoreCitationQuality(citations []store.Citation) float64 {
	n := len(citations)
	if n == 0 {
		return 0
	}
	if n < 3 {
		return 0.5
	}
	if n < 5 {
		return 1.0
	}

	complete := 0
	for _, c := range citations {
		if c.Author.Valid && c.Author.String != "" &&
			c.PublicationDate.Valid && c.PublicationDate.String != "" &&
			c.Title.Valid && c.Title.String != "" &&
			c.URL.Valid && c.URL.String != "" {
			complete++
		}
	}
	ratio := float64(complete) / float64(n)

	switch {
	case ratio >= 0.9:
		return 3.0
	case ratio >= 0.7:
		return 2.5
	case ratio >= 0.5:
		return 2.0
	default:
		return 1.5
	}
}

// scoreCompleteness scores 0-3 based on structural signals in the content:
// an introduction, sufficient length, worked examples, and a discussion of
// implications/impact.
func scoreCompleteness(content string) float64 {
	var score float64
	if introductionPattern.MatchString(content) {
		score += 0.7
	}
	if wordCount(content) > 500 {
		score += 1.0
	}
	if examplePattern.MatchString(content) {
		score += 0.7
	}
	if implicationsPattern.MatchString(content) {
		score += 0.6
	}
	if score > 3 {
		score = 3
	}
	return score
}

// scoreAccuracy scores 0-2 based on the conflicts detected among a
// session's facts: no conflicts is perfect, any critical conflict zeroes
// the score, otherwise the score degrades with moderate-conflict count.
func scoreAccuracy(conflicts []store.FactConflict) float64 {
	if len(conflicts) == 0 {
		return 2
	}

	var critical, moderate int
	for _, c := range conflicts {
		switch c.Severity {
		case "critical":
			critical++
		case "moderate":
			moderate++
		}
	}
	if critical > 0 {
		return 0
	}
	if moderate > 2 {
		return 0.5
	}
	if moderate > 0 {
		return 1.0
	}
	return 1.5
}

// scoreSourceQuality scores 0-2 as the arithmetic mean of per-citation
// letter ratings mapped to points.
func scoreSourceQuality(citations []store.Citation) float64 {
	if len(citations) == 0 {
		return 0
	}
	var sum float64
	for _, c := range citations {
		points, ok := sourceRatingToPoints[strings.ToUpper(c.QualityRating)]
		if !ok {
			points = sourceRatingToPoints["C"]
		}
		sum += points
	}
	return sum / float64(len(citations))
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}
