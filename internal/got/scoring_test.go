package got

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/antigravity-dev/deepresearch-mcp/internal/store"
)

func TestScoreCitationQualityThresholds(t *testing.T) {
	require.Equal(t, 0.0, scoreCitationQuality(nil))
	require.Equal(t, 0.5, scoreCitationQuality(make([]store.Citation, 2)))
	require.Equal(t, 1.0, scoreCitationQuality(make([]store.Citation, 4)))

	complete := store.Citation{
		Author:          sql.NullString{String: "A", Valid: true},
		Title:           sql.NullString{String: "T", Valid: true},
		URL:             sql.NullString{String: "http://x", Valid: true},
		PublicationDate: sql.NullString{String: "2026", Valid: true},
	}
	five := []store.Citation{complete, complete, complete, complete, complete}
	require.Equal(t, 3.0, scoreCitationQuality(five))

	incomplete := store.Citation{}
	mixed := []store.Citation{complete, complete, complete, complete, incomplete}
	require.Equal(t, 2.5, scoreCitationQuality(mixed))
}

func TestScoreCompletenessCapsAtThree(t *testing.T) {
	content := "Introduction. " + repeatWords("word", 600) + " For example, consider this case. The implications are broad."
	require.Equal(t, 3.0, scoreCompleteness(content))
}

func TestScoreCompletenessPartialSignals(t *testing.T) {
	require.Equal(t, 0.0, scoreCompleteness("just some text"))
	require.Equal(t, 0.7, scoreCompleteness("Introduction to the topic."))
}

func TestScoreAccuracyBySeverity(t *testing.T) {
	require.Equal(t, 2.0, scoreAccuracy(nil))
	require.Equal(t, 0.0, scoreAccuracy([]store.FactConflict{{Severity: "critical"}}))
	require.Equal(t, 1.0, scoreAccuracy([]store.FactConflict{{Severity: "moderate"}}))
	require.Equal(t, 0.5, scoreAccuracy([]store.FactConflict{{Severity: "moderate"}, {Severity: "moderate"}, {Severity: "moderate"}}))
	require.Equal(t, 1.5, scoreAccuracy([]store.FactConflict{{Severity: "minor"}}))
}

func TestScoreSourceQualityAverage(t *testing.T) {
	citations := []store.Citation{{QualityRating: "A"}, {QualityRating: "E"}}
	require.Equal(t, 1.0, scoreSourceQuality(citations))
}

func TestScoreSourceQualityEmpty(t *testing.T) {
	require.Equal(t, 0.0, scoreSourceQuality(nil))
}
