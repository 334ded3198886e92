// Package pipeline implements auto_process_data (C7): directory-scoped
// batch ingest of markdown files through the extraction/validation
// operators, emitting side-effect markdown artifacts into an output
// directory.
package pipeline

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/antigravity-dev/deepresearch-mcp/internal/apperr"
	"github.com/antigravity-dev/deepresearch-mcp/internal/extract"
)

// Operation names accepted in the operations set.
const (
	OpFactExtraction     = "fact_extraction"
	OpEntityExtraction   = "entity_extraction"
	OpCitationValidation = "citation_validation"
	OpConflictDetection  = "conflict_detection"
)

// Options controls per-file failure handling; ContinueOnError defaults
// true (errors are recorded and processing continues).
type Options struct {
	ContinueOnError bool
}

// OperationResult is one requested operation's outcome across the sweep.
type OperationResult struct {
	Operation     string         `json:"operation"`
	FilesProcessed int           `json:"files_processed"`
	Stats         map[string]int `json:"stats"`
}

// Result is auto_process_data's return envelope.
type Result struct {
	Success  bool              `json:"success"`
	Message  string            `json:"message,omitempty"`
	Results  []OperationResult `json:"results,omitempty"`
	Summary  map[string]any    `json:"summary,omitempty"`
	Warnings []string          `json:"warnings,omitempty"`
}

// Run walks inputDir's *.md files in deterministic lexical order, runs
// the requested operators over each, accumulates facts/entities across
// files, and emits the corresponding artifacts into outputDir.
func Run(sessionID, inputDir, outputDir string, operations []string, opts Options, logger *slog.Logger) (*Result, error) {
	info, err := os.Stat(inputDir)
	if err != nil || !info.IsDir() {
		return nil, apperr.Validation(apperr.CodeInputDirMissing, fmt.Sprintf("pipeline: input_dir %q does not exist or is not a directory", inputDir))
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, apperr.Storage("pipeline: create output_dir", err)
	}

	files, err := markdownFiles(inputDir)
	if err != nil {
		return nil, apperr.Storage("pipeline: enumerate input_dir", err)
	}
	if len(files) == 0 {
		return &Result{Success: true, Message: "No files to process"}, nil
	}

	wanted := operationSet(operations)
	var allFacts []extract.Fact
	var allConflictFacts []extract.ConflictFact
	var allEntities []extract.Entity
	var warnings []string
	processed := map[string]int{}
	var opErrors []string

	for _, path := range files {
		text, err := os.ReadFile(path)
		if err != nil {
			opErrors = append(opErrors, fmt.Sprintf("%s: %v", path, err))
			if !opts.ContinueOnError {
				return nil, apperr.Processing(apperr.CodeProcessingGeneric, "pipeline: read file failed", err)
			}
			continue
		}

		if wanted[OpFactExtraction] {
			facts, err := extract.ExtractFacts(string(text), "")
			if err != nil {
				opErrors = append(opErrors, fmt.Sprintf("%s: %v", path, err))
				if !opts.ContinueOnError {
					return nil, err
				}
			} else {
				allFacts = append(allFacts, facts...)
				for _, f := range facts {
					allConflictFacts = append(allConflictFacts, extract.ConflictFact{
						Entity: f.Subject, Attribute: f.ValueType, ValueNumeric: f.ValueNumeric,
					})
				}
				processed[OpFactExtraction]++
			}
		}
		if wanted[OpEntityExtraction] {
			allEntities = append(allEntities, extract.ExtractEntities(string(text), nil)...)
			processed[OpEntityExtraction]++
		}
	}

	var results []OperationResult
	if wanted[OpFactExtraction] {
		results = append(results, OperationResult{Operation: OpFactExtraction, FilesProcessed: processed[OpFactExtraction], Stats: map[string]int{"facts": len(allFacts)}})
		if err := writeFactLedger(outputDir, len(files), allFacts); err != nil {
			return nil, apperr.Storage("pipeline: write fact_ledger.md", err)
		}
	}
	if wanted[OpEntityExtraction] {
		results = append(results, OperationResult{Operation: OpEntityExtraction, FilesProcessed: processed[OpEntityExtraction], Stats: map[string]int{"entities": len(allEntities)}})
		if err := writeEntityGraph(outputDir, len(files), allEntities); err != nil {
			return nil, apperr.Storage("pipeline: write entity_graph.md", err)
		}
	}
	if wanted[OpCitationValidation] {
		warnings = append(warnings, "citation_validation skipped: citation extraction from free text is not supported in the current build")
		if err := writeSkippedCitationReport(outputDir); err != nil {
			return nil, apperr.Storage("pipeline: write citation_validation.md", err)
		}
		results = append(results, OperationResult{Operation: OpCitationValidation, FilesProcessed: 0, Stats: map[string]int{"skipped": 1}})
	}
	if wanted[OpConflictDetection] {
		conflicts := extract.DetectConflicts(allConflictFacts, 0)
		results = append(results, OperationResult{Operation: OpConflictDetection, FilesProcessed: len(files), Stats: map[string]int{"conflicts": len(conflicts)}})
		if err := writeConflictReport(outputDir, conflicts); err != nil {
			return nil, apperr.Storage("pipeline: write conflict_report.md", err)
		}
	}

	if len(opErrors) > 0 && logger != nil {
		logger.Warn("pipeline: per-file errors recorded", "session_id", sessionID, "count", len(opErrors))
	}

	return &Result{
		Success: true,
		Results: results,
		Summary: map[string]any{
			"files_total": len(files),
			"facts_total": len(allFacts),
			"errors":      opErrors,
		},
		Warnings: warnings,
	}, nil
}

func markdownFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

func operationSet(operations []string) map[string]bool {
	if len(operations) == 0 {
		return map[string]bool{OpFactExtraction: true, OpEntityExtraction: true, OpCitationValidation: true, OpConflictDetection: true}
	}
	set := make(map[string]bool, len(operations))
	for _, op := range operations {
		set[op] = true
	}
	return set
}

func writeFactLedger(outputDir string, fileCount int, facts []extract.Fact) error {
	payload, err := json.MarshalIndent(facts, "", "  ")
	if err != nil {
		return err
	}
	content := fmt.Sprintf("# Fact Ledger\n\nFiles processed: %d\n\n```json\n%s\n```\n", fileCount, payload)
	return os.WriteFile(filepath.Join(outputDir, "fact_ledger.md"), []byte(content), 0o644)
}

func writeEntityGraph(outputDir string, fileCount int, entities []extract.Entity) error {
	payload, err := json.MarshalIndent(entities, "", "  ")
	if err != nil {
		return err
	}
	content := fmt.Sprintf("# Entity Graph\n\nFiles processed: %d\n\n```json\n%s\n```\n", fileCount, payload)
	return os.WriteFile(filepath.Join(outputDir, "entity_graph.md"), []byte(content), 0o644)
}

func writeSkippedCitationReport(outputDir string) error {
	content := "# Citation Validation\n\nSkipped: citation extraction from free text is not supported in the current build.\n"
	return os.WriteFile(filepath.Join(outputDir, "citation_validation.md"), []byte(content), 0o644)
}

func writeConflictReport(outputDir string, conflicts []extract.Conflict) error {
	payload, err := json.MarshalIndent(conflicts, "", "  ")
	if err != nil {
		return err
	}
	content := fmt.Sprintf("# Conflict Report\n\n```json\n%s\n```\n", payload)
	return os.WriteFile(filepath.Join(outputDir, "conflict_report.md"), []byte(content), 0o644)
}
