package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/franz/fuga/internal/evaluate"
	"github.com/franz/fuga/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// setupTestData stores two lines of one score, one of another, their
// alignments and a finished run
func setupTestData(t *testing.T, db *store.Store) []*store.MelodicLine {
	t.Helper()
	lines := []*store.MelodicLine{
		{ID: "bach_fugue_bwv846_1_0_0", ScoreID: "bach_fugue_bwv846", LineNumber: 1, MusicalForm: "fugue", DictionaryVersion: "v1"},
		{ID: "bach_fugue_bwv846_2_0_0", ScoreID: "bach_fugue_bwv846", LineNumber: 2, MusicalForm: "fugue", DictionaryVersion: "v1"},
		{ID: "mozart_sonata_k545_1_0_0", ScoreID: "mozart_sonata_k545", LineNumber: 1, MusicalForm: "sonata", DictionaryVersion: "v1"},
	}
	if err := db.InsertMelodicLineBatch(lines); err != nil {
		t.Fatalf("Failed to insert lines: %v", err)
	}

	if err := db.StartRun(&store.AlignmentRun{ID: "run-1", Engine: "inprocess", Workers: 2, BatchSize: 100, TotalPairs: 3}); err != nil {
		t.Fatalf("Failed to start run: %v", err)
	}
	batch := []store.Alignment{
		{LineID1: lines[0].ID, LineID2: lines[1].ID, ChromaticRate: 2, DiatonicRate: 1, RhythmicRate: 0, RunID: "run-1"},
		{LineID1: lines[0].ID, LineID2: lines[2].ID, ChromaticRate: 30, DiatonicRate: 12, RhythmicRate: 4, RunID: "run-1"},
		{LineID1: lines[1].ID, LineID2: lines[2].ID, ChromaticRate: -1, DiatonicRate: 13, RhythmicRate: 2, RunID: "run-1"},
	}
	if err := db.InsertAlignmentBatch(batch); err != nil {
		t.Fatalf("Failed to insert alignments: %v", err)
	}
	if err := db.FinishRun("run-1", store.RunCompleted, 3, 1, nil); err != nil {
		t.Fatalf("Failed to finish run: %v", err)
	}
	return lines
}

func evaluateAttempts(t *testing.T, db *store.Store, lines []*store.MelodicLine) *evaluate.Report {
	t.Helper()
	e, err := evaluate.New(lines, db, evaluate.DefaultThreshold)
	if err != nil {
		t.Fatalf("Failed to create evaluator: %v", err)
	}
	attempts := []*store.SearchAttempt{
		{
			Algorithm:    "blast",
			SearchType:   "chromatic",
			Instrument:   "violin",
			TargetLineID: "bach_fugue_bwv846_1_0_0",
			Sequence:     "2;-1;3;0;1",
			Timing:       store.Timing{FeatureClockMs: 12, AlignmentClockMs: 40},
			Results: []store.SearchResult{
				{LineID: "bach_fugue_bwv846_2_0_0", Rank: 1},
			},
		},
		{
			Algorithm:    "blast",
			SearchType:   "chromatic",
			Instrument:   "flute",
			TargetLineID: "mozart_sonata_k545_1_0_0",
			Sequence:     "1;1;1",
			Timing:       store.Timing{FeatureClockMs: 8, AlignmentClockMs: 20},
			Results: []store.SearchResult{
				{LineID: "bach_fugue_bwv846_1_0_0", Rank: 1},
				{LineID: "bach_fugue_bwv846_2_0_0", Rank: 2},
			},
		},
	}
	report, err := e.Evaluate(attempts)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	return report
}

func TestGenerateSummaryReport(t *testing.T) {
	db := openTestStore(t)
	lines := setupTestData(t, db)
	eval := evaluateAttempts(t, db, lines)

	report, err := GenerateSummaryReport(db, eval, "test-events.jsonl")
	if err != nil {
		t.Fatalf("GenerateSummaryReport failed: %v", err)
	}

	if report.Lines != 3 {
		t.Errorf("Expected 3 lines, got %d", report.Lines)
	}
	if report.Scores != 2 {
		t.Errorf("Expected 2 scores, got %d", report.Scores)
	}
	if report.Alignments != 3 {
		t.Errorf("Expected 3 alignments, got %d", report.Alignments)
	}
	if report.FailedAlignments != 1 {
		t.Errorf("Expected 1 failed alignment, got %d", report.FailedAlignments)
	}
	if report.LatestRun == nil || report.LatestRun.ID != "run-1" {
		t.Fatalf("Expected latest run run-1, got %+v", report.LatestRun)
	}
	if report.LatestRun.Status != store.RunCompleted {
		t.Errorf("Expected completed run, got %s", report.LatestRun.Status)
	}
	if len(report.DictionaryVersions) != 1 || report.DictionaryVersions[0] != "v1" {
		t.Errorf("Expected dictionary versions [v1], got %v", report.DictionaryVersions)
	}
	if report.EventLogPath != "test-events.jsonl" {
		t.Errorf("Expected event log path 'test-events.jsonl', got '%s'", report.EventLogPath)
	}
	if report.GeneratedAt.IsZero() {
		t.Error("Expected GeneratedAt to be set")
	}
}

func TestWriteMarkdownReport(t *testing.T) {
	db := openTestStore(t)
	lines := setupTestData(t, db)
	eval := evaluateAttempts(t, db, lines)

	report, err := GenerateSummaryReport(db, eval, "")
	if err != nil {
		t.Fatalf("GenerateSummaryReport failed: %v", err)
	}
	report.DatabasePath = "/data/fuga.db"

	outputPath := filepath.Join(t.TempDir(), "reports", "evaluation.md")
	if err := WriteMarkdownReport(report, outputPath); err != nil {
		t.Fatalf("WriteMarkdownReport failed: %v", err)
	}

	content, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("Failed to read report: %v", err)
	}
	contentStr := string(content)

	expectedSections := []string{
		"# Fuga - Retrieval Report",
		"## 📊 Corpus",
		"## 🔗 Alignment",
		"## 🎯 Retrieval Evaluation",
		"### Overall",
		"### By Instrument",
		"### By Musical Form",
		"### By Query Length",
		"### By Score",
		"#### Mean Resource Usage (ms)",
	}
	for _, section := range expectedSections {
		if !strings.Contains(contentStr, section) {
			t.Errorf("Report missing section: %s", section)
		}
	}

	// The violin query hits at rank 1, the flute query misses
	expectedContent := []string{
		"| Hit@1 | Hit@3 | Hit@5 | MRR |",
		"| blast | chromatic | 2 | 50.0% | 50.0% | 50.0% | 0.500 |",
		"| blast | chromatic | violin | 1 | 100.0% | 100.0% | 100.0% | 1.000 |",
		"| blast | chromatic | flute | 1 | 0.0% | 0.0% | 0.0% | 0.000 |",
		"| blast | chromatic | <10 | 2 |",
		"| blast | chromatic | 0.0 | 0.0 | 10.0 | 0.0 | 0.0 | 30.0 |",
		"`run-1` (completed)",
		"/data/fuga.db",
	}
	for _, want := range expectedContent {
		if !strings.Contains(contentStr, want) {
			t.Errorf("Report missing content: %s", want)
		}
	}
}

func TestWriteJSONReport(t *testing.T) {
	db := openTestStore(t)
	lines := setupTestData(t, db)
	eval := evaluateAttempts(t, db, lines)

	report, err := GenerateSummaryReport(db, eval, "")
	if err != nil {
		t.Fatalf("GenerateSummaryReport failed: %v", err)
	}

	outputPath := filepath.Join(t.TempDir(), "reports", "evaluation.json")
	if err := WriteJSONReport(report, outputPath); err != nil {
		t.Fatalf("WriteJSONReport failed: %v", err)
	}

	data, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("Failed to read report: %v", err)
	}
	var decoded SummaryReport
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Report is not valid JSON: %v", err)
	}
	if decoded.Evaluation == nil {
		t.Fatal("Expected evaluation in JSON report")
	}
	if len(decoded.Evaluation.Groups) != len(eval.Groups) {
		t.Errorf("Expected %d groups, got %d", len(eval.Groups), len(decoded.Evaluation.Groups))
	}
	overall := decoded.Evaluation.ByGrouping(evaluate.Overall)
	if len(overall) != 1 || overall[0].HitRate[1] != 0.5 {
		t.Errorf("Expected overall Hit@1 of 0.5, got %+v", overall)
	}
	if overall[0].Timing == nil {
		t.Error("Expected timing averages in the overall group")
	}
}

func TestTruncatePath(t *testing.T) {
	testCases := []struct {
		name   string
		path   string
		maxLen int
	}{
		{
			name:   "Short path - no truncation",
			path:   "/corpus/bach.json",
			maxLen: 50,
		},
		{
			name:   "Long path - truncate middle",
			path:   "/very/long/path/to/some/corpus/collection/composer/form/line.json",
			maxLen: 30,
		},
		{
			name:   "Exactly at limit",
			path:   "/corpus/a.json",
			maxLen: 14,
		},
		{
			name:   "Very long path",
			path:   "/extremely/long/path/that/needs/significant/truncation/to/fit/within/limits/line.json",
			maxLen: 40,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := truncatePath(tc.path, tc.maxLen)

			if len(result) > tc.maxLen {
				t.Errorf("Result length %d exceeds maxLen %d", len(result), tc.maxLen)
			}
			if len(tc.path) > tc.maxLen && !strings.Contains(result, "...") {
				t.Error("Expected truncated path to contain '...'")
			}
			if len(tc.path) <= tc.maxLen && result != tc.path {
				t.Errorf("Short path should not be truncated: expected '%s', got '%s'", tc.path, result)
			}
		})
	}
}

func TestMarkdownReportStructure(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "summary.md")

	report := &SummaryReport{
		GeneratedAt: time.Now(),
		Lines:       10,
		Scores:      2,
		Evaluation:  &evaluate.Report{Threshold: evaluate.DefaultThreshold},
	}
	if err := WriteMarkdownReport(report, outputPath); err != nil {
		t.Fatalf("WriteMarkdownReport failed: %v", err)
	}

	content, _ := os.ReadFile(outputPath)
	contentStr := string(content)

	headerCount := 0
	tableCount := 0
	for _, line := range strings.Split(contentStr, "\n") {
		if strings.HasPrefix(line, "#") {
			headerCount++
		}
		if strings.Contains(line, "|") {
			tableCount++
		}
	}
	if headerCount < 3 {
		t.Errorf("Expected at least 3 headers, got %d", headerCount)
	}
	if tableCount < 3 {
		t.Errorf("Expected at least 3 table rows, got %d", tableCount)
	}
	if !strings.Contains(contentStr, "No search attempts recorded") {
		t.Error("Expected an empty evaluation notice")
	}
	if strings.Contains(contentStr, "## 🔗 Alignment") {
		t.Error("Alignment section should be omitted without alignments")
	}
	if !strings.Contains(contentStr, "Generated by") {
		t.Error("Report missing footer")
	}
}

func TestReportWithEmptyData(t *testing.T) {
	db := openTestStore(t)

	report, err := GenerateSummaryReport(db, nil, "")
	if err != nil {
		t.Fatalf("GenerateSummaryReport failed: %v", err)
	}
	if report.Lines != 0 || report.Alignments != 0 {
		t.Errorf("Expected empty statistics, got %d lines and %d alignments", report.Lines, report.Alignments)
	}
	if report.LatestRun != nil {
		t.Error("Expected no run for an empty database")
	}

	outputPath := filepath.Join(t.TempDir(), "empty-summary.md")
	if err := WriteMarkdownReport(report, outputPath); err != nil {
		t.Fatalf("WriteMarkdownReport failed on empty data: %v", err)
	}
	if _, err := os.Stat(outputPath); os.IsNotExist(err) {
		t.Error("Report file was not created for empty data")
	}
}
