package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/franz/fuga/internal/evaluate"
	"github.com/franz/fuga/internal/store"
	"github.com/franz/fuga/internal/util"
)

// SummaryReport is the state of the pipeline plus an optional evaluation
type SummaryReport struct {
	GeneratedAt time.Time `json:"generated_at"`

	// Corpus statistics
	Lines              int      `json:"lines"`
	Scores             int      `json:"scores"`
	DictionaryVersions []string `json:"dictionary_versions"`

	// Alignment statistics
	Alignments       int64               `json:"alignments"`
	FailedAlignments int64               `json:"failed_alignments"`
	LatestRun        *store.AlignmentRun `json:"latest_run,omitempty"`

	Evaluation *evaluate.Report `json:"evaluation,omitempty"`

	// Metadata
	DatabasePath string `json:"database_path,omitempty"`
	EventLogPath string `json:"event_log_path,omitempty"`
}

// GenerateSummaryReport gathers corpus and alignment statistics from the
// database. eval may be nil.
func GenerateSummaryReport(db *store.Store, eval *evaluate.Report, eventLogPath string) (*SummaryReport, error) {
	report := &SummaryReport{
		GeneratedAt:  time.Now(),
		Evaluation:   eval,
		EventLogPath: eventLogPath,
	}

	var err error
	if report.Lines, err = db.CountMelodicLines(); err != nil {
		return nil, fmt.Errorf("failed to count lines: %w", err)
	}
	if report.Scores, err = db.CountScores(); err != nil {
		return nil, fmt.Errorf("failed to count scores: %w", err)
	}
	if report.DictionaryVersions, err = db.GetDictionaryVersions(); err != nil {
		return nil, fmt.Errorf("failed to list dictionary versions: %w", err)
	}
	if report.Alignments, err = db.CountAlignments(); err != nil {
		return nil, fmt.Errorf("failed to count alignments: %w", err)
	}
	if report.FailedAlignments, err = db.CountFailedAlignments(); err != nil {
		return nil, fmt.Errorf("failed to count failed alignments: %w", err)
	}

	runs, err := db.GetRuns()
	if err != nil {
		return nil, fmt.Errorf("failed to list alignment runs: %w", err)
	}
	if len(runs) > 0 {
		report.LatestRun = runs[0]
	}

	return report, nil
}

// WriteMarkdownReport writes the summary report as Markdown
func WriteMarkdownReport(report *SummaryReport, outputPath string) error {
	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var md strings.Builder

	md.WriteString("# Fuga - Retrieval Report\n\n")
	md.WriteString(fmt.Sprintf("**Generated:** %s\n\n", report.GeneratedAt.Format("2006-01-02 15:04:05")))
	if report.DatabasePath != "" {
		md.WriteString(fmt.Sprintf("**Database:** `%s`\n\n", truncatePath(report.DatabasePath, 80)))
	}
	if report.EventLogPath != "" {
		md.WriteString(fmt.Sprintf("**Event Log:** `%s`\n\n", truncatePath(report.EventLogPath, 80)))
	}
	md.WriteString("---\n\n")

	// Corpus
	md.WriteString("## 📊 Corpus\n\n")
	md.WriteString("| Metric | Value |\n")
	md.WriteString("|--------|-------|\n")
	md.WriteString(fmt.Sprintf("| Melodic Lines | %s |\n", util.FormatCount(int64(report.Lines))))
	md.WriteString(fmt.Sprintf("| Scores | %s |\n", util.FormatCount(int64(report.Scores))))
	if len(report.DictionaryVersions) > 0 {
		md.WriteString(fmt.Sprintf("| Dictionary Versions | %s |\n", strings.Join(report.DictionaryVersions, ", ")))
	}
	md.WriteString("\n")

	// Alignment
	if report.Alignments > 0 || report.LatestRun != nil {
		md.WriteString("## 🔗 Alignment\n\n")
		md.WriteString("| Metric | Value |\n")
		md.WriteString("|--------|-------|\n")
		md.WriteString(fmt.Sprintf("| Aligned Pairs | %s |\n", util.FormatCount(report.Alignments)))
		if report.FailedAlignments > 0 {
			md.WriteString(fmt.Sprintf("| Pairs with a Failed Track | %s |\n", util.FormatCount(report.FailedAlignments)))
		}
		if run := report.LatestRun; run != nil {
			md.WriteString(fmt.Sprintf("| Latest Run | `%s` (%s) |\n", run.ID, run.Status))
			md.WriteString(fmt.Sprintf("| Engine | %s |\n", run.Engine))
			md.WriteString(fmt.Sprintf("| Progress | %s / %s pairs |\n",
				util.FormatCount(run.ProcessedPairs), util.FormatCount(run.TotalPairs)))
			if !run.FinishedAt.IsZero() && !run.StartedAt.IsZero() {
				md.WriteString(fmt.Sprintf("| Run Time | %s |\n", run.FinishedAt.Sub(run.StartedAt).Round(time.Second)))
			}
			if run.Error != "" {
				md.WriteString(fmt.Sprintf("| Error | %s |\n", run.Error))
			}
		}
		md.WriteString("\n")
	}

	if eval := report.Evaluation; eval != nil {
		writeEvaluation(&md, eval)
	}

	md.WriteString("---\n\n")
	md.WriteString("*Generated by fuga - melodic similarity retrieval*\n")

	if err := os.WriteFile(outputPath, []byte(md.String()), 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

var groupingTitles = map[evaluate.Grouping]string{
	evaluate.Overall:       "Overall",
	evaluate.ByInstrument:  "By Instrument",
	evaluate.ByMusicalForm: "By Musical Form",
	evaluate.ByQueryLength: "By Query Length",
	evaluate.ByScore:       "By Score",
}

func writeEvaluation(md *strings.Builder, eval *evaluate.Report) {
	md.WriteString("## 🎯 Retrieval Evaluation\n\n")
	md.WriteString(fmt.Sprintf("**Search attempts:** %s · **Near-match threshold:** %s\n\n",
		util.FormatCount(int64(eval.Attempts)), util.FormatRate(eval.Threshold)))
	if eval.Attempts == 0 {
		md.WriteString("*No search attempts recorded*\n\n")
		return
	}

	for _, g := range evaluate.Groupings {
		groups := eval.ByGrouping(g)
		if len(groups) == 0 {
			continue
		}
		md.WriteString(fmt.Sprintf("### %s\n\n", groupingTitles[g]))

		header := "| Algorithm | Search Type |"
		rule := "|-----------|-------------|"
		if g != evaluate.Overall {
			header += " Value |"
			rule += "-------|"
		}
		header += " Attempts |"
		rule += "----------|"
		for _, k := range evaluate.Cutoffs {
			header += fmt.Sprintf(" Hit@%d |", k)
			rule += "-------|"
		}
		md.WriteString(header + " MRR |\n")
		md.WriteString(rule + "-----|\n")

		for _, grp := range groups {
			row := fmt.Sprintf("| %s | %s |", grp.Key.Algorithm, grp.Key.SearchType)
			if g != evaluate.Overall {
				row += fmt.Sprintf(" %s |", grp.Key.Value)
			}
			row += fmt.Sprintf(" %d |", grp.Attempts)
			for _, k := range evaluate.Cutoffs {
				row += fmt.Sprintf(" %.1f%% |", grp.HitRate[k]*100)
			}
			md.WriteString(row + fmt.Sprintf(" %.3f |\n", grp.MRR))
		}
		md.WriteString("\n")

		if g == evaluate.Overall {
			writeTiming(md, groups)
		}
	}
}

func writeTiming(md *strings.Builder, groups []*evaluate.Group) {
	md.WriteString("#### Mean Resource Usage (ms)\n\n")
	md.WriteString("| Algorithm | Search Type | FE User | FE System | FE Clock | Align User | Align System | Align Clock |\n")
	md.WriteString("|-----------|-------------|---------|-----------|----------|------------|--------------|-------------|\n")
	for _, grp := range groups {
		t := grp.Timing
		if t == nil {
			continue
		}
		md.WriteString(fmt.Sprintf("| %s | %s | %.1f | %.1f | %.1f | %.1f | %.1f | %.1f |\n",
			grp.Key.Algorithm, grp.Key.SearchType,
			t.FeatureUserMs, t.FeatureSystemMs, t.FeatureClockMs,
			t.AlignmentUserMs, t.AlignmentSystemMs, t.AlignmentClockMs))
	}
	md.WriteString("\n")
}

// WriteJSONReport writes the summary report, including every evaluation
// group, as indented JSON
func WriteJSONReport(report *SummaryReport, outputPath string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := util.WriteFileAtomic(outputPath, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// truncatePath truncates a file path to a maximum length
func truncatePath(path string, maxLen int) string {
	if len(path) <= maxLen {
		return path
	}
	// Keep the start and the end
	start := maxLen/2 - 2
	end := len(path) - (maxLen/2 - 2)
	return path[:start] + "..." + path[end:]
}
