// Package cli provides output formatting for the redline command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/redline/internal/clause"
	"github.com/hyperjump/redline/internal/models"
	"github.com/hyperjump/redline/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputText, "":
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

// StatusConfig is the configuration part of a status report.
type StatusConfig struct {
	LLMProvider    string `json:"llm_provider"`
	LLMModel       string `json:"llm_model"`
	ReportOutcomes bool   `json:"report_outcomes"`
	MaxUploadBytes int64  `json:"max_upload_bytes,omitempty"`
	OutputDir      string `json:"output_dir,omitempty"`
}

// Status is the shape of GET /api/v1/status.
type Status struct {
	Revisions      int64         `json:"revisions"`
	DiskUsageBytes *int64        `json:"disk_usage_bytes,omitempty"`
	Config         *StatusConfig `json:"config,omitempty"`
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// WriteRevisionResult writes the outcome of a revision run.
func WriteRevisionResult(w io.Writer, res *models.ProcessResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, res)
	}
	fmt.Fprintf(w, "%s\n\n", res.Contract)
	fmt.Fprintln(w, "─────────────────────────────────────────────────────────")
	fmt.Fprintf(w, "Clauses: %d\n", len(res.Clauses))
	if len(res.Clauses) > 0 {
		fmt.Fprintf(w, "  %s\n", utils.Truncate(strings.Join(clause.Titles(res.Clauses), " | "), 120))
	}
	if len(res.Changes) > 0 {
		fmt.Fprintf(w, "Changes: %d applied of %d proposed\n", models.CountApplied(res.Changes), len(res.Changes))
		for i, c := range res.Changes {
			fmt.Fprintf(w, "  %d. [%s] %s: %q -> %q\n", i+1, c.Status, c.Proposal.ClauseTitle,
				utils.Truncate(c.Proposal.OriginalExcerpt, 60), utils.Truncate(c.Proposal.RevisedText, 60))
		}
	}
	fmt.Fprintf(w, "Document: %s\n", res.DownloadFile)
	if res.ReportFile != "" {
		fmt.Fprintf(w, "Report: %s\n", res.ReportFile)
	}
	return nil
}

// WriteClauses writes segmented clauses, one block per clause in text mode.
func WriteClauses(w io.Writer, clauses []models.Clause, format OutputFormat) error {
	if format == OutputJSON {
		if clauses == nil {
			clauses = []models.Clause{}
		}
		return writeJSON(w, clauses)
	}
	for i, c := range clauses {
		fmt.Fprintf(w, "[%d] %s\n", i+1, c.Title)
		fmt.Fprintf(w, "    %s\n\n", utils.Truncate(strings.Join(strings.Fields(c.Text), " "), 200))
	}
	return nil
}

// WriteRevisions writes catalog rows, newest first.
func WriteRevisions(w io.Writer, revs []*models.Revision, total int64, format OutputFormat) error {
	if format == OutputJSON {
		if revs == nil {
			revs = []*models.Revision{}
		}
		return writeJSON(w, map[string]interface{}{"revisions": revs, "total": total})
	}
	if len(revs) == 0 {
		fmt.Fprintln(w, "No revisions.")
		return nil
	}
	for _, r := range revs {
		fmt.Fprintf(w, "%s  %-41s  %d/%d applied  %s\n",
			r.CreatedAt.Local().Format("2006-01-02 15:04"), r.Artifact, r.Applied, r.Proposals,
			utils.Truncate(r.Instruction, 60))
	}
	fmt.Fprintf(w, "\nShowing %d of %d revisions\n", len(revs), total)
	return nil
}

// WriteStatus writes a status report.
func WriteStatus(w io.Writer, s *Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, s)
	}
	fmt.Fprintf(w, "revisions:          %d   # artifacts in the catalog\n", s.Revisions)
	if s.DiskUsageBytes != nil {
		fmt.Fprintf(w, "disk_usage_bytes:   %d   # uploads + outputs on disk\n", *s.DiskUsageBytes)
	}
	if s.Config != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "# configuration")
		fmt.Fprintf(w, "llm_provider:       %s\n", s.Config.LLMProvider)
		if s.Config.LLMModel != "" {
			fmt.Fprintf(w, "llm_model:          %s\n", s.Config.LLMModel)
		}
		fmt.Fprintf(w, "report_outcomes:    %t\n", s.Config.ReportOutcomes)
		if s.Config.OutputDir != "" {
			fmt.Fprintf(w, "output_dir:         %s\n", s.Config.OutputDir)
		}
	}
	return nil
}
