// Package revise applies change proposals to contract text as exact substring substitutions.
package revise

import (
	"regexp"
	"strings"

	"github.com/hyperjump/redline/internal/models"
)

const (
	// MarkOpen starts a highlighted revised span.
	MarkOpen = "<mark>"
	// MarkClose ends a highlighted revised span.
	MarkClose = "</mark>"
)

// markTag matches opening highlight tags (with or without attributes) and closing tags.
var markTag = regexp.MustCompile(`</?mark(?:\s[^>]*)?>`)

// Apply returns original with each applicable proposal substituted and highlighted.
//
// Proposals are applied in order against the progressively updated text, so a
// later proposal sees the result of earlier ones. Every occurrence of an excerpt
// is replaced. Proposals with a blank excerpt or revision, or whose excerpt no
// longer occurs, are dropped without error.
func Apply(original string, proposals []models.ChangeProposal) string {
	updated, _ := ApplyWithOutcomes(original, proposals)
	return updated
}

// ApplyWithOutcomes behaves like Apply and also reports what happened to each proposal.
func ApplyWithOutcomes(original string, proposals []models.ChangeProposal) (string, []models.Outcome) {
	updated := original
	outcomes := make([]models.Outcome, 0, len(proposals))
	for _, p := range proposals {
		excerpt := strings.TrimSpace(p.OriginalExcerpt)
		revised := strings.TrimSpace(p.RevisedText)
		if excerpt == "" || revised == "" {
			outcomes = append(outcomes, models.Outcome{Proposal: p, Status: models.OutcomeSkippedEmpty})
			continue
		}
		n := strings.Count(updated, excerpt)
		if n == 0 {
			outcomes = append(outcomes, models.Outcome{Proposal: p, Status: models.OutcomeSkippedNotFound})
			continue
		}
		updated = strings.ReplaceAll(updated, excerpt, Mark(revised))
		outcomes = append(outcomes, models.Outcome{Proposal: p, Status: models.OutcomeApplied, Occurrences: n})
	}
	return updated, outcomes
}

// Mark wraps s in highlight markers.
func Mark(s string) string {
	return MarkOpen + s + MarkClose
}

// StripMarks removes all highlight markers from s, keeping the marked content.
func StripMarks(s string) string {
	return markTag.ReplaceAllString(s, "")
}
