package models

// ChangeProposal is a candidate edit: an exact excerpt of the source text and its replacement.
type ChangeProposal struct {
	ClauseTitle     string `json:"clause_title"`
	OriginalExcerpt string `json:"original_excerpt"`
	RevisedText     string `json:"revised_text"`
	Reason          string `json:"reason"`
}

// OutcomeStatus describes what the applicator did with a proposal.
type OutcomeStatus string

const (
	// OutcomeApplied means every occurrence of the excerpt was replaced.
	OutcomeApplied OutcomeStatus = "applied"
	// OutcomeSkippedEmpty means the excerpt or the revision was blank.
	OutcomeSkippedEmpty OutcomeStatus = "skipped_empty"
	// OutcomeSkippedNotFound means the excerpt did not occur in the text at the time it was applied.
	OutcomeSkippedNotFound OutcomeStatus = "skipped_not_found"
)

// Outcome pairs a proposal with the applicator's decision.
type Outcome struct {
	Proposal    ChangeProposal `json:"proposal"`
	Status      OutcomeStatus  `json:"status"`
	Occurrences int            `json:"occurrences"`
}

// Applied reports whether the proposal changed the text.
func (o Outcome) Applied() bool {
	return o.Status == OutcomeApplied
}

// CountApplied returns the number of applied outcomes.
func CountApplied(outcomes []Outcome) int {
	n := 0
	for _, o := range outcomes {
		if o.Applied() {
			n++
		}
	}
	return n
}
