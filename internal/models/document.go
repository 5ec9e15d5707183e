// Package models defines core data structures for clauses, change proposals, and revisions.
package models

import "time"

// IntroductionTitle is the title given to text that appears before the first numbered heading.
const IntroductionTitle = "Introduction"

// Clause is a titled, contiguous span of contract text bounded by numbered headings.
type Clause struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// Revision is a catalog entry for one produced artifact.
type Revision struct {
	ID           string    `json:"id" db:"id"`
	Artifact     string    `json:"artifact" db:"artifact"`
	Report       string    `json:"report,omitempty" db:"report"`
	Instruction  string    `json:"instruction" db:"instruction"`
	SourceDigest string    `json:"source_digest" db:"source_digest"`
	Proposals    int       `json:"proposals" db:"proposals"`
	Applied      int       `json:"applied" db:"applied"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// RevisionDetail is a catalog entry with the outcomes recorded in its report, if any.
type RevisionDetail struct {
	Revision *Revision `json:"revision"`
	Outcomes []Outcome `json:"outcomes,omitempty"`
}
