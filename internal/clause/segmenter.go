// Package clause splits contract text into numbered clauses.
package clause

import (
	"regexp"
	"strings"

	"github.com/hyperjump/redline/internal/models"
	"github.com/hyperjump/redline/pkg/utils"
)

// headingRe matches a numbered heading line such as "3. Termination":
// digits, a period, horizontal whitespace, then an uppercase letter.
var headingRe = regexp.MustCompile(`(?m)^[0-9]+\.[ \t]+[A-Z][^\n]*$`)

// Split returns the clauses of text in document order.
// Text before the first heading becomes an "Introduction" clause when non-empty.
// Headings with an empty body are dropped.
func Split(text string) []models.Clause {
	text = utils.NormalizeNewlines(text)
	matches := headingRe.FindAllStringIndex(text, -1)

	clauses := make([]models.Clause, 0, len(matches)+1)
	title := models.IntroductionTitle
	start := 0
	for _, m := range matches {
		clauses = appendClause(clauses, title, text[start:m[0]])
		title = strings.TrimSpace(text[m[0]:m[1]])
		start = m[1]
	}
	return appendClause(clauses, title, text[start:])
}

// Titles returns the titles of clauses, in order.
func Titles(clauses []models.Clause) []string {
	titles := make([]string, len(clauses))
	for i, c := range clauses {
		titles[i] = c.Title
	}
	return titles
}

func appendClause(clauses []models.Clause, title, body string) []models.Clause {
	body = strings.TrimSpace(body)
	if body == "" {
		return clauses
	}
	return append(clauses, models.Clause{Title: title, Text: body})
}
