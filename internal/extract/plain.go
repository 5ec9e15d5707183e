package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/redline/pkg/utils"
)

// blankLineRe matches a paragraph boundary in plain text.
var blankLineRe = regexp.MustCompile(`\n[ \t]*\n`)

// extractPlain splits UTF-8 text into blank-line separated blocks.
// Invalid UTF-8 sequences are replaced with the replacement character.
func extractPlain(content []byte) ([]string, error) {
	s := string(content)
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "\ufffd")
	}
	return blankLineRe.Split(utils.NormalizeNewlines(s), -1), nil
}
