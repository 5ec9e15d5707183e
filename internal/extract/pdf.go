package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/hyperjump/redline/pkg/utils"
)

// extractPDF returns each non-empty text line of every page as a paragraph.
// PDF carries no paragraph structure, so lines are the closest unit.
func extractPDF(content []byte) ([]string, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}
	var paragraphs []string
	numPages := r.NumPage()
	for i := 0; i < numPages; i++ {
		page := r.Page(i + 1)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract page %d: %w", i+1, err)
		}
		paragraphs = append(paragraphs, strings.Split(utils.NormalizeNewlines(text), "\n")...)
	}
	return paragraphs, nil
}
