// Package extract provides paragraph-level text extraction from contract documents.
package extract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnreadableDocument is returned when a document cannot be opened or parsed.
var ErrUnreadableDocument = errors.New("unreadable document")

// paragraphSeparator joins extracted paragraphs.
const paragraphSeparator = "\n\n"

// Extractor extracts plain text from document files, one paragraph per block.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// SupportedExtensions lists the file extensions Extract understands.
func SupportedExtensions() []string {
	return []string{".docx", ".odt", ".pdf", ".txt", ".md"}
}

// Supported reports whether ext (with leading dot, any case) can be extracted.
func Supported(ext string) bool {
	ext = strings.ToLower(ext)
	for _, e := range SupportedExtensions() {
		if e == ext {
			return true
		}
	}
	return ext == ""
}

// Extract reads the file at path and returns its text.
// Every non-empty paragraph is trimmed and paragraphs are separated by a blank line;
// whitespace-only paragraphs are dropped.
// Errors wrap ErrUnreadableDocument.
func (e *Extractor) Extract(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: read file: %w", ErrUnreadableDocument, err)
	}
	return e.ExtractBytes(content, filepath.Ext(path))
}

// ExtractBytes extracts text from content based on the given extension.
// ext should include the leading dot (e.g. ".docx").
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	paragraphs, err := e.Paragraphs(content, ext)
	if err != nil {
		return "", err
	}
	return strings.Join(paragraphs, paragraphSeparator), nil
}

// Paragraphs returns the trimmed, non-empty paragraphs of content in document order.
func (e *Extractor) Paragraphs(content []byte, ext string) ([]string, error) {
	var (
		raw []string
		err error
	)
	switch strings.ToLower(ext) {
	case ".docx":
		raw, err = extractDOCX(content)
	case ".odt":
		raw, err = extractODT(content)
	case ".pdf":
		raw, err = extractPDF(content)
	case ".txt", ".md", "":
		raw, err = extractPlain(content)
	default:
		err = fmt.Errorf("unsupported document type %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadableDocument, err)
	}
	return compact(raw), nil
}

// compact trims each paragraph and drops the empty ones.
func compact(paragraphs []string) []string {
	out := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
