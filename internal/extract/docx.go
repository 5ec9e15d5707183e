package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"regexp"
	"strings"
)

// docxDocumentXMLPath is the default path to the main document body inside a .docx zip.
const docxDocumentXMLPath = "word/document.xml"

// contentTypesPath is the path to [Content_Types].xml in OOXML packages.
const contentTypesPath = "[Content_Types].xml"

// docxMainContentType is the content type for the main document in DOCX files.
const docxMainContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"

// wordNamespaces are the transitional and strict WordprocessingML namespaces, plus the bare prefix.
var wordNamespaces = []string{
	"http://schemas.openxmlformats.org/wordprocessingml/2006/main",
	"http://purl.oclc.org/ooxml/wordprocessingml/main",
	"w",
}

// partNameRe extracts PartName from Override elements in [Content_Types].xml.
var partNameRe = regexp.MustCompile(`<Override[^>]+PartName="([^"]+)"[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"`)

// partNameRe2 handles the case where ContentType appears before PartName.
var partNameRe2 = regexp.MustCompile(`<Override[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"[^>]+PartName="([^"]+)"`)

var docxLayout = xmlLayout{
	isParagraph: nameIn(wordNamespaces, "p"),
	isText:      nameIn(wordNamespaces, "t"),
	skip:        nameIn(wordNamespaces, "pPr", "rPr", "del", "instrText"),
	inline: func(e xml.StartElement) string {
		switch {
		case nameIn(wordNamespaces, "tab")(e.Name):
			return "\t"
		case nameIn(wordNamespaces, "br", "cr")(e.Name):
			return "\n"
		}
		return ""
	},
}

// findDocxMainDocumentPath finds the main document path from [Content_Types].xml.
// Returns the path without leading slash, or empty string if not found.
func findDocxMainDocumentPath(zr *zip.Reader) string {
	content, err := readZipFile(zr, contentTypesPath)
	if err != nil || content == nil {
		return ""
	}
	s := string(content)
	// Try both attribute orders
	if matches := partNameRe.FindStringSubmatch(s); len(matches) > 1 {
		return strings.TrimPrefix(matches[1], "/")
	}
	if matches := partNameRe2.FindStringSubmatch(s); len(matches) > 1 {
		return strings.TrimPrefix(matches[1], "/")
	}
	return ""
}

// extractDOCX returns the paragraphs of a .docx file. DOCX is a ZIP whose main part
// (normally word/document.xml) holds <w:p> paragraphs made of <w:t> text runs.
// Paragraph and run properties and tracked deletions are ignored.
func extractDOCX(content []byte) ([]string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("extract DOCX: not a zip: %w", err)
	}

	// Find main document path from [Content_Types].xml, fall back to default
	docPath := findDocxMainDocumentPath(zr)
	if docPath == "" {
		docPath = docxDocumentXMLPath
	}
	docXML, err := readZipFile(zr, docPath)
	if err != nil {
		return nil, fmt.Errorf("extract DOCX: %w", err)
	}
	if docXML == nil {
		return nil, fmt.Errorf("extract DOCX: %s not found", docPath)
	}
	paragraphs, err := xmlParagraphs(bytes.NewReader(docXML), docxLayout)
	if err != nil {
		return nil, fmt.Errorf("extract DOCX: %w", err)
	}
	return paragraphs, nil
}
