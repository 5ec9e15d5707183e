package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
)

// odtContentPath is the path to the main content inside an .odt zip (OpenDocument Text).
const odtContentPath = "content.xml"

var odfTextNamespaces = []string{"urn:oasis:names:tc:opendocument:xmlns:text:1.0", "text"}

var odtLayout = xmlLayout{
	isParagraph: nameIn(odfTextNamespaces, "p", "h"),
	skip:        nameIn(odfTextNamespaces, "note", "tracked-changes", "bookmark-ref"),
	inline: func(e xml.StartElement) string {
		switch {
		case nameIn(odfTextNamespaces, "s")(e.Name):
			return strings.Repeat(" ", spaceCount(e))
		case nameIn(odfTextNamespaces, "tab")(e.Name):
			return "\t"
		case nameIn(odfTextNamespaces, "line-break")(e.Name):
			return "\n"
		}
		return ""
	},
}

// spaceCount returns the text:c attribute of a <text:s/> element, defaulting to 1.
func spaceCount(e xml.StartElement) int {
	for _, a := range e.Attr {
		if a.Name.Local != "c" {
			continue
		}
		if n, err := strconv.Atoi(a.Value); err == nil && n > 0 {
			return n
		}
	}
	return 1
}

// extractODT returns the paragraphs and headings of an .odt file in document order.
func extractODT(content []byte) ([]string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("extract ODT: not a zip: %w", err)
	}
	contentXML, err := readZipFile(zr, odtContentPath)
	if err != nil {
		return nil, fmt.Errorf("extract ODT: %w", err)
	}
	if contentXML == nil {
		return nil, fmt.Errorf("extract ODT: %s not found", odtContentPath)
	}
	paragraphs, err := xmlParagraphs(bytes.NewReader(contentXML), odtLayout)
	if err != nil {
		return nil, fmt.Errorf("extract ODT: %w", err)
	}
	return paragraphs, nil
}
