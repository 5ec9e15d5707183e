package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// xmlLayout describes how paragraphs and their text are encoded in an XML part.
type xmlLayout struct {
	// isParagraph reports whether an element starts a paragraph.
	isParagraph func(xml.Name) bool
	// isText reports whether an element carries literal text. When nil, all character
	// data inside a paragraph is text.
	isText func(xml.Name) bool
	// skip reports whether an element's subtree holds no content (properties, deleted runs).
	skip func(xml.Name) bool
	// inline returns text inserted for an element such as a tab or line break.
	inline func(xml.StartElement) string
}

// xmlParagraphs walks an XML part and returns the text of each top-level paragraph.
func xmlParagraphs(r io.Reader, layout xmlLayout) ([]string, error) {
	dec := xml.NewDecoder(r)
	var (
		paragraphs []string
		cur        strings.Builder
		depth      int
		inText     int
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse XML: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case layout.isParagraph(t.Name):
				depth++
			case depth == 0:
			case layout.skip != nil && layout.skip(t.Name):
				if err := dec.Skip(); err != nil {
					return nil, fmt.Errorf("parse XML: %w", err)
				}
			case layout.isText != nil && layout.isText(t.Name):
				inText++
			case layout.inline != nil:
				cur.WriteString(layout.inline(t))
			}
		case xml.EndElement:
			switch {
			case layout.isParagraph(t.Name):
				if depth == 0 {
					continue
				}
				depth--
				if depth == 0 {
					paragraphs = append(paragraphs, cur.String())
					cur.Reset()
				}
			case layout.isText != nil && layout.isText(t.Name) && inText > 0:
				inText--
			}
		case xml.CharData:
			if depth > 0 && (layout.isText == nil || inText > 0) {
				cur.Write(t)
			}
		}
	}
	return paragraphs, nil
}

// nameIn returns a matcher for elements with the given local names in any of the namespaces.
// Undeclared prefixes are left in Name.Space by the decoder, so prefixes are accepted too.
func nameIn(spaces []string, locals ...string) func(xml.Name) bool {
	return func(n xml.Name) bool {
		if !containsString(spaces, n.Space) {
			return false
		}
		return containsString(locals, n.Local)
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// readZipFile returns the contents of the named file in zr, or nil if absent.
func readZipFile(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", f.Name, err)
		}
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(rc); err != nil {
			_ = rc.Close()
			return nil, fmt.Errorf("read %s: %w", f.Name, err)
		}
		_ = rc.Close()
		return buf.Bytes(), nil
	}
	return nil, nil
}
