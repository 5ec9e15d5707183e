// Package docx writes revised contract text as a Word (.docx) document.
package docx

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/redline/internal/revise"
)

// Extension is the file extension of written artifacts.
const Extension = ".docx"

// ContentType is the MIME type of a .docx document.
const ContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// ErrStorageWrite is returned when an artifact cannot be written to the output directory.
var ErrStorageWrite = errors.New("storage write failure")

// ErrInvalidName is returned by Path for names that were not produced by a Writer.
var ErrInvalidName = errors.New("invalid artifact name")

// Writer saves documents under unique names in a single output directory.
type Writer struct {
	dir string
	now func() time.Time
}

// NewWriter returns a Writer for dir, creating the directory if needed.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: create output directory: %w", ErrStorageWrite, err)
	}
	return &Writer{dir: dir, now: time.Now}, nil
}

// Dir returns the output directory.
func (w *Writer) Dir() string {
	return w.dir
}

// Save strips highlight markers from text, writes one document paragraph per
// blank-line separated block, and returns the new file's name (not its path).
func (w *Writer) Save(text string) (string, error) {
	paragraphs := Paragraphs(revise.StripMarks(text))
	name := uuid.New().String() + Extension
	if err := writeAtomic(filepath.Join(w.dir, name), func(f io.Writer) error {
		return writePackage(f, paragraphs, w.now())
	}); err != nil {
		return "", fmt.Errorf("%w: %w", ErrStorageWrite, err)
	}
	return name, nil
}

// Path resolves an artifact name to its location in the output directory.
// Only names of the form <uuid><ext> are accepted.
func (w *Writer) Path(name string) (string, error) {
	return ResolveName(w.dir, name, Extension)
}

// ResolveName joins dir and name after checking that name is a bare <uuid><ext> file name.
func ResolveName(dir, name, ext string) (string, error) {
	if filepath.Base(name) != name || !strings.HasSuffix(name, ext) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if _, err := uuid.Parse(strings.TrimSuffix(name, ext)); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(dir, name), nil
}

// Paragraphs splits text on blank lines into paragraphs, in order.
// Line endings are normalized and newlines at the edges of each block are dropped.
func Paragraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	blocks := strings.Split(text, "\n\n")
	for i, b := range blocks {
		blocks[i] = strings.Trim(b, "\n")
	}
	return blocks
}

// writeAtomic writes through a temporary file in the same directory and renames it into place.
func writeAtomic(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()
	if err := write(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// writePackage writes a minimal WordprocessingML package.
func writePackage(out io.Writer, paragraphs []string, created time.Time) error {
	zw := zip.NewWriter(out)
	parts := []struct {
		name    string
		content string
	}{
		{"[Content_Types].xml", contentTypesXML},
		{"_rels/.rels", rootRelsXML},
		{"docProps/core.xml", fmt.Sprintf(corePropsXML, created.UTC().Format(time.RFC3339))},
		{"word/_rels/document.xml.rels", documentRelsXML},
		{"word/document.xml", documentXML(paragraphs)},
	}
	for _, p := range parts {
		fw, err := zw.Create(p.name)
		if err != nil {
			return fmt.Errorf("create %s: %w", p.name, err)
		}
		if _, err := io.WriteString(fw, p.content); err != nil {
			return fmt.Errorf("write %s: %w", p.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("close package: %w", err)
	}
	return nil
}

// documentXML renders paragraphs as <w:p> elements. Single newlines inside a
// paragraph become <w:br/> line breaks and tabs become <w:tab/>.
func documentXML(paragraphs []string) string {
	var b strings.Builder
	b.WriteString(xml.Header)
	b.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"><w:body>`)
	for _, p := range paragraphs {
		b.WriteString("<w:p><w:r>")
		for i, line := range strings.Split(p, "\n") {
			if i > 0 {
				b.WriteString("<w:br/>")
			}
			for j, seg := range strings.Split(line, "\t") {
				if j > 0 {
					b.WriteString("<w:tab/>")
				}
				if seg == "" {
					continue
				}
				b.WriteString(`<w:t xml:space="preserve">`)
				_ = xml.EscapeText(&b, []byte(seg))
				b.WriteString("</w:t>")
			}
		}
		b.WriteString("</w:r></w:p>")
	}
	b.WriteString(`<w:sectPr><w:pgSz w:w="12240" w:h="15840"/><w:pgMar w:top="1440" w:right="1440" w:bottom="1440" w:left="1440" w:header="720" w:footer="720" w:gutter="0"/></w:sectPr>`)
	b.WriteString("</w:body></w:document>")
	return b.String()
}

const contentTypesXML = xml.Header + `<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
	`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
	`<Default Extension="xml" ContentType="application/xml"/>` +
	`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
	`<Override PartName="/docProps/core.xml" ContentType="application/vnd.openxmlformats-package.core-properties+xml"/>` +
	`</Types>`

const rootRelsXML = xml.Header + `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
	`<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties" Target="docProps/core.xml"/>` +
	`</Relationships>`

const documentRelsXML = xml.Header + `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`

const corePropsXML = xml.Header + `<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" ` +
	`xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:dcterms="http://purl.org/dc/terms/" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">` +
	`<dc:title>Revised contract</dc:title>` +
	`<dcterms:created xsi:type="dcterms:W3CDTF">%s</dcterms:created>` +
	`</cp:coreProperties>`
