// Package report writes per-proposal outcome workbooks for a revision.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/redline/internal/docx"
	"github.com/hyperjump/redline/internal/models"
)

// Extension is the file extension of outcome workbooks.
const Extension = ".xlsx"

// ContentType is the media type of outcome workbooks.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const sheetName = "Outcomes"

var header = []interface{}{"Clause", "Original excerpt", "Revised text", "Reason", "Status", "Occurrences"}

// Writer stores outcome workbooks in a directory.
type Writer struct {
	dir string
}

// NewWriter returns a Writer for dir, creating it if needed.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: %w", docx.ErrStorageWrite, err)
	}
	return &Writer{dir: dir}, nil
}

// Write stores one row per outcome, in proposal order, and returns the new file name.
func (w *Writer) Write(instruction string, outcomes []models.Outcome) (string, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return "", fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return "", fmt.Errorf("write header: %w", err)
	}
	for i, o := range outcomes {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return "", err
		}
		row := []interface{}{
			o.Proposal.ClauseTitle,
			o.Proposal.OriginalExcerpt,
			o.Proposal.RevisedText,
			o.Proposal.Reason,
			string(o.Status),
			o.Occurrences,
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return "", fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	if err := f.SetDocProps(&excelize.DocProperties{
		Title:       "Revision outcomes",
		Description: instruction,
		Creator:     "redline",
	}); err != nil {
		return "", fmt.Errorf("set properties: %w", err)
	}

	name := uuid.New().String() + Extension
	path := filepath.Join(w.dir, name)
	if err := f.SaveAs(path); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("%w: %w", docx.ErrStorageWrite, err)
	}
	return name, nil
}

// Path resolves a workbook name produced by Write to its location on disk.
func (w *Writer) Path(name string) (string, error) {
	return docx.ResolveName(w.dir, name, Extension)
}

// Read returns the outcome rows stored in the workbook at path, header excluded.
func Read(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("get rows for sheet %q: %w", sheetName, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[1:], nil
}

// ReadOutcomes parses the workbook at path back into outcomes.
func ReadOutcomes(path string) ([]models.Outcome, error) {
	rows, err := Read(path)
	if err != nil {
		return nil, err
	}
	outcomes := make([]models.Outcome, 0, len(rows))
	for _, row := range rows {
		// GetRows trims trailing empty cells.
		cell := func(i int) string {
			if i < len(row) {
				return row[i]
			}
			return ""
		}
		n, _ := strconv.Atoi(cell(5))
		outcomes = append(outcomes, models.Outcome{
			Proposal: models.ChangeProposal{
				ClauseTitle:     cell(0),
				OriginalExcerpt: cell(1),
				RevisedText:     cell(2),
				Reason:          cell(3),
			},
			Status:      models.OutcomeStatus(cell(4)),
			Occurrences: n,
		})
	}
	return outcomes, nil
}
