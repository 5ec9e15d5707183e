package models

import (
	"fmt"
	"strings"
)

// ProcessRequest is the input for a revision run.
type ProcessRequest struct {
	ContractText       string `json:"contract_text"`
	ChangeInstructions string `json:"change_instructions"`
}

// Validate ensures both the contract text and the instructions are present.
// The contract text is kept verbatim; only the instructions are trimmed.
func (r *ProcessRequest) Validate() error {
	if strings.TrimSpace(r.ContractText) == "" {
		return fmt.Errorf("contract_text cannot be empty")
	}
	r.ChangeInstructions = strings.TrimSpace(r.ChangeInstructions)
	if r.ChangeInstructions == "" {
		return fmt.Errorf("change_instructions cannot be empty")
	}
	return nil
}

// ProcessResponse is the result of a revision run as returned to API callers.
// Changes and ReportFile are only populated when outcome reporting is enabled.
type ProcessResponse struct {
	Contract     string    `json:"contract"`
	DownloadFile string    `json:"download_file"`
	Clauses      []Clause  `json:"clauses"`
	Changes      []Outcome `json:"changes,omitempty"`
	ReportFile   string    `json:"report_file,omitempty"`
}

// DownloadEditRequest carries user-edited marked text to be saved as a document.
type DownloadEditRequest struct {
	Text string `json:"text"`
}

// PreviewResponse carries extracted contract text.
type PreviewResponse struct {
	ContractText string `json:"contract_text"`
}
