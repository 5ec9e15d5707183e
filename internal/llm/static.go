package llm

import (
	"context"
	"fmt"
	"os"

	"github.com/hyperjump/redline/internal/models"
)

// StaticProposer answers every request with a canned service response read from a file.
// The file is read on each call so it can be edited while the server runs.
type StaticProposer struct {
	path string
}

// NewStaticProposer returns a StaticProposer for the response file at path.
func NewStaticProposer(path string) *StaticProposer {
	return &StaticProposer{path: path}
}

// Propose reads the response file and parses it like a live service response.
func (s *StaticProposer) Propose(ctx context.Context, _ []models.Clause, _ string) ([]models.ChangeProposal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: read static response: %w", ErrServiceUnavailable, err)
	}
	return ParseProposals(string(data))
}
