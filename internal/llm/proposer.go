// Package llm requests change proposals from a text-generation service.
//
// The service is reached through the Proposer interface so the pipeline can run
// against a deterministic stub. Responses must be a single JSON object of the
// form {"changes": [...]}; anything else is rejected with ErrMalformedResponse.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hyperjump/redline/internal/models"
)

var (
	// ErrMalformedResponse is returned when the service response is not a JSON object of the expected shape.
	ErrMalformedResponse = errors.New("malformed proposal response")
	// ErrServiceUnavailable is returned when the service cannot be reached or answers with an error status.
	ErrServiceUnavailable = errors.New("proposal service failure")
)

// Proposer turns clauses and a natural-language instruction into change proposals.
type Proposer interface {
	Propose(ctx context.Context, clauses []models.Clause, instruction string) ([]models.ChangeProposal, error)
}

// ProposerFunc adapts a function to the Proposer interface.
type ProposerFunc func(ctx context.Context, clauses []models.Clause, instruction string) ([]models.ChangeProposal, error)

// Propose calls f.
func (f ProposerFunc) Propose(ctx context.Context, clauses []models.Clause, instruction string) ([]models.ChangeProposal, error) {
	return f(ctx, clauses, instruction)
}

// proposalEnvelope is the response object expected from the service.
type proposalEnvelope struct {
	Changes []models.ChangeProposal `json:"changes"`
}

// ParseProposals decodes a service response. The content must be exactly one JSON
// object; a missing or null "changes" key yields an empty list.
func ParseProposals(content string) ([]models.ChangeProposal, error) {
	trimmed := bytes.TrimSpace([]byte(content))
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrMalformedResponse)
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	var env proposalEnvelope
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if dec.InputOffset() != int64(len(trimmed)) {
		return nil, fmt.Errorf("%w: unexpected content after JSON object", ErrMalformedResponse)
	}
	if env.Changes == nil {
		return []models.ChangeProposal{}, nil
	}
	return env.Changes, nil
}
