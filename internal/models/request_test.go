package models

import (
	"testing"
)

func TestProcessRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     *ProcessRequest
		wantErr bool
	}{
		{"empty contract", &ProcessRequest{ContractText: "", ChangeInstructions: "x"}, true},
		{"whitespace contract", &ProcessRequest{ContractText: " \n\n ", ChangeInstructions: "x"}, true},
		{"empty instructions", &ProcessRequest{ContractText: "1. Term", ChangeInstructions: ""}, true},
		{"whitespace instructions", &ProcessRequest{ContractText: "1. Term", ChangeInstructions: "  \t"}, true},
		{"valid", &ProcessRequest{ContractText: "1. Term", ChangeInstructions: " extend the term "}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && tt.req.ChangeInstructions != "extend the term" {
				t.Errorf("instructions should be trimmed, got %q", tt.req.ChangeInstructions)
			}
		})
	}
}

func TestProcessRequest_ValidateKeepsContractVerbatim(t *testing.T) {
	req := &ProcessRequest{ContractText: "  1. Term\n", ChangeInstructions: "x"}
	if err := req.Validate(); err != nil {
		t.Fatal(err)
	}
	if req.ContractText != "  1. Term\n" {
		t.Errorf("contract text modified: %q", req.ContractText)
	}
}

func TestCountApplied(t *testing.T) {
	outcomes := []Outcome{
		{Status: OutcomeApplied, Occurrences: 2},
		{Status: OutcomeSkippedNotFound},
		{Status: OutcomeSkippedEmpty},
		{Status: OutcomeApplied, Occurrences: 1},
	}
	if got := CountApplied(outcomes); got != 2 {
		t.Errorf("CountApplied = %d, want 2", got)
	}
	if CountApplied(nil) != 0 {
		t.Error("nil outcomes should count 0")
	}
}
