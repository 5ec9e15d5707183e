package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"text/template"

	"github.com/hyperjump/redline/internal/models"
)

// SystemPrompt accompanies every request.
const SystemPrompt = "Return valid JSON only."

// proposalPromptTmpl is the user prompt sent for each revision request.
var proposalPromptTmpl = template.Must(template.New("proposal").Parse(`You are a professional contract editor.

RULES:
- Identify ALL clauses impacted by the user request
- Apply changes to EVERY relevant occurrence
- If the same term appears multiple times, update ALL instances
- Do NOT invent clauses unless explicitly requested
- original_excerpt must match text EXACTLY
- Prefer minimal, precise legal edits
- You MUST search the ENTIRE contract for every place the change applies
- If the same sentence or concept appears multiple times, you MUST return a SEPARATE change entry for EACH occurrence

Return STRICT JSON ONLY:
{
  "changes": [
    {
      "clause_title": "...",
      "original_excerpt": "...",
      "revised_text": "...",
      "reason": "..."
    }
  ]
}

User request:
{{.Instruction}}

Clauses:
{{.Clauses}}
`))

// BuildPrompt renders the user prompt for clauses and instruction.
// Clauses are embedded as a JSON array of {"title", "text"} objects.
func BuildPrompt(clauses []models.Clause, instruction string) (string, error) {
	if clauses == nil {
		clauses = []models.Clause{}
	}
	// Clause text is sent verbatim so the model can quote it exactly.
	var clausesJSON bytes.Buffer
	enc := json.NewEncoder(&clausesJSON)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(clauses); err != nil {
		return "", fmt.Errorf("marshaling clauses: %w", err)
	}
	var buf bytes.Buffer
	err := proposalPromptTmpl.Execute(&buf, struct {
		Instruction string
		Clauses     string
	}{Instruction: instruction, Clauses: string(bytes.TrimSpace(clausesJSON.Bytes()))})
	if err != nil {
		return "", fmt.Errorf("rendering prompt: %w", err)
	}
	return buf.String(), nil
}
