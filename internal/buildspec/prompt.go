// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package buildspec

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/mesh-intelligence/feedback-engine/internal/claude"
	"github.com/mesh-intelligence/feedback-engine/pkg/types"
)

// systemPrompt frames the spec-writing role for the reasoning engine.
const systemPrompt = "You are a technical product manager who writes clear, specific, actionable specs. You never write generic requirements - everything is concrete and testable."

// specPromptTmpl is the prompt for the single spec-generation call.
var specPromptTmpl = template.Must(template.New("spec").Parse(`You are generating a product specification for an AI coding agent.

The spec must be SPECIFIC and ACTIONABLE - not generic advice that could apply to any product.

PROBLEM TO SOLVE (ranked #1 from user research):
{{.Problem}}

EVIDENCE FROM USER RESEARCH:
{{.Evidence}}

SCORING:
reach {{.Score.Reach}}/5, intensity {{.Score.Intensity}}/5, user value {{.Score.UserValue}}/3, confidence {{.Score.Confidence}}/3, total {{.Score.Total}}/16
Reasoning: {{.Score.Reasoning}}

Generate a spec with these EXACT sections:

1. problem_statement: 2-3 sentences describing the specific problem. Reference the user quotes or speakers above by name.

2. user_stories: EXACTLY 5 entries, each {"role": "...", "action": "...", "benefit": "..."}.
   Roles should reflect the different speakers and segments in the evidence.

3. proposed_solution: {"summary": "...", "key_features": [...], "data_model": "...", "api_changes": [...], "workflow": "..."}.
   A design sketch, not code. Be concrete about fields, endpoints, and flow.

4. acceptance_criteria: 5-7 criteria, each independently testable as a single pass/fail condition. No compound conditions.

5. out_of_scope: explicit exclusions bounding the first build iteration.

6. success_metrics: {"leading": [...], "lagging": [...]}.

7. risks: each {"description": "...", "category": "technical"|"adoption"|"integration", "mitigation": "..."}.

8. implementation_hints: concrete technology and architecture suggestions. Advisory, not binding.

9. priority_justification: why this problem ranked #1, restating the score above.

Respond with a JSON object containing exactly those nine keys and nothing else.
`))

// buildPrompt renders the generation prompt for the top-ranked problem.
func buildPrompt(top types.RankedProblem) string {
	problemJSON, err := json.MarshalIndent(top.Problem, "", "  ")
	if err != nil {
		panic(err)
	}

	var ev strings.Builder
	for _, e := range top.Evidence {
		fmt.Fprintf(&ev, "- %q — %s", e.Quote, e.Speaker)
		if e.Role != "" {
			fmt.Fprintf(&ev, " (%s)", e.Role)
		}
		ev.WriteString("\n")
	}

	var buf bytes.Buffer
	err = specPromptTmpl.Execute(&buf, struct {
		Problem  string
		Evidence string
		Score    types.Score
	}{string(problemJSON), ev.String(), top.Score})
	if err != nil {
		panic(err)
	}
	return buf.String()
}

// ClaudeBackend implements AIBackend over the shared Claude client.
type ClaudeBackend struct {
	Client *claude.Client
}

// Generate sends the rendered prompt and parses the JSON response. A
// response that fails to parse is returned as an error; the caller treats
// it as a transient failure under its retry budget.
func (c *ClaudeBackend) Generate(ctx context.Context, prompt string) (AISpec, error) {
	text, err := c.Client.Complete(ctx, systemPrompt, prompt)
	if err != nil {
		return AISpec{}, err
	}

	var resp AISpec
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		return AISpec{}, fmt.Errorf("parsing spec response: %w", err)
	}
	return resp, nil
}
