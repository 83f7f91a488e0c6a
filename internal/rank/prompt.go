// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package rank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"text/template"

	"github.com/mesh-intelligence/feedback-engine/internal/claude"
	"github.com/mesh-intelligence/feedback-engine/pkg/types"
)

// systemPrompt frames the scoring role for the reasoning engine.
const systemPrompt = "You are a product strategist who makes evidence-based recommendations. You always cite specific user quotes to justify your reasoning."

// scoringPromptTmpl is the per-problem prompt. Each problem is scored in its
// own call so units of work stay independent and retryable in isolation.
var scoringPromptTmpl = template.Must(template.New("scoring").Parse(`You are scoring one customer problem to decide what a team should build next.

DATA CONTEXT:
- Total interviews analyzed: {{.NumTranscripts}}
- Speakers who mentioned this problem: {{.NumSpeakers}}
- Be honest about confidence given the sample size.

PROBLEM:
{{.Problem}}

SCORING FRAMEWORK:

1. REACH (1-5): breadth of affected users.
   1 = a single niche user, 5 = affects most or all users.

2. INTENSITY (1-5): severity of the pain.
   1 = minor annoyance with an easy workaround, 5 = blocker, they cannot do their job.

3. USER VALUE (1-3): importance of the affected user segment.
   1 = low-value users (free, churning), 3 = high-value users (paying, enterprise, champions).

4. CONFIDENCE (1-3): strength of the evidence.
   1 = single mention or indirect signals, 3 = multiple users with clear quotes and strong emotional language.
   If only one speaker mentioned this problem, confidence MUST be 1. Do not inflate confidence.

Also provide:
- reasoning: 2-3 sentences explaining the scores, citing specific quotes ("Sarah said '...' which shows ..."). Must be specific to THIS problem, never generic.
- tradeoffs: what the team gives up by NOT solving this problem.

Respond with a JSON object and nothing else:
{"reach": N, "intensity": N, "user_value": N, "confidence": N, "reasoning": "...", "tradeoffs": "..."}
`))

// buildPrompt renders the scoring prompt for one problem.
func buildPrompt(p types.Problem, transcriptCount int) string {
	problemJSON, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		panic(err)
	}

	var buf bytes.Buffer
	err = scoringPromptTmpl.Execute(&buf, struct {
		NumTranscripts int
		NumSpeakers    int
		Problem        string
	}{transcriptCount, len(p.MentionedBy), string(problemJSON)})
	if err != nil {
		panic(err)
	}
	return buf.String()
}

// ClaudeBackend implements AIBackend over the shared Claude client.
type ClaudeBackend struct {
	Client *claude.Client
}

// Score sends the rendered prompt and parses the JSON response. A response
// that fails to parse is returned as an error; the caller treats it as a
// transient failure under its retry budget.
func (c *ClaudeBackend) Score(ctx context.Context, prompt string) (AIScore, error) {
	text, err := c.Client.Complete(ctx, systemPrompt, prompt)
	if err != nil {
		return AIScore{}, err
	}

	var resp AIScore
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		return AIScore{}, fmt.Errorf("parsing scoring response: %w", err)
	}
	return resp, nil
}
