// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

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

// systemPrompt frames the extraction role for the reasoning engine.
const systemPrompt = "You are a product analyst expert at synthesizing user research into actionable insights. You never paraphrase - you always use exact quotes."

// extractionPromptTmpl is the prompt sent to the engine, covering all
// transcripts in a single call.
var extractionPromptTmpl = template.Must(template.New("extraction").Parse(`You are analyzing customer interview transcripts to identify the core product problems.

CRITICAL RULES:
1. Extract {{.MinProblems}}-{{.MaxProblems}} DISTINCT problems. Cluster similar issues together; no two problems may describe the same underlying issue.
2. Evidence MUST be EXACT QUOTES copied verbatim from the transcripts. No paraphrasing, no truncation markers, no added punctuation.
3. Focus on ROOT CAUSES, not symptoms. "Users can't find X" is a symptom; "Navigation is confusing" is closer to root cause.
4. For each quote, name the speaker exactly as the transcript does.
5. Record urgency signals: short phrases of emotionally charged language from the transcripts (frustration, "huge pain", "broken", "nightmare", ...).

TRANSCRIPTS ({{.NumTranscripts}} interviews):
{{.Transcripts}}

Respond with a JSON object and nothing else:
{
  "problems": [
    {
      "title": "clear, specific name (3-6 words)",
      "description": "what is broken and why it matters (2-3 sentences)",
      "evidence": [{"quote": "exact quote", "speaker": "name"}],
      "urgency_signals": ["short phrase", "..."]
    }
  ],
  "synthesis_notes": "brief explanation of how you clustered these problems"
}

Remember: EXACT QUOTES ONLY. Do not summarize or reword user statements.
`))

// buildPrompt renders the extraction prompt over the usable transcripts,
// truncating the combined text at cfg.MaxPromptBytes.
func buildPrompt(records []types.TranscriptRecord, cfg types.ExtractionConfig) string {
	minP := cfg.MinProblems
	if minP <= 0 {
		minP = defaultMinProblems
	}
	maxP := cfg.MaxProblems
	if maxP <= 0 {
		maxP = defaultMaxProblems
	}
	maxBytes := cfg.MaxPromptBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxPromptBytes
	}

	combined := formatTranscripts(records)
	if len(combined) > maxBytes {
		combined = combined[:maxBytes] + "\n\n[TRUNCATED]"
	}

	var buf bytes.Buffer
	err := extractionPromptTmpl.Execute(&buf, struct {
		MinProblems    int
		MaxProblems    int
		NumTranscripts int
		Transcripts    string
	}{minP, maxP, len(records), combined})
	if err != nil {
		// The template is static and the data is plain values; an execute
		// failure is a programming error.
		panic(err)
	}
	return buf.String()
}

// formatTranscripts renders records with interview markers and per-turn
// speaker attribution, matching the loader's normalized form so the engine
// can quote turns verbatim.
func formatTranscripts(records []types.TranscriptRecord) string {
	var b strings.Builder
	for i, r := range records {
		if i > 0 {
			b.WriteString("\n\n" + strings.Repeat("=", 50) + "\n\n")
		}
		fmt.Fprintf(&b, "[INTERVIEW: %s]\n", r.Filename)
		if r.Metadata.Interviewee != "" {
			fmt.Fprintf(&b, "[Interviewee: %s]\n", r.Metadata.Interviewee)
		}
		if r.Metadata.Role != "" {
			fmt.Fprintf(&b, "[Role: %s]\n", r.Metadata.Role)
		}
		if r.Metadata.Company != "" {
			fmt.Fprintf(&b, "[Company: %s]\n", r.Metadata.Company)
		}
		b.WriteString("\n")
		for _, t := range r.Turns {
			if t.Role != "" {
				fmt.Fprintf(&b, "%s (%s): %s\n", t.Speaker, t.Role, t.Text)
			} else {
				fmt.Fprintf(&b, "%s: %s\n", t.Speaker, t.Text)
			}
		}
	}
	return b.String()
}

// ClaudeBackend implements AIBackend over the shared Claude client.
type ClaudeBackend struct {
	Client *claude.Client
}

// Extract sends the rendered prompt and parses the JSON response. A response
// that fails to parse is returned as an error; the caller treats it as a
// transient failure under its retry budget.
func (c *ClaudeBackend) Extract(ctx context.Context, prompt string) (AIResponse, error) {
	text, err := c.Client.Complete(ctx, systemPrompt, prompt)
	if err != nil {
		return AIResponse{}, err
	}

	var resp AIResponse
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		return AIResponse{}, fmt.Errorf("parsing extraction response: %w", err)
	}
	return resp, nil
}
