// Package buildspec expands the top-ranked problem into a structured,
// agent-consumable build specification.
package buildspec

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/mesh-intelligence/feedback-engine/pkg/types"
)

// ErrEmptyEvidence means the input problem carries no evidence. Generation
// fails outward rather than synthesizing quotes.
var ErrEmptyEvidence = errors.New("problem has no evidence")

// ErrNotTopRanked means the input problem is not the rank-1 entry.
var ErrNotTopRanked = errors.New("problem is not the top-ranked entry")

// AIBackend abstracts the reasoning engine so tests can supply a mock.
type AIBackend interface {
	Generate(ctx context.Context, prompt string) (AISpec, error)
}

// AISpec is the structured response from the reasoning engine. It covers
// nine of the ten spec sections; evidence_summary is curated mechanically
// from the problem's own evidence and never taken from the engine.
type AISpec struct {
	ProblemStatement      string                 `json:"problem_statement"`
	UserStories           []types.UserStory      `json:"user_stories"`
	ProposedSolution      types.ProposedSolution `json:"proposed_solution"`
	AcceptanceCriteria    []string               `json:"acceptance_criteria"`
	OutOfScope            []string               `json:"out_of_scope"`
	SuccessMetrics        types.SuccessMetrics   `json:"success_metrics"`
	Risks                 []types.Risk           `json:"risks"`
	ImplementationHints   []string               `json:"implementation_hints"`
	PriorityJustification string                 `json:"priority_justification"`
}

// backoffBase controls the base duration for exponential backoff. Tests
// override this to avoid real sleeps.
var backoffBase = time.Second

const defaultMaxRetries = 2

// Generate produces a build spec for the rank-1 problem. Responses that
// violate the section contracts are retried within the budget; precondition
// violations (empty evidence, wrong rank) fail immediately.
func Generate(ctx context.Context, backend AIBackend, top types.RankedProblem, cfg types.SpecConfig) (*types.BuildSpec, error) {
	if top.Rank != 1 {
		return nil, fmt.Errorf("generating spec for %q (rank %d): %w", top.Title, top.Rank, ErrNotTopRanked)
	}
	if len(top.Evidence) == 0 {
		return nil, fmt.Errorf("generating spec for %q: %w", top.Title, ErrEmptyEvidence)
	}

	prompt := buildPrompt(top)

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * backoffBase
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		resp, err := backend.Generate(ctx, prompt)
		if err != nil {
			lastErr = err
			continue
		}

		spec, err := assemble(resp, top)
		if err != nil {
			lastErr = fmt.Errorf("invalid spec response: %w", err)
			continue
		}
		return spec, nil
	}

	return nil, fmt.Errorf("generating spec after %d retries: %w", maxRetries, lastErr)
}

// assemble validates the engine response against the section contracts and
// combines it with the mechanically curated sections.
func assemble(resp AISpec, top types.RankedProblem) (*types.BuildSpec, error) {
	if !referencesEvidence(resp.ProblemStatement, top) {
		return nil, errors.New("problem_statement does not reference the evidence")
	}

	justification := strings.TrimSpace(resp.PriorityJustification)
	if justification == "" {
		justification = fmt.Sprintf(
			"Ranked #1 with an impact score of %d/%d (reach %d/%d, intensity %d/%d, user value %d/%d, confidence %d/%d). %s",
			top.Score.Total, types.MaxTotal,
			top.Score.Reach, types.MaxReach,
			top.Score.Intensity, types.MaxIntensity,
			top.Score.UserValue, types.MaxUserValue,
			top.Score.Confidence, types.MaxConfidence,
			top.Score.Reasoning,
		)
	}

	spec := &types.BuildSpec{
		ProblemStatement:      strings.TrimSpace(resp.ProblemStatement),
		UserStories:           resp.UserStories,
		ProposedSolution:      resp.ProposedSolution,
		AcceptanceCriteria:    resp.AcceptanceCriteria,
		OutOfScope:            resp.OutOfScope,
		SuccessMetrics:        resp.SuccessMetrics,
		Risks:                 resp.Risks,
		ImplementationHints:   resp.ImplementationHints,
		EvidenceSummary:       curateEvidence(top.Evidence),
		PriorityJustification: justification,
	}

	if len(spec.OutOfScope) == 0 {
		return nil, errors.New("empty out_of_scope")
	}
	if len(spec.SuccessMetrics.Leading)+len(spec.SuccessMetrics.Lagging) == 0 {
		return nil, errors.New("empty success_metrics")
	}
	if len(spec.ProposedSolution.KeyFeatures) == 0 {
		return nil, errors.New("empty proposed_solution.key_features")
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return spec, nil
}

// curateEvidence selects the presented subset of the problem's evidence,
// verbatim, capped at MaxPresentedEvidence.
func curateEvidence(evidence []types.Evidence) []types.Evidence {
	if len(evidence) <= types.MaxPresentedEvidence {
		out := make([]types.Evidence, len(evidence))
		copy(out, evidence)
		return out
	}
	out := make([]types.Evidence, types.MaxPresentedEvidence)
	copy(out, evidence[:types.MaxPresentedEvidence])
	return out
}

// referencesEvidence reports whether the statement cites the problem's
// research: either a contributing speaker by name or a fragment of one of
// the quotes.
func referencesEvidence(statement string, top types.RankedProblem) bool {
	if statement == "" {
		return false
	}
	lower := strings.ToLower(statement)
	for _, s := range top.MentionedBy {
		if s != "" && strings.Contains(lower, strings.ToLower(s)) {
			return true
		}
	}
	for _, ev := range top.Evidence {
		fragment := ev.Quote
		if len(fragment) > 40 {
			fragment = fragment[:40]
		}
		if fragment != "" && strings.Contains(lower, strings.ToLower(fragment)) {
			return true
		}
	}
	return false
}
