// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package rank scores extracted problems on the reach/intensity/user-value/
// confidence rubric and produces a strict total order with dense 1-based
// ranks. Evidence-strength guardrails are enforced mechanically after
// scoring, and equal raw totals are resolved head-to-head by a documented
// deterministic rule.
package rank

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mesh-intelligence/feedback-engine/pkg/types"
)

// ErrNothingToRank means the ranker received an empty problem set.
var ErrNothingToRank = errors.New("no problems to rank")

// AIBackend abstracts the reasoning engine so tests can supply a mock.
// Score handles one rendered per-problem prompt and returns the parsed
// response.
type AIBackend interface {
	Score(ctx context.Context, prompt string) (AIScore, error)
}

// AIScore is the structured scoring response from the reasoning engine for
// one problem. The engine's arithmetic is never trusted; the total is always
// recomputed from the dimensions.
type AIScore struct {
	Reach      int    `json:"reach"`
	Intensity  int    `json:"intensity"`
	UserValue  int    `json:"user_value"`
	Confidence int    `json:"confidence"`
	Reasoning  string `json:"reasoning"`
	Tradeoffs  string `json:"tradeoffs"`
}

// backoffBase controls the base duration for exponential backoff. Tests
// override this to avoid real sleeps.
var backoffBase = time.Second

const (
	defaultMaxRetries = 2
	defaultParallel   = 4

	// minTranscriptsForFullConfidence is the contributing-transcript count
	// below which confidence is capped at 2.
	minTranscriptsForFullConfidence = 3
)

// Rank attaches a score to every problem and returns the full ranked
// sequence, ordered rank 1..N. Scoring calls are issued concurrently (one
// outstanding request per problem, bounded by cfg.Parallel) and reassembled
// in input order before guardrails and ordering run. Any stage-level
// invariant violation aborts the run; partial ranked output is never
// returned.
func Rank(ctx context.Context, backend AIBackend, problems []types.Problem, transcriptCount int, cfg types.RankingConfig) ([]types.RankedProblem, error) {
	if len(problems) == 0 {
		return nil, ErrNothingToRank
	}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	parallel := cfg.Parallel
	if parallel <= 0 {
		parallel = defaultParallel
	}

	// Fan out one scoring unit per problem; results land at the problem's
	// input index so reassembly is deterministic regardless of completion
	// order.
	scores := make([]types.Score, len(problems))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for i, p := range problems {
		i, p := i, p
		g.Go(func() error {
			s, err := scoreWithRetry(gctx, backend, p, transcriptCount, maxRetries)
			if err != nil {
				return fmt.Errorf("scoring problem %q: %w", p.Title, err)
			}
			scores[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Guardrails are post-conditions corrected mechanically, not left to
	// the engine's discretion.
	for i := range scores {
		applyGuardrails(&scores[i], problems[i], transcriptCount)
	}

	ranked := make([]types.RankedProblem, len(problems))
	for i := range problems {
		ranked[i] = types.RankedProblem{Problem: problems[i], Score: scores[i]}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return compare(ranked[i], ranked[j]) < 0
	})

	annotateTieBreaks(ranked)

	for i := range ranked {
		ranked[i].Rank = i + 1
	}

	if err := validateRanking(ranked, transcriptCount); err != nil {
		return nil, fmt.Errorf("ranking invariant violated: %w", err)
	}

	return ranked, nil
}

// scoreWithRetry calls the engine for one problem with exponential backoff,
// retrying schema-invalid responses within the budget.
func scoreWithRetry(ctx context.Context, backend AIBackend, p types.Problem, transcriptCount, maxRetries int) (types.Score, error) {
	prompt := buildPrompt(p, transcriptCount)

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * backoffBase
			select {
			case <-ctx.Done():
				return types.Score{}, ctx.Err()
			case <-time.After(backoff):
			}
		}

		resp, err := backend.Score(ctx, prompt)
		if err != nil {
			lastErr = err
			continue
		}

		s := types.Score{
			Reach:      resp.Reach,
			Intensity:  resp.Intensity,
			UserValue:  resp.UserValue,
			Confidence: resp.Confidence,
			Reasoning:  strings.TrimSpace(resp.Reasoning),
			Tradeoffs:  strings.TrimSpace(resp.Tradeoffs),
		}
		s.Total = s.Sum()

		if err := s.Validate(); err != nil {
			lastErr = fmt.Errorf("invalid score: %w", err)
			continue
		}
		return s, nil
	}

	return types.Score{}, fmt.Errorf("after %d retries: %w", maxRetries, lastErr)
}

// applyGuardrails enforces the evidence-strength constraints and recomputes
// the total:
//   - a problem mentioned by exactly one speaker has confidence 1;
//   - with fewer than 3 contributing transcripts no confidence exceeds 2.
func applyGuardrails(s *types.Score, p types.Problem, transcriptCount int) {
	if len(p.MentionedBy) == 1 {
		s.Confidence = types.MinConfidence
	}
	if transcriptCount < minTranscriptsForFullConfidence && s.Confidence > 2 {
		s.Confidence = 2
	}
	s.Total = s.Sum()
}

// tieBreakDimensions orders the head-to-head criteria applied when two
// problems have equal totals: stronger evidence first, then breadth and
// severity, with alphabetical title as the final deterministic fallback.
var tieBreakDimensions = []struct {
	name  string
	value func(types.RankedProblem) int
}{
	{"confidence", func(r types.RankedProblem) int { return r.Score.Confidence }},
	{"reach", func(r types.RankedProblem) int { return r.Score.Reach }},
	{"intensity", func(r types.RankedProblem) int { return r.Score.Intensity }},
	{"user value", func(r types.RankedProblem) int { return r.Score.UserValue }},
	{"evidence breadth", func(r types.RankedProblem) int { return len(r.Evidence) }},
}

// compare orders two ranked problems: descending total, then the tie-break
// dimensions descending, then title ascending. The result is a strict weak
// order, so ranking the same scored set twice yields the same sequence.
func compare(a, b types.RankedProblem) int {
	if a.Score.Total != b.Score.Total {
		return b.Score.Total - a.Score.Total
	}
	for _, dim := range tieBreakDimensions {
		if av, bv := dim.value(a), dim.value(b); av != bv {
			return bv - av
		}
	}
	return strings.Compare(a.Title, b.Title)
}

// annotateTieBreaks records the head-to-head rationale on both parties of
// every adjacent equal-total pair, naming the deciding dimension.
func annotateTieBreaks(ranked []types.RankedProblem) {
	for i := 0; i+1 < len(ranked); i++ {
		w, l := &ranked[i], &ranked[i+1]
		if w.Score.Total != l.Score.Total {
			continue
		}
		rationale := decidingDimension(*w, *l)
		w.TieBreak = fmt.Sprintf("tied at %d with %q; ranked higher on %s", w.Score.Total, l.Title, rationale)
		l.TieBreak = fmt.Sprintf("tied at %d with %q; ranked lower on %s", l.Score.Total, w.Title, rationale)
	}
}

// decidingDimension names the first dimension that separates two equal-total
// problems, with the compared values.
func decidingDimension(w, l types.RankedProblem) string {
	for _, dim := range tieBreakDimensions {
		if wv, lv := dim.value(w), dim.value(l); wv != lv {
			return fmt.Sprintf("%s (%d vs %d)", dim.name, wv, lv)
		}
	}
	return "alphabetical title order"
}

// validateRanking checks the stage postconditions: dense ranks, valid
// scores, non-increasing totals, guardrails held, and a recorded rationale
// for every surviving total collision.
func validateRanking(ranked []types.RankedProblem, transcriptCount int) error {
	for i, r := range ranked {
		if r.Rank != i+1 {
			return fmt.Errorf("rank at position %d is %d, want %d", i, r.Rank, i+1)
		}
		if err := r.Score.Validate(); err != nil {
			return fmt.Errorf("problem %q: %w", r.Title, err)
		}
		if len(r.MentionedBy) == 1 && r.Score.Confidence != types.MinConfidence {
			return fmt.Errorf("problem %q: single mention but confidence %d", r.Title, r.Score.Confidence)
		}
		if transcriptCount < minTranscriptsForFullConfidence && r.Score.Confidence > 2 {
			return fmt.Errorf("problem %q: confidence %d with only %d transcripts", r.Title, r.Score.Confidence, transcriptCount)
		}
		if i > 0 {
			prev := ranked[i-1]
			if r.Score.Total > prev.Score.Total {
				return fmt.Errorf("totals out of order at rank %d", r.Rank)
			}
			if r.Score.Total == prev.Score.Total && (r.TieBreak == "" || prev.TieBreak == "") {
				return fmt.Errorf("unresolved tie between %q and %q", prev.Title, r.Title)
			}
		}
	}
	return nil
}
