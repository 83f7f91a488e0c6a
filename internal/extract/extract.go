// Package extract clusters interview transcripts into a bounded set of
// distinct customer problems with verbatim, speaker-attributed evidence.
package extract

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/mesh-intelligence/feedback-engine/pkg/types"
)

// ErrInsufficientInput means no transcript carried a non-empty turn.
var ErrInsufficientInput = errors.New("insufficient input: no transcript with substantive content")

// ErrNoProblems means the engine found no distinguishable problems in an
// otherwise valid response. Callers surface this explicitly rather than
// treating it as an empty list.
var ErrNoProblems = errors.New("no problems found in transcripts")

// AIBackend abstracts the reasoning engine so tests can supply a mock.
// Extract handles one rendered prompt covering all transcripts and returns
// the parsed response.
type AIBackend interface {
	Extract(ctx context.Context, prompt string) (AIResponse, error)
}

// AIResponse is the structured response from the reasoning engine.
type AIResponse struct {
	Problems       []AIProblem `json:"problems"`
	SynthesisNotes string      `json:"synthesis_notes"`
}

// AIProblem is a single clustered problem as returned by the engine.
type AIProblem struct {
	Title          string       `json:"title"`
	Description    string       `json:"description"`
	Evidence       []AIEvidence `json:"evidence"`
	UrgencySignals []string     `json:"urgency_signals"`
}

// AIEvidence is one quote with the engine's speaker attribution. The
// attribution is advisory; the verbatim match against source turns decides
// the recorded speaker.
type AIEvidence struct {
	Quote   string `json:"quote"`
	Speaker string `json:"speaker"`
}

// backoffBase controls the base duration for exponential backoff. Tests
// override this to avoid real sleeps.
var backoffBase = time.Second

const (
	defaultMaxRetries     = 2
	defaultMaxPromptBytes = 120000
	defaultMinProblems    = 4
	defaultMaxProblems    = 7
)

// Extract clusters the given transcripts into distinct problems. It issues
// one reasoning-engine call over all transcripts, validates the response
// against the source turns, and retries on schema or verbatim-evidence
// violations within the configured budget.
func Extract(ctx context.Context, backend AIBackend, records []types.TranscriptRecord, cfg types.ExtractionConfig) ([]types.Problem, error) {
	var usable []types.TranscriptRecord
	for _, r := range records {
		if r.HasContent() {
			usable = append(usable, r)
		}
	}
	if len(usable) == 0 {
		return nil, ErrInsufficientInput
	}

	prompt := buildPrompt(usable, cfg)

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

		resp, err := backend.Extract(ctx, prompt)
		if err != nil {
			lastErr = err
			continue
		}

		problems, validationErrors := convertProblems(resp.Problems, usable)
		if len(validationErrors) > 0 {
			lastErr = fmt.Errorf("invalid extraction response: %s", strings.Join(validationErrors, "; "))
			continue
		}

		if len(problems) == 0 {
			return nil, ErrNoProblems
		}
		return problems, nil
	}

	return nil, fmt.Errorf("extracting problems after %d retries: %w", maxRetries, lastErr)
}

// convertProblems validates engine output against the source transcripts and
// converts it to the domain model. Quotes that are not verbatim substrings
// of a source turn are dropped; a problem left with no verbatim evidence is
// a validation error (fabricated evidence), as is a duplicate title.
func convertProblems(items []AIProblem, records []types.TranscriptRecord) ([]types.Problem, []string) {
	var result []types.Problem
	var errs []string

	seenTitles := make(map[string]bool)

	for i, item := range items {
		title := strings.TrimSpace(item.Title)
		if title == "" {
			errs = append(errs, fmt.Sprintf("problem %d: empty title", i))
			continue
		}
		if seenTitles[strings.ToLower(title)] {
			errs = append(errs, fmt.Sprintf("problem %d: duplicate title %q", i, title))
			continue
		}
		seenTitles[strings.ToLower(title)] = true

		if strings.TrimSpace(item.Description) == "" {
			errs = append(errs, fmt.Sprintf("problem %q: empty description", title))
			continue
		}

		var evidence []types.Evidence
		speakers := make(map[string]bool)
		for _, ev := range item.Evidence {
			turn, ok := matchTurn(records, ev.Quote)
			if !ok {
				// Not verbatim; the quote cannot be traced to a turn.
				continue
			}
			evidence = append(evidence, types.Evidence{
				Quote:   normalizeQuote(ev.Quote),
				Speaker: turn.Speaker,
				Role:    turn.Role,
			})
			speakers[turn.Speaker] = true
		}

		if len(evidence) == 0 {
			errs = append(errs, fmt.Sprintf("problem %q: no verbatim evidence", title))
			continue
		}
		if len(evidence) > types.MaxPresentedEvidence {
			evidence = evidence[:types.MaxPresentedEvidence]
		}

		mentionedBy := make([]string, 0, len(speakers))
		for s := range speakers {
			mentionedBy = append(mentionedBy, s)
		}
		sort.Strings(mentionedBy)

		var signals []string
		for _, s := range item.UrgencySignals {
			if s = strings.TrimSpace(s); s != "" {
				signals = append(signals, s)
			}
		}

		p := types.Problem{
			ID:             stableID(title, item.Description),
			Title:          title,
			Description:    strings.TrimSpace(item.Description),
			Evidence:       evidence,
			MentionedBy:    mentionedBy,
			UrgencySignals: signals,
		}
		if err := p.Validate(); err != nil {
			errs = append(errs, err.Error())
			continue
		}
		result = append(result, p)
	}

	return result, errs
}

// matchTurn finds the source turn whose text contains the quote verbatim.
func matchTurn(records []types.TranscriptRecord, quote string) (types.SpeakerTurn, bool) {
	q := normalizeQuote(quote)
	if q == "" {
		return types.SpeakerTurn{}, false
	}
	for _, r := range records {
		for _, t := range r.Turns {
			if strings.Contains(t.Text, q) {
				return t, true
			}
		}
	}
	return types.SpeakerTurn{}, false
}

// normalizeQuote trims whitespace and surrounding quotation marks that
// engines sometimes add around an otherwise verbatim quote.
func normalizeQuote(q string) string {
	q = strings.TrimSpace(q)
	q = strings.Trim(q, `"`)
	q = strings.TrimPrefix(q, "“")
	q = strings.TrimSuffix(q, "”")
	return strings.TrimSpace(q)
}

// stableID generates a deterministic ID from title and description. The ID
// is the first 12 hex characters of SHA-256(title + description).
func stableID(title, description string) string {
	h := sha256.New()
	h.Write([]byte(title))
	h.Write([]byte(description))
	return fmt.Sprintf("%x", h.Sum(nil))[:12]
}
