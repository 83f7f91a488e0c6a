// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"fmt"
)

// MaxPresentedEvidence is the number of evidence quotes a problem carries in
// its presented form. Extraction may gather more internally before truncation.
const MaxPresentedEvidence = 3

// Score dimension bounds.
const (
	MinReach      = 1
	MaxReach      = 5
	MinIntensity  = 1
	MaxIntensity  = 5
	MinUserValue  = 1
	MaxUserValue  = 3
	MinConfidence = 1
	MaxConfidence = 3

	MinTotal = MinReach + MinIntensity + MinUserValue + MinConfidence
	MaxTotal = MaxReach + MaxIntensity + MaxUserValue + MaxConfidence
)

// Evidence is one verbatim quote substantiating a problem, with attribution.
// The quote must be an exact substring of a single source turn's text.
type Evidence struct {
	Quote   string `json:"quote" yaml:"quote"`
	Speaker string `json:"speaker" yaml:"speaker"`
	Role    string `json:"role,omitempty" yaml:"role,omitempty"`
}

// Problem is a distinct customer-reported issue extracted from transcripts.
// Problems are read-only after extraction; the ranker attaches a Score but
// never alters the problem itself.
type Problem struct {
	// ID is a stable identifier derived from title and description,
	// consistent across re-extractions of unchanged content.
	ID string `json:"id" yaml:"id"`

	// Title names the problem (unique within an extraction batch).
	Title string `json:"title" yaml:"title"`

	// Description explains what is broken and why it matters.
	Description string `json:"description" yaml:"description"`

	// Evidence holds verbatim quotes, at most MaxPresentedEvidence.
	Evidence []Evidence `json:"evidence" yaml:"evidence"`

	// MentionedBy is the sorted set of speakers whose turns contributed
	// evidence.
	MentionedBy []string `json:"mentioned_by" yaml:"mentioned_by"`

	// UrgencySignals captures emotionally charged language from the
	// contributing turns ("completely broken", "huge pain", ...).
	UrgencySignals []string `json:"urgency_signals,omitempty" yaml:"urgency_signals,omitempty"`
}

// Validate checks the structural invariants of an extracted problem.
// A problem with no evidence is invalid output, not a degraded case.
func (p Problem) Validate() error {
	if p.Title == "" {
		return errors.New("problem has empty title")
	}
	if len(p.Evidence) == 0 {
		return fmt.Errorf("problem %q has no evidence", p.Title)
	}
	for i, ev := range p.Evidence {
		if ev.Quote == "" {
			return fmt.Errorf("problem %q: evidence %d has empty quote", p.Title, i)
		}
	}
	if len(p.MentionedBy) == 0 {
		return fmt.Errorf("problem %q has empty mentioned_by", p.Title)
	}
	return nil
}

// Score is the four-dimension rubric result attached to exactly one problem.
type Score struct {
	// Reach is the breadth of affected users (1-5).
	Reach int `json:"reach" yaml:"reach"`

	// Intensity is the severity of the pain (1-5).
	Intensity int `json:"intensity" yaml:"intensity"`

	// UserValue is the importance of the affected segment (1-3).
	UserValue int `json:"user_value" yaml:"user_value"`

	// Confidence is the strength of the evidence (1-3), constrained by
	// the ranker's guardrails.
	Confidence int `json:"confidence" yaml:"confidence"`

	// Total is always the sum of the four dimensions.
	Total int `json:"total" yaml:"total"`

	// Reasoning explains the rank, citing specific evidence.
	Reasoning string `json:"reasoning" yaml:"reasoning"`

	// Tradeoffs states the consequence of not solving the problem.
	Tradeoffs string `json:"tradeoffs" yaml:"tradeoffs"`
}

// Sum returns the dimension sum, independent of the stored Total.
func (s Score) Sum() int {
	return s.Reach + s.Intensity + s.UserValue + s.Confidence
}

// Validate checks dimension ranges, total consistency, and the presence of
// problem-specific justification text.
func (s Score) Validate() error {
	if s.Reach < MinReach || s.Reach > MaxReach {
		return fmt.Errorf("reach %d out of range [%d,%d]", s.Reach, MinReach, MaxReach)
	}
	if s.Intensity < MinIntensity || s.Intensity > MaxIntensity {
		return fmt.Errorf("intensity %d out of range [%d,%d]", s.Intensity, MinIntensity, MaxIntensity)
	}
	if s.UserValue < MinUserValue || s.UserValue > MaxUserValue {
		return fmt.Errorf("user_value %d out of range [%d,%d]", s.UserValue, MinUserValue, MaxUserValue)
	}
	if s.Confidence < MinConfidence || s.Confidence > MaxConfidence {
		return fmt.Errorf("confidence %d out of range [%d,%d]", s.Confidence, MinConfidence, MaxConfidence)
	}
	if s.Total != s.Sum() {
		return fmt.Errorf("total %d does not equal dimension sum %d", s.Total, s.Sum())
	}
	if s.Reasoning == "" {
		return errors.New("score has empty reasoning")
	}
	if s.Tradeoffs == "" {
		return errors.New("score has empty tradeoffs")
	}
	return nil
}

// RankedProblem is a problem with its score and final 1-based rank. Ranks
// are dense with no ties; TieBreak records the head-to-head rationale when
// a raw total collision had to be resolved.
type RankedProblem struct {
	Problem `yaml:",inline"`

	Score Score `json:"score" yaml:"score"`

	Rank int `json:"rank" yaml:"rank"`

	TieBreak string `json:"tie_break,omitempty" yaml:"tie_break,omitempty"`
}
