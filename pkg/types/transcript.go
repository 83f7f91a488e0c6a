// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the shared data model for the feedback pipeline:
// transcripts, problems, scores, ranked output, and build specifications.
package types

import "strings"

// SpeakerTurn is a single utterance within an interview transcript.
type SpeakerTurn struct {
	// Speaker is the name as it appears in the transcript (e.g. "Sarah Chen").
	Speaker string `json:"speaker" yaml:"speaker"`

	// Role is the speaker's role if the transcript annotates one.
	Role string `json:"role,omitempty" yaml:"role,omitempty"`

	// Text is the utterance content.
	Text string `json:"text" yaml:"text"`
}

// TranscriptMetadata holds optional header fields parsed from a transcript.
type TranscriptMetadata struct {
	Interviewee string `json:"interviewee,omitempty" yaml:"interviewee,omitempty"`
	Role        string `json:"role,omitempty" yaml:"role,omitempty"`
	Company     string `json:"company,omitempty" yaml:"company,omitempty"`
	Date        string `json:"date,omitempty" yaml:"date,omitempty"`
	UserType    string `json:"user_type,omitempty" yaml:"user_type,omitempty"`
}

// TranscriptRecord is one interview: an ordered sequence of speaker turns
// plus whatever metadata the source file carried. Records are immutable once
// loaded; the pipeline consumes them during extraction and discards them.
type TranscriptRecord struct {
	// Filename is the source file name, used in prompts and error messages.
	Filename string `json:"filename" yaml:"filename"`

	// Turns is the ordered sequence of utterances.
	Turns []SpeakerTurn `json:"turns" yaml:"turns"`

	// Metadata holds the optional header fields.
	Metadata TranscriptMetadata `json:"metadata" yaml:"metadata"`
}

// HasContent reports whether the record carries at least one turn with
// substantive text. Whitespace-only turns do not count; a record of blank
// turns must not inflate the contributing-transcript count that the
// confidence guardrails depend on.
func (r TranscriptRecord) HasContent() bool {
	for _, t := range r.Turns {
		if strings.TrimSpace(t.Text) != "" {
			return true
		}
	}
	return false
}
