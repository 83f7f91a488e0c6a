// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ingest loads interview transcripts from a directory and parses
// them into normalized records: ordered speaker turns plus optional header
// metadata. It is the boundary collaborator in front of the pipeline; the
// core stages consume its output and never re-read source files.
package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/mesh-intelligence/feedback-engine/pkg/types"
)

// metadataLines is how many leading lines are scanned for header fields.
const metadataLines = 20

// metadataPrefixes maps record fields to the header prefixes that populate
// them. Matching is case-insensitive and first-match-wins per field.
var metadataPrefixes = map[string][]string{
	"interviewee": {"interviewee:", "name:", "participant:"},
	"role":        {"role:", "title:", "position:"},
	"company":     {"company:", "organization:", "org:"},
	"date":        {"date:", "interview date:"},
	"user_type":   {"user type:", "segment:", "type:"},
}

// speakerLine matches "Name: text" or "Name (Role): text" turn openers.
// Names are short (at most four words) to avoid treating prose containing a
// colon as a new turn.
var speakerLine = regexp.MustCompile(`^([A-Za-z][A-Za-z.'\-]*(?: [A-Za-z.'\-]+){0,3})(?:\s*\(([^)]+)\))?:\s*(.*)$`)

// Load reads all .txt and .md files in dir, in sorted filename order, and
// parses each into a TranscriptRecord. Files the pipeline cannot use (no
// content at all) are still returned; callers filter with HasContent.
func Load(dir string) ([]types.TranscriptRecord, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading transcript directory %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext == ".txt" || ext == ".md" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	records := make([]types.TranscriptRecord, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("reading transcript %s: %w", name, err)
		}
		records = append(records, Parse(name, string(data)))
	}

	return records, nil
}

// Parse converts one transcript file into a record. Header metadata is
// scanned in the first 20 lines; speaker turns are detected from "Name:"
// prefixes, with unprefixed lines appended to the current turn. A transcript
// with no speaker-prefixed lines becomes a single turn attributed to the
// interviewee from metadata, or "Unknown".
func Parse(filename, content string) types.TranscriptRecord {
	lines := strings.Split(content, "\n")

	rec := types.TranscriptRecord{Filename: filename}
	rec.Metadata = parseMetadata(lines)

	roles := map[string]string{}
	if rec.Metadata.Interviewee != "" && rec.Metadata.Role != "" {
		roles[rec.Metadata.Interviewee] = rec.Metadata.Role
	}

	var current *types.SpeakerTurn
	var preamble []string

	flush := func() {
		if current != nil {
			current.Text = strings.TrimSpace(current.Text)
			if current.Text != "" {
				rec.Turns = append(rec.Turns, *current)
			}
			current = nil
		}
	}

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)

		if i < metadataLines && isMetadataLine(trimmed) {
			continue
		}
		if trimmed == "" || strings.HasPrefix(trimmed, "#") || isSeparator(trimmed) {
			continue
		}

		if m := speakerLine.FindStringSubmatch(trimmed); m != nil {
			flush()
			speaker, role, text := m[1], m[2], m[3]
			if role != "" {
				roles[speaker] = role
			} else {
				role = roles[speaker]
			}
			current = &types.SpeakerTurn{Speaker: speaker, Role: role, Text: text}
			continue
		}

		if current != nil {
			if current.Text == "" {
				current.Text = trimmed
			} else {
				current.Text += " " + trimmed
			}
		} else {
			preamble = append(preamble, trimmed)
		}
	}
	flush()

	// Unstructured transcript: treat the whole body as one turn.
	if len(rec.Turns) == 0 && len(preamble) > 0 {
		speaker := rec.Metadata.Interviewee
		if speaker == "" {
			speaker = "Unknown"
		}
		rec.Turns = append(rec.Turns, types.SpeakerTurn{
			Speaker: speaker,
			Role:    rec.Metadata.Role,
			Text:    strings.Join(preamble, " "),
		})
	}

	return rec
}

// parseMetadata scans the leading lines for known header prefixes.
func parseMetadata(lines []string) types.TranscriptMetadata {
	var md types.TranscriptMetadata

	limit := metadataLines
	if len(lines) < limit {
		limit = len(lines)
	}

	set := func(field, value string) {
		value = strings.TrimSpace(strings.Trim(strings.TrimSpace(value), ":"))
		if value == "" {
			return
		}
		switch field {
		case "interviewee":
			if md.Interviewee == "" {
				md.Interviewee = value
			}
		case "role":
			if md.Role == "" {
				md.Role = value
			}
		case "company":
			if md.Company == "" {
				md.Company = value
			}
		case "date":
			if md.Date == "" {
				md.Date = value
			}
		case "user_type":
			if md.UserType == "" {
				md.UserType = value
			}
		}
	}

	for _, line := range lines[:limit] {
		lower := strings.ToLower(strings.TrimSpace(line))
		for field, prefixes := range metadataPrefixes {
			for _, prefix := range prefixes {
				if strings.HasPrefix(lower, prefix) {
					set(field, strings.TrimSpace(line)[len(prefix):])
					break
				}
			}
		}
	}

	return md
}

// isMetadataLine reports whether a line matches a known header prefix.
func isMetadataLine(line string) bool {
	lower := strings.ToLower(line)
	for _, prefixes := range metadataPrefixes {
		for _, prefix := range prefixes {
			if strings.HasPrefix(lower, prefix) {
				return true
			}
		}
	}
	return false
}

// isSeparator reports whether a line is a horizontal rule such as "---".
func isSeparator(line string) bool {
	if len(line) < 3 {
		return false
	}
	for _, c := range line {
		if c != '-' && c != '=' && c != '*' {
			return false
		}
	}
	return true
}
