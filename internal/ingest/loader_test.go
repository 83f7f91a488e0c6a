package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mesh-intelligence/feedback-engine/pkg/types"
)

const structuredTranscript = `Interviewee: Sarah Chen
Role: Product Manager
Company: Acme Corp
Date: 2026-07-14
User Type: paying

# Interview notes

---

Interviewer: How do you export reports today?

Sarah Chen: The export flow is completely broken.
We lose hours every week re-entering data.

Interviewer: Anything else?

Sarah Chen: Honestly the search never finds anything either.
`

func TestParseStructured(t *testing.T) {
	rec := Parse("sarah.md", structuredTranscript)

	md := rec.Metadata
	if md.Interviewee != "Sarah Chen" || md.Role != "Product Manager" ||
		md.Company != "Acme Corp" || md.Date != "2026-07-14" || md.UserType != "paying" {
		t.Errorf("metadata = %+v", md)
	}

	if len(rec.Turns) != 4 {
		t.Fatalf("got %d turns, want 4: %+v", len(rec.Turns), rec.Turns)
	}

	// Continuation lines join the open turn with a single space.
	second := rec.Turns[1]
	if second.Speaker != "Sarah Chen" {
		t.Errorf("turn speaker = %q", second.Speaker)
	}
	want := "The export flow is completely broken. We lose hours every week re-entering data."
	if second.Text != want {
		t.Errorf("turn text = %q, want %q", second.Text, want)
	}

	// The metadata role carries onto the interviewee's turns.
	if second.Role != "Product Manager" {
		t.Errorf("turn role = %q, want Product Manager", second.Role)
	}
	if !rec.HasContent() {
		t.Error("structured transcript reported as empty")
	}
}

func TestParseInlineRoles(t *testing.T) {
	content := `Marcus Johnson (Engineer): Navigation is a nightmare.

Dana: Agreed.

Marcus Johnson: I can never find where reports went.
`
	rec := Parse("team.txt", content)
	if len(rec.Turns) != 3 {
		t.Fatalf("got %d turns: %+v", len(rec.Turns), rec.Turns)
	}
	if rec.Turns[0].Role != "Engineer" {
		t.Errorf("first turn role = %q", rec.Turns[0].Role)
	}
	// A role seen once sticks to the speaker for later unannotated turns.
	if rec.Turns[2].Role != "Engineer" {
		t.Errorf("later turn role = %q, want remembered Engineer", rec.Turns[2].Role)
	}
	if rec.Turns[1].Speaker != "Dana" || rec.Turns[1].Role != "" {
		t.Errorf("turn = %+v", rec.Turns[1])
	}
}

func TestParseUnstructured(t *testing.T) {
	content := `Interviewee: Priya Patel
Role: Analyst

The dashboard takes forever to load.
Most mornings I just give up and query the database directly.
`
	rec := Parse("notes.txt", content)
	if len(rec.Turns) != 1 {
		t.Fatalf("got %d turns: %+v", len(rec.Turns), rec.Turns)
	}
	turn := rec.Turns[0]
	if turn.Speaker != "Priya Patel" || turn.Role != "Analyst" {
		t.Errorf("turn attribution = %q (%q)", turn.Speaker, turn.Role)
	}
	want := "The dashboard takes forever to load. Most mornings I just give up and query the database directly."
	if turn.Text != want {
		t.Errorf("turn text = %q", turn.Text)
	}
}

func TestParseUnstructuredNoMetadata(t *testing.T) {
	rec := Parse("raw.txt", "Everything is slow lately.\n")
	if len(rec.Turns) != 1 || rec.Turns[0].Speaker != "Unknown" {
		t.Errorf("turns = %+v, want single Unknown turn", rec.Turns)
	}
}

func TestParseEmpty(t *testing.T) {
	for _, content := range []string{"", "\n\n", "# Title only\n---\n"} {
		rec := Parse("empty.txt", content)
		if rec.HasContent() {
			t.Errorf("Parse(%q) reported content: %+v", content, rec.Turns)
		}
	}
}

func TestParseProseColonNotATurn(t *testing.T) {
	content := `Ana: Here is the thing about our deployment process which honestly nobody on the team fully understands: it fails silently.
`
	rec := Parse("ana.txt", content)
	if len(rec.Turns) != 1 {
		t.Fatalf("got %d turns: %+v", len(rec.Turns), rec.Turns)
	}
	if rec.Turns[0].Speaker != "Ana" {
		t.Errorf("speaker = %q", rec.Turns[0].Speaker)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"b_second.txt": "Ben: Second file.\n",
		"a_first.md":   "Ana: First file.\n",
		"ignored.pdf":  "binary stuff",
		"notes.json":   "{}",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	records, err := Load(dir)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2 (.txt and .md only): %+v", len(records), records)
	}
	if records[0].Filename != "a_first.md" || records[1].Filename != "b_second.txt" {
		t.Errorf("order = %s, %s; want sorted filenames", records[0].Filename, records[1].Filename)
	}
}

func TestLoadMissingDir(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist"))
	if err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestHasContent(t *testing.T) {
	empty := types.TranscriptRecord{Filename: "a.txt"}
	if empty.HasContent() {
		t.Error("record with no turns reported content")
	}
	blank := types.TranscriptRecord{Turns: []types.SpeakerTurn{{Speaker: "A", Text: "   "}}}
	if blank.HasContent() {
		t.Error("record with blank turn text reported content")
	}
}
