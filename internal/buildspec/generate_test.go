package buildspec

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/mesh-intelligence/feedback-engine/pkg/types"
)

func TestMain(m *testing.M) {
	// Override backoff to avoid real sleeps in retry tests.
	backoffBase = time.Millisecond
	os.Exit(m.Run())
}

type mockAIBackend struct {
	responses []AISpec
	errs      []error
	calls     int
}

func (m *mockAIBackend) Generate(_ context.Context, _ string) (AISpec, error) {
	i := m.calls
	m.calls++
	if i < len(m.errs) && m.errs[i] != nil {
		return AISpec{}, m.errs[i]
	}
	if i >= len(m.responses) {
		i = len(m.responses) - 1
	}
	return m.responses[i], nil
}

func topProblem() types.RankedProblem {
	return types.RankedProblem{
		Problem: types.Problem{
			ID:          "abc123def456",
			Title:       "Export flow loses work",
			Description: "Exports fail silently and users re-enter data by hand.",
			Evidence: []types.Evidence{
				{Quote: "The export flow is completely broken", Speaker: "Sarah Chen", Role: "PM"},
				{Quote: "We lose hours every week re-entering data", Speaker: "Sarah Chen", Role: "PM"},
				{Quote: "I stopped trusting the export button", Speaker: "Marcus Johnson"},
			},
			MentionedBy: []string{"Marcus Johnson", "Sarah Chen"},
		},
		Score: types.Score{
			Reach: 4, Intensity: 5, UserValue: 3, Confidence: 3, Total: 15,
			Reasoning: "Both speakers describe lost work with strong language.",
			Tradeoffs: "Manual re-entry continues to burn hours weekly.",
		},
		Rank: 1,
	}
}

func validResponse() AISpec {
	stories := make([]types.UserStory, types.UserStoryCount)
	for i := range stories {
		stories[i] = types.UserStory{
			Role:    fmt.Sprintf("user %d", i+1),
			Action:  "export a report without data loss",
			Benefit: "weekly reporting stops requiring manual re-entry",
		}
	}
	return AISpec{
		ProblemStatement: `Sarah Chen reports that "The export flow is completely broken", forcing hours of manual re-entry each week.`,
		UserStories:      stories,
		ProposedSolution: types.ProposedSolution{
			Summary:     "Make export transactional with explicit failure surfacing.",
			KeyFeatures: []string{"atomic export", "failure toast with retry"},
			DataModel:   "export_jobs table with status and error columns",
			APIChanges:  []string{"POST /exports returns job id"},
			Workflow:    "user triggers export, job runs async, UI polls status",
		},
		AcceptanceCriteria: []string{
			"a failed export shows an error within 5 seconds",
			"no partial files are written on failure",
			"a retried export reuses the original parameters",
			"export status is queryable by job id",
			"successful exports match the on-screen data",
		},
		OutOfScope:     []string{"scheduled exports", "new export formats"},
		SuccessMetrics: types.SuccessMetrics{Leading: []string{"export retry rate"}, Lagging: []string{"support tickets about exports"}},
		Risks: []types.Risk{
			{Description: "large exports time out", Category: types.RiskTechnical, Mitigation: "chunked writes"},
		},
		ImplementationHints:   []string{"reuse the existing job queue"},
		PriorityJustification: "Highest total score with evidence from multiple speakers.",
	}
}

func TestGenerate(t *testing.T) {
	top := topProblem()
	backend := &mockAIBackend{responses: []AISpec{validResponse()}}

	spec, err := Generate(context.Background(), backend, top, types.SpecConfig{})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if backend.calls != 1 {
		t.Errorf("backend calls = %d, want 1", backend.calls)
	}
	if len(spec.UserStories) != types.UserStoryCount {
		t.Errorf("user stories = %d, want %d", len(spec.UserStories), types.UserStoryCount)
	}
	if spec.PriorityJustification == "" {
		t.Error("empty priority_justification")
	}

	// The evidence summary is curated from the problem, verbatim, capped at
	// the presentation maximum.
	if len(spec.EvidenceSummary) != 3 {
		t.Fatalf("evidence_summary has %d entries, want 3", len(spec.EvidenceSummary))
	}
	for i, ev := range spec.EvidenceSummary {
		if ev != top.Evidence[i] {
			t.Errorf("evidence_summary[%d] = %+v, want verbatim %+v", i, ev, top.Evidence[i])
		}
	}
}

func TestGenerateEmptyEvidence(t *testing.T) {
	top := topProblem()
	top.Evidence = nil
	backend := &mockAIBackend{responses: []AISpec{validResponse()}}

	_, err := Generate(context.Background(), backend, top, types.SpecConfig{})
	if !errors.Is(err, ErrEmptyEvidence) {
		t.Fatalf("err = %v, want ErrEmptyEvidence", err)
	}
	if backend.calls != 0 {
		t.Errorf("backend called %d times despite precondition failure", backend.calls)
	}
}

func TestGenerateNotTopRanked(t *testing.T) {
	top := topProblem()
	top.Rank = 2
	backend := &mockAIBackend{responses: []AISpec{validResponse()}}

	_, err := Generate(context.Background(), backend, top, types.SpecConfig{})
	if !errors.Is(err, ErrNotTopRanked) {
		t.Fatalf("err = %v, want ErrNotTopRanked", err)
	}
	if backend.calls != 0 {
		t.Errorf("backend called %d times despite precondition failure", backend.calls)
	}
}

func TestGenerateRetriesInvalidResponse(t *testing.T) {
	bad := validResponse()
	bad.UserStories = bad.UserStories[:4]

	backend := &mockAIBackend{responses: []AISpec{bad, validResponse()}}

	spec, err := Generate(context.Background(), backend, topProblem(), types.SpecConfig{})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if backend.calls != 2 {
		t.Errorf("backend calls = %d, want 2", backend.calls)
	}
	if len(spec.UserStories) != types.UserStoryCount {
		t.Errorf("user stories = %d after retry", len(spec.UserStories))
	}
}

func TestGenerateRejectsUnreferencedStatement(t *testing.T) {
	bad := validResponse()
	bad.ProblemStatement = "Users are generally unhappy with the product."

	backend := &mockAIBackend{responses: []AISpec{bad}}

	cfg := types.SpecConfig{AIConfig: types.AIConfig{MaxRetries: 1}}
	_, err := Generate(context.Background(), backend, topProblem(), cfg)
	if err == nil {
		t.Fatal("expected error for statement that cites no evidence")
	}
	if !strings.Contains(err.Error(), "does not reference the evidence") {
		t.Errorf("err = %v", err)
	}
	if backend.calls != 2 {
		t.Errorf("backend calls = %d, want 2 (initial + 1 retry)", backend.calls)
	}
}

func TestGenerateBackfillsJustification(t *testing.T) {
	resp := validResponse()
	resp.PriorityJustification = ""

	backend := &mockAIBackend{responses: []AISpec{resp}}
	top := topProblem()

	spec, err := Generate(context.Background(), backend, top, types.SpecConfig{})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if !strings.Contains(spec.PriorityJustification, "15/16") {
		t.Errorf("backfilled justification %q does not restate the score", spec.PriorityJustification)
	}
	if !strings.Contains(spec.PriorityJustification, top.Score.Reasoning) {
		t.Errorf("backfilled justification %q drops the scoring reasoning", spec.PriorityJustification)
	}
}

func TestGenerateRetriesTransientError(t *testing.T) {
	backend := &mockAIBackend{
		responses: []AISpec{validResponse(), validResponse()},
		errs:      []error{errors.New("api down"), nil},
	}

	_, err := Generate(context.Background(), backend, topProblem(), types.SpecConfig{})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if backend.calls != 2 {
		t.Errorf("backend calls = %d, want 2", backend.calls)
	}
}

func TestCurateEvidence(t *testing.T) {
	evidence := []types.Evidence{
		{Quote: "one", Speaker: "A"},
		{Quote: "two", Speaker: "B"},
		{Quote: "three", Speaker: "C"},
		{Quote: "four", Speaker: "D"},
	}
	got := curateEvidence(evidence)
	if len(got) != types.MaxPresentedEvidence {
		t.Fatalf("got %d entries, want %d", len(got), types.MaxPresentedEvidence)
	}
	for i := range got {
		if got[i] != evidence[i] {
			t.Errorf("entry %d = %+v, want %+v", i, got[i], evidence[i])
		}
	}

	short := curateEvidence(evidence[:2])
	if len(short) != 2 {
		t.Errorf("got %d entries, want 2", len(short))
	}
}

func TestReferencesEvidence(t *testing.T) {
	top := topProblem()

	tests := []struct {
		name      string
		statement string
		want      bool
	}{
		{"cites speaker", "As Sarah Chen put it, exports are unreliable.", true},
		{"cites speaker case-insensitive", "marcus johnson stopped trusting the button.", true},
		{"cites quote fragment", `Users say "the export flow is completely broken" in interviews.`, true},
		{"generic statement", "Users are unhappy with the product.", false},
		{"empty statement", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := referencesEvidence(tt.statement, top); got != tt.want {
				t.Errorf("referencesEvidence(%q) = %v, want %v", tt.statement, got, tt.want)
			}
		})
	}
}

func TestBuildPrompt(t *testing.T) {
	prompt := buildPrompt(topProblem())
	for _, want := range []string{
		`"Export flow loses work"`,
		`"The export flow is completely broken" — Sarah Chen (PM)`,
		"reach 4/5, intensity 5/5, user value 3/3, confidence 3/3, total 15/16",
		"EXACTLY 5 entries",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}
