package types

import (
	"encoding/json"
	"strings"
	"testing"
)

func validScore() Score {
	return Score{
		Reach: 3, Intensity: 4, UserValue: 2, Confidence: 2, Total: 11,
		Reasoning: "r", Tradeoffs: "t",
	}
}

func TestScoreValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Score)
		errSub string
	}{
		{"valid", func(*Score) {}, ""},
		{"reach too high", func(s *Score) { s.Reach = 6; s.Total = s.Sum() }, "reach"},
		{"reach too low", func(s *Score) { s.Reach = 0; s.Total = s.Sum() }, "reach"},
		{"intensity out of range", func(s *Score) { s.Intensity = 9; s.Total = s.Sum() }, "intensity"},
		{"user value out of range", func(s *Score) { s.UserValue = 4; s.Total = s.Sum() }, "user_value"},
		{"confidence out of range", func(s *Score) { s.Confidence = 5; s.Total = s.Sum() }, "confidence"},
		{"total mismatch", func(s *Score) { s.Total = 16 }, "does not equal dimension sum"},
		{"empty reasoning", func(s *Score) { s.Reasoning = "" }, "reasoning"},
		{"empty tradeoffs", func(s *Score) { s.Tradeoffs = "" }, "tradeoffs"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validScore()
			tt.mutate(&s)
			err := s.Validate()
			if tt.errSub == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.errSub) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.errSub)
			}
		})
	}
}

func TestScoreTotalBounds(t *testing.T) {
	if MinTotal != 4 {
		t.Errorf("MinTotal = %d, want 4", MinTotal)
	}
	if MaxTotal != 16 {
		t.Errorf("MaxTotal = %d, want 16", MaxTotal)
	}
}

func TestProblemValidate(t *testing.T) {
	valid := Problem{
		ID:          "abc",
		Title:       "T",
		Description: "D",
		Evidence:    []Evidence{{Quote: "q", Speaker: "A"}},
		MentionedBy: []string{"A"},
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("valid problem: %v", err)
	}

	noTitle := valid
	noTitle.Title = ""
	if err := noTitle.Validate(); err == nil {
		t.Error("empty title accepted")
	}

	noEvidence := valid
	noEvidence.Evidence = nil
	if err := noEvidence.Validate(); err == nil {
		t.Error("problem without evidence accepted")
	}

	emptyQuote := valid
	emptyQuote.Evidence = []Evidence{{Quote: "", Speaker: "A"}}
	if err := emptyQuote.Validate(); err == nil {
		t.Error("empty quote accepted")
	}

	noMentions := valid
	noMentions.MentionedBy = nil
	if err := noMentions.Validate(); err == nil {
		t.Error("empty mentioned_by accepted")
	}
}

// The build spec is consumed by agents that depend on its key order; field
// order in the struct must serialize to the documented sequence.
func TestBuildSpecJSONKeyOrder(t *testing.T) {
	spec := BuildSpec{
		ProblemStatement:      "p",
		UserStories:           []UserStory{{Role: "r", Action: "a", Benefit: "b"}},
		ProposedSolution:      ProposedSolution{Summary: "s"},
		AcceptanceCriteria:    []string{"c"},
		OutOfScope:            []string{"o"},
		SuccessMetrics:        SuccessMetrics{Leading: []string{"l"}},
		Risks:                 []Risk{{Description: "d", Category: RiskTechnical, Mitigation: "m"}},
		ImplementationHints:   []string{"h"},
		EvidenceSummary:       []Evidence{{Quote: "q", Speaker: "s"}},
		PriorityJustification: "j",
	}

	data, err := json.Marshal(spec)
	if err != nil {
		t.Fatal(err)
	}

	keys := []string{
		"problem_statement",
		"user_stories",
		"proposed_solution",
		"acceptance_criteria",
		"out_of_scope",
		"success_metrics",
		"risks",
		"implementation_hints",
		"evidence_summary",
		"priority_justification",
	}

	out := string(data)
	last := -1
	for _, key := range keys {
		idx := strings.Index(out, `"`+key+`"`)
		if idx < 0 {
			t.Fatalf("key %q missing from output", key)
		}
		if idx < last {
			t.Errorf("key %q appears out of order", key)
		}
		last = idx
	}
}

func TestBuildSpecValidate(t *testing.T) {
	valid := func() BuildSpec {
		stories := make([]UserStory, UserStoryCount)
		for i := range stories {
			stories[i] = UserStory{Role: "r", Action: "a", Benefit: "b"}
		}
		return BuildSpec{
			ProblemStatement:      "p",
			UserStories:           stories,
			ProposedSolution:      ProposedSolution{Summary: "s"},
			AcceptanceCriteria:    []string{"c"},
			SuccessMetrics:        SuccessMetrics{Leading: []string{"l"}},
			EvidenceSummary:       []Evidence{{Quote: "q"}},
			PriorityJustification: "j",
		}
	}

	if err := valid().Validate(); err != nil {
		t.Errorf("valid spec: %v", err)
	}

	wrongStories := valid()
	wrongStories.UserStories = wrongStories.UserStories[:3]
	if err := wrongStories.Validate(); err == nil {
		t.Error("3 user stories accepted, want exactly 5 required")
	}

	holeyStory := valid()
	holeyStory.UserStories[2].Benefit = ""
	if err := holeyStory.Validate(); err == nil {
		t.Error("user story with empty benefit accepted")
	}

	badRisk := valid()
	badRisk.Risks = []Risk{{Description: "d", Category: "operational", Mitigation: "m"}}
	if err := badRisk.Validate(); err == nil {
		t.Error("invalid risk category accepted")
	}

	tooMuchEvidence := valid()
	tooMuchEvidence.EvidenceSummary = []Evidence{{Quote: "1"}, {Quote: "2"}, {Quote: "3"}, {Quote: "4"}}
	if err := tooMuchEvidence.Validate(); err == nil {
		t.Error("4 evidence entries accepted, max is 3")
	}

	noEvidence := valid()
	noEvidence.EvidenceSummary = nil
	if err := noEvidence.Validate(); err == nil {
		t.Error("empty evidence_summary accepted")
	}
}

func TestRiskCategoryValid(t *testing.T) {
	for _, c := range []RiskCategory{RiskTechnical, RiskAdoption, RiskIntegration} {
		if !c.Valid() {
			t.Errorf("%q reported invalid", c)
		}
	}
	for _, c := range []RiskCategory{"", "operational", "Technical"} {
		if c.Valid() {
			t.Errorf("%q reported valid", c)
		}
	}
}
