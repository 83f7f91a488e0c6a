// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "fmt"

// RiskCategory classifies a build-spec risk.
type RiskCategory string

const (
	RiskTechnical   RiskCategory = "technical"
	RiskAdoption    RiskCategory = "adoption"
	RiskIntegration RiskCategory = "integration"
)

// validRiskCategories is the set of accepted RiskCategory values.
var validRiskCategories = map[RiskCategory]bool{
	RiskTechnical:   true,
	RiskAdoption:    true,
	RiskIntegration: true,
}

// Valid reports whether the category is one of the accepted values.
func (c RiskCategory) Valid() bool {
	return validRiskCategories[c]
}

// UserStory is one "as role, I want action, so that benefit" entry.
type UserStory struct {
	Role    string `json:"role" yaml:"role"`
	Action  string `json:"action" yaml:"action"`
	Benefit string `json:"benefit" yaml:"benefit"`
}

// ProposedSolution is a design sketch, not code.
type ProposedSolution struct {
	Summary     string   `json:"summary" yaml:"summary"`
	KeyFeatures []string `json:"key_features" yaml:"key_features"`
	DataModel   string   `json:"data_model" yaml:"data_model"`
	APIChanges  []string `json:"api_changes" yaml:"api_changes"`
	Workflow    string   `json:"workflow" yaml:"workflow"`
}

// SuccessMetrics splits measures into leading and lagging indicators.
type SuccessMetrics struct {
	Leading []string `json:"leading" yaml:"leading"`
	Lagging []string `json:"lagging" yaml:"lagging"`
}

// Risk is one thing that could go wrong, with its mitigation.
type Risk struct {
	Description string       `json:"description" yaml:"description"`
	Category    RiskCategory `json:"category" yaml:"category"`
	Mitigation  string       `json:"mitigation" yaml:"mitigation"`
}

// UserStoryCount is the fixed number of user stories in a build spec.
const UserStoryCount = 5

// BuildSpec is the terminal artifact: a structured specification for the
// top-ranked problem, ready for direct consumption by a coding agent.
// Field order fixes the JSON key order at the serialization boundary.
type BuildSpec struct {
	ProblemStatement      string           `json:"problem_statement" yaml:"problem_statement"`
	UserStories           []UserStory      `json:"user_stories" yaml:"user_stories"`
	ProposedSolution      ProposedSolution `json:"proposed_solution" yaml:"proposed_solution"`
	AcceptanceCriteria    []string         `json:"acceptance_criteria" yaml:"acceptance_criteria"`
	OutOfScope            []string         `json:"out_of_scope" yaml:"out_of_scope"`
	SuccessMetrics        SuccessMetrics   `json:"success_metrics" yaml:"success_metrics"`
	Risks                 []Risk           `json:"risks" yaml:"risks"`
	ImplementationHints   []string         `json:"implementation_hints" yaml:"implementation_hints"`
	EvidenceSummary       []Evidence       `json:"evidence_summary" yaml:"evidence_summary"`
	PriorityJustification string           `json:"priority_justification" yaml:"priority_justification"`
}

// Validate checks the section-level contracts of a finished build spec.
func (b BuildSpec) Validate() error {
	if b.ProblemStatement == "" {
		return fmt.Errorf("empty problem_statement")
	}
	if len(b.UserStories) != UserStoryCount {
		return fmt.Errorf("user_stories has %d entries, want %d", len(b.UserStories), UserStoryCount)
	}
	for i, us := range b.UserStories {
		if us.Role == "" || us.Action == "" || us.Benefit == "" {
			return fmt.Errorf("user_stories[%d] has empty fields", i)
		}
	}
	if b.ProposedSolution.Summary == "" {
		return fmt.Errorf("empty proposed_solution.summary")
	}
	if len(b.AcceptanceCriteria) == 0 {
		return fmt.Errorf("empty acceptance_criteria")
	}
	for i, r := range b.Risks {
		if !r.Category.Valid() {
			return fmt.Errorf("risks[%d] has invalid category %q", i, r.Category)
		}
	}
	if len(b.EvidenceSummary) == 0 {
		return fmt.Errorf("empty evidence_summary")
	}
	if len(b.EvidenceSummary) > MaxPresentedEvidence {
		return fmt.Errorf("evidence_summary has %d entries, max %d", len(b.EvidenceSummary), MaxPresentedEvidence)
	}
	if b.PriorityJustification == "" {
		return fmt.Errorf("empty priority_justification")
	}
	return nil
}
