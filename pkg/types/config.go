package types

import "time"

// HTTPConfig holds shared HTTP settings for stages that make network requests.
type HTTPConfig struct {
	// Timeout is the per-request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "feedback-engine/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// AIConfig holds shared settings for stages that call the reasoning engine.
type AIConfig struct {
	// Model is the model identifier (e.g. "claude-sonnet-4-5-20250929").
	Model string `json:"model" yaml:"model"`

	// APIKey is the authentication key for the API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// MaxRetries is the number of retry attempts for failed or
	// schema-invalid engine responses (default 2).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// MaxTokens bounds the engine response size (default 4096).
	MaxTokens int `json:"max_tokens" yaml:"max_tokens"`
}

// ExtractionConfig holds settings for the problem extraction stage.
type ExtractionConfig struct {
	AIConfig `yaml:",inline"`

	// MinProblems and MaxProblems bound the target cluster count passed to
	// the engine (defaults 4 and 7). Targets, not hard limits.
	MinProblems int `json:"min_problems" yaml:"min_problems"`
	MaxProblems int `json:"max_problems" yaml:"max_problems"`

	// MaxPromptBytes caps the combined transcript text included in the
	// extraction prompt (default 120000).
	MaxPromptBytes int `json:"max_prompt_bytes" yaml:"max_prompt_bytes"`
}

// RankingConfig holds settings for the ranking stage.
type RankingConfig struct {
	AIConfig `yaml:",inline"`

	// Parallel is the number of concurrent per-problem scoring calls
	// (default 4).
	Parallel int `json:"parallel" yaml:"parallel"`
}

// SpecConfig holds settings for the build-spec generation stage.
type SpecConfig struct {
	AIConfig `yaml:",inline"`
}

// HistoryConfig holds settings for the analysis history store.
type HistoryConfig struct {
	// HistoryDir is the directory containing insights.db (default "history").
	HistoryDir string `json:"history_dir" yaml:"history_dir"`

	// MaxResults is the default maximum number of search results (default 20).
	MaxResults int `json:"max_results" yaml:"max_results"`
}

// PipelineConfig groups all stage configurations for the pipeline.
type PipelineConfig struct {
	HTTP       HTTPConfig       `json:"http" yaml:"http"`
	Extraction ExtractionConfig `json:"extraction" yaml:"extraction"`
	Ranking    RankingConfig    `json:"ranking" yaml:"ranking"`
	Spec       SpecConfig       `json:"spec" yaml:"spec"`
	History    HistoryConfig    `json:"history" yaml:"history"`
}
