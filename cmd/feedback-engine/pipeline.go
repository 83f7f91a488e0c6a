// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mesh-intelligence/feedback-engine/internal/claude"
	"github.com/mesh-intelligence/feedback-engine/internal/extract"
	"github.com/mesh-intelligence/feedback-engine/internal/ingest"
	"github.com/mesh-intelligence/feedback-engine/internal/rank"
	"github.com/mesh-intelligence/feedback-engine/pkg/types"
)

// smallSampleThreshold is the transcript count below which the CLI warns
// about limited confidence (and the ranker caps it mechanically).
const smallSampleThreshold = 3

// addPipelineFlags registers the flags shared by analyze and spec.
func addPipelineFlags(cmd *cobra.Command) {
	cmd.Flags().String("model", "", "reasoning-engine model identifier")
	cmd.Flags().String("api-key", "", "API key (default: .secrets/anthropic-api-key or ANTHROPIC_API_KEY)")
	cmd.Flags().Int("max-retries", 0, "retry attempts per reasoning-engine call (0 = config default)")
	cmd.Flags().Duration("timeout", 0, "per-request timeout (0 = config default)")
	cmd.Flags().Int("parallel", 0, "concurrent scoring calls (0 = config default)")
}

// pipelineConfig assembles the stage configurations from flags, config file,
// and environment. Flags win; viper supplies file/env values and defaults.
func pipelineConfig(cmd *cobra.Command) types.PipelineConfig {
	model, _ := cmd.Flags().GetString("model")
	if model == "" {
		model = viper.GetString("model")
	}
	key, _ := cmd.Flags().GetString("api-key")
	maxRetries, _ := cmd.Flags().GetInt("max-retries")
	if maxRetries <= 0 {
		maxRetries = viper.GetInt("max_retries")
	}
	timeout, _ := cmd.Flags().GetDuration("timeout")
	if timeout <= 0 {
		timeout = viper.GetDuration("timeout")
	}
	parallel, _ := cmd.Flags().GetInt("parallel")
	if parallel <= 0 {
		parallel = viper.GetInt("parallel")
	}

	ai := types.AIConfig{
		Model:      model,
		APIKey:     apiKey(key),
		MaxRetries: maxRetries,
	}

	return types.PipelineConfig{
		HTTP: types.HTTPConfig{
			Timeout:   timeout,
			UserAgent: "feedback-engine/" + version,
		},
		Extraction: types.ExtractionConfig{AIConfig: ai},
		Ranking:    types.RankingConfig{AIConfig: ai, Parallel: parallel},
		Spec:       types.SpecConfig{AIConfig: ai},
		History: types.HistoryConfig{
			HistoryDir: viper.GetString("history_dir"),
		},
	}
}

// newClient builds the shared reasoning-engine client. The HTTP timeout
// bounds each unit of work; retries happen above it.
func newClient(cfg types.PipelineConfig, ai types.AIConfig) *claude.Client {
	timeout := cfg.HTTP.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &claude.Client{
		APIKey:     ai.APIKey,
		Model:      ai.Model,
		MaxTokens:  ai.MaxTokens,
		UserAgent:  cfg.HTTP.UserAgent,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// runAnalysis executes load → extract → rank and returns the ranked
// problems with the contributing transcript count.
func runAnalysis(ctx context.Context, inputDir string, cfg types.PipelineConfig) ([]types.RankedProblem, int, error) {
	if cfg.Extraction.APIKey == "" {
		return nil, 0, fmt.Errorf("no API key: set .secrets/anthropic-api-key, ANTHROPIC_API_KEY, or --api-key")
	}

	fmt.Println("Loading transcripts...")
	records, err := ingest.Load(inputDir)
	if err != nil {
		return nil, 0, err
	}

	contributing := 0
	for _, r := range records {
		if r.HasContent() {
			contributing++
		}
	}
	fmt.Printf("  loaded %d transcripts (%d with content)\n", len(records), contributing)

	if contributing == 0 {
		return nil, 0, fmt.Errorf("no transcripts with content in %s", inputDir)
	}
	if contributing < smallSampleThreshold {
		fmt.Fprintf(os.Stderr, "warning: small sample size (%d interviews); confidence is capped at 2\n", contributing)
	}

	fmt.Println("Extracting problems...")
	extractBackend := &extract.ClaudeBackend{Client: newClient(cfg, cfg.Extraction.AIConfig)}
	problems, err := extract.Extract(ctx, extractBackend, records, cfg.Extraction)
	if err != nil {
		return nil, 0, err
	}
	fmt.Printf("  found %d distinct problems\n", len(problems))

	fmt.Println("Ranking by impact...")
	rankBackend := &rank.ClaudeBackend{Client: newClient(cfg, cfg.Ranking.AIConfig)}
	ranked, err := rank.Rank(ctx, rankBackend, problems, contributing, cfg.Ranking)
	if err != nil {
		return nil, 0, err
	}

	return ranked, contributing, nil
}
