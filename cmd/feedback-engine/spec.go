// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/feedback-engine/internal/buildspec"
)

var specCmd = &cobra.Command{
	Use:   "spec [input-dir]",
	Short: "Generate an agent-consumable build spec from feedback",
	Long: `Spec runs the full pipeline — load, extract, rank — and expands the
top-ranked problem into a structured build specification: problem statement,
user stories, proposed solution, acceptance criteria, scope bounds, metrics,
risks, implementation hints, evidence summary, and priority justification.

The spec is written as a JSON object ready to hand to a coding agent.`,
	Args: cobra.ExactArgs(1),
	RunE: runSpec,
}

func runSpec(cmd *cobra.Command, args []string) error {
	cfg := pipelineConfig(cmd)
	ctx := context.Background()

	ranked, _, err := runAnalysis(ctx, args[0], cfg)
	if err != nil {
		return err
	}

	fmt.Println("Generating build spec for top problem...")
	backend := &buildspec.ClaudeBackend{Client: newClient(cfg, cfg.Spec.AIConfig)}
	spec, err := buildspec.Generate(ctx, backend, ranked[0], cfg.Spec)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(spec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling spec: %w", err)
	}

	output, _ := cmd.Flags().GetString("output")
	if output != "" {
		if err := os.WriteFile(output, append(data, '\n'), 0o644); err != nil {
			return fmt.Errorf("writing spec: %w", err)
		}
		fmt.Printf("Spec written to %s\n", output)
		return nil
	}

	fmt.Println(string(data))
	return nil
}

func init() {
	specCmd.Flags().StringP("output", "o", "", "output JSON file path (default: stdout)")
	addPipelineFlags(specCmd)

	rootCmd.AddCommand(specCmd)
}
