// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/feedback-engine/internal/extract"
	"github.com/mesh-intelligence/feedback-engine/internal/insights"
	"github.com/mesh-intelligence/feedback-engine/pkg/types"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [input-dir]",
	Short: "Extract and rank problems from customer feedback",
	Long: `Analyze loads every .txt and .md transcript in the input directory,
clusters them into distinct customer problems with verbatim evidence, and
ranks the problems under the reach/intensity/user-value/confidence rubric.

The full ranked sequence is produced; --top controls how many are shown.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg := pipelineConfig(cmd)

	ranked, contributing, err := runAnalysis(context.Background(), args[0], cfg)
	if errors.Is(err, extract.ErrNoProblems) {
		fmt.Println("No distinct problems found in the transcripts.")
		return nil
	}
	if err != nil {
		return err
	}

	if save, _ := cmd.Flags().GetBool("save"); save {
		store, err := insights.NewStore(cfg.History)
		if err != nil {
			return err
		}
		defer store.Close()
		runID, err := store.SaveRun(context.Background(), ranked, contributing)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Saved as run %d\n", runID)
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(ranked)
	}

	topN, _ := cmd.Flags().GetInt("top")
	renderRanked(os.Stdout, ranked, topN)
	return nil
}

// renderRanked prints the top-N ranked problems with their score breakdown,
// evidence, and justifications.
func renderRanked(w io.Writer, ranked []types.RankedProblem, topN int) {
	if topN <= 0 || topN > len(ranked) {
		topN = len(ranked)
	}

	fmt.Fprintf(w, "\nTOP PROBLEMS TO SOLVE (%d of %d)\n\n", topN, len(ranked))

	for _, r := range ranked[:topN] {
		fmt.Fprintf(w, "%d. %s\n", r.Rank, r.Title)
		fmt.Fprintf(w, "   Impact score: %d/%d  (reach %d/5, intensity %d/5, user value %d/3, confidence %d/3)\n",
			r.Score.Total, types.MaxTotal,
			r.Score.Reach, r.Score.Intensity, r.Score.UserValue, r.Score.Confidence)
		fmt.Fprintf(w, "   Mentioned by: %s\n", strings.Join(r.MentionedBy, ", "))
		if len(r.UrgencySignals) > 0 {
			fmt.Fprintf(w, "   Urgency:      %s\n", strings.Join(r.UrgencySignals, "; "))
		}

		fmt.Fprintln(w, "\n   Evidence:")
		for _, ev := range r.Evidence {
			quote := ev.Quote
			if len(quote) > 120 {
				quote = quote[:117] + "..."
			}
			fmt.Fprintf(w, "   - %q — %s\n", quote, ev.Speaker)
		}

		fmt.Fprintf(w, "\n   Reasoning:  %s\n", r.Score.Reasoning)
		fmt.Fprintf(w, "   If ignored: %s\n", r.Score.Tradeoffs)
		if r.TieBreak != "" {
			fmt.Fprintf(w, "   Tie-break:  %s\n", r.TieBreak)
		}

		fmt.Fprintf(w, "\n%s\n\n", strings.Repeat("-", 60))
	}
}

func init() {
	analyzeCmd.Flags().Int("top", 5, "number of ranked problems to display")
	analyzeCmd.Flags().Bool("json", false, "output the full ranked sequence as JSON")
	analyzeCmd.Flags().Bool("save", false, "persist the run to the analysis history")
	addPipelineFlags(analyzeCmd)

	rootCmd.AddCommand(analyzeCmd)
}
