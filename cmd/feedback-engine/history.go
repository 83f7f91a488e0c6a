// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mesh-intelligence/feedback-engine/internal/insights"
	"github.com/mesh-intelligence/feedback-engine/pkg/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse saved analysis runs (list, search, export)",
	Long: `History manages the local SQLite store of saved analysis runs.
Runs are saved with "analyze --save"; use subcommands to list them, search
stored evidence quotes with full-text search, or export a run.`,
}

// --- list subcommand ---

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved analysis runs",
	RunE:  runHistoryList,
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	store, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.Runs(context.Background())
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No saved runs.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-4s  %-20s  %-11s  %-8s  %s\n",
		"Run", "Created", "Transcripts", "Problems", "Top problem")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 80))
	for _, r := range runs {
		top := r.TopProblem
		if len(top) > 30 {
			top = top[:27] + "..."
		}
		fmt.Fprintf(os.Stdout, "%-4d  %-20s  %-11d  %-8d  %s\n",
			r.ID, r.CreatedAt, r.Transcripts, r.Problems, top)
	}
	return nil
}

// --- search subcommand ---

var historySearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Full-text search over stored evidence quotes",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runHistorySearch,
}

func runHistorySearch(cmd *cobra.Command, args []string) error {
	store, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	hits, err := store.SearchEvidence(context.Background(), strings.Join(args, " "), limit)
	if err != nil {
		return err
	}
	if len(hits) == 0 {
		fmt.Println("No matching evidence.")
		return nil
	}

	for _, h := range hits {
		fmt.Fprintf(os.Stdout, "run %d, rank %d — %s\n  %q — %s\n",
			h.RunID, h.Rank, h.Problem, h.Quote, h.Speaker)
	}
	fmt.Fprintf(os.Stdout, "\n%d results\n", len(hits))
	return nil
}

// --- export subcommand ---

var historyExportCmd = &cobra.Command{
	Use:   "export [run-id]",
	Short: "Export a saved run as YAML or JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryExport,
}

func runHistoryExport(cmd *cobra.Command, args []string) error {
	runID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid run id %q", args[0])
	}

	store, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	format, _ := cmd.Flags().GetString("format")
	return store.Export(context.Background(), os.Stdout, runID, format)
}

// --- shared helpers ---

func openHistory(cmd *cobra.Command) (*insights.Store, error) {
	dir, _ := cmd.Flags().GetString("history-dir")
	if dir == "" {
		dir = viper.GetString("history_dir")
	}
	maxResults, _ := cmd.Flags().GetInt("max-results")

	return insights.NewStore(types.HistoryConfig{
		HistoryDir: dir,
		MaxResults: maxResults,
	})
}

func init() {
	historyCmd.PersistentFlags().String("history-dir", "", "directory containing insights.db (default from config)")
	historyCmd.PersistentFlags().Int("max-results", 20, "maximum number of search results")

	historySearchCmd.Flags().Int("limit", 0, "maximum results (0 = use default)")
	historyExportCmd.Flags().String("format", "yaml", "export format: yaml or json")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historySearchCmd)
	historyCmd.AddCommand(historyExportCmd)

	rootCmd.AddCommand(historyCmd)
}
