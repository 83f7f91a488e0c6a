// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the feedback-engine CLI.
// It turns customer interview transcripts into ranked problems (analyze)
// and an agent-consumable build specification (spec).
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mesh-intelligence/feedback-engine/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// defaultModel is the reasoning-engine model used when none is configured.
const defaultModel = "claude-sonnet-4-5-20250929"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// apiKey resolves the reasoning-engine key: explicit flag value first, then
// .secrets/anthropic-api-key, then the ANTHROPIC_API_KEY environment
// variable (which .env may have populated).
func apiKey(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if v, ok := loadedSecrets["anthropic-api-key"]; ok {
		return v
	}
	return os.Getenv("ANTHROPIC_API_KEY")
}

// rootCmd is the base command for the feedback-engine CLI.
var rootCmd = &cobra.Command{
	Use:   "feedback-engine",
	Short: "Turn customer feedback into executable product decisions",
	Long: `feedback-engine analyzes customer interview transcripts with a reasoning
engine and produces a ranked list of distinct customer problems, each backed
by verbatim quotes. For the top-ranked problem it can generate a structured
build specification ready for direct consumption by a coding agent.

Stages run strictly in sequence: load transcripts, extract problems, rank
them under a fixed rubric with evidence-strength guardrails, and optionally
expand the winner into a spec.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env first so ANTHROPIC_API_KEY from a local env file is visible.
		_ = godotenv.Load()

		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./feedback-engine.yaml or ~/.config/feedback-engine/config.yaml)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("feedback-engine")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "feedback-engine"))
		}
	}

	viper.SetEnvPrefix("FEEDBACK_ENGINE")
	viper.AutomaticEnv()

	viper.SetDefault("model", defaultModel)
	viper.SetDefault("max_retries", 2)
	viper.SetDefault("timeout", 120*time.Second)
	viper.SetDefault("parallel", 4)
	viper.SetDefault("history_dir", "history")

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
