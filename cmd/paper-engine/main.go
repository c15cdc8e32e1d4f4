// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the paper-engine CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pdiddy/paper-engine/internal/store"
	"github.com/pdiddy/paper-engine/internal/workflow"
	"github.com/pdiddy/paper-engine/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// rootCmd is the base command for the paper-engine CLI.
var rootCmd = &cobra.Command{
	Use:   "paper-engine",
	Short: "Stage workflow engine for guided academic paper authoring",
	Long: `paper-engine manages the staged authoring workflow behind guided paper
drafting: thirteen ordered stages with a validation gate each, bounded
backward navigation with cascading invalidation, a bibliography compiler
over per-stage citation candidates, and an outline completeness tracker.

Chat orchestration, file ingestion, and billing live in external
collaborators; this CLI owns session state and the workflow rules.`,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./paper-engine.yaml or ~/.config/paper-engine/config.yaml)")
	rootCmd.PersistentFlags().String("data-dir", "", "base directory for the session database (overrides config)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("paper-engine")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "paper-engine"))
		}
	}

	viper.SetDefault("store.data_dir", "data")
	viper.SetDefault("guard.max_field_length", 2000)
	viper.SetDefault("guard.ringkasan_max", 280)
	viper.SetDefault("guard.ringkasan_detail_max", 1000)
	viper.SetDefault("workflow.enforce_budget", true)
	viper.SetDefault("workflow.chars_per_word", 6)
	viper.SetDefault("workflow.budget_tolerance", 1.5)

	viper.SetEnvPrefix("PAPER_ENGINE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// engineConfig assembles component configuration from viper and flags.
func engineConfig() types.EngineConfig {
	cfg := types.EngineConfig{
		Store: types.StoreConfig{DataDir: viper.GetString("store.data_dir")},
		Guard: types.GuardConfig{
			MaxFieldLength:     viper.GetInt("guard.max_field_length"),
			RingkasanMax:       viper.GetInt("guard.ringkasan_max"),
			RingkasanDetailMax: viper.GetInt("guard.ringkasan_detail_max"),
		},
		Workflow: types.WorkflowConfig{
			EnforceBudget:   viper.GetBool("workflow.enforce_budget"),
			CharsPerWord:    viper.GetInt("workflow.chars_per_word"),
			BudgetTolerance: viper.GetFloat64("workflow.budget_tolerance"),
		},
	}
	if dir, _ := rootCmd.PersistentFlags().GetString("data-dir"); dir != "" {
		cfg.Store.DataDir = dir
	}
	return cfg
}

// newLogger builds the structured logger shared by the engine and store.
func newLogger() (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	if debug, _ := rootCmd.PersistentFlags().GetBool("debug"); debug {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return config.Build()
}

// newEngine opens the store and wires the workflow engine. The returned
// cleanup closes both.
func newEngine() (*workflow.Engine, func(), error) {
	cfg := engineConfig()

	logger, err := newLogger()
	if err != nil {
		return nil, nil, fmt.Errorf("building logger: %w", err)
	}

	st, err := store.NewStore(cfg.Store)
	if err != nil {
		logger.Sync()
		return nil, nil, err
	}

	cleanup := func() {
		st.Close()
		logger.Sync()
	}
	return workflow.NewEngine(st, logger, cfg), cleanup, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
