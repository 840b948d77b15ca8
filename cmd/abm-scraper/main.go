// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the abm-scraper CLI, which collects
// physical-scale comparisons ("the size of Wales", "as heavy as 30 buses")
// from news feeds into the units and edges datasets.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/anything-but-metric/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// rootCmd is the base command for the abm-scraper CLI.
var rootCmd = &cobra.Command{
	Use:   "abm-scraper",
	Short: "Collect physical-scale comparisons from news articles",
	Long: `abm-scraper reads news feeds (or a single article URL), asks an LLM to
pull out comparisons such as "an iceberg the size of Wales", checks each one
and appends the survivors to data/edges.json, minting units in
data/units.json as needed.

The scrape command prints NEW_EDGES=<n> on stdout and always exits 0 so a
scheduled workflow can decide whether to open a pull request.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		loadedSecrets = loadCredentials(".env", ".secrets/")
	},
}

// loadCredentials loads envFile into the environment and returns the keys
// found in secretsDir. Failures are warnings: a scrape without keys still
// completes and reports NEW_EDGES=0.
func loadCredentials(envFile, secretsDir string) map[string]string {
	if err := secrets.LoadEnvFile(envFile); err != nil {
		slog.Warn("ignoring env file", "path", envFile, "error", err)
	}
	s, err := secrets.Load(secretsDir, nil)
	if err != nil {
		slog.Warn("ignoring secrets directory", "path", secretsDir, "error", err)
		return map[string]string{}
	}
	if len(s) > 0 {
		keys := make([]string, 0, len(s))
		for k := range s {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
	}
	return s
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./abm-scraper.yaml or ~/.config/abm-scraper/abm-scraper.yaml)")
	rootCmd.PersistentFlags().String("data-dir", "", "directory holding units.json and edges.json (default data)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "show per-article fetch and LLM detail")
	rootCmd.PersistentFlags().String("log-file", "", "also write logs to this file, rotated by size")

	_ = viper.BindPFlag("data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("abm-scraper")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "abm-scraper"))
		}
	}

	viper.SetEnvPrefix("ABM")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	setDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
