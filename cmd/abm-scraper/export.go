// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/anything-but-metric/internal/dataset"
	"github.com/pdiddy/anything-but-metric/internal/export"
	"github.com/pdiddy/anything-but-metric/pkg/types"
)

// --- export subcommand ---

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Build a SQLite snapshot of the datasets",
	Long: `Export loads units.json and edges.json and rebuilds a SQLite snapshot
(default <data-dir>/abm.db) with full-text search over source quotes. The
JSON files are never modified. Use --yaml to also dump the snapshot as a
single YAML document.`,
	RunE: runExport,
}

func runExport(cmd *cobra.Command, args []string) error {
	dataDir := viper.GetString("data_dir")
	yamlPath, _ := cmd.Flags().GetString("yaml")

	units, edges, err := dataset.ReadOnly(dataDir)
	if err != nil {
		return err
	}

	store, err := export.Open(dbPath(cmd, dataDir))
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	sum, err := store.Snapshot(ctx, units.All(), edges.All(), time.Now())
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "units: %d, edges: %d, duplicate ids: %d, dangling: %d\n",
		sum.Units, sum.Edges, sum.Duplicates, sum.Dangling)
	fmt.Fprintf(os.Stdout, "wrote %s\n", store.Path())

	if yamlPath != "" {
		if err := store.WriteYAML(ctx, yamlPath); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "wrote %s\n", yamlPath)
	}
	return nil
}

// --- search subcommand ---

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Query edges in a snapshot built by export",
	Long: `Search queries the SQLite snapshot with a full-text match on source
quotes, a unit filter, a review-state filter, or any combination.`,
	RunE: runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	store, err := export.Open(dbPath(cmd, viper.GetString("data_dir")))
	if err != nil {
		return err
	}
	defer store.Close()

	q := export.EdgeQuery{Text: strings.Join(args, " ")}
	q.Unit, _ = cmd.Flags().GetString("unit")
	q.MaxResults, _ = cmd.Flags().GetInt("limit")
	if cmd.Flags().Changed("verified") {
		v, _ := cmd.Flags().GetBool("verified")
		q.Verified = &v
	}
	if q.IsEmpty() {
		return fmt.Errorf("query or filter required: provide search text, --unit, or --verified")
	}

	edges, err := store.Edges(context.Background(), q)
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	return formatEdges(edges, jsonOutput)
}

func formatEdges(edges []types.Edge, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(edges)
	}

	if len(edges) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-6s  %-22s  %-22s  %12s  %-3s  %s\n",
		"ID", "From", "To", "Factor", "OK", "Quote")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 110))

	for _, e := range edges {
		ok := ""
		if e.Verified {
			ok = "yes"
		}
		fmt.Fprintf(os.Stdout, "%-6s  %-22s  %-22s  %12g  %-3s  %s\n",
			e.ID, clip(e.From, 22), clip(e.To, 22), e.Factor, ok, clip(e.SourceQuote, 40))
	}

	fmt.Fprintf(os.Stdout, "\n%d results\n", len(edges))
	return nil
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func dbPath(cmd *cobra.Command, dataDir string) string {
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		return p
	}
	return filepath.Join(dataDir, export.DefaultDBFile)
}

func init() {
	exportCmd.Flags().String("db", "", "snapshot database path (default <data-dir>/abm.db)")
	exportCmd.Flags().String("yaml", "", "also write the snapshot as YAML to this path")

	searchCmd.Flags().String("db", "", "snapshot database path (default <data-dir>/abm.db)")
	searchCmd.Flags().String("unit", "", "only edges with this unit on either side")
	searchCmd.Flags().Bool("verified", false, "only edges with this review state")
	searchCmd.Flags().Int("limit", 20, "maximum number of results (0 = no limit)")
	searchCmd.Flags().Bool("json", false, "output results as JSON")

	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(searchCmd)
}
