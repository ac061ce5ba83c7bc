// Command embedctl builds and maintains the metadata dataset the retrieval
// engine searches: schema, column, glossary, and query-memory tables,
// populated from the catalog and embedded for vector search.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/LuisDee/nl2sql-sub001/internal/catalog"
	"github.com/LuisDee/nl2sql-sub001/internal/config"
	"github.com/LuisDee/nl2sql-sub001/internal/embedpipeline"
	"github.com/LuisDee/nl2sql-sub001/internal/warehouse"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "embedctl:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var force bool
	var steps []string

	cmd := &cobra.Command{
		Use:   "embedctl",
		Short: "Build and refresh the nl2sql retrieval index",
		Long: `embedctl materialises the metadata dataset the agent searches at
query time: schema, column, and glossary tables projected from the
catalog, plus the query-memory table of trader-confirmed examples.

Run with no flags to execute every step in dependency order. Pass
--steps to run a subset, e.g. to re-embed after a catalog edit without
recreating tables.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSteps(cmd.Context(), force, steps)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "allow destructive DDL such as table recreation")
	cmd.Flags().StringSliceVar(&steps, "steps", nil, "comma-separated subset of steps to run (default: all)")

	cmd.AddCommand(newListStepsCmd())
	return cmd
}

func newListStepsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-steps",
		Short: "Print the step names accepted by --steps, in run order",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, s := range embedpipeline.AllSteps {
				fmt.Fprintln(cmd.OutOrStdout(), s)
			}
			return nil
		},
	}
}

func runSteps(ctx context.Context, force bool, requested []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck

	cat, err := catalog.Load(cfg.CatalogRoot)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	wh, err := warehouse.NewBigQuery(ctx, cfg.ProjectID, cfg.Location, cfg.FetchTimeout, log)
	if err != nil {
		return fmt.Errorf("connect warehouse: %w", err)
	}
	defer wh.Close() //nolint:errcheck

	steps, err := resolveSteps(requested)
	if err != nil {
		return err
	}

	pipeline := embedpipeline.New(wh, cat, embedpipeline.Config{
		MetadataDataset:      cfg.MetadataDataset,
		EmbeddingModelRef:    cfg.EmbeddingModelRef,
		AutonomousEmbeddings: cfg.AutonomousEmbeddings,
		Force:                force,
	}, log)

	results, err := pipeline.Run(ctx, steps)
	for _, r := range results {
		fmt.Printf("%-22s scanned=%-6d changed=%-6d %s\n", r.Step, r.RowsScanned, r.RowsChanged, r.Message)
	}
	if err != nil {
		return err
	}
	return nil
}

// resolveSteps maps the requested step names onto embedpipeline.AllSteps,
// preserving dependency order regardless of the order --steps was given in.
// An empty request runs every step.
func resolveSteps(requested []string) ([]embedpipeline.StepName, error) {
	if len(requested) == 0 {
		return embedpipeline.AllSteps, nil
	}
	want := make(map[string]bool, len(requested))
	for _, s := range requested {
		want[s] = true
	}
	var steps []embedpipeline.StepName
	for _, s := range embedpipeline.AllSteps {
		if want[string(s)] {
			steps = append(steps, s)
			delete(want, string(s))
		}
	}
	for unknown := range want {
		return nil, fmt.Errorf("unknown step %q (see list-steps)", unknown)
	}
	return steps, nil
}
