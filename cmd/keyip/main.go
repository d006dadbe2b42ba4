// Command keyip is the Tag-Walker CLI: ad-hoc ingestion, search, and GitHub
// repo management against the same application services the watcher daemon
// and HTTP API run.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tagwalker/tagwalker/internal/bootstrap"
	"github.com/tagwalker/tagwalker/internal/config"
	"github.com/tagwalker/tagwalker/internal/domain/ingest"
	"github.com/tagwalker/tagwalker/internal/infrastructure/monitoring/logging"
)

// Build-time variables injected via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:     "keyip",
		Short:   "Tag-Walker CLI — ingest, search, and mirror a growing corpus of source material",
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/config.yaml", "path to configuration file")

	root.AddCommand(newIngestCmd(), newSearchCmd(), newGitHubCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadApp reads config and wires a *bootstrap.App for one CLI invocation.
// Every subcommand calls this exactly once in its RunE.
func loadApp() (*bootstrap.App, logging.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	logCfg := cfg.Log
	logCfg.Format = "console"
	logger, err := bootstrap.NewLogger(logCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("initializing logger: %w", err)
	}

	app, err := bootstrap.Build(cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("bootstrap: %w", err)
	}
	return app, logger, nil
}

func newIngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <path>",
		Short: "Ingest a single file as an internal-provenance compound",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			raw, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("reading %s: %w", path, err)
			}

			app, _, err := loadApp()
			if err != nil {
				return err
			}
			defer app.Close(context.Background())

			outcome, err := app.Ingest.IngestFile(cmd.Context(), raw, path, ingest.ProvenanceInternal, time.Now())
			if err != nil {
				return err
			}
			if outcome.Skipped {
				fmt.Fprintln(cmd.OutOrStdout(), "skipped: content unchanged since last ingest")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ingested %s: %d molecules (compound %s)\n", path, outcome.MoleculeCount, outcome.Compound.ID)
			return nil
		},
	}
}

func newSearchCmd() *cobra.Command {
	var budget int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a Tag-Walker search against the ingested corpus",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, _, err := loadApp()
			if err != nil {
				return err
			}
			defer app.Close(context.Background())

			result, err := app.Retrieval.Search(cmd.Context(), args[0], budget)
			if err != nil {
				return err
			}
			for _, item := range result.Items {
				fmt.Fprintf(cmd.OutOrStdout(), "--- %s [%s] (score %.3f) ---\n%s\n\n", item.SourcePath, item.Phase, item.Score, item.Content)
			}
			truncated := ""
			if result.Truncated {
				truncated = " (truncated to budget)"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d items%s\n", len(result.Items), truncated)
			return nil
		},
	}
	cmd.Flags().IntVar(&budget, "budget", 0, "byte budget override (0 = service default)")
	return cmd
}

func newGitHubCmd() *cobra.Command {
	gh := &cobra.Command{Use: "github", Short: "Manage tracked GitHub repositories"}

	var bucket string
	sync := &cobra.Command{
		Use:   "sync <url>",
		Short: "Register (or re-sync, if already tracked) a GitHub repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, _, err := loadApp()
			if err != nil {
				return err
			}
			defer app.Close(context.Background())

			repo, err := app.GitHub.RegisterRepo(cmd.Context(), args[0], bucket)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "tracking %s (id %s), sync started in background\n", repo.URL, repo.ID)
			return nil
		},
	}
	sync.Flags().StringVar(&bucket, "bucket", "", "bucket tag to apply to ingested molecules")

	list := &cobra.Command{
		Use:   "list",
		Short: "List tracked GitHub repositories",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, _, err := loadApp()
			if err != nil {
				return err
			}
			defer app.Close(context.Background())

			repos, err := app.GitHub.ListRepos(cmd.Context())
			if err != nil {
				return err
			}
			for _, r := range repos {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s/%s@%s\t%s\n", r.ID, r.Owner, r.Name, r.Branch, r.Status)
			}
			return nil
		},
	}

	gh.AddCommand(sync, list)
	return gh
}
