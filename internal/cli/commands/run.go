package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/detectlab/corpusforge/internal/pipeline"
	"github.com/detectlab/corpusforge/internal/storage"
)

// RunOptions holds options for the run command.
type RunOptions struct {
	Format         string
	SkipValidation bool
	Publish        bool
}

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline: validate, unify, save, record",
		Long: `Execute the full corpus build.

Every dataset directory under the data directory is validated against its
schema; the valid ones are standardized and merged into a single corpus,
saved under the output directory with a JSON metadata sidecar, and the run
and its artifacts are recorded in the state database.`,
		Example: `  # Build the corpus from the configured data directory
  corpusforge run

  # Save as CSV instead of parquet
  corpusforge run --format csv

  # Merge everything without schema validation
  corpusforge run --skip-validation

  # Publish the finished artifacts to GCS
  corpusforge run --publish`,
		Aliases: []string{"build"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRun(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "Output format: parquet, csv (default from config)")
	cmd.Flags().BoolVar(&opts.SkipValidation, "skip-validation", false, "Merge all datasets without schema validation")
	cmd.Flags().BoolVar(&opts.Publish, "publish", false, "Upload the finished dataset to GCS")

	return cmd
}

func runRun(cmd *cobra.Command, opts *RunOptions) error {
	cmdCtx := NewCommandContext(cmd)
	cfg := cmdCtx.Cfg
	out := cmd.OutOrStdout()

	registry, err := loadRegistry(cfg)
	if err != nil {
		return err
	}

	store, err := openStore(cfg, cmdCtx.Logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	pcfg := pipeline.Config{
		DataDir:        cfg.DataDir,
		OutputDir:      cfg.OutputDir,
		Format:         cfg.Format,
		VersionPrefix:  cfg.VersionPrefix,
		SkipValidation: opts.SkipValidation,
		Registry:       registry,
		Store:          store,
		Logger:         cmdCtx.Logger,
	}
	if opts.Format != "" {
		pcfg.Format = opts.Format
	}

	if opts.Publish {
		if cfg.GCSBucket == "" {
			return fmt.Errorf("publishing requires gcs_bucket in configuration")
		}
		manager, err := storage.NewManager(cmd.Context(), cfg.GCSBucket, cmdCtx.Logger)
		if err != nil {
			return err
		}
		defer func() { _ = manager.Close() }()
		pcfg.Publisher = manager
	}

	startTime := time.Now()
	report, err := pipeline.New(pcfg).Run(cmd.Context())
	if err != nil {
		printDatasets(cmd, report)
		return fmt.Errorf("run failed: %w", err)
	}

	printDatasets(cmd, report)
	fmt.Fprintf(out, "Unified %d datasets into %d rows\n", report.SourceCount, report.RowCount)
	fmt.Fprintf(out, "Saved:    %s\n", report.DataPath)
	fmt.Fprintf(out, "Metadata: %s\n", report.SidecarPath)
	if report.PublishedURL != "" {
		fmt.Fprintf(out, "Published: %s\n", report.PublishedURL)
	}
	if report.RunID != "" {
		fmt.Fprintf(out, "Run %s: completed\n", report.RunID)
	}
	fmt.Fprintf(out, "Completed in %s\n", time.Since(startTime).Round(time.Millisecond))

	return nil
}

func printDatasets(cmd *cobra.Command, report *pipeline.Report) {
	if report == nil || len(report.Datasets) == 0 {
		return
	}
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Found %d datasets (version %s)\n", len(report.Datasets), report.Version)
	for _, d := range report.Datasets {
		status := "merged"
		if !d.Merged {
			status = "excluded"
		}
		fmt.Fprintf(out, "  %-24s %s\n", d.Dataset, status)
		if d.Result != nil {
			for _, msg := range d.Result.Errors {
				fmt.Fprintf(out, "      error:   %s\n", msg)
			}
			for _, msg := range d.Result.Warnings {
				fmt.Fprintf(out, "      warning: %s\n", msg)
			}
		}
	}
}
