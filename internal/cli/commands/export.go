package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/detectlab/corpusforge/internal/export"
	"github.com/detectlab/corpusforge/internal/table"
)

// ExportOptions holds options for the export command.
type ExportOptions struct {
	Table string
	DSN   string
}

// NewExportCommand creates the export command.
func NewExportCommand() *cobra.Command {
	opts := &ExportOptions{}

	cmd := &cobra.Command{
		Use:   "export <artifact>",
		Short: "Export a dataset artifact to PostgreSQL",
		Long: `Load a dataset artifact into a PostgreSQL table using COPY.

CSV artifacts stream directly; parquet artifacts are read into memory
first. The target table is dropped and recreated with one TEXT column per
dataset column.`,
		Example: `  # Export a build into the configured database
  corpusforge export data/processed/unified_dataset_v20240102_150405.csv

  # Explicit table and connection string
  corpusforge export corpus.parquet --table essays \
    --dsn "host=db.internal port=5432 dbname=corpus user=loader"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.Table, "table", "t", "unified_text_corpus", "Target table name")
	cmd.Flags().StringVar(&opts.DSN, "dsn", "", "PostgreSQL connection string (default from config)")

	return cmd
}

func runExport(cmd *cobra.Command, opts *ExportOptions, args []string) error {
	cmdCtx := NewCommandContext(cmd)
	cfg := cmdCtx.Cfg
	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	artifact := args[0]
	if _, err := os.Stat(artifact); err != nil {
		return fmt.Errorf("artifact not found: %s", artifact)
	}

	exporter := export.New(cmdCtx.Logger)
	if opts.DSN != "" {
		if err := exporter.ConnectDSN(ctx, opts.DSN); err != nil {
			return err
		}
	} else {
		if cfg.Postgres.Database == "" {
			return fmt.Errorf("export requires a postgres config section or --dsn")
		}
		if err := exporter.Connect(ctx, cfg.Postgres); err != nil {
			return err
		}
	}
	defer func() { _ = exporter.Close() }()

	start := time.Now()
	switch strings.ToLower(filepath.Ext(artifact)) {
	case ".csv":
		if err := exporter.ExportCSV(ctx, opts.Table, artifact); err != nil {
			return err
		}
	case ".parquet", ".pq":
		f, err := table.ReadParquet(artifact)
		if err != nil {
			return err
		}
		if err := exporter.ExportFrame(ctx, opts.Table, f); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported artifact format: %s", filepath.Ext(artifact))
	}

	fmt.Fprintf(out, "Exported %s to table %s in %s\n",
		artifact, opts.Table, time.Since(start).Round(time.Millisecond))
	return nil
}
