package commands

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/detectlab/corpusforge/internal/pipeline"
	"github.com/detectlab/corpusforge/internal/unify"
)

// UnifyOptions holds options for the unify command.
type UnifyOptions struct {
	Format string
	Output string
}

// NewUnifyCommand creates the unify command.
func NewUnifyCommand() *cobra.Command {
	opts := &UnifyOptions{}

	cmd := &cobra.Command{
		Use:   "unify",
		Short: "Merge staged datasets into a unified corpus",
		Long: `Load every dataset directory under the data directory, standardize the
columns, merge into one deduplicated corpus and save it with a JSON
metadata sidecar.

Unlike run, unify performs no schema validation and records nothing in
the state database.`,
		Example: `  # Merge the configured data directory into the output directory
  corpusforge unify

  # Write CSV to an explicit path
  corpusforge unify --format csv --output /tmp/corpus.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runUnify(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "Output format: parquet, csv (default from config)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "Output path (default <output_dir>/unified_dataset_<version>)")

	return cmd
}

func runUnify(cmd *cobra.Command, opts *UnifyOptions) error {
	cmdCtx := NewCommandContext(cmd)
	cfg := cmdCtx.Cfg
	out := cmd.OutOrStdout()

	unifier := unify.New(cmdCtx.Logger)

	sources, err := unifier.LoadFromDirectory(cfg.DataDir)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Found %d datasets\n", len(sources))
	for _, src := range sources {
		fmt.Fprintf(out, "  %-24s %d rows\n", src.Name, src.Frame.RowCount())
	}

	merged, err := unifier.Merge(sources)
	if err != nil {
		return fmt.Errorf("merge failed: %w", err)
	}

	format := cfg.Format
	if opts.Format != "" {
		format = opts.Format
	}
	version := pipeline.Version(cfg.VersionPrefix, time.Now())

	target := opts.Output
	if target == "" {
		target = filepath.Join(cfg.OutputDir, "unified_dataset_"+version)
	}
	dataPath, err := unifier.Save(merged, target, format)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(sources))
	for _, src := range sources {
		names = append(names, src.Name)
	}
	meta := unify.BuildMetadata(merged, names, version)
	sidecarPath, err := unify.WriteMetadataSidecar(meta, dataPath)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Merged %d datasets into %d rows\n", len(sources), merged.RowCount())
	fmt.Fprintf(out, "Saved:    %s\n", dataPath)
	fmt.Fprintf(out, "Metadata: %s\n", sidecarPath)

	return nil
}
