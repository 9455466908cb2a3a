package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/detectlab/corpusforge/internal/pipeline"
	"github.com/detectlab/corpusforge/internal/storage"
)

// PublishOptions holds options for the publish command.
type PublishOptions struct {
	Name    string
	Version string
	Bucket  string
}

// NewPublishCommand creates the publish command.
func NewPublishCommand() *cobra.Command {
	opts := &PublishOptions{}

	cmd := &cobra.Command{
		Use:   "publish <data> [sidecar]",
		Short: "Upload a dataset version to GCS",
		Long: `Upload a dataset file, and optionally its metadata sidecar, to the
configured GCS bucket under datasets/{name}/{version}/.

Credentials come from the ambient environment
(GOOGLE_APPLICATION_CREDENTIALS or the metadata server).`,
		Example: `  # Publish a build with its sidecar
  corpusforge publish data/processed/unified_dataset_v20240102_150405.parquet \
    data/processed/unified_dataset_v20240102_150405.json

  # Publish under an explicit name and version
  corpusforge publish corpus.csv --name my_corpus --version v2`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPublish(cmd, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "unified_text_corpus", "Dataset name in the bucket")
	cmd.Flags().StringVar(&opts.Version, "version", "", "Dataset version (default: timestamp)")
	cmd.Flags().StringVar(&opts.Bucket, "bucket", "", "GCS bucket (default from config)")

	return cmd
}

func runPublish(cmd *cobra.Command, opts *PublishOptions, args []string) error {
	cmdCtx := NewCommandContext(cmd)
	cfg := cmdCtx.Cfg
	out := cmd.OutOrStdout()

	dataPath := args[0]
	sidecarPath := ""
	if len(args) > 1 {
		sidecarPath = args[1]
	}
	for _, p := range args {
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("file not found: %s", p)
		}
	}

	bucket := cfg.GCSBucket
	if opts.Bucket != "" {
		bucket = opts.Bucket
	}
	if bucket == "" {
		return fmt.Errorf("publishing requires gcs_bucket in configuration or --bucket")
	}

	version := opts.Version
	if version == "" {
		version = pipeline.Version(cfg.VersionPrefix, time.Now())
	}

	manager, err := storage.NewManager(cmd.Context(), bucket, cmdCtx.Logger)
	if err != nil {
		return err
	}
	defer func() { _ = manager.Close() }()

	url, err := manager.UploadDataset(cmd.Context(), opts.Name, version, dataPath, sidecarPath)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Published %s version %s\n", opts.Name, version)
	fmt.Fprintf(out, "Location: %s\n", url)
	return nil
}
