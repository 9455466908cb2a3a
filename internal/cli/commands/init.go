package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/detectlab/corpusforge/internal/ingest"
)

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new corpusforge project",
		Long: `Initialize a new corpusforge project with the default directory
structure and configuration.

This creates:
  - data/raw, data/interim, data/processed, data/external directories
  - corpusforge.yaml configuration file
  - schemas.yaml schema overlay with a sample dataset`,
		Example: `  # Initialize in current directory
  corpusforge init

  # Initialize in a new directory
  corpusforge init my-corpus

  # Force overwrite existing config
  corpusforge init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			return runInit(cmd, dir, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration")

	return cmd
}

func runInit(cmd *cobra.Command, dir string, force bool) error {
	out := cmd.OutOrStdout()

	if dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	configPath := filepath.Join(dir, "corpusforge.yaml")
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("corpusforge.yaml already exists. Use --force to overwrite")
	}

	dataDirs, err := ingest.ScaffoldDataDirs(filepath.Join(dir, "data"))
	if err != nil {
		return fmt.Errorf("failed to create data directories: %w", err)
	}

	if err := copyTemplate("minimal", dir, force); err != nil {
		return fmt.Errorf("failed to initialize project: %w", err)
	}

	for _, d := range dataDirs {
		fmt.Fprintf(out, "  created %s/\n", d)
	}
	files, _ := listTemplateFiles("minimal")
	for _, f := range files {
		fmt.Fprintf(out, "  created %s\n", filepath.Join(dir, f))
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "corpusforge project initialized!")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Next steps:")
	fmt.Fprintln(out, "  1. Stage dataset directories under data/raw/")
	fmt.Fprintln(out, "  2. Run 'corpusforge validate' to check them against their schemas")
	fmt.Fprintln(out, "  3. Run 'corpusforge run' to build the unified corpus")
	fmt.Fprintln(out, "  4. Run 'corpusforge query' to inspect the result")

	return nil
}
