package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/detectlab/corpusforge/internal/validate"
)

// ValidateOptions holds options for the validate command.
type ValidateOptions struct {
	Schema string
	Format string
	Watch  bool
}

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	opts := &ValidateOptions{}

	cmd := &cobra.Command{
		Use:   "validate [path]",
		Short: "Validate datasets against their schemas",
		Long: `Validate a dataset file or every dataset file in a directory.

With no argument the configured data directory is validated. Schemas are
resolved by name inference from the file name; use --schema to pin a
registered schema explicitly when validating a single file.`,
		Example: `  # Validate everything under the configured data directory
  corpusforge validate

  # Validate one file against an explicit schema
  corpusforge validate data/raw/essays.csv --schema primary_competition_data

  # Machine-readable report
  corpusforge validate --format json

  # Keep re-validating as files change
  corpusforge validate --watch`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.Schema, "schema", "", "Registered schema name (single-file validation only)")
	cmd.Flags().StringVarP(&opts.Format, "format", "f", "table", "Output format: table, json")
	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "Re-validate when files change")

	_ = cmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"table", "json"}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runValidate(cmd *cobra.Command, opts *ValidateOptions, args []string) error {
	cmdCtx := NewCommandContext(cmd)
	cfg := cmdCtx.Cfg

	registry, err := loadRegistry(cfg)
	if err != nil {
		return err
	}
	validator := validate.New(registry, cmdCtx.Logger)

	target := cfg.DataDir
	if len(args) > 0 {
		target = args[0]
	}

	if opts.Watch {
		return watchValidate(cmd, validator, target, opts)
	}

	results, err := validateTarget(validator, target, opts.Schema)
	if err != nil {
		return err
	}
	if err := renderValidation(cmd.OutOrStdout(), results, opts.Format); err != nil {
		return err
	}

	invalid := 0
	for _, r := range results {
		if !r.Valid {
			invalid++
		}
	}
	if invalid > 0 {
		return fmt.Errorf("%d of %d files failed validation", invalid, len(results))
	}
	return nil
}

// validateTarget routes a path to single-file or directory validation,
// keyed by filename either way.
func validateTarget(v *validate.Validator, target, schemaName string) (map[string]*validate.Result, error) {
	info, err := os.Stat(target)
	if err != nil {
		return nil, fmt.Errorf("cannot validate %s: %w", target, err)
	}
	if info.IsDir() {
		return v.ValidateDirectory(target)
	}
	return map[string]*validate.Result{filepath.Base(target): v.ValidateFile(target, schemaName)}, nil
}

func renderValidation(w io.Writer, results map[string]*validate.Result, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	if len(names) == 0 {
		_, _ = fmt.Fprintln(w, "(no dataset files found)")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"File", "Dataset", "Valid", "Rows", "Errors", "Warnings"})
	for _, name := range names {
		r := results[name]
		valid := "yes"
		if !r.Valid {
			valid = "NO"
		}
		t.AppendRow(table.Row{name, r.DatasetName, valid, r.RowCount, len(r.Errors), len(r.Warnings)})
	}
	t.Render()

	for _, name := range names {
		r := results[name]
		if len(r.Errors) == 0 && len(r.Warnings) == 0 {
			continue
		}
		_, _ = fmt.Fprintf(w, "\n%s:\n", name)
		for _, msg := range r.Errors {
			_, _ = fmt.Fprintf(w, "  error:   %s\n", msg)
		}
		for _, msg := range r.Warnings {
			_, _ = fmt.Fprintf(w, "  warning: %s\n", msg)
		}
	}
	return nil
}

// watchValidate validates once, then re-validates whenever a dataset file
// under the target changes. Events are debounced so an editor save (often
// a remove-then-create pair) triggers a single pass.
func watchValidate(cmd *cobra.Command, v *validate.Validator, target string, opts *ValidateOptions) error {
	out := cmd.OutOrStdout()

	info, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("cannot watch %s: %w", target, err)
	}

	watchDir := target
	onlyFile := ""
	if !info.IsDir() {
		watchDir = filepath.Dir(target)
		abs, err := filepath.Abs(target)
		if err != nil {
			return err
		}
		onlyFile = abs
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(watchDir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", watchDir, err)
	}

	revalidate := func() {
		results, err := validateTarget(v, target, opts.Schema)
		if err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "validation error: %v\n", err)
			return
		}
		if err := renderValidation(out, results, opts.Format); err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "render error: %v\n", err)
		}
	}

	revalidate()
	_, _ = fmt.Fprintf(out, "\nWatching %s for changes (Ctrl+C to stop)\n", watchDir)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var debounce <-chan time.Time
	lastChanged := ""
	for {
		select {
		case <-sigChan:
			_, _ = fmt.Fprintln(out, "\nStopping watcher")
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			switch strings.ToLower(filepath.Ext(event.Name)) {
			case ".csv", ".parquet", ".pq":
			default:
				continue
			}
			if onlyFile != "" {
				abs, err := filepath.Abs(event.Name)
				if err != nil || abs != onlyFile {
					continue
				}
			}
			lastChanged = filepath.Base(event.Name)
			debounce = time.After(500 * time.Millisecond)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "watch error: %v\n", err)
		case <-debounce:
			debounce = nil
			_, _ = fmt.Fprintf(out, "\nChange detected: %s\n", lastChanged)
			revalidate()
		}
	}
}
