package commands

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	// duckdb driver for querying dataset artifacts.
	_ "github.com/marcboeker/go-duckdb"
)

// corpusView is the name the queried artifact is exposed under.
const corpusView = "corpus"

// QueryOptions holds options for the query command.
type QueryOptions struct {
	Format string
	SQL    string
}

// NewQueryCommand creates the query command.
func NewQueryCommand() *cobra.Command {
	opts := &QueryOptions{}

	cmd := &cobra.Command{
		Use:   "query [artifact]",
		Short: "Query a dataset artifact with SQL",
		Long: `Query a saved dataset artifact through DuckDB.

The artifact (CSV or parquet) is exposed as a view named corpus. With
--sql the query runs once and exits; otherwise an interactive REPL opens.
Without an argument the newest unified dataset under the output directory
is queried.`,
		Example: `  # Query the newest build interactively
  corpusforge query

  # One-shot SQL against an explicit artifact
  corpusforge query data/processed/unified_dataset_v20240102_150405.parquet \
    --sql "SELECT source_dataset, count(*) FROM corpus GROUP BY 1"

  # JSON output for scripting
  corpusforge query --sql "SELECT count(*) AS n FROM corpus" --format json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.SQL, "sql", "", "SQL to execute (omit for interactive REPL)")
	cmd.Flags().StringVarP(&opts.Format, "format", "f", "table", "Output format: table, json, csv")

	return cmd
}

func runQuery(cmd *cobra.Command, args []string, opts *QueryOptions) error {
	cmdCtx := NewCommandContext(cmd)
	cfg := cmdCtx.Cfg

	var artifact string
	if len(args) > 0 {
		artifact = args[0]
	} else {
		found, err := latestArtifact(cfg.OutputDir)
		if err != nil {
			return err
		}
		artifact = found
	}
	if _, err := os.Stat(artifact); err != nil {
		return fmt.Errorf("artifact not found: %s", artifact)
	}

	db, err := openArtifactDB(cmd.Context(), artifact)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	// Determine SQL source
	var sqlQuery string
	switch {
	case opts.SQL != "":
		sqlQuery = opts.SQL
	case !isTerminal(os.Stdin):
		content, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		sqlQuery = string(content)
	default:
		return runQueryREPL(cmd, db, artifact, cfg.StatePath, opts)
	}

	return executeAndRenderQuery(cmd.Context(), cmd, db, sqlQuery, opts.Format)
}

// executeAndRenderQuery executes a query and renders results, properly closing rows with defer.
func executeAndRenderQuery(ctx context.Context, cmd *cobra.Command, db *sql.DB, query, format string) error {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return renderResults(cmd.OutOrStdout(), rows, format)
}

// openArtifactDB opens an in-memory DuckDB and exposes the artifact as the
// corpus view.
func openArtifactDB(ctx context.Context, path string) (*sql.DB, error) {
	var source string
	escaped := strings.ReplaceAll(path, "'", "''")
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		source = fmt.Sprintf("read_csv_auto('%s')", escaped)
	case ".parquet", ".pq":
		source = fmt.Sprintf("read_parquet('%s')", escaped)
	default:
		return nil, fmt.Errorf("unsupported artifact format: %s", filepath.Ext(path))
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}

	stmt := fmt.Sprintf("CREATE VIEW %s AS SELECT * FROM %s", corpusView, source)
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to load artifact %s: %w", path, err)
	}
	return db, nil
}

// latestArtifact finds the newest unified dataset under dir. Version strings
// embed a UTC timestamp, so the lexically greatest name is the newest build.
func latestArtifact(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("no dataset artifacts found in %s (run 'corpusforge run' first)", dir)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, "unified_dataset_") {
			continue
		}
		switch strings.ToLower(filepath.Ext(name)) {
		case ".csv", ".parquet":
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return "", fmt.Errorf("no dataset artifacts found in %s (run 'corpusforge run' first)", dir)
	}
	sort.Strings(names)
	return filepath.Join(dir, names[len(names)-1]), nil
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
