package commands

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/spf13/cobra"

	"github.com/detectlab/corpusforge/internal/cli/config"
	"github.com/detectlab/corpusforge/internal/export"
)

// DoctorOptions holds options for the doctor command.
type DoctorOptions struct {
	Format string // Output format: text, json
}

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand() *cobra.Command {
	opts := &DoctorOptions{}
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the environment for problems",
		Long: `Check that the pieces a corpus build depends on are in place:
data directories, the state database, the DuckDB engine, the schema
registry, GCS credentials and the PostgreSQL export target.

Checks that probe remote systems are bounded by short timeouts; a slow
or absent optional dependency is reported as a warning, not a failure.`,
		Example: `  # Run environment checks
  corpusforge doctor

  # Output as JSON
  corpusforge doctor --format json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "Output format: text, json")

	return cmd
}

// DoctorCheck is a single environment check result.
type DoctorCheck struct {
	Name    string `json:"name"`
	Group   string `json:"group"`
	Status  string `json:"status"` // "pass", "warn", "error"
	Details string `json:"details,omitempty"`
}

// DoctorOutput is the JSON output for the doctor command.
type DoctorOutput struct {
	Checks     []DoctorCheck `json:"checks"`
	IssueCount int           `json:"issue_count"`
}

func runDoctor(cmd *cobra.Command, opts *DoctorOptions) error {
	cmdCtx := NewCommandContext(cmd)
	cfg := cmdCtx.Cfg

	checks := []DoctorCheck{
		checkDataDir(cfg),
		checkOutputDir(cfg),
		checkStateDB(cmd.Context(), cfg),
		checkDuckDB(cmd.Context()),
		checkRegistry(cfg),
		checkGCSCredentials(cfg),
		checkPostgres(cmd.Context(), cfg),
	}

	out := &DoctorOutput{Checks: checks}
	for _, check := range checks {
		if check.Status != "pass" {
			out.IssueCount++
		}
	}

	if opts.Format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	return renderDoctorText(cmd, out)
}

func renderDoctorText(cmd *cobra.Command, out *DoctorOutput) error {
	w := cmd.OutOrStdout()
	titleCaser := cases.Title(language.English)

	currentGroup := ""
	for _, check := range out.Checks {
		if check.Group != currentGroup {
			if currentGroup != "" {
				_, _ = fmt.Fprintln(w)
			}
			currentGroup = check.Group
			_, _ = fmt.Fprintln(w, titleCaser.String(currentGroup))
			_, _ = fmt.Fprintln(w, strings.Repeat("-", 40))
		}

		marker := "ok"
		switch check.Status {
		case "warn":
			marker = "! "
		case "error":
			marker = "x "
		}
		_, _ = fmt.Fprintf(w, "  %s %s", marker, check.Name)
		if check.Details != "" {
			_, _ = fmt.Fprintf(w, ": %s", check.Details)
		}
		_, _ = fmt.Fprintln(w)
	}

	_, _ = fmt.Fprintln(w)
	if out.IssueCount == 0 {
		_, _ = fmt.Fprintln(w, "Environment looks healthy")
	} else {
		_, _ = fmt.Fprintf(w, "%d issues found\n", out.IssueCount)
	}
	return nil
}

func checkDataDir(cfg *config.Config) DoctorCheck {
	check := DoctorCheck{Name: "data directory", Group: "storage"}

	entries, err := os.ReadDir(cfg.DataDir)
	if err != nil {
		check.Status = "warn"
		check.Details = fmt.Sprintf("%s missing (run 'corpusforge init')", cfg.DataDir)
		return check
	}

	datasets := 0
	for _, entry := range entries {
		if entry.IsDir() {
			datasets++
		}
	}
	check.Status = "pass"
	check.Details = fmt.Sprintf("%s (%d dataset directories)", cfg.DataDir, datasets)
	return check
}

func checkOutputDir(cfg *config.Config) DoctorCheck {
	check := DoctorCheck{Name: "output directory", Group: "storage"}

	info, err := os.Stat(cfg.OutputDir)
	if err != nil {
		check.Status = "warn"
		check.Details = fmt.Sprintf("%s missing (created on first run)", cfg.OutputDir)
		return check
	}
	if !info.IsDir() {
		check.Status = "error"
		check.Details = fmt.Sprintf("%s is not a directory", cfg.OutputDir)
		return check
	}
	check.Status = "pass"
	check.Details = cfg.OutputDir
	return check
}

func checkStateDB(ctx context.Context, cfg *config.Config) DoctorCheck {
	check := DoctorCheck{Name: "state database", Group: "storage"}

	if _, err := os.Stat(cfg.StatePath); err != nil {
		check.Status = "warn"
		check.Details = fmt.Sprintf("%s missing (created on first run)", cfg.StatePath)
		return check
	}

	db, err := sql.Open("sqlite", cfg.StatePath+"?mode=ro")
	if err != nil {
		check.Status = "error"
		check.Details = err.Error()
		return check
	}
	defer func() { _ = db.Close() }()

	var runs int
	if err := db.QueryRowContext(ctx, "SELECT count(*) FROM runs").Scan(&runs); err != nil {
		check.Status = "warn"
		check.Details = fmt.Sprintf("%s present but unreadable: %v", cfg.StatePath, err)
		return check
	}
	check.Status = "pass"
	check.Details = fmt.Sprintf("%s (%d runs)", cfg.StatePath, runs)
	return check
}

func checkDuckDB(ctx context.Context) DoctorCheck {
	check := DoctorCheck{Name: "duckdb engine", Group: "engine"}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		check.Status = "error"
		check.Details = err.Error()
		return check
	}
	defer func() { _ = db.Close() }()

	var version string
	if err := db.QueryRowContext(ctx, "SELECT version()").Scan(&version); err != nil {
		check.Status = "error"
		check.Details = err.Error()
		return check
	}
	check.Status = "pass"
	check.Details = version
	return check
}

func checkRegistry(cfg *config.Config) DoctorCheck {
	check := DoctorCheck{Name: "schema registry", Group: "engine"}

	registry, err := loadRegistry(cfg)
	if err != nil {
		check.Status = "error"
		check.Details = err.Error()
		return check
	}
	check.Status = "pass"
	check.Details = fmt.Sprintf("%d schemas registered", len(registry.Names()))
	if cfg.SchemasFile != "" {
		check.Details += fmt.Sprintf(" (overlay %s)", cfg.SchemasFile)
	}
	return check
}

func checkGCSCredentials(cfg *config.Config) DoctorCheck {
	check := DoctorCheck{Name: "gcs credentials", Group: "cloud"}

	if cfg.GCSBucket == "" {
		check.Status = "warn"
		check.Details = "gcs_bucket not configured; publishing disabled"
		return check
	}

	if keyPath := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); keyPath != "" {
		if _, err := os.Stat(keyPath); err != nil {
			check.Status = "error"
			check.Details = fmt.Sprintf("GOOGLE_APPLICATION_CREDENTIALS points to missing file %s", keyPath)
			return check
		}
		check.Status = "pass"
		check.Details = fmt.Sprintf("service account key at %s", keyPath)
		return check
	}

	if home, err := os.UserHomeDir(); err == nil {
		adc := filepath.Join(home, ".config", "gcloud", "application_default_credentials.json")
		if _, err := os.Stat(adc); err == nil {
			check.Status = "pass"
			check.Details = "application default credentials"
			return check
		}
	}

	check.Status = "warn"
	check.Details = "no credentials found (set GOOGLE_APPLICATION_CREDENTIALS or run 'gcloud auth application-default login')"
	return check
}

func checkPostgres(ctx context.Context, cfg *config.Config) DoctorCheck {
	check := DoctorCheck{Name: "postgres export target", Group: "export"}

	if cfg.Postgres.Database == "" {
		check.Status = "warn"
		check.Details = "postgres not configured; export disabled"
		return check
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	exporter := export.New(nil)
	if err := exporter.Connect(pingCtx, cfg.Postgres); err != nil {
		check.Status = "warn"
		check.Details = err.Error()
		return check
	}
	_ = exporter.Close()

	host := cfg.Postgres.Host
	if host == "" {
		host = "localhost"
	}
	check.Status = "pass"
	check.Details = fmt.Sprintf("%s/%s reachable", host, cfg.Postgres.Database)
	return check
}
