package commands

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/detectlab/corpusforge/internal/state"
)

// NewRunsCommand creates the runs command.
func NewRunsCommand() *cobra.Command {
	var (
		limit  int
		format string
	)

	cmd := &cobra.Command{
		Use:   "runs [id]",
		Short: "Show pipeline run history",
		Long: `Show recent pipeline runs from the state database, newest first,
or one run's details including the artifacts it produced.`,
		Example: `  corpusforge runs
  corpusforge runs --limit 5
  corpusforge runs 1b9d6bcd-bbfd-4b2d-9b5d-ab8dfbbd4bed`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(cmd, limit, format, args)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to show")
	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format: table, json")

	return cmd
}

func runRuns(cmd *cobra.Command, limit int, format string, args []string) error {
	cmdCtx := NewCommandContext(cmd)

	store, err := openStore(cmdCtx.Cfg, cmdCtx.Logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if len(args) == 1 {
		return showRun(cmd, store, args[0], format)
	}
	return listRuns(cmd, store, limit, format)
}

func listRuns(cmd *cobra.Command, store state.Store, limit int, format string) error {
	w := cmd.OutOrStdout()

	runs, err := store.ListRuns(limit)
	if err != nil {
		return err
	}

	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}

	if len(runs) == 0 {
		_, _ = fmt.Fprintln(w, "No runs recorded yet")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Version", "Status", "Datasets", "Rows", "Started", "Duration"})
	for _, run := range runs {
		t.AppendRow(table.Row{
			run.ID, run.Version, string(run.Status), run.SourceCount, run.RowCount,
			run.StartedAt.Local().Format("2006-01-02 15:04:05"), runDuration(run),
		})
	}
	t.Render()
	_, _ = fmt.Fprintf(w, "(%d runs)\n", len(runs))
	return nil
}

func showRun(cmd *cobra.Command, store state.Store, id, format string) error {
	w := cmd.OutOrStdout()

	run, err := store.GetRun(id)
	if err != nil {
		return err
	}
	artifacts, err := store.GetArtifactsForRun(id)
	if err != nil {
		return err
	}

	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Run       *state.Run        `json:"run"`
			Artifacts []*state.Artifact `json:"artifacts"`
		}{run, artifacts})
	}

	_, _ = fmt.Fprintf(w, "Run:      %s\n", run.ID)
	_, _ = fmt.Fprintf(w, "Version:  %s\n", run.Version)
	_, _ = fmt.Fprintf(w, "Status:   %s\n", run.Status)
	_, _ = fmt.Fprintf(w, "Datasets: %d\n", run.SourceCount)
	_, _ = fmt.Fprintf(w, "Rows:     %d\n", run.RowCount)
	_, _ = fmt.Fprintf(w, "Started:  %s\n", run.StartedAt.Local().Format("2006-01-02 15:04:05"))
	if run.CompletedAt != nil {
		_, _ = fmt.Fprintf(w, "Duration: %s\n", runDuration(run))
	}
	if run.Error != "" {
		_, _ = fmt.Fprintf(w, "Error:    %s\n", run.Error)
	}

	if len(artifacts) > 0 {
		_, _ = fmt.Fprintln(w)
		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"Path", "Format", "Bytes", "Checksum"})
		for _, a := range artifacts {
			t.AppendRow(table.Row{a.Path, a.Format, a.Bytes, a.Checksum})
		}
		t.Render()
	}
	return nil
}

func runDuration(run *state.Run) string {
	if run.CompletedAt == nil {
		return "-"
	}
	return run.CompletedAt.Sub(run.StartedAt).Round(time.Millisecond).String()
}
