package commands

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/detectlab/corpusforge/internal/state"
)

func newBufferedCommand() (*cobra.Command, *bytes.Buffer) {
	cmd := &cobra.Command{}
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	return cmd, buf
}

func openRunStore(t *testing.T) *state.SQLiteStore {
	t.Helper()

	store := state.NewSQLiteStore(nil)
	require.NoError(t, store.Open(filepath.Join(t.TempDir(), "state.db")))
	require.NoError(t, store.Migrate())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedCompletedRun(t *testing.T, store *state.SQLiteStore) *state.Run {
	t.Helper()

	run, err := store.CreateRun("v20240101_000000")
	require.NoError(t, err)
	require.NoError(t, store.CompleteRun(run.ID, state.RunStatusCompleted, 3, 4521, ""))

	_, err = store.CreateArtifact(run.ID,
		"data/processed/unified_dataset_v20240101_000000.parquet", "parquet", "9f2c1ab4", 2048)
	require.NoError(t, err)
	return run
}

func TestListRuns(t *testing.T) {
	store := openRunStore(t)
	seedCompletedRun(t, store)

	cmd, buf := newBufferedCommand()
	require.NoError(t, listRuns(cmd, store, 10, "table"))

	output := buf.String()
	assert.Contains(t, output, "v20240101_000000")
	assert.Contains(t, output, "completed")
	assert.Contains(t, output, "(1 runs)")
}

func TestListRuns_Empty(t *testing.T) {
	store := openRunStore(t)

	cmd, buf := newBufferedCommand()
	require.NoError(t, listRuns(cmd, store, 10, "table"))

	assert.Contains(t, buf.String(), "No runs recorded yet")
}

func TestListRuns_JSON(t *testing.T) {
	store := openRunStore(t)
	seedCompletedRun(t, store)

	cmd, buf := newBufferedCommand()
	require.NoError(t, listRuns(cmd, store, 10, "json"))

	output := buf.String()
	assert.Contains(t, output, `"version": "v20240101_000000"`)
	assert.Contains(t, output, `"status": "completed"`)
	assert.Contains(t, output, `"row_count": 4521`)
}

func TestShowRun(t *testing.T) {
	store := openRunStore(t)
	run := seedCompletedRun(t, store)

	cmd, buf := newBufferedCommand()
	require.NoError(t, showRun(cmd, store, run.ID, "table"))

	output := buf.String()
	assert.Contains(t, output, run.ID)
	assert.Contains(t, output, "Datasets: 3")
	assert.Contains(t, output, "Rows:     4521")
	assert.Contains(t, output, "unified_dataset_v20240101_000000.parquet")
	assert.Contains(t, output, "9f2c1ab4")
}

func TestShowRun_JSON(t *testing.T) {
	store := openRunStore(t)
	run := seedCompletedRun(t, store)

	cmd, buf := newBufferedCommand()
	require.NoError(t, showRun(cmd, store, run.ID, "json"))

	output := buf.String()
	assert.Contains(t, output, `"run"`)
	assert.Contains(t, output, `"artifacts"`)
	assert.Contains(t, output, `"checksum": "9f2c1ab4"`)
}

func TestShowRun_NotFound(t *testing.T) {
	store := openRunStore(t)

	cmd, _ := newBufferedCommand()
	err := showRun(cmd, store, "missing-run-id", "table")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
}

func TestShowRun_FailedRun(t *testing.T) {
	store := openRunStore(t)

	run, err := store.CreateRun("v20240202_000000")
	require.NoError(t, err)
	require.NoError(t, store.CompleteRun(run.ID, state.RunStatusFailed, 2, 0, "validation failed for train_essays"))

	cmd, buf := newBufferedCommand()
	require.NoError(t, showRun(cmd, store, run.ID, "table"))

	output := buf.String()
	assert.Contains(t, output, "failed")
	assert.Contains(t, output, "Error:    validation failed for train_essays")
}

func TestRunDuration(t *testing.T) {
	started := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	completed := started.Add(1500 * time.Millisecond)

	running := &state.Run{StartedAt: started}
	assert.Equal(t, "-", runDuration(running))

	done := &state.Run{StartedAt: started, CompletedAt: &completed}
	assert.Equal(t, "1.5s", runDuration(done))
}
